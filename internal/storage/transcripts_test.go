// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleTranscript = `[chat-options]
model=gpt-4o

>>> user

explain
this code

<<< assistant

It prints hello.

>>> user

`

func newTestStore(t *testing.T) *TranscriptStore {
	t.Helper()
	store, err := NewTranscriptStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

// setModTime makes List ordering deterministic.
func setModTime(t *testing.T, store *TranscriptStore, name string, mod time.Time) {
	t.Helper()
	if err := os.Chtimes(store.Path(name), mod, mod); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
}

// =============================================================================
// TRANSCRIPT STORE TESTS
// =============================================================================

func TestNewTranscriptStoreWithDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chats")

	store, err := NewTranscriptStoreWithDir(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if store.BaseDir != dir {
		t.Errorf("BaseDir = %q, want %q", store.BaseDir, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("BaseDir not created: %v", err)
	}
}

func TestTranscriptStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("review", sampleTranscript); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !store.Exists("review") {
		t.Error("Exists = false after Save")
	}

	text, err := store.Load("review")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if text != sampleTranscript {
		t.Errorf("Load = %q, want the saved text verbatim", text)
	}

	if _, err := os.Stat(filepath.Join(store.BaseDir, "review.aichat")); err != nil {
		t.Errorf("expected review.aichat on disk: %v", err)
	}
}

func TestTranscriptStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("missing")
	if !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Load error = %v, want ErrTranscriptNotFound", err)
	}
	if store.Exists("missing") {
		t.Error("Exists = true for a missing transcript")
	}
}

func TestTranscriptStore_InvalidNames(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", ".", "..", "../escape", `a\b`, "a/b"} {
		if err := store.Save(name, "x"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := store.Load(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestTranscriptStore_Delete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("old", "x"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete("old"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete("old"); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("second Delete error = %v, want ErrTranscriptNotFound", err)
	}
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestTranscriptStore_List(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	if err := store.Save("first", sampleTranscript); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save("second", ">>> user\n\nhi\n"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	setModTime(t, store, "first", now.Add(-time.Hour))
	setModTime(t, store, "second", now)

	// Files without the extension are ignored.
	if err := os.WriteFile(filepath.Join(store.BaseDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List returned %d transcripts, want 2", len(metas))
	}
	if metas[0].Name != "second" || metas[1].Name != "first" {
		t.Errorf("order = %q, %q; want most recent first", metas[0].Name, metas[1].Name)
	}

	first := metas[1]
	if first.Model != "gpt-4o" {
		t.Errorf("Model = %q, want gpt-4o", first.Model)
	}
	if first.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", first.MessageCount)
	}
	if first.Preview != "explain this code" {
		t.Errorf("Preview = %q", first.Preview)
	}
	if first.Size != int64(len(sampleTranscript)) {
		t.Errorf("Size = %d, want %d", first.Size, len(sampleTranscript))
	}
}

func TestTranscriptStore_ListMissingDir(t *testing.T) {
	store := &TranscriptStore{BaseDir: filepath.Join(t.TempDir(), "nope")}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("List = %v, want empty", metas)
	}
}

func TestTranscriptStore_Search(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("a", sampleTranscript); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("b", ">>> user\n\nweather?\n"); err != nil {
		t.Fatal(err)
	}

	results, err := store.Search("PRINTS HELLO")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Name != "a" {
		t.Errorf("Search = %v, want only a", results)
	}

	all, err := store.Search("")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("empty query returned %d, want 2", len(all))
	}
}

func TestTranscriptStore_EnforceLimit(t *testing.T) {
	store := newTestStore(t)
	store.MaxTranscripts = 2
	now := time.Now()

	for i, name := range []string{"one", "two"} {
		if err := store.Save(name, "x"); err != nil {
			t.Fatal(err)
		}
		setModTime(t, store, name, now.Add(time.Duration(i-10)*time.Minute))
	}
	if err := store.Save("three", "x"); err != nil {
		t.Fatal(err)
	}

	if store.Exists("one") {
		t.Error("oldest transcript was not removed")
	}
	if !store.Exists("two") || !store.Exists("three") {
		t.Error("newer transcripts were removed")
	}
}

func TestTranscriptError_Is(t *testing.T) {
	err := &TranscriptError{Message: "transcript not found"}
	if !errors.Is(err, ErrTranscriptNotFound) {
		t.Error("errors.Is should match on message")
	}
	if errors.Is(err, ErrInvalidName) {
		t.Error("errors.Is matched a different error")
	}
}

func TestFormatList(t *testing.T) {
	if got := FormatList(nil); got != "No transcripts found." {
		t.Errorf("FormatList(nil) = %q", got)
	}

	out := FormatList([]TranscriptMeta{{
		Name:         "review",
		ModTime:      time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC),
		MessageCount: 3,
		Preview:      "explain this code",
	}})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"review", "2025-03-01 14:30", "3", "explain this code"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}
