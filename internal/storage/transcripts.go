// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/model"
	"github.com/jeranaias/aichat/internal/transcript"
	"github.com/jeranaias/aichat/internal/util"
)

// Extension is the file extension of stored transcripts.
const Extension = ".aichat"

// previewWidth is the display width of TranscriptMeta.Preview.
const previewWidth = 80

// =============================================================================
// TRANSCRIPT META
// =============================================================================

// TranscriptMeta describes a stored transcript for listings.
type TranscriptMeta struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64

	// Model set in the transcript's [chat-options] header, if any.
	Model        string
	MessageCount int
	// Preview is the first user message on one line.
	Preview string
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore handles transcript persistence.
type TranscriptStore struct {
	// BaseDir is the directory for storing transcripts.
	// Default: ~/.aichat/chats/
	BaseDir string

	// MaxTranscripts limits stored transcripts (0 = unlimited). The least
	// recently modified ones are removed first.
	MaxTranscripts int
}

// NewTranscriptStore creates a store in the default location.
func NewTranscriptStore() (*TranscriptStore, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewTranscriptStoreWithDir(filepath.Join(dir, "chats"))
}

// NewTranscriptStoreWithDir creates a store with a custom directory.
func NewTranscriptStoreWithDir(baseDir string) (*TranscriptStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &TranscriptStore{BaseDir: baseDir}, nil
}

// Path returns the file path of the transcript called name.
func (s *TranscriptStore) Path(name string) string {
	return filepath.Join(s.BaseDir, name+Extension)
}

// Save writes the transcript atomically.
func (s *TranscriptStore) Save(name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := util.AtomicWrite(s.Path(name), 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
	if err != nil {
		return err
	}
	if s.MaxTranscripts > 0 {
		s.enforceLimit(name)
	}
	return nil
}

// Load reads the transcript called name.
func (s *TranscriptStore) Load(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrTranscriptNotFound
		}
		return "", err
	}
	return string(data), nil
}

// Exists reports whether a transcript called name is stored.
func (s *TranscriptStore) Exists(name string) bool {
	if validateName(name) != nil {
		return false
	}
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the transcript called name.
func (s *TranscriptStore) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrTranscriptNotFound
		}
		return err
	}
	return nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all stored transcripts, most recently modified first.
// Unreadable files are skipped.
func (s *TranscriptStore) List() ([]TranscriptMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptMeta{}, nil
		}
		return nil, err
	}

	metas := make([]TranscriptMeta, 0, len(entries))
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), Extension)
		if entry.IsDir() || !ok || name == "" {
			continue
		}
		meta, err := s.stat(name)
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	slices.SortFunc(metas, func(a, b TranscriptMeta) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return metas, nil
}

// Search returns the transcripts whose text contains query, ignoring case.
// An empty query matches everything.
func (s *TranscriptStore) Search(query string) ([]TranscriptMeta, error) {
	all, err := s.List()
	if err != nil || query == "" {
		return all, err
	}

	query = strings.ToLower(query)
	var results []TranscriptMeta
	for _, meta := range all {
		text, err := s.Load(meta.Name)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// stat builds the metadata of one transcript.
func (s *TranscriptStore) stat(name string) (TranscriptMeta, error) {
	path := s.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return TranscriptMeta{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return TranscriptMeta{}, err
	}

	doc := transcript.Parse(strings.Split(string(data), "\n"))
	meta := TranscriptMeta{
		Name:         name,
		Path:         path,
		ModTime:      info.ModTime(),
		Size:         info.Size(),
		Model:        doc.Header.String("model"),
		MessageCount: len(doc.Messages),
	}
	for _, msg := range doc.Messages {
		if msg.Role == model.RoleUser && !msg.IsBlank() {
			meta.Preview = util.TruncateWidth(util.OneLine(msg.Content), previewWidth)
			break
		}
	}
	return meta, nil
}

// enforceLimit removes the oldest transcripts over the limit. The
// transcript just saved is never removed.
func (s *TranscriptStore) enforceLimit(keep string) {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}
	for _, meta := range metas[s.MaxTranscripts:] {
		if meta.Name != keep {
			_ = s.Delete(meta.Name)
		}
	}
}

// validateName rejects names that would escape BaseDir.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`):
		return ErrInvalidName
	case strings.ContainsRune(name, 0):
		return ErrInvalidName
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTranscriptNotFound is returned when a transcript doesn't exist.
	// Use errors.Is(err, ErrTranscriptNotFound) to check for this error.
	ErrTranscriptNotFound = &TranscriptError{Message: "transcript not found"}

	// ErrInvalidName is returned for names that are empty or contain path
	// separators.
	ErrInvalidName = &TranscriptError{Message: "invalid transcript name"}
)

// TranscriptError represents a transcript-related error.
type TranscriptError struct {
	Message string
}

// Error implements the error interface.
func (e *TranscriptError) Error() string {
	return e.Message
}

// Is reports whether target is a TranscriptError with the same message.
func (e *TranscriptError) Is(target error) bool {
	t, ok := target.(*TranscriptError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList formats transcripts as a table for the terminal.
func FormatList(metas []TranscriptMeta) string {
	if len(metas) == 0 {
		return "No transcripts found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("NAME", 20) + " " + util.PadRight("MODIFIED", 16) + " " + util.PadRight("MSGS", 5) + " PREVIEW\n")
	for _, m := range metas {
		sb.WriteString(util.PadRight(util.TruncateWidth(m.Name, 20), 20))
		sb.WriteString(" ")
		sb.WriteString(util.PadRight(m.ModTime.Format("2006-01-02 15:04"), 16))
		sb.WriteString(" ")
		sb.WriteString(util.PadRight(strconv.Itoa(m.MessageCount), 5))
		sb.WriteString(" ")
		sb.WriteString(util.TruncateWidth(m.Preview, 40))
		sb.WriteString("\n")
	}
	return sb.String()
}
