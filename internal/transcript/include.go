// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jeranaias/aichat/internal/model"
)

// BinaryPlaceholder replaces the contents of files that cannot be shown.
const BinaryPlaceholder = "Binary file, cannot display"

// Includer expands include messages.
type Includer struct {
	// Root is the directory relative paths are resolved against. Empty means
	// the working directory.
	Root string
	// Cache is optional.
	Cache *FileCache
}

// IncludedFile is one file named by an include message.
type IncludedFile struct {
	Path string
	// Content is empty when Err is set.
	Content string
	// Err is set when the file could not be read or is not UTF-8.
	Err error
}

// Files returns the regular files named by an include message. Each
// non-blank line of the content is a path or glob pattern. Directories are
// skipped.
func (inc *Includer) Files(msg model.Message) []IncludedFile {
	var files []IncludedFile
	for _, path := range inc.expand(msg.Content) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			continue
		}
		content, err := inc.read(path)
		files = append(files, IncludedFile{Path: path, Content: content, Err: err})
	}
	return files
}

// Resolve turns an include message into a user message. Every file returned
// by Files is appended as
//
//	\n\n==> path <==\n<contents>
//
// Files that cannot be read or are not UTF-8 are replaced by
// BinaryPlaceholder. Messages of other roles are returned unchanged.
func (inc *Includer) Resolve(msg model.Message) model.Message {
	if msg.Role != model.RoleInclude {
		return msg
	}

	var b strings.Builder
	for _, f := range inc.Files(msg) {
		b.WriteString("\n\n==> ")
		b.WriteString(f.Path)
		b.WriteString(" <==\n")
		if f.Err != nil {
			b.WriteString(BinaryPlaceholder)
			continue
		}
		b.WriteString(f.Content)
	}
	return model.Message{Role: model.RoleUser, Content: b.String()}
}

// expand returns the absolute paths named by content. Literal paths come
// first in order, followed by the sorted matches of each pattern.
func (inc *Includer) expand(content string) []string {
	var paths, matches []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p := inc.abs(line)
		if !isPattern(p) {
			paths = append(paths, p)
			continue
		}
		found, err := doublestar.FilepathGlob(p)
		if err != nil {
			// A malformed pattern is shown as an unreadable path.
			paths = append(paths, p)
			continue
		}
		slices.Sort(found)
		matches = append(matches, found...)
	}
	return append(paths, matches...)
}

func (inc *Includer) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	root := inc.Root
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	return filepath.Join(root, p)
}

// isPattern reports whether p must be expanded. "**" always expands; other
// wildcards only when no file with that literal name exists.
func isPattern(p string) bool {
	if strings.Contains(p, "**") {
		return true
	}
	if !strings.ContainsAny(p, "*?[{") {
		return false
	}
	_, err := os.Stat(p)
	return err != nil
}

func (inc *Includer) read(path string) (string, error) {
	if inc.Cache != nil {
		return inc.Cache.Read(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrBinaryFile
	}
	return string(data), nil
}
