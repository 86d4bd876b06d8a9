// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"container/list"
	"errors"
	"os"
	"sync"
	"time"
	"unicode/utf8"
)

// ErrBinaryFile is returned by FileCache.Read for content that is not valid
// UTF-8.
var ErrBinaryFile = errors.New("binary file")

// =============================================================================
// FILE CACHE
// =============================================================================

// FileCache is an LRU cache of included files. An entry is valid while the
// file's modification time and size are unchanged.
type FileCache struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	order       *list.List // front is most recently used
	maxEntries  int
	maxSize     int64
	currentSize int64

	hits   int
	misses int
}

type fileCacheEntry struct {
	path    string
	content string
	modTime time.Time
	size    int64
}

// FileCacheStats holds cache statistics.
type FileCacheStats struct {
	Hits       int
	Misses     int
	EntryCount int
	TotalSize  int64
}

// NewFileCache creates a cache holding at most maxEntries files and maxSize
// bytes. Non-positive limits select 100 entries and 32MB.
func NewFileCache(maxEntries int, maxSize int64) *FileCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if maxSize <= 0 {
		maxSize = 32 * 1024 * 1024
	}
	return &FileCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		maxSize:    maxSize,
	}
}

// Read returns the content of the file at path, from the cache when the file
// is unchanged. Content that is not valid UTF-8 yields ErrBinaryFile.
func (fc *FileCache) Read(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		fc.Invalidate(path)
		return "", err
	}

	if content, ok := fc.lookup(path, info); ok {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrBinaryFile
	}

	content := string(data)
	fc.put(path, content, info)
	return content, nil
}

func (fc *FileCache) lookup(path string, info os.FileInfo) (string, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	el, ok := fc.entries[path]
	if !ok {
		fc.misses++
		return "", false
	}
	entry := el.Value.(*fileCacheEntry)
	if !info.ModTime().Equal(entry.modTime) || info.Size() != entry.size {
		fc.removeLocked(el)
		fc.misses++
		return "", false
	}

	fc.order.MoveToFront(el)
	fc.hits++
	return entry.content, true
}

func (fc *FileCache) put(path, content string, info os.FileInfo) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	size := int64(len(content))
	// Files larger than a quarter of the budget are never cached.
	if size > fc.maxSize/4 {
		return
	}

	if el, ok := fc.entries[path]; ok {
		fc.removeLocked(el)
	}
	for fc.order.Len() > 0 && (fc.currentSize+size > fc.maxSize || fc.order.Len() >= fc.maxEntries) {
		fc.removeLocked(fc.order.Back())
	}

	fc.entries[path] = fc.order.PushFront(&fileCacheEntry{
		path:    path,
		content: content,
		modTime: info.ModTime(),
		size:    info.Size(),
	})
	fc.currentSize += size
}

// Invalidate removes a file from the cache.
func (fc *FileCache) Invalidate(path string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if el, ok := fc.entries[path]; ok {
		fc.removeLocked(el)
	}
}

// Stats returns cache statistics.
func (fc *FileCache) Stats() FileCacheStats {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return FileCacheStats{
		Hits:       fc.hits,
		Misses:     fc.misses,
		EntryCount: fc.order.Len(),
		TotalSize:  fc.currentSize,
	}
}

func (fc *FileCache) removeLocked(el *list.Element) {
	entry := fc.order.Remove(el).(*fileCacheEntry)
	delete(fc.entries, entry.path)
	fc.currentSize -= int64(len(entry.content))
}
