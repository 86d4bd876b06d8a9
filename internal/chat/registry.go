// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of chats a Registry keeps.
const DefaultCapacity = 10

// Registry holds the open chats in most-recently-used order. When a new
// chat exceeds the capacity the least recently used one is closed and
// dropped.
type Registry struct {
	mu       sync.Mutex
	capacity int
	newChat  func(name string) *Chat
	chats    map[uuid.UUID]*Chat
	order    []uuid.UUID // least recently used first
	created  int
}

// NewRegistry creates a registry. newChat builds a chat with the given
// name; capacity <= 0 uses DefaultCapacity.
func NewRegistry(capacity int, newChat func(name string) *Chat) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		newChat:  newChat,
		chats:    make(map[uuid.UUID]*Chat),
	}
}

// New creates a chat, makes it the current one and evicts the least recently
// used chat when the registry is full.
func (r *Registry) New() *Chat {
	r.mu.Lock()
	r.created++
	name := ">>> AI chat"
	if r.created > 1 {
		name = fmt.Sprintf(">>> AI chat %d", r.created)
	}
	c := r.newChat(name)
	r.chats[c.ID()] = c
	r.order = append(r.order, c.ID())

	var evicted []*Chat
	for len(r.order) > r.capacity {
		id := r.order[0]
		r.order = r.order[1:]
		evicted = append(evicted, r.chats[id])
		delete(r.chats, id)
	}
	r.mu.Unlock()

	for _, old := range evicted {
		old.Close()
	}
	return c
}

// Get returns the chat with id and marks it most recently used.
func (r *Registry) Get(id uuid.UUID) (*Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.chats[id]
	if ok {
		r.touchLocked(id)
	}
	return c, ok
}

// Find returns the chat named name and marks it most recently used.
func (r *Registry) Find(name string) (*Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.chats {
		if c.Name() == name {
			r.touchLocked(id)
			return c, true
		}
	}
	return nil, false
}

// Current returns the most recently used chat, creating one when the
// registry is empty.
func (r *Registry) Current() *Chat {
	r.mu.Lock()
	if n := len(r.order); n > 0 {
		c := r.chats[r.order[n-1]]
		r.mu.Unlock()
		return c
	}
	r.mu.Unlock()
	return r.New()
}

// Remove closes and drops the chat with id.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	c, ok := r.chats[id]
	if ok {
		delete(r.chats, id)
		r.order = slices.DeleteFunc(r.order, func(o uuid.UUID) bool { return o == id })
	}
	r.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// List returns the chats, most recently used first.
func (r *Registry) List() []*Chat {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Chat, 0, len(r.order))
	for _, id := range slices.Backward(r.order) {
		out = append(out, r.chats[id])
	}
	return out
}

// Len returns the number of open chats.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Close closes every chat and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	chats := make([]*Chat, 0, len(r.chats))
	for _, c := range r.chats {
		chats = append(chats, c)
	}
	r.chats = make(map[uuid.UUID]*Chat)
	r.order = nil
	r.mu.Unlock()

	for _, c := range chats {
		c.Close()
	}
}

func (r *Registry) touchLocked(id uuid.UUID) {
	i := slices.Index(r.order, id)
	if i < 0 || i == len(r.order)-1 {
		return
	}
	r.order = append(slices.Delete(r.order, i, i+1), id)
}
