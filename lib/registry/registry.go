// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ID identifies one proxied object for its whole lifetime.
type ID uint64

// FactoryID is the owner id used for callbacks addressed to the plugin
// factory rather than to a constructed instance.
const FactoryID ID = 0

// ErrNotFound is returned when an identifier is not live.
var ErrNotFound = errors.New("instance not found")

// ErrExists is returned by Insert when the identifier is already live.
var ErrExists = errors.New("instance already registered")

// Entry is one live object returned by Drain.
type Entry[T any] struct {
	ID     ID
	Object T
}

// Registry is a concurrency-safe map from ID to object. The zero value
// is not usable; call New.
type Registry[T any] struct {
	mu      sync.RWMutex
	objects map[ID]T
	next    ID
}

// New returns an empty registry whose first issued id is 1.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		objects: make(map[ID]T),
		next:    1,
	}
}

// Register stores object under a fresh identifier and returns it.
func (r *Registry[T]) Register(object T) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.objects[id] = object
	return id
}

// Insert stores object under an identifier issued elsewhere. Later
// calls to Register never return an id at or below the highest
// inserted one.
func (r *Registry[T]) Insert(id ID, object T) error {
	if id == FactoryID {
		return fmt.Errorf("inserting instance %d: reserved identifier", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[id]; exists {
		return fmt.Errorf("inserting instance %d: %w", id, ErrExists)
	}
	r.objects[id] = object
	if id >= r.next {
		r.next = id + 1
	}
	return nil
}

// Store is Insert, except that an object already under id is
// replaced in the same critical section.
func (r *Registry[T]) Store(id ID, object T) error {
	if id == FactoryID {
		return fmt.Errorf("storing instance %d: reserved identifier", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.objects[id] = object
	if id >= r.next {
		r.next = id + 1
	}
	return nil
}

// Resolve returns the object registered under id.
func (r *Registry[T]) Resolve(id ID) (T, error) {
	r.mu.RLock()
	object, ok := r.objects[id]
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, fmt.Errorf("resolving instance %d: %w", id, ErrNotFound)
	}
	return object, nil
}

// Release removes id and returns the object it referred to. Releasing
// an id that is not live returns ErrNotFound and changes nothing.
func (r *Registry[T]) Release(id ID) (T, error) {
	r.mu.Lock()
	object, ok := r.objects[id]
	if ok {
		delete(r.objects, id)
	}
	r.mu.Unlock()

	if !ok {
		var zero T
		return zero, fmt.Errorf("releasing instance %d: %w", id, ErrNotFound)
	}
	return object, nil
}

// Drain removes every live object and returns them ordered by id.
func (r *Registry[T]) Drain() []Entry[T] {
	r.mu.Lock()
	entries := make([]Entry[T], 0, len(r.objects))
	for id, object := range r.objects {
		entries = append(entries, Entry[T]{ID: id, Object: object})
	}
	clear(r.objects)
	r.mu.Unlock()

	slices.SortFunc(entries, func(a, b Entry[T]) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}

// Len returns the number of live objects.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}
