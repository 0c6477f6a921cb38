// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package arena implements a slot arena.
//
// An Arena owns values of a single type, addressed by a non-zero Slot.
// Freed slots are handed out again, most recently freed first, so a Slot on
// its own does not identify a value over time.
package arena

import "fmt"

// Slot addresses a value held by an Arena. The zero Slot is never allocated.
type Slot uint64

// Arena holds values addressed by Slot.
// An Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []entry[T]
	free  []Slot
	live  int
}

type entry[T any] struct {
	value T
	used  bool
}

// New constructs a new, empty arena.
func New[T any]() *Arena[T] {
	// slot 0 is reserved as the null slot.
	return &Arena[T]{slots: make([]entry[T], 1)}
}

// Alloc stores v in a free slot and returns it.
func (a *Arena[T]) Alloc(v T) Slot {
	var s Slot
	if n := len(a.free); n > 0 {
		s = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		s = Slot(len(a.slots))
		a.slots = append(a.slots, entry[T]{})
	}
	a.slots[s] = entry[T]{value: v, used: true}
	a.live++
	return s
}

// Get returns the value held at s, and whether s is allocated.
func (a *Arena[T]) Get(s Slot) (T, bool) {
	if s == 0 || int(s) >= len(a.slots) || !a.slots[s].used {
		var zero T
		return zero, false
	}
	return a.slots[s].value, true
}

// Free releases s for reuse. It returns false if s was not allocated.
func (a *Arena[T]) Free(s Slot) bool {
	if _, ok := a.Get(s); !ok {
		return false
	}
	a.slots[s] = entry[T]{}
	a.free = append(a.free, s)
	a.live--
	return true
}

// Stats holds statistics of an Arena.
type Stats struct {
	NumAllocations int // Number of live values.
	NumSlots       int // Number of slots ever created.
}

func (s Stats) String() string {
	return fmt.Sprintf("{allocs: %v, slots: %v}", s.NumAllocations, s.NumSlots)
}

// Stats returns statistics of the current state of the Arena.
func (a *Arena[T]) Stats() Stats {
	return Stats{NumAllocations: a.live, NumSlots: len(a.slots) - 1}
}
