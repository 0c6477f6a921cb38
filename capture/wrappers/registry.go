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

package wrappers

import (
	"fmt"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/core/memory/arena"
)

// Registry hands out handles and identities for wrapped objects, and maps
// handles back to their wrappers.
//
// Handles are arena slots, one arena per kind, so a destroyed object's handle
// is handed to the next object of the same kind. Identities come from a
// single counter and are never reused.
// A Registry is not safe for concurrent use.
type Registry struct {
	slots  [KindCount]*arena.Arena[Object]
	lastID format.HandleID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.slots {
		r.slots[i] = arena.New[Object]()
	}
	return r
}

// Wrap assigns a handle and identity to obj and records it as a child of
// parent, which may be nil. obj must have its Kind and Native set.
//
// If the rule for the parent and child kinds dedupes, and parent already
// owns a child with the same native handle, that child is returned instead
// and obj is discarded.
func (r *Registry) Wrap(parent, obj Object) Object {
	w := obj.Base()
	if w.Kind <= UnknownKind || w.Kind >= KindCount {
		panic(fmt.Errorf("Cannot wrap object of kind %v", w.Kind))
	}
	var rule Rule
	if parent != nil {
		rule = RuleFor(parent.Base().Kind, w.Kind)
		if rule.Dedupe {
			for _, c := range children(parent, w.Kind) {
				if c.Base().Native == w.Native {
					return c
				}
			}
		}
		if rule.InheritDispatch {
			w.DispatchKey = parent.Base().DispatchKey
		}
	}
	r.lastID++
	w.HandleID = r.lastID
	w.Handle = format.Handle(r.slots[w.Kind].Alloc(obj))
	if parent != nil {
		attach(parent, obj)
	}
	return obj
}

// WrapAll wraps each of objs under parent, returning the resulting wrappers.
func (r *Registry) WrapAll(parent Object, objs []Object) []Object {
	out := make([]Object, len(objs))
	for i, o := range objs {
		out[i] = r.Wrap(parent, o)
	}
	return out
}

// Get returns the wrapper of kind at handle h, or nil.
func (r *Registry) Get(kind Kind, h format.Handle) Object {
	if kind <= UnknownKind || kind >= KindCount {
		return nil
	}
	o, _ := r.slots[kind].Get(arena.Slot(h))
	return o
}

// Unwrap returns the native handle behind h. The null handle, and handles
// that are not live, unwrap to the null native handle.
func (r *Registry) Unwrap(kind Kind, h format.Handle) dispatch.Native {
	if o := r.Get(kind, h); o != nil {
		return o.Base().Native
	}
	return dispatch.NullNative
}

// UnwrapHandles unwraps each of hs.
func (r *Registry) UnwrapHandles(kind Kind, hs []format.Handle) []dispatch.Native {
	if hs == nil {
		return nil
	}
	out := make([]dispatch.Native, len(hs))
	for i, h := range hs {
		out[i] = r.Unwrap(kind, h)
	}
	return out
}

// GetID returns the identity of the object at h, or NullHandleID.
func (r *Registry) GetID(kind Kind, h format.Handle) format.HandleID {
	if o := r.Get(kind, h); o != nil {
		return o.Base().HandleID
	}
	return format.NullHandleID
}

// Destroy releases the object of kind at h along with every object it owns,
// and returns the released wrappers, owner first.
func (r *Registry) Destroy(kind Kind, h format.Handle) []Object {
	o := r.Get(kind, h)
	if o == nil {
		return nil
	}
	detach(o)
	return r.release(o, nil)
}

func (r *Registry) release(o Object, out []Object) []Object {
	w := o.Base()
	r.slots[w.Kind].Free(arena.Slot(w.Handle))
	out = append(out, o)
	for _, c := range owned(o) {
		out = r.release(c, out)
		c.Base().parent = nil
	}
	return out
}

// Len returns the number of live wrappers.
func (r *Registry) Len() int {
	n := 0
	for _, a := range r.slots {
		n += a.Stats().NumAllocations
	}
	return n
}
