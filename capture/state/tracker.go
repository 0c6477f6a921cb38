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

package state

import (
	"sync"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/pkg/errors"
)

// ErrUnknownHandle is returned when a handle does not refer to a live object.
const ErrUnknownHandle = fault.Const("Unknown handle")

// Tracker keeps a Table in step with the objects created and destroyed by
// the capture path. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	registry *wrappers.Registry
	table    *Table
}

// NewTracker returns a tracker with no live objects.
func NewTracker() *Tracker {
	return &Tracker{registry: wrappers.NewRegistry(), table: NewTable()}
}

// Create wraps obj under parent and adds it to the table. It returns the
// live wrapper, which is an existing one if the wrapping rules dedupe obj.
func (t *Tracker) Create(parent, obj wrappers.Object) wrappers.Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.registry.Wrap(parent, obj)
	t.table.Insert(o)
	return o
}

// Destroy removes the object of kind at h, and every object it owns.
// It returns the number of objects removed.
func (t *Tracker) Destroy(kind wrappers.Kind, h format.Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	released := t.registry.Destroy(kind, h)
	for _, o := range released {
		b := o.Base()
		t.table.Remove(b.Kind, b.Handle)
	}
	return len(released)
}

// Lookup returns the live object of kind at h, or nil.
func (t *Tracker) Lookup(kind wrappers.Kind, h format.Handle) wrappers.Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Get(kind, h)
}

// Unwrap returns the native handle of the object of kind at h.
func (t *Tracker) Unwrap(kind wrappers.Kind, h format.Handle) dispatch.Native {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Unwrap(kind, h)
}

// GetID returns the identity of the object of kind at h.
func (t *Tracker) GetID(kind wrappers.Kind, h format.Handle) format.HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.GetID(kind, h)
}

// Update calls fn with the object of kind at h while the tracker is locked.
func (t *Tracker) Update(kind wrappers.Kind, h format.Handle, fn func(wrappers.Object)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.registry.Get(kind, h)
	if o == nil {
		return errors.Wrapf(ErrUnknownHandle, "%v %d", kind, h)
	}
	fn(o)
	return nil
}

// BindMemory records that the buffer or image of kind at h is bound to the
// allocation at memory, at offset.
func (t *Tracker) BindMemory(kind wrappers.Kind, h, device, memory format.Handle, offset uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.registry.Get(wrappers.Device, device)
	if d == nil {
		return errors.Wrapf(ErrUnknownHandle, "%v %d", wrappers.Device, device)
	}
	m := t.registry.Get(wrappers.DeviceMemory, memory)
	if m == nil {
		return errors.Wrapf(ErrUnknownHandle, "%v %d", wrappers.DeviceMemory, memory)
	}
	binding := wrappers.Binding{Device: d.Base().Ref(), Memory: m.Base().Ref(), Offset: offset}
	switch o := t.registry.Get(kind, h).(type) {
	case *wrappers.BufferWrapper:
		o.Binding = binding
	case *wrappers.ImageWrapper:
		o.Binding = binding
	default:
		return errors.Wrapf(ErrUnknownHandle, "%v %d", kind, h)
	}
	return nil
}

// MapMemory records that the application mapped data, found at offset in
// the allocation at memory.
func (t *Tracker) MapMemory(memory format.Handle, offset uint64, data []byte) error {
	return t.Update(wrappers.DeviceMemory, memory, func(o wrappers.Object) {
		m := o.(*wrappers.DeviceMemoryWrapper)
		m.MappedData, m.MappedOffset = data, offset
	})
}

// UnmapMemory records that the application unmapped the allocation at memory.
func (t *Tracker) UnmapMemory(memory format.Handle) error {
	return t.MapMemory(memory, 0, nil)
}

// SetMemoryTypes records the memory types reported for a physical device.
func (t *Tracker) SetMemoryTypes(physicalDevice format.Handle, types []dispatch.MemoryType) error {
	return t.Update(wrappers.PhysicalDevice, physicalDevice, func(o wrappers.Object) {
		o.(*wrappers.PhysicalDeviceWrapper).MemoryTypes = append([]dispatch.MemoryType(nil), types...)
	})
}

// Len returns the number of live objects.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Len()
}

// Freeze calls fn with the table while no object can be created, destroyed
// or updated.
func (t *Tracker) Freeze(fn func(*Table)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.table)
}
