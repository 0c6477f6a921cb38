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

// Package state tracks the live API objects of a capture.
package state

import (
	"sort"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
)

// Table maps the handles of live objects to their wrappers, per kind.
// A Table is not safe for concurrent use.
type Table struct {
	objects [wrappers.KindCount]map[format.Handle]wrappers.Object
}

// NewTable returns an empty table.
func NewTable() *Table {
	t := &Table{}
	for i := range t.objects {
		t.objects[i] = map[format.Handle]wrappers.Object{}
	}
	return t
}

// Insert adds o to the table, replacing any object of the same kind at the
// same handle. It returns false if o has an invalid kind or a null handle.
func (t *Table) Insert(o wrappers.Object) bool {
	w := o.Base()
	if w.Kind <= wrappers.UnknownKind || w.Kind >= wrappers.KindCount || w.Handle == format.NullHandle {
		return false
	}
	t.objects[w.Kind][w.Handle] = o
	return true
}

// Remove drops the object of kind at h. It returns false if there was none.
func (t *Table) Remove(kind wrappers.Kind, h format.Handle) bool {
	if kind <= wrappers.UnknownKind || kind >= wrappers.KindCount {
		return false
	}
	if _, ok := t.objects[kind][h]; !ok {
		return false
	}
	delete(t.objects[kind], h)
	return true
}

// Get returns the object of kind at h, or nil.
func (t *Table) Get(kind wrappers.Kind, h format.Handle) wrappers.Object {
	if kind <= wrappers.UnknownKind || kind >= wrappers.KindCount {
		return nil
	}
	return t.objects[kind][h]
}

// Resolve returns the object r refers to, or nil if that object is no longer
// in the table. An object at the same handle with a different identity does
// not resolve.
func (t *Table) Resolve(kind wrappers.Kind, r wrappers.Ref) wrappers.Object {
	if r.IsNull() {
		return nil
	}
	if o := t.Get(kind, r.Handle); r.Matches(o) {
		return o
	}
	return nil
}

// Len returns the number of objects of kind.
func (t *Table) Len(kind wrappers.Kind) int {
	if kind <= wrappers.UnknownKind || kind >= wrappers.KindCount {
		return 0
	}
	return len(t.objects[kind])
}

// Visit calls fn for each object of kind in ascending HandleID order, which
// is the order the objects were created in.
func (t *Table) Visit(kind wrappers.Kind, fn func(wrappers.Object)) {
	if kind <= wrappers.UnknownKind || kind >= wrappers.KindCount {
		return
	}
	list := make([]wrappers.Object, 0, len(t.objects[kind]))
	for _, o := range t.objects[kind] {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Base().HandleID < list[j].Base().HandleID })
	for _, o := range list {
		fn(o)
	}
}

// Instance returns the instance at h, or nil.
func (t *Table) Instance(h format.Handle) *wrappers.InstanceWrapper {
	o, _ := t.Get(wrappers.Instance, h).(*wrappers.InstanceWrapper)
	return o
}

// PhysicalDevice returns the physical device at h, or nil.
func (t *Table) PhysicalDevice(h format.Handle) *wrappers.PhysicalDeviceWrapper {
	o, _ := t.Get(wrappers.PhysicalDevice, h).(*wrappers.PhysicalDeviceWrapper)
	return o
}

// Device returns the device at h, or nil.
func (t *Table) Device(h format.Handle) *wrappers.DeviceWrapper {
	o, _ := t.Get(wrappers.Device, h).(*wrappers.DeviceWrapper)
	return o
}

// Queue returns the queue at h, or nil.
func (t *Table) Queue(h format.Handle) *wrappers.QueueWrapper {
	o, _ := t.Get(wrappers.Queue, h).(*wrappers.QueueWrapper)
	return o
}

// DeviceMemory returns the allocation at h, or nil.
func (t *Table) DeviceMemory(h format.Handle) *wrappers.DeviceMemoryWrapper {
	o, _ := t.Get(wrappers.DeviceMemory, h).(*wrappers.DeviceMemoryWrapper)
	return o
}

// Buffer returns the buffer at h, or nil.
func (t *Table) Buffer(h format.Handle) *wrappers.BufferWrapper {
	o, _ := t.Get(wrappers.Buffer, h).(*wrappers.BufferWrapper)
	return o
}

// Image returns the image at h, or nil.
func (t *Table) Image(h format.Handle) *wrappers.ImageWrapper {
	o, _ := t.Get(wrappers.Image, h).(*wrappers.ImageWrapper)
	return o
}

// Framebuffer returns the framebuffer at h, or nil.
func (t *Table) Framebuffer(h format.Handle) *wrappers.FramebufferWrapper {
	o, _ := t.Get(wrappers.Framebuffer, h).(*wrappers.FramebufferWrapper)
	return o
}

// PipelineLayout returns the pipeline layout at h, or nil.
func (t *Table) PipelineLayout(h format.Handle) *wrappers.PipelineLayoutWrapper {
	o, _ := t.Get(wrappers.PipelineLayout, h).(*wrappers.PipelineLayoutWrapper)
	return o
}

// Pipeline returns the pipeline at h, or nil.
func (t *Table) Pipeline(h format.Handle) *wrappers.PipelineWrapper {
	o, _ := t.Get(wrappers.Pipeline, h).(*wrappers.PipelineWrapper)
	return o
}

// RenderPass returns the render pass at h, or nil.
func (t *Table) RenderPass(h format.Handle) *wrappers.Wrapper {
	return t.base(wrappers.RenderPass, h)
}

// ShaderModule returns the shader module at h, or nil.
func (t *Table) ShaderModule(h format.Handle) *wrappers.Wrapper {
	return t.base(wrappers.ShaderModule, h)
}

// DescriptorSetLayout returns the descriptor set layout at h, or nil.
func (t *Table) DescriptorSetLayout(h format.Handle) *wrappers.Wrapper {
	return t.base(wrappers.DescriptorSetLayout, h)
}

func (t *Table) base(kind wrappers.Kind, h format.Handle) *wrappers.Wrapper {
	if o := t.Get(kind, h); o != nil {
		return o.Base()
	}
	return nil
}
