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

// Package wrappers holds the records that stand in for live API objects.
//
// Every object handed to the application is represented by a wrapper. The
// application sees the wrapper's Handle, a slot that is reused once the
// object is destroyed, while the capture file refers to the object by its
// HandleID, which is never reused.
package wrappers

import (
	"fmt"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
)

// Object is implemented by every wrapper record.
type Object interface {
	Base() *Wrapper
}

// Wrapper holds the fields common to all API objects.
type Wrapper struct {
	Kind     Kind
	Handle   format.Handle
	HandleID format.HandleID
	Native   dispatch.Native
	// DispatchKey is only set for dispatchable kinds.
	DispatchKey dispatch.Key
	// CreateCallID and CreateParameters hold the encoded call that created
	// the object. CreateParameters must not be modified once set.
	CreateCallID     format.ApiCallID
	CreateParameters []byte

	parent Object
}

// Base returns w.
func (w *Wrapper) Base() *Wrapper { return w }

// Parent returns the object w was wrapped under, or nil.
func (w *Wrapper) Parent() Object { return w.parent }

// Ref returns a reference to w.
func (w *Wrapper) Ref() Ref { return Ref{Handle: w.Handle, HandleID: w.HandleID} }

// Dependency returns a reference to w that can recreate it.
func (w *Wrapper) Dependency() Dependency {
	return Dependency{Ref: w.Ref(), CreateCallID: w.CreateCallID, CreateParameters: w.CreateParameters}
}

func (w *Wrapper) String() string {
	return fmt.Sprintf("%v<handle: %d, id: %d>", w.Kind, w.Handle, w.HandleID)
}

// Ref is a reference from one object to another.
// A Ref only refers to a live object if that object has both the same Handle
// and the same HandleID.
type Ref struct {
	Handle   format.Handle
	HandleID format.HandleID
}

// IsNull returns true if r does not refer to an object.
func (r Ref) IsNull() bool { return r.Handle == format.NullHandle }

// Matches returns true if r refers to o.
func (r Ref) Matches(o Object) bool {
	if o == nil {
		return false
	}
	b := o.Base()
	return b.Handle == r.Handle && b.HandleID == r.HandleID
}

// Dependency is a Ref that also holds the creation call of the referenced
// object, so the object can be recreated after it has been destroyed.
type Dependency struct {
	Ref
	CreateCallID     format.ApiCallID
	CreateParameters []byte
}

// Binding is the memory binding of a buffer or image.
type Binding struct {
	Device Ref
	Memory Ref
	Offset uint64
}

// Bound returns true if memory has been bound.
func (b Binding) Bound() bool { return !b.Memory.IsNull() }

// InstanceWrapper is a VkInstance.
type InstanceWrapper struct {
	Wrapper
	PhysicalDevices []*PhysicalDeviceWrapper
}

// PhysicalDeviceWrapper is a VkPhysicalDevice.
type PhysicalDeviceWrapper struct {
	Wrapper
	Instance *InstanceWrapper
	// MemoryTypes is filled in when the application queries the memory
	// properties of the device.
	MemoryTypes  []dispatch.MemoryType
	Displays     []*Wrapper
	DisplayModes []*Wrapper
}

// DeviceWrapper is a VkDevice.
type DeviceWrapper struct {
	Wrapper
	PhysicalDevice *PhysicalDeviceWrapper
	// QueueFamilies lists the queue families requested at creation.
	QueueFamilies []uint32
	Queues        []*QueueWrapper
}

// QueueWrapper is a VkQueue.
type QueueWrapper struct {
	Wrapper
	Device *DeviceWrapper
	Family uint32
	Index  uint32
}

// DeviceMemoryWrapper is a VkDeviceMemory.
type DeviceMemoryWrapper struct {
	Wrapper
	Device          Ref
	MemoryTypeIndex uint32
	AllocationSize  uint64
	// MappedData is the range the application holds mapped, or nil.
	// It aliases the allocation.
	MappedData   []byte
	MappedOffset uint64
}

// BufferWrapper is a VkBuffer.
type BufferWrapper struct {
	Wrapper
	Size uint64
	Binding
}

// ImageWrapper is a VkImage.
type ImageWrapper struct {
	Wrapper
	Size uint64
	Binding
}

// FramebufferWrapper is a VkFramebuffer.
type FramebufferWrapper struct {
	Wrapper
	RenderPass Dependency
}

// PipelineLayoutWrapper is a VkPipelineLayout.
type PipelineLayoutWrapper struct {
	Wrapper
	SetLayouts []Dependency
}

// PipelineWrapper is a VkPipeline.
//
// CreateParameters of a pipeline hold the whole batched creation call, so
// pipelines created together share identical parameters.
type PipelineWrapper struct {
	Wrapper
	ShaderModules []Dependency
	RenderPass    Dependency
	Layout        Dependency
	// LayoutSetLayouts are the descriptor set layouts of Layout, needed to
	// recreate Layout when it has been destroyed.
	LayoutSetLayouts []Dependency
}

// New returns an empty record of the right type for kind.
func New(kind Kind) Object {
	var o Object
	switch kind {
	case Instance:
		o = &InstanceWrapper{}
	case PhysicalDevice:
		o = &PhysicalDeviceWrapper{}
	case Device:
		o = &DeviceWrapper{}
	case Queue:
		o = &QueueWrapper{}
	case DeviceMemory:
		o = &DeviceMemoryWrapper{}
	case Buffer:
		o = &BufferWrapper{}
	case Image:
		o = &ImageWrapper{}
	case Framebuffer:
		o = &FramebufferWrapper{}
	case PipelineLayout:
		o = &PipelineLayoutWrapper{}
	case Pipeline:
		o = &PipelineWrapper{}
	default:
		o = &Wrapper{}
	}
	o.Base().Kind = kind
	return o
}
