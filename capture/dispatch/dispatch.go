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

// Package dispatch holds the native driver entry points used while writing
// state, grouped into per-instance and per-device tables.
package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/pkg/errors"
)

const (
	// ErrOutOfDeviceMemory is returned when an allocation cannot be served.
	ErrOutOfDeviceMemory = fault.Const("VK_ERROR_OUT_OF_DEVICE_MEMORY")
	// ErrInitializationFailed is returned by a native call that failed for a
	// reason other than memory exhaustion.
	ErrInitializationFailed = fault.Const("VK_ERROR_INITIALIZATION_FAILED")
	// ErrMemoryMapFailed is returned when memory cannot be mapped.
	ErrMemoryMapFailed = fault.Const("VK_ERROR_MEMORY_MAP_FAILED")
)

// Key selects the dispatch table of a dispatchable object. Objects created
// from the same instance or device share a key.
type Key uint64

// Native is a real driver handle.
type Native uint64

// NullNative is the null driver handle.
const NullNative Native = 0

// WholeSize maps or copies to the end of an allocation.
const WholeSize = ^uint64(0)

// NoMemoryType is returned when no memory type matches a request.
const NoMemoryType = ^uint32(0)

// MemoryPropertyFlags is a VkMemoryPropertyFlags bitfield.
type MemoryPropertyFlags uint32

const (
	MemoryDeviceLocal  MemoryPropertyFlags = 0x1
	MemoryHostVisible  MemoryPropertyFlags = 0x2
	MemoryHostCoherent MemoryPropertyFlags = 0x4
	MemoryHostCached   MemoryPropertyFlags = 0x8
)

// Has returns true if all bits of want are set.
func (f MemoryPropertyFlags) Has(want MemoryPropertyFlags) bool { return f&want == want }

var memoryPropertyNames = []struct {
	bit  MemoryPropertyFlags
	name string
}{
	{MemoryDeviceLocal, "DEVICE_LOCAL"},
	{MemoryHostVisible, "HOST_VISIBLE"},
	{MemoryHostCoherent, "HOST_COHERENT"},
	{MemoryHostCached, "HOST_CACHED"},
}

func (f MemoryPropertyFlags) String() string {
	if f == 0 {
		return "0"
	}
	parts := []string{}
	for _, b := range memoryPropertyNames {
		if f&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	if rest := f &^ 0xf; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// MarshalText encodes the flags as their String form.
func (f MemoryPropertyFlags) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText decodes flags written as names or numbers joined by '|',
// such as "HOST_VISIBLE|HOST_COHERENT" or "0x6".
func (f *MemoryPropertyFlags) UnmarshalText(text []byte) error {
	out := MemoryPropertyFlags(0)
next:
	for _, part := range strings.Split(string(text), "|") {
		part = strings.TrimSpace(part)
		for _, b := range memoryPropertyNames {
			if strings.EqualFold(part, b.name) {
				out |= b.bit
				continue next
			}
		}
		v, err := strconv.ParseUint(part, 0, 32)
		if err != nil {
			return errors.Errorf("Invalid memory property flag %q", part)
		}
		out |= MemoryPropertyFlags(v)
	}
	*f = out
	return nil
}

// BufferUsageFlags is a VkBufferUsageFlags bitfield.
type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc BufferUsageFlags = 0x1
	BufferUsageTransferDst BufferUsageFlags = 0x2
)

// MemoryType is one entry of VkPhysicalDeviceMemoryProperties.memoryTypes.
type MemoryType struct {
	PropertyFlags MemoryPropertyFlags `yaml:"flags"`
	HeapIndex     uint32              `yaml:"heap"`
}

// MemoryProperties is a VkPhysicalDeviceMemoryProperties.
type MemoryProperties struct {
	Types []MemoryType
}

// FindType returns the index of the first memory type allowed by typeBits
// that has all of flags, or NoMemoryType.
func FindType(types []MemoryType, typeBits uint32, flags MemoryPropertyFlags) uint32 {
	for i, t := range types {
		if i < 32 && typeBits&(1<<uint(i)) != 0 && t.PropertyFlags.Has(flags) {
			return uint32(i)
		}
	}
	return NoMemoryType
}

// MemoryRequirements is a VkMemoryRequirements.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

// BufferCopy is a VkBufferCopy region.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// InstanceTable holds the instance level entry points.
type InstanceTable interface {
	GetPhysicalDeviceMemoryProperties(physicalDevice Native) MemoryProperties
}

// DeviceTable holds the device level entry points.
type DeviceTable interface {
	GetDeviceQueue(device Native, family, index uint32) Native

	CreateCommandPool(device Native, queueFamily uint32) (Native, error)
	DestroyCommandPool(device, pool Native)
	AllocateCommandBuffer(device, pool Native) (Native, error)
	BeginCommandBuffer(commandBuffer Native) error
	EndCommandBuffer(commandBuffer Native) error
	CmdCopyBuffer(commandBuffer, src, dst Native, regions []BufferCopy)
	QueueSubmit(queue Native, commandBuffers []Native) error
	QueueWaitIdle(queue Native) error

	CreateBuffer(device Native, size uint64, usage BufferUsageFlags) (Native, error)
	DestroyBuffer(device, buffer Native)
	GetBufferMemoryRequirements(device, buffer Native) MemoryRequirements
	BindBufferMemory(device, buffer, memory Native, offset uint64) error

	AllocateMemory(device Native, size uint64, typeIndex uint32) (Native, error)
	FreeMemory(device, memory Native)
	MapMemory(device, memory Native, offset, size uint64) ([]byte, error)
	UnmapMemory(device, memory Native)
	// InvalidateMappedMemoryRange makes device writes to a mapped range of
	// non-coherent memory visible to the host.
	InvalidateMappedMemoryRange(device, memory Native, offset, size uint64) error
}

// Tables maps dispatch keys to dispatch tables.
// Tables is safe for concurrent use.
type Tables struct {
	mu       sync.RWMutex
	instance map[Key]InstanceTable
	device   map[Key]DeviceTable
}

// NewTables returns an empty set of dispatch tables.
func NewTables() *Tables {
	return &Tables{
		instance: map[Key]InstanceTable{},
		device:   map[Key]DeviceTable{},
	}
}

// AddInstance registers the instance table for key.
func (t *Tables) AddInstance(key Key, table InstanceTable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instance[key] = table
}

// AddDevice registers the device table for key.
func (t *Tables) AddDevice(key Key, table DeviceTable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.device[key] = table
}

// RemoveInstance drops the instance table for key.
func (t *Tables) RemoveInstance(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.instance, key)
}

// RemoveDevice drops the device table for key.
func (t *Tables) RemoveDevice(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.device, key)
}

// Instance returns the instance table for key.
func (t *Tables) Instance(key Key) (InstanceTable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	table, ok := t.instance[key]
	return table, ok
}

// Device returns the device table for key.
func (t *Tables) Device(key Key) (DeviceTable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	table, ok := t.device[key]
	return table, ok
}
