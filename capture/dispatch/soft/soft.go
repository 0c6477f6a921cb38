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

// Package soft implements the dispatch tables with an in-process device
// whose memory is plain host memory.
//
// Command buffers only record buffer copies, which run when the command
// buffer is submitted. Any entry point that returns an error can be made to
// fail with Fail.
package soft

import (
	"sync"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/pkg/errors"
)

const (
	firstNative = dispatch.Native(0x1000)
	alignment   = 16
)

type memory struct {
	data      []byte
	typeIndex uint32
	mapped    bool
}

type buffer struct {
	size   uint64
	usage  dispatch.BufferUsageFlags
	memory dispatch.Native
	offset uint64
	bound  bool
}

type copyCmd struct {
	src, dst dispatch.Native
	regions  []dispatch.BufferCopy
}

type commandBuffer struct {
	pool      dispatch.Native
	recording bool
	copies    []copyCmd
}

// Counts holds the number of live objects of a Device.
type Counts struct {
	Memories       int
	Buffers        int
	CommandPools   int
	CommandBuffers int
}

// Device is a software implementation of dispatch.InstanceTable and
// dispatch.DeviceTable. It is safe for concurrent use.
type Device struct {
	mu             sync.Mutex
	types          []dispatch.MemoryType
	next           dispatch.Native
	memories       map[dispatch.Native]*memory
	buffers        map[dispatch.Native]*buffer
	pools          map[dispatch.Native]uint32
	commandBuffers map[dispatch.Native]*commandBuffer
	failures       map[string]error
	calls          []string
}

var (
	_ dispatch.InstanceTable = (*Device)(nil)
	_ dispatch.DeviceTable   = (*Device)(nil)
)

// New returns a device exposing the given memory types.
func New(types []dispatch.MemoryType) *Device {
	return &Device{
		types:          append([]dispatch.MemoryType(nil), types...),
		next:           firstNative,
		memories:       map[dispatch.Native]*memory{},
		buffers:        map[dispatch.Native]*buffer{},
		pools:          map[dispatch.Native]uint32{},
		commandBuffers: map[dispatch.Native]*commandBuffer{},
		failures:       map[string]error{},
	}
}

// DefaultMemoryTypes is a device local type followed by a host visible type.
func DefaultMemoryTypes() []dispatch.MemoryType {
	return []dispatch.MemoryType{
		{PropertyFlags: dispatch.MemoryDeviceLocal, HeapIndex: 0},
		{PropertyFlags: dispatch.MemoryHostVisible | dispatch.MemoryHostCoherent, HeapIndex: 1},
	}
}

// Fail makes every later call to the named entry point return err.
// A nil err clears the failure.
func (d *Device) Fail(entry string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, entry)
		return
	}
	d.failures[entry] = err
}

// Calls returns the names of the entry points called so far, in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Live returns the number of live objects.
func (d *Device) Live() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{
		Memories:       len(d.memories),
		Buffers:        len(d.buffers),
		CommandPools:   len(d.pools),
		CommandBuffers: len(d.commandBuffers),
	}
}

// Memory returns a copy of the content of an allocation.
func (d *Device) Memory(mem dispatch.Native) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), m.data...), true
}

// WriteMemory stores data in an allocation at offset, as a shader or a
// transfer would.
func (d *Device) WriteMemory(mem dispatch.Native, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		return errors.Wrapf(dispatch.ErrInitializationFailed, "unknown memory 0x%x", uint64(mem))
	}
	if offset+uint64(len(data)) > uint64(len(m.data)) {
		return errors.Errorf("write of %d bytes at %d overflows allocation of %d bytes",
			len(data), offset, len(m.data))
	}
	copy(m.data[offset:], data)
	return nil
}

// enter logs a call and returns its injected failure.
// d.mu must be held.
func (d *Device) enter(entry string) error {
	d.calls = append(d.calls, entry)
	if err, ok := d.failures[entry]; ok {
		return errors.Wrap(err, entry)
	}
	return nil
}

func (d *Device) alloc() dispatch.Native {
	n := d.next
	d.next++
	return n
}

// GetPhysicalDeviceMemoryProperties implements dispatch.InstanceTable.
func (d *Device) GetPhysicalDeviceMemoryProperties(dispatch.Native) dispatch.MemoryProperties {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("GetPhysicalDeviceMemoryProperties")
	return dispatch.MemoryProperties{Types: append([]dispatch.MemoryType(nil), d.types...)}
}

// GetDeviceQueue implements dispatch.DeviceTable.
func (d *Device) GetDeviceQueue(device dispatch.Native, family, index uint32) dispatch.Native {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("GetDeviceQueue")
	return dispatch.Native(0x100 + family*0x10 + index)
}

// CreateCommandPool implements dispatch.DeviceTable.
func (d *Device) CreateCommandPool(device dispatch.Native, family uint32) (dispatch.Native, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("CreateCommandPool"); err != nil {
		return dispatch.NullNative, err
	}
	pool := d.alloc()
	d.pools[pool] = family
	return pool, nil
}

// DestroyCommandPool implements dispatch.DeviceTable. It frees the command
// buffers allocated from the pool.
func (d *Device) DestroyCommandPool(device, pool dispatch.Native) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("DestroyCommandPool")
	delete(d.pools, pool)
	for n, cb := range d.commandBuffers {
		if cb.pool == pool {
			delete(d.commandBuffers, n)
		}
	}
}

// AllocateCommandBuffer implements dispatch.DeviceTable.
func (d *Device) AllocateCommandBuffer(device, pool dispatch.Native) (dispatch.Native, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("AllocateCommandBuffer"); err != nil {
		return dispatch.NullNative, err
	}
	if _, ok := d.pools[pool]; !ok {
		return dispatch.NullNative, errors.Wrapf(dispatch.ErrInitializationFailed, "unknown pool 0x%x", uint64(pool))
	}
	cb := d.alloc()
	d.commandBuffers[cb] = &commandBuffer{pool: pool}
	return cb, nil
}

// BeginCommandBuffer implements dispatch.DeviceTable.
func (d *Device) BeginCommandBuffer(commandBuffer dispatch.Native) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("BeginCommandBuffer"); err != nil {
		return err
	}
	cb, ok := d.commandBuffers[commandBuffer]
	if !ok {
		return errors.Wrapf(dispatch.ErrInitializationFailed, "unknown command buffer 0x%x", uint64(commandBuffer))
	}
	cb.recording, cb.copies = true, nil
	return nil
}

// EndCommandBuffer implements dispatch.DeviceTable.
func (d *Device) EndCommandBuffer(commandBuffer dispatch.Native) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("EndCommandBuffer"); err != nil {
		return err
	}
	cb, ok := d.commandBuffers[commandBuffer]
	if !ok || !cb.recording {
		return errors.Wrapf(dispatch.ErrInitializationFailed, "command buffer 0x%x is not recording", uint64(commandBuffer))
	}
	cb.recording = false
	return nil
}

// CmdCopyBuffer implements dispatch.DeviceTable.
func (d *Device) CmdCopyBuffer(commandBuffer, src, dst dispatch.Native, regions []dispatch.BufferCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("CmdCopyBuffer")
	if cb, ok := d.commandBuffers[commandBuffer]; ok && cb.recording {
		regions = append([]dispatch.BufferCopy(nil), regions...)
		cb.copies = append(cb.copies, copyCmd{src: src, dst: dst, regions: regions})
	}
}

// QueueSubmit implements dispatch.DeviceTable. The submitted work runs
// before QueueSubmit returns.
func (d *Device) QueueSubmit(queue dispatch.Native, commandBuffers []dispatch.Native) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("QueueSubmit"); err != nil {
		return err
	}
	for _, n := range commandBuffers {
		cb, ok := d.commandBuffers[n]
		if !ok || cb.recording {
			return errors.Wrapf(dispatch.ErrInitializationFailed, "command buffer 0x%x is not executable", uint64(n))
		}
		for _, c := range cb.copies {
			if err := d.copy(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Device) copy(c copyCmd) error {
	src, err := d.boundMemory(c.src)
	if err != nil {
		return err
	}
	dst, err := d.boundMemory(c.dst)
	if err != nil {
		return err
	}
	for _, r := range c.regions {
		s := d.buffers[c.src].offset + r.SrcOffset
		t := d.buffers[c.dst].offset + r.DstOffset
		if s+r.Size > uint64(len(src.data)) || t+r.Size > uint64(len(dst.data)) {
			return errors.Errorf("copy region %+v out of range", r)
		}
		copy(dst.data[t:t+r.Size], src.data[s:s+r.Size])
	}
	return nil
}

func (d *Device) boundMemory(b dispatch.Native) (*memory, error) {
	buf, ok := d.buffers[b]
	if !ok || !buf.bound {
		return nil, errors.Wrapf(dispatch.ErrInitializationFailed, "buffer 0x%x has no memory", uint64(b))
	}
	m, ok := d.memories[buf.memory]
	if !ok {
		return nil, errors.Wrapf(dispatch.ErrInitializationFailed, "buffer 0x%x memory was freed", uint64(b))
	}
	return m, nil
}

// QueueWaitIdle implements dispatch.DeviceTable.
func (d *Device) QueueWaitIdle(queue dispatch.Native) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enter("QueueWaitIdle")
}

// CreateBuffer implements dispatch.DeviceTable.
func (d *Device) CreateBuffer(device dispatch.Native, size uint64, usage dispatch.BufferUsageFlags) (dispatch.Native, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("CreateBuffer"); err != nil {
		return dispatch.NullNative, err
	}
	b := d.alloc()
	d.buffers[b] = &buffer{size: size, usage: usage}
	return b, nil
}

// DestroyBuffer implements dispatch.DeviceTable.
func (d *Device) DestroyBuffer(device, b dispatch.Native) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("DestroyBuffer")
	delete(d.buffers, b)
}

// GetBufferMemoryRequirements implements dispatch.DeviceTable.
func (d *Device) GetBufferMemoryRequirements(device, b dispatch.Native) dispatch.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("GetBufferMemoryRequirements")
	var size uint64
	if buf, ok := d.buffers[b]; ok {
		size = (buf.size + alignment - 1) &^ (alignment - 1)
	}
	return dispatch.MemoryRequirements{
		Size:      size,
		Alignment: alignment,
		TypeBits:  uint32(1)<<uint(len(d.types)) - 1,
	}
}

// BindBufferMemory implements dispatch.DeviceTable.
func (d *Device) BindBufferMemory(device, b, mem dispatch.Native, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("BindBufferMemory"); err != nil {
		return err
	}
	buf, ok := d.buffers[b]
	if !ok {
		return errors.Wrapf(dispatch.ErrInitializationFailed, "unknown buffer 0x%x", uint64(b))
	}
	m, ok := d.memories[mem]
	if !ok {
		return errors.Wrapf(dispatch.ErrInitializationFailed, "unknown memory 0x%x", uint64(mem))
	}
	if offset+buf.size > uint64(len(m.data)) {
		return errors.Wrapf(dispatch.ErrInitializationFailed, "binding of %d bytes at %d overflows allocation", buf.size, offset)
	}
	buf.memory, buf.offset, buf.bound = mem, offset, true
	return nil
}

// AllocateMemory implements dispatch.DeviceTable.
func (d *Device) AllocateMemory(device dispatch.Native, size uint64, typeIndex uint32) (dispatch.Native, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("AllocateMemory"); err != nil {
		return dispatch.NullNative, err
	}
	if int(typeIndex) >= len(d.types) {
		return dispatch.NullNative, errors.Wrapf(dispatch.ErrOutOfDeviceMemory, "no memory type %d", typeIndex)
	}
	m := d.alloc()
	d.memories[m] = &memory{data: make([]byte, size), typeIndex: typeIndex}
	return m, nil
}

// FreeMemory implements dispatch.DeviceTable.
func (d *Device) FreeMemory(device, mem dispatch.Native) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("FreeMemory")
	delete(d.memories, mem)
}

// MapMemory implements dispatch.DeviceTable. The returned slice aliases the
// allocation until UnmapMemory.
func (d *Device) MapMemory(device, mem dispatch.Native, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("MapMemory"); err != nil {
		return nil, err
	}
	m, ok := d.memories[mem]
	switch {
	case !ok:
		return nil, errors.Wrapf(dispatch.ErrMemoryMapFailed, "unknown memory 0x%x", uint64(mem))
	case m.mapped:
		return nil, errors.Wrapf(dispatch.ErrMemoryMapFailed, "memory 0x%x is already mapped", uint64(mem))
	case !d.types[m.typeIndex].PropertyFlags.Has(dispatch.MemoryHostVisible):
		return nil, errors.Wrapf(dispatch.ErrMemoryMapFailed, "memory 0x%x is not host visible", uint64(mem))
	}
	if offset > uint64(len(m.data)) {
		return nil, errors.Wrapf(dispatch.ErrMemoryMapFailed, "offset %d out of bounds", offset)
	}
	if size == dispatch.WholeSize {
		size = uint64(len(m.data)) - offset
	}
	if offset+size > uint64(len(m.data)) {
		return nil, errors.Wrapf(dispatch.ErrMemoryMapFailed, "range %d+%d out of bounds", offset, size)
	}
	m.mapped = true
	return m.data[offset : offset+size : offset+size], nil
}

// UnmapMemory implements dispatch.DeviceTable.
func (d *Device) UnmapMemory(device, mem dispatch.Native) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enter("UnmapMemory")
	if m, ok := d.memories[mem]; ok {
		m.mapped = false
	}
}

// InvalidateMappedMemoryRange implements dispatch.DeviceTable.
func (d *Device) InvalidateMappedMemoryRange(device, mem dispatch.Native, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("InvalidateMappedMemoryRanges"); err != nil {
		return err
	}
	m, ok := d.memories[mem]
	switch {
	case !ok:
		return errors.Wrapf(dispatch.ErrInitializationFailed, "unknown memory 0x%x", uint64(mem))
	case !m.mapped:
		return errors.Wrapf(dispatch.ErrInitializationFailed, "memory 0x%x is not mapped", uint64(mem))
	case size != dispatch.WholeSize && offset+size > uint64(len(m.data)):
		return errors.Errorf("range %d+%d out of bounds", offset, size)
	}
	return nil
}
