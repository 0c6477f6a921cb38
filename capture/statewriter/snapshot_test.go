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

package statewriter_test

import (
	"context"
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch/soft"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/state"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/statewriter"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

const (
	dispatchKey  = dispatch.Key(0xd15)
	nativeDevice = dispatch.Native(1)
)

// fixture is a device with tracked objects backed by a software driver.
type fixture struct {
	driver *soft.Device
	tables *dispatch.Tables
	table  *state.Table
	pd     *wrappers.PhysicalDeviceWrapper
	device *wrappers.DeviceWrapper
}

func newFixture() *fixture {
	f := &fixture{
		driver: soft.New(soft.DefaultMemoryTypes()),
		tables: dispatch.NewTables(),
		table:  state.NewTable(),
	}
	f.tables.AddInstance(dispatchKey, f.driver)
	f.tables.AddDevice(dispatchKey, f.driver)

	f.pd = object(wrappers.PhysicalDevice, 1, 1, format.VkEnumeratePhysicalDevices).(*wrappers.PhysicalDeviceWrapper)
	f.pd.DispatchKey = dispatchKey
	f.table.Insert(f.pd)

	f.device = object(wrappers.Device, 1, deviceID, format.VkCreateDevice).(*wrappers.DeviceWrapper)
	f.device.DispatchKey = dispatchKey
	f.device.Native = nativeDevice
	f.device.PhysicalDevice = f.pd
	f.device.QueueFamilies = []uint32{2}
	f.table.Insert(f.device)
	return f
}

// memory allocates size bytes of memory of the given type, filled with a
// counting pattern.
func (f *fixture) memory(ctx context.Context, h format.Handle, id format.HandleID, typeIndex uint32, size int) (*wrappers.DeviceMemoryWrapper, []byte) {
	native, err := f.driver.AllocateMemory(nativeDevice, uint64(size), typeIndex)
	assert.For(ctx, "AllocateMemory").ThatError(err).Succeeded()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i)
	}
	assert.For(ctx, "WriteMemory").ThatError(f.driver.WriteMemory(native, 0, content)).Succeeded()

	m := object(wrappers.DeviceMemory, h, id, format.VkAllocateMemory).(*wrappers.DeviceMemoryWrapper)
	m.Native = native
	m.Device = f.device.Ref()
	m.MemoryTypeIndex = typeIndex
	m.AllocationSize = uint64(size)
	f.table.Insert(m)
	return m, content
}

func (f *fixture) buffer(ctx context.Context, h format.Handle, id format.HandleID, m *wrappers.DeviceMemoryWrapper, offset, size uint64) *wrappers.BufferWrapper {
	native, err := f.driver.CreateBuffer(nativeDevice, size, dispatch.BufferUsageTransferSrc)
	assert.For(ctx, "CreateBuffer").ThatError(err).Succeeded()
	assert.For(ctx, "BindBufferMemory").ThatError(f.driver.BindBufferMemory(nativeDevice, native, m.Native, offset)).Succeeded()

	b := object(wrappers.Buffer, h, id, format.VkCreateBuffer).(*wrappers.BufferWrapper)
	b.Native = native
	b.Size = size
	b.Binding = wrappers.Binding{Device: f.device.Ref(), Memory: m.Ref(), Offset: offset}
	f.table.Insert(b)
	return b
}

func TestSnapshotDeviceLocalBuffers(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	f.pd.MemoryTypes = soft.DefaultMemoryTypes()
	m, content := f.memory(ctx, 1, 5, 0, 256)
	f.buffer(ctx, 1, 6, m, 64, 16)
	f.buffer(ctx, 2, 7, m, 128, 32)
	i := object(wrappers.Image, 1, 8, format.VkCreateImage).(*wrappers.ImageWrapper)
	i.Binding = wrappers.Binding{Device: f.device.Ref(), Memory: m.Ref(), Offset: 192}
	f.table.Insert(i)

	before := f.driver.Live()
	blocks, w := write(ctx, f.table, f.tables, config())

	fill := fills(blocks)
	if !assert.For(ctx, "fills").ThatSlice(fill).IsLength(2) {
		return
	}
	for j, expect := range []struct{ offset, size uint64 }{{64, 16}, {128, 32}} {
		assert.For(ctx, "fill %d memory", j).That(fill[j].MemoryID).Equals(format.HandleID(5))
		assert.For(ctx, "fill %d offset", j).That(fill[j].Offset).Equals(expect.offset)
		assert.For(ctx, "fill %d data", j).ThatBytes(fill[j].Data).Equals(content[expect.offset : expect.offset+expect.size])
	}
	assert.For(ctx, "driver objects").That(f.driver.Live()).Equals(before)
	assert.For(ctx, "ok").That(counter(w, "gfxr_state_writer_memory_snapshots_total", "ok")).Equals(2.0)
	assert.For(ctx, "skipped").That(counter(w, "gfxr_state_writer_memory_snapshots_total", "skipped")).Equals(1.0)

	// Memory content follows the resources bound to it.
	for j, b := range blocks {
		if b == fill[0] {
			prev := functionCalls(blocks[:j])
			assert.For(ctx, "call before fill").That(prev[len(prev)-1].CallID).Equals(format.VkBindImageMemory)
		}
	}
}

func TestSnapshotBufferCalls(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	m, _ := f.memory(ctx, 1, 5, 0, 64)
	f.buffer(ctx, 1, 6, m, 0, 64)

	start := len(f.driver.Calls())
	write(ctx, f.table, f.tables, config())
	assert.For(ctx, "driver calls").ThatSlice(f.driver.Calls()[start:]).Equals([]string{
		// Memory types were never recorded, so they are queried.
		"GetPhysicalDeviceMemoryProperties",
		"CreateCommandPool",
		"AllocateCommandBuffer",
		"CreateBuffer",
		"GetBufferMemoryRequirements",
		"GetPhysicalDeviceMemoryProperties",
		"AllocateMemory",
		"BindBufferMemory",
		"BeginCommandBuffer",
		"CmdCopyBuffer",
		"EndCommandBuffer",
		"GetDeviceQueue",
		"QueueSubmit",
		"QueueWaitIdle",
		"MapMemory",
		"UnmapMemory",
		"DestroyBuffer",
		"FreeMemory",
		"DestroyCommandPool",
	})
}

func TestSnapshotNonCoherentStaging(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	// The recorded types offer no coherent host memory.
	f.pd.MemoryTypes = []dispatch.MemoryType{
		{PropertyFlags: dispatch.MemoryDeviceLocal},
		{PropertyFlags: dispatch.MemoryHostVisible},
	}
	m, content := f.memory(ctx, 1, 5, 0, 64)
	f.buffer(ctx, 1, 6, m, 16, 32)

	start := len(f.driver.Calls())
	blocks, _ := write(ctx, f.table, f.tables, config())
	fill := fills(blocks)
	if assert.For(ctx, "fills").ThatSlice(fill).IsLength(1) {
		assert.For(ctx, "data").ThatBytes(fill[0].Data).Equals(content[16:48])
	}
	called := f.driver.Calls()[start:]
	mapped := -1
	for i, call := range called {
		if call == "MapMemory" {
			mapped = i
		}
	}
	if assert.For(ctx, "mapped").ThatInteger(mapped).IsAtLeast(0) {
		assert.For(ctx, "after map").ThatString(called[mapped+1]).Equals("InvalidateMappedMemoryRanges")
	}

	f.driver.Fail("InvalidateMappedMemoryRanges", dispatch.ErrOutOfDeviceMemory)
	before := f.driver.Live()
	recorder := &log.Recorder{}
	blocks, w := write(log.PutHandler(ctx, recorder), f.table, f.tables, config())
	assert.For(ctx, "fills after failure").ThatSlice(fills(blocks)).IsEmpty()
	assert.For(ctx, "failed").That(counter(w, "gfxr_state_writer_memory_snapshots_total", "failed")).Equals(1.0)
	assert.For(ctx, "driver objects").That(f.driver.Live()).Equals(before)
}

func TestSnapshotHostVisibleMemory(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	f.pd.MemoryTypes = soft.DefaultMemoryTypes()
	m, content := f.memory(ctx, 1, 5, 1, 48)
	f.buffer(ctx, 1, 6, m, 16, 16)

	before := f.driver.Live()
	blocks, _ := write(ctx, f.table, f.tables, config())
	fill := fills(blocks)
	if assert.For(ctx, "fills").ThatSlice(fill).IsLength(1) {
		assert.For(ctx, "offset").That(fill[0].Offset).Equals(uint64(0))
		assert.For(ctx, "data").ThatBytes(fill[0].Data).Equals(content)
	}
	assert.For(ctx, "driver objects").That(f.driver.Live()).Equals(before)

	// The allocation is unmapped again.
	_, err := f.driver.MapMemory(nativeDevice, m.Native, 0, dispatch.WholeSize)
	assert.For(ctx, "remap").ThatError(err).Succeeded()
}

func TestSnapshotApplicationMappedMemory(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	m, content := f.memory(ctx, 1, 5, 1, 64)
	data, err := f.driver.MapMemory(nativeDevice, m.Native, 16, 32)
	assert.For(ctx, "application map").ThatError(err).Succeeded()
	m.MappedData, m.MappedOffset = data, 16
	// Writes through the mapping are captured.
	data[0] = 0xee
	content[16] = 0xee

	start := len(f.driver.Calls())
	blocks, w := write(ctx, f.table, f.tables, config())
	fill := fills(blocks)
	if assert.For(ctx, "fills").ThatSlice(fill).IsLength(1) {
		assert.For(ctx, "offset").That(fill[0].Offset).Equals(uint64(16))
		assert.For(ctx, "data").ThatBytes(fill[0].Data).Equals(content[16:48])
	}
	assert.For(ctx, "ok").That(counter(w, "gfxr_state_writer_memory_snapshots_total", "ok")).Equals(1.0)
	maps := 0
	for _, call := range f.driver.Calls()[start:] {
		if call == "MapMemory" || call == "UnmapMemory" {
			maps++
		}
	}
	assert.For(ctx, "map calls").ThatInteger(maps).Equals(0)

	// The application mapping is left in place.
	_, err = f.driver.MapMemory(nativeDevice, m.Native, 0, dispatch.WholeSize)
	assert.For(ctx, "remap").ThatError(err).HasCause(dispatch.ErrMemoryMapFailed)
}

func TestSnapshotDisabled(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	m, _ := f.memory(ctx, 1, 5, 1, 48)
	f.buffer(ctx, 1, 6, m, 0, 16)

	start := len(f.driver.Calls())
	cfg := config()
	cfg.SnapshotMemory = false
	blocks, _ := write(ctx, f.table, f.tables, cfg)
	assert.For(ctx, "fills").ThatSlice(fills(blocks)).IsEmpty()
	assert.For(ctx, "driver calls").ThatSlice(f.driver.Calls()[start:]).IsEmpty()
}

func TestSnapshotFailures(t *testing.T) {
	ctx := log.Testing(t)
	for _, entry := range []string{
		"CreateCommandPool",
		"AllocateCommandBuffer",
		"CreateBuffer",
		"AllocateMemory",
		"BindBufferMemory",
		"QueueSubmit",
		"MapMemory",
	} {
		ctx := log.Enter(ctx, entry)
		f := newFixture()
		f.pd.MemoryTypes = soft.DefaultMemoryTypes()
		m, _ := f.memory(ctx, 1, 5, 0, 64)
		f.buffer(ctx, 1, 6, m, 0, 32)
		f.buffer(ctx, 2, 7, m, 32, 32)
		f.table.Insert(object(wrappers.RenderPass, 1, 9, format.VkCreateRenderPass))

		before := f.driver.Live()
		f.driver.Fail(entry, dispatch.ErrOutOfDeviceMemory)
		recorder := &log.Recorder{}
		blocks, w := write(log.PutHandler(ctx, recorder), f.table, f.tables, config())

		assert.For(ctx, "fills").ThatSlice(fills(blocks)).IsEmpty()
		assert.For(ctx, "errors logged").ThatInteger(recorder.Count(log.Error)).Equals(2)
		for _, msg := range recorder.Messages {
			if msg.Severity == log.Error {
				assert.For(ctx, "error scope").ThatString(msg.Text).Contains("writeResourceMemory: Failed to")
			}
		}
		assert.For(ctx, "failed").That(counter(w, "gfxr_state_writer_memory_snapshots_total", "failed")).Equals(2.0)
		assert.For(ctx, "driver objects").That(f.driver.Live()).Equals(before)
		cs := calls(blocks)
		assert.For(ctx, "later passes written").That(cs[len(cs)-1].ID).Equals(format.VkCreateRenderPass)
		assert.For(ctx, "end marker").That(blocks[len(blocks)-1].Marker).Equals(format.EndMarker)
	}
}

func TestSnapshotUntrackedInstance(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	f.tables.RemoveInstance(dispatchKey)
	m, _ := f.memory(ctx, 1, 5, 0, 64)
	f.buffer(ctx, 1, 6, m, 0, 16)

	recorder := &log.Recorder{}
	rctx := log.PutHandler(ctx, recorder)
	w, err := statewriter.New(nil, f.tables, config(), nil)
	assert.For(ctx, "New").ThatError(err).Succeeded()
	flags := w.MemoryProperties(rctx, f.device, m)
	assert.For(ctx, "flags").That(flags).Equals(dispatch.MemoryPropertyFlags(0))
	index := w.FindMemoryTypeIndex(rctx, f.device, ^uint32(0), dispatch.MemoryHostVisible)
	assert.For(ctx, "index").That(index).Equals(dispatch.NoMemoryType)
	assert.For(ctx, "errors").ThatInteger(recorder.Count(log.Error)).Equals(2)
	if assert.For(ctx, "messages").ThatSlice(recorder.Messages).IsNotEmpty() {
		assert.For(ctx, "message").ThatString(recorder.Messages[0].Text).Contains("untracked device handle")
	}

	// Without memory types the staging buffer has nowhere to live.
	recorder = &log.Recorder{}
	blocks, _ := write(log.PutHandler(ctx, recorder), f.table, f.tables, config())
	assert.For(ctx, "fills").ThatSlice(fills(blocks)).IsEmpty()
	assert.For(ctx, "errors logged").ThatInteger(recorder.Count(log.Error)).IsAtLeast(1)
}

func TestFindMemoryTypeIndex(t *testing.T) {
	ctx := log.Testing(t)
	f := newFixture()
	f.pd.MemoryTypes = []dispatch.MemoryType{
		{PropertyFlags: dispatch.MemoryDeviceLocal},
		{PropertyFlags: dispatch.MemoryHostVisible},
		{PropertyFlags: dispatch.MemoryHostVisible | dispatch.MemoryHostCoherent},
	}
	w, err := statewriter.New(nil, f.tables, config(), nil)
	assert.For(ctx, "New").ThatError(err).Succeeded()
	for _, test := range []struct {
		bits   uint32
		flags  dispatch.MemoryPropertyFlags
		expect uint32
	}{
		{0x7, dispatch.MemoryHostVisible, 1},
		{0x4, dispatch.MemoryHostVisible, 2},
		{0x7, dispatch.MemoryHostCoherent, 2},
		{0x1, dispatch.MemoryHostVisible, dispatch.NoMemoryType},
		{0x7, dispatch.MemoryHostCached, dispatch.NoMemoryType},
	} {
		assert.For(ctx, "bits 0x%x flags %v", test.bits, test.flags).
			That(w.FindMemoryTypeIndex(ctx, f.device, test.bits, test.flags)).Equals(test.expect)
	}
}
