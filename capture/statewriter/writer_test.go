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
	"bytes"
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/compress"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/state"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/statewriter"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

func TestStandardOrder(t *testing.T) {
	ctx := log.Testing(t)
	table := state.NewTable()
	// Inserted in reverse so the written order can only come from the kinds.
	table.Insert(object(wrappers.DescriptorSet, 1, 9, format.VkAllocateDescriptorSets))
	table.Insert(object(wrappers.Fence, 1, 8, format.VkCreateFence))
	table.Insert(object(wrappers.Semaphore, 1, 7, format.VkCreateSemaphore))
	q1 := object(wrappers.Queue, 1, 5, format.VkGetDeviceQueue)
	q2 := object(wrappers.Queue, 2, 6, format.VkGetDeviceQueue)
	q2.Base().CreateParameters = q1.Base().CreateParameters
	table.Insert(q2)
	table.Insert(q1)
	table.Insert(object(wrappers.Device, 1, deviceID, format.VkCreateDevice))
	table.Insert(object(wrappers.Instance, 1, 1, format.VkCreateInstance))
	// Objects without a recorded creation call are skipped.
	table.Insert(object(wrappers.Event, 1, 10, 0))

	out := stream.NewMemoryOutputStream(1024)
	w, err := statewriter.New(out, nil, config(), nil)
	assert.For(ctx, "New").ThatError(err).Succeeded()
	w.SetFrameNumber(9)
	assert.For(ctx, "WriteState").ThatError(w.WriteState(ctx, table)).Succeeded()
	blocks := decode(ctx, out.Data())

	assert.For(ctx, "calls").ThatString(callString(calls(blocks))).Equals(
		"vkCreateInstance(1) vkCreateDevice(2) vkGetDeviceQueue(5) vkCreateSemaphore(7) vkCreateFence(8) vkAllocateDescriptorSets(9)")

	if !assert.For(ctx, "blocks").ThatSlice(blocks).IsLength(8) {
		return
	}
	first, last := blocks[0], blocks[len(blocks)-1]
	assert.For(ctx, "begin type").That(first.Header.Type).Equals(format.StateMarkerBlock)
	assert.For(ctx, "begin marker").That(first.Marker).Equals(format.BeginMarker)
	assert.For(ctx, "begin frame").That(first.FrameNumber).Equals(uint64(9))
	assert.For(ctx, "end marker").That(last.Marker).Equals(format.EndMarker)
	assert.For(ctx, "end frame").That(last.FrameNumber).Equals(uint64(9))
	for _, b := range blocks[1 : len(blocks)-1] {
		assert.For(ctx, "thread of %v", b.CallID).That(b.ThreadID).Equals(testThread)
	}
	assert.For(ctx, "duplicates").That(counter(w, "gfxr_state_writer_duplicate_create_calls_total", "")).Equals(1.0)
	assert.For(ctx, "function call blocks").That(counter(w, "gfxr_state_writer_blocks_total", "FunctionCall")).Equals(6.0)
}

func TestEmptyTable(t *testing.T) {
	ctx := log.Testing(t)
	blocks, _ := write(ctx, state.NewTable(), nil, config())
	if assert.For(ctx, "blocks").ThatSlice(blocks).IsLength(2) {
		assert.For(ctx, "begin").That(blocks[0].Marker).Equals(format.BeginMarker)
		assert.For(ctx, "end").That(blocks[1].Marker).Equals(format.EndMarker)
	}
}

func TestFramebufferRecreatesDestroyedRenderPass(t *testing.T) {
	ctx := log.Testing(t)
	table := state.NewTable()
	// The render pass handle 1 was recycled: id 10 was destroyed, id 20 is
	// the live object that reuses the handle.
	live := object(wrappers.RenderPass, 1, 20, format.VkCreateRenderPass)
	table.Insert(live)
	destroyed := dependency(1, 10, format.VkCreateRenderPass)

	for i, id := range []format.HandleID{30, 31} {
		fb := object(wrappers.Framebuffer, format.Handle(i+1), id, format.VkCreateFramebuffer).(*wrappers.FramebufferWrapper)
		fb.RenderPass = destroyed
		table.Insert(fb)
	}
	fb := object(wrappers.Framebuffer, 3, 32, format.VkCreateFramebuffer).(*wrappers.FramebufferWrapper)
	fb.RenderPass = live.Base().Dependency()
	table.Insert(fb)
	// A framebuffer without a render pass needs nothing recreated.
	table.Insert(object(wrappers.Framebuffer, 4, 33, format.VkCreateFramebuffer))

	blocks, w := write(ctx, table, nil, config())
	cs := calls(blocks)
	assert.For(ctx, "calls").ThatString(callString(cs)).Equals(
		"vkCreateRenderPass(20) vkCreateRenderPass(10) vkCreateFramebuffer(30) vkCreateFramebuffer(31) " +
			"vkCreateFramebuffer(32) vkCreateFramebuffer(33) vkDestroyRenderPass(10)")

	fns := functionCalls(blocks)
	destroy := fns[len(fns)-1]
	expect := append(params(10), 0x23, 0, 0, 0)
	assert.For(ctx, "destroy parameters").ThatBytes(destroy.Data).Equals(expect)
	assert.For(ctx, "temporaries").That(counter(w, "gfxr_state_writer_temporary_objects_total", "VkRenderPass")).Equals(1.0)
}

func TestDependencyWithoutDeviceIsNotRecreated(t *testing.T) {
	ctx := log.Testing(t)
	table := state.NewTable()
	broken := dependency(1, 10, format.VkCreateRenderPass)
	broken.CreateParameters = []byte{1, 2, 3}
	recreated := dependency(2, 11, format.VkCreateRenderPass)
	for i, dep := range []wrappers.Dependency{broken, broken, recreated} {
		fb := object(wrappers.Framebuffer, format.Handle(i+1), format.HandleID(30+i), format.VkCreateFramebuffer).(*wrappers.FramebufferWrapper)
		fb.RenderPass = dep
		table.Insert(fb)
	}

	recorder := &log.Recorder{}
	blocks, w := write(log.PutHandler(ctx, recorder), table, nil, config())
	assert.For(ctx, "calls").ThatString(callString(calls(blocks))).Equals(
		"vkCreateFramebuffer(30) vkCreateFramebuffer(31) vkCreateRenderPass(11) vkCreateFramebuffer(32) vkDestroyRenderPass(11)")
	assert.For(ctx, "errors logged").ThatInteger(recorder.Count(log.Error)).Equals(1)
	assert.For(ctx, "temporaries").That(counter(w, "gfxr_state_writer_temporary_objects_total", "VkRenderPass")).Equals(1.0)
}

func TestPipelines(t *testing.T) {
	ctx := log.Testing(t)
	table := state.NewTable()

	table.Insert(object(wrappers.DescriptorSetLayout, 1, 40, format.VkCreateDescriptorSetLayout))
	setLayout := dependency(2, 41, format.VkCreateDescriptorSetLayout)
	layout := object(wrappers.PipelineLayout, 1, 50, format.VkCreatePipelineLayout).(*wrappers.PipelineLayoutWrapper)
	layout.SetLayouts = []wrappers.Dependency{setLayout}
	table.Insert(layout)

	shared := params(60, 0xaa)
	pipeline := func(h format.Handle, id format.HandleID, call format.ApiCallID, p []byte) *wrappers.PipelineWrapper {
		o := object(wrappers.Pipeline, h, id, call).(*wrappers.PipelineWrapper)
		o.CreateParameters = p
		table.Insert(o)
		return o
	}
	for i, id := range []format.HandleID{60, 61, 62} {
		p := pipeline(format.Handle(i+1), id, format.VkCreateGraphicsPipelines, shared)
		p.ShaderModules = []wrappers.Dependency{dependency(1, 70, format.VkCreateShaderModule)}
		p.RenderPass = dependency(1, 80, format.VkCreateRenderPass)
		p.Layout = dependency(2, 51, format.VkCreatePipelineLayout)
		p.LayoutSetLayouts = []wrappers.Dependency{setLayout}
	}
	compute := pipeline(4, 63, format.VkCreateComputePipelines, shared)
	compute.Layout = layout.Base().Dependency()
	pipeline(5, 64, format.VkCreateRayTracingPipelinesNV, params(64))
	// Pipelines from unknown calls are skipped.
	pipeline(6, 65, format.VkCreateFramebuffer, params(65))

	blocks, w := write(ctx, table, nil, config())
	assert.For(ctx, "calls").ThatString(callString(calls(blocks))).Equals(
		"vkCreateDescriptorSetLayout(40) " +
			"vkCreateDescriptorSetLayout(41) vkCreatePipelineLayout(50) vkDestroyDescriptorSetLayout(41) " +
			"vkCreateShaderModule(70) vkCreateRenderPass(80) vkCreateDescriptorSetLayout(41) vkCreatePipelineLayout(51) " +
			"vkCreateGraphicsPipelines(60) vkCreateComputePipelines(60) vkCreateRayTracingPipelinesNV(64) " +
			"vkDestroyShaderModule(70) vkDestroyRenderPass(80) vkDestroyPipelineLayout(51) vkDestroyDescriptorSetLayout(41)")

	for _, test := range []struct {
		kind   wrappers.Kind
		expect float64
	}{
		{wrappers.DescriptorSetLayout, 2},
		{wrappers.PipelineLayout, 1},
		{wrappers.ShaderModule, 1},
		{wrappers.RenderPass, 1},
	} {
		assert.For(ctx, "temporary %v", test.kind).
			That(counter(w, "gfxr_state_writer_temporary_objects_total", test.kind.String())).Equals(test.expect)
	}
	assert.For(ctx, "duplicates").That(counter(w, "gfxr_state_writer_duplicate_create_calls_total", "")).Equals(2.0)
}

func TestBindAfterCreate(t *testing.T) {
	ctx := log.Testing(t)
	table := state.NewTable()
	device := wrappers.Ref{Handle: 1, HandleID: deviceID}
	memory := object(wrappers.DeviceMemory, 1, 5, format.VkAllocateMemory)
	table.Insert(memory)

	b := object(wrappers.Buffer, 1, 6, format.VkCreateBuffer).(*wrappers.BufferWrapper)
	b.Binding = wrappers.Binding{Device: device, Memory: memory.Base().Ref(), Offset: 64}
	table.Insert(b)
	table.Insert(object(wrappers.Buffer, 2, 8, format.VkCreateBuffer))
	i := object(wrappers.Image, 1, 7, format.VkCreateImage).(*wrappers.ImageWrapper)
	i.Binding = wrappers.Binding{Device: device, Memory: memory.Base().Ref(), Offset: 128}
	table.Insert(i)

	cfg := config()
	cfg.SnapshotMemory = false
	blocks, _ := write(ctx, table, nil, cfg)
	assert.For(ctx, "calls").ThatString(callString(calls(blocks))).Equals(
		"vkAllocateMemory(5) vkCreateBuffer(6) vkBindBufferMemory(6) vkCreateBuffer(8) vkCreateImage(7) vkBindImageMemory(7)")

	fns := functionCalls(blocks)
	if !assert.For(ctx, "function calls").ThatSlice(fns).IsLength(6) {
		return
	}
	expect := &bytes.Buffer{}
	expect.Write(params(6))
	expect.Write([]byte{5, 0, 0, 0, 0, 0, 0, 0})  // memory
	expect.Write([]byte{64, 0, 0, 0, 0, 0, 0, 0}) // offset
	expect.Write([]byte{0, 0, 0, 0})              // VK_SUCCESS
	assert.For(ctx, "bind parameters").ThatBytes(fns[2].Data).Equals(expect.Bytes())
}

func TestCompression(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name string
		c    compress.Compressor
	}{
		{"zstd", compress.Zstd{}},
		{"s2", compress.S2{}},
		{"zlib", &compress.Zlib{}},
	} {
		ctx := log.Enter(ctx, test.name)
		table := state.NewTable()
		large := object(wrappers.Semaphore, 1, 1, format.VkCreateSemaphore)
		large.Base().CreateParameters = params(1, make([]byte, 4096)...)
		table.Insert(large)
		table.Insert(object(wrappers.Fence, 1, 2, format.VkCreateFence))

		cfg := config()
		cfg.Compression = test.c.Type()
		out := stream.NewMemoryOutputStream(1024)
		w, err := statewriter.New(out, nil, cfg, nil)
		assert.For(ctx, "New").ThatError(err).Succeeded()
		assert.For(ctx, "WriteState").ThatError(w.WriteState(ctx, table)).Succeeded()

		r := format.NewBlockReader(bytes.NewReader(out.Data()))
		r.Decompressor = test.c
		var fns []*format.Block
		for {
			b, err := r.Next()
			if err != nil {
				break
			}
			if b.Header.Type.Base() == format.FunctionCallBlock {
				fns = append(fns, b)
			}
		}
		if !assert.For(ctx, "function calls").ThatSlice(fns).IsLength(2) {
			continue
		}
		assert.For(ctx, "large type").That(fns[0].Header.Type).Equals(format.CompressedFunctionCallBlock)
		assert.For(ctx, "large size").That(fns[0].UncompressedSize).Equals(uint64(len(large.Base().CreateParameters)))
		assert.For(ctx, "large data").ThatBytes(fns[0].Data).Equals(large.Base().CreateParameters)
		assert.For(ctx, "small type").That(fns[1].Header.Type).Equals(format.FunctionCallBlock)
		assert.For(ctx, "small data").ThatBytes(fns[1].Data).Equals(params(2))
	}
}

func TestCompressedFillMemory(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name string
		c    compress.Compressor
	}{
		{"zstd", compress.Zstd{}},
		{"s2", compress.S2{}},
		{"zlib", &compress.Zlib{}},
	} {
		ctx := log.Enter(ctx, test.name)
		f := newFixture()
		_, content := f.memory(ctx, 1, 5, 1, 4096)

		cfg := config()
		cfg.Compression = test.c.Type()
		out := stream.NewMemoryOutputStream(1024)
		w, err := statewriter.New(out, f.tables, cfg, nil)
		assert.For(ctx, "New").ThatError(err).Succeeded()
		assert.For(ctx, "WriteState").ThatError(w.WriteState(ctx, f.table)).Succeeded()

		r := format.NewBlockReader(bytes.NewReader(out.Data()))
		r.Decompressor = test.c
		var blocks []*format.Block
		for {
			b, err := r.Next()
			if err != nil {
				break
			}
			blocks = append(blocks, b)
		}
		fill := fills(blocks)
		if !assert.For(ctx, "fills").ThatSlice(fill).IsLength(1) {
			continue
		}
		assert.For(ctx, "type").That(fill[0].Header.Type).Equals(format.CompressedMetaDataBlock)
		assert.For(ctx, "memory").That(fill[0].MemoryID).Equals(format.HandleID(5))
		assert.For(ctx, "offset").That(fill[0].Offset).Equals(uint64(0))
		assert.For(ctx, "uncompressed size").That(fill[0].UncompressedSize).Equals(uint64(4096))
		assert.For(ctx, "packed").ThatInteger(len(fill[0].Payload)).IsAtMost(len(content) - 1)
		assert.For(ctx, "data").ThatBytes(fill[0].Data).Equals(content)
	}
}

func TestUnsupportedCompression(t *testing.T) {
	ctx := log.Testing(t)
	cfg := config()
	cfg.Compression = format.CompressionType(99)
	_, err := statewriter.New(stream.NewMemoryOutputStream(0), nil, cfg, nil)
	assert.For(ctx, "New").ThatError(err).HasCause(compress.ErrUnsupported)
}

const errDiskFull = fault.Const("disk full")

// failingStream accepts limit bytes, then fails every write.
type failingStream struct {
	limit   int
	written int
	failed  bool
	after   int
	flushed bool
}

func (s *failingStream) Write(p []byte) (int, error) {
	if s.failed {
		s.after++
		return 0, errDiskFull
	}
	if s.written+len(p) > s.limit {
		s.failed = true
		return 0, errDiskFull
	}
	s.written += len(p)
	return len(p), nil
}

func (s *failingStream) Flush() error {
	s.flushed = true
	return nil
}

func TestOutputFailureIsSticky(t *testing.T) {
	ctx := log.Testing(t)
	table := state.NewTable()
	for i := 1; i <= 100; i++ {
		table.Insert(object(wrappers.Semaphore, format.Handle(i), format.HandleID(i), format.VkCreateSemaphore))
	}
	out := &failingStream{limit: 100}
	w, err := statewriter.New(out, nil, config(), nil)
	assert.For(ctx, "New").ThatError(err).Succeeded()

	err = w.WriteState(ctx, table)
	assert.For(ctx, "WriteState").ThatError(err).HasCause(errDiskFull)
	assert.For(ctx, "message").ThatString(err.Error()).HasPrefix("Writing state")
	assert.For(ctx, "writes after failure").ThatInteger(out.after).Equals(0)
	assert.For(ctx, "flushed").ThatBoolean(out.flushed).IsFalse()
	assert.For(ctx, "bytes").ThatInteger(out.written).IsAtMost(100)
}

func functionCalls(blocks []*format.Block) []*format.Block {
	var out []*format.Block
	for _, b := range blocks {
		if b.Header.Type.Base() == format.FunctionCallBlock {
			out = append(out, b)
		}
	}
	return out
}
