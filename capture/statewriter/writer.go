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

// Package statewriter writes the calls that recreate every live object of a
// state table.
//
// The calls are written in an order where every object is created after the
// objects it was created from. Objects that were destroyed after being used
// to create a live object are recreated for the length of the pass that needs
// them and destroyed again at its end.
package statewriter

import (
	"context"
	"time"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/compress"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/encoder"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/state"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/endian"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
	"github.com/pkg/errors"
)

// Config holds the settings of a Writer.
type Config struct {
	// ThreadID is recorded in every block written.
	ThreadID format.ThreadID `yaml:"thread_id"`
	// Compression selects the block compressor.
	Compression format.CompressionType `yaml:"compression"`
	// SnapshotMemory enables capturing the content of device memory.
	SnapshotMemory bool `yaml:"snapshot_memory"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ThreadID:       format.CurrentThreadID(),
		Compression:    format.CompressionNone,
		SnapshotMemory: true,
	}
}

// Writer writes the state of a table to an output stream.
// A Writer must not be used by more than one goroutine at a time.
type Writer struct {
	cfg        Config
	out        stream.OutputStream
	hw         binary.Writer
	tables     *dispatch.Tables
	compressor compress.Compressor
	metrics    *Metrics

	// params holds the calls built by the writer itself. It is reset after
	// each call is written.
	params  *stream.MemoryOutputStream
	encoder *encoder.ParameterEncoder
	// scratch holds compressed payloads between calls.
	scratch []byte

	err   fault.One
	frame uint64
	table *state.Table
}

// New returns a Writer that writes to out, using tables to capture the
// content of device memory. m may be nil.
func New(out stream.OutputStream, tables *dispatch.Tables, cfg Config, m *Metrics) (*Writer, error) {
	c, err := compress.New(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = dispatch.NewTables()
	}
	if m == nil {
		m = NewMetrics()
	}
	params := stream.NewMemoryOutputStream(256)
	return &Writer{
		cfg:        cfg,
		out:        out,
		hw:         endian.Writer(out, format.ByteOrder),
		tables:     tables,
		compressor: c,
		metrics:    m,
		params:     params,
		encoder:    encoder.New(params),
	}, nil
}

// SetFrameNumber sets the frame number recorded in the state markers.
func (w *Writer) SetFrameNumber(frame uint64) { w.frame = frame }

// Metrics returns the metrics of the writer.
func (w *Writer) Metrics() *Metrics { return w.metrics }

// WriteState writes the calls that recreate every object in table, between
// a pair of state markers.
//
// Failures to capture the content of a memory allocation are logged and
// skip that allocation. The only error returned is a failure to write to the
// output stream, after which nothing more is written.
func (w *Writer) WriteState(ctx context.Context, table *state.Table) error {
	ctx = log.Enter(ctx, "WriteState")
	start := time.Now()
	w.table = table
	defer func() { w.table = nil }()

	w.writeMarker(format.BeginMarker)

	// Instance, device and queue creation.
	w.writeStandard(ctx, wrappers.Instance)
	w.writeStandard(ctx, wrappers.PhysicalDevice)
	w.writeStandard(ctx, wrappers.Device)
	w.writeStandard(ctx, wrappers.Queue)

	// Utility objects.
	w.writeStandard(ctx, wrappers.DebugReportCallback)
	w.writeStandard(ctx, wrappers.DebugUtilsMessenger)
	w.writeStandard(ctx, wrappers.ValidationCache)

	// Synchronization primitives.
	w.writeStandard(ctx, wrappers.Semaphore)
	w.writeStandard(ctx, wrappers.Fence)
	w.writeStandard(ctx, wrappers.Event)

	// Presentation objects.
	w.writeStandard(ctx, wrappers.Display)
	w.writeStandard(ctx, wrappers.DisplayMode)
	w.writeStandard(ctx, wrappers.Surface)
	w.writeStandard(ctx, wrappers.Swapchain)

	// Commands.
	w.writeStandard(ctx, wrappers.CommandPool)
	w.writeStandard(ctx, wrappers.CommandBuffer)
	w.writeStandard(ctx, wrappers.ObjectTable)
	w.writeStandard(ctx, wrappers.IndirectCommandsLayout)

	// Queries.
	w.writeStandard(ctx, wrappers.QueryPool)
	w.writeStandard(ctx, wrappers.AccelerationStructure)

	// Memory and resources.
	w.writeStandard(ctx, wrappers.DeviceMemory)
	w.writeBuffers(ctx)
	w.writeStandard(ctx, wrappers.BufferView)
	w.writeImages(ctx)
	w.writeStandard(ctx, wrappers.ImageView)
	w.writeStandard(ctx, wrappers.Sampler)
	w.writeStandard(ctx, wrappers.SamplerYcbcrConversion)
	if w.cfg.SnapshotMemory {
		w.writeResourceMemory(ctx)
	}

	// Render objects.
	w.writeStandard(ctx, wrappers.RenderPass)
	w.writeFramebuffers(ctx)
	w.writeStandard(ctx, wrappers.ShaderModule)
	w.writeStandard(ctx, wrappers.DescriptorSetLayout)
	w.writePipelineLayouts(ctx)
	w.writeStandard(ctx, wrappers.PipelineCache)
	w.writePipelines(ctx)

	// Descriptors.
	w.writeStandard(ctx, wrappers.DescriptorPool)
	w.writeStandard(ctx, wrappers.DescriptorUpdateTemplate)
	w.writeStandard(ctx, wrappers.DescriptorSet)

	w.writeMarker(format.EndMarker)
	if !w.err.Failed() {
		w.err.Collect(w.out.Flush())
	}
	w.metrics.duration.Observe(time.Since(start).Seconds())

	if err := w.err.First(); err != nil {
		return errors.Wrap(err, "Writing state")
	}
	log.D(ctx, "State written in %v", time.Since(start))
	return nil
}

// writeStandard writes the creation call of every object of kind.
// Objects created by the same call share its parameters, so each distinct
// call is only written once.
func (w *Writer) writeStandard(ctx context.Context, kind wrappers.Kind) {
	written := newParameterSet()
	w.table.Visit(kind, func(o wrappers.Object) {
		b := o.Base()
		if b.CreateCallID == 0 {
			log.W(ctx, "No creation call recorded for %v", b)
			return
		}
		if !written.add(b.CreateParameters) {
			w.metrics.deduplicated.Inc()
			return
		}
		w.writeFunctionCall(ctx, b.CreateCallID, b.CreateParameters)
	})
}

// parameterSet is a set of call parameters that keeps insertion order.
type parameterSet struct {
	seen map[string]struct{}
	list [][]byte
}

func newParameterSet() *parameterSet {
	return &parameterSet{seen: map[string]struct{}{}}
}

// add inserts p, returning false if it was already present.
func (s *parameterSet) add(p []byte) bool {
	if _, ok := s.seen[string(p)]; ok {
		return false
	}
	s.seen[string(p)] = struct{}{}
	s.list = append(s.list, p)
	return true
}
