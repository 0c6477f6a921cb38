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

package statewriter

import (
	"context"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

type blockHeader interface {
	Write(binary.Writer)
}

// compress returns the compressed form of data if it is strictly smaller
// than data, otherwise nil.
func (w *Writer) compress(ctx context.Context, data []byte) []byte {
	if w.compressor == nil {
		return nil
	}
	packed, err := w.compressor.Compress(w.scratch, data)
	if err != nil {
		log.W(ctx, "Compression failed, writing uncompressed block: %v", err)
		return nil
	}
	w.scratch = packed
	if len(packed) > 0 && len(packed) < len(data) {
		return packed
	}
	return nil
}

// writeFunctionCall writes one function call block for call with the
// encoded parameters params.
func (w *Writer) writeFunctionCall(ctx context.Context, call format.ApiCallID, params []byte) {
	if w.err.Failed() {
		return
	}
	if packed := w.compress(ctx, params); packed != nil {
		h := format.NewCompressedFunctionCallHeader(call, w.cfg.ThreadID, uint64(len(packed)), uint64(len(params)))
		w.writeBlock(h.Block, h, packed)
		return
	}
	h := format.NewFunctionCallHeader(call, w.cfg.ThreadID, uint64(len(params)))
	w.writeBlock(h.Block, h, params)
}

// writeEncodedCall writes the call built in the writer's parameter buffer,
// and resets the buffer.
func (w *Writer) writeEncodedCall(ctx context.Context, call format.ApiCallID) {
	if err := w.encoder.Error(); err != nil {
		log.E(ctx, "Failed to encode %v: %v", call, err)
	} else {
		w.writeFunctionCall(ctx, call, w.params.Data())
	}
	w.params.Reset()
}

// writeFillMemory writes a block holding data, the content of memory at
// offset.
func (w *Writer) writeFillMemory(ctx context.Context, memory format.HandleID, offset uint64, data []byte) {
	if w.err.Failed() {
		return
	}
	size := uint64(len(data))
	if packed := w.compress(ctx, data); packed != nil {
		h := format.NewFillMemoryHeader(w.cfg.ThreadID, memory, offset, size, uint64(len(packed)))
		w.writeBlock(h.Block, h, packed)
		return
	}
	h := format.NewFillMemoryHeader(w.cfg.ThreadID, memory, offset, size, size)
	w.writeBlock(h.Block, h, data)
}

func (w *Writer) writeMarker(t format.MarkerType) {
	if w.err.Failed() {
		return
	}
	m := format.NewStateMarker(t, w.frame)
	w.writeBlock(m.Block, m, nil)
}

func (w *Writer) writeBlock(b format.BlockHeader, h blockHeader, data []byte) {
	h.Write(w.hw)
	if len(data) > 0 {
		w.hw.Data(data)
	}
	if err := w.hw.Error(); err != nil {
		w.err.Collect(err)
		return
	}
	w.metrics.blocks.WithLabelValues(b.Type.String()).Inc()
	w.metrics.bytes.Add(float64(format.BlockHeaderSize + b.Size))
}
