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

package format

import "github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"

// Encoded sizes of the fixed headers, in bytes.
const (
	BlockHeaderSize                  = 12
	FunctionCallHeaderSize           = BlockHeaderSize + 4 + 8
	CompressedFunctionCallHeaderSize = FunctionCallHeaderSize + 8
	FillMemoryHeaderSize             = BlockHeaderSize + 4 + 8 + 8 + 8 + 8
	MarkerSize                       = BlockHeaderSize + 4 + 8
)

// BlockHeader starts every block.
// Size counts the bytes that follow the type tag.
type BlockHeader struct {
	Size uint64
	Type BlockType
}

func (h BlockHeader) write(w binary.Writer) {
	w.Uint64(h.Size)
	w.Uint32(uint32(h.Type))
}

// FunctionCallHeader is the header of a (possibly compressed) function call
// block. UncompressedSize is only encoded for compressed blocks.
type FunctionCallHeader struct {
	Block            BlockHeader
	CallID           ApiCallID
	ThreadID         ThreadID
	UncompressedSize uint64
}

// NewFunctionCallHeader returns the header of an uncompressed function call
// block carrying dataSize bytes of parameters.
func NewFunctionCallHeader(call ApiCallID, thread ThreadID, dataSize uint64) FunctionCallHeader {
	return FunctionCallHeader{
		Block:    BlockHeader{Size: FunctionCallHeaderSize - BlockHeaderSize + dataSize, Type: FunctionCallBlock},
		CallID:   call,
		ThreadID: thread,
	}
}

// NewCompressedFunctionCallHeader returns the header of a compressed function
// call block carrying compressedSize bytes that inflate to uncompressedSize.
func NewCompressedFunctionCallHeader(call ApiCallID, thread ThreadID, compressedSize, uncompressedSize uint64) FunctionCallHeader {
	return FunctionCallHeader{
		Block:            BlockHeader{Size: CompressedFunctionCallHeaderSize - BlockHeaderSize + compressedSize, Type: CompressedFunctionCallBlock},
		CallID:           call,
		ThreadID:         thread,
		UncompressedSize: uncompressedSize,
	}
}

// Write encodes the header to w.
func (h FunctionCallHeader) Write(w binary.Writer) {
	h.Block.write(w)
	w.Uint32(uint32(h.CallID))
	w.Uint64(uint64(h.ThreadID))
	if h.Block.Type.Compressed() {
		w.Uint64(h.UncompressedSize)
	}
}

// FillMemoryHeader is the header of a fill memory meta-data block, which
// carries the content of Size bytes of a device memory allocation starting at
// Offset.
type FillMemoryHeader struct {
	Block    BlockHeader
	ThreadID ThreadID
	MemoryID HandleID
	Offset   uint64
	Size     uint64
}

// NewFillMemoryHeader returns the header of a fill memory block carrying
// dataSize encoded bytes for the size bytes of memory at offset.
// The block is marked compressed when dataSize differs from size.
func NewFillMemoryHeader(thread ThreadID, memory HandleID, offset, size, dataSize uint64) FillMemoryHeader {
	t := MetaDataBlock
	if dataSize != size {
		t = CompressedMetaDataBlock
	}
	return FillMemoryHeader{
		Block:    BlockHeader{Size: FillMemoryHeaderSize - BlockHeaderSize + dataSize, Type: t},
		ThreadID: thread,
		MemoryID: memory,
		Offset:   offset,
		Size:     size,
	}
}

// Write encodes the header to w.
func (h FillMemoryHeader) Write(w binary.Writer) {
	h.Block.write(w)
	w.Uint32(uint32(FillMemoryCommand))
	w.Uint64(uint64(h.ThreadID))
	w.Uint64(uint64(h.MemoryID))
	w.Uint64(h.Offset)
	w.Uint64(h.Size)
}

// Marker is a frame or state marker block.
type Marker struct {
	Block       BlockHeader
	Type        MarkerType
	FrameNumber uint64
}

// NewStateMarker returns a state marker of the given type.
func NewStateMarker(t MarkerType, frame uint64) Marker {
	return Marker{
		Block:       BlockHeader{Size: MarkerSize - BlockHeaderSize, Type: StateMarkerBlock},
		Type:        t,
		FrameNumber: frame,
	}
}

// Write encodes the marker to w.
func (m Marker) Write(w binary.Writer) {
	m.Block.write(w)
	w.Uint32(uint32(m.Type))
	w.Uint64(m.FrameNumber)
}
