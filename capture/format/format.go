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

// Package format describes the binary layout of a capture file.
//
// A capture file is a FileHeader followed by a sequence of blocks. Every block
// starts with a BlockHeader holding the size of the block (excluding the
// header itself) and the block type. All values are little-endian.
package format

import (
	"fmt"

	"github.com/AaronHaganAMD/gfxreconstruct/core/data/endian"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
)

// ByteOrder is the byte order of every value in a capture file.
const ByteOrder = endian.Little

const (
	// ErrBadMagic is returned when a file does not start with the capture fourcc.
	ErrBadMagic = fault.Const("Not a capture file")
	// ErrUnknownBlock is returned when a block type is not recognised.
	ErrUnknownBlock = fault.Const("Unknown block type")
	// ErrBadBlockSize is returned when a block size is smaller than its fixed fields.
	ErrBadBlockSize = fault.Const("Block size too small for block type")
	// ErrBlockTooLarge is returned when a block, or its decoded payload, is
	// larger than MaxBlockSize.
	ErrBlockTooLarge = fault.Const("Block size exceeds the maximum")
)

// HandleID is the stable identity of a captured API object.
// It is assigned at creation and never reused.
type HandleID uint64

// NullHandleID is the identity of the null handle.
const NullHandleID HandleID = 0

// Handle is the wrapped handle value given to the application.
// Handle values are recycled after an object is destroyed, so a Handle only
// identifies an object together with its HandleID.
type Handle uint64

// NullHandle is the null wrapped handle.
const NullHandle Handle = 0

// ThreadID identifies the thread that made an API call.
type ThreadID uint64

// BlockType is the type tag of a block.
type BlockType uint32

// CompressedBlockBit is set on the type of blocks holding compressed data.
const CompressedBlockBit BlockType = 0x80000000

const (
	UnknownBlock      BlockType = 0
	FrameMarkerBlock  BlockType = 1
	StateMarkerBlock  BlockType = 2
	MetaDataBlock     BlockType = 3
	FunctionCallBlock BlockType = 4

	CompressedMetaDataBlock     = CompressedBlockBit | MetaDataBlock
	CompressedFunctionCallBlock = CompressedBlockBit | FunctionCallBlock
)

// Compressed returns true if the block payload is compressed.
func (t BlockType) Compressed() bool { return t&CompressedBlockBit != 0 }

// Base returns the block type with the compression bit cleared.
func (t BlockType) Base() BlockType { return t &^ CompressedBlockBit }

func (t BlockType) String() string {
	var name string
	switch t.Base() {
	case FrameMarkerBlock:
		name = "FrameMarker"
	case StateMarkerBlock:
		name = "StateMarker"
	case MetaDataBlock:
		name = "MetaData"
	case FunctionCallBlock:
		name = "FunctionCall"
	default:
		return fmt.Sprintf("BlockType<0x%x>", uint32(t))
	}
	if t.Compressed() {
		return "Compressed" + name
	}
	return name
}

// MarkerType distinguishes the begin and end marker of a pair.
type MarkerType uint32

const (
	UnknownMarker MarkerType = 0
	BeginMarker   MarkerType = 1
	EndMarker     MarkerType = 2
)

func (m MarkerType) String() string {
	switch m {
	case BeginMarker:
		return "Begin"
	case EndMarker:
		return "End"
	default:
		return fmt.Sprintf("Marker<%d>", uint32(m))
	}
}

// MetaDataType is the type of a meta-data block.
type MetaDataType uint32

const (
	UnknownMetaData       MetaDataType = 0
	DisplayMessageCommand MetaDataType = 1
	FillMemoryCommand     MetaDataType = 2
)

func (m MetaDataType) String() string {
	switch m {
	case DisplayMessageCommand:
		return "DisplayMessage"
	case FillMemoryCommand:
		return "FillMemory"
	default:
		return fmt.Sprintf("MetaData<%d>", uint32(m))
	}
}

// CompressionType identifies the block compression algorithm of a file.
type CompressionType uint32

const (
	CompressionNone CompressionType = 0
	CompressionZlib CompressionType = 2
	CompressionZstd CompressionType = 3
	CompressionS2   CompressionType = 4
)

var compressionNames = map[CompressionType]string{
	CompressionNone: "none",
	CompressionZlib: "zlib",
	CompressionZstd: "zstd",
	CompressionS2:   "s2",
}

func (c CompressionType) String() string {
	if n, ok := compressionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Compression<%d>", uint32(c))
}

// ParseCompressionType returns the compression type with the given name.
func ParseCompressionType(name string) (CompressionType, error) {
	for t, n := range compressionNames {
		if n == name {
			return t, nil
		}
	}
	return CompressionNone, fmt.Errorf("Unknown compression type %q", name)
}

// MarshalText encodes the compression type as its name.
func (c CompressionType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a compression type name.
func (c *CompressionType) UnmarshalText(text []byte) error {
	t, err := ParseCompressionType(string(text))
	if err != nil {
		return err
	}
	*c = t
	return nil
}
