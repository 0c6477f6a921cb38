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

import (
	"io"

	"github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/endian"
	"github.com/pkg/errors"
)

// MaxBlockSize is the largest block size, and the largest decoded payload,
// a BlockReader accepts.
const MaxBlockSize = 1 << 32

// readChunk bounds the allocation made ahead of the bytes actually read.
const readChunk = 1 << 16

// Decompressor inflates compressed block payloads.
type Decompressor interface {
	// Decompress inflates src, which decodes to exactly size bytes, reusing dst.
	Decompress(dst, src []byte, size int) ([]byte, error)
}

// Block is a decoded block.
// Only the fields relevant to Header.Type are set.
type Block struct {
	Header BlockHeader

	// Function call blocks.
	CallID   ApiCallID
	ThreadID ThreadID

	// Marker blocks.
	Marker      MarkerType
	FrameNumber uint64

	// Meta-data blocks.
	MetaType MetaDataType
	MemoryID HandleID
	Offset   uint64

	// UncompressedSize is the size of the decoded payload.
	UncompressedSize uint64
	// Payload is the payload as stored in the file.
	Payload []byte
	// Data is the decoded payload. It is nil for compressed blocks read
	// without a Decompressor.
	Data []byte
}

// BlockReader decodes blocks from a stream.
type BlockReader struct {
	r binary.Reader
	// Decompressor, if set, is used to fill Block.Data for compressed blocks.
	Decompressor Decompressor
}

// NewBlockReader returns a BlockReader reading from r.
func NewBlockReader(r io.Reader) *BlockReader {
	return &BlockReader{r: endian.Reader(r, ByteOrder)}
}

// FileHeader decodes the file header. It must be called before the first
// call to Next when reading a whole file.
func (b *BlockReader) FileHeader() (FileHeader, error) {
	return ReadFileHeader(b.r)
}

// Next decodes the next block. It returns io.EOF when the stream ends on a
// block boundary. Unknown block types are skipped and reported with an error
// whose cause is ErrUnknownBlock; reading may continue after such an error.
// Blocks larger than MaxBlockSize fail with ErrBlockTooLarge.
func (b *BlockReader) Next() (*Block, error) {
	r := b.r
	blk := &Block{}
	blk.Header.Size = r.Uint64()
	if err := r.Error(); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "Reading block header")
	}
	blk.Header.Type = BlockType(r.Uint32())

	fixed := uint64(0)
	switch blk.Header.Type {
	case FunctionCallBlock, CompressedFunctionCallBlock:
		blk.CallID = ApiCallID(r.Uint32())
		blk.ThreadID = ThreadID(r.Uint64())
		fixed = FunctionCallHeaderSize - BlockHeaderSize
		if blk.Header.Type.Compressed() {
			blk.UncompressedSize = r.Uint64()
			fixed += 8
		}
	case StateMarkerBlock, FrameMarkerBlock:
		blk.Marker = MarkerType(r.Uint32())
		blk.FrameNumber = r.Uint64()
		fixed = MarkerSize - BlockHeaderSize
	case MetaDataBlock, CompressedMetaDataBlock:
		blk.MetaType = MetaDataType(r.Uint32())
		fixed = 4
		if blk.MetaType == FillMemoryCommand {
			blk.ThreadID = ThreadID(r.Uint64())
			blk.MemoryID = HandleID(r.Uint64())
			blk.Offset = r.Uint64()
			blk.UncompressedSize = r.Uint64()
			fixed = FillMemoryHeaderSize - BlockHeaderSize
		}
	default:
		binary.ConsumeBytes(r, blk.Header.Size)
		if err := r.Error(); err != nil {
			return nil, errors.Wrap(err, "Skipping unknown block")
		}
		return nil, errors.Wrapf(ErrUnknownBlock, "type 0x%08x, size %d", uint32(blk.Header.Type), blk.Header.Size)
	}
	if blk.Header.Size < fixed {
		return nil, errors.Wrapf(ErrBadBlockSize, "%v block of size %d", blk.Header.Type, blk.Header.Size)
	}

	if blk.Header.Size > MaxBlockSize {
		return nil, errors.Wrapf(ErrBlockTooLarge, "%v block of size %d", blk.Header.Type, blk.Header.Size)
	}
	if blk.UncompressedSize > MaxBlockSize {
		return nil, errors.Wrapf(ErrBlockTooLarge, "%v block inflating to %d bytes", blk.Header.Type, blk.UncompressedSize)
	}

	blk.Payload = readPayload(r, blk.Header.Size-fixed)
	if err := r.Error(); err != nil {
		return nil, errors.Wrapf(err, "Reading %v block", blk.Header.Type)
	}

	switch {
	case !blk.Header.Type.Compressed():
		blk.Data = blk.Payload
		if blk.UncompressedSize == 0 {
			blk.UncompressedSize = uint64(len(blk.Payload))
		}
	case b.Decompressor != nil:
		data, err := b.Decompressor.Decompress(nil, blk.Payload, int(blk.UncompressedSize))
		if err != nil {
			return nil, errors.Wrapf(err, "Decompressing %v block", blk.Header.Type)
		}
		blk.Data = data
	}
	return blk, nil
}

// readPayload reads size bytes from r, growing the result as the bytes
// arrive so a truncated stream fails before a large allocation.
func readPayload(r binary.Reader, size uint64) []byte {
	if size <= readChunk {
		p := make([]byte, size)
		r.Data(p)
		return p
	}
	p := make([]byte, 0, readChunk)
	for uint64(len(p)) < size && r.Error() == nil {
		n := size - uint64(len(p))
		if n > readChunk {
			n = readChunk
		}
		start := len(p)
		p = append(p, make([]byte, n)...)
		r.Data(p[start:])
	}
	return p
}
