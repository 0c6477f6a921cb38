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
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"
	"github.com/pkg/errors"
)

// FourCC is the magic value at the start of every capture file ("GFXR").
const FourCC uint32 = 'G' | 'F'<<8 | 'X'<<16 | 'R'<<24

// Current file format version.
const (
	MajorVersion uint32 = 0
	MinorVersion uint32 = 1
)

// FileOption is the key of a file header option.
type FileOption uint32

const (
	// OptionCompressionType holds the CompressionType used for blocks.
	OptionCompressionType FileOption = 1
)

// FileHeader starts every capture file.
type FileHeader struct {
	MajorVersion uint32
	MinorVersion uint32
	Compression  CompressionType
}

// NewFileHeader returns a header of the current version.
func NewFileHeader(c CompressionType) FileHeader {
	return FileHeader{MajorVersion: MajorVersion, MinorVersion: MinorVersion, Compression: c}
}

// Write encodes the header to w.
func (h FileHeader) Write(w binary.Writer) {
	w.Uint32(FourCC)
	w.Uint32(h.MajorVersion)
	w.Uint32(h.MinorVersion)
	w.Uint32(1)
	w.Uint32(uint32(OptionCompressionType))
	w.Uint32(uint32(h.Compression))
}

// ReadFileHeader decodes a file header from r.
// Unknown options are skipped.
func ReadFileHeader(r binary.Reader) (FileHeader, error) {
	h := FileHeader{}
	if magic := r.Uint32(); r.Error() == nil && magic != FourCC {
		return h, errors.Wrapf(ErrBadMagic, "fourcc 0x%08x", magic)
	}
	h.MajorVersion = r.Uint32()
	h.MinorVersion = r.Uint32()
	count := r.Uint32()
	for i := uint32(0); i < count && r.Error() == nil; i++ {
		key, value := FileOption(r.Uint32()), r.Uint32()
		if key == OptionCompressionType {
			h.Compression = CompressionType(value)
		}
	}
	if err := r.Error(); err != nil {
		return h, errors.Wrap(err, "Reading file header")
	}
	return h, nil
}
