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

// Package encoder serializes API call parameters.
package encoder

import (
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/endian"
)

// PointerAttributes describe an encoded pointer parameter.
type PointerAttributes uint32

const (
	IsNull     PointerAttributes = 0x01
	IsSingle   PointerAttributes = 0x02
	IsArray    PointerAttributes = 0x04
	IsString   PointerAttributes = 0x08
	IsStruct   PointerAttributes = 0x20
	HasAddress PointerAttributes = 0x40
	HasData    PointerAttributes = 0x80
)

// NullStructPointer is the attribute word of a null struct pointer.
const NullStructPointer = IsNull | IsSingle | IsStruct

// Result is an encoded VkResult.
type Result int32

// Success is VK_SUCCESS.
const Success Result = 0

// ParameterEncoder appends encoded parameter values to a MemoryOutputStream.
// The stream is owned by the caller, which resets it once the encoded call
// has been written.
type ParameterEncoder struct {
	out *stream.MemoryOutputStream
	w   binary.Writer
}

// New returns a ParameterEncoder writing to out.
func New(out *stream.MemoryOutputStream) *ParameterEncoder {
	return &ParameterEncoder{out: out, w: endian.Writer(out, format.ByteOrder)}
}

// Stream returns the stream the encoder writes to.
func (e *ParameterEncoder) Stream() *stream.MemoryOutputStream { return e.out }

// EncodeHandleIDValue encodes an object identity.
func (e *ParameterEncoder) EncodeHandleIDValue(id format.HandleID) { e.w.Uint64(uint64(id)) }

// EncodeEnumValue encodes a 32 bit enumerant.
func (e *ParameterEncoder) EncodeEnumValue(v Result) { e.w.Uint32(uint32(v)) }

// EncodeDeviceSizeValue encodes a VkDeviceSize.
func (e *ParameterEncoder) EncodeDeviceSizeValue(v uint64) { e.w.Uint64(v) }

// EncodeUInt32Value encodes a uint32_t.
func (e *ParameterEncoder) EncodeUInt32Value(v uint32) { e.w.Uint32(v) }

// EncodeUInt64Value encodes a uint64_t.
func (e *ParameterEncoder) EncodeUInt64Value(v uint64) { e.w.Uint64(v) }

// EncodeStructPtrNull encodes a null pointer to a structure, such as an
// absent VkAllocationCallbacks.
func (e *ParameterEncoder) EncodeStructPtrNull() { e.w.Uint32(uint32(NullStructPointer)) }

// EncodeHandleIDArray encodes a counted array of object identities.
func (e *ParameterEncoder) EncodeHandleIDArray(ids []format.HandleID) {
	if ids == nil {
		e.w.Uint32(uint32(IsNull | IsArray))
		return
	}
	e.w.Uint32(uint32(IsArray | HasData))
	e.w.Uint64(uint64(len(ids)))
	for _, id := range ids {
		e.w.Uint64(uint64(id))
	}
}

// Error returns the first error hit by the encoder.
func (e *ParameterEncoder) Error() error { return e.w.Error() }
