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

package encoder_test

import (
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/encoder"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

func TestBindMemoryEncoding(t *testing.T) {
	ctx := log.Testing(t)
	out := stream.NewMemoryOutputStream(64)
	e := encoder.New(out)
	e.EncodeHandleIDValue(1)
	e.EncodeHandleIDValue(0x0203)
	e.EncodeDeviceSizeValue(0x40)
	e.EncodeEnumValue(encoder.Success)
	assert.For(ctx, "err").ThatError(e.Error()).Succeeded()
	assert.For(ctx, "bytes").ThatBytes(out.Data()).Equals([]byte{
		1, 0, 0, 0, 0, 0, 0, 0,
		3, 2, 0, 0, 0, 0, 0, 0,
		0x40, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0,
	})
}

func TestNullAllocator(t *testing.T) {
	ctx := log.Testing(t)
	out := stream.NewMemoryOutputStream(8)
	encoder.New(out).EncodeStructPtrNull()
	assert.For(ctx, "bytes").ThatBytes(out.Data()).Equals([]byte{0x23, 0, 0, 0})
}

func TestHandleIDArray(t *testing.T) {
	ctx := log.Testing(t)
	out := stream.NewMemoryOutputStream(8)
	e := encoder.New(out)
	e.EncodeHandleIDArray([]format.HandleID{5})
	e.EncodeHandleIDArray(nil)
	assert.For(ctx, "bytes").ThatBytes(out.Data()).Equals([]byte{
		0x84, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0,
		5, 0, 0, 0, 0, 0, 0, 0,
		0x05, 0, 0, 0,
	})
}
