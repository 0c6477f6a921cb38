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

	"github.com/AaronHaganAMD/gfxreconstruct/capture/encoder"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
)

// writeBuffers writes every buffer, followed by its memory binding.
func (w *Writer) writeBuffers(ctx context.Context) {
	w.table.Visit(wrappers.Buffer, func(o wrappers.Object) {
		b := o.(*wrappers.BufferWrapper)
		w.writeFunctionCall(ctx, b.CreateCallID, b.CreateParameters)
		if b.Bound() {
			w.writeBind(ctx, format.VkBindBufferMemory, b.HandleID, b.Binding)
		}
	})
}

// writeImages writes every image, followed by its memory binding.
func (w *Writer) writeImages(ctx context.Context) {
	w.table.Visit(wrappers.Image, func(o wrappers.Object) {
		i := o.(*wrappers.ImageWrapper)
		w.writeFunctionCall(ctx, i.CreateCallID, i.CreateParameters)
		if i.Bound() {
			w.writeBind(ctx, format.VkBindImageMemory, i.HandleID, i.Binding)
		}
	})
}

// writeBind writes a bind memory call. The call is recorded as having
// succeeded.
func (w *Writer) writeBind(ctx context.Context, call format.ApiCallID, object format.HandleID, b wrappers.Binding) {
	w.encoder.EncodeHandleIDValue(b.Device.HandleID)
	w.encoder.EncodeHandleIDValue(object)
	w.encoder.EncodeHandleIDValue(b.Memory.HandleID)
	w.encoder.EncodeDeviceSizeValue(b.Offset)
	w.encoder.EncodeEnumValue(encoder.Success)
	w.writeEncodedCall(ctx, call)
}
