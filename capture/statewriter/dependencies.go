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
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

// temporaries are the destroyed objects of one kind recreated during a
// single write routine, in the order they were created.
type temporaries struct {
	kind    wrappers.Kind
	destroy format.ApiCallID
	seen    map[format.HandleID]struct{}
	list    []wrappers.Dependency
}

func newTemporaries(kind wrappers.Kind, destroy format.ApiCallID) *temporaries {
	return &temporaries{kind: kind, destroy: destroy, seen: map[format.HandleID]struct{}{}}
}

// first marks dep as handled, returning false if it already was.
func (t *temporaries) first(dep wrappers.Dependency) bool {
	if _, ok := t.seen[dep.HandleID]; ok {
		return false
	}
	t.seen[dep.HandleID] = struct{}{}
	return true
}

// deviceParameterSize is the size of the device id that leads the creation
// parameters of every device child.
const deviceParameterSize = 8

// live returns true if dep refers to an object of kind in the table.
// A handle reused by a newer object does not count.
func (w *Writer) live(kind wrappers.Kind, dep wrappers.Dependency) bool {
	return w.table.Resolve(kind, dep.Ref) != nil
}

// missing returns true if dep is not null, does not refer to a live object
// of temps' kind, and has not been handled in temps yet. A dependency whose
// creation parameters do not start with a device cannot be destroyed again,
// so it is logged and never recreated. Recreated dependencies are recorded
// in temps.
func (w *Writer) missing(ctx context.Context, dep wrappers.Dependency, temps *temporaries) bool {
	if dep.IsNull() || w.live(temps.kind, dep) || !temps.first(dep) {
		return false
	}
	if len(dep.CreateParameters) < deviceParameterSize {
		log.E(ctx, "Cannot recreate destroyed %v %d: creation parameters hold no device", temps.kind, dep.HandleID)
		return false
	}
	temps.list = append(temps.list, dep)
	return true
}

// require recreates dep from its creation call if it is not live and was
// not already recreated in temps.
func (w *Writer) require(ctx context.Context, dep wrappers.Dependency, temps *temporaries) {
	if w.missing(ctx, dep, temps) {
		w.createTemporary(ctx, temps.kind, dep)
	}
}

func (w *Writer) createTemporary(ctx context.Context, kind wrappers.Kind, dep wrappers.Dependency) {
	log.D(ctx, "Recreating destroyed %v %d", kind, dep.HandleID)
	w.metrics.temporaries.WithLabelValues(kind.String()).Inc()
	w.writeFunctionCall(ctx, dep.CreateCallID, dep.CreateParameters)
}

// destroyTemporaries writes the destroy call of every object recreated in
// temps, in creation order.
func (w *Writer) destroyTemporaries(ctx context.Context, temps *temporaries) {
	for _, dep := range temps.list {
		w.destroyTemporary(ctx, temps.destroy, dep)
	}
}

// destroyTemporary writes a destroy call for a device child. The device is
// always the first parameter of the child's creation call.
func (w *Writer) destroyTemporary(ctx context.Context, call format.ApiCallID, dep wrappers.Dependency) {
	device := format.HandleID(format.ByteOrder.Uint64(dep.CreateParameters))
	w.encoder.EncodeHandleIDValue(device)
	w.encoder.EncodeHandleIDValue(dep.HandleID)
	w.encoder.EncodeStructPtrNull() // allocator
	w.writeEncodedCall(ctx, call)
}

// writeFramebuffers writes every framebuffer, recreating the render passes
// they were created with that have since been destroyed.
func (w *Writer) writeFramebuffers(ctx context.Context) {
	renderPasses := newTemporaries(wrappers.RenderPass, format.VkDestroyRenderPass)
	w.table.Visit(wrappers.Framebuffer, func(o wrappers.Object) {
		fb := o.(*wrappers.FramebufferWrapper)
		w.require(ctx, fb.RenderPass, renderPasses)
		w.writeFunctionCall(ctx, fb.CreateCallID, fb.CreateParameters)
	})
	w.destroyTemporaries(ctx, renderPasses)
}

// writePipelineLayouts writes every pipeline layout, recreating destroyed
// descriptor set layouts.
//
// The descriptor set layouts recreated here are not shared with
// writePipelines, which recreates its own.
func (w *Writer) writePipelineLayouts(ctx context.Context) {
	setLayouts := newTemporaries(wrappers.DescriptorSetLayout, format.VkDestroyDescriptorSetLayout)
	w.table.Visit(wrappers.PipelineLayout, func(o wrappers.Object) {
		layout := o.(*wrappers.PipelineLayoutWrapper)
		for _, dep := range layout.SetLayouts {
			w.require(ctx, dep, setLayouts)
		}
		w.writeFunctionCall(ctx, layout.CreateCallID, layout.CreateParameters)
	})
	w.destroyTemporaries(ctx, setLayouts)
}
