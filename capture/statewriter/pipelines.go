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

// pipelineCalls are the calls that create pipelines, in the order they are
// written.
var pipelineCalls = []format.ApiCallID{
	format.VkCreateGraphicsPipelines,
	format.VkCreateComputePipelines,
	format.VkCreateRayTracingPipelinesNV,
}

// writePipelines writes the calls that created the live pipelines.
//
// One call can create many pipelines, and every pipeline holds the
// parameters of the whole call, so each distinct call is written once per
// creation call. Destroyed shader modules, render passes, pipeline layouts
// and descriptor set layouts the pipelines were created with are recreated
// before the first pipeline call and destroyed after the last.
//
// TODO: a batch whose pipelines were only partly destroyed recreates all of
// them, leaking the destroyed ones in the replay.
func (w *Writer) writePipelines(ctx context.Context) {
	batches := map[format.ApiCallID]*parameterSet{}
	for _, call := range pipelineCalls {
		batches[call] = newParameterSet()
	}

	shaders := newTemporaries(wrappers.ShaderModule, format.VkDestroyShaderModule)
	renderPasses := newTemporaries(wrappers.RenderPass, format.VkDestroyRenderPass)
	layouts := newTemporaries(wrappers.PipelineLayout, format.VkDestroyPipelineLayout)
	setLayouts := newTemporaries(wrappers.DescriptorSetLayout, format.VkDestroyDescriptorSetLayout)

	w.table.Visit(wrappers.Pipeline, func(o wrappers.Object) {
		p := o.(*wrappers.PipelineWrapper)
		batch, ok := batches[p.CreateCallID]
		if !ok {
			log.W(ctx, "Skipping %v created by unexpected call %v", p.Base(), p.CreateCallID)
			return
		}
		if !batch.add(p.CreateParameters) {
			w.metrics.deduplicated.Inc()
		}

		for _, dep := range p.ShaderModules {
			w.require(ctx, dep, shaders)
		}
		w.require(ctx, p.RenderPass, renderPasses)
		if w.missing(ctx, p.Layout, layouts) {
			for _, dep := range p.LayoutSetLayouts {
				w.require(ctx, dep, setLayouts)
			}
			w.createTemporary(ctx, wrappers.PipelineLayout, p.Layout)
		}
	})

	for _, call := range pipelineCalls {
		for _, params := range batches[call].list {
			w.writeFunctionCall(ctx, call, params)
		}
	}

	w.destroyTemporaries(ctx, shaders)
	w.destroyTemporaries(ctx, renderPasses)
	w.destroyTemporaries(ctx, layouts)
	w.destroyTemporaries(ctx, setLayouts)
}
