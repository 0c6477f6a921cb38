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

package wrappers

import "fmt"

// Kind is the API object type of a wrapper.
type Kind int

const (
	UnknownKind Kind = iota
	Instance
	PhysicalDevice
	Device
	Queue
	CommandBuffer
	DebugReportCallback
	DebugUtilsMessenger
	ValidationCache
	Semaphore
	Fence
	Event
	Display
	DisplayMode
	Surface
	Swapchain
	CommandPool
	ObjectTable
	IndirectCommandsLayout
	QueryPool
	AccelerationStructure
	DeviceMemory
	Buffer
	BufferView
	Image
	ImageView
	Sampler
	SamplerYcbcrConversion
	RenderPass
	Framebuffer
	ShaderModule
	DescriptorSetLayout
	PipelineLayout
	PipelineCache
	Pipeline
	DescriptorPool
	DescriptorUpdateTemplate
	DescriptorSet

	// KindCount is the number of kinds, including UnknownKind.
	KindCount
)

var kindNames = [KindCount]string{
	UnknownKind:              "Unknown",
	Instance:                 "VkInstance",
	PhysicalDevice:           "VkPhysicalDevice",
	Device:                   "VkDevice",
	Queue:                    "VkQueue",
	CommandBuffer:            "VkCommandBuffer",
	DebugReportCallback:      "VkDebugReportCallbackEXT",
	DebugUtilsMessenger:      "VkDebugUtilsMessengerEXT",
	ValidationCache:          "VkValidationCacheEXT",
	Semaphore:                "VkSemaphore",
	Fence:                    "VkFence",
	Event:                    "VkEvent",
	Display:                  "VkDisplayKHR",
	DisplayMode:              "VkDisplayModeKHR",
	Surface:                  "VkSurfaceKHR",
	Swapchain:                "VkSwapchainKHR",
	CommandPool:              "VkCommandPool",
	ObjectTable:              "VkObjectTableNVX",
	IndirectCommandsLayout:   "VkIndirectCommandsLayoutNVX",
	QueryPool:                "VkQueryPool",
	AccelerationStructure:    "VkAccelerationStructureNV",
	DeviceMemory:             "VkDeviceMemory",
	Buffer:                   "VkBuffer",
	BufferView:               "VkBufferView",
	Image:                    "VkImage",
	ImageView:                "VkImageView",
	Sampler:                  "VkSampler",
	SamplerYcbcrConversion:   "VkSamplerYcbcrConversion",
	RenderPass:               "VkRenderPass",
	Framebuffer:              "VkFramebuffer",
	ShaderModule:             "VkShaderModule",
	DescriptorSetLayout:      "VkDescriptorSetLayout",
	PipelineLayout:           "VkPipelineLayout",
	PipelineCache:            "VkPipelineCache",
	Pipeline:                 "VkPipeline",
	DescriptorPool:           "VkDescriptorPool",
	DescriptorUpdateTemplate: "VkDescriptorUpdateTemplate",
	DescriptorSet:            "VkDescriptorSet",
}

func (k Kind) String() string {
	if k > UnknownKind && k < KindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind<%d>", int(k))
}

// ParseKind returns the kind with the given type name, such as "VkBuffer".
func ParseKind(name string) (Kind, bool) {
	for k := Instance; k < KindCount; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return UnknownKind, false
}

// Dispatchable returns true for kinds whose handles carry a dispatch table.
func (k Kind) Dispatchable() bool {
	switch k {
	case Instance, PhysicalDevice, Device, Queue, CommandBuffer:
		return true
	default:
		return false
	}
}
