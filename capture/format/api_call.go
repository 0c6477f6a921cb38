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

import "fmt"

// ApiFamily is the API an ApiCallID belongs to. It is the upper 16 bits of
// the id.
type ApiFamily uint16

// ApiFamilyVulkan is the family of every Vulkan call.
const ApiFamilyVulkan ApiFamily = 1

// ApiCallID identifies the API function a function call block encodes.
type ApiCallID uint32

// MakeApiCallID packs family and call index into an ApiCallID.
func MakeApiCallID(family ApiFamily, index uint16) ApiCallID {
	return ApiCallID(uint32(family)<<16 | uint32(index))
}

// Family returns the API family of the call.
func (c ApiCallID) Family() ApiFamily { return ApiFamily(c >> 16) }

const vulkanCallBase = ApiCallID(uint32(ApiFamilyVulkan)<<16 | 0x1000)

// Vulkan calls that can appear in a state snapshot.
const (
	VkCreateInstance ApiCallID = vulkanCallBase + iota
	VkEnumeratePhysicalDevices
	VkGetPhysicalDeviceMemoryProperties
	VkCreateDevice
	VkGetDeviceQueue
	VkCreateDebugReportCallbackEXT
	VkCreateDebugUtilsMessengerEXT
	VkCreateValidationCacheEXT
	VkCreateSemaphore
	VkCreateFence
	VkCreateEvent
	VkGetPhysicalDeviceDisplayPropertiesKHR
	VkCreateDisplayModeKHR
	VkCreateXlibSurfaceKHR
	VkCreateSwapchainKHR
	VkCreateCommandPool
	VkAllocateCommandBuffers
	VkCreateObjectTableNVX
	VkCreateIndirectCommandsLayoutNVX
	VkCreateQueryPool
	VkCreateAccelerationStructureNV
	VkAllocateMemory
	VkCreateBuffer
	VkBindBufferMemory
	VkCreateBufferView
	VkCreateImage
	VkBindImageMemory
	VkCreateImageView
	VkCreateSampler
	VkCreateSamplerYcbcrConversion
	VkCreateRenderPass
	VkCreateFramebuffer
	VkCreateShaderModule
	VkCreateDescriptorSetLayout
	VkCreatePipelineLayout
	VkCreatePipelineCache
	VkCreateGraphicsPipelines
	VkCreateComputePipelines
	VkCreateRayTracingPipelinesNV
	VkCreateDescriptorPool
	VkCreateDescriptorUpdateTemplate
	VkAllocateDescriptorSets
	VkDestroyRenderPass
	VkDestroyShaderModule
	VkDestroyDescriptorSetLayout
	VkDestroyPipelineLayout
)

var apiCallNames = map[ApiCallID]string{
	VkCreateInstance:                        "vkCreateInstance",
	VkEnumeratePhysicalDevices:              "vkEnumeratePhysicalDevices",
	VkGetPhysicalDeviceMemoryProperties:     "vkGetPhysicalDeviceMemoryProperties",
	VkCreateDevice:                          "vkCreateDevice",
	VkGetDeviceQueue:                        "vkGetDeviceQueue",
	VkCreateDebugReportCallbackEXT:          "vkCreateDebugReportCallbackEXT",
	VkCreateDebugUtilsMessengerEXT:          "vkCreateDebugUtilsMessengerEXT",
	VkCreateValidationCacheEXT:              "vkCreateValidationCacheEXT",
	VkCreateSemaphore:                       "vkCreateSemaphore",
	VkCreateFence:                           "vkCreateFence",
	VkCreateEvent:                           "vkCreateEvent",
	VkGetPhysicalDeviceDisplayPropertiesKHR: "vkGetPhysicalDeviceDisplayPropertiesKHR",
	VkCreateDisplayModeKHR:                  "vkCreateDisplayModeKHR",
	VkCreateXlibSurfaceKHR:                  "vkCreateXlibSurfaceKHR",
	VkCreateSwapchainKHR:                    "vkCreateSwapchainKHR",
	VkCreateCommandPool:                     "vkCreateCommandPool",
	VkAllocateCommandBuffers:                "vkAllocateCommandBuffers",
	VkCreateObjectTableNVX:                  "vkCreateObjectTableNVX",
	VkCreateIndirectCommandsLayoutNVX:       "vkCreateIndirectCommandsLayoutNVX",
	VkCreateQueryPool:                       "vkCreateQueryPool",
	VkCreateAccelerationStructureNV:         "vkCreateAccelerationStructureNV",
	VkAllocateMemory:                        "vkAllocateMemory",
	VkCreateBuffer:                          "vkCreateBuffer",
	VkBindBufferMemory:                      "vkBindBufferMemory",
	VkCreateBufferView:                      "vkCreateBufferView",
	VkCreateImage:                           "vkCreateImage",
	VkBindImageMemory:                       "vkBindImageMemory",
	VkCreateImageView:                       "vkCreateImageView",
	VkCreateSampler:                         "vkCreateSampler",
	VkCreateSamplerYcbcrConversion:          "vkCreateSamplerYcbcrConversion",
	VkCreateRenderPass:                      "vkCreateRenderPass",
	VkCreateFramebuffer:                     "vkCreateFramebuffer",
	VkCreateShaderModule:                    "vkCreateShaderModule",
	VkCreateDescriptorSetLayout:             "vkCreateDescriptorSetLayout",
	VkCreatePipelineLayout:                  "vkCreatePipelineLayout",
	VkCreatePipelineCache:                   "vkCreatePipelineCache",
	VkCreateGraphicsPipelines:               "vkCreateGraphicsPipelines",
	VkCreateComputePipelines:                "vkCreateComputePipelines",
	VkCreateRayTracingPipelinesNV:           "vkCreateRayTracingPipelinesNV",
	VkCreateDescriptorPool:                  "vkCreateDescriptorPool",
	VkCreateDescriptorUpdateTemplate:        "vkCreateDescriptorUpdateTemplate",
	VkAllocateDescriptorSets:                "vkAllocateDescriptorSets",
	VkDestroyRenderPass:                     "vkDestroyRenderPass",
	VkDestroyShaderModule:                   "vkDestroyShaderModule",
	VkDestroyDescriptorSetLayout:            "vkDestroyDescriptorSetLayout",
	VkDestroyPipelineLayout:                 "vkDestroyPipelineLayout",
}

func (c ApiCallID) String() string {
	if n, ok := apiCallNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ApiCall<0x%08x>", uint32(c))
}

// LookupApiCall returns the call with the given function name.
func LookupApiCall(name string) (ApiCallID, bool) {
	for id, n := range apiCallNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}
