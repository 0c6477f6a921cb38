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

// Package statefile loads a YAML description of the objects an application
// created and destroyed, and replays it into a state tracker backed by the
// software device.
//
// A state file is a list of events:
//
//	memory_types:
//	  - {flags: DEVICE_LOCAL, heap: 0}
//	  - {flags: HOST_VISIBLE|HOST_COHERENT, heap: 1}
//	events:
//	  - {create: VkInstance, name: instance}
//	  - {create: VkPhysicalDevice, name: gpu, parent: instance, query_memory_types: true}
//	  - {create: VkDevice, name: device, parent: gpu, queue_families: [0]}
//	  - {create: VkRenderPass, name: pass, parent: device}
//	  - {create: VkFramebuffer, name: fb, parent: device, render_pass: pass}
//	  - {destroy: pass}
//
// Objects are referred to by name. A name can be reused once the object it
// named has been destroyed.
package statefile

import (
	"bytes"
	"os"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ErrBadEvent is returned for an event that is neither a creation nor a
	// destruction, or is missing a required field.
	ErrBadEvent = fault.Const("Invalid event")
	// ErrUnknownKind is returned for an unrecognised object type name.
	ErrUnknownKind = fault.Const("Unknown object type")
	// ErrUnknownName is returned when an event refers to an object that does
	// not exist, or was destroyed.
	ErrUnknownName = fault.Const("Unknown object name")
	// ErrDuplicateName is returned when a name is given to a second live
	// object.
	ErrDuplicateName = fault.Const("Duplicate object name")
)

// File is a decoded state file.
type File struct {
	// MemoryTypes are the memory types of the software device. The default
	// types of the software device are used if empty.
	MemoryTypes []dispatch.MemoryType `yaml:"memory_types"`
	Events      []Event               `yaml:"events"`
}

// Event creates or destroys one object, or a batch of pipelines.
type Event struct {
	// Create is the type of the object created, such as "VkBuffer".
	Create string `yaml:"create"`
	// Destroy is the name of the object destroyed.
	Destroy string `yaml:"destroy"`

	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	// Call overrides the creation call, such as "vkCreateComputePipelines".
	Call string `yaml:"call"`
	// Batch names pipelines created together with Name by the same call.
	Batch []string `yaml:"batch"`

	// Physical devices.
	Index            uint32 `yaml:"index"`
	QueryMemoryTypes bool   `yaml:"query_memory_types"`

	// Devices and queues.
	QueueFamilies []uint32 `yaml:"queue_families"`
	Family        uint32   `yaml:"family"`

	// Memory, buffers and images.
	MemoryType uint32 `yaml:"memory_type"`
	Size       uint64 `yaml:"size"`
	Data       string `yaml:"data"`
	Bind       *Bind  `yaml:"bind"`
	// Map leaves a range of the allocation mapped.
	Map *Map `yaml:"map"`

	// Framebuffers, pipeline layouts and pipelines.
	RenderPass    string   `yaml:"render_pass"`
	ShaderModules []string `yaml:"shader_modules"`
	Layout        string   `yaml:"layout"`
	SetLayouts    []string `yaml:"set_layouts"`
}

// Bind binds a buffer or image to memory.
type Bind struct {
	Memory string `yaml:"memory"`
	Offset uint64 `yaml:"offset"`
}

// Map maps size bytes of memory at offset. A zero size maps to the end.
type Map struct {
	Offset uint64 `yaml:"offset"`
	Size   uint64 `yaml:"size"`
}

// Parse decodes a state file. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	f := &File{}
	if err := dec.Decode(f); err != nil {
		return nil, errors.Wrap(err, "Parsing state file")
	}
	for i, e := range f.Events {
		if (e.Create == "") == (e.Destroy == "") {
			return nil, errors.Wrapf(ErrBadEvent, "event %d must either create or destroy", i)
		}
	}
	return f, nil
}

// Load reads and decodes the state file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Reading state file")
	}
	return Parse(data)
}
