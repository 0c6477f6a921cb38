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

// Rule controls how a child object is wrapped under a parent.
type Rule struct {
	// Dedupe returns the existing child wrapper when the driver hands out
	// the same native handle again, as it does for physical devices, queues
	// and displays.
	Dedupe bool
	// InheritDispatch copies the parent's dispatch key to the child.
	InheritDispatch bool
}

type edge struct{ parent, child Kind }

var rules = map[edge]Rule{
	{Instance, PhysicalDevice}:    {Dedupe: true, InheritDispatch: true},
	{PhysicalDevice, Display}:     {Dedupe: true},
	{PhysicalDevice, DisplayMode}: {Dedupe: true},
	{Device, Queue}:               {Dedupe: true, InheritDispatch: true},
	{Device, CommandBuffer}:       {InheritDispatch: true},
}

// RuleFor returns the wrapping rule of child objects under parent objects.
// Pairs without a rule create a new wrapper every time.
func RuleFor(parent, child Kind) Rule { return rules[edge{parent, child}] }

// attach records child as owned by parent.
func attach(parent, child Object) {
	child.Base().parent = parent
	switch p := parent.(type) {
	case *InstanceWrapper:
		if c, ok := child.(*PhysicalDeviceWrapper); ok {
			c.Instance = p
			p.PhysicalDevices = append(p.PhysicalDevices, c)
		}
	case *PhysicalDeviceWrapper:
		switch c := child.(type) {
		case *DeviceWrapper:
			c.PhysicalDevice = p
		case *Wrapper:
			switch c.Kind {
			case Display:
				p.Displays = append(p.Displays, c)
			case DisplayMode:
				p.DisplayModes = append(p.DisplayModes, c)
			}
		}
	case *DeviceWrapper:
		if c, ok := child.(*QueueWrapper); ok {
			c.Device = p
			p.Queues = append(p.Queues, c)
		}
	}
}

// detach removes child from the child lists of its parent.
func detach(child Object) {
	parent := child.Base().parent
	child.Base().parent = nil
	switch p := parent.(type) {
	case *InstanceWrapper:
		p.PhysicalDevices = remove(p.PhysicalDevices, child)
	case *PhysicalDeviceWrapper:
		p.Displays = remove(p.Displays, child)
		p.DisplayModes = remove(p.DisplayModes, child)
	case *DeviceWrapper:
		p.Queues = remove(p.Queues, child)
	}
}

// owned returns the children released along with o.
func owned(o Object) []Object {
	var out []Object
	switch p := o.(type) {
	case *InstanceWrapper:
		for _, c := range p.PhysicalDevices {
			out = append(out, c)
		}
	case *PhysicalDeviceWrapper:
		for _, c := range p.Displays {
			out = append(out, c)
		}
		for _, c := range p.DisplayModes {
			out = append(out, c)
		}
	case *DeviceWrapper:
		for _, c := range p.Queues {
			out = append(out, c)
		}
	}
	return out
}

// children returns the tracked children of parent with the given kind.
func children(parent Object, kind Kind) []Object {
	var out []Object
	for _, c := range owned(parent) {
		if c.Base().Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func remove[T Object](list []T, o Object) []T {
	for i, c := range list {
		if Object(c) == o {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
