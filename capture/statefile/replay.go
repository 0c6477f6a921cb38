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

package statefile

import (
	"context"
	"encoding/hex"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch/soft"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/encoder"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/state"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
	"github.com/pkg/errors"
)

// firstSyntheticNative is the first native handle given to objects the
// software device does not implement.
const firstSyntheticNative = dispatch.Native(1) << 32

// createCalls are the default creation calls of each kind.
var createCalls = map[wrappers.Kind]format.ApiCallID{
	wrappers.Instance:                 format.VkCreateInstance,
	wrappers.PhysicalDevice:           format.VkEnumeratePhysicalDevices,
	wrappers.Device:                   format.VkCreateDevice,
	wrappers.Queue:                    format.VkGetDeviceQueue,
	wrappers.CommandBuffer:            format.VkAllocateCommandBuffers,
	wrappers.DebugReportCallback:      format.VkCreateDebugReportCallbackEXT,
	wrappers.DebugUtilsMessenger:      format.VkCreateDebugUtilsMessengerEXT,
	wrappers.ValidationCache:          format.VkCreateValidationCacheEXT,
	wrappers.Semaphore:                format.VkCreateSemaphore,
	wrappers.Fence:                    format.VkCreateFence,
	wrappers.Event:                    format.VkCreateEvent,
	wrappers.Display:                  format.VkGetPhysicalDeviceDisplayPropertiesKHR,
	wrappers.DisplayMode:              format.VkCreateDisplayModeKHR,
	wrappers.Surface:                  format.VkCreateXlibSurfaceKHR,
	wrappers.Swapchain:                format.VkCreateSwapchainKHR,
	wrappers.CommandPool:              format.VkCreateCommandPool,
	wrappers.ObjectTable:              format.VkCreateObjectTableNVX,
	wrappers.IndirectCommandsLayout:   format.VkCreateIndirectCommandsLayoutNVX,
	wrappers.QueryPool:                format.VkCreateQueryPool,
	wrappers.AccelerationStructure:    format.VkCreateAccelerationStructureNV,
	wrappers.DeviceMemory:             format.VkAllocateMemory,
	wrappers.Buffer:                   format.VkCreateBuffer,
	wrappers.BufferView:               format.VkCreateBufferView,
	wrappers.Image:                    format.VkCreateImage,
	wrappers.ImageView:                format.VkCreateImageView,
	wrappers.Sampler:                  format.VkCreateSampler,
	wrappers.SamplerYcbcrConversion:   format.VkCreateSamplerYcbcrConversion,
	wrappers.RenderPass:               format.VkCreateRenderPass,
	wrappers.Framebuffer:              format.VkCreateFramebuffer,
	wrappers.ShaderModule:             format.VkCreateShaderModule,
	wrappers.DescriptorSetLayout:      format.VkCreateDescriptorSetLayout,
	wrappers.PipelineLayout:           format.VkCreatePipelineLayout,
	wrappers.PipelineCache:            format.VkCreatePipelineCache,
	wrappers.Pipeline:                 format.VkCreateGraphicsPipelines,
	wrappers.DescriptorPool:           format.VkCreateDescriptorPool,
	wrappers.DescriptorUpdateTemplate: format.VkCreateDescriptorUpdateTemplate,
	wrappers.DescriptorSet:            format.VkAllocateDescriptorSets,
}

// Session is the result of replaying a state file: the tracked objects and
// the software device behind them.
type Session struct {
	Tracker *state.Tracker
	Tables  *dispatch.Tables
	Driver  *soft.Device

	names      map[string]wrappers.Object
	nextNative dispatch.Native
	nextKey    dispatch.Key
	params     *stream.MemoryOutputStream
	enc        *encoder.ParameterEncoder
}

// Replay applies the events of f in order to a new Session.
func Replay(ctx context.Context, f *File) (*Session, error) {
	types := f.MemoryTypes
	if len(types) == 0 {
		types = soft.DefaultMemoryTypes()
	}
	params := stream.NewMemoryOutputStream(64)
	s := &Session{
		Tracker:    state.NewTracker(),
		Tables:     dispatch.NewTables(),
		Driver:     soft.New(types),
		names:      map[string]wrappers.Object{},
		nextNative: firstSyntheticNative,
		nextKey:    1,
		params:     params,
		enc:        encoder.New(params),
	}
	for i, e := range f.Events {
		ctx := log.V{"event": i}.Bind(ctx)
		var err error
		if e.Destroy != "" {
			err = s.destroy(ctx, e)
		} else {
			err = s.create(ctx, e)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Event %d", i)
		}
	}
	log.D(ctx, "Replayed %d events, %d live objects", len(f.Events), s.Tracker.Len())
	return s, nil
}

// Lookup returns the live object with the given name, or nil.
func (s *Session) Lookup(name string) wrappers.Object {
	o, err := s.lookup(name)
	if err != nil {
		return nil
	}
	return o
}

func (s *Session) lookup(name string) (wrappers.Object, error) {
	o, ok := s.names[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownName, "%q", name)
	}
	b := o.Base()
	if s.Tracker.Lookup(b.Kind, b.Handle) != o {
		return nil, errors.Wrapf(ErrUnknownName, "%q was destroyed", name)
	}
	return o, nil
}

// lookupKind returns the live object of kind with the given name. An empty
// name returns nil.
func (s *Session) lookupKind(name string, kind wrappers.Kind) (wrappers.Object, error) {
	if name == "" {
		return nil, nil
	}
	o, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if o.Base().Kind != kind {
		return nil, errors.Wrapf(ErrBadEvent, "%q is a %v, not a %v", name, o.Base().Kind, kind)
	}
	return o, nil
}

func (s *Session) dependency(name string, kind wrappers.Kind) (wrappers.Dependency, error) {
	o, err := s.lookupKind(name, kind)
	if err != nil || o == nil {
		return wrappers.Dependency{}, err
	}
	return o.Base().Dependency(), nil
}

func (s *Session) dependencies(names []string, kind wrappers.Kind) ([]wrappers.Dependency, error) {
	var out []wrappers.Dependency
	for _, n := range names {
		d, err := s.dependency(n, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Session) synthetic() dispatch.Native {
	n := s.nextNative
	s.nextNative++
	return n
}

// device returns the device that owns parent, or nil.
func device(parent wrappers.Object) *wrappers.DeviceWrapper {
	for p := parent; p != nil; p = p.Base().Parent() {
		if d, ok := p.(*wrappers.DeviceWrapper); ok {
			return d
		}
	}
	return nil
}

func (s *Session) create(ctx context.Context, e Event) error {
	kind, ok := wrappers.ParseKind(e.Create)
	if !ok {
		return errors.Wrapf(ErrUnknownKind, "%q", e.Create)
	}
	if e.Name != "" {
		if _, err := s.lookup(e.Name); err == nil {
			return errors.Wrapf(ErrDuplicateName, "%q", e.Name)
		}
	}
	call, ok := createCalls[kind]
	if e.Call != "" {
		call, ok = format.LookupApiCall(e.Call)
	}
	if !ok {
		return errors.Wrapf(ErrBadEvent, "no creation call for %v", kind)
	}
	var parent wrappers.Object
	if e.Parent != "" {
		p, err := s.lookup(e.Parent)
		if err != nil {
			return err
		}
		parent = p
	}
	if kind == wrappers.Pipeline {
		return s.createPipelines(ctx, e, parent, call)
	}

	obj := wrappers.New(kind)
	b := obj.Base()
	b.Kind, b.CreateCallID = kind, call
	dev := device(parent)
	devNative := dispatch.NullNative
	if dev != nil {
		devNative = dev.Native
	}

	switch o := obj.(type) {
	case *wrappers.InstanceWrapper:
		o.Native = s.synthetic()
		o.DispatchKey = s.key()
		s.Tables.AddInstance(o.DispatchKey, s.Driver)
	case *wrappers.PhysicalDeviceWrapper:
		o.Native = dispatch.Native(0x900 + e.Index)
	case *wrappers.DeviceWrapper:
		o.Native = s.synthetic()
		o.DispatchKey = s.key()
		o.QueueFamilies = e.QueueFamilies
		s.Tables.AddDevice(o.DispatchKey, s.Driver)
	case *wrappers.QueueWrapper:
		o.Native = s.Driver.GetDeviceQueue(devNative, e.Family, e.Index)
		o.Family, o.Index = e.Family, e.Index
	case *wrappers.DeviceMemoryWrapper:
		native, err := s.Driver.AllocateMemory(devNative, e.Size, e.MemoryType)
		if err != nil {
			return err
		}
		if e.Data != "" {
			data, err := hex.DecodeString(e.Data)
			if err != nil {
				return errors.Wrapf(ErrBadEvent, "memory data: %v", err)
			}
			if err := s.Driver.WriteMemory(native, 0, data); err != nil {
				return err
			}
		}
		o.Native = native
		o.MemoryTypeIndex = e.MemoryType
		o.AllocationSize = e.Size
		if dev != nil {
			o.Device = dev.Ref()
		}
	case *wrappers.BufferWrapper:
		native, err := s.Driver.CreateBuffer(devNative, e.Size, dispatch.BufferUsageTransferSrc|dispatch.BufferUsageTransferDst)
		if err != nil {
			return err
		}
		o.Native = native
		o.Size = e.Size
	case *wrappers.ImageWrapper:
		o.Native = s.synthetic()
		o.Size = e.Size
	case *wrappers.FramebufferWrapper:
		o.Native = s.synthetic()
		dep, err := s.dependency(e.RenderPass, wrappers.RenderPass)
		if err != nil {
			return err
		}
		o.RenderPass = dep
	case *wrappers.PipelineLayoutWrapper:
		o.Native = s.synthetic()
		deps, err := s.dependencies(e.SetLayouts, wrappers.DescriptorSetLayout)
		if err != nil {
			return err
		}
		o.SetLayouts = deps
	default:
		b.Native = s.synthetic()
	}

	obj = s.Tracker.Create(parent, obj)
	b = obj.Base()
	if e.QueryMemoryTypes {
		pd, ok := obj.(*wrappers.PhysicalDeviceWrapper)
		if !ok {
			return errors.Wrapf(ErrBadEvent, "memory types queried on %v", kind)
		}
		props := s.Driver.GetPhysicalDeviceMemoryProperties(pd.Native)
		if err := s.Tracker.SetMemoryTypes(pd.Handle, props.Types); err != nil {
			return err
		}
	}
	if e.Bind != nil {
		if err := s.bind(obj, dev, e.Bind); err != nil {
			return err
		}
	}
	if e.Map != nil {
		if kind != wrappers.DeviceMemory || dev == nil {
			return errors.Wrapf(ErrBadEvent, "map of %v", kind)
		}
		size := e.Map.Size
		if size == 0 {
			size = dispatch.WholeSize
		}
		data, err := s.Driver.MapMemory(dev.Native, b.Native, e.Map.Offset, size)
		if err != nil {
			return err
		}
		if err := s.Tracker.MapMemory(b.Handle, e.Map.Offset, data); err != nil {
			return err
		}
	}

	p, err := s.encode(parent, []format.HandleID{b.HandleID}, e)
	if err != nil {
		return err
	}
	if err := s.Tracker.Update(kind, b.Handle, func(o wrappers.Object) {
		if o.Base().CreateParameters == nil {
			o.Base().CreateParameters = p
		}
	}); err != nil {
		return err
	}
	if e.Name != "" {
		s.names[e.Name] = obj
	}
	log.D(ctx, "Created %v", b)
	return nil
}

func (s *Session) key() dispatch.Key {
	k := s.nextKey
	s.nextKey++
	return k
}

// bind binds a buffer or image to memory in the driver and the tracker.
func (s *Session) bind(obj wrappers.Object, dev *wrappers.DeviceWrapper, bind *Bind) error {
	if dev == nil {
		return errors.Wrapf(ErrBadEvent, "%v bound without a device", obj.Base())
	}
	m, err := s.lookupKind(bind.Memory, wrappers.DeviceMemory)
	if err != nil {
		return err
	}
	if m == nil {
		return errors.Wrapf(ErrBadEvent, "%v bound without memory", obj.Base())
	}
	b := obj.Base()
	if b.Kind == wrappers.Buffer {
		if err := s.Driver.BindBufferMemory(dev.Native, b.Native, m.Base().Native, bind.Offset); err != nil {
			return err
		}
	}
	return s.Tracker.BindMemory(b.Kind, b.Handle, dev.Handle, m.Base().Handle, bind.Offset)
}

// createPipelines creates the pipeline named by e and those of its batch.
// Every pipeline of the batch holds the parameters of the whole call.
func (s *Session) createPipelines(ctx context.Context, e Event, parent wrappers.Object, call format.ApiCallID) error {
	shaders, err := s.dependencies(e.ShaderModules, wrappers.ShaderModule)
	if err != nil {
		return err
	}
	renderPass, err := s.dependency(e.RenderPass, wrappers.RenderPass)
	if err != nil {
		return err
	}
	layout, err := s.lookupKind(e.Layout, wrappers.PipelineLayout)
	if err != nil {
		return err
	}

	names := append([]string{e.Name}, e.Batch...)
	created := make([]wrappers.Object, len(names))
	ids := make([]format.HandleID, len(names))
	for i, name := range names {
		if name != "" {
			if _, err := s.lookup(name); err == nil {
				return errors.Wrapf(ErrDuplicateName, "%q", name)
			}
		}
		p := wrappers.New(wrappers.Pipeline).(*wrappers.PipelineWrapper)
		p.Kind, p.CreateCallID, p.Native = wrappers.Pipeline, call, s.synthetic()
		p.ShaderModules = shaders
		p.RenderPass = renderPass
		if layout != nil {
			l := layout.(*wrappers.PipelineLayoutWrapper)
			p.Layout = l.Dependency()
			p.LayoutSetLayouts = l.SetLayouts
		}
		created[i] = s.Tracker.Create(parent, p)
		ids[i] = created[i].Base().HandleID
	}

	params, err := s.encode(parent, ids, e)
	if err != nil {
		return err
	}
	for i, o := range created {
		if err := s.Tracker.Update(wrappers.Pipeline, o.Base().Handle, func(o wrappers.Object) {
			o.Base().CreateParameters = params
		}); err != nil {
			return err
		}
		if names[i] != "" {
			s.names[names[i]] = o
		}
	}
	log.D(ctx, "Created %d pipelines with %v", len(created), call)
	return nil
}

// encode returns the creation parameters of the objects ids: the identity of
// parent, the identities created and the sizes of the event.
func (s *Session) encode(parent wrappers.Object, ids []format.HandleID, e Event) ([]byte, error) {
	defer s.params.Reset()
	parentID := format.NullHandleID
	if parent != nil {
		parentID = parent.Base().HandleID
	}
	s.enc.EncodeHandleIDValue(parentID)
	if len(ids) == 1 {
		s.enc.EncodeHandleIDValue(ids[0])
	} else {
		s.enc.EncodeHandleIDArray(ids)
	}
	s.enc.EncodeUInt32Value(e.Family)
	s.enc.EncodeUInt32Value(e.MemoryType)
	s.enc.EncodeDeviceSizeValue(e.Size)
	s.enc.EncodeStructPtrNull() // allocator
	if err := s.enc.Error(); err != nil {
		return nil, errors.Wrap(err, "Encoding creation parameters")
	}
	return append([]byte(nil), s.params.Data()...), nil
}

func (s *Session) destroy(ctx context.Context, e Event) error {
	o, err := s.lookup(e.Destroy)
	if err != nil {
		return err
	}
	b := o.Base()
	switch b.Kind {
	case wrappers.Buffer:
		if d := device(b.Parent()); d != nil {
			s.Driver.DestroyBuffer(d.Native, b.Native)
		}
	case wrappers.DeviceMemory:
		if d := device(b.Parent()); d != nil {
			if o.(*wrappers.DeviceMemoryWrapper).MappedData != nil {
				s.Driver.UnmapMemory(d.Native, b.Native)
			}
			s.Driver.FreeMemory(d.Native, b.Native)
		}
	case wrappers.Instance:
		s.Tables.RemoveInstance(b.DispatchKey)
	case wrappers.Device:
		s.Tables.RemoveDevice(b.DispatchKey)
	}
	n := s.Tracker.Destroy(b.Kind, b.Handle)
	delete(s.names, e.Destroy)
	log.D(ctx, "Destroyed %v and %d owned objects", b, n-1)
	return nil
}
