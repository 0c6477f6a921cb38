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

package wrappers_test

import (
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

func object(kind wrappers.Kind, native dispatch.Native) wrappers.Object {
	o := wrappers.New(kind)
	o.Base().Native = native
	return o
}

func TestWrapAssignsIdentity(t *testing.T) {
	ctx := log.Testing(t)
	r := wrappers.NewRegistry()
	a := r.Wrap(nil, object(wrappers.Buffer, 0x100)).Base()
	b := r.Wrap(nil, object(wrappers.Buffer, 0x200)).Base()
	c := r.Wrap(nil, object(wrappers.Image, 0x300)).Base()

	assert.For(ctx, "a handle").That(a.Handle).Equals(format.Handle(1))
	assert.For(ctx, "b handle").That(b.Handle).Equals(format.Handle(2))
	assert.For(ctx, "c handle").That(c.Handle).Equals(format.Handle(1))
	assert.For(ctx, "ids").ThatSlice([]format.HandleID{a.HandleID, b.HandleID, c.HandleID}).
		Equals([]format.HandleID{1, 2, 3})
	assert.For(ctx, "unwrap").That(r.Unwrap(wrappers.Buffer, b.Handle)).Equals(dispatch.Native(0x200))
	assert.For(ctx, "id").That(r.GetID(wrappers.Image, c.Handle)).Equals(format.HandleID(3))
	assert.For(ctx, "null id").That(r.GetID(wrappers.Image, format.NullHandle)).Equals(format.NullHandleID)
	assert.For(ctx, "len").ThatInteger(r.Len()).Equals(3)
}

func TestRecycledHandleGetsNewIdentity(t *testing.T) {
	ctx := log.Testing(t)
	r := wrappers.NewRegistry()
	first := r.Wrap(nil, object(wrappers.RenderPass, 0x10)).Base()
	ref := first.Ref()
	r.Destroy(wrappers.RenderPass, first.Handle)

	second := r.Wrap(nil, object(wrappers.RenderPass, 0x20))
	assert.For(ctx, "handle").That(second.Base().Handle).Equals(ref.Handle)
	assert.For(ctx, "id").That(second.Base().HandleID).NotEquals(ref.HandleID)
	assert.For(ctx, "stale ref").ThatBoolean(ref.Matches(second)).IsFalse()
	assert.For(ctx, "fresh ref").ThatBoolean(second.Base().Ref().Matches(second)).IsTrue()
}

func TestUnwrapHandles(t *testing.T) {
	ctx := log.Testing(t)
	r := wrappers.NewRegistry()
	a := r.Wrap(nil, object(wrappers.Semaphore, 0xa)).Base()
	b := r.Wrap(nil, object(wrappers.Semaphore, 0xb)).Base()
	got := r.UnwrapHandles(wrappers.Semaphore, []format.Handle{b.Handle, format.NullHandle, a.Handle})
	assert.For(ctx, "natives").ThatSlice(got).Equals([]dispatch.Native{0xb, 0, 0xa})
	assert.For(ctx, "nil").ThatSlice(r.UnwrapHandles(wrappers.Semaphore, nil)).IsEmpty()
}

func TestDedupeAndDispatchInheritance(t *testing.T) {
	ctx := log.Testing(t)
	r := wrappers.NewRegistry()
	instance := object(wrappers.Instance, 0x1)
	instance.Base().DispatchKey = 77
	r.Wrap(nil, instance)

	pds := r.WrapAll(instance, []wrappers.Object{
		object(wrappers.PhysicalDevice, 0x2),
		object(wrappers.PhysicalDevice, 0x3),
	})
	again := r.Wrap(instance, object(wrappers.PhysicalDevice, 0x2))
	assert.For(ctx, "dedupe").That(again).Equals(pds[0])
	assert.For(ctx, "children").ThatInteger(len(instance.(*wrappers.InstanceWrapper).PhysicalDevices)).Equals(2)
	assert.For(ctx, "dispatch").That(pds[1].Base().DispatchKey).Equals(dispatch.Key(77))
	assert.For(ctx, "back link").That(pds[1].(*wrappers.PhysicalDeviceWrapper).Instance).Equals(instance)

	// Semaphores are never deduplicated.
	device := r.Wrap(pds[0], object(wrappers.Device, 0x4))
	s1 := r.Wrap(device, object(wrappers.Semaphore, 0x5))
	s2 := r.Wrap(device, object(wrappers.Semaphore, 0x5))
	assert.For(ctx, "no dedupe").That(s1).NotEquals(s2)
	assert.For(ctx, "no inheritance").That(s1.Base().DispatchKey).Equals(dispatch.Key(0))
	assert.For(ctx, "device parent").That(device.(*wrappers.DeviceWrapper).PhysicalDevice).Equals(pds[0])

	device.Base().DispatchKey = 9
	cb := r.Wrap(device, object(wrappers.CommandBuffer, 0x6))
	assert.For(ctx, "command buffer dispatch").That(cb.Base().DispatchKey).Equals(dispatch.Key(9))
	q1 := r.Wrap(device, object(wrappers.Queue, 0x7))
	q2 := r.Wrap(device, object(wrappers.Queue, 0x7))
	assert.For(ctx, "queue dedupe").That(q1).Equals(q2)
}

func TestTransitiveDestroy(t *testing.T) {
	ctx := log.Testing(t)
	r := wrappers.NewRegistry()
	instance := r.Wrap(nil, object(wrappers.Instance, 0x1))
	pd := r.Wrap(instance, object(wrappers.PhysicalDevice, 0x2))
	r.Wrap(pd, object(wrappers.Display, 0x3))
	r.Wrap(pd, object(wrappers.DisplayMode, 0x4))
	other := r.Wrap(instance, object(wrappers.PhysicalDevice, 0x5))
	assert.For(ctx, "live").ThatInteger(r.Len()).Equals(5)

	released := r.Destroy(wrappers.PhysicalDevice, other.Base().Handle)
	assert.For(ctx, "released one").ThatInteger(len(released)).Equals(1)
	assert.For(ctx, "detached").ThatInteger(len(instance.(*wrappers.InstanceWrapper).PhysicalDevices)).Equals(1)

	released = r.Destroy(wrappers.Instance, instance.Base().Handle)
	assert.For(ctx, "released all").ThatInteger(len(released)).Equals(4)
	assert.For(ctx, "owner first").That(released[0]).Equals(instance)
	assert.For(ctx, "empty").ThatInteger(r.Len()).Equals(0)
	assert.For(ctx, "gone").That(r.Get(wrappers.Display, 1)).IsNil()
	assert.For(ctx, "twice").ThatSlice(r.Destroy(wrappers.Instance, instance.Base().Handle)).IsEmpty()
}

func TestKindNames(t *testing.T) {
	ctx := log.Testing(t)
	assert.For(ctx, "name").ThatString(wrappers.DescriptorSetLayout).Equals("VkDescriptorSetLayout")
	k, ok := wrappers.ParseKind("VkPipeline")
	assert.For(ctx, "parse").ThatBoolean(ok).IsTrue()
	assert.For(ctx, "kind").That(k).Equals(wrappers.Pipeline)
	assert.For(ctx, "dispatchable").ThatBoolean(wrappers.Queue.Dispatchable()).IsTrue()
	assert.For(ctx, "not dispatchable").ThatBoolean(wrappers.Buffer.Dispatchable()).IsFalse()
}
