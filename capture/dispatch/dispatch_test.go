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

package dispatch_test

import (
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

func TestFindType(t *testing.T) {
	ctx := log.Testing(t)
	types := []dispatch.MemoryType{
		{PropertyFlags: dispatch.MemoryDeviceLocal},
		{PropertyFlags: dispatch.MemoryHostVisible | dispatch.MemoryHostCoherent},
		{PropertyFlags: dispatch.MemoryHostVisible | dispatch.MemoryHostCached},
	}
	for _, test := range []struct {
		bits   uint32
		flags  dispatch.MemoryPropertyFlags
		expect uint32
	}{
		{0x7, dispatch.MemoryHostVisible, 1},
		{0x5, dispatch.MemoryHostVisible, 2},
		{0x7, dispatch.MemoryDeviceLocal, 0},
		{0x6, dispatch.MemoryDeviceLocal, dispatch.NoMemoryType},
		{0x7, dispatch.MemoryHostVisible | dispatch.MemoryHostCached, 2},
	} {
		got := dispatch.FindType(types, test.bits, test.flags)
		assert.For(ctx, "FindType(0x%x, %v)", test.bits, test.flags).That(got).Equals(test.expect)
	}
}

func TestFlagNames(t *testing.T) {
	ctx := log.Testing(t)
	f := dispatch.MemoryDeviceLocal | dispatch.MemoryHostVisible | 0x40
	assert.For(ctx, "flags").ThatString(f).Equals("DEVICE_LOCAL|HOST_VISIBLE|0x40")
	assert.For(ctx, "zero").ThatString(dispatch.MemoryPropertyFlags(0)).Equals("0")

	for _, test := range []struct {
		text   string
		expect dispatch.MemoryPropertyFlags
	}{
		{"HOST_VISIBLE|HOST_COHERENT", dispatch.MemoryHostVisible | dispatch.MemoryHostCoherent},
		{"device_local", dispatch.MemoryDeviceLocal},
		{"DEVICE_LOCAL|HOST_VISIBLE|0x40", f},
		{"6", dispatch.MemoryHostVisible | dispatch.MemoryHostCoherent},
		{"0", 0},
	} {
		var got dispatch.MemoryPropertyFlags
		assert.For(ctx, "parse %q", test.text).ThatError(got.UnmarshalText([]byte(test.text))).Succeeded()
		assert.For(ctx, "parse %q", test.text).That(got).Equals(test.expect)
	}
	var bad dispatch.MemoryPropertyFlags
	assert.For(ctx, "bad").ThatError(bad.UnmarshalText([]byte("HOST_FAST"))).Failed()
}

type instance struct{}

func (instance) GetPhysicalDeviceMemoryProperties(dispatch.Native) dispatch.MemoryProperties {
	return dispatch.MemoryProperties{}
}

func TestTables(t *testing.T) {
	ctx := log.Testing(t)
	tables := dispatch.NewTables()
	_, ok := tables.Instance(1)
	assert.For(ctx, "empty").ThatBoolean(ok).IsFalse()
	tables.AddInstance(1, instance{})
	_, ok = tables.Instance(1)
	assert.For(ctx, "added").ThatBoolean(ok).IsTrue()
	tables.RemoveInstance(1)
	_, ok = tables.Instance(1)
	assert.For(ctx, "removed").ThatBoolean(ok).IsFalse()
}
