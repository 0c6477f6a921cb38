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

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

// ErrNoMemoryType is returned when no memory type can back a staging buffer.
const ErrNoMemoryType = fault.Const("No suitable memory type")

// memoryTypes returns the memory types of pd. They are queried from the
// driver if the application never asked for them.
func (w *Writer) memoryTypes(ctx context.Context, pd *wrappers.PhysicalDeviceWrapper) []dispatch.MemoryType {
	if len(pd.MemoryTypes) > 0 {
		return pd.MemoryTypes
	}
	table, ok := w.tables.Instance(pd.DispatchKey)
	if !ok {
		log.E(ctx, "Attempting to call vkGetPhysicalDeviceMemoryProperties through an untracked device handle")
		return nil
	}
	return table.GetPhysicalDeviceMemoryProperties(pd.Native).Types
}

// MemoryProperties returns the property flags of the memory type of memory.
// Zero is returned when the memory types of the device are unknown.
func (w *Writer) MemoryProperties(ctx context.Context, device *wrappers.DeviceWrapper, memory *wrappers.DeviceMemoryWrapper) dispatch.MemoryPropertyFlags {
	if device.PhysicalDevice == nil {
		log.E(ctx, "%v has no physical device", device.Base())
		return 0
	}
	types := w.memoryTypes(ctx, device.PhysicalDevice)
	if int(memory.MemoryTypeIndex) >= len(types) {
		if types != nil {
			log.E(ctx, "%v has memory type %d of %d", memory.Base(), memory.MemoryTypeIndex, len(types))
		}
		return 0
	}
	return types[memory.MemoryTypeIndex].PropertyFlags
}

// FindMemoryTypeIndex returns the index of the first memory type of device
// allowed by typeBits that has all of flags, or dispatch.NoMemoryType.
func (w *Writer) FindMemoryTypeIndex(ctx context.Context, device *wrappers.DeviceWrapper, typeBits uint32, flags dispatch.MemoryPropertyFlags) uint32 {
	if device.PhysicalDevice == nil {
		return dispatch.NoMemoryType
	}
	return dispatch.FindType(w.memoryTypes(ctx, device.PhysicalDevice), typeBits, flags)
}

// writeResourceMemory captures the content of every allocation.
//
// Host visible allocations are written whole, or only the range the
// application holds mapped. The content of
// other allocations is written per bound buffer, copied through a host
// visible staging buffer. Images in such allocations are skipped.
func (w *Writer) writeResourceMemory(ctx context.Context) {
	ctx = log.Enter(ctx, "writeResourceMemory")

	buffers := map[format.HandleID][]*wrappers.BufferWrapper{}
	w.table.Visit(wrappers.Buffer, func(o wrappers.Object) {
		b := o.(*wrappers.BufferWrapper)
		if b.Bound() && w.table.Resolve(wrappers.DeviceMemory, b.Memory) != nil {
			buffers[b.Memory.HandleID] = append(buffers[b.Memory.HandleID], b)
		}
	})
	images := map[format.HandleID][]*wrappers.ImageWrapper{}
	w.table.Visit(wrappers.Image, func(o wrappers.Object) {
		i := o.(*wrappers.ImageWrapper)
		if i.Bound() {
			images[i.Memory.HandleID] = append(images[i.Memory.HandleID], i)
		}
	})

	w.table.Visit(wrappers.DeviceMemory, func(o wrappers.Object) {
		if w.err.Failed() {
			return
		}
		m := o.(*wrappers.DeviceMemoryWrapper)
		ctx := log.V{"memory": m.HandleID}.Bind(ctx)
		device, _ := w.table.Resolve(wrappers.Device, m.Device).(*wrappers.DeviceWrapper)
		if device == nil {
			log.E(ctx, "Skipping memory content: device %d is not live", m.Device.HandleID)
			w.metrics.snapshots.WithLabelValues(snapshotFailed).Inc()
			return
		}
		table, ok := w.tables.Device(device.DispatchKey)
		if !ok {
			log.E(ctx, "Skipping memory content: no dispatch table for %v", device.Base())
			w.metrics.snapshots.WithLabelValues(snapshotFailed).Inc()
			return
		}

		if m.MappedData != nil || w.MemoryProperties(ctx, device, m).Has(dispatch.MemoryHostVisible) {
			w.count(ctx, w.snapshotMappedMemory(ctx, table, device, m))
			return
		}
		for _, b := range buffers[m.HandleID] {
			ctx := log.V{"buffer": b.HandleID}.Bind(ctx)
			w.count(ctx, w.snapshotBuffer(ctx, table, device, m, b))
		}
		for _, i := range images[m.HandleID] {
			log.D(ctx, "Skipping content of device local image %d", i.HandleID)
			w.metrics.snapshots.WithLabelValues(snapshotSkipped).Inc()
		}
	})
}

func (w *Writer) count(ctx context.Context, err error) {
	if err != nil {
		log.E(ctx, "Skipping memory content: %v", err)
		w.metrics.snapshots.WithLabelValues(snapshotFailed).Inc()
		return
	}
	w.metrics.snapshots.WithLabelValues(snapshotOK).Inc()
}

// snapshotMappedMemory writes the content of a host visible allocation: the
// range the application holds mapped, or the whole allocation otherwise.
func (w *Writer) snapshotMappedMemory(ctx context.Context, table dispatch.DeviceTable, device *wrappers.DeviceWrapper, m *wrappers.DeviceMemoryWrapper) error {
	if m.MappedData != nil {
		w.writeFillMemory(ctx, m.HandleID, m.MappedOffset, m.MappedData)
		return nil
	}
	data, err := table.MapMemory(device.Native, m.Native, 0, dispatch.WholeSize)
	if err != nil {
		return log.Err(ctx, err, "Failed to map memory")
	}
	w.writeFillMemory(ctx, m.HandleID, 0, data)
	table.UnmapMemory(device.Native, m.Native)
	return nil
}

// snapshotBuffer copies the content of b to a staging buffer on the first
// queue of the device and writes it at the buffer's offset in m.
func (w *Writer) snapshotBuffer(ctx context.Context, table dispatch.DeviceTable, device *wrappers.DeviceWrapper, m *wrappers.DeviceMemoryWrapper, b *wrappers.BufferWrapper) error {
	if b.Size == 0 {
		return nil
	}
	dev := device.Native
	family := uint32(0)
	if len(device.QueueFamilies) > 0 {
		family = device.QueueFamilies[0]
	}

	pool, err := table.CreateCommandPool(dev, family)
	if err != nil {
		return log.Err(ctx, err, "Failed to create a command pool")
	}
	defer table.DestroyCommandPool(dev, pool)

	cb, err := table.AllocateCommandBuffer(dev, pool)
	if err != nil {
		return log.Err(ctx, err, "Failed to create a command buffer")
	}

	staging, err := w.createStagingBuffer(ctx, table, device, b.Size)
	if err != nil {
		return err
	}
	defer func() {
		table.DestroyBuffer(dev, staging.buffer)
		table.FreeMemory(dev, staging.memory)
	}()

	if err := table.BeginCommandBuffer(cb); err != nil {
		return log.Err(ctx, err, "Failed to begin the command buffer")
	}
	table.CmdCopyBuffer(cb, b.Native, staging.buffer, []dispatch.BufferCopy{{Size: b.Size}})
	if err := table.EndCommandBuffer(cb); err != nil {
		return log.Err(ctx, err, "Failed to end the command buffer")
	}

	queue := table.GetDeviceQueue(dev, family, 0)
	if err := table.QueueSubmit(queue, []dispatch.Native{cb}); err != nil {
		return log.Err(ctx, err, "Failed to submit the copy")
	}
	if err := table.QueueWaitIdle(queue); err != nil {
		return log.Err(ctx, err, "Failed to wait for the copy")
	}

	data, err := table.MapMemory(dev, staging.memory, 0, b.Size)
	if err != nil {
		return log.Err(ctx, err, "Failed to map the staging buffer")
	}
	defer table.UnmapMemory(dev, staging.memory)
	if !staging.coherent {
		if err := table.InvalidateMappedMemoryRange(dev, staging.memory, 0, dispatch.WholeSize); err != nil {
			return log.Err(ctx, err, "Failed to invalidate the staging buffer")
		}
	}
	w.writeFillMemory(ctx, m.HandleID, b.Offset, data)
	return nil
}

// stagingBuffer is a host visible buffer and the memory bound to it.
type stagingBuffer struct {
	buffer, memory dispatch.Native
	// coherent is false if mapped reads must be invalidated first.
	coherent bool
}

// createStagingBuffer creates a host visible buffer of size bytes that can
// be copied to. Coherent memory is preferred.
func (w *Writer) createStagingBuffer(ctx context.Context, table dispatch.DeviceTable, device *wrappers.DeviceWrapper, size uint64) (stagingBuffer, error) {
	dev := device.Native
	buffer, err := table.CreateBuffer(dev, size, dispatch.BufferUsageTransferDst)
	if err != nil {
		return stagingBuffer{}, log.Err(ctx, err, "Failed to create staging buffer")
	}
	req := table.GetBufferMemoryRequirements(dev, buffer)
	coherent := true
	index := w.FindMemoryTypeIndex(ctx, device, req.TypeBits, dispatch.MemoryHostVisible|dispatch.MemoryHostCoherent)
	if index == dispatch.NoMemoryType {
		coherent = false
		index = w.FindMemoryTypeIndex(ctx, device, req.TypeBits, dispatch.MemoryHostVisible)
	}
	if index == dispatch.NoMemoryType {
		table.DestroyBuffer(dev, buffer)
		return stagingBuffer{}, log.Err(ctx, ErrNoMemoryType, "Failed to allocate staging buffer memory")
	}
	memory, err := table.AllocateMemory(dev, req.Size, index)
	if err != nil {
		table.DestroyBuffer(dev, buffer)
		return stagingBuffer{}, log.Err(ctx, err, "Failed to allocate staging buffer memory")
	}
	if err := table.BindBufferMemory(dev, buffer, memory, 0); err != nil {
		table.DestroyBuffer(dev, buffer)
		table.FreeMemory(dev, memory)
		return stagingBuffer{}, log.Err(ctx, err, "Failed to bind staging buffer memory")
	}
	return stagingBuffer{buffer: buffer, memory: memory, coherent: coherent}, nil
}
