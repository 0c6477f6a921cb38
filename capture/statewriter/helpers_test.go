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

package statewriter_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/dispatch"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/state"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/statewriter"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/wrappers"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/endian"
)

// deviceID is the identity of the device every test object belongs to.
const deviceID = format.HandleID(2)

const testThread = format.ThreadID(7)

// params returns creation parameters for an object: the owning device, the
// object's own identity and any extra bytes.
func params(id format.HandleID, extra ...byte) []byte {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, format.ByteOrder)
	w.Uint64(uint64(deviceID))
	w.Uint64(uint64(id))
	w.Data(extra)
	return buf.Bytes()
}

func object(kind wrappers.Kind, h format.Handle, id format.HandleID, call format.ApiCallID) wrappers.Object {
	o := wrappers.New(kind)
	b := o.Base()
	b.Handle, b.HandleID, b.CreateCallID = h, id, call
	b.CreateParameters = params(id)
	return o
}

// dependency returns a reference to an object of the given identity that
// is not in any table.
func dependency(h format.Handle, id format.HandleID, call format.ApiCallID) wrappers.Dependency {
	return wrappers.Dependency{
		Ref:              wrappers.Ref{Handle: h, HandleID: id},
		CreateCallID:     call,
		CreateParameters: params(id),
	}
}

func config() statewriter.Config {
	return statewriter.Config{ThreadID: testThread, Compression: format.CompressionNone, SnapshotMemory: true}
}

// write runs a write pass over table and returns the decoded blocks.
func write(ctx context.Context, table *state.Table, tables *dispatch.Tables, cfg statewriter.Config) ([]*format.Block, *statewriter.Writer) {
	out := stream.NewMemoryOutputStream(1024)
	w, err := statewriter.New(out, tables, cfg, nil)
	assert.For(ctx, "New").ThatError(err).Succeeded()
	assert.For(ctx, "WriteState").ThatError(w.WriteState(ctx, table)).Succeeded()
	return decode(ctx, out.Data()), w
}

func decode(ctx context.Context, data []byte) []*format.Block {
	r := format.NewBlockReader(bytes.NewReader(data))
	var blocks []*format.Block
	for {
		b, err := r.Next()
		if err == io.EOF {
			return blocks
		}
		if !assert.For(ctx, "Next").ThatError(err).Succeeded() {
			return blocks
		}
		blocks = append(blocks, b)
	}
}

// call is a short form of a function call block for comparisons.
type call struct {
	ID format.ApiCallID
	// Object is the second parameter, the object's identity for creation
	// and destroy calls.
	Object format.HandleID
}

func (c call) String() string { return fmt.Sprintf("%v(%d)", c.ID, c.Object) }

func calls(blocks []*format.Block) []call {
	var out []call
	for _, b := range blocks {
		if b.Header.Type.Base() != format.FunctionCallBlock {
			continue
		}
		c := call{ID: b.CallID}
		if len(b.Data) >= 16 {
			c.Object = format.HandleID(format.ByteOrder.Uint64(b.Data[8:]))
		}
		out = append(out, c)
	}
	return out
}

func callString(cs []call) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func fills(blocks []*format.Block) []*format.Block {
	var out []*format.Block
	for _, b := range blocks {
		if b.Header.Type.Base() == format.MetaDataBlock && b.MetaType == format.FillMemoryCommand {
			out = append(out, b)
		}
	}
	return out
}

// counter returns the value of a writer counter with the given label value.
func counter(w *statewriter.Writer, name, label string) float64 {
	families, err := w.Metrics().Registry.Gather()
	if err != nil {
		return -1
	}
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			match := label == ""
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					match = true
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
