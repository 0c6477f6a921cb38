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

package stream_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
)

func TestMemoryOutputStream(t *testing.T) {
	ctx := log.Testing(t)
	s := stream.NewMemoryOutputStream(4)
	s.Write([]byte{1, 2, 3})
	s.Write([]byte{4, 5})
	assert.For(ctx, "size").ThatInteger(s.Size()).Equals(5)
	assert.For(ctx, "data").ThatBytes(s.Data()).Equals([]byte{1, 2, 3, 4, 5})
	s.Reset()
	assert.For(ctx, "reset").ThatInteger(s.Size()).Equals(0)
	s.Write([]byte{9})
	assert.For(ctx, "reuse").ThatBytes(s.Data()).Equals([]byte{9})
}

func TestFileOutputStream(t *testing.T) {
	ctx := log.Testing(t)
	path := filepath.Join(t.TempDir(), "out.gfxr")
	s, err := stream.CreateFile(path)
	assert.For(ctx, "create").ThatError(err).Succeeded()
	s.Write([]byte("state"))
	assert.For(ctx, "close").ThatError(s.Close()).Succeeded()
	data, err := os.ReadFile(path)
	assert.For(ctx, "read").ThatError(err).Succeeded()
	assert.For(ctx, "content").ThatString(data).Equals("state")
}

func TestCreateFileFails(t *testing.T) {
	ctx := log.Testing(t)
	_, err := stream.CreateFile(filepath.Join(t.TempDir(), "missing", "out.gfxr"))
	assert.For(ctx, "create").ThatError(err).Failed()
}
