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

// Package stream provides the byte sinks capture blocks are written to.
package stream

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// OutputStream is an ordered byte sink.
type OutputStream interface {
	io.Writer
	// Flush pushes any buffered bytes to the underlying storage.
	Flush() error
}

// FileOutputStream is a buffered OutputStream backed by a file.
type FileOutputStream struct {
	file *os.File
	buf  *bufio.Writer
}

const fileBufferSize = 64 * 1024

// CreateFile creates (or truncates) the file at path and returns a stream
// writing to it.
func CreateFile(path string) (*FileOutputStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Creating capture file %v", path)
	}
	return &FileOutputStream{file: f, buf: bufio.NewWriterSize(f, fileBufferSize)}, nil
}

// Write implements io.Writer.
func (s *FileOutputStream) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Flush writes buffered data to the file.
func (s *FileOutputStream) Flush() error {
	return errors.Wrap(s.buf.Flush(), "Flushing capture file")
}

// Close flushes and closes the file.
func (s *FileOutputStream) Close() error {
	flushErr := s.Flush()
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "Closing capture file")
	}
	return flushErr
}

// MemoryOutputStream is an OutputStream that keeps everything written to it
// in a reusable buffer.
type MemoryOutputStream struct {
	data []byte
}

// NewMemoryOutputStream returns an empty stream with room for capacity bytes.
func NewMemoryOutputStream(capacity int) *MemoryOutputStream {
	return &MemoryOutputStream{data: make([]byte, 0, capacity)}
}

// Write appends p to the stream.
func (s *MemoryOutputStream) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

// Flush does nothing.
func (s *MemoryOutputStream) Flush() error { return nil }

// Data returns the bytes written since the last Reset.
// The slice is only valid until the next Write or Reset.
func (s *MemoryOutputStream) Data() []byte { return s.data }

// Size returns the number of bytes written since the last Reset.
func (s *MemoryOutputStream) Size() int { return len(s.data) }

// Reset empties the stream, keeping its storage.
func (s *MemoryOutputStream) Reset() { s.data = s.data[:0] }
