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

// Package endian implements binary.Reader and binary.Writer for a fixed byte
// order.
package endian

import (
	eb "encoding/binary"
	"io"

	"github.com/AaronHaganAMD/gfxreconstruct/core/data/binary"
	"github.com/pkg/errors"
)

// Endian is a byte order.
type Endian int

const (
	// Little is least significant byte first.
	Little Endian = iota
	// Big is most significant byte first.
	Big
)

func (e Endian) byteOrder() eb.ByteOrder {
	if e == Big {
		return eb.BigEndian
	}
	return eb.LittleEndian
}

// Uint64 decodes the first 8 bytes of b.
func (e Endian) Uint64(b []byte) uint64 { return e.byteOrder().Uint64(b) }

// Reader creates a binary.Reader that reads from the provided io.Reader, with
// the specified byte order.
func Reader(r io.Reader, e Endian) binary.Reader {
	return &reader{reader: r, byteOrder: e.byteOrder()}
}

// Writer creates a binary.Writer that writes to the supplied stream, with the
// specified byte order.
func Writer(w io.Writer, e Endian) binary.Writer {
	return &writer{writer: w, byteOrder: e.byteOrder()}
}

type reader struct {
	reader    io.Reader
	tmp       [8]byte
	byteOrder eb.ByteOrder
	err       error
}

type writer struct {
	writer    io.Writer
	tmp       [8]byte
	byteOrder eb.ByteOrder
	err       error
}

func (r *reader) Read(p []byte) (int, error) { return r.reader.Read(p) }

func (r *reader) Data(p []byte) {
	if r.err != nil {
		return
	}
	if n, err := io.ReadFull(r.reader, p); err != nil {
		r.err = errors.Wrapf(err, "after reading %d of %d bytes", n, len(p))
	}
}

// fill reads n bytes into tmp, returning false once the reader has failed.
func (r *reader) fill(n int) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.reader, r.tmp[:n]); err != nil {
		r.err = err
		for i := range r.tmp {
			r.tmp[i] = 0
		}
		return false
	}
	return true
}

func (r *reader) Bool() bool { return r.Uint8() != 0 }

func (r *reader) Uint8() uint8 {
	if !r.fill(1) {
		return 0
	}
	return r.tmp[0]
}

func (r *reader) Uint16() uint16 {
	if !r.fill(2) {
		return 0
	}
	return r.byteOrder.Uint16(r.tmp[:])
}

func (r *reader) Uint32() uint32 {
	if !r.fill(4) {
		return 0
	}
	return r.byteOrder.Uint32(r.tmp[:])
}

func (r *reader) Int64() int64 { return int64(r.Uint64()) }

func (r *reader) Uint64() uint64 {
	if !r.fill(8) {
		return 0
	}
	return r.byteOrder.Uint64(r.tmp[:])
}

func (r *reader) Error() error { return r.err }

func (r *reader) SetError(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (w *writer) Data(data []byte) {
	if w.err != nil {
		return
	}
	n, err := w.writer.Write(data)
	switch {
	case err != nil:
		w.err = err
	case n != len(data):
		w.err = io.ErrShortWrite
	}
}

func (w *writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *writer) Uint8(v uint8) {
	w.tmp[0] = v
	w.Data(w.tmp[:1])
}

func (w *writer) Uint16(v uint16) {
	w.byteOrder.PutUint16(w.tmp[:], v)
	w.Data(w.tmp[:2])
}

func (w *writer) Uint32(v uint32) {
	w.byteOrder.PutUint32(w.tmp[:], v)
	w.Data(w.tmp[:4])
}

func (w *writer) Int64(v int64) { w.Uint64(uint64(v)) }

func (w *writer) Uint64(v uint64) {
	w.byteOrder.PutUint64(w.tmp[:], v)
	w.Data(w.tmp[:8])
}

func (w *writer) Error() error { return w.err }

func (w *writer) SetError(err error) {
	if w.err == nil {
		w.err = err
	}
}
