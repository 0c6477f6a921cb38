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

// Package compress implements the block payload compressors.
package compress

import (
	"bytes"
	"io"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const (
	// ErrUnsupported is returned by New for compression types without a
	// Compressor.
	ErrUnsupported = fault.Const("Unsupported compression type")
	// ErrSizeMismatch is returned when a payload does not inflate to the
	// recorded size.
	ErrSizeMismatch = fault.Const("Decompressed size mismatch")
)

// Compressor compresses and decompresses whole block payloads.
type Compressor interface {
	// Type returns the file header compression type.
	Type() format.CompressionType
	// Compress encodes src, reusing the storage of dst, and returns the
	// encoded bytes.
	Compress(dst, src []byte) ([]byte, error)
	// Decompress inflates src, which must decode to exactly size bytes,
	// reusing the storage of dst.
	Decompress(dst, src []byte, size int) ([]byte, error)
}

// New returns the Compressor for t. CompressionNone returns a nil Compressor.
func New(t format.CompressionType) (Compressor, error) {
	switch t {
	case format.CompressionNone:
		return nil, nil
	case format.CompressionZstd:
		return Zstd{}, nil
	case format.CompressionS2:
		return S2{}, nil
	case format.CompressionZlib:
		return &Zlib{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%v", t)
	}
}

func checkSize(out []byte, size int) ([]byte, error) {
	if len(out) != size {
		return nil, errors.Wrapf(ErrSizeMismatch, "got %d bytes, expected %d", len(out), size)
	}
	return out, nil
}

// zstd encoders and decoders are reusable and safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Zstd is the Zstandard Compressor.
type Zstd struct{}

// Type returns format.CompressionZstd.
func (Zstd) Type() format.CompressionType { return format.CompressionZstd }

// Compress implements Compressor.
func (Zstd) Compress(dst, src []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(src, dst[:0]), nil
}

// Decompress implements Compressor.
func (Zstd) Decompress(dst, src []byte, size int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, errors.Wrap(err, "zstd")
	}
	return checkSize(out, size)
}

// S2 is the S2 (Snappy compatible) block Compressor.
type S2 struct{}

// Type returns format.CompressionS2.
func (S2) Type() format.CompressionType { return format.CompressionS2 }

// Compress implements Compressor.
func (S2) Compress(dst, src []byte) ([]byte, error) {
	if n := s2.MaxEncodedLen(len(src)); cap(dst) < n {
		dst = make([]byte, n)
	}
	return s2.Encode(dst[:cap(dst)], src), nil
}

// Decompress implements Compressor.
func (S2) Decompress(dst, src []byte, size int) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, errors.Wrap(err, "s2")
	}
	if n != size {
		return nil, errors.Wrapf(ErrSizeMismatch, "s2: encoded length %d, expected %d", n, size)
	}
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	out, err := s2.Decode(dst[:cap(dst)], src)
	if err != nil {
		return nil, errors.Wrap(err, "s2")
	}
	return checkSize(out, size)
}

// Zlib is the zlib Compressor. It reuses one deflate writer and is not safe
// for concurrent use.
type Zlib struct {
	buf bytes.Buffer
	w   *zlib.Writer
}

// Type returns format.CompressionZlib.
func (*Zlib) Type() format.CompressionType { return format.CompressionZlib }

// Compress implements Compressor.
func (z *Zlib) Compress(dst, src []byte) ([]byte, error) {
	z.buf.Reset()
	if z.w == nil {
		z.w = zlib.NewWriter(&z.buf)
	} else {
		z.w.Reset(&z.buf)
	}
	if _, err := z.w.Write(src); err != nil {
		return nil, errors.Wrap(err, "zlib")
	}
	if err := z.w.Close(); err != nil {
		return nil, errors.Wrap(err, "zlib")
	}
	return append(dst[:0], z.buf.Bytes()...), nil
}

// Decompress implements Compressor.
func (*Zlib) Decompress(dst, src []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "zlib")
	}
	defer r.Close()
	if size < 0 {
		return nil, errors.Wrapf(ErrSizeMismatch, "zlib: size %d", size)
	}
	// The output grows with the inflated bytes, never ahead of them.
	buf := bytes.NewBuffer(dst[:0])
	if _, err := io.Copy(buf, io.LimitReader(r, int64(size)+1)); err != nil {
		return nil, errors.Wrap(err, "zlib")
	}
	return checkSize(buf.Bytes(), size)
}
