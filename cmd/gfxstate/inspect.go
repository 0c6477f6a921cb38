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

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/compress"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	*rootOptions
	Verify bool
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "inspect CAPTUREFILE",
		Short: "List the blocks of a capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "decompress every compressed block")
	return cmd
}

func runInspect(cmd *cobra.Command, opts *inspectOptions, path string) error {
	ctx, err := opts.newContext(cmd)
	if err != nil {
		return err
	}
	ctx = log.Enter(ctx, "inspect")

	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "Opening capture file")
	}
	defer file.Close()

	r := format.NewBlockReader(bufio.NewReader(file))
	header, err := r.FileHeader()
	if err != nil {
		return err
	}
	if opts.Verify {
		c, err := compress.New(header.Compression)
		if err != nil {
			return err
		}
		if c != nil {
			r.Decompressor = c
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version %d.%d, compression %v\n", header.MajorVersion, header.MinorVersion, header.Compression)
	count := 0
	for {
		b, err := r.Next()
		if err == io.EOF {
			break
		}
		if errors.Cause(err) == format.ErrUnknownBlock {
			log.W(ctx, "%v", err)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%6d %s\n", count, describe(b))
		count++
	}
	fmt.Fprintf(out, "%d blocks\n", count)
	return nil
}

// describe returns a one line summary of a block.
func describe(b *format.Block) string {
	size := fmt.Sprintf("%d bytes", len(b.Payload))
	if b.Header.Type.Compressed() {
		size = fmt.Sprintf("%d bytes, %d uncompressed", len(b.Payload), b.UncompressedSize)
	}
	switch b.Header.Type.Base() {
	case format.StateMarkerBlock, format.FrameMarkerBlock:
		return fmt.Sprintf("%-26v %v frame %d", b.Header.Type, b.Marker, b.FrameNumber)
	case format.FunctionCallBlock:
		return fmt.Sprintf("%-26v %-36v thread %d, %s", b.Header.Type, b.CallID, b.ThreadID, size)
	case format.MetaDataBlock:
		if b.MetaType == format.FillMemoryCommand {
			return fmt.Sprintf("%-26v %v memory %d offset %d, %s", b.Header.Type, b.MetaType, b.MemoryID, b.Offset, size)
		}
		return fmt.Sprintf("%-26v %v, %s", b.Header.Type, b.MetaType, size)
	default:
		return fmt.Sprintf("%v, %s", b.Header.Type, size)
	}
}
