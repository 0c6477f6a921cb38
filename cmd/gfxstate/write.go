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
	"github.com/AaronHaganAMD/gfxreconstruct/capture/format"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/state"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/statefile"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/statewriter"
	"github.com/AaronHaganAMD/gfxreconstruct/capture/stream"
	"github.com/AaronHaganAMD/gfxreconstruct/core/data/endian"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type writeOptions struct {
	*rootOptions
	Output      string
	Compression string
	ThreadID    uint64
	NoMemory    bool
	Frame       uint64
	Stats       bool
}

func newWriteCommand(root *rootOptions) *cobra.Command {
	opts := &writeOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "write STATEFILE",
		Short: "Write the state described by a state file to a capture file",
		Long: `Replay the creation and destruction events of a YAML state file against a
software device, then write the calls that recreate every live object to a
capture file, preceded by the file header.

Examples:
  gfxstate write scene.yaml --output scene.gfxr
  gfxstate write scene.yaml --output scene.gfxr --compression zstd --stats`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "capture file to write (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().StringVar(&opts.Compression, "compression", "", "block compression (none|zstd|s2|zlib)")
	cmd.Flags().Uint64Var(&opts.ThreadID, "thread-id", 0, "thread id recorded in every block")
	cmd.Flags().BoolVar(&opts.NoMemory, "no-memory", false, "do not capture device memory content")
	cmd.Flags().Uint64Var(&opts.Frame, "frame", 0, "frame number of the state markers")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print write statistics")
	return cmd
}

// config returns the writer configuration with the command line flags
// applied over the configuration file.
func (o *writeOptions) config(cmd *cobra.Command) (statewriter.Config, error) {
	cfg, err := o.writerConfig()
	if err != nil {
		return cfg, err
	}
	if o.Compression != "" {
		c, err := format.ParseCompressionType(o.Compression)
		if err != nil {
			return cfg, err
		}
		cfg.Compression = c
	}
	if cmd.Flags().Changed("thread-id") {
		cfg.ThreadID = format.ThreadID(o.ThreadID)
	}
	if o.NoMemory {
		cfg.SnapshotMemory = false
	}
	return cfg, nil
}

func runWrite(cmd *cobra.Command, opts *writeOptions, path string) (err error) {
	ctx, err := opts.newContext(cmd)
	if err != nil {
		return err
	}
	ctx = log.Enter(ctx, "write")
	cfg, err := opts.config(cmd)
	if err != nil {
		return err
	}

	f, err := statefile.Load(path)
	if err != nil {
		return err
	}
	session, err := statefile.Replay(ctx, f)
	if err != nil {
		return errors.Wrapf(err, "Replaying %v", path)
	}

	out, err := stream.CreateFile(opts.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	hw := endian.Writer(out, format.ByteOrder)
	format.NewFileHeader(cfg.Compression).Write(hw)
	if err := hw.Error(); err != nil {
		return errors.Wrap(err, "Writing file header")
	}

	w, err := statewriter.New(out, session.Tables, cfg, nil)
	if err != nil {
		return err
	}
	w.SetFrameNumber(opts.Frame)
	session.Tracker.Freeze(func(t *state.Table) {
		err = w.WriteState(ctx, t)
	})
	if err != nil {
		return err
	}
	log.I(ctx, "Wrote state of %d objects to %v", session.Tracker.Len(), opts.Output)

	if opts.Stats {
		return printStats(cmd.OutOrStdout(), w.Metrics().Registry)
	}
	return nil
}
