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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/AaronHaganAMD/gfxreconstruct/capture/statewriter"
	"github.com/AaronHaganAMD/gfxreconstruct/core/log"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	LogStyle string
	LogLevel string
	Config   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gfxstate",
		Short:         "Write and inspect Vulkan capture state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.LogStyle, "log-style", "",
		fmt.Sprintf("log style (%s); defaults to normal on a terminal, brief otherwise", strings.Join(log.Styles(), "|")))
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "lowest severity logged")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML state writer configuration file")

	cmd.AddCommand(newWriteCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	return cmd
}

// newContext returns the logging context of a command run.
func (o *rootOptions) newContext(cmd *cobra.Command) (context.Context, error) {
	style := log.Brief
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		style = log.Normal
	}
	if o.LogStyle != "" {
		s, ok := log.FindStyle(o.LogStyle)
		if !ok {
			return nil, errors.Errorf("Unknown log style %q", o.LogStyle)
		}
		style = s
	}
	severity, ok := log.ParseSeverity(o.LogLevel)
	if !ok {
		return nil, errors.Errorf("Unknown log level %q", o.LogLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.PutProcess(ctx, "gfxstate")
	ctx = log.PutHandler(ctx, style.Handler(log.To(cmd.ErrOrStderr())))
	ctx = log.PutFilter(ctx, log.SeverityFilter(severity))
	return ctx, nil
}

// writerConfig returns the state writer configuration, read from the
// configuration file if one was given.
func (o *rootOptions) writerConfig() (statewriter.Config, error) {
	cfg := statewriter.DefaultConfig()
	if o.Config == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(o.Config)
	if err != nil {
		return cfg, errors.Wrap(err, "Reading configuration")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "Parsing configuration %v", o.Config)
	}
	return cfg, nil
}
