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
	"github.com/prometheus/client_golang/prometheus"
)

const (
	snapshotOK      = "ok"
	snapshotFailed  = "failed"
	snapshotSkipped = "skipped"
)

// Metrics counts the work done by a Writer.
type Metrics struct {
	// Registry holds the collectors below.
	Registry *prometheus.Registry

	blocks       *prometheus.CounterVec
	bytes        prometheus.Counter
	temporaries  *prometheus.CounterVec
	deduplicated prometheus.Counter
	snapshots    *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics returns a set of writer metrics registered on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		blocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gfxr",
				Subsystem: "state_writer",
				Name:      "blocks_total",
				Help:      "Total number of blocks written, by block type.",
			},
			[]string{"type"},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gfxr",
				Subsystem: "state_writer",
				Name:      "bytes_total",
				Help:      "Total number of bytes written, including block headers.",
			},
		),
		temporaries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gfxr",
				Subsystem: "state_writer",
				Name:      "temporary_objects_total",
				Help:      "Total number of destroyed dependencies recreated for the length of a pass.",
			},
			[]string{"kind"},
		),
		deduplicated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gfxr",
				Subsystem: "state_writer",
				Name:      "duplicate_create_calls_total",
				Help:      "Total number of creation calls skipped because an identical call was already written.",
			},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gfxr",
				Subsystem: "state_writer",
				Name:      "memory_snapshots_total",
				Help:      "Total number of memory content captures, by result.",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gfxr",
				Subsystem: "state_writer",
				Name:      "pass_duration_seconds",
				Help:      "Duration of state write passes.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),
	}
	m.Registry.MustRegister(m.blocks, m.bytes, m.temporaries, m.deduplicated, m.snapshots, m.duration)
	return m
}
