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

package log

import (
	"fmt"
	"strings"
	"time"
)

// Style provides customization for printing messages.
type Style struct {
	Name      string        // Name of the style.
	Timestamp bool          // If true, the timestamp will be printed if part of the message.
	Tag       bool          // If true, the tag will be printed if part of the message.
	Trace     bool          // If true, the trace will be printed if part of the message.
	Process   bool          // If true, the process will be printed if part of the message.
	Severity  SeverityStyle // How the severity of the message will be printed.
	Values    ValueStyle    // How the values of the message will be printed.
}

// SeverityStyle is an enumerator of ways that severities can be printed.
type SeverityStyle int

const (
	// NoSeverity disables the printing of the severity.
	NoSeverity SeverityStyle = iota
	// SeverityShort displays the severity as a single character.
	SeverityShort
	// SeverityLong displays the severity in its full name.
	SeverityLong
)

// ValueStyle is an enumerator of ways that values can be printed.
type ValueStyle int

const (
	// NoValues disables the printing of values.
	NoValues ValueStyle = iota
	// ValuesSingleLine displays all values on a single line.
	ValuesSingleLine
	// ValuesMultiLine displays each value on a separate line.
	ValuesMultiLine
)

var (
	// Raw is a style that only prints the text of the message.
	Raw = Style{Name: "raw"}

	// Brief is a style that only prints the text and short severity of the
	// message.
	Brief = Style{Name: "brief", Severity: SeverityShort}

	// Normal is a style that prints the timestamp, tag, trace, process and
	// short severity.
	Normal = Style{
		Name:      "normal",
		Timestamp: true,
		Tag:       true,
		Trace:     true,
		Process:   true,
		Severity:  SeverityShort,
		Values:    ValuesSingleLine,
	}

	// Detailed is a style that prints the timestamp, tag, trace, process,
	// long severity and multi-line values.
	Detailed = Style{
		Name:      "detailed",
		Timestamp: true,
		Tag:       true,
		Trace:     true,
		Process:   true,
		Severity:  SeverityLong,
		Values:    ValuesMultiLine,
	}

	styles = []Style{Raw, Brief, Normal, Detailed}
)

func (s Style) String() string { return s.Name }

// Styles returns the names of the known styles.
func Styles() []string {
	out := make([]string, len(styles))
	for i, s := range styles {
		out[i] = s.Name
	}
	return out
}

// FindStyle returns the known style with the given name.
func FindStyle(name string) (Style, bool) {
	for _, s := range styles {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Style{}, false
}

// Handler returns a new Handler that formats messages with the style s and
// passes them to w.
func (s Style) Handler(w Writer) Handler {
	return NewHandler(func(m *Message) { w(s.Print(m), m.Severity) }, nil)
}

// Print returns the message m printed with the style s.
func (s Style) Print(m *Message) string {
	parts := make([]string, 0, 8)
	if s.Timestamp && !m.Time.IsZero() {
		parts = append(parts, HHMMSSsss(m.Time))
	}
	switch s.Severity {
	case SeverityShort:
		parts = append(parts, m.Severity.Short()+":")
	case SeverityLong:
		parts = append(parts, m.Severity.String()+":")
	}
	if s.Trace && len(m.Trace) > 0 {
		parts = append(parts, "["+strings.Join(m.Trace, "->")+"]")
	}
	if s.Tag && m.Tag != "" {
		parts = append(parts, "["+m.Tag+"]")
	}
	if s.Process && m.Process != "" {
		parts = append(parts, "<"+m.Process+">")
	}
	parts = append(parts, m.Text)
	out := strings.Join(parts, " ")
	if len(m.Values) == 0 {
		return out
	}
	switch s.Values {
	case ValuesSingleLine:
		kv := make([]string, len(m.Values))
		for i, v := range m.Values {
			kv[i] = fmt.Sprintf("%v: %v", v.Name, v.Value)
		}
		out += " (" + strings.Join(kv, ", ") + ")"
	case ValuesMultiLine:
		for _, v := range m.Values {
			out += fmt.Sprintf("\n  %v: %v", v.Name, v.Value)
		}
	}
	return out
}

// HHMMSSsss prints the time as a HH:MM:SS.sss
func HHMMSSsss(t time.Time) string {
	return fmt.Sprintf("%.2d:%.2d:%.2d.%.3d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e6)
}
