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
	"context"
	"strings"
)

// Err returns an error wrapping cause, tagged with the scopes entered on ctx.
func Err(ctx context.Context, cause error, msg string) error {
	return From(ctx).Err(cause, msg)
}

// Errf is Err with a formatted message.
func Errf(ctx context.Context, cause error, fmt string, args ...interface{}) error {
	return From(ctx).Errf(cause, fmt, args...)
}

// Err returns an error wrapping cause, tagged with the logger's trace.
func (l *Logger) Err(cause error, msg string) error {
	return &err{cause, l.Message(Error, false, msg)}
}

// Errf is Err with a formatted message.
func (l *Logger) Errf(cause error, fmt string, args ...interface{}) error {
	return &err{cause, l.Messagef(Error, false, fmt, args...)}
}

type err struct {
	cause error
	msg   *Message
}

// Cause returns the wrapped error, for use with errors.Cause.
func (e *err) Cause() error { return e.cause }

// Unwrap returns the wrapped error, for use with errors.Is.
func (e *err) Unwrap() error { return e.cause }

// Message returns the message the error was created with.
func (e *err) Message() *Message { return e.msg }

// Error formats as "trace: msg: cause" on a single line.
func (e *err) Error() string {
	sb := strings.Builder{}
	if n := len(e.msg.Trace); n > 0 {
		sb.WriteString(e.msg.Trace[n-1])
		sb.WriteString(": ")
	}
	sb.WriteString(e.msg.Text)
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}
