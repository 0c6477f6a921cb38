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

package assert_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/core/assert"
	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
	"github.com/pkg/errors"
)

type fakeT struct {
	fatal bytes.Buffer
	error bytes.Buffer
	log   bytes.Buffer
}

func (f *fakeT) Fatal(args ...interface{}) { fmt.Fprintln(&f.fatal, args...) }
func (f *fakeT) Error(args ...interface{}) { fmt.Fprintln(&f.error, args...) }
func (f *fakeT) Log(args ...interface{})   { fmt.Fprintln(&f.log, args...) }

func TestManager(t *testing.T) {
	const (
		expectLog   = "Info:manager test\n    log to info\n"
		expectError = "Error:manager test\n    log to error\n"
		expectFatal = "Critical:manager test\n    log to fatal\n"
	)
	fake := &fakeT{}
	assert.To(fake).For("manager test").Log("log to info")
	assert.To(fake).For("manager test").Error("log to error")
	assert.To(fake).For("manager test").Fatal("log to fatal")
	if fake.log.String() != expectLog {
		t.Errorf("For info got %q expected %q", fake.log.String(), expectLog)
	}
	if fake.error.String() != expectError {
		t.Errorf("For error got %q expected %q", fake.error.String(), expectError)
	}
	if fake.fatal.String() != expectFatal {
		t.Errorf("For fatal got %q expected %q", fake.fatal.String(), expectFatal)
	}
}

func TestPassingAssertionsAreSilent(t *testing.T) {
	fake := &fakeT{}
	a := assert.To(fake)
	a.For("value").That(3).Equals(3)
	a.For("nil").That((*int)(nil)).IsNil()
	a.For("deep").That([]int{1, 2}).DeepEquals([]int{1, 2})
	a.For("slice").ThatSlice([]string{"a", "b"}).Equals([]string{"a", "b"})
	a.For("string").ThatString([]byte("abc")).HasPrefix("ab")
	a.For("bytes").ThatBytes([]byte{1, 2}).Equals([]byte{1, 2})
	a.For("error").ThatError(nil).Succeeded()
	if fake.error.Len() != 0 {
		t.Errorf("Unexpected failures: %s", fake.error.String())
	}
}

func TestFailingAssertionsReport(t *testing.T) {
	const cause = fault.Const("cause")
	for _, test := range []struct {
		name   string
		run    func(a assert.Manager) bool
		expect string
	}{
		{"equals", func(a assert.Manager) bool { return a.For("equals").That(1).Equals(2) }, "Expect =="},
		{"length", func(a assert.Manager) bool { return a.For("length").ThatSlice([]int{1}).IsLength(2) }, "length =="},
		{"missing", func(a assert.Manager) bool {
			return a.For("missing").ThatSlice([]int{1}).Equals([]int{1, 2})
		}, "-"},
		{"bytes", func(a assert.Manager) bool { return a.For("bytes").ThatBytes([]byte{1, 2}).Equals([]byte{1, 3}) }, "Offset"},
		{"cause", func(a assert.Manager) bool {
			return a.For("cause").ThatError(errors.Wrap(fault.Const("other"), "ctx")).HasCause(cause)
		}, "Cause"},
	} {
		fake := &fakeT{}
		if test.run(assert.To(fake)) {
			t.Errorf("%s: assertion passed unexpectedly", test.name)
		}
		if !strings.Contains(fake.error.String(), test.expect) {
			t.Errorf("%s: output %q does not contain %q", test.name, fake.error.String(), test.expect)
		}
	}
}
