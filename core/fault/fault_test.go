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

package fault_test

import (
	"testing"

	"github.com/AaronHaganAMD/gfxreconstruct/core/fault"
)

const (
	anError      = fault.Const("Some message")
	anotherError = fault.Const("another")
)

func TestConst(t *testing.T) {
	if anError.Error() != "Some message" {
		t.Errorf("Const has the wrong string form, got %q", anError)
	}
}

func TestList(t *testing.T) {
	list := fault.List{}
	if list.First() != nil {
		t.Errorf("First on empty error list did not return nil")
	}
	list.Collect(nil)
	if len(list) != 0 {
		t.Errorf("Collecting nil grew the list")
	}
	list.Collect(anError)
	list.Collect(anotherError)
	if len(list) != 2 {
		t.Errorf("Adding two errors did not make the list length 2")
	}
	if list.First() != anError {
		t.Errorf("First did not return the first error, got %v", list.First())
	}
}

func TestOne(t *testing.T) {
	one := fault.One{}
	if one.First() != nil || one.Failed() {
		t.Errorf("Empty One reported an error")
	}
	one.Collect(anError)
	one.Collect(anotherError)
	if one.First() != anError {
		t.Errorf("First did not return the first error, got %v", one.First())
	}
	if !one.Failed() {
		t.Errorf("One with an error did not report failure")
	}
}
