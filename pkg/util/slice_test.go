/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package util

import (
	"reflect"
	"testing"
)

func TestIsStringInList(t *testing.T) {
	tests := []struct {
		str    string
		list   []string
		result bool
	}{
		{
			str:    "lobby",
			list:   []string{"lobby", "bedwars"},
			result: true,
		},
		{
			str:    "skywars",
			list:   []string{"lobby", "bedwars"},
			result: false,
		},
		{
			str:    "lobby",
			list:   nil,
			result: false,
		},
	}

	for _, test := range tests {
		expect := test.result
		actual := IsStringInList(test.str, test.list)
		if expect != actual {
			t.Errorf("expect %v but got %v", expect, actual)
		}
	}
}

func TestGetSliceInANotInB(t *testing.T) {
	tests := []struct {
		a      []string
		b      []string
		result []string
	}{
		{
			a:      []string{"lobby", "bedwars", "skywars"},
			b:      []string{"bedwars"},
			result: []string{"lobby", "skywars"},
		},
		{
			a:      []string{"lobby"},
			b:      []string{"lobby"},
			result: nil,
		},
		{
			a:      nil,
			b:      []string{"lobby"},
			result: nil,
		},
	}

	for _, test := range tests {
		expect := test.result
		actual := GetSliceInANotInB(test.a, test.b)
		if !reflect.DeepEqual(expect, actual) {
			t.Errorf("expect %v but got %v", expect, actual)
		}
	}
}

func TestRemoveRepeatString(t *testing.T) {
	tests := []struct {
		list   []string
		result []string
	}{
		{
			list:   []string{"a", "b", "a", "c", "b"},
			result: []string{"a", "b", "c"},
		},
		{
			list:   []string{"a"},
			result: []string{"a"},
		},
		{
			list:   nil,
			result: nil,
		},
	}

	for _, test := range tests {
		expect := test.result
		actual := RemoveRepeatString(test.list)
		if !reflect.DeepEqual(expect, actual) {
			t.Errorf("expect %v but got %v", expect, actual)
		}
	}
}
