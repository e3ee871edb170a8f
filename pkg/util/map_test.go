package util

import (
	"reflect"
	"testing"
)

func TestMergeMapString(t *testing.T) {
	tests := []struct {
		a      map[string]string
		b      map[string]string
		result map[string]string
	}{
		{
			a: map[string]string{
				"foo-A": "bar",
			},
			b: map[string]string{
				"foo-B": "bar",
			},
			result: map[string]string{
				"foo-A": "bar",
				"foo-B": "bar",
			},
		},
		{
			a: map[string]string{
				"foo-A": "bar",
			},
			b: map[string]string{
				"foo-A": "barB",
			},
			result: map[string]string{
				"foo-A": "barB",
			},
		},
		{
			a: map[string]string{},
			b: map[string]string{
				"foo-A": "barB",
			},
			result: map[string]string{
				"foo-A": "barB",
			},
		},
		{
			a: map[string]string{
				"foo-A": "bar",
			},
			b: map[string]string{},
			result: map[string]string{
				"foo-A": "bar",
			},
		},
		{
			result: nil,
		},
	}

	for _, test := range tests {
		expect := test.result
		actual := MergeMapString(test.a, test.b)
		if !reflect.DeepEqual(expect, actual) {
			t.Errorf("expect %v but got %v", expect, actual)
		}
	}
}

func TestSubMapByKeyPrefix(t *testing.T) {
	tests := []struct {
		m      map[string]string
		prefix string
		result map[string]string
	}{
		{
			m: map[string]string{
				"skynet-prop/gamemode": "solo",
				"skynet-prop/map":      "aztec",
				"skynet/kind":          "lobby",
			},
			prefix: "skynet-prop/",
			result: map[string]string{
				"gamemode": "solo",
				"map":      "aztec",
			},
		},
		{
			m: map[string]string{
				"skynet/kind": "lobby",
			},
			prefix: "skynet-prop/",
			result: nil,
		},
		{
			m: map[string]string{
				"skynet-prop/": "empty-key",
			},
			prefix: "skynet-prop/",
			result: nil,
		},
		{
			m:      nil,
			prefix: "skynet-prop/",
			result: nil,
		},
	}

	for _, test := range tests {
		expect := test.result
		actual := SubMapByKeyPrefix(test.m, test.prefix)
		if !reflect.DeepEqual(expect, actual) {
			t.Errorf("expect %v but got %v", expect, actual)
		}
	}
}
