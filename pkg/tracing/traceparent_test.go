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

package tracing

import (
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestGenerateTraceparent(t *testing.T) {
	tests := []struct {
		name     string
		sc       trace.SpanContext
		expected string
	}{
		{
			name: "valid sampled span context",
			sc: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
				SpanID:     trace.SpanID{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18},
				TraceFlags: trace.FlagsSampled,
			}),
			expected: "00-0102030405060708090a0b0c0d0e0f10-1112131415161718-01",
		},
		{
			name: "valid unsampled span context",
			sc: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    trace.TraceID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00},
				SpanID:     trace.SpanID{0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8},
				TraceFlags: 0,
			}),
			expected: "00-aabbccddeeff11223344556677889900-a1a2a3a4a5a6a7a8-00",
		},
		{
			name:     "invalid span context",
			sc:       trace.SpanContext{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateTraceparent(tt.sc)
			if result != tt.expected {
				t.Errorf("GenerateTraceparent() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestParseTraceparentRoundTrip(t *testing.T) {
	original := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18},
		TraceFlags: trace.FlagsSampled,
	})

	parsed, err := ParseTraceparent(GenerateTraceparent(original))
	if err != nil {
		t.Fatalf("ParseTraceparent returned error: %v", err)
	}

	if parsed.TraceID() != original.TraceID() {
		t.Errorf("TraceID mismatch: got %s, want %s", parsed.TraceID(), original.TraceID())
	}
	if parsed.SpanID() != original.SpanID() {
		t.Errorf("SpanID mismatch: got %s, want %s", parsed.SpanID(), original.SpanID())
	}
	if !parsed.TraceFlags().IsSampled() {
		t.Errorf("expected sampled flag to survive the round trip")
	}
	if !parsed.IsRemote() {
		t.Errorf("expected parsed span context to be marked remote")
	}
}

func TestParseTraceparentRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too few parts", "00-abc-def"},
		{"bad version", "01-0102030405060708090a0b0c0d0e0f10-1112131415161718-01"},
		{"short trace id", "00-0102-1112131415161718-01"},
		{"short span id", "00-0102030405060708090a0b0c0d0e0f10-1112-01"},
		{"non-hex trace id", "00-zz02030405060708090a0b0c0d0e0f10-1112131415161718-01"},
		{"all-zero ids", "00-00000000000000000000000000000000-0000000000000000-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTraceparent(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}
