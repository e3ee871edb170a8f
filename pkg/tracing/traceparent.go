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
	"encoding/hex"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// GenerateTraceparent renders a SpanContext as a W3C traceparent string,
// "00-{trace_id}-{span_id}-{trace_flags}". The bus publisher stamps this
// onto message headers so consumers can link their spans back to the
// publishing operation.
func GenerateTraceparent(sc trace.SpanContext) string {
	if !sc.IsValid() {
		return ""
	}

	traceFlags := "00"
	if sc.TraceFlags().IsSampled() {
		traceFlags = "01"
	}

	return fmt.Sprintf("00-%s-%s-%s", sc.TraceID().String(), sc.SpanID().String(), traceFlags)
}

// ParseTraceparent parses a W3C traceparent string into a remote SpanContext.
func ParseTraceparent(traceparent string) (trace.SpanContext, error) {
	if traceparent == "" {
		return trace.SpanContext{}, fmt.Errorf("traceparent is empty")
	}

	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return trace.SpanContext{}, fmt.Errorf("invalid traceparent format: expected 4 parts, got %d", len(parts))
	}

	version := parts[0]
	traceIDStr := parts[1]
	spanIDStr := parts[2]
	traceFlagsStr := parts[3]

	if version != "00" {
		return trace.SpanContext{}, fmt.Errorf("unsupported traceparent version: %s (only '00' is supported)", version)
	}

	if len(traceIDStr) != 32 {
		return trace.SpanContext{}, fmt.Errorf("invalid trace_id length: expected 32, got %d", len(traceIDStr))
	}
	traceIDBytes, err := hex.DecodeString(traceIDStr)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("invalid trace_id hex: %w", err)
	}
	var traceID trace.TraceID
	copy(traceID[:], traceIDBytes)

	if len(spanIDStr) != 16 {
		return trace.SpanContext{}, fmt.Errorf("invalid span_id length: expected 16, got %d", len(spanIDStr))
	}
	spanIDBytes, err := hex.DecodeString(spanIDStr)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("invalid span_id hex: %w", err)
	}
	var spanID trace.SpanID
	copy(spanID[:], spanIDBytes)

	if len(traceFlagsStr) != 2 {
		return trace.SpanContext{}, fmt.Errorf("invalid trace_flags length: expected 2, got %d", len(traceFlagsStr))
	}
	traceFlagsBytes, err := hex.DecodeString(traceFlagsStr)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("invalid trace_flags hex: %w", err)
	}
	var traceFlags trace.TraceFlags
	if len(traceFlagsBytes) > 0 {
		traceFlags = trace.TraceFlags(traceFlagsBytes[0])
	}

	spanContext := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: traceFlags,
		Remote:     true,
	})

	if !spanContext.IsValid() {
		return trace.SpanContext{}, fmt.Errorf("parsed span context is invalid")
	}

	return spanContext, nil
}
