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

package logging

import (
	"context"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/skynet-mc/skynet/pkg/observability/fields"
)

// FromContextWithTrace returns a logger from the context with trace_id and
// span_id injected. If no span context is present it returns the plain
// context logger.
//
// Usage:
//
//	func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
//	    logger := logging.FromContextWithTrace(ctx)
//	    logger.Info("Reconciling server pod", "name", req.Name)
//	}
func FromContextWithTrace(ctx context.Context) logr.Logger {
	logger := log.FromContext(ctx)

	// The otelzap bridge core recognizes context.Context typed fields and uses
	// them for trace correlation. filterCore keeps this key out of console and
	// JSON output.
	logger = logger.WithValues("context", ctx)

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}

	spanCtx := span.SpanContext()
	return logger.WithValues(
		fields.FieldTraceID, spanCtx.TraceID().String(),
		fields.FieldSpanID, spanCtx.SpanID().String(),
	)
}
