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

package web

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/telemetryfields"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

// requestLogger opens the per-request span, logs one line per request at
// verbosity 2 and classifies failed requests on the span.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := otel.Tracer("skynet").Start(r.Context(), "http request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		if ww.Status() >= http.StatusBadRequest {
			span.SetAttributes(tracing.AttrErrorType(errorTypeForStatus(ww.Status())))
		}
		klog.V(2).Infof("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func errorTypeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return telemetryfields.ErrorTypeUnauthorized
	case http.StatusNotFound:
		return telemetryfields.ErrorTypeNotFound
	case http.StatusBadRequest:
		return telemetryfields.ErrorTypeParameter
	case http.StatusBadGateway:
		return telemetryfields.ErrorTypeUpstream
	case http.StatusInternalServerError:
		return telemetryfields.ErrorTypeInternal
	default:
		return telemetryfields.NormalizeErrorType(http.StatusText(status))
	}
}

// recoverer turns handler panics into logged 500s instead of dropped
// connections.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				klog.Errorf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
