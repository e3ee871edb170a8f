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
	"encoding/json"
	"errors"
	"net/http"

	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/lifecycle"
	"github.com/skynet-mc/skynet/pkg/repository"
)

// apiError carries an HTTP status and a client-safe message through the
// handler call chain.
type apiError struct {
	status  int
	message string
	cause   error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error { return e.cause }

func errUnauthorized(message string) *apiError {
	return &apiError{status: http.StatusUnauthorized, message: message}
}

func errNotFound(message string) *apiError {
	return &apiError{status: http.StatusNotFound, message: message}
}

func errBadRequest(message string, cause error) *apiError {
	return &apiError{status: http.StatusBadRequest, message: message, cause: cause}
}

func errConflict(message string) *apiError {
	return &apiError{status: http.StatusConflict, message: message}
}

func errUpstream(message string, cause error) *apiError {
	return &apiError{status: http.StatusBadGateway, message: message, cause: cause}
}

// writeError translates any handler error into the API taxonomy. Unknown
// errors log their root cause and surface a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var api *apiError
	switch {
	case errors.As(err, &api):
	case errors.Is(err, repository.ErrNotFound):
		api = errNotFound("not found")
	case errors.Is(err, lifecycle.ErrAlreadyApplied):
		api = errConflict("sanction already applied")
	default:
		klog.Errorf("request failed: %v", err)
		api = &apiError{status: http.StatusInternalServerError, message: "internal error"}
	}
	if api.cause != nil {
		klog.V(2).Infof("request error: %v", api)
	}
	respondJSON(w, api.status, map[string]string{"error": api.message})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.Errorf("encode response: %v", err)
	}
}

func decodeJSON(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return errBadRequest("malformed body", err)
	}
	return nil
}
