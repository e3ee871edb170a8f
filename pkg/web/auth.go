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
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Authorizer resolves a credential against the per-route permission string.
type Authorizer interface {
	HasRoutePermission(ctx context.Context, key uuid.UUID, permission string) (bool, error)
}

// parseCredential accepts `Server <uuid>`, `Proxy <uuid>`, or a bare uuid.
func parseCredential(header string) (uuid.UUID, bool) {
	value := header
	for _, prefix := range []string{"Server ", "Proxy "} {
		if rest, ok := strings.CutPrefix(header, prefix); ok {
			value = rest
			break
		}
	}
	key, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, false
	}
	return key, true
}

// requirePermission gates a route on the caller's key carrying the named
// permission. Every failure mode is a 401; the reason stays server-side.
func (h *Handler) requirePermission(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := parseCredential(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, errUnauthorized("missing or malformed credential"))
			return
		}
		allowed, err := h.store.HasRoutePermission(r.Context(), key, permission)
		if err != nil {
			writeError(w, err)
			return
		}
		if !allowed {
			writeError(w, errUnauthorized("permission denied"))
			return
		}
		next(w, r)
	}
}
