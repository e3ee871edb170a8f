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

	"github.com/go-chi/chi/v5"
)

// postLeaderboards forces a rebuild of every board outside the cron window.
func (h *Handler) postLeaderboards(w http.ResponseWriter, r *http.Request) {
	if err := h.boards.RebuildAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.store.GetLeaderboard(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"name":  board.Name,
		"label": board.Label,
		"value": board.Value,
	})
}
