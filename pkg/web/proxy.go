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
	"strconv"

	"github.com/skynet-mc/skynet/pkg/repository"
)

// getProxyPing serves the data a proxy shows on the server list screen.
func (h *Handler) getProxyPing(w http.ResponseWriter, r *http.Request) {
	online, err := h.store.GetSetting(r.Context(), repository.SettingOnlineCount)
	if err != nil {
		writeError(w, err)
		return
	}
	slots, err := h.store.GetSetting(r.Context(), repository.SettingSlots)
	if err != nil {
		writeError(w, err)
		return
	}
	motd, err := h.store.GetSetting(r.Context(), repository.SettingMOTD)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"online": atoiOrZero(online),
		"slots":  atoiOrZero(slots),
		"motd":   motd,
	})
}

// postProxyPlayerCount takes a proxy's head count report and feeds the
// fleet-wide aggregation.
func (h *Handler) postProxyPlayerCount(w http.ResponseWriter, r *http.Request) {
	proxy, err := serverParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var count int32
	if err := decodeJSON(r, &count); err != nil {
		writeError(w, err)
		return
	}
	if count < 0 {
		writeError(w, errBadRequest("negative count", nil))
		return
	}
	if err := h.counts.Record(r.Context(), proxy, count); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
