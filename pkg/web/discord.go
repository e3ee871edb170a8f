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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/eventbus"
)

// getDiscordLink mints a short-lived pairing code a player types into the
// Discord bot to claim their account.
func (h *Handler) getDiscordLink(w http.ResponseWriter, r *http.Request) {
	player, err := serverParam(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.store.PlayerUsername(r.Context(), player); err != nil {
		writeError(w, err)
		return
	}

	code := strconv.Itoa(rand.Intn(9000) + 1000)
	if err := h.store.InsertDiscordLink(r.Context(), code, player); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"code": code})
}

// postDiscordLink redeems a pairing code: the bot posts the Discord account
// id, the code is consumed, and the player is bound to it.
func (h *Handler) postDiscordLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var discord string
	if err := decodeJSON(r, &discord); err != nil {
		writeError(w, err)
		return
	}
	if discord == "" {
		writeError(w, errBadRequest("discord id is required", nil))
		return
	}

	player, err := h.store.GetDiscordLink(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.DeleteDiscordLink(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.SetPlayerDiscordID(r.Context(), player, &discord); err != nil {
		writeError(w, err)
		return
	}
	if err := h.invalidatePlayer(r.Context(), player); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]uuid.UUID{"uuid": player})
}

// deleteDiscordLink unbinds every player tied to a Discord account; used
// when the account leaves the guild.
func (h *Handler) deleteDiscordLink(w http.ResponseWriter, r *http.Request) {
	discord := chi.URLParam(r, "discord")

	players, err := h.store.PlayersByDiscordID(r.Context(), discord)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, player := range players {
		if err := h.store.SetPlayerDiscordID(r.Context(), player, nil); err != nil {
			writeError(w, err)
			return
		}
		if err := h.invalidatePlayer(r.Context(), player); err != nil {
			writeError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"unlinked": len(players)})
}

func (h *Handler) invalidatePlayer(ctx context.Context, player uuid.UUID) error {
	server, err := h.store.OnlinePlayerServer(ctx, player)
	if err != nil || server == nil {
		return err
	}
	return h.bus.Publish(ctx, eventbus.InvalidatePlayer{Server: *server, UUID: player})
}

// postWebhook relays a payload to a named Discord webhook. A valid JSON
// body goes through untouched; anything else is wrapped as a plain content
// message.
func (h *Handler) postWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	url, err := h.store.GetWebhook(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, errBadRequest("unreadable body", err))
		return
	}
	payload := raw
	if !json.Valid(raw) {
		payload, _ = json.Marshal(map[string]string{"content": string(raw)})
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		writeError(w, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.webhookHTTP.Do(req)
	if err != nil {
		writeError(w, errUpstream("webhook delivery failed", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		writeError(w, errUpstream("webhook delivery failed", fmt.Errorf("webhook %s answered %d", name, resp.StatusCode)))
		return
	}

	klog.V(2).Infof("webhook %s delivered (%d bytes)", name, len(payload))
	respondJSON(w, http.StatusOK, nil)
}
