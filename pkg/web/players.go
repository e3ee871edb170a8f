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
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skynet-mc/skynet/pkg/echo"
	"github.com/skynet-mc/skynet/pkg/lifecycle"
	"github.com/skynet-mc/skynet/pkg/message"
)

func playerParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		return uuid.Nil, errBadRequest("malformed uuid", err)
	}
	return id, nil
}

// loginResponse is the shared allow/deny envelope of the login routes.
type loginResponse struct {
	Result  string          `json:"result"`
	Message message.Message `json:"message,omitempty"`
	Session *uuid.UUID      `json:"session,omitempty"`
	Info    any             `json:"player_info,omitempty"`
}

func (h *Handler) getPreLogin(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	decision, err := h.life.PreLogin(r.Context(), ip)
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.Allowed {
		respondJSON(w, http.StatusOK, loginResponse{Result: "Denied", Message: decision.Message})
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Result: "Allowed"})
}

func (h *Handler) postProxyLogin(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req lifecycle.ProxyLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.life.ProxyLogin(r.Context(), player, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Allowed {
		respondJSON(w, http.StatusOK, loginResponse{Result: "Denied", Message: result.Message})
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Result: "Allowed", Session: &result.Session, Info: result.Info})
}

func (h *Handler) postServerLogin(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var server uuid.UUID
	if err := decodeJSON(r, &server); err != nil {
		writeError(w, err)
		return
	}

	info, err := h.life.ServerLogin(r.Context(), player, server)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.life.CloseSession(r.Context(), player); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postMove(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req lifecycle.MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Server == nil && req.ServerKind == nil {
		writeError(w, errBadRequest("either server or server_kind is required", nil))
		return
	}

	outcome, err := h.life.Move(r.Context(), player, req)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]lifecycle.MoveOutcome{"result": outcome})
}

func (h *Handler) postBan(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req lifecycle.BanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.life.Ban(r.Context(), player, req)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) postMute(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req lifecycle.MuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.life.Mute(r.Context(), player, req); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postSanction(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Category   string     `json:"category"`
		Unsanction bool       `json:"unsanction"`
		Issuer     *uuid.UUID `json:"issuer,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.life.Sanction(r.Context(), player, req.Category, req.Unsanction, req.Issuer)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) postDisconnect(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.life.Disconnect(r.Context(), player); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var tx lifecycle.CurrencyTransaction
	if err := decodeJSON(r, &tx); err != nil {
		writeError(w, err)
		return
	}

	ok, err := h.life.Transaction(r.Context(), player, tx)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (h *Handler) postInventoryTransaction(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var deltas map[string]int64
	if err := decodeJSON(r, &deltas); err != nil {
		writeError(w, err)
		return
	}

	ok, err := h.life.InventoryTransaction(r.Context(), player, deltas)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (h *Handler) postGroups(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var entries []string
	if err := decodeJSON(r, &entries); err != nil {
		writeError(w, err)
		return
	}
	if err := h.life.UpdateGroups(r.Context(), player, entries); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postProperty(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Key == "" {
		writeError(w, errBadRequest("key is required", nil))
		return
	}
	if err := h.life.SetProperty(r.Context(), player, req.Key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

// fullPlayerResponse projects the whole player row for admin tooling.
type fullPlayerResponse struct {
	UUID            uuid.UUID         `json:"uuid"`
	Username        string            `json:"username"`
	Groups          []string          `json:"groups"`
	Permissions     []string          `json:"permissions,omitempty"`
	Locale          *string           `json:"locale,omitempty"`
	Prefix          *string           `json:"prefix,omitempty"`
	Suffix          *string           `json:"suffix,omitempty"`
	Currency        int64             `json:"currency"`
	PremiumCurrency int64             `json:"premium_currency"`
	Inventory       map[string]int64  `json:"inventory,omitempty"`
	Properties      map[string]string `json:"properties,omitempty"`
	Blocked         []uuid.UUID       `json:"blocked,omitempty"`
	Friends         []uuid.UUID       `json:"friends,omitempty"`
	DiscordID       *string           `json:"discord_id,omitempty"`
	Proxy           *uuid.UUID        `json:"proxy,omitempty"`
	Server          *uuid.UUID        `json:"server,omitempty"`
	Session         *uuid.UUID        `json:"session,omitempty"`
	Ban             *uuid.UUID        `json:"ban,omitempty"`
	Mute            *uuid.UUID        `json:"mute,omitempty"`
	BanReason       *string           `json:"ban_reason,omitempty"`
}

func (h *Handler) getFullPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.store.GetFullPlayer(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fullPlayerResponse{
		UUID:            p.UUID,
		Username:        p.Username,
		Groups:          p.Groups,
		Permissions:     p.Permissions,
		Locale:          p.Locale,
		Prefix:          p.Prefix,
		Suffix:          p.Suffix,
		Currency:        p.Currency,
		PremiumCurrency: p.PremiumCurrency,
		Inventory:       p.Inventory,
		Properties:      p.Properties,
		Blocked:         p.Blocked,
		Friends:         p.Friends,
		DiscordID:       p.DiscordID,
		Proxy:           p.Proxy,
		Server:          p.Server,
		Session:         p.Session,
		Ban:             p.Ban,
		Mute:            p.Mute,
		BanReason:       p.BanReason,
	})
}

func (h *Handler) getPlayerUUID(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, err := h.store.PlayerUUIDByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uuid.UUID{"uuid": id})
}

func (h *Handler) postStats(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Server uuid.UUID `json:"server"`
		Key    string    `json:"key"`
		Delta  int64     `json:"delta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, err := h.store.ServerKindOf(r.Context(), req.Server)
	if err != nil {
		writeError(w, err)
		return
	}
	session, err := h.store.PlayerSession(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	sessionID := uuid.Nil
	if session != nil {
		sessionID = *session
	}

	if err := h.store.InsertStats(r.Context(), player, sessionID, req.Server, kind, map[string]int64{req.Key: req.Delta}); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postPlayerEcho(w http.ResponseWriter, r *http.Request) {
	player, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var def echo.UserDefinition
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.echo.TrackPlayer(r.Context(), player, def)
	if err != nil {
		writeError(w, errUpstream("echo unavailable", err))
		return
	}
	if err := h.store.SetPlayerEchoEnabled(r.Context(), player, true); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint32{"id": id})
}

func (h *Handler) postSessionMods(w http.ResponseWriter, r *http.Request) {
	session, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var mods []struct {
		ID      string `json:"id"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &mods); err != nil {
		writeError(w, err)
		return
	}
	asMap := make(map[string]string, len(mods))
	for _, m := range mods {
		asMap[m.ID] = m.Version
	}
	if err := h.store.SetSessionMods(r.Context(), session, asMap); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postSessionBrand(w http.ResponseWriter, r *http.Request) {
	session, err := playerParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		writeError(w, errBadRequest("read body", err))
		return
	}
	if err := h.store.SetSessionBrand(r.Context(), session, string(body)); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
