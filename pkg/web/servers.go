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
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/util"
)

// serverResponse projects a server row.
type serverResponse struct {
	ID          uuid.UUID         `json:"id"`
	Label       string            `json:"label"`
	Kind        string            `json:"kind"`
	IP          string            `json:"ip,omitempty"`
	State       string            `json:"state"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Online      int               `json:"online"`
}

func toServerResponse(srv repository.Server) serverResponse {
	return serverResponse{
		ID:          srv.ID,
		Label:       srv.Label,
		Kind:        srv.Kind,
		IP:          srv.IP,
		State:       string(srv.State),
		Description: srv.Description,
		Properties:  srv.Properties,
		Online:      srv.Online,
	}
}

func (h *Handler) getServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ListServers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]serverResponse, 0, len(servers))
	for _, srv := range servers {
		out = append(out, toServerResponse(srv))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) postServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind       string            `json:"kind"`
		Name       string            `json:"name"`
		Properties map[string]string `json:"properties,omitempty"`
		Env        map[string]string `json:"env,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, ok := h.store.GetServerKind(req.Kind)
	if !ok {
		writeError(w, errNotFound("unknown server kind"))
		return
	}

	name := fmt.Sprintf("%s-%s-%s", kind.Name, req.Name, util.RandomServerSuffix())
	if err := h.pods.CreatePod(r.Context(), kind.Name, kind.Image, name, req.Properties, req.Env); err != nil {
		writeError(w, err)
		return
	}
	klog.Infof("server pod %s requested by api", name)
	respondJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *Handler) deleteServer(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	var (
		srv repository.Server
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		srv, err = h.store.GetServer(r.Context(), id)
	} else {
		srv, err = h.store.GetServerByLabel(r.Context(), ref)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if srv.Properties["protected"] == "true" {
		writeError(w, errConflict("server is protected"))
		return
	}
	if err := h.pods.DeletePod(r.Context(), srv.Label); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func serverParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errBadRequest("malformed server id", err)
	}
	return id, nil
}

var validStates = map[repository.ServerState]bool{
	repository.ServerStateStarting: true,
	repository.ServerStateStarted:  true,
	repository.ServerStateWaiting:  true,
	repository.ServerStateIdle:     true,
	repository.ServerStatePlaying:  true,
}

func (h *Handler) postServerState(w http.ResponseWriter, r *http.Request) {
	id, err := serverParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		State string `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state := repository.ServerState(req.State)
	if !validStates[state] {
		writeError(w, errBadRequest("unknown state", nil))
		return
	}

	if err := h.store.UpdateServerState(r.Context(), id, state); err != nil {
		writeError(w, err)
		return
	}
	if err := h.bus.Publish(r.Context(), eventbus.ServerStateUpdate{Server: id, State: req.State}); err != nil {
		writeError(w, err)
		return
	}

	// Capacity reactions run on whichever replica served the request;
	// OnIdle and OnWaiting are idempotent against the store.
	if h.scaler != nil {
		switch state {
		case repository.ServerStateIdle:
			err = h.scaler.OnIdle(r.Context(), id)
		case repository.ServerStateWaiting:
			err = h.scaler.OnWaiting(r.Context(), id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postServerDescription(w http.ResponseWriter, r *http.Request) {
	id, err := serverParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.UpdateServerDescription(r.Context(), id, req.Description); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postServerPlayerCount(w http.ResponseWriter, r *http.Request) {
	id, err := serverParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var count int
	if err := decodeJSON(r, &count); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.UpdateServerOnline(r.Context(), id, count); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (h *Handler) postBroadcast(w http.ResponseWriter, r *http.Request) {
	var ev eventbus.Broadcast
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, err)
		return
	}
	if ev.Message == "" {
		writeError(w, errBadRequest("message is required", nil))
		return
	}
	if err := h.bus.Publish(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

// postRegister is called by a game server process once it finishes booting:
// it mints the server's key, marks it Started, and announces it.
func (h *Handler) postRegister(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	srv, err := h.store.GetServerByLabel(r.Context(), label)
	if err != nil {
		writeError(w, err)
		return
	}

	key := uuid.New()
	if err := h.store.SetServerKey(r.Context(), srv.ID, key); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.UpdateServerState(r.Context(), srv.ID, repository.ServerStateStarted); err != nil {
		writeError(w, err)
		return
	}
	if err := h.bus.Publish(r.Context(), eventbus.ServerStarted{
		Addr:        srv.IP,
		ID:          srv.ID,
		Description: srv.Description,
		Name:        srv.Label,
		Kind:        srv.Kind,
		Properties:  srv.Properties,
	}); err != nil {
		writeError(w, err)
		return
	}

	klog.Infof("server %s (%s) registered", srv.Label, srv.ID)
	respondJSON(w, http.StatusOK, map[string]any{"key": key, "server": toServerResponse(srv)})
}

func (h *Handler) getServerEchoEnable(w http.ResponseWriter, r *http.Request) {
	id, err := serverParam(r, "uuid")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.store.GetServer(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	key, err := h.echo.RegisterServer(r.Context(), id)
	if err != nil {
		writeError(w, errUpstream("echo unavailable", err))
		return
	}
	if err := h.store.SetServerKey(r.Context(), id, key); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uuid.UUID{"key": key})
}
