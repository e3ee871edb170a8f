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

package repository

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

const (
	stmtInsertServer = `INSERT INTO servers (id, label, kind, ip, key, state, description, properties, online) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmtSelectServer = `SELECT id, label, kind, ip, key, state, description, properties, online FROM servers WHERE id = ?`
	stmtSelectServerByLabel = `SELECT id, label, kind, ip, key, state, description, properties, online FROM servers WHERE label = ?`
	stmtListServers         = `SELECT id, label, kind, ip, key, state, description, properties, online FROM servers`
	stmtListServersByKind   = `SELECT id, label, kind, ip, key, state, description, properties, online FROM servers WHERE kind = ?`
	stmtUpdateServerState   = `UPDATE servers SET state = ? WHERE id = ?`
	stmtUpdateServerDesc    = `UPDATE servers SET description = ? WHERE id = ?`
	stmtUpdateServerOnline  = `UPDATE servers SET online = ? WHERE id = ?`
	stmtUpdateServerKey     = `UPDATE servers SET key = ? WHERE id = ?`
	stmtDeleteServer        = `DELETE FROM servers WHERE id = ?`
	stmtInsertServerLog     = `INSERT INTO server_logs (id, server, label, kind, action, at) VALUES (?, ?, ?, ?, ?, ?)`
)

// CreateServer inserts the authoritative row for a freshly adopted pod.
// Re-running with the same arguments is a no-op overwrite.
func (r *Repository) CreateServer(ctx context.Context, srv Server) error {
	err := r.session.Query(stmtInsertServer,
		cqlID(srv.ID), srv.Label, srv.Kind, srv.IP, cqlIDPtr(srv.Key),
		string(srv.State), srv.Description, srv.Properties, srv.Online,
	).WithContext(ctx).Exec()
	return wrap("create server", err)
}

// GetServer returns the server row or ErrNotFound.
func (r *Repository) GetServer(ctx context.Context, id uuid.UUID) (Server, error) {
	return r.scanOneServer(ctx, "get server", stmtSelectServer, cqlID(id))
}

// GetServerByLabel resolves a server by its pod name.
func (r *Repository) GetServerByLabel(ctx context.Context, label string) (Server, error) {
	return r.scanOneServer(ctx, "get server by label", stmtSelectServerByLabel, label)
}

// ListServers returns every registered server.
func (r *Repository) ListServers(ctx context.Context) ([]Server, error) {
	return r.scanServers(ctx, "list servers", stmtListServers)
}

// ListServersByKind returns every registered server of one kind.
func (r *Repository) ListServersByKind(ctx context.Context, kind string) ([]Server, error) {
	return r.scanServers(ctx, "list servers by kind", stmtListServersByKind, kind)
}

// UpdateServerState sets the lifecycle state column.
func (r *Repository) UpdateServerState(ctx context.Context, id uuid.UUID, state ServerState) error {
	err := r.session.Query(stmtUpdateServerState, string(state), cqlID(id)).WithContext(ctx).Exec()
	return wrap("update server state", err)
}

// UpdateServerDescription sets the free-form description column.
func (r *Repository) UpdateServerDescription(ctx context.Context, id uuid.UUID, description string) error {
	err := r.session.Query(stmtUpdateServerDesc, description, cqlID(id)).WithContext(ctx).Exec()
	return wrap("update server description", err)
}

// UpdateServerOnline sets the per-server player count column.
func (r *Repository) UpdateServerOnline(ctx context.Context, id uuid.UUID, online int) error {
	err := r.session.Query(stmtUpdateServerOnline, online, cqlID(id)).WithContext(ctx).Exec()
	return wrap("update server online", err)
}

// SetServerKey stores the server-scoped API key minted at registration.
func (r *Repository) SetServerKey(ctx context.Context, id, key uuid.UUID) error {
	err := r.session.Query(stmtUpdateServerKey, cqlID(key), cqlID(id)).WithContext(ctx).Exec()
	return wrap("set server key", err)
}

// DeleteServer removes the server row.
func (r *Repository) DeleteServer(ctx context.Context, id uuid.UUID) error {
	err := r.session.Query(stmtDeleteServer, cqlID(id)).WithContext(ctx).Exec()
	return wrap("delete server", err)
}

// InsertServerLog appends to the immutable created/deleted history.
func (r *Repository) InsertServerLog(ctx context.Context, log ServerLog) error {
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := r.session.Query(stmtInsertServerLog,
		gocql.TimeUUID(), cqlID(log.Server), log.Label, log.Kind, string(log.Action), at,
	).WithContext(ctx).Exec()
	return wrap("insert server log", err)
}

func (r *Repository) scanOneServer(ctx context.Context, op, stmt string, args ...interface{}) (Server, error) {
	var (
		id, key                     gocql.UUID
		label, kind, ip, state, desc string
		properties                  map[string]string
		online                      int
	)
	err := r.session.Query(stmt, args...).WithContext(ctx).
		Scan(&id, &label, &kind, &ip, &key, &state, &desc, &properties, &online)
	if err != nil {
		return Server{}, wrap(op, err)
	}
	return Server{
		ID:          domainID(id),
		Label:       label,
		Kind:        kind,
		IP:          ip,
		Key:         domainIDPtr(key),
		State:       ServerState(state),
		Description: desc,
		Properties:  properties,
		Online:      online,
	}, nil
}

func (r *Repository) scanServers(ctx context.Context, op, stmt string, args ...interface{}) ([]Server, error) {
	iter := r.session.Query(stmt, args...).WithContext(ctx).Iter()

	var (
		id, key                      gocql.UUID
		label, kind, ip, state, desc string
		properties                   map[string]string
		online                       int
	)
	var servers []Server
	for iter.Scan(&id, &label, &kind, &ip, &key, &state, &desc, &properties, &online) {
		servers = append(servers, Server{
			ID:          domainID(id),
			Label:       label,
			Kind:        kind,
			IP:          ip,
			Key:         domainIDPtr(key),
			State:       ServerState(state),
			Description: desc,
			Properties:  properties,
			Online:      online,
		})
		// the driver reuses scan destinations between rows
		key = gocql.UUID{}
		properties = nil
	}
	if err := iter.Close(); err != nil {
		return nil, wrap(op, err)
	}
	return servers, nil
}
