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
	stmtInsertSession    = `INSERT INTO sessions (id, player, ip, version, brand, mods, start, end) VALUES (?, ?, ?, ?, null, null, ?, null)`
	stmtCloseSession     = `UPDATE sessions SET end = ? WHERE id = ?`
	stmtSelectSession    = `SELECT id, player, ip, version, brand, mods, start, end FROM sessions WHERE id = ?`
	stmtSetSessionMods   = `UPDATE sessions SET mods = ? WHERE id = ?`
	stmtSetSessionBrand  = `UPDATE sessions SET brand = ? WHERE id = ?`
	stmtSelectPlayerIPs  = `SELECT ip FROM sessions WHERE player = ? ALLOW FILTERING`
	stmtSelectPlayersIP  = `SELECT player FROM sessions WHERE ip = ? ALLOW FILTERING`
)

// InsertSession records the start of one continuous connection.
func (r *Repository) InsertSession(ctx context.Context, id, player uuid.UUID, ip, version string) error {
	err := r.session.Query(stmtInsertSession,
		cqlID(id), cqlID(player), ip, version, time.Now().UTC(),
	).WithContext(ctx).Exec()
	return wrap("insert session", err)
}

// CloseSession stamps the end column. Closing an already closed session
// moves the timestamp, which is harmless under at-least-once delivery.
func (r *Repository) CloseSession(ctx context.Context, id uuid.UUID) error {
	err := r.session.Query(stmtCloseSession, time.Now().UTC(), cqlID(id)).WithContext(ctx).Exec()
	return wrap("close session", err)
}

// GetSession loads a session row or ErrNotFound.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	var (
		sid, player gocql.UUID
		ip, version string
		brand       *string
		mods        map[string]string
		start       time.Time
		end         time.Time
	)
	err := r.session.Query(stmtSelectSession, cqlID(id)).WithContext(ctx).
		Scan(&sid, &player, &ip, &version, &brand, &mods, &start, &end)
	if err != nil {
		return Session{}, wrap("get session", err)
	}
	return Session{
		ID:      domainID(sid),
		Player:  domainID(player),
		IP:      ip,
		Version: version,
		Brand:   brand,
		Mods:    mods,
		Start:   start,
		End:     timePtr(end),
	}, nil
}

// SetSessionMods stores the client's declared mod list.
func (r *Repository) SetSessionMods(ctx context.Context, id uuid.UUID, mods map[string]string) error {
	err := r.session.Query(stmtSetSessionMods, mods, cqlID(id)).WithContext(ctx).Exec()
	return wrap("set session mods", err)
}

// SetSessionBrand stores the client brand string.
func (r *Repository) SetSessionBrand(ctx context.Context, id uuid.UUID, brand string) error {
	err := r.session.Query(stmtSetSessionBrand, brand, cqlID(id)).WithContext(ctx).Exec()
	return wrap("set session brand", err)
}

// PlayerSessionIPs returns the distinct addresses the player has connected
// from, across all sessions.
func (r *Repository) PlayerSessionIPs(ctx context.Context, player uuid.UUID) ([]string, error) {
	iter := r.session.Query(stmtSelectPlayerIPs, cqlID(player)).WithContext(ctx).Iter()
	var (
		ip   string
		seen = map[string]bool{}
		out  []string
	)
	for iter.Scan(&ip) {
		if !seen[ip] {
			seen[ip] = true
			out = append(out, ip)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("player session ips", err)
	}
	return out, nil
}

// PlayersBySessionIP returns the distinct players that have connected from
// an address.
func (r *Repository) PlayersBySessionIP(ctx context.Context, ip string) ([]uuid.UUID, error) {
	iter := r.session.Query(stmtSelectPlayersIP, ip).WithContext(ctx).Iter()
	var (
		id   gocql.UUID
		seen = map[uuid.UUID]bool{}
		out  []uuid.UUID
	)
	for iter.Scan(&id) {
		u := domainID(id)
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("players by session ip", err)
	}
	return out, nil
}
