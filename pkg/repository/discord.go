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

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

const (
	stmtInsertDiscordLink = `INSERT INTO discords_link (code, uuid) VALUES (?, ?) USING TTL ?`
	stmtSelectDiscordLink = `SELECT uuid FROM discords_link WHERE code = ?`
	stmtDeleteDiscordLink = `DELETE FROM discords_link WHERE code = ?`
	stmtSelectWebhook     = `SELECT url FROM webhooks WHERE name = ?`
)

// InsertDiscordLink stores a pairing code for the player. The row expires
// on its own if the link is never completed.
func (r *Repository) InsertDiscordLink(ctx context.Context, code string, player uuid.UUID) error {
	err := r.session.Query(stmtInsertDiscordLink, code, cqlID(player), ttlSeconds(TTLDiscordLink)).
		WithContext(ctx).Exec()
	return wrap("insert discord link", err)
}

// GetDiscordLink resolves a pairing code to the player that requested it,
// or ErrNotFound when the code expired or never existed.
func (r *Repository) GetDiscordLink(ctx context.Context, code string) (uuid.UUID, error) {
	var player gocql.UUID
	err := r.session.Query(stmtSelectDiscordLink, code).WithContext(ctx).Scan(&player)
	if err != nil {
		return uuid.Nil, wrap("get discord link", err)
	}
	return domainID(player), nil
}

// DeleteDiscordLink consumes a pairing code.
func (r *Repository) DeleteDiscordLink(ctx context.Context, code string) error {
	err := r.session.Query(stmtDeleteDiscordLink, code).WithContext(ctx).Exec()
	return wrap("delete discord link", err)
}

// GetWebhook resolves a registered webhook name to its target URL or
// ErrNotFound.
func (r *Repository) GetWebhook(ctx context.Context, name string) (string, error) {
	var url string
	err := r.session.Query(stmtSelectWebhook, name).WithContext(ctx).Scan(&url)
	if err != nil {
		return "", wrap("get webhook", err)
	}
	return url, nil
}
