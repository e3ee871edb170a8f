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
	stmtInsertStat        = `INSERT INTO statistics (player, session, timestamp, server_id, server_kind, key, value) VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmtSelectStats       = `SELECT player, SUM(value) FROM statistics WHERE key = ? AND timestamp > ? GROUP BY player ALLOW FILTERING`
	stmtSelectStatsByKind = `SELECT player, SUM(value) FROM statistics WHERE key = ? AND server_kind = ? AND timestamp > ? GROUP BY player ALLOW FILTERING`
)

// InsertStats appends one row per stat key as a single batch, stamped with
// the same timestamp.
func (r *Repository) InsertStats(ctx context.Context, player, session, server uuid.UUID, serverKind string, stats map[string]int64) error {
	batch := r.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	now := time.Now().UTC()
	for key, value := range stats {
		batch.Query(stmtInsertStat, cqlID(player), cqlID(session), now, cqlID(server), serverKind, key, value)
	}
	err := r.session.ExecuteBatch(batch)
	return wrap("insert stats", err)
}

// SelectStats aggregates one stat key per player since a lower time bound.
func (r *Repository) SelectStats(ctx context.Context, key string, since time.Time) (map[uuid.UUID]int64, error) {
	return r.scanStats(ctx, "select stats", r.session.Query(stmtSelectStats, key, since).WithContext(ctx).Iter())
}

// SelectStatsByKind aggregates one stat key per player, restricted to
// servers of one kind.
func (r *Repository) SelectStatsByKind(ctx context.Context, key, kind string, since time.Time) (map[uuid.UUID]int64, error) {
	return r.scanStats(ctx, "select stats by kind", r.session.Query(stmtSelectStatsByKind, key, kind, since).WithContext(ctx).Iter())
}

func (r *Repository) scanStats(ctx context.Context, op string, iter *gocql.Iter) (map[uuid.UUID]int64, error) {
	var (
		player gocql.UUID
		value  int64
	)
	out := map[uuid.UUID]int64{}
	for iter.Scan(&player, &value) {
		out[domainID(player)] += value
	}
	if err := iter.Close(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
