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
)

const (
	stmtSelectLeaderboards = `SELECT name, label, stat_key, period, game_kind, size, value FROM leaderboards`
	stmtSelectLeaderboard  = `SELECT name, label, stat_key, period, game_kind, size, value FROM leaderboards WHERE name = ?`
	stmtWriteLeaderboard   = `UPDATE leaderboards SET value = ? WHERE name = ?`
)

// ListLeaderboards returns every leaderboard rule with its current value.
func (r *Repository) ListLeaderboards(ctx context.Context) ([]Leaderboard, error) {
	iter := r.session.Query(stmtSelectLeaderboards).WithContext(ctx).Iter()

	var (
		name, label, statKey, period string
		gameKind                     *string
		size                         int
		value                        []string
	)
	var boards []Leaderboard
	for iter.Scan(&name, &label, &statKey, &period, &gameKind, &size, &value) {
		boards = append(boards, Leaderboard{
			Name:  name,
			Label: label,
			Rule: LeaderboardRule{
				StatKey:  statKey,
				Period:   LeaderboardPeriod(period),
				GameKind: gameKind,
				Size:     size,
			},
			Value: value,
		})
		gameKind = nil
		value = nil
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("list leaderboards", err)
	}
	return boards, nil
}

// GetLeaderboard loads one leaderboard or ErrNotFound.
func (r *Repository) GetLeaderboard(ctx context.Context, name string) (Leaderboard, error) {
	var (
		n, label, statKey, period string
		gameKind                  *string
		size                      int
		value                     []string
	)
	err := r.session.Query(stmtSelectLeaderboard, name).WithContext(ctx).
		Scan(&n, &label, &statKey, &period, &gameKind, &size, &value)
	if err != nil {
		return Leaderboard{}, wrap("get leaderboard", err)
	}
	return Leaderboard{
		Name:  n,
		Label: label,
		Rule: LeaderboardRule{
			StatKey:  statKey,
			Period:   LeaderboardPeriod(period),
			GameKind: gameKind,
			Size:     size,
		},
		Value: value,
	}, nil
}

// WriteLeaderboard replaces the materialized ranking.
func (r *Repository) WriteLeaderboard(ctx context.Context, name string, value []string) error {
	err := r.session.Query(stmtWriteLeaderboard, value, name).WithContext(ctx).Exec()
	return wrap("write leaderboard", err)
}
