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

	"github.com/google/uuid"
)

const (
	stmtSelectSanctionBoard = `SELECT category, label, sanctions FROM sanctions_board WHERE category = ?`
	stmtSelectSanctionState = `SELECT value FROM sanctions_states WHERE player = ? AND category = ?`
	stmtInsertSanctionState = `INSERT INTO sanctions_states (player, category, value) VALUES (?, ?, ?)`
)

// GetSanctionBoard loads the escalation ladder for a category or ErrNotFound.
func (r *Repository) GetSanctionBoard(ctx context.Context, category string) (SanctionBoard, error) {
	var (
		cat, label string
		sanctions  []string
	)
	err := r.session.Query(stmtSelectSanctionBoard, category).WithContext(ctx).Scan(&cat, &label, &sanctions)
	if err != nil {
		return SanctionBoard{}, wrap("get sanction board", err)
	}
	return SanctionBoard{Category: cat, Label: label, Sanctions: sanctions}, nil
}

// GetSanctionState returns the escalation cursor, zero when the player has
// no history in the category.
func (r *Repository) GetSanctionState(ctx context.Context, player uuid.UUID, category string) (int, error) {
	var value int
	err := r.session.Query(stmtSelectSanctionState, cqlID(player), category).WithContext(ctx).Scan(&value)
	if err != nil {
		if wrapped := wrap("get sanction state", err); wrapped != ErrNotFound {
			return 0, wrapped
		}
		return 0, nil
	}
	return value, nil
}

// SetSanctionState overwrites the escalation cursor.
func (r *Repository) SetSanctionState(ctx context.Context, player uuid.UUID, category string, value int) error {
	err := r.session.Query(stmtInsertSanctionState, cqlID(player), category, value).WithContext(ctx).Exec()
	return wrap("set sanction state", err)
}
