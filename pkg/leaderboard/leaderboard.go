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

// Package leaderboard rebuilds the stored rankings from raw stat rows on a
// schedule. Rebuilds run on the leader replica only; followers keep the cron
// idle and serve whatever was last written.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

// unknownUsername fills in for players whose row disappeared since the stat
// was recorded.
const unknownUsername = "Inconnu"

// Store is the repository surface the builder needs.
type Store interface {
	ListLeaderboards(ctx context.Context) ([]repository.Leaderboard, error)
	WriteLeaderboard(ctx context.Context, name string, value []string) error
	SelectStats(ctx context.Context, key string, since time.Time) (map[uuid.UUID]int64, error)
	SelectStatsByKind(ctx context.Context, key, kind string, since time.Time) (map[uuid.UUID]int64, error)
	PlayerUsername(ctx context.Context, player uuid.UUID) (string, error)
}

// Leadership gates the scheduled rebuilds.
type Leadership interface {
	IsLeader() bool
}

// Builder aggregates stats into ranked "username:value" entries.
type Builder struct {
	store  Store
	bus    eventbus.Publisher
	leader Leadership
	cron   *cron.Cron
	spec   string

	now func() time.Time
}

// New builds a leaderboard builder with the given cron spec.
func New(store Store, bus eventbus.Publisher, leader Leadership, spec string) *Builder {
	return &Builder{
		store:  store,
		bus:    bus,
		leader: leader,
		cron:   cron.New(),
		spec:   spec,
		now:    time.Now,
	}
}

// Start schedules the periodic rebuild and runs it until the context ends.
func (b *Builder) Start(ctx context.Context) error {
	_, err := b.cron.AddFunc(b.spec, func() {
		if b.leader != nil && !b.leader.IsLeader() {
			return
		}
		if err := b.RebuildAll(ctx); err != nil {
			klog.Errorf("scheduled leaderboard rebuild: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule leaderboard rebuild %q: %w", b.spec, err)
	}

	b.cron.Start()
	go func() {
		<-ctx.Done()
		b.cron.Stop()
	}()
	return nil
}

// RebuildAll refreshes every configured leaderboard. One failing board does
// not stop the others.
func (b *Builder) RebuildAll(ctx context.Context) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanLeaderboardRebuild,
		trace.WithAttributes(tracing.AttrComponent("leaderboard")))
	defer span.End()

	boards, err := b.store.ListLeaderboards(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, board := range boards {
		if err := b.Rebuild(ctx, board); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rebuild %s: %w", board.Name, err))
		}
	}
	return errs.ErrorOrNil()
}

// Rebuild recomputes one board from its rule and stores the result.
func (b *Builder) Rebuild(ctx context.Context, board repository.Leaderboard) error {
	since := board.Rule.PeriodLowerBound(b.now())

	var (
		totals map[uuid.UUID]int64
		err    error
	)
	if board.Rule.GameKind != nil {
		totals, err = b.store.SelectStatsByKind(ctx, board.Rule.StatKey, *board.Rule.GameKind, since)
	} else {
		totals, err = b.store.SelectStats(ctx, board.Rule.StatKey, since)
	}
	if err != nil {
		return err
	}

	type row struct {
		player uuid.UUID
		value  int64
	}
	rows := make([]row, 0, len(totals))
	for player, value := range totals {
		rows = append(rows, row{player: player, value: value})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].value != rows[j].value {
			return rows[i].value > rows[j].value
		}
		return rows[i].player.String() < rows[j].player.String()
	})
	if board.Rule.Size > 0 && len(rows) > board.Rule.Size {
		rows = rows[:board.Rule.Size]
	}

	entries := make([]string, 0, len(rows))
	for _, r := range rows {
		username, err := b.store.PlayerUsername(ctx, r.player)
		if err != nil {
			username = unknownUsername
		}
		entries = append(entries, fmt.Sprintf("%s:%d", username, r.value))
	}

	if err := b.store.WriteLeaderboard(ctx, board.Name, entries); err != nil {
		return err
	}
	klog.V(2).Infof("leaderboard %s rebuilt with %d entries", board.Name, len(entries))
	return b.bus.Publish(ctx, eventbus.InvalidateLeaderBoard{Name: board.Name})
}
