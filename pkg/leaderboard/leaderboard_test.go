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

package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/repository/fake"
)

type leaderStub struct{ leading bool }

func (l leaderStub) IsLeader() bool { return l.leading }

func seedStat(store *fake.Repository, player uuid.UUID, key, kind string, value int64, at time.Time) {
	store.Stats = append(store.Stats, fake.StatRow{
		Player: player, Session: uuid.New(), Server: uuid.New(),
		ServerKind: kind, Key: key, Value: value, At: at,
	})
}

func TestRebuildRanksAndTruncates(t *testing.T) {
	store := fake.New()
	bus := &eventbus.Recorder{}
	builder := New(store, bus, leaderStub{leading: true}, "@hourly")

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	store.AddPlayer(alice, "alice")
	store.AddPlayer(bob, "bob")
	store.AddPlayer(carol, "carol")

	now := time.Now().UTC()
	seedStat(store, alice, "kills", "mini", 10, now)
	seedStat(store, alice, "kills", "mini", 5, now)
	seedStat(store, bob, "kills", "mini", 40, now)
	seedStat(store, carol, "kills", "mini", 1, now)
	seedStat(store, carol, "deaths", "mini", 99, now)

	board := repository.Leaderboard{
		Name: "kills",
		Rule: repository.LeaderboardRule{StatKey: "kills", Period: repository.PeriodAllTime, Size: 2},
	}
	require.NoError(t, builder.Rebuild(context.Background(), board))

	stored := store.Leaderboards["kills"]
	assert.Equal(t, []string{"bob:40", "alice:15"}, stored.Value)

	events := bus.Published()
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.InvalidateLeaderBoard{Name: "kills"}, events[0])
}

func TestRebuildMonthlyIgnoresOldRows(t *testing.T) {
	store := fake.New()
	bus := &eventbus.Recorder{}
	builder := New(store, bus, leaderStub{leading: true}, "@hourly")
	builder.now = func() time.Time { return time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC) }

	alice := uuid.New()
	store.AddPlayer(alice, "alice")
	seedStat(store, alice, "kills", "mini", 100, time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC))
	seedStat(store, alice, "kills", "mini", 3, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))

	board := repository.Leaderboard{
		Name: "kills-monthly",
		Rule: repository.LeaderboardRule{StatKey: "kills", Period: repository.PeriodMonthly, Size: 10},
	}
	require.NoError(t, builder.Rebuild(context.Background(), board))
	assert.Equal(t, []string{"alice:3"}, store.Leaderboards["kills-monthly"].Value)
}

func TestRebuildFiltersByKind(t *testing.T) {
	store := fake.New()
	bus := &eventbus.Recorder{}
	builder := New(store, bus, leaderStub{leading: true}, "@hourly")

	alice := uuid.New()
	store.AddPlayer(alice, "alice")
	now := time.Now().UTC()
	seedStat(store, alice, "wins", "mini", 4, now)
	seedStat(store, alice, "wins", "duel", 9, now)

	kind := "duel"
	board := repository.Leaderboard{
		Name: "duel-wins",
		Rule: repository.LeaderboardRule{StatKey: "wins", Period: repository.PeriodAllTime, GameKind: &kind, Size: 10},
	}
	require.NoError(t, builder.Rebuild(context.Background(), board))
	assert.Equal(t, []string{"alice:9"}, store.Leaderboards["duel-wins"].Value)
}

func TestRebuildUnknownPlayerUsesPlaceholder(t *testing.T) {
	store := fake.New()
	bus := &eventbus.Recorder{}
	builder := New(store, bus, leaderStub{leading: true}, "@hourly")

	ghost := uuid.New()
	seedStat(store, ghost, "kills", "mini", 7, time.Now().UTC())

	board := repository.Leaderboard{
		Name: "kills",
		Rule: repository.LeaderboardRule{StatKey: "kills", Period: repository.PeriodAllTime, Size: 10},
	}
	require.NoError(t, builder.Rebuild(context.Background(), board))
	assert.Equal(t, []string{"Inconnu:7"}, store.Leaderboards["kills"].Value)
}

func TestRebuildAllContinuesPastFailures(t *testing.T) {
	store := fake.New()
	bus := &eventbus.Recorder{}
	builder := New(store, bus, leaderStub{leading: true}, "@hourly")

	store.Leaderboards["a"] = repository.Leaderboard{
		Name: "a",
		Rule: repository.LeaderboardRule{StatKey: "kills", Period: repository.PeriodAllTime, Size: 10},
	}
	store.Leaderboards["b"] = repository.Leaderboard{
		Name: "b",
		Rule: repository.LeaderboardRule{StatKey: "wins", Period: repository.PeriodAllTime, Size: 10},
	}

	require.NoError(t, builder.RebuildAll(context.Background()))
	assert.Len(t, bus.Published(), 2)
}
