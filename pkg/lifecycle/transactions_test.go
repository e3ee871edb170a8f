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

package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/repository/fake"
)

func TestTransactionAppliesDelta(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	p := store.AddPlayer(player, "Steve")
	p.Currency, p.PremiumCurrency = 100, 10

	ok, err := svc.Transaction(context.Background(), player, CurrencyTransaction{Currency: -40, PremiumCurrency: 5})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(60), store.Players[player].Currency)
	assert.Equal(t, int64(15), store.Players[player].PremiumCurrency)
}

func TestTransactionRejectsOverdraft(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	p := store.AddPlayer(player, "Steve")
	p.Currency, p.PremiumCurrency = 100, 10

	// One overdrawn balance rejects the whole transaction.
	ok, err := svc.Transaction(context.Background(), player, CurrencyTransaction{Currency: 50, PremiumCurrency: -20})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(100), store.Players[player].Currency)
	assert.Equal(t, int64(10), store.Players[player].PremiumCurrency)
}

func TestTransactionInvalidatesOnServer(t *testing.T) {
	store := fake.New()
	svc, bus := newTestService(store)

	player, _ := addOnlinePlayer(store, false)
	server := uuid.New()
	store.Players[player].Server = &server
	store.Players[player].Currency = 10

	ok, err := svc.Transaction(context.Background(), player, CurrencyTransaction{Currency: -10})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, bus.Published(), 1)
	assert.IsType(t, eventbus.InvalidatePlayer{}, bus.Published()[0])
}

func TestInventoryTransactionAllOrNothing(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	p := store.AddPlayer(player, "Steve")
	p.Inventory = map[string]int64{"key": 3, "gem": 1}

	ok, err := svc.InventoryTransaction(context.Background(), player, map[string]int64{"key": -2, "gem": -2})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), store.Players[player].Inventory["key"])

	ok, err = svc.InventoryTransaction(context.Background(), player, map[string]int64{"key": -2, "gem": 4})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), store.Players[player].Inventory["key"])
	assert.Equal(t, int64(5), store.Players[player].Inventory["gem"])
}

func TestUpdateGroupsGrantAndRevoke(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	store.AddPlayer(player, "Steve")

	require.NoError(t, svc.UpdateGroups(context.Background(), player, []string{"Vip", "Beta/3600", "-Default"}))
	assert.ElementsMatch(t, []string{"Vip", "Beta"}, store.Players[player].Groups)
}

func TestUpdateGroupsBadTTL(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	store.AddPlayer(player, "Steve")

	err := svc.UpdateGroups(context.Background(), player, []string{"Vip/soon"})
	assert.Error(t, err)
}

func TestCloseSessionEndsAndDetaches(t *testing.T) {
	store := fake.New()
	tracker := &echoStub{}
	svc := New(store, &eventbus.Recorder{}, nil, tracker, nil)

	player, _ := addOnlinePlayer(store, false)
	session := *store.Players[player].Session
	require.NoError(t, store.InsertSession(context.Background(), session, player, "1.2.3.4", "1.20"))
	store.EchoEnabled[player] = true

	require.NoError(t, svc.CloseSession(context.Background(), player))

	assert.NotNil(t, store.Sessions[session].End)
	assert.Nil(t, store.Players[player].Session)
	assert.Nil(t, store.Players[player].Proxy)
	assert.Equal(t, []uuid.UUID{player}, tracker.forgotten)
	assert.False(t, store.EchoEnabled[player])
}

func TestCloseSessionWithoutSessionIsNoop(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	store.AddPlayer(player, "Steve")
	assert.NoError(t, svc.CloseSession(context.Background(), player))
}

func TestDisconnectOfflinePlayer(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	player := uuid.New()
	store.AddPlayer(player, "Steve")
	assert.ErrorIs(t, svc.Disconnect(context.Background(), player), repository.ErrNotFound)
}

func TestDisconnectOnlinePlayer(t *testing.T) {
	store := fake.New()
	svc, bus := newTestService(store)

	player, proxy := addOnlinePlayer(store, false)
	require.NoError(t, svc.Disconnect(context.Background(), player))

	events := bus.Published()
	require.Len(t, events, 1)
	disconnect := events[0].(eventbus.DisconnectPlayer)
	assert.Equal(t, proxy, disconnect.Proxy)
	assert.Empty(t, disconnect.Reason)
}
