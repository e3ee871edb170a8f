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

func newTestService(store *fake.Repository) (*Service, *eventbus.Recorder) {
	bus := &eventbus.Recorder{}
	return New(store, bus, nil, nil, nil), bus
}

func seedDefaultGroup(store *fake.Repository) {
	store.Groups["Default"] = repository.Group{Name: "Default", Power: 0, Permissions: []string{"chat.use", "proxy:hub.join", "lobby:secret"}}
}

func strPtr(s string) *string { return &s }

func TestProxyLoginCreatesUnknownPlayer(t *testing.T) {
	store := fake.New()
	seedDefaultGroup(store)
	svc, _ := newTestService(store)

	player := uuid.New()
	proxy := uuid.New()

	result, err := svc.ProxyLogin(context.Background(), player, ProxyLoginRequest{
		Username: "Steve", Proxy: proxy, IP: "203.0.113.9", Version: "1.20",
	})
	require.NoError(t, err)
	require.True(t, result.Allowed)

	row := store.Players[player]
	require.NotNil(t, row)
	assert.Equal(t, "Steve", row.Username)
	assert.Equal(t, []string{"Default"}, row.Groups)
	require.NotNil(t, row.Session)
	assert.Equal(t, result.Session, *row.Session)
	require.NotNil(t, row.Proxy)
	assert.Equal(t, proxy, *row.Proxy)

	// Group perms plus power marker, proxy scope stripped, other scopes dropped.
	assert.ElementsMatch(t, []string{"chat.use", "hub.join", "power.0"}, result.Info.Permissions)
	assert.Equal(t, "fr", result.Info.Locale)

	session, err := store.GetSession(context.Background(), result.Session)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", session.IP)
}

func TestProxyLoginDeniedWhenAlreadyConnected(t *testing.T) {
	store := fake.New()
	seedDefaultGroup(store)
	svc, _ := newTestService(store)

	player := uuid.New()
	live := uuid.New()
	p := store.AddPlayer(player, "Steve")
	p.Session = &live

	result, err := svc.ProxyLogin(context.Background(), player, ProxyLoginRequest{Username: "Steve", Proxy: uuid.New(), IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.NotEmpty(t, result.Message)
	// No second session was opened.
	assert.Empty(t, store.Sessions)
}

func TestProxyLoginDeniedWhenBanned(t *testing.T) {
	store := fake.New()
	seedDefaultGroup(store)
	svc, _ := newTestService(store)

	player := uuid.New()
	store.AddPlayer(player, "Steve")
	_, err := store.InsertBan(context.Background(), player, strPtr("cheating"), nil, nil)
	require.NoError(t, err)

	result, err := svc.ProxyLogin(context.Background(), player, ProxyLoginRequest{Username: "Steve", Proxy: uuid.New(), IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, store.Sessions)
}

func TestServerLoginGrantsHostGroup(t *testing.T) {
	store := fake.New()
	seedDefaultGroup(store)
	store.Groups["Host"] = repository.Group{Name: "Host", Power: 10, Permissions: []string{"game.configure"}}
	store.Kinds["mini"] = repository.ServerKind{Name: "mini"}
	svc, _ := newTestService(store)

	player := uuid.New()
	proxy := uuid.New()
	session := uuid.New()
	p := store.AddPlayer(player, "Steve")
	p.Proxy, p.Session = &proxy, &session

	server := uuid.New()
	store.AddServer(repository.Server{
		ID: server, Kind: "mini", Label: "mini-10001",
		Properties: map[string]string{"host": player.String()},
	})

	info, err := svc.ServerLogin(context.Background(), player, server)
	require.NoError(t, err)
	assert.Contains(t, info.Permissions, "game.configure")
	assert.Equal(t, 10, info.Power)
	// The grant is per-login; the stored row keeps its groups.
	assert.Equal(t, []string{"Default"}, store.Players[player].Groups)
	require.NotNil(t, store.Players[player].Server)
	assert.Equal(t, server, *store.Players[player].Server)
}

func TestServerLoginClearsWaitingFlagOnMatchingKind(t *testing.T) {
	store := fake.New()
	seedDefaultGroup(store)
	store.Kinds["mini"] = repository.ServerKind{Name: "mini"}
	svc, _ := newTestService(store)

	player := uuid.New()
	proxy := uuid.New()
	session := uuid.New()
	waiting := "mini"
	p := store.AddPlayer(player, "Steve")
	p.Proxy, p.Session, p.WaitingMoveTo = &proxy, &session, &waiting

	server := uuid.New()
	store.AddServer(repository.Server{ID: server, Kind: "mini", Label: "mini-10001"})

	_, err := svc.ServerLogin(context.Background(), player, server)
	require.NoError(t, err)
	assert.Nil(t, store.Players[player].WaitingMoveTo)
	require.NotNil(t, store.Players[player].Server)
	assert.Equal(t, server, *store.Players[player].Server)
}

func TestServerLoginUnknownServer(t *testing.T) {
	store := fake.New()
	svc, _ := newTestService(store)

	_, err := svc.ServerLogin(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDecorationPrefersExplicitThenHighestPower(t *testing.T) {
	store := fake.New()
	store.Groups["Default"] = repository.Group{Name: "Default", Power: 0, Prefix: strPtr("[D]")}
	store.Groups["Mod"] = repository.Group{Name: "Mod", Power: 50, Prefix: strPtr("[Mod]")}
	svc, _ := newTestService(store)

	prefix, suffix := svc.decoration([]string{"Default", "Mod"}, nil, nil)
	require.NotNil(t, prefix)
	assert.Equal(t, "[Mod]", *prefix)
	assert.Nil(t, suffix)

	prefix, _ = svc.decoration([]string{"Default", "Mod"}, strPtr("[VIP]"), nil)
	require.NotNil(t, prefix)
	assert.Equal(t, "[VIP]", *prefix)
}

func TestComposePermissionsIncludesKindOverrides(t *testing.T) {
	store := fake.New()
	store.Groups["Default"] = repository.Group{Name: "Default", Power: 0, Permissions: []string{"chat.use"}}
	store.Groups["Mod"] = repository.Group{Name: "Mod", Power: 50, Permissions: []string{"chat.moderate"}}
	store.Kinds["mini"] = repository.ServerKind{
		Name:        "mini",
		Permissions: map[string][]string{"Mod": {"mini.spectate"}},
	}
	svc, _ := newTestService(store)

	perms, power := svc.composePermissions([]string{"Default", "Mod"}, []string{"extra.perm"}, "mini")
	assert.Equal(t, 50, power)
	assert.ElementsMatch(t, []string{"chat.use", "chat.moderate", "power.50", "extra.perm", "mini.spectate"}, perms)
}
