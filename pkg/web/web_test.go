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

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skynet-mc/skynet/pkg/autoscale"
	"github.com/skynet-mc/skynet/pkg/echo"
	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/leaderboard"
	"github.com/skynet-mc/skynet/pkg/lifecycle"
	"github.com/skynet-mc/skynet/pkg/onlinecount"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/repository/fake"
)

type leaderStub struct{ leading bool }

func (l *leaderStub) IsLeader() bool { return l.leading }

type createdPod struct {
	kind, image, name string
	properties, env   map[string]string
}

type podsStub struct {
	created []createdPod
	deleted []string
}

func (p *podsStub) CreatePod(_ context.Context, kind, image, name string, properties, env map[string]string) error {
	p.created = append(p.created, createdPod{kind: kind, image: image, name: name, properties: properties, env: env})
	return nil
}

func (p *podsStub) DeletePod(_ context.Context, name string) error {
	p.deleted = append(p.deleted, name)
	return nil
}

type echoAPIStub struct {
	trackErr  error
	serverKey uuid.UUID
}

func (e *echoAPIStub) TrackPlayer(context.Context, uuid.UUID, echo.UserDefinition) (uint32, error) {
	return 7, e.trackErr
}

func (e *echoAPIStub) RegisterServer(context.Context, uuid.UUID) (uuid.UUID, error) {
	return e.serverKey, nil
}

type shutdownStub struct{ reasons []string }

func (s *shutdownStub) Trigger(reason string) { s.reasons = append(s.reasons, reason) }

type env struct {
	store    *fake.Repository
	bus      *eventbus.Recorder
	pods     *podsStub
	echo     *echoAPIStub
	shutdown *shutdownStub
	router   http.Handler

	// rootKey is unrestricted; limitedKey only carries get-all-servers.
	rootKey    uuid.UUID
	limitedKey uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := fake.New()
	bus := &eventbus.Recorder{}
	pods := &podsStub{}
	echoAPI := &echoAPIStub{serverKey: uuid.New()}
	stop := &shutdownStub{}
	leader := &leaderStub{leading: true}

	rootKey := uuid.New()
	store.APIKeys[rootKey] = repository.ApiKey{Key: rootKey}

	limitedKey := uuid.New()
	group := "proxy-readonly"
	store.APIKeys[limitedKey] = repository.ApiKey{Key: limitedKey, Group: &group}
	store.APIGroups[group] = repository.ApiGroup{Name: group, Permissions: []string{"get-all-servers"}}

	h := NewHandler(Config{
		Store:    store,
		Bus:      bus,
		Life:     lifecycle.New(store, bus, nil, nil, nil),
		Scaler:   autoscale.New(store, bus, pods),
		Pods:     pods,
		Counts:   onlinecount.New(store, bus, leader),
		Boards:   leaderboard.New(store, bus, leader, "@hourly"),
		Echo:     echoAPI,
		Shutdown: stop,
	})

	return &env{
		store:      store,
		bus:        bus,
		pods:       pods,
		echo:       echoAPI,
		shutdown:   stop,
		router:     h.Router(),
		rootKey:    rootKey,
		limitedKey: limitedKey,
	}
}

func (e *env) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"not a uuid", "Server not-a-key"},
		{"unknown key", uuid.NewString()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, "/api/servers/", tc.auth, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthHonorsGroupPermissions(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/servers/", e.limitedKey.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/servers/", e.limitedKey.String(), map[string]string{"kind": "mini", "name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsPrefixedCredentials(t *testing.T) {
	e := newEnv(t)

	for _, prefix := range []string{"Server ", "Proxy ", ""} {
		rec := e.do(t, http.MethodGet, "/api/servers/", prefix+e.rootKey.String(), nil)
		assert.Equal(t, http.StatusOK, rec.Code, "prefix %q", prefix)
	}
}

func TestCreateServerProvisionsPod(t *testing.T) {
	e := newEnv(t)
	e.store.Kinds["mini"] = repository.ServerKind{Name: "mini", Image: "registry.local/mini:latest"}

	rec := e.do(t, http.MethodPost, "/api/servers/", e.rootKey.String(), map[string]any{
		"kind":       "mini",
		"name":       "duels",
		"properties": map[string]string{"map": "arena"},
		"env":        map[string]string{"MODE": "ranked"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]string](t, rec)
	assert.Regexp(t, regexp.MustCompile(`^mini-duels-\d{5}$`), resp["name"])

	require.Len(t, e.pods.created, 1)
	pod := e.pods.created[0]
	assert.Equal(t, "mini", pod.kind)
	assert.Equal(t, "registry.local/mini:latest", pod.image)
	assert.Equal(t, resp["name"], pod.name)
	assert.Equal(t, "arena", pod.properties["map"])
	assert.Equal(t, "ranked", pod.env["MODE"])
}

func TestCreateServerUnknownKind(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/servers/", e.rootKey.String(), map[string]string{"kind": "nope", "name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, e.pods.created)
}

func TestDeleteServer(t *testing.T) {
	e := newEnv(t)

	protected := repository.Server{ID: uuid.New(), Label: "lobby-main-11111", Kind: "lobby", Properties: map[string]string{"protected": "true"}}
	plain := repository.Server{ID: uuid.New(), Label: "mini-duels-22222", Kind: "mini"}
	e.store.AddServer(protected)
	e.store.AddServer(plain)

	rec := e.do(t, http.MethodDelete, "/api/servers/"+protected.ID.String(), e.rootKey.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, e.pods.deleted)

	// By id and by label.
	rec = e.do(t, http.MethodDelete, "/api/servers/"+plain.ID.String(), e.rootKey.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/servers/mini-duels-22222", e.rootKey.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mini-duels-22222", "mini-duels-22222"}, e.pods.deleted)
}

func TestSetServerState(t *testing.T) {
	e := newEnv(t)
	srv := repository.Server{ID: uuid.New(), Label: "mini-duels-33333", Kind: "mini", State: repository.ServerStateStarted}
	e.store.AddServer(srv)

	rec := e.do(t, http.MethodPost, "/api/servers/"+srv.ID.String()+"/setstate", e.rootKey.String(), map[string]string{"state": "Sleeping"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/servers/"+srv.ID.String()+"/setstate", e.rootKey.String(), map[string]string{"state": "Idle"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := e.store.GetServer(context.Background(), srv.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ServerStateIdle, stored.State)
	require.Len(t, e.bus.Published(), 1)
	assert.Equal(t, eventbus.ServerStateUpdate{Server: srv.ID, State: "Idle"}, e.bus.Published()[0])
}

func TestSetServerStateWaitingDrainsQueue(t *testing.T) {
	e := newEnv(t)
	e.store.Kinds["mini"] = repository.ServerKind{
		Name:  "mini",
		Image: "registry.local/mini:latest",
		Autoscale: &repository.Autoscale{
			Simple: &repository.SimpleAutoscale{Slots: 8, Min: 1},
		},
	}
	srv := repository.Server{ID: uuid.New(), Label: "mini-duels-66666", Kind: "mini", State: repository.ServerStateStarted}
	e.store.AddServer(srv)

	proxy := uuid.New()
	waiter := e.store.AddPlayer(uuid.New(), "waiter")
	kind := "mini"
	waiter.WaitingMoveTo = &kind
	waiter.Proxy = &proxy

	rec := e.do(t, http.MethodPost, "/api/servers/"+srv.ID.String()+"/setstate", e.rootKey.String(), map[string]string{"state": "Waiting"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := e.store.GetServer(context.Background(), srv.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ServerStateWaiting, stored.State)

	var moves []eventbus.MovePlayer
	for _, ev := range e.bus.Published() {
		if move, ok := ev.(eventbus.MovePlayer); ok {
			moves = append(moves, move)
		}
	}
	require.Len(t, moves, 1)
	assert.Equal(t, srv.ID, moves[0].Server)
	assert.Equal(t, waiter.UUID, moves[0].Player)
	assert.Equal(t, proxy, moves[0].Proxy)
}

func TestSetServerStateIdleRetiresSurplus(t *testing.T) {
	e := newEnv(t)
	e.store.Kinds["mini"] = repository.ServerKind{
		Name:  "mini",
		Image: "registry.local/mini:latest",
		Autoscale: &repository.Autoscale{
			Simple: &repository.SimpleAutoscale{Slots: 8, Min: 0},
		},
	}
	srv := repository.Server{ID: uuid.New(), Label: "mini-duels-77777", Kind: "mini", State: repository.ServerStatePlaying}
	e.store.AddServer(srv)

	rec := e.do(t, http.MethodPost, "/api/servers/"+srv.ID.String()+"/setstate", e.rootKey.String(), map[string]string{"state": "Idle"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{srv.Label}, e.pods.deleted)
}

func TestRegisterMintsKeyAndAnnounces(t *testing.T) {
	e := newEnv(t)
	srv := repository.Server{
		ID:          uuid.New(),
		Label:       "mini-duels-44444",
		Kind:        "mini",
		IP:          "10.0.0.9",
		State:       repository.ServerStateStarting,
		Description: "ranked duels",
	}
	e.store.AddServer(srv)

	// Registration authenticates by label, not by key.
	rec := e.do(t, http.MethodPost, "/api/servers/mini-duels-44444/register", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		Key    uuid.UUID      `json:"key"`
		Server serverResponse `json:"server"`
	}](t, rec)
	assert.NotEqual(t, uuid.Nil, resp.Key)
	assert.Equal(t, srv.ID, resp.Server.ID)

	stored, err := e.store.GetServer(context.Background(), srv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Key)
	assert.Equal(t, resp.Key, *stored.Key)
	assert.Equal(t, repository.ServerStateStarted, stored.State)

	require.Len(t, e.bus.Published(), 1)
	started, ok := e.bus.Published()[0].(eventbus.ServerStarted)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.9", started.Addr)
	assert.Equal(t, "mini", started.Kind)

	rec = e.do(t, http.MethodPost, "/api/servers/no-such-label/register", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyPing(t *testing.T) {
	e := newEnv(t)
	e.store.Settings[repository.SettingOnlineCount] = "37"
	e.store.Settings[repository.SettingSlots] = "500"
	e.store.Settings[repository.SettingMOTD] = "Bienvenue"

	rec := e.do(t, http.MethodGet, "/api/proxy/ping", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Online int    `json:"online"`
		Slots  int    `json:"slots"`
		MOTD   string `json:"motd"`
	}](t, rec)
	assert.Equal(t, 37, resp.Online)
	assert.Equal(t, 500, resp.Slots)
	assert.Equal(t, "Bienvenue", resp.MOTD)
}

func TestProxyPingDefaultsToZero(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/proxy/ping", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 0, resp["online"])
	assert.EqualValues(t, 0, resp["slots"])
}

func TestProxyPlayerCountFeedsAggregate(t *testing.T) {
	e := newEnv(t)
	proxy := uuid.New()

	rec := e.do(t, http.MethodPost, "/api/proxy/"+proxy.String()+"/playercount", e.rootKey.String(), 12)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12", e.store.Settings[repository.SettingOnlineCount])

	rec = e.do(t, http.MethodPost, "/api/proxy/"+proxy.String()+"/playercount", e.rootKey.String(), -3)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscordLinkLifecycle(t *testing.T) {
	e := newEnv(t)
	player := uuid.New()
	e.store.AddPlayer(player, "alice")

	rec := e.do(t, http.MethodGet, "/api/discord/link/"+player.String(), e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code := decodeBody[map[string]string](t, rec)["code"]
	assert.Regexp(t, `^\d{4}$`, code)
	assert.Equal(t, player, e.store.DiscordLinks[code])

	rec = e.do(t, http.MethodPost, "/api/discord/link/"+code, e.rootKey.String(), "discord-123")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, player, decodeBody[map[string]uuid.UUID](t, rec)["uuid"])
	require.NotNil(t, e.store.Players[player].DiscordID)
	assert.Equal(t, "discord-123", *e.store.Players[player].DiscordID)
	assert.NotContains(t, e.store.DiscordLinks, code)

	// A consumed code cannot be redeemed twice.
	rec = e.do(t, http.MethodPost, "/api/discord/link/"+code, e.rootKey.String(), "discord-456")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/discord/link/discord-123", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody[map[string]int](t, rec)["unlinked"])
	assert.Nil(t, e.store.Players[player].DiscordID)
}

func TestDiscordLinkUnknownPlayer(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/discord/link/"+uuid.NewString(), e.rootKey.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookForwardsJSONUntouched(t *testing.T) {
	e := newEnv(t)

	var received []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()
	e.store.Webhooks["alerts"] = upstream.URL

	rec := e.do(t, http.MethodPost, "/api/discord/webhook/alerts", e.rootKey.String(), map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":"hello"}`, string(received))
}

func TestWebhookWrapsPlainText(t *testing.T) {
	e := newEnv(t)

	var received []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()
	e.store.Webhooks["alerts"] = upstream.URL

	req := httptest.NewRequest(http.MethodPost, "/api/discord/webhook/alerts", bytes.NewReader([]byte("server down")))
	req.Header.Set("Authorization", e.rootKey.String())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":"server down"}`, string(received))
}

func TestWebhookUpstreamFailure(t *testing.T) {
	e := newEnv(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()
	e.store.Webhooks["alerts"] = upstream.URL

	rec := e.do(t, http.MethodPost, "/api/discord/webhook/alerts", e.rootKey.String(), map[string]string{"content": "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/discord/webhook/unknown", e.rootKey.String(), map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderboardRoutes(t *testing.T) {
	e := newEnv(t)
	player := uuid.New()
	e.store.AddPlayer(player, "alice")
	e.store.Leaderboards["kills"] = repository.Leaderboard{
		Name:  "kills",
		Label: "Top Kills",
		Rule:  repository.LeaderboardRule{StatKey: "kills", Period: repository.PeriodAllTime, Size: 10},
	}
	e.store.Stats = append(e.store.Stats, fake.StatRow{Player: player, Key: "kills", Value: 21, At: time.Now()})

	rec := e.do(t, http.MethodPost, "/api/leaderboards/", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/leaderboards/kills", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[struct {
		Name  string   `json:"name"`
		Label string   `json:"label"`
		Value []string `json:"value"`
	}](t, rec)
	assert.Equal(t, "Top Kills", resp.Label)
	assert.Equal(t, []string{"alice:21"}, resp.Value)
}

func TestStatsIngestion(t *testing.T) {
	e := newEnv(t)
	player := uuid.New()
	e.store.AddPlayer(player, "alice")
	srv := repository.Server{ID: uuid.New(), Label: "mini-duels-55555", Kind: "mini"}
	e.store.AddServer(srv)

	rec := e.do(t, http.MethodPost, "/api/players/"+player.String()+"/stats", e.rootKey.String(), map[string]any{
		"server": srv.ID,
		"key":    "kills",
		"delta":  3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, e.store.Stats, 1)
	row := e.store.Stats[0]
	assert.Equal(t, player, row.Player)
	assert.Equal(t, "mini", row.ServerKind)
	assert.EqualValues(t, 3, row.Value)

	rec = e.do(t, http.MethodPost, "/api/players/"+player.String()+"/stats", e.rootKey.String(), map[string]any{
		"server": uuid.New(),
		"key":    "kills",
		"delta":  1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayerLookups(t *testing.T) {
	e := newEnv(t)
	player := uuid.New()
	p := e.store.AddPlayer(player, "alice")
	p.Currency = 250

	rec := e.do(t, http.MethodGet, "/api/players/alice/uuid", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, player, decodeBody[map[string]uuid.UUID](t, rec)["uuid"])

	rec = e.do(t, http.MethodGet, "/api/players/"+player.String()+"/full", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	full := decodeBody[fullPlayerResponse](t, rec)
	assert.Equal(t, "alice", full.Username)
	assert.EqualValues(t, 250, full.Currency)

	rec = e.do(t, http.MethodGet, "/api/players/ghost/uuid", e.rootKey.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayerEchoPassthrough(t *testing.T) {
	e := newEnv(t)
	player := uuid.New()
	e.store.AddPlayer(player, "alice")

	rec := e.do(t, http.MethodPost, "/api/players/"+player.String()+"/echo", e.rootKey.String(), map[string]any{"server": uuid.New()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, decodeBody[map[string]uint32](t, rec)["id"])
	assert.True(t, e.store.EchoEnabled[player])
}

func TestShutdownRoute(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/shutdown", e.rootKey.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"api request"}, e.shutdown.reasons)
}

func TestStatusAndDocs(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/status", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}
