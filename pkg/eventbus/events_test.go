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

package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRouting(t *testing.T) {
	proxy := uuid.New()
	server := uuid.New()
	arena := "arena"

	cases := []struct {
		name   string
		event  ServerEvent
		route  string
		direct bool
	}{
		{"new route", NewRoute{ID: server}, "proxy.servers.routes.new", false},
		{"delete route", DeleteRoute{ID: server}, "proxy.servers.routes.delete", false},
		{"server started", ServerStarted{ID: server}, "proxy.servers.routes.started", false},
		{"move player", MovePlayer{Proxy: proxy, Server: server}, proxy.String(), true},
		{"admin move", AdminMovePlayer{Server: server}, server.String(), true},
		{"move to available", MovePlayerToAvailable{Proxy: proxy, Kind: "arena"}, proxy.String(), true},
		{"disconnect", DisconnectPlayer{Proxy: proxy}, proxy.String(), true},
		{"invalidate player", InvalidatePlayer{Server: server}, server.String(), true},
		{"player count sync", PlayerCountSync{Proxy: proxy, Count: 3}, "skynet.playercountsync", false},
		{"player count", PlayerCount{Count: 42}, "server.playercount", false},
		{"invalidate leaderboard", InvalidateLeaderBoard{Name: "kills"}, "leaderboard.invalidate.kills", false},
		{"broadcast proxy", Broadcast{Message: "hi"}, "proxy.broadcast", false},
		{"broadcast kind", Broadcast{Message: "hi", Kind: &arena}, "server.arena.broadcast", false},
		{"state update", ServerStateUpdate{Server: server, State: "Idle"}, "server.update.state", false},
		{"description update", ServerDescriptionUpdate{Server: server}, "server.update.description", false},
		{"count update", ServerCountUpdate{Server: server, Count: 7}, "server.update.count", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.route, tc.event.Route())
			assert.Equal(t, tc.direct, tc.event.Direct())
		})
	}
}

func TestEncodeCarriesDiscriminator(t *testing.T) {
	proxy := uuid.New()
	player := uuid.New()
	server := uuid.New()

	body, err := Encode(MovePlayer{Proxy: proxy, Server: server, Player: player})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Equal(t, "MovePlayer", fields["event"])
	assert.Equal(t, server.String(), fields["server"])
	assert.Equal(t, player.String(), fields["player"])

	// The destination proxy is routing metadata, never payload.
	_, leaked := fields["proxy"]
	assert.False(t, leaked)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := PlayerCountSync{Proxy: uuid.New(), Count: 17}

	body, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"TimeTravel"}`))
	var unknown *ErrUnknownEvent
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "TimeTravel", unknown.Name)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}
