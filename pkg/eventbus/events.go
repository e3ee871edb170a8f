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
	"fmt"

	"github.com/google/uuid"
)

// ServerEvent is one message on the fleet bus. Direct events carry their
// destination queue in the routing key; the rest fan out on the topic
// exchange. The wire format is JSON with an "event" discriminator field.
type ServerEvent interface {
	// Route is the routing key the event publishes under.
	Route() string
	// Direct reports whether the event goes to the direct exchange.
	Direct() bool
	// EventName is the wire discriminator.
	EventName() string
}

// NewRoute announces a freshly adopted server to every proxy.
type NewRoute struct {
	Addr        string            `json:"addr"`
	ID          uuid.UUID         `json:"id"`
	Description string            `json:"description"`
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Properties  map[string]string `json:"properties"`
}

func (NewRoute) Route() string     { return "proxy.servers.routes.new" }
func (NewRoute) Direct() bool      { return false }
func (NewRoute) EventName() string { return "NewRoute" }

// DeleteRoute retires a server from proxy routing tables.
type DeleteRoute struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (DeleteRoute) Route() string     { return "proxy.servers.routes.delete" }
func (DeleteRoute) Direct() bool      { return false }
func (DeleteRoute) EventName() string { return "DeleteRoute" }

// ServerStarted announces that a registered server finished booting and
// accepts players.
type ServerStarted struct {
	Addr        string            `json:"addr"`
	ID          uuid.UUID         `json:"id"`
	Description string            `json:"description"`
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Properties  map[string]string `json:"properties"`
}

func (ServerStarted) Route() string     { return "proxy.servers.routes.started" }
func (ServerStarted) Direct() bool      { return false }
func (ServerStarted) EventName() string { return "ServerStarted" }

// MovePlayer tells one proxy to transfer a player to a server.
type MovePlayer struct {
	Proxy  uuid.UUID `json:"-"`
	Server uuid.UUID `json:"server"`
	Player uuid.UUID `json:"player"`
}

func (e MovePlayer) Route() string   { return e.Proxy.String() }
func (MovePlayer) Direct() bool      { return true }
func (MovePlayer) EventName() string { return "MovePlayer" }

// AdminMovePlayer asks the player's current server to hand them over.
type AdminMovePlayer struct {
	Server uuid.UUID `json:"server"`
	Player uuid.UUID `json:"player"`
}

func (e AdminMovePlayer) Route() string   { return e.Server.String() }
func (AdminMovePlayer) Direct() bool      { return true }
func (AdminMovePlayer) EventName() string { return "AdminMovePlayer" }

// MovePlayerToAvailable tells one proxy to place a player on any server of
// the kind once capacity exists.
type MovePlayerToAvailable struct {
	Proxy  uuid.UUID `json:"-"`
	Kind   string    `json:"kind"`
	Player uuid.UUID `json:"player"`
}

func (e MovePlayerToAvailable) Route() string   { return e.Proxy.String() }
func (MovePlayerToAvailable) Direct() bool      { return true }
func (MovePlayerToAvailable) EventName() string { return "MovePlayerToAvailable" }

// DisconnectPlayer kicks a player off their proxy.
type DisconnectPlayer struct {
	Proxy  uuid.UUID `json:"-"`
	Player uuid.UUID `json:"player"`
	Reason string    `json:"reason,omitempty"`
}

func (e DisconnectPlayer) Route() string   { return e.Proxy.String() }
func (DisconnectPlayer) Direct() bool      { return true }
func (DisconnectPlayer) EventName() string { return "DisconnectPlayer" }

// InvalidatePlayer tells a server or proxy to drop its cached view of a
// player and reload from the API.
type InvalidatePlayer struct {
	Server uuid.UUID `json:"-"`
	UUID   uuid.UUID `json:"uuid"`
}

func (e InvalidatePlayer) Route() string   { return e.Server.String() }
func (InvalidatePlayer) Direct() bool      { return true }
func (InvalidatePlayer) EventName() string { return "InvalidatePlayer" }

// PlayerCountSync forwards a proxy's head count to the leader replica.
type PlayerCountSync struct {
	Proxy uuid.UUID `json:"proxy"`
	Count int32     `json:"count"`
}

func (PlayerCountSync) Route() string     { return "skynet.playercountsync" }
func (PlayerCountSync) Direct() bool      { return false }
func (PlayerCountSync) EventName() string { return "PlayerCountSync" }

// PlayerCount broadcasts the fleet-wide online total.
type PlayerCount struct {
	Count int32 `json:"count"`
}

func (PlayerCount) Route() string     { return "server.playercount" }
func (PlayerCount) Direct() bool      { return false }
func (PlayerCount) EventName() string { return "PlayerCount" }

// InvalidateLeaderBoard tells consumers a leaderboard was rebuilt.
type InvalidateLeaderBoard struct {
	Name string `json:"name"`
}

func (e InvalidateLeaderBoard) Route() string { return "leaderboard.invalidate." + e.Name }
func (InvalidateLeaderBoard) Direct() bool    { return false }
func (InvalidateLeaderBoard) EventName() string {
	return "InvalidateLeaderBoard"
}

// Broadcast sends a chat message to every server of a kind, or to every
// proxy when Kind is empty. Permission limits delivery to players holding it.
type Broadcast struct {
	Message    string  `json:"message"`
	Kind       *string `json:"kind,omitempty"`
	Permission *string `json:"permission,omitempty"`
}

func (e Broadcast) Route() string {
	if e.Kind != nil {
		return fmt.Sprintf("server.%s.broadcast", *e.Kind)
	}
	return "proxy.broadcast"
}
func (Broadcast) Direct() bool      { return false }
func (Broadcast) EventName() string { return "Broadcast" }

// ServerStateUpdate announces a lifecycle state change.
type ServerStateUpdate struct {
	Server uuid.UUID `json:"server"`
	State  string    `json:"state"`
}

func (ServerStateUpdate) Route() string     { return "server.update.state" }
func (ServerStateUpdate) Direct() bool      { return false }
func (ServerStateUpdate) EventName() string { return "ServerStateUpdate" }

// ServerDescriptionUpdate announces a description change.
type ServerDescriptionUpdate struct {
	Server      uuid.UUID `json:"server"`
	Description string    `json:"description"`
}

func (ServerDescriptionUpdate) Route() string { return "server.update.description" }
func (ServerDescriptionUpdate) Direct() bool  { return false }
func (ServerDescriptionUpdate) EventName() string {
	return "ServerDescriptionUpdate"
}

// ServerCountUpdate announces a per-server online count change.
type ServerCountUpdate struct {
	Server uuid.UUID `json:"server"`
	Count  int32     `json:"count"`
}

func (ServerCountUpdate) Route() string     { return "server.update.count" }
func (ServerCountUpdate) Direct() bool      { return false }
func (ServerCountUpdate) EventName() string { return "ServerCountUpdate" }

// Encode serializes an event with its discriminator spliced in.
func Encode(ev ServerEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	name, _ := json.Marshal(ev.EventName())
	fields["event"] = name
	return json.Marshal(fields)
}

// ErrUnknownEvent marks a discriminator this replica does not handle.
type ErrUnknownEvent struct {
	Name string
}

func (e *ErrUnknownEvent) Error() string { return fmt.Sprintf("unknown event %q", e.Name) }

// Decode parses a bus message back into its concrete event type.
func Decode(body []byte) (ServerEvent, error) {
	var tag struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &tag); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var (
		ev  ServerEvent
		err error
	)
	switch tag.Event {
	case "NewRoute":
		ev, err = decodeAs[NewRoute](body)
	case "DeleteRoute":
		ev, err = decodeAs[DeleteRoute](body)
	case "ServerStarted":
		ev, err = decodeAs[ServerStarted](body)
	case "MovePlayer":
		ev, err = decodeAs[MovePlayer](body)
	case "AdminMovePlayer":
		ev, err = decodeAs[AdminMovePlayer](body)
	case "MovePlayerToAvailable":
		ev, err = decodeAs[MovePlayerToAvailable](body)
	case "DisconnectPlayer":
		ev, err = decodeAs[DisconnectPlayer](body)
	case "InvalidatePlayer":
		ev, err = decodeAs[InvalidatePlayer](body)
	case "PlayerCountSync":
		ev, err = decodeAs[PlayerCountSync](body)
	case "PlayerCount":
		ev, err = decodeAs[PlayerCount](body)
	case "InvalidateLeaderBoard":
		ev, err = decodeAs[InvalidateLeaderBoard](body)
	case "Broadcast":
		ev, err = decodeAs[Broadcast](body)
	case "ServerStateUpdate":
		ev, err = decodeAs[ServerStateUpdate](body)
	case "ServerDescriptionUpdate":
		ev, err = decodeAs[ServerDescriptionUpdate](body)
	case "ServerCountUpdate":
		ev, err = decodeAs[ServerCountUpdate](body)
	default:
		return nil, &ErrUnknownEvent{Name: tag.Event}
	}
	return ev, err
}

func decodeAs[T ServerEvent](body []byte) (ServerEvent, error) {
	var ev T
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.EventName(), err)
	}
	return ev, nil
}
