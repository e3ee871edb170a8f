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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ServerState is the lifecycle state of a registered server.
type ServerState string

const (
	ServerStateStarting ServerState = "Starting"
	ServerStateWaiting  ServerState = "Waiting"
	ServerStateIdle     ServerState = "Idle"
	ServerStatePlaying  ServerState = "Playing"
	ServerStateStarted  ServerState = "Started"
)

// ParseServerState validates a caller-supplied state string.
func ParseServerState(s string) (ServerState, error) {
	switch ServerState(s) {
	case ServerStateStarting, ServerStateWaiting, ServerStateIdle, ServerStatePlaying, ServerStateStarted:
		return ServerState(s), nil
	}
	return "", fmt.Errorf("unknown server state %q", s)
}

// KindProxy is the distinguished kind whose pods front player connections.
// Terminating a proxy pod tears down the sessions it owned.
const KindProxy = "proxy"

// Server is one registered game server or proxy. Label equals the pod name
// and Kind is immutable after registration. Key is minted once at
// registration and authorizes server-scoped API calls.
type Server struct {
	ID          uuid.UUID
	Label       string
	Kind        string
	IP          string
	Key         *uuid.UUID
	State       ServerState
	Description string
	Properties  map[string]string
	Online      int
}

// ServerLogAction records why a server log row was appended.
type ServerLogAction string

const (
	ServerLogCreated ServerLogAction = "created"
	ServerLogDeleted ServerLogAction = "deleted"
)

// ServerLog is an append-only record of server registration and teardown.
type ServerLog struct {
	Server uuid.UUID
	Label  string
	Kind   string
	Action ServerLogAction
	At     time.Time
}

// SimpleAutoscale is the only autoscale policy variant: per-server slot
// capacity, pod properties and env for provisioned instances, and the
// desired idle headroom.
type SimpleAutoscale struct {
	Slots      int               `json:"slots"`
	Properties map[string]string `json:"properties,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Min        int               `json:"min"`
}

// Autoscale is a tagged policy wrapper so future variants keep the same
// column encoding.
type Autoscale struct {
	Simple *SimpleAutoscale `json:"simple,omitempty"`
}

// Startup describes how many instances of a kind to keep at boot.
type Startup struct {
	Minimum int `json:"minimum"`
	Maximum int `json:"maximum"`
}

// ServerKind is the configuration for a class of servers: the image to run,
// per-group permission overrides, and optional autoscale/startup policies.
type ServerKind struct {
	Name        string
	Image       string
	Permissions map[string][]string
	Autoscale   *Autoscale
	Startup     *Startup
}

// HasAutoscale reports whether the kind carries a usable autoscale policy.
func (k ServerKind) HasAutoscale() bool {
	return k.Autoscale != nil && k.Autoscale.Simple != nil
}

func encodeAutoscale(a *Autoscale) (string, error) {
	if a == nil {
		return "", nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode autoscale: %w", err)
	}
	return string(raw), nil
}

func decodeAutoscale(raw string) (*Autoscale, error) {
	if raw == "" {
		return nil, nil
	}
	var a Autoscale
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decode autoscale: %w", err)
	}
	return &a, nil
}

func encodeStartup(s *Startup) (string, error) {
	if s == nil {
		return "", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode startup: %w", err)
	}
	return string(raw), nil
}

func decodeStartup(raw string) (*Startup, error) {
	if raw == "" {
		return nil, nil
	}
	var s Startup
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode startup: %w", err)
	}
	return &s, nil
}

// Player is the authoritative per-player row. Proxy and Session are set
// while the player is online, Server after a server login, WaitingMoveTo
// while queued on an autoscaling kind.
type Player struct {
	UUID            uuid.UUID
	Username        string
	Groups          []string
	Permissions     []string
	Locale          *string
	Prefix          *string
	Suffix          *string
	Currency        int64
	PremiumCurrency int64
	Inventory       map[string]int64
	Properties      map[string]string
	Blocked         []uuid.UUID
	Friends         []uuid.UUID
	DiscordID       *string
	Proxy           *uuid.UUID
	Server          *uuid.UUID
	Session         *uuid.UUID
	WaitingMoveTo   *string
	Ban             *uuid.UUID
	Mute            *uuid.UUID
	BanReason       *string
}

// Online reports whether the player currently holds a proxy session.
func (p Player) Online() bool {
	return p.Proxy != nil && p.Session != nil
}

// PlayerOnlineRef is the minimal projection used when routing events to a
// player's current location.
type PlayerOnlineRef struct {
	UUID    uuid.UUID
	Proxy   *uuid.UUID
	Server  *uuid.UUID
	Session *uuid.UUID
}

// WaitingPlayer is one queue entry for an autoscaling kind.
type WaitingPlayer struct {
	UUID  uuid.UUID
	Proxy *uuid.UUID
}

// Session is one continuous connection of a player through a proxy.
type Session struct {
	ID      uuid.UUID
	Player  uuid.UUID
	IP      string
	Version string
	Brand   *string
	Mods    map[string]string
	Start   time.Time
	End     *time.Time
}

// Group carries chat decoration and the permission set granted to members.
type Group struct {
	Name        string
	Power       int
	Prefix      *string
	Suffix      *string
	Permissions []string
}

// Ban is an immutable sanction log row. Targets and IPs list everything the
// ban was applied to so an unban can reverse the exact set.
type Ban struct {
	ID      uuid.UUID
	Start   time.Time
	End     *time.Time
	Issuer  *uuid.UUID
	Reason  *string
	Target  *uuid.UUID
	IP      *string
	Targets []uuid.UUID
	IPs     []string
}

// Mute mirrors Ban for chat-only sanctions.
type Mute struct {
	ID     uuid.UUID
	Start  time.Time
	End    *time.Time
	Issuer *uuid.UUID
	Reason *string
	Target *uuid.UUID
}

// IPBan denies pre-login from an address. Automated bans come from the IP
// reputation check and carry a 7 day TTL.
type IPBan struct {
	IP        string
	Reason    *string
	Start     time.Time
	End       *time.Time
	Ban       *uuid.UUID
	Automated bool
}

// SanctionBoard is an escalation ladder for one offense category. Each entry
// is "K" (kick), "B{seconds}" (ban) or "M{seconds}" (mute); a missing
// duration means permanent.
type SanctionBoard struct {
	Category  string
	Label     string
	Sanctions []string
}

// LeaderboardPeriod bounds which stat rows feed a leaderboard.
type LeaderboardPeriod string

const (
	PeriodMonthly LeaderboardPeriod = "Monthly"
	PeriodAllTime LeaderboardPeriod = "AllTime"
)

// LeaderboardRule describes how to materialize one leaderboard.
type LeaderboardRule struct {
	StatKey  string
	Period   LeaderboardPeriod
	GameKind *string
	Size     int
}

// Leaderboard is a named, periodically rebuilt ranking. Value entries are
// "username:value" strings ordered best first.
type Leaderboard struct {
	Name  string
	Label string
	Rule  LeaderboardRule
	Value []string
}

// PeriodLowerBound returns the inclusive lower time bound for stat
// aggregation. Monthly uses the first instant of the current calendar month.
func (r LeaderboardRule) PeriodLowerBound(now time.Time) time.Time {
	switch r.Period {
	case PeriodMonthly:
		y, m, _ := now.UTC().Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Unix(0, 0).UTC()
	}
}

// ApiKey authorizes an external caller. A nil Group denotes an unrestricted
// key; every use of one is logged as a warning.
type ApiKey struct {
	Key   uuid.UUID
	Group *string
}

// ApiGroup names the permission set granted to keys referencing it.
type ApiGroup struct {
	Name        string
	Permissions []string
}

// Well-known settings keys.
const (
	SettingOnlineCount         = "online_count"
	SettingSlots               = "slots"
	SettingMOTD                = "motd"
	SettingMaintenance         = "maintenance"
	SettingMaintenanceOverride = "maintenance_override"
)

// DiscordLink pairs a short-lived numeric code with the player who requested
// the link. Rows expire after ten minutes.
type DiscordLink struct {
	Code string
	UUID uuid.UUID
}
