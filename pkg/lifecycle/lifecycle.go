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

// Package lifecycle implements the player-facing operations of the control
// plane: pre-login screening, proxy and server logins, moves, sanctions,
// session teardown, and account transactions. Handlers stay thin; the
// decisions live here.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skynet-mc/skynet/pkg/echo"
	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/proxycheck"
	"github.com/skynet-mc/skynet/pkg/repository"
)

// Store is the repository surface the lifecycle needs.
type Store interface {
	// Reference data.
	GetGroup(name string) (repository.Group, bool)
	GroupsByName(names []string) []repository.Group
	GetServerKind(name string) (repository.ServerKind, bool)
	ServerKindAndProperties(ctx context.Context, server uuid.UUID) (string, map[string]string, error)
	ServerKindOf(ctx context.Context, server uuid.UUID) (string, error)

	// Players.
	InsertPlayer(ctx context.Context, player uuid.UUID, username string, locale *string) error
	GetProxyPlayerInfo(ctx context.Context, player uuid.UUID) (repository.ProxyPlayerInfo, error)
	GetServerPlayerInfo(ctx context.Context, player uuid.UUID) (repository.ServerPlayerInfo, error)
	GetFullPlayer(ctx context.Context, player uuid.UUID) (repository.Player, error)
	SetPlayerOnlineProxy(ctx context.Context, player, proxy, session uuid.UUID, username string) error
	SetPlayerServer(ctx context.Context, player, server uuid.UUID) error
	SetServerClearWaiting(ctx context.Context, player, server uuid.UUID) error
	GetWaitingMoveTo(ctx context.Context, player uuid.UUID) (*string, error)
	NullPlayerSession(ctx context.Context, player uuid.UUID) error
	OnlinePlayerProxy(ctx context.Context, player uuid.UUID) (*uuid.UUID, error)
	OnlinePlayerServer(ctx context.Context, player uuid.UUID) (*uuid.UUID, error)
	OnlinePlayerProxyAndDiscord(ctx context.Context, player uuid.UUID) (*uuid.UUID, *string, error)
	PlayerSession(ctx context.Context, player uuid.UUID) (*uuid.UUID, error)
	PlayerCurrencies(ctx context.Context, player uuid.UUID) (int64, int64, error)
	SetPlayerCurrencies(ctx context.Context, player uuid.UUID, currency, premium int64) error
	PlayerInventory(ctx context.Context, player uuid.UUID) (map[string]int64, error)
	SetPlayerInventoryItem(ctx context.Context, player uuid.UUID, item string, count int64) error
	AddPlayerGroup(ctx context.Context, player uuid.UUID, group string, ttlSecs int) error
	RemovePlayerGroup(ctx context.Context, player uuid.UUID, group string) error
	SetPlayerProperty(ctx context.Context, player uuid.UUID, key, value string) error
	PlayerEchoEnabled(ctx context.Context, player uuid.UUID) (bool, error)
	SetPlayerEchoEnabled(ctx context.Context, player uuid.UUID, enabled bool) error

	// Sessions.
	InsertSession(ctx context.Context, id, player uuid.UUID, ip, version string) error
	CloseSession(ctx context.Context, id uuid.UUID) error
	PlayerSessionIPs(ctx context.Context, player uuid.UUID) ([]string, error)
	PlayersBySessionIP(ctx context.Context, ip string) ([]uuid.UUID, error)

	// Bans, mutes, sanctions.
	GetIPBan(ctx context.Context, ip string) (repository.IPBan, error)
	InsertIPBan(ctx context.Context, ip string, reason *string, issuer *uuid.UUID, duration *time.Duration, automated bool) (uuid.UUID, error)
	RemoveIPBan(ctx context.Context, ip string) error
	InsertBan(ctx context.Context, player uuid.UUID, reason *string, issuer *uuid.UUID, duration *time.Duration) (uuid.UUID, error)
	InsertBanLog(ctx context.Context, duration *time.Duration, target *uuid.UUID, ip *string, issuer *uuid.UUID, reason *string) (uuid.UUID, error)
	ApplyBan(ctx context.Context, player, ban uuid.UUID, reason *string, ttl *time.Duration) error
	ApplyIPBan(ctx context.Context, ip string, reason *string, ban *uuid.UUID, duration *time.Duration, automated bool) error
	RemovePlayerBan(ctx context.Context, player uuid.UUID) error
	PlayersFromBan(ctx context.Context, ban uuid.UUID) ([]uuid.UUID, error)
	IPsFromBan(ctx context.Context, ban uuid.UUID) ([]string, error)
	InsertMute(ctx context.Context, player uuid.UUID, reason *string, issuer *uuid.UUID, duration *time.Duration) (uuid.UUID, error)
	RemovePlayerMute(ctx context.Context, player uuid.UUID) error
	GetMute(ctx context.Context, id uuid.UUID) (repository.Mute, error)
	GetSanctionBoard(ctx context.Context, category string) (repository.SanctionBoard, error)
	GetSanctionState(ctx context.Context, player uuid.UUID, category string) (int, error)
	SetSanctionState(ctx context.Context, player uuid.UUID, category string, value int) error

	// Servers and settings.
	GetServer(ctx context.Context, id uuid.UUID) (repository.Server, error)
	GetSetting(ctx context.Context, key string) (string, error)
	PlayerUUIDByName(ctx context.Context, name string) (uuid.UUID, error)
	PlayerUsername(ctx context.Context, player uuid.UUID) (string, error)
}

// Reputation scores an IP; pre-login degrades to allow when it fails.
type Reputation interface {
	CheckIP(ctx context.Context, addr string) (proxycheck.Verdict, error)
}

// Echo is the alpha tracking collaborator; all calls are best effort.
type Echo interface {
	TrackPlayer(ctx context.Context, player uuid.UUID, def echo.UserDefinition) (uint32, error)
	ForgetPlayer(ctx context.Context, player uuid.UUID) error
}

// Placer resolves a move-by-kind; implemented by the autoscaler. A non-nil
// server is an existing instance with room; the caller publishes the
// transfer. A nil server with ok true means the player was queued behind
// fresh capacity. ok false means the kind neither has room nor autoscales.
type Placer interface {
	MoveToKind(ctx context.Context, player uuid.UUID, kind repository.ServerKind) (*uuid.UUID, bool, error)
}

// Service wires the lifecycle operations to their collaborators.
type Service struct {
	store      Store
	bus        eventbus.Publisher
	reputation Reputation
	echo       Echo
	placer     Placer
}

// New builds the lifecycle service. Reputation, echo, and placer may each be
// nil in reduced deployments; the dependent paths then degrade gracefully.
func New(store Store, bus eventbus.Publisher, reputation Reputation, echoClient Echo, placer Placer) *Service {
	return &Service{store: store, bus: bus, reputation: reputation, echo: echoClient, placer: placer}
}
