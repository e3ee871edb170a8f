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
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/echo"
	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

// MoveOutcome tells the caller why a move did or did not happen.
type MoveOutcome string

const (
	MoveOK                MoveOutcome = "Ok"
	MoveFailed            MoveOutcome = "Failed"
	MovePlayerOffline     MoveOutcome = "PlayerOffline"
	MoveMissingServer     MoveOutcome = "MissingServer"
	MoveMissingServerKind MoveOutcome = "MissingServerKind"
	MoveUnlinkedPlayer    MoveOutcome = "UnlinkedPlayer"
)

// MoveRequest targets either one server or any server of a kind; exactly one
// of Server and ServerKind is set. Admin moves bypass the proxy queue.
type MoveRequest struct {
	Server     *uuid.UUID `json:"server,omitempty"`
	ServerKind *string    `json:"server_kind,omitempty"`
	Admin      bool       `json:"admin"`
}

// Move relocates an online, discord-linked player. Server moves are direct;
// kind moves go through the placer and may provision capacity.
func (s *Service) Move(ctx context.Context, player uuid.UUID, req MoveRequest) (MoveOutcome, error) {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanPlayerMove,
		trace.WithAttributes(tracing.AttrPlayerID(player)))
	defer span.End()

	proxy, discord, err := s.store.OnlinePlayerProxyAndDiscord(ctx, player)
	if err != nil {
		return "", err
	}
	if proxy == nil {
		return MovePlayerOffline, nil
	}
	if discord == nil {
		return MoveUnlinkedPlayer, nil
	}

	switch {
	case req.Server != nil:
		if _, err := s.store.ServerKindOf(ctx, *req.Server); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return MoveMissingServer, nil
			}
			return "", err
		}
		if err := s.commitMove(ctx, player, *proxy, *req.Server, req.Admin); err != nil {
			return "", err
		}
		return MoveOK, nil

	case req.ServerKind != nil:
		kind, ok := s.store.GetServerKind(*req.ServerKind)
		if !ok {
			return MoveMissingServerKind, nil
		}
		if s.placer == nil {
			return MoveFailed, nil
		}
		dest, ok, err := s.placer.MoveToKind(ctx, player, kind)
		if err != nil {
			return "", err
		}
		if !ok {
			return MoveFailed, nil
		}
		// A queued player has no destination yet; the transfer order goes
		// out when a server of the kind announces Waiting.
		if dest != nil {
			if err := s.commitMove(ctx, player, *proxy, *dest, req.Admin); err != nil {
				return "", err
			}
		}
		return MoveOK, nil

	default:
		return MoveFailed, nil
	}
}

// commitMove publishes the transfer order and keeps the alpha tracker in
// step with the player's new server.
func (s *Service) commitMove(ctx context.Context, player, proxy, server uuid.UUID, admin bool) error {
	if admin {
		if err := s.bus.Publish(ctx, eventbus.AdminMovePlayer{Server: server, Player: player}); err != nil {
			return err
		}
	} else {
		if err := s.bus.Publish(ctx, eventbus.MovePlayer{Proxy: proxy, Server: server, Player: player}); err != nil {
			return err
		}
	}

	if s.echo == nil {
		return nil
	}
	enabled, err := s.store.PlayerEchoEnabled(ctx, player)
	if err != nil || !enabled {
		return err
	}

	target, err := s.store.GetServer(ctx, server)
	if err != nil {
		return err
	}
	if target.Key != nil {
		if _, err := s.echo.TrackPlayer(ctx, player, echo.UserDefinition{Server: server}); err != nil {
			klog.Errorf("update tracked player %s: %v", player, err)
		}
		return nil
	}

	// Destination has no tracking endpoint: stop following the player.
	if err := s.echo.ForgetPlayer(ctx, player); err != nil {
		klog.Errorf("forget tracked player %s: %v", player, err)
	}
	return s.store.SetPlayerEchoEnabled(ctx, player, false)
}
