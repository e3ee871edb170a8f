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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

// CloseSession ends the player's live session when they leave the proxy and
// stops any alpha tracking tied to it. No-op for players without a session.
func (s *Service) CloseSession(ctx context.Context, player uuid.UUID) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanSessionClose,
		trace.WithAttributes(tracing.AttrPlayerID(player)))
	defer span.End()

	session, err := s.store.PlayerSession(ctx, player)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	span.SetAttributes(tracing.AttrSessionID(*session))

	if err := s.store.CloseSession(ctx, *session); err != nil {
		return err
	}
	if err := s.store.NullPlayerSession(ctx, player); err != nil {
		return err
	}

	if s.echo == nil {
		return nil
	}
	enabled, err := s.store.PlayerEchoEnabled(ctx, player)
	if err != nil || !enabled {
		return err
	}
	if err := s.echo.ForgetPlayer(ctx, player); err != nil {
		klog.Errorf("forget tracked player %s: %v", player, err)
	}
	return s.store.SetPlayerEchoEnabled(ctx, player, false)
}

// Disconnect kicks an online player off their proxy without a message.
func (s *Service) Disconnect(ctx context.Context, player uuid.UUID) error {
	proxy, err := s.store.OnlinePlayerProxy(ctx, player)
	if err != nil {
		return err
	}
	if proxy == nil {
		return repository.ErrNotFound
	}
	return s.bus.Publish(ctx, eventbus.DisconnectPlayer{Proxy: *proxy, Player: player})
}
