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
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/skynet-mc/skynet/pkg/message"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/telemetryfields"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

// ProxyLoginRequest is what a proxy submits when a client connects.
type ProxyLoginRequest struct {
	Username string  `json:"username"`
	Proxy    uuid.UUID `json:"proxy"`
	IP       string  `json:"ip"`
	Version  string  `json:"version"`
	Locale   *string `json:"locale"`
}

// ProxyLoginInfo is the resolved login payload for the proxy side.
type ProxyLoginInfo struct {
	Power       int               `json:"power"`
	Permissions []string          `json:"permissions"`
	Locale      string            `json:"locale"`
	Properties  map[string]string `json:"properties"`
}

// ProxyLoginResult is either an allow with a fresh session or a denial with
// a client-renderable message.
type ProxyLoginResult struct {
	Allowed bool
	Session uuid.UUID
	Info    ProxyLoginInfo
	Message message.Message
}

// ProxyLogin admits a player onto a proxy. Unknown players get a default
// row; a live session or an active ban denies the login.
func (s *Service) ProxyLogin(ctx context.Context, player uuid.UUID, req ProxyLoginRequest) (ProxyLoginResult, error) {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanPlayerLogin,
		trace.WithAttributes(
			tracing.AttrPlayerID(player),
			tracing.AttrProxyID(req.Proxy),
			tracing.AttrUsername(req.Username),
			tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeAllowed),
		))
	defer span.End()

	info, err := s.store.GetProxyPlayerInfo(ctx, player)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := s.store.InsertPlayer(ctx, player, req.Username, nil); err != nil {
			return ProxyLoginResult{}, err
		}
		info = repository.ProxyPlayerInfo{Groups: []string{"Default"}}
	case err != nil:
		return ProxyLoginResult{}, err
	}

	if info.Session != nil {
		span.SetAttributes(tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeAlreadyConnected))
		return ProxyLoginResult{Message: alreadyConnectedMessage(*info.Session)}, nil
	}
	if info.Ban != nil {
		span.SetAttributes(tracing.AttrLoginOutcome(telemetryfields.LoginOutcomeBanned))
		return ProxyLoginResult{Message: banMessage(info)}, nil
	}

	permissions, power := s.composePermissions(info.Groups, info.Permissions, repository.KindProxy)

	session := uuid.New()
	if err := s.store.InsertSession(ctx, session, player, req.IP, req.Version); err != nil {
		return ProxyLoginResult{}, err
	}
	if err := s.store.SetPlayerOnlineProxy(ctx, player, req.Proxy, session, req.Username); err != nil {
		return ProxyLoginResult{}, err
	}

	return ProxyLoginResult{
		Allowed: true,
		Session: session,
		Info: ProxyLoginInfo{
			Power:       power,
			Permissions: permissions,
			Locale:      localeOrDefault(info.Locale),
			Properties:  orEmpty(info.Properties),
		},
	}, nil
}

// ServerLoginInfo is the resolved login payload for a game server.
type ServerLoginInfo struct {
	Session         uuid.UUID         `json:"session"`
	Proxy           uuid.UUID         `json:"proxy"`
	Prefix          *string           `json:"prefix"`
	Suffix          *string           `json:"suffix"`
	Locale          string            `json:"locale"`
	Permissions     []string          `json:"permissions"`
	Power           int               `json:"power"`
	Currency        int64             `json:"currency"`
	PremiumCurrency int64             `json:"premium_currency"`
	Blocked         []uuid.UUID       `json:"blocked"`
	Inventory       map[string]int64  `json:"inventory"`
	Properties      map[string]string `json:"properties"`
	Mute            *repository.Mute  `json:"mute,omitempty"`
	DiscordID       *string           `json:"discord_id"`
}

// ServerLogin admits an already-proxied player onto a game server. A server
// whose host property names the player grants the Host group for this login
// only. Landing on the kind the player was queued for clears the queue flag
// in the same write.
func (s *Service) ServerLogin(ctx context.Context, player, server uuid.UUID) (ServerLoginInfo, error) {
	kindName, props, err := s.store.ServerKindAndProperties(ctx, server)
	if err != nil {
		return ServerLoginInfo{}, err
	}
	if _, ok := s.store.GetServerKind(kindName); !ok {
		return ServerLoginInfo{}, repository.ErrNotFound
	}

	info, err := s.store.GetServerPlayerInfo(ctx, player)
	if err != nil {
		return ServerLoginInfo{}, err
	}

	groups := info.Groups
	if host, ok := props["host"]; ok {
		if hostID, err := uuid.Parse(host); err == nil && hostID == player {
			groups = append(append([]string{}, groups...), "Host")
		}
	}

	permissions, power := s.composePermissions(groups, info.Permissions, kindName)
	prefix, suffix := s.decoration(groups, info.Prefix, info.Suffix)

	var mute *repository.Mute
	if info.Mute != nil {
		m, err := s.store.GetMute(ctx, *info.Mute)
		if err == nil {
			mute = &m
		} else if !errors.Is(err, repository.ErrNotFound) {
			return ServerLoginInfo{}, err
		}
	}

	waiting, err := s.store.GetWaitingMoveTo(ctx, player)
	if err != nil {
		return ServerLoginInfo{}, err
	}
	if waiting != nil && *waiting == kindName {
		err = s.store.SetServerClearWaiting(ctx, player, server)
	} else {
		err = s.store.SetPlayerServer(ctx, player, server)
	}
	if err != nil {
		return ServerLoginInfo{}, err
	}

	return ServerLoginInfo{
		Session:         info.Session,
		Proxy:           info.Proxy,
		Prefix:          prefix,
		Suffix:          suffix,
		Locale:          localeOrDefault(info.Locale),
		Permissions:     permissions,
		Power:           power,
		Currency:        info.Currency,
		PremiumCurrency: info.PremiumCurrency,
		Blocked:         info.Blocked,
		Inventory:       orEmpty(info.Inventory),
		Properties:      orEmpty(info.Properties),
		Mute:            mute,
		DiscordID:       info.DiscordID,
	}, nil
}

func alreadyConnectedMessage(session uuid.UUID) message.Message {
	return message.NewBuilder().
		Styled("Menestis ", message.DarkAqua, message.Modifiers{Bold: true}).
		Colored("» ", message.White).
		LineBreak().
		Colored("Connection impossible...", message.Red).
		LineBreak().
		LineBreak().
		Colored("Vous êtes déjà connecté(e) à notre infrastructure", message.Red).
		LineBreak().
		Colored("Si le problème persiste merci de contacter le support.", message.Red).
		LineBreak().
		Text(fmt.Sprintf("En précisant l'identifiant de session suivant : %s", session)).
		Build()
}

func banMessage(info repository.ProxyPlayerInfo) message.Message {
	reason := "non spécifié"
	if info.BanReason != nil {
		reason = *info.BanReason
	}

	expiry := "Jamais"
	if info.BanTTL != nil {
		remaining := time.Duration(*info.BanTTL) * time.Second
		expiry = fmt.Sprintf("%s (%s)", remaining, time.Now().Add(remaining+2*time.Minute).Format(time.RFC1123))
	}

	return message.NewBuilder().
		Colored("» ", message.White).
		Colored("Vous avez été banni(e) de notre infrastructure.", message.Red).
		LineBreak().
		Colored("» ", message.DarkGray).
		Colored("Raison : ", message.Gray).
		Text(reason).
		LineBreak().
		Colored("» ", message.DarkGray).
		Colored("Expiration : ", message.Gray).
		Text(expiry).
		LineBreak().
		Colored("Si vous pensez que c'est une erreur, contactez le support.", message.Red).
		LineBreak().
		Text(fmt.Sprintf("Identifiant : %s", *info.Ban)).
		LineBreak().
		Build()
}

func orEmpty[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
