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
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/repository"
)

// ErrAlreadyApplied reports a sanction that is already in effect, such as
// banning a banned player.
var ErrAlreadyApplied = errors.New("sanction already applied")

// BanRequest covers the four ban operations: player ban/unban and IP-wide
// ban/unban. Duration nil means permanent.
type BanRequest struct {
	Reason   *string        `json:"reason,omitempty"`
	Duration *time.Duration `json:"duration,omitempty"`
	IP       bool           `json:"ip"`
	Unban    bool           `json:"unban"`
	Issuer   *uuid.UUID     `json:"issuer,omitempty"`
}

// BanResult lists what an IP-wide operation touched.
type BanResult struct {
	Players []uuid.UUID `json:"players"`
	IPs     []string    `json:"ips"`
}

// Ban applies or lifts a ban. The IP variant walks the session graph: every
// address the player used, every player seen on those addresses, and so on,
// all banned under one shared log entry.
func (s *Service) Ban(ctx context.Context, player uuid.UUID, req BanRequest) (BanResult, error) {
	switch {
	case req.IP && req.Unban:
		return s.unbanNetwork(ctx, player)
	case req.IP:
		return s.banNetwork(ctx, player, req)
	case req.Unban:
		return BanResult{}, s.store.RemovePlayerBan(ctx, player)
	default:
		_, err := s.store.InsertBan(ctx, player, req.Reason, req.Issuer, req.Duration)
		if err != nil {
			return BanResult{}, err
		}
		return BanResult{}, s.disconnectIfOnline(ctx, player, "Vous avez été bannis")
	}
}

func (s *Service) banNetwork(ctx context.Context, player uuid.UUID, req BanRequest) (BanResult, error) {
	players, ips, err := s.sessionClosure(ctx, player)
	if err != nil {
		return BanResult{}, err
	}

	reason := "IPBan"
	if req.Reason != nil {
		reason = fmt.Sprintf("IPBan : %s", *req.Reason)
	}

	ban, err := s.store.InsertBanLog(ctx, req.Duration, &player, nil, req.Issuer, &reason)
	if err != nil {
		return BanResult{}, err
	}
	for _, ip := range ips {
		if err := s.store.ApplyIPBan(ctx, ip, &reason, &ban, req.Duration, false); err != nil {
			return BanResult{}, err
		}
	}
	for _, p := range players {
		if err := s.store.ApplyBan(ctx, p, ban, &reason, req.Duration); err != nil {
			return BanResult{}, err
		}
		if err := s.disconnectIfOnline(ctx, p, "Vous avez été bannis"); err != nil {
			return BanResult{}, err
		}
	}
	return BanResult{Players: players, IPs: ips}, nil
}

func (s *Service) unbanNetwork(ctx context.Context, player uuid.UUID) (BanResult, error) {
	info, err := s.store.GetProxyPlayerInfo(ctx, player)
	if err != nil {
		return BanResult{}, err
	}
	if info.Ban == nil {
		return BanResult{}, nil
	}

	players, err := s.store.PlayersFromBan(ctx, *info.Ban)
	if err != nil {
		return BanResult{}, err
	}
	ips, err := s.store.IPsFromBan(ctx, *info.Ban)
	if err != nil {
		return BanResult{}, err
	}
	for _, p := range players {
		if err := s.store.RemovePlayerBan(ctx, p); err != nil {
			return BanResult{}, err
		}
	}
	for _, ip := range ips {
		if err := s.store.RemoveIPBan(ctx, ip); err != nil {
			return BanResult{}, err
		}
	}
	return BanResult{Players: players, IPs: ips}, nil
}

// sessionClosure computes the transitive set of players and addresses
// reachable from one player through shared session IPs.
func (s *Service) sessionClosure(ctx context.Context, root uuid.UUID) ([]uuid.UUID, []string, error) {
	seenPlayers := map[uuid.UUID]bool{root: true}
	seenIPs := map[string]bool{}
	players := []uuid.UUID{root}
	var ips []string

	queue := []uuid.UUID{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		addrs, err := s.store.PlayerSessionIPs(ctx, current)
		if err != nil {
			return nil, nil, err
		}
		for _, addr := range addrs {
			if seenIPs[addr] {
				continue
			}
			seenIPs[addr] = true
			ips = append(ips, addr)

			peers, err := s.store.PlayersBySessionIP(ctx, addr)
			if err != nil {
				return nil, nil, err
			}
			for _, peer := range peers {
				if seenPlayers[peer] {
					continue
				}
				seenPlayers[peer] = true
				players = append(players, peer)
				queue = append(queue, peer)
			}
		}
	}
	return players, ips, nil
}

// MuteRequest mirrors BanRequest for chat mutes.
type MuteRequest struct {
	Reason   *string        `json:"reason,omitempty"`
	Duration *time.Duration `json:"duration,omitempty"`
	Unmute   bool           `json:"unmute"`
	Issuer   *uuid.UUID     `json:"issuer,omitempty"`
}

// Mute applies or lifts a mute and tells the player's current server to
// reload them.
func (s *Service) Mute(ctx context.Context, player uuid.UUID, req MuteRequest) error {
	if req.Unmute {
		if err := s.store.RemovePlayerMute(ctx, player); err != nil {
			return err
		}
	} else {
		if _, err := s.store.InsertMute(ctx, player, req.Reason, req.Issuer, req.Duration); err != nil {
			return err
		}
	}
	return s.invalidateIfOnServer(ctx, player)
}

// SanctionResult names the applied rung and, for bans and mutes, its id.
type SanctionResult struct {
	Sanction string     `json:"sanction"`
	ID       *uuid.UUID `json:"id,omitempty"`
}

// Sanction walks a player one rung up (or down) an offense category's
// escalation ladder and applies the rung landed on. Past the last rung the
// ladder repeats its final entry.
func (s *Service) Sanction(ctx context.Context, player uuid.UUID, category string, unsanction bool, issuer *uuid.UUID) (SanctionResult, error) {
	board, err := s.store.GetSanctionBoard(ctx, category)
	if err != nil {
		return SanctionResult{}, err
	}
	if len(board.Sanctions) == 0 {
		return SanctionResult{}, repository.ErrNotFound
	}

	index, err := s.store.GetSanctionState(ctx, player, category)
	if err != nil {
		return SanctionResult{}, err
	}
	if unsanction && index > 0 {
		index--
	}

	entry := board.Sanctions[len(board.Sanctions)-1]
	if index < len(board.Sanctions) {
		entry = board.Sanctions[index]
	}
	duration, err := sanctionDuration(entry)
	if err != nil {
		return SanctionResult{}, err
	}

	var result SanctionResult
	switch entry[0] {
	case 'K':
		result = SanctionResult{Sanction: "kick"}
		if !unsanction {
			if err := s.disconnectIfOnline(ctx, player, fmt.Sprintf("Vous avez été kick pour %s", board.Label)); err != nil {
				return SanctionResult{}, err
			}
		}

	case 'B':
		info, err := s.store.GetProxyPlayerInfo(ctx, player)
		if err != nil {
			return SanctionResult{}, err
		}
		if unsanction {
			if info.Ban != nil {
				if err := s.store.RemovePlayerBan(ctx, player); err != nil {
					return SanctionResult{}, err
				}
			}
			result = SanctionResult{Sanction: "ban"}
			break
		}
		if info.Ban != nil {
			return SanctionResult{}, ErrAlreadyApplied
		}
		ban, err := s.store.InsertBan(ctx, player, &board.Label, issuer, duration)
		if err != nil {
			return SanctionResult{}, err
		}
		if err := s.disconnectIfOnline(ctx, player, fmt.Sprintf("Vous avez été bannis pour %s", board.Label)); err != nil {
			return SanctionResult{}, err
		}
		result = SanctionResult{Sanction: "ban", ID: &ban}

	case 'M':
		info, err := s.store.GetServerPlayerInfo(ctx, player)
		if err != nil {
			return SanctionResult{}, err
		}
		if unsanction {
			if info.Mute != nil {
				if err := s.store.RemovePlayerMute(ctx, player); err != nil {
					return SanctionResult{}, err
				}
			}
			result = SanctionResult{Sanction: "mute"}
			break
		}
		if info.Mute != nil {
			return SanctionResult{}, ErrAlreadyApplied
		}
		mute, err := s.store.InsertMute(ctx, player, &board.Label, issuer, duration)
		if err != nil {
			return SanctionResult{}, err
		}
		if err := s.invalidateIfOnServer(ctx, player); err != nil {
			return SanctionResult{}, err
		}
		result = SanctionResult{Sanction: "mute", ID: &mute}

	default:
		return SanctionResult{}, fmt.Errorf("unknown sanction entry %q in board %s", entry, category)
	}

	next := index + 1
	if unsanction {
		next = index
	}
	if err := s.store.SetSanctionState(ctx, player, category, next); err != nil {
		return SanctionResult{}, err
	}
	return result, nil
}

// sanctionDuration parses the seconds after the rung's type letter; a bare
// letter means permanent.
func sanctionDuration(entry string) (*time.Duration, error) {
	if len(entry) <= 1 {
		return nil, nil
	}
	secs, err := strconv.Atoi(entry[1:])
	if err != nil {
		return nil, fmt.Errorf("parse sanction duration %q: %w", entry, err)
	}
	return durationPtr(time.Duration(secs) * time.Second), nil
}

func (s *Service) disconnectIfOnline(ctx context.Context, player uuid.UUID, reason string) error {
	proxy, err := s.store.OnlinePlayerProxy(ctx, player)
	if err != nil || proxy == nil {
		return err
	}
	return s.bus.Publish(ctx, eventbus.DisconnectPlayer{Proxy: *proxy, Player: player, Reason: reason})
}

func (s *Service) invalidateIfOnServer(ctx context.Context, player uuid.UUID) error {
	server, err := s.store.OnlinePlayerServer(ctx, player)
	if err != nil || server == nil {
		return err
	}
	return s.bus.Publish(ctx, eventbus.InvalidatePlayer{Server: *server, UUID: player})
}
