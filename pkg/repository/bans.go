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
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

const (
	stmtInsertBanLog   = `INSERT INTO bans_logs (id, start, end, target, ip, issuer, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmtSelectBanLog   = `SELECT id, start, end, target, ip, issuer, reason FROM bans_logs WHERE id = ?`
	stmtApplyBan       = `UPDATE players SET ban = ?, ban_reason = ? WHERE uuid = ?`
	stmtApplyBanTTL    = `UPDATE players USING TTL ? SET ban = ?, ban_reason = ? WHERE uuid = ?`
	stmtRemoveBan      = `UPDATE players SET ban = null, ban_reason = null WHERE uuid = ?`
	stmtPlayersFromBan = `SELECT uuid FROM players WHERE ban = ? ALLOW FILTERING`
	stmtIPsFromBan     = `SELECT ip FROM ip_bans WHERE ban = ? ALLOW FILTERING`

	stmtSelectIPBan    = `SELECT ip, reason, start, end, ban, automated FROM ip_bans WHERE ip = ?`
	stmtInsertIPBan    = `INSERT INTO ip_bans (ip, reason, start, end, ban, automated) VALUES (?, ?, ?, ?, ?, ?)`
	stmtInsertIPBanTTL = `INSERT INTO ip_bans (ip, reason, start, end, ban, automated) VALUES (?, ?, ?, ?, ?, ?) USING TTL ?`
	stmtRemoveIPBan    = `DELETE FROM ip_bans WHERE ip = ?`

	stmtInsertMuteLog = `INSERT INTO mutes_logs (id, start, end, target, issuer, reason) VALUES (?, ?, ?, ?, ?, ?)`
	stmtSelectMuteLog = `SELECT id, start, end, target, issuer, reason FROM mutes_logs WHERE id = ?`
	stmtApplyMute     = `UPDATE players SET mute = ? WHERE uuid = ?`
	stmtApplyMuteTTL  = `UPDATE players USING TTL ? SET mute = ? WHERE uuid = ?`
	stmtRemoveMute    = `UPDATE players SET mute = null WHERE uuid = ?`
)

func sanctionEnd(duration *time.Duration) *time.Time {
	if duration == nil {
		return nil
	}
	end := time.Now().UTC().Add(*duration)
	return &end
}

// InsertBanLog appends the immutable ban record and returns its id. The log
// is written before any pointer so an orphan log is the worst a crash can
// leave behind.
func (r *Repository) InsertBanLog(ctx context.Context, duration *time.Duration, target *uuid.UUID, ip *string, issuer *uuid.UUID, reason *string) (uuid.UUID, error) {
	id := uuid.New()
	err := r.session.Query(stmtInsertBanLog,
		cqlID(id), time.Now().UTC(), timeVal(sanctionEnd(duration)),
		cqlIDPtr(target), strVal(ip), cqlIDPtr(issuer), strVal(reason),
	).WithContext(ctx).Exec()
	if err != nil {
		return uuid.Nil, wrap("insert ban log", err)
	}
	return id, nil
}

// ApplyBan points the player row at a ban log. A nil ttl makes the ban
// permanent; otherwise the pointer expires with the sanction.
func (r *Repository) ApplyBan(ctx context.Context, player, ban uuid.UUID, reason *string, ttl *time.Duration) error {
	var err error
	if ttl != nil {
		err = r.session.Query(stmtApplyBanTTL, ttlSeconds(*ttl), cqlID(ban), strVal(reason), cqlID(player)).WithContext(ctx).Exec()
	} else {
		err = r.session.Query(stmtApplyBan, cqlID(ban), strVal(reason), cqlID(player)).WithContext(ctx).Exec()
	}
	return wrap("apply ban", err)
}

// InsertBan logs and applies a ban to a single player in one call.
func (r *Repository) InsertBan(ctx context.Context, player uuid.UUID, reason *string, issuer *uuid.UUID, duration *time.Duration) (uuid.UUID, error) {
	ban, err := r.InsertBanLog(ctx, duration, &player, nil, issuer, reason)
	if err != nil {
		return uuid.Nil, err
	}
	return ban, r.ApplyBan(ctx, player, ban, reason, duration)
}

// RemovePlayerBan clears the active ban pointer.
func (r *Repository) RemovePlayerBan(ctx context.Context, player uuid.UUID) error {
	err := r.session.Query(stmtRemoveBan, cqlID(player)).WithContext(ctx).Exec()
	return wrap("remove player ban", err)
}

// GetBan loads a ban log row or ErrNotFound.
func (r *Repository) GetBan(ctx context.Context, id uuid.UUID) (Ban, error) {
	var (
		bid, target, issuer gocql.UUID
		start, end          time.Time
		ip, reason          *string
	)
	err := r.session.Query(stmtSelectBanLog, cqlID(id)).WithContext(ctx).
		Scan(&bid, &start, &end, &target, &ip, &issuer, &reason)
	if err != nil {
		return Ban{}, wrap("get ban", err)
	}
	return Ban{
		ID:     domainID(bid),
		Start:  start,
		End:    timePtr(end),
		Issuer: domainIDPtr(issuer),
		Reason: reason,
		Target: domainIDPtr(target),
		IP:     ip,
	}, nil
}

// PlayersFromBan returns every player whose active ban references this log.
func (r *Repository) PlayersFromBan(ctx context.Context, ban uuid.UUID) ([]uuid.UUID, error) {
	iter := r.session.Query(stmtPlayersFromBan, cqlID(ban)).WithContext(ctx).Iter()
	var (
		id  gocql.UUID
		out []uuid.UUID
	)
	for iter.Scan(&id) {
		out = append(out, domainID(id))
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("players from ban", err)
	}
	return out, nil
}

// IPsFromBan returns every address whose active IP ban references this log.
func (r *Repository) IPsFromBan(ctx context.Context, ban uuid.UUID) ([]string, error) {
	iter := r.session.Query(stmtIPsFromBan, cqlID(ban)).WithContext(ctx).Iter()
	var (
		ip  string
		out []string
	)
	for iter.Scan(&ip) {
		out = append(out, ip)
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("ips from ban", err)
	}
	return out, nil
}

// GetIPBan returns the active IP ban row for an address or ErrNotFound.
func (r *Repository) GetIPBan(ctx context.Context, ip string) (IPBan, error) {
	var (
		addr       string
		reason     *string
		start, end time.Time
		ban        gocql.UUID
		automated  bool
	)
	err := r.session.Query(stmtSelectIPBan, ip).WithContext(ctx).
		Scan(&addr, &reason, &start, &end, &ban, &automated)
	if err != nil {
		return IPBan{}, wrap("get ip ban", err)
	}
	return IPBan{
		IP:        addr,
		Reason:    reason,
		Start:     start,
		End:       timePtr(end),
		Ban:       domainIDPtr(ban),
		Automated: automated,
	}, nil
}

// ApplyIPBan denies an address, referencing an already written ban log.
// A duration bounds the row with a matching TTL so the denial and the log
// pointer expire together.
func (r *Repository) ApplyIPBan(ctx context.Context, ip string, reason *string, ban *uuid.UUID, duration *time.Duration, automated bool) error {
	now := time.Now().UTC()
	var err error
	if duration != nil {
		err = r.session.Query(stmtInsertIPBanTTL,
			ip, strVal(reason), now, now.Add(*duration), cqlIDPtr(ban), automated, ttlSeconds(*duration),
		).WithContext(ctx).Exec()
	} else {
		err = r.session.Query(stmtInsertIPBan,
			ip, strVal(reason), now, nil, cqlIDPtr(ban), automated,
		).WithContext(ctx).Exec()
	}
	return wrap("apply ip ban", err)
}

// InsertIPBan logs and applies an IP ban in one call, returning the log id.
func (r *Repository) InsertIPBan(ctx context.Context, ip string, reason *string, issuer *uuid.UUID, duration *time.Duration, automated bool) (uuid.UUID, error) {
	ban, err := r.InsertBanLog(ctx, duration, nil, &ip, issuer, reason)
	if err != nil {
		return uuid.Nil, err
	}
	return ban, r.ApplyIPBan(ctx, ip, reason, &ban, duration, automated)
}

// RemoveIPBan lifts the denial for an address.
func (r *Repository) RemoveIPBan(ctx context.Context, ip string) error {
	err := r.session.Query(stmtRemoveIPBan, ip).WithContext(ctx).Exec()
	return wrap("remove ip ban", err)
}

// InsertMute logs and applies a mute, returning the log id.
func (r *Repository) InsertMute(ctx context.Context, player uuid.UUID, reason *string, issuer *uuid.UUID, duration *time.Duration) (uuid.UUID, error) {
	id := uuid.New()
	err := r.session.Query(stmtInsertMuteLog,
		cqlID(id), time.Now().UTC(), timeVal(sanctionEnd(duration)),
		cqlID(player), cqlIDPtr(issuer), strVal(reason),
	).WithContext(ctx).Exec()
	if err != nil {
		return uuid.Nil, wrap("insert mute log", err)
	}
	if duration != nil {
		err = r.session.Query(stmtApplyMuteTTL, ttlSeconds(*duration), cqlID(id), cqlID(player)).WithContext(ctx).Exec()
	} else {
		err = r.session.Query(stmtApplyMute, cqlID(id), cqlID(player)).WithContext(ctx).Exec()
	}
	if err != nil {
		return uuid.Nil, wrap("apply mute", err)
	}
	return id, nil
}

// RemovePlayerMute clears the active mute pointer.
func (r *Repository) RemovePlayerMute(ctx context.Context, player uuid.UUID) error {
	err := r.session.Query(stmtRemoveMute, cqlID(player)).WithContext(ctx).Exec()
	return wrap("remove player mute", err)
}

// GetMute loads a mute log row or ErrNotFound.
func (r *Repository) GetMute(ctx context.Context, id uuid.UUID) (Mute, error) {
	var (
		mid, target, issuer gocql.UUID
		start, end          time.Time
		reason              *string
	)
	err := r.session.Query(stmtSelectMuteLog, cqlID(id)).WithContext(ctx).
		Scan(&mid, &start, &end, &target, &issuer, &reason)
	if err != nil {
		return Mute{}, wrap("get mute", err)
	}
	return Mute{
		ID:     domainID(mid),
		Start:  start,
		End:    timePtr(end),
		Issuer: domainIDPtr(issuer),
		Reason: reason,
		Target: domainIDPtr(target),
	}, nil
}
