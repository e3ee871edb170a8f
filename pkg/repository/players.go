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

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

const (
	stmtInsertPlayer = `INSERT INTO players (uuid, username, locale, groups) VALUES (?, ?, ?, ['Default'])`

	stmtSelectProxyPlayerInfo = `SELECT locale, groups, permissions, properties, session, ban, ban_reason, TTL(ban) FROM players WHERE uuid = ?`
	stmtSelectServerPlayerInfo = `SELECT prefix, suffix, proxy, session, locale, groups, permissions, currency, premium_currency, blocked, inventory, properties, mute, discord_id FROM players WHERE uuid = ?`
	stmtSelectFullPlayer = `SELECT uuid, username, groups, permissions, locale, prefix, suffix, currency, premium_currency, inventory, properties, blocked, friends, discord_id, proxy, server, session, waiting_move_to, ban, mute, ban_reason FROM players WHERE uuid = ?`
	stmtSelectPlayerUUIDByName = `SELECT uuid FROM players WHERE username = ? ALLOW FILTERING`
	stmtSelectPlayerUsername   = `SELECT username FROM players WHERE uuid = ?`
	stmtSelectPlayerDiscord    = `SELECT discord_id FROM players WHERE uuid = ?`
	stmtSelectPlayersByDiscord = `SELECT uuid FROM players WHERE discord_id = ? ALLOW FILTERING`

	stmtUpdatePlayerOnlineProxy = `UPDATE players SET proxy = ?, session = ?, username = ? WHERE uuid = ?`
	stmtUpdatePlayerServer      = `UPDATE players SET server = ? WHERE uuid = ?`
	stmtUpdatePlayerServerClearWaiting = `UPDATE players USING TTL ? SET server = ?, waiting_move_to = null WHERE uuid = ?`
	stmtUpdateWaitingMoveTo            = `UPDATE players USING TTL ? SET waiting_move_to = ? WHERE uuid = ?`
	stmtSelectWaitingMoveTo            = `SELECT waiting_move_to FROM players WHERE uuid = ?`
	stmtNullPlayerSession              = `UPDATE players SET proxy = null, server = null, session = null, waiting_move_to = null WHERE uuid = ?`

	stmtSelectOnlinePlayers      = `SELECT uuid, username, session, proxy, server FROM players WHERE session > minTimeuuid(0) ALLOW FILTERING`
	stmtSelectOnlinePlayerProxy  = `SELECT proxy FROM players WHERE uuid = ?`
	stmtSelectOnlinePlayerServer = `SELECT server FROM players WHERE uuid = ?`
	stmtSelectProxyAndDiscord    = `SELECT proxy, discord_id FROM players WHERE uuid = ?`
	stmtSelectPlayerSession      = `SELECT session FROM players WHERE uuid = ?`
	stmtCountPlayersOnServer     = `SELECT COUNT(uuid) FROM players WHERE server = ? ALLOW FILTERING`
	stmtSelectWaitingForKind     = `SELECT uuid, proxy FROM players WHERE waiting_move_to = ? LIMIT ? ALLOW FILTERING`

	stmtSelectPlayerCurrencies = `SELECT currency, premium_currency FROM players WHERE uuid = ?`
	stmtUpdatePlayerCurrencies = `UPDATE players SET currency = ?, premium_currency = ? WHERE uuid = ?`
	stmtSelectPlayerInventory  = `SELECT inventory FROM players WHERE uuid = ?`
	stmtSetInventoryItem       = `UPDATE players SET inventory[?] = ? WHERE uuid = ?`

	stmtAddPlayerGroup    = `UPDATE players SET groups = groups + ? WHERE uuid = ?`
	stmtAddPlayerGroupTTL = `UPDATE players USING TTL ? SET groups = groups + ? WHERE uuid = ?`
	stmtRemovePlayerGroup = `UPDATE players SET groups = groups - ? WHERE uuid = ?`

	stmtSetPlayerProperty  = `UPDATE players SET properties[?] = ? WHERE uuid = ?`
	stmtSetPlayerDiscordID = `UPDATE players SET discord_id = ? WHERE uuid = ?`

	stmtSelectPlayerEcho = `SELECT echo FROM players WHERE uuid = ?`
	stmtSetPlayerEcho    = `UPDATE players SET echo = ? WHERE uuid = ?`
)

// ProxyPlayerInfo is the proxy-login projection of a player row. BanTTL is
// the remaining seconds of the active ban pointer, nil for a permanent one.
type ProxyPlayerInfo struct {
	Locale      *string
	Groups      []string
	Permissions []string
	Properties  map[string]string
	Session     *uuid.UUID
	Ban         *uuid.UUID
	BanReason   *string
	BanTTL      *int
}

// ServerPlayerInfo is the server-login projection of a player row.
type ServerPlayerInfo struct {
	Prefix          *string
	Suffix          *string
	Proxy           uuid.UUID
	Session         uuid.UUID
	Locale          *string
	Groups          []string
	Permissions     []string
	Currency        int64
	PremiumCurrency int64
	Blocked         []uuid.UUID
	Inventory       map[string]int64
	Properties      map[string]string
	Mute            *uuid.UUID
	DiscordID       *string
}

// OnlinePlayer is the reduced projection used for fleet-wide listings and
// proxy-teardown sweeps.
type OnlinePlayer struct {
	UUID     uuid.UUID
	Username string
	Session  uuid.UUID
	Proxy    uuid.UUID
	Server   *uuid.UUID
}

// InsertPlayer creates a default player row on first sight. The row starts
// in the Default group with no locale override.
func (r *Repository) InsertPlayer(ctx context.Context, player uuid.UUID, username string, locale *string) error {
	err := r.session.Query(stmtInsertPlayer, cqlID(player), username, strVal(locale)).WithContext(ctx).Exec()
	return wrap("insert player", err)
}

// GetProxyPlayerInfo loads the proxy-login projection or ErrNotFound.
func (r *Repository) GetProxyPlayerInfo(ctx context.Context, player uuid.UUID) (ProxyPlayerInfo, error) {
	var (
		locale, banReason   *string
		groups, permissions []string
		properties          map[string]string
		session, ban        gocql.UUID
		banTTL              *int
	)
	err := r.session.Query(stmtSelectProxyPlayerInfo, cqlID(player)).WithContext(ctx).
		Scan(&locale, &groups, &permissions, &properties, &session, &ban, &banReason, &banTTL)
	if err != nil {
		return ProxyPlayerInfo{}, wrap("get proxy player info", err)
	}
	return ProxyPlayerInfo{
		Locale:      locale,
		Groups:      groups,
		Permissions: permissions,
		Properties:  properties,
		Session:     domainIDPtr(session),
		Ban:         domainIDPtr(ban),
		BanReason:   banReason,
		BanTTL:      banTTL,
	}, nil
}

// GetServerPlayerInfo loads the server-login projection or ErrNotFound.
func (r *Repository) GetServerPlayerInfo(ctx context.Context, player uuid.UUID) (ServerPlayerInfo, error) {
	var (
		prefix, suffix, locale, discord *string
		proxy, session, mute            gocql.UUID
		groups, permissions             []string
		currency, premiumCurrency       int64
		blocked                         []gocql.UUID
		inventory                       map[string]int64
		properties                      map[string]string
	)
	err := r.session.Query(stmtSelectServerPlayerInfo, cqlID(player)).WithContext(ctx).
		Scan(&prefix, &suffix, &proxy, &session, &locale, &groups, &permissions,
			&currency, &premiumCurrency, &blocked, &inventory, &properties, &mute, &discord)
	if err != nil {
		return ServerPlayerInfo{}, wrap("get server player info", err)
	}
	return ServerPlayerInfo{
		Prefix:          prefix,
		Suffix:          suffix,
		Proxy:           domainID(proxy),
		Session:         domainID(session),
		Locale:          locale,
		Groups:          groups,
		Permissions:     permissions,
		Currency:        currency,
		PremiumCurrency: premiumCurrency,
		Blocked:         domainIDs(blocked),
		Inventory:       inventory,
		Properties:      properties,
		Mute:            domainIDPtr(mute),
		DiscordID:       discord,
	}, nil
}

// GetFullPlayer loads the entire player row or ErrNotFound.
func (r *Repository) GetFullPlayer(ctx context.Context, player uuid.UUID) (Player, error) {
	var (
		id, proxy, server, session, ban, mute gocql.UUID
		username                              string
		groups, permissions                   []string
		locale, prefix, suffix                *string
		currency, premiumCurrency             int64
		inventory                             map[string]int64
		properties                            map[string]string
		blocked, friends                      []gocql.UUID
		discordID, waiting, banReason         *string
	)
	err := r.session.Query(stmtSelectFullPlayer, cqlID(player)).WithContext(ctx).
		Scan(&id, &username, &groups, &permissions, &locale, &prefix, &suffix,
			&currency, &premiumCurrency, &inventory, &properties, &blocked, &friends,
			&discordID, &proxy, &server, &session, &waiting, &ban, &mute, &banReason)
	if err != nil {
		return Player{}, wrap("get full player", err)
	}
	return Player{
		UUID:            domainID(id),
		Username:        username,
		Groups:          groups,
		Permissions:     permissions,
		Locale:          locale,
		Prefix:          prefix,
		Suffix:          suffix,
		Currency:        currency,
		PremiumCurrency: premiumCurrency,
		Inventory:       inventory,
		Properties:      properties,
		Blocked:         domainIDs(blocked),
		Friends:         domainIDs(friends),
		DiscordID:       discordID,
		Proxy:           domainIDPtr(proxy),
		Server:          domainIDPtr(server),
		Session:         domainIDPtr(session),
		WaitingMoveTo:   waiting,
		Ban:             domainIDPtr(ban),
		Mute:            domainIDPtr(mute),
		BanReason:       banReason,
	}, nil
}

// PlayerUUIDByName resolves a username to its uuid or ErrNotFound.
func (r *Repository) PlayerUUIDByName(ctx context.Context, name string) (uuid.UUID, error) {
	var id gocql.UUID
	err := r.session.Query(stmtSelectPlayerUUIDByName, name).WithContext(ctx).Scan(&id)
	if err != nil {
		return uuid.Nil, wrap("player uuid by name", err)
	}
	return domainID(id), nil
}

// PlayerUsername returns the stored username or ErrNotFound.
func (r *Repository) PlayerUsername(ctx context.Context, player uuid.UUID) (string, error) {
	var username string
	err := r.session.Query(stmtSelectPlayerUsername, cqlID(player)).WithContext(ctx).Scan(&username)
	if err != nil {
		return "", wrap("player username", err)
	}
	return username, nil
}

// PlayerDiscordID returns the linked discord id, nil when unlinked.
func (r *Repository) PlayerDiscordID(ctx context.Context, player uuid.UUID) (*string, error) {
	var discord *string
	err := r.session.Query(stmtSelectPlayerDiscord, cqlID(player)).WithContext(ctx).Scan(&discord)
	if err != nil {
		return nil, wrap("player discord id", err)
	}
	return discord, nil
}

// PlayersByDiscordID returns every player bound to a discord account.
func (r *Repository) PlayersByDiscordID(ctx context.Context, discord string) ([]uuid.UUID, error) {
	iter := r.session.Query(stmtSelectPlayersByDiscord, discord).WithContext(ctx).Iter()
	var (
		id  gocql.UUID
		out []uuid.UUID
	)
	for iter.Scan(&id) {
		out = append(out, domainID(id))
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("players by discord id", err)
	}
	return out, nil
}

// SetPlayerOnlineProxy transitions the player to online: proxy and session
// pointers set, username refreshed.
func (r *Repository) SetPlayerOnlineProxy(ctx context.Context, player, proxy, session uuid.UUID, username string) error {
	err := r.session.Query(stmtUpdatePlayerOnlineProxy, cqlID(proxy), cqlID(session), username, cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player online proxy", err)
}

// SetPlayerServer points the player at its current game server.
func (r *Repository) SetPlayerServer(ctx context.Context, player, server uuid.UUID) error {
	err := r.session.Query(stmtUpdatePlayerServer, cqlID(server), cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player server", err)
}

// SetServerClearWaiting sets the server pointer and clears the autoscale
// queue flag in a single row write. The server column carries a 24 hour TTL
// so a crashed proxy cannot pin a player to a dead server forever.
func (r *Repository) SetServerClearWaiting(ctx context.Context, player, server uuid.UUID) error {
	err := r.session.Query(stmtUpdatePlayerServerClearWaiting, ttlSeconds(TTLPlayerServer), cqlID(server), cqlID(player)).WithContext(ctx).Exec()
	return wrap("set server clear waiting", err)
}

// SetWaitingMoveTo queues the player on an autoscaling kind.
func (r *Repository) SetWaitingMoveTo(ctx context.Context, player uuid.UUID, kind string) error {
	err := r.session.Query(stmtUpdateWaitingMoveTo, ttlSeconds(TTLWaitingMove), kind, cqlID(player)).WithContext(ctx).Exec()
	return wrap("set waiting move to", err)
}

// GetWaitingMoveTo returns the kind the player is queued on, nil if none.
func (r *Repository) GetWaitingMoveTo(ctx context.Context, player uuid.UUID) (*string, error) {
	var waiting *string
	err := r.session.Query(stmtSelectWaitingMoveTo, cqlID(player)).WithContext(ctx).Scan(&waiting)
	if err != nil {
		if wrapped := wrap("get waiting move to", err); wrapped != ErrNotFound {
			return nil, wrapped
		}
		return nil, nil
	}
	return waiting, nil
}

// NullPlayerSession clears every online pointer of the player atomically
// within the row.
func (r *Repository) NullPlayerSession(ctx context.Context, player uuid.UUID) error {
	err := r.session.Query(stmtNullPlayerSession, cqlID(player)).WithContext(ctx).Exec()
	return wrap("null player session", err)
}

// OnlinePlayers lists every player currently holding a session.
func (r *Repository) OnlinePlayers(ctx context.Context) ([]OnlinePlayer, error) {
	iter := r.session.Query(stmtSelectOnlinePlayers).WithContext(ctx).Iter()
	var (
		id, session, proxy, server gocql.UUID
		username                   string
		out                        []OnlinePlayer
	)
	for iter.Scan(&id, &username, &session, &proxy, &server) {
		out = append(out, OnlinePlayer{
			UUID:     domainID(id),
			Username: username,
			Session:  domainID(session),
			Proxy:    domainID(proxy),
			Server:   domainIDPtr(server),
		})
		server = gocql.UUID{}
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("online players", err)
	}
	return out, nil
}

// OnlinePlayerProxy returns the proxy the player is connected through, nil
// when offline.
func (r *Repository) OnlinePlayerProxy(ctx context.Context, player uuid.UUID) (*uuid.UUID, error) {
	return r.scanOptionalID(ctx, "online player proxy", stmtSelectOnlinePlayerProxy, player)
}

// OnlinePlayerServer returns the server the player currently plays on, nil
// when not on one.
func (r *Repository) OnlinePlayerServer(ctx context.Context, player uuid.UUID) (*uuid.UUID, error) {
	return r.scanOptionalID(ctx, "online player server", stmtSelectOnlinePlayerServer, player)
}

// PlayerSession returns the active session pointer, nil when offline.
func (r *Repository) PlayerSession(ctx context.Context, player uuid.UUID) (*uuid.UUID, error) {
	return r.scanOptionalID(ctx, "player session", stmtSelectPlayerSession, player)
}

// OnlinePlayerProxyAndDiscord reads the routing proxy and the discord link
// in one round trip; both may be nil.
func (r *Repository) OnlinePlayerProxyAndDiscord(ctx context.Context, player uuid.UUID) (*uuid.UUID, *string, error) {
	var (
		proxy   gocql.UUID
		discord *string
	)
	err := r.session.Query(stmtSelectProxyAndDiscord, cqlID(player)).WithContext(ctx).Scan(&proxy, &discord)
	if err != nil {
		if wrapped := wrap("online player proxy and discord", err); wrapped != ErrNotFound {
			return nil, nil, wrapped
		}
		return nil, nil, nil
	}
	return domainIDPtr(proxy), discord, nil
}

// CountPlayersOnServer counts players whose server pointer names this server.
func (r *Repository) CountPlayersOnServer(ctx context.Context, server uuid.UUID) (int64, error) {
	var count int64
	err := r.session.Query(stmtCountPlayersOnServer, cqlID(server)).WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, wrap("count players on server", err)
	}
	return count, nil
}

// ListPlayersWaitingForKind returns up to limit queue entries for a kind.
func (r *Repository) ListPlayersWaitingForKind(ctx context.Context, kind string, limit int) ([]WaitingPlayer, error) {
	iter := r.session.Query(stmtSelectWaitingForKind, kind, limit).WithContext(ctx).Iter()
	var (
		id, proxy gocql.UUID
		out       []WaitingPlayer
	)
	for iter.Scan(&id, &proxy) {
		out = append(out, WaitingPlayer{UUID: domainID(id), Proxy: domainIDPtr(proxy)})
		proxy = gocql.UUID{}
	}
	if err := iter.Close(); err != nil {
		return nil, wrap("list players waiting for kind", err)
	}
	return out, nil
}

// PlayerCurrencies reads both currency balances or ErrNotFound.
func (r *Repository) PlayerCurrencies(ctx context.Context, player uuid.UUID) (int64, int64, error) {
	var currency, premium int64
	err := r.session.Query(stmtSelectPlayerCurrencies, cqlID(player)).WithContext(ctx).Scan(&currency, &premium)
	if err != nil {
		return 0, 0, wrap("player currencies", err)
	}
	return currency, premium, nil
}

// SetPlayerCurrencies overwrites both balances.
func (r *Repository) SetPlayerCurrencies(ctx context.Context, player uuid.UUID, currency, premium int64) error {
	err := r.session.Query(stmtUpdatePlayerCurrencies, currency, premium, cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player currencies", err)
}

// PlayerInventory reads the item map or ErrNotFound.
func (r *Repository) PlayerInventory(ctx context.Context, player uuid.UUID) (map[string]int64, error) {
	var inventory map[string]int64
	err := r.session.Query(stmtSelectPlayerInventory, cqlID(player)).WithContext(ctx).Scan(&inventory)
	if err != nil {
		return nil, wrap("player inventory", err)
	}
	if inventory == nil {
		inventory = map[string]int64{}
	}
	return inventory, nil
}

// SetPlayerInventoryItem writes a single item count.
func (r *Repository) SetPlayerInventoryItem(ctx context.Context, player uuid.UUID, item string, count int64) error {
	err := r.session.Query(stmtSetInventoryItem, item, count, cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player inventory item", err)
}

// AddPlayerGroup appends a group membership, optionally expiring.
func (r *Repository) AddPlayerGroup(ctx context.Context, player uuid.UUID, group string, ttlSecs int) error {
	var err error
	if ttlSecs > 0 {
		err = r.session.Query(stmtAddPlayerGroupTTL, ttlSecs, []string{group}, cqlID(player)).WithContext(ctx).Exec()
	} else {
		err = r.session.Query(stmtAddPlayerGroup, []string{group}, cqlID(player)).WithContext(ctx).Exec()
	}
	return wrap("add player group", err)
}

// RemovePlayerGroup removes a group membership.
func (r *Repository) RemovePlayerGroup(ctx context.Context, player uuid.UUID, group string) error {
	err := r.session.Query(stmtRemovePlayerGroup, []string{group}, cqlID(player)).WithContext(ctx).Exec()
	return wrap("remove player group", err)
}

// SetPlayerProperty writes one entry of the free-form property map.
func (r *Repository) SetPlayerProperty(ctx context.Context, player uuid.UUID, key, value string) error {
	err := r.session.Query(stmtSetPlayerProperty, key, value, cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player property", err)
}

// SetPlayerDiscordID binds or clears the discord link on the player row.
func (r *Repository) SetPlayerDiscordID(ctx context.Context, player uuid.UUID, discord *string) error {
	err := r.session.Query(stmtSetPlayerDiscordID, strVal(discord), cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player discord id", err)
}

// PlayerEchoEnabled reports whether positional-audio tracking is on.
func (r *Repository) PlayerEchoEnabled(ctx context.Context, player uuid.UUID) (bool, error) {
	var enabled *bool
	err := r.session.Query(stmtSelectPlayerEcho, cqlID(player)).WithContext(ctx).Scan(&enabled)
	if err != nil {
		if wrapped := wrap("player echo enabled", err); wrapped != ErrNotFound {
			return false, wrapped
		}
		return false, nil
	}
	return enabled != nil && *enabled, nil
}

// SetPlayerEchoEnabled flips positional-audio tracking.
func (r *Repository) SetPlayerEchoEnabled(ctx context.Context, player uuid.UUID, enabled bool) error {
	err := r.session.Query(stmtSetPlayerEcho, enabled, cqlID(player)).WithContext(ctx).Exec()
	return wrap("set player echo enabled", err)
}

func (r *Repository) scanOptionalID(ctx context.Context, op, stmt string, player uuid.UUID) (*uuid.UUID, error) {
	var id gocql.UUID
	err := r.session.Query(stmt, cqlID(player)).WithContext(ctx).Scan(&id)
	if err != nil {
		if wrapped := wrap(op, err); wrapped != ErrNotFound {
			return nil, wrapped
		}
		return nil, nil
	}
	return domainIDPtr(id), nil
}
