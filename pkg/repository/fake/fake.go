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

// Package fake provides an in-memory Repository for tests. It mirrors the
// method set of the real store; consumers declare the narrow interfaces they
// need and this type satisfies them all.
package fake

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/skynet-mc/skynet/pkg/repository"
)

// StatRow is one recorded statistic sample.
type StatRow struct {
	Player     uuid.UUID
	Session    uuid.UUID
	Server     uuid.UUID
	ServerKind string
	Key        string
	Value      int64
	At         time.Time
}

// Repository holds everything in maps guarded by one mutex. Fields are
// exported so tests can seed and inspect state directly.
type Repository struct {
	mu sync.Mutex

	Players     map[uuid.UUID]*repository.Player
	BanTTLs     map[uuid.UUID]int
	EchoEnabled map[uuid.UUID]bool

	Sessions map[uuid.UUID]*repository.Session

	Servers    map[uuid.UUID]*repository.Server
	ServerLogs []repository.ServerLog

	BanLogs  map[uuid.UUID]repository.Ban
	MuteLogs map[uuid.UUID]repository.Mute
	IPBans   map[string]repository.IPBan

	Boards         map[string]repository.SanctionBoard
	SanctionStates map[string]int

	Stats []StatRow

	Leaderboards map[string]repository.Leaderboard
	Settings     map[string]string

	Groups    map[string]repository.Group
	APIGroups map[string]repository.ApiGroup
	Kinds     map[string]repository.ServerKind
	APIKeys   map[uuid.UUID]repository.ApiKey

	DiscordLinks map[string]uuid.UUID
	Webhooks     map[string]string
}

// New returns an empty fake store.
func New() *Repository {
	return &Repository{
		Players:        map[uuid.UUID]*repository.Player{},
		BanTTLs:        map[uuid.UUID]int{},
		EchoEnabled:    map[uuid.UUID]bool{},
		Sessions:       map[uuid.UUID]*repository.Session{},
		Servers:        map[uuid.UUID]*repository.Server{},
		BanLogs:        map[uuid.UUID]repository.Ban{},
		MuteLogs:       map[uuid.UUID]repository.Mute{},
		IPBans:         map[string]repository.IPBan{},
		Boards:         map[string]repository.SanctionBoard{},
		SanctionStates: map[string]int{},
		Leaderboards:   map[string]repository.Leaderboard{},
		Settings:       map[string]string{},
		Groups:         map[string]repository.Group{},
		APIGroups:      map[string]repository.ApiGroup{},
		Kinds:          map[string]repository.ServerKind{},
		APIKeys:        map[uuid.UUID]repository.ApiKey{},
		DiscordLinks:   map[string]uuid.UUID{},
		Webhooks:       map[string]string{},
	}
}

// AddPlayer seeds a player row and returns it for further mutation.
func (f *Repository) AddPlayer(id uuid.UUID, username string) *repository.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &repository.Player{UUID: id, Username: username, Groups: []string{"Default"}}
	f.Players[id] = p
	return p
}

// AddServer seeds a server row.
func (f *Repository) AddServer(srv repository.Server) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := srv
	f.Servers[srv.ID] = &s
}

// Servers --------------------------------------------------------------------

func (f *Repository) CreateServer(_ context.Context, srv repository.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := srv
	f.Servers[srv.ID] = &s
	return nil
}

func (f *Repository) GetServer(_ context.Context, id uuid.UUID) (repository.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Servers[id]
	if !ok {
		return repository.Server{}, repository.ErrNotFound
	}
	return *s, nil
}

func (f *Repository) GetServerByLabel(_ context.Context, label string) (repository.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.Servers {
		if s.Label == label {
			return *s, nil
		}
	}
	return repository.Server{}, repository.ErrNotFound
}

func (f *Repository) ListServers(_ context.Context) ([]repository.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Server, 0, len(f.Servers))
	for _, s := range f.Servers {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (f *Repository) ListServersByKind(_ context.Context, kind string) ([]repository.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Server
	for _, s := range f.Servers {
		if s.Kind == kind {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (f *Repository) UpdateServerState(_ context.Context, id uuid.UUID, state repository.ServerState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Servers[id]; ok {
		s.State = state
	}
	return nil
}

func (f *Repository) UpdateServerDescription(_ context.Context, id uuid.UUID, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Servers[id]; ok {
		s.Description = description
	}
	return nil
}

func (f *Repository) UpdateServerOnline(_ context.Context, id uuid.UUID, online int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Servers[id]; ok {
		s.Online = online
	}
	return nil
}

func (f *Repository) SetServerKey(_ context.Context, id, key uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Servers[id]; ok {
		k := key
		s.Key = &k
	}
	return nil
}

func (f *Repository) DeleteServer(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Servers, id)
	return nil
}

func (f *Repository) InsertServerLog(_ context.Context, log repository.ServerLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ServerLogs = append(f.ServerLogs, log)
	return nil
}

// Reference data -------------------------------------------------------------

func (f *Repository) GetGroup(name string) (repository.Group, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.Groups[name]
	return g, ok
}

func (f *Repository) GroupsByName(names []string) []repository.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Group, 0, len(names))
	for _, name := range names {
		if g, ok := f.Groups[name]; ok {
			out = append(out, g)
		}
	}
	return out
}

func (f *Repository) GetAPIGroup(name string) (repository.ApiGroup, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.APIGroups[name]
	return g, ok
}

func (f *Repository) GetServerKind(name string) (repository.ServerKind, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.Kinds[name]
	return k, ok
}

func (f *Repository) ServerKinds() []repository.ServerKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.ServerKind, 0, len(f.Kinds))
	for _, k := range f.Kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *Repository) ServerKindOf(_ context.Context, server uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Servers[server]
	if !ok {
		return "", repository.ErrNotFound
	}
	return s.Kind, nil
}

func (f *Repository) ServerKindAndProperties(_ context.Context, server uuid.UUID) (string, map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Servers[server]
	if !ok {
		return "", nil, repository.ErrNotFound
	}
	return s.Kind, s.Properties, nil
}

// Players --------------------------------------------------------------------

func (f *Repository) InsertPlayer(_ context.Context, player uuid.UUID, username string, locale *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Players[player] = &repository.Player{
		UUID:     player,
		Username: username,
		Locale:   locale,
		Groups:   []string{"Default"},
	}
	return nil
}

func (f *Repository) GetProxyPlayerInfo(_ context.Context, player uuid.UUID) (repository.ProxyPlayerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return repository.ProxyPlayerInfo{}, repository.ErrNotFound
	}
	info := repository.ProxyPlayerInfo{
		Locale:      p.Locale,
		Groups:      p.Groups,
		Permissions: p.Permissions,
		Properties:  p.Properties,
		Session:     p.Session,
		Ban:         p.Ban,
		BanReason:   p.BanReason,
	}
	if ttl, ok := f.BanTTLs[player]; ok && p.Ban != nil {
		t := ttl
		info.BanTTL = &t
	}
	return info, nil
}

func (f *Repository) GetServerPlayerInfo(_ context.Context, player uuid.UUID) (repository.ServerPlayerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return repository.ServerPlayerInfo{}, repository.ErrNotFound
	}
	info := repository.ServerPlayerInfo{
		Prefix:          p.Prefix,
		Suffix:          p.Suffix,
		Locale:          p.Locale,
		Groups:          p.Groups,
		Permissions:     p.Permissions,
		Currency:        p.Currency,
		PremiumCurrency: p.PremiumCurrency,
		Blocked:         p.Blocked,
		Inventory:       p.Inventory,
		Properties:      p.Properties,
		Mute:            p.Mute,
		DiscordID:       p.DiscordID,
	}
	if p.Proxy != nil {
		info.Proxy = *p.Proxy
	}
	if p.Session != nil {
		info.Session = *p.Session
	}
	return info, nil
}

func (f *Repository) GetFullPlayer(_ context.Context, player uuid.UUID) (repository.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return repository.Player{}, repository.ErrNotFound
	}
	return *p, nil
}

func (f *Repository) PlayerUUIDByName(_ context.Context, name string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Players {
		if strings.EqualFold(p.Username, name) {
			return p.UUID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (f *Repository) PlayerUsername(_ context.Context, player uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return "", repository.ErrNotFound
	}
	return p.Username, nil
}

func (f *Repository) PlayerDiscordID(_ context.Context, player uuid.UUID) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.DiscordID, nil
}

func (f *Repository) PlayersByDiscordID(_ context.Context, discord string) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, p := range f.Players {
		if p.DiscordID != nil && *p.DiscordID == discord {
			out = append(out, p.UUID)
		}
	}
	return out, nil
}

func (f *Repository) SetPlayerOnlineProxy(_ context.Context, player, proxy, session uuid.UUID, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		p = &repository.Player{UUID: player, Groups: []string{"Default"}}
		f.Players[player] = p
	}
	pr, se := proxy, session
	p.Proxy, p.Session, p.Username = &pr, &se, username
	return nil
}

func (f *Repository) SetPlayerServer(_ context.Context, player, server uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		s := server
		p.Server = &s
	}
	return nil
}

func (f *Repository) SetServerClearWaiting(_ context.Context, player, server uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		s := server
		p.Server = &s
		p.WaitingMoveTo = nil
	}
	return nil
}

func (f *Repository) SetWaitingMoveTo(_ context.Context, player uuid.UUID, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		k := kind
		p.WaitingMoveTo = &k
	}
	return nil
}

func (f *Repository) GetWaitingMoveTo(_ context.Context, player uuid.UUID) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return nil, nil
	}
	return p.WaitingMoveTo, nil
}

func (f *Repository) NullPlayerSession(_ context.Context, player uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		p.Proxy, p.Server, p.Session, p.WaitingMoveTo = nil, nil, nil, nil
	}
	return nil
}

func (f *Repository) OnlinePlayers(_ context.Context) ([]repository.OnlinePlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.OnlinePlayer
	for _, p := range f.Players {
		if p.Session == nil || p.Proxy == nil {
			continue
		}
		out = append(out, repository.OnlinePlayer{
			UUID:     p.UUID,
			Username: p.Username,
			Session:  *p.Session,
			Proxy:    *p.Proxy,
			Server:   p.Server,
		})
	}
	return out, nil
}

func (f *Repository) OnlinePlayerProxy(_ context.Context, player uuid.UUID) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		return p.Proxy, nil
	}
	return nil, nil
}

func (f *Repository) OnlinePlayerServer(_ context.Context, player uuid.UUID) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		return p.Server, nil
	}
	return nil, nil
}

func (f *Repository) PlayerSession(_ context.Context, player uuid.UUID) (*uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		return p.Session, nil
	}
	return nil, nil
}

func (f *Repository) OnlinePlayerProxyAndDiscord(_ context.Context, player uuid.UUID) (*uuid.UUID, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		return p.Proxy, p.DiscordID, nil
	}
	return nil, nil, nil
}

func (f *Repository) CountPlayersOnServer(_ context.Context, server uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, p := range f.Players {
		if p.Server != nil && *p.Server == server {
			count++
		}
	}
	return count, nil
}

func (f *Repository) ListPlayersWaitingForKind(_ context.Context, kind string, limit int) ([]repository.WaitingPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.WaitingPlayer
	for _, p := range f.Players {
		if p.WaitingMoveTo != nil && *p.WaitingMoveTo == kind {
			out = append(out, repository.WaitingPlayer{UUID: p.UUID, Proxy: p.Proxy})
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *Repository) PlayerCurrencies(_ context.Context, player uuid.UUID) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return 0, 0, repository.ErrNotFound
	}
	return p.Currency, p.PremiumCurrency, nil
}

func (f *Repository) SetPlayerCurrencies(_ context.Context, player uuid.UUID, currency, premium int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		p.Currency, p.PremiumCurrency = currency, premium
	}
	return nil
}

func (f *Repository) PlayerInventory(_ context.Context, player uuid.UUID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[player]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Inventory == nil {
		return map[string]int64{}, nil
	}
	out := make(map[string]int64, len(p.Inventory))
	for k, v := range p.Inventory {
		out[k] = v
	}
	return out, nil
}

func (f *Repository) SetPlayerInventoryItem(_ context.Context, player uuid.UUID, item string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		if p.Inventory == nil {
			p.Inventory = map[string]int64{}
		}
		p.Inventory[item] = count
	}
	return nil
}

func (f *Repository) AddPlayerGroup(_ context.Context, player uuid.UUID, group string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		if !lo.Contains(p.Groups, group) {
			p.Groups = append(p.Groups, group)
		}
	}
	return nil
}

func (f *Repository) RemovePlayerGroup(_ context.Context, player uuid.UUID, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		p.Groups = lo.Without(p.Groups, group)
	}
	return nil
}

func (f *Repository) SetPlayerProperty(_ context.Context, player uuid.UUID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		if p.Properties == nil {
			p.Properties = map[string]string{}
		}
		p.Properties[key] = value
	}
	return nil
}

func (f *Repository) SetPlayerDiscordID(_ context.Context, player uuid.UUID, discord *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		p.DiscordID = discord
	}
	return nil
}

func (f *Repository) PlayerEchoEnabled(_ context.Context, player uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.EchoEnabled[player], nil
}

func (f *Repository) SetPlayerEchoEnabled(_ context.Context, player uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EchoEnabled[player] = enabled
	return nil
}

// Sessions -------------------------------------------------------------------

func (f *Repository) InsertSession(_ context.Context, id, player uuid.UUID, ip, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sessions[id] = &repository.Session{
		ID:      id,
		Player:  player,
		IP:      ip,
		Version: version,
		Start:   time.Now().UTC(),
	}
	return nil
}

func (f *Repository) CloseSession(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Sessions[id]; ok {
		now := time.Now().UTC()
		s.End = &now
	}
	return nil
}

func (f *Repository) GetSession(_ context.Context, id uuid.UUID) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[id]
	if !ok {
		return repository.Session{}, repository.ErrNotFound
	}
	return *s, nil
}

func (f *Repository) SetSessionMods(_ context.Context, id uuid.UUID, mods map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Sessions[id]; ok {
		s.Mods = mods
	}
	return nil
}

func (f *Repository) SetSessionBrand(_ context.Context, id uuid.UUID, brand string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Sessions[id]; ok {
		b := brand
		s.Brand = &b
	}
	return nil
}

func (f *Repository) PlayerSessionIPs(_ context.Context, player uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.Sessions {
		if s.Player == player && !lo.Contains(out, s.IP) {
			out = append(out, s.IP)
		}
	}
	return out, nil
}

func (f *Repository) PlayersBySessionIP(_ context.Context, ip string) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, s := range f.Sessions {
		if s.IP == ip && !lo.Contains(out, s.Player) {
			out = append(out, s.Player)
		}
	}
	return out, nil
}

// Sanctions ------------------------------------------------------------------

func (f *Repository) InsertBanLog(_ context.Context, duration *time.Duration, target *uuid.UUID, ip *string, issuer *uuid.UUID, reason *string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertBanLogLocked(duration, target, ip, issuer, reason), nil
}

func (f *Repository) insertBanLogLocked(duration *time.Duration, target *uuid.UUID, ip *string, issuer *uuid.UUID, reason *string) uuid.UUID {
	id := uuid.New()
	ban := repository.Ban{
		ID:     id,
		Start:  time.Now().UTC(),
		Issuer: issuer,
		Reason: reason,
		Target: target,
	}
	if duration != nil {
		end := ban.Start.Add(*duration)
		ban.End = &end
	}
	if ip != nil {
		ban.IP = ip
	}
	f.BanLogs[id] = ban
	return id
}

func (f *Repository) ApplyBan(_ context.Context, player, ban uuid.UUID, reason *string, ttl *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyBanLocked(player, ban, reason, ttl)
	return nil
}

func (f *Repository) applyBanLocked(player, ban uuid.UUID, reason *string, ttl *time.Duration) {
	p, ok := f.Players[player]
	if !ok {
		p = &repository.Player{UUID: player, Groups: []string{"Default"}}
		f.Players[player] = p
	}
	b := ban
	p.Ban = &b
	p.BanReason = reason
	if ttl != nil {
		f.BanTTLs[player] = int(*ttl / time.Second)
	} else {
		delete(f.BanTTLs, player)
	}
}

func (f *Repository) InsertBan(_ context.Context, player uuid.UUID, reason *string, issuer *uuid.UUID, duration *time.Duration) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ban := f.insertBanLogLocked(duration, &player, nil, issuer, reason)
	f.applyBanLocked(player, ban, reason, duration)
	return ban, nil
}

func (f *Repository) RemovePlayerBan(_ context.Context, player uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		p.Ban, p.BanReason = nil, nil
		delete(f.BanTTLs, player)
	}
	return nil
}

func (f *Repository) GetBan(_ context.Context, id uuid.UUID) (repository.Ban, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.BanLogs[id]
	if !ok {
		return repository.Ban{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *Repository) PlayersFromBan(_ context.Context, ban uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, p := range f.Players {
		if p.Ban != nil && *p.Ban == ban {
			out = append(out, p.UUID)
		}
	}
	return out, nil
}

func (f *Repository) IPsFromBan(_ context.Context, ban uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for ip, b := range f.IPBans {
		if b.Ban != nil && *b.Ban == ban {
			out = append(out, ip)
		}
	}
	return out, nil
}

func (f *Repository) GetIPBan(_ context.Context, ip string) (repository.IPBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.IPBans[ip]
	if !ok {
		return repository.IPBan{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *Repository) ApplyIPBan(_ context.Context, ip string, reason *string, ban *uuid.UUID, duration *time.Duration, automated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyIPBanLocked(ip, reason, ban, duration, automated)
	return nil
}

func (f *Repository) applyIPBanLocked(ip string, reason *string, ban *uuid.UUID, duration *time.Duration, automated bool) {
	row := repository.IPBan{
		IP:        ip,
		Reason:    reason,
		Start:     time.Now().UTC(),
		Ban:       ban,
		Automated: automated,
	}
	if duration != nil {
		end := row.Start.Add(*duration)
		row.End = &end
	}
	f.IPBans[ip] = row
}

func (f *Repository) InsertIPBan(_ context.Context, ip string, reason *string, issuer *uuid.UUID, duration *time.Duration, automated bool) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ban := f.insertBanLogLocked(duration, nil, &ip, issuer, reason)
	f.applyIPBanLocked(ip, reason, &ban, duration, automated)
	return ban, nil
}

func (f *Repository) RemoveIPBan(_ context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.IPBans, ip)
	return nil
}

func (f *Repository) InsertMute(_ context.Context, player uuid.UUID, reason *string, issuer *uuid.UUID, duration *time.Duration) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	target := player
	mute := repository.Mute{
		ID:     id,
		Start:  time.Now().UTC(),
		Issuer: issuer,
		Reason: reason,
		Target: &target,
	}
	if duration != nil {
		end := mute.Start.Add(*duration)
		mute.End = &end
	}
	f.MuteLogs[id] = mute
	if p, ok := f.Players[player]; ok {
		m := id
		p.Mute = &m
	}
	return id, nil
}

func (f *Repository) RemovePlayerMute(_ context.Context, player uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Players[player]; ok {
		p.Mute = nil
	}
	return nil
}

func (f *Repository) GetMute(_ context.Context, id uuid.UUID) (repository.Mute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.MuteLogs[id]
	if !ok {
		return repository.Mute{}, repository.ErrNotFound
	}
	return m, nil
}

func (f *Repository) GetSanctionBoard(_ context.Context, category string) (repository.SanctionBoard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Boards[category]
	if !ok {
		return repository.SanctionBoard{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *Repository) GetSanctionState(_ context.Context, player uuid.UUID, category string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SanctionStates[player.String()+"/"+category], nil
}

func (f *Repository) SetSanctionState(_ context.Context, player uuid.UUID, category string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SanctionStates[player.String()+"/"+category] = value
	return nil
}

// Stats and leaderboards -----------------------------------------------------

func (f *Repository) InsertStats(_ context.Context, player, session, server uuid.UUID, serverKind string, stats map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for key, value := range stats {
		f.Stats = append(f.Stats, StatRow{
			Player: player, Session: session, Server: server,
			ServerKind: serverKind, Key: key, Value: value, At: now,
		})
	}
	return nil
}

func (f *Repository) SelectStats(_ context.Context, key string, since time.Time) (map[uuid.UUID]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sumStatsLocked(key, "", since), nil
}

func (f *Repository) SelectStatsByKind(_ context.Context, key, kind string, since time.Time) (map[uuid.UUID]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sumStatsLocked(key, kind, since), nil
}

func (f *Repository) sumStatsLocked(key, kind string, since time.Time) map[uuid.UUID]int64 {
	out := map[uuid.UUID]int64{}
	for _, row := range f.Stats {
		if row.Key != key || !row.At.After(since) {
			continue
		}
		if kind != "" && row.ServerKind != kind {
			continue
		}
		out[row.Player] += row.Value
	}
	return out
}

func (f *Repository) ListLeaderboards(_ context.Context) ([]repository.Leaderboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Leaderboard, 0, len(f.Leaderboards))
	for _, b := range f.Leaderboards {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Repository) GetLeaderboard(_ context.Context, name string) (repository.Leaderboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Leaderboards[name]
	if !ok {
		return repository.Leaderboard{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *Repository) WriteLeaderboard(_ context.Context, name string, value []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.Leaderboards[name]
	b.Name = name
	b.Value = value
	f.Leaderboards[name] = b
	return nil
}

// Settings, keys, discord ----------------------------------------------------

func (f *Repository) GetSetting(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Settings[key], nil
}

func (f *Repository) SetSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Settings[key] = value
	return nil
}

func (f *Repository) HasRoutePermission(_ context.Context, key uuid.UUID, permission string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.APIKeys[key]
	if !ok {
		return false, nil
	}
	if k.Group == nil {
		return true, nil
	}
	group, ok := f.APIGroups[*k.Group]
	if !ok {
		return false, nil
	}
	return lo.Contains(group.Permissions, permission), nil
}

func (f *Repository) GetApiKey(_ context.Context, key uuid.UUID) (repository.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.APIKeys[key]
	if !ok {
		return repository.ApiKey{}, repository.ErrNotFound
	}
	return k, nil
}

func (f *Repository) InsertDiscordLink(_ context.Context, code string, player uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DiscordLinks[code] = player
	return nil
}

func (f *Repository) GetDiscordLink(_ context.Context, code string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	player, ok := f.DiscordLinks[code]
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	return player, nil
}

func (f *Repository) DeleteDiscordLink(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.DiscordLinks, code)
	return nil
}

func (f *Repository) GetWebhook(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.Webhooks[name]
	if !ok {
		return "", repository.ErrNotFound
	}
	return url, nil
}
