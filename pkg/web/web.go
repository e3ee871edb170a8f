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

// Package web is the HTTP surface of the control plane. Handlers validate
// and translate; the decisions live in the lifecycle, autoscale, and
// aggregation packages.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/skynet-mc/skynet/pkg/autoscale"
	"github.com/skynet-mc/skynet/pkg/echo"
	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/leaderboard"
	"github.com/skynet-mc/skynet/pkg/lifecycle"
	"github.com/skynet-mc/skynet/pkg/onlinecount"
	"github.com/skynet-mc/skynet/pkg/repository"
)

// Store is the repository surface the handlers reach directly; everything
// behavioral goes through the lifecycle and autoscale services instead.
type Store interface {
	Authorizer

	// Sessions.
	SetSessionMods(ctx context.Context, id uuid.UUID, mods map[string]string) error
	SetSessionBrand(ctx context.Context, id uuid.UUID, brand string) error

	// Players.
	GetFullPlayer(ctx context.Context, player uuid.UUID) (repository.Player, error)
	PlayerUUIDByName(ctx context.Context, name string) (uuid.UUID, error)
	PlayerUsername(ctx context.Context, player uuid.UUID) (string, error)
	SetPlayerDiscordID(ctx context.Context, player uuid.UUID, discord *string) error
	PlayersByDiscordID(ctx context.Context, discord string) ([]uuid.UUID, error)
	OnlinePlayerServer(ctx context.Context, player uuid.UUID) (*uuid.UUID, error)
	SetPlayerEchoEnabled(ctx context.Context, player uuid.UUID, enabled bool) error
	InsertStats(ctx context.Context, player, session, server uuid.UUID, serverKind string, stats map[string]int64) error
	PlayerSession(ctx context.Context, player uuid.UUID) (*uuid.UUID, error)

	// Servers.
	GetServer(ctx context.Context, id uuid.UUID) (repository.Server, error)
	GetServerByLabel(ctx context.Context, label string) (repository.Server, error)
	ListServers(ctx context.Context) ([]repository.Server, error)
	UpdateServerState(ctx context.Context, id uuid.UUID, state repository.ServerState) error
	UpdateServerDescription(ctx context.Context, id uuid.UUID, description string) error
	UpdateServerOnline(ctx context.Context, id uuid.UUID, online int) error
	SetServerKey(ctx context.Context, id, key uuid.UUID) error
	ServerKindOf(ctx context.Context, server uuid.UUID) (string, error)
	GetServerKind(name string) (repository.ServerKind, bool)

	// Discord.
	InsertDiscordLink(ctx context.Context, code string, player uuid.UUID) error
	GetDiscordLink(ctx context.Context, code string) (uuid.UUID, error)
	DeleteDiscordLink(ctx context.Context, code string) error
	GetWebhook(ctx context.Context, name string) (string, error)

	// Settings and leaderboards.
	GetSetting(ctx context.Context, key string) (string, error)
	GetLeaderboard(ctx context.Context, name string) (repository.Leaderboard, error)
}

// Pods creates and deletes fleet pods; implemented by the orchestrator.
type Pods interface {
	CreatePod(ctx context.Context, kind, image, name string, properties, env map[string]string) error
	DeletePod(ctx context.Context, name string) error
}

// EchoService is the alpha tracking backend the passthrough routes talk to.
type EchoService interface {
	TrackPlayer(ctx context.Context, player uuid.UUID, def echo.UserDefinition) (uint32, error)
	RegisterServer(ctx context.Context, server uuid.UUID) (uuid.UUID, error)
}

// Shutdowner triggers a graceful stop of the whole replica.
type Shutdowner interface {
	Trigger(reason string)
}

// Handler carries every collaborator the HTTP surface needs.
type Handler struct {
	store    Store
	bus      eventbus.Publisher
	life     *lifecycle.Service
	scaler   *autoscale.Autoscaler
	pods     Pods
	counts   *onlinecount.Aggregator
	boards   *leaderboard.Builder
	echo     EchoService
	shutdown Shutdowner

	webhookHTTP *http.Client
}

// Config bundles the Handler collaborators.
type Config struct {
	Store    Store
	Bus      eventbus.Publisher
	Life     *lifecycle.Service
	Scaler   *autoscale.Autoscaler
	Pods     Pods
	Counts   *onlinecount.Aggregator
	Boards   *leaderboard.Builder
	Echo     EchoService
	Shutdown Shutdowner
}

// NewHandler builds the HTTP handler set.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		store:       cfg.Store,
		bus:         cfg.Bus,
		life:        cfg.Life,
		scaler:      cfg.Scaler,
		pods:        cfg.Pods,
		counts:      cfg.Counts,
		boards:      cfg.Boards,
		echo:        cfg.Echo,
		shutdown:    cfg.Shutdown,
		webhookHTTP: &http.Client{Timeout: 5 * time.Second},
	}
}

// Router assembles the full route table.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.docs)
		r.Post("/shutdown", h.requirePermission("shutdown", h.postShutdown))

		r.Route("/players", func(r chi.Router) {
			r.Get("/{ip}/proxy/prelogin", h.requirePermission("proxy-pre-login", h.getPreLogin))
			r.Post("/{uuid}/proxy/login", h.requirePermission("proxy-login", h.postProxyLogin))
			r.Post("/{uuid}/login", h.requirePermission("server-login", h.postServerLogin))
			r.Delete("/{uuid}/session", h.requirePermission("proxy-close-session", h.deleteSession))
			r.Post("/{uuid}/move", h.requirePermission("move-player", h.postMove))
			r.Post("/{uuid}/ban", h.requirePermission("ban-player", h.postBan))
			r.Post("/{uuid}/mute", h.requirePermission("mute-player", h.postMute))
			r.Post("/{uuid}/sanction", h.requirePermission("sanction-player", h.postSanction))
			r.Post("/{uuid}/disconnect", h.requirePermission("disconnect-player", h.postDisconnect))
			r.Post("/{uuid}/transaction", h.requirePermission("player-transaction", h.postTransaction))
			r.Post("/{uuid}/inventory/transaction", h.requirePermission("player-inventory-transaction", h.postInventoryTransaction))
			r.Post("/{uuid}/groups", h.requirePermission("update-player-groups", h.postGroups))
			r.Post("/{uuid}/property", h.requirePermission("update-player-property", h.postProperty))
			r.Get("/{uuid}/full", h.requirePermission("get-full-player", h.getFullPlayer))
			r.Get("/{name}/uuid", h.requirePermission("get-player", h.getPlayerUUID))
			r.Post("/{uuid}/stats", h.requirePermission("player-stats", h.postStats))
			r.Post("/{uuid}/echo", h.requirePermission("echo", h.postPlayerEcho))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/{uuid}/modsinfo", h.requirePermission("proxy-init", h.postSessionMods))
			r.Post("/{uuid}/clientbrand", h.requirePermission("proxy-init", h.postSessionBrand))
		})

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", h.requirePermission("get-all-servers", h.getServers))
			r.Post("/", h.requirePermission("create-server", h.postServer))
			r.Delete("/{id}", h.requirePermission("delete-server", h.deleteServer))
			r.Post("/{id}/setstate", h.requirePermission("set-server-state", h.postServerState))
			r.Post("/{id}/setdescription", h.requirePermission("set-server-description", h.postServerDescription))
			r.Post("/{id}/playercount", h.requirePermission("set-server-playercount", h.postServerPlayerCount))
			r.Post("/broadcast", h.requirePermission("broadcast", h.postBroadcast))
			r.Post("/{label}/register", h.postRegister)
			r.Get("/{uuid}/echo/enable", h.requirePermission("echo", h.getServerEchoEnable))
		})

		r.Route("/proxy", func(r chi.Router) {
			r.Get("/ping", h.requirePermission("proxy-ping", h.getProxyPing))
			r.Post("/{id}/playercount", h.requirePermission("get-online-players", h.postProxyPlayerCount))
		})

		r.Route("/discord", func(r chi.Router) {
			r.Get("/link/{uuid}", h.requirePermission("create-discord-link", h.getDiscordLink))
			r.Post("/link/{code}", h.requirePermission("complete-discord-link", h.postDiscordLink))
			r.Delete("/link/{discord}", h.requirePermission("delete-discord-link", h.deleteDiscordLink))
			r.Post("/webhook/{name}", h.requirePermission("webhook", h.postWebhook))
		})

		r.Route("/leaderboards", func(r chi.Router) {
			r.Post("/", h.requirePermission("rebuild-leaderboards", h.postLeaderboards))
			r.Get("/{name}", h.requirePermission("get-leaderboard", h.getLeaderboard))
		})
	})

	return r
}
