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

// Command skynet runs one control-plane replica: HTTP API, bus consumer,
// and, on the replica holding the lease, the pod reconciler, fleet
// bootstrap, and the singleton aggregations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	// Client auth plugins so out-of-cluster kubeconfigs with exec or OIDC
	// providers keep working.
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	klog "k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/skynet-mc/skynet/pkg/autoscale"
	"github.com/skynet-mc/skynet/pkg/config"
	"github.com/skynet-mc/skynet/pkg/echo"
	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/leaderboard"
	"github.com/skynet-mc/skynet/pkg/leaderelection"
	"github.com/skynet-mc/skynet/pkg/lifecycle"
	"github.com/skynet-mc/skynet/pkg/logging"
	"github.com/skynet-mc/skynet/pkg/onlinecount"
	"github.com/skynet-mc/skynet/pkg/orchestrator"
	"github.com/skynet-mc/skynet/pkg/proxycheck"
	"github.com/skynet-mc/skynet/pkg/reconciler"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/shutdown"
	"github.com/skynet-mc/skynet/pkg/tracing"
	"github.com/skynet-mc/skynet/pkg/util"
	"github.com/skynet-mc/skynet/pkg/version"
	"github.com/skynet-mc/skynet/pkg/web"
)

const drainTimeout = 30 * time.Second

func main() {
	var podDefaultsPath string
	flag.StringVar(&podDefaultsPath, "pod-defaults", "", "Path to the TOML file tuning managed pods. Empty uses compiled defaults.")

	logOpts := logging.NewOptions()
	logOpts.AddFlags(flag.CommandLine)
	traceOpts := tracing.NewOptions()
	traceOpts.AddFlags(flag.CommandLine)
	flag.Parse()

	logResult, err := logOpts.Apply(flag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if logResult.Warning != "" {
		klog.Warning(logResult.Warning)
	}
	if err := traceOpts.Apply(); err != nil {
		klog.Errorf("tracing disabled: %v", err)
	}

	cfg := config.Load()
	klog.Infof("skynet %s starting as replica %s", version.Version, cfg.ReplicaID)

	coordinator := shutdown.NewCoordinator(context.Background())
	coordinator.HandleSignals()

	if err := run(coordinator, cfg, podDefaultsPath); err != nil {
		klog.Errorf("startup failed: %v", err)
		coordinator.Trigger("startup failure")
	}

	<-coordinator.Context().Done()
	if err := coordinator.Drain(drainTimeout); err != nil {
		klog.Errorf("drain incomplete: %v", err)
		os.Exit(1)
	}
	klog.Info("skynet stopped")
}

// run assembles the replica and starts every long-running task on the
// coordinator's root context.
func run(coordinator *shutdown.Coordinator, cfg *config.Config, podDefaultsPath string) error {
	root := coordinator.Context()

	store, err := repository.New(repository.Config{
		Address:  cfg.DBAddress,
		Keyspace: cfg.DBKeyspace,
		Username: cfg.DBUser,
		Password: cfg.DBPassword,
	})
	if err != nil {
		return err
	}
	coordinator.Register("repository", func(context.Context) error {
		store.Close()
		return nil
	})

	bus, err := eventbus.New(eventbus.Config{
		Address:   cfg.AMQPAddress,
		ReplicaID: cfg.ReplicaID,
	}, coordinator.Trigger)
	if err != nil {
		return err
	}
	coordinator.Register("event bus", func(context.Context) error {
		return bus.Close()
	})

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return err
	}
	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme: clientgoscheme.Scheme,
		Cache: cache.Options{
			DefaultNamespaces: map[string]cache.Config{cfg.Namespace: {}},
		},
		// The chi router serves /metrics; leadership runs through the
		// elector rather than the manager.
		Metrics:        metricsserver.Options{BindAddress: "0"},
		LeaderElection: false,
	})
	if err != nil {
		return err
	}

	podDefaults, err := orchestrator.LoadPodDefaults(podDefaultsPath)
	if err != nil {
		return err
	}
	orch := orchestrator.New(mgr.GetClient(), orchestrator.Config{
		Namespace:       cfg.Namespace,
		ExternalAddress: cfg.ExternalAddress,
		AMQPAddress:     cfg.AMQPAddress,
	}, podDefaults)

	// The leader callbacks close over tasks assembled below; leadership
	// cannot be won before elector.Run starts.
	var onLeaderStarted func(ctx context.Context)
	kubeClient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return err
	}
	elector, err := leaderelection.New(kubeClient, cfg.Namespace, cfg.ReplicaID.String(), leaderelection.Callbacks{
		OnStarted: func(ctx context.Context) {
			if onLeaderStarted != nil {
				onLeaderStarted(ctx)
			}
		},
	})
	if err != nil {
		return err
	}

	scaler := autoscale.New(store, bus, orch)
	counts := onlinecount.New(store, bus, elector)
	boards := leaderboard.New(store, bus, elector, cfg.LeaderboardCron)

	var reputation lifecycle.Reputation
	if cfg.ProxycheckKey != "" {
		reputation = proxycheck.New(cfg.ProxycheckKey)
	}
	var echoClient *echo.Client
	var lifeEcho lifecycle.Echo
	var webEcho web.EchoService
	if cfg.EchoKey != "" {
		echoClient = echo.New(cfg.EchoKey)
		lifeEcho = echoClient
		webEcho = echoClient
	}
	life := lifecycle.New(store, bus, reputation, lifeEcho, scaler)

	rec := reconciler.New(mgr.GetClient(), store, bus, counts, orch)
	podController, err := reconciler.NewController(mgr, rec)
	if err != nil {
		return err
	}
	onLeaderStarted = func(ctx context.Context) {
		go func() {
			if err := podController.Start(ctx); err != nil {
				klog.Errorf("pod reconciler stopped: %v", err)
				coordinator.Trigger("pod reconciler failure")
			}
		}()
		if err := bootstrapFleet(ctx, store, orch); err != nil {
			klog.Errorf("fleet bootstrap incomplete: %v", err)
		}
	}

	handler := web.NewHandler(web.Config{
		Store:    store,
		Bus:      bus,
		Life:     life,
		Scaler:   scaler,
		Pods:     orch,
		Counts:   counts,
		Boards:   boards,
		Echo:     webEcho,
		Shutdown: coordinator,
	})
	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: handler.Router(),
	}
	coordinator.Register("http server", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	go func() {
		if err := mgr.Start(root); err != nil {
			klog.Errorf("cluster manager stopped: %v", err)
			coordinator.Trigger("cluster manager failure")
		}
	}()
	go elector.Run(root)
	go bus.Run(root, dispatch(counts))
	go func() {
		if err := boards.Start(root); err != nil {
			klog.Errorf("leaderboard schedule failed: %v", err)
		}
	}()
	go func() {
		klog.Infof("listening on %s", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Errorf("http server stopped: %v", err)
			coordinator.Trigger("http server failure")
		}
	}()

	return nil
}

// dispatch routes inbound bus events. The control plane only reacts to
// head-count relays; everything else on the shared topic space is meant for
// proxies and game servers.
func dispatch(counts *onlinecount.Aggregator) eventbus.Handler {
	return func(ctx context.Context, ev eventbus.ServerEvent) error {
		switch ev := ev.(type) {
		case eventbus.PlayerCountSync:
			return counts.HandleSync(ctx, ev)
		default:
			return nil
		}
	}
}

// bootstrapStore is the repository slice fleet bootstrap reads.
type bootstrapStore interface {
	ServerKinds() []repository.ServerKind
	ListServersByKind(ctx context.Context, kind string) ([]repository.Server, error)
}

// bootstrapFleet raises every kind with a startup policy to its minimum
// instance count. Runs at leader acquisition so a cold cluster comes up
// with its baseline fleet.
func bootstrapFleet(ctx context.Context, store bootstrapStore, pods web.Pods) error {
	for _, kind := range store.ServerKinds() {
		if kind.Startup == nil || kind.Startup.Maximum <= 0 {
			continue
		}
		existing, err := store.ListServersByKind(ctx, kind.Name)
		if err != nil {
			return err
		}
		for i := len(existing); i < kind.Startup.Minimum; i++ {
			name := fmt.Sprintf("%s-%s", kind.Name, util.RandomServerSuffix())
			if err := pods.CreatePod(ctx, kind.Name, kind.Image, name, nil, nil); err != nil {
				return err
			}
			klog.Infof("bootstrap server %s for kind %s", name, kind.Name)
		}
	}
	return nil
}
