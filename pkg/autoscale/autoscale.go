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

// Package autoscale reacts to server state transitions: Idle servers are
// retired down to the kind's headroom, Waiting servers drain the queue of
// players waiting on their kind, and move-by-kind placement provisions a
// fresh instance when every candidate is full.
package autoscale

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/metrics"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/tracing"
	"github.com/skynet-mc/skynet/pkg/util"
)

// defaultSlots caps a server with no explicit capacity anywhere.
const defaultSlots = 100

// Store is the slice of the repository the autoscaler needs.
type Store interface {
	GetServer(ctx context.Context, id uuid.UUID) (repository.Server, error)
	GetServerKind(name string) (repository.ServerKind, bool)
	ListServersByKind(ctx context.Context, kind string) ([]repository.Server, error)
	ListPlayersWaitingForKind(ctx context.Context, kind string, limit int) ([]repository.WaitingPlayer, error)
	CountPlayersOnServer(ctx context.Context, server uuid.UUID) (int64, error)
	SetWaitingMoveTo(ctx context.Context, player uuid.UUID, kind string) error
}

// Pods is the pod surface the autoscaler drives.
type Pods interface {
	CreatePod(ctx context.Context, kind, image, name string, properties, env map[string]string) error
	DeletePod(ctx context.Context, name string) error
}

// Autoscaler sizes the fleet per kind.
type Autoscaler struct {
	store Store
	bus   eventbus.Publisher
	pods  Pods
}

// New builds an autoscaler.
func New(store Store, bus eventbus.Publisher, pods Pods) *Autoscaler {
	return &Autoscaler{store: store, bus: bus, pods: pods}
}

// OnIdle decides whether an idling server is surplus. Servers flagged
// canidle=false never idle; otherwise the kind's policy keeps min servers
// of {Waiting, Idle} as headroom.
func (a *Autoscaler) OnIdle(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanAutoscaleTick,
		trace.WithAttributes(tracing.AttrServerID(id)))
	defer span.End()
	span.AddEvent(tracing.EventAutoscaleServerIdle)

	srv, err := a.store.GetServer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	span.SetAttributes(tracing.AttrServerKind(srv.Kind), tracing.AttrServerState(string(srv.State)))

	if srv.Properties["canidle"] == "false" {
		klog.Infof("server %s cannot idle, deleting", srv.Label)
		return a.deletePod(ctx, srv)
	}

	kind, ok := a.store.GetServerKind(srv.Kind)
	if !ok || !kind.HasAutoscale() {
		return nil
	}
	policy := kind.Autoscale.Simple

	if policy.Min == 0 {
		return a.deletePod(ctx, srv)
	}

	peers := 0
	servers, err := a.store.ListServersByKind(ctx, srv.Kind)
	if err != nil {
		return err
	}
	for _, peer := range servers {
		if peer.ID == id {
			continue
		}
		if peer.State == repository.ServerStateWaiting || peer.State == repository.ServerStateIdle {
			peers++
		}
	}
	if peers >= policy.Min {
		return a.deletePod(ctx, srv)
	}
	return nil
}

func (a *Autoscaler) deletePod(ctx context.Context, srv repository.Server) error {
	if err := a.pods.DeletePod(ctx, srv.Label); err != nil {
		return err
	}
	klog.Infof("autoscale deletion for kind %s: %s", srv.Kind, srv.Label)
	metrics.AutoscaleDeletionsTotal.WithLabelValues(srv.Kind).Inc()
	return nil
}

// OnWaiting drains the kind's queue onto a freshly ready server. Reading
// one entry past capacity detects overflow: when the queue spills over and
// the kind autoscales, a new instance is provisioned before the first
// slots players move.
func (a *Autoscaler) OnWaiting(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanAutoscaleTick,
		trace.WithAttributes(tracing.AttrServerID(id)))
	defer span.End()

	srv, err := a.store.GetServer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	kind, ok := a.store.GetServerKind(srv.Kind)
	if !ok {
		return nil
	}
	var policy *repository.SimpleAutoscale
	if kind.HasAutoscale() {
		policy = kind.Autoscale.Simple
	}

	slots, err := effectiveSlots(srv.Properties, policy)
	if err != nil {
		return err
	}

	waiting, err := a.store.ListPlayersWaitingForKind(ctx, srv.Kind, slots+1)
	if err != nil {
		return err
	}
	if len(waiting) == slots+1 && policy != nil {
		waiting = waiting[:slots]
		klog.V(2).Infof("autoscale burst server for kind %s", srv.Kind)
		if _, err := a.CreateServer(ctx, kind, *policy); err != nil {
			return err
		}
	}

	for _, p := range waiting {
		if p.Proxy == nil {
			continue
		}
		if err := a.bus.Publish(ctx, eventbus.MovePlayer{
			Proxy:  *p.Proxy,
			Server: id,
			Player: p.UUID,
		}); err != nil {
			return err
		}
	}
	span.AddEvent(tracing.EventAutoscaleServerDrained, trace.WithAttributes(tracing.AttrOnlineCount(len(waiting))))
	return nil
}

// CreateServer provisions one pod for the kind and returns its name.
func (a *Autoscaler) CreateServer(ctx context.Context, kind repository.ServerKind, policy repository.SimpleAutoscale) (string, error) {
	name := fmt.Sprintf("%s-%s", kind.Name, util.RandomServerSuffix())
	klog.Infof("autoscaling new server %s for %s", name, kind.Name)

	properties := make(map[string]string, len(policy.Properties)+1)
	for k, v := range policy.Properties {
		properties[k] = v
	}
	properties["autoscale"] = "true"

	if err := a.pods.CreatePod(ctx, kind.Name, kind.Image, name, properties, policy.Env); err != nil {
		return "", err
	}
	metrics.AutoscaleProvisionsTotal.WithLabelValues(kind.Name).Inc()
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		span.AddEvent(tracing.EventAutoscaleProvision,
			trace.WithAttributes(tracing.AttrServerKind(kind.Name), tracing.AttrServerName(name)))
	}
	return name, nil
}

// MoveToKind picks a server of the kind with room, or queues the player
// behind a provisioned instance. The chosen server is returned for the
// caller to publish the transfer; nil with ok true means the player waits
// on fresh capacity. ok false means the kind neither has room nor
// autoscales.
func (a *Autoscaler) MoveToKind(ctx context.Context, player uuid.UUID, kind repository.ServerKind) (*uuid.UUID, bool, error) {
	servers, err := a.store.ListServersByKind(ctx, kind.Name)
	if err != nil {
		return nil, false, err
	}
	var policy *repository.SimpleAutoscale
	if kind.HasAutoscale() {
		policy = kind.Autoscale.Simple
	}

	for _, srv := range servers {
		if srv.State != repository.ServerStateWaiting && srv.State != repository.ServerStateIdle {
			continue
		}
		// Host servers belong to a player; never auto-place onto them.
		if _, hosted := srv.Properties["host"]; hosted {
			continue
		}
		slots, err := effectiveSlots(srv.Properties, policy)
		if err != nil {
			return nil, false, err
		}
		online, err := a.store.CountPlayersOnServer(ctx, srv.ID)
		if err != nil {
			return nil, false, err
		}
		if online >= int64(slots) {
			continue
		}
		dest := srv.ID
		return &dest, true, nil
	}

	if policy == nil {
		return nil, false, nil
	}

	waiting, err := a.store.ListPlayersWaitingForKind(ctx, kind.Name, 1)
	if err != nil {
		return nil, false, err
	}
	if len(waiting) == 0 {
		// First waiter triggers the scale; later ones ride the same one.
		if _, err := a.CreateServer(ctx, kind, *policy); err != nil {
			return nil, false, err
		}
	} else {
		klog.V(2).Infof("kind %s already scaling", kind.Name)
	}
	if err := a.store.SetWaitingMoveTo(ctx, player, kind.Name); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

func effectiveSlots(properties map[string]string, policy *repository.SimpleAutoscale) (int, error) {
	if raw, ok := properties["slots"]; ok {
		slots, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("parse slots property %q: %w", raw, err)
		}
		return slots, nil
	}
	if policy != nil {
		return policy.Slots, nil
	}
	return defaultSlots, nil
}
