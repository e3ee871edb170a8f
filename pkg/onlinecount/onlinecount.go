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

// Package onlinecount aggregates per-proxy head counts into the fleet-wide
// online total. Only the leader replica holds the authoritative map;
// followers forward their reports over the bus.
package onlinecount

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/metrics"
	"github.com/skynet-mc/skynet/pkg/repository"
)

// Settings is the slice of the store the aggregator persists through.
type Settings interface {
	SetSetting(ctx context.Context, key, value string) error
}

// Leadership tells the aggregator whether this replica owns the total.
type Leadership interface {
	IsLeader() bool
}

// Aggregator tracks the last reported count of every live proxy.
type Aggregator struct {
	mu     sync.RWMutex
	counts map[uuid.UUID]int32

	store  Settings
	bus    eventbus.Publisher
	leader Leadership
}

// New builds an empty aggregator.
func New(store Settings, bus eventbus.Publisher, leader Leadership) *Aggregator {
	return &Aggregator{
		counts: map[uuid.UUID]int32{},
		store:  store,
		bus:    bus,
		leader: leader,
	}
}

// Record takes a proxy's head count report. The leader folds it into the
// total; a follower relays it to whoever holds the lease.
func (a *Aggregator) Record(ctx context.Context, proxy uuid.UUID, count int32) error {
	if !a.leader.IsLeader() {
		return a.bus.Publish(ctx, eventbus.PlayerCountSync{Proxy: proxy, Count: count})
	}
	a.mu.Lock()
	a.counts[proxy] = count
	a.mu.Unlock()
	return a.flush(ctx)
}

// HandleSync applies a relayed report. Non-leaders drop it; the sender will
// reach the current leader through the broadcast.
func (a *Aggregator) HandleSync(ctx context.Context, ev eventbus.PlayerCountSync) error {
	if !a.leader.IsLeader() {
		return nil
	}
	a.mu.Lock()
	a.counts[ev.Proxy] = ev.Count
	a.mu.Unlock()
	return a.flush(ctx)
}

// Forget drops a proxy's contribution when its pod is released, so players
// of a dead proxy stop counting toward the total.
func (a *Aggregator) Forget(proxy uuid.UUID) {
	a.mu.Lock()
	_, known := a.counts[proxy]
	delete(a.counts, proxy)
	a.mu.Unlock()

	if !known || !a.leader.IsLeader() {
		return
	}
	if err := a.flush(context.Background()); err != nil {
		klog.Errorf("republish online count after proxy %s removal: %v", proxy, err)
	}
}

// Total returns the current fleet-wide sum.
func (a *Aggregator) Total() int32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var sum int32
	for _, c := range a.counts {
		sum += c
	}
	return sum
}

// flush persists the total and announces it to the fleet.
func (a *Aggregator) flush(ctx context.Context) error {
	total := a.Total()
	if err := a.store.SetSetting(ctx, repository.SettingOnlineCount, strconv.Itoa(int(total))); err != nil {
		return err
	}
	if err := a.bus.Publish(ctx, eventbus.PlayerCount{Count: total}); err != nil {
		return err
	}
	metrics.Onlines.Set(float64(total))
	return nil
}
