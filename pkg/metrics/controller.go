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

package metrics

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/repository"
)

// ServerLister is the repository slice the metrics controller consumes.
type ServerLister interface {
	ListServers(ctx context.Context) ([]repository.Server, error)
}

// Controller periodically refreshes the per-kind/state server gauge from
// the repository. Stale label pairs are zeroed, not deleted, so dashboards
// see states empty out instead of vanishing.
type Controller struct {
	servers  ServerLister
	interval time.Duration

	seen map[[2]string]struct{}
}

// NewController builds a refresher with the given poll interval; zero
// means the 30 second default.
func NewController(servers ServerLister, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Controller{
		servers:  servers,
		interval: interval,
		seen:     map[[2]string]struct{}{},
	}
}

// Run refreshes until the context ends.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil {
			klog.Errorf("failed to refresh server metrics: %s", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh recomputes the per-kind/state gauge once.
func (c *Controller) Refresh(ctx context.Context) error {
	servers, err := c.servers.ListServers(ctx)
	if err != nil {
		return err
	}

	counts := map[[2]string]int{}
	for _, srv := range servers {
		counts[[2]string{srv.Kind, string(srv.State)}]++
	}
	for pair := range c.seen {
		if _, live := counts[pair]; !live {
			ServersStateCount.WithLabelValues(pair[0], pair[1]).Set(0)
		}
	}
	for pair, count := range counts {
		ServersStateCount.WithLabelValues(pair[0], pair[1]).Set(float64(count))
		c.seen[pair] = struct{}{}
	}
	return nil
}
