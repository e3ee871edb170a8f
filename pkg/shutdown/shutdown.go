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

// Package shutdown coordinates process teardown. Every long-running task
// derives from the coordinator's root context; closers registered by
// components run LIFO on drain so dependents stop before their
// dependencies.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	klog "k8s.io/klog/v2"
)

// Closer releases one component's resources during drain.
type Closer func(ctx context.Context) error

type registration struct {
	name  string
	close Closer
}

// Coordinator owns the root context and the ordered closer list.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closers   []registration
	triggered bool
}

// NewCoordinator builds a coordinator rooted on the given parent context.
func NewCoordinator(parent context.Context) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context is the root every background task must derive from.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Register appends a named closer. Closers run in reverse registration
// order during Drain.
func (c *Coordinator) Register(name string, close Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, registration{name: name, close: close})
}

// Trigger cancels the root context once; later calls only log.
func (c *Coordinator) Trigger(reason string) {
	c.mu.Lock()
	already := c.triggered
	c.triggered = true
	c.mu.Unlock()

	if already {
		klog.V(4).Infof("shutdown already triggered, ignoring %q", reason)
		return
	}
	klog.Infof("shutdown triggered: %s", reason)
	c.cancel()
}

// Triggered reports whether shutdown has started.
func (c *Coordinator) Triggered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered
}

// Drain runs every registered closer LIFO within the timeout and returns
// the collected failures.
func (c *Coordinator) Drain(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.mu.Lock()
	closers := make([]registration, len(c.closers))
	copy(closers, c.closers)
	c.mu.Unlock()

	var errs *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		reg := closers[i]
		klog.V(2).Infof("draining %s", reg.name)
		if err := reg.close(ctx); err != nil {
			klog.Errorf("failed to drain %s: %s", reg.name, err.Error())
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-ch:
			c.Trigger("signal " + sig.String())
		case <-c.ctx.Done():
		}
		signal.Stop(ch)
	}()
}
