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

// Package leaderelection gates the singleton control loops (reconciler,
// autoscale reactions, online-count persistence) on a cluster lease. Every
// replica serves HTTP and the bus regardless of leadership.
package leaderelection

import (
	"context"
	"sync/atomic"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	klog "k8s.io/klog/v2"
)

const leaseName = "skynet-leader"

// Callbacks fire on leadership transitions. OnStarted receives a context
// cancelled when leadership is lost.
type Callbacks struct {
	OnStarted func(ctx context.Context)
	OnStopped func()
}

// Elector wraps client-go leader election with an atomically readable flag.
type Elector struct {
	elector *leaderelection.LeaderElector
	leading atomic.Bool
}

// New builds an elector for this replica.
func New(client kubernetes.Interface, namespace, identity string, callbacks Callbacks) (*Elector, error) {
	e := &Elector{}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      leaseName,
			Namespace: namespace,
		},
		Client: client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: identity,
		},
	}

	le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   15 * time.Second,
		RenewDeadline:   10 * time.Second,
		RetryPeriod:     5 * time.Second,
		ReleaseOnCancel: true,
		Name:            leaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				klog.Info("got lease, scheduling control loop")
				e.leading.Store(true)
				if callbacks.OnStarted != nil {
					callbacks.OnStarted(ctx)
				}
			},
			OnStoppedLeading: func() {
				klog.Info("lost lease, disabling control loop")
				e.leading.Store(false)
				if callbacks.OnStopped != nil {
					callbacks.OnStopped()
				}
			},
		},
	})
	if err != nil {
		return nil, err
	}
	e.elector = le
	return e, nil
}

// IsLeader reports whether this replica currently holds the lease.
func (e *Elector) IsLeader() bool {
	return e.leading.Load()
}

// Run keeps contending for the lease until the context ends. Losing the
// lease does not stop the loop; the replica re-enters the election.
func (e *Elector) Run(ctx context.Context) {
	for {
		e.elector.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		klog.V(2).Info("re-entering leader election")
	}
}
