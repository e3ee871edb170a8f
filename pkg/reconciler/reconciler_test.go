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

package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	clientfake "sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/orchestrator"
	"github.com/skynet-mc/skynet/pkg/repository"
	repofake "github.com/skynet-mc/skynet/pkg/repository/fake"
)

type forgetSpy struct {
	mu     sync.Mutex
	Proxies []uuid.UUID
}

func (s *forgetSpy) Forget(proxy uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Proxies = append(s.Proxies, proxy)
}

func newPod(name, kind string, extraLabels map[string]string) *corev1.Pod {
	labels := map[string]string{
		orchestrator.LabelManagedBy: orchestrator.ManagedByValue,
		orchestrator.LabelKind:      kind,
	}
	for k, v := range extraLabels {
		labels[k] = v
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "skynet",
			Labels:    labels,
		},
		Status: corev1.PodStatus{PodIP: "10.0.0.7"},
	}
}

func request(pod *corev1.Pod) reconcile.Request {
	return reconcile.Request{NamespacedName: types.NamespacedName{
		Namespace: pod.Namespace,
		Name:      pod.Name,
	}}
}

func TestAdoptInsertsRowAndPublishesRoute(t *testing.T) {
	pod := newPod("arena-12345", "arena", map[string]string{
		orchestrator.PropLabelPrefix + "slots": "16",
	})
	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	res, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)
	assert.Zero(t, res.RequeueAfter)

	srv, err := store.GetServerByLabel(context.Background(), "arena-12345")
	require.NoError(t, err)
	assert.Equal(t, "arena", srv.Kind)
	assert.Equal(t, "10.0.0.7", srv.IP)
	assert.Equal(t, repository.ServerStateStarting, srv.State)
	assert.Equal(t, map[string]string{"slots": "16"}, srv.Properties)

	events := bus.Published()
	require.Len(t, events, 1)
	route, ok := events[0].(eventbus.NewRoute)
	require.True(t, ok)
	assert.Equal(t, srv.ID, route.ID)
	assert.Equal(t, "arena-12345", route.Name)
	assert.Equal(t, map[string]string{"slots": "16"}, route.Properties)

	var adopted corev1.Pod
	require.NoError(t, c.Get(context.Background(), request(pod).NamespacedName, &adopted))
	assert.Contains(t, adopted.Finalizers, orchestrator.Finalizer)
	assert.Equal(t, orchestrator.ServerIDLabel(srv.ID), adopted.Labels[orchestrator.LabelServerID])
}

func TestAdoptIsIdempotent(t *testing.T) {
	pod := newPod("arena-12345", "arena", nil)
	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Len(t, store.Servers, 1)
	assert.Len(t, bus.Published(), 1)
}

func TestAdoptReusesOrphanRow(t *testing.T) {
	// Simulates a crash between the row insert and the pod patch: the row
	// exists but the pod carries no adoption metadata.
	pod := newPod("arena-12345", "arena", nil)
	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	orphanID := uuid.New()
	store.AddServer(repository.Server{
		ID:    orphanID,
		Label: "arena-12345",
		Kind:  "arena",
		State: repository.ServerStateStarting,
	})
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Len(t, store.Servers, 1)
	var adopted corev1.Pod
	require.NoError(t, c.Get(context.Background(), request(pod).NamespacedName, &adopted))
	assert.Equal(t, orchestrator.ServerIDLabel(orphanID), adopted.Labels[orchestrator.LabelServerID])
}

func TestAdoptSkipsRouteForProxy(t *testing.T) {
	pod := newPod("proxy-10001", repository.KindProxy, nil)
	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Len(t, store.Servers, 1)
	assert.Empty(t, bus.Published())
}

func TestAdoptWaitsForPodIP(t *testing.T) {
	pod := newPod("arena-12345", "arena", nil)
	pod.Status.PodIP = ""
	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Empty(t, store.Servers)
	assert.Empty(t, bus.Published())
}

func TestReleaseDeletesRowAndRoute(t *testing.T) {
	id := uuid.New()
	pod := newPod("arena-12345", "arena", map[string]string{
		orchestrator.LabelServerID: orchestrator.ServerIDLabel(id),
	})
	now := metav1.Now()
	pod.DeletionTimestamp = &now
	pod.Finalizers = []string{orchestrator.Finalizer}

	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	store.AddServer(repository.Server{ID: id, Label: "arena-12345", Kind: "arena", State: repository.ServerStateIdle})
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Empty(t, store.Servers)
	require.Len(t, store.ServerLogs, 1)
	assert.Equal(t, repository.ServerLogDeleted, store.ServerLogs[0].Action)

	events := bus.Published()
	require.Len(t, events, 1)
	route, ok := events[0].(eventbus.DeleteRoute)
	require.True(t, ok)
	assert.Equal(t, id, route.ID)

	// With the finalizer gone, the fake client completes the deletion.
	var gone corev1.Pod
	err = c.Get(context.Background(), request(pod).NamespacedName, &gone)
	assert.Error(t, err)
}

func TestReleaseProxyDrainsSessions(t *testing.T) {
	proxyID := uuid.New()
	otherProxy := uuid.New()
	pod := newPod("proxy-10001", repository.KindProxy, map[string]string{
		orchestrator.LabelServerID: orchestrator.ServerIDLabel(proxyID),
	})
	now := metav1.Now()
	pod.DeletionTimestamp = &now
	pod.Finalizers = []string{orchestrator.Finalizer}

	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	store.AddServer(repository.Server{ID: proxyID, Label: "proxy-10001", Kind: repository.KindProxy})

	onDying := store.AddPlayer(uuid.New(), "alice")
	dyingSession := uuid.New()
	onDying.Proxy, onDying.Session = &proxyID, &dyingSession
	store.Sessions[dyingSession] = &repository.Session{ID: dyingSession, Player: onDying.UUID, Start: time.Now()}

	onOther := store.AddPlayer(uuid.New(), "bob")
	otherSession := uuid.New()
	onOther.Proxy, onOther.Session = &otherProxy, &otherSession
	store.Sessions[otherSession] = &repository.Session{ID: otherSession, Player: onOther.UUID, Start: time.Now()}

	bus := &eventbus.Recorder{}
	counts := &forgetSpy{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, counts, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Nil(t, onDying.Proxy)
	assert.Nil(t, onDying.Session)
	assert.NotNil(t, store.Sessions[dyingSession].End)

	assert.NotNil(t, onOther.Proxy)
	assert.Nil(t, store.Sessions[otherSession].End)

	assert.Equal(t, []uuid.UUID{proxyID}, counts.Proxies)
}

func TestReleaseWithMissingRowStillRemovesFinalizer(t *testing.T) {
	id := uuid.New()
	pod := newPod("arena-12345", "arena", map[string]string{
		orchestrator.LabelServerID: orchestrator.ServerIDLabel(id),
	})
	now := metav1.Now()
	pod.DeletionTimestamp = &now
	pod.Finalizers = []string{orchestrator.Finalizer}

	c := clientfake.NewClientBuilder().WithObjects(pod).Build()
	store := repofake.New()
	bus := &eventbus.Recorder{}
	orch := orchestrator.New(c, orchestrator.Config{Namespace: "skynet"}, orchestrator.DefaultPodDefaults())
	r := New(c, store, bus, nil, orch)

	_, err := r.Reconcile(context.Background(), request(pod))
	require.NoError(t, err)

	assert.Empty(t, bus.Published())
	var gone corev1.Pod
	err = c.Get(context.Background(), request(pod).NamespacedName, &gone)
	assert.Error(t, err)
}

func TestReconcileMissingPodIsNoop(t *testing.T) {
	c := clientfake.NewClientBuilder().Build()
	r := New(c, repofake.New(), &eventbus.Recorder{}, nil, orchestrator.New(c, orchestrator.Config{}, orchestrator.DefaultPodDefaults()))

	res, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "skynet", Name: "gone"}})
	require.NoError(t, err)
	assert.Zero(t, res.RequeueAfter)
}
