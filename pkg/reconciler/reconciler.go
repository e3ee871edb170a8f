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

// Package reconciler turns pod observations into fleet membership: a pod
// with an IP and no adoption metadata becomes a Server row, a terminating
// pod with the fleet finalizer gets its row and routes torn down. Only the
// leader replica runs this controller.
package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/workqueue"
	klog "k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
	"sigs.k8s.io/controller-runtime/pkg/source"

	"github.com/skynet-mc/skynet/pkg/eventbus"
	"github.com/skynet-mc/skynet/pkg/metrics"
	"github.com/skynet-mc/skynet/pkg/orchestrator"
	"github.com/skynet-mc/skynet/pkg/repository"
	"github.com/skynet-mc/skynet/pkg/tracing"
	"github.com/skynet-mc/skynet/pkg/util"
)

// requeueDelay spaces retries of a failed reconcile.
const requeueDelay = 60 * time.Second

// Store is the slice of the repository the reconciler needs.
type Store interface {
	GetServerByLabel(ctx context.Context, label string) (repository.Server, error)
	CreateServer(ctx context.Context, srv repository.Server) error
	GetServer(ctx context.Context, id uuid.UUID) (repository.Server, error)
	DeleteServer(ctx context.Context, id uuid.UUID) error
	InsertServerLog(ctx context.Context, log repository.ServerLog) error
	OnlinePlayers(ctx context.Context) ([]repository.OnlinePlayer, error)
	NullPlayerSession(ctx context.Context, player uuid.UUID) error
	CloseSession(ctx context.Context, id uuid.UUID) error
}

// ProxyCounts drops a released proxy from the online-count aggregation.
type ProxyCounts interface {
	Forget(proxy uuid.UUID)
}

// PodReconciler adopts and releases fleet pods.
type PodReconciler struct {
	client client.Client
	store  Store
	bus    eventbus.Publisher
	counts ProxyCounts
	orch   *orchestrator.Orchestrator
}

var _ reconcile.Reconciler = (*PodReconciler)(nil)

// New builds a reconciler over an initialized cluster client.
func New(c client.Client, store Store, bus eventbus.Publisher, counts ProxyCounts, orch *orchestrator.Orchestrator) *PodReconciler {
	return &PodReconciler{client: c, store: store, bus: bus, counts: counts, orch: orch}
}

// NewController wires an unmanaged pod controller around the reconciler.
// Unmanaged so the leader-election callbacks control its lifetime instead
// of the manager.
func NewController(mgr manager.Manager, r *PodReconciler) (controller.Controller, error) {
	c, err := controller.NewUnmanaged("pod-reconciler", mgr, controller.Options{Reconciler: r})
	if err != nil {
		return nil, err
	}
	if err := c.Watch(source.Kind(mgr.GetCache(), &corev1.Pod{}, &handler.TypedFuncs[*corev1.Pod]{
		CreateFunc: func(ctx context.Context, e event.TypedCreateEvent[*corev1.Pod], q workqueue.RateLimitingInterface) {
			enqueueManaged(e.Object, q)
		},
		UpdateFunc: func(ctx context.Context, e event.TypedUpdateEvent[*corev1.Pod], q workqueue.RateLimitingInterface) {
			enqueueManaged(e.ObjectNew, q)
		},
		DeleteFunc: func(ctx context.Context, e event.TypedDeleteEvent[*corev1.Pod], q workqueue.RateLimitingInterface) {
			enqueueManaged(e.Object, q)
		},
	})); err != nil {
		return nil, err
	}
	return c, nil
}

func enqueueManaged(pod *corev1.Pod, q workqueue.RateLimitingInterface) {
	if pod.GetLabels()[orchestrator.LabelManagedBy] != orchestrator.ManagedByValue {
		return
	}
	q.Add(reconcile.Request{NamespacedName: types.NamespacedName{
		Name:      pod.GetName(),
		Namespace: pod.GetNamespace(),
	}})
}

// Reconcile processes one pod observation. Errors requeue after a fixed
// delay rather than the default backoff so a flapping dependency does not
// hot-loop the controller.
func (r *PodReconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanReconcilePod,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(tracing.FieldK8sNamespace, req.Namespace),
			attribute.String(tracing.FieldK8sPodName, req.Name),
		))
	defer span.End()

	pod := &corev1.Pod{}
	if err := r.client.Get(ctx, req.NamespacedName, pod); err != nil {
		if apierrors.IsNotFound(err) {
			return reconcile.Result{}, nil
		}
		klog.Errorf("fetch pod %s: %v", req.NamespacedName, err)
		return reconcile.Result{RequeueAfter: requeueDelay}, nil
	}

	if r.shouldAdopt(pod) {
		if err := r.adopt(ctx, pod); err != nil {
			klog.Errorf("adopt pod %s: %v", pod.Name, err)
			return reconcile.Result{RequeueAfter: requeueDelay}, nil
		}
	}

	if pod.DeletionTimestamp != nil && util.HasFinalizer(pod, orchestrator.Finalizer) {
		if err := r.release(ctx, pod); err != nil {
			klog.Errorf("release pod %s: %v", pod.Name, err)
			return reconcile.Result{RequeueAfter: requeueDelay}, nil
		}
	}

	return reconcile.Result{}, nil
}

func (r *PodReconciler) shouldAdopt(pod *corev1.Pod) bool {
	if pod.DeletionTimestamp != nil {
		return false
	}
	if util.HasFinalizer(pod, orchestrator.Finalizer) {
		return false
	}
	if _, adopted := pod.Labels[orchestrator.LabelServerID]; adopted {
		return false
	}
	return pod.Status.PodIP != ""
}

// adopt registers the pod as a Server. Ordering matters: row first, then
// route, then pod patch. A crash before the patch leaves an orphan row that
// the next observation picks up again, so the id is re-used from an
// existing row with the same label instead of minted twice.
func (r *PodReconciler) adopt(ctx context.Context, pod *corev1.Pod) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanAdoptServer)
	defer span.End()
	addSpanEvent(ctx, tracing.EventReconcileAdoptStart, tracing.AttrServerName(pod.Name))

	id := uuid.New()
	existing, err := r.store.GetServerByLabel(ctx, pod.Name)
	switch {
	case err == nil:
		id = existing.ID
		addSpanEvent(ctx, tracing.EventReconcileOrphanSeen, tracing.AttrServerID(id))
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	kind := pod.Labels[orchestrator.LabelKind]
	properties := orchestrator.PodProperties(pod)

	srv := repository.Server{
		ID:         id,
		Label:      pod.Name,
		Kind:       kind,
		IP:         pod.Status.PodIP,
		State:      repository.ServerStateStarting,
		Properties: properties,
	}
	if err := r.store.CreateServer(ctx, srv); err != nil {
		return err
	}

	// Proxies are the routing layer; they never get routed to themselves.
	if kind != repository.KindProxy {
		if err := r.bus.Publish(ctx, eventbus.NewRoute{
			Addr:       pod.Status.PodIP,
			ID:         id,
			Name:       pod.Name,
			Kind:       kind,
			Properties: properties,
		}); err != nil {
			return err
		}
	}

	if err := r.orch.PatchPodAdopted(ctx, pod, id); err != nil {
		return err
	}

	metrics.ServersAdoptedTotal.WithLabelValues(kind).Inc()
	addSpanEvent(ctx, tracing.EventReconcileAdoptSuccess, tracing.AttrsForServer(id, kind)...)
	klog.Infof("new server %s (%s @%s)", pod.Name, id, pod.Status.PodIP)
	return nil
}

// release tears the server down before letting the pod terminate. Proxy
// teardown also sweeps the sessions the proxy owned so players do not stay
// pinned to a dead route.
func (r *PodReconciler) release(ctx context.Context, pod *corev1.Pod) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanReleaseServer)
	defer span.End()
	addSpanEvent(ctx, tracing.EventReconcileRelease, tracing.AttrServerName(pod.Name))

	label, ok := pod.Labels[orchestrator.LabelServerID]
	if ok {
		id, err := orchestrator.ParseServerIDLabel(label)
		if err != nil {
			return err
		}
		if err := r.teardown(ctx, pod, id); err != nil {
			return err
		}
	}
	return r.orch.PatchPodReleased(ctx, pod)
}

func (r *PodReconciler) teardown(ctx context.Context, pod *corev1.Pod, id uuid.UUID) error {
	srv, err := r.store.GetServer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		klog.Warningf("releasing pod %s: server row %s already gone", pod.Name, id)
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.bus.Publish(ctx, eventbus.DeleteRoute{ID: id, Name: pod.Name}); err != nil {
		return err
	}

	if srv.Kind == repository.KindProxy {
		if err := r.sweepProxySessions(ctx, id); err != nil {
			return err
		}
		if r.counts != nil {
			r.counts.Forget(id)
		}
	}

	if err := r.store.InsertServerLog(ctx, repository.ServerLog{
		Server: id,
		Label:  srv.Label,
		Kind:   srv.Kind,
		Action: repository.ServerLogDeleted,
		At:     time.Now(),
	}); err != nil {
		return err
	}
	if err := r.store.DeleteServer(ctx, id); err != nil {
		return err
	}

	metrics.ServersReleasedTotal.WithLabelValues(srv.Kind).Inc()
	klog.Infof("removed server %s (%s)", pod.Name, id)
	return nil
}

func addSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (r *PodReconciler) sweepProxySessions(ctx context.Context, proxy uuid.UUID) error {
	players, err := r.store.OnlinePlayers(ctx)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.Proxy != proxy {
			continue
		}
		if err := r.store.CloseSession(ctx, p.Session); err != nil {
			return err
		}
		if err := r.store.NullPlayerSession(ctx, p.UUID); err != nil {
			return err
		}
	}
	return nil
}
