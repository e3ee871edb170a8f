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

// Package orchestrator performs the imperative pod operations of the fleet:
// creating server pods, deleting them, and stamping adoption metadata. The
// watch-driven side lives in the reconciler.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/skynet-mc/skynet/pkg/util"
)

// Fleet pod metadata. Properties ride on labels under the prop prefix so
// the reconciler can read them back without another round trip.
const (
	LabelManagedBy  = "managed_by"
	LabelKind       = "skynet/kind"
	LabelServerID   = "skynet_id"
	PropLabelPrefix = "skynet-prop/"
	Finalizer       = "skynet/finalizer"

	ManagedByValue = "skynet"

	containerName = "minecraft"
)

// ServerIDLabel formats the adoption id label value.
func ServerIDLabel(id uuid.UUID) string {
	return fmt.Sprintf("sky-%s-net", id)
}

// ParseServerIDLabel recovers the server id from the label value.
func ParseServerIDLabel(value string) (uuid.UUID, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(value, "sky-"), "-net")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed server id label %q: %w", value, err)
	}
	return id, nil
}

// Config carries namespace and the env handed to every fleet pod.
type Config struct {
	Namespace       string
	ExternalAddress string
	AMQPAddress     string
}

// Orchestrator creates and deletes fleet pods through the cluster API.
type Orchestrator struct {
	client   client.Client
	cfg      Config
	defaults PodDefaults
}

// New builds an orchestrator on an initialized cluster client.
func New(c client.Client, cfg Config, defaults PodDefaults) *Orchestrator {
	return &Orchestrator{client: c, cfg: cfg, defaults: defaults}
}

// CreatePod submits a new fleet pod. Properties become prop labels; env is
// appended after the two addresses every fleet process needs.
func (o *Orchestrator) CreatePod(ctx context.Context, kind, image, name string, properties, env map[string]string) error {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelKind:      kind,
	}
	labels = util.MergeMapString(labels, o.defaults.ExtraLabels)
	for key, value := range properties {
		labels[PropLabelPrefix+key] = value
	}

	containerEnv := []corev1.EnvVar{
		{Name: "SKYNET_URL", Value: o.cfg.ExternalAddress},
		{Name: "AMQP_ADDRESS", Value: o.cfg.AMQPAddress},
	}
	for key, value := range env {
		containerEnv = append(containerEnv, corev1.EnvVar{Name: key, Value: value})
	}

	resources, err := o.defaults.resourceRequirements()
	if err != nil {
		return err
	}

	var pullSecrets []corev1.LocalObjectReference
	for _, secret := range o.defaults.ImagePullSecrets {
		pullSecrets = append(pullSecrets, corev1.LocalObjectReference{Name: secret})
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: o.cfg.Namespace,
			Labels:    labels,
		},
		Spec: corev1.PodSpec{
			ImagePullSecrets:              pullSecrets,
			TerminationGracePeriodSeconds: ptr.To(o.defaults.TerminationGraceSeconds),
			Containers: []corev1.Container{
				{
					Name:            containerName,
					Image:           image,
					ImagePullPolicy: corev1.PullPolicy(o.defaults.ImagePullPolicy),
					Env:             containerEnv,
					Resources:       resources,
					Ports: []corev1.ContainerPort{
						{ContainerPort: o.defaults.ContainerPort},
					},
				},
			},
		},
	}

	return o.client.Create(ctx, pod)
}

// DeletePod removes a fleet pod by name.
func (o *Orchestrator) DeletePod(ctx context.Context, name string) error {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: o.cfg.Namespace,
		},
	}
	return o.client.Delete(ctx, pod)
}

// PatchPodAdopted stamps the finalizer and server id label on a freshly
// registered pod.
func (o *Orchestrator) PatchPodAdopted(ctx context.Context, pod *corev1.Pod, serverID uuid.UUID) error {
	updated := pod.DeepCopy()
	updated.Finalizers = append(updated.Finalizers, Finalizer)
	if updated.Labels == nil {
		updated.Labels = map[string]string{}
	}
	updated.Labels[LabelServerID] = ServerIDLabel(serverID)
	return o.client.Patch(ctx, updated, client.MergeFrom(pod))
}

// PatchPodReleased removes the fleet finalizer so the pod can terminate.
func (o *Orchestrator) PatchPodReleased(ctx context.Context, pod *corev1.Pod) error {
	updated := pod.DeepCopy()
	kept := make([]string, 0, len(updated.Finalizers))
	for _, f := range updated.Finalizers {
		if f != Finalizer {
			kept = append(kept, f)
		}
	}
	updated.Finalizers = kept
	return o.client.Patch(ctx, updated, client.MergeFrom(pod))
}

// PodProperties extracts the prop labels of a pod, prefix stripped.
func PodProperties(pod *corev1.Pod) map[string]string {
	return util.SubMapByKeyPrefix(pod.Labels, PropLabelPrefix)
}
