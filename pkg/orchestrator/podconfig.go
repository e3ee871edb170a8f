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

package orchestrator

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// PodDefaults tunes the pods the orchestrator creates. Values come from an
// optional TOML file so operators can adjust resources without a rebuild.
type PodDefaults struct {
	ImagePullPolicy         string            `toml:"image_pull_policy"`
	ImagePullSecrets        []string          `toml:"image_pull_secrets"`
	ContainerPort           int32             `toml:"container_port"`
	TerminationGraceSeconds int64             `toml:"termination_grace_seconds"`
	ExtraLabels             map[string]string `toml:"labels"`
	Resources               ResourceDefaults  `toml:"resources"`
}

// ResourceDefaults maps to corev1 resource requirements; empty strings mean
// unset.
type ResourceDefaults struct {
	Requests map[string]string `toml:"requests"`
	Limits   map[string]string `toml:"limits"`
}

// DefaultPodDefaults are the compiled-in values used when no file is given.
func DefaultPodDefaults() PodDefaults {
	return PodDefaults{
		ImagePullPolicy:         string(corev1.PullIfNotPresent),
		ImagePullSecrets:        []string{"skynet-registry"},
		ContainerPort:           25665,
		TerminationGraceSeconds: 30,
	}
}

// LoadPodDefaults reads the TOML defaults file; an empty path returns the
// compiled defaults.
func LoadPodDefaults(path string) (PodDefaults, error) {
	defaults := DefaultPodDefaults()
	if path == "" {
		return defaults, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PodDefaults{}, fmt.Errorf("read pod defaults: %w", err)
	}
	if err := toml.Unmarshal(raw, &defaults); err != nil {
		return PodDefaults{}, fmt.Errorf("parse pod defaults: %w", err)
	}
	return defaults, nil
}

func (d PodDefaults) resourceRequirements() (corev1.ResourceRequirements, error) {
	out := corev1.ResourceRequirements{}
	requests, err := parseResourceList(d.Resources.Requests)
	if err != nil {
		return out, err
	}
	limits, err := parseResourceList(d.Resources.Limits)
	if err != nil {
		return out, err
	}
	out.Requests = requests
	out.Limits = limits
	return out, nil
}

func parseResourceList(m map[string]string) (corev1.ResourceList, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := corev1.ResourceList{}
	for name, value := range m {
		quantity, err := resource.ParseQuantity(value)
		if err != nil {
			return nil, fmt.Errorf("parse resource %s=%q: %w", name, value, err)
		}
		out[corev1.ResourceName(name)] = quantity
	}
	return out, nil
}
