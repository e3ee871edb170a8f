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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

func init() {
	metrics.Registry.MustRegister(Onlines)
	metrics.Registry.MustRegister(ServersStateCount)
	metrics.Registry.MustRegister(ServersAdoptedTotal)
	metrics.Registry.MustRegister(ServersReleasedTotal)
	metrics.Registry.MustRegister(AutoscaleProvisionsTotal)
	metrics.Registry.MustRegister(AutoscaleDeletionsTotal)
	metrics.Registry.MustRegister(EventsPublishedTotal)
}

var (
	Onlines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skynet_onlines",
			Help: "The fleet-wide number of connected players",
		},
	)
	ServersStateCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skynet_servers_state_count",
			Help: "The number of registered servers per kind and state",
		},
		[]string{"kind", "state"},
	)
	ServersAdoptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skynet_servers_adopted_total",
			Help: "The total of pods adopted into the fleet",
		},
		[]string{"kind"},
	)
	ServersReleasedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skynet_servers_released_total",
			Help: "The total of pods released from the fleet",
		},
		[]string{"kind"},
	)
	AutoscaleProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skynet_autoscale_provisions_total",
			Help: "The total of servers provisioned by the autoscaler",
		},
		[]string{"kind"},
	)
	AutoscaleDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skynet_autoscale_deletions_total",
			Help: "The total of idle servers deleted by the autoscaler",
		},
		[]string{"kind"},
	)
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skynet_events_published_total",
			Help: "The total of events published to the bus per type",
		},
		[]string{"event"},
	)
)
