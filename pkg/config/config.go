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

package config

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Config is the frozen snapshot of the environment, read once at startup and
// passed into every component. Runtime-mutable settings live in the settings
// table, not here.
type Config struct {
	// ReplicaID identifies this control-plane replica on the event bus.
	// Minted fresh on every boot, never persisted.
	ReplicaID uuid.UUID

	DBAddress  string
	DBKeyspace string
	DBUser     string
	DBPassword string

	AMQPAddress string

	// ListenAddress is the HTTP bind address, e.g. ":8080".
	ListenAddress string
	// ExternalAddress is the URL game servers use to reach this control
	// plane; injected into managed pods as SKYNET_URL.
	ExternalAddress string

	Namespace string

	ProxycheckKey string
	EchoKey       string

	LeaderboardCron string
}

// Load reads the SKYNET environment and fails fast on anything unusable.
// Optional entries fall back to their documented defaults.
func Load() *Config {
	cfg := &Config{
		ReplicaID:       uuid.New(),
		DBAddress:       mustGetenv("DB_ADDRESS"),
		DBKeyspace:      getenvDefault("DB_KEYSPACE", "skynet"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		AMQPAddress:     mustGetenv("AMQP_ADDRESS"),
		ListenAddress:   getenvDefault("SKYNET_ADDRESS", ":8080"),
		ExternalAddress: mustGetenv("SKYNET_EXTERNAL_ADDRESS"),
		Namespace:       getenvDefault("KUBERNETES_NAMESPACE", "default"),
		ProxycheckKey:   os.Getenv("PROXYCHECK_API_KEY"),
		EchoKey:         os.Getenv("ECHO_KEY"),
		LeaderboardCron: getenvDefault("LEADERBOARD_CRON", "@hourly"),
	}
	return cfg
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		klog.Fatalf("required environment variable %s is not set", key)
	}
	return v
}

func getenvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
