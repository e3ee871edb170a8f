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

// Package framework is the thin HTTP client the e2e suite drives the
// control plane with.
package framework

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// Framework wraps the deployed control plane's API for the suite.
type Framework struct {
	base string
	key  string
	http *http.Client
}

// New reads the target address and API key from the environment.
func New() *Framework {
	return &Framework{
		base: os.Getenv("SKYNET_E2E_ADDRESS"),
		key:  os.Getenv("SKYNET_E2E_KEY"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Server mirrors the fleet inventory projection.
type Server struct {
	ID     uuid.UUID `json:"id"`
	Label  string    `json:"label"`
	Kind   string    `json:"kind"`
	State  string    `json:"state"`
	Online int       `json:"online"`
}

// Ping mirrors the proxy ping payload.
type Ping struct {
	Online int    `json:"online"`
	Slots  int    `json:"slots"`
	MOTD   string `json:"motd"`
}

// Status returns the status probe's response code.
func (f *Framework) Status() (int, error) {
	resp, err := f.http.Get(f.base + "/status")
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Metrics fetches the prometheus exposition body.
func (f *Framework) Metrics() (string, error) {
	resp, err := f.http.Get(f.base + "/metrics")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

// UnauthenticatedServerList hits the fleet inventory without a credential
// and returns the status code.
func (f *Framework) UnauthenticatedServerList() (int, error) {
	resp, err := f.http.Get(f.base + "/api/servers/")
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Servers lists the registered fleet.
func (f *Framework) Servers() ([]Server, error) {
	var out []Server
	return out, f.get("/api/servers/", &out)
}

// ProxyPing fetches the server list screen data.
func (f *Framework) ProxyPing() (Ping, error) {
	var out Ping
	return out, f.get("/api/proxy/ping", &out)
}

func (f *Framework) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, f.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", f.key)

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
