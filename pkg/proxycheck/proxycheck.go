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

// Package proxycheck scores connecting IPs against the proxycheck.io
// reputation service. Pre-login treats any transport failure as "allow", so
// the client never blocks logins when the service is down.
package proxycheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	baseURL        = "https://proxycheck.io/v2"
	requestTimeout = 5 * time.Second

	// Verdicts are cached briefly; risky IPs get a durable IPBan anyway.
	cacheTTL = time.Hour
)

// Verdict is the per-IP slice of a proxycheck.io response.
type Verdict struct {
	Proxy    string  `json:"proxy"`
	Type     *string `json:"type"`
	Provider *string `json:"provider"`
	Risk     int     `json:"risk"`
}

// Risky applies the blocking rule: hard proxies always, VPNs only past a
// moderate risk score, and anything past a high score regardless of type.
func (v Verdict) Risky() bool {
	proxy := v.Proxy == "yes"
	vpn := v.Type != nil && *v.Type == "VPN"
	return (proxy && !vpn) || (proxy && v.Risk > 33) || v.Risk > 66
}

// String renders the verdict the way it is stored as an auto-ban reason.
func (v Verdict) String() string {
	proxy := v.Proxy == "yes"
	vpn := v.Type != nil && *v.Type == "VPN"
	return fmt.Sprintf("Proxy : %t, VPN : %t, Risk : %d", proxy, vpn, v.Risk)
}

// Client queries proxycheck.io with a short timeout and a verdict cache.
type Client struct {
	http   *http.Client
	base   string
	apiKey string
	cache  *gocache.Cache
}

// New builds a client. An empty key is accepted; proxycheck.io then applies
// its anonymous quota.
func New(apiKey string) *Client {
	return &Client{
		http:   &http.Client{Timeout: requestTimeout},
		base:   baseURL,
		apiKey: apiKey,
		cache:  gocache.New(cacheTTL, 10*time.Minute),
	}
}

// CheckIP returns the reputation verdict for one address.
func (c *Client) CheckIP(ctx context.Context, addr string) (Verdict, error) {
	if cached, ok := c.cache.Get(addr); ok {
		return cached.(Verdict), nil
	}

	url := fmt.Sprintf("%s/%s?vpn=1&risk=1&seen=1&tag=login&key=%s", c.base, addr, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Verdict{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	// The per-IP verdict rides beside fixed fields keyed by the address
	// itself, so the envelope decodes as a loose map first.
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Verdict{}, fmt.Errorf("decode proxycheck response: %w", err)
	}

	verdict, err := parse(raw, addr)
	if err != nil {
		return Verdict{}, err
	}
	c.cache.SetDefault(addr, verdict)
	return verdict, nil
}

func parse(raw map[string]json.RawMessage, addr string) (Verdict, error) {
	var status string
	if s, ok := raw["status"]; ok {
		if err := json.Unmarshal(s, &status); err != nil {
			return Verdict{}, fmt.Errorf("decode proxycheck status: %w", err)
		}
	}
	var message string
	if m, ok := raw["message"]; ok {
		_ = json.Unmarshal(m, &message)
	}

	switch status {
	case "ok", "warning":
		entry, ok := raw[addr]
		if !ok {
			if message != "" {
				return Verdict{}, fmt.Errorf("proxycheck: %s", message)
			}
			return Verdict{}, fmt.Errorf("proxycheck: address %s missing from result", addr)
		}
		var verdict Verdict
		if err := json.Unmarshal(entry, &verdict); err != nil {
			return Verdict{}, fmt.Errorf("decode proxycheck verdict: %w", err)
		}
		return verdict, nil
	default:
		if message == "" {
			message = "no message"
		}
		return Verdict{}, fmt.Errorf("proxycheck: %s", message)
	}
}
