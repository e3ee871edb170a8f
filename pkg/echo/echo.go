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

// Package echo talks to the in-cluster echo tracking service. Echo is an
// alpha feature: calls are best effort and teardown failures only log.
package echo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	defaultURL     = "http://echo.echo:8888"
	requestTimeout = 5 * time.Second
)

// UserDefinition describes the player to the echo service. Fields left nil
// keep their current value on the echo side.
type UserDefinition struct {
	IP       *string   `json:"ip"`
	Server   uuid.UUID `json:"server"`
	Username *string   `json:"username"`
}

// Client is an authenticated echo API client.
type Client struct {
	http *http.Client
	base string
	key  string
}

// New builds a client with the shared echo key.
func New(key string) *Client {
	return &Client{
		http: &http.Client{Timeout: requestTimeout},
		base: defaultURL,
		key:  key,
	}
}

// TrackPlayer starts or updates tracking for a player and returns the
// tracking code echo assigned.
func (c *Client) TrackPlayer(ctx context.Context, player uuid.UUID, def UserDefinition) (uint32, error) {
	var code uint32
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/players/%s", player), def, &code)
	return code, err
}

// ForgetPlayer stops tracking a player.
func (c *Client) ForgetPlayer(ctx context.Context, player uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/players/%s", player), nil, nil)
}

// RegisterServer enrolls a server and returns the key echo minted for it.
func (c *Client) RegisterServer(ctx context.Context, server uuid.UUID) (uuid.UUID, error) {
	var key uuid.UUID
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/servers/%s", server), nil, &key)
	return key, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("echo %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode echo response: %w", err)
		}
	}
	return nil
}
