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

package echo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackPlayer(t *testing.T) {
	player := uuid.New()
	server := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/players/"+player.String(), r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))

		var def UserDefinition
		require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
		assert.Equal(t, server, def.Server)

		fmt.Fprint(w, "42")
	}))
	defer srv.Close()

	c := New("secret")
	c.base = srv.URL

	code, err := c.TrackPlayer(context.Background(), player, UserDefinition{Server: server})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), code)
}

func TestRegisterServer(t *testing.T) {
	server := uuid.New()
	key := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servers/"+server.String(), r.URL.Path)
		fmt.Fprintf(w, "%q", key)
	}))
	defer srv.Close()

	c := New("secret")
	c.base = srv.URL

	got, err := c.RegisterServer(context.Background(), server)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestForgetPlayerSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("secret")
	c.base = srv.URL

	err := c.ForgetPlayer(context.Background(), uuid.New())
	assert.Error(t, err)
}
