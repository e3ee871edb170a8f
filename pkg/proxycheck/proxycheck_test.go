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

package proxycheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRisky(t *testing.T) {
	vpn := "VPN"
	residential := "Residential"
	cases := []struct {
		name    string
		verdict Verdict
		want    bool
	}{
		{"clean", Verdict{Proxy: "no", Risk: 0}, false},
		{"plain proxy", Verdict{Proxy: "yes", Type: &residential, Risk: 0}, true},
		{"low risk vpn", Verdict{Proxy: "yes", Type: &vpn, Risk: 10}, false},
		{"risky vpn", Verdict{Proxy: "yes", Type: &vpn, Risk: 40}, true},
		{"high risk residential", Verdict{Proxy: "no", Risk: 70}, true},
		{"moderate risk residential", Verdict{Proxy: "no", Risk: 50}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.verdict.Risky())
		})
	}
}

func TestCheckIPParsesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"status":"ok","198.51.100.7":{"proxy":"yes","type":"VPN","risk":45}}`)
	}))
	defer srv.Close()

	c := New("test-key")
	c.base = srv.URL

	verdict, err := c.CheckIP(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, verdict.Risky())
	assert.Equal(t, "Proxy : true, VPN : true, Risk : 45", verdict.String())

	_, err = c.CheckIP(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckIPDeniedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"denied","message":"key exhausted"}`)
	}))
	defer srv.Close()

	c := New("test-key")
	c.base = srv.URL

	_, err := c.CheckIP(context.Background(), "198.51.100.7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key exhausted")
}

func TestCheckIPMissingAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := New("test-key")
	c.base = srv.URL

	_, err := c.CheckIP(context.Background(), "198.51.100.7")
	assert.Error(t, err)
}
