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

package leaderelection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"
)

func TestNewElectorStartsAsFollower(t *testing.T) {
	client := fake.NewSimpleClientset()

	e, err := New(client, "skynet", "replica-1", Callbacks{})
	require.NoError(t, err)
	assert.False(t, e.IsLeader())
}

func TestElectorAcquiresLeaseAgainstFakeAPI(t *testing.T) {
	client := fake.NewSimpleClientset()

	started := make(chan struct{})
	e, err := New(client, "skynet", "replica-1", Callbacks{
		OnStarted: func(context.Context) { close(started) },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("elector never acquired the lease")
	}
	assert.True(t, e.IsLeader())
}
