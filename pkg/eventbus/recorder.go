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

package eventbus

import (
	"context"
	"sync"
)

// Recorder is a Publisher that remembers everything published to it.
// Tests across the module use it instead of a live broker.
type Recorder struct {
	mu     sync.Mutex
	Events []ServerEvent
	// Err, when set, is returned by every Publish call.
	Err error
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, ev ServerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, ev)
	return nil
}

// Published returns a snapshot of everything recorded so far.
func (r *Recorder) Published() []ServerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServerEvent, len(r.Events))
	copy(out, r.Events)
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = nil
}
