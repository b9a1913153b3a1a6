// Copyright 2015 The Govisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package toolvisor

import (
	"sync"
	"time"
)

// DebugEvent is one entry in the kernel's lifecycle debug ring: state
// transitions, restarts, and parse failures, independent of the
// regular per-tool logs.
type DebugEvent struct {
	Time   time.Time
	Kind   string
	Tool   string
	Detail string
}

// debugRing is a bounded, thread-safe ring of DebugEvents, gated by
// the [core] enable_debug key.
type debugRing struct {
	mx      sync.Mutex
	events  []DebugEvent
	next    int
	count   int
	cap     int
}

func newDebugRing(capacity int) *debugRing {
	if capacity < 1 {
		capacity = 1
	}
	return &debugRing{events: make([]DebugEvent, capacity), cap: capacity}
}

func (d *debugRing) push(kind, tool, detail string) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.events[d.next] = DebugEvent{Time: time.Now(), Kind: kind, Tool: tool, Detail: detail}
	d.next = (d.next + 1) % d.cap
	if d.count < d.cap {
		d.count++
	}
}

// Records returns the buffered debug events, oldest first.
func (d *debugRing) Records() []DebugEvent {
	d.mx.Lock()
	defer d.mx.Unlock()
	out := make([]DebugEvent, 0, d.count)
	start := (d.next - d.count + d.cap) % d.cap
	for i := 0; i < d.count; i++ {
		out = append(out, d.events[(start+i)%d.cap])
	}
	return out
}
