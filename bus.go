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

// DefaultBusCapacity is the suggested fixed capacity for the publish
// queue.
const DefaultBusCapacity = 1024

// Bus is the bounded publish queue events wait in before fan-out.
// Publish is non-blocking and never suspends the caller; ProcessQueue
// drains it in FIFO order.
type Bus struct {
	mx     sync.Mutex
	events []Event
	cap    int
}

// NewBus creates a Bus with the given fixed capacity. A capacity of
// zero or less is coerced to DefaultBusCapacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	return &Bus{cap: capacity}
}

// Publish copies type/sender/data into a freshly owned Event and
// enqueues it. It rejects an empty type or sender and truncates data
// at MaxDataLen. It never blocks; a full bus reports QueueFull.
func (b *Bus) Publish(typ, sender, data string) (Event, error) {
	if typ == "" || sender == "" {
		return Event{}, newErr("Publish", KindInvalidArg, nil)
	}
	if len(typ) > MaxTypeLen || len(sender) > MaxSenderLen {
		return Event{}, newErr("Publish", KindInvalidArg, nil)
	}
	truncated := false
	if len(data) > MaxDataLen {
		data = data[:MaxDataLen]
		truncated = true
	}
	e := Event{Type: typ, Sender: sender, Data: data, Time: time.Now(), Truncated: truncated}

	b.mx.Lock()
	defer b.mx.Unlock()
	if len(b.events) >= b.cap {
		return Event{}, newErr("Publish", KindQueueFull, nil)
	}
	b.events = append(b.events, e)
	return e, nil
}

// Drain removes and returns every queued event in FIFO arrival order.
func (b *Bus) Drain() []Event {
	b.mx.Lock()
	defer b.mx.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}

// Len reports the number of events currently queued.
func (b *Bus) Len() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.events)
}
