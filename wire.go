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
	"strings"
	"time"
)

// MaxTypeLen, MaxSenderLen and MaxDataLen bound the three fields of an
// Event per the wire format TYPE|SENDER|DATA\n.
const (
	MaxTypeLen   = 64
	MaxSenderLen = 64
	MaxDataLen   = 4096
)

// Event is one line exchanged over the bus: a type, a sender (the
// tool name as declared by the child, never rewritten by the kernel),
// free-form data, and the time the kernel captured it.
type Event struct {
	Type   string
	Sender string
	Data   string
	Time   time.Time

	// Truncated records whether Data was cut down to MaxDataLen,
	// so a caller can log a warning without redoing the length check.
	Truncated bool
}

// Serialize renders e as TYPE|SENDER|DATA\n. Data longer than
// MaxDataLen is truncated; the caller is expected to have already
// warned about truncation at parse or publish time.
func (e Event) Serialize() string {
	data := e.Data
	if len(data) > MaxDataLen {
		data = data[:MaxDataLen]
	}
	var b strings.Builder
	b.Grow(len(e.Type) + len(e.Sender) + len(data) + 3)
	b.WriteString(e.Type)
	b.WriteByte('|')
	b.WriteString(e.Sender)
	b.WriteByte('|')
	b.WriteString(data)
	b.WriteByte('\n')
	return b.String()
}

// ParseEvent parses a line of the form TYPE|SENDER|DATA (trailing
// \r\n or \n already stripped by the caller). The first two '|'
// separators are significant; any further '|' belongs to DATA. A line
// with fewer than two separators fails to parse.
func ParseEvent(line string) (Event, error) {
	first := strings.IndexByte(line, '|')
	if first < 0 {
		return Event{}, newErr("ParseEvent", KindParseFailed, nil)
	}
	rest := line[first+1:]
	second := strings.IndexByte(rest, '|')
	if second < 0 {
		return Event{}, newErr("ParseEvent", KindParseFailed, nil)
	}
	typ := line[:first]
	sender := rest[:second]
	data := rest[second+1:]
	if typ == "" || sender == "" {
		return Event{}, newErr("ParseEvent", KindParseFailed, nil)
	}
	if len(typ) > MaxTypeLen || len(sender) > MaxSenderLen {
		return Event{}, newErr("ParseEvent", KindParseFailed, nil)
	}
	truncated := false
	if len(data) > MaxDataLen {
		data = data[:MaxDataLen]
		truncated = true
	}
	return Event{Type: typ, Sender: sender, Data: data, Truncated: truncated}, nil
}
