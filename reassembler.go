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

import "bytes"

// MaxLineLen is the absolute cap on a single reassembled line.
// Lines longer than this are split at the cap and the overflow is
// discarded.
const MaxLineLen = 8 * 1024

// Reassembler turns arbitrary byte chunks read from a child's stdout
// or stderr into whole lines, using one centralized accumulator per
// stream rather than a fresh bufio.Reader per read.
type Reassembler struct {
	buf  []byte
	warn func(string)
}

// NewReassembler creates a Reassembler. warn, if non-nil, is called
// once per discarded line-length overflow with a human message.
func NewReassembler(warn func(string)) *Reassembler {
	return &Reassembler{warn: warn}
}

// Feed appends chunk to the accumulator and returns every complete
// line it can now extract, stripped of trailing \r\n, with empty
// lines skipped.
func (r *Reassembler) Feed(chunk []byte) []string {
	if len(chunk) > 0 {
		r.buf = append(r.buf, chunk...)
	}
	var lines []string
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		line := r.buf[:idx]
		r.buf = r.buf[idx+1:]
		if s := r.finish(line); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// Close flushes any trailing non-terminated content as a final line,
// called once the source pipe has been observed closed.
func (r *Reassembler) Close() []string {
	if len(r.buf) == 0 {
		return nil
	}
	line := r.buf
	r.buf = nil
	if s := r.finish(line); s != "" {
		return []string{s}
	}
	return nil
}

// finish trims a trailing \r, enforces the length cap, and skips
// blank lines.
func (r *Reassembler) finish(line []byte) string {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) > MaxLineLen {
		if r.warn != nil {
			r.warn("line exceeded max length, overflow discarded")
		}
		line = line[:MaxLineLen]
	}
	if len(line) == 0 {
		return ""
	}
	return string(line)
}
