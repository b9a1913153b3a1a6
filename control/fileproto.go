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

package control

import (
	"os"
	"strings"
	"time"

	"github.com/toolvisor/toolvisor"
)

// FileProto is a secondary local transport: a command-file the
// kernel polls and a response-file it writes, useful on hosts without
// a convenient loopback option. The client writes exactly one command
// line to CommandPath and watches ResponsePath; the kernel replaces
// ResponsePath atomically and deletes CommandPath to acknowledge.
// Selected only when no socket port is configured; Socket is primary.
type FileProto struct {
	k            *toolvisor.Kernel
	CommandPath  string
	ResponsePath string
	Interval     time.Duration
	stop         chan struct{}
}

// NewFileProto creates a FileProto bound to the given command/response
// file pair, polling at interval (the kernel's own loop cadence by
// convention).
func NewFileProto(k *toolvisor.Kernel, commandPath, responsePath string, interval time.Duration) *FileProto {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &FileProto{
		k:            k,
		CommandPath:  commandPath,
		ResponsePath: responsePath,
		Interval:     interval,
		stop:         make(chan struct{}),
	}
}

// Run polls CommandPath once per Interval until Stop is called.
func (f *FileProto) Run() {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.poll()
		}
	}
}

// Stop ends the polling loop.
func (f *FileProto) Stop() {
	close(f.stop)
}

func (f *FileProto) poll() {
	data, err := os.ReadFile(f.CommandPath)
	if err != nil {
		return
	}
	line := strings.TrimSpace(string(data))
	os.Remove(f.CommandPath)
	if line == "" {
		return
	}
	cmd, err := parseCommand(line)
	var resp toolvisor.Response
	if err != nil {
		resp = toolvisor.Response{OK: false, Text: "Error: " + err.Error()}
	} else {
		resp = f.k.Submit(cmd)
	}
	f.writeResponse(resp)
}

// writeResponse replaces ResponsePath atomically: write to a sibling
// temp file, then rename over the destination.
func (f *FileProto) writeResponse(resp toolvisor.Response) {
	tmp := f.ResponsePath + ".tmp"
	if err := os.WriteFile(tmp, []byte(renderResponse(resp)), 0644); err != nil {
		return
	}
	os.Rename(tmp, f.ResponsePath)
}
