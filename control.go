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
	"fmt"
	"os"
	"strconv"
	"time"
)

// Verb is one of the control-plane verbs a binding can submit.
type Verb int

const (
	VerbStart Verb = iota
	VerbStop
	VerbRestart
	VerbStatus
	VerbList
	VerbShutdown
	VerbUptime
	VerbVersion
	VerbExists
	VerbCount
	VerbDebug
	VerbLog
)

// Command is a parsed verb awaiting execution by the loop (Glossary
// "Command").
type Command struct {
	Verb Verb
	Arg  string
}

// Response is what a Command produces: a human-readable line and,
// for verbs that return structured data, the ToolInfo payload(s) or
// the kernel-wide log tail.
type Response struct {
	OK    bool
	Text  string
	Info  *Info
	Infos []Info
	Logs  []LogRecord
}

type commandEnvelope struct {
	cmd  Command
	resp chan Response
}

// Submit enqueues a Command for execution by the supervisor loop and
// blocks until the next iteration executes it and returns a
// Response. This is the path every binding that runs on its own
// goroutine (interactive terminal, loopback socket, file-pair poll)
// must use: the buffered command channel is the only shared path, and
// the loop's per-iteration work never waits on it.
func (k *Kernel) Submit(cmd Command) Response {
	env := commandEnvelope{cmd: cmd, resp: make(chan Response, 1)}
	k.cmds <- env
	return <-env.resp
}

func (k *Kernel) execute(cmd Command) Response {
	switch cmd.Verb {
	case VerbStart:
		if err := k.Start(cmd.Arg); err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Text: "Success: started " + cmd.Arg}
	case VerbStop:
		if err := k.Stop(cmd.Arg); err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Text: "Success: stopped " + cmd.Arg}
	case VerbRestart:
		if err := k.Restart(cmd.Arg); err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Text: "Success: restarted " + cmd.Arg}
	case VerbStatus:
		info, err := k.Status(cmd.Arg)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Text: formatInfo(info), Info: &info}
	case VerbList:
		infos := k.List()
		return Response{OK: true, Text: formatList(infos), Infos: infos}
	case VerbShutdown:
		k.Shutdown()
		return Response{OK: true, Text: "Success: shutting down"}
	case VerbUptime:
		return Response{OK: true, Text: fmt.Sprintf("Success: %d", int(k.Uptime().Seconds()))}
	case VerbVersion:
		return Response{OK: true, Text: "Success: " + k.Version()}
	case VerbExists:
		return Response{OK: true, Text: "Success: " + strconv.FormatBool(k.Exists(cmd.Arg))}
	case VerbCount:
		return Response{OK: true, Text: fmt.Sprintf("Success: %d", k.Count())}
	case VerbDebug:
		return k.debugResponse()
	case VerbLog:
		recs, _ := k.LogRecords(0)
		return Response{OK: true, Text: fmt.Sprintf("Success: %d log records", len(recs)), Logs: recs}
	default:
		return Response{OK: false, Text: "Error: unknown verb"}
	}
}

func errResponse(err error) Response {
	return Response{OK: false, Text: "Error: " + err.Error()}
}

func (k *Kernel) debugResponse() Response {
	if k.debug == nil {
		return Response{OK: false, Text: "Error: debug ring not enabled"}
	}
	recs := k.debug.Records()
	text := fmt.Sprintf("Success: %d debug events", len(recs))
	return Response{OK: true, Text: text}
}

// Start starts a tool by name. It is idempotent: starting an already
// Running tool returns nil without re-spawning. An operator-initiated
// start always gets a fresh restart budget, so a tool parked in Error
// by a prior run of crash-restart attempts is eligible for the full
// MaxRestarts count again rather than being driven straight back to
// Error by the next crash.
func (k *Kernel) Start(name string) error {
	k.mx.Lock()
	defer k.mx.Unlock()
	t, ok := k.registry.Find(name)
	if !ok {
		return newErr("Start", KindNotFound, nil)
	}
	t.mx.Lock()
	t.restartCount = 0
	t.nextRestart = time.Time{}
	t.mx.Unlock()
	return k.startToolLocked(t)
}

// Stop stops a tool by name. It is idempotent: stopping an already
// Stopped tool returns nil.
func (k *Kernel) Stop(name string) error {
	k.mx.Lock()
	defer k.mx.Unlock()
	t, ok := k.registry.Find(name)
	if !ok {
		return newErr("Stop", KindNotFound, nil)
	}
	return k.stopToolLocked(t)
}

// Restart stops then starts a tool by name.
func (k *Kernel) Restart(name string) error {
	k.mx.Lock()
	defer k.mx.Unlock()
	t, ok := k.registry.Find(name)
	if !ok {
		return newErr("Restart", KindNotFound, nil)
	}
	if err := k.stopToolLocked(t); err != nil {
		return err
	}
	return k.startToolLocked(t)
}

// Status returns the observable state of a tool by name.
func (k *Kernel) Status(name string) (Info, error) {
	t, ok := k.registry.Find(name)
	if !ok {
		return Info{}, newErr("Status", KindNotFound, nil)
	}
	return t.Info(), nil
}

// List returns every registered tool's Info in registration order.
func (k *Kernel) List() []Info {
	tools := k.registry.Iterate()
	out := make([]Info, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Info())
	}
	return out
}

// Shutdown marks the kernel as no longer running. The supervisor loop
// sees this on its next iteration, stops every running tool, and
// returns.
func (k *Kernel) Shutdown() {
	k.mx.Lock()
	k.running = false
	k.mx.Unlock()
}

// Uptime reports how long the kernel has been running.
func (k *Kernel) Uptime() time.Duration {
	k.mx.Lock()
	defer k.mx.Unlock()
	if k.startTime.IsZero() {
		return 0
	}
	return time.Since(k.startTime)
}

// Version reports the kernel's build version.
func (k *Kernel) Version() string {
	return Version
}

// Exists reports whether a tool by that name is registered.
func (k *Kernel) Exists(name string) bool {
	_, ok := k.registry.Find(name)
	return ok
}

// Count reports the number of registered tools.
func (k *Kernel) Count() int {
	return k.registry.Count()
}

func formatInfo(i Info) string {
	return fmt.Sprintf("Success: %s state=%s pid=%d sent=%d received=%d restarts=%d subs=%d",
		i.Name, i.State, i.Pid, i.EventsSent, i.EventsReceived, i.RestartCount, i.SubscriptionCount)
}

func formatList(infos []Info) string {
	s := "NAME\tSTATE\tPID\tSENT\tRECEIVED\n"
	for _, i := range infos {
		s += fmt.Sprintf("%s\t%s\t%d\t%d\t%d\n", i.Name, i.State, i.Pid, i.EventsSent, i.EventsReceived)
	}
	return s
}

func writePidFile(path string) {
	os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func removePidFile(path string) {
	os.Remove(path)
}
