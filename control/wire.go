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

// Package control holds the bindings that expose a *toolvisor.Kernel
// to the outside world: an interactive terminal prompt, a loopback
// TCP socket (the primary local transport), a command/response file
// pair (the secondary transport, used only when no socket port is
// configured), and a read-only HTTP status mirror. Every binding is a
// thin translation layer over toolvisor.Command/Response — the kernel
// itself only ever sees that one enum.
package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/toolvisor/toolvisor"
)

// formatInfoLine renders an Info as a pipe-delimited line, the same
// family of encoding the event wire format uses, so that machine
// clients (toolvisorctl, toolvisortop) can parse status/list replies
// without a JSON dependency on the line-oriented transports.
func formatInfoLine(i toolvisor.Info) string {
	return strings.Join([]string{
		i.Name,
		i.Command,
		i.Description,
		i.State.String(),
		strconv.Itoa(i.Pid),
		strconv.FormatBool(i.Autostart),
		strconv.FormatBool(i.RestartOnCrash),
		strconv.Itoa(i.MaxRestarts),
		strconv.Itoa(i.RestartCount),
		strconv.FormatUint(i.EventsSent, 10),
		strconv.FormatUint(i.EventsReceived, 10),
		strconv.Itoa(i.SubscriptionCount),
	}, "|")
}

// parseInfoLine is the inverse of formatInfoLine.
func parseInfoLine(line string) (toolvisor.Info, error) {
	f := strings.Split(line, "|")
	if len(f) != 12 {
		return toolvisor.Info{}, fmt.Errorf("malformed info line: %q", line)
	}
	pid, _ := strconv.Atoi(f[4])
	autostart, _ := strconv.ParseBool(f[5])
	restartOnCrash, _ := strconv.ParseBool(f[6])
	maxRestarts, _ := strconv.Atoi(f[7])
	restartCount, _ := strconv.Atoi(f[8])
	sent, _ := strconv.ParseUint(f[9], 10, 64)
	received, _ := strconv.ParseUint(f[10], 10, 64)
	subs, _ := strconv.Atoi(f[11])
	return toolvisor.Info{
		Name:              f[0],
		Command:           f[1],
		Description:       f[2],
		State:             parseState(f[3]),
		Pid:               pid,
		Autostart:         autostart,
		RestartOnCrash:    restartOnCrash,
		MaxRestarts:       maxRestarts,
		RestartCount:      restartCount,
		EventsSent:        sent,
		EventsReceived:    received,
		SubscriptionCount: subs,
	}, nil
}

func parseState(s string) toolvisor.State {
	switch s {
	case "Starting":
		return toolvisor.Starting
	case "Running":
		return toolvisor.Running
	case "Stopping":
		return toolvisor.Stopping
	case "Crashed":
		return toolvisor.Crashed
	case "Error":
		return toolvisor.StateError
	default:
		return toolvisor.Stopped
	}
}

// formatLogLine renders a LogRecord the same pipe-delimited way
// formatInfoLine renders an Info, for the log verb's reply.
func formatLogLine(r toolvisor.LogRecord) string {
	return strings.Join([]string{
		strconv.FormatInt(r.Id, 10),
		strconv.FormatInt(r.Time.UnixNano(), 10),
		r.Text,
	}, "|")
}

// parseLogLine is the inverse of formatLogLine.
func parseLogLine(line string) (toolvisor.LogRecord, error) {
	f := strings.SplitN(line, "|", 3)
	if len(f) != 3 {
		return toolvisor.LogRecord{}, fmt.Errorf("malformed log line: %q", line)
	}
	id, _ := strconv.ParseInt(f[0], 10, 64)
	nsec, _ := strconv.ParseInt(f[1], 10, 64)
	return toolvisor.LogRecord{Id: id, Time: time.Unix(0, nsec), Text: f[2]}, nil
}

// parseCommand parses a control line: a case-insensitive first token,
// space-separated, followed by at most one argument.
func parseCommand(line string) (toolvisor.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return toolvisor.Command{}, fmt.Errorf("empty command")
	}
	verb := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch verb {
	case "start":
		return toolvisor.Command{Verb: toolvisor.VerbStart, Arg: arg}, nil
	case "stop":
		return toolvisor.Command{Verb: toolvisor.VerbStop, Arg: arg}, nil
	case "restart":
		return toolvisor.Command{Verb: toolvisor.VerbRestart, Arg: arg}, nil
	case "status":
		return toolvisor.Command{Verb: toolvisor.VerbStatus, Arg: arg}, nil
	case "list":
		return toolvisor.Command{Verb: toolvisor.VerbList}, nil
	case "shutdown":
		return toolvisor.Command{Verb: toolvisor.VerbShutdown}, nil
	case "uptime":
		return toolvisor.Command{Verb: toolvisor.VerbUptime}, nil
	case "version":
		return toolvisor.Command{Verb: toolvisor.VerbVersion}, nil
	case "exists":
		return toolvisor.Command{Verb: toolvisor.VerbExists, Arg: arg}, nil
	case "count":
		return toolvisor.Command{Verb: toolvisor.VerbCount}, nil
	case "debug":
		return toolvisor.Command{Verb: toolvisor.VerbDebug}, nil
	case "log":
		return toolvisor.Command{Verb: toolvisor.VerbLog}, nil
	default:
		return toolvisor.Command{}, fmt.Errorf("unknown verb %q", fields[0])
	}
}

// renderResponse renders a Response the way every line-oriented
// binding replies: the human Text line, followed by one
// formatInfoLine per tool for List/Status, or one formatLogLine per
// record for Log, then a blank terminator line so a client can tell
// where the reply ends without needing a length prefix.
func renderResponse(r toolvisor.Response) string {
	var b strings.Builder
	b.WriteString(r.Text)
	b.WriteByte('\n')
	if len(r.Infos) > 0 {
		for _, i := range r.Infos {
			b.WriteString(formatInfoLine(i))
			b.WriteByte('\n')
		}
	} else if r.Info != nil {
		b.WriteString(formatInfoLine(*r.Info))
		b.WriteByte('\n')
	} else if len(r.Logs) > 0 {
		for _, rec := range r.Logs {
			b.WriteString(formatLogLine(rec))
			b.WriteByte('\n')
		}
	}
	b.WriteString("\n")
	return b.String()
}
