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
	"log"
	"os"
	"sync"
	"time"
)

// Level is a log threshold, set via the config file's log_level key.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func ParseLevel(s string) Level {
	switch s {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

// Version is the kernel's reported build version, returned by the
// version verb.
var Version = "dev"

// Kernel is the process-wide state: the registry, the bus, the
// running flag, the start-of-run timestamp, the log level, and the
// control-surface bindings, gathered into one explicit record an
// entry point owns and passes around rather than file-scope globals,
// guarded by its own mutex so that direct
// in-process control-surface calls from any goroutine serialize
// cleanly with the supervisor loop.
type Kernel struct {
	mx sync.Mutex

	registry *Registry
	bus      *Bus

	running   bool
	startTime time.Time

	logLevel Level
	multi    *MultiLogger
	logger   *log.Logger
	logs     *logRing

	debug       *debugRing
	enableDebug bool

	cadence time.Duration

	cmds chan commandEnvelope

	pidFile string
}

// KernelOptions configures a new Kernel (mirrors the [core] block of
// the config file grammar).
type KernelOptions struct {
	BusCapacity int
	LogLevel    Level
	EnableDebug bool
	Cadence     time.Duration
	PidFile     string
}

// NewKernel creates a Kernel with an empty registry and bus, ready
// for tools to be registered before Run is called.
func NewKernel(opts KernelOptions) *Kernel {
	if opts.Cadence <= 0 {
		opts.Cadence = 75 * time.Millisecond
	}
	multi := NewMultiLogger()
	logs := newLogRing(MaxLogRecords)
	multi.AddLogger(log.New(os.Stderr, "", log.LstdFlags))
	multi.AddLogger(log.New(logs, "", log.LstdFlags))

	k := &Kernel{
		registry:    NewRegistry(),
		bus:         NewBus(opts.BusCapacity),
		logLevel:    opts.LogLevel,
		multi:       multi,
		logger:      multi.Logger(),
		logs:        logs,
		enableDebug: opts.EnableDebug,
		cadence:     opts.Cadence,
		cmds:        make(chan commandEnvelope, 64),
		pidFile:     opts.PidFile,
	}
	if opts.EnableDebug {
		k.debug = newDebugRing(256)
	}
	return k
}

// AddFileLog routes the kernel's log fan-out to an additional file.
func (k *Kernel) AddFileLog(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	k.multi.AddLogger(log.New(f, "", log.LstdFlags))
	return nil
}

// SetLogLevel changes the kernel's log threshold, effective for the
// next logf call. Safe to call while the loop is running.
func (k *Kernel) SetLogLevel(l Level) {
	k.mx.Lock()
	defer k.mx.Unlock()
	k.logLevel = l
}

func (k *Kernel) logf(level Level, format string, args ...interface{}) {
	if level < k.logLevel {
		return
	}
	k.logger.Printf("["+level.String()+"] "+format, args...)
}

// Registry exposes the kernel's tool registry for configuration-time
// population (the config package registers tools before Run starts).
func (k *Kernel) Registry() *Registry {
	return k.registry
}

// LogRecords returns the most recent kernel-wide log lines, used by
// the status HTTP mirror and the TUI's log panel.
func (k *Kernel) LogRecords(last int64) ([]LogRecord, int64) {
	return k.logs.GetRecords(last)
}

// Debug returns the kernel's debug-event ring, or nil if debug events
// were not enabled at construction.
func (k *Kernel) Debug() *debugRing {
	return k.debug
}

func (k *Kernel) noteDebug(kind, tool, detail string) {
	if k.debug != nil {
		k.debug.push(kind, tool, detail)
	}
}
