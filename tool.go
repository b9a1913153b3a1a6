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
	"sync"
	"time"
)

// State is a tool's lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
	Crashed
	StateError
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Crashed:
		return "Crashed"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// RestartPolicy governs whether and when a tool is (re)started.
type RestartPolicy int

const (
	Never RestartPolicy = iota
	Always
	OnDemand
)

func (p RestartPolicy) String() string {
	switch p {
	case Never:
		return "never"
	case Always:
		return "always"
	case OnDemand:
		return "on_demand"
	default:
		return "unknown"
	}
}

// MaxSubscriptions bounds a tool's subscription-set size.
const MaxSubscriptions = 50

// MaxTools bounds the number of tools a Registry will accept.
const MaxTools = 100

// Config carries the configuration half of a tool record — the part
// that comes from the config file and does not change once the tool
// is registered: renaming or re-commanding a running tool has no
// operation in this kernel, only adding new tools on reload.
type Config struct {
	Command         string
	Description     string
	Autostart       bool
	RestartPolicy   RestartPolicy
	RestartOnCrash  bool
	MaxRestarts     int
	SubscribeTo     []string
	MaxQueueSize    int
	QueuePolicy     Policy
}

// Tool is the in-memory record for one configured child process.
type Tool struct {
	mx sync.Mutex

	name   string
	config Config

	state State

	subs map[string]bool

	inbox *Ring

	handle *Handle
	ep     *Endpoints

	outAcc *Reassembler
	errAcc *Reassembler

	eventsSent     uint64
	eventsReceived uint64

	restartCount int
	nextRestart  time.Time

	startedAt time.Time
	lastBeat  time.Time

	preserveInbox bool
	starting      bool
}

// newTool constructs a registered-but-stopped Tool record.
func newTool(name string, cfg Config) *Tool {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	t := &Tool{
		name:   name,
		config: cfg,
		state:  Stopped,
		subs:   make(map[string]bool),
		inbox:  NewRing(cfg.MaxQueueSize, cfg.QueuePolicy),
	}
	t.preserveInbox = cfg.RestartPolicy == OnDemand && cfg.RestartOnCrash
	for _, p := range cfg.SubscribeTo {
		t.subscribeLocked(p)
	}
	return t
}

// Name returns the tool's registered name.
func (t *Tool) Name() string {
	return t.name
}

// State returns the tool's current lifecycle state.
func (t *Tool) State() State {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.state
}

// Subscribe adds a subscription pattern ("*" or an exact event type),
// trimmed of surrounding whitespace and matched quoting characters.
// It is a no-op if the pattern is already present, and fails once
// MaxSubscriptions is reached.
func (t *Tool) Subscribe(pattern string) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.subscribeLocked(pattern)
}

func (t *Tool) subscribeLocked(pattern string) error {
	p := normalizePattern(pattern)
	if p == "" {
		return newErr("Subscribe", KindInvalidArg, nil)
	}
	if t.subs[p] {
		return nil
	}
	if len(t.subs) >= MaxSubscriptions {
		return newErr("Subscribe", KindInvalidArg, nil)
	}
	t.subs[p] = true
	return nil
}

// Matches reports whether eventType is selected by this tool's
// subscription set: "*" matches every type, including the literal
// type "*" itself.
func (t *Tool) Matches(eventType string) bool {
	t.mx.Lock()
	defer t.mx.Unlock()
	if t.subs["*"] {
		return true
	}
	return t.subs[eventType]
}

// SubscriptionCount reports the number of distinct patterns.
func (t *Tool) SubscriptionCount() int {
	t.mx.Lock()
	defer t.mx.Unlock()
	return len(t.subs)
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, `"'`)
	return strings.TrimSpace(p)
}

// Info is the observable subset of a Tool record exposed by the
// control surface.
type Info struct {
	Name              string
	Command           string
	Description       string
	State             State
	Pid               int
	Autostart         bool
	RestartOnCrash    bool
	MaxRestarts       int
	RestartCount      int
	EventsSent        uint64
	EventsReceived    uint64
	SubscriptionCount int
}

func (t *Tool) info() Info {
	pid := 0
	if t.handle != nil {
		pid = t.handle.Pid
	}
	return Info{
		Name:              t.name,
		Command:           t.config.Command,
		Description:       t.config.Description,
		State:             t.state,
		Pid:               pid,
		Autostart:         t.config.Autostart,
		RestartOnCrash:    t.config.RestartOnCrash,
		MaxRestarts:       t.config.MaxRestarts,
		RestartCount:      t.restartCount,
		EventsSent:        t.eventsSent,
		EventsReceived:    t.eventsReceived,
		SubscriptionCount: len(t.subs),
	}
}

// Info returns a snapshot of the observable fields of this tool.
func (t *Tool) Info() Info {
	t.mx.Lock()
	defer t.mx.Unlock()
	return t.info()
}

// Registry is the in-memory table of tools keyed by name. It
// exclusively owns each Tool record; Tool records exclusively own
// their inbox, pipe endpoints, and child handle.
type Registry struct {
	mx    sync.Mutex
	order []string
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a new tool. Duplicate names are rejected, as is
// registration past MaxTools.
func (r *Registry) Register(name string, cfg Config) (*Tool, error) {
	if name == "" || cfg.Command == "" {
		return nil, newErr("Register", KindInvalidArg, nil)
	}
	r.mx.Lock()
	defer r.mx.Unlock()
	if _, ok := r.tools[name]; ok {
		return nil, newErr("Register", KindAlreadyExists, nil)
	}
	if len(r.tools) >= MaxTools {
		return nil, newErr("Register", KindInvalidArg, nil)
	}
	t := newTool(name, cfg)
	r.tools[name] = t
	r.order = append(r.order, name)
	return t, nil
}

// Unregister removes a tool, draining its inbox, closing its pipe
// endpoints, and terminating its child if still running.
func (r *Registry) Unregister(name string) error {
	r.mx.Lock()
	t, ok := r.tools[name]
	if !ok {
		r.mx.Unlock()
		return newErr("Unregister", KindNotFound, nil)
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mx.Unlock()

	t.mx.Lock()
	if t.handle != nil {
		t.handle.Terminate(false)
		t.handle.Reap(time.Second)
	}
	if t.ep != nil {
		t.ep.Close()
	}
	t.inbox.Clear()
	t.mx.Unlock()
	return nil
}

// Find looks up a tool by name.
func (r *Registry) Find(name string) (*Tool, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Iterate returns a snapshot slice of every tool in registration
// order, safe to range over without holding the registry lock.
func (r *Registry) Iterate() []*Tool {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]*Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.tools)
}
