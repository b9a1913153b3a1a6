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

// Package config parses a keyed [core]/[tool:NAME] text format. The
// grammar matches no common library format — it is not INI, TOML, or
// YAML — so this is a bespoke line scanner: trim, section-header,
// key=value, extended to actually populate [tool:NAME] blocks (see
// DESIGN.md).
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/toolvisor/toolvisor"
)

// Core holds the [core] block.
type Core struct {
	LogFile          string
	LogLevel         toolvisor.Level
	PidFile          string
	MaxTools         int
	MessageQueueSize int
	EnableDebug      bool
	ControlPort      int // 0 means absent -> file transport
}

// ToolConfig holds one [tool:NAME] block.
type ToolConfig struct {
	Name string
	toolvisor.Config
}

// File is a fully parsed configuration file.
type File struct {
	Core  Core
	Tools []ToolConfig
}

func defaultCore() Core {
	return Core{
		LogFile:          "logs/toolvisor.log",
		LogLevel:         toolvisor.LevelInfo,
		PidFile:          "toolvisor.pid",
		MaxTools:         50,
		MessageQueueSize: 1000,
		EnableDebug:      false,
		ControlPort:      0,
	}
}

// Load reads and parses a configuration file from path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses a configuration file from r.
func Parse(r io.Reader) (*File, error) {
	cfg := &File{Core: defaultCore()}
	section := ""
	var cur *ToolConfig

	flush := func() {
		if cur != nil {
			cfg.Tools = append(cfg.Tools, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			end := strings.IndexByte(line, ']')
			if end < 0 {
				continue
			}
			flush()
			section = strings.TrimSpace(line[1:end])
			if strings.HasPrefix(section, "tool:") {
				name := strings.TrimPrefix(section, "tool:")
				cur = &ToolConfig{Name: name}
				cur.MaxQueueSize = 100
				cur.QueuePolicy = toolvisor.DropOldest
				cur.MaxRestarts = 3
			}
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])

		switch {
		case section == "core":
			applyCore(&cfg.Core, key, value)
		case strings.HasPrefix(section, "tool:") && cur != nil:
			applyTool(cur, key, value)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyCore(c *Core, key, value string) {
	switch key {
	case "log_file":
		c.LogFile = value
	case "log_level":
		c.LogLevel = toolvisor.ParseLevel(strings.ToUpper(value))
	case "pid_file":
		c.PidFile = value
	case "max_tools":
		c.MaxTools = atoiOr(value, c.MaxTools)
	case "message_queue_size":
		c.MessageQueueSize = atoiOr(value, c.MessageQueueSize)
	case "enable_debug":
		c.EnableDebug = isTruthy(value)
	case "control_port":
		c.ControlPort = atoiOr(value, c.ControlPort)
	}
}

func applyTool(t *ToolConfig, key, value string) {
	switch key {
	case "command":
		t.Command = value
	case "description":
		t.Description = value
	case "autostart":
		t.Autostart = isTruthy(value)
	case "restart_on_crash":
		t.RestartOnCrash = isTruthy(value)
	case "max_restarts":
		t.MaxRestarts = atoiOr(value, t.MaxRestarts)
	case "restart_policy":
		t.RestartPolicy = parsePolicy(value)
	case "subscribe_to":
		for _, p := range strings.Split(value, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				t.SubscribeTo = append(t.SubscribeTo, p)
			}
		}
	case "max_queue_size":
		t.MaxQueueSize = atoiOr(value, t.MaxQueueSize)
	case "queue_policy":
		t.QueuePolicy = parseQueuePolicy(value)
	}
}

func parsePolicy(s string) toolvisor.RestartPolicy {
	switch strings.ToLower(s) {
	case "always":
		return toolvisor.Always
	case "on_demand":
		return toolvisor.OnDemand
	default:
		return toolvisor.Never
	}
}

func parseQueuePolicy(s string) toolvisor.Policy {
	switch strings.ToLower(s) {
	case "dropnewest", "drop_newest":
		return toolvisor.DropNewest
	case "block":
		return toolvisor.Block
	default:
		return toolvisor.DropOldest
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "1", "on":
		return true
	default:
		return false
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Options returns a KernelOptions populated from the [core] block. It
// registers no tools; a caller does
// k := toolvisor.NewKernel(cfg.Options()); cfg.Register(k).
func (f *File) Options() toolvisor.KernelOptions {
	return toolvisor.KernelOptions{
		BusCapacity: f.Core.MessageQueueSize,
		LogLevel:    f.Core.LogLevel,
		EnableDebug: f.Core.EnableDebug,
		PidFile:     f.Core.PidFile,
	}
}

// Register adds every [tool:NAME] block in f to k's registry.
// Subscriptions are carried in the Config passed to Registry.Register,
// which applies them at construction, so nothing further is needed here.
func (f *File) Register(k *toolvisor.Kernel) error {
	for _, t := range f.Tools {
		if t.Command == "" {
			return fmt.Errorf("tool %q has no command", t.Name)
		}
		if _, err := k.Registry().Register(t.Name, t.Config); err != nil {
			return fmt.Errorf("tool %q: %w", t.Name, err)
		}
	}
	return nil
}

// Reload applies to a running kernel the parts of a freshly parsed
// configuration that are safe to adopt without an operation for
// "redefine a running tool": the core log level, and any [tool:NAME]
// blocks naming a tool not already registered. Tools already present
// in k are left exactly as they are, pipes and all.
func (f *File) Reload(k *toolvisor.Kernel) error {
	k.SetLogLevel(f.Core.LogLevel)
	for _, t := range f.Tools {
		if k.Exists(t.Name) {
			continue
		}
		if t.Command == "" {
			return fmt.Errorf("tool %q has no command", t.Name)
		}
		if _, err := k.Registry().Register(t.Name, t.Config); err != nil {
			return fmt.Errorf("tool %q: %w", t.Name, err)
		}
	}
	return nil
}
