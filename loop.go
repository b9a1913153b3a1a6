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
	"context"
	"time"
)

// perToolByteBudget bounds how many bytes of stdout/stderr the loop
// will drain from a single tool in one iteration.
const perToolByteBudget = 64 * 1024

// restartBaseDelay and restartCapDelay bound the exponential backoff
// applied between crash-restart attempts.
const (
	restartBaseDelay = time.Second
	restartCapDelay  = 60 * time.Second
)

// Run executes the supervisor loop until ctx is cancelled or
// Shutdown is called. It is meant to be called exactly once, from
// the goroutine that owns the Kernel's cooperative state machine;
// every other mutation path (in-process calls, interactive/socket
// bindings) funnels through the same k.mx or the command queue so
// this remains the loop's only active goroutine touching tool state.
func (k *Kernel) Run(ctx context.Context) error {
	k.mx.Lock()
	k.running = true
	k.startTime = time.Now()
	k.mx.Unlock()

	if k.pidFile != "" {
		writePidFile(k.pidFile)
		defer removePidFile(k.pidFile)
	}

	for _, t := range k.registry.Iterate() {
		if t.config.Autostart {
			k.mx.Lock()
			if err := k.startToolLocked(t); err != nil {
				k.logf(LevelError, "autostart %s: %v", t.name, err)
			}
			k.mx.Unlock()
		}
	}

	ticker := time.NewTicker(k.cadence)
	defer ticker.Stop()

	for {
		k.mx.Lock()
		running := k.running
		k.mx.Unlock()
		if !running {
			k.shutdownAll()
			return nil
		}

		k.drainCommands()
		k.bus.ProcessQueue(k)
		k.ioSweep()
		k.healthSweep()
		k.restartSweep()

		select {
		case <-ctx.Done():
			k.mx.Lock()
			k.running = false
			k.mx.Unlock()
			k.shutdownAll()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessQueue drains the bus in FIFO order, fanning each event out
// to every tool whose subscription set matches, and integrates
// on-demand starts for OnDemand tools that have not yet been started.
func (b *Bus) ProcessQueue(k *Kernel) {
	for _, e := range b.Drain() {
		line := e.Serialize()
		for _, t := range k.registry.Iterate() {
			if !t.Matches(e.Type) {
				continue
			}
			t.mx.Lock()
			res := t.inbox.Push(line)
			needStart := t.config.RestartPolicy == OnDemand &&
				t.state == Stopped && !t.starting
			if needStart {
				t.starting = true
				t.state = Starting
			}
			t.mx.Unlock()
			if res == Full {
				k.logf(LevelWarn, "inbox full for %s under Block policy", t.name)
			}
			if needStart {
				k.mx.Lock()
				if err := k.startToolLocked(t); err != nil {
					k.logf(LevelError, "on-demand start %s: %v", t.name, err)
				}
				k.mx.Unlock()
			}
		}
	}
}

// ioSweep is step 3: per-tool I/O drain. For each Running tool it
// reads stdout/stderr up to the per-tool byte budget, reassembles and
// publishes events, forwards stderr to the log, and flushes the
// inbox toward the child's stdin.
func (k *Kernel) ioSweep() {
	for _, t := range k.registry.Iterate() {
		if t.State() != Running {
			continue
		}
		k.drainOutput(t)
		k.flushInbox(t)
	}
}

func (k *Kernel) drainOutput(t *Tool) {
	t.mx.Lock()
	ep := t.ep
	outAcc := t.outAcc
	errAcc := t.errAcc
	t.mx.Unlock()
	if ep == nil {
		return
	}

	buf := make([]byte, 4096)
	budget := perToolByteBudget

	drain := func(fd int, acc *Reassembler, isStdout bool) bool {
		closed := false
		for budget > 0 {
			n, err := readAvail(fd, buf)
			if err != nil {
				closed = true
				break
			}
			if n == 0 {
				break
			}
			budget -= n
			for _, line := range acc.Feed(buf[:n]) {
				k.handleLine(t, line, isStdout)
			}
		}
		return closed
	}

	outClosed := drain(int(ep.Stdout.Fd()), outAcc, true)
	errClosed := drain(int(ep.Stderr.Fd()), errAcc, false)

	if outClosed {
		for _, line := range outAcc.Close() {
			k.handleLine(t, line, true)
		}
	}
	if errClosed {
		for _, line := range errAcc.Close() {
			k.handleLine(t, line, false)
		}
	}
}

func (k *Kernel) handleLine(t *Tool, line string, isStdout bool) {
	if !isStdout {
		k.logger.Printf("%s stderr> %s", t.name, line)
		return
	}
	e, err := ParseEvent(line)
	if err != nil {
		k.logf(LevelWarn, "malformed event from %s: %q", t.name, line)
		k.noteDebug("parse-failed", t.name, line)
		return
	}
	if e.Truncated {
		k.logf(LevelWarn, "event data from %s truncated to %d bytes", t.name, MaxDataLen)
	}
	if _, err := k.bus.Publish(e.Type, e.Sender, e.Data); err != nil {
		k.logf(LevelWarn, "publish from %s dropped: %v", t.name, err)
		return
	}
	t.mx.Lock()
	t.eventsSent++
	t.mx.Unlock()
}

func (k *Kernel) flushInbox(t *Tool) {
	t.mx.Lock()
	ep := t.ep
	t.mx.Unlock()
	if ep == nil {
		return
	}
	fd := int(ep.Stdin.Fd())
	for {
		line, ok := t.inbox.PeekFront()
		if !ok {
			return
		}
		n, err := writeSome(fd, []byte(line))
		if err != nil {
			k.crash(t, err)
			return
		}
		if n == 0 {
			return // would-block; retry next iteration
		}
		if n < len(line) {
			// Partial write: leave the remainder at the front by
			// rewriting it in place is not possible on a Ring, so
			// we pop and re-push the remainder to preserve order.
			t.inbox.PopFront()
			t.inbox.pushFront(line[n:])
			return
		}
		t.inbox.PopFront()
		t.mx.Lock()
		t.eventsReceived++
		t.mx.Unlock()
	}
}

func (k *Kernel) crash(t *Tool, err error) {
	t.mx.Lock()
	t.state = Crashed
	ep := t.ep
	t.ep = nil
	t.mx.Unlock()
	if ep != nil {
		ep.Close()
	}
	k.noteDebug("crash", t.name, "io error")
	k.logf(LevelError, "%s crashed: %v", t.name, err)
}

// healthSweep is step 4: probe IsAlive for every Running tool.
func (k *Kernel) healthSweep() {
	for _, t := range k.registry.Iterate() {
		t.mx.Lock()
		if t.state != Running || t.handle == nil {
			t.mx.Unlock()
			continue
		}
		alive := t.handle.IsAlive()
		if alive {
			t.lastBeat = time.Now()
			t.mx.Unlock()
			continue
		}
		t.handle.Reap(time.Second)
		t.state = Crashed
		ep := t.ep
		t.ep = nil
		if !t.preserveInbox {
			t.inbox.Clear()
		}
		t.mx.Unlock()
		if ep != nil {
			ep.Close()
		}
		k.noteDebug("crashed", t.name, "process exited")
		k.logf(LevelWarn, "%s exited unexpectedly", t.name)
	}
}

// restartSweep is step 5: apply crash-restart policy with exponential
// backoff, capped at restartCapDelay.
func (k *Kernel) restartSweep() {
	now := time.Now()
	for _, t := range k.registry.Iterate() {
		t.mx.Lock()
		if t.state != Crashed || !t.config.RestartOnCrash {
			t.mx.Unlock()
			continue
		}
		if t.restartCount >= t.config.MaxRestarts {
			t.state = StateError
			t.mx.Unlock()
			k.logf(LevelWarn, "%s exceeded max restarts, marking Error", t.name)
			continue
		}
		if now.Before(t.nextRestart) {
			t.mx.Unlock()
			continue
		}
		delay := restartBaseDelay << t.restartCount
		if delay > restartCapDelay || delay <= 0 {
			delay = restartCapDelay
		}
		t.nextRestart = now.Add(delay)
		t.restartCount++
		t.state = Starting
		t.mx.Unlock()

		k.mx.Lock()
		if err := k.startToolLocked(t); err != nil {
			k.logf(LevelError, "restart %s: %v", t.name, err)
		}
		k.mx.Unlock()
	}
}

// startToolLocked spawns t's command and wires up its endpoints. The
// caller must hold k.mx. It is idempotent: a tool already Running
// returns nil without re-spawning.
func (k *Kernel) startToolLocked(t *Tool) error {
	t.mx.Lock()
	if t.state == Running {
		t.mx.Unlock()
		return nil
	}
	t.state = Starting
	t.mx.Unlock()

	handle, ep, err := Spawn(t.config.Command)
	t.mx.Lock()
	defer t.mx.Unlock()
	t.starting = false
	if err != nil {
		t.state = StateError
		k.noteDebug("spawn-failed", t.name, err.Error())
		return err
	}
	t.handle = handle
	t.ep = ep
	t.outAcc = NewReassembler(func(msg string) { k.logf(LevelWarn, "%s: %s", t.name, msg) })
	t.errAcc = NewReassembler(func(msg string) { k.logf(LevelWarn, "%s: %s", t.name, msg) })
	t.state = Running
	t.startedAt = time.Now()
	t.lastBeat = t.startedAt
	k.noteDebug("started", t.name, "")
	return nil
}

// stopToolLocked requests graceful termination with a 1s grace
// window, force-terminating and closing endpoints unconditionally
// afterward. The caller must hold k.mx.
func (k *Kernel) stopToolLocked(t *Tool) error {
	t.mx.Lock()
	if t.state == Stopped {
		t.mx.Unlock()
		return nil
	}
	handle := t.handle
	t.state = Stopping
	t.mx.Unlock()

	if handle == nil {
		t.mx.Lock()
		t.state = Stopped
		t.mx.Unlock()
		return nil
	}

	handle.Terminate(false)
	res, _ := handle.Reap(time.Second)
	if res == TimedOut {
		handle.Terminate(true)
		handle.Reap(time.Second)
	}

	t.mx.Lock()
	ep := t.ep
	t.ep = nil
	t.handle = nil
	t.state = Stopped
	if !t.preserveInbox {
		t.inbox.Clear()
	}
	t.mx.Unlock()
	if ep != nil {
		ep.Close()
	}
	k.noteDebug("stopped", t.name, "")
	return nil
}

func (k *Kernel) drainCommands() {
	for {
		select {
		case env := <-k.cmds:
			env.resp <- k.execute(env.cmd)
		default:
			return
		}
	}
}

// shutdownAll applies stop to every running tool in parallel: all
// terminate signals issued first, then a single bounded reap sweep.
func (k *Kernel) shutdownAll() {
	tools := k.registry.Iterate()
	var handles []*Handle
	for _, t := range tools {
		t.mx.Lock()
		if t.state == Running || t.state == Stopping {
			if t.handle != nil {
				t.handle.Terminate(false)
				handles = append(handles, t.handle)
			}
			t.state = Stopping
		}
		t.mx.Unlock()
	}
	for _, h := range handles {
		res, _ := h.Reap(time.Second)
		if res == TimedOut {
			h.Terminate(true)
			h.Reap(time.Second)
		}
	}
	for _, t := range tools {
		t.mx.Lock()
		if t.ep != nil {
			t.ep.Close()
			t.ep = nil
		}
		t.handle = nil
		t.state = Stopped
		t.mx.Unlock()
	}
}
