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
	"os"
	"os/exec"
	"time"
)

// WaitResult reports the outcome of Reap.
type WaitResult int

const (
	Exited WaitResult = iota
	TimedOut
)

// Endpoints are the parent-side pipe ends connected to a spawned
// child's standard streams: write to Stdin, read from Stdout/Stderr.
// All three are marked non-blocking by Spawn.
type Endpoints struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Close closes every endpoint that is still open. It is idempotent.
func (e *Endpoints) Close() {
	if e.Stdin != nil {
		e.Stdin.Close()
		e.Stdin = nil
	}
	if e.Stdout != nil {
		e.Stdout.Close()
		e.Stdout = nil
	}
	if e.Stderr != nil {
		e.Stderr.Close()
		e.Stderr = nil
	}
}

// Handle is the single owning value for a spawned child: the
// PID, the *exec.Cmd used to start it, and the bookkeeping Reap needs
// to avoid double-waiting a process.
type Handle struct {
	cmd    *exec.Cmd
	Pid    int
	waited bool
	werr   error
	w      *waiter
}

// Spawn starts command via the host shell ("/bin/sh -c") with three
// fresh pipes wired to the child's standard streams, and returns a
// Handle plus the parent-side Endpoints. On any failure every pipe
// opened so far is closed before returning.
func Spawn(command string) (*Handle, *Endpoints, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, nil, newErr("Spawn", KindPipeFailed, err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, nil, newErr("Spawn", KindPipeFailed, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, nil, newErr("Spawn", KindPipeFailed, err)
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	closeAll := func() {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, nil, newErr("Spawn", KindSpawnFailed, err)
	}

	// Close the child's side of each pipe in the parent.
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	ep := &Endpoints{Stdin: stdinW, Stdout: stdoutR, Stderr: stderrR}
	if err := setNonblocking(ep); err != nil {
		cmd.Process.Kill()
		ep.Close()
		return nil, nil, newErr("Spawn", KindPipeFailed, err)
	}

	h := &Handle{cmd: cmd, Pid: cmd.Process.Pid}
	h.w = startWaiter(h)
	return h, ep, nil
}

// Terminate requests graceful exit via SIGTERM, or SIGKILL if force is
// set. It returns success if the signal was delivered or the process
// is already gone; it does not wait for the process to exit.
func (h *Handle) Terminate(force bool) error {
	return terminate(h, force)
}

// IsAlive is a non-blocking liveness probe. A process that has exited
// but not yet been reaped counts as not alive.
func (h *Handle) IsAlive() bool {
	return isAlive(h)
}

// Reap waits up to timeout for the process to exit and collects its
// exit status. It must be called exactly once before the Handle is
// dropped. Calling it again returns the cached result.
func (h *Handle) Reap(timeout time.Duration) (WaitResult, error) {
	return reap(h, timeout)
}

// ExitErr returns the error Wait returned, if Reap has completed.
func (h *Handle) ExitErr() error {
	return h.werr
}
