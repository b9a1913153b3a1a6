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

//go:build !windows

package toolvisor

import (
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// errPipeClosed is returned by readAvail once the source pipe is
// observed closed; io.EOF is the idiomatic Go signal for that and
// keeps readAvail composable with bufio-style callers.
var errPipeClosed = io.EOF

// waiter runs the background reap goroutine for one live Handle, so
// IsAlive/Reap never block the caller: the actual blocking Wait()
// happens exactly once, off to the side, keeping the supervisor loop
// itself non-blocking.
type waiter struct {
	mx   sync.Mutex
	done chan struct{}
	err  error
	over bool
}

func startWaiter(h *Handle) *waiter {
	w := &waiter{done: make(chan struct{})}
	go func() {
		err := h.cmd.Wait()
		w.mx.Lock()
		w.err = err
		w.over = true
		w.mx.Unlock()
		close(w.done)
	}()
	return w
}

func setNonblocking(ep *Endpoints) error {
	for _, f := range []*os.File{ep.Stdin, ep.Stdout, ep.Stderr} {
		if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
			return err
		}
	}
	return nil
}

func terminate(h *Handle, force bool) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	err := h.cmd.Process.Signal(sig)
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "process already finished") || err == os.ErrProcessDone {
		return nil
	}
	return newErr("Terminate", KindIo, err)
}

func isAlive(h *Handle) bool {
	if h.w == nil {
		return h.cmd != nil && h.cmd.Process != nil
	}
	select {
	case <-h.w.done:
		return false
	default:
		return true
	}
}

func reap(h *Handle, timeout time.Duration) (WaitResult, error) {
	if h.w == nil {
		return Exited, nil
	}
	if timeout <= 0 {
		<-h.w.done
		h.waited = true
		h.werr = h.w.err
		return Exited, nil
	}
	select {
	case <-h.w.done:
		h.waited = true
		h.werr = h.w.err
		return Exited, nil
	case <-time.After(timeout):
		return TimedOut, newErr("Reap", KindTimeout, nil)
	}
}

// readAvail attempts a single non-blocking read into buf. It returns
// (n>0, nil) on data, (0, nil) when no data is available right now,
// (0, io.EOF) once the pipe is closed (a sticky condition), or a
// wrapped *Error of kind Io for any other failure.
func readAvail(fd int, buf []byte) (int, error) {
	// Callers obtain fd from (*os.File).Fd, which switches the
	// descriptor back to blocking mode; restore O_NONBLOCK first.
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, newErr("ReadAvail", KindIo, err)
	}
	n, err := unix.Read(fd, buf)
	if err == nil {
		if n == 0 {
			return 0, errPipeClosed
		}
		return n, nil
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	return 0, newErr("ReadAvail", KindIo, err)
}

// writeSome attempts a single non-blocking write of buf. It returns
// (n>0, nil) for partial or full progress, (0, nil) on would-block,
// or a wrapped *Error of kind Io on pipe-closed/other failure.
func writeSome(fd int, buf []byte) (int, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return 0, newErr("WriteSome", KindIo, err)
	}
	n, err := unix.Write(fd, buf)
	if err == nil {
		return n, nil
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	return 0, newErr("WriteSome", KindIo, err)
}
