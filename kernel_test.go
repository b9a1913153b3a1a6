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
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestKernel(cadence time.Duration) *Kernel {
	return NewKernel(KernelOptions{
		BusCapacity: 64,
		LogLevel:    LevelError,
		Cadence:     cadence,
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestLoopEcho(t *testing.T) {
	Convey("Given a kernel with one tool subscribed to everything", t, func() {
		k := newTestKernel(20 * time.Millisecond)
		tool, err := k.Registry().Register("echoer", Config{
			Command:     "cat",
			Autostart:   true,
			SubscribeTo: []string{"*"},
		})
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- k.Run(ctx) }()

		Convey("Publishing an event should be delivered to and echoed back by the tool", func() {
			So(waitFor(t, time.Second, func() bool { return tool.State() == Running }), ShouldBeTrue)

			_, err := k.bus.Publish("greet", "test", "hello")
			So(err, ShouldBeNil)

			So(waitFor(t, 2*time.Second, func() bool {
				return tool.Info().EventsReceived >= 1
			}), ShouldBeTrue)

			So(waitFor(t, 2*time.Second, func() bool {
				return tool.Info().EventsSent >= 1
			}), ShouldBeTrue)

			cancel()
			<-done
		})
	})
}

func TestLoopCrashRestart(t *testing.T) {
	Convey("Given a tool configured to restart on crash with MaxRestarts=2", t, func() {
		k := newTestKernel(20 * time.Millisecond)
		tool, err := k.Registry().Register("dies", Config{
			Command:        "exit 1",
			Autostart:      true,
			RestartOnCrash: true,
			MaxRestarts:    2,
		})
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go k.Run(ctx)

		Convey("It should exhaust its restart budget and land in StateError", func() {
			ok := waitFor(t, 8*time.Second, func() bool {
				return tool.State() == StateError
			})
			So(ok, ShouldBeTrue)
			So(tool.Info().RestartCount, ShouldEqual, 2)

			Convey("An operator-initiated start should reset its restart budget", func() {
				err := k.Start("dies")
				So(err, ShouldBeNil)
				So(tool.Info().RestartCount, ShouldEqual, 0)

				ok := waitFor(t, 8*time.Second, func() bool {
					return tool.State() == StateError
				})
				So(ok, ShouldBeTrue)
				So(tool.Info().RestartCount, ShouldEqual, 2)
			})
		})
	})
}

func TestLoopInboxOverflow(t *testing.T) {
	Convey("Given a tool with a small DropOldest inbox that is never started", t, func() {
		k := newTestKernel(20 * time.Millisecond)
		tool, err := k.Registry().Register("sink", Config{
			Command:      "cat",
			SubscribeTo:  []string{"*"},
			MaxQueueSize: 2,
			QueuePolicy:  DropOldest,
		})
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go k.Run(ctx)

		Convey("Publishing more events than capacity should drop the oldest", func() {
			for i := 0; i < 5; i++ {
				_, err := k.bus.Publish("x", "test", "payload")
				So(err, ShouldBeNil)
			}
			So(waitFor(t, time.Second, func() bool {
				return tool.inbox.Count() == 2
			}), ShouldBeTrue)
			dropped, _ := tool.inbox.Stats()
			So(dropped, ShouldBeGreaterThan, 0)
		})
	})
}

func TestControlSubmit(t *testing.T) {
	Convey("Given a running kernel with one registered tool", t, func() {
		k := newTestKernel(20 * time.Millisecond)
		_, err := k.Registry().Register("worker", Config{Command: "sleep 5"})
		So(err, ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- k.Run(ctx) }()
		time.Sleep(50 * time.Millisecond)

		Convey("Submitting a start command should bring the tool to Running", func() {
			resp := k.Submit(Command{Verb: VerbStart, Arg: "worker"})
			So(resp.OK, ShouldBeTrue)
			So(waitFor(t, time.Second, func() bool {
				info, err := k.Status("worker")
				return err == nil && info.State == Running
			}), ShouldBeTrue)

			Convey("Submitting list should report it", func() {
				resp := k.Submit(Command{Verb: VerbList})
				So(resp.OK, ShouldBeTrue)
				So(resp.Infos, ShouldHaveLength, 1)
				So(resp.Infos[0].Name, ShouldEqual, "worker")
			})

			cancel()
			<-done
		})
	})
}

func TestGracefulShutdown(t *testing.T) {
	Convey("Given a kernel running a long-lived tool", t, func() {
		k := newTestKernel(20 * time.Millisecond)
		tool, err := k.Registry().Register("longlived", Config{
			Command:   "sleep 30",
			Autostart: true,
		})
		So(err, ShouldBeNil)

		ctx := context.Background()
		done := make(chan error, 1)
		go func() { done <- k.Run(ctx) }()

		So(waitFor(t, time.Second, func() bool { return tool.State() == Running }), ShouldBeTrue)

		Convey("A shutdown verb should stop the tool and end the loop", func() {
			resp := k.Submit(Command{Verb: VerbShutdown})
			So(resp.OK, ShouldBeTrue)

			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("loop did not exit after shutdown")
			}
			So(tool.State(), ShouldEqual, Stopped)
		})
	})
}
