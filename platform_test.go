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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSpawn(t *testing.T) {
	Convey("Given a spawned echo command", t, func() {
		h, ep, err := Spawn("echo hello")
		So(err, ShouldBeNil)
		So(h.Pid, ShouldBeGreaterThan, 0)
		defer ep.Close()

		Convey("Its stdout should eventually produce the expected line", func() {
			var out []byte
			deadline := time.Now().Add(2 * time.Second)
			buf := make([]byte, 256)
			for time.Now().Before(deadline) {
				n, _ := readAvail(int(ep.Stdout.Fd()), buf)
				if n > 0 {
					out = append(out, buf[:n]...)
				}
				if len(out) > 0 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(string(out), ShouldContainSubstring, "hello")
		})

		Convey("Reap should observe a clean exit", func() {
			res, err := h.Reap(2 * time.Second)
			So(err, ShouldBeNil)
			So(res, ShouldEqual, Exited)
		})
	})

	Convey("Given a long-running spawned command", t, func() {
		h, ep, err := Spawn("sleep 5")
		So(err, ShouldBeNil)
		defer ep.Close()

		Convey("IsAlive should report true before termination", func() {
			So(h.IsAlive(), ShouldBeTrue)
		})

		Convey("Terminate should end the process and IsAlive should go false", func() {
			So(h.Terminate(false), ShouldBeNil)
			res, _ := h.Reap(2 * time.Second)
			So(res, ShouldEqual, Exited)
			So(h.IsAlive(), ShouldBeFalse)
		})
	})

	Convey("Given a command that writes to stdin and echoes it back", t, func() {
		h, ep, err := Spawn("cat")
		So(err, ShouldBeNil)
		defer ep.Close()
		defer h.Terminate(true)

		Convey("A write followed by a read should round-trip the data", func() {
			n, err := writeSome(int(ep.Stdin.Fd()), []byte("ping\n"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)

			var out []byte
			deadline := time.Now().Add(2 * time.Second)
			buf := make([]byte, 256)
			for time.Now().Before(deadline) {
				n, _ := readAvail(int(ep.Stdout.Fd()), buf)
				if n > 0 {
					out = append(out, buf[:n]...)
				}
				if len(out) > 0 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(string(out), ShouldEqual, "ping\n")
		})
	})
}
