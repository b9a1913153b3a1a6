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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTool(t *testing.T) {
	Convey("Given a freshly registered tool", t, func() {
		reg := NewRegistry()
		tool, err := reg.Register("echoer", Config{
			Command:      "/bin/cat",
			MaxQueueSize: 4,
			QueuePolicy:  DropOldest,
		})
		So(err, ShouldBeNil)

		Convey("It should start life Stopped with no subscriptions", func() {
			So(tool.State(), ShouldEqual, Stopped)
			So(tool.SubscriptionCount(), ShouldEqual, 0)
		})

		Convey("Subscribe should add a normalized pattern", func() {
			So(tool.Subscribe(`"echo.line"`), ShouldBeNil)
			So(tool.SubscriptionCount(), ShouldEqual, 1)
			So(tool.Matches("echo.line"), ShouldBeTrue)
			So(tool.Matches("other"), ShouldBeFalse)
		})

		Convey("Subscribe should be idempotent for the same pattern", func() {
			So(tool.Subscribe("x"), ShouldBeNil)
			So(tool.Subscribe("x"), ShouldBeNil)
			So(tool.SubscriptionCount(), ShouldEqual, 1)
		})

		Convey("A wildcard subscription matches every event type", func() {
			So(tool.Subscribe("*"), ShouldBeNil)
			So(tool.Matches("anything"), ShouldBeTrue)
			So(tool.Matches("*"), ShouldBeTrue)
		})

		Convey("Subscribe should reject an empty pattern", func() {
			So(tool.Subscribe("   "), ShouldNotBeNil)
		})

		Convey("Subscribe should reject past MaxSubscriptions", func() {
			for i := 0; i < MaxSubscriptions; i++ {
				So(tool.Subscribe(fmt.Sprintf("sub.%02d", i)), ShouldBeNil)
			}
			So(tool.Subscribe("one.more"), ShouldNotBeNil)
		})

		Convey("Info should reflect configuration and zero counters", func() {
			info := tool.Info()
			So(info.Name, ShouldEqual, "echoer")
			So(info.Command, ShouldEqual, "/bin/cat")
			So(info.State, ShouldEqual, Stopped)
			So(info.Pid, ShouldEqual, 0)
			So(info.EventsSent, ShouldEqual, 0)
			So(info.EventsReceived, ShouldEqual, 0)
		})
	})

	Convey("Given subscribe_to seeded at registration", t, func() {
		reg := NewRegistry()
		tool, err := reg.Register("logger", Config{
			Command:     "/bin/cat",
			SubscribeTo: []string{"echo.line", " echo.error "},
		})
		So(err, ShouldBeNil)

		Convey("Every seeded pattern should already be present", func() {
			So(tool.SubscriptionCount(), ShouldEqual, 2)
			So(tool.Matches("echo.line"), ShouldBeTrue)
			So(tool.Matches("echo.error"), ShouldBeTrue)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		reg := NewRegistry()

		Convey("Register should reject an empty name or command", func() {
			_, err := reg.Register("", Config{Command: "x"})
			So(err, ShouldNotBeNil)
			_, err = reg.Register("name", Config{})
			So(err, ShouldNotBeNil)
		})

		Convey("Register should reject duplicate names", func() {
			_, err := reg.Register("a", Config{Command: "/bin/true"})
			So(err, ShouldBeNil)
			_, err = reg.Register("a", Config{Command: "/bin/false"})
			So(err, ShouldNotBeNil)
		})

		Convey("Find should report presence", func() {
			_, ok := reg.Find("missing")
			So(ok, ShouldBeFalse)
			_, err := reg.Register("present", Config{Command: "/bin/true"})
			So(err, ShouldBeNil)
			tool, ok := reg.Find("present")
			So(ok, ShouldBeTrue)
			So(tool.Name(), ShouldEqual, "present")
		})

		Convey("Iterate should preserve registration order", func() {
			names := []string{"c", "a", "b"}
			for _, n := range names {
				_, err := reg.Register(n, Config{Command: "/bin/true"})
				So(err, ShouldBeNil)
			}
			var got []string
			for _, t := range reg.Iterate() {
				got = append(got, t.Name())
			}
			So(got, ShouldResemble, names)
			So(reg.Count(), ShouldEqual, 3)
		})

		Convey("Unregister should remove the tool and preserve remaining order", func() {
			for _, n := range []string{"x", "y", "z"} {
				_, err := reg.Register(n, Config{Command: "/bin/true"})
				So(err, ShouldBeNil)
			}
			So(reg.Unregister("y"), ShouldBeNil)
			So(reg.Count(), ShouldEqual, 2)
			var got []string
			for _, t := range reg.Iterate() {
				got = append(got, t.Name())
			}
			So(got, ShouldResemble, []string{"x", "z"})
		})

		Convey("Unregister should fail for an unknown name", func() {
			So(reg.Unregister("nope"), ShouldNotBeNil)
		})

		Convey("Register should reject past MaxTools", func() {
			for i := 0; i < MaxTools; i++ {
				_, err := reg.Register(fmt.Sprintf("tool-%03d", i), Config{Command: "/bin/true"})
				So(err, ShouldBeNil)
			}
			_, err := reg.Register("overflow", Config{Command: "/bin/true"})
			So(err, ShouldNotBeNil)
		})
	})
}
