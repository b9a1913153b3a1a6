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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWireRoundTrip(t *testing.T) {
	Convey("Serializing then parsing an event", t, func() {
		e := Event{Type: "PING", Sender: "gen", Data: "p1"}

		Convey("round-trips the fields exactly", func() {
			line := e.Serialize()
			So(line, ShouldEqual, "PING|gen|p1\n")

			got, err := ParseEvent(strings.TrimSuffix(line, "\n"))
			So(err, ShouldBeNil)
			So(got.Type, ShouldEqual, e.Type)
			So(got.Sender, ShouldEqual, e.Sender)
			So(got.Data, ShouldEqual, e.Data)
		})

		Convey("preserves extra pipes as part of data", func() {
			e2 := Event{Type: "X", Sender: "A", Data: "a|b|c"}
			got, err := ParseEvent(strings.TrimSuffix(e2.Serialize(), "\n"))
			So(err, ShouldBeNil)
			So(got.Data, ShouldEqual, "a|b|c")
		})
	})

	Convey("Parsing malformed lines", t, func() {
		Convey("a line with no separators fails", func() {
			_, err := ParseEvent("nopipeshere")
			So(err, ShouldNotBeNil)
		})

		Convey("a line with only one separator fails", func() {
			_, err := ParseEvent("TYPE|rest")
			So(err, ShouldNotBeNil)
		})

		Convey("an empty type fails", func() {
			_, err := ParseEvent("|sender|data")
			So(err, ShouldNotBeNil)
		})

		Convey("an empty sender fails", func() {
			_, err := ParseEvent("type||data")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Boundary data lengths", t, func() {
		Convey("exactly MaxDataLen bytes parses and serializes intact", func() {
			data := strings.Repeat("x", MaxDataLen)
			line := "T|S|" + data
			got, err := ParseEvent(line)
			So(err, ShouldBeNil)
			So(len(got.Data), ShouldEqual, MaxDataLen)
			So(got.Serialize(), ShouldEqual, line+"\n")
		})

		Convey("MaxDataLen+1 bytes truncates the last byte with no error", func() {
			data := strings.Repeat("x", MaxDataLen+1)
			line := "T|S|" + data
			got, err := ParseEvent(line)
			So(err, ShouldBeNil)
			So(len(got.Data), ShouldEqual, MaxDataLen)
			So(got.Truncated, ShouldBeTrue)
		})

		Convey("exactly MaxDataLen bytes is not marked as truncated", func() {
			data := strings.Repeat("x", MaxDataLen)
			line := "T|S|" + data
			got, err := ParseEvent(line)
			So(err, ShouldBeNil)
			So(got.Truncated, ShouldBeFalse)
		})
	})
}
