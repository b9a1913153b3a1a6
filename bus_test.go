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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBus(t *testing.T) {
	Convey("A Bus with capacity 2", t, func() {
		b := NewBus(2)

		Convey("Publish enqueues events in FIFO order", func() {
			_, err := b.Publish("X", "A", "1")
			So(err, ShouldBeNil)
			_, err = b.Publish("Y", "B", "2")
			So(err, ShouldBeNil)
			So(b.Len(), ShouldEqual, 2)

			drained := b.Drain()
			So(len(drained), ShouldEqual, 2)
			So(drained[0].Type, ShouldEqual, "X")
			So(drained[1].Type, ShouldEqual, "Y")
			So(b.Len(), ShouldEqual, 0)
		})

		Convey("rejects a publish once full", func() {
			b.Publish("X", "A", "1")
			b.Publish("Y", "B", "2")
			_, err := b.Publish("Z", "C", "3")
			So(err, ShouldNotBeNil)
		})

		Convey("rejects an empty type or sender", func() {
			_, err := b.Publish("", "A", "1")
			So(err, ShouldNotBeNil)
			_, err = b.Publish("X", "", "1")
			So(err, ShouldNotBeNil)
		})

		Convey("truncates data beyond MaxDataLen", func() {
			big := make([]byte, MaxDataLen+10)
			for i := range big {
				big[i] = 'x'
			}
			e, err := b.Publish("X", "A", string(big))
			So(err, ShouldBeNil)
			So(len(e.Data), ShouldEqual, MaxDataLen)
			So(e.Truncated, ShouldBeTrue)
		})
	})
}
