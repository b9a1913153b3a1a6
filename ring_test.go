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

func TestRing(t *testing.T) {
	Convey("A Ring with capacity 3 and DropOldest policy", t, func() {
		r := NewRing(3, DropOldest)

		Convey("holds up to capacity lines in FIFO order", func() {
			So(r.Push("a"), ShouldEqual, Ok)
			So(r.Push("b"), ShouldEqual, Ok)
			So(r.Push("c"), ShouldEqual, Ok)
			So(r.Count(), ShouldEqual, 3)

			line, ok := r.PeekFront()
			So(ok, ShouldBeTrue)
			So(line, ShouldEqual, "a")
		})

		Convey("evicts the front line on overflow", func() {
			r.Push("1")
			r.Push("2")
			r.Push("3")
			r.Push("4")
			So(r.Count(), ShouldEqual, 3)

			var got []string
			for {
				line, ok := r.PeekFront()
				if !ok {
					break
				}
				got = append(got, line)
				r.PopFront()
			}
			So(got, ShouldResemble, []string{"2", "3", "4"})

			dropped, delivered := r.Stats()
			So(dropped, ShouldEqual, 1)
			So(delivered, ShouldEqual, 3)
		})

		Convey("capacity 1 holds exactly the most recent event", func() {
			r1 := NewRing(1, DropOldest)
			r1.Push("x")
			r1.Push("y")
			r1.Push("z")
			line, ok := r1.PeekFront()
			So(ok, ShouldBeTrue)
			So(line, ShouldEqual, "z")
			So(r1.Count(), ShouldEqual, 1)
		})
	})

	Convey("A Ring with DropNewest policy", t, func() {
		r := NewRing(2, DropNewest)
		r.Push("a")
		r.Push("b")

		Convey("rejects new lines once full, keeping existing order", func() {
			res := r.Push("c")
			So(res, ShouldEqual, Dropped)
			So(r.Count(), ShouldEqual, 2)

			line, _ := r.PeekFront()
			So(line, ShouldEqual, "a")

			dropped, _ := r.Stats()
			So(dropped, ShouldEqual, 1)
		})
	})

	Convey("A Ring with Block policy", t, func() {
		r := NewRing(1, Block)
		So(r.Push("a"), ShouldEqual, Ok)

		Convey("reports Full without mutating state", func() {
			res := r.Push("b")
			So(res, ShouldEqual, Full)
			So(r.Count(), ShouldEqual, 1)

			line, _ := r.PeekFront()
			So(line, ShouldEqual, "a")
		})
	})

	Convey("Peek and Pop are independent", t, func() {
		r := NewRing(2, DropOldest)
		r.Push("x")

		Convey("peeking repeatedly does not consume the line", func() {
			l1, _ := r.PeekFront()
			l2, _ := r.PeekFront()
			So(l1, ShouldEqual, l2)
			So(r.Count(), ShouldEqual, 1)

			r.PopFront()
			_, ok := r.PeekFront()
			So(ok, ShouldBeFalse)
		})
	})
}
