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

package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/toolvisor/toolvisor"
)

func TestStatus(t *testing.T) {
	Convey("Given a Status handler over a kernel with one registered tool", t, func() {
		k := toolvisor.NewKernel(toolvisor.KernelOptions{BusCapacity: 8})
		_, err := k.Registry().Register("worker", toolvisor.Config{Command: "/bin/true"})
		So(err, ShouldBeNil)

		status := NewStatus(k)
		server := httptest.NewServer(status)
		defer server.Close()

		Convey("GET /tools should list the registered tool", func() {
			resp, err := http.Get(server.URL + "/tools")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var infos []toolvisor.Info
			So(json.NewDecoder(resp.Body).Decode(&infos), ShouldBeNil)
			So(infos, ShouldHaveLength, 1)
			So(infos[0].Name, ShouldEqual, "worker")
		})

		Convey("GET /tools/{name} should return that tool's info", func() {
			resp, err := http.Get(server.URL + "/tools/worker")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var info toolvisor.Info
			So(json.NewDecoder(resp.Body).Decode(&info), ShouldBeNil)
			So(info.Name, ShouldEqual, "worker")
		})

		Convey("GET /tools/{name} for an unknown tool should 404", func() {
			resp, err := http.Get(server.URL + "/tools/missing")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET /tools/{name}/log should 404 for an unknown tool", func() {
			resp, err := http.Get(server.URL + "/tools/missing/log")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}
