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

// Package toolvisor is a single-host, event-driven supervisor for a
// fixed set of configured child processes ("tools"). It spawns each
// tool with three pipes, reassembles its stdout into line-oriented
// events of the form TYPE|SENDER|DATA, fans those events out to every
// tool whose subscriptions match, and flushes matched events into
// each tool's stdin. A single cooperative loop owns every mutation of
// kernel state; monitoring, restart policy, and the control-plane
// verbs (start/stop/restart/status/list/shutdown/uptime/version) all
// run from that one loop or through its command-submission queue.
//
// Multiple independent Kernels may be created in a single process,
// each with its own registry, bus, and control bindings.
package toolvisor
