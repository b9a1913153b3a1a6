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

	"github.com/gorilla/mux"

	"github.com/toolvisor/toolvisor"
)

// Status is a read-only HTTP mirror of the control surface: GET
// /tools, GET /tools/{name}, and GET /tools/{name}/log. It consolidates
// what would otherwise be two near-identical gorilla/mux handlers into
// one, stripped of every mutating route, so mutation stays on the one
// authoritative line-oriented transport.
type Status struct {
	k *toolvisor.Kernel
	r *mux.Router
}

// NewStatus builds a Status handler over k.
func NewStatus(k *toolvisor.Kernel) *Status {
	s := &Status{k: k, r: mux.NewRouter()}
	s.r.HandleFunc("/tools", s.list).Methods("GET")
	s.r.HandleFunc("/tools/{name}", s.get).Methods("GET")
	s.r.HandleFunc("/tools/{name}/log", s.log).Methods("GET")
	return s
}

func (s *Status) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

func (s *Status) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Status) list(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.k.List())
}

func (s *Status) get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, err := s.k.Status(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, info)
}

func (s *Status) log(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.k.Exists(name) {
		http.Error(w, "tool not found", http.StatusNotFound)
		return
	}
	records, _ := s.k.LogRecords(0)
	s.writeJSON(w, records)
}
