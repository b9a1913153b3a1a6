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
	"bufio"
	"log"
	"net"
	"strings"

	"github.com/toolvisor/toolvisor"
)

// Socket is the primary local transport: a loopback TCP listener
// that accepts one line per command and returns one text reply per
// command, keeping the connection open across commands until the
// client closes it or sends "shutdown". Follows the familiar
// bind-loopback, accept-loop, per-connection-handler shape, with
// handlers submitting Commands through the Kernel's shared queue
// rather than touching kernel state directly.
type Socket struct {
	k        *toolvisor.Kernel
	ln       net.Listener
	logger   *log.Logger
}

// ListenSocket binds addr (expected to be a loopback address, e.g.
// "127.0.0.1:9999") and returns a Socket ready to Serve.
func ListenSocket(addr string, k *toolvisor.Kernel, logger *log.Logger) (*Socket, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Socket{k: k, ln: ln, logger: logger}, nil
}

// Addr returns the bound listen address.
func (s *Socket) Addr() string {
	return s.ln.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Socket) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// Close stops accepting new connections.
func (s *Socket) Close() error {
	return s.ln.Close()
}

func (s *Socket) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := parseCommand(line)
		if err != nil {
			conn.Write([]byte("Error: " + err.Error() + "\n\n"))
			continue
		}
		resp := s.k.Submit(cmd)
		conn.Write([]byte(renderResponse(resp)))
		if cmd.Verb == toolvisor.VerbShutdown {
			return
		}
	}
}
