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
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/toolvisor/toolvisor"
)

// Client speaks the control-plane line protocol over a persistent
// connection to a Socket binding — the line-oriented counterpart to a
// JSON-over-HTTP REST client, adapted to the wire format this kernel's
// primary transport actually uses.
type Client struct {
	conn net.Conn
	rd   *bufio.Reader
}

// Dial connects to a Socket binding at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, rd: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// reply reads one response: the human Text line, zero or more info
// lines, terminated by a blank line (renderResponse's framing).
func (c *Client) reply() (text string, infos []toolvisor.Info, err error) {
	text, lines, err := c.replyLines()
	if err != nil {
		return text, nil, err
	}
	for _, line := range lines {
		if info, err := parseInfoLine(line); err == nil {
			infos = append(infos, info)
		}
	}
	return text, infos, nil
}

// replyLines reads one response's Text line and its raw body lines,
// leaving verb-specific line parsing (info vs. log) to the caller.
func (c *Client) replyLines() (text string, lines []string, err error) {
	text, err = c.rd.ReadString('\n')
	if err != nil {
		return "", nil, err
	}
	text = strings.TrimRight(text, "\n")
	for {
		line, err := c.rd.ReadString('\n')
		if err != nil {
			return text, lines, err
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return text, lines, nil
}

func (c *Client) send(verb string, arg string) (string, []toolvisor.Info, error) {
	line := verb
	if arg != "" {
		line += " " + arg
	}
	if _, err := fmt.Fprintln(c.conn, line); err != nil {
		return "", nil, err
	}
	return c.reply()
}

func (c *Client) sendLines(verb string, arg string) (string, []string, error) {
	line := verb
	if arg != "" {
		line += " " + arg
	}
	if _, err := fmt.Fprintln(c.conn, line); err != nil {
		return "", nil, err
	}
	return c.replyLines()
}

// Start issues the start verb for name.
func (c *Client) Start(name string) (string, error) {
	t, _, err := c.send("start", name)
	return t, err
}

// Stop issues the stop verb for name.
func (c *Client) Stop(name string) (string, error) {
	t, _, err := c.send("stop", name)
	return t, err
}

// Restart issues the restart verb for name.
func (c *Client) Restart(name string) (string, error) {
	t, _, err := c.send("restart", name)
	return t, err
}

// Status returns the Info for name.
func (c *Client) Status(name string) (toolvisor.Info, error) {
	_, infos, err := c.send("status", name)
	if err != nil {
		return toolvisor.Info{}, err
	}
	if len(infos) == 0 {
		return toolvisor.Info{}, fmt.Errorf("no such tool: %s", name)
	}
	return infos[0], nil
}

// List returns every registered tool's Info.
func (c *Client) List() ([]toolvisor.Info, error) {
	_, infos, err := c.send("list", "")
	return infos, err
}

// Shutdown issues the shutdown verb.
func (c *Client) Shutdown() (string, error) {
	t, _, err := c.send("shutdown", "")
	return t, err
}

// Uptime issues the uptime verb.
func (c *Client) Uptime() (string, error) {
	t, _, err := c.send("uptime", "")
	return t, err
}

// Version issues the version verb.
func (c *Client) Version() (string, error) {
	t, _, err := c.send("version", "")
	return t, err
}

// Exists issues the exists verb.
func (c *Client) Exists(name string) (string, error) {
	t, _, err := c.send("exists", name)
	return t, err
}

// Count issues the count verb.
func (c *Client) Count() (string, error) {
	t, _, err := c.send("count", "")
	return t, err
}

// Logs issues the log verb, returning the kernel-wide log tail.
func (c *Client) Logs() ([]toolvisor.LogRecord, error) {
	_, lines, err := c.sendLines("log", "")
	if err != nil {
		return nil, err
	}
	recs := make([]toolvisor.LogRecord, 0, len(lines))
	for _, line := range lines {
		if rec, err := parseLogLine(line); err == nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}
