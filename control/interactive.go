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
	"io"
	"strings"

	"github.com/toolvisor/toolvisor"
)

// Interactive is the operator-terminal binding: a dedicated reader
// goroutine parses verb lines and submits them through the Kernel's
// command queue, printing each response — grounded in
// original_source/src/core/console.c's "yuki> " prompt loop ("Type
// 'help' for commands, 'quit' to exit console... framework continues
// running" on quit, vs. "shutdown" which stops it too).
type Interactive struct {
	k      *toolvisor.Kernel
	in     io.Reader
	out    io.Writer
	prompt string
}

// NewInteractive creates an Interactive binding reading from in and
// writing prompts/responses to out.
func NewInteractive(k *toolvisor.Kernel, in io.Reader, out io.Writer) *Interactive {
	return &Interactive{k: k, in: in, out: out, prompt: "toolvisor> "}
}

// Run reads verb lines until EOF, "quit", or "exit". Unlike "quit",
// a "shutdown" command stops the kernel as well as the console.
func (c *Interactive) Run() {
	fmt.Fprintln(c.out, "toolvisor interactive console. Type 'help' for commands, 'quit' to exit.")
	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if lower == "quit" || lower == "exit" {
			fmt.Fprintln(c.out, "Exiting console (kernel continues running)...")
			return
		}
		if lower == "help" {
			fmt.Fprint(c.out, helpText)
			continue
		}
		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(c.out, "Error:", err)
			continue
		}
		resp := c.k.Submit(cmd)
		fmt.Fprint(c.out, renderResponse(resp))
		if cmd.Verb == toolvisor.VerbShutdown {
			return
		}
	}
}

const helpText = `Commands:
  start <tool>     start a tool
  stop <tool>      stop a tool
  restart <tool>   restart a tool
  status <tool>    show detailed status of a tool
  list             list all registered tools
  exists <tool>    report whether a tool is registered
  count            report the number of registered tools
  uptime           report kernel uptime in seconds
  version          report the kernel version
  debug            summarize the debug-event ring
  shutdown         stop every tool and the kernel
  quit / exit      leave the console (kernel keeps running)
`
