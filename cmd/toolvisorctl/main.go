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

// Command toolvisorctl is a client application that talks to a
// running toolvisord over its control socket. It uses subcommands.
//
// The flags are
//
//	-a <address>	select the control socket address, default is
//			127.0.0.1:8321
//
// Subcommands are
//
//	list                list all registered tools
//	status [<tool>]     show detailed status for the named tool (or all)
//	start <tool>        start a tool
//	stop <tool>         stop a tool
//	restart <tool>      restart a tool
//	exists <tool>       report whether a tool is registered
//	count               report the number of registered tools
//	uptime              report kernel uptime
//	version             report kernel version
//	shutdown            stop every tool and the kernel
//	pid <pidfile>       print the daemon's pid, read from its pid file
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/toolvisor/toolvisor"
	"github.com/toolvisor/toolvisor/control"
)

var addr string = "127.0.0.1:8321"

func usage() {
	log.Fatalf("Usage: %s [-a <address>] <subcommand> [tool]", os.Args[0])
}

func stateString(i toolvisor.Info) string {
	return i.State.String()
}

func showInfo(i toolvisor.Info) {
	fmt.Printf("Name:            %s\n", i.Name)
	fmt.Printf("Command:         %s\n", i.Command)
	fmt.Printf("Description:     %s\n", i.Description)
	fmt.Printf("State:           %s\n", stateString(i))
	fmt.Printf("Pid:             %d\n", i.Pid)
	fmt.Printf("Autostart:       %v\n", i.Autostart)
	fmt.Printf("RestartOnCrash:  %v\n", i.RestartOnCrash)
	fmt.Printf("MaxRestarts:     %d\n", i.MaxRestarts)
	fmt.Printf("RestartCount:    %d\n", i.RestartCount)
	fmt.Printf("EventsSent:      %d\n", i.EventsSent)
	fmt.Printf("EventsReceived:  %d\n", i.EventsReceived)
	fmt.Printf("Subscriptions:   %d\n", i.SubscriptionCount)
}

func showList(infos []toolvisor.Info) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	for _, i := range infos {
		fmt.Printf("%-20s %-10s pid=%d\n", i.Name, stateString(i), i.Pid)
	}
}

func main() {
	flag.StringVar(&addr, "a", addr, "toolvisord control address")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	if args[0] == "pid" {
		if len(args) != 2 {
			usage()
		}
		b, err := os.ReadFile(args[1])
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(strings.TrimSpace(string(b)))
		return
	}

	client, err := control.Dial(addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	defer client.Close()

	switch args[0] {
	case "list":
		infos, err := client.List()
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		showList(infos)

	case "status":
		if len(args) == 2 {
			info, err := client.Status(args[1])
			if err != nil {
				log.Fatalf("Failed: %v", err)
			}
			showInfo(info)
			return
		}
		infos, err := client.List()
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		showList(infos)

	case "start":
		if len(args) != 2 {
			usage()
		}
		text, err := client.Start(args[1])
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "stop":
		if len(args) != 2 {
			usage()
		}
		text, err := client.Stop(args[1])
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "restart":
		if len(args) != 2 {
			usage()
		}
		text, err := client.Restart(args[1])
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "exists":
		if len(args) != 2 {
			usage()
		}
		text, err := client.Exists(args[1])
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "count":
		text, err := client.Count()
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "uptime":
		text, err := client.Uptime()
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "version":
		text, err := client.Version()
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	case "shutdown":
		text, err := client.Shutdown()
		if err != nil {
			log.Fatalf("Failed: %v", err)
		}
		fmt.Println(text)

	default:
		usage()
	}
}
