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

// Command toolvisord runs the tool supervisor kernel as a daemon: it
// loads a configuration file, registers its tools, and serves the
// control-plane bindings the configuration calls for until it
// receives a shutdown signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/toolvisor/toolvisor"
	"github.com/toolvisor/toolvisor/config"
	"github.com/toolvisor/toolvisor/control"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		debug       bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "configuration file (required)")
	flag.BoolVar(&debug, "debug", false, "enable debug mode regardless of the configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("toolvisord version %s\n", toolvisor.Version)
		return 0
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "toolvisord: -config is required")
		usage()
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolvisord: failed to load configuration: %v\n", err)
		return 1
	}
	if debug {
		cfg.Core.EnableDebug = true
	}

	opts := cfg.Options()
	k := toolvisor.NewKernel(opts)
	if cfg.Core.LogFile != "" {
		if err := k.AddFileLog(cfg.Core.LogFile); err != nil {
			fmt.Fprintf(os.Stderr, "toolvisord: failed to open log file: %v\n", err)
			return 1
		}
	}
	if err := cfg.Register(k); err != nil {
		fmt.Fprintf(os.Stderr, "toolvisord: failed to register tools: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var socket *control.Socket
	var fileProto *control.FileProto
	if cfg.Core.ControlPort > 0 {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Core.ControlPort)
		socket, err = control.ListenSocket(addr, k, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "toolvisord: failed to open control socket: %v\n", err)
			return 1
		}
		go socket.Serve()
		go func() {
			status := control.NewStatus(k)
			http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", cfg.Core.ControlPort+1), status)
		}()
	} else {
		fileProto = control.NewFileProto(k, configPath+".cmd", configPath+".resp", 0)
		go fileProto.Run()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGHUP:
				reloaded, err := config.Load(configPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "toolvisord: reload: failed to load configuration: %v\n", err)
					continue
				}
				if err := reloaded.Reload(k); err != nil {
					fmt.Fprintf(os.Stderr, "toolvisord: reload: %v\n", err)
					continue
				}
				cfg = reloaded
			default:
				k.Shutdown()
				if socket != nil {
					socket.Close()
				}
				if fileProto != nil {
					fileProto.Stop()
				}
				cancel()
				return
			}
		}
	}()

	if err := k.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "toolvisord: %v\n", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `toolvisord - event-driven tool supervisor

Usage: toolvisord -config FILE [OPTIONS]

Options:
  -config FILE   configuration file (required)
  -debug         enable debug mode
  -version       print version information and exit
`)
}
