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

// Command toolvisortop is a terminal dashboard for a running
// toolvisord: a live table of registered tools plus a tail of the
// kernel's recent log lines, polled over the control socket.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/toolvisor/toolvisor"
	"github.com/toolvisor/toolvisor/control"
)

var (
	styleNormal = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorBlack)
	styleHeader = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver).Bold(true)
	styleGood   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack)
	styleWarn   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack)
	styleError  = tcell.StyleDefault.Foreground(tcell.ColorMaroon).Background(tcell.ColorBlack).Bold(true)
	styleTitle  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlue).Bold(true)
)

func styleFor(s toolvisor.State) tcell.Style {
	switch s {
	case toolvisor.Running:
		return styleGood
	case toolvisor.StateError:
		return styleError
	case toolvisor.Crashed, toolvisor.Starting, toolvisor.Stopping:
		return styleWarn
	default:
		return styleNormal
	}
}

func emitString(s tcell.Screen, x, y int, style tcell.Style, str string) {
	for _, r := range str {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

type dashboard struct {
	client   *control.Client
	screen   tcell.Screen
	selected int
	infos    []toolvisor.Info
	logs     []toolvisor.LogRecord
	err      error
}

func newDashboard(client *control.Client) (*dashboard, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.SetStyle(styleNormal)
	return &dashboard{client: client, screen: screen}, nil
}

func (d *dashboard) close() {
	d.screen.Fini()
}

const logTailLines = 8

func (d *dashboard) refresh() {
	infos, err := d.client.List()
	if err != nil {
		d.err = err
		return
	}
	d.err = nil
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	d.infos = infos
	if d.selected >= len(d.infos) {
		d.selected = len(d.infos) - 1
	}
	if d.selected < 0 {
		d.selected = 0
	}

	if logs, err := d.client.Logs(); err == nil {
		if len(logs) > logTailLines {
			logs = logs[len(logs)-logTailLines:]
		}
		d.logs = logs
	}
}

func (d *dashboard) draw() {
	d.screen.Clear()
	w, h := d.screen.Size()

	title := fmt.Sprintf(" toolvisortop  %s ", time.Now().Format("15:04:05"))
	emitString(d.screen, 0, 0, styleTitle, padTo(title, w))

	header := fmt.Sprintf("%-20s %-12s %6s %8s %8s %6s", "NAME", "STATE", "PID", "SENT", "RECV", "SUBS")
	emitString(d.screen, 0, 2, styleHeader, padTo(header, w))

	if d.err != nil {
		emitString(d.screen, 0, 4, styleError, fmt.Sprintf("error: %v", d.err))
	}

	logPanelHeight := 1 + logTailLines
	toolsMaxY := h - 2 - logPanelHeight
	if toolsMaxY < 3 {
		toolsMaxY = h - 1
		logPanelHeight = 0
	}

	for i, info := range d.infos {
		y := 3 + i
		if y >= toolsMaxY {
			break
		}
		style := styleFor(info.State)
		if i == d.selected {
			style = style.Reverse(true)
		}
		line := fmt.Sprintf("%-20s %-12s %6d %8d %8d %6d",
			info.Name, info.State.String(), info.Pid,
			info.EventsSent, info.EventsReceived, info.SubscriptionCount)
		emitString(d.screen, 0, y, style, padTo(line, w))
	}

	if logPanelHeight > 0 {
		logY := h - 1 - logPanelHeight
		emitString(d.screen, 0, logY, styleHeader, padTo("LOG", w))
		for i, rec := range d.logs {
			y := logY + 1 + i
			if y >= h-1 {
				break
			}
			emitString(d.screen, 0, y, styleNormal, padTo(rec.Text, w))
		}
	}

	footer := "[Up/Down] select  [S] start  [T] stop  [R] restart  [Q] quit"
	emitString(d.screen, 0, h-1, styleHeader, padTo(footer, w))

	d.screen.Show()
}

func padTo(s string, w int) string {
	for len(s) < w {
		s += " "
	}
	if len(s) > w {
		s = s[:w]
	}
	return s
}

func (d *dashboard) selectedName() string {
	if d.selected < 0 || d.selected >= len(d.infos) {
		return ""
	}
	return d.infos[d.selected].Name
}

func (d *dashboard) run() {
	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	d.refresh()
	d.draw()

	for {
		select {
		case <-ticker.C:
			d.refresh()
			d.draw()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				d.screen.Sync()
				d.draw()
			case *tcell.EventKey:
				switch ev.Key() {
				case tcell.KeyUp:
					if d.selected > 0 {
						d.selected--
					}
					d.draw()
				case tcell.KeyDown:
					if d.selected < len(d.infos)-1 {
						d.selected++
					}
					d.draw()
				case tcell.KeyEscape, tcell.KeyCtrlC:
					return
				case tcell.KeyRune:
					switch ev.Rune() {
					case 'q', 'Q':
						return
					case 's', 'S':
						if name := d.selectedName(); name != "" {
							d.client.Start(name)
							d.refresh()
							d.draw()
						}
					case 't', 'T':
						if name := d.selectedName(); name != "" {
							d.client.Stop(name)
							d.refresh()
							d.draw()
						}
					case 'r', 'R':
						if name := d.selectedName(); name != "" {
							d.client.Restart(name)
							d.refresh()
							d.draw()
						}
					}
				}
			}
		}
	}
}

func main() {
	addr := flag.String("a", "127.0.0.1:8321", "toolvisord control address")
	flag.Parse()

	client, err := control.Dial(*addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer client.Close()

	d, err := newDashboard(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "toolvisortop: %v\n", err)
		os.Exit(1)
	}
	defer d.close()

	d.run()
}
