/*
 * cortexm - Interactive monitor.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package monitor is a line-editing REPL around a driver.Driver: the
// "monitor command" spec.md's lifecycle section mentions for resetting
// or inspecting a simulated core from the console. It is a convenience
// wrapper over the driver's debugger-adapter surface, not a substitute
// for it -- an embedder that wants its own front end talks to the
// Driver directly.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/cmsim/cortexm/emu/driver"
	hexfmt "github.com/cmsim/cortexm/util/hex"
)

var commandNames = []string{"reset", "step", "continue", "regs", "break", "quit"}

// Run starts the REPL against d, reading from the controlling terminal
// until the user quits or aborts with Ctrl-D/Ctrl-C.
func Run(d *driver.Driver) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var out []string
		for _, name := range commandNames {
			if strings.HasPrefix(name, partial) {
				out = append(out, name)
			}
		}
		return out
	})

	for {
		cmdline, err := line.Prompt("armsim> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			fmt.Println("error reading line:", err)
			return
		}
		line.AppendHistory(cmdline)

		quit, err := dispatch(d, cmdline)
		if err != nil {
			fmt.Println("error:", err)
		}
		if quit {
			return
		}
	}
}

func dispatch(d *driver.Driver, cmdline string) (quit bool, err error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "reset":
		d.Reset()
		printRegs(d)
	case "step":
		ev := d.Step()
		printEvent(ev)
	case "continue":
		ev := d.Continue(nil)
		printEvent(ev)
	case "regs":
		printRegs(d)
	case "break":
		if len(fields) != 2 {
			return false, errors.New("usage: break <addr>")
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 32)
		if err != nil {
			return false, fmt.Errorf("bad address %q: %w", fields[1], err)
		}
		d.SetBreakpoint(uint32(addr))
		fmt.Printf("breakpoint set at %#08x\n", addr)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

func printEvent(ev driver.RunEvent) {
	switch ev.Kind {
	case driver.EventBreak, driver.EventWatchRead, driver.EventWatchWrite:
		fmt.Printf("%s at %#08x\n", ev.Kind, ev.Addr)
	case driver.EventFinalized:
		fmt.Printf("%s, exit code %d\n", ev.Kind, ev.ExitCode)
	default:
		fmt.Println(ev.Kind)
	}
}

func printRegs(d *driver.Driver) {
	regs := d.ReadRegisters()
	var b strings.Builder
	hexfmt.FormatWord(&b, regs.R[:])
	fmt.Printf("R0-R12: %s\n", b.String())
	fmt.Printf("SP=%#08x LR=%#08x PC=%#08x CPSR=%#08x\n", regs.SP, regs.LR, regs.PC, regs.CPSR)
}
