/*
 * cortexm - Driver tests: reset, stepping, breakpoints, semihosting exit.
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

package driver

import (
	"testing"

	"github.com/cmsim/cortexm/emu/semihosting"
)

// buildImage lays out a vector table (MSP, reset PC) followed by:
//
//	MOVS R0,#0x18   (2018)  -- SYS_EXCEPTION op
//	MOVS R1,#0x00   (2100)  -- ExceptionReason, value irrelevant here
//	BKPT 0xAB       (BEAB)  -- semihosting trap
func buildImage(mspTop uint32) []byte {
	const entry = 8
	img := make([]byte, 14)
	put32 := func(off int, v uint32) {
		img[off] = byte(v)
		img[off+1] = byte(v >> 8)
		img[off+2] = byte(v >> 16)
		img[off+3] = byte(v >> 24)
	}
	put16 := func(off int, v uint16) {
		img[off] = byte(v)
		img[off+1] = byte(v >> 8)
	}
	put32(0, mspTop)
	put32(4, entry|1)
	put16(entry, 0x2018)
	put16(entry+2, 0x2100)
	put16(entry+4, 0xBEAB)
	return img
}

func newTestDriver(t *testing.T, dispatch semihosting.Dispatcher) *Driver {
	t.Helper()
	d, err := New(Config{
		CodeImage: buildImage(0x20001000),
		FlashBase: 0,
		SRAMBase:  0x20000000,
		SRAMSize:  0x1000,
		Semihost:  dispatch,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestResetLoadsVectorTable(t *testing.T) {
	d := newTestDriver(t, nil)
	regs := d.ReadRegisters()
	if regs.PC != 8 {
		t.Fatalf("PC = %#x, want 8", regs.PC)
	}
	if regs.SP != 0x20001000 {
		t.Fatalf("SP = %#x, want 0x20001000", regs.SP)
	}
}

func TestStepExecutesInstruction(t *testing.T) {
	d := newTestDriver(t, nil)
	ev := d.Step()
	if ev.Kind != EventDoneStep {
		t.Fatalf("Kind = %v, want EventDoneStep", ev.Kind)
	}
	if got := d.ReadRegisters().R[0]; got != 0x18 {
		t.Fatalf("R0 = %#x, want 0x18", got)
	}
	if got := d.ReadRegisters().PC; got != 10 {
		t.Fatalf("PC = %#x, want 10", got)
	}
}

func TestBreakpointStopsStep(t *testing.T) {
	d := newTestDriver(t, nil)
	d.SetBreakpoint(10)
	ev := d.Step()
	if ev.Kind != EventBreak || ev.Addr != 10 {
		t.Fatalf("ev = %+v, want Break at 10", ev)
	}
	d.ClearBreakpoint(10)
	ev = d.Step()
	if ev.Kind != EventDoneStep {
		t.Fatalf("Kind = %v, want EventDoneStep after clearing breakpoint", ev.Kind)
	}
}

func TestSemihostingExitStopsRun(t *testing.T) {
	var gotOp semihosting.Op
	d := newTestDriver(t, func(req semihosting.Request) semihosting.Response {
		gotOp = req.Op
		return semihosting.Response{Stop: true, ExitCode: 7}
	})

	ev := d.Continue(nil)
	if ev.Kind != EventFinalized {
		t.Fatalf("Kind = %v, want EventFinalized", ev.Kind)
	}
	if ev.ExitCode != 7 {
		t.Fatalf("ExitCode = %d, want 7", ev.ExitCode)
	}
	if gotOp != semihosting.OpException {
		t.Fatalf("dispatched op = %v, want OpException", gotOp)
	}
	if d.Running() {
		t.Fatalf("Running() = true after semihosting exit")
	}
	if d.ExitCode() != 7 {
		t.Fatalf("ExitCode() = %d, want 7", d.ExitCode())
	}
}

func TestResetClearsRunStateAfterExit(t *testing.T) {
	d := newTestDriver(t, func(req semihosting.Request) semihosting.Response {
		return semihosting.Response{Stop: true, ExitCode: 3}
	})
	d.Continue(nil)
	if d.Running() {
		t.Fatalf("Running() = true before Reset")
	}
	d.Reset()
	if !d.Running() {
		t.Fatalf("Running() = false after Reset")
	}
	if d.ReadRegisters().PC != 8 {
		t.Fatalf("PC = %#x after Reset, want 8", d.ReadRegisters().PC)
	}
}
