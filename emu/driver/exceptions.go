/*
 * cortexm - Exception entry/return and fault-to-exception mapping.
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
	"log/slog"

	"github.com/cmsim/cortexm/emu/cpu"
	"github.com/cmsim/cortexm/emu/exception"
)

// excReturnHandlerMSP etc. are the EXC_RETURN low-nibble patterns, per
// spec.md §4.F: top byte 0xFF, low nibble selects the mode/stack the
// processor returns to.
const (
	excReturnTopByte = 0xFF000000

	excReturnHandlerMSP = 0x1
	excReturnThreadMSP  = 0x9
	excReturnThreadPSP  = 0xD
)

// takeException performs exception entry ("stacking"): pushes the
// caller-saved frame, loads the handler's PC from the vector table, and
// switches to Handler mode/MSP, per spec.md §4.F. A pending exception
// already active at this same priority (tail-chaining) is approximated
// by simply re-entering rather than reusing the still-live frame --
// stack-frame-byte exactness is out of scope (spec.md non-goals).
func (d *Driver) takeException(num int) error {
	r := &d.proc.Regs
	frameSP := r.ActiveSPValue()

	padded := false
	if d.scb.StackAlign() && frameSP&0x4 != 0 {
		frameSP -= 4
		padded = true
	}
	frameSP -= 0x20

	xpsr := r.PSRValue()
	xpsr &^= 1 << 9
	if padded {
		xpsr |= 1 << 9
	}

	frame := [8]uint32{
		r.GetR(cpu.R0), r.GetR(cpu.R1), r.GetR(cpu.R2), r.GetR(cpu.R3),
		r.GetR(cpu.R12), r.GetR(cpu.LR), r.RawPC(), xpsr,
	}
	for i, v := range frame {
		if err := d.bus.WriteU32(frameSP+uint32(i*4), v); err != nil {
			return err
		}
	}
	r.SetActiveSPValue(frameSP)

	excReturn := uint32(excReturnTopByte | excReturnHandlerMSP)
	if r.Mode == cpu.ModeThread {
		if r.Control.SPSel {
			excReturn = excReturnTopByte | excReturnThreadPSP
		} else {
			excReturn = excReturnTopByte | excReturnThreadMSP
		}
	}
	r.SetR(cpu.LR, excReturn)

	r.Mode = cpu.ModeHandler
	r.Control.SPSel = false
	r.SetExceptionNumber(num)

	vecAddr := d.scb.VTOR() + uint32(num)*4
	entry, err := d.bus.ReadU32(vecAddr)
	if err != nil {
		return err
	}
	r.BranchWritePC(entry &^ 1)

	d.ctrl.Activate(num)
	d.activeStack = append(d.activeStack, num)

	slog.Debug("exception entry", "num", num, "pc", entry, "sp", frameSP)
	return nil
}

// exceptionReturn performs exception return ("unstacking"): pops the
// frame EXC_RETURN describes, restores Mode/CONTROL.SPSEL, and
// deactivates the exception that was on top of activeStack, per spec.md
// §4.F.
func (d *Driver) exceptionReturn(excReturn uint32) error {
	r := &d.proc.Regs

	if len(d.activeStack) == 0 {
		return &cpu.Fault{Kind: cpu.FaultInvState}
	}
	returning := d.activeStack[len(d.activeStack)-1]
	d.activeStack = d.activeStack[:len(d.activeStack)-1]
	d.ctrl.Deactivate(returning)

	switch excReturn & 0xF {
	case excReturnHandlerMSP:
		r.Mode = cpu.ModeHandler
		r.Control.SPSel = false
	case excReturnThreadMSP:
		r.Mode = cpu.ModeThread
		r.Control.SPSel = false
	case excReturnThreadPSP:
		r.Mode = cpu.ModeThread
		r.Control.SPSel = true
	default:
		return &cpu.Fault{Kind: cpu.FaultInvState}
	}

	frameSP := r.ActiveSPValue()
	var frame [8]uint32
	for i := range frame {
		v, err := d.bus.ReadU32(frameSP + uint32(i*4))
		if err != nil {
			return err
		}
		frame[i] = v
	}

	r.SetR(cpu.R0, frame[0])
	r.SetR(cpu.R1, frame[1])
	r.SetR(cpu.R2, frame[2])
	r.SetR(cpu.R3, frame[3])
	r.SetR(cpu.R12, frame[4])
	r.SetR(cpu.LR, frame[5])
	xpsr := frame[7]

	newSP := frameSP + 0x20
	if xpsr&(1<<9) != 0 {
		newSP += 4
	}
	r.SetExceptionNumber(0)
	r.RestorePSR(xpsr)
	r.BranchWritePC(frame[6] &^ 1)
	r.SetActiveSPValue(newSP)

	slog.Debug("exception return", "num", returning, "pc", frame[6])
	return nil
}

// faultException maps a cpu.Fault to the exception number that services
// it, per spec.md §4.I's escalation rule: a fault whose owning handler
// is disabled in SHCSR (or one of the always-Forced kinds) escalates
// straight to HardFault.
func (d *Driver) faultException(k cpu.FaultKind) (num int, forced bool) {
	switch k {
	case cpu.FaultDAccViol, cpu.FaultIAccViol, cpu.FaultMstkerr, cpu.FaultMlspErr:
		if d.scb.FaultEnabled(exception.NumMemManage) {
			return exception.NumMemManage, false
		}
		return exception.NumHardFault, true
	case cpu.FaultBusError, cpu.FaultPreciserr, cpu.FaultImpreciseerr, cpu.FaultStkerr, cpu.FaultIBusErr:
		if d.scb.FaultEnabled(exception.NumBusFault) {
			return exception.NumBusFault, false
		}
		return exception.NumHardFault, true
	case cpu.FaultUndefInstr, cpu.FaultInvState, cpu.FaultInvPC, cpu.FaultDivByZero,
		cpu.FaultUnaligned, cpu.FaultNocp, cpu.FaultMsunskerr, cpu.FaultLspErr:
		if d.scb.FaultEnabled(exception.NumUsageFault) {
			return exception.NumUsageFault, false
		}
		return exception.NumHardFault, true
	case cpu.FaultVectorTable, cpu.FaultForced, cpu.FaultDebugEvt:
		return exception.NumHardFault, true
	}
	return exception.NumHardFault, true
}

// handleFault pends (and, once eligible, takes) the exception a cpu.Fault
// maps to. Faults are always taken immediately rather than merely pended,
// since the faulting instruction cannot be retried meaningfully here.
func (d *Driver) handleFault(f *cpu.Fault) error {
	num, forced := d.faultException(f.Kind)
	slog.Warn("fault", "kind", f.Kind, "pc", f.PC, "exception", num, "forced", forced)
	d.ctrl.SetPend(num)
	if n, ok := d.ctrl.NextPending(); ok {
		return d.takeException(n)
	}
	// execPriority blocked delivery (masked by PRIMASK/FAULTMASK/BASEPRI):
	// the pend is recorded and Step's normal NextPending check will take
	// it once unmasked.
	return nil
}
