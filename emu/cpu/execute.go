/*
 * cortexm - Executor: interprets one decoded Instruction against the
 * register file and bus.
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

package cpu

import (
	"fmt"
)

// FaultKind enumerates the architectural faults the executor can
// surface, per spec.md §4.I. The driver maps each to MemManage/
// BusFault/UsageFault (or escalates to HardFault as Forced) rather than
// this package touching the exception controller directly.
type FaultKind int

const (
	FaultUnaligned FaultKind = iota
	FaultUndefInstr
	FaultDivByZero
	FaultInvState
	FaultInvPC
	FaultStkerr
	FaultMstkerr
	FaultMsunskerr
	FaultBusError
	FaultDAccViol
	FaultIAccViol
	FaultIBusErr
	FaultPreciserr
	FaultImpreciseerr
	FaultNocp
	FaultVectorTable
	FaultForced
	FaultDebugEvt
	FaultMlspErr
	FaultLspErr
)

func (k FaultKind) String() string {
	names := [...]string{
		"Unaligned", "UndefInstr", "DivByZero", "InvState", "InvPC",
		"Stkerr", "Mstkerr", "Msunskerr", "BusError", "DAccViol",
		"IAccViol", "IBusErr", "Preciserr", "Impreciseerr", "Nocp",
		"VectorTable", "Forced", "DebugEvt", "MlspErr", "LspErr",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Fault is returned by Step instead of an ExecuteResult when the
// instruction cannot complete architecturally.
type Fault struct {
	Kind FaultKind
	PC   uint32
	Err  error // wraps the underlying bus/decode error, if any
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fault %s at %#08x: %v", f.Kind, f.PC, f.Err)
	}
	return fmt.Sprintf("fault %s at %#08x", f.Kind, f.PC)
}

func (f *Fault) Unwrap() error { return f.Err }

// Outcome discriminates an ExecuteResult's three shapes: spec.md's
// `Taken{cycles}` (IT-conditional instruction executed), `Branched{cycles}`
// (PC redirected), `NotTaken` (IT-gated instruction skipped).
type Outcome int

const (
	OutcomeTaken Outcome = iota
	OutcomeBranched
	OutcomeNotTaken
)

// ExecuteResult is Step's success return, per spec.md §4.I.
type ExecuteResult struct {
	Outcome Outcome
	Cycles  uint32
}

// Bus is the narrow memory contract the executor needs: fetch, byte/
// halfword/word load and store. Satisfied by *memory.Bus; kept local
// so emu/cpu never imports emu/memory (decoder/executor stay testable
// with a trivial fake).
type Bus interface {
	ReadFetch(addr uint32) (uint16, error)
	ReadU8(addr uint32) (uint8, error)
	ReadU16(addr uint32) (uint16, error)
	ReadU32(addr uint32) (uint32, error)
	WriteU8(addr uint32, v uint8) error
	WriteU16(addr uint32, v uint16) error
	WriteU32(addr uint32, v uint32) error
}

// SemihostingHook is invoked on BKPT 0xAB, per spec.md §4.H. It is the
// executor's only escape hatch to the driver/host layer; everything
// else flows through Bus.
type SemihostingHook func(r *RegisterFile, b Bus) (r0 uint32, stop bool)

// Processor bundles the architectural state an instruction needs: the
// register file, the bus, and the semihosting callback. It owns no
// exception-controller reference -- SVC/fault delivery is signalled
// back to the driver via Fault / a dedicated outcome, not performed
// here, keeping the executor a pure function of (state, instruction).
type Processor struct {
	Regs       RegisterFile
	Bus        Bus
	Semihost   SemihostingHook
	PendingSVC bool
	Halted     bool

	// DivZeroTrap mirrors SCB.CCR's DIV_0_TRP bit. The driver refreshes
	// it from the live SCB each step; kept here rather than importing
	// emu/exception so SDIV/UDIV stay a pure function of (state, instr).
	DivZeroTrap bool

	// ExcReturn is set to the EXC_RETURN value when BX/POP targets one,
	// for the driver's exception-return unstacking to consume on the
	// next step boundary; the executor never unstacks itself.
	ExcReturn uint32

	// NoExclusiveOps mirrors the driver's ArchVariant == ArchV6M: ARMv6-M
	// has no LDREX/STREX encoding path in real hardware. The decoder
	// itself stays variant-agnostic (it decodes the union of
	// ARMv6-M/v7-M/v7E-M), so this flag lets execute reject the two
	// exclusive-access kinds as undefined instructions on that variant
	// without threading ArchVariant through Decode32 and every caller.
	NoExclusiveOps bool
}

// Step executes one already-decoded instruction, per spec.md §4.I's
// four-step contract.
func (p *Processor) Step(instr Instruction) (ExecuteResult, *Fault) {
	r := &p.Regs
	size := uint32(2)
	if instr.Thumb32 {
		size = 4
	}

	if r.InITBlock() {
		cond := r.CurrentCond()
		r.AdvanceIT()
		if !r.ConditionPassed(cond) {
			r.SetRawPC(r.RawPC() + size)
			return ExecuteResult{Outcome: OutcomeNotTaken}, nil
		}
	} else if instr.Kind == KindBCond {
		cp := instr.Params.(CondBranchParams)
		if !r.ConditionPassed(cp.Cond) {
			r.SetRawPC(r.RawPC() + size)
			return ExecuteResult{Outcome: OutcomeNotTaken}, nil
		}
	}

	branched, fault := p.execute(instr)
	if fault != nil {
		fault.PC = r.RawPC()
		return ExecuteResult{}, fault
	}
	if !branched {
		r.SetRawPC(r.RawPC() + size)
		return ExecuteResult{Outcome: OutcomeTaken, Cycles: 1}, nil
	}
	return ExecuteResult{Outcome: OutcomeBranched, Cycles: 2}, nil
}

// execute dispatches by Kind and performs the operation using the
// emu/bits primitives, per §4.A. Returns branched=true when it wrote PC
// itself (so Step must not auto-advance).
func (p *Processor) execute(instr Instruction) (branched bool, fault *Fault) {
	r := &p.Regs

	if p.NoExclusiveOps && (instr.Kind == KindLDREX || instr.Kind == KindSTREX) {
		return false, &Fault{Kind: FaultUndefInstr}
	}

	switch {
	case isDataProcessingKind(instr.Kind):
		return false, p.executeDataProcessing(instr)
	case isShiftKind(instr.Kind):
		return false, p.executeShift(instr)
	case isMultiplyKind(instr.Kind):
		return false, p.executeMultiply(instr)
	case isMiscUnaryKind(instr.Kind):
		return false, p.executeMiscUnary(instr)
	case isBitfieldKind(instr.Kind):
		return false, p.executeBitfield(instr)
	case isLoadStoreKind(instr.Kind):
		return p.executeLoadStore(instr)
	case isLoadStoreMultipleKind(instr.Kind):
		return p.executeLoadStoreMultiple(instr)
	case isBranchKind(instr.Kind):
		return p.executeBranch(instr)
	case isMiscSystemKind(instr.Kind):
		return p.executeMiscSystem(instr)
	case isFPKind(instr.Kind):
		return false, p.executeFP(instr)
	}

	switch instr.Kind {
	case KindNOP, KindYIELD, KindSEV:
		return false, nil
	case KindWFE, KindWFI:
		p.Halted = true
		return false, nil
	case KindBKPT:
		bp := instr.Params.(BkptParams)
		if bp.Imm8 == 0xAB && p.Semihost != nil {
			r0, stop := p.Semihost(r, p.Bus)
			r.SetR(R0, r0)
			if stop {
				p.Halted = true
			}
			return false, nil
		}
		return false, &Fault{Kind: FaultDebugEvt}
	case KindSVC:
		p.PendingSVC = true
		return false, nil
	case KindUDF:
		return false, &Fault{Kind: FaultUndefInstr}
	}
	return false, &Fault{Kind: FaultUndefInstr}
}

func isDataProcessingKind(k Kind) bool {
	switch k {
	case KindANDReg, KindANDImm, KindEORReg, KindEORImm, KindORRReg, KindORRImm,
		KindORNReg, KindORNImm, KindBICReg, KindBICImm, KindMOVReg, KindMOVImm,
		KindMOVT, KindMVNReg, KindMVNImm, KindTSTReg, KindTSTImm, KindTEQReg, KindTEQImm,
		KindADDReg, KindADDImm, KindADDSPImm, KindADDSPReg, KindADCReg, KindADCImm,
		KindSUBReg, KindSUBImm, KindSUBSPImm, KindSBCReg, KindSBCImm,
		KindRSBReg, KindRSBImm, KindCMPReg, KindCMPImm, KindCMNReg, KindCMNImm, KindADR:
		return true
	}
	return false
}

func isShiftKind(k Kind) bool {
	switch k {
	case KindLSLImm, KindLSLReg, KindLSRImm, KindLSRReg, KindASRImm, KindASRReg, KindRORReg, KindRRX:
		return true
	}
	return false
}

func isMultiplyKind(k Kind) bool {
	switch k {
	case KindMUL, KindMLA, KindMLS, KindSMULL, KindUMULL, KindSMLAL, KindUMLAL, KindSDIV, KindUDIV:
		return true
	}
	return false
}

func isMiscUnaryKind(k Kind) bool {
	switch k {
	case KindCLZ, KindRBIT, KindREV, KindREV16, KindREVSH, KindSXTB, KindSXTH, KindUXTB, KindUXTH:
		return true
	}
	return false
}

func isBitfieldKind(k Kind) bool {
	switch k {
	case KindBFC, KindBFI, KindSBFX, KindUBFX:
		return true
	}
	return false
}

func isLoadStoreKind(k Kind) bool {
	switch k {
	case KindLDR, KindLDRB, KindLDRH, KindLDRSB, KindLDRSH, KindLDRLiteral, KindLDRD,
		KindSTR, KindSTRB, KindSTRH, KindSTRD, KindLDREX, KindSTREX:
		return true
	}
	return false
}

func isLoadStoreMultipleKind(k Kind) bool {
	switch k {
	case KindLDM, KindSTM, KindPUSH, KindPOP:
		return true
	}
	return false
}

func isBranchKind(k Kind) bool {
	switch k {
	case KindB, KindBCond, KindBL, KindBLX, KindBX, KindCBZ, KindCBNZ, KindTBB, KindTBH:
		return true
	}
	return false
}

func isMiscSystemKind(k Kind) bool {
	switch k {
	case KindIT, KindCPS, KindMRS, KindMSR, KindDMB, KindDSB, KindISB:
		return true
	}
	return false
}

func isFPKind(k Kind) bool {
	switch k {
	case KindVMOV, KindVADD, KindVSUB, KindVLDR, KindVSTR, KindVCMP, KindVCVT, KindVMRS:
		return true
	}
	return false
}
