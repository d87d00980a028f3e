/*
 * cortexm - Register file, PSR, and the PC/SP banking rules.
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

import "github.com/cmsim/cortexm/emu/bits"

// Reg names a general-purpose register, 0-12, plus the architectural
// aliases SP/LR/PC used throughout the decoder and executor.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC
)

// Cond is a 4-bit condition code as used by conditional branches and IT.
type Cond uint8

const (
	CondEQ Cond = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
	CondNV // decodes as UDF (B T1) or SVC, never executed as a real condition
)

// Mode is Thread or Handler, per spec.md 3 "mode".
type Mode int

const (
	ModeThread Mode = iota
	ModeHandler
)

// Control mirrors CONTROL.nPRIV / CONTROL.SPSEL.
type Control struct {
	NPriv bool
	SPSel bool
}

// RegisterFile is the processor's architectural state, owned by the
// driver for the simulation's entire lifetime. It is the single record
// spec.md 3 describes; memories and the exception controller live
// alongside it but are separate structs composed by Processor.
type RegisterFile struct {
	R [13]uint32 // R0-R12

	msp uint32
	psp uint32
	lr  uint32
	pc  uint32

	psr uint32

	Primask   bool
	Faultmask bool
	Basepri   uint8
	Control   Control

	Mode Mode

	// ITState mirrors the PSR IT bits for hot-path access; SetITState
	// keeps both in sync.
	ITState uint8

	// ExtReg holds the 32 single-precision (aliased as 16 double)
	// extension registers. Carried per SPEC_FULL even though
	// floating-point exception trapping is out of scope.
	ExtReg [32]uint32
	Fpscr  uint32
}

// PSR bit layout, per spec.md 3.
const (
	psrNShift  = 31
	psrZShift  = 30
	psrCShift  = 29
	psrVShift  = 28
	psrQShift  = 27
	psrITHiLo  = 25 // IT[1:0] live at bits 26:25
	psrTShift  = 24
	psrGEShift = 16 // GE[3:0] at bits 19:16
	psrITLoLo  = 10 // IT[7:2] live at bits 15:10
)

const excNumMask = 0x1FF

// Reset brings the register file to its post-reset-vector state: all
// general registers and PSP cleared, MSP set to initialMSP, Thread mode, PSR.T set (Thumb is
// the only mode this core executes), no active exception.
func (r *RegisterFile) Reset(initialMSP uint32) {
	*r = RegisterFile{}
	r.msp = initialMSP
	r.Mode = ModeThread
	r.psr = bits.SetBit(0, psrTShift, true)
}

// activeSP reports which banked stack pointer is live, per invariant 3:
// PSP when in Thread mode with CONTROL.SPSEL set, otherwise MSP.
func (r *RegisterFile) activeSP() *uint32 {
	if r.Mode == ModeThread && r.Control.SPSel {
		return &r.psp
	}
	return &r.msp
}

// GetR returns the architectural value of a register read, including the
// PC's pipelined +4 read per spec.md 4.B.
func (r *RegisterFile) GetR(reg Reg) uint32 {
	switch {
	case reg <= R12:
		return r.R[reg]
	case reg == SP:
		return *r.activeSP()
	case reg == LR:
		return r.lr
	case reg == PC:
		return r.pc + 4
	}
	return 0
}

// SetR writes a register on the normal (non-branch) path. Writing PC here
// is a programming error in this simulator; branches must go through
// BranchWritePC/BXWritePC/BLXWritePC/LoadWritePC.
func (r *RegisterFile) SetR(reg Reg, value uint32) {
	switch {
	case reg <= R12:
		r.R[reg] = value
	case reg == SP:
		*r.activeSP() = value &^ 0x3
	case reg == LR:
		r.lr = value
	case reg == PC:
		panic("cpu: direct write to PC; use a *_write_pc helper")
	}
}

// RawPC returns the actual fetch address (no +4 pipeline bias), used by
// the driver/decoder and by fault reporting.
func (r *RegisterFile) RawPC() uint32 { return r.pc }

// SetRawPC sets the actual fetch address directly, bypassing interworking
// rules. Used only by reset and by the driver's debugger-adapter writes.
func (r *RegisterFile) SetRawPC(value uint32) { r.pc = value &^ 1 }

// MSP / PSP direct accessors, used by exception entry/return (component F)
// which must target "the other" stack irrespective of CONTROL.SPSEL.
func (r *RegisterFile) MSP() uint32     { return r.msp }
func (r *RegisterFile) SetMSP(v uint32) { r.msp = v &^ 0x3 }
func (r *RegisterFile) PSP() uint32     { return r.psp }
func (r *RegisterFile) SetPSP(v uint32) { r.psp = v &^ 0x3 }

// ActiveSPValue reads whichever stack is currently live, for PUSH/POP/SP-relative addressing.
func (r *RegisterFile) ActiveSPValue() uint32 { return *r.activeSP() }

// SetActiveSPValue writes whichever stack is currently live.
func (r *RegisterFile) SetActiveSPValue(v uint32) { *r.activeSP() = v &^ 0x3 }

// BranchWritePC implements the ARM ARM's BranchWritePC: the target always
// stays in Thumb state, bit 0 is ignored.
func (r *RegisterFile) BranchWritePC(addr uint32) {
	r.pc = addr &^ 1
}

// BXWritePC implements interworking branch-exchange semantics: bit 0
// selects Thumb (must be 1 in this core; clearing it raises InvState,
// surfaced by the executor, not here) and the magic EXC_RETURN pattern
// (top byte 0xFF) is handled by the exception controller, not here.
func (r *RegisterFile) BXWritePC(addr uint32) (thumb bool) {
	thumb = addr&1 == 1
	r.pc = addr &^ 1
	return thumb
}

// BLXWritePC implements the BLX-immediate target-address write. Per
// spec.md 9's Open Question, LR is computed by the caller using the ARM
// ARM's (return_addr | 1) form, not the legacy ((pc-2)>>1<<1)|1 form.
func (r *RegisterFile) BLXWritePC(addr uint32) {
	r.pc = addr &^ 1
}

// LoadWritePC implements the load-to-PC interworking rule used by
// POP{...,PC} and LDR Rd,[...] when Rd==PC.
func (r *RegisterFile) LoadWritePC(addr uint32) (thumb bool) {
	return r.BXWritePC(addr)
}

// PSR flag accessors. Indices into IT bits follow spec.md 3's packing:
// bits 15..10 and 26..25.

func (r *RegisterFile) N() bool { return bits.Bit(r.psr, psrNShift) }
func (r *RegisterFile) Z() bool { return bits.Bit(r.psr, psrZShift) }
func (r *RegisterFile) C() bool { return bits.Bit(r.psr, psrCShift) }
func (r *RegisterFile) V() bool { return bits.Bit(r.psr, psrVShift) }
func (r *RegisterFile) Q() bool { return bits.Bit(r.psr, psrQShift) }
func (r *RegisterFile) T() bool { return bits.Bit(r.psr, psrTShift) }

// PSRValue returns the combined APSR/IPSR/EPSR word, for MRS's PSR-wide
// reads. The IT bits and exception number live here too, per spec.md 3's
// packing; MRS variants mask out what each SYSm selector excludes.
func (r *RegisterFile) PSRValue() uint32 { return r.psr }

// RestorePSR writes the combined PSR word back wholesale -- used by
// exception return (unstacking xPSR) and by the debugger adapter's
// write_registers, both of which supply a complete, already-valid word
// rather than updating one flag at a time.
func (r *RegisterFile) RestorePSR(v uint32) {
	r.psr = v
	r.ITState = r.PackedITBits()
}

func (r *RegisterFile) SetN(v bool) { r.psr = bits.SetBit(r.psr, psrNShift, v) }
func (r *RegisterFile) SetZ(v bool) { r.psr = bits.SetBit(r.psr, psrZShift, v) }
func (r *RegisterFile) SetC(v bool) { r.psr = bits.SetBit(r.psr, psrCShift, v) }
func (r *RegisterFile) SetV(v bool) { r.psr = bits.SetBit(r.psr, psrVShift, v) }
func (r *RegisterFile) SetQ(v bool) { r.psr = bits.SetBit(r.psr, psrQShift, v) }
func (r *RegisterFile) SetT(v bool) { r.psr = bits.SetBit(r.psr, psrTShift, v) }

// SetNZ is the common case: update N,Z from a result, leaving C/V alone.
func (r *RegisterFile) SetNZ(result uint32) {
	r.SetN(int32(result) < 0)
	r.SetZ(result == 0)
}

// SetNZCV updates all four arithmetic flags at once, as produced by
// AddWithCarry-backed operations.
func (r *RegisterFile) SetNZCV(result uint32, carry, overflow bool) {
	r.SetNZ(result)
	r.SetC(carry)
	r.SetV(overflow)
}

func (r *RegisterFile) GE(n int) bool { return bits.Bit(r.psr, uint(psrGEShift+n)) }
func (r *RegisterFile) SetGE(n int, v bool) {
	r.psr = bits.SetBit(r.psr, uint(psrGEShift+n), v)
}

// ExceptionNumber is the PSR's low 9 bits (IPSR).
func (r *RegisterFile) ExceptionNumber() int {
	return int(r.psr & excNumMask)
}

func (r *RegisterFile) SetExceptionNumber(n int) {
	r.psr = (r.psr &^ excNumMask) | (uint32(n) & excNumMask)
}

// PackedITBits returns the PSR's 8-bit IT field reassembled from its two
// split locations (bits 26:25 hold IT[1:0], bits 15:10 hold IT[7:2]).
func (r *RegisterFile) PackedITBits() uint8 {
	hi := bits.Bits(r.psr, 26, 25)
	lo := bits.Bits(r.psr, 15, 10)
	return uint8(lo<<2 | hi)
}

// SetPackedITBits writes the 8-bit IT field back into its split PSR
// location and refreshes the hot-path ITState mirror.
func (r *RegisterFile) SetPackedITBits(v uint8) {
	r.psr = bits.SetBits(r.psr, 26, 25, uint32(v&0b11))
	r.psr = bits.SetBits(r.psr, 15, 10, uint32(v>>2))
	r.ITState = v
}

// InITBlock reports whether an IT block is currently active.
func (r *RegisterFile) InITBlock() bool {
	return r.ITState&0xF != 0
}

// LastInITBlock reports whether the current instruction is the final one
// governed by the active IT block (mask's low nibble is exactly 0b1000
// after normalization), used to reject an illegal non-final branch.
func (r *RegisterFile) LastInITBlock() bool {
	return r.ITState&0xF == 0x8
}

// CurrentCond returns the condition that gates the current instruction
// when inside an IT block, per spec.md 4.I step 1.
func (r *RegisterFile) CurrentCond() Cond {
	return Cond(r.ITState >> 4)
}

// AdvanceIT shifts itstate by one nibble per spec.md invariant 6,
// clearing it entirely once the block is exhausted.
func (r *RegisterFile) AdvanceIT() {
	if r.ITState&0x7 == 0 {
		r.SetPackedITBits(0)
		return
	}
	newState := (r.ITState & 0xE0) | ((r.ITState << 1) & 0x1F)
	r.SetPackedITBits(newState)
}

// ConditionPassed evaluates an arbitrary condition code against the
// current flags, per the ARM ARM's ConditionPassed pseudocode.
func (r *RegisterFile) ConditionPassed(c Cond) bool {
	var result bool
	switch c >> 1 {
	case 0b000:
		result = r.Z()
	case 0b001:
		result = r.C()
	case 0b010:
		result = r.N()
	case 0b011:
		result = r.V()
	case 0b100:
		result = r.C() && !r.Z()
	case 0b101:
		result = r.N() == r.V()
	case 0b110:
		result = r.N() == r.V() && !r.Z()
	case 0b111:
		return true
	}
	if c&1 == 1 && c != CondAL && c != CondNV {
		result = !result
	}
	return result
}

// ResolveSetFlags turns a SetFlags policy into a concrete bool, resolving
// NotInITBlock against the live IT state.
func (r *RegisterFile) ResolveSetFlags(s SetFlags) bool {
	switch s {
	case SetFlagsTrue:
		return true
	case SetFlagsFalse:
		return false
	default: // SetFlagsNotInITBlock
		return !r.InITBlock()
	}
}

// DoubleReg pairs two adjacent single-precision extension registers as a
// little-endian double, per spec.md 4.B.
func (r *RegisterFile) DoubleReg(d uint32) uint64 {
	lo := uint64(r.ExtReg[2*d])
	hi := uint64(r.ExtReg[2*d+1])
	return hi<<32 | lo
}

func (r *RegisterFile) SetDoubleReg(d uint32, v uint64) {
	r.ExtReg[2*d] = uint32(v)
	r.ExtReg[2*d+1] = uint32(v >> 32)
}
