/*
 * cortexm - Instruction model: a closed tagged union over every supported
 * Thumb/Thumb-2 opcode.
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

// Kind discriminates the variants of Instruction. Go has no native sum
// type, so the tagged union is rendered as a uint16 enum plus an
// opaque Params field populated at decode time with the variant's own
// parameter struct below -- never a class hierarchy.
type Kind uint16

const (
	KindUDF Kind = iota
	KindSVC
	KindBKPT

	// Data processing, register/immediate shared shape.
	KindANDReg
	KindANDImm
	KindEORReg
	KindEORImm
	KindORRReg
	KindORRImm
	KindORNReg
	KindORNImm
	KindBICReg
	KindBICImm
	KindMOVReg
	KindMOVImm
	KindMOVT
	KindMVNReg
	KindMVNImm
	KindTSTReg
	KindTSTImm
	KindTEQReg
	KindTEQImm

	KindADDReg
	KindADDImm
	KindADDSPImm
	KindADDSPReg
	KindADCReg
	KindADCImm
	KindSUBReg
	KindSUBImm
	KindSUBSPImm
	KindSBCReg
	KindSBCImm
	KindRSBReg
	KindRSBImm
	KindCMPReg
	KindCMPImm
	KindCMNReg
	KindCMNImm
	KindADR

	KindLSLImm
	KindLSLReg
	KindLSRImm
	KindLSRReg
	KindASRImm
	KindASRReg
	KindRORReg
	KindRRX

	KindMUL
	KindMLA
	KindMLS
	KindSMULL
	KindUMULL
	KindSMLAL
	KindUMLAL
	KindSDIV
	KindUDIV

	KindCLZ
	KindRBIT
	KindREV
	KindREV16
	KindREVSH
	KindSXTB
	KindSXTH
	KindUXTB
	KindUXTH
	KindBFC
	KindBFI
	KindSBFX
	KindUBFX

	KindLDR
	KindLDRB
	KindLDRH
	KindLDRSB
	KindLDRSH
	KindLDRLiteral
	KindLDRD
	KindSTR
	KindSTRB
	KindSTRH
	KindSTRD
	KindLDREX
	KindSTREX

	KindLDM
	KindSTM
	KindPUSH
	KindPOP

	KindB
	KindBCond
	KindBL
	KindBLX
	KindBX
	KindCBZ
	KindCBNZ
	KindTBB
	KindTBH

	KindIT
	KindNOP
	KindYIELD
	KindWFE
	KindWFI
	KindSEV
	KindCPS
	KindMRS
	KindMSR
	KindDMB
	KindDSB
	KindISB

	KindVMOV
	KindVADD
	KindVSUB
	KindVLDR
	KindVSTR
	KindVCMP
	KindVCVT
	KindVMRS
)

// SetFlags resolves whether an instruction updates condition flags.
// NotInITBlock is resolved by the executor at run time: true iff the
// instruction executes outside a (non-empty) IT block.
type SetFlags int

const (
	SetFlagsFalse SetFlags = iota
	SetFlagsTrue
	SetFlagsNotInITBlock
)

// Imm32Carry is produced by decode-time expansion of a modified immediate
// field. NoCarry instructions never read the carry the rotate would have
// produced; Carry instructions precompute both because the executor
// resolves which one applies from the *current* carry flag.
type Imm32Carry struct {
	HasCarry   bool
	Imm32      uint32 // used when !HasCarry
	C0         uint32 // expansion assuming incoming carry = 0
	C1         uint32 // expansion assuming incoming carry = 1
	CarryOut0  bool   // carry-out produced alongside C0
	CarryOut1  bool   // carry-out produced alongside C1
}

// Resolve picks the correct expansion given the processor's current carry
// flag, per the ARM ARM's Imm32_C rule for MOV/MVN/AND/BIC/ORR/ORN/TST/TEQ.
func (c Imm32Carry) Resolve(carryIn bool) uint32 {
	if !c.HasCarry {
		return c.Imm32
	}
	if carryIn {
		return c.C1
	}
	return c.C0
}

// ResolveCarry returns the carry-out the expansion produces, used by the
// logical family's setflags path. Instructions with !HasCarry never read
// this value; the immediate leaves the carry flag untouched.
func (c Imm32Carry) ResolveCarry(carryIn bool) bool {
	if carryIn {
		return c.CarryOut1
	}
	return c.CarryOut0
}

// Reg3ShiftParams covers the common Rd, Rn, Rm [,shift] data-processing shape.
type Reg3ShiftParams struct {
	Rd, Rn, Rm Reg
	SetFlags   SetFlags
	ShiftT     bits.SRType
	ShiftN     uint
}

// Reg2ImmParams covers Rd, Rn, #imm32 data-processing with a plain (non
// carry-producing) immediate.
type Reg2ImmParams struct {
	Rd, Rn   Reg
	Imm32    uint32
	SetFlags SetFlags
}

// Reg2ImmCarryParams covers Rd, Rn, #imm with a modified immediate whose
// expansion may affect the carry flag (MOV/MVN/AND/BIC/ORR/ORN/TST/TEQ).
type Reg2ImmCarryParams struct {
	Rd, Rn   Reg
	Imm32    Imm32Carry
	SetFlags SetFlags
}

// CondBranchParams covers the conditional/unconditional branch immediate
// encodings (B T1/T3/T4, BL).
type CondBranchParams struct {
	Cond  Cond
	Imm32 int32
}

// RegImmShiftOnlyParams covers the single-register shift-by-immediate
// encodings (LSL/LSR/ASR/ROR/RRX on Rm, no Rn).
type RegImmShiftOnlyParams struct {
	Rd, Rm   Reg
	SetFlags SetFlags
	ShiftT   bits.SRType
	ShiftN   uint
}

// Reg3FullParams covers load/store single-register addressing: base Rn,
// optional shifted-register or immediate offset folded into an already
// resolved address composition (index/add/wback describe the addressing
// mode; Imm and Rm are mutually exclusive, selected by UseReg).
type Reg3FullParams struct {
	Rt, Rn, Rm Reg
	Rt2        Reg // second destination/source register, LDRD/STRD only
	UseReg     bool
	Imm32      uint32
	Index      bool
	Add        bool
	Wback      bool
	ShiftT     bits.SRType
	ShiftN     uint
}

// LoadAndStoreMultipleParams covers LDM/STM/PUSH/POP register lists.
type LoadAndStoreMultipleParams struct {
	Rn        Reg
	Registers uint16 // bitmask, bit n => register n
	Wback     bool
	IncrementBefore bool // true for STMDB/LDMDB ("full descending"), false for IA
}

// TableBranchParams covers TBB/TBH.
type TableBranchParams struct {
	Rn, Rm  Reg
	IsHalf  bool
}

// MulParams covers MUL/MLA/MLS/SMULL/UMULL/SMLAL/UMLAL/SDIV/UDIV.
type MulParams struct {
	RdLo, RdHi, Rn, Rm Reg
	SetFlags           SetFlags
}

// MiscUnaryParams covers CLZ/RBIT/REV/REV16/REVSH/SXT*/UXT* and the rotate
// applied before sign/zero extension.
type MiscUnaryParams struct {
	Rd, Rm Reg
	Rotate uint
}

// BitfieldParams covers BFC/BFI/SBFX/UBFX.
type BitfieldParams struct {
	Rd, Rn    Reg
	Lsbit     uint
	Msbit     uint
	IsInsert  bool
}

// ITParams covers the IT instruction: the 4-bit base condition and the
// x/y/z mask, from which itstate is rebuilt.
type ITParams struct {
	FirstCond Cond
	Mask      uint8
}

// MiscSystemParams covers MRS/MSR/CPS/DMB/DSB/ISB, whose operand is a
// system register or a barrier option rather than a GP register.
type MiscSystemParams struct {
	Rd, Rn Reg
	SysReg uint32
	Option uint32
	Enable bool // CPS: true = CPSIE, false = CPSID
	AffectI, AffectF bool
}

// BkptParams carries the raw 8-bit immediate; 0xAB is the semihosting trap.
type BkptParams struct {
	Imm8 uint32
}

// CBZParams covers CBZ/CBNZ.
type CBZParams struct {
	Rn    Reg
	Imm32 uint32
}

// FPRegParams covers VMOV/VADD/VSUB/VCMP between single-precision registers.
type FPRegParams struct {
	Sd, Sn, Sm uint32
	DoubleWord bool
}

// FPMemParams covers VLDR/VSTR.
type FPMemParams struct {
	Sd    uint32
	Rn    Reg
	Imm32 uint32
	Add   bool
}

// UDFParams preserves the raw encoding of an unallocated opcode for
// diagnostics, per spec.md's decode round-trip property.
type UDFParams struct {
	Raw     uint32
	Thumb32 bool
}

// SVCParams carries the SVC immediate (unused semantically by this core;
// SVC always raises the SVCall exception).
type SVCParams struct {
	Imm8 uint32
}

// Instruction is the decoder's sole output type and the executor's sole
// input type.
type Instruction struct {
	Kind    Kind
	Thumb32 bool
	Params  any
}
