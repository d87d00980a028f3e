/*
 * cortexm - 16-bit Thumb decoder.
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

// IsThumb32 reports whether a 16-bit opcode is the first half-word of a
// 32-bit Thumb-2 instruction, per spec.md 4.D: top 5 bits in
// {0b11101, 0b11110, 0b11111}.
func IsThumb32(h uint16) bool {
	top5 := bits.Bits(uint32(h), 15, 11)
	return top5 == 0b11101 || top5 == 0b11110 || top5 == 0b11111
}

func udf16(h uint16) Instruction {
	return Instruction{Kind: KindUDF, Params: UDFParams{Raw: uint32(h)}}
}

// Decode is the pure function mapping one half-word to an Instruction,
// per spec.md 4.D. It never mutates processor state and is safe to call
// from a pre-decode cache (spec.md 4.J / 9).
func Decode(h uint16) Instruction {
	w := uint32(h)
	switch bits.Bits(w, 15, 10) {
	case 0b000000, 0b000001, 0b000010, 0b000011, 0b000100, 0b000101, 0b000110, 0b000111:
		return decodeShiftAddSub(h)
	}
	switch bits.Bits(w, 15, 13) {
	case 0b001:
		return decodeImm8(h)
	}
	if bits.Bits(w, 15, 10) == 0b010000 {
		return decodeDataProcessing(h)
	}
	if bits.Bits(w, 15, 10) == 0b010001 {
		return decodeSpecialDataBranch(h)
	}
	if bits.Bits(w, 15, 11) == 0b01001 {
		rt := Reg(bits.Bits(w, 10, 8))
		imm32 := bits.Bits(w, 7, 0) << 2
		return Instruction{Kind: KindLDRLiteral, Params: Reg3FullParams{Rt: rt, Rn: PC, Imm32: imm32, Index: true, Add: true}}
	}
	switch bits.Bits(w, 15, 12) {
	case 0b0101:
		return decodeLoadStoreReg(h)
	case 0b0110, 0b0111, 0b1000:
		return decodeLoadStoreImm(h)
	case 0b1001:
		return decodeLoadStoreSP(h)
	case 0b1010:
		return decodeAdr(h)
	case 0b1011:
		return decodeMisc16(h)
	case 0b1100:
		return decodeLoadStoreMultiple16(h)
	case 0b1101:
		return decodeCondBranchSVC(h)
	case 0b1110:
		// Unconditional branch, T2.
		imm11 := bits.Bits(w, 10, 0)
		imm32 := int32(bits.SignExtend(imm11<<1, 12))
		return Instruction{Kind: KindB, Params: CondBranchParams{Cond: CondAL, Imm32: imm32}}
	}
	return udf16(h)
}

// decodeShiftAddSub covers LSL/LSR/ASR (imm) and ADD/SUB (reg, imm3), T1.
func decodeShiftAddSub(h uint16) Instruction {
	w := uint32(h)
	op := bits.Bits(w, 13, 11)
	rd := Reg(bits.Bits(w, 2, 0))
	rn := Reg(bits.Bits(w, 5, 3))
	switch op {
	case 0b000, 0b001, 0b010: // LSL/LSR/ASR immediate
		imm5 := bits.Bits(w, 10, 6)
		var ty bits.SRType
		switch op {
		case 0b000:
			ty = bits.SRLSL
		case 0b001:
			ty = bits.SRLSR
		default:
			ty = bits.SRASR
		}
		_, n := bits.DecodeImmShift(map[bits.SRType]uint32{bits.SRLSL: 0, bits.SRLSR: 1, bits.SRASR: 2}[ty], imm5)
		kind := KindLSLImm
		if ty == bits.SRLSR {
			kind = KindLSRImm
		} else if ty == bits.SRASR {
			kind = KindASRImm
		}
		return Instruction{Kind: kind, Params: RegImmShiftOnlyParams{Rd: rd, Rm: rn, SetFlags: SetFlagsNotInITBlock, ShiftT: ty, ShiftN: n}}
	case 0b011: // ADD/SUB register or immediate
		rm := Reg(bits.Bits(w, 8, 6))
		sub := bits.Bit(w, 9)
		immForm := bits.Bit(w, 10)
		if immForm {
			imm3 := bits.Bits(w, 8, 6)
			kind := KindADDImm
			if sub {
				kind = KindSUBImm
			}
			return Instruction{Kind: kind, Params: Reg2ImmParams{Rd: rd, Rn: rn, Imm32: imm3, SetFlags: SetFlagsNotInITBlock}}
		}
		kind := KindADDReg
		if sub {
			kind = KindSUBReg
		}
		return Instruction{Kind: kind, Params: Reg3ShiftParams{Rd: rd, Rn: rn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	}
	return udf16(h)
}

// decodeImm8 covers MOV/CMP/ADD/SUB Rd,#imm8, T1/T2.
func decodeImm8(h uint16) Instruction {
	w := uint32(h)
	op := bits.Bits(w, 12, 11)
	rd := Reg(bits.Bits(w, 10, 8))
	imm8 := bits.Bits(w, 7, 0)
	switch op {
	case 0b00:
		return Instruction{Kind: KindMOVImm, Params: Reg2ImmCarryParams{Rd: rd, Imm32: Imm32Carry{Imm32: imm8}, SetFlags: SetFlagsNotInITBlock}}
	case 0b01:
		return Instruction{Kind: KindCMPImm, Params: Reg2ImmParams{Rn: rd, Imm32: imm8}}
	case 0b10:
		return Instruction{Kind: KindADDImm, Params: Reg2ImmParams{Rd: rd, Rn: rd, Imm32: imm8, SetFlags: SetFlagsNotInITBlock}}
	default:
		return Instruction{Kind: KindSUBImm, Params: Reg2ImmParams{Rd: rd, Rn: rd, Imm32: imm8, SetFlags: SetFlagsNotInITBlock}}
	}
}

// decodeDataProcessing covers the 16-bit two-register ALU block, T1.
func decodeDataProcessing(h uint16) Instruction {
	w := uint32(h)
	op := bits.Bits(w, 9, 6)
	rdn := Reg(bits.Bits(w, 2, 0))
	rm := Reg(bits.Bits(w, 5, 3))
	reg3 := func(k Kind) Instruction {
		return Instruction{Kind: k, Params: Reg3ShiftParams{Rd: rdn, Rn: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	}
	switch op {
	case 0b0000:
		return reg3(KindANDReg)
	case 0b0001:
		return reg3(KindEORReg)
	case 0b0010:
		return Instruction{Kind: KindLSLReg, Params: Reg3ShiftParams{Rd: rdn, Rn: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	case 0b0011:
		return Instruction{Kind: KindLSRReg, Params: Reg3ShiftParams{Rd: rdn, Rn: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	case 0b0100:
		return Instruction{Kind: KindASRReg, Params: Reg3ShiftParams{Rd: rdn, Rn: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	case 0b0101:
		return reg3(KindADCReg)
	case 0b0110:
		return reg3(KindSBCReg)
	case 0b0111:
		return Instruction{Kind: KindRORReg, Params: Reg3ShiftParams{Rd: rdn, Rn: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	case 0b1000:
		return Instruction{Kind: KindTSTReg, Params: Reg3ShiftParams{Rn: rdn, Rm: rm}}
	case 0b1001:
		return Instruction{Kind: KindRSBImm, Params: Reg2ImmParams{Rd: rdn, Rn: rm, Imm32: 0, SetFlags: SetFlagsNotInITBlock}}
	case 0b1010:
		return Instruction{Kind: KindCMPReg, Params: Reg3ShiftParams{Rn: rdn, Rm: rm}}
	case 0b1011:
		return Instruction{Kind: KindCMNReg, Params: Reg3ShiftParams{Rn: rdn, Rm: rm}}
	case 0b1100:
		return reg3(KindORRReg)
	case 0b1101:
		return Instruction{Kind: KindMUL, Params: MulParams{RdLo: rdn, Rn: rdn, Rm: rm}}
	case 0b1110:
		return Instruction{Kind: KindBICReg, Params: Reg3ShiftParams{Rd: rdn, Rn: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	default: // 0b1111
		return Instruction{Kind: KindMVNReg, Params: Reg3ShiftParams{Rd: rdn, Rm: rm, SetFlags: SetFlagsNotInITBlock}}
	}
}

// decodeSpecialDataBranch covers ADD/CMP/MOV with a high register operand
// and BX/BLX (register), T1.
func decodeSpecialDataBranch(h uint16) Instruction {
	w := uint32(h)
	op := bits.Bits(w, 9, 8)
	dn := Reg(bits.Bits(w, 7, 7)<<3 | bits.Bits(w, 2, 0))
	rm := Reg(bits.Bits(w, 6, 3))
	switch op {
	case 0b00:
		return Instruction{Kind: KindADDReg, Params: Reg3ShiftParams{Rd: dn, Rn: dn, Rm: rm}}
	case 0b01:
		return Instruction{Kind: KindCMPReg, Params: Reg3ShiftParams{Rn: dn, Rm: rm}}
	case 0b10:
		return Instruction{Kind: KindMOVReg, Params: Reg3ShiftParams{Rd: dn, Rm: rm}}
	default:
		if bits.Bit(w, 7) {
			return Instruction{Kind: KindBLX, Params: Reg3ShiftParams{Rm: rm}}
		}
		return Instruction{Kind: KindBX, Params: Reg3ShiftParams{Rm: rm}}
	}
}

// decodeLoadStoreReg covers the seven register-offset load/store forms, T1.
func decodeLoadStoreReg(h uint16) Instruction {
	w := uint32(h)
	op := bits.Bits(w, 11, 9)
	rm := Reg(bits.Bits(w, 8, 6))
	rn := Reg(bits.Bits(w, 5, 3))
	rt := Reg(bits.Bits(w, 2, 0))
	p := Reg3FullParams{Rt: rt, Rn: rn, Rm: rm, UseReg: true, Index: true, Add: true}
	switch op {
	case 0b000:
		return Instruction{Kind: KindSTR, Params: p}
	case 0b001:
		return Instruction{Kind: KindSTRH, Params: p}
	case 0b010:
		return Instruction{Kind: KindSTRB, Params: p}
	case 0b011:
		return Instruction{Kind: KindLDRSB, Params: p}
	case 0b100:
		return Instruction{Kind: KindLDR, Params: p}
	case 0b101:
		return Instruction{Kind: KindLDRH, Params: p}
	case 0b110:
		return Instruction{Kind: KindLDRB, Params: p}
	default:
		return Instruction{Kind: KindLDRSH, Params: p}
	}
}

// decodeLoadStoreImm covers STR/LDR/STRB/LDRB/STRH/LDRH with a 5-bit
// scaled immediate offset, T1.
func decodeLoadStoreImm(h uint16) Instruction {
	w := uint32(h)
	group := bits.Bits(w, 15, 12)
	l := bits.Bit(w, 11)
	imm5 := bits.Bits(w, 10, 6)
	rn := Reg(bits.Bits(w, 5, 3))
	rt := Reg(bits.Bits(w, 2, 0))
	base := Reg3FullParams{Rt: rt, Rn: rn, Index: true, Add: true}
	switch group {
	case 0b0110:
		base.Imm32 = imm5 << 2
		if l {
			return Instruction{Kind: KindLDR, Params: base}
		}
		return Instruction{Kind: KindSTR, Params: base}
	case 0b0111:
		base.Imm32 = imm5
		if l {
			return Instruction{Kind: KindLDRB, Params: base}
		}
		return Instruction{Kind: KindSTRB, Params: base}
	default: // 0b1000
		base.Imm32 = imm5 << 1
		if l {
			return Instruction{Kind: KindLDRH, Params: base}
		}
		return Instruction{Kind: KindSTRH, Params: base}
	}
}

// decodeLoadStoreSP covers STR/LDR Rt,[SP,#imm8*4], T1.
func decodeLoadStoreSP(h uint16) Instruction {
	w := uint32(h)
	l := bits.Bit(w, 11)
	rt := Reg(bits.Bits(w, 10, 8))
	imm32 := bits.Bits(w, 7, 0) << 2
	p := Reg3FullParams{Rt: rt, Rn: SP, Imm32: imm32, Index: true, Add: true}
	if l {
		return Instruction{Kind: KindLDR, Params: p}
	}
	return Instruction{Kind: KindSTR, Params: p}
}

// decodeAdr covers ADR (ADD Rd, PC, #imm8*4), T1.
func decodeAdr(h uint16) Instruction {
	w := uint32(h)
	rd := Reg(bits.Bits(w, 10, 8))
	imm32 := bits.Bits(w, 7, 0) << 2
	return Instruction{Kind: KindADR, Params: Reg2ImmParams{Rd: rd, Rn: PC, Imm32: imm32}}
}

// decodeLoadStoreMultiple16 covers 16-bit LDM/STM (always increment-after).
func decodeLoadStoreMultiple16(h uint16) Instruction {
	w := uint32(h)
	l := bits.Bit(w, 11)
	rn := Reg(bits.Bits(w, 10, 8))
	regList := uint16(bits.Bits(w, 7, 0))
	wback := !(l && bits.Bit(w, uint(rn))) // LDM doesn't writeback if Rn in list
	p := LoadAndStoreMultipleParams{Rn: rn, Registers: regList, Wback: wback}
	if l {
		return Instruction{Kind: KindLDM, Params: p}
	}
	return Instruction{Kind: KindSTM, Params: p}
}

// decodeCondBranchSVC covers conditional branch T1, UDF, and SVC.
func decodeCondBranchSVC(h uint16) Instruction {
	w := uint32(h)
	cond := Cond(bits.Bits(w, 11, 8))
	imm8 := bits.Bits(w, 7, 0)
	switch cond {
	case 0b1110:
		return udf16(h)
	case 0b1111:
		return Instruction{Kind: KindSVC, Params: SVCParams{Imm8: imm8}}
	default:
		imm32 := int32(bits.SignExtend(imm8<<1, 9))
		return Instruction{Kind: KindBCond, Params: CondBranchParams{Cond: cond, Imm32: imm32}}
	}
}

// decodeMisc16 covers the 16-bit "miscellaneous" space (0b1011xxxxxxxxxxxx):
// CBZ/CBNZ, PUSH/POP, hints, IT, SXT*/UXT*, REV*, BKPT, and ADD/SUB SP,#imm.
func decodeMisc16(h uint16) Instruction {
	w := uint32(h)
	if bits.Bits(w, 11, 7) == 0b00000 || bits.Bits(w, 11, 7) == 0b00001 {
		imm32 := bits.Bits(w, 6, 0) << 2
		if bits.Bit(w, 7) {
			return Instruction{Kind: KindSUBSPImm, Params: Reg2ImmParams{Rd: SP, Rn: SP, Imm32: imm32}}
		}
		return Instruction{Kind: KindADDSPImm, Params: Reg2ImmParams{Rd: SP, Rn: SP, Imm32: imm32}}
	}
	if bits.Bits(w, 11, 8) == 0b1111 && bits.Bits(w, 3, 0) != 0 {
		return Instruction{Kind: KindIT, Params: ITParams{FirstCond: Cond(bits.Bits(w, 7, 4)), Mask: uint8(bits.Bits(w, 3, 0))}}
	}
	if bits.Bits(w, 11, 9) == 0b110 {
		return Instruction{Kind: KindPOP, Params: decodePopPush(w, true)}
	}
	if bits.Bits(w, 11, 9) == 0b010 {
		return Instruction{Kind: KindPUSH, Params: decodePopPush(w, false)}
	}
	// CBZ: 1011 0 0 i1 1 imm5 rn; CBNZ: 1011 1 0 i1 1 imm5 rn.
	if bits.Bits(w, 15, 12) == 0b1011 && !bits.Bit(w, 10) && bits.Bit(w, 8) {
		nonzero := bits.Bit(w, 11)
		i := bits.Bits(w, 9, 9)
		imm5 := bits.Bits(w, 7, 3)
		rn := Reg(bits.Bits(w, 2, 0))
		imm32 := (i<<6 | imm5<<1)
		kind := KindCBZ
		if nonzero {
			kind = KindCBNZ
		}
		return Instruction{Kind: kind, Params: CBZParams{Rn: rn, Imm32: imm32}}
	}
	if bits.Bits(w, 15, 8) == 0b10110010 {
		op2 := bits.Bits(w, 7, 6)
		rm := Reg(bits.Bits(w, 5, 3))
		rd := Reg(bits.Bits(w, 2, 0))
		switch op2 {
		case 0b00:
			return Instruction{Kind: KindSXTH, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		case 0b01:
			return Instruction{Kind: KindSXTB, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		case 0b10:
			return Instruction{Kind: KindUXTH, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		default:
			return Instruction{Kind: KindUXTB, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		}
	}
	if bits.Bits(w, 15, 8) == 0b10111010 {
		op2 := bits.Bits(w, 7, 6)
		rm := Reg(bits.Bits(w, 5, 3))
		rd := Reg(bits.Bits(w, 2, 0))
		switch op2 {
		case 0b00:
			return Instruction{Kind: KindREV, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		case 0b01:
			return Instruction{Kind: KindREV16, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		case 0b11:
			return Instruction{Kind: KindREVSH, Params: MiscUnaryParams{Rd: rd, Rm: rm}}
		}
	}
	if bits.Bits(w, 15, 8) == 0b10111110 {
		return Instruction{Kind: KindBKPT, Params: BkptParams{Imm8: bits.Bits(w, 7, 0)}}
	}
	if bits.Bits(w, 15, 8) == 0b10111111 {
		switch bits.Bits(w, 7, 0) {
		case 0x00:
			return Instruction{Kind: KindNOP}
		case 0x10:
			return Instruction{Kind: KindYIELD}
		case 0x20:
			return Instruction{Kind: KindWFE}
		case 0x30:
			return Instruction{Kind: KindWFI}
		case 0x40:
			return Instruction{Kind: KindSEV}
		}
		return Instruction{Kind: KindNOP}
	}
	return udf16(h)
}

func decodePopPush(w uint32, pop bool) LoadAndStoreMultipleParams {
	regList := uint16(bits.Bits(w, 7, 0))
	if pop && bits.Bit(w, 8) {
		regList |= 1 << uint(PC)
	}
	if !pop && bits.Bit(w, 8) {
		regList |= 1 << uint(LR)
	}
	return LoadAndStoreMultipleParams{Rn: SP, Registers: regList, Wback: true}
}
