/*
 * cortexm - Executor: data processing, shifts, multiply/divide, and the
 * unary bit-manipulation family.
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

// regOperand resolves a shifted-register operand plus the carry the
// shift produced, consumed by the logical-register family.
func (p *Processor) regOperand(rm Reg, ty bits.SRType, n uint) (uint32, bool) {
	r := &p.Regs
	return bits.ShiftC(r.GetR(rm), ty, n, r.C())
}

func (p *Processor) executeDataProcessing(instr Instruction) *Fault {
	r := &p.Regs
	switch instr.Kind {
	case KindANDReg, KindEORReg, KindORRReg, KindORNReg, KindBICReg, KindMOVReg, KindMVNReg, KindTSTReg, KindTEQReg:
		return p.executeLogicalReg(instr)
	case KindANDImm, KindEORImm, KindORRImm, KindORNImm, KindBICImm, KindMOVImm, KindMVNImm, KindTSTImm, KindTEQImm:
		return p.executeLogicalImm(instr)
	case KindMOVT:
		pp := instr.Params.(Reg2ImmParams)
		cur := r.GetR(pp.Rd)
		r.SetR(pp.Rd, (pp.Imm32<<16)|(cur&0xFFFF))
		return nil
	case KindADDReg, KindADCReg, KindSUBReg, KindSBCReg, KindRSBReg, KindCMPReg, KindCMNReg, KindADDSPReg:
		return p.executeArithReg(instr)
	case KindADDImm, KindADCImm, KindSUBImm, KindSBCImm, KindRSBImm, KindCMPImm, KindCMNImm, KindADDSPImm, KindSUBSPImm:
		return p.executeArithImm(instr)
	case KindADR:
		pp := instr.Params.(Reg2ImmParams)
		r.SetR(pp.Rd, r.GetR(PC)&^0x3+pp.Imm32)
		return nil
	}
	return &Fault{Kind: FaultUndefInstr}
}

func (p *Processor) executeLogicalReg(instr Instruction) *Fault {
	r := &p.Regs
	pp := instr.Params.(Reg3ShiftParams)
	shifted, carry := p.regOperand(pp.Rm, pp.ShiftT, pp.ShiftN)
	var result uint32
	switch instr.Kind {
	case KindANDReg, KindTSTReg:
		result = r.GetR(pp.Rn) & shifted
	case KindEORReg, KindTEQReg:
		result = r.GetR(pp.Rn) ^ shifted
	case KindORRReg:
		result = r.GetR(pp.Rn) | shifted
	case KindORNReg:
		result = r.GetR(pp.Rn) | ^shifted
	case KindBICReg:
		result = r.GetR(pp.Rn) &^ shifted
	case KindMOVReg:
		result = shifted
	case KindMVNReg:
		result = ^shifted
	}
	if instr.Kind != KindTSTReg && instr.Kind != KindTEQReg {
		r.SetR(pp.Rd, result)
	}
	if r.ResolveSetFlags(pp.SetFlags) {
		r.SetNZ(result)
		r.SetC(carry)
	}
	return nil
}

func (p *Processor) executeLogicalImm(instr Instruction) *Fault {
	r := &p.Regs
	pp := instr.Params.(Reg2ImmCarryParams)
	imm := pp.Imm32.Resolve(r.C())
	var result uint32
	switch instr.Kind {
	case KindANDImm, KindTSTImm:
		result = r.GetR(pp.Rn) & imm
	case KindEORImm, KindTEQImm:
		result = r.GetR(pp.Rn) ^ imm
	case KindORRImm:
		result = r.GetR(pp.Rn) | imm
	case KindORNImm:
		result = r.GetR(pp.Rn) | ^imm
	case KindBICImm:
		result = r.GetR(pp.Rn) &^ imm
	case KindMOVImm:
		result = imm
	case KindMVNImm:
		result = ^imm
	}
	if instr.Kind != KindTSTImm && instr.Kind != KindTEQImm {
		r.SetR(pp.Rd, result)
	}
	if r.ResolveSetFlags(pp.SetFlags) {
		r.SetNZ(result)
		if pp.Imm32.HasCarry {
			r.SetC(pp.Imm32.ResolveCarry(r.C()))
		}
	}
	return nil
}

func (p *Processor) executeArithReg(instr Instruction) *Fault {
	r := &p.Regs
	pp := instr.Params.(Reg3ShiftParams)
	op2 := bits.Shift(r.GetR(pp.Rm), pp.ShiftT, pp.ShiftN, r.C())
	return p.doArith(instr.Kind, pp.Rd, pp.Rn, op2, pp.SetFlags)
}

func (p *Processor) executeArithImm(instr Instruction) *Fault {
	pp := instr.Params.(Reg2ImmParams)
	return p.doArith(instr.Kind, pp.Rd, pp.Rn, pp.Imm32, pp.SetFlags)
}

// doArith implements the ADD/ADC/SUB/SBC/RSB/CMP/CMN family through
// AddWithCarry, matching the ARM ARM's framing of subtraction as
// addition of the complement with carry-in forced to 1.
func (p *Processor) doArith(kind Kind, rd, rn Reg, op2 uint32, sf SetFlags) *Fault {
	r := &p.Regs
	x := r.GetR(rn)
	var result uint32
	var carry, overflow bool
	var writeResult bool = true
	switch kind {
	case KindADDReg, KindADDImm, KindADDSPReg, KindADDSPImm:
		result, carry, overflow = bits.AddWithCarry(x, op2, false)
	case KindADCReg, KindADCImm:
		result, carry, overflow = bits.AddWithCarry(x, op2, r.C())
	case KindSUBReg, KindSUBImm, KindSUBSPImm:
		result, carry, overflow = bits.AddWithCarry(x, ^op2, true)
	case KindSBCReg, KindSBCImm:
		result, carry, overflow = bits.AddWithCarry(x, ^op2, r.C())
	case KindRSBReg, KindRSBImm:
		result, carry, overflow = bits.AddWithCarry(^x, op2, true)
	case KindCMPReg, KindCMPImm:
		result, carry, overflow = bits.AddWithCarry(x, ^op2, true)
		writeResult = false
	case KindCMNReg, KindCMNImm:
		result, carry, overflow = bits.AddWithCarry(x, op2, false)
		writeResult = false
	}
	if writeResult {
		r.SetR(rd, result)
	}
	if !writeResult || r.ResolveSetFlags(sf) {
		r.SetNZCV(result, carry, overflow)
	}
	return nil
}

func (p *Processor) executeShift(instr Instruction) *Fault {
	r := &p.Regs
	switch instr.Kind {
	case KindLSLReg, KindLSRReg, KindASRReg, KindRORReg:
		pp := instr.Params.(Reg3ShiftParams)
		amount := r.GetR(pp.Rm) & 0xFF
		ty := bits.SRLSL
		switch instr.Kind {
		case KindLSRReg:
			ty = bits.SRLSR
		case KindASRReg:
			ty = bits.SRASR
		case KindRORReg:
			ty = bits.SRROR
		}
		result, carry := bits.ShiftC(r.GetR(pp.Rn), ty, uint(amount), r.C())
		r.SetR(pp.Rd, result)
		if r.ResolveSetFlags(pp.SetFlags) {
			r.SetNZ(result)
			r.SetC(carry)
		}
	default: // LSL/LSR/ASR/ROR/RRX immediate
		pp := instr.Params.(RegImmShiftOnlyParams)
		result, carry := bits.ShiftC(r.GetR(pp.Rm), pp.ShiftT, pp.ShiftN, r.C())
		r.SetR(pp.Rd, result)
		if r.ResolveSetFlags(pp.SetFlags) {
			r.SetNZ(result)
			r.SetC(carry)
		}
	}
	return nil
}

func (p *Processor) executeMultiply(instr Instruction) *Fault {
	r := &p.Regs
	pp := instr.Params.(MulParams)
	switch instr.Kind {
	case KindMUL:
		// Decoder stores the destination in RdLo and leaves RdHi the
		// zero value for the 2-operand forms (MUL/SDIV/UDIV).
		result := r.GetR(pp.Rn) * r.GetR(pp.Rm)
		r.SetR(pp.RdLo, result)
		if r.ResolveSetFlags(pp.SetFlags) {
			r.SetNZ(result)
		}
	case KindMLA:
		// RdHi carries the accumulate register Ra here, per the T1 MLA
		// encoding's Rd/Rn/Rm/Ra layout.
		result := r.GetR(pp.Rn)*r.GetR(pp.Rm) + r.GetR(pp.RdHi)
		r.SetR(pp.RdLo, result)
	case KindMLS:
		result := r.GetR(pp.RdHi) - r.GetR(pp.Rn)*r.GetR(pp.Rm)
		r.SetR(pp.RdLo, result)
	case KindSMULL:
		result := int64(int32(r.GetR(pp.Rn))) * int64(int32(r.GetR(pp.Rm)))
		r.SetR(pp.RdLo, uint32(result))
		r.SetR(pp.RdHi, uint32(result>>32))
	case KindUMULL:
		result := uint64(r.GetR(pp.Rn)) * uint64(r.GetR(pp.Rm))
		r.SetR(pp.RdLo, uint32(result))
		r.SetR(pp.RdHi, uint32(result>>32))
	case KindSMLAL:
		acc := int64(uint64(r.GetR(pp.RdHi))<<32 | uint64(r.GetR(pp.RdLo)))
		acc += int64(int32(r.GetR(pp.Rn))) * int64(int32(r.GetR(pp.Rm)))
		r.SetR(pp.RdLo, uint32(acc))
		r.SetR(pp.RdHi, uint32(acc>>32))
	case KindUMLAL:
		acc := uint64(r.GetR(pp.RdHi))<<32 | uint64(r.GetR(pp.RdLo))
		acc += uint64(r.GetR(pp.Rn)) * uint64(r.GetR(pp.Rm))
		r.SetR(pp.RdLo, uint32(acc))
		r.SetR(pp.RdHi, uint32(acc>>32))
	case KindSDIV:
		n, d := int32(r.GetR(pp.Rn)), int32(r.GetR(pp.Rm))
		if d == 0 {
			if p.DivZeroTrap {
				return &Fault{Kind: FaultDivByZero}
			}
			r.SetR(pp.RdLo, 0)
			return nil
		}
		r.SetR(pp.RdLo, uint32(n/d))
	case KindUDIV:
		n, d := r.GetR(pp.Rn), r.GetR(pp.Rm)
		if d == 0 {
			if p.DivZeroTrap {
				return &Fault{Kind: FaultDivByZero}
			}
			r.SetR(pp.RdLo, 0)
			return nil
		}
		r.SetR(pp.RdLo, n/d)
	}
	return nil
}

func (p *Processor) executeMiscUnary(instr Instruction) *Fault {
	r := &p.Regs
	pp := instr.Params.(MiscUnaryParams)
	rm := r.GetR(pp.Rm)
	switch instr.Kind {
	case KindCLZ:
		r.SetR(pp.Rd, uint32(clz32(rm)))
	case KindRBIT:
		r.SetR(pp.Rd, rbit32(rm))
	case KindREV:
		r.SetR(pp.Rd, rev32(rm))
	case KindREV16:
		r.SetR(pp.Rd, rev16(rm))
	case KindREVSH:
		v := rev16(rm & 0xFFFF)
		r.SetR(pp.Rd, bits.SignExtend(v, 16))
	case KindSXTB:
		rot := bits.Ror(rm, pp.Rotate)
		r.SetR(pp.Rd, bits.SignExtend(rot, 8))
	case KindSXTH:
		rot := bits.Ror(rm, pp.Rotate)
		r.SetR(pp.Rd, bits.SignExtend(rot, 16))
	case KindUXTB:
		rot := bits.Ror(rm, pp.Rotate)
		r.SetR(pp.Rd, rot&0xFF)
	case KindUXTH:
		rot := bits.Ror(rm, pp.Rotate)
		r.SetR(pp.Rd, rot&0xFFFF)
	}
	return nil
}

func (p *Processor) executeBitfield(instr Instruction) *Fault {
	r := &p.Regs
	pp := instr.Params.(BitfieldParams)
	switch instr.Kind {
	case KindBFC:
		width := pp.Msbit - pp.Lsbit + 1
		mask := (uint32(1)<<width - 1) << pp.Lsbit
		r.SetR(pp.Rd, r.GetR(pp.Rd)&^mask)
	case KindBFI:
		width := pp.Msbit - pp.Lsbit + 1
		mask := (uint32(1)<<width - 1) << pp.Lsbit
		src := (r.GetR(pp.Rn) << pp.Lsbit) & mask
		r.SetR(pp.Rd, (r.GetR(pp.Rd)&^mask)|src)
	case KindSBFX:
		width := pp.Msbit - pp.Lsbit + 1
		extracted := bits.Bits(r.GetR(pp.Rn), pp.Msbit, pp.Lsbit)
		r.SetR(pp.Rd, bits.SignExtend(extracted, width))
	case KindUBFX:
		extracted := bits.Bits(r.GetR(pp.Rn), pp.Msbit, pp.Lsbit)
		r.SetR(pp.Rd, extracted)
	}
	return nil
}

func clz32(v uint32) int {
	if v == 0 {
		return 32
	}
	n := 0
	for v&0x80000000 == 0 {
		v <<= 1
		n++
	}
	return n
}

func rbit32(v uint32) uint32 {
	var result uint32
	for i := 0; i < 32; i++ {
		result = (result << 1) | (v & 1)
		v >>= 1
	}
	return result
}

func rev32(v uint32) uint32 {
	return (v>>24)&0xFF | (v>>8)&0xFF00 | (v<<8)&0xFF0000 | (v << 24)
}

func rev16(v uint32) uint32 {
	lo := v & 0xFFFF
	hi := (v >> 16) & 0xFFFF
	loR := (lo>>8)&0xFF | (lo<<8)&0xFF00
	hiR := (hi>>8)&0xFF | (hi<<8)&0xFF00
	return hiR<<16 | loR
}
