/*
 * cortexm - Executor: branches, interworking, and table-branch dispatch.
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

// isExcReturn reports the EXC_RETURN magic pattern: top byte 0xFF,
// distinguishing a BX/POP-to-PC exception return from an ordinary
// interworking branch. The driver's exception-return unstacking logic
// consumes this, not the executor.
func isExcReturn(addr uint32) bool {
	return addr>>24 == 0xFF
}

func (p *Processor) executeBranch(instr Instruction) (branched bool, fault *Fault) {
	r := &p.Regs
	switch instr.Kind {
	case KindB:
		pp := instr.Params.(CondBranchParams)
		target := uint32(int32(r.GetR(PC)) + pp.Imm32)
		r.BranchWritePC(target)
		return true, nil
	case KindBL:
		pp := instr.Params.(CondBranchParams)
		returnAddr := r.RawPC() + instrSize(instr) | 1
		target := uint32(int32(r.GetR(PC)) + pp.Imm32)
		r.SetR(LR, returnAddr)
		r.BranchWritePC(target)
		return true, nil
	case KindBX:
		pp := instr.Params.(Reg3ShiftParams)
		addr := r.GetR(pp.Rm)
		if isExcReturn(addr) {
			p.ExcReturn = addr
			return true, nil
		}
		thumb := r.BXWritePC(addr)
		if !thumb {
			return false, &Fault{Kind: FaultInvState}
		}
		return true, nil
	case KindBLX:
		pp := instr.Params.(Reg3ShiftParams)
		addr := r.GetR(pp.Rm)
		returnAddr := r.RawPC() + instrSize(instr) | 1
		r.SetR(LR, returnAddr)
		thumb := r.BXWritePC(addr)
		if !thumb {
			return false, &Fault{Kind: FaultInvState}
		}
		return true, nil
	case KindCBZ:
		pp := instr.Params.(CBZParams)
		if r.GetR(pp.Rn) == 0 {
			r.BranchWritePC(r.GetR(PC) + pp.Imm32)
			return true, nil
		}
		return false, nil
	case KindCBNZ:
		pp := instr.Params.(CBZParams)
		if r.GetR(pp.Rn) != 0 {
			r.BranchWritePC(r.GetR(PC) + pp.Imm32)
			return true, nil
		}
		return false, nil
	case KindTBB:
		pp := instr.Params.(TableBranchParams)
		addr := r.GetR(pp.Rn) + r.GetR(pp.Rm)
		v, err := p.Bus.ReadU8(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		r.BranchWritePC(r.GetR(PC) + 2*uint32(v))
		return true, nil
	case KindTBH:
		pp := instr.Params.(TableBranchParams)
		addr := r.GetR(pp.Rn) + 2*r.GetR(pp.Rm)
		v, err := p.Bus.ReadU16(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		r.BranchWritePC(r.GetR(PC) + 2*uint32(v))
		return true, nil
	}
	return false, &Fault{Kind: FaultUndefInstr}
}

// instrSize returns the encoded width in bytes, used for LR's link-back
// address computation (the ARM ARM's "Thumb_PC + 2/4" wording predates
// PC's own pipelined +4 bias, which GetR already applied).
func instrSize(instr Instruction) uint32 {
	if instr.Thumb32 {
		return 4
	}
	return 2
}
