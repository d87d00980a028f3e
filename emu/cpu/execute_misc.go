/*
 * cortexm - Executor: system-register access, barriers, IT setup, and the
 * floating-point extension.
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

import "math"

// Special-register numbers (SYSm) for MRS/MSR, per the ARM ARM's table.
const (
	sysAPSR      = 0
	sysIAPSR     = 1
	sysEAPSR     = 2
	sysPSR       = 3
	sysMSP       = 8
	sysPSP       = 9
	sysPRIMASK   = 16
	sysBASEPRI   = 17
	sysFAULTMASK = 19
	sysCONTROL   = 20
)

func (p *Processor) executeMiscSystem(instr Instruction) (branched bool, fault *Fault) {
	r := &p.Regs
	switch instr.Kind {
	case KindIT:
		pp := instr.Params.(ITParams)
		r.SetPackedITBits(uint8(pp.FirstCond)<<4 | pp.Mask)
		return false, nil
	case KindCPS:
		pp := instr.Params.(MiscSystemParams)
		if pp.AffectI {
			r.Primask = !pp.Enable
		}
		if pp.AffectF {
			r.Faultmask = !pp.Enable
		}
		return false, nil
	case KindMRS:
		pp := instr.Params.(MiscSystemParams)
		r.SetR(pp.Rd, p.readSysReg(pp.SysReg))
		return false, nil
	case KindMSR:
		pp := instr.Params.(MiscSystemParams)
		p.writeSysReg(pp.SysReg, r.GetR(pp.Rn))
		return false, nil
	case KindDMB, KindDSB, KindISB:
		// No-ops: the simulator has one core, one memory ordering domain,
		// and no pipeline to flush.
		return false, nil
	}
	return false, &Fault{Kind: FaultUndefInstr}
}

func (p *Processor) readSysReg(sysm uint32) uint32 {
	r := &p.Regs
	switch sysm {
	case sysAPSR:
		return r.PSRValue() & 0xF8000000
	case sysIAPSR:
		return (r.PSRValue() & 0xF8000000) | uint32(r.ExceptionNumber())
	case sysEAPSR:
		return r.PSRValue() &^ 0x1FF
	case sysPSR:
		return r.PSRValue()
	case sysMSP:
		return r.MSP()
	case sysPSP:
		return r.PSP()
	case sysPRIMASK:
		if r.Primask {
			return 1
		}
		return 0
	case sysBASEPRI:
		return uint32(r.Basepri)
	case sysFAULTMASK:
		if r.Faultmask {
			return 1
		}
		return 0
	case sysCONTROL:
		v := uint32(0)
		if r.Control.NPriv {
			v |= 1
		}
		if r.Control.SPSel {
			v |= 2
		}
		return v
	}
	return 0
}

func (p *Processor) writeSysReg(sysm uint32, v uint32) {
	r := &p.Regs
	switch sysm {
	case sysAPSR, sysIAPSR, sysEAPSR:
		r.SetN(v&(1<<31) != 0)
		r.SetZ(v&(1<<30) != 0)
		r.SetC(v&(1<<29) != 0)
		r.SetV(v&(1<<28) != 0)
		r.SetQ(v&(1<<27) != 0)
	case sysMSP:
		r.SetMSP(v)
	case sysPSP:
		r.SetPSP(v)
	case sysPRIMASK:
		r.Primask = v&1 != 0
	case sysBASEPRI:
		r.Basepri = uint8(v)
	case sysFAULTMASK:
		r.Faultmask = v&1 != 0
	case sysCONTROL:
		r.Control.NPriv = v&1 != 0
		r.Control.SPSel = v&2 != 0
	}
}

// executeFP is a minimal single-precision FP unit: VMOV/VADD/VSUB/VCMP
// between S registers and VLDR/VSTR to memory, plus VMRS. VCVT decodes
// but executes as a no-op; double-precision operations are not modeled.
func (p *Processor) executeFP(instr Instruction) *Fault {
	r := &p.Regs
	switch instr.Kind {
	case KindVMOV:
		pp := instr.Params.(FPRegParams)
		r.ExtReg[pp.Sd] = r.ExtReg[pp.Sm]
		return nil
	case KindVADD:
		pp := instr.Params.(FPRegParams)
		a := math.Float32frombits(r.ExtReg[pp.Sn])
		b := math.Float32frombits(r.ExtReg[pp.Sm])
		r.ExtReg[pp.Sd] = math.Float32bits(a + b)
		return nil
	case KindVSUB:
		pp := instr.Params.(FPRegParams)
		a := math.Float32frombits(r.ExtReg[pp.Sn])
		b := math.Float32frombits(r.ExtReg[pp.Sm])
		r.ExtReg[pp.Sd] = math.Float32bits(a - b)
		return nil
	case KindVCMP:
		pp := instr.Params.(FPRegParams)
		a := math.Float32frombits(r.ExtReg[pp.Sd])
		b := math.Float32frombits(r.ExtReg[pp.Sm])
		switch {
		case a > b:
			r.SetN(false)
			r.SetZ(false)
			r.SetC(true)
			r.SetV(false)
		case a < b:
			r.SetN(true)
			r.SetZ(false)
			r.SetC(false)
			r.SetV(false)
		case a == b:
			r.SetN(false)
			r.SetZ(true)
			r.SetC(true)
			r.SetV(false)
		default: // unordered (NaN)
			r.SetN(false)
			r.SetZ(false)
			r.SetC(true)
			r.SetV(true)
		}
		return nil
	case KindVLDR:
		pp := instr.Params.(FPMemParams)
		base := r.GetR(pp.Rn)
		var addr uint32
		if pp.Add {
			addr = base + pp.Imm32
		} else {
			addr = base - pp.Imm32
		}
		v, err := p.Bus.ReadU32(addr)
		if err != nil {
			return busFault(err, true)
		}
		r.ExtReg[pp.Sd] = v
		return nil
	case KindVSTR:
		pp := instr.Params.(FPMemParams)
		base := r.GetR(pp.Rn)
		var addr uint32
		if pp.Add {
			addr = base + pp.Imm32
		} else {
			addr = base - pp.Imm32
		}
		if err := p.Bus.WriteU32(addr, r.ExtReg[pp.Sd]); err != nil {
			return busFault(err, false)
		}
		return nil
	case KindVMRS:
		pp := instr.Params.(MiscSystemParams)
		if pp.Rd == PC {
			// VMRS APSR_nzcv, FPSCR copies the FP comparison flags into APSR.
			r.SetNZCV(0, r.Fpscr&(1<<29) != 0, r.Fpscr&(1<<28) != 0)
			r.SetN(r.Fpscr&(1<<31) != 0)
			r.SetZ(r.Fpscr&(1<<30) != 0)
			return nil
		}
		r.SetR(pp.Rd, r.Fpscr)
		return nil
	case KindVCVT:
		return nil
	}
	return &Fault{Kind: FaultNocp}
}
