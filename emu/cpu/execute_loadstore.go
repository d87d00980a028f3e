/*
 * cortexm - Executor: single and multiple load/store addressing.
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
	"errors"

	"github.com/cmsim/cortexm/emu/bits"
)

// resolveAddress implements the ARM ARM's generic offset/pre/post-index
// addressing shape shared by every Reg3FullParams-shaped instruction:
// the offset address, the address actually accessed, and (when Wback)
// the value written back to Rn.
func (p *Processor) resolveAddress(pp Reg3FullParams) (access, writeback uint32) {
	r := &p.Regs
	var offset uint32
	if pp.UseReg {
		offset = bits.Shift(r.GetR(pp.Rm), pp.ShiftT, pp.ShiftN, r.C())
	} else {
		offset = pp.Imm32
	}
	base := r.GetR(pp.Rn)
	var offsetAddr uint32
	if pp.Add {
		offsetAddr = base + offset
	} else {
		offsetAddr = base - offset
	}
	if pp.Index {
		access = offsetAddr
	} else {
		access = base
	}
	return access, offsetAddr
}

func (p *Processor) executeLoadStore(instr Instruction) (branched bool, fault *Fault) {
	r := &p.Regs
	pp := instr.Params.(Reg3FullParams)
	addr, offsetAddr := p.resolveAddress(pp)

	switch instr.Kind {
	case KindLDR, KindLDRLiteral:
		v, err := p.Bus.ReadU32(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
		if pp.Rt == PC {
			return p.loadWritePC(v)
		}
		r.SetR(pp.Rt, v)
	case KindLDRB:
		v, err := p.Bus.ReadU8(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
		r.SetR(pp.Rt, uint32(v))
	case KindLDRSB:
		v, err := p.Bus.ReadU8(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
		r.SetR(pp.Rt, bits.SignExtend(uint32(v), 8))
	case KindLDRH:
		v, err := p.Bus.ReadU16(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
		r.SetR(pp.Rt, uint32(v))
	case KindLDRSH:
		v, err := p.Bus.ReadU16(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
		r.SetR(pp.Rt, bits.SignExtend(uint32(v), 16))
	case KindLDRD:
		lo, err := p.Bus.ReadU32(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		hi, err := p.Bus.ReadU32(addr + 4)
		if err != nil {
			return false, busFault(err, true)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
		r.SetR(pp.Rt, lo)
		r.SetR(pp.Rt2, hi)
	case KindSTR:
		if err := p.Bus.WriteU32(addr, r.GetR(pp.Rt)); err != nil {
			return false, busFault(err, false)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
	case KindSTRB:
		if err := p.Bus.WriteU8(addr, uint8(r.GetR(pp.Rt))); err != nil {
			return false, busFault(err, false)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
	case KindSTRH:
		if err := p.Bus.WriteU16(addr, uint16(r.GetR(pp.Rt))); err != nil {
			return false, busFault(err, false)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
	case KindSTRD:
		if err := p.Bus.WriteU32(addr, r.GetR(pp.Rt)); err != nil {
			return false, busFault(err, false)
		}
		if err := p.Bus.WriteU32(addr+4, r.GetR(pp.Rt2)); err != nil {
			return false, busFault(err, false)
		}
		if pp.Wback {
			r.SetR(pp.Rn, offsetAddr)
		}
	case KindLDREX:
		v, err := p.Bus.ReadU32(addr)
		if err != nil {
			return false, busFault(err, true)
		}
		r.SetR(pp.Rt, v)
	case KindSTREX:
		if err := p.Bus.WriteU32(addr, r.GetR(pp.Rt)); err != nil {
			return false, busFault(err, false)
		}
		r.SetR(pp.Rn, 0) // store always succeeds in this single-core model
	}
	return false, nil
}

// loadWritePC implements the common LDR/LDM/POP-to-PC tail: an
// EXC_RETURN pattern defers to the driver's unstacking logic instead of
// performing an ordinary interworking branch.
func (p *Processor) loadWritePC(addr uint32) (branched bool, fault *Fault) {
	r := &p.Regs
	if isExcReturn(addr) {
		p.ExcReturn = addr
		return true, nil
	}
	thumb := r.LoadWritePC(addr)
	if !thumb {
		return false, &Fault{Kind: FaultInvState}
	}
	return true, nil
}

// busFault maps a memory.BusError into the executor's Fault taxonomy.
// Unaligned accesses are distinguished by the bus's own alignment check;
// everything else is a precise data/instruction access violation.
func busFault(err error, isRead bool) *Fault {
	if isUnalignedBusError(err) {
		return &Fault{Kind: FaultUnaligned, Err: err}
	}
	if isRead {
		return &Fault{Kind: FaultDAccViol, Err: err}
	}
	return &Fault{Kind: FaultPreciserr, Err: err}
}

// AlignmentError is implemented by memory.BusError to report a
// misaligned access without emu/cpu importing emu/memory.
type AlignmentError interface {
	Unaligned() bool
}

func isUnalignedBusError(err error) bool {
	var ae AlignmentError
	return errors.As(err, &ae) && ae.Unaligned()
}

func (p *Processor) executeLoadStoreMultiple(instr Instruction) (branched bool, fault *Fault) {
	r := &p.Regs
	pp := instr.Params.(LoadAndStoreMultipleParams)

	switch instr.Kind {
	case KindPUSH:
		addr := r.ActiveSPValue() - 4*uint32(popcount16(pp.Registers))
		cur := addr
		for i := 0; i < 13; i++ {
			if bits.Bit(uint32(pp.Registers), uint(i)) {
				if err := p.Bus.WriteU32(cur, r.GetR(Reg(i))); err != nil {
					return false, busFault(err, false)
				}
				cur += 4
			}
		}
		if bits.Bit(uint32(pp.Registers), uint(LR)) {
			if err := p.Bus.WriteU32(cur, r.GetR(LR)); err != nil {
				return false, busFault(err, false)
			}
			cur += 4
		}
		r.SetActiveSPValue(addr)
		return false, nil
	case KindPOP:
		addr := r.ActiveSPValue()
		cur := addr
		for i := 0; i < 13; i++ {
			if bits.Bit(uint32(pp.Registers), uint(i)) {
				v, err := p.Bus.ReadU32(cur)
				if err != nil {
					return false, busFault(err, true)
				}
				r.SetR(Reg(i), v)
				cur += 4
			}
		}
		if bits.Bit(uint32(pp.Registers), uint(LR)) {
			v, err := p.Bus.ReadU32(cur)
			if err != nil {
				return false, busFault(err, true)
			}
			r.SetR(LR, v)
			cur += 4
		}
		var popPC bool
		var pcVal uint32
		if bits.Bit(uint32(pp.Registers), uint(PC)) {
			v, err := p.Bus.ReadU32(cur)
			if err != nil {
				return false, busFault(err, true)
			}
			pcVal, popPC = v, true
			cur += 4
		}
		r.SetActiveSPValue(cur)
		if popPC {
			return p.loadWritePC(pcVal)
		}
		return false, nil
	case KindLDM:
		base := r.GetR(pp.Rn)
		span := 4 * uint32(popcount16(pp.Registers))
		start := base
		if pp.IncrementBefore {
			start = base - span
		}
		cur := start
		var popPC bool
		var pcVal uint32
		for i := 0; i < 16; i++ {
			if !bits.Bit(uint32(pp.Registers), uint(i)) {
				continue
			}
			v, err := p.Bus.ReadU32(cur)
			if err != nil {
				return false, busFault(err, true)
			}
			if Reg(i) == PC {
				pcVal, popPC = v, true
			} else {
				r.SetR(Reg(i), v)
			}
			cur += 4
		}
		if pp.Wback {
			if pp.IncrementBefore {
				r.SetR(pp.Rn, start)
			} else {
				r.SetR(pp.Rn, base+span)
			}
		}
		if popPC {
			return p.loadWritePC(pcVal)
		}
		return false, nil
	case KindSTM:
		base := r.GetR(pp.Rn)
		span := 4 * uint32(popcount16(pp.Registers))
		start := base
		if pp.IncrementBefore {
			start = base - span
		}
		cur := start
		for i := 0; i < 15; i++ {
			if !bits.Bit(uint32(pp.Registers), uint(i)) {
				continue
			}
			if err := p.Bus.WriteU32(cur, r.GetR(Reg(i))); err != nil {
				return false, busFault(err, false)
			}
			cur += 4
		}
		if pp.Wback {
			if pp.IncrementBefore {
				r.SetR(pp.Rn, start)
			} else {
				r.SetR(pp.Rn, base+span)
			}
		}
		return false, nil
	}
	return false, &Fault{Kind: FaultUndefInstr}
}

func popcount16(v uint16) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}
