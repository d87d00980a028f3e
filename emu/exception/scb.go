/*
 * cortexm - System Control Block shadow: VTOR, ICSR, SHPRx, SHCSR, CCR.
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

package exception

import "fmt"

// SHCSR enable bits, one per bankable fault handler: a faulting
// instruction whose owning handler is disabled here escalates straight
// to HardFault (Forced) rather than taking MemManage/BusFault/UsageFault.
const (
	shcsrMemFaultEna   = 1 << 16
	shcsrBusFaultEna   = 1 << 17
	shcsrUsageFaultEna = 1 << 18
)

const (
	regICSR  = 0x04
	regVTOR  = 0x08
	regAIRCR = 0x0C
	regSCR   = 0x10
	regCCR   = 0x14
	regSHPR1 = 0x18
	regSHPR2 = 0x1C
	regSHPR3 = 0x20
	regSHCSR = 0x24
)

// OffSCB/SizeSCB locate the SCB within the System Control Space page
// (PPB base 0xE000E000), matching the real SCB's 0xE000ED00 address.
// DWT lives at 0xE0001000, outside this page, so it is not attached
// through the same PPBRegion; the driver ticks it directly instead.
const (
	OffSCB  = 0x0D00
	SizeSCB = 0x90
)

// SCB adapts a Controller plus the free-standing SCB shadow registers
// (VTOR, ICSR, AIRCR, SCR, CCR, SHPR1-3, SHCSR) to the register layout
// software pokes, per spec.md §3's SCB shadow list.
type SCB struct {
	c *Controller

	vtor  uint32
	aircr uint32
	scr   uint32
	ccr   uint32
	shcsr uint32
}

// NewSCB wraps an existing controller. vtor defaults to 0, per spec.md
// §6's vector table layout ("reset table base defaults to 0").
func NewSCB(c *Controller) *SCB {
	return &SCB{c: c, ccr: 0x200 /* STKALIGN set: 8-byte stack alignment on entry */}
}

func (s *SCB) VTOR() uint32 { return s.vtor }

// SetVTOR seeds the vector table base at construction time, bypassing
// the register write path (which additionally requires software to be
// the one poking AIRCR/VTOR after reset).
func (s *SCB) SetVTOR(v uint32) { s.vtor = v &^ 0x7F }

// DivZeroTrap reports CCR.DIV_0_TRP (bit 4): whether SDIV/UDIV by zero
// raises UsageFault instead of silently producing a 0 result.
func (s *SCB) DivZeroTrap() bool { return s.ccr&(1<<4) != 0 }

// StackAlign reports CCR.STKALIGN (bit 9): whether exception entry
// doubleword-aligns the stack, padding with a reserved word.
func (s *SCB) StackAlign() bool { return s.ccr&(1<<9) != 0 }

// FaultEnabled reports whether MemManage/BusFault/UsageFault's bankable
// handler is enabled; the driver consults this when mapping a Fault to
// an exception number, per spec.md §4.I's escalation rule.
func (s *SCB) FaultEnabled(num int) bool {
	switch num {
	case NumMemManage:
		return s.shcsr&shcsrMemFaultEna != 0
	case NumBusFault:
		return s.shcsr&shcsrBusFaultEna != 0
	case NumUsageFault:
		return s.shcsr&shcsrUsageFaultEna != 0
	}
	return true
}

func (s *SCB) ReadRegister(offset uint32) (uint32, error) {
	switch offset {
	case regICSR:
		return s.icsr(), nil
	case regVTOR:
		return s.vtor, nil
	case regAIRCR:
		return s.aircr, nil
	case regSCR:
		return s.scr, nil
	case regCCR:
		return s.ccr, nil
	case regSHPR1:
		return s.shprWord(NumMemManage, NumBusFault, NumUsageFault, 0), nil
	case regSHPR2:
		return s.shprWord(0, 0, 0, NumSVCall), nil
	case regSHPR3:
		return s.shprWord(NumDebugMon, 0, NumPendSV, NumSysTick), nil
	case regSHCSR:
		return s.shcsr, nil
	}
	return 0, fmt.Errorf("scb: unmapped register offset %#x", offset)
}

func (s *SCB) WriteRegister(offset uint32, v uint32) error {
	switch offset {
	case regICSR:
		s.writeICSR(v)
	case regVTOR:
		s.vtor = v &^ 0x7F
	case regAIRCR:
		if v>>16 == 0x05FA {
			s.aircr = v &^ 0xFFFF0000
		}
	case regSCR:
		s.scr = v
	case regCCR:
		s.ccr = v
	case regSHPR1:
		s.setShprWord(v, NumMemManage, NumBusFault, NumUsageFault, 0)
	case regSHPR2:
		s.setShprWord(v, 0, 0, 0, NumSVCall)
	case regSHPR3:
		s.setShprWord(v, NumDebugMon, 0, NumPendSV, NumSysTick)
	case regSHCSR:
		s.shcsr = v
	default:
		return fmt.Errorf("scb: unmapped register offset %#x", offset)
	}
	return nil
}

// icsr packs VECTACTIVE (bits 8:0), VECTPENDING (bits 20:12), PENDSVSET,
// PENDSTSET and NMIPENDSET from the controller's live state.
func (s *SCB) icsr() uint32 {
	var v uint32
	if s.c.IsActive(currentActive(s.c)) {
		v |= uint32(currentActive(s.c)) & 0x1FF
	}
	if num, ok := s.c.NextPending(); ok {
		v |= (uint32(num) & 0x1FF) << 12
	}
	if s.c.State(NumPendSV) == Pending || s.c.State(NumPendSV) == ActivePending {
		v |= 1 << 28
	}
	if s.c.State(NumSysTick) == Pending || s.c.State(NumSysTick) == ActivePending {
		v |= 1 << 26
	}
	if s.c.State(NumNMI) == Pending || s.c.State(NumNMI) == ActivePending {
		v |= 1 << 31
	}
	return v
}

// currentActive scans for the lowest-numbered active exception, used
// only for ICSR.VECTACTIVE reporting (not dispatch: NextPending already
// implements the real priority/tie-break rule).
func currentActive(c *Controller) int {
	for i := range c.records {
		if c.records[i].state == Active || c.records[i].state == ActivePending {
			return i
		}
	}
	return 0
}

func (s *SCB) writeICSR(v uint32) {
	if v&(1<<28) != 0 {
		s.c.SetPend(NumPendSV)
	}
	if v&(1<<27) != 0 {
		s.c.ClearPend(NumPendSV)
	}
	if v&(1<<26) != 0 {
		s.c.SetPend(NumSysTick)
	}
	if v&(1<<25) != 0 {
		s.c.ClearPend(NumSysTick)
	}
	if v&(1<<31) != 0 {
		s.c.SetPend(NumNMI)
	}
}

func (s *SCB) shprWord(n0, n1, n2, n3 int) uint32 {
	var v uint32
	for lane, num := range [4]int{n0, n1, n2, n3} {
		if num == 0 {
			continue
		}
		v |= uint32(byte(s.c.Priority(num))) << uint(lane*8)
	}
	return v
}

func (s *SCB) setShprWord(v uint32, n0, n1, n2, n3 int) {
	for lane, num := range [4]int{n0, n1, n2, n3} {
		if num == 0 {
			continue
		}
		s.c.SetPriority(num, uint8(v>>uint(lane*8)))
	}
}
