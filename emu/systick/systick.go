/*
 * cortexm - SysTick: the 24-bit down-counter private timer.
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

// Package systick implements the Cortex-M SysTick private timer: a
// 24-bit down-counter that reloads and optionally pends the SysTick
// exception, per spec.md §4.G.
package systick

import "fmt"

const (
	csrEnableBit    = 0
	csrTickIntBit   = 1
	csrClkSourceBit = 2
	csrCountFlagBit = 16

	mask24 = 0x00FFFFFF
)

// SysTick holds the four architectural registers (CSR, RVR, CVR, CALIB).
// Tick's return value is the only pend signal; the driver acts on it
// immediately rather than this package tracking any state of its own.
type SysTick struct {
	csr   uint32
	rvr   uint32
	cvr   uint32
	calib uint32
}

// New returns a SysTick with all registers clear, matching reset state.
func New() *SysTick {
	return &SysTick{}
}

// Tick decrements CVR by one cycle, per spec.md §4.G. When CVR reaches
// zero it reloads from RVR, sets COUNTFLAG, and -- if ENABLE and
// TICKINT are both set -- requests that the caller pend the SysTick
// exception. Disabled (ENABLE=0) counters do not tick.
func (s *SysTick) Tick() (exceptionRequested bool) {
	if s.csr&(1<<csrEnableBit) == 0 {
		return false
	}
	if s.cvr == 0 {
		s.cvr = s.rvr & mask24
		s.csr |= 1 << csrCountFlagBit
		if s.csr&(1<<csrTickIntBit) != 0 {
			return true
		}
		return false
	}
	s.cvr--
	if s.cvr == 0 {
		s.cvr = s.rvr & mask24
		s.csr |= 1 << csrCountFlagBit
		if s.csr&(1<<csrTickIntBit) != 0 {
			return true
		}
	}
	return false
}

const (
	regCSR   = 0x00
	regRVR   = 0x04
	regCVR   = 0x08
	regCALIB = 0x0C
)

// ReadRegister and WriteRegister implement memory.MappedDevice without
// this package importing emu/memory.
func (s *SysTick) ReadRegister(offset uint32) (uint32, error) {
	switch offset {
	case regCSR:
		v := s.csr
		s.csr &^= 1 << csrCountFlagBit // COUNTFLAG clears on read, per the ARM ARM
		return v, nil
	case regRVR:
		return s.rvr & mask24, nil
	case regCVR:
		return s.cvr & mask24, nil
	case regCALIB:
		return s.calib, nil
	}
	return 0, fmt.Errorf("systick: unmapped register offset %#x", offset)
}

func (s *SysTick) WriteRegister(offset uint32, v uint32) error {
	switch offset {
	case regCSR:
		wasEnabled := s.csr&(1<<csrEnableBit) != 0
		s.csr = v & 0x00010007
		nowEnabled := s.csr&(1<<csrEnableBit) != 0
		if !wasEnabled && nowEnabled {
			s.cvr = s.rvr & mask24
		}
	case regRVR:
		s.rvr = v & mask24
	case regCVR:
		s.cvr = 0 // any write clears the counter and COUNTFLAG
		s.csr &^= 1 << csrCountFlagBit
	case regCALIB:
		// read-only in real hardware; accepted here for bring-up convenience.
		s.calib = v
	default:
		return fmt.Errorf("systick: unmapped register offset %#x", offset)
	}
	return nil
}

// Enabled, CountFlag, RVR and CVR are convenience accessors for tests
// and the monitor's register dump.
func (s *SysTick) Enabled() bool   { return s.csr&(1<<csrEnableBit) != 0 }
func (s *SysTick) TickInt() bool   { return s.csr&(1<<csrTickIntBit) != 0 }
func (s *SysTick) CountFlag() bool { return s.csr&(1<<csrCountFlagBit) != 0 }
func (s *SysTick) RVR() uint32     { return s.rvr & mask24 }
func (s *SysTick) CVR() uint32     { return s.cvr & mask24 }

// SetCalibration lets a boot configuration populate CALIB.TENMS; not
// architecturally meaningful to this functional simulator beyond
// software that reads it back.
func (s *SysTick) SetCalibration(v uint32) { s.calib = v }
