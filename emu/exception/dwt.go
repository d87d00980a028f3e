/*
 * cortexm - DWT shadow: cycle counter and its enable bit, per spec.md
 * §3's SCB shadow register list. No watchpoint comparators are modeled;
 * MPU/cache-grade timing accuracy is an explicit Non-goal.
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

const (
	regDWTCtrl   = 0x00
	regDWTCyccnt = 0x04

	dwtCtrlCycEna = 1 << 0
)

// DWT is the free-running cycle counter block. While DWT_CTRL.CYCCNTENA
// is set, Tick advances CYCCNT by one; the driver calls it once per step,
// including steps spent halted in a sleep.
type DWT struct {
	ctrl   uint32
	cyccnt uint32
}

func NewDWT() *DWT { return &DWT{} }

func (d *DWT) Tick() {
	if d.ctrl&dwtCtrlCycEna != 0 {
		d.cyccnt++
	}
}

func (d *DWT) ReadRegister(offset uint32) (uint32, error) {
	switch offset {
	case regDWTCtrl:
		return d.ctrl, nil
	case regDWTCyccnt:
		return d.cyccnt, nil
	}
	return 0, fmt.Errorf("dwt: unmapped register offset %#x", offset)
}

func (d *DWT) WriteRegister(offset uint32, v uint32) error {
	switch offset {
	case regDWTCtrl:
		d.ctrl = v
	case regDWTCyccnt:
		d.cyccnt = v
	default:
		return fmt.Errorf("dwt: unmapped register offset %#x", offset)
	}
	return nil
}
