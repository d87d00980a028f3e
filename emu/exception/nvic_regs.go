/*
 * cortexm - NVIC register-mapped surface: ISER/ICER/ISPR/ICPR/IPR.
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

// NVICRegisters adapts a Controller's external-interrupt shadow (enable
// and pending bitmaps, priority table) to the register layout software
// actually pokes, satisfying memory.MappedDevice without this package
// importing emu/memory.
type NVICRegisters struct {
	c *Controller
}

// NewNVICRegisters wraps an existing controller for register-mapped access.
func NewNVICRegisters(c *Controller) *NVICRegisters {
	return &NVICRegisters{c: c}
}

const (
	offISER = 0x000 // Interrupt Set-Enable, 16 words
	offICER = 0x080 // Interrupt Clear-Enable
	offISPR = 0x100 // Interrupt Set-Pending
	offICPR = 0x180 // Interrupt Clear-Pending
	offIPR  = 0x300 // Interrupt Priority, byte per interrupt, 4 per word
)

// ReadRegister services a 32-bit read at offset within the NVIC's own
// sub-range of the PPB.
func (n *NVICRegisters) ReadRegister(offset uint32) (uint32, error) {
	switch {
	case offset >= offISER && offset < offISER+0x80:
		return n.enableWord(int((offset - offISER) / 4)), nil
	case offset >= offICER && offset < offICER+0x80:
		return n.enableWord(int((offset - offICER) / 4)), nil
	case offset >= offISPR && offset < offISPR+0x80:
		return n.pendingWord(int((offset - offISPR) / 4)), nil
	case offset >= offICPR && offset < offICPR+0x80:
		return n.pendingWord(int((offset - offICPR) / 4)), nil
	case offset >= offIPR && offset < offIPR+120:
		return n.priorityWord(int((offset - offIPR) / 4)), nil
	}
	return 0, fmt.Errorf("nvic: unmapped register offset %#x", offset)
}

// WriteRegister services a 32-bit write. ISER/ICER/ISPR/ICPR are
// write-1-to-set/clear, matching the architecture's register semantics.
func (n *NVICRegisters) WriteRegister(offset uint32, v uint32) error {
	switch {
	case offset >= offISER && offset < offISER+0x80:
		n.setEnableBits(int((offset-offISER)/4), v, true)
	case offset >= offICER && offset < offICER+0x80:
		n.setEnableBits(int((offset-offICER)/4), v, false)
	case offset >= offISPR && offset < offISPR+0x80:
		n.setPendingBits(int((offset-offISPR)/4), v, true)
	case offset >= offICPR && offset < offICPR+0x80:
		n.setPendingBits(int((offset-offICPR)/4), v, false)
	case offset >= offIPR && offset < offIPR+120:
		n.setPriorityWord(int((offset-offIPR)/4), v)
	default:
		return fmt.Errorf("nvic: unmapped register offset %#x", offset)
	}
	return nil
}

func (n *NVICRegisters) externalNum(word, bit int) int {
	return NumExternalBase + word*32 + bit
}

func (n *NVICRegisters) enableWord(word int) uint32 {
	var v uint32
	for bit := 0; bit < 32; bit++ {
		num := n.externalNum(word, bit)
		if num >= MaxExceptions {
			break
		}
		if n.c.Enabled(num) {
			v |= 1 << uint(bit)
		}
	}
	return v
}

func (n *NVICRegisters) setEnableBits(word int, v uint32, enable bool) {
	for bit := 0; bit < 32; bit++ {
		if v&(1<<uint(bit)) == 0 {
			continue
		}
		num := n.externalNum(word, bit)
		if num >= MaxExceptions {
			break
		}
		n.c.SetEnabled(num, enable)
	}
}

func (n *NVICRegisters) pendingWord(word int) uint32 {
	var v uint32
	for bit := 0; bit < 32; bit++ {
		num := n.externalNum(word, bit)
		if num >= MaxExceptions {
			break
		}
		st := n.c.records[num].state
		if st == Pending || st == ActivePending {
			v |= 1 << uint(bit)
		}
	}
	return v
}

func (n *NVICRegisters) setPendingBits(word int, v uint32, pend bool) {
	for bit := 0; bit < 32; bit++ {
		if v&(1<<uint(bit)) == 0 {
			continue
		}
		num := n.externalNum(word, bit)
		if num >= MaxExceptions {
			break
		}
		if pend {
			n.c.SetPend(num)
		} else {
			n.c.ClearPend(num)
		}
	}
}

func (n *NVICRegisters) priorityWord(word int) uint32 {
	var v uint32
	for lane := 0; lane < 4; lane++ {
		num := NumExternalBase + word*4 + lane
		if num >= MaxExceptions {
			break
		}
		v |= uint32(byte(n.c.Priority(num))) << uint(lane*8)
	}
	return v
}

func (n *NVICRegisters) setPriorityWord(word int, v uint32) {
	for lane := 0; lane < 4; lane++ {
		num := NumExternalBase + word*4 + lane
		if num >= MaxExceptions {
			break
		}
		n.c.SetPriority(num, uint8(v>>uint(lane*8)))
	}
}
