package bits

/*
 * cortexm - Bit primitive tests.
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

import "testing"

func TestBitsExtract(t *testing.T) {
	v := uint32(0b1100_0000_0000_0000)
	if r := Bits(v, 15, 14); r != 0b11 {
		t.Errorf("Bits(15,14) got %b expected %b", r, 0b11)
	}
	if r := Bits(0xFFFFFFFF, 31, 0); r != 0xFFFFFFFF {
		t.Errorf("Bits full width got %x expected %x", r, uint32(0xFFFFFFFF))
	}
	if r := Bits(0xFF, 7, 0); r != 0xFF {
		t.Errorf("Bits(7,0) got %x expected %x", r, 0xFF)
	}
}

func TestBitAndSetBit(t *testing.T) {
	if !Bit(1, 0) {
		t.Error("Bit(1,0) expected true")
	}
	v := SetBit(0, 3, true)
	if v != 0x8 {
		t.Errorf("SetBit got %x expected %x", v, 0x8)
	}
	v = SetBit(0xF, 0, false)
	if v != 0xE {
		t.Errorf("SetBit clear got %x expected %x", v, 0xE)
	}
}

func TestSetBits(t *testing.T) {
	v := SetBits(0, 3, 0, 0xF)
	if v != 0xF {
		t.Errorf("SetBits got %x expected %x", v, 0xF)
	}
	v = SetBits(0xFF, 7, 4, 0)
	if v != 0x0F {
		t.Errorf("SetBits clear upper nibble got %x expected %x", v, 0x0F)
	}
}

func TestSignExtend(t *testing.T) {
	if r := SignExtend(0x1FF, 9); r != 0xFFFFFFFF {
		t.Errorf("SignExtend negative got %x expected %x", r, uint32(0xFFFFFFFF))
	}
	if r := SignExtend(0xFF, 9); r != 0xFF {
		t.Errorf("SignExtend positive got %x expected %x", r, uint32(0xFF))
	}
}

func TestRor(t *testing.T) {
	if r := Ror(1, 1); r != 0x80000000 {
		t.Errorf("Ror(1,1) got %x expected %x", r, uint32(0x80000000))
	}
	if r := Ror(0x12345678, 0); r != 0x12345678 {
		t.Errorf("Ror(x,0) got %x expected %x", r, uint32(0x12345678))
	}
}

// TestShiftCLaws checks property 3 from the testable-properties list:
// shift_c(x, LSL, n, c) returns carry = bit (32-n) of x for 1<=n<=32.
func TestShiftCLaws(t *testing.T) {
	x := uint32(0x80000001)
	for n := uint(1); n <= 32; n++ {
		_, carry := ShiftC(x, SRLSL, n, false)
		var want bool
		if n <= 32 {
			want = Bit(x, 32-n)
		}
		if carry != want {
			t.Errorf("LSL shift_c n=%d got carry=%v want=%v", n, carry, want)
		}
	}
}

func TestShiftCLSR(t *testing.T) {
	x := uint32(0x80000001)
	r, c := ShiftC(x, SRLSR, 1, false)
	if r != 0x40000000 || !c {
		t.Errorf("LSR#1 got %x,%v expected %x,true", r, c, uint32(0x40000000))
	}
}

func TestShiftCASR(t *testing.T) {
	x := uint32(0x80000000)
	r, c := ShiftC(x, SRASR, 1, false)
	if r != 0xC0000000 || c {
		t.Errorf("ASR#1 got %x,%v expected %x,false", r, c, uint32(0xC0000000))
	}
}

func TestShiftCRRX(t *testing.T) {
	r, c := ShiftC(0x1, SRRRX, 1, true)
	if r != 0x80000000 || !c {
		t.Errorf("RRX got %x,%v expected %x,true", r, c, uint32(0x80000000))
	}
}

// TestAddWithCarryLaws checks property 2: result mod 2^32, carry_out is
// unsigned overflow, overflow is signed overflow, and subtraction via
// ~y,cin=1 matches CMP/SUBS semantics.
func TestAddWithCarryLaws(t *testing.T) {
	cases := []struct {
		x, y       uint32
		cin        bool
		result     uint32
		cout, vout bool
	}{
		{0x7FFFFFFF, 1, false, 0x80000000, false, true}, // scenario 1 from spec
		{0xFFFFFFFF, 1, false, 0, true, false},
		{0x80000000, 0xFFFFFFFF, false, 0x7FFFFFFF, true, true},
		{0, 0, false, 0, false, false},
	}
	for _, c := range cases {
		r, cout, vout := AddWithCarry(c.x, c.y, c.cin)
		if r != c.result || cout != c.cout || vout != c.vout {
			t.Errorf("AddWithCarry(%x,%x,%v) got (%x,%v,%v) want (%x,%v,%v)",
				c.x, c.y, c.cin, r, cout, vout, c.result, c.cout, c.vout)
		}
	}
}

func TestAddWithCarrySubtraction(t *testing.T) {
	// CMP R0,#0 where R0=0: SUBS computed as x + ^y + 1 with y=0 -> carry set, zero result.
	r, cout, _ := AddWithCarry(0, ^uint32(0), true)
	if r != 0 || !cout {
		t.Errorf("subtract-as-add got %x,%v want 0,true", r, cout)
	}
}

func TestDecodeImmShift(t *testing.T) {
	ty, n := DecodeImmShift(0b01, 0)
	if ty != SRLSR || n != 32 {
		t.Errorf("DecodeImmShift(LSR,0) got %v,%d want LSR,32", ty, n)
	}
	ty, n = DecodeImmShift(0b11, 0)
	if ty != SRRRX || n != 1 {
		t.Errorf("DecodeImmShift(ROR,0) got %v,%d want RRX,1", ty, n)
	}
}

func TestThumbExpandImmC(t *testing.T) {
	// amount=8, unrotated=0x80: rotating right by 8 carries the top bit
	// back around to bit 31, producing carry-out = 1.
	v, c := ThumbExpandImmC(1024, false)
	if v != 0x80000000 || !c {
		t.Errorf("ThumbExpandImmC rotate got %x,%v want %x,true", v, c, uint32(0x80000000))
	}
	v, c = ThumbExpandImmC(0x0FF, true)
	if v != 0xFF || !c {
		t.Errorf("ThumbExpandImmC passthrough got %x,%v want %x,true", v, c, uint32(0xFF))
	}
}
