/*
 * cortexm - Bit level primitives shared by the decoder and executor.
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

// Package bits holds the only place in the simulator that touches carry,
// overflow, or shift arithmetic directly. The decoder and executor call
// through here rather than reimplementing this arithmetic locally.
package bits

// SRType names the ARM shift kinds. RRX is a 1-bit rotate-right-through-carry
// and is only ever requested with amount 1.
type SRType int

const (
	SRLSL SRType = iota
	SRLSR
	SRASR
	SRROR
	SRRRX
)

// Bits extracts the inclusive [lo, hi] bit field of word, right-justified.
func Bits(word uint32, hi, lo uint) uint32 {
	width := hi - lo + 1
	if width >= 32 {
		return word >> lo
	}
	mask := uint32(1)<<width - 1
	return (word >> lo) & mask
}

// Bit reports whether bit n of word is set.
func Bit(word uint32, n uint) bool {
	return (word>>n)&1 == 1
}

// SetBits writes value into the inclusive [lo, hi] bit field of word.
func SetBits(word uint32, hi, lo uint, value uint32) uint32 {
	width := hi - lo + 1
	mask := uint32(1)<<width - 1
	word &^= mask << lo
	word |= (value & mask) << lo
	return word
}

// SetBit sets or clears a single bit of word.
func SetBit(word uint32, n uint, value bool) uint32 {
	if value {
		return word | (1 << n)
	}
	return word &^ (1 << n)
}

// SignExtend sign-extends the low `size` bits of word, treating bit
// (size-1) as the sign bit.
func SignExtend(word uint32, size uint) uint32 {
	shift := 32 - size
	return uint32(int32(word<<shift) >> shift)
}

// SignExtend64 sign-extends into a 64-bit result, used by branch offset
// composition where the architectural value may carry a 25-bit span.
func SignExtend64(word uint32, size uint) uint64 {
	shift := 64 - size
	return uint64(int64(uint64(word)<<shift) >> shift)
}

// Ror rotates word right by n bits (0 <= n < 32).
func Ror(word uint32, n uint) uint32 {
	n &= 31
	if n == 0 {
		return word
	}
	return (word >> n) | (word << (32 - n))
}

// DecodeImmShift maps a (type, imm5) encoding pair to an (SRType, amount)
// pair per the ARM ARM's "DecodeImmShift" pseudocode.
func DecodeImmShift(ty uint32, imm5 uint32) (SRType, uint) {
	switch ty {
	case 0b00:
		return SRLSL, uint(imm5)
	case 0b01:
		if imm5 == 0 {
			return SRLSR, 32
		}
		return SRLSR, uint(imm5)
	case 0b10:
		if imm5 == 0 {
			return SRASR, 32
		}
		return SRASR, uint(imm5)
	default: // 0b11
		if imm5 == 0 {
			return SRRRX, 1
		}
		return SRROR, uint(imm5)
	}
}

// ShiftC applies shift type ty with amount n to value, returning the shifted
// result and the carry-out bit. carryIn feeds RRX; when n == 0 the value
// and carryIn are returned unchanged, whatever the shift type.
func ShiftC(value uint32, ty SRType, n uint, carryIn bool) (uint32, bool) {
	if n == 0 {
		return value, carryIn
	}
	switch ty {
	case SRLSL:
		return lslC(value, n)
	case SRLSR:
		return lsrC(value, n)
	case SRASR:
		return asrC(value, n)
	case SRROR:
		return rorC(value, n)
	default: // SRRRX
		return rrxC(value, carryIn)
	}
}

// Shift is ShiftC without the carry-out, for contexts that only need the
// result (e.g. address computation).
func Shift(value uint32, ty SRType, n uint, carryIn bool) uint32 {
	result, _ := ShiftC(value, ty, n, carryIn)
	return result
}

func lslC(value uint32, n uint) (uint32, bool) {
	if n > 32 {
		return 0, false
	}
	if n == 32 {
		return 0, value&1 == 1
	}
	carry := (value>>(32-n))&1 == 1
	return value << n, carry
}

func lsrC(value uint32, n uint) (uint32, bool) {
	if n > 32 {
		return 0, false
	}
	if n == 32 {
		return 0, Bit(value, 31)
	}
	carry := (value>>(n-1))&1 == 1
	return value >> n, carry
}

func asrC(value uint32, n uint) (uint32, bool) {
	if n >= 32 {
		if Bit(value, 31) {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}
	carry := (value>>(n-1))&1 == 1
	return uint32(int32(value) >> n), carry
}

func rorC(value uint32, n uint) (uint32, bool) {
	n &= 31
	if n == 0 {
		return value, Bit(value, 31)
	}
	result := Ror(value, n)
	return result, Bit(result, 31)
}

func rrxC(value uint32, carryIn bool) (uint32, bool) {
	carryOut := value&1 == 1
	result := value >> 1
	if carryIn {
		result |= 0x80000000
	}
	return result, carryOut
}

// AddWithCarry is the single primitive behind ADD, ADC, SUB, SBC, CMP, CMN
// and RSB. Subtraction is modeled by the caller passing ^y and cin=1.
func AddWithCarry(x, y uint32, carryIn bool) (result uint32, carryOut, overflow bool) {
	cin := uint64(0)
	if carryIn {
		cin = 1
	}
	unsignedSum := uint64(x) + uint64(y) + cin
	signedSum := int64(int32(x)) + int64(int32(y)) + int64(cin)
	result = uint32(unsignedSum)
	carryOut = unsignedSum != uint64(result)
	overflow = int64(int32(result)) != signedSum
	return result, carryOut, overflow
}

// ThumbExpandImmC expands the 12-bit i:imm3:imm8 modified-immediate field
// used by T2/T3 data-processing encodings, also returning the carry produced
// by the rotate when the top two bits of the field select rotation.
func ThumbExpandImmC(imm12 uint32, carryIn bool) (uint32, bool) {
	if Bits(imm12, 11, 10) == 0 {
		imm8 := Bits(imm12, 7, 0)
		switch Bits(imm12, 9, 8) {
		case 0b00:
			return imm8, carryIn
		case 0b01:
			v := imm8<<16 | imm8
			return v, carryIn
		case 0b10:
			v := imm8<<24 | imm8<<8
			return v, carryIn
		default:
			v := imm8<<24 | imm8<<16 | imm8<<8 | imm8
			return v, carryIn
		}
	}
	unrotated := uint32(1)<<7 | Bits(imm12, 6, 0)
	amount := Bits(imm12, 11, 7)
	return rorC(unrotated, uint(amount))
}

// ThumbExpandImm expands the same field without tracking carry, for
// encodings whose setflags policy never reads the carry this rotate would
// have produced.
func ThumbExpandImm(imm12 uint32) uint32 {
	v, _ := ThumbExpandImmC(imm12, false)
	return v
}
