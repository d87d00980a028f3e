/*
 * cortexm - Decoder tests: targeted encodings for the 16-bit and 32-bit
 * Thumb decoders.
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

import "testing"

func TestIsThumb32(t *testing.T) {
	cases := map[uint16]bool{
		0xBF00: false, // NOP
		0x2005: false, // MOVS R0,#5
		0xF05F: true,  // first half of MOV.W
		0xE000: false, // 0b11100 -> not Thumb32 (only 11101/11110/11111 are)
		0xF800: true,
	}
	for h, want := range cases {
		if got := IsThumb32(h); got != want {
			t.Errorf("IsThumb32(%#04x) = %v, want %v", h, got, want)
		}
	}
}

func TestDecodeNOP(t *testing.T) {
	instr := Decode(0xBF00)
	if instr.Kind != KindNOP {
		t.Fatalf("Kind = %v, want NOP", instr.Kind)
	}
}

func TestDecodeMOVImm16(t *testing.T) {
	instr := Decode(0x2005) // MOVS R0,#5
	if instr.Kind != KindMOVImm {
		t.Fatalf("Kind = %v, want MOVImm", instr.Kind)
	}
	pp := instr.Params.(Reg2ImmCarryParams)
	if pp.Rd != R0 {
		t.Fatalf("Rd = %v, want R0", pp.Rd)
	}
	if pp.Imm32.Imm32 != 5 {
		t.Fatalf("Imm32 = %d, want 5", pp.Imm32.Imm32)
	}
	if pp.SetFlags != SetFlagsNotInITBlock {
		t.Fatalf("SetFlags = %v, want NotInITBlock", pp.SetFlags)
	}
}

func TestDecodeADDReg16(t *testing.T) {
	// ADDS R3, R2, R1 (000110 0 001 010 011): sub=0, immForm=0.
	instr := Decode(0x1853)
	if instr.Kind != KindADDReg {
		t.Fatalf("Kind = %v, want ADDReg", instr.Kind)
	}
	pp := instr.Params.(Reg3ShiftParams)
	if pp.Rd != R3 || pp.Rn != R2 || pp.Rm != R1 {
		t.Fatalf("Rd/Rn/Rm = %v/%v/%v, want R3/R2/R1", pp.Rd, pp.Rn, pp.Rm)
	}
}

func TestDecodeSUBImm3(t *testing.T) {
	// SUBS R0, R1, #3 (000111 1 011 001 000).
	w := uint16(0b0001111011001000)
	instr := Decode(w)
	if instr.Kind != KindSUBImm {
		t.Fatalf("Kind = %v, want SUBImm", instr.Kind)
	}
	pp := instr.Params.(Reg2ImmParams)
	if pp.Rd != R0 || pp.Rn != R1 || pp.Imm32 != 3 {
		t.Fatalf("Rd/Rn/Imm32 = %v/%v/%d", pp.Rd, pp.Rn, pp.Imm32)
	}
}

func TestDecodeBXRegister(t *testing.T) {
	// BX LR (010001 11 0 1110 000).
	w := uint16(0b0100011101110000)
	instr := Decode(w)
	if instr.Kind != KindBX {
		t.Fatalf("Kind = %v, want BX", instr.Kind)
	}
	pp := instr.Params.(Reg3ShiftParams)
	if pp.Rm != LR {
		t.Fatalf("Rm = %v, want LR", pp.Rm)
	}
}

func TestDecodePushPop16(t *testing.T) {
	// PUSH {R0,R4,LR}: 1011 0 10 1 00010001
	push := Decode(uint16(0b1011010100010001))
	if push.Kind != KindPUSH {
		t.Fatalf("Kind = %v, want PUSH", push.Kind)
	}
	pp := push.Params.(LoadAndStoreMultipleParams)
	want := uint16(1<<0 | 1<<4 | 1<<uint(LR))
	if pp.Registers != want {
		t.Fatalf("Registers = %#x, want %#x", pp.Registers, want)
	}

	// POP {R0,R4,PC}: 1011 1 10 1 00010001
	pop := Decode(uint16(0b1011110100010001))
	if pop.Kind != KindPOP {
		t.Fatalf("Kind = %v, want POP", pop.Kind)
	}
	pp2 := pop.Params.(LoadAndStoreMultipleParams)
	want2 := uint16(1<<0 | 1<<4 | 1<<uint(PC))
	if pp2.Registers != want2 {
		t.Fatalf("Registers = %#x, want %#x", pp2.Registers, want2)
	}
}

func TestDecodeCBZ(t *testing.T) {
	// CBZ R0, #2: 1011 0 0 0 1 00001 000  (nonzero=0, i=0, imm5=1, rn=0)
	w := uint16(0b1011000100001000)
	instr := Decode(w)
	if instr.Kind != KindCBZ {
		t.Fatalf("Kind = %v, want CBZ", instr.Kind)
	}
	pp := instr.Params.(CBZParams)
	if pp.Rn != R0 || pp.Imm32 != 2 {
		t.Fatalf("Rn/Imm32 = %v/%d, want R0/2", pp.Rn, pp.Imm32)
	}
}

func TestDecodeBCond16(t *testing.T) {
	// BEQ with imm8=2: 1101 0000 00000010
	w := uint16(0b1101000000000010)
	instr := Decode(w)
	if instr.Kind != KindBCond {
		t.Fatalf("Kind = %v, want BCond", instr.Kind)
	}
	pp := instr.Params.(CondBranchParams)
	if pp.Cond != CondEQ || pp.Imm32 != 4 {
		t.Fatalf("Cond/Imm32 = %v/%d, want EQ/4", pp.Cond, pp.Imm32)
	}
}

func TestDecodeUnknownHint16IsNOP(t *testing.T) {
	// An unallocated hint (mask = 0, so not IT) decodes as NOP rather
	// than UDF.
	w := uint16(0b1011111101010000) // 0xBF50: hint space, op2=0x50, unmapped
	instr := Decode(w)
	if instr.Kind != KindNOP {
		t.Fatalf("Kind = %v, want NOP (unrecognized hint falls back to NOP)", instr.Kind)
	}
}

func TestDecode32MOVImmModified(t *testing.T) {
	// MOV.W R0, #0x55 (modified immediate, i=0, imm3=0, imm8=0x55).
	instr := Decode32(0xF05F, 0x0055)
	if instr.Kind != KindMOVImm {
		t.Fatalf("Kind = %v, want MOVImm", instr.Kind)
	}
	if !instr.Thumb32 {
		t.Fatalf("Thumb32 = false, want true")
	}
	pp := instr.Params.(Reg2ImmCarryParams)
	if pp.Rd != R0 {
		t.Fatalf("Rd = %v, want R0", pp.Rd)
	}
	if got := pp.Imm32.Resolve(false); got != 0x55 {
		t.Fatalf("Imm32.Resolve(false) = %#x, want 0x55", got)
	}
	if pp.SetFlags != SetFlagsTrue {
		t.Fatalf("SetFlags = %v, want true", pp.SetFlags)
	}
}

func TestDecode32LDRImmediateT3(t *testing.T) {
	// LDR.W R2,[R1,#0x800]: T3 form (w2 bit11 set selects the 12-bit
	// unsigned-immediate encoding).
	instr := Decode32(0x1A01, 0x2800)
	if instr.Kind != KindLDR {
		t.Fatalf("Kind = %v, want LDR", instr.Kind)
	}
	pp := instr.Params.(Reg3FullParams)
	if pp.Rt != R2 || pp.Rn != R1 || pp.Imm32 != 0x800 || !pp.Index || !pp.Add {
		t.Fatalf("unexpected params: %+v", pp)
	}
}

func TestDecode32PushT2(t *testing.T) {
	// PUSH.W {R0,R4,LR}, T2 (always STMDB SP!, hence IncrementBefore).
	instr := Decode32(0x092D, 0x4011)
	if instr.Kind != KindPUSH {
		t.Fatalf("Kind = %v, want PUSH", instr.Kind)
	}
	pp := instr.Params.(LoadAndStoreMultipleParams)
	if !pp.IncrementBefore {
		t.Fatalf("IncrementBefore = false, want true (PUSH is STMDB)")
	}
	want := uint16(1<<0 | 1<<4 | 1<<uint(LR))
	if pp.Registers != want {
		t.Fatalf("Registers = %#x, want %#x", pp.Registers, want)
	}
	if !pp.Wback {
		t.Fatalf("Wback = false, want true")
	}
}

func TestDecode32BLBranchOffset(t *testing.T) {
	// BL with S=1 (forced alongside bit9, the dispatch discriminator),
	// imm10=0x200, J1=1/J2=1 (forced by op1=0b111), imm11=0x10: the ARM
	// ARM's I1/I2 inversion yields imm32 = -2097120 (hand-computed per
	// branchOffsetT4).
	instr := Decode32(0xF600, 0xF810)
	if instr.Kind != KindBL {
		t.Fatalf("Kind = %v, want BL", instr.Kind)
	}
	pp := instr.Params.(CondBranchParams)
	if pp.Imm32 != -2097120 {
		t.Fatalf("Imm32 = %d, want -2097120", pp.Imm32)
	}
}

func TestDecode32SBFXMsbitIsAbsolute(t *testing.T) {
	// SBFX R0, R1, #4, #8 (lsbit=4, widthm1=7 -> msbit=lsbit+widthm1=11).
	// w1 = 11110 0 1 10000 0001 (prefix, i=0, dispatch bit9=1, op=0b10000, rn=1)
	// w2 = imm3(=1)<<12 | rd(=0)<<8 | lsbit[1:0](=0)<<6 | widthm1(=7)
	instr := Decode32(0xF301, 0x1007)
	if instr.Kind != KindSBFX {
		t.Fatalf("Kind = %v, want SBFX", instr.Kind)
	}
	pp := instr.Params.(BitfieldParams)
	if pp.Rn != R1 {
		t.Fatalf("Rn = %v, want R1", pp.Rn)
	}
	if pp.Lsbit != 4 || pp.Msbit != 11 {
		t.Fatalf("Lsbit/Msbit = %d/%d, want 4/11", pp.Lsbit, pp.Msbit)
	}
}
