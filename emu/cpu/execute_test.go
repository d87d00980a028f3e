/*
 * cortexm - Executor tests: one Processor driven through Step against a
 * trivial in-memory Bus fake.
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
	"testing"

	"github.com/cmsim/cortexm/emu/bits"
)

// fakeBus is a flat byte-addressed memory with an alignment check
// shaped like memory.Bus's, so busFault/isUnalignedBusError get real
// coverage without emu/cpu importing emu/memory.
type fakeBus struct {
	mem map[uint32]byte
}

type fakeAlignErr struct{ misaligned bool }

func (e *fakeAlignErr) Error() string  { return "misaligned" }
func (e *fakeAlignErr) Unaligned() bool { return e.misaligned }

func (b *fakeBus) ReadFetch(addr uint32) (uint16, error) {
	return uint16(b.mem[addr]) | uint16(b.mem[addr+1])<<8, nil
}

func (b *fakeBus) ReadU8(addr uint32) (uint8, error) { return b.mem[addr], nil }

func (b *fakeBus) ReadU16(addr uint32) (uint16, error) {
	if addr&1 != 0 {
		return 0, &fakeAlignErr{misaligned: true}
	}
	return uint16(b.mem[addr]) | uint16(b.mem[addr+1])<<8, nil
}

func (b *fakeBus) ReadU32(addr uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, &fakeAlignErr{misaligned: true}
	}
	v := uint32(b.mem[addr]) | uint32(b.mem[addr+1])<<8 | uint32(b.mem[addr+2])<<16 | uint32(b.mem[addr+3])<<24
	return v, nil
}

func (b *fakeBus) WriteU8(addr uint32, v uint8) error { b.mem[addr] = v; return nil }

func (b *fakeBus) WriteU16(addr uint32, v uint16) error {
	if addr&1 != 0 {
		return &fakeAlignErr{misaligned: true}
	}
	b.mem[addr] = byte(v)
	b.mem[addr+1] = byte(v >> 8)
	return nil
}

func (b *fakeBus) WriteU32(addr uint32, v uint32) error {
	if addr&3 != 0 {
		return &fakeAlignErr{misaligned: true}
	}
	b.mem[addr] = byte(v)
	b.mem[addr+1] = byte(v >> 8)
	b.mem[addr+2] = byte(v >> 16)
	b.mem[addr+3] = byte(v >> 24)
	return nil
}

func newTestProcessor() *Processor {
	p := &Processor{Bus: &fakeBus{mem: make(map[uint32]byte)}}
	p.Regs.Reset(0x20001000)
	p.Regs.SetRawPC(0x08000000)
	return p
}

func TestStepADDImmSetsFlags(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0xFFFFFFFF)
	instr := Instruction{Kind: KindADDImm, Params: Reg2ImmParams{Rd: R1, Rn: R0, Imm32: 1, SetFlags: SetFlagsTrue}}
	res, fault := p.Step(instr)
	if fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if res.Outcome != OutcomeTaken {
		t.Fatalf("outcome = %v, want Taken", res.Outcome)
	}
	if got := p.Regs.GetR(R1); got != 0 {
		t.Fatalf("R1 = %#x, want 0", got)
	}
	if !p.Regs.Z() || !p.Regs.C() {
		t.Fatalf("Z/C = %v/%v, want true/true (wraparound)", p.Regs.Z(), p.Regs.C())
	}
	if p.Regs.RawPC() != 0x08000002 {
		t.Fatalf("PC = %#x, want advance by 2", p.Regs.RawPC())
	}
}

func TestStepSUBImmOverflow(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0x80000000)
	instr := Instruction{Kind: KindSUBImm, Params: Reg2ImmParams{Rd: R1, Rn: R0, Imm32: 1, SetFlags: SetFlagsTrue}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if p.Regs.GetR(R1) != 0x7FFFFFFF {
		t.Fatalf("R1 = %#x", p.Regs.GetR(R1))
	}
	if !p.Regs.V() {
		t.Fatalf("V flag not set on signed overflow")
	}
}

func TestStepCMPDoesNotWriteRd(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 5)
	instr := Instruction{Kind: KindCMPImm, Params: Reg2ImmParams{Rn: R0, Imm32: 5}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if !p.Regs.Z() {
		t.Fatalf("CMP 5,5 should set Z")
	}
	if got := p.Regs.GetR(R0); got != 5 {
		t.Fatalf("R0 = %d, want 5 (CMP must not write Rd)", got)
	}
}

func TestStepMOVImmCarryFromShifterImmediate(t *testing.T) {
	p := newTestProcessor()
	imm := resolveImm32Carry(0x555) // a rotated-immediate encoding (bits 11:10 != 0)
	instr := Instruction{Kind: KindMOVImm, Thumb32: true,
		Params: Reg2ImmCarryParams{Rd: R0, Imm32: imm, SetFlags: SetFlagsTrue}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	want := imm.Resolve(false)
	if got := p.Regs.GetR(R0); got != want {
		t.Fatalf("R0 = %#x, want %#x", got, want)
	}
}

func TestStepMULWritesRdLo(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R1, 6)
	p.Regs.SetR(R2, 7)
	instr := Instruction{Kind: KindMUL, Thumb32: true, Params: MulParams{RdLo: R0, Rn: R1, Rm: R2}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if got := p.Regs.GetR(R0); got != 42 {
		t.Fatalf("R0 = %d, want 42", got)
	}
}

func TestStepMLAAccumulatesFromRdHi(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R1, 6)
	p.Regs.SetR(R2, 7)
	p.Regs.SetR(R3, 100)
	instr := Instruction{Kind: KindMLA, Thumb32: true, Params: MulParams{RdLo: R0, RdHi: R3, Rn: R1, Rm: R2}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if got := p.Regs.GetR(R0); got != 142 {
		t.Fatalf("R0 = %d, want 142", got)
	}
}

func TestStepUDIVByZeroYieldsZero(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R1, 10)
	p.Regs.SetR(R2, 0)
	instr := Instruction{Kind: KindUDIV, Thumb32: true, Params: MulParams{RdLo: R0, Rn: R1, Rm: R2}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if got := p.Regs.GetR(R0); got != 0 {
		t.Fatalf("R0 = %d, want 0", got)
	}
}

func TestStepSBFXExtractsAbsoluteRange(t *testing.T) {
	p := newTestProcessor()
	// bits [11:4] of 0xF00 = 0xF0 -> sign bit (bit 7 of extracted) set.
	p.Regs.SetR(R1, 0x00000F00)
	instr := Instruction{Kind: KindSBFX, Thumb32: true,
		Params: BitfieldParams{Rd: R0, Rn: R1, Lsbit: 4, Msbit: 11}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	want := uint32(0xFFFFFFF0) // 0xF0 sign-extended from an 8-bit field
	if got := p.Regs.GetR(R0); got != want {
		t.Fatalf("R0 = %#x, want %#x", got, want)
	}
}

func TestStepUBFXExtractsAbsoluteRange(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R1, 0x00000F00)
	instr := Instruction{Kind: KindUBFX, Thumb32: true,
		Params: BitfieldParams{Rd: R0, Rn: R1, Lsbit: 4, Msbit: 11}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if got := p.Regs.GetR(R0); got != 0xF0 {
		t.Fatalf("R0 = %#x, want 0xf0", got)
	}
}

func TestStepBFIInsertsIntoField(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0xFFFFFFFF)
	p.Regs.SetR(R1, 0x3)
	instr := Instruction{Kind: KindBFI, Thumb32: true,
		Params: BitfieldParams{Rd: R0, Rn: R1, Lsbit: 4, Msbit: 5, IsInsert: true}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	want := uint32(0xFFFFFFFF) // bits 5:4 replaced by 0b11 (already 1s, so unchanged pattern but exercised)
	if got := p.Regs.GetR(R0); got != want {
		t.Fatalf("R0 = %#x, want %#x", got, want)
	}
}

func TestStepLoadStoreWordRoundTrip(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0x20000100)
	p.Regs.SetR(R1, 0xDEADBEEF)
	str := Instruction{Kind: KindSTR, Params: Reg3FullParams{Rt: R1, Rn: R0, Index: true, Add: true}}
	if _, fault := p.Step(str); fault != nil {
		t.Fatalf("store fault: %v", fault)
	}
	ldr := Instruction{Kind: KindLDR, Params: Reg3FullParams{Rt: R2, Rn: R0, Index: true, Add: true}}
	if _, fault := p.Step(ldr); fault != nil {
		t.Fatalf("load fault: %v", fault)
	}
	if got := p.Regs.GetR(R2); got != 0xDEADBEEF {
		t.Fatalf("R2 = %#x, want 0xdeadbeef", got)
	}
}

func TestStepLoadUnalignedFault(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0x20000101)
	ldr := Instruction{Kind: KindLDR, Params: Reg3FullParams{Rt: R1, Rn: R0, Index: true, Add: true}}
	_, fault := p.Step(ldr)
	if fault == nil {
		t.Fatalf("expected a fault for an unaligned word load")
	}
	if fault.Kind != FaultUnaligned {
		t.Fatalf("fault kind = %v, want Unaligned", fault.Kind)
	}
}

func TestStepLDRDSTRDRoundTrip(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0x20000200)
	p.Regs.SetR(R1, 0x11111111)
	p.Regs.SetR(R2, 0x22222222)
	strd := Instruction{Kind: KindSTRD, Thumb32: true,
		Params: Reg3FullParams{Rt: R1, Rt2: R2, Rn: R0, Index: true, Add: true}}
	if _, fault := p.Step(strd); fault != nil {
		t.Fatalf("strd fault: %v", fault)
	}
	ldrd := Instruction{Kind: KindLDRD, Thumb32: true,
		Params: Reg3FullParams{Rt: R3, Rt2: R4, Rn: R0, Index: true, Add: true}}
	if _, fault := p.Step(ldrd); fault != nil {
		t.Fatalf("ldrd fault: %v", fault)
	}
	if p.Regs.GetR(R3) != 0x11111111 || p.Regs.GetR(R4) != 0x22222222 {
		t.Fatalf("R3/R4 = %#x/%#x", p.Regs.GetR(R3), p.Regs.GetR(R4))
	}
}

func TestStepPushPopRoundTrip(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0xAAAA0000)
	p.Regs.SetR(R4, 0xBBBB0000)
	sp0 := p.Regs.ActiveSPValue()
	push := Instruction{Kind: KindPUSH, Params: LoadAndStoreMultipleParams{Registers: (1 << 0) | (1 << 4) | (1 << LR)}}
	if _, fault := p.Step(push); fault != nil {
		t.Fatalf("push fault: %v", fault)
	}
	if p.Regs.ActiveSPValue() != sp0-12 {
		t.Fatalf("SP after push = %#x, want %#x", p.Regs.ActiveSPValue(), sp0-12)
	}
	p.Regs.SetR(R0, 0)
	p.Regs.SetR(R4, 0)
	pop := Instruction{Kind: KindPOP, Params: LoadAndStoreMultipleParams{Registers: (1 << 0) | (1 << 4) | (1 << LR)}}
	if _, fault := p.Step(pop); fault != nil {
		t.Fatalf("pop fault: %v", fault)
	}
	if p.Regs.ActiveSPValue() != sp0 {
		t.Fatalf("SP after pop = %#x, want %#x", p.Regs.ActiveSPValue(), sp0)
	}
	if p.Regs.GetR(R0) != 0xAAAA0000 || p.Regs.GetR(R4) != 0xBBBB0000 {
		t.Fatalf("registers not restored by pop")
	}
}

func TestStepLDMDBDecrementsBeforeAndWritesBack(t *testing.T) {
	p := newTestProcessor()
	bus := p.Bus.(*fakeBus)
	base := uint32(0x20000300)
	bus.WriteU32(base-8, 0x1)
	bus.WriteU32(base-4, 0x2)
	p.Regs.SetR(R5, base)
	instr := Instruction{Kind: KindLDM, Thumb32: true,
		Params: LoadAndStoreMultipleParams{Rn: R5, Registers: (1 << 0) | (1 << 1), Wback: true, IncrementBefore: true}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("ldmdb fault: %v", fault)
	}
	if p.Regs.GetR(R0) != 1 || p.Regs.GetR(R1) != 2 {
		t.Fatalf("R0/R1 = %d/%d", p.Regs.GetR(R0), p.Regs.GetR(R1))
	}
	if p.Regs.GetR(R5) != base-8 {
		t.Fatalf("writeback Rn = %#x, want %#x", p.Regs.GetR(R5), base-8)
	}
}

func TestStepBranchAndLinkSetsLRWithThumbBit(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetRawPC(0x08000000)
	instr := Instruction{Kind: KindBL, Thumb32: true, Params: CondBranchParams{Imm32: 0x100}}
	res, fault := p.Step(instr)
	if fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if res.Outcome != OutcomeBranched {
		t.Fatalf("outcome = %v, want Branched", res.Outcome)
	}
	if p.Regs.GetR(LR)&1 == 0 {
		t.Fatalf("LR missing Thumb bit: %#x", p.Regs.GetR(LR))
	}
	if p.Regs.RawPC() != 0x08000000+4+0x100 {
		t.Fatalf("PC = %#x", p.Regs.RawPC())
	}
}

func TestStepBXToExcReturnDefersToDriver(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0xFFFFFFFD)
	instr := Instruction{Kind: KindBX, Params: Reg3ShiftParams{Rm: R0}}
	res, fault := p.Step(instr)
	if fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if res.Outcome != OutcomeBranched {
		t.Fatalf("outcome = %v, want Branched", res.Outcome)
	}
	if p.ExcReturn != 0xFFFFFFFD {
		t.Fatalf("ExcReturn = %#x, not recorded", p.ExcReturn)
	}
}

func TestStepCBZBranchesOnZero(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetRawPC(0x08000000)
	p.Regs.SetR(R0, 0)
	instr := Instruction{Kind: KindCBZ, Params: CBZParams{Rn: R0, Imm32: 8}}
	res, fault := p.Step(instr)
	if fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if res.Outcome != OutcomeBranched {
		t.Fatalf("outcome = %v, want Branched", res.Outcome)
	}
	if p.Regs.RawPC() != 0x08000000+4+8 {
		t.Fatalf("PC = %#x", p.Regs.RawPC())
	}
}

func TestStepITBlockGatesSkippedInstruction(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetZ(false) // condition EQ will fail
	it := Instruction{Kind: KindIT, Params: ITParams{FirstCond: CondEQ, Mask: 0x8}}
	if _, fault := p.Step(it); fault != nil {
		t.Fatalf("IT fault: %v", fault)
	}
	if !p.Regs.InITBlock() {
		t.Fatalf("IT block not entered")
	}
	p.Regs.SetR(R0, 0)
	gated := Instruction{Kind: KindMOVImm, Params: Reg2ImmCarryParams{Rd: R0, Imm32: Imm32Carry{Imm32: 99}}}
	res, fault := p.Step(gated)
	if fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if res.Outcome != OutcomeNotTaken {
		t.Fatalf("outcome = %v, want NotTaken", res.Outcome)
	}
	if p.Regs.GetR(R0) != 0 {
		t.Fatalf("R0 = %d, gated instruction should not have executed", p.Regs.GetR(R0))
	}
}

func TestStepMRSReadsAPSR(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetN(true)
	instr := Instruction{Kind: KindMRS, Thumb32: true, Params: MiscSystemParams{Rd: R0, SysReg: sysAPSR}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if p.Regs.GetR(R0)&(1<<31) == 0 {
		t.Fatalf("MRS APSR did not reflect N flag")
	}
}

func TestStepMSRWritesPRIMASK(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 1)
	instr := Instruction{Kind: KindMSR, Thumb32: true, Params: MiscSystemParams{Rn: R0, SysReg: sysPRIMASK}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if !p.Regs.Primask {
		t.Fatalf("PRIMASK not set by MSR")
	}
}

func TestStepUDFFaults(t *testing.T) {
	p := newTestProcessor()
	instr := Instruction{Kind: KindUDF}
	_, fault := p.Step(instr)
	if fault == nil || fault.Kind != FaultUndefInstr {
		t.Fatalf("fault = %v, want UndefInstr", fault)
	}
}

func TestStepLDREXSTREXRoundTrip(t *testing.T) {
	p := newTestProcessor()
	r := &p.Regs
	r.SetR(R1, 0x20000100)
	r.SetR(R0, 0xCAFEF00D)

	if _, fault := p.Step(Instruction{Kind: KindSTREX, Thumb32: true, Params: Reg3FullParams{Rt: R0, Rn: R1, Index: true, Add: true}}); fault != nil {
		t.Fatalf("STREX unexpected fault: %v", fault)
	}
	if _, fault := p.Step(Instruction{Kind: KindLDREX, Thumb32: true, Params: Reg3FullParams{Rt: R2, Rn: R1, Index: true, Add: true}}); fault != nil {
		t.Fatalf("LDREX unexpected fault: %v", fault)
	}
	if got := r.GetR(R2); got != 0xCAFEF00D {
		t.Fatalf("LDREX result = %#x, want 0xCAFEF00D", got)
	}
}

func TestStepLDREXSTREXUndefinedWhenNoExclusiveOps(t *testing.T) {
	p := newTestProcessor()
	p.NoExclusiveOps = true
	p.Regs.SetR(R1, 0x20000100)

	params := Reg3FullParams{Rt: R0, Rn: R1, Index: true, Add: true}
	if _, fault := p.Step(Instruction{Kind: KindLDREX, Thumb32: true, Params: params}); fault == nil || fault.Kind != FaultUndefInstr {
		t.Fatalf("LDREX fault = %v, want UndefInstr", fault)
	}
	if _, fault := p.Step(Instruction{Kind: KindSTREX, Thumb32: true, Params: params}); fault == nil || fault.Kind != FaultUndefInstr {
		t.Fatalf("STREX fault = %v, want UndefInstr", fault)
	}
}

func TestStepSVCSetsPendingFlag(t *testing.T) {
	p := newTestProcessor()
	instr := Instruction{Kind: KindSVC, Params: SVCParams{Imm8: 0}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if !p.PendingSVC {
		t.Fatalf("SVC did not set PendingSVC")
	}
}

func TestStepBKPTSemihostingHook(t *testing.T) {
	p := newTestProcessor()
	called := false
	p.Semihost = func(r *RegisterFile, b Bus) (uint32, bool) {
		called = true
		return 42, false
	}
	instr := Instruction{Kind: KindBKPT, Params: BkptParams{Imm8: 0xAB}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if !called {
		t.Fatalf("semihosting hook not invoked for BKPT 0xAB")
	}
	if p.Regs.GetR(R0) != 42 {
		t.Fatalf("R0 = %d, want 42", p.Regs.GetR(R0))
	}
}

func TestBusFaultDistinguishesAlignmentFromAccessViolation(t *testing.T) {
	if f := busFault(&fakeAlignErr{misaligned: true}, true); f.Kind != FaultUnaligned {
		t.Fatalf("misaligned read -> %v, want Unaligned", f.Kind)
	}
	if f := busFault(errors.New("boom"), true); f.Kind != FaultDAccViol {
		t.Fatalf("plain read error -> %v, want DAccViol", f.Kind)
	}
	if f := busFault(errors.New("boom"), false); f.Kind != FaultPreciserr {
		t.Fatalf("plain write error -> %v, want Preciserr", f.Kind)
	}
}

func TestShiftLSLSetsCarryFromLastBitShiftedOut(t *testing.T) {
	p := newTestProcessor()
	p.Regs.SetR(R0, 0x80000000)
	instr := Instruction{Kind: KindLSLImm, Params: RegImmShiftOnlyParams{Rd: R1, Rm: R0, ShiftT: bits.SRLSL, ShiftN: 1, SetFlags: SetFlagsTrue}}
	if _, fault := p.Step(instr); fault != nil {
		t.Fatalf("unexpected fault: %v", fault)
	}
	if p.Regs.GetR(R1) != 0 {
		t.Fatalf("R1 = %#x, want 0", p.Regs.GetR(R1))
	}
	if !p.Regs.C() {
		t.Fatalf("C flag not set from shifted-out bit")
	}
}
