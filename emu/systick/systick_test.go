package systick

/*
 * cortexm - SysTick tests.
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

// TestSysTickScenario reproduces the scenario from the testable-properties
// list: RVR=1, CSR=ENABLE|TICKINT (the 0->1 ENABLE transition reloads
// CVR from RVR to 1). The tick that decrements CVR 1->0 reaches zero
// and, in that same call, reloads CVR, sets COUNTFLAG, and requests the
// exception -- per original_source's syst_step, which fires on the
// step that reaches zero rather than the one after.
func TestSysTickScenario(t *testing.T) {
	s := New()
	s.WriteRegister(regRVR, 1)
	s.WriteRegister(regCSR, 0x00000003) // ENABLE|TICKINT, reloads CVR to 1

	if s.CVR() != 1 {
		t.Fatalf("CVR after enabling = %d, want 1 (reloaded from RVR)", s.CVR())
	}
	if req := s.Tick(); !req {
		t.Fatal("tick reaching CVR=0 should reload and request the exception")
	}
	if !s.CountFlag() {
		t.Fatal("COUNTFLAG should be set after reload")
	}
	if s.CVR() != 1 {
		t.Fatalf("CVR after reload = %d, want 1 (RVR)", s.CVR())
	}
}

// TestWriteCSREnableReloadsCVR covers the 0->1 ENABLE transition alone,
// per original_source's write_syst_csr.
func TestWriteCSREnableReloadsCVR(t *testing.T) {
	s := New()
	s.WriteRegister(regRVR, 1000)
	s.WriteRegister(regCSR, 0x00000001) // ENABLE only
	if s.CVR() != 1000 {
		t.Fatalf("CVR after ENABLE transition = %d, want 1000 (reloaded from RVR)", s.CVR())
	}

	// Writing ENABLE again (already 1) must not reload CVR a second time.
	s.Tick()
	s.WriteRegister(regCSR, 0x00000001)
	if s.CVR() == 1000 {
		t.Fatal("re-writing an already-set ENABLE bit must not reload CVR")
	}
}

func TestCountFlagClearsOnRead(t *testing.T) {
	s := New()
	s.csr |= 1 << csrCountFlagBit
	v, _ := s.ReadRegister(regCSR)
	if v&(1<<csrCountFlagBit) == 0 {
		t.Fatal("first read should still report COUNTFLAG set")
	}
	v2, _ := s.ReadRegister(regCSR)
	if v2&(1<<csrCountFlagBit) != 0 {
		t.Fatal("COUNTFLAG should clear after being read")
	}
}

func TestDisabledSysTickDoesNotTick(t *testing.T) {
	s := New()
	s.WriteRegister(regRVR, 100)
	s.cvr = 5
	if req := s.Tick(); req {
		t.Fatal("a disabled SysTick must never request an exception")
	}
	if s.CVR() != 5 {
		t.Fatalf("disabled SysTick must not decrement CVR, got %d", s.CVR())
	}
}

func TestWriteToCVRClearsCounterAndFlag(t *testing.T) {
	s := New()
	s.cvr = 42
	s.csr |= 1 << csrCountFlagBit
	s.WriteRegister(regCVR, 0xDEADBEEF)
	if s.CVR() != 0 {
		t.Fatalf("any write to CVR must clear it, got %d", s.CVR())
	}
	if s.CountFlag() {
		t.Fatal("any write to CVR must also clear COUNTFLAG")
	}
}
