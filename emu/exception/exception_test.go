package exception

/*
 * cortexm - Exception controller tests.
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

func TestFixedPriorities(t *testing.T) {
	c := NewController(3)
	if c.Priority(NumReset) != -3 || c.Priority(NumNMI) != -2 || c.Priority(NumHardFault) != -1 {
		t.Fatalf("fixed priorities wrong: reset=%d nmi=%d hardfault=%d",
			c.Priority(NumReset), c.Priority(NumNMI), c.Priority(NumHardFault))
	}
}

// TestDispatchSelectsLowestPriorityThenNumber checks property 6: argmin
// priority, ties broken by lowest exception number.
func TestDispatchSelectsLowestPriorityThenNumber(t *testing.T) {
	c := NewController(3)
	c.SetEnabled(NumExternalBase, true)
	c.SetEnabled(NumExternalBase+1, true)
	c.SetPriority(NumExternalBase, 0x40)
	c.SetPriority(NumExternalBase+1, 0x40)
	c.SetPend(NumExternalBase + 1)
	c.SetPend(NumExternalBase)

	num, ok := c.NextPending()
	if !ok || num != NumExternalBase {
		t.Fatalf("NextPending got (%d,%v) want (%d,true)", num, ok, NumExternalBase)
	}
}

func TestExecutionPriorityClampedByPrimask(t *testing.T) {
	c := NewController(3)
	c.SetEnabled(NumExternalBase, true)
	c.SetPriority(NumExternalBase, 0x20)
	c.SetPend(NumExternalBase)
	if _, ok := c.NextPending(); !ok {
		t.Fatal("expected external interrupt to be eligible before masking")
	}
	c.SetPrimask(true)
	if _, ok := c.NextPending(); ok {
		t.Fatal("PRIMASK should force execution priority to 0, masking any positive-priority exception")
	}
}

func TestActivateDeactivateRoundTrip(t *testing.T) {
	c := NewController(3)
	c.SetEnabled(NumExternalBase, true)
	c.SetPriority(NumExternalBase, 0x20)
	c.SetPend(NumExternalBase)
	c.Activate(NumExternalBase)
	if c.State(NumExternalBase) != Active {
		t.Fatalf("expected Active, got %v", c.State(NumExternalBase))
	}
	c.SetPend(NumExternalBase) // re-pend while active
	if c.State(NumExternalBase) != ActivePending {
		t.Fatalf("expected ActivePending after re-pend, got %v", c.State(NumExternalBase))
	}
	c.Deactivate(NumExternalBase)
	if c.State(NumExternalBase) != Pending {
		t.Fatalf("expected Pending after deactivating an ActivePending exception, got %v", c.State(NumExternalBase))
	}
}

func TestPriorityStepRounding(t *testing.T) {
	c := NewController(3) // priority steps of 32
	c.SetEnabled(NumExternalBase, true)
	c.SetPriority(NumExternalBase, 0x1F)
	if c.Priority(NumExternalBase) != 0 {
		t.Fatalf("0x1F should round down to priority 0 at 3 implemented bits, got %d", c.Priority(NumExternalBase))
	}
	c.SetPriority(NumExternalBase, 0x20)
	if c.Priority(NumExternalBase) != 32 {
		t.Fatalf("0x20 should map to priority 32, got %d", c.Priority(NumExternalBase))
	}
}

func TestDisabledInterruptNeverDispatches(t *testing.T) {
	c := NewController(3)
	c.SetPriority(NumExternalBase, 0x00)
	c.SetPend(NumExternalBase) // never enabled
	if _, ok := c.NextPending(); ok {
		t.Fatal("a disabled external interrupt must never be selected for dispatch")
	}
}
