/*
 * cortexm - Exception controller: per-vector state machine, priority
 * arbitration, and the NVIC shadow for external interrupts.
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

// Package exception implements the NVIC-style per-vector state machine:
// set-pend, dispatch selection by priority, and the active/pending
// bookkeeping tail-chain and late-arrival rely on.
package exception

// State is one exception's position in the architectural state machine.
type State int

const (
	Inactive State = iota
	Pending
	Active
	ActivePending
)

// Fixed system exception numbers, per the Cortex-M vector table layout.
const (
	NumReset        = 1
	NumNMI          = 2
	NumHardFault    = 3
	NumMemManage    = 4
	NumBusFault     = 5
	NumUsageFault   = 6
	NumSVCall       = 11
	NumDebugMon     = 12
	NumPendSV       = 14
	NumSysTick      = 15
	NumExternalBase = 16
)

// MaxExceptions bounds the vector table: 16 system/fixed slots plus up
// to 480 external interrupts, per spec.md §3.
const MaxExceptions = 16 + 480

// record is one exception's live state.
type record struct {
	state    State
	priority int
}

// Controller owns every exception's state, the programmable priority
// table, and the cached execution priority, per spec.md §4.F.
type Controller struct {
	records      [MaxExceptions]record
	enabledMap   [MaxExceptions]bool
	priorityBits uint

	primask   bool
	faultmask bool
	basepri   uint8

	execPriority int
}

// Enabled reports whether an external interrupt is enabled in the NVIC
// shadow. System exceptions (< NumExternalBase) are always enabled:
// their availability is governed by SHCSR, not this bitmap.
func (c *Controller) Enabled(num int) bool {
	if num < NumExternalBase {
		return true
	}
	return c.enabledMap[num]
}

// SetEnabled writes the NVIC shadow's enable bit for an external
// interrupt, per spec.md §3's "two bitmap arrays ... for enabled and
// pending".
func (c *Controller) SetEnabled(num int, v bool) {
	if num < NumExternalBase {
		return
	}
	c.enabledMap[num] = v
}

// NewController builds a controller with the given configurable NVIC
// priority-bit width (spec.md §9 Open Question: constructor parameter,
// default 3 giving priority steps of 32 as the default example names).
func NewController(priorityBits uint) *Controller {
	if priorityBits == 0 || priorityBits > 8 {
		priorityBits = 3
	}
	c := &Controller{priorityBits: priorityBits}
	c.records[NumReset] = record{state: Inactive, priority: -3}
	c.records[NumNMI] = record{state: Inactive, priority: -2}
	c.records[NumHardFault] = record{state: Inactive, priority: -1}
	c.recomputeExecPriority()
	return c
}

// priorityStep is the smallest distinguishable priority value for the
// configured bit width: an 8-bit priority field with only the top
// priorityBits implemented reads/writes in these units.
func (c *Controller) priorityStep() int {
	return 1 << (8 - c.priorityBits)
}

// SetPriority assigns a configurable exception's priority from an 8-bit
// field, rounding down to the implemented bit width. Fixed exceptions
// (Reset/NMI/HardFault) reject this call.
func (c *Controller) SetPriority(num int, raw uint8) {
	if num == NumReset || num == NumNMI || num == NumHardFault {
		return
	}
	step := c.priorityStep()
	c.records[num].priority = (int(raw) / step) * step
	c.recomputeExecPriority()
}

func (c *Controller) Priority(num int) int {
	return c.records[num].priority
}

func (c *Controller) State(num int) State {
	return c.records[num].state
}

// SetPend moves an exception from Inactive/Pending to Pending, or from
// Active to ActivePending, per the state diagram in spec.md §4.F.
func (c *Controller) SetPend(num int) {
	switch c.records[num].state {
	case Inactive, Pending:
		c.records[num].state = Pending
	case Active:
		c.records[num].state = ActivePending
	}
}

// pendingEligible reports whether a pending/active-pending exception is
// actually dispatchable: an external interrupt whose NVIC enable bit is
// clear is pending in the register sense but never selected.
func (c *Controller) pendingEligible(num int) bool {
	return c.Enabled(num)
}

// ClearPend withdraws a pending request without having dispatched it.
func (c *Controller) ClearPend(num int) {
	switch c.records[num].state {
	case Pending:
		c.records[num].state = Inactive
	case ActivePending:
		c.records[num].state = Active
	}
}

// SetPrimask, SetFaultmask, SetBasepri update the masking registers that
// clamp execution priority, recomputing the cached value immediately.
func (c *Controller) SetPrimask(v bool) {
	c.primask = v
	c.recomputeExecPriority()
}

func (c *Controller) SetFaultmask(v bool) {
	c.faultmask = v
	c.recomputeExecPriority()
}

func (c *Controller) SetBasepri(v uint8) {
	c.basepri = v
	c.recomputeExecPriority()
}

func (c *Controller) Primask() bool   { return c.primask }
func (c *Controller) Faultmask() bool { return c.faultmask }
func (c *Controller) Basepri() uint8  { return c.basepri }

// recomputeExecPriority implements get_execution_priority() per
// spec.md §4.F: start unbounded, lower to every Active exception's
// priority, then clamp by PRIMASK/FAULTMASK/BASEPRI.
func (c *Controller) recomputeExecPriority() {
	priority := 256
	for i := range c.records {
		if c.records[i].state == Active || c.records[i].state == ActivePending {
			if c.records[i].priority < priority {
				priority = c.records[i].priority
			}
		}
	}
	if c.basepri != 0 {
		step := c.priorityStep()
		bp := (int(c.basepri) / step) * step
		if bp < priority {
			priority = bp
		}
	}
	if c.primask {
		priority = 0
	}
	if c.faultmask {
		priority = -1
	}
	c.execPriority = priority
}

// ExecutionPriority returns the cached value recomputed by every
// mutating call above.
func (c *Controller) ExecutionPriority() int {
	return c.execPriority
}

// NextPending reports the next exception to take: argmin priority, ties
// broken by lowest exception number, per testable property 6. ok is
// false when no pending exception outranks the current execution
// priority, or none is pending at all.
func (c *Controller) NextPending() (num int, ok bool) {
	best := -1
	bestPriority := 257
	for i := 1; i < len(c.records); i++ {
		st := c.records[i].state
		if st != Pending && st != ActivePending {
			continue
		}
		if !c.pendingEligible(i) {
			continue
		}
		p := c.records[i].priority
		if p < bestPriority {
			bestPriority = p
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	if bestPriority >= c.execPriority {
		return 0, false
	}
	return best, true
}

// Activate transitions a dispatched exception Pending -> Active (or
// ActivePending -> Active, since it is now being serviced again after
// a re-pend) and recomputes the cached priority.
func (c *Controller) Activate(num int) {
	c.records[num].state = Active
	c.recomputeExecPriority()
}

// Deactivate implements the exception-return half of the state machine:
// Active -> Inactive, ActivePending -> Pending.
func (c *Controller) Deactivate(num int) {
	switch c.records[num].state {
	case Active:
		c.records[num].state = Inactive
	case ActivePending:
		c.records[num].state = Pending
	}
	c.recomputeExecPriority()
}

// IsActive reports whether exception num is active (Active or
// ActivePending).
func (c *Controller) IsActive(num int) bool {
	return c.records[num].state == Active || c.records[num].state == ActivePending
}

// ActiveCount reports how many exceptions are Active or ActivePending.
func (c *Controller) ActiveCount() int {
	n := 0
	for i := range c.records {
		if c.records[i].state == Active || c.records[i].state == ActivePending {
			n++
		}
	}
	return n
}
