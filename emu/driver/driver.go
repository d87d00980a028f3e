/*
 * cortexm - Driver: owns the processor, bus and exception controller,
 * and runs the fetch-decode-execute loop.
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

package driver

import (
	"fmt"
	"log/slog"

	"github.com/cmsim/cortexm/emu/cpu"
	"github.com/cmsim/cortexm/emu/device"
	"github.com/cmsim/cortexm/emu/exception"
	"github.com/cmsim/cortexm/emu/memory"
	"github.com/cmsim/cortexm/emu/semihosting"
	"github.com/cmsim/cortexm/emu/systick"
)

// Driver composes one simulated core: registers and bus (via
// cpu.Processor), the exception controller and its SCB/NVIC/DWT
// shadows, SysTick, and the optional device façade. It is the only
// type a host (CLI, monitor REPL, GDB-RSP adapter) talks to.
type Driver struct {
	proc cpu.Processor
	bus  *remapBus

	ctrl    *exception.Controller
	scb     *exception.SCB
	nvic    *exception.NVICRegisters
	systick *systick.SysTick
	dwt     *exception.DWT

	cache     []cpu.Instruction
	flashBase uint32
	flashLen  uint32 // bytes covered by cache

	breakpoints map[uint32]bool

	devices *device.Region

	running  bool
	cycles   uint64
	exitCode uint32

	// activeStack tracks nested exception numbers in entry order, for
	// the return path's mode/tail-chain computation (§4.F).
	activeStack []int

	trace  bool
	events chan RunEvent
}

// New builds a Driver from a boot descriptor: maps flash, SRAM, the
// System Control Space and (if given) a device façade onto one bus,
// builds the pre-decode cache, and resets the core, per spec.md §4.J.
func New(cfg Config) (*Driver, error) {
	if len(cfg.CodeImage) == 0 {
		return nil, fmt.Errorf("driver: empty code image")
	}
	flashSize := cfg.FlashSize
	if flashSize == 0 {
		flashSize = uint32(len(cfg.CodeImage))
	}
	if uint32(len(cfg.CodeImage)) > flashSize {
		return nil, fmt.Errorf("driver: code image (%d bytes) exceeds flash size (%d)", len(cfg.CodeImage), flashSize)
	}

	priBits := cfg.PriorityBits
	if priBits == 0 {
		priBits = cfg.Variant.defaultPriorityBits()
	}

	bus := memory.NewBus()

	image := make([]byte, flashSize)
	copy(image, cfg.CodeImage)
	flash := memory.NewFlashRegion(cfg.FlashBase, image)
	flash.AllowSelfModify = cfg.AllowSelfModify
	bus.Map(flash)

	if cfg.SRAMSize > 0 {
		bus.Map(memory.NewSRAMRegion(cfg.SRAMBase, cfg.SRAMSize))
	}

	ctrl := exception.NewController(priBits)
	scb := exception.NewSCB(ctrl)
	vtor := cfg.VectorTableBase
	if vtor == 0 {
		vtor = cfg.FlashBase
	}
	scb.SetVTOR(vtor)
	nvic := exception.NewNVICRegisters(ctrl)
	st := systick.New()
	dwt := exception.NewDWT()

	// System Control Space: fixed at 0xE000E000, a 4 KiB page holding
	// NVIC (offset 0x100, matching the real ISER address 0xE000E100),
	// SysTick (0x10) and the SCB (0xD00), per spec.md §4.E's routing
	// table. DWT lives at the separate 0xE0001000 page in real
	// hardware; since PPBRegion models only the SCS page, the driver
	// ticks it directly instead of mapping it on the bus.
	ppb := memory.NewPPBRegion(0xE000E000)
	ppb.Attach(0x100, 0x380, nvic)
	ppb.Attach(0x10, 0x10, st)
	ppb.Attach(exception.OffSCB, exception.SizeSCB, scb)
	bus.Map(ppb)

	if cfg.Devices != nil {
		bus.Map(cfg.Devices)
	}

	rb := &remapBus{
		Bus:     bus,
		from:    cfg.RemapFrom,
		to:      cfg.RemapTo,
		length:  cfg.RemapLength,
		enabled: cfg.RemapLength != 0,
	}

	backlog := cfg.EventBacklog
	if backlog == 0 {
		backlog = 256
	}

	d := &Driver{
		bus:         rb,
		ctrl:        ctrl,
		scb:         scb,
		nvic:        nvic,
		systick:     st,
		dwt:         dwt,
		cache:       buildCache(image),
		flashBase:   cfg.FlashBase,
		flashLen:    uint32(len(image)),
		breakpoints: make(map[uint32]bool),
		trace:       cfg.Trace,
		events:      make(chan RunEvent, backlog),
		devices:     cfg.Devices,
	}
	d.proc.Bus = rb
	d.proc.Semihost = d.makeSemihostHook(cfg.Semihost)
	d.proc.NoExclusiveOps = cfg.Variant == ArchV6M

	d.Reset()
	slog.Info("driver constructed", "flash_base", fmt.Sprintf("%#x", cfg.FlashBase),
		"flash_size", flashSize, "sram_base", fmt.Sprintf("%#x", cfg.SRAMBase), "sram_size", cfg.SRAMSize)
	return d, nil
}

// buildCache pre-decodes every half-word offset of the image once, per
// spec.md §4.J: "Pre-decode fills a vector of length |code|/2 ... safe
// because the decoder is pure and mis-aligned decodings are never
// executed." A 32-bit instruction's second half-word still gets its own
// (unreachable) cache entry; that's fine, nothing ever looks it up.
func buildCache(image []byte) []cpu.Instruction {
	n := len(image) / 2
	cache := make([]cpu.Instruction, n)
	hw := func(i int) uint16 { return uint16(image[2*i]) | uint16(image[2*i+1])<<8 }
	for i := 0; i < n; i++ {
		w1 := hw(i)
		if cpu.IsThumb32(w1) && i+1 < n {
			cache[i] = cpu.Decode32(w1, hw(i+1))
		} else {
			cache[i] = cpu.Decode(w1)
		}
	}
	return cache
}

// Reset reloads MSP from word 0 and PC from word 1 of the vector table
// (at the current VTOR), zeros the register file, and clears run state,
// per spec.md §4.J. Breakpoints set through the debugger adapter survive
// a reset; they are a debugging concern, not architectural state.
func (d *Driver) Reset() {
	vtor := d.scb.VTOR()
	msp, err := d.bus.ReadU32(vtor)
	if err != nil {
		slog.Error("reset: failed reading initial MSP", "vtor", fmt.Sprintf("%#x", vtor), "err", err)
		msp = 0
	}
	pc, err := d.bus.ReadU32(vtor + 4)
	if err != nil {
		slog.Error("reset: failed reading reset vector", "vtor", fmt.Sprintf("%#x", vtor), "err", err)
		pc = vtor
	}

	d.proc.Regs.Reset(msp)
	d.proc.Regs.SetRawPC(pc)
	d.proc.Halted = false
	d.proc.PendingSVC = false
	d.proc.ExcReturn = 0

	d.running = true
	d.cycles = 0
	d.exitCode = 0
	d.activeStack = d.activeStack[:0]

	slog.Info("core reset", "msp", fmt.Sprintf("%#x", msp), "pc", fmt.Sprintf("%#x", d.proc.Regs.RawPC()))
}

// Stats reports cumulative cycle accounting, per spec.md §3's cycle
// count and the driver's "returns a cycle count ... when the program
// stops" contract.
type Stats struct {
	Cycles       uint64
	CycleCounter uint32 // DWT.CYCCNT, independently gated by DWT_CTRL.CYCCNTENA
}

func (d *Driver) Stats() Stats {
	return Stats{Cycles: d.cycles, CycleCounter: d.dwtCycles()}
}

func (d *Driver) dwtCycles() uint32 {
	v, _ := d.dwt.ReadRegister(0x04)
	return v
}

// Running reports whether the run loop would still do work on the next
// Step; false once semihosting has requested application exit.
func (d *Driver) Running() bool { return d.running }

// Events returns the channel every Step result is also (non-blockingly)
// published to, so a host -- the monitor REPL or a GDB-RSP adapter
// driving Continue in its own goroutine -- can observe run progress
// without polling Step's return value directly, per spec.md §4.J's
// run-event channel.
func (d *Driver) Events() <-chan RunEvent { return d.events }

func (d *Driver) publish(ev RunEvent) RunEvent {
	select {
	case d.events <- ev:
	default:
	}
	return ev
}

// ExitCode is meaningful once Running() is false: 0 on a clean
// semihosting exit, non-zero when an uncaught HardFault or a host error
// terminated the run, per spec.md §4.J's exit-code contract.
func (d *Driver) ExitCode() uint32 { return d.exitCode }

// remapBus wraps *memory.Bus with the single from/to/length remap entry
// a boot configuration may describe (spec.md §4.E): an access whose
// address falls in [from, from+length) is redirected to the
// corresponding offset of [to, to+length) before reaching the bus.
type remapBus struct {
	*memory.Bus
	from, to, length uint32
	enabled          bool
}

func (b *remapBus) translate(addr uint32) uint32 {
	if b.enabled && addr >= b.from && addr < b.from+b.length {
		return b.to + (addr - b.from)
	}
	return addr
}

func (b *remapBus) ReadFetch(addr uint32) (uint16, error) { return b.Bus.ReadFetch(b.translate(addr)) }
func (b *remapBus) ReadU8(addr uint32) (uint8, error)     { return b.Bus.ReadU8(b.translate(addr)) }
func (b *remapBus) ReadU16(addr uint32) (uint16, error)   { return b.Bus.ReadU16(b.translate(addr)) }
func (b *remapBus) ReadU32(addr uint32) (uint32, error)   { return b.Bus.ReadU32(b.translate(addr)) }
func (b *remapBus) WriteU8(addr uint32, v uint8) error    { return b.Bus.WriteU8(b.translate(addr), v) }
func (b *remapBus) WriteU16(addr uint32, v uint16) error  { return b.Bus.WriteU16(b.translate(addr), v) }
func (b *remapBus) WriteU32(addr uint32, v uint32) error  { return b.Bus.WriteU32(b.translate(addr), v) }

// makeSemihostHook adapts a host semihosting.Dispatcher to the
// cpu.SemihostingHook signature the executor calls on BKPT 0xAB, per
// spec.md §4.H. R0 carries the operation, R1 the argument-block pointer;
// cpu.Bus structurally satisfies semihosting.MemReader, so Decode can be
// called directly on it with no adapter type.
//
// The ABI as implemented here has no room for SYS_EXCEPTION's subcode to
// flow back through a register (Decode treats R1 itself as the
// ExceptionReason value), so the process exit code is threaded back to
// the driver through a side channel -- this closure's capture of d --
// rather than through R0.
func (d *Driver) makeSemihostHook(dispatch semihosting.Dispatcher) cpu.SemihostingHook {
	return func(r *cpu.RegisterFile, bus cpu.Bus) (uint32, bool) {
		op := r.GetR(cpu.R0)
		argBlock := r.GetR(cpu.R1)
		req, err := semihosting.Decode(bus, op, argBlock)
		if err != nil {
			slog.Warn("semihosting: decode failed", "op", op, "err", err)
			return 0, false
		}
		if dispatch == nil {
			return 0, false
		}
		resp := dispatch(req)
		if resp.Stop {
			d.running = false
			d.exitCode = resp.ExitCode
		}
		return resp.Result, resp.Stop
	}
}

// tickPeripherals advances SysTick, the DWT cycle counter, and any
// attached device peripherals by one instruction, pending whichever
// exception each one requests. Nothing commits to taking an exception
// until after this runs, so NextPending always sees the full set of
// pends a given step could produce (late-arrival is free).
func (d *Driver) tickPeripherals() {
	d.dwt.Tick()
	if d.systick.Tick() {
		d.ctrl.SetPend(exception.NumSysTick)
	}
	if d.devices == nil {
		return
	}
	for _, p := range d.devices.Peripherals() {
		if pending, num := p.IRQ(); pending {
			d.ctrl.SetPend(num)
		}
	}
}

// fetchDecode returns the Instruction at pc, consulting the pre-decode
// cache when pc falls within the cached flash image and falling back to
// live decode otherwise (RAM-resident code). The cache is built once at
// construction and never refreshed, so flash rewritten at run time keeps
// executing as originally decoded.
func (d *Driver) fetchDecode(pc uint32) (cpu.Instruction, error) {
	if pc >= d.flashBase && pc < d.flashBase+d.flashLen {
		idx := (pc - d.flashBase) / 2
		if int(idx) < len(d.cache) {
			return d.cache[idx], nil
		}
	}
	w1, err := d.bus.ReadFetch(pc)
	if err != nil {
		return cpu.Instruction{}, err
	}
	if cpu.IsThumb32(w1) {
		w2, err := d.bus.ReadFetch(pc + 2)
		if err != nil {
			return cpu.Instruction{}, err
		}
		return cpu.Decode32(w1, w2), nil
	}
	return cpu.Decode(w1), nil
}

// Step executes one instruction (or services one pended exception/sleep
// cycle) and reports what happened, per spec.md §4.J.
func (d *Driver) Step() RunEvent {
	if !d.running {
		return d.publish(RunEvent{Kind: EventFinalized, ExitCode: d.exitCode})
	}

	d.proc.DivZeroTrap = d.scb.DivZeroTrap()

	if d.proc.Halted {
		d.tickPeripherals()
		if _, ok := d.ctrl.NextPending(); ok {
			d.proc.Halted = false
		} else {
			return d.publish(RunEvent{Kind: EventHalted})
		}
	}

	pc := d.proc.Regs.RawPC()
	instr, err := d.fetchDecode(pc)
	if err != nil {
		if ferr := d.handleFault(&cpu.Fault{Kind: cpu.FaultIAccViol, PC: pc, Err: err}); ferr != nil {
			slog.Error("unrecoverable fault entry failure", "err", ferr)
			d.exitCode = 1
			d.running = false
			return d.publish(RunEvent{Kind: EventFinalized, ExitCode: 1})
		}
		return d.publish(RunEvent{Kind: EventDoneStep})
	}

	if d.trace {
		slog.Debug("step", "pc", fmt.Sprintf("%#x", pc), "kind", instr.Kind)
	}

	_, fault := d.proc.Step(instr)
	d.cycles++

	if fault != nil {
		if ferr := d.handleFault(fault); ferr != nil {
			slog.Error("unrecoverable fault entry failure", "err", ferr)
			d.exitCode = 1
			d.running = false
			return d.publish(RunEvent{Kind: EventFinalized, ExitCode: 1})
		}
		return d.publish(RunEvent{Kind: EventDoneStep})
	}

	if d.proc.PendingSVC {
		d.proc.PendingSVC = false
		d.ctrl.SetPend(exception.NumSVCall)
	}
	if d.proc.ExcReturn != 0 {
		ret := d.proc.ExcReturn
		d.proc.ExcReturn = 0
		if err := d.exceptionReturn(ret); err != nil {
			slog.Error("exception return failed", "err", err)
		}
	}

	d.tickPeripherals()

	if !d.running {
		return d.publish(RunEvent{Kind: EventFinalized, ExitCode: d.exitCode})
	}

	if num, ok := d.ctrl.NextPending(); ok {
		if err := d.takeException(num); err != nil {
			slog.Error("exception entry failed", "num", num, "err", err)
		}
		return d.publish(RunEvent{Kind: EventDoneStep})
	}

	if d.breakpoints[d.proc.Regs.RawPC()] {
		return d.publish(RunEvent{Kind: EventBreak, Addr: d.proc.Regs.RawPC()})
	}
	return d.publish(RunEvent{Kind: EventDoneStep})
}

// Continue steps until poll returns true (host wants to stop, e.g. a
// signal or UI interrupt), a breakpoint is hit, the run halts, or the
// program finalizes, per spec.md §4.J.
func (d *Driver) Continue(poll func() bool) RunEvent {
	for {
		ev := d.Step()
		switch ev.Kind {
		case EventBreak, EventHalted, EventFinalized:
			return ev
		}
		if poll != nil && poll() {
			return RunEvent{Kind: EventDoneStep}
		}
	}
}

// RangeStep steps while PC stays within [lo, hi), stopping (with
// EventDoneStep) the first time it leaves that range, per spec.md §4.J's
// range-stepping primitive (a GDB-RSP convenience: step over a source
// line without single-stepping through every machine instruction).
func (d *Driver) RangeStep(lo, hi uint32, poll func() bool) RunEvent {
	for {
		ev := d.Step()
		switch ev.Kind {
		case EventBreak, EventHalted, EventFinalized:
			return ev
		}
		pc := d.proc.Regs.RawPC()
		if pc < lo || pc >= hi {
			return RunEvent{Kind: EventDoneStep}
		}
		if poll != nil && poll() {
			return RunEvent{Kind: EventDoneStep}
		}
	}
}

// SetBreakpoint and ClearBreakpoint implement the debugger adapter's
// add_sw_breakpoint/remove_sw_breakpoint, per spec.md §4.J. Breakpoints
// are host-side: Step checks the map after every instruction rather
// than the executor seeing a planted BKPT.
func (d *Driver) SetBreakpoint(addr uint32)   { d.breakpoints[addr] = true }
func (d *Driver) ClearBreakpoint(addr uint32) { delete(d.breakpoints, addr) }

// Registers is the debugger adapter's flat register view: R0-R12, SP,
// LR, PC and the combined PSR word, per spec.md §4.J's read_registers/
// write_registers pair.
type Registers struct {
	R    [13]uint32
	SP   uint32
	LR   uint32
	PC   uint32
	CPSR uint32
}

// ReadRegisters snapshots the architectural register file.
func (d *Driver) ReadRegisters() Registers {
	r := &d.proc.Regs
	var out Registers
	for i := range out.R {
		out.R[i] = r.GetR(cpu.Reg(i))
	}
	out.SP = r.GetR(cpu.SP)
	out.LR = r.GetR(cpu.LR)
	out.PC = r.RawPC()
	out.CPSR = r.PSRValue()
	return out
}

// WriteRegisters restores a full register snapshot, e.g. from a GDB-RSP
// 'G' packet or a saved state.
func (d *Driver) WriteRegisters(regs Registers) {
	r := &d.proc.Regs
	for i, v := range regs.R {
		r.SetR(cpu.Reg(i), v)
	}
	r.SetActiveSPValue(regs.SP)
	r.SetR(cpu.LR, regs.LR)
	r.SetRawPC(regs.PC)
	r.RestorePSR(regs.CPSR)
}

// ReadMemory and WriteMemory implement the debugger adapter's raw memory
// access, byte at a time so a partial range at the end of a mapped
// region still returns what it can read (partial reads are reported via
// the returned error, matching an RSP 'm' packet's semantics).
func (d *Driver) ReadMemory(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := d.bus.ReadU8(addr + uint32(i))
		if err != nil {
			return out[:i], err
		}
		out[i] = v
	}
	return out, nil
}

func (d *Driver) WriteMemory(addr uint32, data []byte) error {
	for i, v := range data {
		if err := d.bus.WriteU8(addr+uint32(i), v); err != nil {
			return err
		}
	}
	return nil
}
