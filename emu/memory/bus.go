/*
 * cortexm - Address bus: routes every core memory access to a Region.
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

// Package memory holds the bus router and its Region implementations:
// flash, SRAM, the private peripheral bus, and an optional device façade.
package memory

import "fmt"

// BusError reports an access this bus cannot service: no mapped region,
// or a misaligned access a region refuses. Other errors a region returns
// (such as a write to read-only flash) are passed on wrapped, not as a
// BusError.
type BusError struct {
	Addr      uint32
	Size      int
	Write     bool
	Msg       string
	Misaligned bool
}

func (e *BusError) Error() string {
	dir := "read"
	if e.Write {
		dir = "write"
	}
	return fmt.Sprintf("bus: %s%d at %#08x: %s", dir, e.Size*8, e.Addr, e.Msg)
}

// Unaligned satisfies emu/cpu's AlignmentError interface so the executor
// can distinguish an alignment fault from a generic bus error without
// importing this package's concrete error type.
func (e *BusError) Unaligned() bool { return e.Misaligned }

// Region is one mapped span of the address space. Offsets passed to
// ReadX/WriteX are already relative to the region's base.
type Region interface {
	Base() uint32
	Size() uint32
	Read8(offset uint32) (uint8, error)
	Read16(offset uint32) (uint16, error)
	Read32(offset uint32) (uint32, error)
	Write8(offset uint32, v uint8) error
	Write16(offset uint32, v uint16) error
	Write32(offset uint32, v uint32) error
}

// mapping pairs a Region with the priority it was registered at; later
// registrations shadow earlier ones on overlap, matching how a remap
// entry is expected to override the reset mapping.
type mapping struct {
	region Region
}

// Bus is the sole implementation of the core's memory contract (spec.md
// §4.E): every fetch, load, and store passes through Map/Read*/Write*.
type Bus struct {
	regions []mapping
}

// NewBus returns an empty bus; call Map to register regions in priority
// order (last registered wins on overlap).
func NewBus() *Bus {
	return &Bus{}
}

// Map registers a region. A remap entry is modeled by calling Map again
// with a region whose Base() overlaps an earlier one.
func (b *Bus) Map(r Region) {
	b.regions = append(b.regions, mapping{region: r})
}

func (b *Bus) find(addr uint32) (Region, uint32, error) {
	for i := len(b.regions) - 1; i >= 0; i-- {
		r := b.regions[i].region
		base, size := r.Base(), r.Size()
		if addr >= base && addr < base+size {
			return r, addr - base, nil
		}
	}
	return nil, 0, &BusError{Addr: addr, Msg: "unmapped"}
}

// ReadFetch reads a half-word for instruction fetch. Identical to
// ReadU16 but named separately so the driver's pre-decode cache and
// trace logging can tell fetches from data loads apart.
func (b *Bus) ReadFetch(addr uint32) (uint16, error) {
	return b.ReadU16(addr)
}

func (b *Bus) ReadU8(addr uint32) (uint8, error) {
	r, off, err := b.find(addr)
	if err != nil {
		return 0, err
	}
	v, err := r.Read8(off)
	if err != nil {
		return 0, fmt.Errorf("bus: %#08x: %w", addr, err)
	}
	return v, nil
}

func (b *Bus) ReadU16(addr uint32) (uint16, error) {
	if addr&1 != 0 {
		return 0, &BusError{Addr: addr, Size: 2, Msg: "unaligned halfword access", Misaligned: true}
	}
	r, off, err := b.find(addr)
	if err != nil {
		return 0, err
	}
	v, err := r.Read16(off)
	if err != nil {
		return 0, fmt.Errorf("bus: %#08x: %w", addr, err)
	}
	return v, nil
}

func (b *Bus) ReadU32(addr uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, &BusError{Addr: addr, Size: 4, Msg: "unaligned word access", Misaligned: true}
	}
	r, off, err := b.find(addr)
	if err != nil {
		return 0, err
	}
	v, err := r.Read32(off)
	if err != nil {
		return 0, fmt.Errorf("bus: %#08x: %w", addr, err)
	}
	return v, nil
}

func (b *Bus) WriteU8(addr uint32, v uint8) error {
	r, off, err := b.find(addr)
	if err != nil {
		return err
	}
	if err := r.Write8(off, v); err != nil {
		return fmt.Errorf("bus: %#08x: %w", addr, err)
	}
	return nil
}

func (b *Bus) WriteU16(addr uint32, v uint16) error {
	if addr&1 != 0 {
		return &BusError{Addr: addr, Size: 2, Write: true, Msg: "unaligned halfword access", Misaligned: true}
	}
	r, off, err := b.find(addr)
	if err != nil {
		return err
	}
	if err := r.Write16(off, v); err != nil {
		return fmt.Errorf("bus: %#08x: %w", addr, err)
	}
	return nil
}

func (b *Bus) WriteU32(addr uint32, v uint32) error {
	if addr&3 != 0 {
		return &BusError{Addr: addr, Size: 4, Write: true, Msg: "unaligned word access", Misaligned: true}
	}
	r, off, err := b.find(addr)
	if err != nil {
		return err
	}
	if err := r.Write32(off, v); err != nil {
		return fmt.Errorf("bus: %#08x: %w", addr, err)
	}
	return nil
}
