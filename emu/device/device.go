/*
 * cortexm - Device façade: the contract a host embeds memory-mapped
 * peripherals behind, outside the System Control Space.
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

// Package device defines the façade a host uses to plug a memory-mapped
// peripheral model into the bus without this module knowing anything
// concrete about it, per spec.md §6's external-collaborator boundary.
package device

import "fmt"

// Peripheral is a single memory-mapped device outside the System
// Control Space. IRQ, when non-nil, is polled by the driver once per
// step to decide whether to pend the device's configured exception
// number -- the device itself never touches the exception controller.
type Peripheral interface {
	Name() string
	ReadRegister(offset uint32) (uint32, error)
	WriteRegister(offset uint32, v uint32) error
	IRQ() (pending bool, exceptionNumber int)
}

// Region adapts a Peripheral map to emu/memory's Region interface,
// letting a host compose any number of peripherals behind a single bus
// mapping without emu/memory needing to import this package.
type Region struct {
	base        uint32
	size        uint32
	peripherals []mappedPeripheral
}

type mappedPeripheral struct {
	offset uint32
	size   uint32
	p      Peripheral
}

// NewRegion creates a device façade spanning [base, base+size).
func NewRegion(base, size uint32) *Region {
	return &Region{base: base, size: size}
}

// Attach registers a peripheral at an offset relative to the region's base.
func (r *Region) Attach(offset, size uint32, p Peripheral) {
	r.peripherals = append(r.peripherals, mappedPeripheral{offset: offset, size: size, p: p})
}

// Peripherals returns the attached set, for the driver's per-step IRQ poll.
func (r *Region) Peripherals() []Peripheral {
	out := make([]Peripheral, len(r.peripherals))
	for i, m := range r.peripherals {
		out[i] = m.p
	}
	return out
}

func (r *Region) Base() uint32 { return r.base }
func (r *Region) Size() uint32 { return r.size }

func (r *Region) find(offset uint32) (Peripheral, uint32, error) {
	for _, m := range r.peripherals {
		if offset >= m.offset && offset < m.offset+m.size {
			return m.p, offset - m.offset, nil
		}
	}
	return nil, 0, fmt.Errorf("device: no peripheral mapped at offset %#x", offset)
}

func (r *Region) Read8(offset uint32) (uint8, error) {
	v, err := r.Read32(offset &^ 3)
	if err != nil {
		return 0, err
	}
	return uint8(v >> ((offset & 3) * 8)), nil
}

func (r *Region) Read16(offset uint32) (uint16, error) {
	v, err := r.Read32(offset &^ 3)
	if err != nil {
		return 0, err
	}
	return uint16(v >> ((offset & 2) * 8)), nil
}

func (r *Region) Read32(offset uint32) (uint32, error) {
	p, rel, err := r.find(offset)
	if err != nil {
		return 0, err
	}
	return p.ReadRegister(rel)
}

func (r *Region) Write8(offset uint32, v uint8) error {
	return fmt.Errorf("device: byte writes unsupported at offset %#x", offset)
}

func (r *Region) Write16(offset uint32, v uint16) error {
	return fmt.Errorf("device: halfword writes unsupported at offset %#x", offset)
}

func (r *Region) Write32(offset uint32, v uint32) error {
	p, rel, err := r.find(offset)
	if err != nil {
		return err
	}
	return p.WriteRegister(rel, v)
}
