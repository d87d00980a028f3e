/*
 * cortexm - Private Peripheral Bus region: NVIC, SysTick, SCB and friends.
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

package memory

import "fmt"

// MappedDevice is the narrow contract a PPB sub-block (NVIC, SysTick,
// SCB) must satisfy to be addressable
// through PPBRegion. Offsets are relative to the sub-block's own base,
// not the PPB's. Kept minimal and package-local so emu/exception and
// emu/systick never need to import emu/memory.
type MappedDevice interface {
	ReadRegister(offset uint32) (uint32, error)
	WriteRegister(offset uint32, v uint32) error
}

type subBlock struct {
	base   uint32
	size   uint32
	device MappedDevice
}

// PPBRegion is the 0xE000E000-0xE000EFFF (System Control Space) façade:
// a dispatcher keyed by offset to whichever MappedDevice owns that
// sub-range, per spec.md's routing table.
type PPBRegion struct {
	base   uint32
	blocks []subBlock
}

// NewPPBRegion creates an empty PPB region based at base (0xE000E000,
// the start of the System Control Space).
func NewPPBRegion(base uint32) *PPBRegion {
	return &PPBRegion{base: base}
}

// Attach registers a sub-block at an offset relative to the PPB's base.
func (p *PPBRegion) Attach(offset, size uint32, device MappedDevice) {
	p.blocks = append(p.blocks, subBlock{base: offset, size: size, device: device})
}

func (p *PPBRegion) Base() uint32 { return p.base }

// Size reports the fixed 4 KiB System Control Space page regardless of
// how many sub-blocks are currently attached.
func (p *PPBRegion) Size() uint32 { return 0x1000 }

func (p *PPBRegion) find(offset uint32) (MappedDevice, uint32, error) {
	for _, b := range p.blocks {
		if offset >= b.base && offset < b.base+b.size {
			return b.device, offset - b.base, nil
		}
	}
	return nil, 0, fmt.Errorf("ppb: no device mapped at offset %#x", offset)
}

func (p *PPBRegion) Read8(offset uint32) (uint8, error) {
	v, err := p.Read32(offset &^ 3)
	if err != nil {
		return 0, err
	}
	return uint8(v >> ((offset & 3) * 8)), nil
}

func (p *PPBRegion) Read16(offset uint32) (uint16, error) {
	v, err := p.Read32(offset &^ 3)
	if err != nil {
		return 0, err
	}
	return uint16(v >> ((offset & 2) * 8)), nil
}

func (p *PPBRegion) Read32(offset uint32) (uint32, error) {
	dev, rel, err := p.find(offset)
	if err != nil {
		return 0, err
	}
	return dev.ReadRegister(rel)
}

func (p *PPBRegion) Write8(offset uint32, v uint8) error {
	return fmt.Errorf("ppb: byte writes unsupported at offset %#x", offset)
}

func (p *PPBRegion) Write16(offset uint32, v uint16) error {
	return fmt.Errorf("ppb: halfword writes unsupported at offset %#x", offset)
}

func (p *PPBRegion) Write32(offset uint32, v uint32) error {
	dev, rel, err := p.find(offset)
	if err != nil {
		return err
	}
	return dev.WriteRegister(rel, v)
}
