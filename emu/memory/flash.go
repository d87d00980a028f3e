/*
 * cortexm - Flash region: read-only code/rodata storage.
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

// FlashRegion models the simulator's code/rodata store. Writes are
// rejected unless AllowSelfModify is set, per spec.md §9's warning that
// a simulated flash write is almost always a program bug rather than an
// intentional self-modification.
type FlashRegion struct {
	base            uint32
	data            []byte
	AllowSelfModify bool
}

// NewFlashRegion wraps image as a flash region starting at base. image
// is held, not copied; callers that need an isolated copy should clone
// before calling this.
func NewFlashRegion(base uint32, image []byte) *FlashRegion {
	return &FlashRegion{base: base, data: image}
}

func (f *FlashRegion) Base() uint32 { return f.base }
func (f *FlashRegion) Size() uint32 { return uint32(len(f.data)) }

func (f *FlashRegion) Read8(offset uint32) (uint8, error) {
	if offset >= uint32(len(f.data)) {
		return 0, fmt.Errorf("flash: offset %#x out of range", offset)
	}
	return f.data[offset], nil
}

func (f *FlashRegion) Read16(offset uint32) (uint16, error) {
	if offset+2 > uint32(len(f.data)) {
		return 0, fmt.Errorf("flash: offset %#x out of range", offset)
	}
	return uint16(f.data[offset]) | uint16(f.data[offset+1])<<8, nil
}

func (f *FlashRegion) Read32(offset uint32) (uint32, error) {
	if offset+4 > uint32(len(f.data)) {
		return 0, fmt.Errorf("flash: offset %#x out of range", offset)
	}
	return uint32(f.data[offset]) | uint32(f.data[offset+1])<<8 |
		uint32(f.data[offset+2])<<16 | uint32(f.data[offset+3])<<24, nil
}

func (f *FlashRegion) Write8(offset uint32, v uint8) error {
	if !f.AllowSelfModify {
		return fmt.Errorf("flash: write to read-only region at offset %#x", offset)
	}
	if offset >= uint32(len(f.data)) {
		return fmt.Errorf("flash: offset %#x out of range", offset)
	}
	f.data[offset] = v
	return nil
}

func (f *FlashRegion) Write16(offset uint32, v uint16) error {
	if !f.AllowSelfModify {
		return fmt.Errorf("flash: write to read-only region at offset %#x", offset)
	}
	if offset+2 > uint32(len(f.data)) {
		return fmt.Errorf("flash: offset %#x out of range", offset)
	}
	f.data[offset] = byte(v)
	f.data[offset+1] = byte(v >> 8)
	return nil
}

func (f *FlashRegion) Write32(offset uint32, v uint32) error {
	if !f.AllowSelfModify {
		return fmt.Errorf("flash: write to read-only region at offset %#x", offset)
	}
	if offset+4 > uint32(len(f.data)) {
		return fmt.Errorf("flash: offset %#x out of range", offset)
	}
	f.data[offset] = byte(v)
	f.data[offset+1] = byte(v >> 8)
	f.data[offset+2] = byte(v >> 16)
	f.data[offset+3] = byte(v >> 24)
	return nil
}
