/*
 * cortexm - SRAM region: read-write data memory.
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

// SRAMRegion is a flat read-write byte array, little-endian, per
// spec.md's load/store byte-ordering invariant.
type SRAMRegion struct {
	base uint32
	data []byte
}

// NewSRAMRegion allocates size bytes of zeroed storage starting at base.
func NewSRAMRegion(base uint32, size uint32) *SRAMRegion {
	return &SRAMRegion{base: base, data: make([]byte, size)}
}

func (s *SRAMRegion) Base() uint32 { return s.base }
func (s *SRAMRegion) Size() uint32 { return uint32(len(s.data)) }

func (s *SRAMRegion) Read8(offset uint32) (uint8, error) {
	if offset >= uint32(len(s.data)) {
		return 0, fmt.Errorf("sram: offset %#x out of range", offset)
	}
	return s.data[offset], nil
}

func (s *SRAMRegion) Read16(offset uint32) (uint16, error) {
	if offset+2 > uint32(len(s.data)) {
		return 0, fmt.Errorf("sram: offset %#x out of range", offset)
	}
	return uint16(s.data[offset]) | uint16(s.data[offset+1])<<8, nil
}

func (s *SRAMRegion) Read32(offset uint32) (uint32, error) {
	if offset+4 > uint32(len(s.data)) {
		return 0, fmt.Errorf("sram: offset %#x out of range", offset)
	}
	return uint32(s.data[offset]) | uint32(s.data[offset+1])<<8 |
		uint32(s.data[offset+2])<<16 | uint32(s.data[offset+3])<<24, nil
}

func (s *SRAMRegion) Write8(offset uint32, v uint8) error {
	if offset >= uint32(len(s.data)) {
		return fmt.Errorf("sram: offset %#x out of range", offset)
	}
	s.data[offset] = v
	return nil
}

func (s *SRAMRegion) Write16(offset uint32, v uint16) error {
	if offset+2 > uint32(len(s.data)) {
		return fmt.Errorf("sram: offset %#x out of range", offset)
	}
	s.data[offset] = byte(v)
	s.data[offset+1] = byte(v >> 8)
	return nil
}

func (s *SRAMRegion) Write32(offset uint32, v uint32) error {
	if offset+4 > uint32(len(s.data)) {
		return fmt.Errorf("sram: offset %#x out of range", offset)
	}
	s.data[offset] = byte(v)
	s.data[offset+1] = byte(v >> 8)
	s.data[offset+2] = byte(v >> 16)
	s.data[offset+3] = byte(v >> 24)
	return nil
}
