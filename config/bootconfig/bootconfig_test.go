/*
 * cortexm - Boot descriptor parser test set.
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

package bootconfig

import (
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	src := `
# board descriptor
flash.base = 0x00000000
flash.size = 0x40000
sram.base  = 0x20000000
sram.size  = 0x10000
vector.base = 0x00000000
variant = armv7m
priority.bits = 3
selfmodify = false
trace = true
`
	d, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.FlashBase != 0 || d.FlashSize != 0x40000 {
		t.Fatalf("flash = %#x/%#x", d.FlashBase, d.FlashSize)
	}
	if d.SRAMBase != 0x20000000 || d.SRAMSize != 0x10000 {
		t.Fatalf("sram = %#x/%#x", d.SRAMBase, d.SRAMSize)
	}
	if d.Variant != "armv7m" {
		t.Fatalf("variant = %q", d.Variant)
	}
	if d.PriorityBits != 3 {
		t.Fatalf("priority.bits = %d", d.PriorityBits)
	}
	if d.AllowSelfModify {
		t.Fatalf("selfmodify = true, want false")
	}
	if !d.Trace {
		t.Fatalf("trace = false, want true")
	}
}

func TestParseRemapWindow(t *testing.T) {
	src := "remap.from = 0x00000000\nremap.to = 0x08000000\nremap.length = 0x100000\n"
	d, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.RemapFrom != 0 || d.RemapTo != 0x08000000 || d.RemapLength != 0x100000 {
		t.Fatalf("remap = %+v", d)
	}
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus = 1\n"))
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestParseMissingEquals(t *testing.T) {
	_, err := Parse(strings.NewReader("flash.base 0\n"))
	if err == nil {
		t.Fatalf("expected error for missing '='")
	}
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	src := "\n# nothing here\n   \nflash.size = 0x1000\n"
	d, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.FlashSize != 0x1000 {
		t.Fatalf("flash.size = %#x, want 0x1000", d.FlashSize)
	}
}
