/*
 * cortexm - Boot descriptor parser.
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

// Package bootconfig loads the memory-map and core-variant descriptor a
// simulated board boots from: flash/SRAM placement, the architecture
// variant, NVIC priority-bit width, an optional address remap window,
// and a few run-time switches. One key=value pair per line.
package bootconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

/* Descriptor file format:
 *
 * '#' starts a comment, rest of line is ignored.
 * <line> := <key> <whitespace>* '=' <whitespace>* <value>
 * <key>  := 'flash.base' | 'flash.size' | 'sram.base' | 'sram.size' |
 *           'vector.base' | 'variant' | 'priority.bits' |
 *           'remap.from' | 'remap.to' | 'remap.length' |
 *           'selfmodify' | 'trace'
 * <value> := <hexnumber> | <number> | 'true' | 'false' | <string>
 */

// Descriptor is the parsed contents of a boot descriptor file. Zero
// value fields left unset by the file keep driver.Config's own
// defaults -- this package knows nothing about driver.Config directly,
// so the caller copies fields across (see cmd/armsim).
type Descriptor struct {
	FlashBase uint32
	FlashSize uint32
	SRAMBase  uint32
	SRAMSize  uint32

	VectorTableBase uint32
	Variant         string
	PriorityBits    int

	RemapFrom   uint32
	RemapTo     uint32
	RemapLength uint32

	AllowSelfModify bool
	Trace           bool
}

var fields = map[string]func(d *Descriptor, v string) error{
	"flash.base":    func(d *Descriptor, v string) error { return setU32(&d.FlashBase, v) },
	"flash.size":    func(d *Descriptor, v string) error { return setU32(&d.FlashSize, v) },
	"sram.base":     func(d *Descriptor, v string) error { return setU32(&d.SRAMBase, v) },
	"sram.size":     func(d *Descriptor, v string) error { return setU32(&d.SRAMSize, v) },
	"vector.base":   func(d *Descriptor, v string) error { return setU32(&d.VectorTableBase, v) },
	"variant":       func(d *Descriptor, v string) error { d.Variant = v; return nil },
	"priority.bits": func(d *Descriptor, v string) error { return setInt(&d.PriorityBits, v) },
	"remap.from":    func(d *Descriptor, v string) error { return setU32(&d.RemapFrom, v) },
	"remap.to":      func(d *Descriptor, v string) error { return setU32(&d.RemapTo, v) },
	"remap.length":  func(d *Descriptor, v string) error { return setU32(&d.RemapLength, v) },
	"selfmodify":    func(d *Descriptor, v string) error { return setBool(&d.AllowSelfModify, v) },
	"trace":         func(d *Descriptor, v string) error { return setBool(&d.Trace, v) },
}

func setU32(dst *uint32, v string) error {
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", v, err)
	}
	*dst = uint32(n)
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.ParseUint(v, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", v, err)
	}
	*dst = int(n)
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", v, err)
	}
	*dst = b
	return nil
}

// Load reads a boot descriptor from name.
func Load(name string) (Descriptor, error) {
	file, err := os.Open(name)
	if err != nil {
		return Descriptor{}, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads a boot descriptor from r, line by line.
func Parse(r io.Reader) (Descriptor, error) {
	var d Descriptor
	reader := bufio.NewReader(r)
	lineNumber := 0
	for {
		raw, err := reader.ReadString('\n')
		lineNumber++
		if len(raw) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Descriptor{}, err
		}
		if perr := parseLine(&d, raw); perr != nil {
			return Descriptor{}, fmt.Errorf("line %d: %w", lineNumber, perr)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Descriptor{}, err
		}
	}
	return d, nil
}

func parseLine(d *Descriptor, raw string) error {
	line := raw
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return fmt.Errorf("missing '=' in %q", raw)
	}
	key := strings.ToLower(strings.TrimSpace(line[:eq]))
	value := strings.TrimSpace(line[eq+1:])
	if value == "" {
		return fmt.Errorf("%s has no value", key)
	}

	set, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	return set(d, value)
}
