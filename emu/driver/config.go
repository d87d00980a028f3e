/*
 * cortexm - Driver configuration: the boot descriptor a host supplies to
 * bring up one simulated core.
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

// Package driver assembles the processor, bus, memories and exception
// controller into one runnable core and drives the fetch-decode-execute
// loop, per spec.md §4.J. It is the only package that knows how all the
// pieces fit together; emu/cpu, emu/memory, emu/exception, emu/systick
// and emu/semihosting each stay ignorant of one another.
package driver

import (
	"github.com/cmsim/cortexm/emu/device"
	"github.com/cmsim/cortexm/emu/semihosting"
)

// ArchVariant distinguishes the Cortex-M profile, per spec.md §9's open
// question on priority-bit width and instruction-set coverage: it does
// not gate which instructions decode (the decoder already implements
// the union of ARMv6-M/v7-M/v7E-M Thumb/Thumb-2). It picks the default
// priority-bit width, and ArchV6M also makes LDREX/STREX execute as
// undefined instructions.
type ArchVariant int

const (
	ArchV7M ArchVariant = iota
	ArchV6M
	ArchV7EM
)

// defaultPriorityBits returns the variant's conventional NVIC priority
// field width, per spec.md §9 ("3 vs. 4 vs. 8 bits").
func (a ArchVariant) defaultPriorityBits() uint {
	switch a {
	case ArchV6M:
		return 2
	case ArchV7EM:
		return 8
	default:
		return 3
	}
}

// Config is the boot descriptor passed to New: a flat code image, the
// flash/SRAM layout it runs against, and the external collaborators
// (semihosting dispatcher, device façade) it talks to, per spec.md
// §4.J's "Input" list.
type Config struct {
	// CodeImage is the flat binary loaded at FlashBase, vector table
	// included at its front per spec.md §6.
	CodeImage []byte

	FlashBase uint32
	FlashSize uint32 // defaults to len(CodeImage) if zero

	SRAMBase uint32
	SRAMSize uint32

	// VectorTableBase seeds VTOR; the reset sequence reads MSP/PC from
	// this address's first two words. Defaults to FlashBase.
	VectorTableBase uint32

	// Variant selects the default priority-bit width when PriorityBits
	// is left zero.
	Variant ArchVariant

	// PriorityBits overrides the variant default (spec.md §9: a
	// constructor parameter, 0 meaning "use the variant's default").
	PriorityBits uint

	// AllowSelfModify permits writes into the flash region, per spec.md
	// §9's self-modifying-code warning (off by default).
	AllowSelfModify bool

	// RemapFrom/RemapTo/RemapLength describe the single memory-map
	// remap entry, per spec.md §4.E; a zero RemapLength disables it
	// (identity mapping).
	RemapFrom   uint32
	RemapTo     uint32
	RemapLength uint32

	// Semihost is the host-provided command dispatcher invoked on
	// BKPT 0xAB, per spec.md §4.H. Nil means semihosting calls are
	// decoded but never answered (R0 returns 0, execution continues).
	Semihost semihosting.Dispatcher

	// Devices is an optional façade for memory-mapped peripherals
	// outside the System Control Space, per spec.md §4.E's "Device
	// façade" routing entry.
	Devices *device.Region

	// Trace enables per-instruction slog.Debug lines; off by default
	// since it dominates hot-loop cost otherwise.
	Trace bool

	// EventBacklog sizes the RunEvent channel; defaults to 256.
	EventBacklog int
}
