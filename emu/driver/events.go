/*
 * cortexm - Run events: what Step/Continue/RangeStep report back to a
 * debugger adapter.
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

// RunEventKind discriminates the shapes a run can stop for, per spec.md
// §4.J's debugger-adapter event list.
type RunEventKind int

const (
	EventDoneStep RunEventKind = iota
	EventBreak
	EventWatchRead
	EventWatchWrite
	EventHalted
	EventFinalized
)

func (k RunEventKind) String() string {
	switch k {
	case EventDoneStep:
		return "DoneStep"
	case EventBreak:
		return "Break"
	case EventWatchRead:
		return "WatchRead"
	case EventWatchWrite:
		return "WatchWrite"
	case EventHalted:
		return "Halted"
	case EventFinalized:
		return "Finalized"
	}
	return "Unknown"
}

// RunEvent is Step/Continue/RangeStep's result: which of spec.md §4.J's
// variants occurred, plus whichever payload that variant carries.
type RunEvent struct {
	Kind     RunEventKind
	Addr     uint32 // meaningful for WatchRead/WatchWrite
	ExitCode uint32 // meaningful for Finalized
}
