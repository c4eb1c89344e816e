package cpu

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

const recentDepth = 8

type recentInst struct {
	addr uint64
	word uint32
}

// recentRing remembers the last few executed instructions for crash
// reports.
type recentRing struct {
	buf  [recentDepth]recentInst
	next int
	full bool
}

func (r *recentRing) push(addr uint64, word uint32) {
	r.buf[r.next] = recentInst{addr: addr, word: word}
	r.next = (r.next + 1) % recentDepth
	if r.next == 0 {
		r.full = true
	}
}

func (r *recentRing) entries() []recentInst {
	var out []recentInst
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	out = append(out, r.buf[:r.next]...)
	return out
}

// CrashReport captures the core state when execution fails: the cause,
// the PC, a register dump, and the disassembled window of the last
// executed instructions. A crashed game stays crashed until an explicit
// reset.
type CrashReport struct {
	Cause  error
	PC     uint64
	Regs   Registers
	Recent []DisasmLine
}

// DisasmLine is one line of the crash report's instruction window.
// Decoding for execution is native; this textual form exists only for
// diagnostics.
type DisasmLine struct {
	Addr uint64
	Word uint32
	Text string
}

func (c *CrashReport) Error() string {
	return fmt.Sprintf("crash at 0x%016x: %v", c.PC, c.Cause)
}

// Unwrap exposes the cause for errors.As.
func (c *CrashReport) Unwrap() error { return c.Cause }

// Dump renders the full human-readable report.
func (c *CrashReport) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "crash at 0x%016x: %v\n", c.PC, c.Cause)
	b.WriteString("recent instructions:\n")
	for _, line := range c.Recent {
		fmt.Fprintf(&b, "  0x%016x  %08x  %s\n", line.Addr, line.Word, line.Text)
	}
	b.WriteString("registers:\n")
	for i := uint8(0); i < 31; i++ {
		fmt.Fprintf(&b, "  x%-2d = 0x%016x", i, c.Regs.Get(X(i)))
		if i%2 == 1 {
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\n  sp  = 0x%016x  pc  = 0x%016x\n", c.Regs.SP(), c.Regs.PC)
	f := c.Regs.Flags
	fmt.Fprintf(&b, "  nzcv = %d%d%d%d\n", b2i(f.N), b2i(f.Z), b2i(f.C), b2i(f.V))
	return b.String()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newCrashReport snapshots the core into a report.
func newCrashReport(c *Cpu, cause error) *CrashReport {
	report := &CrashReport{
		Cause: cause,
		PC:    c.Regs.PC,
		Regs:  c.Regs,
	}
	for _, r := range c.recent.entries() {
		report.Recent = append(report.Recent, DisasmLine{
			Addr: r.addr,
			Word: r.word,
			Text: disasmWord(r.word),
		})
	}
	return report
}

func disasmWord(word uint32) string {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], word)
	inst, err := arm64asm.Decode(raw[:])
	if err != nil {
		return "(undecodable)"
	}
	return strings.ToLower(arm64asm.GNUSyntax(inst))
}
