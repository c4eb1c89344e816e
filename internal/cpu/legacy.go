package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// This file is the legacy textual operand path. Execution decodes
// natively from the instruction word; the parser below survives only for
// the repl and crash diagnostics, where operands arrive as text.

// ParseRegName parses a register operand in assembly syntax.
func ParseRegName(s string) (RegName, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "sp":
		return SP, true
	case "xzr":
		return XZR, true
	case "wzr":
		return WZR, true
	case "lr":
		return LR, true
	}
	if len(s) < 2 {
		return 0, false
	}
	idx, err := strconv.Atoi(s[1:])
	if err != nil || idx < 0 || idx > 31 {
		return 0, false
	}
	switch s[0] {
	case 'x':
		return X(uint8(idx)), true
	case 'w':
		return W(uint8(idx)), true
	case 's':
		return S(uint8(idx)), true
	case 'd':
		return D(uint8(idx)), true
	case 'q':
		return Q(uint8(idx)), true
	}
	return 0, false
}

// ParseImm parses an immediate operand ("#16", "#0x40", "12").
func ParseImm(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	return strconv.ParseInt(s, 0, 64)
}

// ImmToI32 narrows a parsed immediate the way the legacy path always
// has. The mask here is 0xFFFF where 0xFFFFFFFF was almost certainly
// intended; kept as-is because downstream behavior depends on it.
func ImmToI32(v uint64) int32 {
	return int32(v & 0xFFFF)
}

// FormatInst renders a decoded instruction for the repl.
func FormatInst(inst *Inst) string {
	return fmt.Sprintf("%s (word 0x%08x)", disasmWord(inst.Word), inst.Word)
}
