package cpu

// Op tags the decoded form of one instruction. Dispatch is a single
// switch over this tag; the decoded operands are plain data.
type Op uint8

const (
	OpInvalid Op = iota
	OpNop

	// moves
	OpMovz
	OpMovn
	OpMovk

	// PC-relative address
	OpAdr
	OpAdrp

	// arithmetic
	OpAddImm
	OpSubImm
	OpAddShifted
	OpSubShifted
	OpAddExt
	OpSubExt

	// logical
	OpAndImm
	OpOrrImm
	OpEorImm
	OpAndShifted
	OpBicShifted
	OpOrrShifted
	OpOrnShifted
	OpEorShifted
	OpEonShifted

	// bitfield
	OpSbfm
	OpBfm
	OpUbfm

	// conditional
	OpCsel
	OpCsinc
	OpCsinv
	OpCsneg
	OpCcmpImm
	OpCcmpReg
	OpCcmnImm
	OpCcmnReg

	// variable shifts and division
	OpLslv
	OpLsrv
	OpAsrv
	OpRorv
	OpUdiv
	OpSdiv

	// multiply
	OpMadd
	OpMsub

	// branches
	OpB
	OpBl
	OpBr
	OpBlr
	OpRet
	OpBCond
	OpCbz
	OpCbnz
	OpTbz
	OpTbnz

	// loads and stores
	OpLdr
	OpStr
	OpLdp
	OpStp
	OpLdarb

	// floating point
	OpFmovReg
	OpFmovImm
	OpFmovToGP
	OpFmovFromGP
	OpFabs
	OpFneg
	OpFsqrt
	OpFcvt
	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFcmp
	OpFcvtzs
	OpScvtf
	OpUcvtf
)

// ShiftKind is the shift applied to a shifted-register operand.
type ShiftKind uint8

const (
	ShiftLSL ShiftKind = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

// ExtendKind is the extension applied to an extended-register operand or
// a register-offset address.
type ExtendKind uint8

const (
	ExtUXTB ExtendKind = iota
	ExtUXTH
	ExtUXTW
	ExtUXTX
	ExtSXTB
	ExtSXTH
	ExtSXTW
	ExtSXTX
)

// IndexMode is the addressing writeback mode of a load or store.
type IndexMode uint8

const (
	IndexNone IndexMode = iota
	IndexPre
	IndexPost
)

// Inst is the flat decoded form of one instruction. Only the fields the
// tagged operation uses are meaningful.
type Inst struct {
	Op   Op
	Word uint32

	Rd RegName
	Rn RegName
	Rm RegName
	Ra RegName // third source (MADD/MSUB), or Rt2 for pairs

	Imm  int64 // primary immediate (offset, imm16, branch target delta)
	Imm2 int64 // secondary immediate (shift amount, hw, immr, nzcv)
	Imm3 int64 // tertiary immediate (imms, bit number)

	Cond  Cond
	Shift ShiftKind
	Ext   ExtendKind
	Index IndexMode

	Size     uint8 // memory access size in bytes; FP precision for FP ops
	SignExt  bool  // sign-extend loaded value
	SetFlags bool
	Is64     bool
	Float    bool // memory op targets an FP register
	RegOff   bool // memory op uses a register offset address
}

// IsBranch reports whether the instruction could set PC to something
// other than the next instruction.
func (i *Inst) IsBranch() bool {
	switch i.Op {
	case OpB, OpBl, OpBr, OpBlr, OpRet, OpBCond, OpCbz, OpCbnz, OpTbz, OpTbnz:
		return true
	}
	return false
}
