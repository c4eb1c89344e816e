package cpu

import "fmt"

// UnimplementedError reports an instruction word the decoder or executor
// does not cover.
type UnimplementedError struct {
	Word uint32
	Addr uint64
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("unimplemented instruction 0x%08x at 0x%016x", e.Word, e.Addr)
}

func extract(w uint32, lo, hi uint8) uint32 {
	return (w >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend(v uint64, width uint8) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// Decode turns a 32-bit instruction word into its flat decoded form.
// The subset covers the instruction families the game's inventory
// routines use; anything else decodes to an error.
func Decode(word uint32, addr uint64) (Inst, error) {
	op0 := extract(word, 25, 28)
	switch {
	case op0 == 0x8 || op0 == 0x9:
		return decodeDPImm(word, addr)
	case op0 == 0xA || op0 == 0xB:
		return decodeBranch(word, addr)
	case op0&0x5 == 0x4:
		return decodeLoadStore(word, addr)
	case op0&0x7 == 0x5:
		return decodeDPReg(word, addr)
	case op0&0x7 == 0x7:
		return decodeFP(word, addr)
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

func decodeDPImm(word uint32, addr uint64) (Inst, error) {
	sf := extract(word, 31, 31) == 1
	rd := uint8(extract(word, 0, 4))
	rn := uint8(extract(word, 5, 9))
	switch extract(word, 23, 25) {
	case 0b000, 0b001: // PC-relative
		immlo := extract(word, 29, 30)
		immhi := extract(word, 5, 23)
		imm := signExtend(uint64(immhi)<<2|uint64(immlo), 21)
		op := OpAdr
		if extract(word, 31, 31) == 1 {
			op = OpAdrp
			imm <<= 12
		}
		return Inst{Op: op, Word: word, Rd: gpOrZr(rd, true), Imm: imm, Is64: true}, nil
	case 0b010: // add/sub immediate
		imm := int64(extract(word, 10, 21))
		if extract(word, 22, 22) == 1 {
			imm <<= 12
		}
		setFlags := extract(word, 29, 29) == 1
		op := OpAddImm
		if extract(word, 30, 30) == 1 {
			op = OpSubImm
		}
		rdName := gpOrSp(rd, sf)
		if setFlags {
			rdName = gpOrZr(rd, sf)
		}
		return Inst{
			Op: op, Word: word,
			Rd: rdName, Rn: gpOrSp(rn, sf),
			Imm: imm, SetFlags: setFlags, Is64: sf,
		}, nil
	case 0b100: // logical immediate
		n := extract(word, 22, 22)
		immr := extract(word, 16, 21)
		imms := extract(word, 10, 15)
		dsize := uint8(32)
		if sf {
			dsize = 64
		}
		wmask, _, ok := decodeBitMasks(n, imms, immr, true, dsize)
		if !ok {
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		var op Op
		setFlags := false
		rdName := gpOrSp(rd, sf)
		switch extract(word, 29, 30) {
		case 0b00:
			op = OpAndImm
		case 0b01:
			op = OpOrrImm
		case 0b10:
			op = OpEorImm
		default:
			op = OpAndImm
			setFlags = true
			rdName = gpOrZr(rd, sf)
		}
		return Inst{
			Op: op, Word: word,
			Rd: rdName, Rn: gpOrZr(rn, sf),
			Imm: int64(wmask), SetFlags: setFlags, Is64: sf,
		}, nil
	case 0b101: // move wide
		hw := extract(word, 21, 22)
		imm16 := extract(word, 5, 20)
		var op Op
		switch extract(word, 29, 30) {
		case 0b00:
			op = OpMovn
		case 0b10:
			op = OpMovz
		case 0b11:
			op = OpMovk
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		return Inst{
			Op: op, Word: word,
			Rd:  gpOrZr(rd, sf),
			Imm: int64(imm16), Imm2: int64(hw * 16), Is64: sf,
		}, nil
	case 0b110: // bitfield
		immr := int64(extract(word, 16, 21))
		imms := int64(extract(word, 10, 15))
		var op Op
		switch extract(word, 29, 30) {
		case 0b00:
			op = OpSbfm
		case 0b01:
			op = OpBfm
		case 0b10:
			op = OpUbfm
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		return Inst{
			Op: op, Word: word,
			Rd: gpOrZr(rd, sf), Rn: gpOrZr(rn, sf),
			Imm2: immr, Imm3: imms, Is64: sf,
		}, nil
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

func decodeBranch(word uint32, addr uint64) (Inst, error) {
	switch {
	case extract(word, 26, 30) == 0b00101: // B / BL
		imm := signExtend(uint64(extract(word, 0, 25))<<2, 28)
		op := OpB
		if extract(word, 31, 31) == 1 {
			op = OpBl
		}
		return Inst{Op: op, Word: word, Imm: imm}, nil
	case extract(word, 25, 30) == 0b011010: // CBZ / CBNZ
		sf := extract(word, 31, 31) == 1
		imm := signExtend(uint64(extract(word, 5, 23))<<2, 21)
		op := OpCbz
		if extract(word, 24, 24) == 1 {
			op = OpCbnz
		}
		return Inst{Op: op, Word: word, Rn: gpOrZr(uint8(extract(word, 0, 4)), sf), Imm: imm, Is64: sf}, nil
	case extract(word, 25, 30) == 0b011011: // TBZ / TBNZ
		bit := extract(word, 31, 31)<<5 | extract(word, 19, 23)
		imm := signExtend(uint64(extract(word, 5, 18))<<2, 16)
		op := OpTbz
		if extract(word, 24, 24) == 1 {
			op = OpTbnz
		}
		return Inst{
			Op: op, Word: word,
			Rn:  gpOrZr(uint8(extract(word, 0, 4)), bit >= 32),
			Imm: imm, Imm3: int64(bit),
		}, nil
	case extract(word, 24, 31) == 0b01010100 && extract(word, 4, 4) == 0: // B.cond
		imm := signExtend(uint64(extract(word, 5, 23))<<2, 21)
		return Inst{Op: OpBCond, Word: word, Cond: Cond(extract(word, 0, 3)), Imm: imm}, nil
	case extract(word, 25, 31) == 0b1101011: // BR / BLR / RET
		rn := gpOrZr(uint8(extract(word, 5, 9)), true)
		switch extract(word, 21, 24) {
		case 0b0000:
			return Inst{Op: OpBr, Word: word, Rn: rn}, nil
		case 0b0001:
			return Inst{Op: OpBlr, Word: word, Rn: rn}, nil
		case 0b0010:
			return Inst{Op: OpRet, Word: word, Rn: rn}, nil
		}
	case extract(word, 22, 31) == 0b1101010100: // system / hints
		// treated as NOP: HINT, barriers and MSR/MRS do not affect the
		// single-threaded simulated state we model
		return Inst{Op: OpNop, Word: word}, nil
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

func decodeLoadStore(word uint32, addr uint64) (Inst, error) {
	v := extract(word, 26, 26) == 1
	rt := uint8(extract(word, 0, 4))
	rn := gpOrSp(uint8(extract(word, 5, 9)), true)

	switch {
	case extract(word, 27, 29) == 0b101: // load/store pair
		opc := extract(word, 30, 31)
		load := extract(word, 22, 22) == 1
		var size uint8
		switch {
		case v:
			size = uint8(4 << opc) // S/D/Q pairs
		case opc == 0b10:
			size = 8
		case opc == 0b00:
			size = 4
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		imm := signExtend(uint64(extract(word, 15, 21)), 7) * int64(size)
		var index IndexMode
		switch extract(word, 23, 24) {
		case 0b01:
			index = IndexPost
		case 0b11:
			index = IndexPre
		case 0b10:
			index = IndexNone
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		op := OpStp
		if load {
			op = OpLdp
		}
		var rtName, rt2Name RegName
		if v {
			rtName = fpReg(rt, size)
			rt2Name = fpReg(uint8(extract(word, 10, 14)), size)
		} else {
			rtName = gpOrZr(rt, size == 8)
			rt2Name = gpOrZr(uint8(extract(word, 10, 14)), size == 8)
		}
		return Inst{
			Op: op, Word: word,
			Rd: rtName, Ra: rt2Name, Rn: rn,
			Imm: imm, Index: index, Size: size, Float: v,
		}, nil

	case extract(word, 27, 29) == 0b111:
		size := uint8(1) << extract(word, 30, 31)
		opc := extract(word, 22, 23)
		if v {
			// FP register load/store; opc bit 1 selects the 128-bit form
			if opc&0b10 != 0 {
				size = 16
			}
			load := opc&1 == 1
			return decodeLoadStoreAddr(word, addr, OpLdr, OpStr, load, fpReg(rt, size), rn, size, false, true)
		}
		var load, signExt, to64 bool
		switch opc {
		case 0b00:
			load = false
		case 0b01:
			load = true
		case 0b10:
			// LDRS to 64-bit; size==8 here encodes prefetch, unsupported
			if size == 8 {
				return Inst{}, &UnimplementedError{Word: word, Addr: addr}
			}
			load, signExt, to64 = true, true, true
		case 0b11:
			// LDRS to 32-bit
			if size >= 4 {
				return Inst{}, &UnimplementedError{Word: word, Addr: addr}
			}
			load, signExt = true, true
		}
		is64 := size == 8 || to64
		return decodeLoadStoreAddr(word, addr, OpLdr, OpStr, load, gpOrZr(rt, is64), rn, size, signExt, false)

	case extract(word, 24, 29) == 0b001000:
		// load-acquire / exclusive group: only LDARB is modeled, the
		// single-threaded core needs no ordering semantics beyond it
		if extract(word, 30, 31) == 0b00 && extract(word, 21, 23) == 0b110 && extract(word, 15, 15) == 1 {
			return Inst{
				Op: OpLdarb, Word: word,
				Rd: gpOrZr(rt, false), Rn: rn, Size: 1,
			}, nil
		}
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

// decodeLoadStoreAddr decodes the addressing mode shared by the
// load/store register forms: unsigned immediate, unscaled, pre/post
// indexed, and register offset.
func decodeLoadStoreAddr(word uint32, addr uint64, ldOp, stOp Op, load bool, rt, rn RegName, size uint8, signExt, float bool) (Inst, error) {
	op := stOp
	if load {
		op = ldOp
	}
	inst := Inst{
		Op: op, Word: word,
		Rd: rt, Rn: rn,
		Size: size, SignExt: signExt, Float: float,
	}
	if extract(word, 24, 24) == 1 {
		// unsigned immediate, scaled
		inst.Imm = int64(extract(word, 10, 21)) * int64(size)
		return inst, nil
	}
	if extract(word, 21, 21) == 1 && extract(word, 10, 11) == 0b10 {
		// register offset
		option := extract(word, 13, 15)
		var ext ExtendKind
		switch option {
		case 0b010:
			ext = ExtUXTW
		case 0b011:
			ext = ExtUXTX // LSL
		case 0b110:
			ext = ExtSXTW
		case 0b111:
			ext = ExtSXTX
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		var shift int64
		if extract(word, 12, 12) == 1 {
			shift = int64(sizeShift(size))
		}
		rmIs64 := option&0b001 == 1
		inst.Rm = gpOrZr(uint8(extract(word, 16, 20)), rmIs64)
		inst.Ext = ext
		inst.Imm2 = shift
		inst.RegOff = true
		return inst, nil
	}
	imm9 := signExtend(uint64(extract(word, 12, 20)), 9)
	switch extract(word, 10, 11) {
	case 0b00: // unscaled (LDUR/STUR)
		inst.Imm = imm9
		return inst, nil
	case 0b01:
		inst.Imm = imm9
		inst.Index = IndexPost
		return inst, nil
	case 0b11:
		inst.Imm = imm9
		inst.Index = IndexPre
		return inst, nil
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

func sizeShift(size uint8) uint8 {
	switch size {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		return 4
	default:
		return 0
	}
}

func decodeDPReg(word uint32, addr uint64) (Inst, error) {
	sf := extract(word, 31, 31) == 1
	rd := uint8(extract(word, 0, 4))
	rn := uint8(extract(word, 5, 9))
	rm := uint8(extract(word, 16, 20))

	switch {
	case extract(word, 24, 28) == 0b01010: // logical shifted register
		shift := ShiftKind(extract(word, 22, 23))
		neg := extract(word, 21, 21) == 1
		amount := int64(extract(word, 10, 15))
		var op Op
		setFlags := false
		switch extract(word, 29, 30) {
		case 0b00:
			op = OpAndShifted
			if neg {
				op = OpBicShifted
			}
		case 0b01:
			op = OpOrrShifted
			if neg {
				op = OpOrnShifted
			}
		case 0b10:
			op = OpEorShifted
			if neg {
				op = OpEonShifted
			}
		default:
			op = OpAndShifted
			if neg {
				op = OpBicShifted
			}
			setFlags = true
		}
		return Inst{
			Op: op, Word: word,
			Rd: gpOrZr(rd, sf), Rn: gpOrZr(rn, sf), Rm: gpOrZr(rm, sf),
			Shift: shift, Imm2: amount, SetFlags: setFlags, Is64: sf,
		}, nil

	case extract(word, 24, 28) == 0b01011 && extract(word, 21, 21) == 0: // add/sub shifted
		shift := ShiftKind(extract(word, 22, 23))
		if shift == ShiftROR {
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		amount := int64(extract(word, 10, 15))
		setFlags := extract(word, 29, 29) == 1
		op := OpAddShifted
		if extract(word, 30, 30) == 1 {
			op = OpSubShifted
		}
		return Inst{
			Op: op, Word: word,
			Rd: gpOrZr(rd, sf), Rn: gpOrZr(rn, sf), Rm: gpOrZr(rm, sf),
			Shift: shift, Imm2: amount, SetFlags: setFlags, Is64: sf,
		}, nil

	case extract(word, 24, 28) == 0b01011 && extract(word, 21, 23) == 0b001: // add/sub extended
		option := ExtendKind(extract(word, 13, 15))
		amount := int64(extract(word, 10, 12))
		setFlags := extract(word, 29, 29) == 1
		op := OpAddExt
		if extract(word, 30, 30) == 1 {
			op = OpSubExt
		}
		rdName := gpOrSp(rd, sf)
		if setFlags {
			rdName = gpOrZr(rd, sf)
		}
		rmIs64 := option == ExtUXTX || option == ExtSXTX
		return Inst{
			Op: op, Word: word,
			Rd: rdName, Rn: gpOrSp(rn, sf), Rm: gpOrZr(rm, rmIs64),
			Ext: option, Imm2: amount, SetFlags: setFlags, Is64: sf,
		}, nil

	case extract(word, 21, 28) == 0b11010010 && extract(word, 29, 29) == 1: // cond compare
		isImm := extract(word, 11, 11) == 1
		nzcv := int64(extract(word, 0, 3))
		cond := Cond(extract(word, 12, 15))
		neg := extract(word, 30, 30) == 0
		var op Op
		switch {
		case isImm && neg:
			op = OpCcmnImm
		case isImm:
			op = OpCcmpImm
		case neg:
			op = OpCcmnReg
		default:
			op = OpCcmpReg
		}
		inst := Inst{
			Op: op, Word: word,
			Rn: gpOrZr(rn, sf), Cond: cond, Imm2: nzcv, Is64: sf,
		}
		if isImm {
			inst.Imm = int64(rm)
		} else {
			inst.Rm = gpOrZr(rm, sf)
		}
		return inst, nil

	case extract(word, 21, 28) == 0b11010100 && extract(word, 29, 29) == 0: // cond select
		cond := Cond(extract(word, 12, 15))
		var op Op
		switch extract(word, 30, 30)<<2 | extract(word, 10, 11) {
		case 0b000:
			op = OpCsel
		case 0b001:
			op = OpCsinc
		case 0b100:
			op = OpCsinv
		case 0b101:
			op = OpCsneg
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		return Inst{
			Op: op, Word: word,
			Rd: gpOrZr(rd, sf), Rn: gpOrZr(rn, sf), Rm: gpOrZr(rm, sf),
			Cond: cond, Is64: sf,
		}, nil

	case extract(word, 21, 28) == 0b11010110 && extract(word, 29, 30) == 0: // DP 2-source
		var op Op
		switch extract(word, 10, 15) {
		case 0b000010:
			op = OpUdiv
		case 0b000011:
			op = OpSdiv
		case 0b001000:
			op = OpLslv
		case 0b001001:
			op = OpLsrv
		case 0b001010:
			op = OpAsrv
		case 0b001011:
			op = OpRorv
		default:
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		return Inst{
			Op: op, Word: word,
			Rd: gpOrZr(rd, sf), Rn: gpOrZr(rn, sf), Rm: gpOrZr(rm, sf),
			Is64: sf,
		}, nil

	case extract(word, 24, 28) == 0b11011: // DP 3-source
		if extract(word, 21, 23) != 0b000 {
			return Inst{}, &UnimplementedError{Word: word, Addr: addr}
		}
		op := OpMadd
		if extract(word, 15, 15) == 1 {
			op = OpMsub
		}
		return Inst{
			Op: op, Word: word,
			Rd: gpOrZr(rd, sf), Rn: gpOrZr(rn, sf), Rm: gpOrZr(rm, sf),
			Ra:   gpOrZr(uint8(extract(word, 10, 14)), sf),
			Is64: sf,
		}, nil
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

func decodeFP(word uint32, addr uint64) (Inst, error) {
	if extract(word, 24, 28) != 0b11110 || extract(word, 30, 30) != 0 {
		return Inst{}, &UnimplementedError{Word: word, Addr: addr}
	}
	ptype := extract(word, 22, 23)
	var size uint8
	switch ptype {
	case 0b00:
		size = 4
	case 0b01:
		size = 8
	default:
		return Inst{}, &UnimplementedError{Word: word, Addr: addr}
	}
	sf := extract(word, 31, 31) == 1
	rd := uint8(extract(word, 0, 4))
	rn := uint8(extract(word, 5, 9))

	if extract(word, 21, 21) == 1 {
		switch {
		case extract(word, 10, 15) == 0b000000: // FP <-> integer
			rmode := extract(word, 19, 20)
			opcode := extract(word, 16, 18)
			switch {
			case rmode == 0b00 && opcode == 0b010:
				return Inst{Op: OpScvtf, Word: word, Rd: fpReg(rd, size), Rn: gpOrZr(rn, sf), Size: size, Is64: sf}, nil
			case rmode == 0b00 && opcode == 0b011:
				return Inst{Op: OpUcvtf, Word: word, Rd: fpReg(rd, size), Rn: gpOrZr(rn, sf), Size: size, Is64: sf}, nil
			case rmode == 0b11 && opcode == 0b000:
				return Inst{Op: OpFcvtzs, Word: word, Rd: gpOrZr(rd, sf), Rn: fpReg(rn, size), Size: size, Is64: sf}, nil
			case rmode == 0b00 && opcode == 0b110:
				return Inst{Op: OpFmovToGP, Word: word, Rd: gpOrZr(rd, sf), Rn: fpReg(rn, size), Size: size, Is64: sf}, nil
			case rmode == 0b00 && opcode == 0b111:
				return Inst{Op: OpFmovFromGP, Word: word, Rd: fpReg(rd, size), Rn: gpOrZr(rn, sf), Size: size, Is64: sf}, nil
			}
		case extract(word, 10, 12) == 0b100 && extract(word, 5, 9) == 0: // FMOV imm
			imm8 := extract(word, 13, 20)
			return Inst{Op: OpFmovImm, Word: word, Rd: fpReg(rd, size), Imm: int64(vfpExpandImm(uint8(imm8), size)), Size: size}, nil
		case extract(word, 10, 13) == 0b1000 && extract(word, 14, 15) == 0b00: // FCMP
			opcode2 := extract(word, 0, 4)
			inst := Inst{Op: OpFcmp, Word: word, Rn: fpReg(rn, size), Size: size}
			if opcode2&0b01000 != 0 {
				// compare with zero
				inst.Imm = 0
				inst.Rm = 0xFF // marker: zero operand
			} else {
				inst.Rm = fpReg(uint8(extract(word, 16, 20)), size)
			}
			return inst, nil
		case extract(word, 10, 11) == 0b10: // FP 2-source
			var op Op
			switch extract(word, 12, 15) {
			case 0b0000:
				op = OpFmul
			case 0b0001:
				op = OpFdiv
			case 0b0010:
				op = OpFadd
			case 0b0011:
				op = OpFsub
			default:
				return Inst{}, &UnimplementedError{Word: word, Addr: addr}
			}
			return Inst{
				Op: op, Word: word,
				Rd: fpReg(rd, size), Rn: fpReg(rn, size), Rm: fpReg(uint8(extract(word, 16, 20)), size),
				Size: size,
			}, nil
		case extract(word, 10, 14) == 0b10000: // FP 1-source
			switch extract(word, 15, 20) {
			case 0b000000:
				return Inst{Op: OpFmovReg, Word: word, Rd: fpReg(rd, size), Rn: fpReg(rn, size), Size: size}, nil
			case 0b000001:
				return Inst{Op: OpFabs, Word: word, Rd: fpReg(rd, size), Rn: fpReg(rn, size), Size: size}, nil
			case 0b000010:
				return Inst{Op: OpFneg, Word: word, Rd: fpReg(rd, size), Rn: fpReg(rn, size), Size: size}, nil
			case 0b000011:
				return Inst{Op: OpFsqrt, Word: word, Rd: fpReg(rd, size), Rn: fpReg(rn, size), Size: size}, nil
			case 0b000101: // FCVT to double
				return Inst{Op: OpFcvt, Word: word, Rd: fpReg(rd, 8), Rn: fpReg(rn, size), Size: 8}, nil
			case 0b000100: // FCVT to single
				return Inst{Op: OpFcvt, Word: word, Rd: fpReg(rd, 4), Rn: fpReg(rn, size), Size: 4}, nil
			}
		}
	}
	return Inst{}, &UnimplementedError{Word: word, Addr: addr}
}

// vfpExpandImm expands the 8-bit FP immediate to its bit pattern.
func vfpExpandImm(imm8 uint8, size uint8) uint64 {
	sign := uint64(imm8 >> 7)
	expTop := uint64(imm8>>6) & 1
	expRest := uint64(imm8>>4) & 3
	frac := uint64(imm8 & 0xf)
	if size == 8 {
		// double: sign:1 | NOT(b6):1 | Replicate(b6,8):8 | b5:b4:2 | frac:4 | zeros:48
		e := ((expTop ^ 1) << 10) | (0xFF*expTop)<<2 | expRest
		return sign<<63 | e<<52 | frac<<48
	}
	// single: sign:1 | NOT(b6):1 | Replicate(b6,5):5 | b5:b4:2 | frac:4 | zeros:19
	e := ((expTop ^ 1) << 7) | (0x1F*expTop)<<2 | expRest
	return sign<<31 | e<<23 | frac<<19
}

// decodeBitMasks is the standard AArch64 bitmask immediate expansion.
func decodeBitMasks(n, imms, immr uint32, immediate bool, dsize uint8) (wmask, tmask uint64, ok bool) {
	combined := (n << 6) | (^imms & 0x3f)
	length := -1
	for i := 6; i >= 0; i-- {
		if combined&(1<<uint(i)) != 0 {
			length = i
			break
		}
	}
	if length < 1 {
		return 0, 0, false
	}
	levels := uint32(1<<uint(length)) - 1
	if immediate && imms&levels == levels {
		return 0, 0, false
	}
	s := imms & levels
	r := immr & levels
	diff := (s - r) & levels
	esize := uint32(1) << uint(length)
	if esize > uint32(dsize) {
		return 0, 0, false
	}
	welem := onesMask(uint64(s) + 1)
	telem := onesMask(uint64(diff) + 1)
	wrot := rorN(welem, uint64(r), uint64(esize))
	wmask = replicate(wrot, esize, dsize)
	tmask = replicate(telem, esize, dsize)
	return wmask, tmask, true
}

func onesMask(n uint64) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (1 << n) - 1
}

func rorN(v, r, width uint64) uint64 {
	if width == 0 {
		return v
	}
	r %= width
	mask := onesMask(width)
	v &= mask
	return ((v >> r) | (v << (width - r))) & mask
}

func replicate(elem uint64, esize uint32, dsize uint8) uint64 {
	var out uint64
	for i := uint32(0); i < uint32(dsize); i += esize {
		out |= elem << i
	}
	if dsize == 32 {
		out &= 0xFFFFFFFF
	}
	return out
}
