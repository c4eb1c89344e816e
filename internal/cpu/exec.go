package cpu

import (
	"math"
	"math/bits"

	"github.com/zboralski/pouchsim/internal/memory"
)

// width returns the operation width in bits.
func width(is64 bool) uint8 {
	if is64 {
		return 64
	}
	return 32
}

func truncTo(v uint64, is64 bool) uint64 {
	if is64 {
		return v
	}
	return uint64(uint32(v))
}

// addWithCarry computes a + b + carry and the NZCV flags for the given
// width.
func addWithCarry(a, b uint64, carry bool, is64 bool) (uint64, Flags) {
	var c uint64
	if carry {
		c = 1
	}
	if is64 {
		sum, c1 := bits.Add64(a, b, c)
		f := Flags{
			N: int64(sum) < 0,
			Z: sum == 0,
			C: c1 == 1,
			V: (int64(a) < 0) == (int64(b) < 0) && (int64(sum) < 0) != (int64(a) < 0),
		}
		return sum, f
	}
	a32, b32 := uint32(a), uint32(b)
	wide := uint64(a32) + uint64(b32) + c
	sum := uint32(wide)
	f := Flags{
		N: int32(sum) < 0,
		Z: sum == 0,
		C: wide > math.MaxUint32,
		V: (int32(a32) < 0) == (int32(b32) < 0) && (int32(sum) < 0) != (int32(a32) < 0),
	}
	return uint64(sum), f
}

func logicalFlags(v uint64, is64 bool) Flags {
	if is64 {
		return Flags{N: int64(v) < 0, Z: v == 0}
	}
	return Flags{N: int32(uint32(v)) < 0, Z: uint32(v) == 0}
}

func shiftValue(v uint64, kind ShiftKind, amount uint8, is64 bool) uint64 {
	w := uint64(width(is64))
	amt := uint64(amount) % w
	v = truncTo(v, is64)
	switch kind {
	case ShiftLSL:
		return truncTo(v<<amt, is64)
	case ShiftLSR:
		return v >> amt
	case ShiftASR:
		if is64 {
			return uint64(int64(v) >> amt)
		}
		return uint64(uint32(int32(uint32(v)) >> amt))
	default: // ROR
		if amt == 0 {
			return v
		}
		return truncTo(v>>amt|v<<(w-amt), is64)
	}
}

func extendValue(v uint64, ext ExtendKind, shift uint8) uint64 {
	var out uint64
	switch ext {
	case ExtUXTB:
		out = uint64(uint8(v))
	case ExtUXTH:
		out = uint64(uint16(v))
	case ExtUXTW:
		out = uint64(uint32(v))
	case ExtUXTX:
		out = v
	case ExtSXTB:
		out = uint64(int64(int8(v)))
	case ExtSXTH:
		out = uint64(int64(int16(v)))
	case ExtSXTW:
		out = uint64(int64(int32(v)))
	default: // SXTX
		out = v
	}
	return out << shift
}

// execute runs one decoded instruction, mutating registers and memory.
// Ordinary instructions advance PC by 4; branches write PC directly.
func (c *Cpu) execute(proc *Process, inst *Inst) error {
	regs := &c.Regs
	pc := regs.PC

	switch inst.Op {
	case OpNop:

	case OpMovz:
		regs.Set(inst.Rd, uint64(inst.Imm)<<uint64(inst.Imm2))
	case OpMovn:
		regs.Set(inst.Rd, ^(uint64(inst.Imm) << uint64(inst.Imm2)))
	case OpMovk:
		old := regs.Get(inst.Rd)
		shift := uint64(inst.Imm2)
		cleared := old &^ (0xFFFF << shift)
		regs.Set(inst.Rd, cleared|uint64(inst.Imm)<<shift)

	case OpAdr:
		regs.Set(inst.Rd, pc+uint64(inst.Imm))
	case OpAdrp:
		regs.Set(inst.Rd, (pc&^uint64(0xFFF))+uint64(inst.Imm))

	case OpAddImm, OpSubImm:
		a := regs.Get(inst.Rn)
		b := uint64(inst.Imm)
		carry := false
		if inst.Op == OpSubImm {
			b = ^b
			carry = true
		}
		sum, f := addWithCarry(a, b, carry, inst.Is64)
		if inst.SetFlags {
			regs.Flags = f
		}
		regs.Set(inst.Rd, sum)

	case OpAddShifted, OpSubShifted:
		a := regs.Get(inst.Rn)
		b := shiftValue(regs.Get(inst.Rm), inst.Shift, uint8(inst.Imm2), inst.Is64)
		carry := false
		if inst.Op == OpSubShifted {
			b = truncTo(^b, inst.Is64)
			carry = true
		}
		sum, f := addWithCarry(a, b, carry, inst.Is64)
		if inst.SetFlags {
			regs.Flags = f
		}
		regs.Set(inst.Rd, sum)

	case OpAddExt, OpSubExt:
		a := regs.Get(inst.Rn)
		b := truncTo(extendValue(regs.Get(inst.Rm), inst.Ext, uint8(inst.Imm2)), inst.Is64)
		carry := false
		if inst.Op == OpSubExt {
			b = truncTo(^b, inst.Is64)
			carry = true
		}
		sum, f := addWithCarry(a, b, carry, inst.Is64)
		if inst.SetFlags {
			regs.Flags = f
		}
		regs.Set(inst.Rd, sum)

	case OpAndImm, OpOrrImm, OpEorImm:
		a := regs.Get(inst.Rn)
		b := uint64(inst.Imm)
		var v uint64
		switch inst.Op {
		case OpAndImm:
			v = a & b
		case OpOrrImm:
			v = a | b
		default:
			v = a ^ b
		}
		v = truncTo(v, inst.Is64)
		if inst.SetFlags {
			regs.Flags = logicalFlags(v, inst.Is64)
		}
		regs.Set(inst.Rd, v)

	case OpAndShifted, OpBicShifted, OpOrrShifted, OpOrnShifted, OpEorShifted, OpEonShifted:
		a := regs.Get(inst.Rn)
		b := shiftValue(regs.Get(inst.Rm), inst.Shift, uint8(inst.Imm2), inst.Is64)
		var v uint64
		switch inst.Op {
		case OpAndShifted:
			v = a & b
		case OpBicShifted:
			v = a &^ b
		case OpOrrShifted:
			v = a | b
		case OpOrnShifted:
			v = a | ^b
		case OpEorShifted:
			v = a ^ b
		default:
			v = a ^ ^b
		}
		v = truncTo(v, inst.Is64)
		if inst.SetFlags {
			regs.Flags = logicalFlags(v, inst.Is64)
		}
		regs.Set(inst.Rd, v)

	case OpSbfm, OpBfm, OpUbfm:
		dsize := width(inst.Is64)
		wmask, tmask, ok := decodeBitMasks(boolToU32(inst.Is64), uint32(inst.Imm3), uint32(inst.Imm2), false, dsize)
		if !ok {
			return &UnimplementedError{Word: inst.Word, Addr: pc}
		}
		src := regs.Get(inst.Rn)
		bot := rorN(src, uint64(inst.Imm2), uint64(dsize)) & wmask
		switch inst.Op {
		case OpUbfm:
			regs.Set(inst.Rd, bot&tmask)
		case OpSbfm:
			var top uint64
			if src&(1<<uint64(inst.Imm3)) != 0 {
				top = ^uint64(0)
			}
			regs.Set(inst.Rd, truncTo((top&^tmask)|(bot&tmask), inst.Is64))
		default: // BFM
			dst := regs.Get(inst.Rd)
			merged := (dst &^ wmask) | bot
			regs.Set(inst.Rd, truncTo((dst&^tmask)|(merged&tmask), inst.Is64))
		}

	case OpCsel, OpCsinc, OpCsinv, OpCsneg:
		var v uint64
		if inst.Cond.Holds(regs.Flags) {
			v = regs.Get(inst.Rn)
		} else {
			v = regs.Get(inst.Rm)
			switch inst.Op {
			case OpCsinc:
				v++
			case OpCsinv:
				v = ^v
			case OpCsneg:
				v = -v
			}
		}
		regs.Set(inst.Rd, truncTo(v, inst.Is64))

	case OpCcmpImm, OpCcmpReg, OpCcmnImm, OpCcmnReg:
		if inst.Cond.Holds(regs.Flags) {
			a := regs.Get(inst.Rn)
			var b uint64
			if inst.Op == OpCcmpImm || inst.Op == OpCcmnImm {
				b = uint64(inst.Imm)
			} else {
				b = regs.Get(inst.Rm)
			}
			carry := false
			if inst.Op == OpCcmpImm || inst.Op == OpCcmpReg {
				b = truncTo(^b, inst.Is64)
				carry = true
			}
			_, f := addWithCarry(a, b, carry, inst.Is64)
			regs.Flags = f
		} else {
			regs.Flags = FromNZCV(uint8(inst.Imm2))
		}

	case OpLslv, OpLsrv, OpAsrv, OpRorv:
		amount := uint8(regs.Get(inst.Rm) % uint64(width(inst.Is64)))
		var kind ShiftKind
		switch inst.Op {
		case OpLslv:
			kind = ShiftLSL
		case OpLsrv:
			kind = ShiftLSR
		case OpAsrv:
			kind = ShiftASR
		default:
			kind = ShiftROR
		}
		regs.Set(inst.Rd, shiftValue(regs.Get(inst.Rn), kind, amount, inst.Is64))

	case OpUdiv:
		a, b := regs.Get(inst.Rn), regs.Get(inst.Rm)
		var v uint64
		if b != 0 {
			v = a / b
		}
		regs.Set(inst.Rd, v)
	case OpSdiv:
		a, b := regs.GetSigned(inst.Rn), regs.GetSigned(inst.Rm)
		var v int64
		if b != 0 {
			v = a / b
		}
		regs.Set(inst.Rd, truncTo(uint64(v), inst.Is64))

	case OpMadd:
		v := regs.Get(inst.Ra) + regs.Get(inst.Rn)*regs.Get(inst.Rm)
		regs.Set(inst.Rd, truncTo(v, inst.Is64))
	case OpMsub:
		v := regs.Get(inst.Ra) - regs.Get(inst.Rn)*regs.Get(inst.Rm)
		regs.Set(inst.Rd, truncTo(v, inst.Is64))

	case OpB:
		regs.PC = pc + uint64(inst.Imm)
		return nil
	case OpBl:
		regs.Set(LR, pc+4)
		regs.PC = pc + uint64(inst.Imm)
		return nil
	case OpBr:
		regs.PC = regs.Get(inst.Rn)
		return nil
	case OpBlr:
		regs.Set(LR, pc+4)
		regs.PC = regs.Get(inst.Rn)
		return nil
	case OpRet:
		regs.PC = regs.Get(inst.Rn)
		return nil
	case OpBCond:
		if inst.Cond.Holds(regs.Flags) {
			regs.PC = pc + uint64(inst.Imm)
			return nil
		}
	case OpCbz:
		if regs.Get(inst.Rn) == 0 {
			regs.PC = pc + uint64(inst.Imm)
			return nil
		}
	case OpCbnz:
		if regs.Get(inst.Rn) != 0 {
			regs.PC = pc + uint64(inst.Imm)
			return nil
		}
	case OpTbz:
		if regs.Get(inst.Rn)&(1<<uint64(inst.Imm3)) == 0 {
			regs.PC = pc + uint64(inst.Imm)
			return nil
		}
	case OpTbnz:
		if regs.Get(inst.Rn)&(1<<uint64(inst.Imm3)) != 0 {
			regs.PC = pc + uint64(inst.Imm)
			return nil
		}

	case OpLdr, OpLdarb:
		addr := c.memAddr(regs, inst)
		if err := c.loadReg(proc, regs, inst.Rd, addr, inst.Size, inst.SignExt); err != nil {
			return err
		}
		c.memWriteback(regs, inst)
	case OpStr:
		addr := c.memAddr(regs, inst)
		if err := c.storeReg(proc, regs, inst.Rd, addr, inst.Size); err != nil {
			return err
		}
		c.memWriteback(regs, inst)
	case OpLdp:
		addr := c.memAddr(regs, inst)
		if err := c.loadReg(proc, regs, inst.Rd, addr, inst.Size, false); err != nil {
			return err
		}
		if err := c.loadReg(proc, regs, inst.Ra, addr+uint64(inst.Size), inst.Size, false); err != nil {
			return err
		}
		c.memWriteback(regs, inst)
	case OpStp:
		addr := c.memAddr(regs, inst)
		if err := c.storeReg(proc, regs, inst.Rd, addr, inst.Size); err != nil {
			return err
		}
		if err := c.storeReg(proc, regs, inst.Ra, addr+uint64(inst.Size), inst.Size); err != nil {
			return err
		}
		c.memWriteback(regs, inst)

	case OpFmovReg:
		regs.Set(inst.Rd, regs.Get(inst.Rn))
	case OpFmovImm:
		regs.Set(inst.Rd, uint64(inst.Imm))
	case OpFmovToGP, OpFmovFromGP:
		regs.Set(inst.Rd, regs.Get(inst.Rn))
	case OpFabs, OpFneg, OpFsqrt:
		if inst.Size == 8 {
			v := math.Float64frombits(regs.Get(inst.Rn))
			switch inst.Op {
			case OpFabs:
				v = math.Abs(v)
			case OpFneg:
				v = -v
			default:
				v = math.Sqrt(v)
			}
			regs.Set(inst.Rd, math.Float64bits(v))
		} else {
			v := math.Float32frombits(uint32(regs.Get(inst.Rn)))
			switch inst.Op {
			case OpFabs:
				v = float32(math.Abs(float64(v)))
			case OpFneg:
				v = -v
			default:
				v = float32(math.Sqrt(float64(v)))
			}
			regs.Set(inst.Rd, uint64(math.Float32bits(v)))
		}
	case OpFcvt:
		if inst.Size == 8 {
			v := math.Float32frombits(uint32(regs.Get(inst.Rn)))
			regs.Set(inst.Rd, math.Float64bits(float64(v)))
		} else {
			v := math.Float64frombits(regs.Get(inst.Rn))
			regs.Set(inst.Rd, uint64(math.Float32bits(float32(v))))
		}
	case OpFadd, OpFsub, OpFmul, OpFdiv:
		if inst.Size == 8 {
			a := math.Float64frombits(regs.Get(inst.Rn))
			b := math.Float64frombits(regs.Get(inst.Rm))
			regs.Set(inst.Rd, math.Float64bits(fpArith(a, b, inst.Op)))
		} else {
			a := float64(math.Float32frombits(uint32(regs.Get(inst.Rn))))
			b := float64(math.Float32frombits(uint32(regs.Get(inst.Rm))))
			regs.Set(inst.Rd, uint64(math.Float32bits(float32(fpArith(a, b, inst.Op)))))
		}
	case OpFcmp:
		var a, b float64
		if inst.Size == 8 {
			a = math.Float64frombits(regs.Get(inst.Rn))
			if inst.Rm != 0xFF {
				b = math.Float64frombits(regs.Get(inst.Rm))
			}
		} else {
			a = float64(math.Float32frombits(uint32(regs.Get(inst.Rn))))
			if inst.Rm != 0xFF {
				b = float64(math.Float32frombits(uint32(regs.Get(inst.Rm))))
			}
		}
		switch {
		case math.IsNaN(a) || math.IsNaN(b):
			regs.Flags = Flags{C: true, V: true}
		case a == b:
			regs.Flags = Flags{Z: true, C: true}
		case a < b:
			regs.Flags = Flags{N: true}
		default:
			regs.Flags = Flags{C: true}
		}
	case OpFcvtzs:
		var v float64
		if inst.Size == 8 {
			v = math.Float64frombits(regs.Get(inst.Rn))
		} else {
			v = float64(math.Float32frombits(uint32(regs.Get(inst.Rn))))
		}
		regs.Set(inst.Rd, truncTo(uint64(int64(v)), inst.Is64))
	case OpScvtf:
		v := float64(regs.GetSigned(inst.Rn))
		if inst.Size == 8 {
			regs.Set(inst.Rd, math.Float64bits(v))
		} else {
			regs.Set(inst.Rd, uint64(math.Float32bits(float32(v))))
		}
	case OpUcvtf:
		v := float64(regs.Get(inst.Rn))
		if inst.Size == 8 {
			regs.Set(inst.Rd, math.Float64bits(v))
		} else {
			regs.Set(inst.Rd, uint64(math.Float32bits(float32(v))))
		}

	default:
		return &UnimplementedError{Word: inst.Word, Addr: pc}
	}

	regs.IncPC()
	return nil
}

func fpArith(a, b float64, op Op) float64 {
	switch op {
	case OpFadd:
		return a + b
	case OpFsub:
		return a - b
	case OpFmul:
		return a * b
	default:
		return a / b
	}
}

// memAddr computes the effective address of a load or store before
// writeback.
func (c *Cpu) memAddr(regs *Registers, inst *Inst) uint64 {
	base := regs.Get(inst.Rn)
	if inst.RegOff {
		return base + extendValue(regs.Get(inst.Rm), inst.Ext, uint8(inst.Imm2))
	}
	if inst.Index == IndexPost {
		return base
	}
	return base + uint64(inst.Imm)
}

// memWriteback applies pre/post-index base register updates.
func (c *Cpu) memWriteback(regs *Registers, inst *Inst) {
	if inst.Index == IndexNone {
		return
	}
	regs.Set(inst.Rn, regs.Get(inst.Rn)+uint64(inst.Imm))
}

// loadReg loads one register of the given access size, including the
// 128-bit vector form.
func (c *Cpu) loadReg(proc *Process, regs *Registers, rt RegName, addr uint64, size uint8, signExt bool) error {
	if size == 16 {
		lo, err := loadSized(proc.Mem, addr, 8)
		if err != nil {
			return err
		}
		hi, err := loadSized(proc.Mem, addr+8, 8)
		if err != nil {
			return err
		}
		regs.SetQ(rt.Idx(), lo, hi)
		return nil
	}
	v, err := loadSized(proc.Mem, addr, size)
	if err != nil {
		return err
	}
	if signExt {
		v = truncTo(uint64(signExtend(v, size*8)), rt.Is64())
	}
	regs.Set(rt, v)
	return nil
}

// storeReg stores one register of the given access size, including the
// 128-bit vector form.
func (c *Cpu) storeReg(proc *Process, regs *Registers, rt RegName, addr uint64, size uint8) error {
	if size == 16 {
		lo, hi := regs.GetQ(rt.Idx())
		if err := storeSized(proc.Mem, addr, 8, lo); err != nil {
			return err
		}
		return storeSized(proc.Mem, addr+8, 8, hi)
	}
	return storeSized(proc.Mem, addr, size, regs.Get(rt))
}

func loadSized(m *memory.Memory, addr uint64, size uint8) (uint64, error) {
	r, err := m.Reader(addr, 0)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		v, err := r.ReadU8()
		return uint64(v), err
	case 2:
		v, err := r.ReadU16()
		return uint64(v), err
	case 4:
		v, err := r.ReadU32()
		return uint64(v), err
	default:
		return r.ReadU64()
	}
}

func storeSized(m *memory.Memory, addr uint64, size uint8, v uint64) error {
	w, err := m.Writer(addr, 0)
	if err != nil {
		return err
	}
	switch size {
	case 1:
		return w.WriteU8(uint8(v))
	case 2:
		return w.WriteU16(uint16(v))
	case 4:
		return w.WriteU32(uint32(v))
	default:
		return w.WriteU64(v)
	}
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
