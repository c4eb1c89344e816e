package game

import "github.com/zboralski/pouchsim/internal/image"

// Singleton names.
const (
	SingletonPmdm       = "pmdm"
	SingletonGdtManager = "gdt_manager"
	SingletonInfoData   = "info_data"
	SingletonAocManager = "aoc_manager"
)

// BytecodeOp enumerates the operations a singleton recipe drives the
// core with. The recipes edit control flow through the real in-binary
// constructors, skipping the subsystems the simulator refuses to
// emulate (mutexes, disposers, debug loggers, save loading) while still
// running the data-laying portions.
type BytecodeOp uint8

const (
	// OpEnter simulates BL to a main-relative address.
	OpEnter BytecodeOp = iota
	// OpExecuteUntil steps the CPU until PC reaches the address.
	OpExecuteUntil
	// OpExecuteUntilThenSkipOne runs to A, then sets PC to A+4.
	OpExecuteUntilThenSkipOne
	// OpExecuteUntilThenAllocSingletonSkipOne runs to A, puts the
	// singleton address in X0, then skips one instruction.
	OpExecuteUntilThenAllocSingletonSkipOne
	// OpJump sets PC to A.
	OpJump
	// OpJumpExecute sets PC to A, then runs until A+4.
	OpJumpExecute
	// OpAllocate puts a fresh heap allocation of A bytes in X0.
	OpAllocate
	// OpAllocateProxy allocates a proxy object and puts its address in X0.
	OpAllocateProxy
	// OpAllocateData copies an embedded data blob to the heap and puts
	// its address in X0.
	OpAllocateData
	// OpGetSingleton puts the singleton address in register Reg.
	OpGetSingleton
	// OpSetRegLo sets the low 32 bits of register Reg to A.
	OpSetRegLo
	// OpSetRegHi sets the high 32 bits of register Reg to A.
	OpSetRegHi
	// OpCopyReg copies register A to register B.
	OpCopyReg
	// OpExecuteToComplete runs until the entered function returns.
	OpExecuteToComplete
)

// ProxyID selects the proxy pool for OpAllocateProxy.
type ProxyID uint8

// ProxyTriggerParam is the game-data table proxy.
const ProxyTriggerParam ProxyID = 0

// DataID selects the embedded blob for OpAllocateData.
type DataID uint8

// DataActorInfoByml is the actor info archive handed to the info-data
// constructor.
const DataActorInfoByml DataID = 0

// Bytecode is one recipe operation.
type Bytecode struct {
	Op    BytecodeOp
	A     uint32
	B     uint32
	Reg   uint8
	Proxy ProxyID
	Data  DataID
}

func enter(a uint32) Bytecode        { return Bytecode{Op: OpEnter, A: a} }
func executeUntil(a uint32) Bytecode { return Bytecode{Op: OpExecuteUntil, A: a} }
func skipOneAt(a uint32) Bytecode    { return Bytecode{Op: OpExecuteUntilThenSkipOne, A: a} }
func allocSingletonAt(a uint32) Bytecode {
	return Bytecode{Op: OpExecuteUntilThenAllocSingletonSkipOne, A: a}
}
func jump(a uint32) Bytecode           { return Bytecode{Op: OpJump, A: a} }
func jumpExecute(a uint32) Bytecode    { return Bytecode{Op: OpJumpExecute, A: a} }
func allocate(n uint32) Bytecode       { return Bytecode{Op: OpAllocate, A: n} }
func allocateProxy(p ProxyID) Bytecode { return Bytecode{Op: OpAllocateProxy, Proxy: p} }
func allocateData(d DataID) Bytecode   { return Bytecode{Op: OpAllocateData, Data: d} }
func getSingleton(reg uint8) Bytecode  { return Bytecode{Op: OpGetSingleton, Reg: reg} }
func setRegLo(reg uint8, v uint32) Bytecode {
	return Bytecode{Op: OpSetRegLo, Reg: reg, A: v}
}
func copyReg(from, to uint8) Bytecode { return Bytecode{Op: OpCopyReg, A: uint32(from), B: uint32(to)} }
func executeToComplete() Bytecode     { return Bytecode{Op: OpExecuteToComplete} }

// Singleton describes one managed singleton: where it lives in the
// heap, where its instance pointer lives in the main module, and the
// recipe that constructs it. The hard-coded addresses are part of the
// binary-compatibility surface.
type Singleton struct {
	Name string
	// RelStart is the singleton's offset from the heap start.
	RelStart uint32
	// Size is the singleton's byte size.
	Size uint32
	// MainOffset is where the instance static lives in the main module.
	MainOffset uint32
	// Bytecode is empty for unsupported versions; the bootstrapper then
	// fails cleanly instead of guessing addresses.
	Bytecode []Bytecode
}

// Supported reports whether a recipe exists for the environment.
func (s *Singleton) Supported() bool { return len(s.Bytecode) > 0 }

// Pmdm is the pause-menu data manager recipe.
func Pmdm(env image.Environment) *Singleton {
	s := &Singleton{Name: SingletonPmdm, RelStart: 0x0, Size: PmdmSize}
	if env.Is150() {
		s.MainOffset = 0x25d75b8
		s.Bytecode = []Bytecode{
			enter(0x0096aaa0),
			executeToComplete(),
			enter(0x0096b1cc),
			allocSingletonAt(0x0096b200),
			// skip the disposer ctor
			skipOneAt(0x0096b218),
			// skip the critical section ctor
			skipOneAt(0x0096b2e8),
			executeToComplete(),
		}
	} else {
		s.MainOffset = 0x2ca6d50
	}
	return s
}

// GdtManager is the game-data manager recipe.
func GdtManager(env image.Environment) *Singleton {
	s := &Singleton{Name: SingletonGdtManager, RelStart: 0x100000, Size: GdtManagerSize}
	if env.Is150() {
		s.MainOffset = 0x2601c28
		s.Bytecode = []Bytecode{
			enter(0x00dce964),
			allocSingletonAt(0x00dce994),
			// skip the disposer ctor
			skipOneAt(0x00dce9ac),
			// skip data ctors
			skipOneAt(0x00dcea24),
			skipOneAt(0x00dcea2c),
			skipOneAt(0x00dcea38),
			skipOneAt(0x00dcea40),
			skipOneAt(0x00dcea48),
			skipOneAt(0x00dcea54),
			// method tree node disposer ctor
			executeUntil(0x00b04390),
			jump(0x00b043b4),
			// skip the mutex ctor
			skipOneAt(0x00dcec0c),
			executeUntil(0x00dcec24),
			// replace return with a branch to init
			jump(0x00dcf1c4),
			getSingleton(0),
			setRegLo(1, 0),
			setRegLo(2, 0),
			// skip two system tick reads
			executeUntil(0x00dcf1f8),
			jump(0x00dcf200),
			// skip dual heap creation, null it
			skipOneAt(0x00dcf23c),
			setRegLo(0, 0),
			// allocate the increase logger
			skipOneAt(0x00dcf254),
			allocate(0x3098),
			// skip save manager creation
			skipOneAt(0x00dcf268),
			// skip debug and save manager init
			executeUntil(0x00dcf3ec),
			jump(0x00dcf3fc),
			skipOneAt(0x00dcf40c),
			// skip entry factory bgdata
			executeUntil(0x00dcf428),
			jump(0x00dcf4e0),
			skipOneAt(0x00dcf4fc),
			// skip save area dual heap creation, null it
			skipOneAt(0x00dcf530),
			setRegLo(0, 0),
			// skip loading the save and resources
			skipOneAt(0x00dcf53c),
			skipOneAt(0x00dcf550),
			skipOneAt(0x00dcf5cc),
			// skip shop data loading
			skipOneAt(0x00dcf618),
			// skip tree node setup
			executeUntil(0x00dcf634),
			jump(0x00dcf670),
			// skip resource unloading
			skipOneAt(0x00dcf680),
			// create the trigger param and store it
			allocateProxy(ProxyTriggerParam),
			copyReg(0, 21),
			getSingleton(19),
			jumpExecute(0x00dcfe88),
			jumpExecute(0x00dd2ed4),
			// finish init normally
			jump(0x00dcf684),
			executeToComplete(),
		}
	}
	return s
}

// InfoData is the actor-info data recipe.
func InfoData(env image.Environment) *Singleton {
	s := &Singleton{Name: SingletonInfoData, RelStart: 0x200000, Size: 0x98}
	if env.Is150() {
		s.MainOffset = 0x2600020
		s.Bytecode = []Bytecode{
			enter(0x00d2e16c),
			allocSingletonAt(0x00d2e19c),
			executeUntil(0x00d2e220),
			// branch to init
			jump(0x00d2e2d8),
			getSingleton(0),
			copyReg(0, 3),
			allocateData(DataActorInfoByml),
			copyReg(0, 1),
			copyReg(3, 0),
			setRegLo(2, 0),
			setRegLo(3, 0),
			// root yaml iterator
			skipOneAt(0x00d2e314),
			allocate(0x10),
			// hash iterator
			skipOneAt(0x00d2e334),
			allocate(0x10),
			// actor iterator
			skipOneAt(0x00d2e350),
			allocate(0x10),
			executeToComplete(),
		}
	}
	return s
}

// AocManager is the DLC manager recipe.
func AocManager(env image.Environment) *Singleton {
	s := &Singleton{Name: SingletonAocManager, RelStart: 0x300000, Size: 0x598}
	if env.Is150() {
		s.MainOffset = 0x2600630
		s.Bytecode = []Bytecode{
			enter(0x00d69170),
			allocSingletonAt(0x00d691a0),
			skipOneAt(0x00d691b0),
			// ctor
			skipOneAt(0x00d69240),
			skipOneAt(0x00d69294),
			skipOneAt(0x00d69788),
			executeUntil(0x00d691ec),
			// initial DLC version
			jump(0x00d6c3f4),
			getSingleton(19),
			setRegLo(8, env.DLC),
			executeUntil(0x00d6c3f8),
		}
	}
	return s
}

// SingletonFor returns the recipe for a singleton name.
func SingletonFor(name string, env image.Environment) *Singleton {
	switch name {
	case SingletonPmdm:
		return Pmdm(env)
	case SingletonGdtManager:
		return GdtManager(env)
	case SingletonInfoData:
		return InfoData(env)
	case SingletonAocManager:
		return AocManager(env)
	default:
		return nil
	}
}
