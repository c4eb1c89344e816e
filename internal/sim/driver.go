package sim

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/xyproto/env/v2"

	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/gdt"
	"github.com/zboralski/pouchsim/internal/log"
	"github.com/zboralski/pouchsim/internal/script"
)

// RunHandle identifies one run and carries its cooperative abort flag.
type RunHandle struct {
	id      uuid.UUID
	aborted atomic.Bool
}

// NewRunHandle creates a handle with a fresh run id.
func NewRunHandle() *RunHandle {
	return &RunHandle{id: uuid.New()}
}

// ID returns the run id.
func (h *RunHandle) ID() uuid.UUID { return h.id }

// Abort requests the run to stop at the next checkpoint.
func (h *RunHandle) Abort() { h.aborted.Store(true) }

// Aborted reports the abort flag.
func (h *RunHandle) Aborted() bool { return h.aborted.Load() }

// MenuOverload enables the menu overload glitch state for new runs.
// Tests may override the variable directly.
var MenuOverload = env.Bool("POUCHSIM_MENU_OVERLOAD")

// gameState is the lifecycle of the emulated game.
type gameState int

const (
	stateRunning gameState = iota
	stateCrashed
	stateClosed
)

// ProcessFactory builds a pristine process; close-game and new-game
// reset through it. Each run owns its own CPU, process, and driver
// state.
type ProcessFactory func() (*game.Core, error)

// Runner executes script steps sequentially against one emulated
// process and extracts a snapshot at each end-of-step boundary.
type Runner struct {
	factory ProcessFactory
	backend backend

	core  *simCore
	sys   GameSystems
	saves map[string]*gdt.TriggerParam

	state gameState
	crash *cpu.CrashReport
}

const manualSaveName = "manual"

// NewRunner creates a runner. When emulated is true, actions drive the
// real in-binary functions through the CPU; otherwise the reference
// backend reproduces them host-side.
func NewRunner(factory ProcessFactory, emulated bool) (*Runner, error) {
	r := &Runner{
		factory: factory,
		saves:   map[string]*gdt.TriggerParam{},
	}
	if emulated {
		r.backend = emuBackend{}
	} else {
		r.backend = hostBackend{}
	}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// reset builds a pristine process.
func (r *Runner) reset() error {
	core, err := r.factory()
	if err != nil {
		return err
	}
	r.core = newSimCore(core)
	r.sys = GameSystems{Screen: ScreenSystem{MenuOverload: MenuOverload}}
	r.state = stateRunning
	r.crash = nil
	return nil
}

// Core exposes the current core for views and tests.
func (r *Runner) Core() *game.Core { return r.core.Core }

// Systems exposes the driver state for views and tests.
func (r *Runner) Systems() *GameSystems { return &r.sys }

// Run executes the steps. The second result is false when the run was
// aborted; outputs produced before the abort are returned either way.
func (r *Runner) Run(steps []script.Step, handle *RunHandle) ([]StepOutput, bool) {
	if handle == nil {
		handle = NewRunHandle()
	}
	log.L.Info("run start", log.Fn(handle.ID().String()))
	var outputs []StepOutput
	for i, step := range steps {
		if handle.Aborted() {
			return outputs, false
		}
		outputs = append(outputs, r.RunStep(i, step, handle))
	}
	return outputs, true
}

// RunStep executes one step and snapshots the state.
func (r *Runner) RunStep(idx int, step script.Step, handle *RunHandle) StepOutput {
	var errors []ErrorReport
	cmdName := fmt.Sprintf("%T", step.Command)
	log.L.Step(idx, cmdName)

	switch {
	case step.Command == nil:
		// parse failure; the step was skipped but still snapshots
	case r.state == stateCrashed && !resetsGame(step.Command):
		errors = append(errors, simError(step.Span, ErrPreviousCrash))
	case r.state == stateClosed && !resetsGame(step.Command):
		errors = append(errors, simError(step.Span, ErrPreviousClosed))
	default:
		ctx := &Context{c: r.core, backend: r.backend, span: step.Span, handle: handle}
		// ground items over the drop cap despawn on the next tick
		r.sys.Overworld.DespawnItems()
		if err := r.execute(ctx, step.Command, &errors); err != nil {
			if crash, ok := err.(*cpu.CrashReport); ok {
				r.state = stateCrashed
				r.crash = crash
				errors = append(errors, simErrorf(step.Span, ErrCrash, "%v", crash))
			} else {
				errors = append(errors, simErrorf(step.Span, ErrOperationNotComplete, "%v", err))
			}
		}
	}

	snapshot := r.snapshot(errors)
	return StepOutput{Step: idx, Command: cmdName, Snapshot: snapshot}
}

// resetsGame reports whether the command recovers from a terminal
// state.
func resetsGame(cmd script.Command) bool {
	switch cmd.(type) {
	case script.CmdReload, script.CmdReloadFrom, script.CmdNewGame:
		return true
	}
	return false
}

// CrashDump returns the current crash report text, if crashed.
func (r *Runner) CrashDump() string {
	if r.crash == nil {
		return ""
	}
	return r.crash.Dump()
}

// saveTo snapshots the game data into a save slot.
func (r *Runner) saveTo(name string) error {
	if err := r.backend.SaveToGameData(r.core); err != nil {
		return err
	}
	var saved *gdt.TriggerParam
	if err := r.core.WithGdt(func(tp *gdt.TriggerParam) {
		saved = tp.Clone()
	}); err != nil {
		return err
	}
	r.saves[name] = saved
	return nil
}

// reloadFrom restores a save slot. After a crash or a closed game the
// process is rebuilt first.
func (r *Runner) reloadFrom(name string, span script.Span, errors *[]ErrorReport) error {
	save, ok := r.saves[name]
	if !ok {
		*errors = append(*errors, simErrorf(span, ErrSaveNotFound, "%s", name))
		return nil
	}
	if r.state != stateRunning {
		if err := r.reset(); err != nil {
			return err
		}
	}
	loaded := true
	if err := r.core.WithGdtMut(func(tp *gdt.TriggerParam) {
		loaded = tp.LoadSave(save)
	}); err != nil {
		return err
	}
	if !loaded {
		*errors = append(*errors, simErrorf(span, ErrOperationNotComplete, "save data mismatch"))
		return nil
	}
	return r.backend.LoadFromGameData(r.core)
}
