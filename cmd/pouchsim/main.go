package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/zboralski/pouchsim/internal/cpu"
	"github.com/zboralski/pouchsim/internal/game"
	"github.com/zboralski/pouchsim/internal/image"
	"github.com/zboralski/pouchsim/internal/linker"
	"github.com/zboralski/pouchsim/internal/log"
	"github.com/zboralski/pouchsim/internal/memory"
	"github.com/zboralski/pouchsim/internal/script"
	"github.com/zboralski/pouchsim/internal/sim"
	"github.com/zboralski/pouchsim/internal/ui/colorize"
)

var (
	verbose   bool
	imagePath string
	descPath  string
	dlc       uint32
	noColor   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pouchsim [script.txt]",
		Short: "Simulate the game's inventory subsystem from an action script",
		Long: `Pouchsim replays a human-written action script ("get 5 apples",
"hold 2", "drop", "save", "reload") against an emulated copy of the
game's inventory code and prints a faithful snapshot of the in-memory
pouch and the on-disk save data after every step.

With --image, the real inventory routines from the program image run on
a built-in ARM64 user-mode core; singleton constructors execute from
the binary, driven by version-keyed recipes. Without an image, a
reference model reproduces the same data-structure semantics host-side.

Glitches and corruption patterns reproduce deliberately: slot breaking,
inventory nuking, hold smuggling and prompt entanglement behave as they
do on console.

Examples:
  pouchsim script.txt                       # reference model
  pouchsim script.txt --image app.bin --desc app.yaml
  pouchsim repl                             # interactive stepping
  pouchsim info app.yaml                    # show image metadata`,
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE:                  runScript,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().StringVar(&imagePath, "image", "", "program image blob")
	rootCmd.PersistentFlags().StringVar(&descPath, "desc", "", "program image descriptor (yaml)")
	rootCmd.PersistentFlags().Uint32Var(&dlc, "dlc", 3, "DLC version (0-3)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable output highlighting")

	infoCmd := &cobra.Command{
		Use:   "info <desc.yaml>",
		Short: "Show program image metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showInfo,
	}
	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Step a script interactively",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}
	rootCmd.AddCommand(infoCmd, replCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newFactory builds the per-run process factory: image-backed when an
// image is configured, reference model otherwise.
func newFactory() (sim.ProcessFactory, bool, error) {
	if imagePath != "" {
		img, err := image.Load(imagePath, descPath, dlc)
		if err != nil {
			return nil, false, err
		}
		factory := func() (*game.Core, error) {
			mem, err := img.NewMemory()
			if err != nil {
				return nil, err
			}
			proc := cpu.NewProcess(mem, img.Env)
			core := game.NewCore(cpu.New(), proc, game.NewProxies())
			if err := linker.InstallHooks(core); err != nil {
				return nil, err
			}
			return core, nil
		}
		return factory, true, nil
	}
	factory := func() (*game.Core, error) {
		mem := memory.New(image.DefaultHeapStart, image.DefaultHeapSize, image.SingletonPreAlloc, image.DefaultStackSize)
		proc := cpu.NewProcess(mem, image.Environment{Game: image.GameVer150, DLC: dlc})
		core := game.NewCore(cpu.New(), proc, game.NewProxies())
		if err := game.DirectBoot(core); err != nil {
			return nil, err
		}
		return core, nil
	}
	return factory, false, nil
}

func itemResolver() script.ItemResolver {
	return script.ResolverFunc(func(word string) (string, bool) {
		if item := game.ResolveItemWord(word); item != nil {
			return item.Actor, true
		}
		return "", false
	})
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	out := string(data)
	if !noColor && colorize.Enabled() {
		out = colorize.JSON(out)
	}
	fmt.Println(out)
	return nil
}

func newRunner() (*sim.Runner, error) {
	factory, emulated, err := newFactory()
	if err != nil {
		return nil, err
	}
	return sim.NewRunner(factory, emulated)
}

func runScript(cmd *cobra.Command, args []string) error {
	log.Init(verbose)
	if len(args) == 0 {
		return cmd.Help()
	}
	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	steps, diags := script.Parse(string(text), itemResolver())
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d)
	}
	runner, err := newRunner()
	if err != nil {
		return err
	}
	handle := sim.NewRunHandle()
	outputs, done := runner.Run(steps, handle)
	if err := printJSON(outputs); err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("run %s aborted", handle.ID())
	}
	return nil
}

func showInfo(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var desc image.Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return err
	}
	fmt.Printf("game version: %s\n", desc.GameVersion)
	fmt.Printf("program:      0x%016x + 0x%x\n", desc.ProgramStart, desc.ProgramSize)
	fmt.Printf("main offset:  0x%08x\n", desc.MainOffset)
	for _, m := range desc.Modules {
		fmt.Printf("module %-16s rel 0x%08x size 0x%08x regions %d\n", m.Name, m.RelStart, m.Size, len(m.Regions))
	}
	return nil
}

func runRepl(cmd *cobra.Command, args []string) error {
	log.Init(verbose)
	runner, err := newRunner()
	if err != nil {
		return err
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pouch> ",
		HistoryFile:     env.Str("HOME") + "/.pouchsim_history",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("enter script commands; :q quits, :crash prints the crash dump")
	idx := 0
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == ":q" || line == ":quit":
			return nil
		case line == ":crash":
			if dump := runner.CrashDump(); dump != "" {
				fmt.Print(dump)
			} else {
				fmt.Println("not crashed")
			}
			continue
		}
		steps, diags := script.Parse(line, itemResolver())
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d)
		}
		for _, step := range steps {
			out := runner.RunStep(idx, step, nil)
			idx++
			if err := printJSON(out.Snapshot); err != nil {
				return err
			}
		}
	}
}
