package image

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zboralski/pouchsim/internal/memory"
)

// Default physical layout. The program image requests its own start
// address; heap and stack live far away so corrupted pointers fault
// instead of aliasing.
const (
	DefaultProgramStart = 0x80000000
	DefaultHeapStart    = 0x20_0000_0000
	DefaultHeapSize     = 0x4000000
	DefaultStackStart   = 0x30_0000_0000
	DefaultStackSize    = 0x80000

	// SingletonPreAlloc reserves the low heap range where singleton
	// addresses are pre-determined.
	SingletonPreAlloc = 0x400000
)

// RegionDesc is one region of a module in the image descriptor.
type RegionDesc struct {
	RelStart uint32 `yaml:"rel_start"`
	Perms    uint32 `yaml:"perms"` // r=4 w=2 x=1
	FileOff  uint32 `yaml:"file_off"`
	Size     uint32 `yaml:"size"`
}

// ModuleDesc is one module in the image descriptor.
type ModuleDesc struct {
	Name     string       `yaml:"name"`
	RelStart uint32       `yaml:"rel_start"`
	Size     uint32       `yaml:"size"`
	Regions  []RegionDesc `yaml:"regions"`
}

// Descriptor is the YAML sidecar describing a program image blob.
type Descriptor struct {
	GameVersion  string       `yaml:"game_version"`
	ProgramStart uint64       `yaml:"program_start"`
	ProgramSize  uint32       `yaml:"program_size"`
	MainOffset   uint32       `yaml:"main_offset"`
	Modules      []ModuleDesc `yaml:"modules"`
}

// Image is a loaded program image, shared read-only by all runs.
type Image struct {
	Env         Environment
	ProgramSize uint32
	Modules     []memory.Module
}

// Load reads the image blob and its YAML descriptor.
func Load(blobPath, descPath string, dlc uint32) (*Image, error) {
	descData, err := os.ReadFile(descPath)
	if err != nil {
		return nil, fmt.Errorf("read image descriptor: %w", err)
	}
	var desc Descriptor
	if err := yaml.Unmarshal(descData, &desc); err != nil {
		return nil, fmt.Errorf("parse image descriptor: %w", err)
	}
	blob, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, fmt.Errorf("read image blob: %w", err)
	}
	return FromDescriptor(&desc, blob, dlc)
}

// FromDescriptor assembles an image from parsed parts.
func FromDescriptor(desc *Descriptor, blob []byte, dlc uint32) (*Image, error) {
	if dlc > 3 {
		return nil, &BadDLCError{DLC: dlc}
	}
	game, err := ParseGameVer(desc.GameVersion)
	if err != nil {
		return nil, err
	}
	programStart := desc.ProgramStart
	if programStart == 0 {
		programStart = DefaultProgramStart
	}
	img := &Image{
		Env: Environment{
			Game:         game,
			DLC:          dlc,
			ProgramStart: programStart,
			MainOffset:   desc.MainOffset,
		},
		ProgramSize: desc.ProgramSize,
	}
	for _, m := range desc.Modules {
		module := memory.Module{Name: m.Name, RelStart: m.RelStart, Size: m.Size}
		for _, r := range m.Regions {
			if uint64(r.FileOff)+uint64(r.Size) > uint64(len(blob)) {
				return nil, fmt.Errorf("module %s: region at 0x%x runs past the blob", m.Name, r.RelStart)
			}
			module.Regions = append(module.Regions, memory.ProgramRegion{
				RelStart: r.RelStart,
				Perms:    r.Perms,
				Data:     blob[r.FileOff : r.FileOff+r.Size],
			})
		}
		img.Modules = append(img.Modules, module)
	}
	return img, nil
}

// NewMemory builds a pristine process memory from the image: program
// sections, a heap with the singleton range pre-reserved, and a stack.
func (img *Image) NewMemory() (*memory.Memory, error) {
	heap := memory.NewSimpleHeap(DefaultHeapStart, DefaultHeapSize, SingletonPreAlloc)
	return memory.NewProgram(
		img.Env.ProgramStart,
		img.ProgramSize,
		img.Env.MainOffset,
		img.Modules,
		heap,
		DefaultStackStart,
		DefaultStackSize,
	)
}
