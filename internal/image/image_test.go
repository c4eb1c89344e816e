package image

import "testing"

func TestFromDescriptor(t *testing.T) {
	blob := make([]byte, 0x3000)
	desc := &Descriptor{
		GameVersion: "1.5.0",
		ProgramSize: 0x3000,
		MainOffset:  0x1000,
		Modules: []ModuleDesc{{
			Name:     "main",
			RelStart: 0,
			Size:     0x3000,
			Regions: []RegionDesc{
				{RelStart: 0x0, Perms: 0x5, FileOff: 0x0, Size: 0x2000},
				{RelStart: 0x2000, Perms: 0x4, FileOff: 0x2000, Size: 0x1000},
			},
		}},
	}
	img, err := FromDescriptor(desc, blob, 3)
	if err != nil {
		t.Fatalf("from descriptor: %v", err)
	}
	if img.Env.Game != GameVer150 || img.Env.DLC != 3 {
		t.Errorf("env: %+v", img.Env)
	}
	if img.Env.ProgramStart != DefaultProgramStart {
		t.Errorf("program start defaulted wrong: 0x%x", img.Env.ProgramStart)
	}
	mem, err := img.NewMemory()
	if err != nil {
		t.Fatalf("new memory: %v", err)
	}
	if mem.MainStart() != DefaultProgramStart+0x1000 {
		t.Errorf("main start: 0x%x", mem.MainStart())
	}
}

func TestFromDescriptorRejects(t *testing.T) {
	blob := make([]byte, 0x100)
	desc := &Descriptor{
		GameVersion: "1.5.0",
		ProgramSize: 0x1000,
		Modules: []ModuleDesc{{
			Name: "main", Size: 0x1000,
			Regions: []RegionDesc{{RelStart: 0, Perms: 0x5, FileOff: 0, Size: 0x200}},
		}},
	}
	if _, err := FromDescriptor(desc, blob, 0); err == nil {
		t.Fatalf("region past blob accepted")
	}
	if _, err := FromDescriptor(desc, blob, 7); err == nil {
		t.Fatalf("bad dlc accepted")
	}
	desc2 := &Descriptor{GameVersion: "2.0.0"}
	if _, err := FromDescriptor(desc2, blob, 0); err == nil {
		t.Fatalf("unknown version accepted")
	}
}
