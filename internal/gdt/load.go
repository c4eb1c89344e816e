package gdt

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed flags.yaml
var flagsYaml []byte

// flagDef is one flag definition in the YAML table.
type flagDef struct {
	Name string    `yaml:"name"`
	Init float64   `yaml:"init"`
	Min  float64   `yaml:"min"`
	Max  float64   `yaml:"max"`
	Str  string    `yaml:"str"`
	Vec  []float32 `yaml:"vec"`
	Len  int       `yaml:"len"`
	Save bool      `yaml:"save"`
	// read/write properties default to on
	NoWrite bool `yaml:"no_write"`
}

func (d *flagDef) props() uint8 {
	p := PropProgramReadable
	if !d.NoWrite {
		p |= PropProgramWritable
	}
	if d.Save {
		p |= PropSave
	}
	return p
}

type flagTable struct {
	Bool      []flagDef `yaml:"bool"`
	S32       []flagDef `yaml:"s32"`
	F32       []flagDef `yaml:"f32"`
	Str32     []flagDef `yaml:"str32"`
	Str64     []flagDef `yaml:"str64"`
	Str256    []flagDef `yaml:"str256"`
	Vec2f     []flagDef `yaml:"vec2f"`
	Vec3f     []flagDef `yaml:"vec3f"`
	Vec4f     []flagDef `yaml:"vec4f"`
	BoolArr   []flagDef `yaml:"bool_array"`
	S32Arr    []flagDef `yaml:"s32_array"`
	F32Arr    []flagDef `yaml:"f32_array"`
	Str64Arr  []flagDef `yaml:"str64_array"`
	Str256Arr []flagDef `yaml:"str256_array"`
	Vec2fArr  []flagDef `yaml:"vec2f_array"`
	Vec3fArr  []flagDef `yaml:"vec3f_array"`
}

// Loaded builds a trigger param with the embedded flag table, extended
// with extraBools (per-actor flags derived from the item table).
func Loaded(extraBools []string) (*TriggerParam, error) {
	var table flagTable
	if err := yaml.Unmarshal(flagsYaml, &table); err != nil {
		return nil, fmt.Errorf("parse flag table: %w", err)
	}
	t := &TriggerParam{}
	for _, d := range table.Bool {
		t.Bool = append(t.Bool, NewFlag(Hash(d.Name), d.Init != 0, d.props()))
	}
	for _, name := range extraBools {
		if t.Bool.ByName(name) == nil {
			t.Bool = append(t.Bool, NewFlag(Hash(name), false, PropProgramReadable|PropProgramWritable|PropSave))
		}
	}
	for _, d := range table.S32 {
		t.S32 = append(t.S32, NewFlagBounded(Hash(d.Name), int32(d.Init), int32(d.Min), int32(d.Max), d.props()))
	}
	for _, d := range table.F32 {
		t.F32 = append(t.F32, NewFlagBounded(Hash(d.Name), float32(d.Init), float32(d.Min), float32(d.Max), d.props()))
	}
	for _, d := range table.Str32 {
		t.Str32 = append(t.Str32, NewFlag(Hash(d.Name), d.Str, d.props()))
	}
	for _, d := range table.Str64 {
		t.Str64 = append(t.Str64, NewFlag(Hash(d.Name), d.Str, d.props()))
	}
	for _, d := range table.Str256 {
		t.Str256 = append(t.Str256, NewFlag(Hash(d.Name), d.Str, d.props()))
	}
	for _, d := range table.Vec2f {
		t.V2f = append(t.V2f, NewFlag(Hash(d.Name), vec2Of(d.Vec), d.props()))
	}
	for _, d := range table.Vec3f {
		t.V3f = append(t.V3f, NewFlag(Hash(d.Name), vec3Of(d.Vec), d.props()))
	}
	for _, d := range table.Vec4f {
		t.V4f = append(t.V4f, NewFlag(Hash(d.Name), vec4Of(d.Vec), d.props()))
	}
	for _, d := range table.BoolArr {
		t.BoolArr = append(t.BoolArr, NewArrayFlag(Hash(d.Name), make([]bool, d.Len), d.props()))
	}
	for _, d := range table.S32Arr {
		t.S32Arr = append(t.S32Arr, NewArrayFlag(Hash(d.Name), make([]int32, d.Len), d.props()))
	}
	for _, d := range table.F32Arr {
		t.F32Arr = append(t.F32Arr, NewArrayFlag(Hash(d.Name), make([]float32, d.Len), d.props()))
	}
	for _, d := range table.Str64Arr {
		t.Str64Arr = append(t.Str64Arr, NewArrayFlag(Hash(d.Name), make([]string, d.Len), d.props()))
	}
	for _, d := range table.Str256Arr {
		t.Str256Arr = append(t.Str256Arr, NewArrayFlag(Hash(d.Name), make([]string, d.Len), d.props()))
	}
	for _, d := range table.Vec2fArr {
		t.V2fArr = append(t.V2fArr, NewArrayFlag(Hash(d.Name), make([]Vec2f, d.Len), d.props()))
	}
	for _, d := range table.Vec3fArr {
		t.V3fArr = append(t.V3fArr, NewArrayFlag(Hash(d.Name), make([]Vec3f, d.Len), d.props()))
	}
	t.sortAll()
	return t, nil
}

func vec2Of(v []float32) Vec2f {
	var out Vec2f
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	return out
}

func vec3Of(v []float32) Vec3f {
	var out Vec3f
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	if len(v) > 2 {
		out.Z = v[2]
	}
	return out
}

func vec4Of(v []float32) Vec4f {
	var out Vec4f
	if len(v) > 0 {
		out.X = v[0]
	}
	if len(v) > 1 {
		out.Y = v[1]
	}
	if len(v) > 2 {
		out.Z = v[2]
	}
	if len(v) > 3 {
		out.W = v[3]
	}
	return out
}
