package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/nao1215/sysdump/internal/model"
)

// Defaults overrides the built-in defaults of Config.
// Zero values leave the built-in default in place.
type Defaults struct {
	// Format is the report format.
	Format string `yaml:"format,omitempty"`

	// ChunkSize is the number of rows per chunk.
	ChunkSize int `yaml:"chunkSize,omitempty"`

	// FaultLogDir is where crash logs are read from.
	FaultLogDir string `yaml:"faultLogDir,omitempty"`

	// ZipDir is the archive directory.
	ZipDir string `yaml:"zipDir,omitempty"`

	// CmdTimeout bounds commands, e.g. "30s".
	CmdTimeout time.Duration `yaml:"cmdTimeout,omitempty"`
}

// Preset is a named, ordered stage list.
type Preset struct {
	// Description is shown by "sysdump dump --list-presets".
	Description string `yaml:"description,omitempty"`

	// Stages are executed in order.
	Stages []model.StageConfig `yaml:"stages"`
}

// File represents the structure of the .sysdump.yaml configuration file.
type File struct {
	// Defaults overrides built-in defaults for options not given on the
	// command line.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Presets maps a preset name to its stage list.
	Presets map[string]Preset `yaml:"presets,omitempty"`
}

// Preset returns the stages of the named preset.
func (f *File) Preset(name string) ([]model.StageConfig, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: %q (no config file loaded)", ErrPresetNotFound, name)
	}
	p, ok := f.Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	if len(p.Stages) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyPreset, name)
	}
	stages := make([]model.StageConfig, len(p.Stages))
	copy(stages, p.Stages)
	return stages, nil
}

// PresetNames returns the preset names in sorted order.
func (f *File) PresetNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Presets))
	for name := range f.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyDefaults copies the file defaults into cfg for every option whose
// flag was not set explicitly. changed reports whether a flag was given.
func (f *File) ApplyDefaults(cfg *Config, changed func(flag string) bool) {
	if f == nil {
		return
	}
	d := f.Defaults
	if d.Format != "" && !changed("format") {
		cfg.Format = d.Format
	}
	if d.ChunkSize > 0 && !changed("chunk-size") {
		cfg.ChunkSize = d.ChunkSize
	}
	if d.FaultLogDir != "" && !changed("fault-log-dir") {
		cfg.FaultLogDir = d.FaultLogDir
	}
	if d.ZipDir != "" && !changed("zip-dir") {
		cfg.ZipDir = d.ZipDir
	}
	if d.CmdTimeout > 0 && !changed("cmd-timeout") {
		cfg.CmdTimeout = d.CmdTimeout
	}
}
