package main

import (
	"github.com/nao1215/sysdump/internal/config"
	"github.com/nao1215/sysdump/internal/dumper"
	"github.com/nao1215/sysdump/internal/model"
)

// planBuilder accumulates the stage list of one dump run.
type planBuilder struct {
	stages  []model.StageConfig
	filters []model.StageConfig
}

// section appends producers followed by the shared filters, extra
// transformers and a Sink.
func (b *planBuilder) section(producers []model.StageConfig, extra ...model.StageConfig) {
	if len(producers) == 0 {
		return
	}
	b.stages = append(b.stages, producers...)
	b.stages = append(b.stages, extra...)
	b.stages = append(b.stages, b.filters...)
	b.stages = append(b.stages, model.Sink())
}

func (b *planBuilder) producer(enabled bool, name, section string, loop bool) {
	if enabled {
		b.section([]model.StageConfig{model.Producer(name, section, loop)})
	}
}

// buildPlan turns the configuration into the ordered stage list of a run.
// A preset replaces the section flags entirely.
func buildPlan(cfg *config.Config) ([]model.StageConfig, error) {
	if cfg.Preset != "" {
		return cfg.File.Preset(cfg.Preset)
	}

	b := &planBuilder{filters: transformers(cfg)}
	all := cfg.All

	b.producer(all || cfg.Base, dumper.NameVersion, dumper.SectionBase, false)
	b.producer(all || cfg.CPU, dumper.NameCPU, dumper.SectionCPU, false)
	b.producer(all || cfg.CPUFreq, dumper.NameCPUFreq, dumper.SectionCPUFreq, false)
	b.producer(all || cfg.Memory, dumper.NameMemory, dumper.SectionMemory, true)
	b.producer(all || cfg.Process, dumper.NameProcess, dumper.SectionProcess, true)
	b.producer(all || cfg.Net, dumper.NameNet, dumper.SectionNet, false)
	b.producer(all || cfg.Storage, dumper.NameStorage, dumper.SectionStorage, false)
	b.producer(all || cfg.IPC, dumper.NameIPC, dumper.SectionIPC, false)
	b.section(abilityStages(all || cfg.Abilities, cfg.Services))
	b.producer(all || cfg.FaultLog, dumper.NameCrashLog, dumper.SectionFaultLog, true)
	b.producer(all || cfg.Env, dumper.NameEnv, dumper.SectionEnv, false)

	lines := model.Transformer(dumper.NameFileFormat, nil)
	for _, c := range cfg.Commands {
		p := model.Producer(dumper.NameCmd, dumper.SectionCmd, false)
		p.Target = c
		b.section([]model.StageConfig{p}, lines)
	}
	for _, f := range cfg.Files {
		p := model.Producer(dumper.NameFile, dumper.SectionFile, false)
		p.Target = f
		b.section([]model.StageConfig{p}, lines)
	}

	if len(b.stages) == 0 {
		return nil, config.ErrNothingToDump
	}
	return b.stages, nil
}

// abilityStages lists the units when list is set and then shows each
// service, with a GroupMarker between consecutive units.
func abilityStages(list bool, services []string) []model.StageConfig {
	stages := make([]model.StageConfig, 0, 2*len(services)+1)
	if list {
		stages = append(stages, model.Producer(dumper.NameAbility, dumper.SectionAbility, false))
	}
	for _, svc := range services {
		if len(stages) > 0 {
			stages = append(stages, model.GroupMarker())
		}
		p := model.Producer(dumper.NameAbility, dumper.SectionAbility, false)
		p.Target = svc
		stages = append(stages, p)
	}
	return stages
}

// transformers returns the row filters requested on the command line.
func transformers(cfg *config.Config) []model.StageConfig {
	if cfg.Match == "" && cfg.Columns == "" {
		return nil
	}
	args := make(map[string]string, 2)
	if cfg.Match != "" {
		args[dumper.ArgMatch] = cfg.Match
	}
	if cfg.Columns != "" {
		args[dumper.ArgColumns] = cfg.Columns
	}
	return []model.StageConfig{model.Transformer(dumper.NameColumnRows, args)}
}

// planSections returns the distinct Producer sections in plan order.
func planSections(stages []model.StageConfig) []string {
	seen := make(map[string]bool)
	sections := make([]string, 0)
	for _, s := range stages {
		if s.Kind != model.KindProducer || s.Section == "" || seen[s.Section] {
			continue
		}
		seen[s.Section] = true
		sections = append(sections, s.Section)
	}
	return sections
}
