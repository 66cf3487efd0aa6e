package dumper

import "github.com/nao1215/sysdump/internal/pipeline"

// Registry keys of the stages in this package.
const (
	NameCPU        = "cpu"
	NameCPUFreq    = "cpufreq"
	NameMemory     = "memory"
	NameProcess    = "process"
	NameNet        = "net"
	NameStorage    = "storage"
	NameIPC        = "ipc"
	NameAbility    = "ability"
	NameCrashLog   = "crashlog"
	NameEnv        = "env"
	NameCmd        = "cmd"
	NameFile       = "file"
	NameVersion    = "version"
	NameColumnRows = "column_rows"
	NameFileFormat = "file_format"
	NameGroup      = "group"
	NameFDSink     = "fd"
	NameZipSink    = "zip"
)

// Report sections written by the Producers.
const (
	SectionCPU      = "cpu"
	SectionCPUFreq  = "cpufreq"
	SectionMemory   = pipeline.SectionMemory
	SectionProcess  = "process"
	SectionNet      = "net"
	SectionStorage  = "storage"
	SectionIPC      = pipeline.SectionIPC
	SectionAbility  = pipeline.SectionAbility
	SectionFaultLog = "faultlog"
	SectionEnv      = "env"
	SectionCmd      = "cmd"
	SectionFile     = "file"
	SectionBase     = "base"
)

// Transformer argument keys.
const (
	ArgMatch    = "match"
	ArgColumns  = "columns"
	ArgMode     = "mode"
	ArgMaxLines = "max_lines"
)
