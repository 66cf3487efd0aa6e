package config

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sysdump/internal/model"
	"github.com/nao1215/sysdump/internal/report"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sysdump"

	// DefaultChunkSize is the number of rows a chunked section emits per
	// pass. Each chunk is flushed before the next one is produced, so this
	// bounds the memory held by one run.
	DefaultChunkSize = 200

	// DefaultFormat is the report format.
	DefaultFormat = report.FormatText

	// DefaultSamples is the number of periodic memory samples taken when
	// an interval is given.
	DefaultSamples = 5

	// DefaultCmdTimeout bounds every command run by --cmd.
	DefaultCmdTimeout = 10 * time.Second

	// DefaultProcMount is the procfs mount point.
	DefaultProcMount = "/proc"

	// DefaultSysMount is the sysfs mount point.
	DefaultSysMount = "/sys"

	// DefaultFaultLogDir is where crash logs are read from.
	DefaultFaultLogDir = "/var/crash"

	// DefaultHistoryLimit is the number of runs listed by "sysdump history".
	DefaultHistoryLimit = 20
)

// Config holds every option of a dump run.
// It is filled from CLI flags (and the config file defaults) once per
// invocation and is not modified afterwards.
type Config struct {
	// Base dumps the tool version, kernel release and hostname.
	Base bool

	// CPU dumps /proc/stat CPU times.
	CPU bool

	// CPUFreq dumps the model and clock of every logical CPU.
	CPUFreq bool

	// Memory dumps system memory, or one process's memory with Pid.
	Memory bool

	// Process dumps the process table, or one process with Pid.
	Process bool

	// Net dumps network interface counters.
	Net bool

	// Storage dumps block device statistics.
	Storage bool

	// IPC dumps the System V IPC tables.
	IPC bool

	// Abilities lists the systemd units.
	Abilities bool

	// Services are the units whose properties are dumped.
	Services []string

	// FaultLog dumps the crash logs in FaultLogDir.
	FaultLog bool

	// Env dumps the environment with secrets masked.
	Env bool

	// Commands are command lines whose output is dumped.
	Commands []string

	// Files are paths whose content is dumped.
	Files []string

	// All enables every section that needs no argument.
	All bool

	// Preset names a stage list from the config file. When set, the
	// section flags are ignored.
	Preset string

	// Pid restricts the memory, process, net and storage sections to one
	// process.
	Pid int

	// Interval enables periodic memory sampling when positive.
	Interval time.Duration

	// Samples is the number of periodic memory samples.
	Samples int

	// Match keeps only rows with a cell matching this regular expression.
	Match string

	// Columns projects rows onto these 1-based columns, e.g. "1,3".
	Columns string

	// Compress writes the report into a zip archive instead of the output.
	// Mutually exclusive with OutputFile.
	Compress bool

	// ZipDir is the archive directory. Defaults to XDGDataDir()/zip.
	ZipDir string

	// OutputFile is the report destination. Empty means stdout.
	OutputFile string

	// Format is the report format: text, markdown or json.
	Format string

	// ChunkSize is the number of rows per chunk of chunked sections.
	// Zero disables chunking.
	ChunkSize int

	// CmdTimeout bounds every command run by Commands.
	CmdTimeout time.Duration

	// FaultLogDir is where crash logs are read from.
	FaultLogDir string

	// ProcMount is the procfs mount point.
	ProcMount string

	// SysMount is the sysfs mount point.
	SysMount string

	// MetricsFile is where stage metrics are written in the Prometheus
	// text format. Empty disables metrics output.
	MetricsFile string

	// NoHistory disables saving the run to the history database.
	NoHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sysdump.yaml in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Format:      DefaultFormat,
		ChunkSize:   DefaultChunkSize,
		Samples:     DefaultSamples,
		CmdTimeout:  DefaultCmdTimeout,
		ProcMount:   DefaultProcMount,
		SysMount:    DefaultSysMount,
		FaultLogDir: DefaultFaultLogDir,
		ZipDir:      XDGZipDir(),
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for sysdump.
// On Linux: ~/.local/share/sysdump
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGZipDir returns the default archive directory.
func XDGZipDir() string {
	return filepath.Join(XDGDataDir(), "zip")
}

// XDGConfigDir returns the XDG config directory for sysdump.
// On Linux: ~/.config/sysdump
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for sysdump.
// On Linux: ~/.cache/sysdump
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// HasSection reports whether at least one section is selected.
func (c *Config) HasSection() bool {
	return c.All || c.Base || c.CPU || c.CPUFreq || c.Memory || c.Process ||
		c.Net || c.Storage || c.IPC || c.Abilities || len(c.Services) > 0 ||
		c.FaultLog || c.Env || len(c.Commands) > 0 || len(c.Files) > 0
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Preset == "" && !c.HasSection() {
		return ErrNothingToDump
	}
	if c.Preset != "" {
		if _, err := c.File.Preset(c.Preset); err != nil {
			return err
		}
	}
	if !slices.Contains(report.Formats(), strings.ToLower(c.Format)) {
		return ErrInvalidFormat
	}
	if c.ChunkSize < 0 {
		return ErrInvalidChunkSize
	}
	if c.Interval < 0 {
		return ErrInvalidInterval
	}
	if c.Samples < 0 {
		return ErrInvalidSamples
	}
	if c.CmdTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Compress && c.OutputFile != "" {
		return ErrConflictingOutput
	}
	return nil
}

// Params returns the run parameters stages read.
func (c *Config) Params(version string) model.Params {
	return model.Params{
		Pid:          c.Pid,
		TimeInterval: c.Interval,
		Samples:      c.Samples,
		ChunkSize:    c.ChunkSize,
		Compress:     c.Compress,
		Format:       strings.ToLower(c.Format),
		ZipDir:       c.ZipDir,
		FaultLogDir:  c.FaultLogDir,
		ProcMount:    c.ProcMount,
		SysMount:     c.SysMount,
		CmdTimeout:   c.CmdTimeout,
		Version:      version,
	}
}
