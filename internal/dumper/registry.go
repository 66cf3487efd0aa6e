package dumper

import (
	"github.com/nao1215/sysdump/internal/pipeline"
)

// options configures the stages created by NewRegistry.
type options struct {
	dialer  UnitDialer
	environ func() []string
}

// Option configures NewRegistry.
type Option func(*options)

// WithUnitDialer sets how the ability Producer reaches systemd.
// The default is DialSystemd.
func WithUnitDialer(d UnitDialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithEnviron sets the environment source of the env Producer.
// The default is os.Environ.
func WithEnviron(environ func() []string) Option {
	return func(o *options) {
		o.environ = environ
	}
}

// NewRegistry returns a registry holding every stage of this package,
// with fd as the direct-write Sink and zip as the archiving Sink.
func NewRegistry(opts ...Option) *pipeline.Registry {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	r := pipeline.NewRegistry()
	r.MustRegister(NameVersion, pipeline.FactoryFunc(func() pipeline.Stage { return newVersionDumper() }))
	r.MustRegister(NameCPU, pipeline.FactoryFunc(func() pipeline.Stage { return newCPUDumper() }))
	r.MustRegister(NameCPUFreq, pipeline.FactoryFunc(func() pipeline.Stage { return newCPUFreqDumper() }))
	r.MustRegister(NameMemory, pipeline.FactoryFunc(func() pipeline.Stage { return newMemoryDumper() }))
	r.MustRegister(NameProcess, pipeline.FactoryFunc(func() pipeline.Stage { return newProcessDumper() }))
	r.MustRegister(NameNet, pipeline.FactoryFunc(func() pipeline.Stage { return newNetDumper() }))
	r.MustRegister(NameStorage, pipeline.FactoryFunc(func() pipeline.Stage { return newStorageDumper() }))
	r.MustRegister(NameIPC, pipeline.FactoryFunc(func() pipeline.Stage { return newIPCDumper() }))
	r.MustRegister(NameAbility, pipeline.FactoryFunc(func() pipeline.Stage { return newAbilityDumper(o.dialer) }))
	r.MustRegister(NameCrashLog, pipeline.FactoryFunc(func() pipeline.Stage { return newCrashLogDumper() }))
	r.MustRegister(NameEnv, pipeline.FactoryFunc(func() pipeline.Stage { return newEnvDumper(o.environ) }))
	r.MustRegister(NameCmd, pipeline.FactoryFunc(func() pipeline.Stage { return newCmdDumper() }))
	r.MustRegister(NameFile, pipeline.FactoryFunc(func() pipeline.Stage { return newFileDumper() }))
	r.MustRegister(NameColumnRows, pipeline.FactoryFunc(func() pipeline.Stage { return newColumnRowsFilter() }))
	r.MustRegister(NameFileFormat, pipeline.FactoryFunc(func() pipeline.Stage { return newFileFormatFilter() }))
	r.MustRegister(NameGroup, pipeline.FactoryFunc(func() pipeline.Stage { return newGroupMarker() }))
	r.RegisterSinks(
		pipeline.FactoryFunc(func() pipeline.Stage { return newFDSink() }),
		pipeline.FactoryFunc(func() pipeline.Stage { return newZipSink() }),
	)
	return r
}
