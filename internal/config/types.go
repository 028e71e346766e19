package config

// Pipeline names the external tools and support files used by the
// instrumentation pipeline.
type Pipeline struct {
	// Opt runs the clone, hook-injection and fix-compilation passes.
	Opt string `yaml:"opt"`
	// LLC lowers bitcode to assembly.
	LLC string `yaml:"llc"`
	// Link merges the runtime stub into the hook-injected bitcode.
	Link string `yaml:"link"`
	// CC and CXX are the final link drivers for native and C++ programs.
	CC  string `yaml:"cc"`
	CXX string `yaml:"cxx"`

	// Plugins are loaded with -load, in order, for the clone and
	// hook-injection passes.
	Plugins []string `yaml:"plugins"`
	// CompilePlugins are loaded for fix compilation.
	CompilePlugins []string `yaml:"compile_plugins"`

	// Stub is the bitcode merged in by the inline stage.
	Stub string `yaml:"stub"`
	// Runtime is the support object linked into every executable.
	Runtime string `yaml:"runtime"`
}

// Control configures the control channel endpoint and client.
type Control struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Identity string `yaml:"identity,omitempty"`
}

// Log configures logging for the loom binaries.
type Log struct {
	Level string `yaml:"level"`
}

// Config represents the .loom/config.yaml file.
type Config struct {
	Pipeline Pipeline `yaml:"pipeline"`
	Control  Control  `yaml:"control"`
	Log      Log      `yaml:"log"`
}
