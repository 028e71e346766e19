package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/loom/internal/logging"
)

// Default values for Config.
const (
	DefaultOpt  = "opt"
	DefaultLLC  = "llc"
	DefaultLink = "llvm-link"
	DefaultCC   = "gcc"
	DefaultCXX  = "g++"

	DefaultControlHost = "127.0.0.1"
	DefaultControlPort = 1221

	DefaultLogLevel = "warn"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvLLVMRoot    = "LLVM_ROOT"
	EnvLoomRoot    = "LOOM_ROOT"
	EnvRuntimeRoot = "DEFENS_ROOT"
	EnvControlPort = "LOOM_CONTROL_PORT"
)

// DefaultPipeline returns tool names resolved through PATH and no
// plugins or support files.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Opt:  DefaultOpt,
		LLC:  DefaultLLC,
		Link: DefaultLink,
		CC:   DefaultCC,
		CXX:  DefaultCXX,
	}
}

// DefaultControl returns the loopback endpoint on the historical port.
func DefaultControl() Control {
	return Control{
		Host: DefaultControlHost,
		Port: DefaultControlPort,
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Pipeline: DefaultPipeline(),
		Control:  DefaultControl(),
		Log:      Log{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Path returns the location of the config file under basePath.
func Path(basePath string) string {
	return filepath.Join(basePath, ".loom", "config.yaml")
}

// LoadConfig reads and parses .loom/config.yaml from the given base path.
// If the file doesn't exist, returns default config. Missing fields keep
// their defaults.
func LoadConfig(basePath string) (*Config, error) {
	data, err := os.ReadFile(Path(basePath))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overlays the LLVM_ROOT, LOOM_ROOT, DEFENS_ROOT and
// LOOM_CONTROL_PORT environment variables on cfg. Values already set in
// the config file win over the root-derived plugin and support paths.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if root := getenv(EnvLLVMRoot); root != "" {
		libDir := filepath.Join(root, "install", "lib")
		if len(cfg.Pipeline.Plugins) == 0 {
			cfg.Pipeline.Plugins = []string{
				filepath.Join(libDir, "libid-manager.so"),
				filepath.Join(libDir, "libloom-bit.so"),
			}
		}
		if len(cfg.Pipeline.CompilePlugins) == 0 {
			cfg.Pipeline.CompilePlugins = []string{
				filepath.Join(libDir, "libid-manager.so"),
				filepath.Join(libDir, "libloom-compiler.so"),
			}
		}
	}
	if root := getenv(EnvLoomRoot); root != "" && cfg.Pipeline.Stub == "" {
		cfg.Pipeline.Stub = filepath.Join(root, "lib", "loom-bit", "stub.bc")
	}
	if root := getenv(EnvRuntimeRoot); root != "" && cfg.Pipeline.Runtime == "" {
		cfg.Pipeline.Runtime = filepath.Join(root, "loom-bit", "loom.so")
	}
	if port := getenv(EnvControlPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return ValidationError{Field: EnvControlPort, Message: "must be an integer"}
		}
		cfg.Control.Port = n
	}

	return ValidateConfig(cfg)
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if err := ValidatePipeline(&cfg.Pipeline); err != nil {
		return err
	}
	if err := ValidateControl(&cfg.Control); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: err.Error()}
	}
	return nil
}

// ValidatePipeline checks that every tool has a name.
func ValidatePipeline(p *Pipeline) error {
	tools := []struct {
		field string
		value string
	}{
		{"pipeline.opt", p.Opt},
		{"pipeline.llc", p.LLC},
		{"pipeline.link", p.Link},
		{"pipeline.cc", p.CC},
		{"pipeline.cxx", p.CXX},
	}
	for _, tool := range tools {
		if tool.value == "" {
			return ValidationError{Field: tool.field, Message: "required field is empty"}
		}
	}
	return nil
}

// ValidateControl checks that control values are valid.
func ValidateControl(c *Control) error {
	if c.Port < 0 || c.Port > 65535 {
		return ValidationError{Field: "control.port", Message: "must be between 0 and 65535"}
	}
	return nil
}

// Address returns the host:port the control endpoint listens on.
func (c Control) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
