// Package manifest handles tapevm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/tapevm/compiler"
	"github.com/chazu/tapevm/pkg/bytecode"
)

// FileName is the name of the configuration file FindAndLoad looks for.
const FileName = "tapevm.toml"

// Manifest represents a tapevm.toml configuration.
type Manifest struct {
	VM       VMConfig       `toml:"vm"`
	Compiler CompilerConfig `toml:"compiler"`
	Report   ReportConfig   `toml:"report"`
	History  HistoryConfig  `toml:"history"`
	Log      LogConfig      `toml:"log"`

	// Dir is the directory containing the tapevm.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures program execution.
type VMConfig struct {
	TapeSize int    `toml:"tape-size"`
	Trace    bool   `toml:"trace"`
	MaxSteps uint64 `toml:"max-steps"` // 0 = unlimited
}

// CompilerConfig configures the optimization pipeline.
type CompilerConfig struct {
	Optimize        bool `toml:"optimize"`
	Idioms          bool `toml:"idioms"`
	MaxInstructions int  `toml:"max-instructions"`
}

// ReportConfig configures run reports.
type ReportConfig struct {
	Format string `toml:"format"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no tapevm.toml exists.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{TapeSize: bytecode.DefaultTapeSize},
		Compiler: CompilerConfig{
			Optimize: true,
			Idioms:   true,
		},
		Report:  ReportConfig{Format: "yaml"},
		History: HistoryConfig{Path: filepath.Join(".tapevm", "history.db")},
	}
}

// Load parses a tapevm.toml file from the given directory. Keys missing from
// the file keep their Default values.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return m, nil
}

func (m *Manifest) validate() error {
	if m.VM.TapeSize < 1 {
		return fmt.Errorf("vm.tape-size must be positive, got %d", m.VM.TapeSize)
	}
	if m.Compiler.MaxInstructions < 0 {
		return fmt.Errorf("compiler.max-instructions must not be negative, got %d", m.Compiler.MaxInstructions)
	}
	switch m.Report.Format {
	case "yaml", "cbor":
	default:
		return fmt.Errorf("report.format must be yaml or cbor, got %q", m.Report.Format)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a tapevm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CompilerOptions converts the [compiler] table into compiler options.
func (m *Manifest) CompilerOptions() compiler.Options {
	return compiler.Options{
		Optimize:        m.Compiler.Optimize,
		Idioms:          m.Compiler.Idioms,
		MaxInstructions: m.Compiler.MaxInstructions,
	}
}

// HistoryPath returns the history database path. Relative paths are resolved
// against the manifest's directory.
func (m *Manifest) HistoryPath() string {
	if filepath.IsAbs(m.History.Path) || m.Dir == "" {
		return m.History.Path
	}
	return filepath.Join(m.Dir, m.History.Path)
}
