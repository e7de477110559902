// Package report describes one compile-and-run and serializes it as YAML or
// CBOR.
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chazu/tapevm/compiler"
	"github.com/chazu/tapevm/pkg/bytecode"
)

// Format selects a report encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// ErrUnknownFormat is returned for a format other than yaml or cbor.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatYAML, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, name)
}

// Report is the record of a single run.
type Report struct {
	ID        string       `yaml:"id" cbor:"1,keyasint"`
	Source    string       `yaml:"source" cbor:"2,keyasint"`
	CreatedAt time.Time    `yaml:"created_at" cbor:"3,keyasint"`
	Compile   CompileStats `yaml:"compile" cbor:"4,keyasint"`
	Run       RunStats     `yaml:"run" cbor:"5,keyasint"`
}

// CompileStats mirrors compiler.Stats.
type CompileStats struct {
	Optimized    bool `yaml:"optimized" cbor:"1,keyasint"`
	SourceBytes  int  `yaml:"source_bytes" cbor:"2,keyasint"`
	CommentBytes int  `yaml:"comment_bytes" cbor:"3,keyasint"`
	Built        int  `yaml:"built" cbor:"4,keyasint"`
	RunsFolded   int  `yaml:"runs_folded" cbor:"5,keyasint"`
	ClearLoops   int  `yaml:"clear_loops" cbor:"6,keyasint"`
	MulLoops     int  `yaml:"mul_loops" cbor:"7,keyasint"`
	MulTerms     int  `yaml:"mul_terms" cbor:"8,keyasint"`
	Instructions int  `yaml:"instructions" cbor:"9,keyasint"`
}

// RunStats mirrors bytecode.Stats, with opcode counts keyed by name.
type RunStats struct {
	Steps       uint64            `yaml:"steps" cbor:"1,keyasint"`
	OutputBytes uint64            `yaml:"output_bytes" cbor:"2,keyasint"`
	InputBytes  uint64            `yaml:"input_bytes" cbor:"3,keyasint"`
	OpCounts    map[string]uint64 `yaml:"op_counts,omitempty" cbor:"4,keyasint,omitempty"`
	Fault       string            `yaml:"fault,omitempty" cbor:"5,keyasint,omitempty"`
}

// New starts a report for source with a fresh ID.
func New(source string) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// SetCompile copies compiler statistics into the report.
func (r *Report) SetCompile(s compiler.Stats, optimized bool) {
	r.Compile = CompileStats{
		Optimized:    optimized,
		SourceBytes:  s.SourceBytes,
		CommentBytes: s.CommentBytes,
		Built:        s.Built,
		RunsFolded:   s.RunsFolded,
		ClearLoops:   s.ClearLoops,
		MulLoops:     s.MulLoops,
		MulTerms:     s.MulTerms,
		Instructions: s.Final,
	}
}

// SetRun copies VM statistics into the report. A non-nil runErr is kept as
// the fault text.
func (r *Report) SetRun(s bytecode.Stats, runErr error) {
	r.Run = RunStats{
		Steps:       s.Steps,
		OutputBytes: s.OutputBytes,
		InputBytes:  s.InputBytes,
	}
	if len(s.OpCounts) > 0 {
		r.Run.OpCounts = make(map[string]uint64, len(s.OpCounts))
		for op, n := range s.OpCounts {
			r.Run.OpCounts[op.String()] = n
		}
	}
	if runErr != nil {
		r.Run.Fault = runErr.Error()
	}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a report in the given format.
func Marshal(r *Report, format Format) ([]byte, error) {
	switch format {
	case FormatCBOR:
		return cborEncMode.Marshal(r)
	case FormatYAML:
		return yaml.Marshal(r)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
}

// Unmarshal deserializes a report in the given format.
func Unmarshal(data []byte, format Format) (*Report, error) {
	var r Report
	switch format {
	case FormatCBOR:
		if err := cbor.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("report: unmarshal cbor: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("report: unmarshal yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return &r, nil
}

// Encode writes a report to w in the given format.
func Encode(w io.Writer, r *Report, format Format) error {
	data, err := Marshal(r, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
