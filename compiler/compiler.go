// Package compiler turns tape language source into bytecode.Program IR.
//
// Compilation is a fixed pipeline:
//
//	Build          source -> one instruction per symbol, branches resolved
//	CombineRuns    pass 1: fold runs of + - > < into counted instructions
//	RewriteIdioms  pass 2: clear loops -> CLEAR, multiplication loops -> MUL
//	Compact        pass 3: drop NOPs, demote counts of 1, relink branches
//
// Passes 1 and 2 never change the program's length; they overwrite consumed
// slots with NOPs. Only Compact moves instructions.
package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/tapevm/pkg/bytecode"
)

var compilerLog = commonlog.GetLogger("tapevm.compiler")

// Options control the pipeline.
type Options struct {
	// Optimize enables passes 1 to 3. Without it the builder output is
	// returned as is.
	Optimize bool

	// Idioms enables pass 2. Ignored when Optimize is false.
	Idioms bool

	// MaxInstructions caps the size of the built program. Zero means no
	// limit.
	MaxInstructions int
}

// DefaultOptions enables the full pipeline with no size limit.
func DefaultOptions() Options {
	return Options{Optimize: true, Idioms: true}
}

// Stats describes one compilation.
type Stats struct {
	SourceBytes  int
	CommentBytes int
	Built        int // instructions before optimization, HALT included
	RunsFolded   int
	ClearLoops   int
	MulLoops     int
	MulTerms     int
	NopsRemoved  int
	Demoted      int
	Final        int
}

// Compiler runs the pipeline with a fixed set of options and remembers the
// statistics of its last compilation.
type Compiler struct {
	opts  Options
	stats Stats
}

// New creates a compiler.
func New(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Options returns the compiler's options.
func (c *Compiler) Options() Options {
	return c.opts
}

// Stats returns the statistics of the last successful Compile.
func (c *Compiler) Stats() Stats {
	return c.stats
}

// Compile translates src into an executable program. On error the returned
// program is nil.
func (c *Compiler) Compile(src []byte) (*bytecode.Program, error) {
	c.stats = Stats{SourceBytes: len(src)}

	prog, err := Build(src, c.opts.MaxInstructions)
	if err != nil {
		compilerLog.Debugf("build failed: %v", err)
		return nil, err
	}
	c.stats.Built = prog.Len()
	c.stats.CommentBytes = len(src) - (prog.Len() - 1)
	compilerLog.Debugf("built %d instructions from %d bytes", prog.Len(), len(src))

	if c.opts.Optimize {
		c.stats.RunsFolded = CombineRuns(prog)

		if c.opts.Idioms {
			idioms := RewriteIdioms(prog)
			c.stats.ClearLoops = idioms.ClearLoops
			c.stats.MulLoops = idioms.MulLoops
			c.stats.MulTerms = idioms.MulTerms
		}

		compact := Compact(prog)
		c.stats.NopsRemoved = compact.Removed
		c.stats.Demoted = compact.Demoted

		compilerLog.Debugf("optimized: %d runs folded, %d clear loops, %d mul loops, %d -> %d instructions",
			c.stats.RunsFolded, c.stats.ClearLoops, c.stats.MulLoops, c.stats.Built, prog.Len())
	}

	c.stats.Final = prog.Len()
	return prog, nil
}

// Compile runs the full pipeline with DefaultOptions.
func Compile(src []byte) (*bytecode.Program, error) {
	return New(DefaultOptions()).Compile(src)
}
