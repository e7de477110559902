// tapevm CLI - compiles tape language source to bytecode and runs it
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/tapevm/compiler"
	"github.com/chazu/tapevm/manifest"
	"github.com/chazu/tapevm/pkg/bytecode"
	"github.com/chazu/tapevm/pkg/history"
	"github.com/chazu/tapevm/pkg/interp"
	"github.com/chazu/tapevm/pkg/report"
)

const version = "tapevm 0.3.0"

func main() {
	verbose := flag.Bool("v", false, "Verbose logging (debug level)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	dump := flag.Bool("d", false, "Dump compiled bytecode to stdout instead of running it")
	optimize := flag.Bool("O", true, "Run the optimizer (use -O=false to disable)")
	baseline := flag.Bool("baseline", false, "Run the source with the reference interpreter")
	showStats := flag.Bool("stats", false, "Print compile and run statistics to stderr")
	reportPath := flag.String("report", "", "Write a run report to `file`")
	reportFormat := flag.String("report-format", "", "Report format: yaml or cbor (default from tapevm.toml)")
	record := flag.Bool("history", false, "Record the run in the history database")
	recent := flag.Int("recent", 0, "List the `n` most recent recorded runs and exit")
	tapeSize := flag.Int("tape", 0, "Tape size in cells (default from tapevm.toml)")
	trace := flag.Bool("trace", false, "Log every executed instruction (with -v)")
	maxSteps := flag.Uint64("max-steps", 0, "Stop after `n` instructions (0 = no limit)")
	profile := flag.Bool("profile", false, "Print the hottest loops to stderr after the run")
	configDir := flag.String("config", ".", "Directory to start the tapevm.toml search from")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tapevm [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a tape language program. Without a file the source is read\n")
		fmt.Fprintf(os.Stderr, "from stdin up to the first '|'; the rest of stdin is the program's input.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tapevm hello.b                  # Compile and run hello.b\n")
		fmt.Fprintf(os.Stderr, "  echo ',[.[-],]|hi' | tapevm    # Source and input on stdin\n")
		fmt.Fprintf(os.Stderr, "  tapevm -d hello.b               # Show optimized bytecode\n")
		fmt.Fprintf(os.Stderr, "  tapevm -O=false -d hello.b      # Show unoptimized bytecode\n")
		fmt.Fprintf(os.Stderr, "  tapevm -stats -history hello.b  # Print stats, record the run\n")
		fmt.Fprintf(os.Stderr, "  tapevm -profile -O=false prog.b # Find loops worth optimizing\n")
		fmt.Fprintf(os.Stderr, "  tapevm -recent 10               # List recorded runs\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		atexit.Exit(0)
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fatalf("Error loading %s: %v\n", manifest.FileName, err)
	}
	if m == nil {
		m = manifest.Default()
	}

	// Command-line flags win over tapevm.toml
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "O":
			m.Compiler.Optimize = *optimize
		case "tape":
			m.VM.TapeSize = *tapeSize
		case "trace":
			m.VM.Trace = *trace
		case "max-steps":
			m.VM.MaxSteps = *maxSteps
		case "report-format":
			m.Report.Format = *reportFormat
		case "history":
			m.History.Enabled = *record
		}
	})

	verbosity := m.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if *recent > 0 {
		if err := listRecent(os.Stdout, m.HistoryPath(), *recent); err != nil {
			fatalf("Error: %v\n", err)
		}
		atexit.Exit(0)
	}

	src, input, err := readSource(flag.Args(), os.Stdin)
	if err != nil {
		fatalf("Unable to read source code: %v\n", err)
	}

	out := bufio.NewWriter(os.Stdout)
	atexit.Register(func() { out.Flush() })

	var (
		rep    = report.New(string(src))
		runErr error
	)

	if *baseline {
		runErr = runBaseline(src, input, out, m, rep, *showStats)
	} else {
		c := compiler.New(m.CompilerOptions())
		prog, err := c.Compile(src)
		if err != nil {
			fatalf("Unable to compile source code: %v\n", err)
		}

		if *dump {
			if err := prog.DisassembleTo(out); err != nil {
				fatalf("Error: %v\n", err)
			}
			atexit.Exit(0)
		}

		vm := bytecode.NewVMWithTapeSize(prog, m.VM.TapeSize)
		vm.SetInput(input)
		vm.SetOutput(out)
		vm.Trace = m.VM.Trace
		vm.StepLimit = m.VM.MaxSteps
		if *profile {
			vm.Profiler = bytecode.NewProfiler()
		}

		runErr = vm.Run()
		out.Flush()

		rep.SetCompile(c.Stats(), m.Compiler.Optimize)
		rep.SetRun(vm.Stats(), runErr)

		if *showStats {
			fmt.Fprintln(os.Stderr, statsTable(c.Stats(), vm.Stats(), isTerminal(os.Stderr)))
		}
		if vm.Profiler != nil {
			fmt.Fprintln(os.Stderr, profileTable(prog, vm.Profiler, profileRows, isTerminal(os.Stderr)))
		}
	}

	if *reportPath != "" {
		if err := writeReport(*reportPath, rep, m.Report.Format); err != nil {
			fmt.Fprintf(os.Stderr, "Unable to write report: %v\n", err)
		}
	}

	if m.History.Enabled {
		if err := recordRun(m.HistoryPath(), rep); err != nil {
			fmt.Fprintf(os.Stderr, "Unable to record run: %v\n", err)
		}
	}

	if runErr != nil {
		fatalf("Runtime error: %v\n", runErr)
	}
	atexit.Exit(0)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	atexit.Exit(1)
}

// runBaseline interprets the source directly, without the compiler.
func runBaseline(src []byte, input io.Reader, out *bufio.Writer, m *manifest.Manifest, rep *report.Report, showStats bool) error {
	it, err := interp.New(src, m.VM.TapeSize)
	if err != nil {
		fatalf("Unable to compile source code: %v\n", err)
	}
	it.SetInput(input)
	it.SetOutput(out)

	runErr := it.Run()
	out.Flush()

	stats := bytecode.Stats{
		Steps:       it.Steps(),
		OutputBytes: it.OutputBytes(),
		InputBytes:  it.InputBytes(),
	}
	rep.SetRun(stats, runErr)

	if showStats {
		fmt.Fprintln(os.Stderr, statsTable(compiler.Stats{SourceBytes: len(src)}, stats, isTerminal(os.Stderr)))
	}
	return runErr
}

func writeReport(path string, rep *report.Report, formatName string) error {
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Encode(f, rep, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRun(path string, rep *report.Report) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Record(rep)
}

func listRecent(w io.Writer, path string, n int) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(n)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, recentTable(entries, isTerminal(os.Stdout)))
	return nil
}
