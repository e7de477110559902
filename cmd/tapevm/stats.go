package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"github.com/chazu/tapevm/compiler"
	"github.com/chazu/tapevm/pkg/bytecode"
	"github.com/chazu/tapevm/pkg/history"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func styled(t table.Writer, fancy bool) {
	if fancy {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleDefault)
	}
}

// statsTable renders compile and run statistics. fancy selects box drawing
// characters for terminals.
func statsTable(cs compiler.Stats, rs bytecode.Stats, fancy bool) string {
	t := table.NewWriter()
	t.SetTitle("Statistics")
	t.AppendHeader(table.Row{"Metric", "Value"})

	t.AppendRows([]table.Row{
		{"source bytes", cs.SourceBytes},
		{"comment bytes", cs.CommentBytes},
		{"instructions built", cs.Built},
		{"runs folded", cs.RunsFolded},
		{"clear loops", cs.ClearLoops},
		{"mul loops", cs.MulLoops},
		{"mul terms", cs.MulTerms},
		{"nops removed", cs.NopsRemoved},
		{"instructions final", cs.Final},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"steps", rs.Steps},
		{"bytes out", rs.OutputBytes},
		{"bytes in", rs.InputBytes},
	})

	if len(rs.OpCounts) > 0 {
		t.AppendSeparator()
		for _, op := range bytecode.AllOpcodes() {
			if n := rs.OpCounts[op]; n > 0 {
				t.AppendRow(table.Row{op.String(), n})
			}
		}
	}

	styled(t, fancy)
	return t.Render()
}

const sourcePreview = 24

// recentTable renders history entries newest first.
func recentTable(entries []history.Entry, fancy bool) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "When", "Instructions", "Steps", "Out", "Source"})

	for _, e := range entries {
		src := strings.Join(strings.Fields(e.Source), " ")
		if len(src) > sourcePreview {
			src = src[:sourcePreview] + "..."
		}
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		t.AppendRow(table.Row{
			id,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Instructions,
			e.Steps,
			e.OutputBytes,
			src,
		})
	}

	styled(t, fancy)
	return t.Render()
}

// profileRows caps how many loops the profile table lists.
const profileRows = 10

// profileTable renders the hottest loops of a run with the opcodes of their
// bodies.
func profileTable(prog *bytecode.Program, p *bytecode.Profiler, limit int, fancy bool) string {
	t := table.NewWriter()
	t.SetTitle("Hot loops")
	t.AppendHeader(table.Row{"Loop", "Iterations", "Hot", "Body"})

	loops := p.Loops()
	if len(loops) > limit {
		loops = loops[:limit]
	}
	for _, loop := range loops {
		var body []string
		for i := loop.Head; i < loop.End && i < prog.Len(); i++ {
			body = append(body, prog.At(i).Op.String())
		}
		text := strings.Join(body, " ")
		if len(text) > 48 {
			text = text[:48] + "..."
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("0x%08X-0x%08X", loop.Head, loop.End),
			loop.Iterations,
			loop.IsHot,
			text,
		})
	}

	styled(t, fancy)
	return t.Render()
}
