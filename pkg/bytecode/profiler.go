package bytecode

import "sort"

// Profiler counts loop iterations per back edge to find the hot loops a
// program spends its time in, typically the ones the optimizer could not
// turn into CLEAR or MUL.

// LoopProfile holds profiling data for a single loop.
type LoopProfile struct {
	Head       int    // Address the back edge jumps to (first body instruction)
	End        int    // Address of the BRANCH_NZ closing the loop
	Iterations uint64 // Times the back edge was taken
	IsHot      bool   // True once Iterations reached the hot threshold
}

// Profiler manages loop profiles for one VM.
type Profiler struct {
	loops map[int]*LoopProfile // keyed by End

	// HotThreshold is the iteration count at which a loop becomes hot.
	HotThreshold uint64 // Default: 1000

	// OnHot, if set, is called once per loop when it becomes hot.
	OnHot func(profile LoopProfile)

	hotCount int
}

// NewProfiler creates a new profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{
		loops:        make(map[int]*LoopProfile),
		HotThreshold: 1000,
	}
}

// RecordBackEdge counts one taken back edge from end to head.
// Returns true if this iteration caused the loop to become hot.
func (p *Profiler) RecordBackEdge(end, head int) bool {
	profile, ok := p.loops[end]
	if !ok {
		profile = &LoopProfile{Head: head, End: end}
		p.loops[end] = profile
	}

	profile.Iterations++

	if !profile.IsHot && profile.Iterations >= p.HotThreshold {
		profile.IsHot = true
		p.hotCount++

		if p.OnHot != nil {
			p.OnHot(*profile)
		}
		return true
	}

	return false
}

// Loop returns the profile of the loop closed at end.
func (p *Profiler) Loop(end int) (LoopProfile, bool) {
	profile, ok := p.loops[end]
	if !ok {
		return LoopProfile{}, false
	}
	return *profile, true
}

// Loops returns every profiled loop, most iterations first. Ties are broken
// by address.
func (p *Profiler) Loops() []LoopProfile {
	out := make([]LoopProfile, 0, len(p.loops))
	for _, profile := range p.loops {
		out = append(out, *profile)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Iterations != out[j].Iterations {
			return out[i].Iterations > out[j].Iterations
		}
		return out[i].End < out[j].End
	})
	return out
}

// HotLoopCount returns the number of loops that crossed the threshold.
func (p *Profiler) HotLoopCount() int {
	return p.hotCount
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.loops = make(map[int]*LoopProfile)
	p.hotCount = 0
}
