// Package reporting collects per-stage diagnostics for one compile/run
// invocation (instruction counts, loop depth, stage timings) and renders
// them as a one-line human summary, which cmd/bf prints after every run
// and build. A mutex-guarded struct of counters, tagged per invocation
// with a UUID.
package reporting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"bf/internal/optimizer"
)

// Stage names one phase of the pipeline, timed independently.
type Stage string

const (
	StageParse   Stage = "parse"
	StageOptimize Stage = "optimize"
	StageCodegen Stage = "codegen"
	StageJIT     Stage = "jit"
	StageRun     Stage = "run"
)

// Record accumulates the counters and timings for one run or build
// invocation. Every invocation gets its own UUID.
type Record struct {
	mu sync.Mutex

	ID uuid.UUID

	SourceBytes      int
	InstructionCount int // parsed tree node count
	OptimizedCount   int // WalkLen of the optimized tree
	MaxLoopDepth     int
	TapeCells        int

	durations map[Stage]time.Duration
	starts    map[Stage]time.Time
}

// New creates a Record tagged with a fresh UUID.
func New() *Record {
	return &Record{
		ID:        uuid.New(),
		durations: map[Stage]time.Duration{},
		starts:    map[Stage]time.Time{},
	}
}

// Begin marks the start of stage s.
func (r *Record) Begin(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts[s] = time.Now()
}

// End records the elapsed time for stage s since its matching Begin.
func (r *Record) End(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start, ok := r.starts[s]
	if !ok {
		return
	}
	r.durations[s] += time.Since(start)
}

// Summary renders a one-line human-readable summary.
func (r *Record) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fmt.Sprintf(
		"[%s] %s source, %s -> %s instructions, max loop depth %d, tape %s cells (%s)",
		shortID(r.ID),
		humanize.Bytes(uint64(r.SourceBytes)),
		humanize.Comma(int64(r.InstructionCount)),
		humanize.Comma(int64(r.OptimizedCount)),
		r.MaxLoopDepth,
		humanize.Comma(int64(r.TapeCells)),
		r.stageBreakdown(),
	)
}

// stageBreakdown renders each stage's duration, caller must hold r.mu.
func (r *Record) stageBreakdown() string {
	var parts []string
	for _, s := range []Stage{StageParse, StageOptimize, StageCodegen, StageJIT, StageRun} {
		if d, ok := r.durations[s]; ok {
			parts = append(parts, fmt.Sprintf("%s %s", s, d))
		}
	}
	return strings.Join(parts, ", ")
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) < 8 {
		return s
	}
	return s[:8]
}

// LoopDepth computes the maximum loop nesting depth of an optimized
// tree. A diagnostics concern, not part of the pure optimization pass
// itself, which is why it lives here rather than in internal/optimizer.
func LoopDepth(ops []optimizer.OpInstr) int {
	max := 0
	for _, op := range ops {
		if op.Kind != optimizer.Loop {
			continue
		}
		if d := 1 + LoopDepth(op.Body); d > max {
			max = d
		}
	}
	return max
}
