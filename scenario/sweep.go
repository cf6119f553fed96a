package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weiihann/cachebench/harness"
	"github.com/weiihann/cachebench/memtier"
	"github.com/weiihann/cachebench/workload"
)

// Matrix maps a sweep point to the percentage Ops/sec change against the
// native baseline. Points not yet measured are absent.
type Matrix map[workload.Point]float64

// Set records a cell. A cell may only be written once.
func (m Matrix) Set(p workload.Point, v float64) error {
	if _, ok := m[p]; ok {
		return fmt.Errorf("point %v measured twice", p)
	}

	m[p] = v

	return nil
}

// SweepResult accumulates the sweep matrices.
type SweepResult struct {
	Native memtier.Stats
	Modes  map[harness.Mode]Matrix
	Done   int
	Total  int
}

// SweepHook is called after every measured point with the results so far.
type SweepHook func(res *SweepResult)

// Sweep measures the native baseline, rebuilds the base commit for SGX and
// runs every plan point under each sandbox mode, recording the Ops/sec
// change relative to the baseline.
func (r *Runner) Sweep(ctx context.Context, plan []workload.Point, hook SweepHook) (*SweepResult, error) {
	base, err := r.baseCommit()
	if err != nil {
		return nil, err
	}

	native, err := r.native(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.prepare(ctx, base); err != nil {
		return nil, err
	}

	res := &SweepResult{
		Native: native,
		Modes:  make(map[harness.Mode]Matrix, len(harness.SandboxModes)),
		Total:  len(plan),
	}
	for _, mode := range harness.SandboxModes {
		res.Modes[mode] = Matrix{}
	}

	for _, p := range plan {
		r.Logger.DebugContext(ctx, "testing point",
			slog.Int("threads", p.Threads),
			slog.Int("size", p.Size),
		)

		for _, mode := range harness.SandboxModes {
			stats, err := r.Trials.Run(ctx, mode, harness.Params{
				Threads: p.Threads,
				Size:    p.Size,
			})
			if err != nil {
				return res, fmt.Errorf("%s at %v: %w", mode, p, err)
			}

			delta := memtier.PercentChange(native[memtier.OpsPerSec], stats[memtier.OpsPerSec])
			if err := res.Modes[mode].Set(p, delta); err != nil {
				return res, err
			}
		}

		res.Done++

		if hook != nil {
			hook(res)
		}
	}

	return res, nil
}
