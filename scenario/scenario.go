// Package scenario drives the benchmark flows: a fixed comparison of
// native and sandboxed runs across commits, and a thread/payload sweep of
// the sandboxed modes against a native baseline.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weiihann/cachebench/harness"
	"github.com/weiihann/cachebench/memtier"
)

// NativeLabel is the row label of the native baseline trial.
const NativeLabel = "native"

// ErrBaseCommitMissing is returned by Sweep when no commit carries the
// base title.
var ErrBaseCommitMissing = errors.New("base commit not configured")

// Row is one labelled trial result.
type Row struct {
	Label string        `json:"label"`
	Stats memtier.Stats `json:"stats"`
}

// Builder rebuilds the server, optionally with SGX support.
type Builder interface {
	Build(ctx context.Context, sgx bool) error
}

// TrialRunner runs one trial against a freshly launched server.
type TrialRunner interface {
	Run(ctx context.Context, mode harness.Mode, p harness.Params) (memtier.Stats, error)
}

// Runner wires the collaborators of a benchmark session.
type Runner struct {
	Builder Builder
	VCS     harness.VCS
	Trials  TrialRunner
	Commits []harness.Commit
	// BaseTitle names the commit the sweep is run against.
	BaseTitle string
	Logger    *slog.Logger
}

// Label returns the row label of a sandboxed trial of commit title.
func Label(title string, mode harness.Mode) string {
	return title + "-" + string(mode)
}

// Compare builds and runs the native server once, then for every commit
// checks it out, rebuilds it for SGX and runs it under each sandbox mode.
// Rows are returned in execution order.
func (r *Runner) Compare(ctx context.Context) ([]Row, error) {
	rows := make([]Row, 0, 1+len(r.Commits)*len(harness.SandboxModes))

	native, err := r.native(ctx)
	if err != nil {
		return nil, err
	}

	rows = append(rows, Row{Label: NativeLabel, Stats: native})

	for _, commit := range r.Commits {
		if err := r.prepare(ctx, commit); err != nil {
			return nil, err
		}

		for _, mode := range harness.SandboxModes {
			r.Logger.InfoContext(ctx, "running trial",
				slog.String("commit", commit.Title),
				slog.String("mode", string(mode)),
			)

			stats, err := r.Trials.Run(ctx, mode, harness.DefaultParams)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", Label(commit.Title, mode), err)
			}

			rows = append(rows, Row{Label: Label(commit.Title, mode), Stats: stats})
		}
	}

	return rows, nil
}

// Comparisons returns the (baseline, candidate) label pairs that compare
// each later commit with the first one under the same sandbox mode.
func (r *Runner) Comparisons() [][2]string {
	if len(r.Commits) < 2 {
		return nil
	}

	base := r.Commits[0].Title

	var pairs [][2]string
	for _, mode := range harness.SandboxModes {
		for _, c := range r.Commits[1:] {
			pairs = append(pairs, [2]string{Label(base, mode), Label(c.Title, mode)})
		}
	}

	return pairs
}

func (r *Runner) native(ctx context.Context) (memtier.Stats, error) {
	if err := r.Builder.Build(ctx, false); err != nil {
		return memtier.Stats{}, fmt.Errorf("native build: %w", err)
	}

	r.Logger.InfoContext(ctx, "running trial", slog.String("mode", NativeLabel))

	stats, err := r.Trials.Run(ctx, harness.ModeNative, harness.DefaultParams)
	if err != nil {
		return memtier.Stats{}, fmt.Errorf("%s: %w", NativeLabel, err)
	}

	return stats, nil
}

func (r *Runner) prepare(ctx context.Context, commit harness.Commit) error {
	if err := r.VCS.Checkout(ctx, commit.Remote, commit.ID); err != nil {
		return err
	}

	if err := r.Builder.Build(ctx, true); err != nil {
		return fmt.Errorf("sgx build of %s: %w", commit, err)
	}

	return nil
}

func (r *Runner) baseCommit() (harness.Commit, error) {
	for _, c := range r.Commits {
		if c.Title == r.BaseTitle {
			return c, nil
		}
	}

	return harness.Commit{}, fmt.Errorf("%q: %w", r.BaseTitle, ErrBaseCommitMissing)
}
