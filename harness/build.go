package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
)

// Builder rebuilds the server from the source tree in Dir using make.
type Builder struct {
	Dir    string
	Jobs   int
	Log    io.Writer
	Logger *slog.Logger
}

// Build compiles the server. A native build runs "make -jN"; an SGX build
// runs "make clean" followed by "make -jN SGX=1".
func (b *Builder) Build(ctx context.Context, sgx bool) error {
	b.Logger.InfoContext(ctx, "building server",
		slog.String("dir", b.Dir),
		slog.Bool("sgx", sgx),
	)

	for _, args := range b.steps(sgx) {
		if err := b.make(ctx, args); err != nil {
			return err
		}
	}

	b.Logger.DebugContext(ctx, "server built", slog.Bool("sgx", sgx))

	return nil
}

func (b *Builder) steps(sgx bool) [][]string {
	jobs := b.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	build := []string{"-j" + strconv.Itoa(jobs)}
	if !sgx {
		return [][]string{build}
	}

	return [][]string{{"clean"}, append(build, "SGX=1")}
}

func (b *Builder) make(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = b.Dir
	cmd.Stdout = b.Log
	cmd.Stderr = b.Log

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("make %v: %w", args, err)
	}

	return nil
}
