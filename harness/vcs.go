package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Placeholders substituted into a checkout template.
const (
	RemotePlaceholder = "REMOTE"
	CommitPlaceholder = "COMMIT"
)

// ErrTemplate is returned for a checkout template that lacks one of the
// placeholders.
var ErrTemplate = errors.New("checkout template must contain REMOTE and COMMIT")

// VCS checks out a revision of the server source tree.
type VCS interface {
	Checkout(ctx context.Context, remote, commit string) error
}

// ShellCheckout runs a user-supplied shell command template with the
// REMOTE and COMMIT placeholders replaced.
type ShellCheckout struct {
	Template string
	Dir      string
	Log      io.Writer
	Logger   *slog.Logger
}

// NewShellCheckout validates the template and returns a ShellCheckout.
func NewShellCheckout(
	template, dir string,
	log io.Writer,
	logger *slog.Logger,
) (*ShellCheckout, error) {
	if !strings.Contains(template, RemotePlaceholder) ||
		!strings.Contains(template, CommitPlaceholder) {
		return nil, fmt.Errorf("%q: %w", template, ErrTemplate)
	}

	return &ShellCheckout{
		Template: template,
		Dir:      dir,
		Log:      log,
		Logger:   logger,
	}, nil
}

// Command returns the shell command line for the given revision.
func (c *ShellCheckout) Command(remote, commit string) string {
	return strings.NewReplacer(
		RemotePlaceholder, remote,
		CommitPlaceholder, commit,
	).Replace(c.Template)
}

// Checkout runs the substituted template through sh -c.
func (c *ShellCheckout) Checkout(ctx context.Context, remote, commit string) error {
	line := c.Command(remote, commit)

	c.Logger.InfoContext(ctx, "checking out",
		slog.String("remote", remote),
		slog.String("commit", commit),
	)
	c.Logger.DebugContext(ctx, "checkout command", slog.String("cmd", line))

	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Log
	cmd.Stderr = c.Log

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("checkout %s/%s: %w", remote, commit, err)
	}

	return nil
}
