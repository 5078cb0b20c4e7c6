// Package cvd wraps the external cvdupdate command-line engine. The engine
// owns downloading, verifying and decompressing signature databases; this
// package only invokes it and interprets its textual output.
package cvd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cvdmirror/cvdmirror/internal/domain"
	"github.com/cvdmirror/cvdmirror/internal/logger"
)

// DefaultBinary is the engine command resolved from PATH
const DefaultBinary = "cvd"

// Runner invokes the engine binary
type Runner struct {
	binary  string
	verbose bool
}

// NewRunner creates a runner for the given binary; empty means the
// default PATH lookup
func NewRunner(binary string, verbose bool) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{binary: binary, verbose: verbose}
}

// run executes the engine with the given arguments and captures output.
// The engine's -V flag is appended in verbose mode.
func (r *Runner) run(ctx context.Context, args ...string) (string, string, error) {
	if r.verbose {
		args = append(args, "-V")
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Get().Debug("running engine command", "binary", r.binary, "args", strings.Join(args, " "))

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", domain.ErrEngineNotFound
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(),
				fmt.Errorf("engine exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), stderr.String(), err
	}

	return stdout.String(), stderr.String(), nil
}

// Update downloads fresh databases. Returns the engine's output for
// logging.
func (r *Runner) Update(ctx context.Context) (string, error) {
	stdout, _, err := r.run(ctx, "update")
	return stdout, err
}

// Serve runs the engine's HTTP mirror server on the given port, inheriting
// this process's stdio so its log lines are visible. Blocks until the
// context is cancelled or the server exits.
func (r *Runner) Serve(ctx context.Context, port int) error {
	args := []string{"serve", "--port", strconv.Itoa(port)}
	if r.verbose {
		args = append(args, "-V")
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return domain.ErrEngineNotFound
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("mirror server failed: %w", err)
	}
	return nil
}

// ConfigShow returns the engine's configuration dump
func (r *Runner) ConfigShow(ctx context.Context) (string, error) {
	stdout, _, err := r.run(ctx, "config", "show")
	return stdout, err
}

// ConfigSet applies one engine configuration flag, e.g. --dbdir
func (r *Runner) ConfigSet(ctx context.Context, flag, value string) error {
	_, stderr, err := r.run(ctx, "config", "set", "--"+flag, value)
	if err != nil {
		return fmt.Errorf("config set %s failed: %w (%s)", flag, err, strings.TrimSpace(stderr))
	}
	return nil
}

// ListDatabases returns the engine's configured database listing
func (r *Runner) ListDatabases(ctx context.Context) (string, error) {
	stdout, _, err := r.run(ctx, "list")
	return stdout, err
}

// AddDatabase registers a custom database with the engine
func (r *Runner) AddDatabase(ctx context.Context, name, url string) error {
	_, stderr, err := r.run(ctx, "add", name, url)
	if err != nil {
		return fmt.Errorf("add database %s failed: %w (%s)", name, err, strings.TrimSpace(stderr))
	}
	return nil
}

// DatabaseDir extracts the database directory from `config show` output.
// Used as a fallback when config.json does not record it.
func (r *Runner) DatabaseDir(ctx context.Context) (string, error) {
	out, err := r.ConfigShow(ctx)
	if err != nil {
		return "", err
	}
	dir, ok := ParseDatabaseDir(out)
	if !ok {
		return "", fmt.Errorf("database directory not present in engine config")
	}
	return dir, nil
}

// ParseDatabaseDir scans a `config show` dump for the database directory
// line. The engine prints keys in `name: value` form.
func ParseDatabaseDir(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "database") || !strings.Contains(lower, "dir") {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		dir := strings.Trim(strings.TrimSpace(value), `"`)
		if dir != "" {
			return dir, true
		}
	}
	return "", false
}
