// Package process tests candidates by running an external checker command.
//
// The command template is split on whitespace, without quoting. Exactly one token must be
// the placeholder PWD; it is replaced by the candidate before every run. The checker's
// stdout and stderr are captured together and the candidate matches when the configured
// substring appears anywhere in them. The checker's exit status is ignored.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/pkg/logging"
	"github.com/snow-ghost/cracker/pkg/metrics"
	"go.uber.org/zap"
)

// Placeholder is the template token replaced by each candidate.
const Placeholder = "PWD"

const (
	maxReadInterrupts = 50
	readChunk         = 4096
)

// Config configures an Oracle.
type Config struct {
	// Command is the checker template, e.g. "/usr/local/bin/check-archive secret.7z PWD".
	Command string
	// Match is the substring of the checker output that signals success.
	Match string
	// DryRun reports candidates to Report instead of running the checker.
	DryRun  bool
	Report  io.Writer
	Logger  *zap.Logger
	Metrics *metrics.SearchMetrics
}

// Oracle runs the checker once per candidate. It is not safe for concurrent use.
type Oracle struct {
	command string
	args    []string
	slot    int
	match   []byte
	dryRun  bool
	report  io.Writer
	chunk   []byte
	logger  *zap.Logger
	metrics *metrics.SearchMetrics
}

// ParseTemplate splits command into arguments and returns the index of the placeholder.
func ParseTemplate(command string) ([]string, int, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, 0, fmt.Errorf("%w: empty checker command", core.ErrUsage)
	}
	slot, count := -1, 0
	for i, a := range args {
		if a == Placeholder {
			slot = i
			count++
		}
	}
	switch {
	case count == 0:
		return nil, 0, fmt.Errorf("%w: %q must contain a %s token", core.ErrNoPlaceholder, command, Placeholder)
	case count > 1:
		return nil, 0, fmt.Errorf("%w: %q contains %d %s tokens, want exactly one", core.ErrUsage, command, count, Placeholder)
	case slot == 0:
		return nil, 0, fmt.Errorf("%w: %s cannot be the program name", core.ErrUsage, Placeholder)
	}
	return args, slot, nil
}

// New validates cfg and returns a checker oracle.
func New(cfg Config) (*Oracle, error) {
	args, slot, err := ParseTemplate(cfg.Command)
	if err != nil {
		return nil, err
	}
	if cfg.Match == "" && !cfg.DryRun {
		return nil, fmt.Errorf("%w: empty match string", core.ErrUsage)
	}
	report := cfg.Report
	if report == nil {
		report = os.Stderr
	}
	return &Oracle{
		command: cfg.Command,
		args:    args,
		slot:    slot,
		match:   []byte(cfg.Match),
		dryRun:  cfg.DryRun,
		report:  report,
		chunk:   make([]byte, readChunk),
		logger:  logging.Component(cfg.Logger, "checker"),
		metrics: cfg.Metrics,
	}, nil
}

// Test runs the checker with candidate in the placeholder slot. Failing to start the
// checker is returned as an error wrapping core.ErrSpawn; an unreadable output only
// makes the candidate non-matching.
func (o *Oracle) Test(ctx context.Context, candidate string) (bool, error) {
	if o.dryRun {
		if _, err := fmt.Fprintln(o.report, candidate); err != nil {
			return false, fmt.Errorf("report candidate: %w", err)
		}
		return false, nil
	}
	out, ok, err := o.run(ctx, candidate)
	if err != nil || !ok {
		return false, err
	}
	return bytes.Contains(out, o.match), nil
}

func (o *Oracle) run(ctx context.Context, candidate string) ([]byte, bool, error) {
	o.args[o.slot] = candidate

	// One pipe for both streams so the output keeps the order the checker wrote it in.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, false, fmt.Errorf("%w: create pipe: %w", core.ErrSpawn, err)
	}
	cmd := exec.CommandContext(ctx, o.args[0], o.args[1:]...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, false, fmt.Errorf("%w: %s: %w", core.ErrSpawn, o.command, err)
	}
	pw.Close()

	out, ok := o.capture(pr)
	pr.Close()

	// Always reap the child; a non-zero exit is an ordinary "wrong password".
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			o.logger.Debug("checker wait failed", zap.Error(err))
		}
	}
	return out, ok, nil
}

// capture reads r to EOF, retrying interrupted reads a bounded number of times.
// It reports false when the read had to be abandoned.
func (o *Oracle) capture(r io.Reader) ([]byte, bool) {
	var data []byte
	interrupts := 0
	for {
		n, err := r.Read(o.chunk)
		data = append(data, o.chunk[:n]...)
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return data, true
		case errors.Is(err, syscall.EINTR) && interrupts < maxReadInterrupts:
			interrupts++
			o.metrics.RecordReadRetry()
			continue
		}
		o.logger.Warn("read from checker failed; treating candidate as non-matching",
			zap.Error(err),
			zap.Int("interrupts", interrupts),
			zap.Int("bytes_read", len(data)),
		)
		return nil, false
	}
}
