package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/mutate"
	"github.com/snow-ghost/cracker/pkg/metrics"
	"github.com/snow-ghost/cracker/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func requireTool(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestParseTemplate(t *testing.T) {
	cases := []struct {
		command string
		slot    int
		err     error
	}{
		{command: "/bin/check PWD", slot: 1},
		{command: "  unzip   -P PWD -t secret.zip ", slot: 2},
		{command: "/bin/check --password", err: core.ErrNoPlaceholder},
		{command: "/bin/check PWDX", err: core.ErrNoPlaceholder},
		{command: "/bin/check PWD PWD", err: core.ErrUsage},
		{command: "PWD --check", err: core.ErrUsage},
		{command: "   ", err: core.ErrUsage},
	}
	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			args, slot, err := ParseTemplate(tc.command)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.slot, slot)
			assert.Equal(t, Placeholder, args[slot])
		})
	}
}

func TestNew_RequiresMatchUnlessDryRun(t *testing.T) {
	_, err := New(Config{Command: "/bin/check PWD"})
	require.ErrorIs(t, err, core.ErrUsage)

	_, err = New(Config{Command: "/bin/check PWD", DryRun: true})
	require.NoError(t, err)

	_, err = New(Config{Command: "/bin/check", Match: "ok"})
	require.ErrorIs(t, err, core.ErrNoPlaceholder)
}

func TestOracle_MatchesStdout(t *testing.T) {
	echo := requireTool(t, "echo")
	o, err := New(Config{Command: echo + " unlocked: PWD", Match: "unlocked: hunter2"})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := o.Test(ctx, "hunter1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = o.Test(ctx, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok, "the slot is rewritten on every call")
}

func TestOracle_MatchesStderr(t *testing.T) {
	ls := requireTool(t, "ls")
	o, err := New(Config{Command: ls + " PWD", Match: "no-such-file-zq"})
	require.NoError(t, err)

	// ls complains about the missing path on stderr and exits non-zero.
	ok, err := o.Test(context.Background(), "/tmp/no-such-file-zq")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOracle_SpawnFailureIsFatal(t *testing.T) {
	o, err := New(Config{Command: "/nonexistent/checker-zq PWD", Match: "ok"})
	require.NoError(t, err)

	_, err = o.Test(context.Background(), "pw")
	require.ErrorIs(t, err, core.ErrSpawn)
	assert.Equal(t, core.ExitFatal, core.ExitCode(err))
}

func TestOracle_DryRunReportsWithoutSpawning(t *testing.T) {
	var report bytes.Buffer
	o, err := New(Config{Command: "/nonexistent/checker-zq PWD", DryRun: true, Report: &report})
	require.NoError(t, err)

	ok, err := o.Test(context.Background(), "pw")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "pw\n", report.String())
}

func TestDryRunDistanceOne(t *testing.T) {
	var report bytes.Buffer
	o, err := New(Config{Command: "/nonexistent/checker-zq PWD", DryRun: true, Report: &report})
	require.NoError(t, err)
	c := search.NewController(mutate.NewGenerator(o), search.WithDistance(1))

	out, err := c.Search(context.Background(), "ab")
	require.NoError(t, err)
	assert.False(t, out.Found)

	lines := strings.Split(strings.TrimSuffix(report.String(), "\n"), "\n")
	// deletions + insertions + transpositions + substitutions
	require.Len(t, lines, 2+3*95+1+2*95)
	assert.Equal(t, []string{"b", "a"}, lines[:2])
	assert.Contains(t, lines, "ba")
	assert.Contains(t, lines, " ab")
	assert.Contains(t, lines, "ab~")
	assert.Contains(t, lines, "a!")
	assert.Contains(t, lines, "~b")
}

// flakyReader fails with EINTR a number of times before serving its data.
type flakyReader struct {
	interrupts int
	data       io.Reader
	err        error
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if f.interrupts > 0 {
		f.interrupts--
		return 0, syscall.EINTR
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.data.Read(p)
}

func newObservedOracle(t *testing.T) (*Oracle, *observer.ObservedLogs, *metrics.SearchMetrics) {
	obs, logs := observer.New(zapcore.WarnLevel)
	m := metrics.NewSearchMetrics()
	o, err := New(Config{Command: "/bin/check PWD", Match: "ok", Logger: zap.New(obs), Metrics: m})
	require.NoError(t, err)
	return o, logs, m
}

func TestCapture_RetriesInterruptedReads(t *testing.T) {
	o, logs, m := newObservedOracle(t)

	out, ok := o.capture(&flakyReader{interrupts: maxReadInterrupts, data: strings.NewReader("ok")})
	assert.True(t, ok)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, 0, logs.Len())
	assert.Equal(t, float64(maxReadInterrupts), testutil.ToFloat64(m.ReadRetriesTotal))
}

func TestCapture_GivesUpAfterTooManyInterrupts(t *testing.T) {
	o, logs, _ := newObservedOracle(t)

	out, ok := o.capture(&flakyReader{interrupts: maxReadInterrupts + 1, data: strings.NewReader("ok")})
	assert.False(t, ok)
	assert.Nil(t, out)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "treating candidate as non-matching")
}

func TestCapture_OtherReadErrors(t *testing.T) {
	o, logs, _ := newObservedOracle(t)

	_, ok := o.capture(&flakyReader{err: errors.New("broken pipe")})
	assert.False(t, ok)
	assert.Equal(t, 1, logs.Len())
}
