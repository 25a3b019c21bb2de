package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/snow-ghost/cracker/config"
	"github.com/snow-ghost/cracker/core"
	"github.com/snow-ghost/cracker/interp/wasm"
	"github.com/snow-ghost/cracker/mutate"
	"github.com/snow-ghost/cracker/oracle"
	"github.com/snow-ghost/cracker/oracle/plugin"
	"github.com/snow-ghost/cracker/oracle/process"
	"github.com/snow-ghost/cracker/pkg/logging"
	"github.com/snow-ghost/cracker/pkg/metrics"
	"github.com/snow-ghost/cracker/search"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// app carries the flag values and the outcome of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	envFile     string
	noColor     bool
	pluginPages uint32
	flags       config.Config

	searched bool
	outcome  core.Outcome
}

// execute runs the command line and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	cmd := a.command()
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if errors.Is(err, core.ErrUsage) || errors.Is(err, core.ErrNoPlaceholder) {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return core.ExitCode(err)
	}
	if a.searched && !a.outcome.Found {
		return core.ExitNotFound
	}
	return core.ExitFound
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cracker",
		Short: "Recover a mistyped password from a close guess",
		Long: `cracker reads a seed password from SEED_PWD and tests every variant within a
growing number of substitutions, transpositions, insertions and deletions.

Candidates are checked either by running --checker with the PWD token replaced
and looking for --match in its output, or by a WASM --plugin that receives
--checker as its argument string.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unexpected argument %q", core.ErrUsage, args[0])
			}
			return nil
		},
		RunE: a.run,
	}
	cmd.SetOut(a.stderr)
	cmd.SetErr(a.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", core.ErrUsage, err)
	})

	f := cmd.Flags()
	f.StringVar(&a.flags.Checker, "checker", "", "command to check a password, with PWD marking the password argument; plugin argument string with --plugin")
	f.StringVar(&a.flags.Match, "match", "", "string in the checker's output that means the password worked")
	f.StringVar(&a.flags.Plugin, "plugin", "", "WASM plugin that checks passwords in-process instead of --checker and --match")
	f.IntVar(&a.flags.Distance, "distance", search.AnyDistance, "check only this edit distance (-1 widens from 0 up to the seed length)")
	f.BoolVar(&a.flags.DryRun, "dryrun", false, "print passwords that would be checked without checking them")
	f.IntVar(&a.flags.CharStep, "char-step", 1, "debug: visit every n-th character; values above 1 skip passwords")
	f.Float64Var(&a.flags.RateLimit, "rate", 0, "maximum checks per second (0 = unlimited)")
	f.IntVar(&a.flags.MemoSize, "memo", 0, "remember the last n candidates and skip repeats (0 = off)")
	f.StringVar(&a.flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the search")
	f.StringVar(&a.flags.Log.Level, "log-level", "info", "log level: debug|info|warn|error")
	f.StringVar(&a.flags.Log.Format, "log-format", "console", "log format: console|json")
	f.StringVar(&a.configPath, "config", "", "YAML configuration file (default $"+config.EnvConfigPath+")")
	f.StringVar(&a.envFile, "env-file", "", "load "+config.SeedEnv+" from this dotenv file")
	f.BoolVar(&a.noColor, "no-color", false, "disable colorized output")
	f.Uint32Var(&a.pluginPages, "plugin-memory-pages", wasm.DefaultMemoryLimitPages, "memory limit for the plugin in 64KiB pages")
	return cmd
}

// resolveConfig layers the flags that were set on top of the loaded configuration.
func (a *app) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	set := cmd.Flags().Changed
	if set("checker") {
		cfg.Checker = a.flags.Checker
	}
	if set("match") {
		cfg.Match = a.flags.Match
	}
	if set("plugin") {
		cfg.Plugin = a.flags.Plugin
	}
	if set("distance") {
		cfg.Distance = a.flags.Distance
	}
	if set("dryrun") {
		cfg.DryRun = a.flags.DryRun
	}
	if set("char-step") {
		cfg.CharStep = a.flags.CharStep
	}
	if set("rate") {
		cfg.RateLimit = a.flags.RateLimit
	}
	if set("memo") {
		cfg.MemoSize = a.flags.MemoSize
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = a.flags.MetricsAddr
	}
	if set("log-level") {
		cfg.Log.Level = a.flags.Log.Level
	}
	if set("log-format") {
		cfg.Log.Format = a.flags.Log.Format
	}
	return cfg, cfg.Validate()
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	cfg, err := a.resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	seed, err := config.LoadSeed(a.envFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m := metrics.NewSearchMetrics()
	o, err := a.buildOracle(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := oracle.Close(context.WithoutCancel(ctx), o); err != nil {
			logger.Warn("failed to close oracle", zap.Error(err))
		}
	}()

	gen := mutate.NewGenerator(o,
		mutate.WithCharRange(core.PrintableASCII().WithStep(cfg.CharStep)),
		mutate.WithLogger(logger),
	)
	ctrl := search.NewController(gen,
		search.WithDistance(cfg.Distance),
		search.WithLogger(logger),
		search.WithMetrics(m),
	)

	out, err := a.runSearch(ctx, cfg, logger, m, ctrl, seed)
	if err != nil {
		return err
	}
	a.searched, a.outcome = true, out
	a.report(out)
	logger.Info("search finished",
		zap.Bool("found", out.Found),
		zap.Int("distance", out.Distance),
		zap.Uint64("candidates", gen.Tested()))
	return nil
}

// buildOracle picks the plugin or process oracle and applies the configured decorators.
// A dry-run plugin is still loaded and initialized, so a broken plugin fails early.
// Memoization sits outermost so repeated candidates skip the rate limit.
func (a *app) buildOracle(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.SearchMetrics) (core.Oracle, error) {
	var (
		o    core.Oracle
		name string
	)
	if cfg.PluginMode() {
		p, err := plugin.Load(ctx, wasm.NewLoader(a.pluginPages), cfg.Plugin, cfg.Checker, logger)
		if err != nil {
			return nil, err
		}
		o, name = p, "plugin"
		if cfg.DryRun {
			o = oracle.DryRun(o, a.stderr)
		}
	} else {
		p, err := process.New(process.Config{
			Command: cfg.Checker,
			Match:   cfg.Match,
			DryRun:  cfg.DryRun,
			Report:  a.stderr,
			Logger:  logger,
			Metrics: m,
		})
		if err != nil {
			return nil, err
		}
		o, name = p, "process"
	}

	o = oracle.Instrument(o, name, m)
	if cfg.RateLimit > 0 {
		o = oracle.Throttle(o, cfg.RateLimit, 1)
	}
	if cfg.MemoSize > 0 {
		memo, err := oracle.Memo(o, cfg.MemoSize, m)
		if err != nil {
			oracle.Close(ctx, o)
			return nil, err
		}
		o = memo
	}
	return o, nil
}

// runSearch runs the controller, serving metrics alongside it when an address is set.
func (a *app) runSearch(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.SearchMetrics,
	ctrl *search.Controller, seed *config.Seed) (core.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var out core.Outcome
	g.Go(func() error {
		defer cancel()
		pwd, err := seed.Reveal()
		if err != nil {
			return err
		}
		out, err = ctrl.Search(gctx, pwd)
		return err
	})

	if err := g.Wait(); err != nil {
		return core.NotFound, err
	}
	return out, nil
}

// report prints the result line to stdout.
func (a *app) report(out core.Outcome) {
	c := color.New(color.FgGreen, color.Bold)
	if !out.Found {
		c = color.New(color.FgRed)
	}
	if a.noColor {
		c.DisableColor()
	}
	c.Fprintf(a.stdout, "Password is: '%s'\n", out)
}
