package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/cpsync/internal/codeforces"
	"github.com/me/cpsync/internal/config"
	"github.com/me/cpsync/internal/engine"
	"github.com/me/cpsync/internal/layout"
	"github.com/me/cpsync/internal/scrape"
	"github.com/me/cpsync/internal/spoj"
	"github.com/me/cpsync/internal/store"
	"github.com/me/cpsync/pkg/model"
	"github.com/spf13/cobra"
)

// syncFlags are the per-command overrides of config values. A flag only
// applies when it was set on the command line.
type syncFlags struct {
	output     string
	history    string
	cfHandle   string
	spojHandle string
	codeforces bool
	spoj       bool
	regular    bool
	gym        bool
	splitGym   bool
	perContest bool
	cfPacing   time.Duration
	spojPacing time.Duration
	timeout    time.Duration
}

func (f *syncFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", ".", "Root folder of the downloaded tree")
	fl.StringVar(&f.history, "history", "", "SQLite history database (empty string disables)")
	fl.StringVar(&f.cfHandle, "cf-handle", "", "Codeforces handle")
	fl.StringVar(&f.spojHandle, "spoj-handle", "", "SPOJ handle")
	fl.BoolVar(&f.codeforces, "codeforces", true, "Run the Codeforces phase")
	fl.BoolVar(&f.spoj, "spoj", true, "Run the SPOJ phase")
	fl.BoolVar(&f.regular, "regular", true, "Download regular Codeforces contest submissions")
	fl.BoolVar(&f.gym, "gym", true, "Download Codeforces gym submissions (requires password)")
	fl.BoolVar(&f.splitGym, "split-gym", true, "Keep gym and regular contests in separate folders")
	fl.BoolVar(&f.perContest, "per-contest", true, "One folder per Codeforces contest")
	fl.DurationVar(&f.cfPacing, "cf-pacing", codeforces.DefaultPacing, "Pause after each Codeforces page request")
	fl.DurationVar(&f.spojPacing, "spoj-pacing", 0, "Pause after each SPOJ page request")
	fl.DurationVar(&f.timeout, "timeout", scrape.DefaultTimeout, "Timeout of a single HTTP request")
}

func (f *syncFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.OutputDir = f.output
	}
	if changed("history") {
		cfg.HistoryDB = f.history
	}
	if changed("cf-handle") {
		cfg.Codeforces.Handle = f.cfHandle
	}
	if changed("spoj-handle") {
		cfg.SPOJ.Handle = f.spojHandle
	}
	if changed("codeforces") {
		cfg.Codeforces.Enabled = f.codeforces
	}
	if changed("spoj") {
		cfg.SPOJ.Enabled = f.spoj
	}
	if changed("regular") {
		cfg.Codeforces.Regular = f.regular
	}
	if changed("gym") {
		cfg.Codeforces.Gym = f.gym
	}
	if changed("split-gym") {
		cfg.Codeforces.SplitGym = f.splitGym
	}
	if changed("per-contest") {
		cfg.Codeforces.PerContest = f.perContest
	}
	if changed("cf-pacing") {
		cfg.Codeforces.Pacing = f.cfPacing
	}
	if changed("spoj-pacing") {
		cfg.SPOJ.Pacing = f.spojPacing
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
}

// loadConfig layers defaults, the YAML file, the environment and flags.
func loadConfig(cmd *cobra.Command, f *syncFlags) (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		if err := config.LoadFile(flagConfig, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg, flagEnvFile); err != nil {
		return cfg, err
	}
	if f != nil {
		f.apply(cmd, &cfg)
	}
	if cmd.Flags().Changed("verbose") || cmd.Flags().Changed("quiet") {
		cfg.Verbose = flagVerbose && !flagQuiet
	}
	reconfigureLogger(cmd, cfg)
	return cfg, nil
}

// completeConfig prompts for whatever is still missing, then normalizes
// and validates.
func completeConfig(ctx context.Context, cfg *config.Config, p *prompter) error {
	if cfg.Codeforces.Enabled {
		if err := p.fill(ctx, &cfg.Codeforces.Handle, "Codeforces handle: ", false); err != nil {
			return err
		}
		if cfg.NeedsCodeforcesPassword() {
			if err := p.fill(ctx, &cfg.Codeforces.Password, "Codeforces password: ", true); err != nil {
				return err
			}
		}
	}
	if cfg.SPOJ.Enabled {
		if err := p.fill(ctx, &cfg.SPOJ.Handle, "SPOJ handle: ", false); err != nil {
			return err
		}
		if err := p.fill(ctx, &cfg.SPOJ.Password, "SPOJ password: ", true); err != nil {
			return err
		}
	}
	cfg.Normalize()
	return cfg.Validate()
}

func newSyncCmd() *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download new accepted submissions",
		Long: "Run the Codeforces phase and then the SPOJ phase. Problems already in a " +
			"handle's downloaded ledger are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := newPrompter(cmd.OutOrStdout())
			if err := completeConfig(ctx, &cfg, p); err != nil {
				if ctx.Err() != nil {
					return model.ErrInterrupted
				}
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runSync(ctx, cfg, cmd.OutOrStdout(), p)
		},
	}
	f.register(cmd)
	return cmd
}

// platformRun pairs a source with the header printed before it.
type platformRun struct {
	name string
	src  engine.Source
}

// runSync runs every enabled phase in order. A phase error is reported and
// the next phase still runs. Cancellation stops everything.
func runSync(ctx context.Context, cfg config.Config, out io.Writer, confirmer engine.Confirmer) error {
	var recorder engine.Recorder
	if cfg.HistoryDB != "" {
		st, err := openHistory(ctx, cfg.HistoryDB)
		if err != nil {
			logger.Warn("history disabled", "path", cfg.HistoryDB, "error", err)
		} else {
			defer st.Close()
			recorder = st
		}
	}

	eng := engine.New(engine.Options{
		Layout: layout.Options{
			Root:               cfg.OutputDir,
			MergeGymAndRegular: !cfg.Codeforces.SplitGym,
			PerContestFolders:  cfg.Codeforces.PerContest,
		},
		Filter: engine.Filter{
			IncludeRegular: cfg.Codeforces.Regular,
			IncludeGym:     cfg.Codeforces.Gym,
		},
		Confirmer: confirmer,
		Recorder:  recorder,
	}, logger)

	runs, err := buildSources(cfg)
	if err != nil {
		return err
	}

	var phaseErrs []error
	for _, r := range runs {
		fmt.Fprintf(out, "== %s ==\n", r.name)
		results, err := eng.Run(ctx, r.src)
		printSummary(out, results)
		if errors.Is(err, model.ErrInterrupted) {
			fmt.Fprintln(out, "interrupted, progress saved")
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", r.name, err)
			phaseErrs = append(phaseErrs, err)
		}
	}
	return errors.Join(phaseErrs...)
}

func buildSources(cfg config.Config) ([]platformRun, error) {
	var runs []platformRun
	if cfg.Codeforces.Enabled {
		c, err := newCodeforcesClient(cfg)
		if err != nil {
			return nil, err
		}
		runs = append(runs, platformRun{name: "Codeforces", src: codeforces.NewSource(c, cfg.Codeforces.Gym)})
	}
	if cfg.SPOJ.Enabled {
		c, err := newSPOJClient(cfg)
		if err != nil {
			return nil, err
		}
		runs = append(runs, platformRun{name: "SPOJ", src: spoj.NewSource(c)})
	}
	return runs, nil
}

func newCodeforcesClient(cfg config.Config) (*codeforces.Client, error) {
	return codeforces.NewClient(codeforces.Config{
		BaseURL:  cfg.Codeforces.BaseURL,
		Handle:   cfg.Codeforces.Handle,
		Password: cfg.Codeforces.Password,
		Pacing:   cfg.Codeforces.Pacing,
		Timeout:  cfg.Timeout,
	}, logger)
}

func newSPOJClient(cfg config.Config) (*spoj.Client, error) {
	return spoj.NewClient(spoj.Config{
		BaseURL:  cfg.SPOJ.BaseURL,
		Handle:   cfg.SPOJ.Handle,
		Password: cfg.SPOJ.Password,
		Pacing:   cfg.SPOJ.Pacing,
		Timeout:  cfg.Timeout,
	}, logger)
}

func openHistory(ctx context.Context, path string) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return st, nil
}
