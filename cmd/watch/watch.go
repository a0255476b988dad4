package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/blockscan/internal/analyzer"
	"github.com/scan-io-git/blockscan/internal/config"
	"github.com/scan-io-git/blockscan/internal/logger"
	"github.com/scan-io-git/blockscan/internal/report"
	"github.com/scan-io-git/blockscan/internal/rules"
	"github.com/scan-io-git/blockscan/internal/walker"
	"github.com/scan-io-git/blockscan/internal/watcher"
	"github.com/scan-io-git/blockscan/pkg/shared/errors"
)

// RunOptions holds flags for the watch command.
type RunOptions struct {
	Select   []string
	Disable  []string
	Exclude  []string
	Jobs     int
	Summary  bool
	Debounce string
}

var exampleWatchUsage = `  # Re-check files under src/ whenever they are saved
  blockscan watch src/

  # Watch a single file with a longer debounce window
  blockscan watch --debounce 1s app/main.py`

// NewWatchCmd creates the watch command.
func NewWatchCmd(cfg func() *config.Config) *cobra.Command {
	var opts RunOptions
	cmd := &cobra.Command{
		Use:                   "watch [flags] PATH...",
		Short:                 "Re-check Python files each time they change",
		Example:               exampleWatchUsage,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, cfg(), &opts, args)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Select, "select", nil, "Only run these rule ids")
	cmd.Flags().StringSliceVar(&opts.Disable, "disable", nil, "Do not run these rule ids")
	cmd.Flags().StringArrayVar(&opts.Exclude, "exclude", nil, "Ignore paths matching this glob (repeatable)")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "Number of files analyzed in parallel (default 1)")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "Print a summary after each batch")
	cmd.Flags().StringVar(&opts.Debounce, "debounce", "", "Wait this long for more changes before re-checking (default 300ms)")
	return cmd
}

func runWatch(cmd *cobra.Command, cfg *config.Config, opts *RunOptions, args []string) error {
	lg := logger.NewLogger(cfg, "watcher")

	if len(args) == 0 {
		return errors.NewUsageError("at least one file or directory must be specified")
	}
	if !cmd.Flags().Changed("select") {
		opts.Select = cfg.Analysis.Select
	}
	if !cmd.Flags().Changed("disable") {
		opts.Disable = cfg.Analysis.Disable
	}
	if !cmd.Flags().Changed("exclude") {
		opts.Exclude = cfg.Analysis.Exclude
	}
	if !cmd.Flags().Changed("jobs") {
		opts.Jobs = config.SetThen(cfg.Analysis.Jobs, 1)
	}

	debounce := cfg.Watch.Debounce
	if opts.Debounce != "" {
		d, err := parseDebounce(opts.Debounce)
		if err != nil {
			return errors.NewCommandError(err, errors.ExitCodeUsage)
		}
		debounce = d
	}

	registry, err := rules.Default().Filter(opts.Select, opts.Disable)
	if err != nil {
		return errors.NewCommandError(fmt.Errorf("invalid arguments: %w", err), errors.ExitCodeUsage)
	}
	wk, err := walker.New(lg.Named("walker"), opts.Exclude)
	if err != nil {
		return errors.NewCommandError(fmt.Errorf("invalid arguments: %w", err), errors.ExitCodeUsage)
	}

	w, err := watcher.New(wk, lg, debounce)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(args); err != nil {
		return errors.NewCommandError(err, errors.ExitCodeUsage)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := analyzer.New(registry, lg.Named("analyzer"), analyzer.WithWorkers(opts.Jobs))
	out := cmd.OutOrStdout()
	lg.Info("watching for changes", "paths", args, "debounce", debounce)

	return w.Run(ctx, func(ctx context.Context, paths []string) {
		var agg report.Aggregator
		_, err := a.Run(ctx, paths, func(r analyzer.FileResult) {
			agg.Add(r.Findings...)
			if err := report.WriteFindings(out, r.Findings); err != nil {
				lg.Error("failed to write findings", "error", err)
			}
		})
		if err != nil {
			return
		}
		if opts.Summary {
			if err := report.WriteSummary(out, agg.Sorted(), registry); err != nil {
				lg.Error("failed to write summary", "error", err)
			}
		}
		if agg.Len() == 0 {
			fmt.Fprintln(out, report.NoIssuesLine)
		}
	})
}
