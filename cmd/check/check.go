// Package check implements the analysis command that blockscan runs by default.
package check

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scan-io-git/blockscan/cmd/version"
	"github.com/scan-io-git/blockscan/internal/analyzer"
	"github.com/scan-io-git/blockscan/internal/cache"
	"github.com/scan-io-git/blockscan/internal/config"
	"github.com/scan-io-git/blockscan/internal/git"
	"github.com/scan-io-git/blockscan/internal/logger"
	"github.com/scan-io-git/blockscan/internal/report"
	"github.com/scan-io-git/blockscan/internal/rules"
	"github.com/scan-io-git/blockscan/internal/walker"
	"github.com/scan-io-git/blockscan/pkg/shared/errors"
	"github.com/scan-io-git/blockscan/pkg/shared/files"
)

const reportNameTemplate = "blockscan-report"

// Options holds the flags of a check run. Flags left unset fall back to the
// configuration file.
type Options struct {
	ExitZero    bool
	Summary     bool
	Format      string
	Output      string
	Select      []string
	Disable     []string
	Exclude     []string
	Jobs        int
	Cache       string
	NewFromRev  string
	MaxFileSize int64
}

var exampleCheckUsage = `  # Check a project
  blockscan src/

  # Print the grouped summary and never fail the build
  blockscan --summary --exit-zero src/ tools/script.py

  # Only report sleeps and open() calls, four files at a time
  blockscan --select ASYNC005,ASYNC006 -j 4 src/

  # Report issues introduced since main as SARIF
  blockscan --new-from-rev main --format sarif --output reports/ src/`

// RegisterFlags binds the check flags to fs.
func RegisterFlags(fs *pflag.FlagSet, opts *Options) {
	fs.BoolVar(&opts.ExitZero, "exit-zero", false, "Exit with code 0 even when issues are found")
	fs.BoolVar(&opts.Summary, "summary", false, "Print a summary grouped by rule and by file after the findings")
	fs.StringVar(&opts.Format, "format", "", fmt.Sprintf("Output format, one of %v (default \"text\")", report.Formats))
	fs.StringVarP(&opts.Output, "output", "o", "", "Write the report to this file or folder instead of stdout")
	fs.StringSliceVar(&opts.Select, "select", nil, "Only run these rule ids (repeat flag or use comma-separated values)")
	fs.StringSliceVar(&opts.Disable, "disable", nil, "Do not run these rule ids (repeat flag or use comma-separated values)")
	fs.StringArrayVar(&opts.Exclude, "exclude", nil, "Skip paths matching this glob, e.g. '**/migrations/**' (repeatable)")
	fs.IntVarP(&opts.Jobs, "jobs", "j", 0, "Number of files analyzed in parallel (default 1)")
	fs.StringVar(&opts.Cache, "cache", "", "Path of a SQLite database caching results of unchanged files")
	fs.StringVar(&opts.NewFromRev, "new-from-rev", "", "Only report issues on lines added since this git revision")
	fs.Int64Var(&opts.MaxFileSize, "max-file-size", 0, "Skip files larger than this many bytes (default 10MiB)")
}

// Merge fills the options whose flag was not set from cfg.
func (o *Options) Merge(fs *pflag.FlagSet, cfg *config.Config) {
	changed := func(name string) bool { return fs != nil && fs.Changed(name) }
	if !changed("exit-zero") {
		o.ExitZero = cfg.Output.ExitZero
	}
	if !changed("summary") {
		o.Summary = cfg.Output.Summary
	}
	if !changed("format") {
		o.Format = config.SetThen(cfg.Output.Format, string(report.FormatText))
	}
	if !changed("output") {
		o.Output = cfg.Output.File
	}
	if !changed("select") {
		o.Select = cfg.Analysis.Select
	}
	if !changed("disable") {
		o.Disable = cfg.Analysis.Disable
	}
	if !changed("exclude") {
		o.Exclude = cfg.Analysis.Exclude
	}
	if !changed("jobs") {
		o.Jobs = config.SetThen(cfg.Analysis.Jobs, 1)
	}
	if !changed("cache") {
		o.Cache = cfg.Cache.Path
	}
	if !changed("new-from-rev") {
		o.NewFromRev = cfg.Analysis.NewFromRev
	}
	if !changed("max-file-size") {
		o.MaxFileSize = cfg.Analysis.MaxFileSize
	}
}

// NewCheckCmd creates the check command. cfg is called once the root command
// has loaded the configuration.
func NewCheckCmd(cfg func() *config.Config) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:                   "check [flags] PATH...",
		Short:                 "Report blocking calls inside async functions",
		Example:               exampleCheckUsage,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Execute(cmd, cfg(), &opts, args)
		},
	}
	RegisterFlags(cmd.Flags(), &opts)
	return cmd
}

// Execute merges opts with cfg and runs the check over args, writing the
// report to the command output. A run with findings returns
// *errors.FindingsError unless ExitZero is set.
func Execute(cmd *cobra.Command, cfg *config.Config, opts *Options, args []string) error {
	opts.Merge(cmd.Flags(), cfg)
	lg := logger.NewLogger(cfg, "core-check")

	p, err := prepare(opts, args, lg)
	if err != nil {
		lg.Error("invalid arguments", "error", err)
		return errors.NewCommandError(fmt.Errorf("invalid arguments: %w", err), errors.ExitCodeUsage)
	}
	defer p.close()

	out := cmd.OutOrStdout()
	if opts.Output != "" {
		file, err := files.CreateOutputFile(opts.Output, reportNameTemplate+"."+string(p.format))
		if err != nil {
			return errors.NewCommandError(fmt.Errorf("failed to create report file: %w", err), errors.ExitCodeUsage)
		}
		defer file.Close()
		lg.Info("writing report", "path", file.Name())
		out = file
	}

	total, err := run(cmd.Context(), p, opts, out, lg)
	if err != nil {
		return err
	}
	if report.ExitStatus(total > 0, opts.ExitZero) != errors.ExitCodeOK {
		return &errors.FindingsError{Count: total}
	}
	return nil
}

type plan struct {
	registry *rules.Registry
	format   report.Format
	files    []string
	analyzer *analyzer.Analyzer
	closers  []io.Closer
}

func (p *plan) close() {
	for _, c := range p.closers {
		c.Close()
	}
}

func prepare(opts *Options, args []string, lg hclog.Logger) (*plan, error) {
	if err := validate(opts, args); err != nil {
		return nil, err
	}

	registry, err := rules.Default().Filter(opts.Select, opts.Disable)
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	wk, err := walker.New(lg.Named("walker"), opts.Exclude)
	if err != nil {
		return nil, err
	}

	p := &plan{registry: registry, format: format, files: wk.Expand(args)}
	analyzerOpts := []analyzer.Option{
		analyzer.WithWorkers(opts.Jobs),
		analyzer.WithMaxFileSize(opts.MaxFileSize),
	}

	if opts.Cache != "" {
		store, err := cache.Open(opts.Cache, registry, lg.Named("cache"))
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		p.closers = append(p.closers, store)
		analyzerOpts = append(analyzerOpts, analyzer.WithCache(store))
	}

	if opts.NewFromRev != "" {
		changes, err := git.NewFromRev(args[0], opts.NewFromRev, lg.Named("git"))
		if err != nil {
			p.close()
			return nil, err
		}
		analyzerOpts = append(analyzerOpts, analyzer.WithLineFilter(changes.Contains))
	}

	lg.Debug("check configured", "rules", registry.IDs(), "files", len(p.files), "jobs", opts.Jobs, "format", format)
	p.analyzer = analyzer.New(registry, lg.Named("analyzer"), analyzerOpts...)
	return p, nil
}

func run(ctx context.Context, p *plan, opts *Options, out io.Writer, lg hclog.Logger) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		agg      report.Aggregator
		writeErr error
	)
	stats, runErr := p.analyzer.Run(ctx, p.files, func(r analyzer.FileResult) {
		agg.Add(r.Findings...)
		if p.format.Streaming() && writeErr == nil {
			writeErr = report.WriteFindings(out, r.Findings)
		}
	})
	if runErr != nil {
		lg.Warn("analysis interrupted", "skipped", stats.Skipped, "reason", runErr)
	}
	if writeErr != nil {
		return 0, errors.NewCommandError(fmt.Errorf("failed to write report: %w", writeErr), errors.ExitCodeUsage)
	}

	findings := agg.Sorted()
	if err := render(out, p, opts, findings); err != nil {
		return 0, errors.NewCommandError(fmt.Errorf("failed to write report: %w", err), errors.ExitCodeUsage)
	}

	lg.Info("analysis finished",
		"files", humanize.Comma(int64(stats.Files)),
		"analyzed", humanize.Comma(int64(stats.Analyzed)),
		"failed", stats.Failed,
		"cache_hits", stats.CacheHits,
		"findings", humanize.Comma(int64(stats.Findings)))
	if runErr != nil {
		return len(findings), errors.NewCommandError(runErr, errors.ExitCodeUsage)
	}
	return len(findings), nil
}

func render(out io.Writer, p *plan, opts *Options, findings []analyzer.Finding) error {
	switch p.format {
	case report.FormatJSON:
		return report.WriteJSON(out, findings)
	case report.FormatSARIF:
		baseDir, _ := filepath.Abs(".")
		return report.WriteSARIF(out, findings, p.registry, report.SARIFOptions{
			ToolVersion: version.CoreVersion,
			BaseDir:     baseDir,
		})
	}

	if opts.Summary {
		if err := report.WriteSummary(out, findings, p.registry); err != nil {
			return err
		}
	}
	if len(findings) == 0 {
		_, err := fmt.Fprintln(out, report.NoIssuesLine)
		return err
	}
	return nil
}
