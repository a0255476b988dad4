package analyzer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/scan-io-git/blockscan/internal/pytree"
)

// FileResult is the outcome of analyzing one file in a batch.
type FileResult struct {
	Path     string
	Findings []Finding
	Err      error
	Cached   bool
	Skipped  bool // never started because the context was cancelled
}

// Stats summarizes a batch.
type Stats struct {
	Files     int
	Analyzed  int
	Failed    int
	Skipped   int
	CacheHits int
	Findings  int
}

func (s *Stats) add(r FileResult) {
	s.Files++
	switch {
	case r.Skipped:
		s.Skipped++
	case r.Err != nil:
		s.Failed++
	default:
		s.Analyzed++
		s.Findings += len(r.Findings)
		if r.Cached {
			s.CacheHits++
		}
	}
}

// Run analyzes paths with up to the configured number of workers and hands
// every result to sink in the order of paths. A file that fails is reported
// through FileResult.Err and does not stop the batch. Once ctx is done no
// new file is started; the returned error is then ctx.Err().
func (a *Analyzer) Run(ctx context.Context, paths []string, sink func(FileResult)) (Stats, error) {
	results := make([]FileResult, len(paths))
	done := make([]chan struct{}, len(paths))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g := new(errgroup.Group)
	g.SetLimit(a.workers)

	go func() {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(paths); j++ {
					results[j] = FileResult{Path: paths[j], Err: err, Skipped: true}
					close(done[j])
				}
				return
			}
			g.Go(func() error {
				defer close(done[i])
				results[i] = a.runOne(ctx, path)
				return nil
			})
		}
	}()

	var stats Stats
	for i := range paths {
		<-done[i]
		stats.add(results[i])
		if sink != nil {
			sink(results[i])
		}
	}
	_ = g.Wait()

	a.logger.Debug("batch finished",
		"files", stats.Files, "analyzed", stats.Analyzed, "failed", stats.Failed,
		"cache_hits", stats.CacheHits, "findings", stats.Findings)
	return stats, ctx.Err()
}

func (a *Analyzer) runOne(ctx context.Context, path string) FileResult {
	findings, cached, err := a.analyzeFile(ctx, path)
	if err != nil {
		var (
			perr *pytree.ParseError
			ferr *FileError
		)
		switch {
		case errors.As(err, &perr):
			a.logger.Error("syntax error, skipping file", "path", path, "line", perr.Line, "column", perr.Column, "reason", perr.Msg)
		case errors.As(err, &ferr):
			a.logger.Error("cannot read file, skipping", "path", path, "reason", ferr.Err)
		default:
			a.logger.Error("failed to analyze file, skipping", "path", path, "reason", err)
		}
		return FileResult{Path: path, Err: err}
	}
	a.logger.Debug("file analyzed", "path", path, "findings", len(findings), "cached", cached)
	return FileResult{Path: path, Findings: findings, Cached: cached}
}
