// Package analyzer finds blocking calls inside async function bodies.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/blockscan/internal/pytree"
	"github.com/scan-io-git/blockscan/internal/rules"
	"github.com/scan-io-git/blockscan/internal/scope"
)

// Finding is one rule match on one node.
type Finding struct {
	Path     string
	Line     int
	Column   int
	Function string
	Rule     rules.Rule
}

// Position returns the location of the matched node.
func (f Finding) Position() pytree.Position {
	return pytree.Position{Line: f.Line, Column: f.Column}
}

// FileError is a recoverable per-file failure.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Cache stores findings of a file keyed by a digest of its content and of the
// active rule set.
type Cache interface {
	Get(path, digest string) ([]Finding, bool)
	Put(path, digest string, findings []Finding) error
}

// LineFilter reports whether findings on the given line should be kept.
type LineFilter func(path string, line int) bool

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWorkers sets how many files Run analyzes at once.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithCache enables the result cache.
func WithCache(c Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithLineFilter drops findings on lines the filter rejects.
func WithLineFilter(f LineFilter) Option {
	return func(a *Analyzer) { a.lineFilter = f }
}

// WithMaxFileSize skips files larger than n bytes. Zero keeps
// pytree.DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxFileSize = n
		}
	}
}

// WithParser replaces the default parser.
func WithParser(p *pytree.Parser) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.parser = p
		}
	}
}

// Analyzer applies a rule registry to Python files. It holds no per-file
// state and is safe for concurrent use.
type Analyzer struct {
	registry    *rules.Registry
	parser      *pytree.Parser
	logger      hclog.Logger
	workers     int
	cache       Cache
	lineFilter  LineFilter
	maxFileSize int64
}

// New creates an Analyzer over registry.
func New(registry *rules.Registry, logger hclog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	a := &Analyzer{
		registry:    registry,
		logger:      logger,
		workers:     1,
		maxFileSize: pytree.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.parser == nil {
		a.parser = pytree.NewParser(pytree.WithMaxFileSize(a.maxFileSize))
	}
	return a
}

// Analyze reads and analyzes one file. Read failures are returned as
// *FileError and malformed source as *pytree.ParseError.
func (a *Analyzer) Analyze(ctx context.Context, path string) ([]Finding, error) {
	findings, _, err := a.analyzeFile(ctx, path)
	return findings, err
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string) ([]Finding, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, &FileError{Path: path, Op: "read", Err: err}
	}
	if info.Size() > a.maxFileSize {
		return nil, false, &FileError{Path: path, Op: "read", Err: fmt.Errorf("%w: %s > %s",
			pytree.ErrFileTooLarge, humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(a.maxFileSize)))}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, false, &FileError{Path: path, Op: "read", Err: err}
	}

	var digest string
	if a.cache != nil {
		digest = a.digest(src)
		if cached, ok := a.cache.Get(path, digest); ok {
			a.logger.Debug("cache hit", "path", path)
			return a.filterLines(cached), true, nil
		}
	}

	findings, err := a.analyzeSource(ctx, path, src)
	if err != nil {
		return nil, false, err
	}

	if a.cache != nil {
		if err := a.cache.Put(path, digest, findings); err != nil {
			a.logger.Warn("failed to store results in cache", "path", path, "reason", err)
		}
	}
	return a.filterLines(findings), false, nil
}

// AnalyzeSource analyzes src as if it were the content of path.
func (a *Analyzer) AnalyzeSource(ctx context.Context, path string, src []byte) ([]Finding, error) {
	findings, err := a.analyzeSource(ctx, path, src)
	if err != nil {
		return nil, err
	}
	return a.filterLines(findings), nil
}

func (a *Analyzer) analyzeSource(ctx context.Context, path string, src []byte) ([]Finding, error) {
	tree, err := a.parser.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeTree(tree), nil
}

// AnalyzeTree runs every rule over every async function of tree.
// Findings are ordered by position, ties keep registry order.
// Matches silenced by an inline directive are dropped.
func (a *Analyzer) AnalyzeTree(tree *pytree.Tree) []Finding {
	registered := a.registry.Rules()
	directives := parseDirectives(tree.Comments)

	var findings []Finding
	for _, fn := range tree.AsyncFunctions() {
		s := scope.Resolve(tree, fn)
		tree.Walk(fn, func(n *pytree.Node) bool {
			if s.Excluded.Has(n.ID) {
				return false
			}
			for _, rule := range registered {
				if !rule.Matches(n) {
					continue
				}
				if directives.suppresses(n.Pos.Line, rule.ID()) {
					a.logger.Trace("finding suppressed", "path", tree.Path, "line", n.Pos.Line, "rule", rule.ID())
					continue
				}
				findings = append(findings, Finding{
					Path:     tree.Path,
					Line:     n.Pos.Line,
					Column:   n.Pos.Column,
					Function: s.Name,
					Rule:     rule,
				})
			}
			return true
		})
	}

	order := make(map[string]int, len(registered))
	for i, rule := range registered {
		order[rule.ID()] = i
	}
	sort.SliceStable(findings, func(i, j int) bool {
		pi, pj := findings[i].Position(), findings[j].Position()
		if pi != pj {
			return pi.Less(pj)
		}
		return order[findings[i].Rule.ID()] < order[findings[j].Rule.ID()]
	})
	return findings
}

func (a *Analyzer) filterLines(findings []Finding) []Finding {
	if a.lineFilter == nil {
		return findings
	}
	kept := findings[:0:0]
	for _, f := range findings {
		if a.lineFilter(f.Path, f.Line) {
			kept = append(kept, f)
		}
	}
	return kept
}

// digest keys the cache on the active rule set and the file content.
func (a *Analyzer) digest(src []byte) string {
	h := sha256.New()
	h.Write([]byte(a.registry.Fingerprint()))
	h.Write([]byte{0})
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}
