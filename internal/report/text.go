// Package report renders findings and computes the process exit status.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/scan-io-git/blockscan/internal/analyzer"
	"github.com/scan-io-git/blockscan/internal/rules"
)

// NoIssuesLine is printed last when a run produced no findings.
const NoIssuesLine = "No blocking call issues detected."

// WriteFindings writes one diagnostic line and one remediation line per finding,
// in the order given.
func WriteFindings(w io.Writer, findings []analyzer.Finding) error {
	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "%s:%d:%d: [%s] In 'async def %s': %s\n  Fix: %s\n",
			f.Path, f.Line, f.Column, f.Rule.ID(), f.Function, f.Rule.Description(), f.Rule.Fix()); err != nil {
			return err
		}
	}
	return nil
}

// Counts groups findings by rule id and by file.
type Counts struct {
	Total  int
	ByRule map[string]int
	ByFile map[string]int
}

// Count aggregates findings.
func Count(findings []analyzer.Finding) Counts {
	c := Counts{
		Total:  len(findings),
		ByRule: make(map[string]int),
		ByFile: make(map[string]int),
	}
	for _, f := range findings {
		c.ByRule[f.Rule.ID()]++
		c.ByFile[f.Path]++
	}
	return c
}

// WriteSummary writes the totals by rule and by file, each sorted by key.
// Rule descriptions are looked up in registry.
func WriteSummary(w io.Writer, findings []analyzer.Finding, registry *rules.Registry) error {
	if len(findings) == 0 {
		_, err := fmt.Fprintln(w, "\nSummary: No blocking call issues found.")
		return err
	}

	c := Count(findings)
	ew := &errWriter{w: w}
	ew.printf("\n--- Summary ---\n")
	ew.printf("Total issues: %d\n", c.Total)
	ew.printf("\nBy rule:\n")
	for _, id := range sortedKeys(c.ByRule) {
		description := ""
		if rule, ok := registry.Lookup(id); ok {
			description = rule.Description()
		}
		ew.printf("  %s: %dx  (%s)\n", id, c.ByRule[id], description)
	}
	ew.printf("\nBy file:\n")
	for _, path := range sortedKeys(c.ByFile) {
		ew.printf("  %3d  %s\n", c.ByFile[path], path)
	}
	return ew.err
}

// ExitStatus is 1 when findings exist and exitZero is not set, 0 otherwise.
func ExitStatus(findingsExist, exitZero bool) int {
	if findingsExist && !exitZero {
		return 1
	}
	return 0
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
