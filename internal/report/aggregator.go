package report

import (
	"sort"
	"sync"

	"github.com/scan-io-git/blockscan/internal/analyzer"
)

// Aggregator collects findings from one run. It is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	findings []analyzer.Finding
}

// Add appends findings.
func (a *Aggregator) Add(findings ...analyzer.Finding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = append(a.findings, findings...)
}

// Len returns the number of collected findings.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.findings)
}

// Sorted returns a copy of the findings ordered by file, line and column.
// Findings at the same position keep their insertion order.
func (a *Aggregator) Sorted() []analyzer.Finding {
	a.mu.Lock()
	out := append([]analyzer.Finding(nil), a.findings...)
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Position().Less(out[j].Position())
	})
	return out
}

// Reset drops all collected findings.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = nil
}
