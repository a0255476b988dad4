package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	gosarif "github.com/owenrumney/go-sarif/v2/sarif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/blockscan/internal/analyzer"
	"github.com/scan-io-git/blockscan/internal/rules"
)

func rule(t *testing.T, id string) rules.Rule {
	t.Helper()
	r, ok := rules.Default().Lookup(id)
	require.True(t, ok, id)
	return r
}

func sampleFindings(t *testing.T) []analyzer.Finding {
	return []analyzer.Finding{
		{Path: "src/b.py", Line: 3, Column: 4, Function: "fetch", Rule: rule(t, rules.RuleRequestsGetID)},
		{Path: "src/b.py", Line: 4, Column: 4, Function: "fetch", Rule: rule(t, rules.RuleTimeSleepID)},
		{Path: "src/a.py", Line: 10, Column: 8, Function: "load", Rule: rule(t, rules.RuleTimeSleepID)},
	}
}

func TestWriteFindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFindings(&buf, sampleFindings(t)[:2]))

	want := "src/b.py:3:4: [ASYNC001] In 'async def fetch': requests.get() blocks the event loop\n" +
		"  Fix: Use aiohttp.ClientSession().get() or httpx.AsyncClient().get()\n" +
		"src/b.py:4:4: [ASYNC005] In 'async def fetch': time.sleep() blocks the event loop\n" +
		"  Fix: Use 'await asyncio.sleep(seconds)' instead\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleFindings(t), rules.Default()))

	want := `
--- Summary ---
Total issues: 3

By rule:
  ASYNC001: 1x  (requests.get() blocks the event loop)
  ASYNC005: 2x  (time.sleep() blocks the event loop)

By file:
    1  src/a.py
    2  src/b.py
`
	assert.Equal(t, want, buf.String())
}

func TestWriteSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, nil, rules.Default()))
	assert.Equal(t, "\nSummary: No blocking call issues found.\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSummaryPropagatesErrors(t *testing.T) {
	assert.EqualError(t, WriteSummary(failingWriter{}, sampleFindings(t), rules.Default()), "disk full")
	assert.EqualError(t, WriteFindings(failingWriter{}, sampleFindings(t)), "disk full")
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		findings bool
		exitZero bool
		want     int
	}{
		{false, false, 0},
		{false, true, 0},
		{true, false, 1},
		{true, true, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitStatus(tt.findings, tt.exitZero), "findings=%v exitZero=%v", tt.findings, tt.exitZero)
	}
}

func TestAggregatorSorted(t *testing.T) {
	var agg Aggregator
	var wg sync.WaitGroup
	for _, f := range sampleFindings(t) {
		wg.Add(1)
		go func(f analyzer.Finding) {
			defer wg.Done()
			agg.Add(f)
		}(f)
	}
	wg.Wait()

	sorted := agg.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, "src/a.py", sorted[0].Path)
	assert.Equal(t, 3, sorted[1].Line)
	assert.Equal(t, 4, sorted[2].Line)

	agg.Reset()
	assert.Zero(t, agg.Len())
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"text", "JSON", " sarif "} {
		_, err := ParseFormat(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.True(t, FormatText.Streaming())
	assert.False(t, FormatSARIF.Streaming())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleFindings(t)))

	var got struct {
		Findings []struct {
			Path     string `json:"path"`
			Line     int    `json:"line"`
			Column   int    `json:"column"`
			Function string `json:"function"`
			Rule     struct {
				ID  string `json:"id"`
				Fix string `json:"fix"`
			} `json:"rule"`
		} `json:"findings"`
		Summary struct {
			Total  int            `json:"total"`
			ByRule map[string]int `json:"by_rule"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Findings, 3)
	assert.Equal(t, "ASYNC001", got.Findings[0].Rule.ID)
	assert.Equal(t, "fetch", got.Findings[0].Function)
	assert.Equal(t, 3, got.Summary.Total)
	assert.Equal(t, map[string]int{"ASYNC001": 1, "ASYNC005": 2}, got.Summary.ByRule)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Contains(t, buf.String(), `"findings": []`)
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, sampleFindings(t), rules.Default(), SARIFOptions{ToolVersion: "1.2.3"}))

	var doc gosarif.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]

	assert.Equal(t, "blockscan", run.Tool.Driver.Name)
	assert.Len(t, run.Tool.Driver.Rules, rules.Default().Len())
	require.Len(t, run.Results, 3)

	first := run.Results[0]
	assert.Equal(t, "ASYNC001", *first.RuleID)
	region := first.Locations[0].PhysicalLocation.Region
	assert.Equal(t, 3, *region.StartLine)
	assert.Equal(t, 5, *region.StartColumn, "SARIF columns are 1-based")
	assert.Equal(t, "src/b.py", *first.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, "fetch", first.Properties["function"])

	require.NotNil(t, run.AutomationDetails)
	assert.NotEmpty(t, *run.AutomationDetails.GUID)
}

func TestArtifactURI(t *testing.T) {
	base := t.TempDir()
	assert.Equal(t, "pkg/mod.py", artifactURI(base+"/pkg/mod.py", base))
	assert.Equal(t, "other/mod.py", artifactURI("other/mod.py", ""))
}
