package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/blockscan/internal/logger"
	"github.com/scan-io-git/blockscan/internal/report"
	"github.com/scan-io-git/blockscan/internal/rules"
)

const (
	offending = "import time\n\nasync def handler():\n    time.sleep(1)\n"
	clean     = "import asyncio\n\nasync def handler():\n    await asyncio.sleep(1)\n"
)

func setup(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	prev := logger.Output
	logger.Output = io.Discard
	t.Cleanup(func() { logger.Output = prev })

	require.NoError(t, os.MkdirAll("proj", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("proj", "bad.py"), []byte(offending), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("proj", "good.py"), []byte(clean), 0o644))
	return "proj"
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := ExecuteArgs(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func expectedFinding(t *testing.T) string {
	t.Helper()
	rule, ok := rules.Default().Lookup(rules.RuleTimeSleepID)
	require.True(t, ok)
	return fmt.Sprintf("%s:4:4: [ASYNC005] In 'async def handler': %s\n  Fix: %s\n",
		filepath.Join("proj", "bad.py"), rule.Description(), rule.Fix())
}

func TestCheckFindingsWithSummary(t *testing.T) {
	dir := setup(t)
	rule, _ := rules.Default().Lookup(rules.RuleTimeSleepID)

	code, stdout, stderr := execute("--summary", dir)
	assert.Equal(t, 1, code)
	assert.Empty(t, stderr)

	want := expectedFinding(t) +
		"\n--- Summary ---\n" +
		"Total issues: 1\n" +
		"\nBy rule:\n" +
		fmt.Sprintf("  ASYNC005: 1x  (%s)\n", rule.Description()) +
		"\nBy file:\n" +
		fmt.Sprintf("    1  %s\n", filepath.Join("proj", "bad.py"))
	assert.Equal(t, want, stdout)
}

func TestCheckExitZero(t *testing.T) {
	dir := setup(t)

	code, stdout, _ := execute("--exit-zero", dir)
	assert.Equal(t, 0, code)
	assert.Equal(t, expectedFinding(t), stdout)
}

func TestCheckCleanFile(t *testing.T) {
	dir := setup(t)

	code, stdout, _ := execute(filepath.Join(dir, "good.py"))
	assert.Equal(t, 0, code)
	assert.Equal(t, report.NoIssuesLine+"\n", stdout)

	code, stdout, _ = execute("--summary", filepath.Join(dir, "good.py"))
	assert.Equal(t, 0, code)
	assert.Equal(t, "\nSummary: No blocking call issues found.\n"+report.NoIssuesLine+"\n", stdout)
}

func TestCheckUsageErrors(t *testing.T) {
	dir := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no paths", args: nil},
		{name: "unknown rule", args: []string{"--select", "ASYNC999", dir}},
		{name: "unknown format", args: []string{"--format", "xml", dir}},
		{name: "bad jobs", args: []string{"--jobs", "0", dir}},
		{name: "bad exclude", args: []string{"--exclude", "[", dir}},
		{name: "unknown flag", args: []string{"--nope", dir}},
		{name: "missing config", args: []string{"--config", "missing.yml", dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(tt.args...)
			assert.Equal(t, 2, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestCheckDisableRule(t *testing.T) {
	dir := setup(t)

	code, stdout, _ := execute("--disable", "ASYNC005", dir)
	assert.Equal(t, 0, code)
	assert.Equal(t, report.NoIssuesLine+"\n", stdout)
}

func TestCheckConfigFile(t *testing.T) {
	dir := setup(t)
	require.NoError(t, os.WriteFile(".blockscan.yml", []byte("output:\n  exit_zero: true\nanalysis:\n  jobs: 2\n"), 0o644))

	code, stdout, _ := execute(dir)
	assert.Equal(t, 0, code)
	assert.Equal(t, expectedFinding(t), stdout)
}

func TestCheckJSONOutputFile(t *testing.T) {
	dir := setup(t)

	code, stdout, _ := execute("--format", "json", "--output", "out/report.json", "--cache", "cache.db", dir)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(filepath.Join("out", "report.json"))
	require.NoError(t, err)
	var doc struct {
		Findings []struct {
			Path string `json:"path"`
			Line int    `json:"line"`
		} `json:"findings"`
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Findings, 1)
	assert.Equal(t, 4, doc.Findings[0].Line)
	assert.Equal(t, 1, doc.Summary.Total)

	_, err = os.Stat("cache.db")
	assert.NoError(t, err)
}

func TestRulesCommand(t *testing.T) {
	setup(t)

	code, stdout, _ := execute("rules", "--select", "ASYNC001,ASYNC005")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "ASYNC001")
	assert.Contains(t, stdout, "ASYNC005")
	assert.NotContains(t, stdout, "ASYNC006")
}

func TestVersionCommand(t *testing.T) {
	setup(t)

	code, stdout, _ := execute("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Core Version:")
	assert.Contains(t, stdout, "Rules: 9")
}
