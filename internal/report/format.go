package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/scan-io-git/blockscan/internal/analyzer"
)

// Format selects how findings are rendered.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatSARIF}

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q, expected one of %v", s, Formats)
}

// Streaming reports whether findings are written file by file as they are
// produced. Other formats are rendered once at the end of a run.
func (f Format) Streaming() bool {
	return f == FormatText
}

type jsonRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
}

type jsonFinding struct {
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Function string   `json:"function"`
	Rule     jsonRule `json:"rule"`
}

type jsonReport struct {
	Findings []jsonFinding `json:"findings"`
	Summary  jsonSummary   `json:"summary"`
}

type jsonSummary struct {
	Total  int            `json:"total"`
	ByRule map[string]int `json:"by_rule"`
	ByFile map[string]int `json:"by_file"`
}

// WriteJSON writes findings and their counts as one JSON document.
func WriteJSON(w io.Writer, findings []analyzer.Finding) error {
	out := jsonReport{Findings: make([]jsonFinding, 0, len(findings))}
	for _, f := range findings {
		out.Findings = append(out.Findings, jsonFinding{
			Path:     f.Path,
			Line:     f.Line,
			Column:   f.Column,
			Function: f.Function,
			Rule: jsonRule{
				ID:          f.Rule.ID(),
				Description: f.Rule.Description(),
				Fix:         f.Rule.Fix(),
			},
		})
	}
	c := Count(findings)
	out.Summary = jsonSummary{Total: c.Total, ByRule: c.ByRule, ByFile: c.ByFile}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
