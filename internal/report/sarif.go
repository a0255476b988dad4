package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/blockscan/internal/analyzer"
	"github.com/scan-io-git/blockscan/internal/rules"
)

const (
	toolName = "blockscan"
	toolURI  = "https://github.com/scan-io-git/blockscan"
)

// SARIFOptions tunes the SARIF document.
type SARIFOptions struct {
	ToolVersion string
	// BaseDir, when set, makes artifact URIs relative to it.
	BaseDir string
}

// BuildSARIF creates a SARIF 2.1.0 report with one run. Every rule of the
// registry is declared, columns are converted to SARIF's 1-based convention.
func BuildSARIF(findings []analyzer.Finding, registry *rules.Registry, opts SARIFOptions) (*sarif.Report, error) {
	reportSarif, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	if opts.ToolVersion != "" {
		version := opts.ToolVersion
		run.Tool.Driver.SemanticVersion = &version
	}
	guid := uuid.New().String()
	run.AutomationDetails = &sarif.RunAutomationDetails{GUID: &guid}

	for _, rule := range registry.Rules() {
		short, fix := rule.Description(), rule.Fix()
		descriptor := run.AddRule(rule.ID()).
			WithDescription(rule.Description()).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "warning"})
		descriptor.ShortDescription = &sarif.MultiformatMessageString{Text: &short}
		descriptor.Help = &sarif.MultiformatMessageString{Text: &fix}
	}

	for _, f := range findings {
		line, column := f.Line, f.Column+1
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(artifactURI(f.Path, opts.BaseDir))).
				WithRegion(&sarif.Region{StartLine: &line, StartColumn: &column}),
		)

		result := sarif.NewRuleResult(f.Rule.ID()).
			WithMessage(sarif.NewTextMessage(fmt.Sprintf("In 'async def %s': %s. Fix: %s", f.Function, f.Rule.Description(), f.Rule.Fix()))).
			WithLevel("warning").
			WithLocations([]*sarif.Location{location})
		result.PropertyBag = *sarif.NewPropertyBag()
		result.Add("function", f.Function)
		run.AddResult(result)
	}

	reportSarif.AddRun(run)
	return reportSarif, nil
}

// WriteSARIF renders findings as an indented SARIF document.
func WriteSARIF(w io.Writer, findings []analyzer.Finding, registry *rules.Registry, opts SARIFOptions) error {
	reportSarif, err := BuildSARIF(findings, registry, opts)
	if err != nil {
		return err
	}
	return reportSarif.PrettyWrite(w)
}

func artifactURI(path, baseDir string) string {
	if baseDir != "" {
		if abs, err := filepath.Abs(path); err == nil {
			if rel, err := filepath.Rel(baseDir, abs); err == nil && filepath.IsLocal(rel) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(path)
}
