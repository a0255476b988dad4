package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	maxJobs     = 256
	maxDebounce = time.Minute
)

var (
	knownFormats   = []string{"text", "json", "sarif"}
	knownLogLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
)

// ValidateConfig checks if the configuration has valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML config: configuration object is nil")
	}
	if err := ValidateLoggerConfig(&cfg.Logger); err != nil {
		return fmt.Errorf("YAML config: logger directive is invalid: %w", err)
	}
	if err := ValidateAnalysisConfig(&cfg.Analysis); err != nil {
		return fmt.Errorf("YAML config: analysis directive is invalid: %w", err)
	}
	if err := ValidateOutputConfig(&cfg.Output); err != nil {
		return fmt.Errorf("YAML config: output directive is invalid: %w", err)
	}
	if err := validateDuration(cfg.Watch.Debounce, "debounce", maxDebounce); err != nil {
		return fmt.Errorf("YAML config: watch directive is invalid: %w", err)
	}
	return nil
}

// ValidateLoggerConfig checks the log level name.
func ValidateLoggerConfig(loggerConfig *Logger) error {
	if loggerConfig.Level == "" {
		return nil
	}
	if !contains(knownLogLevels, strings.ToUpper(loggerConfig.Level)) {
		return fmt.Errorf("unknown level %q, expected one of %v", loggerConfig.Level, knownLogLevels)
	}
	return nil
}

// ValidateAnalysisConfig checks worker bounds, size limits and exclude patterns.
func ValidateAnalysisConfig(analysis *Analysis) error {
	if analysis.Jobs < 0 || analysis.Jobs > maxJobs {
		return fmt.Errorf("jobs must be between 0 and %d: %d", maxJobs, analysis.Jobs)
	}
	if analysis.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size cannot be negative: %d", analysis.MaxFileSize)
	}
	for _, pattern := range analysis.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

// ValidateOutputConfig checks the report format.
func ValidateOutputConfig(output *Output) error {
	if output.Format == "" {
		return nil
	}
	if !contains(knownFormats, strings.ToLower(output.Format)) {
		return fmt.Errorf("unsupported format %q, expected one of %v", output.Format, knownFormats)
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %s: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%s duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
