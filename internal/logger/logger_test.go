package logger

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/blockscan/internal/config"
)

func TestDetermineLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logger.Level = "debug"

	t.Setenv(LogLevelEnv, "")
	assert.Equal(t, hclog.Debug, determineLogLevel(cfg))
	assert.Equal(t, hclog.Info, determineLogLevel(nil))

	t.Setenv(LogLevelEnv, "error")
	assert.Equal(t, hclog.Error, determineLogLevel(cfg))
}

func TestNewLoggerWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })
	t.Setenv(LogLevelEnv, "")

	cfg := config.Default()
	log := NewLogger(cfg, "core-check")
	log.Debug("hidden")
	log.Warn("skipping file", "path", "a.py")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "core-check: skipping file")
	assert.Contains(t, buf.String(), "path=a.py")
}

func TestParseLogLevelFallsBackToInfo(t *testing.T) {
	prev := Output
	Output = &bytes.Buffer{}
	t.Cleanup(func() { Output = prev })

	assert.Equal(t, hclog.Info, parseLogLevel("LOUD"))
	assert.Equal(t, hclog.Trace, parseLogLevel("TRACE"))
}
