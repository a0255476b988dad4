package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeOK},
		{"findings", &FindingsError{Count: 3}, ExitCodeFindings},
		{"wrapped findings", fmt.Errorf("run: %w", &FindingsError{Count: 1}), ExitCodeFindings},
		{"usage", NewUsageError("no paths given"), ExitCodeUsage},
		{"custom code", NewCommandError(errors.New("boom"), 7), 7},
		{"plain error", errors.New("unexpected"), ExitCodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestCommandErrorUnwraps(t *testing.T) {
	err := NewCommandError(fmt.Errorf("config: %w", fs.ErrNotExist), ExitCodeUsage)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "config: file does not exist", err.Error())
}
