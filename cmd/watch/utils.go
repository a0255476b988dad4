package watch

import (
	"fmt"
	"time"
)

const maxDebounce = time.Minute

func parseDebounce(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", s, err)
	}
	if d <= 0 || d > maxDebounce {
		return 0, fmt.Errorf("debounce must be between 0 and %s, got %s", maxDebounce, d)
	}
	return d, nil
}
