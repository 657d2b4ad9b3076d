package main

import (
	"fmt"
	"strconv"
)

// parseIntParam reads a positive integer query parameter, returning def when
// it is absent and capping it at max.
func parseIntParam(value string, def, max int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive integer, got %q", value)
	}
	if n > max {
		n = max
	}
	return n, nil
}
