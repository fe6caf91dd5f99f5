// Package roomkey derives and validates canonical two-party room keys.
package roomkey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var keyPattern = regexp.MustCompile(`^[0-9]+_[0-9]+$`)

// Canonical returns the order-independent room key for a user pair.
// The lower identifier always comes first, so (a,b) and (b,a) map to the
// same key.
func Canonical(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// Parse splits a room key into its participant user IDs, lower ID first.
// Keys must be in canonical "low_high" form with two distinct positive
// IDs.
func Parse(key string) (int64, int64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, 0, fmt.Errorf("room key is required")
	}
	if !keyPattern.MatchString(key) {
		return 0, 0, fmt.Errorf("room key %q does not match required format", key)
	}

	parts := strings.SplitN(key, "_", 2)
	low, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse room key user id: %w", err)
	}
	high, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse room key user id: %w", err)
	}
	if low <= 0 || high <= 0 {
		return 0, 0, fmt.Errorf("room key user ids must be positive")
	}
	if low == high {
		return 0, 0, fmt.Errorf("room key must name two distinct users")
	}
	if low > high {
		return 0, 0, fmt.Errorf("room key %q is not in canonical order", key)
	}
	return low, high, nil
}
