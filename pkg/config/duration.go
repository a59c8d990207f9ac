package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration reports an error unless d > 0.
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

// ValidateDurationRange reports an error unless lo <= d <= hi.
//
// Example:
//
//	if err := ValidateDurationRange(timeout, time.Second, 5*time.Minute); err != nil {
//	    return fmt.Errorf("probe timeout: %w", err)
//	}
func ValidateDurationRange(d, lo, hi time.Duration) error {
	if d < lo || d > hi {
		return fmt.Errorf("%v out of range [%v, %v]", d, lo, hi)
	}
	return nil
}
