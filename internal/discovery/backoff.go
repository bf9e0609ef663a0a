package discovery

import (
	"math"
	"time"
)

// RetryConfig bounds how hard the ledger tries to persist a sighting.
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig retries three times, starting at 50ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     3,
		InitialDelay: 50 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     time.Second,
	}
}

// nextBackoffDelay returns the wait after failed attempt N (1-based).
func nextBackoffDelay(cfg RetryConfig, attempt int) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
