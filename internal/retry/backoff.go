package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// Delay computes the wait before the next attempt:
//
//	clamp(factor^(attempt-1) * minInterval, minInterval, maxInterval)
//
// attempt is the 1-based count of retries already made. A result too large to
// represent degrades to maxInterval.
func Delay(attempt int, factor float64, minInterval, maxInterval time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(minInterval) * math.Pow(factor, float64(attempt-1))
	return clamp(raw, minInterval, maxInterval)
}

func clamp(raw float64, minInterval, maxInterval time.Duration) time.Duration {
	switch {
	case math.IsNaN(raw) || math.IsInf(raw, 0) || raw >= float64(maxInterval):
		return maxInterval
	case raw <= float64(minInterval):
		return minInterval
	}
	return time.Duration(raw)
}

// Config holds the parameters of a retry policy. It is immutable once built
// and may be shared by any number of concurrent invocations.
type Config struct {
	// maxRetryCount is the total number of attempts, including the first
	maxRetryCount int

	// minInterval is the wait before the first retry
	minInterval time.Duration

	// maxInterval caps the wait between attempts
	maxInterval time.Duration

	// factor is the multiplier applied per retry (>= 1)
	factor float64

	// jitter adds +/- randomness as a fraction of the delay (0 disables it)
	jitter float64

	// jitterFunc provides random values [0, 1) for jitter calculation
	jitterFunc func() float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithMinInterval sets the wait before the first retry.
func WithMinInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.minInterval = d
	}
}

// WithMaxInterval sets the maximum wait between retries.
func WithMaxInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.maxInterval = d
	}
}

// WithBackoffFactor sets the factor by which the wait grows per retry.
func WithBackoffFactor(f float64) ConfigOption {
	return func(c *Config) {
		c.factor = f
	}
}

// WithJitter sets the jitter fraction (0.0-1.0). The jittered delay is still
// kept within [minInterval, maxInterval].
func WithJitter(j float64) ConfigOption {
	return func(c *Config) {
		c.jitter = j
	}
}

// WithJitterFunc sets a custom function for generating random jitter values.
func WithJitterFunc(f func() float64) ConfigOption {
	return func(c *Config) {
		c.jitterFunc = f
	}
}

// NewConfig creates a retry configuration with the command-stage defaults.
//
// Example:
//
//	cfg := retry.NewConfig(5,
//	    retry.WithMinInterval(200*time.Millisecond),
//	    retry.WithMaxInterval(10*time.Second),
//	)
func NewConfig(maxRetryCount int, opts ...ConfigOption) *Config {
	c := &Config{
		maxRetryCount: maxRetryCount,
		minInterval:   mssqlretry.DefaultCommandMinInterval,
		maxInterval:   mssqlretry.DefaultCommandMaxInterval,
		factor:        mssqlretry.DefaultBackoffFactor,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Validate checks the invariants a policy relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.maxRetryCount < 0 {
		errs = append(errs, fmt.Errorf("max retry count %d cannot be negative: %w", c.maxRetryCount, mssqlretry.ErrInvalidConfig))
	}
	if c.minInterval <= 0 {
		errs = append(errs, fmt.Errorf("min interval %v must be positive: %w", c.minInterval, mssqlretry.ErrInvalidConfig))
	}
	if c.maxInterval < c.minInterval {
		errs = append(errs, fmt.Errorf("max interval %v is below min interval %v: %w", c.maxInterval, c.minInterval, mssqlretry.ErrInvalidConfig))
	}
	if math.IsNaN(c.factor) || c.factor < 1 {
		errs = append(errs, fmt.Errorf("backoff factor %v must be >= 1: %w", c.factor, mssqlretry.ErrInvalidConfig))
	}
	if c.jitter < 0 || c.jitter > 1 {
		errs = append(errs, fmt.Errorf("jitter %v must be within [0, 1]: %w", c.jitter, mssqlretry.ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// NextDelay returns the wait after the given 1-based retry count.
func (c *Config) NextDelay(attempt int) time.Duration {
	d := Delay(attempt, c.factor, c.minInterval, c.maxInterval)
	if c.jitter <= 0 {
		return d
	}

	jitterFunc := c.jitterFunc
	if jitterFunc == nil {
		jitterFunc = rand.Float64
	}

	// Map [0,1) to [-1,1): jitter=0.1, random=0.75 => delay * 1.05
	randomOffset := (jitterFunc() - 0.5) * 2.0
	return clamp(float64(d)*(1.0+c.jitter*randomOffset), c.minInterval, c.maxInterval)
}

// MaxRetryCount returns the total number of attempts allowed.
func (c *Config) MaxRetryCount() int {
	return c.maxRetryCount
}

// MinInterval returns the wait before the first retry.
func (c *Config) MinInterval() time.Duration {
	return c.minInterval
}

// MaxInterval returns the maximum wait between retries.
func (c *Config) MaxInterval() time.Duration {
	return c.maxInterval
}

// BackoffFactor returns the per-retry multiplier.
func (c *Config) BackoffFactor() float64 {
	return c.factor
}

// Jitter returns the jitter fraction.
func (c *Config) Jitter() float64 {
	return c.jitter
}
