package sync

import "time"

// Config carries the engine tunables. Defaults match what the env
// layer seeds when a variable is unset.
type Config struct {
	// FullSyncStaleness is how old the last full sync may get before an
	// incremental request is promoted to a full run.
	FullSyncStaleness time.Duration `env:"SYNC_FULL_STALENESS" envDefault:"24h"`

	// ConsecutiveErrorCeiling promotes the next run to a full sync once
	// this many runs in a row have failed.
	ConsecutiveErrorCeiling int `env:"SYNC_ERROR_CEILING" envDefault:"3"`

	BackoffBase time.Duration `env:"SYNC_BACKOFF_BASE" envDefault:"30s"`
	BackoffMax  time.Duration `env:"SYNC_BACKOFF_MAX" envDefault:"1h"`

	PageSize   int           `env:"SYNC_PAGE_SIZE" envDefault:"100"`
	RunTimeout time.Duration `env:"SYNC_RUN_TIMEOUT" envDefault:"10m"`
}

func DefaultConfig() Config {
	return Config{
		FullSyncStaleness:       24 * time.Hour,
		ConsecutiveErrorCeiling: 3,
		BackoffBase:             30 * time.Second,
		BackoffMax:              time.Hour,
		PageSize:                100,
		RunTimeout:              10 * time.Minute,
	}
}

func (c Config) normalized() Config {
	if c.FullSyncStaleness <= 0 {
		c.FullSyncStaleness = 24 * time.Hour
	}
	if c.ConsecutiveErrorCeiling <= 0 {
		c.ConsecutiveErrorCeiling = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Hour
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
	return c
}

// backoffFor computes the wait before the next attempt after the given
// consecutive failure count. A server retry hint overrides the computed
// delay when it is longer.
func (c Config) backoffFor(consecutiveErrors int, retryAfter time.Duration) time.Duration {
	if consecutiveErrors < 1 {
		consecutiveErrors = 1
	}
	delay := c.BackoffBase
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay >= c.BackoffMax {
			delay = c.BackoffMax
			break
		}
	}
	if delay > c.BackoffMax {
		delay = c.BackoffMax
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	return delay
}
