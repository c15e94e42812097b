package engine

import "time"

// Config holds configuration for the query orchestrator.
type Config struct {
	// RetryBudget is the number of regeneration attempts allowed after
	// the first execution fails recoverably. Zero or negative means the
	// default of 2; use NoRetries to disable retries entirely.
	RetryBudget int

	// GenerationTimeout bounds a single call to the code-generation
	// collaborator. Zero means the default of 60s.
	GenerationTimeout time.Duration
}

// NoRetries disables the retry loop: every execution failure is
// terminal.
const NoRetries = -1

func (c Config) retryBudget() int {
	if c.RetryBudget == NoRetries {
		return 0
	}
	if c.RetryBudget <= 0 {
		return 2
	}
	return c.RetryBudget
}

func (c Config) generationTimeout() time.Duration {
	if c.GenerationTimeout <= 0 {
		return 60 * time.Second
	}
	return c.GenerationTimeout
}
