package orchestrator

import (
	"fmt"
	"log/slog"
	"time"
)

// Default session budgets.
const (
	DefaultMaxIterations = 5
	DefaultMaxCrawlDepth = 3
	DefaultFetchCap      = 10
	DefaultCallTimeout   = 60 * time.Second
)

// Budgets bound the work a session may do.
type Budgets struct {
	// MaxIterations is the number of evaluated rounds after which the
	// session stops unless the oracle already finished it.
	MaxIterations int
	// MaxCrawlDepth is the number of crawl drains after which the session stops.
	MaxCrawlDepth int
	// FetchCap limits search result pages fetched in one round.
	FetchCap int
	// CallTimeout bounds every call to an external collaborator.
	CallTimeout time.Duration
}

// DefaultBudgets returns the default session budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxIterations: DefaultMaxIterations,
		MaxCrawlDepth: DefaultMaxCrawlDepth,
		FetchCap:      DefaultFetchCap,
		CallTimeout:   DefaultCallTimeout,
	}
}

// Validate checks that every budget is usable.
func (b Budgets) Validate() error {
	if b.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", b.MaxIterations)
	}
	if b.MaxCrawlDepth < 0 {
		return fmt.Errorf("max crawl depth must not be negative, got %d", b.MaxCrawlDepth)
	}
	if b.FetchCap < 1 {
		return fmt.Errorf("fetch cap must be positive, got %d", b.FetchCap)
	}
	if b.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", b.CallTimeout)
	}
	return nil
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithBudgets replaces the default budgets.
func WithBudgets(b Budgets) Option {
	return func(o *Orchestrator) error {
		if err := b.Validate(); err != nil {
			return err
		}
		o.budgets = b
		return nil
	}
}

// WithMonitor installs a session observer.
func WithMonitor(m Monitor) Option {
	return func(o *Orchestrator) error {
		if m == nil {
			m = &noopMonitor{}
		}
		o.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}
