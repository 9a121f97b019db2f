// Package poller waits for a remote resource to leave its processing state.
package poller

import (
	"context"
	"log/slog"
	"time"

	"ascendfit/internal/core"
)

// Defaults match the provider's typical video processing time
const (
	DefaultInterval    = time.Second
	DefaultMaxAttempts = 30
)

// FetchFunc returns the current state of the named resource
type FetchFunc func(ctx context.Context, name string) (*core.RemoteFile, error)

// Config controls the polling cadence
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between attempts; tests replace it to avoid real delays
	Sleep func(ctx context.Context, d time.Duration) error
}

// Poller polls at a fixed interval up to a fixed ceiling
type Poller struct {
	cfg Config
}

// New creates a poller, filling zero fields with defaults
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Poller{cfg: cfg}
}

// Poll calls fetch until the resource is active, failed, or MaxAttempts
// fetches have all reported processing. A fetch error ends polling at once.
// There is no sleep after the final attempt.
func (p *Poller) Poll(ctx context.Context, name string, fetch FetchFunc) (*core.ProcessingStatus, error) {
	start := time.Now()
	status := &core.ProcessingStatus{Name: name, State: core.StateProcessing}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return status, err
		}

		file, err := fetch(ctx, name)
		status.Attempts = attempt
		status.Elapsed = time.Since(start)
		if err != nil {
			return status, err
		}

		status.File = file
		status.State = core.NormalizeState(file.State)
		switch status.State {
		case core.StateActive:
			slog.Debug("remote file active", "file", name, "attempts", attempt, "elapsed", status.Elapsed)
			return status, nil
		case core.StateFailed:
			return status, core.NewProcessingFailedError(name, file.State)
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := p.cfg.Sleep(ctx, p.cfg.Interval); err != nil {
			return status, err
		}
	}

	slog.Warn("remote file still processing after poll ceiling",
		"file", name,
		"attempts", status.Attempts,
		"elapsed", status.Elapsed,
	)
	return status, core.NewProcessingTimeoutError(name, status.Attempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
