package notifier

import (
	"log/slog"
	"sync/atomic"
	"time"

	"monitoring/internal/clock"
)

const defaultIntervalLength = 60 * time.Second

// Environment carries process-wide settings and collaborators shared by notifiers.
// Params: id sequence, clock, interval length, and delivery collaborators.
// Returns: engine context referenced (not copied) by every notifier.
type Environment struct {
	// IDs is the process-wide notification id sequence.
	IDs IDSequence
	// Clock supplies evaluation time.
	Clock clock.Clock
	// IntervalLength converts interval units into durations.
	IntervalLength time.Duration
	// SendRecoveryAnyways ignores notification period for recoveries.
	SendRecoveryAnyways bool
	// Dependencies authorizes notifications; nil authorizes everything.
	Dependencies DependencyAuthorizer
	// Macros expands messages; nil passes messages through.
	Macros Macros
	// Transport delivers notifications; nil makes every delivery fail.
	Transport Transport
	// Logger receives decision and delivery logs.
	Logger *slog.Logger

	notificationsDisabled atomic.Bool
}

// NewEnvironment builds environment with defaults for missing collaborators.
// Params: optional clock and logger (nil selects real clock and discard logger).
// Returns: environment with notifications globally enabled and a fresh id sequence.
func NewEnvironment(clk clock.Clock, logger *slog.Logger) *Environment {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Environment{
		IDs:            NewSequence(),
		Clock:          clk,
		IntervalLength: defaultIntervalLength,
		Logger:         logger,
	}
}

// NotificationsEnabled reports global notification switch.
func (e *Environment) NotificationsEnabled() bool {
	return !e.notificationsDisabled.Load()
}

// SetNotificationsEnabled flips global notification switch.
// Params: desired state.
// Returns: none.
func (e *Environment) SetNotificationsEnabled(enabled bool) {
	e.notificationsDisabled.Store(!enabled)
}

func (e *Environment) now() time.Time {
	return e.Clock.Now()
}

func (e *Environment) intervals(units uint32) time.Duration {
	length := e.IntervalLength
	if length <= 0 {
		length = defaultIntervalLength
	}
	return time.Duration(units) * length
}

func (e *Environment) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
