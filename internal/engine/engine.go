package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"monitoring/internal/clock"
	"monitoring/internal/command"
	"monitoring/internal/notifier"
	"monitoring/internal/objects"
	"monitoring/internal/retention"
)

const (
	defaultTickInterval      = time.Second
	defaultSaveInterval      = time.Minute
	defaultFlapLowThreshold  = 20.0
	defaultFlapHighThreshold = 30.0
	shutdownSaveTimeout      = 5 * time.Second
)

var (
	// ErrUnknownObject indicates a command or check result addressed to an undefined host or service.
	ErrUnknownObject = errors.New("unknown monitored object")
	// ErrRejected indicates a well-formed command that cannot be applied in the current state.
	ErrRejected = errors.New("command rejected")
)

// Observer receives engine outcomes; *metrics.Metrics satisfies it.
type Observer interface {
	ObserveNotification(category notifier.Category, sent bool)
	ObserveCommand(name string, err error)
	ObserveRetentionSave(err error)
	SetNotifierStates(notifiers []*notifier.Notifier)
}

type nopObserver struct{}

func (nopObserver) ObserveNotification(notifier.Category, bool) {}

func (nopObserver) ObserveCommand(string, error) {}

func (nopObserver) ObserveRetentionSave(error) {}

func (nopObserver) SetNotifierStates([]*notifier.Notifier) {}

// Options configures engine timing, flap thresholds, and collaborators.
// Params: tick and retention save intervals, flap thresholds (percent), optional
// retention manager, observer, and logger.
// Returns: input for New; zero values select defaults.
type Options struct {
	TickInterval      time.Duration
	SaveInterval      time.Duration
	FlapLowThreshold  float64
	FlapHighThreshold float64
	Retention         *retention.Manager
	Observer          Observer
	Logger            *slog.Logger
}

// Engine is the single owner of every notifier.
// Params: object registry, shared environment, command and check-result queues.
// Returns: state machine driven by Run; methods are not safe for concurrent use.
type Engine struct {
	registry     *objects.Registry
	env          *notifier.Environment
	clock        clock.Clock
	commands     *command.Queue
	checkResults *command.Queue
	retention    *retention.Manager
	observer     Observer
	logger       *slog.Logger

	tickInterval time.Duration
	saveInterval time.Duration
	flapLow      float64
	flapHigh     float64
	lastSave     time.Time
	flaps        map[string]*flapHistory
	downtimes    map[uint64]*downtime
	nextDowntime uint64
}

// New creates engine over a built and resolved registry.
// Params: registry, environment shared with its notifiers, command queue,
// check-result queue, and options.
// Returns: engine ready for Restore and Run.
func New(registry *objects.Registry, env *notifier.Environment, commands, checkResults *command.Queue, opts Options) *Engine {
	e := &Engine{
		registry:     registry,
		env:          env,
		clock:        env.Clock,
		commands:     commands,
		checkResults: checkResults,
		retention:    opts.Retention,
		observer:     opts.Observer,
		logger:       opts.Logger,
		tickInterval: opts.TickInterval,
		saveInterval: opts.SaveInterval,
		flapLow:      opts.FlapLowThreshold,
		flapHigh:     opts.FlapHighThreshold,
		flaps:        make(map[string]*flapHistory),
		downtimes:    make(map[uint64]*downtime),
		nextDowntime: 1,
	}
	if e.clock == nil {
		e.clock = clock.RealClock{}
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	e.logger = e.logger.With("component", "engine")
	if e.tickInterval <= 0 {
		e.tickInterval = defaultTickInterval
	}
	if e.saveInterval <= 0 {
		e.saveInterval = defaultSaveInterval
	}
	if e.flapLow == 0 && e.flapHigh == 0 {
		e.flapLow, e.flapHigh = defaultFlapLowThreshold, defaultFlapHighThreshold
	}
	e.lastSave = e.clock.Now()
	return e
}

// Run drains both queues and the tick on the calling goroutine until ctx is done.
// Params: lifecycle context.
// Returns: nil after the final retention save; save failures are only logged.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.Info("engine started", "notifiers", len(e.registry.Notifiers()), "tick", e.tickInterval.String())
	// A dequeued command always runs to completion; deliveries carry their own deadline.
	execCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			e.drain(execCtx)
			saveCtx, cancel := context.WithTimeout(execCtx, shutdownSaveTimeout)
			e.save(saveCtx)
			cancel()
			e.logger.Info("engine stopped")
			return nil
		case cmd := <-e.checkResults.C():
			_ = e.Execute(execCtx, cmd)
		case cmd := <-e.commands.C():
			_ = e.Execute(execCtx, cmd)
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// drain executes every command still buffered in either queue.
// Params: context for notification delivery; producers must already be stopped.
// Returns: none.
func (e *Engine) drain(ctx context.Context) {
	drained := 0
	for {
		select {
		case cmd := <-e.checkResults.C():
			_ = e.Execute(ctx, cmd)
		case cmd := <-e.commands.C():
			_ = e.Execute(ctx, cmd)
		default:
			if drained > 0 {
				e.logger.Info("engine drained queued commands", "count", drained)
			}
			return
		}
		drained++
	}
}

// Execute runs one external command on the engine goroutine.
// Params: context for notification delivery and parsed command.
// Returns: ErrUnknownObject, ErrRejected, or command.ErrInvalidCommand; the outcome
// is also logged and counted.
func (e *Engine) Execute(ctx context.Context, cmd command.Command) error {
	var err error
	if cmd.Class() == command.ClassCheckResult {
		var result command.CheckResult
		result, err = cmd.CheckResult()
		if err == nil {
			err = e.ProcessCheckResult(ctx, result)
		}
	} else {
		err = e.dispatch(ctx, cmd)
	}
	e.observer.ObserveCommand(cmd.Name, err)
	if err != nil {
		e.logger.Warn("command failed", "command_id", cmd.ID, "command", cmd.Name, "error", err.Error())
		return err
	}
	e.logger.Debug("command executed", "command_id", cmd.ID, "command", cmd.Name)
	return nil
}

// Tick advances time-driven transitions.
// Params: context for notification delivery and retention writes.
// Returns: none; failures are logged.
func (e *Engine) Tick(ctx context.Context) {
	now := e.clock.Now()
	e.tickDowntimes(ctx, now)

	notifiers := e.registry.Notifiers()
	for _, n := range notifiers {
		switch {
		case e.problemDue(n, now):
			e.notify(ctx, n, notifier.ReasonNormal, "", stateMessage(n), notifier.OptionNone, false)
		case e.recoveryPending(n):
			e.notify(ctx, n, notifier.ReasonRecovery, "", stateMessage(n), notifier.OptionNone, false)
		}
	}
	e.observer.SetNotifierStates(notifiers)

	if e.retention != nil && now.Sub(e.lastSave) >= e.saveInterval {
		e.save(ctx)
	}
}

// problemDue reports a hard problem whose next notification time has passed.
func (e *Engine) problemDue(n *notifier.Notifier, now time.Time) bool {
	if !n.IsProblem() || n.StateType() != notifier.StateHard || n.NoMoreNotifications() {
		return false
	}
	if n.IsAcknowledged() || n.IsInDowntime() || n.IsFlapping() {
		return false
	}
	return !n.NextNotification().After(now)
}

// recoveryPending reports a hard OK whose announced problem still awaits its recovery.
func (e *Engine) recoveryPending(n *notifier.Notifier) bool {
	return !n.IsProblem() && n.StateType() == notifier.StateHard &&
		n.NotificationNumber() > 0 && n.Notification(notifier.CategoryNormal) != nil
}

// notify runs Notify and records the outcome.
// Params: context, notifier, reason, author, message, options, and whether a
// suppressed attempt is counted (tick retries count only sent notifications).
// Returns: Notify result.
func (e *Engine) notify(
	ctx context.Context,
	n *notifier.Notifier,
	reason notifier.Reason,
	author, message string,
	options notifier.Option,
	countSuppressed bool,
) notifier.Result {
	result, err := n.Notify(ctx, reason, author, message, options)
	if err != nil {
		e.logger.Warn("notification aborted", "notifier", n.Key(), "reason", reason.String(), "error", err.Error())
		return result
	}
	if result.Suppressed {
		if countSuppressed {
			e.observer.ObserveNotification(result.Category, false)
		}
		if reason == notifier.ReasonNormal {
			e.deferToNotificationPeriod(n)
		}
		return result
	}
	e.observer.ObserveNotification(result.Category, true)
	return result
}

// deferToNotificationPeriod moves the next problem attempt to the period's next valid time.
func (e *Engine) deferToNotificationPeriod(n *notifier.Notifier) {
	period := n.NotificationPeriod()
	if period == nil {
		return
	}
	now := e.clock.Now()
	if period.CheckTime(now) {
		return
	}
	next := period.NextValidTime(now)
	if next.After(now) {
		n.SetNextNotification(next)
	}
}

// Restore applies retained records to notifiers and rebuilds engine-owned state.
// Params: context for store reads.
// Returns: load error; per-record problems are logged and skipped.
func (e *Engine) Restore(ctx context.Context) error {
	if e.retention == nil {
		return nil
	}
	records, err := e.retention.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore retention: %w", err)
	}
	if record, ok := records[retention.EngineKey]; ok {
		if record.NextNotificationID > 0 {
			e.env.IDs.Restore(record.NextNotificationID)
		}
		e.env.SetNotificationsEnabled(record.NotificationsEnabled)
	}

	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	restored := 0
	for _, key := range keys {
		if key == retention.EngineKey {
			continue
		}
		n, ok := e.registry.Notifier(key)
		if !ok {
			e.logger.Info("retention record has no notifier, skipped", "key", key)
			continue
		}
		record := records[key]
		if err := retention.Apply(n, record); err != nil {
			e.logger.Warn("retention record partially applied", "key", key, "error", err.Error())
			if errors.Is(err, retention.ErrInvalidRecord) {
				continue
			}
		}
		if len(record.FlapHistory) > 0 {
			e.flaps[key] = restoreFlapHistory(record.FlapHistory)
		}
		for _, stored := range record.Downtimes {
			e.restoreDowntime(n, stored)
		}
		restored++
	}
	e.logger.Info("retention restored", "notifiers", restored, "downtimes", len(e.downtimes),
		"next_notification_id", e.env.IDs.Peek())
	return nil
}

// Save writes every notifier record plus the engine record.
// Params: context for store writes.
// Returns: joined write errors.
func (e *Engine) Save(ctx context.Context) error {
	if e.retention == nil {
		return nil
	}
	records := make(map[string]retention.Record)
	downtimes := e.retainedDowntimes()
	for _, n := range e.registry.Notifiers() {
		record := retention.Snapshot(n)
		if history, ok := e.flaps[n.Key()]; ok {
			record.FlapHistory = history.states()
		}
		record.Downtimes = downtimes[n.Key()]
		records[n.Key()] = record
	}
	records[retention.EngineKey] = retention.Record{
		NotificationsEnabled: e.env.NotificationsEnabled(),
		NextNotificationID:   e.env.IDs.Peek(),
	}

	written, err := e.retention.Save(ctx, records)
	e.observer.ObserveRetentionSave(err)
	e.lastSave = e.clock.Now()
	if err != nil {
		return fmt.Errorf("save retention (%d of %d written): %w", written, len(records), err)
	}
	e.logger.Debug("retention saved", "records", written)
	return nil
}

func (e *Engine) save(ctx context.Context) {
	if err := e.Save(ctx); err != nil {
		e.logger.Error("retention save failed", "error", err.Error())
	}
}

// lookup finds the notifier addressed by host and optional service description.
func (e *Engine) lookup(host, service string) (*notifier.Notifier, error) {
	if service == "" {
		if n, ok := e.registry.Host(host); ok {
			return n, nil
		}
		return nil, fmt.Errorf("%w: host %q", ErrUnknownObject, host)
	}
	if n, ok := e.registry.Service(host, service); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: service %q on host %q", ErrUnknownObject, service, host)
}
