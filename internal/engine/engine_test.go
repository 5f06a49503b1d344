package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"monitoring/internal/clock"
	"monitoring/internal/command"
	"monitoring/internal/config"
	"monitoring/internal/notifier"
	"monitoring/internal/objects"
	"monitoring/internal/retention"
)

var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type captureTransport struct {
	mu         sync.Mutex
	deliveries []notifier.Delivery
}

func (t *captureTransport) Deliver(_ context.Context, delivery notifier.Delivery) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries = append(t.deliveries, delivery)
	return nil
}

func (t *captureTransport) reasons() []notifier.Reason {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]notifier.Reason, 0, len(t.deliveries))
	for _, delivery := range t.deliveries {
		out = append(out, delivery.Notification.Reason())
	}
	return out
}

func (t *captureTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deliveries)
}

func (t *captureTransport) last() notifier.Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deliveries[len(t.deliveries)-1]
}

type fixture struct {
	clock     *clock.ManualClock
	env       *notifier.Environment
	registry  *objects.Registry
	transport *captureTransport
	store     *retention.MemoryStore
	engine    *Engine
}

func days(ranges ...string) config.TimeperiodConfig {
	return config.TimeperiodConfig{
		Monday: ranges, Tuesday: ranges, Wednesday: ranges, Thursday: ranges,
		Friday: ranges, Saturday: ranges, Sunday: ranges,
	}
}

func testConfig() config.Config {
	settings := func(maxAttempts int) config.NotifierConfig {
		return config.NotifierConfig{
			CheckInterval:        5,
			RetryInterval:        1,
			MaxCheckAttempts:     maxAttempts,
			NotificationPeriod:   "24x7",
			NotificationInterval: 2,
			NotificationOptions:  []string{"all"},
			Contacts:             []string{"admin"},
		}
	}
	return config.Config{
		Timeperiods: map[string]config.TimeperiodConfig{
			"24x7":      days("00:00-24:00"),
			"workhours": days("09:00-17:00"),
		},
		Contacts: map[string]config.ContactConfig{
			"admin": {
				HostNotificationPeriod:     "24x7",
				ServiceNotificationPeriod:  "24x7",
				HostNotificationOptions:    []string{"all"},
				ServiceNotificationOptions: []string{"all"},
			},
		},
		Hosts: map[string]config.HostConfig{
			"web01": {
				NotifierConfig: settings(3),
				Services: map[string]config.HostServiceConfig{
					"http": {NotifierConfig: settings(1)},
				},
			},
		},
	}
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{
		clock:     clock.NewManualClock(monday),
		transport: &captureTransport{},
		store:     retention.NewMemoryStore(),
	}
	f.build(t, cfg)
	return f
}

// build creates a fresh environment, registry, and engine over the fixture store.
func (f *fixture) build(t *testing.T, cfg config.Config) {
	t.Helper()
	env := notifier.NewEnvironment(f.clock, nil)
	env.IntervalLength = time.Minute
	env.Transport = f.transport
	registry, err := objects.Build(cfg, env)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	env.Dependencies = registry
	var warnings, errs int
	if err := registry.ResolveAll(&warnings, &errs); err != nil {
		t.Fatalf("resolve registry: %v", err)
	}
	f.env = env
	f.registry = registry
	f.engine = New(registry, env, command.NewQueue(8, time.Millisecond), command.NewQueue(8, time.Millisecond), Options{
		TickInterval: 10 * time.Millisecond,
		SaveInterval: time.Minute,
		Retention:    retention.NewManager(f.store, nil),
	})
}

func (f *fixture) exec(t *testing.T, format string, args ...any) error {
	t.Helper()
	cmd, err := command.Parse(fmt.Sprintf(format, args...), f.clock.Now())
	if err != nil {
		t.Fatalf("parse command: %v", err)
	}
	return f.engine.Execute(context.Background(), cmd)
}

func (f *fixture) mustExec(t *testing.T, format string, args ...any) {
	t.Helper()
	if err := f.exec(t, format, args...); err != nil {
		t.Fatalf("execute %q: %v", fmt.Sprintf(format, args...), err)
	}
}

func (f *fixture) host(t *testing.T) *notifier.Notifier {
	t.Helper()
	n, ok := f.registry.Host("web01")
	if !ok {
		t.Fatalf("host web01 is missing")
	}
	return n
}

func (f *fixture) service(t *testing.T) *notifier.Notifier {
	t.Helper()
	n, ok := f.registry.Service("web01", "http")
	if !ok {
		t.Fatalf("service web01/http is missing")
	}
	return n
}

func (f *fixture) tickAfter(d time.Duration) {
	f.clock.Advance(d)
	f.engine.Tick(context.Background())
}

func assertReasons(t *testing.T, got []notifier.Reason, want ...notifier.Reason) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected reasons %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected reasons %v, got %v", want, got)
		}
	}
}

func TestSoftAttemptsTurnHardAndNotify(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.host(t)

	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;1;connection refused")
	if n.StateType() != notifier.StateSoft || n.CurrentAttempt() != 1 {
		t.Fatalf("expected soft attempt 1, got %s attempt %d", n.StateType(), n.CurrentAttempt())
	}
	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;1;connection refused")
	if f.transport.count() != 0 {
		t.Fatalf("soft states must not notify, got %d deliveries", f.transport.count())
	}

	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;1;connection refused")
	if n.StateType() != notifier.StateHard || n.CurrentAttempt() != 3 {
		t.Fatalf("expected hard attempt 3, got %s attempt %d", n.StateType(), n.CurrentAttempt())
	}
	if n.LastHardState() != notifier.HostDown || !n.LastHardStateChange().Equal(monday) {
		t.Fatalf("unexpected hard bookkeeping: %d at %s", n.LastHardState(), n.LastHardStateChange())
	}
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal)
	if got := f.transport.last().Message; got != "$NOTIFICATIONTYPE$: $HOSTNAME$ is $HOSTSTATE$: $HOSTOUTPUT$" {
		t.Fatalf("unexpected default message %q", got)
	}

	f.clock.Advance(time.Minute)
	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;0;ok")
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal, notifier.ReasonRecovery)
	if n.NotificationNumber() != 0 || n.Notification(notifier.CategoryNormal) != nil {
		t.Fatalf("recovery must clear problem bookkeeping, number=%d", n.NotificationNumber())
	}
}

func TestSoftRecoveryDoesNotNotify(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.host(t)

	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;1;timeout")
	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;0;ok")
	if f.transport.count() != 0 {
		t.Fatalf("soft recovery must stay silent, got %v", f.transport.reasons())
	}
	if n.StateType() != notifier.StateHard || n.CurrentAttempt() != 1 || n.LastState() != notifier.HostDown {
		t.Fatalf("unexpected state after soft recovery: %s attempt %d last %d",
			n.StateType(), n.CurrentAttempt(), n.LastState())
	}
}

func TestTickRepeatsProblemAfterInterval(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal)

	f.tickAfter(time.Minute)
	if f.transport.count() != 1 {
		t.Fatalf("repeat before interval, got %d deliveries", f.transport.count())
	}

	f.tickAfter(time.Minute)
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal, notifier.ReasonNormal)
	if number := f.service(t).NotificationNumber(); number != 2 {
		t.Fatalf("expected notification number 2, got %d", number)
	}
}

func TestAcknowledgementStopsRepeatsUntilRecovery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.service(t)
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	f.mustExec(t, "ACKNOWLEDGE_SVC_PROBLEM;web01;http;1;0;1;alice;looking")
	if n.Acknowledgement() != notifier.AckNormal {
		t.Fatalf("expected normal acknowledgement, got %d", n.Acknowledgement())
	}

	f.tickAfter(10 * time.Minute)
	if f.transport.count() != 1 {
		t.Fatalf("acknowledged problem repeated: %v", f.transport.reasons())
	}

	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;0;HTTP 200")
	if n.IsAcknowledged() {
		t.Fatalf("recovery must remove acknowledgement")
	}
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal, notifier.ReasonRecovery)
}

func TestAcknowledgementNotifiesWithAuthor(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	f.mustExec(t, "ACKNOWLEDGE_SVC_PROBLEM;web01;http;2;1;1;alice;on it; will report")

	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal, notifier.ReasonAcknowledgement)
	ack := f.transport.last().Notification
	if ack.Author() != "alice" || ack.Message() != "on it; will report" {
		t.Fatalf("unexpected acknowledgement notification %q by %q", ack.Message(), ack.Author())
	}
	if f.service(t).Acknowledgement() != notifier.AckSticky {
		t.Fatalf("sticky argument 2 must set sticky acknowledgement")
	}
}

func TestAcknowledgeRejectsHealthyObject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	err := f.exec(t, "ACKNOWLEDGE_HOST_PROBLEM;web01;1;1;0;alice;nothing to see")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestStickyAcknowledgementSurvivesProblemChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.service(t)

	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	f.mustExec(t, "ACKNOWLEDGE_SVC_PROBLEM;web01;http;2;0;1;alice;sticky")
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;1;slow")
	if n.Acknowledgement() != notifier.AckSticky {
		t.Fatalf("sticky acknowledgement dropped on problem change")
	}

	f.mustExec(t, "ACKNOWLEDGE_SVC_PROBLEM;web01;http;1;0;1;alice;normal")
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	if n.IsAcknowledged() {
		t.Fatalf("normal acknowledgement must be removed by a state change")
	}
}

func TestOutOfPeriodProblemWaitsForNextValidTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		host := cfg.Hosts["web01"]
		host.NotificationPeriod = "workhours"
		host.MaxCheckAttempts = 1
		cfg.Hosts["web01"] = host
	})
	f.clock.Set(time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))

	f.mustExec(t, "PROCESS_HOST_CHECK_RESULT;web01;1;down")
	if f.transport.count() != 0 {
		t.Fatalf("problem outside period must be suppressed")
	}
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if next := f.host(t).NextNotification(); !next.Equal(want) {
		t.Fatalf("expected next notification %s, got %s", want, next)
	}

	f.tickAfter(time.Hour)
	if f.transport.count() != 0 {
		t.Fatalf("tick before period start must not notify")
	}
	f.clock.Set(want)
	f.engine.Tick(context.Background())
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal)
}

func TestFixedDowntimeLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.service(t)
	start, end := monday.Unix(), monday.Add(10*time.Minute).Unix()

	f.mustExec(t, "SCHEDULE_SVC_DOWNTIME;web01;http;%d;%d;1;0;0;alice;patching", start, end)
	if n.DowntimeDepth() != 1 {
		t.Fatalf("expected downtime depth 1, got %d", n.DowntimeDepth())
	}
	assertReasons(t, f.transport.reasons(), notifier.ReasonDowntimeStart)

	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	f.tickAfter(5 * time.Minute)
	if f.transport.count() != 1 {
		t.Fatalf("problem in downtime must be suppressed: %v", f.transport.reasons())
	}

	f.tickAfter(5 * time.Minute)
	if n.DowntimeDepth() != 0 {
		t.Fatalf("expected downtime depth 0, got %d", n.DowntimeDepth())
	}
	assertReasons(t, f.transport.reasons(),
		notifier.ReasonDowntimeStart, notifier.ReasonDowntimeEnd, notifier.ReasonNormal)
}

func TestNestedDowntimeNotifiesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.host(t)
	start := monday.Unix()

	f.mustExec(t, "SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;alice;outer", start, monday.Add(time.Hour).Unix())
	f.mustExec(t, "SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;bob;inner", start, monday.Add(10*time.Minute).Unix())
	if n.DowntimeDepth() != 2 {
		t.Fatalf("expected depth 2, got %d", n.DowntimeDepth())
	}

	f.tickAfter(10 * time.Minute)
	if n.DowntimeDepth() != 1 {
		t.Fatalf("expected depth 1, got %d", n.DowntimeDepth())
	}
	assertReasons(t, f.transport.reasons(), notifier.ReasonDowntimeStart)

	f.tickAfter(time.Hour)
	assertReasons(t, f.transport.reasons(), notifier.ReasonDowntimeStart, notifier.ReasonDowntimeEnd)
}

func TestDeleteActiveDowntimeSendsCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mustExec(t, "SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;alice;patching",
		monday.Unix(), monday.Add(time.Hour).Unix())

	if err := f.exec(t, "DEL_SVC_DOWNTIME;1"); !errors.Is(err, ErrRejected) {
		t.Fatalf("service delete of a host downtime must be rejected, got %v", err)
	}
	f.mustExec(t, "DEL_HOST_DOWNTIME;1")
	if f.host(t).IsInDowntime() {
		t.Fatalf("deleted downtime still active")
	}
	assertReasons(t, f.transport.reasons(), notifier.ReasonDowntimeStart, notifier.ReasonDowntimeCancelled)

	if err := f.exec(t, "DEL_HOST_DOWNTIME;1"); !errors.Is(err, ErrRejected) {
		t.Fatalf("second delete must be rejected, got %v", err)
	}
}

func TestFlexibleDowntimeStartsOnProblem(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.service(t)
	f.mustExec(t, "SCHEDULE_SVC_DOWNTIME;web01;http;%d;%d;0;0;600;alice;flexible",
		monday.Unix(), monday.Add(time.Hour).Unix())
	if n.IsInDowntime() {
		t.Fatalf("flexible downtime must wait for a problem")
	}

	f.clock.Advance(5 * time.Minute)
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	f.engine.Tick(context.Background())
	if !n.IsInDowntime() {
		t.Fatalf("flexible downtime did not start on problem")
	}

	f.tickAfter(10 * time.Minute)
	if n.IsInDowntime() {
		t.Fatalf("flexible downtime must end after its duration")
	}
}

func TestScheduleDowntimeRejectsBadWindows(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	cases := []string{
		fmt.Sprintf("SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;a;reversed", monday.Unix(), monday.Add(-time.Minute).Unix()),
		fmt.Sprintf("SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;a;past", monday.Add(-time.Hour).Unix(), monday.Add(-time.Minute).Unix()),
		fmt.Sprintf("SCHEDULE_HOST_DOWNTIME;web01;%d;%d;0;0;0;a;no duration", monday.Unix(), monday.Add(time.Hour).Unix()),
		fmt.Sprintf("SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;42;0;a;missing trigger", monday.Unix(), monday.Add(time.Hour).Unix()),
	}
	for _, line := range cases {
		if err := f.exec(t, "%s", line); !errors.Is(err, ErrRejected) {
			t.Fatalf("expected ErrRejected for %q, got %v", line, err)
		}
	}
}

func TestFlappingStartsAndStops(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.service(t)

	for i := range 6 {
		code := 2
		if i%2 == 1 {
			code = 0
		}
		f.clock.Advance(time.Minute)
		f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;%d;flip", code)
	}
	if !n.IsFlapping() {
		t.Fatalf("six state changes must start flapping")
	}
	if !containsReason(f.transport.reasons(), notifier.ReasonFlappingStart) {
		t.Fatalf("expected FLAPPINGSTART, got %v", f.transport.reasons())
	}

	for range 21 {
		f.clock.Advance(time.Minute)
		f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;0;stable")
	}
	if n.IsFlapping() {
		t.Fatalf("stable history must stop flapping")
	}
	if !containsReason(f.transport.reasons(), notifier.ReasonFlappingStop) {
		t.Fatalf("expected FLAPPINGSTOP, got %v", f.transport.reasons())
	}
}

func TestDisablingFlapDetectionWhileFlapping(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	n := f.service(t)
	n.SetFlapping(true)

	f.mustExec(t, "DISABLE_SVC_FLAP_DETECTION;web01;http")
	if n.IsFlapping() || n.FlapDetectionEnabled() {
		t.Fatalf("disabling flap detection must clear flapping")
	}
	assertReasons(t, f.transport.reasons(), notifier.ReasonFlappingDisabled)

	f.mustExec(t, "ENABLE_SVC_FLAP_DETECTION;web01;http")
	if !n.FlapDetectionEnabled() {
		t.Fatalf("flap detection not re-enabled")
	}
}

func TestPercentChangeWeighting(t *testing.T) {
	t.Parallel()

	h := newFlapHistory(notifier.ServiceOK)
	if got := h.percentChange(); got != 0 {
		t.Fatalf("stable history must be 0%%, got %f", got)
	}
	h.record(notifier.ServiceCritical)
	// The newest change carries the full 1.2 weight.
	if got, want := h.percentChange(), 1.2*100/20; got < want-0.0001 || got > want+0.0001 {
		t.Fatalf("expected %f, got %f", want, got)
	}
	if states := h.states(); len(states) != flapHistorySize || states[flapHistorySize-1] != int(notifier.ServiceCritical) {
		t.Fatalf("unexpected ordered history %v", states)
	}
}

func TestNotificationSwitches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mustExec(t, "DISABLE_NOTIFICATIONS")
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	if f.transport.count() != 0 || f.env.NotificationsEnabled() {
		t.Fatalf("global switch did not suppress")
	}

	f.mustExec(t, "ENABLE_NOTIFICATIONS")
	f.mustExec(t, "DISABLE_SVC_NOTIFICATIONS;web01;http")
	f.tickAfter(time.Minute)
	if f.transport.count() != 0 {
		t.Fatalf("notifier switch did not suppress")
	}

	f.mustExec(t, "ENABLE_SVC_NOTIFICATIONS;web01;http")
	f.tickAfter(time.Minute)
	assertReasons(t, f.transport.reasons(), notifier.ReasonNormal)
}

func TestCustomNotificationAndNumberChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mustExec(t, "SEND_CUSTOM_HOST_NOTIFICATION;web01;2;alice;maintenance tonight")
	assertReasons(t, f.transport.reasons(), notifier.ReasonCustom)
	custom := f.transport.last().Notification
	if !custom.Options().Has(notifier.OptionForced) || custom.Author() != "alice" {
		t.Fatalf("unexpected custom notification: options=%d author=%q", custom.Options(), custom.Author())
	}

	f.mustExec(t, "CHANGE_HOST_NOTIFICATION_NUMBER;web01;7")
	if got := f.host(t).NotificationNumber(); got != 7 {
		t.Fatalf("expected notification number 7, got %d", got)
	}
	if err := f.exec(t, "CHANGE_HOST_NOTIFICATION_NUMBER;web01;-1"); !errors.Is(err, command.ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
}

func TestUnknownObjectIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if err := f.exec(t, "PROCESS_HOST_CHECK_RESULT;ghost;1;down"); !errors.Is(err, ErrUnknownObject) {
		t.Fatalf("expected ErrUnknownObject, got %v", err)
	}
	if err := f.exec(t, "REMOVE_SVC_ACKNOWLEDGEMENT;web01;ftp"); !errors.Is(err, ErrUnknownObject) {
		t.Fatalf("expected ErrUnknownObject, got %v", err)
	}
}

func TestRetentionRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mustExec(t, "PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500")
	f.mustExec(t, "ACKNOWLEDGE_SVC_PROBLEM;web01;http;2;0;1;alice;sticky")
	f.mustExec(t, "SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;alice;patching",
		monday.Unix(), monday.Add(time.Hour).Unix())
	nextID := f.env.IDs.Peek()
	if err := f.engine.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	f.build(t, testConfig())
	if err := f.engine.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	service := f.service(t)
	if service.CurrentState() != notifier.ServiceCritical || service.NotificationNumber() != 1 {
		t.Fatalf("service state not restored: state=%d number=%d", service.CurrentState(), service.NotificationNumber())
	}
	if service.Acknowledgement() != notifier.AckSticky {
		t.Fatalf("acknowledgement not restored")
	}
	if f.host(t).DowntimeDepth() != 1 {
		t.Fatalf("active downtime must rebuild depth, got %d", f.host(t).DowntimeDepth())
	}
	if got := f.env.IDs.Peek(); got != nextID {
		t.Fatalf("expected next notification id %d, got %d", nextID, got)
	}

	f.mustExec(t, "SCHEDULE_HOST_DOWNTIME;web01;%d;%d;1;0;0;bob;second",
		monday.Unix(), monday.Add(time.Hour).Unix())
	if _, ok := f.engine.downtimes[2]; !ok {
		t.Fatalf("downtime ids must continue after restore")
	}
}

func TestRunDrainsQueuesAndSavesOnShutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.engine.Run(ctx)
	}()

	cmd, err := command.Parse("PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500", f.clock.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := f.engine.checkResults.Push(ctx, cmd); err != nil {
		t.Fatalf("push: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.transport.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("engine did not process the queued check result")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not stop")
	}

	keys, err := f.store.Keys(context.Background())
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected host, service, and engine records, got %v", keys)
	}
}

func TestRunExecutesBufferedCommandsAfterCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for _, line := range []string{
		"PROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500",
		"PROCESS_HOST_CHECK_RESULT;web01;1;PING timeout",
		"PROCESS_SERVICE_CHECK_RESULT;web01;http;0;HTTP 200",
	} {
		cmd, err := command.Parse(line, f.clock.Now())
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if err := f.engine.checkResults.TryPush(cmd); err != nil {
			t.Fatalf("push %q: %v", line, err)
		}
	}
	disable, err := command.Parse("DISABLE_HOST_NOTIFICATIONS;web01", f.clock.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := f.engine.commands.TryPush(disable); err != nil {
		t.Fatalf("push: %v", err)
	}
	f.engine.checkResults.Close()
	f.engine.commands.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.engine.Run(ctx); err != nil {
		t.Fatalf("run returned %v", err)
	}

	if left := f.engine.checkResults.Len() + f.engine.commands.Len(); left != 0 {
		t.Fatalf("expected queues drained, %d commands left", left)
	}
	if f.host(t).NotificationsEnabled() {
		t.Fatalf("buffered engine command was not executed")
	}
	if f.host(t).CurrentState() != notifier.HostDown {
		t.Fatalf("buffered host result was not executed")
	}
	if f.transport.count() == 0 {
		t.Fatalf("drained problem must still be delivered")
	}

	f.build(t, testConfig())
	if err := f.engine.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if f.host(t).CurrentState() != notifier.HostDown {
		t.Fatalf("drained state must reach the final save")
	}
}

func containsReason(reasons []notifier.Reason, want notifier.Reason) bool {
	for _, reason := range reasons {
		if reason == want {
			return true
		}
	}
	return false
}
