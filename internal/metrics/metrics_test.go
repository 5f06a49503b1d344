package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"monitoring/internal/command"
	"monitoring/internal/notifier"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveNotification(notifier.CategoryNormal, true)
	m.ObserveNotification(notifier.CategoryNormal, false)
	m.ObserveNotification(notifier.CategoryNormal, false)
	m.ObserveDelivery("telegram", nil)
	m.ObserveDelivery("telegram", errors.New("down"))
	m.ObserveCommand(command.DisableNotifications, nil)
	m.ObserveRetentionSave(errors.New("kv down"))

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("normal", "suppressed")); got != 2 {
		t.Fatalf("suppressed = %v", got)
	}
	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("telegram", "failed")); got != 1 {
		t.Fatalf("failed deliveries = %v", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues(command.DisableNotifications, "ok")); got != 1 {
		t.Fatalf("commands = %v", got)
	}
	if got := testutil.ToFloat64(m.retentionSave.WithLabelValues("error")); got != 1 {
		t.Fatalf("retention errors = %v", got)
	}
}

func TestRegisterQueueExportsDepthAndWaits(t *testing.T) {
	t.Parallel()

	m := New()
	queue := command.NewQueue(1, time.Millisecond)
	if err := m.RegisterQueue("commands", queue); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.RegisterQueue("check_results", command.NewQueue(1, time.Millisecond)); err != nil {
		t.Fatalf("register second queue: %v", err)
	}
	if err := m.RegisterQueue("commands", queue); err == nil {
		t.Fatalf("duplicate queue label must fail")
	}
	_ = queue.TryPush(command.Command{})
	_ = queue.TryPush(command.Command{})

	expected := `
# HELP monitoring_command_queue_full_waits_total Pushes that found the queue full.
# TYPE monitoring_command_queue_full_waits_total counter
monitoring_command_queue_full_waits_total{queue="check_results"} 0
monitoring_command_queue_full_waits_total{queue="commands"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "monitoring_command_queue_full_waits_total"); err != nil {
		t.Fatalf("unexpected full waits: %v", err)
	}

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(recorder.Body.String(), `monitoring_command_queue_depth{queue="commands"} 1`) {
		t.Fatalf("depth gauge missing from exposition")
	}
}

func TestSetNotifierStates(t *testing.T) {
	t.Parallel()

	env := notifier.NewEnvironment(nil, nil)
	var list []*notifier.Notifier
	for _, host := range []string{"a", "b"} {
		n, err := notifier.New(notifier.Definition{Kind: notifier.KindHost, HostName: host, RetryInterval: 1, MaxCheckAttempts: 1}, env)
		if err != nil {
			t.Fatalf("new notifier: %v", err)
		}
		list = append(list, n)
	}
	list[1].SetCurrentState(notifier.HostDown)

	m := New()
	m.SetNotifierStates(list)
	if got := testutil.ToFloat64(m.notifiers.WithLabelValues("host", "DOWN")); got != 1 {
		t.Fatalf("down hosts = %v", got)
	}
	if got := testutil.ToFloat64(m.notifiers.WithLabelValues("host", "UP")); got != 1 {
		t.Fatalf("up hosts = %v", got)
	}
}
