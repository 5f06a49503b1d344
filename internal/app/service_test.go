package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"monitoring/internal/clock"
	"monitoring/internal/config"
	"monitoring/internal/notifier"
)

const serviceObjects = `[timeperiod.24x7]
monday = ["00:00-24:00"]
tuesday = ["00:00-24:00"]
wednesday = ["00:00-24:00"]
thursday = ["00:00-24:00"]
friday = ["00:00-24:00"]
saturday = ["00:00-24:00"]
sunday = ["00:00-24:00"]

[contact.admin]
email = "admin@example.org"
host_notification_period = "24x7"
service_notification_period = "24x7"

[host.web01]
address = "10.0.0.1"
max_check_attempts = 1
notification_period = "24x7"
contacts = ["admin"]

[host.web01.service.http]
max_check_attempts = 2
notification_period = "24x7"
contacts = ["admin"]`

func newTestService(t *testing.T, objects string) (*Service, error) {
	t.Helper()

	dir := t.TempDir()
	content := strings.Join([]string{
		`[service]
listen = "127.0.0.1:0"
tick_interval_ms = 50`,
		`[log.file]
enabled = true
level = "error"
path = "` + filepath.ToSlash(filepath.Join(dir, "service.log")) + `"`,
		objects,
	}, "\n\n")
	path := filepath.Join(dir, "monitoring.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	clk := clock.NewManualClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	return NewService(config.ConfigSource{File: path}, clk)
}

func serve(s *Service, method, path, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	response := httptest.NewRecorder()
	s.Handler().ServeHTTP(response, request)
	return response
}

func TestNewServiceServesOperationalRoutes(t *testing.T) {
	t.Parallel()

	s, err := newTestService(t, serviceObjects)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(s.cleanupInitResources)

	if got := serve(s, http.MethodGet, "/healthz", ""); got.Code != http.StatusOK || got.Body.String() != "ok" {
		t.Fatalf("health: got %d %q", got.Code, got.Body.String())
	}
	if got := serve(s, http.MethodGet, "/readyz", ""); got.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before run: expected 503, got %d", got.Code)
	}
	got := serve(s, http.MethodGet, "/metrics", "")
	if got.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", got.Code)
	}
	if !strings.Contains(got.Body.String(), "check_results") {
		t.Fatalf("metrics must expose queue gauges, got:\n%s", got.Body.String())
	}
	if got := serve(s, http.MethodPost, "/commands", "DISABLE_NOTIFICATIONS\n"); got.Code != http.StatusAccepted {
		t.Fatalf("commands: expected 202, got %d: %s", got.Code, got.Body.String())
	}
	if s.commands.Len() != 1 {
		t.Fatalf("expected command queued, got %d", s.commands.Len())
	}
}

func TestNewServiceRejectsUnresolvedObjects(t *testing.T) {
	t.Parallel()

	objects := strings.Replace(serviceObjects, `contacts = ["admin"]

[host.web01.service.http]`, `contacts = ["ghost"]

[host.web01.service.http]`, 1)
	_, err := newTestService(t, objects)
	if err == nil {
		t.Fatalf("expected unresolved contact to fail startup")
	}
	if !strings.Contains(err.Error(), `contact "ghost" is not defined`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceRunProcessesQueuedCommands(t *testing.T) {
	t.Parallel()

	s, err := newTestService(t, serviceObjects)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	payload := "PROCESS_HOST_CHECK_RESULT;web01;1;PING timeout\nPROCESS_SERVICE_CHECK_RESULT;web01;http;2;HTTP 500\n"
	if got := serve(s, http.MethodPost, "/commands", payload); got.Code != http.StatusAccepted {
		t.Fatalf("commands: expected 202, got %d: %s", got.Code, got.Body.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.checkResults.Len() > 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("check results were not drained")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}

	host, _ := s.registry.Host("web01")
	if host.CurrentState() != notifier.HostDown || host.StateType() != notifier.StateHard {
		t.Fatalf("host: expected hard DOWN, got state=%d type=%s", host.CurrentState(), host.StateType())
	}
	service, _ := s.registry.Service("web01", "http")
	if service.CurrentState() != notifier.ServiceCritical || service.StateType() != notifier.StateSoft {
		t.Fatalf("service: expected soft CRITICAL, got state=%d type=%s", service.CurrentState(), service.StateType())
	}
	if s.readyFlag.Load() {
		t.Fatalf("service must be unready after shutdown")
	}
}

func TestVerifyConfigCountsNotifiers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monitoring.toml")
	if err := os.WriteFile(path, []byte(serviceObjects), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	notifiers, _, err := VerifyConfig(config.ConfigSource{File: path})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if notifiers != 2 {
		t.Fatalf("expected 2 notifiers, got %d", notifiers)
	}
}
