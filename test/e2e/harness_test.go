package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"monitoring/internal/app"
	"monitoring/internal/clock"
	"monitoring/internal/config"
	"monitoring/test/testutil"
)

// newServiceFromConfig creates Service from file config path for e2e scenarios.
// Params: test handle and absolute config path.
// Returns: initialized service instance.
func newServiceFromConfig(t *testing.T, path string) *app.Service {
	t.Helper()

	source, err := config.FromCLI(path, "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

// runService starts service in background with cancellable context.
// Params: test handle and initialized service.
// Returns: cancel callback and done channel with Run result.
func runService(t *testing.T, service *app.Service) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()
	return cancel, done
}

// waitReady waits for /readyz endpoint to return 200.
func waitReady(t *testing.T, port int) {
	t.Helper()
	url := fmt.Sprintf("http://127.0.0.1:%d/readyz", port)
	waitFor(t, 8*time.Second, func() bool {
		response, err := http.Get(url)
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == http.StatusOK
	})
}

// waitServiceStop asserts service Run exits without error after cancellation.
func waitServiceStop(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("service run error: %v", runErr)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitoring.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

// webhookMessage is the subset of the webhook payload asserted by scenarios.
type webhookMessage struct {
	Type    string `json:"type"`
	Host    string `json:"host"`
	Service string `json:"service"`
	State   string `json:"state"`
	Number  uint32 `json:"number"`
	Text    string `json:"text"`
}

// webhookRecorder collects notifications posted to the HTTP channel.
type webhookRecorder struct {
	mu       sync.Mutex
	messages []webhookMessage
}

func newWebhookRecorder(t *testing.T) (*webhookRecorder, string) {
	t.Helper()

	recorder := &webhookRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		var message webhookMessage
		if err := json.NewDecoder(request.Body).Decode(&message); err != nil {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
		recorder.mu.Lock()
		recorder.messages = append(recorder.messages, message)
		recorder.mu.Unlock()
		writer.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	return recorder, server.URL
}

func (r *webhookRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, message := range r.messages {
		out = append(out, message.Type)
	}
	return out
}

func (r *webhookRecorder) last() webhookMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return webhookMessage{}
	}
	return r.messages[len(r.messages)-1]
}

func freePort(t *testing.T) int {
	t.Helper()
	port, err := testutil.FreePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	return port
}
