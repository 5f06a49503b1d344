package testutil

import (
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsStartTimeout = 8 * time.Second
	natsStopTimeout  = 5 * time.Second
)

// FreePort reserves a local TCP port and returns it to the caller.
// Params: none.
// Returns: free port number or error.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// JetStream is a throwaway nats-server with JetStream enabled plus one client
// connection for arranging streams and publishing commands.
type JetStream struct {
	URL string

	tb testing.TB
	nc *nats.Conn
	js nats.JetStreamContext
}

// StartJetStream runs nats-server for the lifetime of the test.
// Params: test handle; the test is skipped under -short or when nats-server is not installed.
// Returns: connected fixture, stopped through tb.Cleanup.
func StartJetStream(tb testing.TB) *JetStream {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skip nats integration test in short mode")
	}
	binary, err := exec.LookPath("nats-server")
	if err != nil {
		tb.Skipf("nats-server is required for integration test: %v", err)
	}
	port, err := FreePort()
	if err != nil {
		tb.Fatalf("free port: %v", err)
	}

	cmd := exec.Command(binary, "-js", "-a", "127.0.0.1", "-p", strconv.Itoa(port), "-sd", tb.TempDir())
	if err := cmd.Start(); err != nil {
		tb.Fatalf("start nats-server: %v", err)
	}
	tb.Cleanup(func() { stopProcess(cmd) })

	fixture := &JetStream{URL: "nats://127.0.0.1:" + strconv.Itoa(port), tb: tb}
	fixture.nc = connect(tb, fixture.URL)
	tb.Cleanup(fixture.nc.Close)
	fixture.js, err = fixture.nc.JetStream()
	if err != nil {
		tb.Fatalf("jetstream: %v", err)
	}
	return fixture
}

// EnsureStream creates a stream bound to subjects unless it already exists.
func (f *JetStream) EnsureStream(name string, subjects ...string) {
	f.tb.Helper()
	if _, err := f.js.StreamInfo(name); err == nil {
		return
	}
	if _, err := f.js.AddStream(&nats.StreamConfig{Name: name, Subjects: subjects}); err != nil {
		f.tb.Fatalf("add stream %q: %v", name, err)
	}
}

// Publish sends one command line and waits for the stream ack.
func (f *JetStream) Publish(subject, line string) {
	f.tb.Helper()
	if _, err := f.js.Publish(subject, []byte(line)); err != nil {
		f.tb.Fatalf("publish to %q: %v", subject, err)
	}
}

func connect(tb testing.TB, url string) *nats.Conn {
	tb.Helper()
	deadline := time.Now().Add(natsStartTimeout)
	for {
		nc, err := nats.Connect(url)
		if err == nil {
			return nc
		}
		if time.Now().After(deadline) {
			tb.Fatalf("nats did not become ready at %s: %v", url, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func stopProcess(cmd *exec.Cmd) {
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(natsStopTimeout):
		_ = cmd.Process.Kill()
		<-done
	}
}
