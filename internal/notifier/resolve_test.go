package notifier

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveAggregatesEveryMissingReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	n, err := New(Definition{
		Kind:               KindService,
		HostName:           "web01",
		Description:        "http",
		RetryInterval:      1,
		MaxCheckAttempts:   1,
		CheckCommand:       "check_http",
		EventHandler:       "restart_http",
		NotificationPeriod: "office",
		CheckPeriod:        "24x7",
		Contacts:           []string{"admin", "ghost"},
		ContactGroups:      []string{"phantoms"},
		Escalations:        []*Escalation{{Period: "weekend", Contacts: []string{"nobody"}}},
	}, f.env)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var warnings, errs int
	err = n.Resolve(f.lookup, &warnings, &errs)
	if !errors.Is(err, ErrResolve) {
		t.Fatalf("expected ErrResolve, got %v", err)
	}
	if errs != 7 {
		t.Fatalf("expected 7 errors, got %d (%v)", errs, err)
	}
	for _, fragment := range []string{`"check_http"`, `"restart_http"`, `"office"`, `"ghost"`, `"phantoms"`, `"weekend"`, `"nobody"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %s in error %q", fragment, err.Error())
		}
	}
	if warnings != 0 {
		t.Fatalf("expected no warnings, got %d", warnings)
	}
	if n.Resolved() {
		t.Fatalf("expected notifier to stay unresolved")
	}
}

func TestResolveCountsWarnings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.lookup.commands["check_ping"] = fakeCommand{name: "check_ping"}
	n, err := New(Definition{
		Kind:                 KindHost,
		HostName:             "web01",
		NotificationsEnabled: true,
		RetryInterval:        1,
		MaxCheckAttempts:     1,
		CheckCommand:         "check_ping",
	}, f.env)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	warnings, errs := 2, 0
	if err := n.Resolve(f.lookup, &warnings, &errs); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if warnings != 5 || errs != 0 {
		t.Fatalf("expected warnings to accumulate to 5, got warnings=%d errs=%d", warnings, errs)
	}
	if !n.Resolved() || n.CheckCommand() == nil || n.CheckCommand().Name() != "check_ping" {
		t.Fatalf("expected resolved check command")
	}
	if n.NotificationPeriod() != nil {
		t.Fatalf("expected no notification period")
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	env := NewEnvironment(nil, nil)
	valid := Definition{Kind: KindHost, HostName: "web01", RetryInterval: 1, MaxCheckAttempts: 1}

	cases := map[string]func(def *Definition){
		"empty host":           func(def *Definition) { def.HostName = "  " },
		"service without desc": func(def *Definition) { def.Kind = KindService },
		"zero retry interval":  func(def *Definition) { def.RetryInterval = 0 },
		"negative check":       func(def *Definition) { def.CheckInterval = -1 },
		"zero attempts":        func(def *Definition) { def.MaxCheckAttempts = 0 },
		"nil escalation":       func(def *Definition) { def.Escalations = []*Escalation{nil} },
		"inverted escalation": func(def *Definition) {
			def.Escalations = []*Escalation{{FirstNotification: 4, LastNotification: 2}}
		},
	}
	for name, mutate := range cases {
		def := valid
		mutate(&def)
		if _, err := New(def, env); !errors.Is(err, ErrInvalidDefinition) {
			t.Fatalf("%s: expected ErrInvalidDefinition, got %v", name, err)
		}
	}

	if _, err := New(valid, nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected nil environment to be rejected, got %v", err)
	}
	n, err := New(valid, env)
	if err != nil {
		t.Fatalf("valid definition: %v", err)
	}
	if n.Key() != "web01" || n.StateType() != StateHard || n.CurrentAttempt() != 1 {
		t.Fatalf("unexpected initial notifier state key=%s type=%s attempt=%d", n.Key(), n.StateType(), n.CurrentAttempt())
	}
	if got := NotifierKey(KindService, "web01", "http"); got != "web01/http" {
		t.Fatalf("unexpected service key %q", got)
	}
}
