package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"monitoring/internal/clock"
)

var epoch = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fakeContact struct {
	name   string
	reject map[Category]bool
}

func (c *fakeContact) Name() string { return c.name }

func (c *fakeContact) ShouldBeNotified(category Category, _ Reason, _ *Notifier) bool {
	return !c.reject[category]
}

type fakeGroup struct {
	name    string
	members []Contact
}

func (g *fakeGroup) Name() string { return g.name }

func (g *fakeGroup) Members() []Contact { return g.members }

type fakePeriod struct {
	name  string
	allow bool
}

func (p *fakePeriod) Name() string { return p.name }

func (p *fakePeriod) CheckTime(time.Time) bool { return p.allow }

func (p *fakePeriod) NextValidTime(t time.Time) time.Time { return t }

type fakeCommand struct{ name string }

func (c fakeCommand) Name() string { return c.name }
func (c fakeCommand) Line() string { return "/bin/true" }

type fakeLookup struct {
	contacts map[string]Contact
	groups   map[string]ContactGroup
	periods  map[string]Timeperiod
	commands map[string]Command
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		contacts: make(map[string]Contact),
		groups:   make(map[string]ContactGroup),
		periods:  make(map[string]Timeperiod),
		commands: make(map[string]Command),
	}
}

func (l *fakeLookup) addContact(name string) *fakeContact {
	contact := &fakeContact{name: name, reject: map[Category]bool{}}
	l.contacts[name] = contact
	return contact
}

func (l *fakeLookup) addGroup(name string, members ...string) {
	group := &fakeGroup{name: name}
	for _, member := range members {
		group.members = append(group.members, l.contacts[member])
	}
	l.groups[name] = group
}

func (l *fakeLookup) FindCommand(name string) (Command, bool) {
	command, ok := l.commands[name]
	return command, ok
}

func (l *fakeLookup) FindTimeperiod(name string) (Timeperiod, bool) {
	period, ok := l.periods[name]
	return period, ok
}

func (l *fakeLookup) FindContact(name string) (Contact, bool) {
	contact, ok := l.contacts[name]
	return contact, ok
}

func (l *fakeLookup) FindContactGroup(name string) (ContactGroup, bool) {
	group, ok := l.groups[name]
	return group, ok
}

type recordingTransport struct {
	mu         sync.Mutex
	deliveries []Delivery
	failFor    map[string]bool
}

func (t *recordingTransport) Deliver(_ context.Context, delivery Delivery) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[delivery.Contact.Name()] {
		return errors.New("transport refused")
	}
	t.deliveries = append(t.deliveries, delivery)
	return nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deliveries)
}

type denyDependencies struct{}

func (denyDependencies) Authorized(*Notifier, DependencyKind) bool { return false }

type fixture struct {
	clock     *clock.ManualClock
	env       *Environment
	transport *recordingTransport
	lookup    *fakeLookup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManualClock(epoch)
	env := NewEnvironment(clk, nil)
	transport := &recordingTransport{failFor: map[string]bool{}}
	env.Transport = transport
	lookup := newFakeLookup()
	lookup.addContact("admin")
	lookup.periods["24x7"] = &fakePeriod{name: "24x7", allow: true}
	lookup.periods["never"] = &fakePeriod{name: "never", allow: false}
	return &fixture{clock: clk, env: env, transport: transport, lookup: lookup}
}

// at moves fixture clock to epoch plus seconds.
func (f *fixture) at(seconds int64) {
	f.clock.Set(epoch.Add(time.Duration(seconds) * time.Second))
}

func (f *fixture) notifier(t *testing.T, mutate func(def *Definition)) *Notifier {
	t.Helper()
	def := Definition{
		Kind:                 KindHost,
		HostName:             "web01",
		NotifyOn:             NotifyOnAll,
		NotificationsEnabled: true,
		NotificationInterval: 2,
		CheckInterval:        5,
		RetryInterval:        1,
		MaxCheckAttempts:     3,
		NotificationPeriod:   "24x7",
		CheckPeriod:          "24x7",
		Contacts:             []string{"admin"},
	}
	if mutate != nil {
		mutate(&def)
	}
	n, err := New(def, f.env)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := n.Resolve(f.lookup, nil, nil); err != nil {
		t.Fatalf("resolve notifier: %v", err)
	}
	return n
}

// hardProblem puts notifier into a hard problem state that changed at current fixture time.
func (f *fixture) hardProblem(n *Notifier, state State) {
	n.SetLastState(n.CurrentState())
	n.SetCurrentState(state)
	n.SetStateType(StateHard)
	n.SetLastHardState(state)
	n.SetLastHardStateChange(f.clock.Now())
}

// hardRecovery puts notifier back into hard OK/UP at current fixture time.
func (f *fixture) hardRecovery(n *Notifier) {
	n.SetLastState(n.CurrentState())
	n.SetCurrentState(0)
	n.SetStateType(StateHard)
	n.SetLastHardState(0)
	n.SetLastHardStateChange(f.clock.Now())
}

func mustNotify(t *testing.T, n *Notifier, reason Reason, options Option) Result {
	t.Helper()
	result, err := n.Notify(context.Background(), reason, "tester", "message", options)
	if err != nil {
		t.Fatalf("notify %s: %v", reason, err)
	}
	return result
}
