package notifier

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrInvalidDefinition indicates a structurally invalid notifier definition.
var ErrInvalidDefinition = errors.New("invalid notifier definition")

// Acknowledgement describes how a problem was acknowledged.
type Acknowledgement int

const (
	// AckNone means the problem is not acknowledged.
	AckNone Acknowledgement = iota
	// AckNormal is cleared by any state change.
	AckNormal
	// AckSticky survives problem state changes until recovery.
	AckSticky
)

// Definition is the configuration of one host or service notifier.
// Params: identity, notification behavior, check settings, and object references by name.
// Returns: input for New.
type Definition struct {
	Kind        Kind
	HostName    string
	Description string

	NotifyOn                  NotifyOn
	NotificationsEnabled      bool
	Volatile                  bool
	NotificationInterval      uint32
	FirstNotificationDelay    uint32
	RecoveryNotificationDelay uint32

	CheckInterval        float64
	RetryInterval        float64
	MaxCheckAttempts     int
	FlapDetectionEnabled bool

	NotificationPeriod string
	CheckPeriod        string
	CheckCommand       string
	EventHandler       string
	Contacts           []string
	ContactGroups      []string
	Escalations        []*Escalation
}

// Notifier is the mutable state machine of one monitored host or service.
// Params: definition plus shared environment.
// Returns: aggregate owned by the engine goroutine; methods are not safe for concurrent use.
type Notifier struct {
	def Definition
	env *Environment
	key string
	log *slog.Logger

	currentState        State
	lastState           State
	lastHardState       State
	stateType           StateType
	currentAttempt      int
	lastStateChange     time.Time
	lastHardStateChange time.Time
	lastCheck           time.Time
	pluginOutput        string

	notificationsEnabled bool
	flapDetectionEnabled bool
	isFlapping           bool
	downtimeDepth        uint
	acknowledgement      Acknowledgement

	notificationNumber    uint32
	currentNotificationID uint64
	lastNotification      time.Time
	nextNotification      time.Time
	noMoreNotifications   bool

	slots [categoryCount]*Notification

	notificationPeriod Timeperiod
	checkPeriod        Timeperiod
	checkCommand       Command
	eventHandler       Command
	contacts           []Contact
	contactGroups      []ContactGroup
	resolved           bool
}

// New validates definition and builds notifier in UP/OK hard state.
// Params: notifier definition and shared environment.
// Returns: notifier or ErrInvalidDefinition wrapped with the failing field.
func New(def Definition, env *Environment) (*Notifier, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: environment is required", ErrInvalidDefinition)
	}
	def.HostName = strings.TrimSpace(def.HostName)
	def.Description = strings.TrimSpace(def.Description)
	if def.HostName == "" {
		return nil, fmt.Errorf("%w: host name is required", ErrInvalidDefinition)
	}
	if def.Kind == KindService && def.Description == "" {
		return nil, fmt.Errorf("%w: service on host %q has no description", ErrInvalidDefinition, def.HostName)
	}
	key := NotifierKey(def.Kind, def.HostName, def.Description)
	if def.RetryInterval <= 0 {
		return nil, fmt.Errorf("%w: %s: retry interval must be positive, got %v", ErrInvalidDefinition, key, def.RetryInterval)
	}
	if def.CheckInterval < 0 {
		return nil, fmt.Errorf("%w: %s: check interval must be >=0, got %v", ErrInvalidDefinition, key, def.CheckInterval)
	}
	if def.MaxCheckAttempts <= 0 {
		return nil, fmt.Errorf("%w: %s: max check attempts must be positive, got %d", ErrInvalidDefinition, key, def.MaxCheckAttempts)
	}
	for i, escalation := range def.Escalations {
		if escalation == nil {
			return nil, fmt.Errorf("%w: %s: escalation %d is nil", ErrInvalidDefinition, key, i)
		}
		if escalation.LastNotification != 0 && escalation.LastNotification < escalation.FirstNotification {
			return nil, fmt.Errorf("%w: %s: escalation %d last notification %d is below first %d",
				ErrInvalidDefinition, key, i, escalation.LastNotification, escalation.FirstNotification)
		}
	}

	return &Notifier{
		def:                  def,
		env:                  env,
		key:                  key,
		log:                  env.logger().With("notifier", key),
		stateType:            StateHard,
		currentAttempt:       1,
		notificationsEnabled: def.NotificationsEnabled,
		flapDetectionEnabled: def.FlapDetectionEnabled,
	}, nil
}

// NotifierKey builds the unique notifier key.
// Params: kind, host name, and service description.
// Returns: "host" for hosts and "host/description" for services.
func NotifierKey(kind Kind, hostName, description string) string {
	if kind == KindService {
		return hostName + "/" + description
	}
	return hostName
}

// Key returns unique notifier key.
func (n *Notifier) Key() string { return n.key }

// Kind returns host or service.
func (n *Notifier) Kind() Kind { return n.def.Kind }

// HostName returns owning host name.
func (n *Notifier) HostName() string { return n.def.HostName }

// Description returns service description (empty for hosts).
func (n *Notifier) Description() string { return n.def.Description }

// Definition returns a copy of the configuration.
func (n *Notifier) Definition() Definition { return n.def }

// Environment returns shared engine environment.
func (n *Notifier) Environment() *Environment { return n.env }

// CurrentState returns current state code.
func (n *Notifier) CurrentState() State { return n.currentState }

// SetCurrentState records new current state.
func (n *Notifier) SetCurrentState(state State) { n.currentState = state }

// LastState returns previous state code.
func (n *Notifier) LastState() State { return n.lastState }

// SetLastState records previous state code.
func (n *Notifier) SetLastState(state State) { n.lastState = state }

// LastHardState returns last confirmed state.
func (n *Notifier) LastHardState() State { return n.lastHardState }

// SetLastHardState records last confirmed state.
func (n *Notifier) SetLastHardState(state State) { n.lastHardState = state }

// StateType returns soft or hard.
func (n *Notifier) StateType() StateType { return n.stateType }

// SetStateType records soft or hard.
func (n *Notifier) SetStateType(stateType StateType) { n.stateType = stateType }

// CurrentAttempt returns current check attempt.
func (n *Notifier) CurrentAttempt() int { return n.currentAttempt }

// SetCurrentAttempt records current check attempt.
func (n *Notifier) SetCurrentAttempt(attempt int) { n.currentAttempt = attempt }

// MaxCheckAttempts returns attempts needed to reach a hard state.
func (n *Notifier) MaxCheckAttempts() int { return n.def.MaxCheckAttempts }

// LastStateChange returns time of last state change.
func (n *Notifier) LastStateChange() time.Time { return n.lastStateChange }

// SetLastStateChange records time of last state change.
func (n *Notifier) SetLastStateChange(at time.Time) { n.lastStateChange = at }

// LastHardStateChange returns time of last hard state change.
func (n *Notifier) LastHardStateChange() time.Time { return n.lastHardStateChange }

// SetLastHardStateChange records time of last hard state change.
func (n *Notifier) SetLastHardStateChange(at time.Time) { n.lastHardStateChange = at }

// LastCheck returns time of last check result.
func (n *Notifier) LastCheck() time.Time { return n.lastCheck }

// SetLastCheck records time of last check result.
func (n *Notifier) SetLastCheck(at time.Time) { n.lastCheck = at }

// PluginOutput returns last check output.
func (n *Notifier) PluginOutput() string { return n.pluginOutput }

// SetPluginOutput records last check output.
func (n *Notifier) SetPluginOutput(output string) { n.pluginOutput = output }

// IsProblem reports whether current state is not OK/UP.
func (n *Notifier) IsProblem() bool { return n.currentState != 0 }

// NotificationsEnabled reports notifier-local notification switch.
func (n *Notifier) NotificationsEnabled() bool { return n.notificationsEnabled }

// SetNotificationsEnabled flips notifier-local notification switch.
func (n *Notifier) SetNotificationsEnabled(enabled bool) { n.notificationsEnabled = enabled }

// IsVolatile reports whether every problem result notifies.
func (n *Notifier) IsVolatile() bool { return n.def.Volatile }

// NotifyOn returns notify-on mask.
func (n *Notifier) NotifyOn() NotifyOn { return n.def.NotifyOn }

// NotifyOnCurrentState reports whether current state bit is enabled.
func (n *Notifier) NotifyOnCurrentState() bool {
	return n.def.NotifyOn.Has(StateFlag(n.currentState))
}

// IsFlapping reports flapping flag.
func (n *Notifier) IsFlapping() bool { return n.isFlapping }

// SetFlapping records flapping flag.
func (n *Notifier) SetFlapping(flapping bool) { n.isFlapping = flapping }

// FlapDetectionEnabled reports whether flap detection runs for notifier.
func (n *Notifier) FlapDetectionEnabled() bool { return n.flapDetectionEnabled }

// SetFlapDetectionEnabled flips flap detection.
func (n *Notifier) SetFlapDetectionEnabled(enabled bool) { n.flapDetectionEnabled = enabled }

// DowntimeDepth returns number of active scheduled downtimes.
func (n *Notifier) DowntimeDepth() uint { return n.downtimeDepth }

// SetDowntimeDepth records number of active scheduled downtimes.
func (n *Notifier) SetDowntimeDepth(depth uint) { n.downtimeDepth = depth }

// IsInDowntime reports whether at least one downtime is active.
func (n *Notifier) IsInDowntime() bool { return n.downtimeDepth > 0 }

// Acknowledgement returns acknowledgement type.
func (n *Notifier) Acknowledgement() Acknowledgement { return n.acknowledgement }

// SetAcknowledgement records acknowledgement type.
func (n *Notifier) SetAcknowledgement(ack Acknowledgement) { n.acknowledgement = ack }

// IsAcknowledged reports whether current problem is acknowledged.
func (n *Notifier) IsAcknowledged() bool { return n.acknowledgement != AckNone }

// NotificationNumber returns problem notification counter.
func (n *Notifier) NotificationNumber() uint32 { return n.notificationNumber }

// SetNotificationNumber overrides problem notification counter.
func (n *Notifier) SetNotificationNumber(number uint32) { n.notificationNumber = number }

// CurrentNotificationID returns id of the last built notification.
func (n *Notifier) CurrentNotificationID() uint64 { return n.currentNotificationID }

// SetCurrentNotificationID restores id of the last built notification.
func (n *Notifier) SetCurrentNotificationID(id uint64) { n.currentNotificationID = id }

// NextNotificationID returns the id the shared sequence will hand out next.
func (n *Notifier) NextNotificationID() uint64 { return n.env.IDs.Peek() }

// NotificationInterval returns default repeat interval in interval units.
func (n *Notifier) NotificationInterval() uint32 { return n.def.NotificationInterval }

// LastNotification returns time of last successful notification.
func (n *Notifier) LastNotification() time.Time { return n.lastNotification }

// SetLastNotification records time of last successful notification.
func (n *Notifier) SetLastNotification(at time.Time) { n.lastNotification = at }

// NextNotification returns earliest time for the next problem repeat.
func (n *Notifier) NextNotification() time.Time { return n.nextNotification }

// SetNextNotification records earliest time for the next problem repeat.
func (n *Notifier) SetNextNotification(at time.Time) { n.nextNotification = at }

// NoMoreNotifications reports that the problem will not be repeated.
func (n *Notifier) NoMoreNotifications() bool { return n.noMoreNotifications }

// ContactNames returns configured direct contact names.
func (n *Notifier) ContactNames() []string { return n.def.Contacts }

// ContactGroupNames returns configured contact group names.
func (n *Notifier) ContactGroupNames() []string { return n.def.ContactGroups }

// Escalations returns escalations in configuration order.
func (n *Notifier) Escalations() []*Escalation { return n.def.Escalations }

// NotificationPeriod returns resolved notification period (nil means always).
func (n *Notifier) NotificationPeriod() Timeperiod { return n.notificationPeriod }

// CheckCommand returns resolved check command (nil for passive-only).
func (n *Notifier) CheckCommand() Command { return n.checkCommand }

// Resolved reports whether Resolve succeeded.
func (n *Notifier) Resolved() bool { return n.resolved }

// Notification returns the stored notification of category.
// Params: category slot.
// Returns: stored notification or nil when slot is empty.
func (n *Notifier) Notification(category Category) *Notification {
	if category < 0 || category >= categoryCount {
		return nil
	}
	return n.slots[category]
}

// StoredNotification serializes category slot for retention.
// Params: category slot.
// Returns: retention line or empty string for empty slot.
func (n *Notifier) StoredNotification(category Category) string {
	stored := n.Notification(category)
	if stored == nil {
		return ""
	}
	return stored.String()
}

// SetStoredNotification restores category slot from retention.
// Params: category slot and retention line (empty clears the slot).
// Returns: decode error; slot is left untouched on error.
func (n *Notifier) SetStoredNotification(category Category, line string) error {
	if category < 0 || category >= categoryCount {
		return fmt.Errorf("unknown notification category %d", int(category))
	}
	if strings.TrimSpace(line) == "" {
		n.slots[category] = nil
		return nil
	}
	notification, err := ParseNotification(line)
	if err != nil {
		return fmt.Errorf("restore %s notification of %s: %w", category, n.key, err)
	}
	if CategoryOf(notification.Reason()) != category {
		return fmt.Errorf("restore %s notification of %s: reason %s belongs to %s",
			category, n.key, notification.Reason(), CategoryOf(notification.Reason()))
	}
	n.slots[category] = notification
	return nil
}
