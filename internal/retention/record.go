package retention

import (
	"errors"
	"fmt"
	"time"

	"monitoring/internal/notifier"
)

// EngineKey is the record key holding process-wide engine state.
const EngineKey = "_engine"

// ErrInvalidRecord indicates a record that cannot be applied to its notifier.
var ErrInvalidRecord = errors.New("invalid retention record")

// Record is the persisted bookkeeping of one notifier, or of the engine under EngineKey.
// Params: notification counters, switches, check state, stored notification lines,
// and scheduled downtimes.
// Returns: JSON document stored per key.
type Record struct {
	NotificationNumber      uint32            `json:"notification_number,omitempty"`
	CurrentNotificationID   uint64            `json:"current_notification_id,omitempty"`
	LastNotificationUnix    int64             `json:"last_notification_unix,omitempty"`
	NextNotificationUnix    int64             `json:"next_notification_unix,omitempty"`
	Acknowledgement         int               `json:"acknowledgement,omitempty"`
	NotificationsEnabled    bool              `json:"notifications_enabled"`
	FlapDetectionEnabled    bool              `json:"flap_detection_enabled"`
	IsFlapping              bool              `json:"is_flapping,omitempty"`
	CurrentState            int               `json:"current_state,omitempty"`
	LastState               int               `json:"last_state,omitempty"`
	LastHardState           int               `json:"last_hard_state,omitempty"`
	StateType               int               `json:"state_type"`
	CurrentAttempt          int               `json:"current_attempt,omitempty"`
	LastStateChangeUnix     int64             `json:"last_state_change_unix,omitempty"`
	LastHardStateChangeUnix int64             `json:"last_hard_state_change_unix,omitempty"`
	LastCheckUnix           int64             `json:"last_check_unix,omitempty"`
	PluginOutput            string            `json:"plugin_output,omitempty"`
	Notifications           map[string]string `json:"notifications,omitempty"`
	FlapHistory             []int             `json:"flap_history,omitempty"`
	Downtimes               []Downtime        `json:"downtimes,omitempty"`

	// NextNotificationID is only set on the EngineKey record.
	NextNotificationID uint64 `json:"next_notification_id,omitempty"`
}

// Downtime is one scheduled downtime window.
// Flexible windows (Fixed false) start on the first problem inside [start, end]
// and last DurationSec; triggered windows start with their trigger.
type Downtime struct {
	ID          uint64 `json:"id"`
	StartUnix   int64  `json:"start_unix"`
	EndUnix     int64  `json:"end_unix"`
	Fixed       bool   `json:"fixed"`
	DurationSec int64  `json:"duration_sec,omitempty"`
	TriggerID   uint64 `json:"trigger_id,omitempty"`
	Author      string `json:"author,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Active      bool   `json:"active,omitempty"`
	StartedUnix int64  `json:"started_unix,omitempty"`
}

func (r Record) clone() Record {
	out := r
	if r.Notifications != nil {
		out.Notifications = make(map[string]string, len(r.Notifications))
		for category, line := range r.Notifications {
			out.Notifications[category] = line
		}
	}
	out.FlapHistory = append([]int(nil), r.FlapHistory...)
	out.Downtimes = append([]Downtime(nil), r.Downtimes...)
	return out
}

// Snapshot captures notifier bookkeeping into a record.
// Params: notifier.
// Returns: record without engine-owned fields (flap history, downtimes).
func Snapshot(n *notifier.Notifier) Record {
	record := Record{
		NotificationNumber:      n.NotificationNumber(),
		CurrentNotificationID:   n.CurrentNotificationID(),
		LastNotificationUnix:    unixOrZero(n.LastNotification()),
		NextNotificationUnix:    unixOrZero(n.NextNotification()),
		Acknowledgement:         int(n.Acknowledgement()),
		NotificationsEnabled:    n.NotificationsEnabled(),
		FlapDetectionEnabled:    n.FlapDetectionEnabled(),
		IsFlapping:              n.IsFlapping(),
		CurrentState:            int(n.CurrentState()),
		LastState:               int(n.LastState()),
		LastHardState:           int(n.LastHardState()),
		StateType:               int(n.StateType()),
		CurrentAttempt:          n.CurrentAttempt(),
		LastStateChangeUnix:     unixOrZero(n.LastStateChange()),
		LastHardStateChangeUnix: unixOrZero(n.LastHardStateChange()),
		LastCheckUnix:           unixOrZero(n.LastCheck()),
		PluginOutput:            n.PluginOutput(),
	}
	for _, category := range notifier.Categories() {
		line := n.StoredNotification(category)
		if line == "" {
			continue
		}
		if record.Notifications == nil {
			record.Notifications = make(map[string]string)
		}
		record.Notifications[category.String()] = line
	}
	return record
}

// Apply restores notifier bookkeeping from a record.
// Params: notifier and record.
// Returns: joined errors of stored notification lines that could not be restored;
// every other field is applied regardless. A record with states invalid for the
// notifier kind is rejected untouched.
func Apply(n *notifier.Notifier, record Record) error {
	for _, state := range []int{record.CurrentState, record.LastState, record.LastHardState} {
		if !notifier.ValidState(n.Kind(), notifier.State(state)) {
			return fmt.Errorf("%w: state %d is invalid for %s %s", ErrInvalidRecord, state, n.Kind(), n.Key())
		}
	}

	n.SetNotificationNumber(record.NotificationNumber)
	n.SetCurrentNotificationID(record.CurrentNotificationID)
	n.SetLastNotification(fromUnix(record.LastNotificationUnix))
	n.SetNextNotification(fromUnix(record.NextNotificationUnix))
	n.SetAcknowledgement(notifier.Acknowledgement(record.Acknowledgement))
	n.SetNotificationsEnabled(record.NotificationsEnabled)
	n.SetFlapDetectionEnabled(record.FlapDetectionEnabled)
	n.SetFlapping(record.IsFlapping)

	n.SetCurrentState(notifier.State(record.CurrentState))
	n.SetLastState(notifier.State(record.LastState))
	n.SetLastHardState(notifier.State(record.LastHardState))
	n.SetStateType(notifier.StateType(record.StateType))
	if record.CurrentAttempt > 0 {
		n.SetCurrentAttempt(record.CurrentAttempt)
	}
	n.SetLastStateChange(fromUnix(record.LastStateChangeUnix))
	n.SetLastHardStateChange(fromUnix(record.LastHardStateChangeUnix))
	n.SetLastCheck(fromUnix(record.LastCheckUnix))
	n.SetPluginOutput(record.PluginOutput)

	var problems []error
	for _, category := range notifier.Categories() {
		if err := n.SetStoredNotification(category, record.Notifications[category.String()]); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
