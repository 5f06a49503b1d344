package notifier

import "time"

// Escalation overrides recipients and repeat interval for a range of notification numbers.
// Params: applicability (states, number range, period), interval override, and recipients.
// Returns: rule consulted by contact resolution; immutable once resolved.
type Escalation struct {
	// FirstNotification is the first notification number the rule applies to.
	FirstNotification uint32
	// LastNotification is the last applicable number; 0 means no upper bound.
	LastNotification uint32
	// NotificationInterval overrides repeat interval; negative defers to the notifier.
	NotificationInterval int32
	// EscalateOn restricts applicable states; 0 means every state.
	EscalateOn NotifyOn
	// Period names the escalation timeperiod; empty means always.
	Period string
	// Contacts lists direct contact names.
	Contacts []string
	// ContactGroups lists contact group names.
	ContactGroups []string

	period   Timeperiod
	contacts []Contact
	groups   []ContactGroup
}

// IsViable reports whether escalation applies to notifier state and number.
// Params: current state, notification number, and evaluation time.
// Returns: true when state, range, and period all match.
func (e *Escalation) IsViable(state State, number uint32, now time.Time) bool {
	if e.EscalateOn != 0 && !e.EscalateOn.Has(StateFlag(state)) {
		return false
	}
	if number < e.FirstNotification {
		return false
	}
	if e.LastNotification != 0 && number > e.LastNotification {
		return false
	}
	if e.period != nil && !e.period.CheckTime(now) {
		return false
	}
	return true
}

// ResolvedContacts returns contact handles cached by Resolve.
func (e *Escalation) ResolvedContacts() []Contact {
	return e.contacts
}

// ResolvedContactGroups returns contact group handles cached by Resolve.
func (e *Escalation) ResolvedContactGroups() []ContactGroup {
	return e.groups
}

// references reports whether escalation names contact directly or via a resolved group.
func (e *Escalation) references(contact string) bool {
	for _, name := range e.Contacts {
		if name == contact {
			return true
		}
	}
	for _, group := range e.groups {
		for _, member := range group.Members() {
			if member.Name() == contact {
				return true
			}
		}
	}
	return false
}
