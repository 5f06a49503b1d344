package notifier

import (
	"sort"
	"time"
)

// ResolveRecipients selects contacts and repeat interval for a notification.
// Params: category and reason of the attempt.
// Returns: deduplicated contacts sorted by name, effective interval, and whether
// recipients came from at least one valid escalation.
func (n *Notifier) ResolveRecipients(category Category, reason Reason) ([]Contact, uint32, bool) {
	now := n.env.now()
	selected := make(map[string]Contact)
	interval := n.def.NotificationInterval
	escalated := false
	intervalFromEscalation := false

	for _, escalation := range n.def.Escalations {
		if !escalation.IsViable(n.currentState, n.notificationNumber, now) {
			continue
		}
		escalated = true
		if escalation.NotificationInterval >= 0 {
			candidate := uint32(escalation.NotificationInterval)
			if !intervalFromEscalation || candidate < interval {
				interval = candidate
				intervalFromEscalation = true
			}
		}
		for _, contact := range escalation.contacts {
			if contact.ShouldBeNotified(category, reason, n) {
				selected[contact.Name()] = contact
			}
		}
		for _, group := range escalation.groups {
			for _, member := range group.Members() {
				if member.ShouldBeNotified(category, reason, n) {
					selected[member.Name()] = member
				}
			}
		}
	}

	if !escalated {
		for _, contact := range n.contacts {
			selected[contact.Name()] = contact
		}
		for _, group := range n.contactGroups {
			for _, member := range group.Members() {
				selected[member.Name()] = member
			}
		}
	}

	return sortedContacts(selected), interval, escalated
}

// ShouldNotificationBeEscalated reports whether any escalation applies now.
// Params: none.
// Returns: true when at least one escalation is valid for current state and number.
func (n *Notifier) ShouldNotificationBeEscalated() bool {
	now := n.env.now()
	for _, escalation := range n.def.Escalations {
		if escalation.IsViable(n.currentState, n.notificationNumber, now) {
			return true
		}
	}
	return false
}

// IsContactForNotifier reports whether contact can ever be notified by notifier.
// Params: contact name.
// Returns: true for direct contacts, direct group members, and escalation recipients.
func (n *Notifier) IsContactForNotifier(name string) bool {
	for _, contact := range n.def.Contacts {
		if contact == name {
			return true
		}
	}
	for _, group := range n.contactGroups {
		for _, member := range group.Members() {
			if member.Name() == name {
				return true
			}
		}
	}
	for _, escalation := range n.def.Escalations {
		if escalation.references(name) {
			return true
		}
	}
	return false
}

// NextNotificationTime computes when a problem may be repeated.
// Params: reference time the interval is added to.
// Returns: offset plus the smallest applicable interval; also marks
// NoMoreNotifications when that interval is 0 on a non-volatile notifier.
func (n *Notifier) NextNotificationTime(offset time.Time) time.Time {
	now := n.env.now()
	interval := n.def.NotificationInterval
	found := false
	for _, escalation := range n.def.Escalations {
		if escalation.NotificationInterval < 0 {
			continue
		}
		if !escalation.IsViable(n.currentState, n.notificationNumber, now) {
			continue
		}
		candidate := uint32(escalation.NotificationInterval)
		if !found || candidate < interval {
			interval = candidate
			found = true
		}
	}
	n.noMoreNotifications = interval == 0 && !n.def.Volatile
	return offset.Add(n.env.intervals(interval))
}

func sortedContacts(selected map[string]Contact) []Contact {
	out := make([]Contact, 0, len(selected))
	for _, contact := range selected {
		out = append(out, contact)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}
