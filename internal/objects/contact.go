package objects

import (
	"monitoring/internal/notifier"
)

// contactFilter holds the per-kind (host or service) acceptance settings of one contact.
type contactFilter struct {
	enabled  bool
	notifyOn notifier.NotifyOn
	period   notifier.Timeperiod
	command  *Command
}

// Contact is one notification recipient.
// Params: identity, channel addresses, and host/service filters.
// Returns: notifier.Contact implementation with delivery details.
type Contact struct {
	name      string
	alias     string
	email     string
	pager     string
	channels  []string
	addresses map[string]string
	templates map[string]string
	host      contactFilter
	service   contactFilter
}

// Name returns contact name.
func (c *Contact) Name() string { return c.name }

// Alias returns display alias.
func (c *Contact) Alias() string { return c.alias }

// Email returns email address.
func (c *Contact) Email() string { return c.email }

// Pager returns pager address.
func (c *Contact) Pager() string { return c.pager }

// Channels returns delivery channel keys in configured order.
func (c *Contact) Channels() []string { return append([]string(nil), c.channels...) }

// Address returns the per-channel address (chat id, channel id, webhook URL).
func (c *Contact) Address(channel string) string { return c.addresses[channel] }

// Template returns the named template selected for channel, or "".
func (c *Contact) Template(channel string) string { return c.templates[channel] }

// NotificationCommand returns the command run by the command channel.
// Params: notifier kind.
// Returns: host or service notification command, nil when unset.
func (c *Contact) NotificationCommand(kind notifier.Kind) notifier.Command {
	command := c.filter(kind).command
	if command == nil {
		return nil
	}
	return command
}

// NotifyOn returns the contact's acceptance mask for kind.
func (c *Contact) NotifyOn(kind notifier.Kind) notifier.NotifyOn {
	return c.filter(kind).notifyOn
}

// ShouldBeNotified decides whether contact accepts one notification.
// Params: category, reason, and source notifier.
// Returns: false when the per-kind switch or period rejects it, otherwise the
// per-category rule.
func (c *Contact) ShouldBeNotified(category notifier.Category, reason notifier.Reason, n *notifier.Notifier) bool {
	filter := c.filter(n.Kind())
	if !filter.enabled {
		return false
	}
	if filter.period != nil && !filter.period.CheckTime(n.Environment().Clock.Now()) {
		return false
	}

	switch category {
	case notifier.CategoryNormal:
		return filter.notifyOn.Has(notifier.StateFlag(n.CurrentState()))
	case notifier.CategoryRecovery:
		if !filter.notifyOn.Has(notifier.NotifyOnOK) {
			return false
		}
		normal := n.Notification(notifier.CategoryNormal)
		return normal != nil && normal.SentTo(c.name)
	case notifier.CategoryFlapping:
		return filter.notifyOn.Has(notifier.FlappingFlag(reason))
	case notifier.CategoryDowntime:
		return filter.notifyOn.Has(notifier.NotifyOnDowntime)
	default:
		return true
	}
}

func (c *Contact) filter(kind notifier.Kind) contactFilter {
	if kind == notifier.KindService {
		return c.service
	}
	return c.host
}
