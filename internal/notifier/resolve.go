package notifier

import (
	"errors"
	"fmt"
)

// ErrResolve indicates one or more unresolved configuration references.
var ErrResolve = errors.New("notifier configuration cannot be resolved")

// Resolve binds configured names to collaborator handles.
// Params: object lookup plus warning and error counters to accumulate into.
// Returns: nil, or one ErrResolve aggregate listing every missing reference.
func (n *Notifier) Resolve(lookup Lookup, warnings, errs *int) error {
	var (
		localWarnings int
		problems      []error
	)
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}
	warn := func(message string, args ...any) {
		localWarnings++
		n.log.Warn(message, args...)
	}

	n.checkCommand = nil
	if name := n.def.CheckCommand; name != "" {
		command, ok := lookup.FindCommand(name)
		if !ok {
			fail("check command %q is not defined", name)
		} else {
			n.checkCommand = command
		}
	}

	n.eventHandler = nil
	if name := n.def.EventHandler; name != "" {
		command, ok := lookup.FindCommand(name)
		if !ok {
			fail("event handler command %q is not defined", name)
		} else {
			n.eventHandler = command
		}
	}

	n.checkPeriod = nil
	if name := n.def.CheckPeriod; name == "" {
		warn("no check period defined, notifier is checked at any time")
	} else if period, ok := lookup.FindTimeperiod(name); !ok {
		fail("check period %q is not defined", name)
	} else {
		n.checkPeriod = period
	}

	n.notificationPeriod = nil
	if name := n.def.NotificationPeriod; name == "" {
		if n.notificationsEnabled {
			warn("no notification period defined, notifications may be sent at any time")
		}
	} else if period, ok := lookup.FindTimeperiod(name); !ok {
		fail("notification period %q is not defined", name)
	} else {
		n.notificationPeriod = period
	}

	n.contacts = n.contacts[:0]
	for _, name := range n.def.Contacts {
		contact, ok := lookup.FindContact(name)
		if !ok {
			fail("contact %q is not defined", name)
			continue
		}
		n.contacts = append(n.contacts, contact)
	}

	n.contactGroups = n.contactGroups[:0]
	for _, name := range n.def.ContactGroups {
		group, ok := lookup.FindContactGroup(name)
		if !ok {
			fail("contact group %q is not defined", name)
			continue
		}
		n.contactGroups = append(n.contactGroups, group)
	}

	for i, escalation := range n.def.Escalations {
		escalation.period = nil
		if escalation.Period != "" {
			period, ok := lookup.FindTimeperiod(escalation.Period)
			if !ok {
				fail("escalation %d: escalation period %q is not defined", i, escalation.Period)
			} else {
				escalation.period = period
			}
		}
		escalation.contacts = escalation.contacts[:0]
		for _, name := range escalation.Contacts {
			contact, ok := lookup.FindContact(name)
			if !ok {
				fail("escalation %d: contact %q is not defined", i, name)
				continue
			}
			escalation.contacts = append(escalation.contacts, contact)
		}
		escalation.groups = escalation.groups[:0]
		for _, name := range escalation.ContactGroups {
			group, ok := lookup.FindContactGroup(name)
			if !ok {
				fail("escalation %d: contact group %q is not defined", i, name)
				continue
			}
			escalation.groups = append(escalation.groups, group)
		}
	}

	if len(n.def.Contacts) == 0 && len(n.def.ContactGroups) == 0 {
		warn("notifier has no default contacts or contact groups")
	}

	if warnings != nil {
		*warnings += localWarnings
	}
	if errs != nil {
		*errs += len(problems)
	}
	if len(problems) > 0 {
		n.resolved = false
		for _, problem := range problems {
			n.log.Error("configuration reference unresolved", "error", problem.Error())
		}
		return fmt.Errorf("%w: %s: %w", ErrResolve, n.key, errors.Join(problems...))
	}
	n.resolved = true
	return nil
}
