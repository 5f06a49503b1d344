package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errNoTransport = errors.New("no notification transport configured")

// Result describes the outcome of one Notify call.
// Params: suppression flag plus identifiers and delivery counters of the built notification.
// Returns: value for logs, metrics, and callers.
type Result struct {
	Suppressed bool
	Category   Category
	Reason     Reason
	ID         uint64
	Number     uint32
	Interval   uint32
	Escalated  bool
	Recipients []string
	Delivered  int
	Failed     int
}

// Notify decides, builds, and delivers one notification and updates bookkeeping.
// Params: context for delivery, reason, author, message template, and options.
// Returns: outcome; suppression and per-contact failures are not errors, only a
// context cancelled before delivery is reported.
func (n *Notifier) Notify(ctx context.Context, reason Reason, author, message string, options Option) (Result, error) {
	category := CategoryOf(reason)
	result := Result{Category: category, Reason: reason}

	if !n.IsViable(reason, options) {
		result.Suppressed = true
		return result, nil
	}

	if reason != ReasonRecovery {
		n.notificationNumber++
	}

	recipients, interval, escalated := n.ResolveRecipients(category, reason)
	id := n.env.IDs.Next()
	n.currentNotificationID = id
	notification := NewNotification(reason, author, message, options, id, n.notificationNumber, interval, escalated)

	result.ID = id
	result.Number = n.notificationNumber
	result.Interval = interval
	result.Escalated = escalated
	result.Recipients = contactNames(recipients)

	delivered, failed, err := n.execute(ctx, notification, recipients)
	result.Delivered = delivered
	result.Failed = failed
	if err != nil {
		return result, err
	}

	now := n.env.now()
	n.lastNotification = now
	if category == CategoryNormal {
		if previous := n.slots[CategoryNormal]; previous != nil {
			notification.AddContacts(previous.Contacts()...)
		}
		n.slots[CategoryNormal] = notification
		n.nextNotification = n.NextNotificationTime(now)
	} else {
		n.slots[category] = notification
		if category == CategoryRecovery {
			n.slots[CategoryNormal] = nil
		}
		n.notificationNumber = 0
		n.noMoreNotifications = false
	}

	n.log.Info("notification sent",
		"reason", reason.String(),
		"id", id,
		"number", result.Number,
		"escalated", escalated,
		"recipients", len(recipients),
		"delivered", delivered,
		"failed", failed,
	)
	return result, nil
}

// execute delivers notification to every recipient with try/continue semantics.
// Params: context, notification record, and resolved recipients.
// Returns: delivered and failed counters, and an error only when ctx is already done.
func (n *Notifier) execute(ctx context.Context, notification *Notification, recipients []Contact) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("notification %d of %s: %w", notification.ID(), n.key, err)
	}

	joined := strings.Join(contactNames(recipients), ",")
	delivered, failed := 0, 0
	for _, contact := range recipients {
		macros := n.grabMacros(notification, contact)
		macros[MacroNotificationRecipients] = joined

		text, err := n.processMacros(notification.Message(), macros)
		if err != nil {
			failed++
			n.log.Warn("notification message expansion failed",
				"contact", contact.Name(), "id", notification.ID(), "error", err.Error())
			continue
		}
		if err := n.deliver(ctx, Delivery{
			Contact:      contact,
			Notifier:     n,
			Notification: notification,
			Message:      text,
			Macros:       macros,
		}); err != nil {
			failed++
			n.log.Warn("notification delivery failed",
				"contact", contact.Name(), "id", notification.ID(), "error", err.Error())
			continue
		}
		notification.AddContacts(contact.Name())
		delivered++
	}
	return delivered, failed, nil
}

func (n *Notifier) grabMacros(notification *Notification, contact Contact) MacroContext {
	if n.env.Macros == nil {
		return MacroContext{}
	}
	macros := n.env.Macros.Grab(n, notification, contact)
	if macros == nil {
		macros = MacroContext{}
	}
	return macros
}

func (n *Notifier) processMacros(template string, macros MacroContext) (string, error) {
	if n.env.Macros == nil {
		return template, nil
	}
	return n.env.Macros.Process(template, macros)
}

func (n *Notifier) deliver(ctx context.Context, delivery Delivery) error {
	if n.env.Transport == nil {
		return errNoTransport
	}
	return n.env.Transport.Deliver(ctx, delivery)
}

func contactNames(contacts []Contact) []string {
	names := make([]string, 0, len(contacts))
	for _, contact := range contacts {
		names = append(names, contact.Name())
	}
	return names
}
