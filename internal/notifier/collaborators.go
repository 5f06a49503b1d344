package notifier

import (
	"context"
	"time"
)

// Timeperiod answers whether a point in time is inside a configured period.
type Timeperiod interface {
	Name() string
	CheckTime(t time.Time) bool
	NextValidTime(t time.Time) time.Time
}

// Contact is one resolved recipient.
// Params: contact identity and its own per-category acceptance predicate.
// Returns: recipient handle used by contact resolution and delivery.
type Contact interface {
	Name() string
	ShouldBeNotified(category Category, reason Reason, n *Notifier) bool
}

// ContactGroup is a named set of contacts.
type ContactGroup interface {
	Name() string
	Members() []Contact
}

// Command is a named command line (check, event handler, notification).
type Command interface {
	Name() string
	Line() string
}

// Lookup resolves configuration names into collaborator handles.
// Params: object names from notifier definitions.
// Returns: handle and true when the object exists.
type Lookup interface {
	FindCommand(name string) (Command, bool)
	FindTimeperiod(name string) (Timeperiod, bool)
	FindContact(name string) (Contact, bool)
	FindContactGroup(name string) (ContactGroup, bool)
}

// DependencyKind selects which dependency relation is consulted.
type DependencyKind int

const (
	// DependencyNotification gates notifications.
	DependencyNotification DependencyKind = iota
	// DependencyExecution gates check execution.
	DependencyExecution
)

// DependencyAuthorizer decides whether dependencies allow an action for notifier.
type DependencyAuthorizer interface {
	Authorized(n *Notifier, kind DependencyKind) bool
}

// MacroContext maps macro names (without dollar signs) to values.
type MacroContext map[string]string

// MacroNotificationRecipients is the macro carrying comma-joined recipient names.
const MacroNotificationRecipients = "NOTIFICATIONRECIPIENTS"

// Macros grabs per-contact macro values and expands message templates.
type Macros interface {
	Grab(n *Notifier, notification *Notification, contact Contact) MacroContext
	Process(template string, macros MacroContext) (string, error)
}

// Delivery is one per-contact transport request.
// Params: recipient, source notifier, notification record, processed message, and macros.
// Returns: payload handed to Transport.Deliver.
type Delivery struct {
	Contact      Contact
	Notifier     *Notifier
	Notification *Notification
	Message      string
	Macros       MacroContext
}

// Transport delivers one notification to one contact.
// Params: context and delivery request.
// Returns: nil on success; any error counts as failure for that contact only.
type Transport interface {
	Deliver(ctx context.Context, delivery Delivery) error
}
