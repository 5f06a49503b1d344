package notifier

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedNotification indicates a retention line that cannot be decoded.
var ErrMalformedNotification = errors.New("malformed stored notification")

// Notification is one concrete notification attempt recorded by a notifier.
// Params: reason, author, message, options, assigned id/number, interval, escalation flag.
// Returns: value object stored in the per-category slot after a successful send.
type Notification struct {
	reason    Reason
	author    string
	message   string
	options   Option
	id        uint64
	number    uint32
	interval  uint32
	escalated bool
	contacts  map[string]struct{}
}

// NewNotification builds notification record with empty recipient set.
// Params: reason, author, message, options, id, number, interval, and escalation flag.
// Returns: notification value.
func NewNotification(
	reason Reason,
	author, message string,
	options Option,
	id uint64,
	number, interval uint32,
	escalated bool,
) *Notification {
	return &Notification{
		reason:    reason,
		author:    author,
		message:   message,
		options:   options,
		id:        id,
		number:    number,
		interval:  interval,
		escalated: escalated,
		contacts:  make(map[string]struct{}),
	}
}

// Reason returns triggering reason.
func (n *Notification) Reason() Reason { return n.reason }

// Category returns the category derived from reason.
func (n *Notification) Category() Category { return CategoryOf(n.reason) }

// Author returns notification author.
func (n *Notification) Author() string { return n.author }

// Message returns the unprocessed notification message.
func (n *Notification) Message() string { return n.message }

// Options returns request option bits.
func (n *Notification) Options() Option { return n.options }

// ID returns globally unique notification id.
func (n *Notification) ID() uint64 { return n.id }

// Number returns notification sequence number.
func (n *Notification) Number() uint32 { return n.number }

// Interval returns the repeat interval chosen for this notification.
func (n *Notification) Interval() uint32 { return n.interval }

// Escalated reports whether recipients came from escalations.
func (n *Notification) Escalated() bool { return n.escalated }

// AddContacts records contacts that received the notification.
// Params: contact names.
// Returns: none.
func (n *Notification) AddContacts(names ...string) {
	if n.contacts == nil {
		n.contacts = make(map[string]struct{}, len(names))
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		n.contacts[name] = struct{}{}
	}
}

// SentTo reports whether contact received the notification.
// Params: contact name.
// Returns: true when contact is in notified set.
func (n *Notification) SentTo(name string) bool {
	_, ok := n.contacts[name]
	return ok
}

// Contacts returns notified contact names in sorted order.
// Params: none.
// Returns: fresh sorted slice.
func (n *Notification) Contacts() []string {
	out := make([]string, 0, len(n.contacts))
	for name := range n.contacts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// String encodes notification into the flat retention line.
// Params: none.
// Returns: line terminated by newline.
func (n *Notification) String() string {
	var builder strings.Builder
	builder.Grow(96 + len(n.author) + 16*len(n.contacts))
	builder.WriteString("type: ")
	builder.WriteString(strconv.Itoa(int(n.reason)))
	builder.WriteString(", author: ")
	builder.WriteString(n.author)
	builder.WriteString(", options: ")
	builder.WriteString(strconv.FormatUint(uint64(n.options), 10))
	builder.WriteString(", escalated: ")
	if n.escalated {
		builder.WriteByte('1')
	} else {
		builder.WriteByte('0')
	}
	builder.WriteString(", id: ")
	builder.WriteString(strconv.FormatUint(n.id, 10))
	builder.WriteString(", number: ")
	builder.WriteString(strconv.FormatUint(uint64(n.number), 10))
	builder.WriteString(", interval: ")
	builder.WriteString(strconv.FormatUint(uint64(n.interval), 10))
	builder.WriteString(", contacts: ")
	for _, name := range n.Contacts() {
		builder.WriteString(name)
		builder.WriteByte(',')
	}
	builder.WriteByte('\n')
	return builder.String()
}

// ParseNotification decodes a retention line produced by Notification.String.
// Params: retention line (trailing newline optional).
// Returns: decoded notification or ErrMalformedNotification.
func ParseNotification(line string) (*Notification, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "type: ") {
		return nil, fmt.Errorf("%w: missing type field", ErrMalformedNotification)
	}

	contactsAt := strings.LastIndex(line, ", contacts: ")
	if contactsAt < 0 {
		return nil, fmt.Errorf("%w: missing contacts field", ErrMalformedNotification)
	}
	head := line[:contactsAt]
	contactsPart := line[contactsAt+len(", contacts: "):]

	optionsAt := strings.LastIndex(head, ", options: ")
	if optionsAt < 0 {
		return nil, fmt.Errorf("%w: missing options field", ErrMalformedNotification)
	}
	typeAndAuthor := head[:optionsAt]
	typePart, author, found := strings.Cut(typeAndAuthor, ", author: ")
	if !found {
		return nil, fmt.Errorf("%w: missing author field", ErrMalformedNotification)
	}
	code, err := strconv.Atoi(strings.TrimPrefix(typePart, "type: "))
	if err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrMalformedNotification, err)
	}
	reason, err := ReasonFromCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	fields, err := parseNumericFields(head[optionsAt+2:])
	if err != nil {
		return nil, err
	}

	notification := NewNotification(
		reason,
		author,
		"",
		Option(fields["options"]),
		fields["id"],
		uint32(fields["number"]),
		uint32(fields["interval"]),
		fields["escalated"] != 0,
	)
	for _, name := range strings.Split(contactsPart, ",") {
		notification.AddContacts(strings.TrimSpace(name))
	}
	return notification, nil
}

// parseNumericFields decodes the "key: value, key: value" tail of a retention line.
// Params: tail starting at options field.
// Returns: parsed values for every required key.
func parseNumericFields(tail string) (map[string]uint64, error) {
	required := []string{"options", "escalated", "id", "number", "interval"}
	out := make(map[string]uint64, len(required))
	for _, pair := range strings.Split(tail, ", ") {
		key, value, ok := strings.Cut(pair, ": ")
		if !ok {
			return nil, fmt.Errorf("%w: bad field %q", ErrMalformedNotification, pair)
		}
		parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedNotification, key, err)
		}
		out[key] = parsed
	}
	for _, key := range required {
		if _, ok := out[key]; !ok {
			return nil, fmt.Errorf("%w: missing %s field", ErrMalformedNotification, key)
		}
	}
	if out["number"] > uint64(^uint32(0)) || out["interval"] > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: number or interval overflows", ErrMalformedNotification)
	}
	return out, nil
}
