package macros

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"monitoring/internal/clock"
	"monitoring/internal/notifier"
)

// Macro names filled by Grab.
const (
	HostName                = "HOSTNAME"
	HostState               = "HOSTSTATE"
	HostStateType           = "HOSTSTATETYPE"
	HostAttempt             = "HOSTATTEMPT"
	HostOutput              = "HOSTOUTPUT"
	HostDurationSec         = "HOSTDURATIONSEC"
	HostNotificationNumber  = "HOSTNOTIFICATIONNUMBER"
	HostNotificationID      = "HOSTNOTIFICATIONID"
	ServiceDesc             = "SERVICEDESC"
	ServiceState            = "SERVICESTATE"
	ServiceStateType        = "SERVICESTATETYPE"
	ServiceAttempt          = "SERVICEATTEMPT"
	ServiceOutput           = "SERVICEOUTPUT"
	ServiceDurationSec      = "SERVICEDURATIONSEC"
	ServiceNotificationNum  = "SERVICENOTIFICATIONNUMBER"
	ServiceNotificationID   = "SERVICENOTIFICATIONID"
	NotificationType        = "NOTIFICATIONTYPE"
	NotificationNumber      = "NOTIFICATIONNUMBER"
	NotificationID          = "NOTIFICATIONID"
	NotificationAuthor      = "NOTIFICATIONAUTHOR"
	NotificationComment     = "NOTIFICATIONCOMMENT"
	NotificationRecipients  = notifier.MacroNotificationRecipients
	NotificationIsEscalated = "NOTIFICATIONISESCALATED"
	ContactName             = "CONTACTNAME"
	ContactAlias            = "CONTACTALIAS"
	ContactEmail            = "CONTACTEMAIL"
	ContactPager            = "CONTACTPAGER"
	LongDateTime            = "LONGDATETIME"
	TimeT                   = "TIMET"
)

// contactDetails is implemented by contacts that carry address fields.
type contactDetails interface {
	Alias() string
	Email() string
	Pager() string
}

// Expander grabs notification macros and expands message templates.
// Params: clock used for date/time macros.
// Returns: notifier.Macros implementation.
type Expander struct {
	clock clock.Clock
}

// New creates macro expander.
// Params: clock (nil selects real clock).
// Returns: expander.
func New(clk clock.Clock) *Expander {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Expander{clock: clk}
}

// Grab collects per-contact macro values for one notification.
// Params: source notifier, notification being sent, and recipient.
// Returns: fresh macro map; NOTIFICATIONRECIPIENTS is filled by the caller.
func (e *Expander) Grab(n *notifier.Notifier, notification *notifier.Notification, contact notifier.Contact) notifier.MacroContext {
	now := e.clock.Now()
	out := notifier.MacroContext{
		HostName:                n.HostName(),
		NotificationType:        NotificationTypeName(n, notification.Reason()),
		NotificationNumber:      strconv.FormatUint(uint64(notification.Number()), 10),
		NotificationID:          strconv.FormatUint(notification.ID(), 10),
		NotificationAuthor:      notification.Author(),
		NotificationComment:     notification.Message(),
		NotificationIsEscalated: boolMacro(notification.Escalated()),
		LongDateTime:            now.Format(time.UnixDate),
		TimeT:                   strconv.FormatInt(now.Unix(), 10),
	}

	state := notifier.StateName(n.Kind(), n.CurrentState())
	duration := durationSeconds(n.LastStateChange(), now)
	attempt := strconv.Itoa(n.CurrentAttempt())
	number := out[NotificationNumber]
	id := out[NotificationID]
	if n.Kind() == notifier.KindService {
		out[ServiceDesc] = n.Description()
		out[ServiceState] = state
		out[ServiceStateType] = n.StateType().String()
		out[ServiceAttempt] = attempt
		out[ServiceOutput] = n.PluginOutput()
		out[ServiceDurationSec] = duration
		out[ServiceNotificationNum] = number
		out[ServiceNotificationID] = id
	} else {
		out[HostState] = state
		out[HostStateType] = n.StateType().String()
		out[HostAttempt] = attempt
		out[HostOutput] = n.PluginOutput()
		out[HostDurationSec] = duration
		out[HostNotificationNumber] = number
		out[HostNotificationID] = id
	}

	if contact != nil {
		out[ContactName] = contact.Name()
		if details, ok := contact.(contactDetails); ok {
			out[ContactAlias] = details.Alias()
			out[ContactEmail] = details.Email()
			out[ContactPager] = details.Pager()
		}
	}
	return out
}

// Process renders body as text/template and then expands $MACRO$ references.
// Params: message template and macro values.
// Returns: expanded message or template parse/execute error.
func (e *Expander) Process(body string, macros notifier.MacroContext) (string, error) {
	return Process(body, macros)
}

// Process is the stateless form of Expander.Process. Only body is template
// source; macro values reach the output verbatim in both passes.
func Process(body string, macros notifier.MacroContext) (string, error) {
	if !strings.Contains(body, "{{") {
		return Substitute(body, macros), nil
	}
	tpl, err := ParseTemplate("message", body)
	if err != nil {
		return "", fmt.Errorf("parse message template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, escapedValues(macros)); err != nil {
		return "", fmt.Errorf("render message template: %w", err)
	}
	return Substitute(buf.String(), macros), nil
}

// escapedValues doubles every "$" so Substitute restores values instead of expanding them.
func escapedValues(macros notifier.MacroContext) map[string]string {
	out := make(map[string]string, len(macros))
	for name, value := range macros {
		out[name] = strings.ReplaceAll(value, "$", "$$")
	}
	return out
}

// Substitute replaces $NAME$ references with macro values.
// Params: text and macro values.
// Returns: text where "$$" is a literal dollar, known macros are replaced, unknown
// well-formed macros become empty, and anything else is kept verbatim.
func Substitute(text string, macros notifier.MacroContext) string {
	if !strings.Contains(text, "$") {
		return text
	}
	var out strings.Builder
	out.Grow(len(text))
	for {
		start := strings.IndexByte(text, '$')
		if start < 0 {
			out.WriteString(text)
			return out.String()
		}
		out.WriteString(text[:start])
		rest := text[start+1:]
		end := strings.IndexByte(rest, '$')
		if end < 0 {
			out.WriteString(text[start:])
			return out.String()
		}
		name := rest[:end]
		switch {
		case name == "":
			out.WriteByte('$')
			text = rest[end+1:]
		case isMacroName(name):
			out.WriteString(macros[name])
			text = rest[end+1:]
		default:
			out.WriteByte('$')
			text = rest
		}
	}
}

// NotificationTypeName maps reason to the classic $NOTIFICATIONTYPE$ value.
// Params: notifier (its state distinguishes PROBLEM from RECOVERY) and reason.
// Returns: upper-case notification type.
func NotificationTypeName(n *notifier.Notifier, reason notifier.Reason) string {
	switch reason {
	case notifier.ReasonNormal:
		if n != nil && !n.IsProblem() {
			return "RECOVERY"
		}
		return "PROBLEM"
	default:
		return reason.String()
	}
}

func isMacroName(name string) bool {
	for _, r := range name {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func boolMacro(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func durationSeconds(since, now time.Time) string {
	if since.IsZero() || now.Before(since) {
		return "0"
	}
	return strconv.FormatInt(int64(now.Sub(since)/time.Second), 10)
}
