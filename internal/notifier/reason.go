package notifier

import (
	"fmt"
	"strings"
)

// Reason identifies the event that triggered one notification attempt.
// Params: numeric code persisted in retention lines.
// Returns: reason enum value.
type Reason int

const (
	// ReasonNormal announces a problem state.
	ReasonNormal Reason = 0
	// ReasonRecovery announces the return to OK/UP.
	ReasonRecovery Reason = 1
	// ReasonAcknowledgement announces an operator acknowledgement.
	ReasonAcknowledgement Reason = 2
	// ReasonFlappingStart announces flapping detection start.
	ReasonFlappingStart Reason = 3
	// ReasonFlappingStop announces flapping detection stop.
	ReasonFlappingStop Reason = 4
	// ReasonFlappingDisabled announces flap detection being switched off while flapping.
	ReasonFlappingDisabled Reason = 5
	// ReasonDowntimeStart announces a scheduled downtime start.
	ReasonDowntimeStart Reason = 6
	// ReasonDowntimeEnd announces a scheduled downtime end.
	ReasonDowntimeEnd Reason = 7
	// ReasonDowntimeCancelled announces a scheduled downtime removal.
	ReasonDowntimeCancelled Reason = 8
	// ReasonCustom announces an operator-requested custom notification.
	ReasonCustom Reason = 99
)

var reasonNames = map[Reason]string{
	ReasonNormal:            "NORMAL",
	ReasonRecovery:          "RECOVERY",
	ReasonAcknowledgement:   "ACKNOWLEDGEMENT",
	ReasonFlappingStart:     "FLAPPINGSTART",
	ReasonFlappingStop:      "FLAPPINGSTOP",
	ReasonFlappingDisabled:  "FLAPPINGDISABLED",
	ReasonDowntimeStart:     "DOWNTIMESTART",
	ReasonDowntimeEnd:       "DOWNTIMEEND",
	ReasonDowntimeCancelled: "DOWNTIMECANCELLED",
	ReasonCustom:            "CUSTOM",
}

// String returns upper-case reason name used by logs and macros.
// Params: none.
// Returns: reason name or numeric fallback.
func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REASON(%d)", int(r))
}

// Valid reports whether reason belongs to the known reason table.
func (r Reason) Valid() bool {
	_, ok := reasonNames[r]
	return ok
}

// ReasonFromCode converts retention code into reason.
// Params: numeric reason code.
// Returns: reason or error for unknown code.
func ReasonFromCode(code int) (Reason, error) {
	reason := Reason(code)
	if !reason.Valid() {
		return 0, fmt.Errorf("unknown notification reason code %d", code)
	}
	return reason, nil
}

// ReasonFromName converts case-insensitive reason name into reason.
// Params: reason name such as "flappingstart".
// Returns: reason and true when known.
func ReasonFromName(name string) (Reason, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for reason, reasonName := range reasonNames {
		if reasonName == normalized {
			return reason, true
		}
	}
	return 0, false
}

// Category groups reasons that share one viability rule and one stored slot.
type Category int

const (
	// CategoryNormal holds problem notifications.
	CategoryNormal Category = iota
	// CategoryRecovery holds recovery notifications.
	CategoryRecovery
	// CategoryAcknowledgement holds acknowledgement notifications.
	CategoryAcknowledgement
	// CategoryFlapping holds flapping start/stop/disabled notifications.
	CategoryFlapping
	// CategoryDowntime holds downtime start/end/cancelled notifications.
	CategoryDowntime
	// CategoryCustom holds custom notifications.
	CategoryCustom

	categoryCount
)

var categoryNames = [categoryCount]string{
	CategoryNormal:          "normal",
	CategoryRecovery:        "recovery",
	CategoryAcknowledgement: "acknowledgement",
	CategoryFlapping:        "flapping",
	CategoryDowntime:        "downtime",
	CategoryCustom:          "custom",
}

// String returns lower-case category name.
// Params: none.
// Returns: category label for logs and metrics.
func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Categories lists every category in slot order.
// Params: none.
// Returns: fresh category slice.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := CategoryNormal; c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// CategoryOf classifies reason into its notification category.
// Params: triggering reason.
// Returns: owning category; unknown reasons fall into custom.
func CategoryOf(reason Reason) Category {
	switch reason {
	case ReasonNormal:
		return CategoryNormal
	case ReasonRecovery:
		return CategoryRecovery
	case ReasonAcknowledgement:
		return CategoryAcknowledgement
	case ReasonFlappingStart, ReasonFlappingStop, ReasonFlappingDisabled:
		return CategoryFlapping
	case ReasonDowntimeStart, ReasonDowntimeEnd, ReasonDowntimeCancelled:
		return CategoryDowntime
	default:
		return CategoryCustom
	}
}

// Option is a bitmask of notification request flags.
type Option uint32

const (
	// OptionNone requests default behavior.
	OptionNone Option = 0
	// OptionBroadcast is carried for custom notifications addressed to everyone.
	OptionBroadcast Option = 1 << 0
	// OptionForced bypasses suppression checks.
	OptionForced Option = 1 << 1
	// OptionIncrement is carried for custom notifications that bump the counter.
	OptionIncrement Option = 1 << 2
)

// Has reports whether option set contains flag.
func (o Option) Has(flag Option) bool {
	return o&flag != 0
}
