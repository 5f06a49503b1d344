package notifier

import (
	"fmt"
	"strings"
)

// Kind distinguishes host notifiers from service notifiers.
type Kind int

const (
	// KindHost marks a host notifier.
	KindHost Kind = iota
	// KindService marks a service notifier.
	KindService
)

// String returns lower-case kind name.
func (k Kind) String() string {
	if k == KindService {
		return "service"
	}
	return "host"
}

// State is the current check state code; 0 is always OK/UP.
type State int

const (
	// HostUp is the healthy host state.
	HostUp State = 0
	// HostDown is the failed host state.
	HostDown State = 1
	// HostUnreachable marks a host hidden behind a failed parent.
	HostUnreachable State = 2

	// ServiceOK is the healthy service state.
	ServiceOK State = 0
	// ServiceWarning is the degraded service state.
	ServiceWarning State = 1
	// ServiceCritical is the failed service state.
	ServiceCritical State = 2
	// ServiceUnknown marks a service whose check could not decide.
	ServiceUnknown State = 3
)

var (
	hostStateNames    = []string{"UP", "DOWN", "UNREACHABLE"}
	serviceStateNames = []string{"OK", "WARNING", "CRITICAL", "UNKNOWN"}
)

// StateName renders state code for given notifier kind.
// Params: notifier kind and state code.
// Returns: upper-case state name.
func StateName(kind Kind, state State) string {
	names := hostStateNames
	if kind == KindService {
		names = serviceStateNames
	}
	if state < 0 || int(state) >= len(names) {
		return fmt.Sprintf("STATE(%d)", int(state))
	}
	return names[state]
}

// ValidState reports whether state code is legal for kind.
func ValidState(kind Kind, state State) bool {
	if kind == KindService {
		return state >= ServiceOK && state <= ServiceUnknown
	}
	return state >= HostUp && state <= HostUnreachable
}

// StateType separates confirmed (hard) states from retrying (soft) ones.
type StateType int

const (
	// StateSoft marks a state still being re-checked.
	StateSoft StateType = iota
	// StateHard marks a confirmed state.
	StateHard
)

// String returns upper-case state type name.
func (t StateType) String() string {
	if t == StateHard {
		return "HARD"
	}
	return "SOFT"
}

// NotifyOn is a bitmask of states and events a notifier (or contact) announces.
type NotifyOn uint32

const (
	// NotifyOnOK enables recovery announcements (OK/UP).
	NotifyOnOK NotifyOn = 1 << 0
	// NotifyOnWarning enables WARNING (service) / DOWN (host).
	NotifyOnWarning NotifyOn = 1 << 1
	// NotifyOnCritical enables CRITICAL (service) / UNREACHABLE (host).
	NotifyOnCritical NotifyOn = 1 << 2
	// NotifyOnUnknown enables UNKNOWN (service).
	NotifyOnUnknown NotifyOn = 1 << 3
	// NotifyOnFlappingStart enables flapping start announcements.
	NotifyOnFlappingStart NotifyOn = 1 << 4
	// NotifyOnFlappingStop enables flapping stop announcements.
	NotifyOnFlappingStop NotifyOn = 1 << 5
	// NotifyOnFlappingDisabled enables flap-detection-disabled announcements.
	NotifyOnFlappingDisabled NotifyOn = 1 << 6
	// NotifyOnDowntime enables downtime announcements.
	NotifyOnDowntime NotifyOn = 1 << 7

	// NotifyOnUp aliases NotifyOnOK for hosts.
	NotifyOnUp = NotifyOnOK
	// NotifyOnDown aliases NotifyOnWarning for hosts.
	NotifyOnDown = NotifyOnWarning
	// NotifyOnUnreachable aliases NotifyOnCritical for hosts.
	NotifyOnUnreachable = NotifyOnCritical

	// NotifyOnFlapping enables every flapping announcement.
	NotifyOnFlapping = NotifyOnFlappingStart | NotifyOnFlappingStop | NotifyOnFlappingDisabled
	// NotifyOnStates enables every state announcement.
	NotifyOnStates = NotifyOnOK | NotifyOnWarning | NotifyOnCritical | NotifyOnUnknown
	// NotifyOnAll enables everything.
	NotifyOnAll = NotifyOnStates | NotifyOnFlapping | NotifyOnDowntime
)

// Has reports whether mask contains every bit of flag.
func (n NotifyOn) Has(flag NotifyOn) bool {
	return flag != 0 && n&flag == flag
}

// StateFlag maps state code to its notify-on bit.
// Params: state code.
// Returns: single-bit mask or 0 for out-of-range state.
func StateFlag(state State) NotifyOn {
	if state < 0 || state > ServiceUnknown {
		return 0
	}
	return NotifyOn(1) << uint(state)
}

// FlappingFlag maps flapping reason to its notify-on bit.
// Params: flapping reason.
// Returns: single-bit mask or 0 for non-flapping reasons.
func FlappingFlag(reason Reason) NotifyOn {
	switch reason {
	case ReasonFlappingStart:
		return NotifyOnFlappingStart
	case ReasonFlappingStop:
		return NotifyOnFlappingStop
	case ReasonFlappingDisabled:
		return NotifyOnFlappingDisabled
	default:
		return 0
	}
}

// ParseNotifyOn converts option words into notify-on mask.
// Params: notifier kind (host "u" means unreachable, service "u" means unknown) and option words.
// Returns: mask or error for unsupported word.
func ParseNotifyOn(kind Kind, options []string) (NotifyOn, error) {
	var mask NotifyOn
	for _, raw := range options {
		word := strings.ToLower(strings.TrimSpace(raw))
		switch word {
		case "":
			continue
		case "n", "none":
			continue
		case "a", "all":
			mask |= NotifyOnAll
		case "r", "o", "ok", "up", "recovery":
			mask |= NotifyOnOK
		case "f", "flapping":
			mask |= NotifyOnFlapping
		case "flappingstart":
			mask |= NotifyOnFlappingStart
		case "flappingstop":
			mask |= NotifyOnFlappingStop
		case "flappingdisabled":
			mask |= NotifyOnFlappingDisabled
		case "s", "downtime":
			mask |= NotifyOnDowntime
		default:
			flag, ok := stateWordFlag(kind, word)
			if !ok {
				return 0, fmt.Errorf("unsupported %s notification option %q", kind, raw)
			}
			mask |= flag
		}
	}
	return mask, nil
}

// stateWordFlag resolves kind-specific state words.
// Params: notifier kind and lower-case word.
// Returns: state bit and true when word is known for kind.
func stateWordFlag(kind Kind, word string) (NotifyOn, bool) {
	if kind == KindService {
		switch word {
		case "w", "warning":
			return NotifyOnWarning, true
		case "c", "critical":
			return NotifyOnCritical, true
		case "u", "unknown":
			return NotifyOnUnknown, true
		}
		return 0, false
	}
	switch word {
	case "d", "down":
		return NotifyOnDown, true
	case "u", "unreachable":
		return NotifyOnUnreachable, true
	}
	return 0, false
}
