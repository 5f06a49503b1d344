package notifier

import "time"

// IsViable runs the viability rule of reason's category.
// Params: reason and request options.
// Returns: true when a notification may be sent now. Recovery side effects
// (bookkeeping reset on hard failures) are applied here.
func (n *Notifier) IsViable(reason Reason, options Option) bool {
	category := CategoryOf(reason)
	switch category {
	case CategoryNormal:
		return n.viableNormal(options)
	case CategoryRecovery:
		viable, reset := n.viableRecovery()
		if !viable && reset {
			n.slots[CategoryNormal] = nil
			if n.notificationNumber != 0 {
				n.log.Debug("pending problem cancelled", "notification_number", n.notificationNumber)
			}
			n.notificationNumber = 0
		}
		return viable
	case CategoryAcknowledgement:
		return n.viableAcknowledgement(options)
	case CategoryFlapping:
		return n.viableFlapping(reason, options)
	case CategoryDowntime:
		return n.viableDowntime(options)
	default:
		return n.viableCustom(options)
	}
}

// enabled applies the global and notifier-local switches shared by every rule.
func (n *Notifier) enabled() bool {
	if !n.env.NotificationsEnabled() {
		n.log.Debug("notifications are disabled globally")
		return false
	}
	if !n.notificationsEnabled {
		n.log.Debug("notifications are disabled for notifier")
		return false
	}
	return true
}

func (n *Notifier) inNotificationPeriod(now time.Time) bool {
	return n.notificationPeriod == nil || n.notificationPeriod.CheckTime(now)
}

// viableNormal decides problem notifications. Forced skips every check except the enable switches.
func (n *Notifier) viableNormal(options Option) bool {
	if !n.enabled() {
		return false
	}
	if options.Has(OptionForced) {
		n.log.Debug("forced notification bypasses suppression")
		return true
	}
	now := n.env.now()
	if n.IsInDowntime() {
		n.log.Debug("problem suppressed: scheduled downtime")
		return false
	}
	if !n.inNotificationPeriod(now) {
		n.log.Debug("problem suppressed: outside notification period")
		return false
	}
	if n.isFlapping {
		n.log.Debug("problem suppressed: flapping")
		return false
	}
	if n.def.Volatile {
		return true
	}
	if n.stateType != StateHard {
		n.log.Debug("problem suppressed: soft state")
		return false
	}
	if n.IsAcknowledged() {
		n.log.Debug("problem suppressed: acknowledged")
		return false
	}
	if n.currentState == 0 {
		n.log.Debug("problem suppressed: state is not a problem")
		return false
	}
	if !n.NotifyOnCurrentState() {
		n.log.Debug("problem suppressed: state not in notify_on", "state", StateName(n.def.Kind, n.currentState))
		return false
	}

	normal := n.slots[CategoryNormal]
	if n.def.FirstNotificationDelay > 0 && normal == nil &&
		n.lastHardStateChange.Add(n.env.intervals(n.def.FirstNotificationDelay)).After(now) {
		n.log.Debug("problem suppressed: first notification delay")
		return false
	}
	if n.env.Dependencies != nil && !n.env.Dependencies.Authorized(n, DependencyNotification) {
		n.log.Debug("problem suppressed: notification dependency")
		return false
	}

	if normal != nil && !n.lastHardStateChange.After(n.lastNotification) {
		interval := normal.Interval()
		if interval == 0 {
			n.log.Debug("problem suppressed: interval 0 sends only once")
			return false
		}
		if n.lastNotification.Add(n.env.intervals(interval)).After(now) {
			n.log.Debug("problem suppressed: repeat interval not elapsed", "interval", interval)
			return false
		}
	}
	return true
}

// viableRecovery decides recovery notifications.
// Returns: viability and whether a non-viable result must reset problem bookkeeping.
func (n *Notifier) viableRecovery() (bool, bool) {
	if !n.enabled() {
		return false, true
	}
	now := n.env.now()
	switch {
	case !n.inNotificationPeriod(now) && !n.env.SendRecoveryAnyways:
		n.log.Debug("recovery delayed: outside notification period")
		return false, false
	case n.IsInDowntime():
		n.log.Debug("recovery delayed: scheduled downtime")
		return false, false
	case n.isFlapping:
		n.log.Debug("recovery delayed: flapping")
		return false, false
	case n.stateType != StateHard:
		n.log.Debug("recovery delayed: soft state")
		return false, false
	case n.currentState != 0:
		n.log.Debug("recovery delayed: state is still a problem")
		return false, false
	case !n.def.NotifyOn.Has(NotifyOnOK):
		n.log.Debug("recovery suppressed: recovery not in notify_on")
		return false, true
	case n.lastHardStateChange.Add(n.env.intervals(n.def.RecoveryNotificationDelay)).After(now):
		n.log.Debug("recovery delayed: recovery notification delay")
		return false, false
	case n.notificationNumber == 0:
		n.log.Debug("recovery suppressed: no problem was announced")
		return false, true
	case n.slots[CategoryNormal] == nil:
		n.log.Debug("recovery suppressed: no stored problem notification")
		return false, true
	}
	return true, false
}

func (n *Notifier) viableAcknowledgement(options Option) bool {
	if options.Has(OptionForced) {
		return true
	}
	if !n.enabled() {
		return false
	}
	if n.currentState == 0 {
		n.log.Debug("acknowledgement suppressed: state is not a problem")
		return false
	}
	return true
}

func (n *Notifier) viableFlapping(reason Reason, options Option) bool {
	if options.Has(OptionForced) {
		return true
	}
	if !n.enabled() {
		return false
	}
	if !n.def.NotifyOn.Has(FlappingFlag(reason)) {
		n.log.Debug("flapping suppressed: reason not in notify_on", "reason", reason.String())
		return false
	}
	if stored := n.slots[CategoryFlapping]; stored != nil && stored.Reason() == reason {
		n.log.Debug("flapping suppressed: already announced", "reason", reason.String())
		return false
	}
	if n.IsInDowntime() {
		n.log.Debug("flapping suppressed: scheduled downtime")
		return false
	}
	return true
}

func (n *Notifier) viableDowntime(options Option) bool {
	if options.Has(OptionForced) {
		return true
	}
	if !n.enabled() {
		return false
	}
	if !n.def.NotifyOn.Has(NotifyOnDowntime) {
		n.log.Debug("downtime suppressed: downtime not in notify_on")
		return false
	}
	if n.downtimeDepth > 0 {
		n.log.Debug("downtime suppressed: already in downtime", "depth", n.downtimeDepth)
		return false
	}
	return true
}

func (n *Notifier) viableCustom(options Option) bool {
	if options.Has(OptionForced) {
		return true
	}
	if !n.enabled() {
		return false
	}
	if n.IsInDowntime() {
		n.log.Debug("custom suppressed: scheduled downtime")
		return false
	}
	return true
}
