package objects

import "monitoring/internal/notifier"

// Dependency links a dependent notifier to a master notifier.
// Params: notifier keys and failure masks per dependency kind.
// Returns: rule consulted by Registry.Authorized.
type Dependency struct {
	Dependent           string
	Master              string
	NotificationFailure notifier.NotifyOn
	ExecutionFailure    notifier.NotifyOn
}

// failed reports whether master state is a failure for kind.
// Params: master notifier and dependency kind.
// Returns: true when the master's effective state bit is in the kind's mask.
func (d Dependency) failed(master *notifier.Notifier, kind notifier.DependencyKind) bool {
	mask := d.NotificationFailure
	if kind == notifier.DependencyExecution {
		mask = d.ExecutionFailure
	}
	if mask == 0 {
		return false
	}
	state := master.CurrentState()
	if master.StateType() == notifier.StateSoft {
		state = master.LastHardState()
	}
	return mask.Has(notifier.StateFlag(state))
}
