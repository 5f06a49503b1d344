package engine

import (
	"context"
	"fmt"

	"monitoring/internal/command"
	"monitoring/internal/notifier"
)

// ProcessCheckResult applies one passive check result to its notifier.
// Params: context for notification delivery and decoded check result.
// Returns: ErrUnknownObject when the target is undefined, or an invalid-state error.
//
// Soft/hard follows max_check_attempts: a problem turns hard once the attempt
// counter reaches it, and OK is always hard. Hard problems notify, a return to
// OK notifies a recovery (a soft recovery only resets pending bookkeeping).
func (e *Engine) ProcessCheckResult(ctx context.Context, result command.CheckResult) error {
	n, err := e.lookup(result.Host, result.Service)
	if err != nil {
		return err
	}
	state := notifier.State(result.Code)
	if !notifier.ValidState(n.Kind(), state) {
		return fmt.Errorf("%w: state %d for %s %s", command.ErrInvalidCommand, result.Code, n.Kind(), n.Key())
	}

	now := e.clock.Now()
	checkedAt := result.At
	if checkedAt.IsZero() || checkedAt.After(now) {
		checkedAt = now
	}

	previous := n.CurrentState()
	previousType := n.StateType()
	wasProblem := previous != 0

	n.SetLastCheck(checkedAt)
	n.SetPluginOutput(result.Output)
	n.SetLastState(previous)
	n.SetCurrentState(state)
	changed := state != previous
	if changed {
		n.SetLastStateChange(now)
	}

	maxAttempts := n.MaxCheckAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	switch {
	case state == 0:
		n.SetCurrentAttempt(1)
		n.SetStateType(notifier.StateHard)
	case !wasProblem:
		n.SetCurrentAttempt(1)
		n.SetStateType(hardAfter(1, maxAttempts))
	case previousType == notifier.StateSoft:
		attempt := min(n.CurrentAttempt()+1, maxAttempts)
		n.SetCurrentAttempt(attempt)
		n.SetStateType(hardAfter(attempt, maxAttempts))
	default:
		n.SetCurrentAttempt(maxAttempts)
	}

	hardChange := n.StateType() == notifier.StateHard && state != n.LastHardState()
	if hardChange {
		n.SetLastHardState(state)
		n.SetLastHardStateChange(now)
	}

	if changed {
		e.clearAcknowledgement(n, state)
	}

	e.logger.Debug("check result processed",
		"command_id", result.CommandID,
		"notifier", n.Key(),
		"state", notifier.StateName(n.Kind(), state),
		"state_type", n.StateType().String(),
		"attempt", n.CurrentAttempt(),
		"hard_change", hardChange,
	)

	e.detectFlapping(ctx, n)

	switch {
	case state != 0 && n.StateType() == notifier.StateHard:
		e.notify(ctx, n, notifier.ReasonNormal, "", stateMessage(n), notifier.OptionNone, true)
	case state == 0 && wasProblem:
		e.notify(ctx, n, notifier.ReasonRecovery, "", stateMessage(n), notifier.OptionNone, true)
	}
	return nil
}

// clearAcknowledgement drops acknowledgements on state change: any on recovery,
// only non-sticky ones on a change between problem states.
func (e *Engine) clearAcknowledgement(n *notifier.Notifier, state notifier.State) {
	ack := n.Acknowledgement()
	if ack == notifier.AckNone {
		return
	}
	if state != 0 && ack == notifier.AckSticky {
		return
	}
	n.SetAcknowledgement(notifier.AckNone)
	e.logger.Info("acknowledgement removed by state change", "notifier", n.Key(),
		"state", notifier.StateName(n.Kind(), state))
}

func hardAfter(attempt, maxAttempts int) notifier.StateType {
	if attempt >= maxAttempts {
		return notifier.StateHard
	}
	return notifier.StateSoft
}

// stateMessage is the default problem and recovery message template.
func stateMessage(n *notifier.Notifier) string {
	if n.Kind() == notifier.KindService {
		return "$NOTIFICATIONTYPE$: $SERVICEDESC$ on $HOSTNAME$ is $SERVICESTATE$: $SERVICEOUTPUT$"
	}
	return "$NOTIFICATIONTYPE$: $HOSTNAME$ is $HOSTSTATE$: $HOSTOUTPUT$"
}
