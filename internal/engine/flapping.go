package engine

import (
	"context"
	"fmt"

	"monitoring/internal/notifier"
)

const (
	flapHistorySize = 21
	flapLowWeight   = 0.8
	flapHighWeight  = 1.2
)

// flapHistory is a ring of the last recorded states of one notifier.
type flapHistory struct {
	ring    [flapHistorySize]int
	next    int
	percent float64
}

func newFlapHistory(initial notifier.State) *flapHistory {
	h := &flapHistory{}
	for i := range h.ring {
		h.ring[i] = int(initial)
	}
	return h
}

// restoreFlapHistory rebuilds history from retained states ordered oldest first.
func restoreFlapHistory(states []int) *flapHistory {
	h := newFlapHistory(notifier.State(states[0]))
	if len(states) > flapHistorySize {
		states = states[len(states)-flapHistorySize:]
	}
	for _, state := range states {
		h.record(notifier.State(state))
	}
	h.percent = h.percentChange()
	return h
}

func (h *flapHistory) record(state notifier.State) {
	h.ring[h.next] = int(state)
	h.next = (h.next + 1) % flapHistorySize
}

// states returns the ring ordered oldest first.
func (h *flapHistory) states() []int {
	out := make([]int, 0, flapHistorySize)
	for i := range flapHistorySize {
		out = append(out, h.ring[(h.next+i)%flapHistorySize])
	}
	return out
}

// percentChange weights each state change from 0.8 (oldest) to 1.2 (newest).
// Returns: weighted share of state changes in percent.
func (h *flapHistory) percentChange() float64 {
	changes := 0.0
	last := h.ring[h.next]
	for x := 1; x < flapHistorySize; x++ {
		current := h.ring[(h.next+x)%flapHistorySize]
		if current != last {
			changes += float64(x-1)*(flapHighWeight-flapLowWeight)/float64(flapHistorySize-2) + flapLowWeight
		}
		last = current
	}
	return changes * 100 / float64(flapHistorySize-1)
}

// detectFlapping records the current state and starts or stops flapping.
// Params: context for notification delivery and notifier after a check result.
// Returns: none.
//
// Soft problem states are not recorded. Between the low and high thresholds the
// flapping flag is left unchanged.
func (e *Engine) detectFlapping(ctx context.Context, n *notifier.Notifier) {
	if n.StateType() == notifier.StateSoft && n.IsProblem() {
		return
	}
	history, ok := e.flaps[n.Key()]
	if !ok {
		history = newFlapHistory(n.LastState())
		e.flaps[n.Key()] = history
	}
	history.record(n.CurrentState())
	history.percent = history.percentChange()

	if !n.FlapDetectionEnabled() {
		return
	}
	switch {
	case history.percent >= e.flapHigh && !n.IsFlapping():
		n.SetFlapping(true)
		e.logger.Info("flapping started", "notifier", n.Key(), "percent_state_change", history.percent)
		e.notify(ctx, n, notifier.ReasonFlappingStart, "", flapMessage(n, history.percent, e.flapHigh), notifier.OptionNone, true)
	case history.percent <= e.flapLow && n.IsFlapping():
		n.SetFlapping(false)
		e.logger.Info("flapping stopped", "notifier", n.Key(), "percent_state_change", history.percent)
		e.notify(ctx, n, notifier.ReasonFlappingStop, "", flapMessage(n, history.percent, e.flapLow), notifier.OptionNone, true)
	}
}

// setFlapDetection flips flap detection; disabling it while flapping ends flapping.
// Params: context, notifier, and desired switch.
// Returns: none.
func (e *Engine) setFlapDetection(ctx context.Context, n *notifier.Notifier, enabled bool) {
	n.SetFlapDetectionEnabled(enabled)
	if enabled || !n.IsFlapping() {
		return
	}
	n.SetFlapping(false)
	e.logger.Info("flapping cleared: detection disabled", "notifier", n.Key())
	e.notify(ctx, n, notifier.ReasonFlappingDisabled, "", "Flap detection has been disabled", notifier.OptionNone, true)
}

func flapMessage(n *notifier.Notifier, percent, threshold float64) string {
	return fmt.Sprintf("%s %s: %.1f%% state change (threshold %.1f%%)",
		n.Kind(), n.Key(), percent, threshold)
}
