package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"monitoring/internal/notifier"
	"monitoring/internal/retention"
)

// downtime is one scheduled window; active windows hold one level of the
// notifier's downtime depth.
type downtime struct {
	id        uint64
	key       string
	kind      notifier.Kind
	start     time.Time
	end       time.Time
	fixed     bool
	duration  time.Duration
	trigger   uint64
	author    string
	comment   string
	active    bool
	startedAt time.Time
}

// expiry is the end of an active window.
func (d *downtime) expiry() time.Time {
	if d.fixed {
		return d.end
	}
	return d.startedAt.Add(d.duration)
}

// downtimeRequest carries SCHEDULE_*_DOWNTIME arguments.
type downtimeRequest struct {
	start    time.Time
	end      time.Time
	fixed    bool
	trigger  uint64
	duration time.Duration
	author   string
	comment  string
}

// scheduleDowntime registers a window and starts it when already due.
// Params: context, target notifier, and request.
// Returns: downtime id or ErrRejected for an empty, past, or badly triggered window.
func (e *Engine) scheduleDowntime(ctx context.Context, n *notifier.Notifier, req downtimeRequest) (uint64, error) {
	now := e.clock.Now()
	switch {
	case !req.end.After(req.start):
		return 0, fmt.Errorf("%w: downtime end %s is not after start %s", ErrRejected,
			req.end.Format(time.RFC3339), req.start.Format(time.RFC3339))
	case !req.end.After(now):
		return 0, fmt.Errorf("%w: downtime window ended at %s", ErrRejected, req.end.Format(time.RFC3339))
	case !req.fixed && req.duration <= 0:
		return 0, fmt.Errorf("%w: flexible downtime needs a positive duration", ErrRejected)
	}
	if req.trigger != 0 {
		if _, ok := e.downtimes[req.trigger]; !ok {
			return 0, fmt.Errorf("%w: trigger downtime %d does not exist", ErrRejected, req.trigger)
		}
	}

	dt := &downtime{
		id:       e.nextDowntime,
		key:      n.Key(),
		kind:     n.Kind(),
		start:    req.start,
		end:      req.end,
		fixed:    req.fixed,
		duration: req.duration,
		trigger:  req.trigger,
		author:   req.author,
		comment:  req.comment,
	}
	e.nextDowntime++
	e.downtimes[dt.id] = dt
	e.logger.Info("downtime scheduled",
		"downtime_id", dt.id,
		"notifier", dt.key,
		"start", dt.start.Format(time.RFC3339),
		"end", dt.end.Format(time.RFC3339),
		"fixed", dt.fixed,
		"trigger", dt.trigger,
	)
	e.tickDowntimes(ctx, now)
	return dt.id, nil
}

// deleteDowntime removes a window and every window it triggers.
// Params: context, downtime id, and the kind named by the command.
// Returns: ErrRejected for unknown ids or a kind mismatch.
func (e *Engine) deleteDowntime(ctx context.Context, id uint64, kind notifier.Kind) error {
	dt, ok := e.downtimes[id]
	if !ok {
		return fmt.Errorf("%w: downtime %d does not exist", ErrRejected, id)
	}
	if dt.kind != kind {
		return fmt.Errorf("%w: downtime %d belongs to %s %s", ErrRejected, id, dt.kind, dt.key)
	}
	e.removeDowntime(ctx, dt)
	return nil
}

func (e *Engine) removeDowntime(ctx context.Context, dt *downtime) {
	for _, id := range e.downtimeIDs() {
		if child, ok := e.downtimes[id]; ok && child.trigger == dt.id {
			e.removeDowntime(ctx, child)
		}
	}
	if dt.active {
		if n, ok := e.registry.Notifier(dt.key); ok {
			e.endDowntime(ctx, n, dt, notifier.ReasonDowntimeCancelled)
			return
		}
	}
	delete(e.downtimes, dt.id)
	e.logger.Info("downtime deleted", "downtime_id", dt.id, "notifier", dt.key)
}

// tickDowntimes starts due windows and ends expired ones.
// Params: context and evaluation time.
// Returns: none.
func (e *Engine) tickDowntimes(ctx context.Context, now time.Time) {
	for _, id := range e.downtimeIDs() {
		dt, ok := e.downtimes[id]
		if !ok {
			continue
		}
		n, ok := e.registry.Notifier(dt.key)
		if !ok {
			delete(e.downtimes, id)
			continue
		}
		if dt.active {
			if !now.Before(dt.expiry()) {
				e.endDowntime(ctx, n, dt, notifier.ReasonDowntimeEnd)
			}
			continue
		}
		if now.After(dt.end) {
			delete(e.downtimes, id)
			e.logger.Info("downtime expired without starting", "downtime_id", id, "notifier", dt.key)
			continue
		}
		if now.Before(dt.start) {
			continue
		}
		if dt.trigger != 0 {
			if parent, ok := e.downtimes[dt.trigger]; !ok || !parent.active {
				continue
			}
		} else if !dt.fixed && !n.IsProblem() {
			continue
		}
		e.startDowntime(ctx, n, dt, now)
	}
}

// startDowntime announces the window before raising depth, so only the outermost
// window notifies.
func (e *Engine) startDowntime(ctx context.Context, n *notifier.Notifier, dt *downtime, now time.Time) {
	e.notify(ctx, n, notifier.ReasonDowntimeStart, dt.author, downtimeMessage(dt), notifier.OptionNone, true)
	n.SetDowntimeDepth(n.DowntimeDepth() + 1)
	dt.active = true
	dt.startedAt = now
	e.logger.Info("downtime started", "downtime_id", dt.id, "notifier", dt.key, "depth", n.DowntimeDepth())
}

// endDowntime lowers depth before announcing, so only the outermost window notifies.
func (e *Engine) endDowntime(ctx context.Context, n *notifier.Notifier, dt *downtime, reason notifier.Reason) {
	if depth := n.DowntimeDepth(); depth > 0 {
		n.SetDowntimeDepth(depth - 1)
	}
	delete(e.downtimes, dt.id)
	e.logger.Info("downtime ended", "downtime_id", dt.id, "notifier", dt.key,
		"reason", reason.String(), "depth", n.DowntimeDepth())
	e.notify(ctx, n, reason, dt.author, downtimeMessage(dt), notifier.OptionNone, true)
}

// restoreDowntime re-registers a retained window; an active one raises depth again.
func (e *Engine) restoreDowntime(n *notifier.Notifier, stored retention.Downtime) {
	dt := &downtime{
		id:       stored.ID,
		key:      n.Key(),
		kind:     n.Kind(),
		start:    time.Unix(stored.StartUnix, 0).UTC(),
		end:      time.Unix(stored.EndUnix, 0).UTC(),
		fixed:    stored.Fixed,
		duration: time.Duration(stored.DurationSec) * time.Second,
		trigger:  stored.TriggerID,
		author:   stored.Author,
		comment:  stored.Comment,
		active:   stored.Active,
	}
	if stored.StartedUnix != 0 {
		dt.startedAt = time.Unix(stored.StartedUnix, 0).UTC()
	}
	if dt.active {
		n.SetDowntimeDepth(n.DowntimeDepth() + 1)
	}
	e.downtimes[dt.id] = dt
	if dt.id >= e.nextDowntime {
		e.nextDowntime = dt.id + 1
	}
}

// retainedDowntimes groups every window by notifier key, ordered by id.
func (e *Engine) retainedDowntimes() map[string][]retention.Downtime {
	out := make(map[string][]retention.Downtime)
	for _, id := range e.downtimeIDs() {
		dt := e.downtimes[id]
		stored := retention.Downtime{
			ID:          dt.id,
			StartUnix:   dt.start.Unix(),
			EndUnix:     dt.end.Unix(),
			Fixed:       dt.fixed,
			DurationSec: int64(dt.duration / time.Second),
			TriggerID:   dt.trigger,
			Author:      dt.author,
			Comment:     dt.comment,
			Active:      dt.active,
		}
		if !dt.startedAt.IsZero() {
			stored.StartedUnix = dt.startedAt.Unix()
		}
		out[dt.key] = append(out[dt.key], stored)
	}
	return out
}

func (e *Engine) downtimeIDs() []uint64 {
	ids := make([]uint64, 0, len(e.downtimes))
	for id := range e.downtimes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func downtimeMessage(dt *downtime) string {
	if dt.comment != "" {
		return dt.comment
	}
	return fmt.Sprintf("Scheduled downtime %d", dt.id)
}
