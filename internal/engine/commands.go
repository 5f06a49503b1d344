package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"monitoring/internal/command"
	"monitoring/internal/notifier"
)

// stickyAcknowledgement is the ACKNOWLEDGE_* sticky argument value for a sticky ack.
const stickyAcknowledgement = 2

// dispatch executes one engine-class command.
// Params: context for notification delivery and parsed command.
// Returns: ErrUnknownObject, ErrRejected, command.ErrInvalidCommand, or
// command.ErrUnknownCommand.
func (e *Engine) dispatch(ctx context.Context, cmd command.Command) error {
	switch cmd.Name {
	case command.EnableNotifications, command.DisableNotifications:
		enabled := cmd.Name == command.EnableNotifications
		e.env.SetNotificationsEnabled(enabled)
		e.logger.Info("global notifications switched", "command_id", cmd.ID, "enabled", enabled)
		return nil
	case command.DeleteHostDowntime, command.DeleteServiceDowntime:
		id, err := cmd.IntParam(0)
		if err != nil {
			return err
		}
		kind := notifier.KindHost
		if cmd.Name == command.DeleteServiceDowntime {
			kind = notifier.KindService
		}
		return e.deleteDowntime(ctx, uint64(id), kind)
	}

	n, err := e.lookup(cmd.Host(), cmd.Service())
	if err != nil {
		return err
	}

	switch cmd.Name {
	case command.AcknowledgeHostProblem, command.AcknowledgeServiceProblem:
		return e.acknowledge(ctx, n, cmd)
	case command.RemoveHostAcknowledgement, command.RemoveServiceAcknowledgement:
		n.SetAcknowledgement(notifier.AckNone)
		e.logger.Info("acknowledgement removed", "command_id", cmd.ID, "notifier", n.Key())
		return nil
	case command.SendCustomHostNotification, command.SendCustomServiceNotification:
		return e.customNotification(ctx, n, cmd)
	case command.EnableHostNotifications, command.EnableServiceNotifications:
		n.SetNotificationsEnabled(true)
		e.logger.Info("notifier notifications enabled", "command_id", cmd.ID, "notifier", n.Key())
		return nil
	case command.DisableHostNotifications, command.DisableServiceNotifications:
		n.SetNotificationsEnabled(false)
		e.logger.Info("notifier notifications disabled", "command_id", cmd.ID, "notifier", n.Key())
		return nil
	case command.ChangeHostNotificationNumber, command.ChangeServiceNotificationNum:
		number, err := cmd.IntParam(0)
		if err != nil {
			return err
		}
		if number < 0 || number > math.MaxUint32 {
			return fmt.Errorf("%w: notification number %d is out of range", command.ErrInvalidCommand, number)
		}
		n.SetNotificationNumber(uint32(number))
		e.logger.Info("notification number changed", "command_id", cmd.ID, "notifier", n.Key(), "number", number)
		return nil
	case command.ScheduleHostDowntime, command.ScheduleServiceDowntime:
		req, err := parseDowntimeRequest(cmd)
		if err != nil {
			return err
		}
		id, err := e.scheduleDowntime(ctx, n, req)
		if err != nil {
			return err
		}
		e.logger.Debug("downtime command applied", "command_id", cmd.ID, "downtime_id", id)
		return nil
	case command.EnableHostFlapDetection, command.EnableServiceFlapDetection:
		e.setFlapDetection(ctx, n, true)
		return nil
	case command.DisableHostFlapDetection, command.DisableServiceFlapDetection:
		e.setFlapDetection(ctx, n, false)
		return nil
	default:
		return fmt.Errorf("%w: %s", command.ErrUnknownCommand, cmd.Name)
	}
}

// acknowledge handles ACKNOWLEDGE_*_PROBLEM: target;sticky;notify;persistent;author;comment.
func (e *Engine) acknowledge(ctx context.Context, n *notifier.Notifier, cmd command.Command) error {
	sticky, err := cmd.IntParam(0)
	if err != nil {
		return err
	}
	notify, err := cmd.BoolParam(1)
	if err != nil {
		return err
	}
	if !n.IsProblem() {
		return fmt.Errorf("%w: %s %s is not in a problem state", ErrRejected, n.Kind(), n.Key())
	}

	ack := notifier.AckNormal
	if sticky == stickyAcknowledgement {
		ack = notifier.AckSticky
	}
	n.SetAcknowledgement(ack)
	author, comment := cmd.Param(3), cmd.Param(4)
	e.logger.Info("problem acknowledged", "command_id", cmd.ID, "notifier", n.Key(),
		"sticky", ack == notifier.AckSticky, "author", author)
	if notify {
		e.notify(ctx, n, notifier.ReasonAcknowledgement, author, comment, notifier.OptionNone, true)
	}
	return nil
}

// customNotification handles SEND_CUSTOM_*_NOTIFICATION: target;options;author;comment.
func (e *Engine) customNotification(ctx context.Context, n *notifier.Notifier, cmd command.Command) error {
	options, err := cmd.IntParam(0)
	if err != nil {
		return err
	}
	if options < 0 || options > math.MaxUint32 {
		return fmt.Errorf("%w: custom notification options %d are out of range", command.ErrInvalidCommand, options)
	}
	result := e.notify(ctx, n, notifier.ReasonCustom, cmd.Param(1), cmd.Param(2), notifier.Option(options), true)
	e.logger.Info("custom notification requested", "command_id", cmd.ID, "notifier", n.Key(),
		"suppressed", result.Suppressed, "id", result.ID)
	return nil
}

// parseDowntimeRequest decodes target;start;end;fixed;trigger_id;duration;author;comment.
func parseDowntimeRequest(cmd command.Command) (downtimeRequest, error) {
	values := make([]int64, 5)
	for i := range values {
		value, err := cmd.IntParam(i)
		if err != nil {
			return downtimeRequest{}, err
		}
		if value < 0 {
			return downtimeRequest{}, fmt.Errorf("%w: %s parameter %d is negative", command.ErrInvalidCommand,
				cmd.Name, i+1)
		}
		values[i] = value
	}
	return downtimeRequest{
		start:    time.Unix(values[0], 0).UTC(),
		end:      time.Unix(values[1], 0).UTC(),
		fixed:    values[2] != 0,
		trigger:  uint64(values[3]),
		duration: time.Duration(values[4]) * time.Second,
		author:   cmd.Param(5),
		comment:  cmd.Param(6),
	}, nil
}
