package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monitoring/internal/clock"
	"monitoring/internal/command"
	"monitoring/internal/config"

	"github.com/nats-io/nats.go"
)

var errMultipleCommands = errors.New("nats message must carry exactly one command")

// NATSSubscriber consumes command lines via JetStream queue consumer and forwards them to sink.
// Params: NATS connection, JetStream queue subscription, and command sink.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber creates JetStream queue consumer for command ingestion.
// Params: ingest NATS config, sink, clock (nil selects real clock), and optional logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(cfg config.NATSIngestConfig, sink CommandSink, clk clock.Clock, logger *slog.Logger) (*NATSSubscriber, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
	}
	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, func(message *nats.Msg) {
		subscriber.handle(message, sink, clk.Now(), nackDelay)
	}, subOpts...)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// handle decodes one message and acks, drops, or defers it.
// Params: JetStream message, sink, receive time, and redelivery delay.
// Returns: none.
func (s *NATSSubscriber) handle(message *nats.Msg, sink CommandSink, now time.Time, nackDelay time.Duration) {
	cmd, err := decodeSingleCommand(message.Data, now)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("nats ingest decode failed", "subject", message.Subject, "error", err.Error())
		}
		s.ackMessage(message, "decode")
		return
	}
	if err := sink.TrySubmit(cmd); err != nil {
		if errors.Is(err, command.ErrQueueFull) {
			if s.logger != nil {
				s.logger.Warn("nats ingest queue full, deferring", "subject", message.Subject, "command", cmd.Name, "delay", nackDelay.String())
			}
		} else if s.logger != nil {
			s.logger.Error("nats ingest push failed", "subject", message.Subject, "command", cmd.Name, "error", err.Error())
		}
		s.nackMessage(message, nackDelay)
		return
	}
	s.ackMessage(message, "processed")
}

// decodeSingleCommand parses a message payload holding one command line.
func decodeSingleCommand(raw []byte, now time.Time) (command.Command, error) {
	commands, err := decodeCommandPayload(raw, now)
	if err != nil {
		return command.Command{}, err
	}
	if len(commands) != 1 {
		return command.Command{}, fmt.Errorf("%w, got %d", errMultipleCommands, len(commands))
	}
	return commands[0], nil
}

// ackMessage acknowledges processed/invalid message and logs ack failures.
// Params: JetStream message and short reason.
// Returns: none.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil && s.logger != nil {
		s.logger.Warn("nats ingest ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver message and logs nack failures.
// Params: JetStream message and optional delay.
// Returns: none.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("nats ingest nack failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close stops NATS subscription and closes connection.
// Params: none.
// Returns: close error from subscription drain.
func (s *NATSSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.nc.Close()
			return err
		}
	}
	s.nc.Close()
	return nil
}
