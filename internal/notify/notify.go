package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"monitoring/internal/config"
	"monitoring/internal/macros"
	"monitoring/internal/notifier"

	"github.com/sony/gobreaker/v2"
)

// SendResult returns channel-specific metadata after successful delivery.
// Params: sender-specific metadata fields.
// Returns: optional message identifiers.
type SendResult struct {
	MessageID   int
	ExternalRef string
}

// Message is one rendered notification for one contact on one channel.
// Params: routing address, notification identity, and rendered text.
// Returns: payload handed to ChannelSender.Send (also the HTTP webhook body).
type Message struct {
	Channel        string                `json:"channel"`
	Address        string                `json:"address,omitempty"`
	Contact        string                `json:"contact"`
	Type           string                `json:"type"`
	Host           string                `json:"host"`
	Service        string                `json:"service,omitempty"`
	State          string                `json:"state"`
	NotificationID uint64                `json:"notification_id"`
	Number         uint32                `json:"number"`
	Escalated      bool                  `json:"escalated"`
	Subject        string                `json:"subject,omitempty"`
	Text           string                `json:"text"`
	Macros         notifier.MacroContext `json:"macros,omitempty"`
}

// ChannelSender sends one outbound message to one channel.
// Params: context and rendered message.
// Returns: channel send metadata and transport error when send fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, message Message) (SendResult, error)
}

// Recipient is a contact that carries delivery details.
type Recipient interface {
	Name() string
	Email() string
	Channels() []string
	Address(channel string) string
	Template(channel string) string
	NotificationCommand(kind notifier.Kind) notifier.Command
}

// Observer is told about every per-channel delivery outcome.
type Observer func(channel string, err error)

// Option customizes Transport construction.
type Option func(*Transport)

// WithObserver registers delivery outcome callback.
func WithObserver(observer Observer) Option {
	return func(t *Transport) { t.observer = observer }
}

// WithDeliveryTimeout overrides the per-Deliver deadline; zero disables it.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(t *Transport) { t.timeout = timeout }
}

// WithSender replaces or adds sender for its channel.
func WithSender(sender ChannelSender) Option {
	return func(t *Transport) {
		if sender != nil {
			t.senders[sender.Channel()] = sender
		}
	}
}

// Transport delivers notifications to contacts over their channels with
// configured retries, backoff, and per-channel circuit breakers.
// Params: sender set, retry policies, breakers, and named templates.
// Returns: notifier.Transport implementation.
type Transport struct {
	senders   map[string]ChannelSender
	retries   map[string]config.NotifyRetry
	breakers  map[string]*gobreaker.CircuitBreaker[SendResult]
	templates map[string]string
	subject   string
	timeout   time.Duration
	logger    *slog.Logger
	observer  Observer
}

// fallbackMaxAttempts bounds a retry policy that leaves max_attempts unset.
const fallbackMaxAttempts = 3

// NewTransport builds delivery transport from enabled channels.
// Params: global notify config, optional logger, and options.
// Returns: configured transport with available senders.
func NewTransport(cfg config.NotifyConfig, logger *slog.Logger, opts ...Option) *Transport {
	transport := &Transport{
		senders:   make(map[string]ChannelSender),
		retries:   make(map[string]config.NotifyRetry),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[SendResult]),
		templates: make(map[string]string),
		subject:   cfg.Email.SubjectTemplate,
		timeout:   time.Duration(cfg.DeliveryTimeoutSec) * time.Second,
		logger:    logger,
	}
	for _, channel := range config.NotifyChannelNames() {
		for _, tpl := range config.NotifyChannelTemplates(cfg, channel) {
			name := strings.ToLower(strings.TrimSpace(tpl.Name))
			if name != "" {
				transport.templates[templateKey(channel, name)] = tpl.Message
			}
		}
		if !config.NotifyChannelEnabled(cfg, channel) {
			continue
		}
		sender := newSenderForChannel(channel, cfg)
		if sender == nil {
			continue
		}
		transport.senders[channel] = sender
		transport.retries[channel] = config.NotifyChannelRetry(cfg, channel)
		if breaker := newBreaker(channel, config.NotifyChannelBreaker(cfg, channel)); breaker != nil {
			transport.breakers[channel] = breaker
		}
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}

// newSenderForChannel builds transport sender implementation for one channel key.
// Params: normalized channel key and full notify config.
// Returns: channel sender or nil when channel is unknown.
func newSenderForChannel(channel string, cfg config.NotifyConfig) ChannelSender {
	switch channel {
	case config.NotifyChannelTelegram:
		return NewTelegramSender(cfg.Telegram)
	case config.NotifyChannelHTTP:
		return NewWebhookSender(cfg.HTTP)
	case config.NotifyChannelMattermost:
		return NewMattermostSender(cfg.Mattermost)
	case config.NotifyChannelEmail:
		return NewEmailSender(cfg.Email)
	case config.NotifyChannelCommand:
		return NewCommandSender(cfg.Command)
	default:
		return nil
	}
}

// newBreaker creates circuit breaker for one channel.
// Params: channel key and breaker policy.
// Returns: breaker, or nil when disabled.
func newBreaker(channel string, cfg config.NotifyBreaker) *gobreaker.CircuitBreaker[SendResult] {
	if !cfg.Enabled {
		return nil
	}
	maxFailures := cfg.MaxFailures
	return gobreaker.NewCircuitBreaker[SendResult](gobreaker.Settings{
		Name:        "notify." + channel,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     time.Duration(cfg.OpenSec) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
	})
}

// Channels returns configured channel list.
// Params: none.
// Returns: sorted sender keys.
func (t *Transport) Channels() []string {
	channels := make([]string, 0, len(t.senders))
	for channel := range t.senders {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return channels
}

// Deliver sends one notification to one contact on every channel the contact lists.
// Params: context and delivery request from the notifier.
// Returns: nil when at least one channel succeeded, otherwise joined channel errors.
// The whole call is bounded by the configured delivery timeout.
func (t *Transport) Deliver(ctx context.Context, delivery notifier.Delivery) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	recipient, ok := delivery.Contact.(Recipient)
	if !ok {
		return markPermanent(fmt.Errorf("contact %q has no delivery details", delivery.Contact.Name()))
	}
	channels := recipient.Channels()
	if len(channels) == 0 {
		return markPermanent(fmt.Errorf("contact %q has no channels", recipient.Name()))
	}

	var errs []error
	for _, channel := range channels {
		_, err := t.deliverChannel(ctx, recipient, channel, delivery)
		if t.observer != nil {
			t.observer(channel, err)
		}
		if err == nil {
			return nil
		}
		if t.logger != nil {
			t.logger.Warn("notify channel delivery failed",
				"contact", recipient.Name(), "channel", channel, "permanent", IsPermanent(err), "error", err.Error())
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// deliverChannel renders and sends one message on one channel.
// Params: context, recipient, channel key, and delivery request.
// Returns: channel metadata and final error after retries.
func (t *Transport) deliverChannel(ctx context.Context, recipient Recipient, channel string, delivery notifier.Delivery) (SendResult, error) {
	sender, ok := t.senders[channel]
	if !ok {
		return SendResult{}, markPermanent(fmt.Errorf("notify channel %q is not configured", channel))
	}
	message, err := t.buildMessage(recipient, channel, delivery)
	if err != nil {
		return SendResult{}, markPermanent(err)
	}
	return t.sendWithRetry(ctx, sender, message, t.retries[channel])
}

// buildMessage resolves address, subject, and text for channel.
// Params: recipient, channel key, and delivery request.
// Returns: rendered message or template error.
func (t *Transport) buildMessage(recipient Recipient, channel string, delivery notifier.Delivery) (Message, error) {
	n := delivery.Notifier
	notification := delivery.Notification
	message := Message{
		Channel: channel,
		Contact: recipient.Name(),
		Type:    delivery.Macros[macros.NotificationType],
		Text:    delivery.Message,
		Macros:  delivery.Macros,
	}
	if n != nil {
		message.Host = n.HostName()
		message.Service = n.Description()
		message.State = notifier.StateName(n.Kind(), n.CurrentState())
	}
	if notification != nil {
		message.NotificationID = notification.ID()
		message.Number = notification.Number()
		message.Escalated = notification.Escalated()
	}

	if name := strings.ToLower(strings.TrimSpace(recipient.Template(channel))); name != "" {
		body, ok := t.templates[templateKey(channel, name)]
		if !ok {
			return Message{}, fmt.Errorf("notify template %q is not configured for channel %q", name, channel)
		}
		text, err := macros.Process(body, delivery.Macros)
		if err != nil {
			return Message{}, fmt.Errorf("render notify template %q for channel %q: %w", name, channel, err)
		}
		message.Text = text
	}

	switch channel {
	case config.NotifyChannelEmail:
		message.Address = recipient.Email()
		subject, err := macros.Process(t.subject, delivery.Macros)
		if err != nil {
			return Message{}, fmt.Errorf("render email subject: %w", err)
		}
		message.Subject = strings.Join(strings.Fields(subject), " ")
	case config.NotifyChannelCommand:
		if n == nil {
			return Message{}, errors.New("command channel requires a notifier")
		}
		command := recipient.NotificationCommand(n.Kind())
		if command == nil {
			return Message{}, fmt.Errorf("contact %q has no %s notification command", recipient.Name(), n.Kind())
		}
		message.Address = macros.Substitute(command.Line(), delivery.Macros)
	default:
		message.Address = recipient.Address(channel)
	}
	return message, nil
}

// sendWithRetry sends one message with channel-specific retry policy.
// Params: sender, payload, and retry policy for the sender channel.
// Returns: channel metadata and final error after retries; permanent errors
// and an open breaker stop retrying at once.
func (t *Transport) sendWithRetry(ctx context.Context, sender ChannelSender, message Message, retry config.NotifyRetry) (SendResult, error) {
	if !retry.Enabled {
		return t.sendOnce(ctx, sender, message)
	}

	maxAttempts := retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = fallbackMaxAttempts
	}
	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		attempt++
		result, err := t.sendOnce(ctx, sender, message)
		if err == nil {
			if retry.LogEachAttempt && attempt > 1 && t.logger != nil {
				t.logger.Info("notify send recovered after retries", "channel", sender.Channel(), "attempt", attempt)
			}
			return result, nil
		}
		if retry.LogEachAttempt && t.logger != nil {
			t.logger.Warn("notify send attempt failed", "channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}
		if IsPermanent(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return SendResult{}, fmt.Errorf("channel %s: %w", sender.Channel(), err)
		}
		if attempt >= maxAttempts {
			return SendResult{}, fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		timer.Reset(backoff)
		select {
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if maxBackoff > 0 && backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// sendOnce runs one send attempt, through the channel breaker when configured.
func (t *Transport) sendOnce(ctx context.Context, sender ChannelSender, message Message) (SendResult, error) {
	breaker, ok := t.breakers[sender.Channel()]
	if !ok {
		return sender.Send(ctx, message)
	}
	return breaker.Execute(func() (SendResult, error) {
		return sender.Send(ctx, message)
	})
}

// templateKey builds deterministic template lookup key by channel+template.
// Params: normalized channel and template names.
// Returns: unique lookup key.
func templateKey(channel, name string) string {
	return strings.ToLower(strings.TrimSpace(channel)) + "/" + strings.ToLower(strings.TrimSpace(name))
}
