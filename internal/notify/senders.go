package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"monitoring/internal/config"

	tgbot "github.com/go-telegram/bot"
	"github.com/resend/resend-go/v2"
)

const maxCommandOutput = 512

// TelegramSender sends notifications to Telegram Bot API.
// Params: bot client; chat id comes from the contact's telegram address.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	initErr error
}

// NewTelegramSender creates Telegram sender with HTTP client.
// Params: Telegram notifier config.
// Returns: initialized sender.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{}
	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = markPermanent(errors.New("telegram bot token is required"))
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = markPermanent(fmt.Errorf("init telegram bot: %w", err))
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
func (s *TelegramSender) Channel() string {
	return config.NotifyChannelTelegram
}

// Send posts one message to the contact's Telegram chat.
// Params: context and rendered message.
// Returns: Telegram message id or transport error (rejections by the API are permanent).
func (s *TelegramSender) Send(ctx context.Context, message Message) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, s.initErr
	}
	if s.client == nil {
		return SendResult{}, markPermanent(errors.New("telegram client is not initialized"))
	}
	if strings.TrimSpace(message.Address) == "" {
		return SendResult{}, markPermanent(fmt.Errorf("contact %q has no telegram chat id", message.Contact))
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: normalizeChatID(message.Address),
		Text:   message.Text,
	})
	if err != nil {
		err = fmt.Errorf("telegram send: %w", err)
		if errors.Is(err, tgbot.ErrorBadRequest) || errors.Is(err, tgbot.ErrorForbidden) ||
			errors.Is(err, tgbot.ErrorUnauthorized) || errors.Is(err, tgbot.ErrorNotFound) {
			return SendResult{}, markPermanent(err)
		}
		return SendResult{}, err
	}
	if sent == nil || sent.ID <= 0 {
		return SendResult{}, errors.New("telegram send returned empty message id")
	}
	return SendResult{MessageID: sent.ID}, nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: chat ID from contact address.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// WebhookSender posts the message as JSON to an HTTP endpoint.
// Params: default URL (contact http address overrides), method, timeout, and headers.
// Returns: generic HTTP sender.
type WebhookSender struct {
	cfg    config.HTTPNotifier
	client *http.Client
}

// NewWebhookSender creates generic HTTP sender.
// Params: HTTP notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.HTTPNotifier) *WebhookSender {
	return &WebhookSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Channel returns sender channel name.
func (s *WebhookSender) Channel() string {
	return config.NotifyChannelHTTP
}

// Send delivers JSON payload to the endpoint.
// Params: context and rendered message.
// Returns: transport or HTTP status error (client errors other than 408/429 are permanent).
func (s *WebhookSender) Send(ctx context.Context, message Message) (SendResult, error) {
	target := strings.TrimSpace(message.Address)
	if target == "" {
		target = strings.TrimSpace(s.cfg.URL)
	}
	if target == "" {
		return SendResult{}, markPermanent(errors.New("http notify url is not configured"))
	}
	body, err := json.Marshal(message)
	if err != nil {
		return SendResult{}, markPermanent(fmt.Errorf("encode http notify payload: %w", err))
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, markPermanent(fmt.Errorf("build http notify request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("http notify send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{}, classifyStatus(response.StatusCode, unexpectedHTTPStatusError("http notify", response))
	}
	return SendResult{}, nil
}

// MattermostSender posts notifications to Mattermost API posts endpoint.
// Params: API base URL, bot token, and default channel id (contact address overrides).
// Returns: Mattermost sender.
type MattermostSender struct {
	cfg    config.MattermostNotifier
	client *http.Client
}

// NewMattermostSender creates Mattermost API sender.
// Params: Mattermost config.
// Returns: initialized sender.
func NewMattermostSender(cfg config.MattermostNotifier) *MattermostSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &MattermostSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Channel returns sender channel name.
func (s *MattermostSender) Channel() string {
	return config.NotifyChannelMattermost
}

// Send posts one formatted message to Mattermost API.
// Params: context and rendered message.
// Returns: created post id as ExternalRef, or transport/HTTP error.
func (s *MattermostSender) Send(ctx context.Context, message Message) (SendResult, error) {
	channelID := strings.TrimSpace(message.Address)
	if channelID == "" {
		channelID = strings.TrimSpace(s.cfg.ChannelID)
	}
	if channelID == "" {
		return SendResult{}, markPermanent(fmt.Errorf("contact %q has no mattermost channel id", message.Contact))
	}

	payload := struct {
		ChannelID string `json:"channel_id"`
		Message   string `json:"message"`
	}{
		ChannelID: channelID,
		Message:   message.Text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, markPermanent(fmt.Errorf("encode mattermost payload: %w", err))
	}

	endpoint := strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/") + "/api/v4/posts"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, markPermanent(fmt.Errorf("build mattermost request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.cfg.BotToken))

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("mattermost send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{}, classifyStatus(response.StatusCode, unexpectedHTTPStatusError("mattermost", response))
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return SendResult{}, fmt.Errorf("decode mattermost response: %w", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return SendResult{}, errors.New("mattermost response missing id")
	}
	return SendResult{ExternalRef: decoded.ID}, nil
}

// EmailSender sends notifications through the Resend API.
// Params: Resend client and sender address; recipient is the contact email.
// Returns: email channel sender.
type EmailSender struct {
	client *resend.Client
	from   string
}

// NewEmailSender creates Resend email sender.
// Params: email notifier config (base_url overrides the API endpoint).
// Returns: initialized sender.
func NewEmailSender(cfg config.EmailNotifier) *EmailSender {
	client := resend.NewClient(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if parsed, err := url.Parse(strings.TrimRight(base, "/") + "/"); err == nil {
			client.BaseURL = parsed
		}
	}
	return &EmailSender{client: client, from: strings.TrimSpace(cfg.From)}
}

// Channel returns sender channel name.
func (s *EmailSender) Channel() string {
	return config.NotifyChannelEmail
}

// Send delivers one plain-text email.
// Params: context and rendered message with subject.
// Returns: Resend email id as ExternalRef, or API error.
func (s *EmailSender) Send(ctx context.Context, message Message) (SendResult, error) {
	to := strings.TrimSpace(message.Address)
	if to == "" {
		return SendResult{}, markPermanent(fmt.Errorf("contact %q has no email address", message.Contact))
	}
	request := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: message.Subject,
		Text:    message.Text,
		Headers: map[string]string{
			"X-Notification-ID":   strconv.FormatUint(message.NotificationID, 10),
			"X-Notification-Type": message.Type,
		},
	}
	if message.Type != "" {
		request.Tags = []resend.Tag{{Name: "notification_type", Value: strings.ToLower(message.Type)}}
	}
	sent, err := s.client.Emails.SendWithContext(ctx, request)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend email send: %w", err)
	}
	if sent == nil || strings.TrimSpace(sent.Id) == "" {
		return SendResult{}, errors.New("resend response missing id")
	}
	return SendResult{ExternalRef: sent.Id}, nil
}

// CommandSender runs contact notification commands through a shell.
// Params: shell path and timeout; the command line arrives in Message.Address.
// Returns: command channel sender.
type CommandSender struct {
	shell   string
	timeout time.Duration
}

// NewCommandSender creates notification command runner.
// Params: command notifier config.
// Returns: initialized sender.
func NewCommandSender(cfg config.CommandNotifier) *CommandSender {
	shell := strings.TrimSpace(cfg.Shell)
	if shell == "" {
		shell = "/bin/sh"
	}
	return &CommandSender{shell: shell, timeout: time.Duration(cfg.TimeoutSec) * time.Second}
}

// Channel returns sender channel name.
func (s *CommandSender) Channel() string {
	return config.NotifyChannelCommand
}

// Send executes the macro-expanded command line; macros are also exported as
// MONITORING_<NAME> environment variables and the message is written to stdin.
// Params: context and rendered message.
// Returns: exit/timeout error with trimmed output.
func (s *CommandSender) Send(ctx context.Context, message Message) (SendResult, error) {
	line := strings.TrimSpace(message.Address)
	if line == "" {
		return SendResult{}, markPermanent(errors.New("notification command line is empty"))
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.shell, "-c", line)
	cmd.Env = append(os.Environ(), macroEnv(message)...)
	cmd.Stdin = strings.NewReader(message.Text)
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return SendResult{}, fmt.Errorf("notification command timed out after %s", s.timeout)
	}
	if err != nil {
		return SendResult{}, fmt.Errorf("notification command failed: %w: %s", err, trimOutput(output))
	}
	return SendResult{}, nil
}

func macroEnv(message Message) []string {
	keys := make([]string, 0, len(message.Macros))
	for key := range message.Macros {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, "MONITORING_"+key+"="+message.Macros[key])
	}
	return env
}

func trimOutput(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > maxCommandOutput {
		return text[:maxCommandOutput] + "..."
	}
	return text
}

// classifyStatus marks client errors other than 408/429 as permanent.
func classifyStatus(status int, err error) error {
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return markPermanent(err)
	}
	return err
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}
