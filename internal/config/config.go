package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName          = "monitoring"
	defaultHTTPListen           = ":8080"
	defaultHealthPath           = "/healthz"
	defaultReadyPath            = "/readyz"
	defaultMetricsPath          = "/metrics"
	defaultCommandPath          = "/commands"
	defaultMaxBodyBytes         = 1 << 20
	defaultRetentionSaveSec     = 60
	defaultTickIntervalMS       = 1000
	defaultIntervalLengthSec    = 60
	defaultCommandQueueSize     = 4096
	defaultCheckResultQueueSize = 4096
	defaultQueueRetryMS         = 100
	defaultFlapLowThreshold     = 20.0
	defaultFlapHighThreshold    = 30.0
	defaultNATSURL              = "nats://127.0.0.1:4222"
	defaultNATSCommandStream    = "MONITORING_COMMANDS"
	defaultNATSCommandSubject   = "monitoring.commands"
	defaultNATSCommandConsumer  = "monitoring-commands"
	defaultNATSCommandGroup     = "monitoring-engine"
	defaultNATSAckWaitSec       = 30
	defaultNATSNackDelayMS      = 1000
	defaultNATSMaxDeliver       = -1
	defaultNATSMaxAckPending    = 1024
	defaultRetentionBucket      = "monitoring_retention"
	defaultCheckInterval        = 5
	defaultRetryInterval        = 1
	defaultMaxCheckAttempts     = 3
	defaultCommandTimeoutSec    = 30
	defaultBreakerMaxFailures   = 5
	defaultBreakerOpenSec       = 30
	defaultRetryMaxAttempts     = 3
	defaultDeliveryTimeoutSec   = 30

	// RetentionBackendMemory keeps retention in process memory only.
	RetentionBackendMemory = "memory"
	// RetentionBackendNATS keeps retention in a JetStream KV bucket.
	RetentionBackendNATS = "nats"

	// NotifyChannelTelegram identifies Telegram transport.
	NotifyChannelTelegram = "telegram"
	// NotifyChannelHTTP identifies generic HTTP webhook transport.
	NotifyChannelHTTP = "http"
	// NotifyChannelMattermost identifies Mattermost transport.
	NotifyChannelMattermost = "mattermost"
	// NotifyChannelEmail identifies Resend email transport.
	NotifyChannelEmail = "email"
	// NotifyChannelCommand identifies notification command execution.
	NotifyChannelCommand = "command"
)

var (
	notifyChannelOrder = []string{
		NotifyChannelTelegram,
		NotifyChannelHTTP,
		NotifyChannelMattermost,
		NotifyChannelEmail,
		NotifyChannelCommand,
	}
	notifyChannelRegistry = map[string]notifyChannelDescriptor{
		NotifyChannelTelegram: {
			enabled:   func(cfg NotifyConfig) bool { return cfg.Telegram.Enabled },
			retry:     func(cfg NotifyConfig) NotifyRetry { return cfg.Telegram.Retry },
			breaker:   func(cfg NotifyConfig) NotifyBreaker { return cfg.Telegram.Breaker },
			templates: func(cfg NotifyConfig) []NamedTemplateConfig { return cfg.Telegram.NameTemplate },
		},
		NotifyChannelHTTP: {
			enabled:   func(cfg NotifyConfig) bool { return cfg.HTTP.Enabled },
			retry:     func(cfg NotifyConfig) NotifyRetry { return cfg.HTTP.Retry },
			breaker:   func(cfg NotifyConfig) NotifyBreaker { return cfg.HTTP.Breaker },
			templates: func(cfg NotifyConfig) []NamedTemplateConfig { return cfg.HTTP.NameTemplate },
		},
		NotifyChannelMattermost: {
			enabled:   func(cfg NotifyConfig) bool { return cfg.Mattermost.Enabled },
			retry:     func(cfg NotifyConfig) NotifyRetry { return cfg.Mattermost.Retry },
			breaker:   func(cfg NotifyConfig) NotifyBreaker { return cfg.Mattermost.Breaker },
			templates: func(cfg NotifyConfig) []NamedTemplateConfig { return cfg.Mattermost.NameTemplate },
		},
		NotifyChannelEmail: {
			enabled:   func(cfg NotifyConfig) bool { return cfg.Email.Enabled },
			retry:     func(cfg NotifyConfig) NotifyRetry { return cfg.Email.Retry },
			breaker:   func(cfg NotifyConfig) NotifyBreaker { return cfg.Email.Breaker },
			templates: func(cfg NotifyConfig) []NamedTemplateConfig { return cfg.Email.NameTemplate },
		},
		NotifyChannelCommand: {
			enabled:   func(cfg NotifyConfig) bool { return cfg.Command.Enabled },
			retry:     func(cfg NotifyConfig) NotifyRetry { return cfg.Command.Retry },
			breaker:   func(cfg NotifyConfig) NotifyBreaker { return cfg.Command.Breaker },
			templates: func(NotifyConfig) []NamedTemplateConfig { return nil },
		},
	}
	legacyObjectDefinitionPattern = regexp.MustCompile(`(?m)^\s*define\s+\w+\s*\{`)
	objectArrayPattern            = regexp.MustCompile(`(?m)^\s*\[\[\s*(host|service|contact|contactgroup|timeperiod|command)\s*\]\]`)
)

// notifyChannelDescriptor stores generic accessors for one notify transport.
// Params: config readers for enabled/retry/breaker/templates fields.
// Returns: channel metadata used by generic helpers.
type notifyChannelDescriptor struct {
	enabled   func(NotifyConfig) bool
	retry     func(NotifyConfig) NotifyRetry
	breaker   func(NotifyConfig) NotifyBreaker
	templates func(NotifyConfig) []NamedTemplateConfig
}

// Config holds service runtime settings and monitored object definitions.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service       ServiceConfig                 `toml:"service"`
	Engine        EngineConfig                  `toml:"engine"`
	Log           LogConfig                     `toml:"log"`
	Ingest        IngestConfig                  `toml:"ingest"`
	Retention     RetentionConfig               `toml:"retention"`
	Notify        NotifyConfig                  `toml:"notify"`
	Timeperiods   map[string]TimeperiodConfig   `toml:"timeperiod"`
	Commands      map[string]CommandConfig      `toml:"command"`
	Contacts      map[string]ContactConfig      `toml:"contact"`
	ContactGroups map[string]ContactGroupConfig `toml:"contactgroup"`
	Hosts         map[string]HostConfig         `toml:"host"`
	Escalations   []EscalationConfig            `toml:"escalation"`
	Dependencies  []DependencyConfig            `toml:"dependency"`
}

// ServiceConfig contains process-level settings.
// Params: name, HTTP listener with probe/metrics paths, and engine loop cadence.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                     string `toml:"name"`
	Listen                   string `toml:"listen"`
	HealthPath               string `toml:"health_path"`
	ReadyPath                string `toml:"ready_path"`
	MetricsPath              string `toml:"metrics_path"`
	RetentionSaveIntervalSec int    `toml:"retention_save_interval_sec"`
	TickIntervalMS           int    `toml:"tick_interval_ms"`
}

// EngineConfig contains notification engine settings shared by every notifier.
// Params: global switches, interval length, queue sizing, and flap thresholds.
// Returns: engine behavior.
type EngineConfig struct {
	EnableNotifications              *bool   `toml:"enable_notifications"`
	IntervalLengthSec                int     `toml:"interval_length_sec"`
	SendRecoveryNotificationsAnyways bool    `toml:"send_recovery_notifications_anyways"`
	CommandQueueSize                 int     `toml:"command_queue_size"`
	CheckResultQueueSize             int     `toml:"check_result_queue_size"`
	QueueRetryMS                     int     `toml:"queue_retry_ms"`
	FlapLowThreshold                 float64 `toml:"flap_low_threshold"`
	FlapHighThreshold                float64 `toml:"flap_high_threshold"`
}

// NotificationsEnabled reports the global notification switch (default on).
func (e EngineConfig) NotificationsEnabled() bool {
	return e.EnableNotifications == nil || *e.EnableNotifications
}

// IngestConfig defines inbound command interfaces.
// Params: HTTP endpoint and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP command endpoint.
// Params: enable flag, command path, and body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	CommandPath  string `toml:"command_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer command ingestion.
// Params: connection, stream routing, and ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Stream        string   `toml:"stream"`
	Subject       string   `toml:"subject"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// RetentionConfig selects where notifier bookkeeping survives restarts.
// Params: backend name and NATS KV settings.
// Returns: retention store options.
type RetentionConfig struct {
	Backend           string   `toml:"backend"`
	URL               []string `toml:"url"`
	Bucket            string   `toml:"bucket"`
	AllowCreateBucket bool     `toml:"allow_create_bucket"`
}

// NotifyConfig defines outbound notification transports.
// Params: per-channel transport settings.
// Returns: delivery controls.
type NotifyConfig struct {
	DeliveryTimeoutSec int                `toml:"delivery_timeout_sec"`
	Telegram           TelegramNotifier   `toml:"telegram"`
	HTTP               HTTPNotifier       `toml:"http"`
	Mattermost         MattermostNotifier `toml:"mattermost"`
	Email              EmailNotifier      `toml:"email"`
	Command            CommandNotifier    `toml:"command"`
}

// NamedTemplateConfig describes one reusable message template within one channel section.
// Params: template name and body ($MACRO$ references and Go text/template).
// Returns: template entry that contacts select per channel.
type NamedTemplateConfig struct {
	Name    string `toml:"name"`
	Message string `toml:"message"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy for notifications.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// NotifyBreaker configures the per-channel circuit breaker.
// Params: enable flag, consecutive failures before opening, and open duration.
// Returns: breaker policy.
type NotifyBreaker struct {
	Enabled             bool   `toml:"enabled"`
	MaxFailures         uint32 `toml:"max_failures"`
	OpenSec             int    `toml:"open_sec"`
	HalfOpenMaxRequests uint32 `toml:"half_open_max_requests"`
}

// TelegramNotifier defines Telegram channel settings; chat ids come from contacts.
type TelegramNotifier struct {
	Enabled      bool                  `toml:"enabled"`
	BotToken     string                `toml:"bot_token"`
	APIBase      string                `toml:"api_base"`
	Retry        NotifyRetry           `toml:"retry"`
	Breaker      NotifyBreaker         `toml:"breaker"`
	NameTemplate []NamedTemplateConfig `toml:"name-template"`
}

// HTTPNotifier defines generic outbound HTTP webhook endpoint.
// Params: URL (contacts may override), method, timeout, static headers, and retry policy.
// Returns: HTTP notification sender configuration.
type HTTPNotifier struct {
	Enabled      bool                  `toml:"enabled"`
	URL          string                `toml:"url"`
	Method       string                `toml:"method"`
	TimeoutSec   int                   `toml:"timeout_sec"`
	Headers      map[string]string     `toml:"headers"`
	Retry        NotifyRetry           `toml:"retry"`
	Breaker      NotifyBreaker         `toml:"breaker"`
	NameTemplate []NamedTemplateConfig `toml:"name-template"`
}

// MattermostNotifier defines Mattermost API channel settings.
// Params: API base URL, bot token, default channel id (contacts may override), and retry policy.
// Returns: Mattermost sender configuration.
type MattermostNotifier struct {
	Enabled      bool                  `toml:"enabled"`
	BaseURL      string                `toml:"base_url"`
	BotToken     string                `toml:"bot_token"`
	ChannelID    string                `toml:"channel_id"`
	TimeoutSec   int                   `toml:"timeout_sec"`
	Retry        NotifyRetry           `toml:"retry"`
	Breaker      NotifyBreaker         `toml:"breaker"`
	NameTemplate []NamedTemplateConfig `toml:"name-template"`
}

// EmailNotifier defines Resend email settings; recipients come from contact email.
type EmailNotifier struct {
	Enabled         bool                  `toml:"enabled"`
	APIKey          string                `toml:"api_key"`
	From            string                `toml:"from"`
	BaseURL         string                `toml:"base_url"`
	SubjectTemplate string                `toml:"subject_template"`
	Retry           NotifyRetry           `toml:"retry"`
	Breaker         NotifyBreaker         `toml:"breaker"`
	NameTemplate    []NamedTemplateConfig `toml:"name-template"`
}

// CommandNotifier defines execution of contact notification commands.
// Params: shell, timeout, and retry policy.
// Returns: command sender configuration.
type CommandNotifier struct {
	Enabled    bool          `toml:"enabled"`
	Shell      string        `toml:"shell"`
	TimeoutSec int           `toml:"timeout_sec"`
	Retry      NotifyRetry   `toml:"retry"`
	Breaker    NotifyBreaker `toml:"breaker"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// rejectUnsupportedSyntax checks foreign object syntax and returns explicit error.
// Params: raw TOML file body.
// Returns: error when unsupported syntax is detected.
func rejectUnsupportedSyntax(body []byte) error {
	if legacyObjectDefinitionPattern.Match(body) {
		return errors.New("classic `define <object> {` definitions are not supported; use [host.<name>] style TOML tables")
	}
	if match := objectArrayPattern.FindSubmatch(body); match != nil {
		return fmt.Errorf("[[%s]] arrays are not supported; use [%s.<name>] tables", match[1], match[1])
	}
	return nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := rejectUnsupportedSyntax(body); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode/duplicate error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		if err := mergeConfig(&merged, fragment); err != nil {
			return Config{}, fmt.Errorf("merge config file %q: %w", file, err)
		}
	}
	return merged, nil
}

// mergeConfig overlays source onto destination.
// Params: destination config and next fragment.
// Returns: error when an object name is defined twice.
func mergeConfig(dst *Config, src Config) error {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Engine != (EngineConfig{}) {
		dst.Engine = src.Engine
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if hasIngestConfig(src.Ingest) {
		dst.Ingest = src.Ingest
	}
	if hasRetentionConfig(src.Retention) {
		dst.Retention = src.Retention
	}
	mergeNotifyConfig(&dst.Notify, src.Notify)

	var err error
	if dst.Timeperiods, err = mergeObjects("timeperiod", dst.Timeperiods, src.Timeperiods); err != nil {
		return err
	}
	if dst.Commands, err = mergeObjects("command", dst.Commands, src.Commands); err != nil {
		return err
	}
	if dst.Contacts, err = mergeObjects("contact", dst.Contacts, src.Contacts); err != nil {
		return err
	}
	if dst.ContactGroups, err = mergeObjects("contactgroup", dst.ContactGroups, src.ContactGroups); err != nil {
		return err
	}
	if dst.Hosts, err = mergeObjects("host", dst.Hosts, src.Hosts); err != nil {
		return err
	}
	dst.Escalations = append(dst.Escalations, src.Escalations...)
	dst.Dependencies = append(dst.Dependencies, src.Dependencies...)
	return nil
}

// mergeObjects adds fragment objects to destination map.
// Params: section name for errors, destination map, and fragment map.
// Returns: merged map or duplicate-name error.
func mergeObjects[T any](section string, dst, src map[string]T) (map[string]T, error) {
	if len(src) == 0 {
		return dst, nil
	}
	if dst == nil {
		dst = make(map[string]T, len(src))
	}
	for name, object := range src {
		if _, exists := dst[name]; exists {
			return nil, fmt.Errorf("duplicate %s %q", section, name)
		}
		dst[name] = object
	}
	return dst, nil
}

// mergeNotifyConfig overlays channel sections that carry any value.
// Params: destination notify config and fragment.
// Returns: merged configuration side-effect in dst.
func mergeNotifyConfig(dst *NotifyConfig, src NotifyConfig) {
	if src.Telegram.Enabled || src.Telegram.BotToken != "" || len(src.Telegram.NameTemplate) > 0 {
		dst.Telegram = src.Telegram
	}
	if src.HTTP.Enabled || src.HTTP.URL != "" || len(src.HTTP.NameTemplate) > 0 {
		dst.HTTP = src.HTTP
	}
	if src.Mattermost.Enabled || src.Mattermost.BaseURL != "" || len(src.Mattermost.NameTemplate) > 0 {
		dst.Mattermost = src.Mattermost
	}
	if src.Email.Enabled || src.Email.APIKey != "" || len(src.Email.NameTemplate) > 0 {
		dst.Email = src.Email
	}
	if src.Command != (CommandNotifier{}) {
		dst.Command = src.Command
	}
}

// hasIngestConfig reports whether ingest section has explicit values.
// Params: ingest configuration fragment.
// Returns: true when section should be merged.
func hasIngestConfig(cfg IngestConfig) bool {
	return cfg.HTTP != (HTTPIngestConfig{}) ||
		cfg.NATS.Enabled ||
		len(cfg.NATS.URL) > 0 ||
		cfg.NATS.Stream != "" ||
		cfg.NATS.Subject != "" ||
		cfg.NATS.AckWaitSec != 0 ||
		cfg.NATS.NackDelayMS != 0 ||
		cfg.NATS.MaxDeliver != 0 ||
		cfg.NATS.MaxAckPending != 0
}

func hasRetentionConfig(cfg RetentionConfig) bool {
	return cfg.Backend != "" || len(cfg.URL) > 0 || cfg.Bucket != "" || cfg.AllowCreateBucket
}

// normalizeNATSURLs trims spaces around each configured NATS URL.
// Params: raw URL list from config.
// Returns: normalized URL list preserving element count for validation.
func normalizeNATSURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = strings.TrimSpace(urls[i])
	}
	return out
}

// NormalizeNotifyChannel canonicalizes channel key.
// Params: raw channel value.
// Returns: lower-case trimmed channel key.
func NormalizeNotifyChannel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NotifyChannelNames returns deterministic list of supported channel keys.
// Params: none.
// Returns: ordered channel key list.
func NotifyChannelNames() []string {
	out := make([]string, len(notifyChannelOrder))
	copy(out, notifyChannelOrder)
	return out
}

// IsSupportedNotifyChannel reports whether channel key is supported.
func IsSupportedNotifyChannel(channel string) bool {
	_, exists := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	return exists
}

// NotifyChannelEnabled checks if channel transport is enabled globally.
// Params: global notify config and channel key.
// Returns: true when corresponding transport section is enabled.
func NotifyChannelEnabled(cfg NotifyConfig, channel string) bool {
	descriptor, ok := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	if !ok {
		return false
	}
	return descriptor.enabled(cfg)
}

// NotifyChannelRetry returns retry policy for one channel.
// Params: global notify config and channel key.
// Returns: retry policy for channel transport.
func NotifyChannelRetry(cfg NotifyConfig, channel string) NotifyRetry {
	descriptor, ok := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	if !ok {
		return NotifyRetry{}
	}
	return descriptor.retry(cfg)
}

// NotifyChannelBreaker returns circuit breaker policy for one channel.
func NotifyChannelBreaker(cfg NotifyConfig, channel string) NotifyBreaker {
	descriptor, ok := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	if !ok {
		return NotifyBreaker{}
	}
	return descriptor.breaker(cfg)
}

// NotifyChannelTemplates returns template catalog for one channel.
// Params: global notify config and channel key.
// Returns: channel template list copy.
func NotifyChannelTemplates(cfg NotifyConfig, channel string) []NamedTemplateConfig {
	descriptor, ok := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	if !ok {
		return nil
	}
	return append([]NamedTemplateConfig(nil), descriptor.templates(cfg)...)
}
