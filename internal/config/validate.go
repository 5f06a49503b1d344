package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"monitoring/internal/macros"
	"monitoring/internal/notifier"

	"github.com/go-playground/validator/v10"
)

// applyDefaults fills omitted settings in place.
// Params: decoded config snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if strings.TrimSpace(cfg.Service.Listen) == "" {
		cfg.Service.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.Service.HealthPath) == "" {
		cfg.Service.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.Service.ReadyPath) == "" {
		cfg.Service.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.Service.MetricsPath) == "" {
		cfg.Service.MetricsPath = defaultMetricsPath
	}
	if cfg.Service.RetentionSaveIntervalSec <= 0 {
		cfg.Service.RetentionSaveIntervalSec = defaultRetentionSaveSec
	}
	if cfg.Service.TickIntervalMS <= 0 {
		cfg.Service.TickIntervalMS = defaultTickIntervalMS
	}

	if cfg.Engine.IntervalLengthSec <= 0 {
		cfg.Engine.IntervalLengthSec = defaultIntervalLengthSec
	}
	if cfg.Engine.CommandQueueSize <= 0 {
		cfg.Engine.CommandQueueSize = defaultCommandQueueSize
	}
	if cfg.Engine.CheckResultQueueSize <= 0 {
		cfg.Engine.CheckResultQueueSize = defaultCheckResultQueueSize
	}
	if cfg.Engine.QueueRetryMS <= 0 {
		cfg.Engine.QueueRetryMS = defaultQueueRetryMS
	}
	if cfg.Engine.FlapLowThreshold == 0 && cfg.Engine.FlapHighThreshold == 0 {
		cfg.Engine.FlapLowThreshold = defaultFlapLowThreshold
		cfg.Engine.FlapHighThreshold = defaultFlapHighThreshold
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.CommandPath) == "" {
		cfg.Ingest.HTTP.CommandPath = defaultCommandPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		cfg.Ingest.HTTP.Enabled = true
	}
	nats := &cfg.Ingest.NATS
	nats.URL = normalizeNATSURLs(nats.URL)
	if len(nats.URL) == 0 {
		nats.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(nats.Stream) == "" {
		nats.Stream = defaultNATSCommandStream
	}
	if strings.TrimSpace(nats.Subject) == "" {
		nats.Subject = defaultNATSCommandSubject
	}
	if strings.TrimSpace(nats.ConsumerName) == "" {
		nats.ConsumerName = defaultNATSCommandConsumer
	}
	if strings.TrimSpace(nats.DeliverGroup) == "" {
		nats.DeliverGroup = defaultNATSCommandGroup
	}
	if nats.AckWaitSec <= 0 {
		nats.AckWaitSec = defaultNATSAckWaitSec
	}
	if nats.NackDelayMS <= 0 {
		nats.NackDelayMS = defaultNATSNackDelayMS
	}
	if nats.MaxDeliver == 0 {
		nats.MaxDeliver = defaultNATSMaxDeliver
	}
	if nats.MaxAckPending <= 0 {
		nats.MaxAckPending = defaultNATSMaxAckPending
	}

	cfg.Retention.Backend = strings.ToLower(strings.TrimSpace(cfg.Retention.Backend))
	if cfg.Retention.Backend == "" {
		cfg.Retention.Backend = RetentionBackendMemory
	}
	if cfg.Retention.Backend == RetentionBackendNATS {
		cfg.Retention.URL = normalizeNATSURLs(cfg.Retention.URL)
		if len(cfg.Retention.URL) == 0 {
			// Retention shares the ingest connection target unless configured separately.
			cfg.Retention.URL = append([]string(nil), nats.URL...)
		}
		if strings.TrimSpace(cfg.Retention.Bucket) == "" {
			cfg.Retention.Bucket = defaultRetentionBucket
		}
	}

	applyNotifyDefaults(&cfg.Notify)
	applyObjectDefaults(cfg)
}

// applyNotifyDefaults normalizes channel transport defaults.
// Params: notify config pointer.
// Returns: defaults applied in place.
func applyNotifyDefaults(cfg *NotifyConfig) {
	if cfg.DeliveryTimeoutSec <= 0 {
		cfg.DeliveryTimeoutSec = defaultDeliveryTimeoutSec
	}
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = "https://api.telegram.org"
	}
	if cfg.HTTP.Method == "" {
		cfg.HTTP.Method = "POST"
	}
	if cfg.HTTP.TimeoutSec <= 0 {
		cfg.HTTP.TimeoutSec = 10
	}
	if cfg.Mattermost.TimeoutSec <= 0 {
		cfg.Mattermost.TimeoutSec = 10
	}
	if strings.TrimSpace(cfg.Email.SubjectTemplate) == "" {
		cfg.Email.SubjectTemplate = "** $NOTIFICATIONTYPE$ $HOSTNAME$ $SERVICEDESC$ **"
	}
	if strings.TrimSpace(cfg.Command.Shell) == "" {
		cfg.Command.Shell = "/bin/sh"
	}
	if cfg.Command.TimeoutSec <= 0 {
		cfg.Command.TimeoutSec = defaultCommandTimeoutSec
	}
	for _, pair := range []struct {
		retry   *NotifyRetry
		breaker *NotifyBreaker
	}{
		{&cfg.Telegram.Retry, &cfg.Telegram.Breaker},
		{&cfg.HTTP.Retry, &cfg.HTTP.Breaker},
		{&cfg.Mattermost.Retry, &cfg.Mattermost.Breaker},
		{&cfg.Email.Retry, &cfg.Email.Breaker},
		{&cfg.Command.Retry, &cfg.Command.Breaker},
	} {
		fillNotifyRetryDefaults(pair.retry)
		fillNotifyBreakerDefaults(pair.breaker)
	}
}

// fillNotifyRetryDefaults normalizes retry policy fields for one channel.
// Params: retry policy pointer.
// Returns: policy defaults applied in place.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = 500
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = 60000
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultRetryMaxAttempts
	}
}

func fillNotifyBreakerDefaults(breaker *NotifyBreaker) {
	if breaker.MaxFailures == 0 {
		breaker.MaxFailures = defaultBreakerMaxFailures
	}
	if breaker.OpenSec <= 0 {
		breaker.OpenSec = defaultBreakerOpenSec
	}
	if breaker.HalfOpenMaxRequests == 0 {
		breaker.HalfOpenMaxRequests = 1
	}
}

// applyObjectDefaults fills omitted host, service, and contact settings.
// Params: config pointer.
// Returns: defaults applied in place.
func applyObjectDefaults(cfg *Config) {
	for name, contact := range cfg.Contacts {
		if len(contact.HostNotificationOptions) == 0 {
			contact.HostNotificationOptions = []string{"all"}
		}
		if len(contact.ServiceNotificationOptions) == 0 {
			contact.ServiceNotificationOptions = []string{"all"}
		}
		for i, channel := range contact.Channels {
			contact.Channels[i] = NormalizeNotifyChannel(channel)
		}
		cfg.Contacts[name] = contact
	}
	for name, host := range cfg.Hosts {
		fillNotifierDefaults(&host.NotifierConfig)
		for description, service := range host.Services {
			fillNotifierDefaults(&service.NotifierConfig)
			host.Services[description] = service
		}
		cfg.Hosts[name] = host
	}
}

func fillNotifierDefaults(n *NotifierConfig) {
	if n.CheckInterval == 0 {
		n.CheckInterval = defaultCheckInterval
	}
	if n.RetryInterval == 0 {
		n.RetryInterval = defaultRetryInterval
	}
	if n.MaxCheckAttempts == 0 {
		n.MaxCheckAttempts = defaultMaxCheckAttempts
	}
	if len(n.NotificationOptions) == 0 {
		n.NotificationOptions = []string{"all"}
	}
}

// validateConfig validates full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first failing rule as error.
func validateConfig(cfg Config) error {
	for path, value := range map[string]string{
		"service.health_path":      cfg.Service.HealthPath,
		"service.ready_path":       cfg.Service.ReadyPath,
		"service.metrics_path":     cfg.Service.MetricsPath,
		"ingest.http.command_path": cfg.Ingest.HTTP.CommandPath,
	} {
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("%s must start with '/', got %q", path, value)
		}
	}
	if strings.TrimSpace(cfg.Service.Listen) == "" {
		return errors.New("service.listen is required")
	}
	if cfg.Engine.FlapLowThreshold < 0 || cfg.Engine.FlapHighThreshold > 100 ||
		cfg.Engine.FlapLowThreshold > cfg.Engine.FlapHighThreshold {
		return fmt.Errorf("engine flap thresholds must satisfy 0 <= low <= high <= 100, got low=%v high=%v",
			cfg.Engine.FlapLowThreshold, cfg.Engine.FlapHighThreshold)
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	if cfg.Ingest.NATS.Enabled {
		if err := validateNATSURLs("ingest.nats.url", cfg.Ingest.NATS.URL); err != nil {
			return err
		}
		if cfg.Ingest.NATS.MaxDeliver < -1 {
			return errors.New("ingest.nats.max_deliver must be -1 or >0")
		}
	}

	switch cfg.Retention.Backend {
	case RetentionBackendMemory:
	case RetentionBackendNATS:
		if err := validateNATSURLs("retention.url", cfg.Retention.URL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("retention.backend has unsupported value %q", cfg.Retention.Backend)
	}

	if err := validateNotify(cfg.Notify); err != nil {
		return err
	}
	return validateObjects(cfg)
}

func validateNATSURLs(path string, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%s is required", path)
	}
	for i, url := range urls {
		if url == "" {
			return fmt.Errorf("%s[%d] is empty", path, i)
		}
	}
	return nil
}

// validateNotify validates enabled transports and their templates.
// Params: notify config.
// Returns: first transport error.
func validateNotify(cfg NotifyConfig) error {
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return errors.New("notify.telegram.bot_token is required when notify.telegram.enabled=true")
	}
	if cfg.HTTP.Enabled && strings.TrimSpace(cfg.HTTP.URL) == "" {
		return errors.New("notify.http.url is required when notify.http.enabled=true")
	}
	if cfg.Mattermost.Enabled {
		if strings.TrimSpace(cfg.Mattermost.BaseURL) == "" {
			return errors.New("notify.mattermost.base_url is required when notify.mattermost.enabled=true")
		}
		if strings.TrimSpace(cfg.Mattermost.BotToken) == "" {
			return errors.New("notify.mattermost.bot_token is required when notify.mattermost.enabled=true")
		}
	}
	if cfg.Email.Enabled {
		if strings.TrimSpace(cfg.Email.APIKey) == "" {
			return errors.New("notify.email.api_key is required when notify.email.enabled=true")
		}
		if err := validator.New().Var(cfg.Email.From, "required,email"); err != nil {
			return fmt.Errorf("notify.email.from must be an email address: %w", err)
		}
		if err := validateMessageTemplate("notify.email.subject_template", cfg.Email.SubjectTemplate); err != nil {
			return err
		}
	}
	for _, channel := range notifyChannelOrder {
		seen := make(map[string]struct{})
		for i, tpl := range NotifyChannelTemplates(cfg, channel) {
			path := fmt.Sprintf("notify.%s.name-template[%d]", channel, i)
			name := strings.TrimSpace(tpl.Name)
			if name == "" {
				return fmt.Errorf("%s.name is required", path)
			}
			if _, exists := seen[name]; exists {
				return fmt.Errorf("%s.name %q is duplicated", path, name)
			}
			seen[name] = struct{}{}
			if err := validateMessageTemplate(path+".message", tpl.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateObjects validates object definitions with struct tags and cross-field rules.
// Params: config snapshot.
// Returns: first object error.
func validateObjects(cfg Config) error {
	validate := validator.New()

	for _, name := range sortedKeys(cfg.Timeperiods) {
		if err := validate.Struct(cfg.Timeperiods[name]); err != nil {
			return fmt.Errorf("timeperiod %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(cfg.Commands) {
		if err := validate.Struct(cfg.Commands[name]); err != nil {
			return fmt.Errorf("command %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(cfg.Contacts) {
		if err := validateContact(validate, cfg, cfg.Contacts[name]); err != nil {
			return fmt.Errorf("contact %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(cfg.ContactGroups) {
		group := cfg.ContactGroups[name]
		if err := validate.Struct(group); err != nil {
			return fmt.Errorf("contactgroup %q: %w", name, err)
		}
		for _, member := range group.Members {
			if _, ok := cfg.Contacts[member]; !ok {
				return fmt.Errorf("contactgroup %q: member %q is not a defined contact", name, member)
			}
		}
	}
	for _, name := range sortedKeys(cfg.Hosts) {
		host := cfg.Hosts[name]
		if err := validateNotifierConfig(validate, notifier.KindHost, host.NotifierConfig); err != nil {
			return fmt.Errorf("host %q: %w", name, err)
		}
		for _, description := range sortedKeys(host.Services) {
			if strings.TrimSpace(description) == "" {
				return fmt.Errorf("host %q: service description is empty", name)
			}
			if err := validateNotifierConfig(validate, notifier.KindService, host.Services[description].NotifierConfig); err != nil {
				return fmt.Errorf("service %q on host %q: %w", description, name, err)
			}
		}
	}
	for i, escalation := range cfg.Escalations {
		if err := validateEscalation(validate, cfg, escalation); err != nil {
			return fmt.Errorf("escalation[%d]: %w", i, err)
		}
	}
	for i, dependency := range cfg.Dependencies {
		if err := validateDependency(validate, cfg, dependency); err != nil {
			return fmt.Errorf("dependency[%d]: %w", i, err)
		}
	}
	return nil
}

func validateContact(validate *validator.Validate, cfg Config, contact ContactConfig) error {
	if err := validate.Struct(contact); err != nil {
		return err
	}
	if _, err := notifier.ParseNotifyOn(notifier.KindHost, contact.HostNotificationOptions); err != nil {
		return fmt.Errorf("host_notification_options: %w", err)
	}
	if _, err := notifier.ParseNotifyOn(notifier.KindService, contact.ServiceNotificationOptions); err != nil {
		return fmt.Errorf("service_notification_options: %w", err)
	}
	for _, channel := range contact.Channels {
		if !IsSupportedNotifyChannel(channel) {
			return fmt.Errorf("channel %q is not supported (expected one of %s)", channel, strings.Join(notifyChannelOrder, ", "))
		}
		if !NotifyChannelEnabled(cfg.Notify, channel) {
			return fmt.Errorf("channel %q is not enabled in [notify.%s]", channel, channel)
		}
		switch channel {
		case NotifyChannelTelegram:
			if strings.TrimSpace(contact.Addresses[NotifyChannelTelegram]) == "" {
				return errors.New("addresses.telegram (chat id) is required for telegram channel")
			}
		case NotifyChannelEmail:
			if contact.Email == "" {
				return errors.New("email is required for email channel")
			}
		case NotifyChannelMattermost:
			if contact.Addresses[NotifyChannelMattermost] == "" && cfg.Notify.Mattermost.ChannelID == "" {
				return errors.New("addresses.mattermost or notify.mattermost.channel_id is required for mattermost channel")
			}
		case NotifyChannelCommand:
			if contact.HostNotificationCommand == "" && contact.ServiceNotificationCommand == "" {
				return errors.New("host_notification_command or service_notification_command is required for command channel")
			}
		}
	}
	for _, command := range []string{contact.HostNotificationCommand, contact.ServiceNotificationCommand} {
		if command == "" {
			continue
		}
		if _, ok := cfg.Commands[command]; !ok {
			return fmt.Errorf("notification command %q is not defined", command)
		}
	}
	for channel, templateName := range contact.Templates {
		found := false
		for _, tpl := range NotifyChannelTemplates(cfg.Notify, channel) {
			if tpl.Name == templateName {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("templates.%s references unknown template %q", channel, templateName)
		}
	}
	return nil
}

func validateNotifierConfig(validate *validator.Validate, kind notifier.Kind, n NotifierConfig) error {
	if err := validate.Struct(n); err != nil {
		return err
	}
	if n.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be >0, got %v", n.RetryInterval)
	}
	if n.MaxCheckAttempts <= 0 {
		return fmt.Errorf("max_check_attempts must be >0, got %d", n.MaxCheckAttempts)
	}
	if _, err := notifier.ParseNotifyOn(kind, n.NotificationOptions); err != nil {
		return fmt.Errorf("notification_options: %w", err)
	}
	return nil
}

func validateEscalation(validate *validator.Validate, cfg Config, escalation EscalationConfig) error {
	if err := validate.Struct(escalation); err != nil {
		return err
	}
	kind, err := targetKind(cfg, escalation.Host, escalation.Service)
	if err != nil {
		return err
	}
	if escalation.LastNotification != 0 && escalation.LastNotification < escalation.FirstNotification {
		return fmt.Errorf("last_notification %d is below first_notification %d",
			escalation.LastNotification, escalation.FirstNotification)
	}
	if len(escalation.Contacts) == 0 && len(escalation.ContactGroups) == 0 {
		return errors.New("contacts or contact_groups is required")
	}
	if _, err := notifier.ParseNotifyOn(kind, escalation.EscalationOptions); err != nil {
		return fmt.Errorf("escalation_options: %w", err)
	}
	return nil
}

func validateDependency(validate *validator.Validate, cfg Config, dependency DependencyConfig) error {
	if err := validate.Struct(dependency); err != nil {
		return err
	}
	if _, err := targetKind(cfg, dependency.Host, dependency.Service); err != nil {
		return err
	}
	masterKind, err := targetKind(cfg, dependency.MasterHost, dependency.MasterService)
	if err != nil {
		return fmt.Errorf("master: %w", err)
	}
	if dependency.Host == dependency.MasterHost && dependency.Service == dependency.MasterService {
		return errors.New("object cannot depend on itself")
	}
	for _, options := range [][]string{dependency.NotificationFailureOptions, dependency.ExecutionFailureOptions} {
		if _, err := notifier.ParseNotifyOn(masterKind, options); err != nil {
			return fmt.Errorf("failure options: %w", err)
		}
	}
	return nil
}

// targetKind checks that a host (and optional service) exists.
// Params: config, host name, and service description.
// Returns: notifier kind of the target or not-found error.
func targetKind(cfg Config, host, service string) (notifier.Kind, error) {
	hostCfg, ok := cfg.Hosts[host]
	if !ok {
		return 0, fmt.Errorf("host %q is not defined", host)
	}
	if service == "" {
		return notifier.KindHost, nil
	}
	if _, ok := hostCfg.Services[service]; !ok {
		return 0, fmt.Errorf("service %q on host %q is not defined", service, host)
	}
	return notifier.KindService, nil
}

// validateMessageTemplate parses one text template and checks it is non-empty.
// Params: field path and template body.
// Returns: parse/empty error.
func validateMessageTemplate(path, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return fmt.Errorf("%s is required", path)
	}
	if _, err := macros.ParseTemplate(path, trimmed); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
