package config

// TimeperiodConfig defines weekly time ranges from `[timeperiod.<name>]`.
// Params: alias, IANA timezone, and per-weekday "HH:MM-HH:MM" range lists (24:00 allowed as end).
// Returns: timeperiod definition.
type TimeperiodConfig struct {
	Alias     string   `toml:"alias"`
	Timezone  string   `toml:"timezone"`
	Monday    []string `toml:"monday" validate:"dive,required"`
	Tuesday   []string `toml:"tuesday" validate:"dive,required"`
	Wednesday []string `toml:"wednesday" validate:"dive,required"`
	Thursday  []string `toml:"thursday" validate:"dive,required"`
	Friday    []string `toml:"friday" validate:"dive,required"`
	Saturday  []string `toml:"saturday" validate:"dive,required"`
	Sunday    []string `toml:"sunday" validate:"dive,required"`
}

// Days returns ranges indexed by time.Weekday (Sunday first).
func (t TimeperiodConfig) Days() [7][]string {
	return [7][]string{t.Sunday, t.Monday, t.Tuesday, t.Wednesday, t.Thursday, t.Friday, t.Saturday}
}

// CommandConfig defines one command line from `[command.<name>]`.
type CommandConfig struct {
	Line string `toml:"line" validate:"required"`
}

// ContactConfig defines one recipient from `[contact.<name>]`.
// Params: identity, addresses, channels, and per-kind notification filters.
// Returns: contact definition.
type ContactConfig struct {
	Alias                       string            `toml:"alias"`
	Email                       string            `toml:"email" validate:"omitempty,email"`
	Pager                       string            `toml:"pager"`
	Channels                    []string          `toml:"channels"`
	Addresses                   map[string]string `toml:"addresses"`
	Templates                   map[string]string `toml:"templates"`
	HostNotificationPeriod      string            `toml:"host_notification_period"`
	ServiceNotificationPeriod   string            `toml:"service_notification_period"`
	HostNotificationOptions     []string          `toml:"host_notification_options"`
	ServiceNotificationOptions  []string          `toml:"service_notification_options"`
	HostNotificationsEnabled    *bool             `toml:"host_notifications_enabled"`
	ServiceNotificationsEnabled *bool             `toml:"service_notifications_enabled"`
	HostNotificationCommand     string            `toml:"host_notification_command"`
	ServiceNotificationCommand  string            `toml:"service_notification_command"`
}

// ContactGroupConfig defines one named set of contacts from `[contactgroup.<name>]`.
type ContactGroupConfig struct {
	Alias   string   `toml:"alias"`
	Members []string `toml:"members" validate:"required,min=1,dive,required"`
}

// NotifierConfig carries settings shared by hosts and services.
// Params: check cadence, notification policy, periods, and recipients.
// Returns: fields embedded into host and service definitions.
type NotifierConfig struct {
	Alias                     string   `toml:"alias"`
	CheckCommand              string   `toml:"check_command"`
	CheckPeriod               string   `toml:"check_period"`
	CheckInterval             float64  `toml:"check_interval" validate:"gte=0"`
	RetryInterval             float64  `toml:"retry_interval" validate:"gte=0"`
	MaxCheckAttempts          int      `toml:"max_check_attempts" validate:"gte=0"`
	EventHandler              string   `toml:"event_handler"`
	NotificationPeriod        string   `toml:"notification_period"`
	NotificationInterval      int      `toml:"notification_interval" validate:"gte=0,lte=4294967295"`
	FirstNotificationDelay    int      `toml:"first_notification_delay" validate:"gte=0,lte=4294967295"`
	RecoveryNotificationDelay int      `toml:"recovery_notification_delay" validate:"gte=0,lte=4294967295"`
	NotificationOptions       []string `toml:"notification_options"`
	NotificationsEnabled      *bool    `toml:"notifications_enabled"`
	FlapDetectionEnabled      *bool    `toml:"flap_detection_enabled"`
	IsVolatile                bool     `toml:"is_volatile"`
	Contacts                  []string `toml:"contacts" validate:"dive,required"`
	ContactGroups             []string `toml:"contact_groups" validate:"dive,required"`
}

// HostConfig defines one monitored host from `[host.<name>]` and its services
// from `[host.<name>.service.<description>]`.
type HostConfig struct {
	NotifierConfig
	Address  string                       `toml:"address"`
	Services map[string]HostServiceConfig `toml:"service"`
}

// HostServiceConfig defines one monitored service attached to a host.
type HostServiceConfig struct {
	NotifierConfig
}

// EscalationConfig defines one `[[escalation]]` entry.
// Params: target host (and optional service), number range, interval override,
// period, escalation options, and recipients.
// Returns: escalation definition.
type EscalationConfig struct {
	Host                 string   `toml:"host" validate:"required"`
	Service              string   `toml:"service"`
	FirstNotification    int      `toml:"first_notification" validate:"gte=0,lte=4294967295"`
	LastNotification     int      `toml:"last_notification" validate:"gte=0,lte=4294967295"`
	NotificationInterval *int     `toml:"notification_interval" validate:"omitempty,gte=-2147483648,lte=2147483647"`
	EscalationPeriod     string   `toml:"escalation_period"`
	EscalationOptions    []string `toml:"escalation_options"`
	Contacts             []string `toml:"contacts" validate:"dive,required"`
	ContactGroups        []string `toml:"contact_groups" validate:"dive,required"`
}

// DependencyConfig defines one `[[dependency]]` entry.
// Params: dependent object, master object, and failure state options.
// Returns: dependency definition.
type DependencyConfig struct {
	Host                       string   `toml:"host" validate:"required"`
	Service                    string   `toml:"service"`
	MasterHost                 string   `toml:"master_host" validate:"required"`
	MasterService              string   `toml:"master_service"`
	NotificationFailureOptions []string `toml:"notification_failure_options"`
	ExecutionFailureOptions    []string `toml:"execution_failure_options"`
}
