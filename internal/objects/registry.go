package objects

import (
	"errors"
	"fmt"
	"sort"

	"monitoring/internal/config"
	"monitoring/internal/notifier"
)

// Registry holds compiled configuration objects and every notifier built from them.
// Params: built once from config, read-only afterwards.
// Returns: notifier.Lookup and notifier.DependencyAuthorizer implementation.
type Registry struct {
	timeperiods   map[string]*Timeperiod
	commands      map[string]*Command
	contacts      map[string]*Contact
	contactGroups map[string]*ContactGroup
	notifiers     map[string]*notifier.Notifier
	dependencies  map[string][]Dependency
	keys          []string
}

// Build compiles objects and creates notifiers for every host and service.
// Params: validated config and environment shared by notifiers.
// Returns: registry or first compile/construction error.
func Build(cfg config.Config, env *notifier.Environment) (*Registry, error) {
	r := &Registry{
		timeperiods:   make(map[string]*Timeperiod, len(cfg.Timeperiods)),
		commands:      make(map[string]*Command, len(cfg.Commands)),
		contacts:      make(map[string]*Contact, len(cfg.Contacts)),
		contactGroups: make(map[string]*ContactGroup, len(cfg.ContactGroups)),
		notifiers:     make(map[string]*notifier.Notifier),
		dependencies:  make(map[string][]Dependency),
	}

	for name, tp := range cfg.Timeperiods {
		period, err := NewTimeperiod(name, tp)
		if err != nil {
			return nil, err
		}
		r.timeperiods[name] = period
	}
	for name, command := range cfg.Commands {
		r.commands[name] = NewCommand(name, command.Line)
	}
	for name, contactCfg := range cfg.Contacts {
		contact, err := r.buildContact(name, contactCfg)
		if err != nil {
			return nil, fmt.Errorf("contact %q: %w", name, err)
		}
		r.contacts[name] = contact
	}
	for name, groupCfg := range cfg.ContactGroups {
		group := &ContactGroup{name: name, alias: groupCfg.Alias}
		for _, member := range groupCfg.Members {
			contact, ok := r.contacts[member]
			if !ok {
				return nil, fmt.Errorf("contactgroup %q: member %q is not defined", name, member)
			}
			group.members = append(group.members, contact)
		}
		r.contactGroups[name] = group
	}

	escalations, err := buildEscalations(cfg)
	if err != nil {
		return nil, err
	}

	for hostName, host := range cfg.Hosts {
		if err := r.addNotifier(env, notifier.KindHost, hostName, "", host.NotifierConfig, escalations); err != nil {
			return nil, err
		}
		for description, service := range host.Services {
			if err := r.addNotifier(env, notifier.KindService, hostName, description, service.NotifierConfig, escalations); err != nil {
				return nil, err
			}
		}
	}

	for i, depCfg := range cfg.Dependencies {
		dependency, err := r.buildDependency(depCfg)
		if err != nil {
			return nil, fmt.Errorf("dependency[%d]: %w", i, err)
		}
		r.dependencies[dependency.Dependent] = append(r.dependencies[dependency.Dependent], dependency)
	}

	r.keys = make([]string, 0, len(r.notifiers))
	for key := range r.notifiers {
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
	return r, nil
}

// ResolveAll resolves every notifier against the registry.
// Params: warning and error counters.
// Returns: joined ErrResolve aggregates, nil when everything resolved.
func (r *Registry) ResolveAll(warnings, errs *int) error {
	var problems []error
	for _, key := range r.keys {
		if err := r.notifiers[key].Resolve(r, warnings, errs); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

// FindCommand implements notifier.Lookup.
func (r *Registry) FindCommand(name string) (notifier.Command, bool) {
	command, ok := r.commands[name]
	if !ok {
		return nil, false
	}
	return command, true
}

// FindTimeperiod implements notifier.Lookup.
func (r *Registry) FindTimeperiod(name string) (notifier.Timeperiod, bool) {
	period, ok := r.timeperiods[name]
	if !ok {
		return nil, false
	}
	return period, true
}

// FindContact implements notifier.Lookup.
func (r *Registry) FindContact(name string) (notifier.Contact, bool) {
	contact, ok := r.contacts[name]
	if !ok {
		return nil, false
	}
	return contact, true
}

// FindContactGroup implements notifier.Lookup.
func (r *Registry) FindContactGroup(name string) (notifier.ContactGroup, bool) {
	group, ok := r.contactGroups[name]
	if !ok {
		return nil, false
	}
	return group, true
}

// Contact returns concrete contact by name.
func (r *Registry) Contact(name string) (*Contact, bool) {
	contact, ok := r.contacts[name]
	return contact, ok
}

// Notifier returns notifier by key ("host" or "host/description").
func (r *Registry) Notifier(key string) (*notifier.Notifier, bool) {
	n, ok := r.notifiers[key]
	return n, ok
}

// Host returns host notifier by name.
func (r *Registry) Host(name string) (*notifier.Notifier, bool) {
	return r.Notifier(notifier.NotifierKey(notifier.KindHost, name, ""))
}

// Service returns service notifier by host name and description.
func (r *Registry) Service(host, description string) (*notifier.Notifier, bool) {
	return r.Notifier(notifier.NotifierKey(notifier.KindService, host, description))
}

// Notifiers returns every notifier sorted by key.
func (r *Registry) Notifiers() []*notifier.Notifier {
	out := make([]*notifier.Notifier, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.notifiers[key])
	}
	return out
}

// Authorized implements notifier.DependencyAuthorizer.
// Params: dependent notifier and dependency kind.
// Returns: false when any master is in a failure state of the kind's mask.
func (r *Registry) Authorized(n *notifier.Notifier, kind notifier.DependencyKind) bool {
	for _, dependency := range r.dependencies[n.Key()] {
		master, ok := r.notifiers[dependency.Master]
		if !ok {
			continue
		}
		if dependency.failed(master, kind) {
			return false
		}
	}
	return true
}

func (r *Registry) buildContact(name string, cfg config.ContactConfig) (*Contact, error) {
	contact := &Contact{
		name:      name,
		alias:     cfg.Alias,
		email:     cfg.Email,
		pager:     cfg.Pager,
		channels:  append([]string(nil), cfg.Channels...),
		addresses: cfg.Addresses,
		templates: cfg.Templates,
	}
	if contact.alias == "" {
		contact.alias = name
	}

	var err error
	contact.host, err = r.buildContactFilter(notifier.KindHost, cfg.HostNotificationsEnabled,
		cfg.HostNotificationOptions, cfg.HostNotificationPeriod, cfg.HostNotificationCommand)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	contact.service, err = r.buildContactFilter(notifier.KindService, cfg.ServiceNotificationsEnabled,
		cfg.ServiceNotificationOptions, cfg.ServiceNotificationPeriod, cfg.ServiceNotificationCommand)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return contact, nil
}

func (r *Registry) buildContactFilter(kind notifier.Kind, enabled *bool, options []string, period, command string) (contactFilter, error) {
	notifyOn, err := notifier.ParseNotifyOn(kind, options)
	if err != nil {
		return contactFilter{}, err
	}
	filter := contactFilter{enabled: enabled == nil || *enabled, notifyOn: notifyOn}
	if period != "" {
		tp, ok := r.timeperiods[period]
		if !ok {
			return contactFilter{}, fmt.Errorf("notification period %q is not defined", period)
		}
		filter.period = tp
	}
	if command != "" {
		cmd, ok := r.commands[command]
		if !ok {
			return contactFilter{}, fmt.Errorf("notification command %q is not defined", command)
		}
		filter.command = cmd
	}
	return filter, nil
}

func (r *Registry) addNotifier(
	env *notifier.Environment,
	kind notifier.Kind,
	hostName, description string,
	cfg config.NotifierConfig,
	escalations map[string][]*notifier.Escalation,
) error {
	key := notifier.NotifierKey(kind, hostName, description)
	notifyOn, err := notifier.ParseNotifyOn(kind, cfg.NotificationOptions)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	n, err := notifier.New(notifier.Definition{
		Kind:                      kind,
		HostName:                  hostName,
		Description:               description,
		NotifyOn:                  notifyOn,
		NotificationsEnabled:      cfg.NotificationsEnabled == nil || *cfg.NotificationsEnabled,
		Volatile:                  cfg.IsVolatile,
		NotificationInterval:      uint32(cfg.NotificationInterval),
		FirstNotificationDelay:    uint32(cfg.FirstNotificationDelay),
		RecoveryNotificationDelay: uint32(cfg.RecoveryNotificationDelay),
		CheckInterval:             cfg.CheckInterval,
		RetryInterval:             cfg.RetryInterval,
		MaxCheckAttempts:          cfg.MaxCheckAttempts,
		FlapDetectionEnabled:      cfg.FlapDetectionEnabled == nil || *cfg.FlapDetectionEnabled,
		NotificationPeriod:        cfg.NotificationPeriod,
		CheckPeriod:               cfg.CheckPeriod,
		CheckCommand:              cfg.CheckCommand,
		EventHandler:              cfg.EventHandler,
		Contacts:                  cfg.Contacts,
		ContactGroups:             cfg.ContactGroups,
		Escalations:               escalations[key],
	}, env)
	if err != nil {
		return err
	}
	if _, exists := r.notifiers[key]; exists {
		return fmt.Errorf("duplicate notifier %q", key)
	}
	r.notifiers[key] = n
	return nil
}

// buildEscalations groups escalation rules by target notifier key.
// Params: config with escalation entries.
// Returns: per-key escalation lists or option parse error.
func buildEscalations(cfg config.Config) (map[string][]*notifier.Escalation, error) {
	out := make(map[string][]*notifier.Escalation)
	for i, escCfg := range cfg.Escalations {
		kind := notifier.KindHost
		if escCfg.Service != "" {
			kind = notifier.KindService
		}
		escalateOn, err := notifier.ParseNotifyOn(kind, escCfg.EscalationOptions)
		if err != nil {
			return nil, fmt.Errorf("escalation[%d]: %w", i, err)
		}
		interval := int32(-1)
		if escCfg.NotificationInterval != nil {
			interval = int32(*escCfg.NotificationInterval)
		}
		key := notifier.NotifierKey(kind, escCfg.Host, escCfg.Service)
		out[key] = append(out[key], &notifier.Escalation{
			FirstNotification:    uint32(escCfg.FirstNotification),
			LastNotification:     uint32(escCfg.LastNotification),
			NotificationInterval: interval,
			EscalateOn:           escalateOn,
			Period:               escCfg.EscalationPeriod,
			Contacts:             append([]string(nil), escCfg.Contacts...),
			ContactGroups:        append([]string(nil), escCfg.ContactGroups...),
		})
	}
	return out, nil
}

func (r *Registry) buildDependency(cfg config.DependencyConfig) (Dependency, error) {
	dependentKind, masterKind := notifier.KindHost, notifier.KindHost
	if cfg.Service != "" {
		dependentKind = notifier.KindService
	}
	if cfg.MasterService != "" {
		masterKind = notifier.KindService
	}
	dependency := Dependency{
		Dependent: notifier.NotifierKey(dependentKind, cfg.Host, cfg.Service),
		Master:    notifier.NotifierKey(masterKind, cfg.MasterHost, cfg.MasterService),
	}
	if _, ok := r.notifiers[dependency.Dependent]; !ok {
		return Dependency{}, fmt.Errorf("dependent %q is not defined", dependency.Dependent)
	}
	if _, ok := r.notifiers[dependency.Master]; !ok {
		return Dependency{}, fmt.Errorf("master %q is not defined", dependency.Master)
	}
	var err error
	if dependency.NotificationFailure, err = notifier.ParseNotifyOn(masterKind, cfg.NotificationFailureOptions); err != nil {
		return Dependency{}, fmt.Errorf("notification_failure_options: %w", err)
	}
	if dependency.ExecutionFailure, err = notifier.ParseNotifyOn(masterKind, cfg.ExecutionFailureOptions); err != nil {
		return Dependency{}, fmt.Errorf("execution_failure_options: %w", err)
	}
	return dependency, nil
}
