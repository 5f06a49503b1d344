package objects

import "monitoring/internal/notifier"

// Command is a named command line.
type Command struct {
	name string
	line string
}

// NewCommand creates command object.
func NewCommand(name, line string) *Command {
	return &Command{name: name, line: line}
}

// Name returns command name.
func (c *Command) Name() string { return c.name }

// Line returns raw command line with $MACRO$ references.
func (c *Command) Line() string { return c.line }

// ContactGroup is a named set of contacts.
type ContactGroup struct {
	name    string
	alias   string
	members []notifier.Contact
}

// Name returns group name.
func (g *ContactGroup) Name() string { return g.name }

// Alias returns display alias.
func (g *ContactGroup) Alias() string { return g.alias }

// Members returns member contacts in configured order.
func (g *ContactGroup) Members() []notifier.Contact { return g.members }
