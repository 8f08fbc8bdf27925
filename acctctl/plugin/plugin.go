// Package plugin lets optional feature modules contribute their own
// attribute subsets to a user or group record.
package plugin

import (
	"github.com/steelcutops/acctctl/acctctl/record"
)

// Prompter collects free-form values inside a plugin dialog.
type Prompter interface {
	// Ask returns the entered value, or ok=false when the operator cancels.
	Ask(label, current string) (value string, ok bool)
}

// Config describes the record a plugin is consulted for.
type Config struct {
	Kind   record.Kind
	Type   record.AccountType
	Action record.Action
	UI     Prompter
}

type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeCancelled
)

func (o Outcome) String() string {
	if o == OutcomeCancelled {
		return "cancelled"
	}
	return "accepted"
}

// Plugin is the capability set a feature module exposes to the session.
// Name and Summary return an empty string when the plugin does not apply to
// the account kind and type in cfg.
type Plugin interface {
	ID() string
	// Keys lists the attributes the plugin owns. They must not collide with
	// core schema keys or with another plugin's keys.
	Keys() []string
	Name(cfg Config) string
	Summary(cfg Config) string
	// Check validates the merged attribute set. The returned error text is
	// shown to the operator.
	Check(cfg Config, attrs map[string]any) error
	Dialog(cfg Config, rec *record.Record) Outcome
	// Removable reports whether the plugin may be detached from rec in its
	// current state.
	Removable(cfg Config, rec *record.Record) bool
	Defaults(cfg Config) map[string]any
	// Apply normalizes the plugin's attributes right before commit.
	Apply(cfg Config, rec *record.Record) error
}

// Ref is what the Plugins section lists.
type Ref struct {
	ID       string
	Name     string
	Summary  string
	Attached bool
}
