package plugin

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/logger"
)

// Manager runs the plugin protocol for one edit session.
type Manager struct {
	registry *Registry
	ui       Prompter
	log      logger.Logger
}

func NewManager(registry *Registry, ui Prompter, log logger.Logger) *Manager {
	return &Manager{registry: registry, ui: ui, log: log}
}

func (m *Manager) config(rec *record.Record) Config {
	return Config{Kind: rec.Kind, Type: rec.Type, Action: rec.Action, UI: m.ui}
}

// ListApplicable returns the plugins that apply to rec's kind and type.
func (m *Manager) ListApplicable(rec *record.Record) []Ref {
	cfg := m.config(rec)
	var refs []Ref
	for _, p := range m.registry.All() {
		name, summary := p.Name(cfg), p.Summary(cfg)
		if name == "" && summary == "" {
			continue
		}
		refs = append(refs, Ref{ID: p.ID(), Name: name, Summary: summary, Attached: rec.HasPlugin(p.ID())})
	}
	return refs
}

// Restore re-attaches the plugins recorded on a stored account without
// running Check, so existing attribute values are kept as they are.
func (m *Manager) Restore(rec *record.Record) error {
	for _, id := range rec.StoredPlugins() {
		p, err := m.registry.Get(id)
		if err != nil {
			return err
		}
		rec.AttachPlugin(id, p.Keys())
	}
	return nil
}

// Attach checks the record merged with the plugin defaults and, when the
// plugin accepts it, attaches the plugin and stages its defaults. On any
// failure rec is left untouched.
func (m *Manager) Attach(rec *record.Record, id string) error {
	p, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if rec.HasPlugin(id) {
		return nil
	}
	cfg := m.config(rec)
	if p.Name(cfg) == "" {
		return &accterr.PluginCheckError{Plugin: id, Reason: fmt.Sprintf("not available for %s %ss", rec.Type, rec.Kind)}
	}

	defaults := p.Defaults(cfg)
	merged := rec.Attributes()
	for k, v := range defaults {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	if err := p.Check(cfg, merged); err != nil {
		return &accterr.PluginCheckError{Plugin: id, Reason: err.Error()}
	}

	snapshot := rec.Clone()
	rec.AttachPlugin(id, p.Keys())
	for k, v := range defaults {
		if rec.Get(k) != nil {
			continue
		}
		if err := rec.Set(k, v); err != nil {
			rec.Restore(snapshot)
			return err
		}
	}
	m.log.Debug("Plugin attached", "plugin", id, "name", rec.Name())
	return nil
}

// Detach removes id and its staged values unless the plugin reports it is
// still in use.
func (m *Manager) Detach(rec *record.Record, id string) error {
	p, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if !rec.HasPlugin(id) {
		return fmt.Errorf("%w: %s", accterr.ErrPluginNotAdded, id)
	}
	if !p.Removable(m.config(rec), rec) {
		return &accterr.PluginCheckError{Plugin: id, Reason: "cannot be removed while its attributes are in use"}
	}
	rec.DetachPlugin(id)
	m.log.Debug("Plugin detached", "plugin", id, "name", rec.Name())
	return nil
}

// Invoke runs the plugin dialog, attaching the plugin first when needed.
// A cancelled dialog or a rejected result restores rec to its state before
// the call, including any attachment made for the dialog.
func (m *Manager) Invoke(rec *record.Record, id string) (Outcome, error) {
	p, err := m.registry.Get(id)
	if err != nil {
		return OutcomeCancelled, err
	}
	snapshot := rec.Clone()
	attached := false
	if !rec.HasPlugin(id) {
		if err := m.Attach(rec, id); err != nil {
			return OutcomeCancelled, err
		}
		attached = true
	}

	cfg := m.config(rec)
	if p.Dialog(cfg, rec) == OutcomeCancelled {
		rec.Restore(snapshot)
		m.log.Debug("Plugin dialog cancelled", "plugin", id, "rolled_back_attach", attached)
		return OutcomeCancelled, nil
	}
	if err := p.Check(cfg, rec.Attributes()); err != nil {
		rec.Restore(snapshot)
		return OutcomeCancelled, &accterr.PluginCheckError{Plugin: id, Reason: err.Error()}
	}
	return OutcomeAccepted, nil
}

// CheckAll runs Check for every attached plugin and reports all failures.
func (m *Manager) CheckAll(rec *record.Record) error {
	cfg := m.config(rec)
	attrs := rec.Attributes()
	var result *multierror.Error
	for _, id := range rec.Plugins() {
		p, err := m.registry.Get(id)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := p.Check(cfg, attrs); err != nil {
			result = multierror.Append(result, &accterr.PluginCheckError{Plugin: id, Reason: err.Error()})
		}
	}
	return result.ErrorOrNil()
}

// ApplyAll lets every attached plugin finalize its attributes.
func (m *Manager) ApplyAll(rec *record.Record) error {
	cfg := m.config(rec)
	for _, id := range rec.Plugins() {
		p, err := m.registry.Get(id)
		if err != nil {
			return err
		}
		if err := p.Apply(cfg, rec); err != nil {
			return &accterr.PluginCheckError{Plugin: id, Reason: err.Error()}
		}
	}
	return nil
}
