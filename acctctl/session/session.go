// Package session drives one interactive add or edit of a user or group:
// navigation between wizard sections, validation on every transition and
// the final commit to storage.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/defaults"
	"github.com/steelcutops/acctctl/acctctl/plugin"
	"github.com/steelcutops/acctctl/acctctl/popup"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/validation"
	"github.com/steelcutops/acctctl/logger"
)

// Options are the collaborators a session needs.
type Options struct {
	Config   *config.Config
	Store    storage.Store
	Popup    popup.Popup
	Prompter plugin.Prompter
	Registry *plugin.Registry
	Logger   logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Registry == nil {
		o.Registry = plugin.DefaultRegistry()
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	if o.Popup == nil {
		// Without an operator every question is declined.
		o.Popup = &popup.Scripted{}
	}
	if o.Prompter == nil {
		if p, ok := o.Popup.(plugin.Prompter); ok {
			o.Prompter = p
		}
	}
	return o
}

// Session owns the working record until it is committed or cancelled.
// It is not safe for concurrent use.
type Session struct {
	ID string

	rec      *record.Record
	store    storage.Store
	popup    popup.Popup
	pipeline *validation.Pipeline
	engine   *defaults.Engine
	plugins  *plugin.Manager
	log      logger.Logger

	sections []Section
	current  State
	focus    string
}

func newSession(opts Options, rec *record.Record) *Session {
	opts = opts.withDefaults()
	id := uuid.NewString()
	log := opts.Logger.With("session", id, "kind", rec.Kind.String())

	s := &Session{
		ID:       id,
		rec:      rec,
		store:    opts.Store,
		popup:    opts.Popup,
		pipeline: validation.New(opts.Config, opts.Store, opts.Popup, log),
		engine:   defaults.New(opts.Config, opts.Store),
		plugins:  plugin.NewManager(opts.Registry, opts.Prompter, log),
		log:      log,
		sections: Sections(rec.Kind),
	}
	s.current = s.sections[0].ID
	return s
}

// NewAdd starts a session creating a new account of kind and type t.
func NewAdd(opts Options, kind record.Kind, t record.AccountType) *Session {
	s := newSession(opts, record.New(kind, t))
	s.log.Info("Edit session started", "action", record.ActionAdded.String(), "type", t.String())
	return s
}

// NewEdit loads the stored account name and starts a session editing it.
func NewEdit(ctx context.Context, opts Options, kind record.Kind, name string) (*Session, error) {
	acc, err := opts.Store.LookupAccountByName(ctx, kind, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, name, err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s %s", accterr.ErrNotFound, kind, name)
	}

	s := newSession(opts, record.FromStored(kind, acc.Type, acc.Attributes))
	if err := s.plugins.Restore(s.rec); err != nil {
		return nil, err
	}
	s.engine.Track(s.rec)
	s.log.Info("Edit session started", "action", record.ActionEdited.String(), "type", acc.Type.String(), "name", name)
	return s, nil
}

// Record exposes the working record for rendering.
func (s *Session) Record() *record.Record { return s.rec }

func (s *Session) Current() State { return s.current }

func (s *Session) Sections() []Section { return s.sections }

// Closed reports whether the session reached a terminal state.
func (s *Session) Closed() bool {
	return s.current == StateCancelled || s.current == StateCommitted
}

func (s *Session) section(id State) (Section, bool) {
	for _, sec := range s.sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return Section{}, false
}

// keysOf returns the attributes section id owns on the current record. The
// plugins section owns every key of the attached plugins.
func (s *Session) keysOf(id State) []string {
	if id == StatePlugins {
		var keys []string
		for _, pid := range s.rec.Plugins() {
			keys = append(keys, s.rec.PluginKeys(pid)...)
		}
		return keys
	}
	sec, _ := s.section(id)
	var keys []string
	for _, k := range sec.Keys {
		if s.rec.Allows(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Session) sectionOf(key string) (State, bool) {
	for _, sec := range s.sections {
		for _, k := range s.keysOf(sec.ID) {
			if k == key {
				return sec.ID, true
			}
		}
	}
	return s.current, false
}

// Input stages value for key. Only attributes owned by the active section
// can be set; validation is deferred until the section is left.
func (s *Session) Input(key string, value any) error {
	if s.Closed() {
		return accterr.ErrSessionClosed
	}
	owned := false
	if s.current == StatePlugins {
		owned = s.rec.PluginOf(key) != ""
	} else {
		for _, k := range s.keysOf(s.current) {
			if k == key {
				owned = true
				break
			}
		}
	}
	if !owned {
		return fmt.Errorf("%w: %s is not part of the %s section", accterr.ErrNotOwned, key, s.current)
	}
	return s.rec.Set(key, value)
}

func (s *Session) report(err error) {
	s.focus = accterr.FocusOf(err)
	s.log.Warn("Validation failed", "section", s.current.String(), "focus", s.focus, "error", err)
	s.popup.Error(err.Error())
}

func (s *Session) validate(ctx context.Context, id State) error {
	if id == StatePlugins {
		return s.plugins.CheckAll(s.rec)
	}
	return s.pipeline.ValidateKeys(ctx, s.rec, s.keysOf(id))
}

// Advance handles a navigation event. When the active section does not
// validate, the session stays where it is and the error names the field
// that should receive focus.
func (s *Session) Advance(ctx context.Context, ev Event) (State, error) {
	if s.Closed() {
		return s.current, accterr.ErrSessionClosed
	}

	switch ev.Kind {
	case EventCancel, EventAbort:
		return s.cancel(ev), nil
	}

	target, err := s.target(ev)
	if err != nil {
		return s.current, err
	}

	if err := s.validate(ctx, s.current); err != nil {
		s.report(err)
		return s.current, err
	}
	s.focus = ""
	if err := s.engine.Apply(ctx, s.rec); err != nil {
		err = asStorageError(err)
		s.report(err)
		return s.current, err
	}

	if target == StateCommitting {
		return s.commit(ctx)
	}
	s.log.Debug("Section changed", "from", s.current.String(), "to", target.String())
	s.current = target
	return s.current, nil
}

func (s *Session) target(ev Event) (State, error) {
	sec, _ := s.section(s.current)
	switch ev.Kind {
	case EventNext:
		if sec.Ordinal+1 >= len(s.sections) {
			return StateCommitting, nil
		}
		return s.sections[sec.Ordinal+1].ID, nil
	case EventBack:
		if sec.Ordinal == 0 {
			return s.current, nil
		}
		return s.sections[sec.Ordinal-1].ID, nil
	case EventTab:
		if ev.Target == StateCommitting {
			return StateCommitting, nil
		}
		if _, ok := s.section(ev.Target); !ok {
			return s.current, fmt.Errorf("%w: %s", accterr.ErrNoSection, ev.Target)
		}
		return ev.Target, nil
	}
	return s.current, fmt.Errorf("unknown event %d", ev.Kind)
}

// cancel asks before discarding unsaved modifications.
func (s *Session) cancel(ev Event) State {
	if s.rec.Modified() {
		if !s.popup.Confirm(fmt.Sprintf("Discard all changes to %s %s?", s.rec.Kind, s.displayName())) {
			return s.current
		}
	}
	s.log.Info("Edit session cancelled", "event", ev.Kind.String())
	s.close(StateCancelled)
	return s.current
}

func (s *Session) displayName() string {
	if name := s.rec.Name(); name != "" {
		return name
	}
	return "(new)"
}

// commit validates the complete record, lets plugins finalize their
// attributes and hands the record to storage. On failure the session
// returns to the section owning the offending field.
func (s *Session) commit(ctx context.Context) (State, error) {
	from := s.current
	s.current = StateCommitting

	if err := s.finalize(ctx); err != nil {
		s.current = from
		if focus := accterr.FocusOf(err); focus != "" {
			s.current, _ = s.sectionOf(focus)
		}
		s.report(err)
		return s.current, err
	}

	name := s.rec.Name()
	if err := storage.Commit(ctx, s.store, s.rec); err != nil {
		err = asStorageError(err)
		s.current = from
		s.report(err)
		return s.current, err
	}

	s.log.Info("Account committed", "name", name, "type", s.rec.Type.String(), "action", s.rec.Action.String())
	s.close(StateCommitted)
	return s.current, nil
}

func (s *Session) finalize(ctx context.Context) error {
	if err := s.engine.Apply(ctx, s.rec); err != nil {
		return asStorageError(err)
	}
	if err := s.pipeline.ValidateRecord(ctx, s.rec); err != nil {
		return err
	}
	if err := s.plugins.CheckAll(s.rec); err != nil {
		return err
	}
	return s.plugins.ApplyAll(s.rec)
}

// Commit validates the active section and commits, as pressing OK does.
func (s *Session) Commit(ctx context.Context) (State, error) {
	return s.Advance(ctx, Tab(StateCommitting))
}

// close discards the session scoped state.
func (s *Session) close(final State) {
	s.current = final
	s.rec.Clear()
	s.pipeline.Reset()
	s.engine.Reset()
	s.focus = ""
}

func asStorageError(err error) error {
	var sce *accterr.StorageCommitError
	if errors.As(err, &sce) || accterr.Recoverable(err) {
		return err
	}
	return &accterr.StorageCommitError{Err: err}
}
