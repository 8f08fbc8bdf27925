package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/plugin"
	"github.com/steelcutops/acctctl/acctctl/session"
)

var errCancelled = errors.New("cancelled")

// edit is what the command line asks a session to do. It is replayed
// section by section, the way an operator fills in the wizard and presses
// Next until the account is committed.
type edit struct {
	attrs       map[string]any
	attach      []string
	detach      []string
	dialogs     []string
	pluginAttrs [][2]string
}

func (a *app) sessionOptions() session.Options {
	return session.Options{
		Config:   a.cfg,
		Store:    a.store,
		Popup:    a.sessionPopup(),
		Registry: a.registry,
		Logger:   a.log,
	}
}

// run fills every section and advances until the session closes. The first
// validation or storage failure ends the run.
func (e *edit) run(ctx context.Context, s *session.Session) error {
	rec := s.Record()
	for key := range e.attrs {
		if !rec.Allows(key) {
			return fmt.Errorf("%w: %s for %s %ss", accterr.ErrUnknownField, key, rec.Type, rec.Kind)
		}
	}

	for !s.Closed() {
		if err := e.fill(s); err != nil {
			return err
		}
		if _, err := s.Advance(ctx, session.Next()); err != nil {
			return err
		}
	}
	if s.Current() == session.StateCancelled {
		return errCancelled
	}
	return nil
}

func (e *edit) fill(s *session.Session) error {
	if s.Current() == session.StatePlugins {
		return e.fillPlugins(s)
	}
	view, err := s.Enter(s.Current())
	if err != nil {
		return err
	}
	for _, field := range view.Fields {
		if value, ok := e.attrs[field.Key]; ok {
			if err := s.Input(field.Key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *edit) fillPlugins(s *session.Session) error {
	for _, id := range e.detach {
		if err := s.DetachPlugin(id); err != nil {
			return err
		}
	}
	for _, id := range e.attach {
		if err := s.AttachPlugin(id); err != nil {
			return err
		}
	}
	for _, kv := range e.pluginAttrs {
		if err := s.Input(kv[0], kv[1]); err != nil {
			return err
		}
	}
	for _, id := range e.dialogs {
		outcome, err := s.InvokePlugin(id)
		if err != nil {
			return err
		}
		if outcome == plugin.OutcomeCancelled {
			return fmt.Errorf("plugin %s: %w", id, errCancelled)
		}
	}
	return nil
}
