package session

import (
	"fmt"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/plugin"
)

func (s *Session) requirePlugins() error {
	if s.Closed() {
		return accterr.ErrSessionClosed
	}
	if s.current != StatePlugins {
		return fmt.Errorf("%w: plugins are managed in the %s section", accterr.ErrNotOwned, StatePlugins)
	}
	return nil
}

// AttachPlugin attaches id to the record. Failures leave the record as it
// was and are reported to the operator.
func (s *Session) AttachPlugin(id string) error {
	if err := s.requirePlugins(); err != nil {
		return err
	}
	if err := s.plugins.Attach(s.rec, id); err != nil {
		s.report(err)
		return err
	}
	return nil
}

func (s *Session) DetachPlugin(id string) error {
	if err := s.requirePlugins(); err != nil {
		return err
	}
	if err := s.plugins.Detach(s.rec, id); err != nil {
		s.report(err)
		return err
	}
	return nil
}

// InvokePlugin opens the plugin's own dialog.
func (s *Session) InvokePlugin(id string) (plugin.Outcome, error) {
	if err := s.requirePlugins(); err != nil {
		return plugin.OutcomeCancelled, err
	}
	outcome, err := s.plugins.Invoke(s.rec, id)
	if err != nil {
		s.report(err)
	}
	return outcome, err
}
