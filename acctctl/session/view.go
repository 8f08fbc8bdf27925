package session

import (
	"fmt"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/defaults"
	"github.com/steelcutops/acctctl/acctctl/plugin"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/values"
)

const maskedPassword = "********"

type Field struct {
	Key   string
	Value string
}

// View is a section rendered from the current record state.
type View struct {
	Section Section
	Active  bool
	Focus   string
	Fields  []Field
	Plugins []plugin.Ref
}

// Enter renders section id from the record. It never changes the record
// or the active section, so calling it repeatedly gives the same view.
func (s *Session) Enter(id State) (View, error) {
	if s.Closed() {
		return View{}, accterr.ErrSessionClosed
	}
	sec, ok := s.section(id)
	if !ok {
		return View{}, fmt.Errorf("%w: %s", accterr.ErrNoSection, id)
	}

	v := View{Section: sec, Active: id == s.current}
	if v.Active {
		v.Focus = s.focus
	}
	for _, key := range s.keysOf(id) {
		v.Fields = append(v.Fields, Field{Key: key, Value: renderValue(s.rec, key)})
	}
	if id == StatePlugins {
		v.Plugins = s.plugins.ListApplicable(s.rec)
	}
	return v, nil
}

func renderValue(rec *record.Record, key string) string {
	raw := rec.GetString(key)
	switch key {
	case record.KeyPassword, record.KeyPasswordConfirm:
		if raw != "" {
			return maskedPassword
		}
	case record.KeyShadowLastChange, record.KeyShadowExpire:
		if values.IsInt(raw) {
			return defaults.DaysToCalendar(raw)
		}
	}
	return raw
}
