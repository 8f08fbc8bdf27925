// Package defaults computes the attributes an operator did not set: home
// directories, name parts, numeric ids, shells, groups, password aging and
// home permissions.
package defaults

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/values"
)

// Engine is session scoped. It remembers the last value it derived for each
// key so that a value the operator has since customized is never replaced.
type Engine struct {
	cfg     *config.Config
	lookup  storage.Lookup
	ids     *Allocator
	derived map[string]string

	Now func() time.Time
}

func New(cfg *config.Config, lookup storage.Lookup) *Engine {
	return &Engine{
		cfg:     cfg,
		lookup:  lookup,
		ids:     NewAllocator(lookup),
		derived: map[string]string{},
		Now:     time.Now,
	}
}

// Track records which of rec's current values are still the generated ones.
// Called once when a session starts so that an edited account whose home
// still follows its name keeps following it on rename.
func (e *Engine) Track(rec *record.Record) {
	if rec.Kind != record.KindUser {
		return
	}
	if home := e.GenerateHome(rec); home != "" && rec.GetString(record.KeyHome) == home {
		e.derived[record.KeyHome] = home
	}
	if rec.Type == record.TypeLDAP {
		given, sn := values.SplitFullName(rec.GetString(record.KeyCN))
		if given != "" && rec.GetString(record.KeyGivenName) == given {
			e.derived[record.KeyGivenName] = given
		}
		if sn != "" && rec.GetString(record.KeySN) == sn {
			e.derived[record.KeySN] = sn
		}
	}
}

// derive sets key to value unless the operator has customized it: the
// current value must be empty or equal to what was derived last time.
func (e *Engine) derive(rec *record.Record, key, value string) error {
	if value == "" {
		return nil
	}
	current := rec.GetString(key)
	last, tracked := e.derived[key]
	if current != "" && (!tracked || current != last) {
		return nil
	}
	if current != value {
		if err := rec.Set(key, value); err != nil {
			return err
		}
	}
	e.derived[key] = value
	return nil
}

// fill sets key when it has no effective value.
func fill(rec *record.Record, key string, value any) error {
	if rec.GetString(key) != "" {
		return nil
	}
	return rec.Set(key, value)
}

// Apply fills every derived attribute of rec.
func (e *Engine) Apply(ctx context.Context, rec *record.Record) error {
	if rec.Kind == record.KindGroup {
		return e.applyGroup(ctx, rec)
	}
	return e.applyUser(ctx, rec)
}

func (e *Engine) applyUser(ctx context.Context, rec *record.Record) error {
	d := e.cfg.For(rec.Type)

	if err := e.derive(rec, record.KeyHome, e.GenerateHome(rec)); err != nil {
		return err
	}
	if err := fill(rec, record.KeyShell, d.DefaultShell); err != nil {
		return err
	}
	if err := e.resolvePrimaryGroup(ctx, rec, d); err != nil {
		return err
	}

	if rec.Action == record.ActionAdded {
		if rec.GetString(record.KeyUIDNumber) == "" {
			id, err := e.ids.Next(ctx, record.KindUser, rec.Type, d)
			if err != nil {
				return err
			}
			if err := rec.Set(record.KeyUIDNumber, strconv.Itoa(id)); err != nil {
				return err
			}
		}
		mode, err := HomeMode(e.cfg.General.Umask)
		if err != nil {
			return err
		}
		if err := fill(rec, record.KeyHomeMode, mode); err != nil {
			return err
		}
		if _, ok := rec.Staged(record.KeyCreateHome); !ok {
			if err := rec.Set(record.KeyCreateHome, d.CreateHome); err != nil {
				return err
			}
		}
	}

	if rec.Type == record.TypeLDAP {
		given, sn := values.SplitFullName(rec.GetString(record.KeyCN))
		if err := e.derive(rec, record.KeyGivenName, given); err != nil {
			return err
		}
		if err := e.derive(rec, record.KeySN, sn); err != nil {
			return err
		}
	}

	// shadowExpire is entered as a calendar date and stored as epoch days.
	if expire := rec.GetString(record.KeyShadowExpire); expire != "" && !values.IsInt(expire) {
		days, err := CalendarToDays(expire)
		if err != nil {
			return err
		}
		if err := rec.Set(record.KeyShadowExpire, days); err != nil {
			return err
		}
	}

	if rec.Changed(record.KeyPassword) && !rec.Changed(record.KeyShadowLastChange) {
		today := strconv.Itoa(EpochDay(e.Now()))
		if err := rec.Set(record.KeyShadowLastChange, today); err != nil {
			return err
		}
	}
	return nil
}

// resolvePrimaryGroup keeps groupname and gidNumber consistent, falling back
// to the type's default group when neither is set.
func (e *Engine) resolvePrimaryGroup(ctx context.Context, rec *record.Record, d config.TypeDefaults) error {
	name := rec.GetString(record.KeyGroupname)
	gid := rec.GetString(record.KeyGIDNumber)

	switch {
	case name == "" && gid == "":
		if err := rec.Set(record.KeyGroupname, d.DefaultGroup); err != nil {
			return err
		}
		return rec.Set(record.KeyGIDNumber, strconv.Itoa(d.DefaultGID))
	case name != "" && (gid == "" || rec.Changed(record.KeyGroupname)):
		acc, err := e.lookup.LookupAccountByName(ctx, record.KindGroup, name)
		if err != nil {
			return fmt.Errorf("lookup group %s: %w", name, err)
		}
		if acc != nil {
			return rec.Set(record.KeyGIDNumber, strconv.Itoa(acc.Number))
		}
	case name == "" && gid != "":
		acc, err := e.lookup.LookupAccountByNumericID(ctx, record.KindGroup, values.ToInt(gid, d.DefaultGID))
		if err != nil {
			return fmt.Errorf("lookup gid %s: %w", gid, err)
		}
		if acc != nil {
			return rec.Set(record.KeyGroupname, acc.Name)
		}
	}
	return nil
}

func (e *Engine) applyGroup(ctx context.Context, rec *record.Record) error {
	if rec.Action != record.ActionAdded || rec.GetString(record.KeyGIDNumber) != "" {
		return nil
	}
	id, err := e.ids.Next(ctx, record.KindGroup, rec.Type, e.cfg.For(rec.Type))
	if err != nil {
		return err
	}
	return rec.Set(record.KeyGIDNumber, strconv.Itoa(id))
}

// Reset forgets everything derived in this session.
func (e *Engine) Reset() {
	e.derived = map[string]string{}
	e.ids.Reset()
}
