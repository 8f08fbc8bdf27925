// Package validation validates attribute values and relationships and
// resolves conflicts with existing accounts through operator decisions.
package validation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/popup"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/values"
	"github.com/steelcutops/acctctl/logger"
)

var fallbackShells = []string{"/bin/bash", "/bin/sh", "/usr/bin/zsh", "/sbin/nologin"}

// Pipeline is session scoped: its resolver memoizes answers for one
// session and it caches the list of known shells.
type Pipeline struct {
	cfg       *config.Config
	validator *Validator
	resolver  *Resolver
	lookup    storage.Lookup
	log       logger.Logger

	shells []string
}

func New(cfg *config.Config, lookup storage.Lookup, p popup.Popup, log logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		validator: NewValidator(cfg),
		resolver:  NewResolver(p),
		lookup:    lookup,
		log:       log,
	}
}

func (p *Pipeline) ValidateField(kind record.Kind, key string, value any) error {
	return p.validator.ValidateField(kind, key, value)
}

func (p *Pipeline) ValidateCrossField(rec *record.Record) error {
	return ValidateCrossField(rec)
}

func (p *Pipeline) ResolveConflict(q ConflictQuestion) bool {
	answer := p.resolver.ResolveConflict(q)
	p.log.Debug("Conflict resolved", "question", q.ID, "subject", q.Subject, "answer", answer)
	return answer
}

// Reset forgets memoized answers and cached lookups; called at session end.
func (p *Pipeline) Reset() {
	p.resolver.Reset()
	p.shells = nil
}

// ValidateKeys runs the format checks for keys, the cross-field rules
// touching them and the conflict checks triggered by them, stopping at the
// first failure.
func (p *Pipeline) ValidateKeys(ctx context.Context, rec *record.Record, keys []string) error {
	for _, key := range keys {
		if err := p.ValidateField(rec.Kind, key, rec.Get(key)); err != nil {
			return err
		}
	}
	if err := crossCheck(rec, keys); err != nil {
		return err
	}
	return p.checkConflicts(ctx, rec, keys)
}

// ValidateRecord checks the complete record before commit. Format and
// cross-field failures are collected together; conflicts are only checked
// once those pass.
func (p *Pipeline) ValidateRecord(ctx context.Context, rec *record.Record) error {
	keys := record.Schema(rec.Kind, rec.Type)

	var result *multierror.Error
	for _, key := range keys {
		if err := p.ValidateField(rec.Kind, key, rec.Get(key)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, rule := range crossRules {
		if rule.kind != rec.Kind {
			continue
		}
		if err := rule.check(rec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	return p.checkConflicts(ctx, rec, keys)
}

type conflictCheck func(p *Pipeline, ctx context.Context, rec *record.Record) error

// conflictChecks are keyed by the attribute that triggers them and run in
// this order.
var conflictChecks = []struct {
	key   func(record.Kind) string
	check conflictCheck
}{
	{record.NameKey, (*Pipeline).checkNameUnique},
	{record.NumberKey, (*Pipeline).checkIDBucket},
	{record.NumberKey, (*Pipeline).checkIDUnique},
	{constKey(record.KeyGroupname), (*Pipeline).checkPrimaryGroup},
	{constKey(record.KeyGrouplist), (*Pipeline).checkSecondaryGroups},
	{constKey(record.KeyUserlist), (*Pipeline).checkMembers},
	{constKey(record.KeyHome), (*Pipeline).checkHome},
	{constKey(record.KeyShell), (*Pipeline).checkShell},
}

func constKey(k string) func(record.Kind) string {
	return func(record.Kind) string { return k }
}

// triggered reports whether key is in keys and carries a new value.
func triggered(rec *record.Record, key string, keys []string) bool {
	in := false
	for _, k := range keys {
		if k == key {
			in = true
			break
		}
	}
	if !in || rec.GetString(key) == "" {
		return false
	}
	return rec.Action == record.ActionAdded || rec.Changed(key)
}

func (p *Pipeline) checkConflicts(ctx context.Context, rec *record.Record, keys []string) error {
	for _, c := range conflictChecks {
		if !triggered(rec, c.key(rec.Kind), keys) {
			continue
		}
		if err := c.check(p, ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) checkNameUnique(ctx context.Context, rec *record.Record) error {
	key := record.NameKey(rec.Kind)
	name := rec.Name()

	if rec.Action == record.ActionEdited && rec.OriginalName() == "root" {
		return &accterr.FieldFormatError{Key: key, Value: name, Reason: accterr.ErrProtected.Error()}
	}

	acc, err := p.lookup.LookupAccountByName(ctx, rec.Kind, name)
	if err != nil {
		return &accterr.StorageCommitError{Err: fmt.Errorf("lookup %s %s: %w", rec.Kind, name, err)}
	}
	if acc != nil {
		return &accterr.FieldFormatError{Key: key, Value: name, Reason: accterr.ErrExist.Error()}
	}
	return nil
}

// checkIDBucket offers to reclassify local and system accounts whose id
// falls in the other type's range. LDAP and NIS ids are not bucketed.
func (p *Pipeline) checkIDBucket(_ context.Context, rec *record.Record) error {
	if rec.Type != record.TypeLocal && rec.Type != record.TypeSystem {
		return nil
	}
	key := record.NumberKey(rec.Kind)
	id := values.ToInt(rec.Get(key), -1)
	bucket, ok := p.cfg.Bucket(rec.Kind, id)
	if !ok || bucket == rec.Type {
		return nil
	}
	if rec.Type == record.TypeSystem && rec.OriginalName() == "root" {
		return &accterr.FieldFormatError{Key: key, Value: strconv.Itoa(id), Reason: accterr.ErrProtected.Error()}
	}

	q := ConflictQuestion{
		ID:      bucket.String(),
		Subject: strconv.Itoa(id),
		Key:     key,
		Text: fmt.Sprintf("The %s ID %d is in the range of %s %ss. Change the account type from %s to %s?",
			rec.Kind, id, bucket, rec.Kind, rec.Type, bucket),
	}
	if !p.ResolveConflict(q) {
		return &accterr.ConflictDeclinedError{QuestionID: q.ID, Subject: q.Subject, Key: key}
	}
	p.log.Info("Account type reclassified", "name", rec.Name(), "from", rec.Type, "to", bucket)
	return rec.SetType(bucket)
}

func (p *Pipeline) checkIDUnique(ctx context.Context, rec *record.Record) error {
	key := record.NumberKey(rec.Kind)
	id := values.ToInt(rec.Get(key), -1)
	acc, err := p.lookup.LookupAccountByNumericID(ctx, rec.Kind, id)
	if err != nil {
		return &accterr.StorageCommitError{Err: fmt.Errorf("lookup %s id %d: %w", rec.Kind, id, err)}
	}
	if acc == nil || acc.Name == rec.OriginalName() {
		return nil
	}
	return &accterr.FieldFormatError{
		Key:    key,
		Value:  strconv.Itoa(id),
		Reason: fmt.Sprintf("already used by %s %s", rec.Kind, acc.Name),
	}
}

func (p *Pipeline) checkPrimaryGroup(ctx context.Context, rec *record.Record) error {
	if rec.Kind != record.KindUser {
		return nil
	}
	return p.groupsExist(ctx, record.KeyGroupname, []string{rec.GetString(record.KeyGroupname)})
}

func (p *Pipeline) checkSecondaryGroups(ctx context.Context, rec *record.Record) error {
	if rec.Kind != record.KindUser {
		return nil
	}
	return p.groupsExist(ctx, record.KeyGrouplist, values.ToStringList(rec.Get(record.KeyGrouplist)))
}

func (p *Pipeline) groupsExist(ctx context.Context, key string, names []string) error {
	for _, name := range names {
		acc, err := p.lookup.LookupAccountByName(ctx, record.KindGroup, name)
		if err != nil {
			return &accterr.StorageCommitError{Err: fmt.Errorf("lookup group %s: %w", name, err)}
		}
		if acc == nil {
			return &accterr.FieldFormatError{Key: key, Value: name, Reason: "group does not exist"}
		}
	}
	return nil
}

func (p *Pipeline) checkMembers(ctx context.Context, rec *record.Record) error {
	if rec.Kind != record.KindGroup {
		return nil
	}
	for _, name := range values.ToStringList(rec.Get(record.KeyUserlist)) {
		acc, err := p.lookup.LookupAccountByName(ctx, record.KindUser, name)
		if err != nil {
			return &accterr.StorageCommitError{Err: fmt.Errorf("lookup user %s: %w", name, err)}
		}
		if acc == nil {
			return &accterr.FieldFormatError{Key: record.KeyUserlist, Value: name, Reason: "user does not exist"}
		}
	}
	return nil
}

// checkHome asks before taking over an existing directory that belongs to
// another uid. Accepting schedules an ownership change.
func (p *Pipeline) checkHome(ctx context.Context, rec *record.Record) error {
	if rec.Kind != record.KindUser {
		return nil
	}
	home := rec.GetString(record.KeyHome)
	owner, exists, err := p.lookup.CheckHomeExists(ctx, home)
	if err != nil {
		return &accterr.StorageCommitError{Err: fmt.Errorf("check home %s: %w", home, err)}
	}
	uid := values.ToInt(rec.Get(record.KeyUIDNumber), -1)
	if !exists || owner == uid {
		return p.dropChown(rec, exists)
	}

	q := ConflictQuestion{
		ID:      QuestionChown,
		Subject: home,
		Key:     record.KeyHome,
		Text: fmt.Sprintf("The directory %s already exists and belongs to uid %d. Use it and change its owner to %s?",
			home, owner, rec.Name()),
	}
	if !p.ResolveConflict(q) {
		return &accterr.ConflictDeclinedError{QuestionID: q.ID, Subject: q.Subject, Key: record.KeyHome}
	}
	if err := rec.Set(record.KeyChownHome, true); err != nil {
		return err
	}
	return rec.Set(record.KeyCreateHome, false)
}

// dropChown withdraws an ownership change accepted for an earlier home path.
// A home that does not exist goes back to the type's create_home default.
func (p *Pipeline) dropChown(rec *record.Record, exists bool) error {
	if !values.ToBool(rec.Get(record.KeyChownHome), false) {
		return nil
	}
	p.log.Debug("Home ownership change withdrawn", "home", rec.GetString(record.KeyHome))
	if err := rec.Set(record.KeyChownHome, false); err != nil {
		return err
	}
	return rec.Set(record.KeyCreateHome, !exists && p.cfg.For(rec.Type).CreateHome)
}

func (p *Pipeline) checkShell(ctx context.Context, rec *record.Record) error {
	if rec.Kind != record.KindUser {
		return nil
	}
	shell := rec.GetString(record.KeyShell)
	for _, known := range p.knownShells(ctx) {
		if known == shell {
			return nil
		}
	}

	q := ConflictQuestion{
		ID:      QuestionShell,
		Subject: shell,
		Key:     record.KeyShell,
		Text:    fmt.Sprintf("%s is not listed in %s. Use it anyway?", shell, p.cfg.General.ShellsFile),
	}
	if !p.ResolveConflict(q) {
		return &accterr.ConflictDeclinedError{QuestionID: q.ID, Subject: q.Subject, Key: record.KeyShell}
	}
	return nil
}

func (p *Pipeline) knownShells(ctx context.Context) []string {
	if p.shells != nil {
		return p.shells
	}
	shells, err := p.lookup.ListShells(ctx)
	if err != nil || len(shells) == 0 {
		p.log.Warn("Using fallback shell list", "error", err)
		shells = fallbackShells
	}
	p.shells = shells
	return shells
}
