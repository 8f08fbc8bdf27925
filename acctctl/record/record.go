package record

import (
	"fmt"
	"sort"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/values"
)

// Record is the user or group being added or edited. Staged changes live in
// fields; a key missing from fields means "unchanged from original".
type Record struct {
	Kind   Kind
	Type   AccountType
	Action Action

	fields   *Fields
	original map[string]any
	plugins  map[string][]string // attached plugin id -> keys it contributes
}

// New starts a record for an Add operation.
func New(kind Kind, t AccountType) *Record {
	return &Record{
		Kind:     kind,
		Type:     t,
		Action:   ActionAdded,
		fields:   NewFields(),
		original: map[string]any{},
		plugins:  map[string][]string{},
	}
}

// FromStored starts a record for an Edit operation on a stored account.
// original is copied and never modified afterwards.
func FromStored(kind Kind, t AccountType, original map[string]any) *Record {
	r := New(kind, t)
	r.Action = ActionEdited
	for k, v := range original {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		r.original[k] = v
	}
	return r
}

// Allows reports whether key may be staged on this record: it is either in
// the core schema for the record's kind and type or contributed by an
// attached plugin.
func (r *Record) Allows(key string) bool {
	for _, k := range Schema(r.Kind, r.Type) {
		if k == key {
			return true
		}
	}
	return r.PluginOf(key) != ""
}

// PluginOf returns the attached plugin that owns key.
func (r *Record) PluginOf(key string) string {
	for id, keys := range r.plugins {
		for _, k := range keys {
			if k == key {
				return id
			}
		}
	}
	return ""
}

// Set stages value for key.
func (r *Record) Set(key string, value any) error {
	if !r.Allows(key) {
		return fmt.Errorf("%w: %s (%s %s)", accterr.ErrUnknownField, key, r.Type, r.Kind)
	}
	r.fields.Set(key, value)
	return nil
}

// Unset drops a staged value so the original applies again.
func (r *Record) Unset(key string) {
	r.fields.Delete(key)
}

// Get returns the effective value of key: the staged one when present,
// otherwise the original.
func (r *Record) Get(key string) any {
	if v, ok := r.fields.Get(key); ok {
		return v
	}
	return r.original[key]
}

// GetString is Get rendered as a string.
func (r *Record) GetString(key string) string {
	return values.ToString(r.Get(key))
}

// Staged returns the staged value of key, if any.
func (r *Record) Staged(key string) (any, bool) {
	return r.fields.Get(key)
}

// Original returns the stored value of key.
func (r *Record) Original(key string) any {
	return r.original[key]
}

// Changed reports whether the effective value of key differs from the stored one.
func (r *Record) Changed(key string) bool {
	v, ok := r.fields.Get(key)
	if !ok {
		return false
	}
	orig, had := r.original[key]
	if !had {
		return values.ToString(v) != "" || values.ToBool(v, false)
	}
	return !values.Equal(v, orig)
}

// Modified reports whether any staged value or plugin attachment differs
// from the stored account.
func (r *Record) Modified() bool {
	for _, k := range r.fields.Keys() {
		if r.Changed(k) {
			return true
		}
	}
	stored := values.ToStringList(r.original[keyPlugins])
	return !sameSet(stored, r.Plugins())
}

// StagedKeys returns the keys with a staged value, in staging order.
func (r *Record) StagedKeys() []string {
	return r.fields.Keys()
}

// Name returns the account name.
func (r *Record) Name() string {
	return r.GetString(NameKey(r.Kind))
}

// OriginalName returns the stored account name, empty for Add.
func (r *Record) OriginalName() string {
	return values.ToString(r.original[NameKey(r.Kind)])
}

// SetType moves the record to another account type. Staged keys that the
// new schema does not define make the change fail.
func (r *Record) SetType(t AccountType) error {
	prev := r.Type
	r.Type = t
	for _, k := range r.fields.Keys() {
		if !r.Allows(k) {
			r.Type = prev
			return fmt.Errorf("%w: %s is not defined for %s accounts", accterr.ErrUnknownField, k, t)
		}
	}
	return nil
}

// keyPlugins is the stored attribute listing attached plugins.
const keyPlugins = "plugins"

// Plugins returns the ids of attached plugins, sorted.
func (r *Record) Plugins() []string {
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StoredPlugins returns the plugin ids recorded on the stored account.
func (r *Record) StoredPlugins() []string {
	return values.ToStringList(r.original[keyPlugins])
}

func (r *Record) HasPlugin(id string) bool {
	_, ok := r.plugins[id]
	return ok
}

// AttachPlugin marks id attached and allows its keys on the record.
func (r *Record) AttachPlugin(id string, keys []string) {
	r.plugins[id] = append([]string(nil), keys...)
}

// DetachPlugin removes id and every staged value it contributed.
func (r *Record) DetachPlugin(id string) {
	for _, k := range r.plugins[id] {
		r.fields.Delete(k)
	}
	delete(r.plugins, id)
}

// PluginKeys returns the keys contributed by id.
func (r *Record) PluginKeys(id string) []string {
	return append([]string(nil), r.plugins[id]...)
}

// PluginAttributes returns the effective values of the keys contributed by id.
func (r *Record) PluginAttributes(id string) map[string]any {
	out := map[string]any{}
	for _, k := range r.plugins[id] {
		if v := r.Get(k); v != nil {
			out[k] = v
		}
	}
	return out
}

// Attributes returns the attribute set handed to storage: the original
// values overlaid with staged ones, without transient keys.
func (r *Record) Attributes() map[string]any {
	out := make(map[string]any, len(r.original)+r.fields.Len())
	for k, v := range r.original {
		out[k] = v
	}
	for k, v := range r.fields.Map() {
		out[k] = v
	}
	for k := range out {
		if IsTransient(k) {
			delete(out, k)
		}
	}
	if len(r.plugins) > 0 {
		out[keyPlugins] = r.Plugins()
	} else {
		delete(out, keyPlugins)
	}
	return out
}

// Clone returns a deep copy used to roll back failed operations.
func (r *Record) Clone() *Record {
	c := &Record{
		Kind:     r.Kind,
		Type:     r.Type,
		Action:   r.Action,
		fields:   r.fields.Clone(),
		original: r.original,
		plugins:  make(map[string][]string, len(r.plugins)),
	}
	for id, keys := range r.plugins {
		c.plugins[id] = append([]string(nil), keys...)
	}
	return c
}

// Restore makes r identical to snapshot, which must come from r.Clone.
func (r *Record) Restore(snapshot *Record) {
	restored := snapshot.Clone()
	*r = *restored
}

// Clear drops all staged state. Used once the record has been committed or
// the session discarded.
func (r *Record) Clear() {
	r.fields = NewFields()
	r.plugins = map[string][]string{}
}

func sameSet(a, b []string) bool {
	a, b = values.Uniq(a), values.Uniq(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
