package accterr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("account does not exist")
	ErrExist          = errors.New("account already exists")
	ErrUnknownField   = errors.New("attribute is not defined for this account")
	ErrUnknownPlugin  = errors.New("unknown plugin")
	ErrNotOwned       = errors.New("attribute is not owned by the active section")
	ErrNoSection      = errors.New("section is not part of this wizard")
	ErrSessionClosed  = errors.New("edit session is closed")
	ErrProtected      = errors.New("account is protected")
	ErrIDsExhausted   = errors.New("no free numeric id left in range")
	ErrPluginNotAdded = errors.New("plugin is not attached")
)

// FieldFormatError reports a single attribute whose value is malformed.
type FieldFormatError struct {
	Key    string
	Value  string
	Reason string
}

func (e *FieldFormatError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Key, e.Value, e.Reason)
}

func (e *FieldFormatError) Field() string { return e.Key }

// CrossFieldError reports an inconsistency between several attributes.
// Keys[0] receives focus.
type CrossFieldError struct {
	Keys   []string
	Reason string
}

func (e *CrossFieldError) Error() string { return e.Reason }

func (e *CrossFieldError) Field() string {
	if len(e.Keys) == 0 {
		return ""
	}
	return e.Keys[0]
}

// ConflictDeclinedError is returned when the operator refuses the resolution
// proposed for a conflict.
type ConflictDeclinedError struct {
	QuestionID string
	Subject    string
	Key        string
}

func (e *ConflictDeclinedError) Error() string {
	return fmt.Sprintf("conflict %q for %q was declined", e.QuestionID, e.Subject)
}

func (e *ConflictDeclinedError) Field() string { return e.Key }

// PluginCheckError is returned when a plugin rejects an attribute set or
// refuses to be detached.
type PluginCheckError struct {
	Plugin string
	Reason string
}

func (e *PluginCheckError) Error() string {
	return fmt.Sprintf("plugin %s: %s", e.Plugin, e.Reason)
}

// StorageCommitError wraps any failure reported by the storage collaborator.
type StorageCommitError struct {
	Err error
}

func (e *StorageCommitError) Error() string { return e.Err.Error() }

func (e *StorageCommitError) Unwrap() error { return e.Err }

type focuser interface {
	Field() string
}

// FocusOf returns the attribute that should receive input focus for err, or
// an empty string when err does not point at a field.
func FocusOf(err error) string {
	var f focuser
	if errors.As(err, &f) {
		return f.Field()
	}
	return ""
}

// Recoverable reports whether err belongs to the session error taxonomy. The
// session stays alive for every one of them.
func Recoverable(err error) bool {
	var (
		ff *FieldFormatError
		cf *CrossFieldError
		cd *ConflictDeclinedError
		pc *PluginCheckError
		sc *StorageCommitError
	)
	return errors.As(err, &ff) || errors.As(err, &cf) || errors.As(err, &cd) ||
		errors.As(err, &pc) || errors.As(err, &sc)
}
