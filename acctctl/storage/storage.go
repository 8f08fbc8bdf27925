package storage

import (
	"context"

	"github.com/steelcutops/acctctl/acctctl/record"
)

// Account is a stored user or group as reported by the storage backend.
type Account struct {
	Kind       record.Kind
	Type       record.AccountType
	Name       string
	Number     int
	Attributes map[string]any
}

// Lookup answers the questions the validation pipeline and the defaults
// engine ask about existing accounts. Absent accounts are reported as
// (nil, nil).
type Lookup interface {
	LookupAccountByNumericID(ctx context.Context, kind record.Kind, id int) (*Account, error)
	LookupAccountByName(ctx context.Context, kind record.Kind, name string) (*Account, error)
	// CheckHomeExists returns the owner uid of path, or ok=false when the
	// path does not exist.
	CheckHomeExists(ctx context.Context, path string) (owner int, ok bool, err error)
	ListShells(ctx context.Context) ([]string, error)
}

// IDLister is implemented by stores that can report every numeric id in use
// with a single query. The id allocator prefers it over probing one id at a
// time.
type IDLister interface {
	UsedIDs(ctx context.Context, kind record.Kind) (map[int]bool, error)
}

// Store is the account storage collaborator. The core never writes
// accounts any other way.
type Store interface {
	Lookup
	CommitUser(ctx context.Context, rec *record.Record) error
	CommitGroup(ctx context.Context, rec *record.Record) error
	Delete(ctx context.Context, kind record.Kind, name string) error
	List(ctx context.Context, kind record.Kind) ([]Account, error)
}

// Commit dispatches rec to CommitUser or CommitGroup.
func Commit(ctx context.Context, s Store, rec *record.Record) error {
	if rec.Kind == record.KindGroup {
		return s.CommitGroup(ctx, rec)
	}
	return s.CommitUser(ctx, rec)
}
