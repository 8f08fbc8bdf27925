package session

import (
	"context"
	"fmt"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
)

// Delete removes a stored account outside of an edit session. The root
// user and group are refused.
func Delete(ctx context.Context, store storage.Store, kind record.Kind, name string) error {
	if name == "root" {
		return fmt.Errorf("%w: %s %s", accterr.ErrProtected, kind, name)
	}
	acc, err := store.LookupAccountByName(ctx, kind, name)
	if err != nil {
		return &accterr.StorageCommitError{Err: fmt.Errorf("lookup %s %s: %w", kind, name, err)}
	}
	if acc == nil {
		return fmt.Errorf("%w: %s %s", accterr.ErrNotFound, kind, name)
	}
	if err := store.Delete(ctx, kind, name); err != nil {
		return &accterr.StorageCommitError{Err: err}
	}
	return nil
}
