package defaults

import (
	"context"
	"fmt"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
)

type allocKey struct {
	kind record.Kind
	typ  record.AccountType
}

// Allocator hands out free numeric ids. It remembers the last id it gave
// out per kind and type, so ids reserved earlier in the same session are not
// offered twice before they reach storage.
type Allocator struct {
	lookup storage.Lookup
	last   map[allocKey]int
}

func NewAllocator(lookup storage.Lookup) *Allocator {
	return &Allocator{lookup: lookup, last: map[allocKey]int{}}
}

// Next returns the lowest free id of the type's range, searching upwards from
// the last allocated id and wrapping around once.
func (a *Allocator) Next(ctx context.Context, kind record.Kind, t record.AccountType, d config.TypeDefaults) (int, error) {
	lo, hi := d.UIDMin, d.UIDMax
	if kind == record.KindGroup {
		lo, hi = d.GIDMin, d.GIDMax
	}

	key := allocKey{kind, t}
	start := lo
	if last, ok := a.last[key]; ok && last >= lo && last < hi {
		start = last + 1
	}

	inUse, err := a.inUse(ctx, kind)
	if err != nil {
		return 0, err
	}
	try := func(from, to int) (int, bool, error) {
		for id := from; id <= to; id++ {
			used, err := inUse(id)
			if err != nil {
				return 0, false, fmt.Errorf("lookup %s %d: %w", kind, id, err)
			}
			if !used {
				return id, true, nil
			}
		}
		return 0, false, nil
	}

	id, ok, err := try(start, hi)
	if err == nil && !ok && start > lo {
		id, ok, err = try(lo, start-1)
	}
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s %s %d-%d", accterr.ErrIDsExhausted, t, kind, lo, hi)
	}
	a.last[key] = id
	return id, nil
}

// inUse returns a predicate over ids. Stores that list their ids are asked
// once; others are looked up id by id.
func (a *Allocator) inUse(ctx context.Context, kind record.Kind) (func(int) (bool, error), error) {
	if lister, ok := a.lookup.(storage.IDLister); ok {
		used, err := lister.UsedIDs(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s ids: %w", kind, err)
		}
		return func(id int) (bool, error) { return used[id], nil }, nil
	}
	return func(id int) (bool, error) {
		acc, err := a.lookup.LookupAccountByNumericID(ctx, kind, id)
		return acc != nil, err
	}, nil
}

// Reset forgets every allocation.
func (a *Allocator) Reset() {
	a.last = map[allocKey]int{}
}
