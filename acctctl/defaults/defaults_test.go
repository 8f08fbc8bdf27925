package defaults

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	users  map[int]string
	groups map[int]string
	err    error
}

func (f *fakeLookup) table(kind record.Kind) map[int]string {
	if kind == record.KindGroup {
		return f.groups
	}
	return f.users
}

func (f *fakeLookup) LookupAccountByNumericID(_ context.Context, kind record.Kind, id int) (*storage.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	if name, ok := f.table(kind)[id]; ok {
		return &storage.Account{Kind: kind, Name: name, Number: id}, nil
	}
	return nil, nil
}

func (f *fakeLookup) LookupAccountByName(_ context.Context, kind record.Kind, name string) (*storage.Account, error) {
	for id, n := range f.table(kind) {
		if n == name {
			return &storage.Account{Kind: kind, Name: n, Number: id}, nil
		}
	}
	return nil, nil
}

func (f *fakeLookup) CheckHomeExists(context.Context, string) (int, bool, error) { return 0, false, nil }

func (f *fakeLookup) ListShells(context.Context) ([]string, error) { return nil, nil }

func newLookup() *fakeLookup {
	return &fakeLookup{
		users:  map[int]string{0: "root", 1000: "bob"},
		groups: map[int]string{100: "users", 1000: "staff", 10: "wheel"},
	}
}

func TestShadowDateRoundTrip(t *testing.T) {
	start := time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() < 2100; d = d.AddDate(0, 0, 97) {
		cal := d.Format(DateLayout)
		days, err := CalendarToDays(cal)
		require.NoError(t, err, cal)
		assert.Equal(t, cal, DaysToCalendar(days))
	}
}

func TestShadowDateSentinels(t *testing.T) {
	for _, in := range []string{"", "0", "-1", "garbage"} {
		assert.Equal(t, "", DaysToCalendar(in), in)
	}

	days, err := CalendarToDays("")
	assert.NoError(t, err)
	assert.Equal(t, "", days)

	days, err = CalendarToDays("1970-01-02")
	require.NoError(t, err)
	assert.Equal(t, "1", days)
}

func TestCalendarToDaysRejectsInvalidDates(t *testing.T) {
	for _, in := range []string{"2030-02-30", "2030-13-01", "30-01-2030", "2030/01/01", "1970-01-01", "1969-12-31"} {
		_, err := CalendarToDays(in)
		assert.True(t, errors.Is(err, ErrBadDate), in)
	}
}

func TestHomeMode(t *testing.T) {
	mode, err := HomeMode("022")
	require.NoError(t, err)
	assert.Equal(t, "755", mode)

	mode, err = HomeMode("077")
	require.NoError(t, err)
	assert.Equal(t, "700", mode)

	_, err = HomeMode("999")
	assert.Error(t, err)
}

func TestSubstituteTemplate(t *testing.T) {
	vals := map[string]string{"uid": "al", "sn": "Lovelace"}
	got := SubstituteTemplate("%sn/%uid/%missing", func(k string) string { return vals[k] })
	assert.Equal(t, "Lovelace/al/%missing", got)
}

func TestApplyAddLocalUser(t *testing.T) {
	e := New(config.Default(), newLookup())
	e.Now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	rec := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, rec.Set(record.KeyUID, "al"))
	require.NoError(t, rec.Set(record.KeyPassword, "Secret123"))

	require.NoError(t, e.Apply(context.Background(), rec))

	assert.Equal(t, "/home/al", rec.GetString(record.KeyHome))
	assert.Equal(t, "/bin/bash", rec.GetString(record.KeyShell))
	assert.Equal(t, "users", rec.GetString(record.KeyGroupname))
	assert.Equal(t, "100", rec.GetString(record.KeyGIDNumber))
	assert.Equal(t, "1001", rec.GetString(record.KeyUIDNumber), "1000 is taken by bob")
	assert.Equal(t, "755", rec.GetString(record.KeyHomeMode))
	assert.Equal(t, true, rec.Get(record.KeyCreateHome))
	assert.Equal(t, "20745", rec.GetString(record.KeyShadowLastChange))
}

func TestHomeFollowsRenameUntilCustomized(t *testing.T) {
	e := New(config.Default(), newLookup())
	ctx := context.Background()

	rec := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, rec.Set(record.KeyUID, "al"))
	require.NoError(t, e.Apply(ctx, rec))
	assert.Equal(t, "/home/al", rec.GetString(record.KeyHome))

	require.NoError(t, rec.Set(record.KeyUID, "ada"))
	require.NoError(t, e.Apply(ctx, rec))
	assert.Equal(t, "/home/ada", rec.GetString(record.KeyHome))

	require.NoError(t, rec.Set(record.KeyHome, "/srv/ada"))
	require.NoError(t, rec.Set(record.KeyUID, "lovelace"))
	require.NoError(t, e.Apply(ctx, rec))
	assert.Equal(t, "/srv/ada", rec.GetString(record.KeyHome))
}

func TestTrackEditedHome(t *testing.T) {
	e := New(config.Default(), newLookup())
	rec := record.FromStored(record.KindUser, record.TypeLocal, map[string]any{
		record.KeyUID:       "al",
		record.KeyUIDNumber: "1500",
		record.KeyHome:      "/home/al",
		record.KeyGroupname: "users",
		record.KeyGIDNumber: "100",
		record.KeyShell:     "/bin/bash",
	})
	e.Track(rec)

	require.NoError(t, rec.Set(record.KeyUID, "ada"))
	require.NoError(t, e.Apply(context.Background(), rec))
	assert.Equal(t, "/home/ada", rec.GetString(record.KeyHome))

	custom := record.FromStored(record.KindUser, record.TypeLocal, map[string]any{
		record.KeyUID:  "al",
		record.KeyHome: "/data/al",
	})
	e2 := New(config.Default(), newLookup())
	e2.Track(custom)
	require.NoError(t, custom.Set(record.KeyUID, "ada"))
	require.NoError(t, e2.Apply(context.Background(), custom))
	assert.Equal(t, "/data/al", custom.GetString(record.KeyHome))
}

func TestLDAPHomeTemplateAndNames(t *testing.T) {
	cfg := config.Default()
	cfg.General.LDAPHomeTemplate = "%sn/%uid"
	e := New(cfg, newLookup())

	rec := record.New(record.KindUser, record.TypeLDAP)
	require.NoError(t, rec.Set(record.KeyUID, "al"))
	require.NoError(t, rec.Set(record.KeyCN, "Ada King Lovelace"))
	require.NoError(t, e.Apply(context.Background(), rec))

	assert.Equal(t, "Ada King", rec.GetString(record.KeyGivenName))
	assert.Equal(t, "Lovelace", rec.GetString(record.KeySN))
	// sn is derived after the home, so the first pass keeps the placeholder
	// and the next one resolves it.
	require.NoError(t, e.Apply(context.Background(), rec))
	assert.Equal(t, "/home/Lovelace/al", rec.GetString(record.KeyHome))
}

func TestResolvePrimaryGroupByName(t *testing.T) {
	e := New(config.Default(), newLookup())
	rec := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, rec.Set(record.KeyUID, "al"))
	require.NoError(t, rec.Set(record.KeyGroupname, "staff"))
	require.NoError(t, e.Apply(context.Background(), rec))
	assert.Equal(t, "1000", rec.GetString(record.KeyGIDNumber))

	byGID := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, byGID.Set(record.KeyUID, "bo"))
	require.NoError(t, byGID.Set(record.KeyGIDNumber, "10"))
	require.NoError(t, e.Apply(context.Background(), byGID))
	assert.Equal(t, "wheel", byGID.GetString(record.KeyGroupname))
}

func TestAllocatorSkipsSessionAllocations(t *testing.T) {
	a := NewAllocator(newLookup())
	d := config.Default().For(record.TypeLocal)
	ctx := context.Background()

	first, err := a.Next(ctx, record.KindUser, record.TypeLocal, d)
	require.NoError(t, err)
	second, err := a.Next(ctx, record.KindUser, record.TypeLocal, d)
	require.NoError(t, err)

	assert.Equal(t, 1001, first)
	assert.Equal(t, 1002, second)
}

func TestAllocatorExhausted(t *testing.T) {
	lookup := &fakeLookup{users: map[int]string{5: "a", 6: "b"}}
	a := NewAllocator(lookup)
	_, err := a.Next(context.Background(), record.KindUser, record.TypeLocal, config.TypeDefaults{UIDMin: 5, UIDMax: 6})
	assert.True(t, errors.Is(err, accterr.ErrIDsExhausted))
}

func TestAllocatorLookupError(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("getent failed")}
	a := NewAllocator(lookup)
	_, err := a.Next(context.Background(), record.KindGroup, record.TypeLocal, config.Default().For(record.TypeLocal))
	assert.ErrorContains(t, err, "getent failed")
}

func TestApplyGroupAllocatesGID(t *testing.T) {
	e := New(config.Default(), newLookup())
	rec := record.New(record.KindGroup, record.TypeLocal)
	require.NoError(t, rec.Set(record.KeyCN, "devs"))
	require.NoError(t, e.Apply(context.Background(), rec))
	assert.Equal(t, "1001", rec.GetString(record.KeyGIDNumber))
}

func TestApplyStoresExpireAsDays(t *testing.T) {
	e := New(config.Default(), newLookup())
	rec := record.FromStored(record.KindUser, record.TypeLocal, map[string]any{
		record.KeyUID:       "bob",
		record.KeyUIDNumber: "1000",
		record.KeyGroupname: "users",
		record.KeyGIDNumber: "100",
		record.KeyHome:      "/home/bob",
		record.KeyShell:     "/bin/bash",
	})
	require.NoError(t, rec.Set(record.KeyShadowExpire, "2030-01-01"))
	require.NoError(t, e.Apply(context.Background(), rec))
	assert.Equal(t, "21915", rec.GetString(record.KeyShadowExpire))

	require.NoError(t, e.Apply(context.Background(), rec))
	assert.Equal(t, "21915", rec.GetString(record.KeyShadowExpire))
}

func TestAllocatorSystemRangeSkipsReservedIDs(t *testing.T) {
	a := NewAllocator(newLookup())
	id, err := a.Next(context.Background(), record.KindUser, record.TypeSystem, config.Default().For(record.TypeSystem))
	require.NoError(t, err)
	assert.Equal(t, 100, id)
}

// listingLookup answers UsedIDs from the fake tables and fails any per-id
// lookup.
type listingLookup struct {
	*fakeLookup
	listed int
}

func (l *listingLookup) UsedIDs(_ context.Context, kind record.Kind) (map[int]bool, error) {
	l.listed++
	used := map[int]bool{}
	for id := range l.table(kind) {
		used[id] = true
	}
	return used, nil
}

func (l *listingLookup) LookupAccountByNumericID(context.Context, record.Kind, int) (*storage.Account, error) {
	return nil, errors.New("looked up a single id")
}

func TestAllocatorListsIDsOnce(t *testing.T) {
	lookup := &listingLookup{fakeLookup: &fakeLookup{users: map[int]string{1000: "bob", 1001: "al", 1002: "eve"}}}
	a := NewAllocator(lookup)

	id, err := a.Next(context.Background(), record.KindUser, record.TypeLocal, config.Default().For(record.TypeLocal))
	require.NoError(t, err)
	assert.Equal(t, 1003, id)
	assert.Equal(t, 1, lookup.listed)
}
