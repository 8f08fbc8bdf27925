package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/plugin"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fakeStore struct {
	accounts  map[record.Kind]map[string]*storage.Account
	committed []map[string]any
	deleted   []string
}

func newFakeStore() *fakeStore {
	f := &fakeStore{accounts: map[record.Kind]map[string]*storage.Account{
		record.KindUser:  {},
		record.KindGroup: {},
	}}
	f.add(record.KindUser, record.TypeSystem, "root", 0, map[string]any{
		record.KeyHome:     "/root",
		record.KeyPassword: "$6$hash",
	})
	f.add(record.KindGroup, record.TypeSystem, "root", 0, nil)
	f.add(record.KindGroup, record.TypeSystem, "users", 100, nil)
	return f
}

func (f *fakeStore) add(kind record.Kind, t record.AccountType, name string, id int, attrs map[string]any) {
	all := map[string]any{
		record.NameKey(kind):   name,
		record.NumberKey(kind): values.ToString(id),
	}
	for k, v := range attrs {
		all[k] = v
	}
	f.accounts[kind][name] = &storage.Account{Kind: kind, Type: t, Name: name, Number: id, Attributes: all}
}

func (f *fakeStore) LookupAccountByNumericID(_ context.Context, kind record.Kind, id int) (*storage.Account, error) {
	for _, acc := range f.accounts[kind] {
		if acc.Number == id {
			return acc, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) LookupAccountByName(_ context.Context, kind record.Kind, name string) (*storage.Account, error) {
	return f.accounts[kind][name], nil
}

func (f *fakeStore) CheckHomeExists(context.Context, string) (int, bool, error) {
	return 0, false, nil
}

func (f *fakeStore) ListShells(context.Context) ([]string, error) {
	return []string{"/bin/bash", "/bin/sh"}, nil
}

func (f *fakeStore) commit(rec *record.Record) error {
	attrs := rec.Attributes()
	f.committed = append(f.committed, attrs)
	if old := rec.OriginalName(); old != "" {
		delete(f.accounts[rec.Kind], old)
	}
	f.add(rec.Kind, rec.Type, rec.Name(), values.ToInt(attrs[record.NumberKey(rec.Kind)], -1), attrs)
	return nil
}

func (f *fakeStore) CommitUser(_ context.Context, rec *record.Record) error  { return f.commit(rec) }
func (f *fakeStore) CommitGroup(_ context.Context, rec *record.Record) error { return f.commit(rec) }

func (f *fakeStore) Delete(_ context.Context, kind record.Kind, name string) error {
	delete(f.accounts[kind], name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeStore) List(_ context.Context, kind record.Kind) ([]storage.Account, error) {
	var out []storage.Account
	for _, name := range []string{"root", "users", "al", "staff"} {
		if acc, ok := f.accounts[kind][name]; ok {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func execute(t *testing.T, store *fakeStore, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	a.newStore = func(*app) (storage.Store, error) { return store, nil }
	t.Cleanup(a.close)

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestUserAdd(t *testing.T) {
	store := newFakeStore()
	out, _, err := execute(t, store, "Secret123\nSecret123\n",
		"user", "add", "al", "--full-name", "Al Smith", "--set-password", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "user al created\n", out)

	require.Len(t, store.committed, 1)
	attrs := store.committed[0]
	assert.Equal(t, "al", attrs[record.KeyUID])
	assert.Equal(t, "Al Smith", attrs[record.KeyCN])
	assert.Equal(t, "1000", attrs[record.KeyUIDNumber])
	assert.Equal(t, "/home/al", attrs[record.KeyHome])
	assert.Equal(t, "Secret123", attrs[record.KeyPassword])
}

func TestUserAddPasswordMismatch(t *testing.T) {
	store := newFakeStore()
	_, _, err := execute(t, store, "Secret123\nSecret124\n", "user", "add", "al", "--set-password", "--yes")

	var cfe *accterr.CrossFieldError
	require.ErrorAs(t, err, &cfe)
	assert.Empty(t, store.committed)
}

func TestUserAddRejectsAttributeOutsideSchema(t *testing.T) {
	store := newFakeStore()
	_, _, err := execute(t, store, "", "user", "add", "al", "--given-name", "Al", "--yes")
	assert.ErrorIs(t, err, accterr.ErrUnknownField)
	assert.Empty(t, store.committed)
}

func TestUserAddInvalidExpire(t *testing.T) {
	store := newFakeStore()
	_, _, err := execute(t, store, "", "user", "add", "al", "--expire", "2030-02-30", "--yes")

	var ffe *accterr.FieldFormatError
	require.ErrorAs(t, err, &ffe)
	assert.Equal(t, record.KeyShadowExpire, ffe.Key)
	assert.Empty(t, store.committed)

	_, _, err = execute(t, store, "", "user", "add", "al", "--expire", "2030-02-28", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "21973", store.committed[0][record.KeyShadowExpire])
}

func TestUserAddDeclinedQuestionFails(t *testing.T) {
	store := newFakeStore()
	_, stderr, err := execute(t, store, "n\n", "user", "add", "al", "--uid-number", "200")

	var cde *accterr.ConflictDeclinedError
	require.ErrorAs(t, err, &cde)
	assert.Contains(t, stderr, "Change the account type from local to system? [y/N]: ")
	assert.NotContains(t, stderr, "Error:", "errors are printed once by main")
	assert.Empty(t, store.committed)
}

func TestGroupAddWithPluginAttribute(t *testing.T) {
	store := newFakeStore()
	_, _, err := execute(t, store, "", "group", "add", "staff",
		"--plugin-attr", plugin.KeyQuotaBlocksHard+"=4096", "--yes")
	require.NoError(t, err)

	require.Len(t, store.committed, 1)
	attrs := store.committed[0]
	assert.Equal(t, []string{"quota"}, attrs["plugins"])
	assert.Equal(t, "4096", attrs[plugin.KeyQuotaBlocksHard])
	assert.Equal(t, "1000", attrs[record.KeyGIDNumber])
}

func TestGroupAddUnknownPlugin(t *testing.T) {
	store := newFakeStore()
	_, _, err := execute(t, store, "", "group", "add", "staff", "--plugin", "nope", "--yes")
	assert.ErrorIs(t, err, accterr.ErrUnknownPlugin)

	_, _, err = execute(t, store, "", "group", "add", "staff", "--plugin-attr", "nope=1", "--yes")
	assert.ErrorIs(t, err, accterr.ErrUnknownField)
	assert.Empty(t, store.committed)
}

func TestUserEditRename(t *testing.T) {
	store := newFakeStore()
	store.add(record.KindUser, record.TypeLocal, "al", 1000, map[string]any{
		record.KeyGroupname: "users",
		record.KeyGIDNumber: "100",
		record.KeyHome:      "/home/al",
		record.KeyShell:     "/bin/bash",
	})

	out, _, err := execute(t, store, "", "user", "edit", "al", "--rename", "bob", "--shell", "/bin/sh", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "user al updated\n", out)

	require.Len(t, store.committed, 1)
	assert.Equal(t, "bob", store.committed[0][record.KeyUID])
	assert.Equal(t, "/bin/sh", store.committed[0][record.KeyShell])
	assert.Contains(t, store.accounts[record.KindUser], "bob")
}

func TestUserEditUnknown(t *testing.T) {
	_, _, err := execute(t, newFakeStore(), "", "user", "edit", "ghost", "--yes")
	assert.ErrorIs(t, err, accterr.ErrNotFound)
}

func TestUserDeleteCollectsErrors(t *testing.T) {
	store := newFakeStore()
	store.add(record.KindUser, record.TypeLocal, "al", 1000, nil)

	out, _, err := execute(t, store, "", "user", "delete", "al", "root", "ghost", "--yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, accterr.ErrProtected)
	assert.ErrorIs(t, err, accterr.ErrNotFound)
	assert.Equal(t, "user al deleted\n", out)
	assert.Equal(t, []string{"al"}, store.deleted)
}

func TestUserDeleteDeclined(t *testing.T) {
	store := newFakeStore()
	store.add(record.KindUser, record.TypeLocal, "al", 1000, nil)

	_, stderr, err := execute(t, store, "n\n", "user", "delete", "al")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Delete user al? [y/N]: ")
	assert.Empty(t, store.deleted)
}

func TestUserShowYAML(t *testing.T) {
	out, _, err := execute(t, newFakeStore(), "", "user", "show", "root", "-o", "yaml")
	require.NoError(t, err)

	var acc accountOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &acc))
	assert.Equal(t, "root", acc.Name)
	assert.Equal(t, "system", acc.Type)
	assert.Equal(t, 0, acc.Number)
	assert.Equal(t, "/root", acc.Attributes[record.KeyHome])
	assert.NotContains(t, acc.Attributes, record.KeyPassword)
}

func TestUserShowText(t *testing.T) {
	out, _, err := execute(t, newFakeStore(), "", "user", "show", "root")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "user root (system, 0)\n"))
	assert.Contains(t, out, "homeDirectory:")
}

func TestGroupListJSON(t *testing.T) {
	store := newFakeStore()
	store.add(record.KindGroup, record.TypeLocal, "staff", 1000, nil)

	out, _, err := execute(t, store, "", "group", "list", "--type", "system", "-o", "json")
	require.NoError(t, err)

	var accounts []accountOutput
	require.NoError(t, json.Unmarshal([]byte(out), &accounts))
	require.Len(t, accounts, 2)
	assert.Equal(t, "root", accounts[0].Name)
	assert.Equal(t, "users", accounts[1].Name)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, _, err := execute(t, newFakeStore(), "", "group", "list", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestConfigFileApplies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acctctl.ini")
	require.NoError(t, os.WriteFile(path, []byte("[local]\nhome_prefix = /srv/home\n"), 0o600))

	store := newFakeStore()
	_, _, err := execute(t, store, "", "--config", path, "user", "add", "al", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "/srv/home/al", store.committed[0][record.KeyHome])
}

func TestPluginsCommand(t *testing.T) {
	out, _, err := execute(t, nil, "", "plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "quota\t")
	assert.Contains(t, out, "sshkeys\t")
}
