package plugin

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/popup"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newManager(ui Prompter) *Manager {
	return NewManager(DefaultRegistry(), ui, logger.Discard())
}

type keyPlugin struct {
	SSHKeys
	id   string
	keys []string
}

func (k *keyPlugin) ID() string     { return k.id }
func (k *keyPlugin) Keys() []string { return k.keys }

func TestRegistryRejectsCollisions(t *testing.T) {
	r := DefaultRegistry()

	err := r.Register(&Quota{})
	assert.ErrorContains(t, err, "already registered")

	err = r.Register(&keyPlugin{id: "shell", keys: []string{record.KeyShell}})
	assert.ErrorContains(t, err, "core schema")

	err = r.Register(&keyPlugin{id: "dup", keys: []string{KeyQuotaBlocksHard}})
	assert.ErrorContains(t, err, "plugin quota")

	owner, ok := r.Owner(KeySSHPublicKey)
	assert.True(t, ok)
	assert.Equal(t, "sshkeys", owner)

	_, err = r.Get("nope")
	assert.True(t, errors.Is(err, accterr.ErrUnknownPlugin))
}

func TestListApplicable(t *testing.T) {
	m := newManager(nil)

	ids := func(refs []Ref) []string {
		var out []string
		for _, r := range refs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{"quota"}, ids(m.ListApplicable(record.New(record.KindGroup, record.TypeLocal))))
	assert.Equal(t, []string{"quota", "sshkeys"}, ids(m.ListApplicable(record.New(record.KindUser, record.TypeLocal))))
	assert.Equal(t, []string{"ppolicy", "quota", "sshkeys"}, ids(m.ListApplicable(record.New(record.KindUser, record.TypeLDAP))))

	rec := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, m.Attach(rec, "quota"))
	refs := m.ListApplicable(rec)
	assert.True(t, refs[0].Attached)
	assert.False(t, refs[1].Attached)
}

func TestAttachStagesDefaults(t *testing.T) {
	m := newManager(nil)
	rec := record.New(record.KindGroup, record.TypeLocal)

	require.NoError(t, m.Attach(rec, "quota"))
	assert.Equal(t, []string{"quota"}, rec.Plugins())
	assert.Equal(t, "0", rec.GetString(KeyQuotaBlocksSoft))
	assert.NoError(t, rec.Set(KeyQuotaInodesHard, "10"))
	assert.NoError(t, m.Attach(rec, "quota"), "attaching twice is a no-op")
	assert.Equal(t, "10", rec.GetString(KeyQuotaInodesHard))
}

func TestAttachFailureLeavesRecordUnchanged(t *testing.T) {
	m := newManager(nil)
	rec := record.FromStored(record.KindUser, record.TypeLocal, map[string]any{
		record.KeyUID:      "al",
		KeyQuotaBlocksSoft: "10",
		KeyQuotaBlocksHard: "5",
	})
	require.NoError(t, rec.Set(record.KeyShell, "/bin/zsh"))
	before := rec.Attributes()

	err := m.Attach(rec, "quota")
	var pce *accterr.PluginCheckError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, "quota", pce.Plugin)
	assert.Empty(t, rec.Plugins())
	assert.Equal(t, before, rec.Attributes())
	assert.Equal(t, []string{record.KeyShell}, rec.StagedKeys())
}

func TestAttachNotApplicable(t *testing.T) {
	m := newManager(nil)
	rec := record.New(record.KindGroup, record.TypeLocal)
	err := m.Attach(rec, "sshkeys")
	var pce *accterr.PluginCheckError
	assert.ErrorAs(t, err, &pce)
	assert.Empty(t, rec.Plugins())
}

func TestDetachQuotaInUse(t *testing.T) {
	m := newManager(nil)
	rec := record.New(record.KindGroup, record.TypeLocal)
	require.NoError(t, rec.Set(record.KeyCN, "staff"))
	require.NoError(t, m.Attach(rec, "quota"))
	require.NoError(t, rec.Set(KeyQuotaBlocksHard, "2048"))

	err := m.Detach(rec, "quota")
	var pce *accterr.PluginCheckError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, []string{"quota"}, rec.Plugins())
	assert.Equal(t, "2048", rec.GetString(KeyQuotaBlocksHard))

	require.NoError(t, rec.Set(KeyQuotaBlocksHard, "0"))
	require.NoError(t, m.Detach(rec, "quota"))
	assert.Empty(t, rec.Plugins())
	assert.Nil(t, rec.Get(KeyQuotaBlocksHard))

	err = m.Detach(rec, "quota")
	assert.True(t, errors.Is(err, accterr.ErrPluginNotAdded))
}

func TestInvokeCancelRollsBackAutoAttach(t *testing.T) {
	ui := &popup.Scripted{Inputs: map[string]string{"Soft block limit": "100"}}
	m := newManager(ui)
	rec := record.New(record.KindUser, record.TypeLocal)

	outcome, err := m.Invoke(rec, "quota")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Empty(t, rec.Plugins())
	assert.Empty(t, rec.StagedKeys())
}

func TestInvokeAccepted(t *testing.T) {
	ui := &popup.Scripted{Answer: true, Inputs: map[string]string{
		"Soft block limit": "100",
		"Hard block limit": "200",
	}}
	m := newManager(ui)
	rec := record.New(record.KindUser, record.TypeLocal)

	outcome, err := m.Invoke(rec, "quota")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, []string{"quota"}, rec.Plugins())
	assert.Equal(t, "200", rec.GetString(KeyQuotaBlocksHard))
	assert.Equal(t, "0", rec.GetString(KeyQuotaInodesSoft))
}

func TestInvokeRejectedResultRollsBack(t *testing.T) {
	ui := &popup.Scripted{Answer: true, Inputs: map[string]string{
		"Soft block limit": "300",
		"Hard block limit": "200",
	}}
	m := newManager(ui)
	rec := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, m.Attach(rec, "quota"))

	outcome, err := m.Invoke(rec, "quota")
	var pce *accterr.PluginCheckError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, []string{"quota"}, rec.Plugins())
	assert.Equal(t, "0", rec.GetString(KeyQuotaBlocksSoft))
}

func TestRestoreStoredPlugins(t *testing.T) {
	m := newManager(nil)
	rec := record.FromStored(record.KindUser, record.TypeLocal, map[string]any{
		record.KeyUID:      "al",
		"plugins":          []string{"quota"},
		KeyQuotaBlocksHard: "50",
	})
	require.NoError(t, m.Restore(rec))
	assert.True(t, rec.HasPlugin("quota"))
	assert.False(t, rec.Modified())
	assert.False(t, m.Detach(rec, "quota") == nil)

	bad := record.FromStored(record.KindUser, record.TypeLocal, map[string]any{"plugins": []string{"mail"}})
	assert.True(t, errors.Is(m.Restore(bad), accterr.ErrUnknownPlugin))
}

func TestCheckAllAndApplyAll(t *testing.T) {
	m := newManager(nil)
	rec := record.New(record.KindUser, record.TypeLDAP)
	require.NoError(t, m.Attach(rec, "quota"))
	require.NoError(t, m.Attach(rec, "ppolicy"))
	require.NoError(t, rec.Set(KeyQuotaBlocksSoft, "9"))
	require.NoError(t, rec.Set(KeyQuotaBlocksHard, "3"))
	require.NoError(t, rec.Set(KeyPwdPolicySubentry, "default"))

	err := m.CheckAll(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin ppolicy")
	assert.Contains(t, err.Error(), "plugin quota")

	require.NoError(t, rec.Set(KeyQuotaBlocksHard, " 30 "))
	require.NoError(t, rec.Set(KeyPwdPolicySubentry, "cn = default , ou=policies,dc=example,dc=org"))
	require.NoError(t, m.CheckAll(rec))
	require.NoError(t, m.ApplyAll(rec))
	assert.Equal(t, "30", rec.GetString(KeyQuotaBlocksHard))
	assert.Equal(t, "cn=default,ou=policies,dc=example,dc=org", rec.GetString(KeyPwdPolicySubentry))
}

func testAuthorizedKey(t *testing.T, comment string) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " " + comment
}

func TestSSHKeys(t *testing.T) {
	m := newManager(nil)
	rec := record.New(record.KindUser, record.TypeLocal)
	require.NoError(t, m.Attach(rec, "sshkeys"))

	key := testAuthorizedKey(t, "al@laptop")
	require.NoError(t, rec.Set(KeySSHPublicKey, []string{key, "  " + key + "  ", "not a key"}))
	err := m.CheckAll(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key 3")

	require.NoError(t, rec.Set(KeySSHPublicKey, key+"\n"+key+"\n"))
	require.NoError(t, m.CheckAll(rec))
	require.NoError(t, m.ApplyAll(rec))
	assert.Equal(t, []string{key}, rec.Get(KeySSHPublicKey))
}

func TestSSHKeysDialogAppends(t *testing.T) {
	key := testAuthorizedKey(t, "ops")
	ui := &popup.Scripted{Inputs: map[string]string{"Add public key": key}}
	m := newManager(ui)
	rec := record.New(record.KindUser, record.TypeLocal)

	outcome, err := m.Invoke(rec, "sshkeys")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, []string{key}, rec.Get(KeySSHPublicKey))
}
