package plugin

import (
	"fmt"
	"strings"

	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/values"
	"golang.org/x/crypto/ssh"
)

const KeySSHPublicKey = "sshPublicKey"

// SSHKeys keeps the user's authorized public keys.
type SSHKeys struct{}

func (*SSHKeys) ID() string { return "sshkeys" }

func (*SSHKeys) Keys() []string { return []string{KeySSHPublicKey} }

func (*SSHKeys) Name(cfg Config) string {
	if cfg.Kind != record.KindUser {
		return ""
	}
	return "SSH Keys"
}

func (s *SSHKeys) Summary(cfg Config) string {
	if s.Name(cfg) == "" {
		return ""
	}
	return "Public keys allowed to log in as the user"
}

func (*SSHKeys) Check(_ Config, attrs map[string]any) error {
	for i, line := range keyLines(attrs[KeySSHPublicKey]) {
		if _, err := normalizeAuthorizedKey(line); err != nil {
			return fmt.Errorf("key %d: %w", i+1, err)
		}
	}
	return nil
}

// Dialog asks for one additional key; an empty answer keeps the list.
func (*SSHKeys) Dialog(cfg Config, rec *record.Record) Outcome {
	if cfg.UI == nil {
		return OutcomeCancelled
	}
	v, ok := cfg.UI.Ask("Add public key", "")
	if !ok {
		return OutcomeCancelled
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return OutcomeAccepted
	}
	keys := append(keyLines(rec.Get(KeySSHPublicKey)), v)
	if err := rec.Set(KeySSHPublicKey, keys); err != nil {
		return OutcomeCancelled
	}
	return OutcomeAccepted
}

func (*SSHKeys) Removable(Config, *record.Record) bool { return true }

func (*SSHKeys) Defaults(Config) map[string]any { return nil }

// Apply rewrites the keys in canonical authorized_keys form and drops
// duplicates.
func (*SSHKeys) Apply(_ Config, rec *record.Record) error {
	seen := map[string]bool{}
	var out []string
	for _, line := range keyLines(rec.Get(KeySSHPublicKey)) {
		norm, err := normalizeAuthorizedKey(line)
		if err != nil {
			return err
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return rec.Set(KeySSHPublicKey, out)
}

func keyLines(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return values.ToStringList(t)
	case string:
		var out []string
		for _, line := range strings.Split(t, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	return values.ToStringList(v)
}

func normalizeAuthorizedKey(line string) (string, error) {
	pub, comment, options, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return "", err
	}
	norm := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if len(options) > 0 {
		norm = strings.Join(options, ",") + " " + norm
	}
	if comment != "" {
		norm += " " + comment
	}
	return norm, nil
}
