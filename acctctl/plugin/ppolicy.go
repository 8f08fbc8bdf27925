package plugin

import (
	"fmt"
	"strings"

	"github.com/steelcutops/acctctl/acctctl/record"
)

const KeyPwdPolicySubentry = "pwdPolicySubentry"

// PasswordPolicy assigns an LDAP password policy entry to directory users.
type PasswordPolicy struct{}

func (*PasswordPolicy) ID() string { return "ppolicy" }

func (*PasswordPolicy) Keys() []string { return []string{KeyPwdPolicySubentry} }

func (*PasswordPolicy) Name(cfg Config) string {
	if cfg.Kind != record.KindUser || cfg.Type != record.TypeLDAP {
		return ""
	}
	return "Password Policy"
}

func (p *PasswordPolicy) Summary(cfg Config) string {
	if p.Name(cfg) == "" {
		return ""
	}
	return "DN of the password policy applied to the user"
}

func (*PasswordPolicy) Check(_ Config, attrs map[string]any) error {
	dn, _ := attrs[KeyPwdPolicySubentry].(string)
	if dn == "" {
		return nil
	}
	if _, err := normalizeDN(dn); err != nil {
		return err
	}
	return nil
}

func (*PasswordPolicy) Dialog(cfg Config, rec *record.Record) Outcome {
	if cfg.UI == nil {
		return OutcomeCancelled
	}
	v, ok := cfg.UI.Ask("Password policy DN", rec.GetString(KeyPwdPolicySubentry))
	if !ok {
		return OutcomeCancelled
	}
	if err := rec.Set(KeyPwdPolicySubentry, v); err != nil {
		return OutcomeCancelled
	}
	return OutcomeAccepted
}

func (*PasswordPolicy) Removable(Config, *record.Record) bool { return true }

func (*PasswordPolicy) Defaults(Config) map[string]any {
	return map[string]any{KeyPwdPolicySubentry: ""}
}

func (*PasswordPolicy) Apply(_ Config, rec *record.Record) error {
	dn := rec.GetString(KeyPwdPolicySubentry)
	if dn == "" {
		return nil
	}
	norm, err := normalizeDN(dn)
	if err != nil {
		return err
	}
	return rec.Set(KeyPwdPolicySubentry, norm)
}

// normalizeDN trims the blanks around each attribute=value pair.
func normalizeDN(dn string) (string, error) {
	parts := strings.Split(dn, ",")
	for i, part := range parts {
		attr, value, ok := strings.Cut(part, "=")
		attr, value = strings.TrimSpace(attr), strings.TrimSpace(value)
		if !ok || attr == "" || value == "" {
			return "", fmt.Errorf("%q is not a valid DN", dn)
		}
		parts[i] = attr + "=" + value
	}
	return strings.Join(parts, ","), nil
}
