package validation

import (
	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/values"
)

type crossRule struct {
	kind  record.Kind
	keys  []string
	check func(rec *record.Record) error
}

var crossRules = []crossRule{
	{record.KindUser, []string{record.KeyPassword, record.KeyPasswordConfirm}, passwordsMatch},
	{record.KindGroup, []string{record.KeyPassword, record.KeyPasswordConfirm}, passwordsMatch},
	{record.KindUser, []string{record.KeyCN, record.KeySN}, ldapNames},
	{record.KindUser, []string{record.KeyShadowMin, record.KeyShadowMax}, agingOrder},
	{record.KindUser, []string{record.KeyShadowWarning, record.KeyShadowMax}, warningWithinMax},
}

// passwordsMatch requires the confirmation to repeat a changed password
// exactly.
func passwordsMatch(rec *record.Record) error {
	_, confirmStaged := rec.Staged(record.KeyPasswordConfirm)
	if !rec.Changed(record.KeyPassword) && !confirmStaged {
		return nil
	}
	if rec.GetString(record.KeyPassword) != rec.GetString(record.KeyPasswordConfirm) {
		return &accterr.CrossFieldError{
			Keys:   []string{record.KeyPassword, record.KeyPasswordConfirm},
			Reason: "the passwords do not match",
		}
	}
	return nil
}

// ldapNames requires directory users to carry a cn and a surname, either
// given or derivable from the cn.
func ldapNames(rec *record.Record) error {
	if rec.Type != record.TypeLDAP {
		return nil
	}
	cn := rec.GetString(record.KeyCN)
	if cn == "" {
		return &accterr.CrossFieldError{Keys: []string{record.KeyCN}, Reason: "LDAP users need a full name (cn)"}
	}
	if rec.GetString(record.KeySN) != "" {
		return nil
	}
	if _, sn := values.SplitFullName(cn); sn == "" {
		return &accterr.CrossFieldError{Keys: []string{record.KeySN, record.KeyCN}, Reason: "LDAP users need a surname (sn)"}
	}
	return nil
}

func agingOrder(rec *record.Record) error {
	minDays := values.ToInt(rec.Get(record.KeyShadowMin), -1)
	maxDays := values.ToInt(rec.Get(record.KeyShadowMax), -1)
	if minDays >= 0 && maxDays >= 0 && minDays > maxDays {
		return &accterr.CrossFieldError{
			Keys:   []string{record.KeyShadowMin, record.KeyShadowMax},
			Reason: "the minimum password age exceeds the maximum",
		}
	}
	return nil
}

func warningWithinMax(rec *record.Record) error {
	warn := values.ToInt(rec.Get(record.KeyShadowWarning), -1)
	maxDays := values.ToInt(rec.Get(record.KeyShadowMax), -1)
	if warn >= 0 && maxDays >= 0 && warn > maxDays {
		return &accterr.CrossFieldError{
			Keys:   []string{record.KeyShadowWarning, record.KeyShadowMax},
			Reason: "the warning period is longer than the maximum password age",
		}
	}
	return nil
}

// ValidateCrossField checks every relationship between attributes of rec and
// returns the first violation.
func ValidateCrossField(rec *record.Record) error {
	return crossCheck(rec, nil)
}

// crossCheck runs the rules touching any of keys, or all rules when keys is nil.
func crossCheck(rec *record.Record, keys []string) error {
	for _, rule := range crossRules {
		if rule.kind != rec.Kind || (keys != nil && !overlaps(rule.keys, keys)) {
			continue
		}
		if err := rule.check(rec); err != nil {
			return err
		}
	}
	return nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
