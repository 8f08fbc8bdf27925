package defaults

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/steelcutops/acctctl/acctctl/record"
)

var placeholder = regexp.MustCompile(`%([A-Za-z][A-Za-z0-9_]*)`)

// SubstituteTemplate replaces %name placeholders with lookup(name). A
// placeholder whose value is empty is kept verbatim.
func SubstituteTemplate(tmpl string, lookup func(key string) string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v := lookup(m[1:]); v != "" {
			return v
		}
		return m
	})
}

// GenerateHome returns the default home directory of rec: the type's prefix
// followed by the user name. LDAP accounts use the configured directory
// template instead of the bare name when one is set.
func (e *Engine) GenerateHome(rec *record.Record) string {
	name := rec.Name()
	if name == "" {
		return ""
	}
	d := e.cfg.For(rec.Type)
	tail := name
	if rec.Type == record.TypeLDAP && e.cfg.General.LDAPHomeTemplate != "" {
		tail = SubstituteTemplate(e.cfg.General.LDAPHomeTemplate, rec.GetString)
	}
	return d.HomePrefix + strings.TrimPrefix(tail, "/")
}

// HomeMode returns the permission bits of a new home directory for umask,
// that is 777 minus the umask, as three octal digits.
func HomeMode(umask string) (string, error) {
	umask = strings.TrimSpace(umask)
	if umask == "" {
		umask = "022"
	}
	u, err := strconv.ParseUint(umask, 8, 32)
	if err != nil || u > 0o777 {
		return "", fmt.Errorf("invalid umask %q", umask)
	}
	return fmt.Sprintf("%03o", 0o777&^u), nil
}
