package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/defaults"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/values"
)

const (
	maxNameLength = 32
	maxID         = 1<<32 - 2
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*\$?$`)
	modePattern = regexp.MustCompile(`^[0-7]{3,4}$`)
)

// Validator performs format-level checks. It holds configuration only and
// never mutates anything, so repeated calls give identical results.
type Validator struct {
	cfg *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg}
}

type fieldRule func(v *Validator, value any) string

var userRules = map[string]fieldRule{
	record.KeyUID:              checkName,
	record.KeyGroupname:        checkOptionalName,
	record.KeyGrouplist:        checkNameList,
	record.KeyCN:               checkGECOS,
	record.KeyGivenName:        checkGECOS,
	record.KeySN:               checkGECOS,
	record.KeyUIDNumber:        checkID,
	record.KeyGIDNumber:        checkID,
	record.KeyHome:             checkPath,
	record.KeyShell:            checkPath,
	record.KeyPassword:         checkPassword,
	record.KeyShadowLastChange: checkDays,
	record.KeyShadowMin:        checkDays,
	record.KeyShadowMax:        checkDays,
	record.KeyShadowWarning:    checkDays,
	record.KeyShadowInactive:   checkDays,
	record.KeyShadowExpire:     checkExpire,
	record.KeyHomeMode:         checkMode,
	record.KeyCreateHome:       checkBool,
	record.KeyChownHome:        checkBool,
}

var groupRules = map[string]fieldRule{
	record.KeyCN:          checkName,
	record.KeyGIDNumber:   checkID,
	record.KeyPassword:    checkPassword,
	record.KeyUserlist:    checkNameList,
	record.KeyDescription: checkSingleLine,
}

// ValidateField checks the format of one attribute value. Keys without a
// rule, such as plugin attributes, always pass.
func (v *Validator) ValidateField(kind record.Kind, key string, value any) error {
	rules := userRules
	if kind == record.KindGroup {
		rules = groupRules
	}
	rule, ok := rules[key]
	if !ok {
		return nil
	}
	if reason := rule(v, value); reason != "" {
		return &accterr.FieldFormatError{Key: key, Value: displayValue(key, value), Reason: reason}
	}
	return nil
}

func displayValue(key string, value any) string {
	if key == record.KeyPassword || key == record.KeyPasswordConfirm {
		return ""
	}
	return values.ToString(value)
}

func checkName(_ *Validator, value any) string {
	s := values.ToString(value)
	switch {
	case s == "":
		return "name is required"
	case len(s) > maxNameLength:
		return fmt.Sprintf("name is longer than %d characters", maxNameLength)
	case !namePattern.MatchString(s):
		return "name may contain only letters, digits, '_', '.', '-' and must not start with a digit, '.' or '-'"
	}
	return ""
}

func checkOptionalName(v *Validator, value any) string {
	if values.ToString(value) == "" {
		return ""
	}
	return checkName(v, value)
}

func checkNameList(v *Validator, value any) string {
	for _, item := range values.ToStringList(value) {
		if reason := checkName(v, item); reason != "" {
			return fmt.Sprintf("%s: %s", item, reason)
		}
	}
	return ""
}

func checkGECOS(_ *Validator, value any) string {
	if strings.ContainsAny(values.ToString(value), ":,\n") {
		return "must not contain ':', ',' or line breaks"
	}
	return ""
}

func checkSingleLine(_ *Validator, value any) string {
	if strings.ContainsAny(values.ToString(value), "\n") {
		return "must not contain line breaks"
	}
	return ""
}

func checkID(_ *Validator, value any) string {
	s := values.ToString(value)
	if s == "" {
		return ""
	}
	if !values.IsInt(s) {
		return "must be a number"
	}
	if n := values.ToInt(s, -1); n < 0 || n > maxID {
		return fmt.Sprintf("must be between 0 and %d", maxID)
	}
	return ""
}

func checkPath(_ *Validator, value any) string {
	s := values.ToString(value)
	switch {
	case s == "":
		return ""
	case !strings.HasPrefix(s, "/"):
		return "must be an absolute path"
	case strings.ContainsAny(s, ":\n"):
		return "must not contain ':' or line breaks"
	}
	return ""
}

func checkPassword(v *Validator, value any) string {
	s := values.ToString(value)
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return "may contain only printable ASCII characters"
		}
	}
	g := v.cfg.General
	if g.MinPasswordLength > 0 && len(s) < g.MinPasswordLength {
		return fmt.Sprintf("must be at least %d characters long", g.MinPasswordLength)
	}
	if g.MaxPasswordLength > 0 && len(s) > g.MaxPasswordLength {
		return fmt.Sprintf("must be at most %d characters long", g.MaxPasswordLength)
	}
	return ""
}

func checkDays(_ *Validator, value any) string {
	s := values.ToString(value)
	if s == "" {
		return ""
	}
	if !values.IsInt(s) || values.ToInt(s, -2) < -1 {
		return "must be a number of days, or -1"
	}
	return ""
}

// checkExpire accepts the calendar form or a stored day count.
func checkExpire(_ *Validator, value any) string {
	s := values.ToString(value)
	if s == "" || values.IsInt(s) && values.ToInt(s, -2) >= -1 {
		return ""
	}
	if _, err := defaults.CalendarToDays(s); err != nil {
		return defaults.ErrBadDate.Error()
	}
	return ""
}

func checkMode(_ *Validator, value any) string {
	s := values.ToString(value)
	if s != "" && !modePattern.MatchString(s) {
		return "must be an octal permission mode such as 755"
	}
	return ""
}

func checkBool(_ *Validator, value any) string {
	switch t := value.(type) {
	case nil, bool:
		return ""
	case string:
		if t == "" || values.ToBool(t, false) == values.ToBool(t, true) {
			return ""
		}
	}
	return "must be yes or no"
}
