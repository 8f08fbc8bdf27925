package record

// Core attribute names. They follow the posixAccount/shadowAccount/posixGroup
// attribute names so LDAP records need no translation.
const (
	KeyUID              = "uid"
	KeyUIDNumber        = "uidNumber"
	KeyGIDNumber        = "gidNumber"
	KeyGroupname        = "groupname"
	KeyGrouplist        = "grouplist"
	KeyCN               = "cn"
	KeyGivenName        = "givenName"
	KeySN               = "sn"
	KeyHome             = "homeDirectory"
	KeyShell            = "loginShell"
	KeyPassword         = "userPassword"
	KeyPasswordConfirm  = "userPasswordConfirm"
	KeyShadowLastChange = "shadowLastChange"
	KeyShadowMin        = "shadowMin"
	KeyShadowMax        = "shadowMax"
	KeyShadowWarning    = "shadowWarning"
	KeyShadowInactive   = "shadowInactive"
	KeyShadowExpire     = "shadowExpire"
	KeyHomeMode         = "home_mode"
	KeyCreateHome       = "create_home"
	KeyChownHome        = "chown_home"
	KeyUserlist         = "userlist"
	KeyDescription      = "description"
)

var userSchema = []string{
	KeyUID, KeyUIDNumber, KeyGIDNumber, KeyGroupname, KeyGrouplist, KeyCN,
	KeyHome, KeyShell, KeyPassword, KeyPasswordConfirm,
	KeyShadowLastChange, KeyShadowMin, KeyShadowMax, KeyShadowWarning,
	KeyShadowInactive, KeyShadowExpire,
	KeyHomeMode, KeyCreateHome, KeyChownHome,
}

var groupSchema = []string{
	KeyCN, KeyGIDNumber, KeyPassword, KeyPasswordConfirm, KeyUserlist,
}

// ldapExtras are only defined for directory accounts.
var ldapExtras = map[Kind][]string{
	KindUser:  {KeyGivenName, KeySN},
	KindGroup: {KeyDescription},
}

// transient keys drive validation but are never handed to storage.
var transient = map[string]bool{
	KeyPasswordConfirm: true,
}

// Schema returns the core attribute keys defined for kind and t.
func Schema(kind Kind, t AccountType) []string {
	base := userSchema
	if kind == KindGroup {
		base = groupSchema
	}
	keys := append([]string(nil), base...)
	if t == TypeLDAP {
		keys = append(keys, ldapExtras[kind]...)
	}
	return keys
}

// IsCoreKey reports whether key belongs to any core schema. Plugin keys must
// never satisfy it.
func IsCoreKey(key string) bool {
	for _, kind := range []Kind{KindUser, KindGroup} {
		for _, k := range Schema(kind, TypeLDAP) {
			if k == key {
				return true
			}
		}
	}
	return false
}

// IsTransient reports whether key is dropped before commit.
func IsTransient(key string) bool {
	return transient[key]
}

// NameKey returns the attribute that carries the account name.
func NameKey(kind Kind) string {
	if kind == KindGroup {
		return KeyCN
	}
	return KeyUID
}

// NumberKey returns the attribute that carries the numeric id.
func NumberKey(kind Kind) string {
	if kind == KindGroup {
		return KeyGIDNumber
	}
	return KeyUIDNumber
}
