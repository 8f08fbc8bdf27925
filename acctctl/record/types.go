package record

import (
	"fmt"
	"strings"
)

// Kind selects between user and group records.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
)

func (k Kind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "user"
}

// ParseKind accepts "user" or "group".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return KindUser, nil
	case "group":
		return KindGroup, nil
	}
	return KindUser, fmt.Errorf("unknown account kind: %q", s)
}

// AccountType is the storage bucket an account belongs to. It selects the
// schema, the ID ranges and the default values that apply.
type AccountType int

const (
	TypeLocal AccountType = iota
	TypeSystem
	TypeLDAP
	TypeNIS
)

// AllTypes lists every account type in display order.
var AllTypes = []AccountType{TypeLocal, TypeSystem, TypeLDAP, TypeNIS}

var typeNames = map[AccountType]string{
	TypeLocal:  "local",
	TypeSystem: "system",
	TypeLDAP:   "ldap",
	TypeNIS:    "nis",
}

func (t AccountType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AccountType(%d)", int(t))
}

// ParseAccountType maps local, system, ldap or nis to an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeLocal, fmt.Errorf("unknown account type: %q", s)
}

// Set implements pflag.Value so the type can be bound to a --type flag.
func (t *AccountType) Set(s string) error {
	parsed, err := ParseAccountType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *AccountType) Type() string { return "type" }

// Action tells whether the record is being added or edited.
type Action int

const (
	ActionAdded Action = iota
	ActionEdited
)

func (a Action) String() string {
	if a == ActionEdited {
		return "edited"
	}
	return "added"
}
