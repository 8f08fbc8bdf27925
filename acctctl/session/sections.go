package session

import (
	"github.com/steelcutops/acctctl/acctctl/record"
)

// State is either a wizard section or one of the terminal states.
type State int

const (
	StateEdit State = iota
	StateDetails
	StatePassword
	StatePlugins
	StateData
	StateCommitting
	StateCancelled
	StateCommitted
)

var stateNames = map[State]string{
	StateEdit:       "edit",
	StateDetails:    "details",
	StatePassword:   "password",
	StatePlugins:    "plugins",
	StateData:       "data",
	StateCommitting: "committing",
	StateCancelled:  "cancelled",
	StateCommitted:  "committed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Section is one page of the edit wizard and the attributes it owns.
type Section struct {
	ID      State
	Ordinal int
	Title   string
	Keys    []string
}

var userSections = []Section{
	{ID: StateEdit, Title: "Edit User Data", Keys: []string{
		record.KeyCN, record.KeyGivenName, record.KeySN, record.KeyUID,
		record.KeyPassword, record.KeyPasswordConfirm,
	}},
	{ID: StateDetails, Title: "Details", Keys: []string{
		record.KeyUIDNumber, record.KeyHome, record.KeyHomeMode, record.KeyCreateHome,
		record.KeyChownHome, record.KeyShell, record.KeyGroupname, record.KeyGIDNumber,
		record.KeyGrouplist,
	}},
	{ID: StatePassword, Title: "Password Settings", Keys: []string{
		record.KeyShadowLastChange, record.KeyShadowMin, record.KeyShadowMax,
		record.KeyShadowWarning, record.KeyShadowInactive, record.KeyShadowExpire,
	}},
	{ID: StatePlugins, Title: "Plug-Ins"},
}

var groupSections = []Section{
	{ID: StateData, Title: "Edit Group Data", Keys: []string{
		record.KeyCN, record.KeyGIDNumber, record.KeyDescription,
		record.KeyPassword, record.KeyPasswordConfirm, record.KeyUserlist,
	}},
	{ID: StatePlugins, Title: "Plug-Ins"},
}

// Sections returns the wizard pages for kind in navigation order.
func Sections(kind record.Kind) []Section {
	src := userSections
	if kind == record.KindGroup {
		src = groupSections
	}
	out := make([]Section, len(src))
	for i, sec := range src {
		sec.Ordinal = i
		sec.Keys = append([]string(nil), sec.Keys...)
		out[i] = sec
	}
	return out
}
