package session

type EventKind int

const (
	EventNext EventKind = iota
	EventBack
	EventTab
	EventCancel
	EventAbort
)

func (k EventKind) String() string {
	switch k {
	case EventNext:
		return "next"
	case EventBack:
		return "back"
	case EventTab:
		return "tab"
	case EventCancel:
		return "cancel"
	case EventAbort:
		return "abort"
	}
	return "unknown"
}

// Event is a navigation request. Target is only used by EventTab.
type Event struct {
	Kind   EventKind
	Target State
}

func Next() Event { return Event{Kind: EventNext} }

func Back() Event { return Event{Kind: EventBack} }

func Tab(target State) Event { return Event{Kind: EventTab, Target: target} }

func Cancel() Event { return Event{Kind: EventCancel} }

func Abort() Event { return Event{Kind: EventAbort} }
