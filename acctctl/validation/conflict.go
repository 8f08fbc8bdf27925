package validation

import (
	"github.com/steelcutops/acctctl/acctctl/popup"
)

// Question identifiers.
const (
	QuestionChown  = "chown"
	QuestionLocal  = "local"
	QuestionSystem = "system"
	QuestionShell  = "shell"
)

// ConflictQuestion is a yes/no decision the operator has to make before a
// value can be accepted.
type ConflictQuestion struct {
	ID      string
	Subject string
	// Key is the attribute that receives focus when the answer is no.
	Key  string
	Text string
}

// UIMap memoizes answers per question id and subject value for the lifetime
// of one edit session.
type UIMap map[string]map[string]bool

func (m UIMap) Lookup(id, subject string) (answer, ok bool) {
	answer, ok = m[id][subject]
	return answer, ok
}

func (m UIMap) Store(id, subject string, answer bool) {
	if m[id] == nil {
		m[id] = map[string]bool{}
	}
	m[id][subject] = answer
}

// Clear forgets every answer.
func (m UIMap) Clear() {
	for id := range m {
		delete(m, id)
	}
}

// Resolver asks conflict questions at most once per (id, subject) pair.
type Resolver struct {
	popup popup.Popup
	uiMap UIMap
}

// NewResolver asks p. A nil p declines every question.
func NewResolver(p popup.Popup) *Resolver {
	if p == nil {
		p = &popup.Scripted{}
	}
	return &Resolver{popup: p, uiMap: UIMap{}}
}

// ResolveConflict returns the operator's decision on q, prompting only when
// the same question has not been answered for the same subject before.
func (r *Resolver) ResolveConflict(q ConflictQuestion) bool {
	if answer, ok := r.uiMap.Lookup(q.ID, q.Subject); ok {
		return answer
	}
	answer := r.popup.Confirm(q.Text)
	r.uiMap.Store(q.ID, q.Subject, answer)
	return answer
}

// Reset clears the memoized answers.
func (r *Resolver) Reset() {
	r.uiMap.Clear()
}
