// Package popup provides the operator-facing confirmation and message
// collaborators used by the validation pipeline and the session controller.
package popup

// Popup asks the operator yes/no questions and reports messages.
type Popup interface {
	Confirm(question string) bool
	Message(text string)
	Error(text string)
}

// Scripted answers every question with Answer and collects messages. It
// backs non-interactive runs (--yes / --no) and tests.
type Scripted struct {
	Answer bool
	// Inputs answers Ask by label. Unknown labels keep the current value
	// and succeed only when Answer is true.
	Inputs   map[string]string
	Asked    []string
	Messages []string
	Errors   []string
}

func (s *Scripted) Confirm(question string) bool {
	s.Asked = append(s.Asked, question)
	return s.Answer
}

func (s *Scripted) Message(text string) { s.Messages = append(s.Messages, text) }

func (s *Scripted) Error(text string) { s.Errors = append(s.Errors, text) }

func (s *Scripted) Ask(label, current string) (string, bool) {
	if v, ok := s.Inputs[label]; ok {
		return v, true
	}
	return current, s.Answer
}
