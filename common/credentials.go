// Package common holds types shared by the transport layers.
package common

// Credentials are used to reach a target host over SSH and to run
// privileged commands through sudo.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}

// NeedsSudo reports whether privileged commands must go through sudo.
func (c Credentials) NeedsSudo() bool {
	return c.SudoPassword != ""
}
