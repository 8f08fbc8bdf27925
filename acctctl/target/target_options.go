package target

import (
	"github.com/steelcutops/acctctl/acctctl/commandmanager"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/logger"
)

type TargetOption func(*Target)

// WithUser returns a TargetOption that sets the SSH user.
func WithUser(user string) TargetOption {
	return func(t *Target) {
		t.User = user
	}
}

// WithPassword returns a TargetOption that sets the SSH password.
func WithPassword(password string) TargetOption {
	return func(t *Target) {
		t.Password = password
	}
}

// WithKeyPassphrase returns a TargetOption that sets the private key passphrase.
func WithKeyPassphrase(keyPassphrase string) TargetOption {
	return func(t *Target) {
		t.KeyPassphrase = keyPassphrase
	}
}

// WithSudoPassword returns a TargetOption that sets the sudo password.
func WithSudoPassword(password string) TargetOption {
	return func(t *Target) {
		t.SudoPassword = password
	}
}

func WithSudo(sudo bool) TargetOption {
	return func(t *Target) {
		t.Sudo = sudo
	}
}

func WithConfig(cfg *config.Config) TargetOption {
	return func(t *Target) {
		t.Config = cfg
	}
}

func WithLogger(log logger.Logger) TargetOption {
	return func(t *Target) {
		t.Logger = log
	}
}

func WithSSHClient(dialer commandmanager.SSHDialer) TargetOption {
	return func(t *Target) {
		t.SSHClient = dialer
	}
}

// WithCommandManager replaces the SSH/local command manager.
func WithCommandManager(m commandmanager.CommandManager) TargetOption {
	return func(t *Target) {
		t.CommandManager = m
	}
}
