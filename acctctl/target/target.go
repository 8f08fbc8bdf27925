// Package target binds a hostname and credentials to the command, file and
// account managers operating on it.
package target

import (
	"github.com/steelcutops/acctctl/acctctl/commandmanager"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/filemanager"
	"github.com/steelcutops/acctctl/acctctl/usermanager"
	"github.com/steelcutops/acctctl/common"
	"github.com/steelcutops/acctctl/logger"
)

type Target struct {
	Hostname string
	common.Credentials
	// Sudo runs the account tools through sudo. Implied by a sudo password.
	Sudo bool

	Config *config.Config
	Logger logger.Logger

	SSHClient      commandmanager.SSHDialer
	CommandManager commandmanager.CommandManager
	FileManager    filemanager.FileManager
	Store          *usermanager.LinuxUserManager
}

// NewTarget wires the managers for hostname. An empty hostname means the
// local machine.
func NewTarget(hostname string, options ...TargetOption) *Target {
	if hostname == "" {
		hostname = "localhost"
	}
	t := &Target{Hostname: hostname}
	for _, option := range options {
		option(t)
	}

	if t.Config == nil {
		t.Config = config.Default()
	}
	if t.Logger == nil {
		t.Logger = logger.Discard()
	}
	if t.NeedsSudo() {
		t.Sudo = true
	}
	if t.SSHClient == nil {
		t.SSHClient = commandmanager.TCPDialer{}
	}
	if t.CommandManager == nil {
		t.CommandManager = &commandmanager.UnixCommandManager{
			Hostname:    hostname,
			SSHClient:   t.SSHClient,
			Logger:      t.Logger.With("host", hostname),
			Credentials: t.Credentials,
		}
	}

	t.FileManager = filemanager.NewFileManager(t.CommandManager, t.Sudo)
	t.Store = usermanager.NewLinuxUserManager(t.CommandManager, t.Config, t.Logger.With("host", hostname), t.Sudo)
	t.Store.Files = t.FileManager
	return t
}

// IsLocal reports whether commands run on this machine.
func (t *Target) IsLocal() bool {
	return t.Hostname == "localhost" || t.Hostname == "127.0.0.1"
}
