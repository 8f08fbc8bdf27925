package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/plugin"
	"github.com/steelcutops/acctctl/acctctl/popup"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/target"
	"github.com/steelcutops/acctctl/logger"
)

// app carries what the subcommands share once the persistent flags are
// parsed.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	v      *viper.Viper

	cfg      *config.Config
	log      logger.Logger
	store    storage.Store
	registry *plugin.Registry
	terminal *popup.Terminal

	// newStore builds the storage backend. Tests replace it.
	newStore func(a *app) (storage.Store, error)
	logFile  *os.File
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{
		in:       in,
		out:      out,
		errOut:   errOut,
		v:        viper.New(),
		registry: plugin.DefaultRegistry(),
		newStore: targetStore,
	}
	a.terminal = popup.NewTerminal(in, errOut)
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "acctctl",
		Short: "Add, edit and delete users and groups on local or remote hosts",
		Long: `acctctl edits user and group accounts through the same validated
sections an interactive editor walks through: names and passwords, account
details, password aging and plugin attributes.

Accounts are stored with the standard shadow tools (useradd, usermod,
groupadd, chpasswd, ...) on the local machine or on a remote host over SSH.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to INI file with account defaults")
	flags.String("host", "", "Host to manage; empty means the local machine")
	flags.String("ssh-user", "", "Username to use for SSH connection")
	flags.Bool("password", false, "Prompt for the SSH password")
	flags.Bool("keypass", false, "Prompt for the passphrase decrypting SSH keys")
	flags.Bool("sudo", false, "Run account tools through sudo")
	flags.Bool("sudo-password", false, "Prompt for the sudo password")
	flags.Bool("debug", false, "Enable debug log level")
	flags.String("log", "", "Log file name; logs go to stderr when empty")
	flags.BoolP("yes", "y", false, "Answer yes to every question")
	flags.StringP("output", "o", "text", "Output format: text, json or yaml")

	a.v.SetEnvPrefix("ACCTCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		newAccountCmd(a, record.KindUser),
		newAccountCmd(a, record.KindGroup),
		newPluginsCmd(a),
	)
	return root
}

// setup loads the configuration and opens the logger and the store.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	switch a.v.GetString("output") {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", a.v.GetString("output"))
	}

	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg

	var w io.Writer = a.errOut
	if name := a.v.GetString("log"); name != "" {
		f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = f
		w = f
	}
	a.log = logger.NewWithOutput(w, a.v.GetBool("debug")).With("command", cmd.CommandPath())

	if cmd.Annotations["store"] == "none" {
		return nil
	}
	store, err := a.newStore(a)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// targetStore connects to --host with the credentials asked for on the
// command line.
func targetStore(a *app) (storage.Store, error) {
	options := []target.TargetOption{
		target.WithConfig(a.cfg),
		target.WithLogger(a.log),
		target.WithSudo(a.v.GetBool("sudo")),
	}
	if user := a.v.GetString("ssh-user"); user != "" {
		options = append(options, target.WithUser(user))
	}

	prompts := []struct {
		flag   string
		prompt string
		option func(string) target.TargetOption
	}{
		{"password", "Enter SSH password: ", target.WithPassword},
		{"keypass", "Enter passphrase for SSH key: ", target.WithKeyPassphrase},
		{"sudo-password", "Enter sudo password: ", target.WithSudoPassword},
	}
	for _, p := range prompts {
		if !a.v.GetBool(p.flag) {
			continue
		}
		secret, err := a.terminal.ReadSecret(p.prompt)
		if err != nil {
			return nil, err
		}
		options = append(options, p.option(secret))
	}

	t := target.NewTarget(a.v.GetString("host"), options...)
	a.log.Debug("Target ready", "host", t.Hostname, "local", t.IsLocal(), "sudo", t.Sudo)
	return t.Store, nil
}

// sessionPopup answers the questions asked while a session validates.
// With --yes every question is accepted without prompting.
func (a *app) sessionPopup() popup.Popup {
	if a.v.GetBool("yes") {
		return &popup.Scripted{Answer: true}
	}
	return terminalPopup{a.terminal}
}

// terminalPopup leaves error output to main so each failure prints once.
type terminalPopup struct {
	*popup.Terminal
}

func (terminalPopup) Error(string) {}
