package commandmanager

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/steelcutops/acctctl/common"
	"github.com/steelcutops/acctctl/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultDialTimeout = 30 * time.Second

type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// TCPDialer opens plain SSH connections.
type TCPDialer struct{}

func (TCPDialer) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	cfg := *config
	cfg.Timeout = timeout
	return ssh.Dial(network, addr, &cfg)
}

type UnixCommandManager struct {
	Hostname  string
	SSHClient SSHDialer
	// KeyManager overrides the agent/file key selection.
	KeyManager SSHKeyManager
	// HostKeyCallback defaults to ~/.ssh/known_hosts.
	HostKeyCallback ssh.HostKeyCallback
	Logger          logger.Logger
	common.Credentials
}

func (u *UnixCommandManager) log() logger.Logger {
	if u.Logger == nil {
		return logger.Discard()
	}
	return u.Logger
}

func (u *UnixCommandManager) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	stdin := config.Stdin
	if config.Sudo {
		cmdArgs := append([]string{"-S", "-p", "", config.Command}, config.Args...)
		cmd = exec.CommandContext(ctx, "sudo", cmdArgs...)
		stdin = u.SudoPassword + "\n" + stdin
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Command:   config.Command,
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}
	if err := sudoError(result); err != nil {
		return result, err
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A non-zero exit is reported through ExitCode.
		return result, nil
	}
	return result, err
}

// getSSHConfig builds the client configuration. release frees whatever the
// key manager holds for the signers and must run once the client is done.
func (u *UnixCommandManager) getSSHConfig() (*ssh.ClientConfig, func(), error) {
	var authMethod ssh.AuthMethod
	release := func() {}

	if u.Password != "" {
		u.log().Debug("Using password authentication", "hostname", u.Hostname)
		authMethod = ssh.Password(u.Password)
	} else {
		u.log().Debug("Using public key authentication", "hostname", u.Hostname)
		keyManager := u.KeyManager
		if keyManager == nil {
			if u.KeyPassphrase != "" {
				keyManager = FileSSHKeyManager{}
			} else {
				keyManager = &AgentSSHKeyManager{}
			}
		}

		keys, err := keyManager.ReadPrivateKeys(u.KeyPassphrase)
		if err != nil {
			return nil, nil, err
		}
		if c, ok := keyManager.(io.Closer); ok {
			release = func() {
				if err := c.Close(); err != nil {
					u.log().Debug("Closing SSH key manager failed", "hostname", u.Hostname, "error", err)
				}
			}
		}
		authMethod = ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			return keys, nil
		})
	}

	return &ssh.ClientConfig{
		User:            u.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: u.hostKeyCallback(),
	}, release, nil
}

func (u *UnixCommandManager) hostKeyCallback() ssh.HostKeyCallback {
	if u.HostKeyCallback != nil {
		return u.HostKeyCallback
	}
	path := filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts")
	cb, err := knownhosts.New(path)
	if err != nil {
		u.log().Warn("Host key verification disabled", "hostname", u.Hostname, "error", err)
		return ssh.InsecureIgnoreHostKey()
	}
	return cb
}

func (u *UnixCommandManager) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	u.log().Debug("Executing remote command", "hostname", u.Hostname, "command", config.Command)

	if u.SSHClient == nil {
		return CommandResult{}, errors.New("SSHClient is not initialized")
	}

	sshConfig, release, err := u.getSSHConfig()
	if err != nil {
		return CommandResult{}, err
	}
	defer release()
	dialTimeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
	}

	client, err := u.SSHClient.Dial("tcp", net.JoinHostPort(u.Hostname, "22"), sshConfig, dialTimeout)
	if err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	cmdStr := ShellJoin(append([]string{config.Command}, config.Args...))
	stdin := config.Stdin
	if config.Sudo {
		cmdStr = "sudo -S -p '' " + cmdStr
		stdin = u.SudoPassword + "\n" + stdin
	}
	if stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	start := time.Now()
	outputCh := make(chan CommandResult, 1)
	go func() {
		var result CommandResult
		var stdout, stderr strings.Builder
		session.Stdout = &stdout
		session.Stderr = &stderr

		if err := session.Run(cmdStr); err != nil {
			u.log().Debug("Remote command failed", "command", config.Command, "error", err)
			result.ExitCode = getExitCode(err)
		}
		result.STDOUT = stdout.String()
		result.STDERR = stderr.String()
		outputCh <- result
	}()

	select {
	case result := <-outputCh:
		result.Duration = time.Since(start)
		result.Timestamp = start
		result.Command = config.Command
		if err := sudoError(result); err != nil {
			return result, err
		}
		return result, nil

	case <-ctx.Done():
		u.log().Error("Remote command timed out", "hostname", u.Hostname, "command", config.Command)
		return CommandResult{}, ctx.Err()
	}
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.isLocal() {
		u.log().Debug("Running local command", "command", config.Command, "sudo", config.Sudo)
		return u.RunLocal(ctx, config)
	}
	u.log().Debug("Running remote command", "hostname", u.Hostname, "command", config.Command, "sudo", config.Sudo)
	return u.RunRemote(ctx, config)
}

func (u *UnixCommandManager) isLocal() bool {
	return u.Hostname == "" || u.Hostname == "localhost" || u.Hostname == "127.0.0.1"
}

func sudoError(result CommandResult) error {
	out := result.STDOUT + result.STDERR
	if strings.Contains(out, "incorrect password") {
		return errors.New("sudo: incorrect password provided")
	}
	if strings.Contains(out, "is not in the sudoers file") {
		return errors.New("sudo: user is not in the sudoers file")
	}
	return nil
}

func getExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	var sshErr *ssh.ExitError
	if errors.As(err, &sshErr) {
		return sshErr.ExitStatus()
	}
	if err != nil {
		return -1
	}
	return 0
}

// ShellJoin quotes args for a POSIX shell.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
