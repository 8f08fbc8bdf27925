package commandmanager

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHKeyManager supplies the signers used for public key authentication.
type SSHKeyManager interface {
	ReadPrivateKeys(keyPassphrase string) ([]ssh.Signer, error)
}

// FileSSHKeyManager reads ~/.ssh/id_* private keys. Dir overrides ~/.ssh.
type FileSSHKeyManager struct {
	Dir string
}

// AgentSSHKeyManager asks the agent listening on SSH_AUTH_SOCK. The agent
// signs on behalf of the returned signers, so the connection stays open
// until Close.
type AgentSSHKeyManager struct {
	conn net.Conn
}

func (km *AgentSSHKeyManager) ReadPrivateKeys(_ string) ([]ssh.Signer, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	if err := km.Close(); err != nil {
		return nil, err
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("could not connect to SSH agent: %w", err)
	}

	signers, err := agent.NewClient(conn).Signers()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not get signers from SSH agent: %w", err)
	}
	km.conn = conn
	return signers, nil
}

// Close drops the agent connection. Signers read before stop working.
func (km *AgentSSHKeyManager) Close() error {
	if km.conn == nil {
		return nil
	}
	err := km.conn.Close()
	km.conn = nil
	return err
}

func (km FileSSHKeyManager) ReadPrivateKeys(keyPassphrase string) ([]ssh.Signer, error) {
	dir := km.Dir
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".ssh")
	}
	files, err := filepath.Glob(filepath.Join(dir, "id_*"))
	if err != nil {
		return nil, err
	}

	var signers []ssh.Signer
	var lastErr error
	for _, file := range files {
		if strings.HasSuffix(file, ".pub") {
			continue
		}
		keyBytes, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var signer ssh.Signer
		if keyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(keyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", file, err)
			continue
		}
		signers = append(signers, signer)
	}

	if len(signers) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no private keys found in %s", dir)
		}
		return nil, lastErr
	}
	return signers, nil
}
