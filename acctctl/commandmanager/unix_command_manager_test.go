package commandmanager

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/steelcutops/acctctl/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

type MockSSHClient struct {
	dialError error
	addr      string
	user      string
}

func (m *MockSSHClient) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	m.addr = addr
	m.user = config.User
	return nil, m.dialError
}

func TestRunLocal(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}

	result, err := manager.RunLocal(context.Background(), CommandConfig{
		Command: "echo",
		Args:    []string{"hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.STDOUT)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "echo", result.Command)
}

func TestRunLocalStdin(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}

	result, err := manager.RunLocal(context.Background(), CommandConfig{
		Command: "cat",
		Stdin:   "al:Secret123\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "al:Secret123\n", result.STDOUT)
}

func TestCheckNonZeroExit(t *testing.T) {
	manager := &UnixCommandManager{Hostname: "localhost"}

	res, err := Check(context.Background(), manager, CommandConfig{
		Command: "sh",
		Args:    []string{"-c", "echo 'useradd: user al exists' >&2; exit 9"},
	})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 9, res.ExitCode)
	assert.Equal(t, "sh: exit status 9: useradd: user al exists", err.Error())
}

func TestIsLocal(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}
	assert.True(t, manager.isLocal())

	manager.Hostname = ""
	assert.True(t, manager.isLocal())

	manager.Hostname = "example.com"
	assert.False(t, manager.isLocal())
}

func TestRunRemoteDialError(t *testing.T) {
	dialer := &MockSSHClient{dialError: errors.New("mock dial error")}
	manager := UnixCommandManager{
		Hostname:        "remote",
		SSHClient:       dialer,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Credentials: common.Credentials{
			User:     "admin",
			Password: "password",
		},
	}

	_, err := manager.Run(context.Background(), CommandConfig{Command: "getent"})
	assert.EqualError(t, err, "mock dial error")
	assert.Equal(t, "remote:22", dialer.addr)
	assert.Equal(t, "admin", dialer.user)
}

func TestRunRemoteWithoutClient(t *testing.T) {
	manager := UnixCommandManager{Hostname: "remote"}
	_, err := manager.RunRemote(context.Background(), CommandConfig{Command: "ls"})
	assert.EqualError(t, err, "SSHClient is not initialized")
}

func TestShellJoin(t *testing.T) {
	got := ShellJoin([]string{"usermod", "-c", "Ada Lovelace", "-d", "/home/al", "it's"})
	assert.Equal(t, `usermod -c 'Ada Lovelace' -d /home/al 'it'\''s'`, got)
	assert.Equal(t, "''", ShellJoin([]string{""}))
}

func TestFileSSHKeyManagerNoKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ed25519"), []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ed25519.pub"), []byte("ssh-ed25519 AAAA"), 0o600))

	_, err := FileSSHKeyManager{Dir: dir}.ReadPrivateKeys("")
	assert.Error(t, err)

	_, err = FileSSHKeyManager{Dir: t.TempDir()}.ReadPrivateKeys("")
	assert.ErrorContains(t, err, "no private keys found")
}

func TestAgentSSHKeyManagerWithoutSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, err := (&AgentSSHKeyManager{}).ReadPrivateKeys("")
	assert.EqualError(t, err, "SSH_AUTH_SOCK not set")
}

// serveAgent runs an in-memory SSH agent holding one ed25519 key on a unix
// socket and points SSH_AUTH_SOCK at it.
func serveAgent(t *testing.T) {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	keyring := agent.NewKeyring()
	require.NoError(t, keyring.Add(agent.AddedKey{PrivateKey: key}))

	socket := filepath.Join(t.TempDir(), "agent.sock")
	l, err := net.Listen("unix", socket)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	t.Setenv("SSH_AUTH_SOCK", socket)
}

func TestAgentSignersUsableUntilClose(t *testing.T) {
	serveAgent(t)

	km := &AgentSSHKeyManager{}
	signers, err := km.ReadPrivateKeys("")
	require.NoError(t, err)
	require.Len(t, signers, 1)

	data := []byte("session id")
	sig, err := signers[0].Sign(rand.Reader, data)
	require.NoError(t, err)
	assert.NoError(t, signers[0].PublicKey().Verify(data, sig))

	require.NoError(t, km.Close())
	_, err = signers[0].Sign(rand.Reader, data)
	assert.Error(t, err)
	assert.NoError(t, km.Close())
}

type closingKeyManager struct {
	*AgentSSHKeyManager
	closed int
}

func (c *closingKeyManager) Close() error {
	c.closed++
	return c.AgentSSHKeyManager.Close()
}

func TestRunRemoteReleasesAgentConnection(t *testing.T) {
	serveAgent(t)

	km := &closingKeyManager{AgentSSHKeyManager: &AgentSSHKeyManager{}}
	manager := UnixCommandManager{
		Hostname:        "example.com",
		Credentials:     common.Credentials{User: "admin"},
		SSHClient:       &MockSSHClient{dialError: errors.New("connection refused")},
		KeyManager:      km,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	_, err := manager.RunRemote(context.Background(), CommandConfig{Command: "id"})
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 1, km.closed)
	assert.Nil(t, km.conn)
}
