// Package filemanager inspects and prepares home directories on the managed
// host through its command manager.
package filemanager

import (
	"context"
	"os"

	cm "github.com/steelcutops/acctctl/acctctl/commandmanager"
)

// File describes the attributes the account tools care about.
type File struct {
	Path  string
	UID   int
	GID   int
	Mode  os.FileMode
	IsDir bool
}

// FileManager covers the file operations needed around account storage.
type FileManager interface {
	Stat(ctx context.Context, path string) (File, bool, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string, mode os.FileMode) error
	MkdirAll(ctx context.Context, path string, mode os.FileMode) error
	Chown(ctx context.Context, path string, uid, gid int, recursive bool) error
}

type UnixFileManager struct {
	CommandManager cm.CommandManager
	// Sudo runs every command through sudo.
	Sudo bool
}

func NewFileManager(commandManager cm.CommandManager, sudo bool) *UnixFileManager {
	return &UnixFileManager{CommandManager: commandManager, Sudo: sudo}
}
