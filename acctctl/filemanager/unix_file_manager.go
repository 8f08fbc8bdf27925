package filemanager

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	cm "github.com/steelcutops/acctctl/acctctl/commandmanager"
)

func (ufm *UnixFileManager) run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	config.Sudo = ufm.Sudo
	return cm.Check(ctx, ufm.CommandManager, config)
}

// Stat reports path's owner and mode. A missing path is returned as
// ok=false without error.
func (ufm *UnixFileManager) Stat(ctx context.Context, path string) (File, bool, error) {
	config := cm.CommandConfig{
		Command: "stat",
		Args:    []string{"-c", "%u %g %a %F", path},
		Sudo:    ufm.Sudo,
	}
	result, err := ufm.CommandManager.Run(ctx, config)
	if err != nil {
		return File{}, false, err
	}
	if result.ExitCode != 0 {
		if strings.Contains(result.STDERR, "No such file") {
			return File{}, false, nil
		}
		if result.Command == "" {
			result.Command = config.Command
		}
		return File{}, false, &cm.CommandError{Result: result}
	}

	parts := strings.SplitN(strings.TrimSpace(result.STDOUT), " ", 4)
	if len(parts) < 4 {
		return File{}, false, fmt.Errorf("unexpected stat output for %s: %q", path, result.STDOUT)
	}
	uid, err := strconv.Atoi(parts[0])
	if err != nil {
		return File{}, false, fmt.Errorf("bad owner in stat output for %s: %w", path, err)
	}
	gid, err := strconv.Atoi(parts[1])
	if err != nil {
		return File{}, false, fmt.Errorf("bad group in stat output for %s: %w", path, err)
	}
	mode, err := strconv.ParseUint(parts[2], 8, 32)
	if err != nil {
		return File{}, false, fmt.Errorf("bad mode in stat output for %s: %w", path, err)
	}
	return File{
		Path:  path,
		UID:   uid,
		GID:   gid,
		Mode:  os.FileMode(mode),
		IsDir: parts[3] == "directory",
	}, true, nil
}

func (ufm *UnixFileManager) ReadFile(ctx context.Context, path string) (string, error) {
	result, err := ufm.run(ctx, cm.CommandConfig{Command: "cat", Args: []string{path}})
	if err != nil {
		return "", err
	}
	return result.STDOUT, nil
}

// WriteFile replaces path with content and sets its mode.
func (ufm *UnixFileManager) WriteFile(ctx context.Context, path, content string, mode os.FileMode) error {
	if _, err := ufm.run(ctx, cm.CommandConfig{
		Command: "sh",
		Args:    []string{"-c", `cat > "$1"`, "sh", path},
		Stdin:   content,
	}); err != nil {
		return err
	}
	_, err := ufm.run(ctx, cm.CommandConfig{
		Command: "chmod",
		Args:    []string{fmt.Sprintf("%o", mode.Perm()), path},
	})
	return err
}

func (ufm *UnixFileManager) MkdirAll(ctx context.Context, path string, mode os.FileMode) error {
	_, err := ufm.run(ctx, cm.CommandConfig{
		Command: "install",
		Args:    []string{"-d", "-m", fmt.Sprintf("%o", mode.Perm()), path},
	})
	return err
}

func (ufm *UnixFileManager) Chown(ctx context.Context, path string, uid, gid int, recursive bool) error {
	args := []string{fmt.Sprintf("%d:%d", uid, gid), path}
	if recursive {
		args = append([]string{"-R"}, args...)
	}
	_, err := ufm.run(ctx, cm.CommandConfig{Command: "chown", Args: args})
	return err
}
