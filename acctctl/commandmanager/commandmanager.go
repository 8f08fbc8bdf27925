package commandmanager

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CommandConfig describes one command to execute.
type CommandConfig struct {
	Command string
	Args    []string
	// Sudo runs the command through sudo -S.
	Sudo bool
	// Stdin is written to the command's standard input, after the sudo
	// password when Sudo is set.
	Stdin string
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// CommandManager runs commands on the managed host, locally or over SSH.
type CommandManager interface {
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)
}

// CommandError reports a command that ran but exited non-zero.
type CommandError struct {
	Result CommandResult
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Result.STDERR)
	if msg == "" {
		msg = strings.TrimSpace(e.Result.STDOUT)
	}
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Result.Command, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Result.Command, e.Result.ExitCode, msg)
}

// Check runs config and turns a non-zero exit status into a CommandError.
func Check(ctx context.Context, m CommandManager, config CommandConfig) (CommandResult, error) {
	res, err := m.Run(ctx, config)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		if res.Command == "" {
			res.Command = config.Command
		}
		return res, &CommandError{Result: res}
	}
	return res, nil
}
