// Package usermanager is the account storage backend for local and system
// accounts. It drives the shadow-utils tools on the managed host through a
// command manager, so the same code serves localhost and SSH targets.
package usermanager

import (
	"fmt"
	"strconv"
	"strings"
)

// User is one passwd entry.
type User struct {
	Username string // user login name
	UID      int    // user ID
	GID      int    // primary group ID
	Comment  string // GECOS full name
	HomeDir  string
	Shell    string
}

// Group is one group entry.
type Group struct {
	Name    string
	GID     int
	Members []string
}

// Shadow holds the password aging fields of a shadow entry, as day counts.
// Empty fields stay empty.
type Shadow struct {
	LastChange string
	Min        string
	Max        string
	Warning    string
	Inactive   string
	Expire     string
}

func parsePasswdLine(line string) (User, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) < 7 {
		return User{}, fmt.Errorf("unexpected passwd format: %q", line)
	}
	uid, err := strconv.Atoi(parts[2])
	if err != nil {
		return User{}, fmt.Errorf("bad uid in passwd entry %q: %w", parts[0], err)
	}
	gid, err := strconv.Atoi(parts[3])
	if err != nil {
		return User{}, fmt.Errorf("bad gid in passwd entry %q: %w", parts[0], err)
	}
	comment, _, _ := strings.Cut(parts[4], ",")
	return User{
		Username: parts[0],
		UID:      uid,
		GID:      gid,
		Comment:  comment,
		HomeDir:  parts[5],
		Shell:    parts[6],
	}, nil
}

func parseGroupLine(line string) (Group, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) < 4 {
		return Group{}, fmt.Errorf("unexpected group format: %q", line)
	}
	gid, err := strconv.Atoi(parts[2])
	if err != nil {
		return Group{}, fmt.Errorf("bad gid in group entry %q: %w", parts[0], err)
	}
	var members []string
	for _, m := range strings.Split(parts[3], ",") {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	return Group{Name: parts[0], GID: gid, Members: members}, nil
}

func parseShadowLine(line string) (Shadow, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) < 8 {
		return Shadow{}, fmt.Errorf("unexpected shadow format")
	}
	return Shadow{
		LastChange: parts[2],
		Min:        parts[3],
		Max:        parts[4],
		Warning:    parts[5],
		Inactive:   parts[6],
		Expire:     parts[7],
	}, nil
}

// parseLines applies parse to every non-empty line of out.
func parseLines[T any](out string, parse func(string) (T, error)) ([]T, error) {
	var items []T
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := parse(line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func parseShells(content string) []string {
	var shells []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		shells = append(shells, line)
	}
	return shells
}
