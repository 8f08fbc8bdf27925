package usermanager

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
	cm "github.com/steelcutops/acctctl/acctctl/commandmanager"
	"github.com/steelcutops/acctctl/acctctl/config"
	"github.com/steelcutops/acctctl/acctctl/filemanager"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/values"
	"github.com/steelcutops/acctctl/logger"
)

// getent exits with 2 when the key is not in the database.
const getentNotFound = 2

type LinuxUserManager struct {
	CommandManager cm.CommandManager
	Files          filemanager.FileManager
	Config         *config.Config
	Logger         logger.Logger
	// Sudo runs the account tools through sudo.
	Sudo bool

	writers map[string]AttributeWriter
}

func NewLinuxUserManager(commandManager cm.CommandManager, cfg *config.Config, log logger.Logger, sudo bool) *LinuxUserManager {
	l := &LinuxUserManager{
		CommandManager: commandManager,
		Files:          filemanager.NewFileManager(commandManager, sudo),
		Config:         cfg,
		Logger:         log,
		Sudo:           sudo,
	}
	l.RegisterWriter("quota", QuotaWriter{})
	l.RegisterWriter("sshkeys", SSHKeysWriter{})
	return l
}

// RegisterWriter installs the writer that persists the attributes of
// plugin id.
func (l *LinuxUserManager) RegisterWriter(id string, w AttributeWriter) {
	if l.writers == nil {
		l.writers = map[string]AttributeWriter{}
	}
	l.writers[id] = w
}

func (l *LinuxUserManager) log() logger.Logger {
	if l.Logger == nil {
		return logger.Discard()
	}
	return l.Logger
}

func (l *LinuxUserManager) run(ctx context.Context, command string, args ...string) (cm.CommandResult, error) {
	return cm.Check(ctx, l.CommandManager, cm.CommandConfig{Command: command, Args: args, Sudo: l.Sudo})
}

func (l *LinuxUserManager) runStdin(ctx context.Context, stdin, command string, args ...string) error {
	_, err := cm.Check(ctx, l.CommandManager, cm.CommandConfig{Command: command, Args: args, Sudo: l.Sudo, Stdin: stdin})
	return err
}

// getent returns the matching lines of database, or "" when key is absent.
func (l *LinuxUserManager) getent(ctx context.Context, database string, key ...string) (string, error) {
	config := cm.CommandConfig{Command: "getent", Args: append([]string{database}, key...), Sudo: l.Sudo && database == "shadow"}
	result, err := l.CommandManager.Run(ctx, config)
	if err != nil {
		return "", err
	}
	switch result.ExitCode {
	case 0:
		return result.STDOUT, nil
	case getentNotFound:
		return "", nil
	}
	result.Command = "getent"
	return "", &cm.CommandError{Result: result}
}

func (l *LinuxUserManager) accountType(kind record.Kind, id int) record.AccountType {
	t, _ := l.Config.Bucket(kind, id)
	return t
}

func (l *LinuxUserManager) getUser(ctx context.Context, key string) (*User, error) {
	out, err := l.getent(ctx, "passwd", key)
	if err != nil || out == "" {
		return nil, err
	}
	u, err := parsePasswdLine(strings.SplitN(out, "\n", 2)[0])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (l *LinuxUserManager) getGroup(ctx context.Context, key string) (*Group, error) {
	out, err := l.getent(ctx, "group", key)
	if err != nil || out == "" {
		return nil, err
	}
	g, err := parseGroupLine(strings.SplitN(out, "\n", 2)[0])
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (l *LinuxUserManager) userAccount(ctx context.Context, u *User) (*storage.Account, error) {
	attrs := map[string]any{
		record.KeyUID:       u.Username,
		record.KeyUIDNumber: strconv.Itoa(u.UID),
		record.KeyGIDNumber: strconv.Itoa(u.GID),
		record.KeyCN:        u.Comment,
		record.KeyHome:      u.HomeDir,
		record.KeyShell:     u.Shell,
	}

	primary, err := l.getGroup(ctx, strconv.Itoa(u.GID))
	if err != nil {
		return nil, err
	}
	if primary != nil {
		attrs[record.KeyGroupname] = primary.Name
	}

	groups, err := l.secondaryGroups(ctx, u.Username, u.GID)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		attrs[record.KeyGrouplist] = groups
	}

	// Reading shadow needs privileges the operator may not have.
	if out, err := l.getent(ctx, "shadow", u.Username); err != nil {
		l.log().Debug("Shadow entry unavailable", "user", u.Username, "error", err)
	} else if out != "" {
		if sh, err := parseShadowLine(out); err == nil {
			for k, v := range map[string]string{
				record.KeyShadowLastChange: sh.LastChange,
				record.KeyShadowMin:        sh.Min,
				record.KeyShadowMax:        sh.Max,
				record.KeyShadowWarning:    sh.Warning,
				record.KeyShadowInactive:   sh.Inactive,
				record.KeyShadowExpire:     sh.Expire,
			} {
				if v != "" {
					attrs[k] = v
				}
			}
		}
	}

	return &storage.Account{
		Kind:       record.KindUser,
		Type:       l.accountType(record.KindUser, u.UID),
		Name:       u.Username,
		Number:     u.UID,
		Attributes: attrs,
	}, nil
}

func (l *LinuxUserManager) secondaryGroups(ctx context.Context, name string, primary int) ([]string, error) {
	out, err := l.getent(ctx, "group")
	if err != nil {
		return nil, err
	}
	groups, err := parseLines(out, parseGroupLine)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, g := range groups {
		if g.GID == primary {
			continue
		}
		for _, m := range g.Members {
			if m == name {
				names = append(names, g.Name)
				break
			}
		}
	}
	return names, nil
}

func (l *LinuxUserManager) groupAccount(g *Group) *storage.Account {
	attrs := map[string]any{
		record.KeyCN:        g.Name,
		record.KeyGIDNumber: strconv.Itoa(g.GID),
	}
	if len(g.Members) > 0 {
		attrs[record.KeyUserlist] = append([]string(nil), g.Members...)
	}
	return &storage.Account{
		Kind:       record.KindGroup,
		Type:       l.accountType(record.KindGroup, g.GID),
		Name:       g.Name,
		Number:     g.GID,
		Attributes: attrs,
	}
}

func (l *LinuxUserManager) LookupAccountByName(ctx context.Context, kind record.Kind, name string) (*storage.Account, error) {
	return l.lookup(ctx, kind, name)
}

func (l *LinuxUserManager) LookupAccountByNumericID(ctx context.Context, kind record.Kind, id int) (*storage.Account, error) {
	return l.lookup(ctx, kind, strconv.Itoa(id))
}

func (l *LinuxUserManager) lookup(ctx context.Context, kind record.Kind, key string) (*storage.Account, error) {
	if kind == record.KindGroup {
		g, err := l.getGroup(ctx, key)
		if err != nil || g == nil {
			return nil, err
		}
		return l.groupAccount(g), nil
	}
	u, err := l.getUser(ctx, key)
	if err != nil || u == nil {
		return nil, err
	}
	return l.userAccount(ctx, u)
}

func (l *LinuxUserManager) CheckHomeExists(ctx context.Context, path string) (int, bool, error) {
	f, ok, err := l.Files.Stat(ctx, path)
	if err != nil || !ok {
		return 0, false, err
	}
	return f.UID, true, nil
}

func (l *LinuxUserManager) ListShells(ctx context.Context) ([]string, error) {
	content, err := l.Files.ReadFile(ctx, l.Config.General.ShellsFile)
	if err != nil {
		return nil, err
	}
	return parseShells(content), nil
}

// List returns every user or group known to the name service.
func (l *LinuxUserManager) List(ctx context.Context, kind record.Kind) ([]storage.Account, error) {
	if kind == record.KindGroup {
		out, err := l.getent(ctx, "group")
		if err != nil {
			return nil, err
		}
		groups, err := parseLines(out, parseGroupLine)
		if err != nil {
			return nil, err
		}
		accounts := make([]storage.Account, 0, len(groups))
		for i := range groups {
			accounts = append(accounts, *l.groupAccount(&groups[i]))
		}
		return accounts, nil
	}

	out, err := l.getent(ctx, "passwd")
	if err != nil {
		return nil, err
	}
	users, err := parseLines(out, parsePasswdLine)
	if err != nil {
		return nil, err
	}
	accounts := make([]storage.Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, storage.Account{
			Kind:   record.KindUser,
			Type:   l.accountType(record.KindUser, u.UID),
			Name:   u.Username,
			Number: u.UID,
			Attributes: map[string]any{
				record.KeyUID:       u.Username,
				record.KeyUIDNumber: strconv.Itoa(u.UID),
				record.KeyGIDNumber: strconv.Itoa(u.GID),
				record.KeyCN:        u.Comment,
				record.KeyHome:      u.HomeDir,
				record.KeyShell:     u.Shell,
			},
		})
	}
	return accounts, nil
}

// UsedIDs lists every uid or gid of the name service with one getent call.
func (l *LinuxUserManager) UsedIDs(ctx context.Context, kind record.Kind) (map[int]bool, error) {
	used := map[int]bool{}
	if kind == record.KindGroup {
		out, err := l.getent(ctx, "group")
		if err != nil {
			return nil, err
		}
		groups, err := parseLines(out, parseGroupLine)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			used[g.GID] = true
		}
		return used, nil
	}

	out, err := l.getent(ctx, "passwd")
	if err != nil {
		return nil, err
	}
	users, err := parseLines(out, parsePasswdLine)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		used[u.UID] = true
	}
	return used, nil
}

func (l *LinuxUserManager) Delete(ctx context.Context, kind record.Kind, name string) error {
	if kind == record.KindGroup {
		_, err := l.run(ctx, "groupdel", name)
		return err
	}
	_, err := l.run(ctx, "userdel", "-r", name)
	return err
}

func supported(rec *record.Record) error {
	if rec.Type != record.TypeLocal && rec.Type != record.TypeSystem {
		return fmt.Errorf("%s accounts cannot be written by the system backend", rec.Type)
	}
	return nil
}

// changed reports whether key must be written: always for a new account,
// otherwise only when the staged value differs from storage.
func changed(rec *record.Record, key string) bool {
	if rec.Action == record.ActionAdded {
		return rec.GetString(key) != ""
	}
	return rec.Changed(key)
}

func (l *LinuxUserManager) CommitUser(ctx context.Context, rec *record.Record) error {
	if err := supported(rec); err != nil {
		return err
	}
	name := rec.Name()

	if rec.Action == record.ActionAdded {
		if _, err := l.run(ctx, "useradd", l.useraddArgs(rec)...); err != nil {
			return err
		}
		if err := l.finishUser(ctx, rec); err != nil {
			// The home is only removed when useradd created it.
			args := []string{name}
			if values.ToBool(rec.Get(record.KeyCreateHome), false) {
				args = []string{"-r", name}
			}
			return l.rollback(ctx, err, "userdel", args...)
		}
	} else {
		if args := usermodArgs(rec); len(args) > 0 {
			if _, err := l.run(ctx, "usermod", append(args, rec.OriginalName())...); err != nil {
				return err
			}
		}
		if err := l.finishUser(ctx, rec); err != nil {
			return err
		}
	}

	l.log().Info("User committed", "name", name, "action", rec.Action.String())
	return nil
}

// finishUser writes what useradd and usermod cannot set: the password,
// aging, home ownership and plugin attributes.
func (l *LinuxUserManager) finishUser(ctx context.Context, rec *record.Record) error {
	name := rec.Name()
	if changed(rec, record.KeyPassword) {
		if err := l.runStdin(ctx, name+":"+rec.GetString(record.KeyPassword)+"\n", "chpasswd"); err != nil {
			return err
		}
	}
	if args := chageArgs(rec); len(args) > 0 {
		if _, err := l.run(ctx, "chage", append(args, name)...); err != nil {
			return err
		}
	}
	if values.ToBool(rec.Get(record.KeyChownHome), false) {
		uid := values.ToInt(rec.Get(record.KeyUIDNumber), -1)
		gid := values.ToInt(rec.Get(record.KeyGIDNumber), -1)
		if err := l.Files.Chown(ctx, rec.GetString(record.KeyHome), uid, gid, true); err != nil {
			return err
		}
	}
	return l.writePlugins(ctx, rec)
}

// rollback removes a half-created account after err. A failed removal is
// reported together with err.
func (l *LinuxUserManager) rollback(ctx context.Context, err error, command string, args ...string) error {
	l.log().Warn("Commit failed, removing new account", "command", command, "args", args, "error", err)
	if _, rbErr := l.run(ctx, command, args...); rbErr != nil {
		return multierror.Append(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}

func (l *LinuxUserManager) useraddArgs(rec *record.Record) []string {
	var args []string
	add := func(flag, key string) {
		if v := rec.GetString(key); v != "" {
			args = append(args, flag, v)
		}
	}
	add("-u", record.KeyUIDNumber)
	if g := rec.GetString(record.KeyGroupname); g != "" {
		args = append(args, "-g", g)
	} else {
		add("-g", record.KeyGIDNumber)
	}
	add("-G", record.KeyGrouplist)
	add("-c", record.KeyCN)
	add("-d", record.KeyHome)
	add("-s", record.KeyShell)
	if rec.Type == record.TypeSystem {
		args = append(args, "-r")
	}
	if values.ToBool(rec.Get(record.KeyCreateHome), false) {
		args = append(args, "-m")
		if skel := l.Config.For(rec.Type).Skel; skel != "" {
			args = append(args, "-k", skel)
		}
		if mode := rec.GetString(record.KeyHomeMode); mode != "" {
			args = append(args, "-K", "HOME_MODE="+mode)
		}
	} else {
		args = append(args, "-M")
	}
	return append(args, rec.Name())
}

func usermodArgs(rec *record.Record) []string {
	var args []string
	mod := func(flag, key string) {
		if rec.Changed(key) {
			args = append(args, flag, rec.GetString(key))
		}
	}
	mod("-l", record.KeyUID)
	mod("-u", record.KeyUIDNumber)
	if rec.Changed(record.KeyGroupname) {
		args = append(args, "-g", rec.GetString(record.KeyGroupname))
	} else {
		mod("-g", record.KeyGIDNumber)
	}
	mod("-G", record.KeyGrouplist)
	mod("-c", record.KeyCN)
	if rec.Changed(record.KeyHome) {
		args = append(args, "-d", rec.GetString(record.KeyHome))
		if !values.ToBool(rec.Get(record.KeyChownHome), false) {
			args = append(args, "-m")
		}
	}
	mod("-s", record.KeyShell)
	return args
}

var chageFlags = []struct{ flag, key string }{
	{"-d", record.KeyShadowLastChange},
	{"-m", record.KeyShadowMin},
	{"-M", record.KeyShadowMax},
	{"-W", record.KeyShadowWarning},
	{"-I", record.KeyShadowInactive},
	{"-E", record.KeyShadowExpire},
}

func chageArgs(rec *record.Record) []string {
	var args []string
	for _, f := range chageFlags {
		if changed(rec, f.key) {
			args = append(args, f.flag, rec.GetString(f.key))
		}
	}
	return args
}

func (l *LinuxUserManager) CommitGroup(ctx context.Context, rec *record.Record) error {
	if err := supported(rec); err != nil {
		return err
	}
	name := rec.Name()

	if rec.Action == record.ActionAdded {
		args := []string{}
		if gid := rec.GetString(record.KeyGIDNumber); gid != "" {
			args = append(args, "-g", gid)
		}
		if rec.Type == record.TypeSystem {
			args = append(args, "-r")
		}
		if _, err := l.run(ctx, "groupadd", append(args, name)...); err != nil {
			return err
		}
		if err := l.finishGroup(ctx, rec); err != nil {
			return l.rollback(ctx, err, "groupdel", name)
		}
	} else {
		var args []string
		if rec.Changed(record.KeyCN) {
			args = append(args, "-n", name)
		}
		if rec.Changed(record.KeyGIDNumber) {
			args = append(args, "-g", rec.GetString(record.KeyGIDNumber))
		}
		if len(args) > 0 {
			if _, err := l.run(ctx, "groupmod", append(args, rec.OriginalName())...); err != nil {
				return err
			}
		}
		if err := l.finishGroup(ctx, rec); err != nil {
			return err
		}
	}

	l.log().Info("Group committed", "name", name, "action", rec.Action.String())
	return nil
}

func (l *LinuxUserManager) finishGroup(ctx context.Context, rec *record.Record) error {
	name := rec.Name()
	if changed(rec, record.KeyUserlist) {
		members := strings.Join(values.ToStringList(rec.Get(record.KeyUserlist)), ",")
		if _, err := l.run(ctx, "gpasswd", "-M", members, name); err != nil {
			return err
		}
	}
	if changed(rec, record.KeyPassword) {
		if err := l.runStdin(ctx, name+":"+rec.GetString(record.KeyPassword)+"\n", "chgpasswd"); err != nil {
			return err
		}
	}
	return l.writePlugins(ctx, rec)
}

func (l *LinuxUserManager) writePlugins(ctx context.Context, rec *record.Record) error {
	for _, id := range rec.Plugins() {
		w, ok := l.writers[id]
		if !ok {
			l.log().Warn("No attribute writer for plugin on this backend, skipping", "plugin", id, "name", rec.Name())
			continue
		}
		if err := w.Write(ctx, l, rec, rec.PluginAttributes(id)); err != nil {
			return fmt.Errorf("plugin %s: %w", id, err)
		}
	}
	return nil
}

var (
	_ storage.Store    = (*LinuxUserManager)(nil)
	_ storage.IDLister = (*LinuxUserManager)(nil)
)
