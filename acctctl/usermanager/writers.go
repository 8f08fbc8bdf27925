package usermanager

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/steelcutops/acctctl/acctctl/plugin"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/values"
)

// AttributeWriter persists the attributes one plugin contributes to a
// committed account.
type AttributeWriter interface {
	Write(ctx context.Context, l *LinuxUserManager, rec *record.Record, attrs map[string]any) error
}

// QuotaWriter applies disk limits with setquota on every quota-enabled
// filesystem.
type QuotaWriter struct{}

func (QuotaWriter) Write(ctx context.Context, l *LinuxUserManager, rec *record.Record, attrs map[string]any) error {
	scope := "-u"
	if rec.Kind == record.KindGroup {
		scope = "-g"
	}
	limit := func(key string) string {
		return strconv.Itoa(values.ToInt(attrs[key], 0))
	}
	_, err := l.run(ctx, "setquota", scope, rec.Name(),
		limit(plugin.KeyQuotaBlocksSoft), limit(plugin.KeyQuotaBlocksHard),
		limit(plugin.KeyQuotaInodesSoft), limit(plugin.KeyQuotaInodesHard),
		"-a")
	return err
}

// SSHKeysWriter replaces ~/.ssh/authorized_keys with the user's keys.
type SSHKeysWriter struct{}

func (SSHKeysWriter) Write(ctx context.Context, l *LinuxUserManager, rec *record.Record, attrs map[string]any) error {
	if rec.Kind != record.KindUser {
		return nil
	}
	home := rec.GetString(record.KeyHome)
	if home == "" {
		return fmt.Errorf("user %s has no home directory", rec.Name())
	}
	uid := values.ToInt(rec.Get(record.KeyUIDNumber), -1)
	gid := values.ToInt(rec.Get(record.KeyGIDNumber), -1)

	keys := values.ToStringList(attrs[plugin.KeySSHPublicKey])
	content := ""
	if len(keys) > 0 {
		content = strings.Join(keys, "\n") + "\n"
	}

	dir := path.Join(home, ".ssh")
	if err := l.Files.MkdirAll(ctx, dir, 0o700); err != nil {
		return err
	}
	if err := l.Files.WriteFile(ctx, path.Join(dir, "authorized_keys"), content, 0o600); err != nil {
		return err
	}
	return l.Files.Chown(ctx, dir, uid, gid, true)
}
