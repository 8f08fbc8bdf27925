package plugin

import (
	"fmt"
	"strconv"

	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/values"
)

const (
	KeyQuotaBlocksSoft = "quota_blocks_soft"
	KeyQuotaBlocksHard = "quota_blocks_hard"
	KeyQuotaInodesSoft = "quota_inodes_soft"
	KeyQuotaInodesHard = "quota_inodes_hard"
)

var quotaLabels = []struct{ key, label string }{
	{KeyQuotaBlocksSoft, "Soft block limit"},
	{KeyQuotaBlocksHard, "Hard block limit"},
	{KeyQuotaInodesSoft, "Soft inode limit"},
	{KeyQuotaInodesHard, "Hard inode limit"},
}

// Quota manages disk quota limits for users and groups. A limit of 0 means
// unlimited. The plugin stays attached while any limit is set.
type Quota struct{}

func (*Quota) ID() string { return "quota" }

func (*Quota) Keys() []string {
	return []string{KeyQuotaBlocksSoft, KeyQuotaBlocksHard, KeyQuotaInodesSoft, KeyQuotaInodesHard}
}

func (*Quota) Name(Config) string { return "Quota" }

func (*Quota) Summary(cfg Config) string {
	return fmt.Sprintf("Disk block and inode limits for the %s", cfg.Kind)
}

func (q *Quota) Check(_ Config, attrs map[string]any) error {
	for _, key := range q.Keys() {
		v, ok := attrs[key]
		if !ok || values.ToString(v) == "" {
			continue
		}
		if !values.IsInt(v) || values.ToInt(v, -1) < 0 {
			return fmt.Errorf("%s must be a non-negative number", key)
		}
	}
	pairs := [][2]string{
		{KeyQuotaBlocksSoft, KeyQuotaBlocksHard},
		{KeyQuotaInodesSoft, KeyQuotaInodesHard},
	}
	for _, p := range pairs {
		soft, hard := values.ToInt(attrs[p[0]], 0), values.ToInt(attrs[p[1]], 0)
		if hard > 0 && soft > hard {
			return fmt.Errorf("%s (%d) exceeds %s (%d)", p[0], soft, p[1], hard)
		}
	}
	return nil
}

func (*Quota) Dialog(cfg Config, rec *record.Record) Outcome {
	if cfg.UI == nil {
		return OutcomeCancelled
	}
	for _, l := range quotaLabels {
		v, ok := cfg.UI.Ask(l.label, rec.GetString(l.key))
		if !ok {
			return OutcomeCancelled
		}
		if err := rec.Set(l.key, v); err != nil {
			return OutcomeCancelled
		}
	}
	return OutcomeAccepted
}

func (q *Quota) Removable(_ Config, rec *record.Record) bool {
	for _, key := range q.Keys() {
		if values.ToInt(rec.Get(key), 0) != 0 {
			return false
		}
	}
	return true
}

func (q *Quota) Defaults(Config) map[string]any {
	out := map[string]any{}
	for _, key := range q.Keys() {
		out[key] = "0"
	}
	return out
}

// Apply rewrites every limit as a plain decimal number.
func (q *Quota) Apply(_ Config, rec *record.Record) error {
	for _, key := range q.Keys() {
		if err := rec.Set(key, strconv.Itoa(values.ToInt(rec.Get(key), 0))); err != nil {
			return err
		}
	}
	return nil
}
