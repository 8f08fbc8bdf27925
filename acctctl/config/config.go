package config

import (
	"fmt"
	"strings"

	"github.com/steelcutops/acctctl/acctctl/record"
	"gopkg.in/ini.v1"
)

// TypeDefaults are the per-account-type rules: ID ranges and the values
// used when the operator leaves a field empty.
type TypeDefaults struct {
	HomePrefix   string `ini:"home_prefix"`
	DefaultGroup string `ini:"default_group"`
	DefaultGID   int    `ini:"default_gid"`
	DefaultShell string `ini:"default_shell"`
	UIDMin       int    `ini:"uid_min"`
	UIDMax       int    `ini:"uid_max"`
	GIDMin       int    `ini:"gid_min"`
	GIDMax       int    `ini:"gid_max"`
	Skel         string `ini:"skel"`
	CreateHome   bool   `ini:"create_home"`
}

// General holds settings that do not depend on the account type.
type General struct {
	ShellsFile        string `ini:"shells_file"`
	MinPasswordLength int    `ini:"min_password_length"`
	MaxPasswordLength int    `ini:"max_password_length"`
	Umask             string `ini:"umask"`
	// LDAPHomeTemplate is substituted into LDAP home directories, e.g.
	// "%uid" or "%sn/%uid". Empty disables substitution.
	LDAPHomeTemplate string `ini:"ldap_home_template"`
}

type Config struct {
	General General
	Types   map[record.AccountType]TypeDefaults
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: General{
			ShellsFile:        "/etc/shells",
			MinPasswordLength: 5,
			MaxPasswordLength: 72,
			Umask:             "022",
		},
		Types: map[record.AccountType]TypeDefaults{
			record.TypeLocal: {
				HomePrefix:   "/home/",
				DefaultGroup: "users",
				DefaultGID:   100,
				DefaultShell: "/bin/bash",
				UIDMin:       1000,
				UIDMax:       60000,
				GIDMin:       1000,
				GIDMax:       60000,
				Skel:         "/etc/skel",
				CreateHome:   true,
			},
			record.TypeSystem: {
				HomePrefix:   "/var/lib/",
				DefaultGroup: "nogroup",
				DefaultGID:   65534,
				DefaultShell: "/sbin/nologin",
				UIDMin:       100,
				UIDMax:       499,
				GIDMin:       100,
				GIDMax:       499,
			},
			record.TypeLDAP: {
				HomePrefix:   "/home/",
				DefaultGroup: "users",
				DefaultGID:   100,
				DefaultShell: "/bin/bash",
				UIDMin:       1000,
				UIDMax:       60000,
				GIDMin:       1000,
				GIDMax:       60000,
				CreateHome:   true,
			},
			record.TypeNIS: {
				HomePrefix:   "/home/",
				DefaultGroup: "users",
				DefaultGID:   100,
				DefaultShell: "/bin/bash",
				UIDMin:       1000,
				UIDMax:       60000,
				GIDMin:       1000,
				GIDMax:       60000,
			},
		},
	}
}

// For returns the defaults of t.
func (c *Config) For(t record.AccountType) TypeDefaults {
	return c.Types[t]
}

// Bucket returns the account type whose ID range for kind holds id. Local is
// preferred over LDAP and NIS, which share its range. Id 0 is root's and
// always system, although it is never allocated.
func (c *Config) Bucket(kind record.Kind, id int) (record.AccountType, bool) {
	if id == 0 {
		return record.TypeSystem, true
	}
	for _, t := range []record.AccountType{record.TypeSystem, record.TypeLocal} {
		d := c.Types[t]
		lo, hi := d.UIDMin, d.UIDMax
		if kind == record.KindGroup {
			lo, hi = d.GIDMin, d.GIDMax
		}
		if id >= lo && id <= hi {
			return t, true
		}
	}
	return record.TypeLocal, false
}

// Load reads an INI file on top of the built-in defaults. The file holds a
// [general] section plus one section per account type:
//
//	[general]
//	umask = 077
//
//	[local]
//	uid_min = 500
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := file.Section("general").MapTo(&cfg.General); err != nil {
		return nil, fmt.Errorf("section general: %w", err)
	}

	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || name == "general" {
			continue
		}
		t, err := record.ParseAccountType(name)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", name, err)
		}
		d := cfg.Types[t]
		if err := section.MapTo(&d); err != nil {
			return nil, fmt.Errorf("section %s: %w", name, err)
		}
		if d.HomePrefix != "" && !strings.HasSuffix(d.HomePrefix, "/") {
			d.HomePrefix += "/"
		}
		cfg.Types[t] = d
	}

	return cfg, cfg.Validate()
}

// Validate checks that ranges are ordered and the system range does not
// overlap the local one.
func (c *Config) Validate() error {
	for t, d := range c.Types {
		if d.UIDMin > d.UIDMax || d.GIDMin > d.GIDMax {
			return fmt.Errorf("%s: id range is reversed", t)
		}
	}
	sys, local := c.Types[record.TypeSystem], c.Types[record.TypeLocal]
	if sys.UIDMax >= local.UIDMin || sys.GIDMax >= local.GIDMin {
		return fmt.Errorf("system id range overlaps the local range")
	}
	if c.General.MinPasswordLength > c.General.MaxPasswordLength {
		return fmt.Errorf("min_password_length exceeds max_password_length")
	}
	return nil
}
