package main

import (
	"fmt"
	"sort"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/steelcutops/acctctl/acctctl/accterr"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/session"
)

// attrFlag binds a command line flag to a record attribute.
type attrFlag struct {
	name  string
	key   string
	usage string
}

var userFlags = []attrFlag{
	{"full-name", record.KeyCN, "Full name"},
	{"given-name", record.KeyGivenName, "Given name (LDAP only)"},
	{"surname", record.KeySN, "Surname (LDAP only)"},
	{"uid-number", record.KeyUIDNumber, "Numeric user ID; allocated when empty"},
	{"group", record.KeyGroupname, "Primary group name"},
	{"gid-number", record.KeyGIDNumber, "Primary group ID"},
	{"groups", record.KeyGrouplist, "Comma separated secondary groups"},
	{"home", record.KeyHome, "Home directory"},
	{"home-mode", record.KeyHomeMode, "Octal permissions of a new home directory"},
	{"shell", record.KeyShell, "Login shell"},
	{"min-days", record.KeyShadowMin, "Minimum days between password changes"},
	{"max-days", record.KeyShadowMax, "Maximum days a password stays valid"},
	{"warn-days", record.KeyShadowWarning, "Days of warning before the password expires"},
	{"inactive-days", record.KeyShadowInactive, "Days after expiry until the account is disabled"},
	{"expire", record.KeyShadowExpire, "Account expiration date (YYYY-MM-DD)"},
}

var userBoolFlags = []attrFlag{
	{"create-home", record.KeyCreateHome, "Create the home directory"},
	{"chown-home", record.KeyChownHome, "Hand an existing home directory to the user"},
}

var groupFlags = []attrFlag{
	{"gid-number", record.KeyGIDNumber, "Numeric group ID; allocated when empty"},
	{"members", record.KeyUserlist, "Comma separated member users"},
	{"description", record.KeyDescription, "Description (LDAP only)"},
}

// editFlags are the flags shared by add and edit.
type editFlags struct {
	kind        record.Kind
	password    bool
	plugins     []string
	detach      []string
	dialogs     []string
	pluginAttrs map[string]string
}

func (f *editFlags) register(flags *pflag.FlagSet) {
	attrs := userFlags
	if f.kind == record.KindGroup {
		attrs = groupFlags
	}
	for _, af := range attrs {
		flags.String(af.name, "", af.usage)
	}
	if f.kind == record.KindUser {
		for _, af := range userBoolFlags {
			flags.Bool(af.name, false, af.usage)
		}
	}
	flags.BoolVar(&f.password, "set-password", false, "Prompt for a new password")
	flags.StringSliceVar(&f.plugins, "plugin", nil, "Attach plugin by ID")
	flags.StringSliceVar(&f.detach, "remove-plugin", nil, "Detach plugin by ID")
	flags.StringSliceVar(&f.dialogs, "configure-plugin", nil, "Open the dialog of plugin ID")
	flags.StringToStringVar(&f.pluginAttrs, "plugin-attr", nil, "Set a plugin attribute (key=value)")
}

// changes collects the attributes given on the command line. Only flags the
// operator set are returned.
func (f *editFlags) changes(a *app, flags *pflag.FlagSet) (map[string]any, error) {
	out := map[string]any{}
	attrs, bools := userFlags, userBoolFlags
	if f.kind == record.KindGroup {
		attrs, bools = groupFlags, nil
	}
	for _, af := range attrs {
		if flags.Changed(af.name) {
			v, _ := flags.GetString(af.name)
			out[af.key] = v
		}
	}
	for _, af := range bools {
		if flags.Changed(af.name) {
			v, _ := flags.GetBool(af.name)
			out[af.key] = v
		}
	}

	if f.password {
		password, err := a.terminal.ReadSecret("New password: ")
		if err != nil {
			return nil, err
		}
		confirm, err := a.terminal.ReadSecret("Retype new password: ")
		if err != nil {
			return nil, err
		}
		out[record.KeyPassword] = password
		out[record.KeyPasswordConfirm] = confirm
	}
	return out, nil
}

// plan resolves the plugin flags against the registry: every plugin
// attribute attaches the plugin that owns it.
func (f *editFlags) plan(a *app, attrs map[string]any) (*edit, error) {
	e := &edit{attrs: attrs, detach: f.detach, dialogs: f.dialogs}
	seen := map[string]bool{}
	attach := func(id string) {
		if !seen[id] {
			seen[id] = true
			e.attach = append(e.attach, id)
		}
	}
	for _, id := range f.plugins {
		if _, err := a.registry.Get(id); err != nil {
			return nil, err
		}
		attach(id)
	}

	keys := make([]string, 0, len(f.pluginAttrs))
	for k := range f.pluginAttrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		owner, ok := a.registry.Owner(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s", accterr.ErrUnknownField, k)
		}
		attach(owner)
		e.pluginAttrs = append(e.pluginAttrs, [2]string{k, f.pluginAttrs[k]})
	}
	for _, id := range f.dialogs {
		if _, err := a.registry.Get(id); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func newAccountCmd(a *app, kind record.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.String(),
		Short: fmt.Sprintf("Manage %s accounts", kind),
	}
	cmd.AddCommand(
		newAddCmd(a, kind),
		newEditCmd(a, kind),
		newDeleteCmd(a, kind),
		newShowCmd(a, kind),
		newListCmd(a, kind),
	)
	return cmd
}

func newAddCmd(a *app, kind record.Kind) *cobra.Command {
	f := &editFlags{kind: kind}
	t := record.TypeLocal

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: fmt.Sprintf("Create a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := f.changes(a, cmd.Flags())
			if err != nil {
				return err
			}
			attrs[record.NameKey(kind)] = args[0]
			e, err := f.plan(a, attrs)
			if err != nil {
				return err
			}

			s := session.NewAdd(a.sessionOptions(), kind, t)
			if err := e.run(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s created\n", kind, args[0])
			return nil
		},
	}
	cmd.Flags().Var(&t, "type", "Account type: local, system, ldap or nis")
	f.register(cmd.Flags())
	return cmd
}

func newEditCmd(a *app, kind record.Kind) *cobra.Command {
	f := &editFlags{kind: kind}
	var rename string

	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: fmt.Sprintf("Change an existing %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := f.changes(a, cmd.Flags())
			if err != nil {
				return err
			}
			if rename != "" {
				attrs[record.NameKey(kind)] = rename
			}
			e, err := f.plan(a, attrs)
			if err != nil {
				return err
			}

			s, err := session.NewEdit(cmd.Context(), a.sessionOptions(), kind, args[0])
			if err != nil {
				return err
			}
			if err := e.run(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s updated\n", kind, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&rename, "rename", "", "New account name")
	f.register(cmd.Flags())
	return cmd
}

func newDeleteCmd(a *app, kind record.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME...",
		Short: fmt.Sprintf("Remove one or more %ss", kind),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.sessionPopup()
			var result *multierror.Error
			for _, name := range args {
				if !p.Confirm(fmt.Sprintf("Delete %s %s?", kind, name)) {
					a.log.Info("Delete skipped", "kind", kind.String(), "name", name)
					continue
				}
				if err := session.Delete(cmd.Context(), a.store, kind, name); err != nil {
					a.log.Error("Delete failed", "kind", kind.String(), "name", name, "error", err)
					result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
					continue
				}
				fmt.Fprintf(a.out, "%s %s deleted\n", kind, name)
			}
			return result.ErrorOrNil()
		},
	}
}

func newShowCmd(a *app, kind record.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: fmt.Sprintf("Print a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.store.LookupAccountByName(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			if acc == nil {
				return fmt.Errorf("%w: %s %s", accterr.ErrNotFound, kind, args[0])
			}
			return render(a.out, a.v.GetString("output"), toOutput(*acc))
		},
	}
}

func newListCmd(a *app, kind record.Kind) *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			want := map[record.AccountType]bool{}
			for _, name := range types {
				t, err := record.ParseAccountType(name)
				if err != nil {
					return err
				}
				want[t] = true
			}

			accounts, err := a.store.List(cmd.Context(), kind)
			if err != nil {
				return err
			}
			var out []accountOutput
			for _, acc := range accounts {
				if len(want) == 0 || want[acc.Type] {
					out = append(out, toOutput(acc))
				}
			}
			return renderList(a.out, a.v.GetString("output"), out)
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only list accounts of these types")
	return cmd
}

func newPluginsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "plugins",
		Short:       "List the registered plugins and the attributes they own",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"store": "none"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range a.registry.All() {
				fmt.Fprintf(a.out, "%s\t%v\n", p.ID(), p.Keys())
			}
			return nil
		},
	}
}
