package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/steelcutops/acctctl/acctctl/defaults"
	"github.com/steelcutops/acctctl/acctctl/record"
	"github.com/steelcutops/acctctl/acctctl/storage"
	"github.com/steelcutops/acctctl/acctctl/values"
	"gopkg.in/yaml.v3"
)

type accountOutput struct {
	Kind       string            `json:"kind" yaml:"kind"`
	Type       string            `json:"type" yaml:"type"`
	Name       string            `json:"name" yaml:"name"`
	Number     int               `json:"number" yaml:"number"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// toOutput flattens attribute values and hides password hashes.
func toOutput(acc storage.Account) accountOutput {
	out := accountOutput{
		Kind:       acc.Kind.String(),
		Type:       acc.Type.String(),
		Name:       acc.Name,
		Number:     acc.Number,
		Attributes: map[string]string{},
	}
	for k, v := range acc.Attributes {
		switch k {
		case record.KeyPassword, record.KeyPasswordConfirm:
			continue
		case record.KeyShadowLastChange, record.KeyShadowExpire:
			out.Attributes[k] = defaults.DaysToCalendar(values.ToString(v))
		default:
			out.Attributes[k] = values.ToString(v)
		}
	}
	return out
}

func render(w io.Writer, format string, acc accountOutput) error {
	switch format {
	case "json":
		return writeJSON(w, acc)
	case "yaml":
		return yaml.NewEncoder(w).Encode(acc)
	}

	fmt.Fprintf(w, "%s %s (%s, %d)\n", acc.Kind, acc.Name, acc.Type, acc.Number)
	keys := make([]string, 0, len(acc.Attributes))
	for k := range acc.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s:\t%s\n", k, acc.Attributes[k])
	}
	return tw.Flush()
}

func renderList(w io.Writer, format string, accounts []accountOutput) error {
	if accounts == nil {
		accounts = []accountOutput{}
	}
	switch format {
	case "json":
		return writeJSON(w, accounts)
	case "yaml":
		return yaml.NewEncoder(w).Encode(accounts)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tTYPE")
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", acc.Name, acc.Number, acc.Type)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
