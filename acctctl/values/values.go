// Package values holds the small coercion helpers shared by every layer that
// reads attribute values out of a record. Stored attributes arrive as strings,
// numbers, booleans or string lists depending on the backend, so callers ask
// for the shape they need and supply a fallback.
package values

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ToInt converts v to an int. Strings are trimmed and parsed in base 10;
// anything that cannot be converted yields fallback.
func ToInt(v any, fallback int) int {
	switch t := v.(type) {
	case nil:
		return fallback
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint32:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return fallback
		}
		return n
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return fallback
	}
}

// IsInt reports whether v holds, or parses as, an integer.
func IsInt(v any) bool {
	switch t := v.(type) {
	case int, int32, int64, uint32:
		return true
	case string:
		_, err := strconv.Atoi(strings.TrimSpace(t))
		return err == nil
	}
	return false
}

// ToString renders v the way it is written to storage.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

// ToStringList accepts a list or a comma separated string and returns the
// non-empty, trimmed items in their original order.
func ToStringList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		raw = t
	case string:
		raw = strings.Split(t, ",")
	default:
		raw = []string{ToString(t)}
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ToBool converts v to a bool; "1", "yes" and "true" are true.
func ToBool(v any, fallback bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "yes", "true", "y":
			return true
		case "0", "no", "false", "n":
			return false
		}
	}
	return fallback
}

// SplitFullName splits a GECOS full name into the given name (every word
// but the last) and the surname (the last word). A name that still carries
// unresolved % placeholders is left for later substitution and yields two
// empty values.
func SplitFullName(full string) (given, surname string) {
	if strings.Contains(full, "%") {
		return "", ""
	}
	words := strings.Fields(full)
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return "", words[0]
	}
	return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
}

// Uniq returns the sorted set of items.
func Uniq(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Equal compares two attribute values by their storage representation.
func Equal(a, b any) bool {
	la, aList := a.([]string)
	lb, bList := b.([]string)
	if aList || bList {
		if !aList {
			la = ToStringList(a)
		}
		if !bList {
			lb = ToStringList(b)
		}
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if la[i] != lb[i] {
				return false
			}
		}
		return true
	}
	return ToString(a) == ToString(b)
}
