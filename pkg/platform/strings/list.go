// Package strings parses list-valued configuration.
package strings

import "strings"

// SplitList splits a comma-separated value, trims each item and drops empty
// and repeated items. Order of first occurrence is kept.
func SplitList(raw string) []string {
	return splitUnique(raw, func(s string) string { return s })
}

// SplitAddresses is SplitList for email addresses: duplicates are detected
// case-insensitively and the first spelling wins.
func SplitAddresses(raw string) []string {
	return splitUnique(raw, strings.ToLower)
}

func splitUnique(raw string, key func(string) string) []string {
	var out []string
	seen := map[string]bool{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" || seen[key(item)] {
			continue
		}
		seen[key(item)] = true
		out = append(out, item)
	}
	return out
}
