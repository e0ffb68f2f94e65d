package utils

import "strings"

// SplitCSV splits comma-separated values, trimming spaces and dropping empty items.
// Every element of values is split, so it accepts both repeated flags and a single
// comma-separated string.
func SplitCSV(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
