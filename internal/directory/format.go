package directory

import (
	"sort"
	"strings"
)

// FormatContactList renders contacts for operator-facing error messages.
func FormatContactList(contacts []Contact) string {
	if len(contacts) == 0 {
		return "No contacts available. Please check the phone directory document."
	}

	sorted := append([]Contact(nil), contacts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var b strings.Builder
	b.WriteString("Available contacts:")
	for _, c := range sorted {
		b.WriteString("\n  - ")
		b.WriteString(c.Name)
		b.WriteString(": ")
		b.WriteString(c.PhoneNumber)
	}
	return b.String()
}
