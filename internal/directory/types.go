// Package directory parses the free-text phone directory and exposes the
// canonical list of contacts the assistant is allowed to message. The
// directory document is the sole source of authorization truth.
package directory

// Contact is a single entry of the phone directory. Immutable after parsing.
type Contact struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	// OriginalLine retains the raw source text for diagnostics.
	OriginalLine string `json:"original_line,omitempty"`
}
