package detect

import (
	"bytes"
)

// Result is the outcome of classifying a file's leading bytes.
type Result struct {
	// ContentType is the best-match content type identifier, or
	// ContentTypeUnknown when no pattern matched.
	ContentType string

	// Pattern is the byte pattern that matched, nil for unknown.
	Pattern []byte
}

// Unknown reports whether the classification found no match.
func (r Result) Unknown() bool {
	return r.ContentType == ContentTypeUnknown
}

// Classify matches the file's leading bytes against the table's patterns
// and returns the content type of the first match in priority order.
// Files shorter than a pattern cannot match it; an empty header always
// classifies as unknown.
func (t *Table) Classify(header []byte) Result {
	if len(header) == 0 {
		return Result{ContentType: ContentTypeUnknown}
	}

	for _, entry := range t.patterns {
		if entry.offset >= len(header) {
			continue
		}
		if bytes.HasPrefix(header[entry.offset:], entry.bytes) {
			return Result{ContentType: entry.contentType, Pattern: entry.bytes}
		}
	}

	return Result{ContentType: ContentTypeUnknown}
}
