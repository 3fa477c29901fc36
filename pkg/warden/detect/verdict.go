package detect

import (
	"path/filepath"
	"strings"
)

// Verdict is the outcome of comparing a file's declared extension against
// its classified content type.
type Verdict int

const (
	// VerdictMatch means the declared extension is accepted for the
	// classified content type.
	VerdictMatch Verdict = iota

	// VerdictMismatch means the content was classified and the declared
	// extension is not accepted for it. This is the only verdict that
	// triggers evidence collection and quarantine.
	VerdictMismatch

	// VerdictUnknown means the content matched no registered signature.
	// A mismatch cannot be asserted without a classification.
	VerdictUnknown
)

// String returns the verdict name as used in logs and incident records.
func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "MATCH"
	case VerdictMismatch:
		return "MISMATCH"
	case VerdictUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// NormalizeExtension lowercases an extension and strips the leading dot.
// An empty result means the file declares no extension.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtensionOf returns the normalized declared extension of a path.
// Dotfiles like .bashrc declare no extension.
func ExtensionOf(path string) string {
	ext := filepath.Ext(path)
	if ext == filepath.Base(path) {
		return ""
	}
	return NormalizeExtension(ext)
}

// Evaluate derives a verdict from a declared extension and a
// classification result. The extension must already be normalized.
func (t *Table) Evaluate(claimedExt string, res Result) Verdict {
	if res.Unknown() {
		return VerdictUnknown
	}
	if t.Accepts(res.ContentType, claimedExt) {
		return VerdictMatch
	}
	return VerdictMismatch
}
