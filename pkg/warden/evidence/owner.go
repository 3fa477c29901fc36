package evidence

import (
	"os"
	"os/user"
)

// OwnerLookup resolves the owning account of a file. Two implementations
// exist: the platform lookup, and a fallback that reports the identity of
// the running process. The choice is made once at startup.
type OwnerLookup interface {
	// Owner returns the owning account of the file. info may be nil when
	// the stat failed; implementations must still return something usable.
	Owner(path string, info os.FileInfo) string
}

// NewOwnerLookup selects the owner lookup capability. When disabled, or
// when the platform offers no ownership query, file ownership falls back
// to the identity of the running process.
func NewOwnerLookup(enabled bool) OwnerLookup {
	if !enabled {
		return ProcessIdentity{}
	}
	return newSystemLookup()
}

// ProcessIdentity reports the running process's user for every file.
type ProcessIdentity struct{}

// Owner returns the current user's name, or "unknown" if even that fails.
func (ProcessIdentity) Owner(_ string, _ os.FileInfo) string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
