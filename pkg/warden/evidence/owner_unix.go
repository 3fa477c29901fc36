//go:build unix

package evidence

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// newSystemLookup returns the Unix ownership lookup.
func newSystemLookup() OwnerLookup {
	return unixLookup{}
}

// unixLookup resolves file ownership through the stat UID.
type unixLookup struct{}

// Owner returns the owner's username for a file.
// Falls back to the UID string if the name cannot be resolved, and to the
// process identity if no stat information is available.
func (unixLookup) Owner(_ string, info os.FileInfo) string {
	if info == nil {
		return ProcessIdentity{}.Owner("", nil)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ProcessIdentity{}.Owner("", nil)
	}

	uid := strconv.FormatUint(uint64(stat.Uid), 10)
	if u, err := user.LookupId(uid); err == nil {
		return u.Username
	}
	return uid
}
