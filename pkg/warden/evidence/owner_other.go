//go:build !unix

package evidence

// newSystemLookup returns the ownership lookup for platforms without a
// usable file-ownership query. Ownership falls back to the identity of
// the running process.
func newSystemLookup() OwnerLookup {
	return ProcessIdentity{}
}
