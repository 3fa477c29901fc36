// Package evidence gathers forensic details for a detected mismatch:
// content hash, file ownership, size, and the literal magic bytes.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// HashUnavailable is recorded when the content hash could not be computed,
// typically because the file vanished mid-read. The incident still stands.
const HashUnavailable = "unavailable"

// Evidence holds the forensic details collected for one mismatched file.
type Evidence struct {
	// SHA256 is the content hash in hex, empty when hashing is disabled,
	// HashUnavailable when computation failed.
	SHA256 string `json:"file_hash_sha256,omitempty"`

	// Owner is the owning account, or the identity of the running
	// process when ownership could not be resolved.
	Owner string `json:"file_owner"`

	// Size is the file size in bytes at collection time.
	Size int64 `json:"file_size_bytes"`

	// ModTime is the file's last modification time.
	ModTime time.Time `json:"mod_time"`

	// HeaderHex is the leading bytes of the file as a hex string, for
	// forensic display of the matched or mismatched magic number.
	HeaderHex string `json:"magic_number_hex"`
}

// Collector gathers evidence for mismatched files. The owner lookup
// capability is selected once at construction, not branched per event.
type Collector struct {
	hashEnabled bool
	owner       OwnerLookup
}

// NewCollector creates a Collector. When hashing is disabled the SHA256
// field stays empty; owner decides how ownership is resolved.
func NewCollector(hashEnabled bool, owner OwnerLookup) *Collector {
	return &Collector{hashEnabled: hashEnabled, owner: owner}
}

// Collect gathers evidence for the file at path. header is the already
// read leading bytes. Failures degrade individual fields rather than
// aborting: an incident with partial evidence beats no incident.
func (c *Collector) Collect(path string, header []byte) Evidence {
	ev := Evidence{
		HeaderHex: hex.EncodeToString(header),
	}

	info, err := os.Stat(path)
	if err == nil {
		ev.Size = info.Size()
		ev.ModTime = info.ModTime()
	}

	ev.Owner = c.owner.Owner(path, info)

	if c.hashEnabled {
		sum, err := HashFile(path)
		if err != nil {
			ev.SHA256 = HashUnavailable
		} else {
			ev.SHA256 = sum
		}
	}

	return ev
}

// HashFile computes the SHA-256 of the file's full content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
