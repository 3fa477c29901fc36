package quarantine

import "time"

// Mode is how the source file entered quarantine.
type Mode string

const (
	// ModeMove relocates the file; the original path is left empty.
	ModeMove Mode = "moved"

	// ModeCopy preserves the original and quarantines a copy.
	ModeCopy Mode = "copied"
)

// IncidentRecord is the immutable metadata artifact written alongside a
// quarantined file. Field names follow the SIEM event schema so records
// and events correlate directly.
type IncidentRecord struct {
	// ID identifies the incident and names its quarantine directory.
	ID string `json:"id"`

	// FilePath is the original location of the file.
	FilePath string `json:"filepath"`

	// FileName is the base name of the file.
	FileName string `json:"filename"`

	// ClaimedExtension is the normalized extension the file declared.
	ClaimedExtension string `json:"claimed_extension"`

	// ActualType is the content type the classifier determined.
	ActualType string `json:"actual_type"`

	// SHA256 is the content hash, empty when hashing is disabled.
	SHA256 string `json:"file_hash_sha256,omitempty"`

	// Owner is the owning account of the file.
	Owner string `json:"file_owner"`

	// Size is the file size in bytes before relocation.
	Size int64 `json:"file_size_bytes"`

	// MagicHex is the leading bytes of the file as a hex string.
	MagicHex string `json:"magic_number_hex"`

	// DetectedAt is when the mismatch was detected, UTC.
	DetectedAt time.Time `json:"detection_time"`

	// Hostname and Username identify where the detection ran.
	Hostname string `json:"hostname"`
	Username string `json:"username"`

	// QuarantinePath is where the file now lives inside the incident
	// directory.
	QuarantinePath string `json:"quarantine_path"`

	// Mode records whether the file was moved or copied.
	Mode Mode `json:"mode"`
}
