package config

// Default configuration values.
const (
	// DefaultMaxFileSize is the largest file the detector will classify.
	// Anything bigger is skipped entirely to keep event handling cheap.
	DefaultMaxFileSize = "100MB"

	// DefaultHeaderBytes is how many leading bytes are recorded as
	// forensic hex in events and incident records.
	DefaultHeaderBytes = 32

	// DefaultSettleWindowSeconds is how long a path is considered
	// recently-checked; repeated events inside the window are suppressed.
	DefaultSettleWindowSeconds = 5

	// DefaultRetentionDays is how long incident records are kept before
	// cleanup removes them.
	DefaultRetentionDays = 90
)

// DefaultExcludedPaths are path prefixes never inspected.
var DefaultExcludedPaths = []string{
	"/proc",
	"/sys",
	"/dev",
	"/run",
	"/snap",
}

// DefaultSkipExtensions are extensions checked by declaration only; they
// carry no reliable magic number.
var DefaultSkipExtensions = []string{"txt"}

// DefaultAutoDetectDirs are the user directories watched when no explicit
// watch paths are configured, relative to the home directory.
var DefaultAutoDetectDirs = []string{"Downloads", "Desktop", "Documents"}
