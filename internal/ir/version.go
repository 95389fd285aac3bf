package ir

// Version constants for the IR schema and the composer.
const (
	// IRVersion is the IR schema version recorded with every snapshot.
	IRVersion = "1"

	// ComposerVersion is the modkit composer version.
	ComposerVersion = "0.1.0"
)
