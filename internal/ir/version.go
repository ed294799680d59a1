package ir

// Version constants for the IR record schema and the generator.
const (
	// RecordVersion is the schema version of embedded IR records.
	// Bump it when the JSON shape of any node changes.
	RecordVersion = "1"

	// GeneratorVersion is the kotars generator version.
	GeneratorVersion = "0.1.0"
)
