package ir

// Version constants for the IR encoding and the compiler.
const (
	// IRVersion is the version of the tagged-array encoding.
	IRVersion = "1"

	// CompilerVersion is the nao compiler version.
	CompilerVersion = "0.1.0"
)
