package config

// BytecodeFileExt is the recognized bytecode file extension
const BytecodeFileExt = ".vmbc"

// FormatVersion is the bytecode document version this build understands.
// Loading a document with a different version warns but does not fail.
const FormatVersion = "1.0.0"

// DefaultRegisterCount is the register file size of the outermost frame.
// Callee frames are sized to the callee's declared register count.
const DefaultRegisterCount = 256

// MaxFrameCount caps call stack depth to prevent runaway recursion
const MaxFrameCount = 4096

// DefaultDAPPort is the TCP port the debug server listens on when none is given
const DefaultDAPPort = 4711

// ConfigFileName is the optional runtime configuration file searched for
// in the working directory
const ConfigFileName = "velox.yaml"

// Exit codes for the standalone binary
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)
