package exitcodes

// Exit codes for volume-sage
// These codes form the operational contract with scripts and operators.
// A missing sweep root is reported but still exits with Success.
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file invalid or missing
	SafetyViolation = 3 // Safety validator refused the requested root
	RuntimeError    = 4 // Runtime error during execution
)
