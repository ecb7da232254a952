package errors

// Process exit statuses.
const (
	ExitFailure        = 1
	ExitPortNotNumeric = 2
	ExitPortZero       = 3
	ExitPortRange      = 4
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	Exit     int
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Invalid minirest.json",
		Detail:   "The minirest.json configuration file is malformed.",
		Exit:     ExitFailure,
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "The configuration file given with --config does not exist.",
		Exit:     ExitFailure,
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid buffer limits",
		Detail:   "Buffer sizes must be positive and the maximum message size must not exceed 16MB.",
		Exit:     ExitFailure,
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid timeout",
		Detail:   "Timeouts must be Go durations such as \"5s\" or \"250ms\" and must not be negative.",
		Exit:     ExitFailure,
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "The log level must be one of debug, info, warn or error.",
		Exit:     ExitFailure,
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid log format",
		Detail:   "The log format must be text or json.",
		Exit:     ExitFailure,
	},

	// ============================================
	// CLI Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryCLI,
		Message:  "Invalid usage",
		Detail:   "The command expects exactly one argument: the port to listen on.",
		Exit:     ExitFailure,
	},
	"E201": {
		Category: CategoryCLI,
		Message:  "Port is not a number",
		Detail:   "The port must be a decimal number.",
		Exit:     ExitPortNotNumeric,
	},
	"E202": {
		Category: CategoryCLI,
		Message:  "Port must not be zero",
		Detail:   "Port 0 would bind a random port.",
		Exit:     ExitPortZero,
	},
	"E203": {
		Category: CategoryCLI,
		Message:  "Port out of range",
		Detail:   "The port must be between 1 and 65535.",
		Exit:     ExitPortRange,
	},
	"E204": {
		Category: CategoryCLI,
		Message:  "Cannot listen",
		Detail:   "The server could not bind its address. Another process may be using the port.",
		Exit:     ExitFailure,
	},
	"E205": {
		Category: CategoryCLI,
		Message:  "Server stopped with an error",
		Detail:   "The connection loop ended unexpectedly.",
		Exit:     ExitFailure,
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
