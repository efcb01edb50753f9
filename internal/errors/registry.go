package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (V100-V199)
	// ============================================

	"V100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "vstore looks for vstore.json or vstore.toml in the working directory and its parents.",
	},
	"V101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The config file could not be parsed.",
	},
	"V102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},
	"V103": {
		Category: CategoryConfig,
		Message:  "Unsupported config format",
		Detail:   "Config files must end in .json or .toml.",
	},

	// ============================================
	// Store Errors (V200-V299)
	// ============================================

	"V200": {
		Category: CategoryStore,
		Message:  "Store not found",
	},
	"V201": {
		Category: CategoryStore,
		Message:  "Duplicate store",
		Detail:   "Store names must be unique within a registry.",
	},
	"V202": {
		Category: CategoryStore,
		Message:  "Invalid store declaration",
	},
	"V203": {
		Category: CategoryStore,
		Message:  "Unknown action",
	},
	"V204": {
		Category: CategoryStore,
		Message:  "Action failed",
	},

	// ============================================
	// Transport Errors (V300-V399)
	// ============================================

	"V300": {
		Category: CategoryTransport,
		Message:  "Request failed",
	},
	"V301": {
		Category: CategoryTransport,
		Message:  "No server response",
		Detail:   "The request was sent but no response arrived.",
	},
	"V302": {
		Category: CategoryTransport,
		Message:  "Request setup failed",
	},
	"V303": {
		Category: CategoryTransport,
		Message:  "Request cancelled",
	},

	// ============================================
	// CLI Errors (V400-V499)
	// ============================================

	"V400": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	"V401": {
		Category: CategoryCLI,
		Message:  "Server error",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
