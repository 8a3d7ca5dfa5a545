package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Well-known codes. Use these instead of string literals.
const (
	CodeConfigRead      = "E100"
	CodeConfigParse     = "E101"
	CodeConfigNoSites   = "E102"
	CodeConfigNoPorts   = "E103"
	CodeConfigDupHost   = "E104"
	CodeSiteName        = "E110"
	CodeSiteKind        = "E111"
	CodeSiteDir         = "E112"
	CodeDatabaseName    = "E113"
	CodeThemeMissing    = "E114"
	CodeThemeUndeclared = "E115"
	CodeThemeUnknown    = "E116"
	CodeThemeAssets     = "E117"
	CodeDatabaseOpen    = "E120"
	CodeMigration       = "E121"
	CodeSessionDir      = "E130"
	CodeListen          = "E200"
	CodeTelemetry       = "E201"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E109)
	// ============================================

	CodeConfigRead: {
		Category:   CategoryConfig,
		Message:    "Cannot read config.toml",
		Detail:     "The sites root must contain a config.toml file describing the sites to serve.",
		Suggestion: "Pass --root or set LIGHTLETTER_SITES_ROOT to the directory holding config.toml.",
	},
	CodeConfigParse: {
		Category: CategoryConfig,
		Message:  "Malformed config.toml",
		Detail:   "The configuration file could not be decoded.",
	},
	CodeConfigNoSites: {
		Category:   CategoryConfig,
		Message:    "No sites declared",
		Suggestion: "Add at least one [[site]] table.",
	},
	CodeConfigNoPorts: {
		Category:   CategoryConfig,
		Message:    "No listen ports declared",
		Suggestion: "Set net.port, e.g. port = [8080].",
	},
	CodeConfigDupHost: {
		Category: CategoryConfig,
		Message:  "Host declared by more than one site",
		Detail:   "Every host and alias must belong to exactly one site.",
	},

	// ============================================
	// Site Bootstrap Errors (E110-E129)
	// ============================================

	CodeSiteName: {
		Category:   CategoryBootstrap,
		Message:    "Illegal site name",
		Suggestion: "Site names may only contain letters, digits, '-' and '_'.",
	},
	CodeSiteKind: {
		Category:   CategoryBootstrap,
		Message:    "Unknown site type",
		Suggestion: `Use type = "blog" or type = "static".`,
	},
	CodeSiteDir: {
		Category: CategoryBootstrap,
		Message:  "Cannot create site directory",
	},
	CodeDatabaseName: {
		Category:   CategoryBootstrap,
		Message:    "Illegal database name",
		Suggestion: "Database names must start with a letter or '_' and contain only letters, digits and '_'.",
	},
	CodeThemeMissing: {
		Category:   CategoryBootstrap,
		Message:    "Blog site has no theme",
		Suggestion: "Set theme = \"<name>\" on the site.",
	},
	CodeThemeUndeclared: {
		Category:   CategoryBootstrap,
		Message:    "Theme not declared",
		Suggestion: "Declare the theme directory under [resource.themes].",
	},
	CodeThemeUnknown: {
		Category: CategoryBootstrap,
		Message:  "Theme not compiled into this binary",
	},
	CodeThemeAssets: {
		Category:   CategoryBootstrap,
		Message:    "Cannot load theme assets",
		Suggestion: "Check the directory declared under [resource.themes] and its theme.yaml.",
	},
	CodeDatabaseOpen: {
		Category: CategoryStorage,
		Message:  "Cannot open site database",
	},
	CodeMigration: {
		Category: CategoryStorage,
		Message:  "Schema migration failed",
		Detail:   "The site database could not be brought to the current schema version. The server does not start with an unmigrated schema.",
	},
	CodeSessionDir: {
		Category: CategoryBootstrap,
		Message:  "Cannot create session directory",
	},

	// ============================================
	// Runtime Errors (E200-E299)
	// ============================================

	CodeListen: {
		Category: CategoryRuntime,
		Message:  "Cannot listen on address",
	},
	CodeTelemetry: {
		Category: CategoryRuntime,
		Message:  "Cannot initialise tracing exporter",
	},
}

// Codes returns every registered code in ascending order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for c := range registry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
