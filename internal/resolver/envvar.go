package resolver

import "strings"

// EnvPrefix marks process environment variables that override config options
const EnvPrefix = "GRIDCFG_OPT_"

// PathToEnvVar converts a config path (dot-notation) to its override variable name.
// e.g., "max_hours.H2" -> "GRIDCFG_OPT_MAX_HOURS_H2"
func PathToEnvVar(path string) string {
	if path == "" {
		return ""
	}
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}
