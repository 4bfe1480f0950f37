// Package config loads skylink.yaml, the defaults file for skylink serve.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config file body.
//
// ${NAME} becomes the variable's value. ${NAME:-fallback} becomes the value,
// or fallback when the variable is unset or empty. A reference to an unset
// variable with no fallback becomes the empty string; required values then
// fail validation.
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}
