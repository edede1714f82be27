// Package env reads process environment variables with fallbacks, for the
// few call sites that run before config parsing (logger bootstrap).
package env

import "os"

// Get returns the named variable, or fallback when unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
