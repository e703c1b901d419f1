package env

import (
	"os"
	"strings"
)

// Str returns the value of the environment variable key, or fallback if unset/empty.
func Str(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// Bool returns true if the environment variable key is set to "true", "1",
// or "yes" (case-insensitively), fallback if it is unset or empty, and
// false for any other value.
func Bool(key string, fallback bool) bool {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "":
		return fallback
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
