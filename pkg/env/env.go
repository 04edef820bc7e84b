package env

import (
	"os"
	"strings"
)

// Get returns the environment value for key, or fallback when unset/blank.
func Get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
