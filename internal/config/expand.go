package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// expandEnv resolves $VAR and ${VAR} references in the value of field.
// "$$" yields a literal "$". Every unset variable is reported at once,
// naming the field that referenced it.
func expandEnv(field, value string) (string, error) {
	var missing []string
	out := os.Expand(value, func(name string) string {
		if name == "$" {
			return "$"
		}
		v, ok := os.LookupEnv(name)
		if !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s references unset environment variables: %s",
			ErrInvalidConfig, field, strings.Join(missing, ", "))
	}
	return out, nil
}
