package xpost

import (
	"os"
	"strings"
)

// RequireEnv reads the named variables, trimmed of whitespace. Every empty one
// is reported, in the order given, by a single MissingEnvError.
func RequireEnv(provider string, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return nil, MissingEnvError{Provider: provider, Variables: missing}
	}
	return values, nil
}
