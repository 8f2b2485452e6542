package pyexec

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// Environ builds an interpreter environment from base, then the variables of
// the dotenv file at envFile (skipped when empty), then extra. Later sources
// override earlier ones; the order of base is preserved.
func Environ(base []string, envFile string, extra map[string]string) ([]string, error) {
	overrides := make(map[string]string)

	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}

		maps.Copy(overrides, fileVars)
	}

	maps.Copy(overrides, extra)

	env := make([]string, 0, len(base)+len(overrides))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}

		env = append(env, kv)
	}

	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		env = append(env, key+"="+overrides[key])
	}

	return env, nil
}
