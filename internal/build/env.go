package build

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"github.com/joho/godotenv"
)

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// EnvLookup returns a LookupFunc backed by base with the given dotenv files as
// fallback. base wins, as the process environment does with godotenv.Load,
// and nothing is written back to it. A nil base means os.LookupEnv. Missing
// files are skipped. The files are read once per call, so callers that want
// edits picked up call EnvLookup again.
func EnvLookup(base LookupFunc, log *slog.Logger, files ...string) (LookupFunc, error) {
	if base == nil {
		base = os.LookupEnv
	}
	if log == nil {
		log = slog.Default()
	}

	values := make(map[string]string)
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug("env file not found, skipping", slog.String("file", f))
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", f, err)
		}
		for k, v := range vars {
			if _, set := values[k]; !set {
				values[k] = v
			}
		}
		log.Debug("env file loaded", slog.String("file", f), slog.Int("vars", len(vars)))
	}
	if len(values) == 0 {
		return base, nil
	}

	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

// resolvePublic builds the public runtime config. Env-backed keys take the
// variable's value, or nil when it is unset, even if the same key also has a
// static value. Missing variables are reported but never fail the build.
func resolvePublic(rc RuntimeConfig, lookup LookupFunc) (map[string]any, []string) {
	public := make(map[string]any, len(rc.Public)+len(rc.PublicEnv))
	for k, v := range rc.Public {
		public[k] = deepCopyValue(v)
	}

	var missing []string
	for key, envName := range rc.PublicEnv {
		v, ok := lookup(envName)
		if !ok {
			missing = append(missing, envName)
			public[key] = nil
			continue
		}
		public[key] = v
	}
	sort.Strings(missing)
	return public, missing
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopyValue(vv)
		}
		return out
	default:
		return v
	}
}
