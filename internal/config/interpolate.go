package config

import (
	"log/slog"
	"os"
	"regexp"
)

// varPattern matches ${NAME} and bare $NAME tokens in config string values.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// interpolateString substitutes every ${NAME}/$NAME occurrence with the
// named environment variable's value. A missing variable substitutes the
// empty string and is logged at debug, per spec §4.2 step 3.
func interpolateString(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := varPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		val, ok := os.LookupEnv(name)
		if !ok {
			slog.Debug("config: env var not set, substituting empty string", "var", name)
			return ""
		}
		return val
	})
}

// interpolateTree walks an arbitrary decoded YAML value (map[string]any,
// []any, or scalar) and substitutes environment variables in every string
// leaf, returning a new tree.
func interpolateTree(v any) any {
	switch t := v.(type) {
	case string:
		return interpolateString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = interpolateTree(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = interpolateTree(val)
		}
		return out
	default:
		return v
	}
}

func interpolateFragment(f *Fragment) *Fragment {
	if f == nil {
		return nil
	}
	interpolated := interpolateTree(f.Raw).(map[string]any)
	return &Fragment{Type: f.Type, Raw: interpolated}
}
