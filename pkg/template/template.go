// Package template resolves dotted-path lookups and {{field}} interpolation
// against a trigger's context payload.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Resolve splits path on '.' and walks nested maps. It returns nil when any
// segment is absent; a missing path is not an error.
func Resolve(context map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = context

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = node[segment]
		if !ok {
			return nil
		}
	}

	return current
}

// Interpolate replaces every {{field}} occurrence with the stringified
// resolved value, substituting an empty string when the value is absent.
func Interpolate(input string, context map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value := Resolve(context, path)
		if value == nil {
			return ""
		}

		return Stringify(value)
	})
}

// InterpolateParams interpolates every string-valued parameter against the
// context. Non-string values pass through unchanged.
func InterpolateParams(params map[string]any, context map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}

	resolved := make(map[string]any, len(params))

	for key, value := range params {
		if str, ok := value.(string); ok {
			resolved[key] = Interpolate(str, context)

			continue
		}

		resolved[key] = value
	}

	return resolved
}

// Stringify renders a resolved value the way it appears in notification text:
// integral floats without a trailing ".0", everything else via fmt.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}

		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
