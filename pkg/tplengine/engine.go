// Package tplengine implements the prompt template interpreter: each
// `{{ dotted.path }}` placeholder is replaced by the value looked up in the
// render context. The language is deliberately narrow -- split-on-dot lookup,
// JSON stringification for non-scalars, empty string for missing or nil
// paths -- and must stay that way; task authors depend on rendering never
// failing.
package tplengine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Render substitutes every placeholder in template with its value from ctx.
// Lookups never fail: unknown or nil paths render as the empty string.
func Render(template string, ctx map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		expr := placeholderRe.FindStringSubmatch(match)[1]
		return Stringify(Lookup(ctx, strings.TrimSpace(expr)))
	})
}

// Lookup walks a dotted path through nested maps. Any step through a
// non-map value, or a missing key, yields nil.
func Lookup(ctx map[string]any, path string) any {
	var current any = ctx
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// Stringify converts a looked-up value to its template representation:
// nil -> "", strings pass through, numbers and booleans format naturally,
// everything else is JSON-encoded.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// HasPlaceholders reports whether the string contains any template
// placeholder.
func HasPlaceholders(s string) bool {
	return placeholderRe.MatchString(s)
}
