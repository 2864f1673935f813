package nodes

import (
	"strconv"

	"pipeline-hub/internal/schema"
)

// Predicates registered here operate on the generic record form produced by
// schema.ToRecord: numbers are float64, arrays are []any, objects are
// map[string]any.

func str(v any) string {
	s, _ := v.(string)
	return s
}

func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func items(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, _ := item.(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		out = append(out, m)
	}
	return out
}

// requiredWhen returns a predicate that demands a non-blank value whenever
// record[field] equals want.
func requiredWhen(field, want string) schema.Predicate {
	return func(value any, record map[string]any) bool {
		if str(record[field]) != want {
			return true
		}
		return !blank(value)
	}
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func allEmails(value any) bool {
	list, _ := value.([]any)
	for _, item := range list {
		if s, ok := item.(string); !ok || !schema.IsEmail(s) {
			return false
		}
	}
	return true
}
