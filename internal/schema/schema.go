// Package schema implements the declarative field-rule validator used for
// node and trigger configurations.
//
// A Schema maps field names to FieldRules. Rules are plain data and serialize
// to JSON; custom checks are referenced by the name of a registered
// Predicate rather than stored as closures, so a schema can be shipped to a
// client or rebuilt from persisted JSON.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// FieldType is the JSON type a field must have.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Format names a structural string check.
type Format string

const (
	FormatURL      Format = "url"
	FormatEmail    Format = "email"
	FormatJSON     Format = "json"
	FormatRegex    Format = "regex"
	FormatCron     Format = "cron"
	FormatTime     Format = "time"
	FormatDatetime Format = "datetime"
	FormatTimezone Format = "timezone"
)

// FieldRule describes the constraints on a single field.
type FieldRule struct {
	Type      FieldType `json:"type,omitempty"`
	Required  bool      `json:"required,omitempty"`
	MinLength *int      `json:"minLength,omitempty"`
	MaxLength *int      `json:"maxLength,omitempty"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
	Enum      []string  `json:"enum,omitempty"`
	Format    Format    `json:"format,omitempty"`
	// Custom is the name of a registered Predicate.
	Custom string `json:"custom,omitempty"`
	// Message is reported when the Custom predicate fails.
	Message string `json:"message,omitempty"`
}

// Schema maps field names to their rules.
type Schema map[string]FieldRule

// Fields returns the schema's field names in sorted order.
func (s Schema) Fields() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Int returns a pointer to n, for MinLength and MaxLength.
func Int(n int) *int { return &n }

// Float returns a pointer to f, for Min and Max.
func Float(f float64) *float64 { return &f }

// Validate checks record against every rule in s and returns all failures.
//
// Fields are visited in sorted order so the result is deterministic. A field
// that fails its type check skips the remaining value checks, but its custom
// predicate still runs. Predicates also run for absent fields and receive
// the whole record, which is how cross-field constraints are expressed.
func Validate(record map[string]any, s Schema) []string {
	errs := []string{}
	for _, field := range s.Fields() {
		errs = append(errs, validateField(field, record[field], record, s[field])...)
	}
	return errs
}

func validateField(field string, value any, record map[string]any, rule FieldRule) []string {
	var errs []string

	if isEmpty(value) {
		if rule.Required {
			errs = append(errs, fmt.Sprintf("%s is required", field))
		}
	} else if msg, ok := checkType(field, value, rule.Type); !ok {
		errs = append(errs, msg)
	} else {
		errs = append(errs, checkValue(field, value, rule)...)
	}

	if rule.Custom != "" {
		pred, ok := lookupPredicate(rule.Custom)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("%s uses unknown rule %s", field, rule.Custom))
		case !pred(value, record):
			msg := rule.Message
			if msg == "" {
				msg = fmt.Sprintf("%s is invalid", field)
			}
			errs = append(errs, msg)
		}
	}

	return errs
}

func checkValue(field string, value any, rule FieldRule) []string {
	var errs []string

	if rule.MinLength != nil || rule.MaxLength != nil {
		if n, unit, ok := length(value); ok {
			if rule.MinLength != nil && n < *rule.MinLength {
				errs = append(errs, fmt.Sprintf("%s must have at least %d %s", field, *rule.MinLength, unit))
			}
			if rule.MaxLength != nil && n > *rule.MaxLength {
				errs = append(errs, fmt.Sprintf("%s must have at most %d %s", field, *rule.MaxLength, unit))
			}
		}
	}

	if rule.Min != nil || rule.Max != nil {
		if f, ok := toFloat(value); ok {
			if rule.Min != nil && f < *rule.Min {
				errs = append(errs, fmt.Sprintf("%s must be at least %s", field, formatFloat(*rule.Min)))
			}
			if rule.Max != nil && f > *rule.Max {
				errs = append(errs, fmt.Sprintf("%s must be at most %s", field, formatFloat(*rule.Max)))
			}
		}
	}

	if len(rule.Enum) > 0 && !inEnum(value, rule.Enum) {
		errs = append(errs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(rule.Enum, ", ")))
	}

	if rule.Format != "" {
		if s, ok := value.(string); ok {
			if msg := checkFormat(field, s, rule.Format); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	return errs
}

// isEmpty treats nil, "", empty arrays and empty objects as absent.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func checkType(field string, value any, want FieldType) (string, bool) {
	var ok bool
	switch want {
	case "":
		return "", true
	case TypeString:
		_, ok = value.(string)
	case TypeNumber:
		_, ok = toFloat(value)
	case TypeBoolean:
		_, ok = value.(bool)
	case TypeArray:
		k := reflect.ValueOf(value).Kind()
		ok = k == reflect.Slice || k == reflect.Array
	case TypeObject:
		ok = reflect.ValueOf(value).Kind() == reflect.Map
	default:
		return fmt.Sprintf("%s has unknown type %s", field, want), false
	}
	if ok {
		return "", true
	}
	article := "a"
	if want == TypeArray || want == TypeObject {
		article = "an"
	}
	return fmt.Sprintf("%s must be %s %s", field, article, want), false
}

// TypeError reports the type failure of value against want, or "" when the
// value has the wanted type. Unlike Validate it also reports empty values.
func TypeError(field string, value any, want FieldType) string {
	msg, _ := checkType(field, value, want)
	return msg
}

func length(value any) (int, string, bool) {
	if s, ok := value.(string); ok {
		return len([]rune(s)), "characters", true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), "items", true
	}
	return 0, "", false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func inEnum(value any, enum []string) bool {
	rv := reflect.ValueOf(value)
	if _, isString := value.(string); !isString && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		for i := 0; i < rv.Len(); i++ {
			if !contains(enum, rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	return contains(enum, value)
}

func contains(enum []string, value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, allowed := range enum {
		if s == allowed {
			return true
		}
	}
	return false
}

// ToRecord converts a struct into the generic map form Validate works on,
// using the struct's JSON field names.
func ToRecord(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	record := map[string]any{}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return record, nil
}
