package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RegisterPredicate("test.confirmMatches", func(value any, record map[string]any) bool {
		return value == record["password"]
	})
	RegisterPredicate("test.alwaysFalse", func(value any, record map[string]any) bool {
		return false
	})
}

func TestValidate_Required(t *testing.T) {
	s := Schema{
		"name":  {Type: TypeString, Required: true},
		"tags":  {Type: TypeArray, Required: true},
		"attrs": {Type: TypeObject, Required: true},
		"note":  {Type: TypeString},
	}

	tests := []struct {
		name   string
		record map[string]any
		want   []string
	}{
		{
			name:   "all missing",
			record: map[string]any{},
			want:   []string{"attrs is required", "name is required", "tags is required"},
		},
		{
			name: "empty values count as missing",
			record: map[string]any{
				"name":  "",
				"tags":  []any{},
				"attrs": map[string]any{},
			},
			want: []string{"attrs is required", "name is required", "tags is required"},
		},
		{
			name: "all present",
			record: map[string]any{
				"name":  "pipeline",
				"tags":  []any{"a"},
				"attrs": map[string]any{"k": "v"},
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.record, s))
		})
	}
}

func TestValidate_TypeFailureSkipsValueChecks(t *testing.T) {
	s := Schema{
		"count": {Type: TypeNumber, Min: Float(1), Max: Float(10), Enum: []string{"x"}},
	}

	errs := Validate(map[string]any{"count": "five"}, s)
	assert.Equal(t, []string{"count must be a number"}, errs)
}

func TestValidate_TypeMessages(t *testing.T) {
	s := Schema{
		"a": {Type: TypeArray},
		"b": {Type: TypeBoolean},
		"o": {Type: TypeObject},
		"s": {Type: TypeString},
	}
	errs := Validate(map[string]any{"a": "x", "b": "yes", "o": 3.0, "s": 1.0}, s)
	assert.Equal(t, []string{
		"a must be an array",
		"b must be a boolean",
		"o must be an object",
		"s must be a string",
	}, errs)
}

func TestValidate_LengthAndRange(t *testing.T) {
	s := Schema{
		"code":  {Type: TypeString, MinLength: Int(2), MaxLength: Int(4)},
		"items": {Type: TypeArray, MinLength: Int(1), MaxLength: Int(2)},
		"rate":  {Type: TypeNumber, Min: Float(0), Max: Float(2)},
	}

	t.Run("too small", func(t *testing.T) {
		errs := Validate(map[string]any{"code": "a", "rate": -0.5}, s)
		assert.Equal(t, []string{
			"code must have at least 2 characters",
			"rate must be at least 0",
		}, errs)
	})

	t.Run("too large", func(t *testing.T) {
		errs := Validate(map[string]any{
			"code":  "abcde",
			"items": []any{1, 2, 3},
			"rate":  2.5,
		}, s)
		assert.Equal(t, []string{
			"code must have at most 4 characters",
			"items must have at most 2 items",
			"rate must be at most 2",
		}, errs)
	})

	t.Run("boundaries are inclusive", func(t *testing.T) {
		errs := Validate(map[string]any{"code": "ab", "items": []string{"x", "y"}, "rate": 2}, s)
		assert.Empty(t, errs)
	})
}

func TestValidate_Enum(t *testing.T) {
	s := Schema{
		"method": {Type: TypeString, Enum: []string{"GET", "POST"}},
		"events": {Type: TypeArray, Enum: []string{"create", "delete"}},
	}

	assert.Empty(t, Validate(map[string]any{"method": "GET", "events": []any{"create", "delete"}}, s))

	errs := Validate(map[string]any{"method": "get", "events": []any{"create", "rename"}}, s)
	assert.Equal(t, []string{
		"events must be one of: create, delete",
		"method must be one of: GET, POST",
	}, errs)
}

func TestValidate_Formats(t *testing.T) {
	tests := []struct {
		format  Format
		valid   string
		invalid string
		message string
	}{
		{FormatURL, "https://example.com/hook", "not a url", "v must be a valid URL"},
		{FormatEmail, "ops@example.com", "ops@", "v must be a valid email address"},
		{FormatJSON, `{"a":1}`, `{"a":`, "v must be valid JSON"},
		{FormatRegex, `^a+$`, `(`, "v must be a valid regular expression"},
		{FormatCron, "*/5 * * * *", "* * *", "v must be a valid cron expression"},
		{FormatTime, "09:30", "25:00", "v must be a valid time (HH:MM)"},
		{FormatDatetime, "2025-01-02T15:04:05Z", "2025-01-02", "v must be a valid RFC 3339 datetime"},
		{FormatTimezone, "Europe/Berlin", "Mars/Olympus", "v must be a valid IANA timezone"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			s := Schema{"v": {Type: TypeString, Format: tt.format}}
			assert.Empty(t, Validate(map[string]any{"v": tt.valid}, s))
			assert.Equal(t, []string{tt.message}, Validate(map[string]any{"v": tt.invalid}, s))
		})
	}
}

func TestValidate_CronDescriptor(t *testing.T) {
	assert.True(t, IsCron("@daily"))
	assert.False(t, IsCron("@fortnightly"))
}

func TestValidate_CustomPredicate(t *testing.T) {
	s := Schema{
		"password": {Type: TypeString, Required: true},
		"confirm":  {Type: TypeString, Custom: "test.confirmMatches", Message: "passwords must match"},
	}

	assert.Empty(t, Validate(map[string]any{"password": "secret", "confirm": "secret"}, s))
	assert.Equal(t, []string{"passwords must match"},
		Validate(map[string]any{"password": "secret", "confirm": "other"}, s))
}

func TestValidate_CustomRunsForAbsentField(t *testing.T) {
	s := Schema{
		"fields": {Type: TypeArray, Custom: "test.alwaysFalse", Message: "at least one field is needed"},
	}

	assert.Equal(t, []string{"at least one field is needed"}, Validate(map[string]any{}, s))
}

func TestValidate_CustomRunsAfterTypeFailure(t *testing.T) {
	s := Schema{"x": {Type: TypeNumber, Custom: "test.alwaysFalse"}}

	assert.Equal(t, []string{"x must be a number", "x is invalid"}, Validate(map[string]any{"x": "1"}, s))
}

func TestValidate_UnknownPredicate(t *testing.T) {
	s := Schema{"x": {Custom: "test.missing"}}
	assert.Equal(t, []string{"x uses unknown rule test.missing"}, Validate(map[string]any{}, s))
}

func TestValidate_CollectsAcrossFields(t *testing.T) {
	s := Schema{
		"a": {Type: TypeString, Required: true},
		"b": {Type: TypeNumber, Max: Float(1)},
		"c": {Type: TypeString, Format: FormatURL},
	}
	errs := Validate(map[string]any{"b": 5.0, "c": "nope"}, s)
	assert.Len(t, errs, 3)
}

func TestRegisterPredicate_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		RegisterPredicate("test.alwaysFalse", func(any, map[string]any) bool { return true })
	})
	assert.Panics(t, func() {
		RegisterPredicate("", nil)
	})
	_, ok := lookupPredicate("test.confirmMatches")
	assert.True(t, ok)
}

func TestSchema_JSONRoundTrip(t *testing.T) {
	s := Schema{
		"url": {Type: TypeString, Required: true, Format: FormatURL},
		"n":   {Type: TypeNumber, Min: Float(1), Max: Float(300)},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Schema
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s, decoded)
}

func TestToRecord(t *testing.T) {
	type sample struct {
		Name    string   `json:"name"`
		Timeout int      `json:"timeout"`
		Tags    []string `json:"tags"`
	}

	record, err := ToRecord(sample{Name: "n", Timeout: 30, Tags: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "n", record["name"])
	assert.Equal(t, 30.0, record["timeout"])
	assert.Equal(t, []any{"a"}, record["tags"])
}
