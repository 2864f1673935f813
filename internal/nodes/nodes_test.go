package nodes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-hub/internal/common/errors"
)

func mustNew(t *testing.T, typ, raw string) Config {
	t.Helper()
	cfg, err := New(typ, json.RawMessage(raw))
	require.NoError(t, err)
	return cfg
}

func TestRegistry(t *testing.T) {
	types := Types()
	assert.Len(t, types, 31)
	assert.IsIncreasing(t, types)

	for _, typ := range types {
		t.Run(typ, func(t *testing.T) {
			cfg, err := Default(typ)
			require.NoError(t, err)
			assert.Equal(t, typ, cfg.Type())
			assert.NotEmpty(t, cfg.Schema())
			assert.NotEmpty(t, cfg.Summary())

			d, err := Describe(typ)
			require.NoError(t, err)
			assert.Equal(t, cfg.Category(), d.Category)
			assert.NotEmpty(t, d.Label)

			// every schema field must exist on the JSON form of the config
			data, err := json.Marshal(cfg)
			require.NoError(t, err)
			var record map[string]any
			require.NoError(t, json.Unmarshal(data, &record))
			for field := range cfg.Schema() {
				if field == "dayOfWeek" || field == "dayOfMonth" {
					continue
				}
				assert.Contains(t, record, field)
			}
		})
	}
}

func TestCatalog_OrderedByCategory(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, 31)
	assert.Equal(t, CategoryInput, catalog[0].Category)
	assert.Equal(t, CategoryOutput, catalog[len(catalog)-1].Category)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("teleport", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = Describe("teleport")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.False(t, IsKnown("teleport"))
}

func TestNew_InvalidJSON(t *testing.T) {
	for _, raw := range []string{`[1, 2]`, `"text"`, `{"url": }`} {
		_, err := New("http_request", json.RawMessage(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	}
}

func TestNew_MistypedFieldFailsValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "cleared number",
			raw:  `{"url": "https://x.io", "timeout": ""}`,
			want: []string{"timeout must be a number"},
		},
		{
			name: "text in number",
			raw:  `{"url": "https://x.io", "timeout": "soon"}`,
			want: []string{"timeout must be a number"},
		},
		{
			name: "number in string",
			raw:  `{"url": "https://x.io", "method": 7}`,
			want: []string{"method must be a string"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustNew(t, "http_request", tt.raw)
			assert.Equal(t, "http_request", cfg.Type())
			assert.Equal(t, tt.want, cfg.Validate())
		})
	}
}

func TestNew_MistypedFieldRoundTrips(t *testing.T) {
	cfg := mustNew(t, "http_request", `{"url": "https://x.io", "timeout": "", "method": "POST"}`)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "", record["timeout"])
	assert.Equal(t, "POST", record["method"])
	assert.Equal(t, "https://x.io", record["url"])
	assert.Equal(t, "JSON", record["responseType"], "defaults still apply")

	again, err := New("http_request", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"timeout must be a number"}, again.Validate())
}

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := mustNew(t, "http_request", `{"url": "https://api.example.com"}`)
	req := cfg.(*HTTPRequest)

	assert.Equal(t, "https://api.example.com", req.URL)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, 30, req.Timeout)
	assert.Equal(t, "JSON", req.ResponseType)
	assert.NotNil(t, req.Headers)
}

func TestNew_OutOfEnumOnlyFailsValidation(t *testing.T) {
	cfg := mustNew(t, "http_request", `{"url": "https://api.example.com", "method": "TRACE"}`)
	assert.Equal(t, []string{"method must be one of: GET, POST, PUT, PATCH, DELETE"}, cfg.Validate())
}

func TestDefaultsAreIndependent(t *testing.T) {
	a := mustNew(t, "http_request", `{"headers": {"X-A": "1"}}`).(*HTTPRequest)
	b := mustNew(t, "http_request", `{}`).(*HTTPRequest)

	assert.Len(t, a.Headers, 1)
	assert.Empty(t, b.Headers)
}

func TestDeduplicate_FieldScope(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"full scope needs no fields", `{"scope": "FULL"}`, []string{}},
		{"field scope without fields", `{"scope": "FIELD", "fields": []}`, []string{"at least one field is required when scope is FIELD"}},
		{"field scope with a field", `{"scope": "FIELD", "fields": ["email"]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustNew(t, "deduplicate", tt.raw).Validate())
		})
	}
}

func TestValidate_Variants(t *testing.T) {
	tests := []struct {
		typ  string
		raw  string
		want []string
	}{
		{"file_watch", `{}`, []string{"path is required"}},
		{"file_watch", `{"path": "/data", "events": ["create", "rename"], "pollInterval": 0}`, []string{
			"events must be one of: create, modify, delete",
			"pollInterval must be at least 1",
		}},
		{"manual_input", `{"inputType": "JSON", "defaultValue": "{bad"}`, []string{"defaultValue must match the input type"}},
		{"manual_input", `{"inputType": "NUMBER", "defaultValue": "42.5"}`, []string{}},
		{"webhook", `{"secret": "short"}`, []string{"secret must have at least 8 characters"}},
		{"http_request", `{}`, []string{"url is required"}},
		{"http_request", `{"url": "https://x.io", "body": "{}"}`, []string{"body is not allowed for GET or DELETE requests"}},
		{"http_request", `{"url": "https://x.io", "method": "POST", "body": "{}", "timeout": 301}`, []string{"timeout must be at most 300"}},
		{"ai_processor", `{"model": ""}`, []string{"model is required", "prompt is required"}},
		{"ai_processor", `{"prompt": "hi", "temperature": 2.5}`, []string{"temperature must be at most 2"}},
		{"string_builder", `{"parts": [{"type": "TEXT", "value": "a"}, {"type": "OTHER", "value": "b"}]}`, []string{
			"every part needs a value and a type of TEXT or FIELD",
		}},
		{"filter", `{"conditions": [{"field": "a", "operator": "EXISTS"}]}`, []string{}},
		{"filter", `{"conditions": [{"field": "a", "operator": "EQUALS"}]}`, []string{
			"every condition needs a field, a valid operator and a value",
		}},
		{"switch", `{"field": "s", "cases": [{"value": 1, "output": "a"}, {"value": 2, "output": "a"}]}`, []string{
			"case outputs must be non-empty and unique",
		}},
		{"url_builder", `{"baseUrl": "nope"}`, []string{"baseUrl must be a valid URL"}},
		{"until_loop", `{"conditionField": "done", "maxIterations": 0}`, []string{"maxIterations must be at least 1"}},
		{"condition", `{"field": "a"}`, []string{"value is required unless operator is EXISTS or NOT_EXISTS"}},
		{"condition", `{"field": "a", "operator": "NOT_EXISTS"}`, []string{}},
		{"join", `{"leftKey": "id"}`, []string{"rightKey is required"}},
		{"format", `{"format": "TEXT"}`, []string{"template is required when format is TEXT"}},
		{"lookup", `{"keyField": "id"}`, []string{"table must have at least one entry when source is STATIC"}},
		{"lookup", `{"keyField": "id", "source": "API"}`, []string{"requestUrl is required when source is API"}},
		{"lookup", `{"keyField": "id", "source": "API", "requestUrl": "https://x.io/items"}`, []string{}},
		{"intersect", `{"inputCount": 11}`, []string{"inputCount must be at most 10", "keyField is required when compareMode is KEY"}},
		{"loop", `{"itemsField": "rows", "batchSize": 1001}`, []string{"batchSize must be at most 1000"}},
		{"parse", `{"inputFormat": "CSV", "delimiter": ";;"}`, []string{"delimiter must be exactly one character for CSV"}},
		{"parse", `{"inputFormat": "JSON", "delimiter": ";;"}`, []string{}},
		{"regex_pattern", `{"pattern": "(", "flags": "ix"}`, []string{
			"flags may only contain i, m, s and U",
			"pattern must be a valid regular expression",
		}},
		{"regex_pattern", `{"pattern": "a+", "mode": "REPLACE"}`, []string{"replacement is required when mode is REPLACE"}},
		{"transform", `{"transformations": [{"sourceField": "a"}]}`, []string{
			"at least one transformation must have both source and target fields",
		}},
		{"transform", `{"transformations": [{"sourceField": "a", "targetField": "b", "operation": "EXPLODE"}]}`, []string{
			"transformations[0] has unknown operation EXPLODE",
		}},
		{"transform", `{"transformations": [{"sourceField": "a", "targetField": "b"}]}`, []string{}},
		{"aggregate", `{"operations": [{"function": "COUNT"}]}`, []string{}},
		{"aggregate", `{"operations": [{"function": "SUM"}]}`, []string{
			"every operation needs a valid function and a field unless it is COUNT",
		}},
		{"distinct", `{}`, []string{}},
		{"validate", `{"rules": [{"field": "age", "rule": "MIN"}]}`, []string{
			"every rule needs a field, a valid rule type and a value for MIN, MAX, PATTERN and TYPE",
		}},
		{"validate", `{"rules": [{"field": "email", "rule": "EMAIL"}]}`, []string{}},
		{"split", `{}`, []string{"splitField is required when method is FIELD"}},
		{"split", `{"method": "DELIMITER", "delimiter": ""}`, []string{"delimiter is required when method is DELIMITER"}},
		{"split", `{"method": "COUNT", "chunkSize": 0}`, []string{"chunkSize must be at least 1"}},
		{"sort", `{"fields": [{"field": "name"}]}`, []string{}},
		{"sort", `{"fields": [{"field": "name", "direction": "UP"}]}`, []string{
			"every sort field needs a name and a direction of ASC or DESC",
		}},
		{"custom_code", `{"code": "return 1", "timeout": 61}`, []string{"timeout must be at most 60"}},
		{"union", `{"mode": "SOME"}`, []string{"mode must be one of: ALL, DISTINCT"}},
		{"http_post", `{"url": "https://x.io", "retries": 11}`, []string{"retries must be at most 10"}},
		{"send_email", `{"to": ["a@example.com", "nope"], "subject": "s", "body": "b"}`, []string{
			"every recipient must be a valid email address",
		}},
		{"send_email", `{"to": ["a@example.com"], "cc": ["bad"], "subject": "s", "body": "b"}`, []string{
			"every cc address must be a valid email address",
		}},
		{"send_email", `{}`, []string{"body is required", "subject is required", "to is required"}},
		{"download", `{"url": "https://x.io/file.zip"}`, []string{}},
		{"file_append", `{"path": "/tmp/log", "content": "x", "encoding": "latin1"}`, []string{
			"encoding must be one of: utf8, ascii, base64",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, mustNew(t, tt.typ, tt.raw).Validate(), tt.raw)
		})
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		typ  string
		raw  string
		want string
	}{
		{"http_request", `{}`, "No URL configured"},
		{"http_request", `{"url": "https://api.example.com/items"}`, "GET https://api.example.com/items"},
		{"http_post", `{"url": "https://x.io", "retries": 2}`, "POST https://x.io (retries: 2)"},
		{"deduplicate", `{"scope": "FIELD", "fields": ["email", "id"]}`, "Deduplicate on email, id"},
		{"deduplicate", `{}`, "Deduplicate full records"},
		{"filter", `{"conditions": [{"field": "age", "operator": "GREATER_THAN", "value": 18}]}`, "age GREATER_THAN 18"},
		{"filter", `{"conditions": [{}, {}], "combinator": "OR"}`, "2 conditions joined by OR"},
		{"switch", `{"field": "status", "cases": [{"output": "a"}]}`, "Switch on status (1 case)"},
		{"url_builder", `{"baseUrl": "https://x.io/", "pathSegments": ["a b", "c"]}`, "https://x.io/a%20b/c"},
		{"condition", `{"field": "ok", "operator": "EXISTS"}`, "If ok EXISTS"},
		{"lookup", `{"keyField": "sku", "table": {"a": 1, "b": 2}}`, "Look up sku in 2 entries"},
		{"send_email", `{"to": ["a@x.io", "b@x.io"], "subject": "Report"}`, "Email a@x.io and 1 more: Report"},
		{"download", `{"url": "https://x.io/f/report.pdf?sig=1"}`, "Download report.pdf to downloads"},
		{"custom_code", `{"code": "a\nb\n"}`, "javascript, 2 lines"},
		{"transform", `{"transformations": [{"sourceField": "a", "targetField": "b"}]}`, "COPY a → b"},
		{"sort", `{"fields": [{"field": "name"}, {"field": "age", "direction": "DESC"}]}`, "Sort by name ASC, age DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, mustNew(t, tt.typ, tt.raw).Summary())
		})
	}
}

func TestSummary_Truncates(t *testing.T) {
	long := "https://example.com/" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	cfg := &HTTPRequest{URL: long, Method: "GET"}
	summary := cfg.Summary()
	assert.Equal(t, 64, len([]rune(summary)))
	assert.Contains(t, summary, "…")
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	original := mustNew(t, "filter", `{"conditions": [{"field": "a", "operator": "EQUALS", "value": "x"}], "combinator": "OR"}`)
	data, err := json.Marshal(original)
	require.NoError(t, err)

	rebuilt := mustNew(t, "filter", string(data))
	assert.Equal(t, original, rebuilt)
}

func TestPorts(t *testing.T) {
	inputs, outputs := Ports("condition")
	assert.Equal(t, []string{"input"}, inputs)
	assert.Equal(t, []string{"true", "false"}, outputs)

	inputs, outputs = Ports("webhook")
	assert.Empty(t, inputs)
	assert.Equal(t, []string{"output"}, outputs)

	inputs, outputs = Ports("send_email")
	assert.Equal(t, []string{"input"}, inputs)
	assert.Empty(t, outputs)

	inputs, _ = Ports("join")
	assert.Equal(t, []string{"left", "right"}, inputs)
}
