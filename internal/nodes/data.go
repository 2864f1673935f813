package nodes

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"pipeline-hub/internal/schema"
)

var (
	transformOperations = []string{"COPY", "RENAME", "UPPERCASE", "LOWERCASE", "TRIM", "TO_NUMBER", "TO_STRING", "TO_BOOLEAN"}
	aggregateFunctions  = []string{"COUNT", "SUM", "AVG", "MIN", "MAX", "FIRST", "LAST", "COLLECT"}
	validationRuleTypes = []string{"REQUIRED", "TYPE", "MIN", "MAX", "PATTERN", "EMAIL", "URL"}
)

func init() {
	schema.RegisterPredicate("deduplicate.fieldsForScope", requiredWhen("scope", "FIELD"))
	schema.RegisterPredicate("format.templateForText", requiredWhen("format", "TEXT"))
	schema.RegisterPredicate("lookup.tableForStatic", requiredWhen("source", "STATIC"))
	schema.RegisterPredicate("lookup.requestUrlForApi", requiredWhen("source", "API"))
	schema.RegisterPredicate("intersect.keyFieldForKey", requiredWhen("compareMode", "KEY"))
	schema.RegisterPredicate("regex_pattern.replacementForReplace", requiredWhen("mode", "REPLACE"))
	schema.RegisterPredicate("split.fieldForMethod", requiredWhen("method", "FIELD"))
	schema.RegisterPredicate("split.delimiterForMethod", requiredWhen("method", "DELIMITER"))
	schema.RegisterPredicate("parse.delimiterForCsv", func(value any, record map[string]any) bool {
		return str(record["inputFormat"]) != "CSV" || utf8.RuneCountInString(str(value)) == 1
	})
	schema.RegisterPredicate("regex_pattern.flags", func(value any, _ map[string]any) bool {
		for _, r := range str(value) {
			if !strings.ContainsRune("imsU", r) {
				return false
			}
		}
		return true
	})
	schema.RegisterPredicate("transform.hasCompleteMapping", func(value any, _ map[string]any) bool {
		for _, t := range items(value) {
			if !blank(t["sourceField"]) && !blank(t["targetField"]) {
				return true
			}
		}
		return false
	})
	schema.RegisterPredicate("aggregate.operations", func(value any, _ map[string]any) bool {
		for _, op := range items(value) {
			fn := str(op["function"])
			if !oneOf(fn, aggregateFunctions) {
				return false
			}
			if fn != "COUNT" && blank(op["field"]) {
				return false
			}
		}
		return true
	})
	schema.RegisterPredicate("validate.rules", func(value any, _ map[string]any) bool {
		for _, rule := range items(value) {
			kind := str(rule["rule"])
			if blank(rule["field"]) || !oneOf(kind, validationRuleTypes) {
				return false
			}
			needsValue := kind == "MIN" || kind == "MAX" || kind == "PATTERN" || kind == "TYPE"
			if needsValue && blank(rule["value"]) {
				return false
			}
		}
		return true
	})
	schema.RegisterPredicate("sort.fields", func(value any, _ map[string]any) bool {
		for _, f := range items(value) {
			if blank(f["field"]) || !oneOf(str(f["direction"]), []string{"ASC", "DESC"}) {
				return false
			}
		}
		return true
	})

	processing := func(typ, label, description string, inputs []string, defaults func() Config) {
		register(typ, definition{
			category:    CategoryProcessing,
			label:       label,
			description: description,
			inputs:      inputs,
			outputs:     []string{"output"},
			defaults:    defaults,
		})
	}
	in := []string{"input"}

	processing("deduplicate", "Deduplicate", "Drops repeated records", in, func() Config {
		return &Deduplicate{Scope: "FULL", Fields: []string{}, Keep: "FIRST", CaseSensitive: true}
	})
	processing("join", "Join", "Joins two record streams on a key", []string{"left", "right"}, func() Config {
		return &Join{JoinType: "INNER", OutputField: "joined"}
	})
	processing("format", "Format", "Serializes records into a text format", in, func() Config {
		return &Format{Format: "JSON"}
	})
	processing("lookup", "Lookup", "Enriches records from a table or an API", in, func() Config {
		return &Lookup{Source: "STATIC", Table: map[string]any{}, OutputField: "lookup"}
	})
	processing("intersect", "Intersect", "Keeps records present in every input", []string{"input1", "input2"}, func() Config {
		return &Intersect{CompareMode: "KEY", InputCount: 2}
	})
	processing("parse", "Parse", "Parses a text field into structured data", in, func() Config {
		return &Parse{InputFormat: "JSON", SourceField: "body", Delimiter: ",", HasHeader: true}
	})
	processing("regex_pattern", "Regex", "Matches, extracts or replaces with a regular expression", in, func() Config {
		return &RegexPattern{SourceField: "text", Mode: "MATCH"}
	})
	processing("transform", "Transform", "Copies, renames and converts fields", in, func() Config {
		return &Transform{Transformations: []Transformation{}, KeepOriginal: true}
	})
	processing("aggregate", "Aggregate", "Groups records and computes aggregates", in, func() Config {
		return &Aggregate{GroupBy: []string{}, Operations: []AggregateOperation{}}
	})
	processing("distinct", "Distinct", "Keeps the distinct values of a field", in, func() Config {
		return &Distinct{CaseSensitive: true}
	})
	processing("validate", "Validate", "Checks records against rules", in, func() Config {
		return &RecordValidator{Rules: []ValidationRule{}, OnFailure: "FLAG", ErrorField: "_errors"}
	})
	processing("split", "Split", "Splits records into groups or chunks", in, func() Config {
		return &Split{Method: "FIELD", ChunkSize: 10, Delimiter: ","}
	})
	processing("sort", "Sort", "Orders records by one or more fields", in, func() Config {
		return &Sort{Fields: []SortField{}}
	})
	processing("union", "Union", "Merges several record streams", []string{"input1", "input2"}, func() Config {
		return &Union{Mode: "ALL", InputCount: 2}
	})
}

// Deduplicate drops repeated records, either whole or by a set of fields.
type Deduplicate struct {
	Scope         string   `json:"scope"`
	Fields        []string `json:"fields"`
	Keep          string   `json:"keep"`
	CaseSensitive bool     `json:"caseSensitive"`
}

func (c *Deduplicate) Type() string       { return "deduplicate" }
func (c *Deduplicate) Category() Category { return CategoryProcessing }
func (c *Deduplicate) Validate() []string { return validate(c) }

func (c *Deduplicate) Schema() schema.Schema {
	return schema.Schema{
		"scope": {Type: schema.TypeString, Required: true, Enum: []string{"FULL", "FIELD"}},
		"fields": {
			Type:    schema.TypeArray,
			Custom:  "deduplicate.fieldsForScope",
			Message: "at least one field is required when scope is FIELD",
		},
		"keep":          {Type: schema.TypeString, Enum: []string{"FIRST", "LAST"}},
		"caseSensitive": {Type: schema.TypeBoolean},
	}
}

func (c *Deduplicate) Summary() string {
	if c.Scope == "FIELD" {
		if len(c.Fields) == 0 {
			return "No fields configured"
		}
		return "Deduplicate on " + strings.Join(c.Fields, ", ")
	}
	return "Deduplicate full records"
}

// Join combines a left and a right stream on matching keys.
type Join struct {
	JoinType    string `json:"joinType"`
	LeftKey     string `json:"leftKey"`
	RightKey    string `json:"rightKey"`
	OutputField string `json:"outputField"`
}

func (c *Join) Type() string       { return "join" }
func (c *Join) Category() Category { return CategoryProcessing }
func (c *Join) Validate() []string { return validate(c) }

func (c *Join) Schema() schema.Schema {
	return schema.Schema{
		"joinType":    {Type: schema.TypeString, Required: true, Enum: []string{"INNER", "LEFT", "RIGHT", "FULL"}},
		"leftKey":     {Type: schema.TypeString, Required: true},
		"rightKey":    {Type: schema.TypeString, Required: true},
		"outputField": {Type: schema.TypeString},
	}
}

func (c *Join) Summary() string {
	if c.LeftKey == "" || c.RightKey == "" {
		return "No join keys configured"
	}
	return fmt.Sprintf("%s join on %s = %s", c.JoinType, c.LeftKey, c.RightKey)
}

// Format serializes records.
type Format struct {
	Format   string `json:"format"`
	Template string `json:"template"`
	Pretty   bool   `json:"pretty"`
}

func (c *Format) Type() string       { return "format" }
func (c *Format) Category() Category { return CategoryProcessing }
func (c *Format) Validate() []string { return validate(c) }

func (c *Format) Schema() schema.Schema {
	return schema.Schema{
		"format": {Type: schema.TypeString, Required: true, Enum: []string{"JSON", "CSV", "XML", "YAML", "TEXT"}},
		"template": {
			Type:    schema.TypeString,
			Custom:  "format.templateForText",
			Message: "template is required when format is TEXT",
		},
		"pretty": {Type: schema.TypeBoolean},
	}
}

func (c *Format) Summary() string {
	summary := "Format as " + c.Format
	if c.Pretty {
		summary += " (pretty)"
	}
	return summary
}

// Lookup enriches records from a static table or a remote API.
type Lookup struct {
	Source       string         `json:"source"`
	Table        map[string]any `json:"table"`
	RequestURL   string         `json:"requestUrl"`
	KeyField     string         `json:"keyField"`
	OutputField  string         `json:"outputField"`
	DefaultValue any            `json:"defaultValue"`
}

func (c *Lookup) Type() string       { return "lookup" }
func (c *Lookup) Category() Category { return CategoryProcessing }
func (c *Lookup) Validate() []string { return validate(c) }

func (c *Lookup) Schema() schema.Schema {
	return schema.Schema{
		"source": {Type: schema.TypeString, Required: true, Enum: []string{"STATIC", "API"}},
		"table": {
			Type:    schema.TypeObject,
			Custom:  "lookup.tableForStatic",
			Message: "table must have at least one entry when source is STATIC",
		},
		"requestUrl": {
			Type:    schema.TypeString,
			Format:  schema.FormatURL,
			Custom:  "lookup.requestUrlForApi",
			Message: "requestUrl is required when source is API",
		},
		"keyField":    {Type: schema.TypeString, Required: true},
		"outputField": {Type: schema.TypeString},
	}
}

func (c *Lookup) Summary() string {
	if c.KeyField == "" {
		return "No key field configured"
	}
	if c.Source == "API" {
		if c.RequestURL == "" {
			return "No URL configured"
		}
		return fmt.Sprintf("Look up %s via %s", c.KeyField, truncate(c.RequestURL, 50))
	}
	if len(c.Table) == 1 {
		return fmt.Sprintf("Look up %s in 1 entry", c.KeyField)
	}
	return fmt.Sprintf("Look up %s in %d entries", c.KeyField, len(c.Table))
}

// Intersect keeps records present in all inputs.
type Intersect struct {
	CompareMode string `json:"compareMode"`
	KeyField    string `json:"keyField"`
	InputCount  int    `json:"inputCount"`
}

func (c *Intersect) Type() string       { return "intersect" }
func (c *Intersect) Category() Category { return CategoryProcessing }
func (c *Intersect) Validate() []string { return validate(c) }

func (c *Intersect) Schema() schema.Schema {
	return schema.Schema{
		"compareMode": {Type: schema.TypeString, Required: true, Enum: []string{"KEY", "FULL"}},
		"keyField": {
			Type:    schema.TypeString,
			Custom:  "intersect.keyFieldForKey",
			Message: "keyField is required when compareMode is KEY",
		},
		"inputCount": {Type: schema.TypeNumber, Min: schema.Float(2), Max: schema.Float(10)},
	}
}

func (c *Intersect) Summary() string {
	if c.CompareMode == "KEY" {
		if c.KeyField == "" {
			return "No key field configured"
		}
		return fmt.Sprintf("Intersect %d inputs on %s", c.InputCount, c.KeyField)
	}
	return fmt.Sprintf("Intersect %d inputs on full records", c.InputCount)
}

// Parse turns a text field into structured data.
type Parse struct {
	InputFormat string `json:"inputFormat"`
	SourceField string `json:"sourceField"`
	Delimiter   string `json:"delimiter"`
	HasHeader   bool   `json:"hasHeader"`
}

func (c *Parse) Type() string       { return "parse" }
func (c *Parse) Category() Category { return CategoryProcessing }
func (c *Parse) Validate() []string { return validate(c) }

func (c *Parse) Schema() schema.Schema {
	return schema.Schema{
		"inputFormat": {Type: schema.TypeString, Required: true, Enum: []string{"JSON", "CSV", "XML", "YAML", "QUERY_STRING"}},
		"sourceField": {Type: schema.TypeString, Required: true},
		"delimiter": {
			Type:    schema.TypeString,
			Custom:  "parse.delimiterForCsv",
			Message: "delimiter must be exactly one character for CSV",
		},
		"hasHeader": {Type: schema.TypeBoolean},
	}
}

func (c *Parse) Summary() string {
	if c.SourceField == "" {
		return "No source field configured"
	}
	return fmt.Sprintf("Parse %s as %s", c.SourceField, c.InputFormat)
}

// RegexPattern applies a regular expression to a field.
type RegexPattern struct {
	Pattern     string `json:"pattern"`
	Flags       string `json:"flags"`
	SourceField string `json:"sourceField"`
	Mode        string `json:"mode"`
	Replacement string `json:"replacement"`
}

func (c *RegexPattern) Type() string       { return "regex_pattern" }
func (c *RegexPattern) Category() Category { return CategoryProcessing }
func (c *RegexPattern) Validate() []string { return validate(c) }

func (c *RegexPattern) Schema() schema.Schema {
	return schema.Schema{
		"pattern": {Type: schema.TypeString, Required: true, Format: schema.FormatRegex},
		"flags": {
			Type:    schema.TypeString,
			Custom:  "regex_pattern.flags",
			Message: "flags may only contain i, m, s and U",
		},
		"sourceField": {Type: schema.TypeString, Required: true},
		"mode":        {Type: schema.TypeString, Required: true, Enum: []string{"MATCH", "EXTRACT", "REPLACE", "TEST"}},
		"replacement": {
			Type:    schema.TypeString,
			Custom:  "regex_pattern.replacementForReplace",
			Message: "replacement is required when mode is REPLACE",
		},
	}
}

func (c *RegexPattern) Summary() string {
	if c.Pattern == "" {
		return "No pattern configured"
	}
	return fmt.Sprintf("%s /%s/%s on %s", strings.ToLower(c.Mode), truncate(c.Pattern, 40), c.Flags, c.SourceField)
}

// Transformation maps one field to another.
type Transformation struct {
	SourceField string `json:"sourceField"`
	TargetField string `json:"targetField"`
	Operation   string `json:"operation"`
}

// UnmarshalJSON defaults a missing operation to COPY.
func (t *Transformation) UnmarshalJSON(data []byte) error {
	type plain Transformation
	p := plain{Operation: "COPY"}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Transformation(p)
	return nil
}

// Transform rewrites fields.
type Transform struct {
	Transformations []Transformation `json:"transformations"`
	KeepOriginal    bool             `json:"keepOriginal"`
}

func (c *Transform) Type() string       { return "transform" }
func (c *Transform) Category() Category { return CategoryProcessing }
func (c *Transform) Validate() []string { return validate(c) }

func (c *Transform) Schema() schema.Schema {
	return schema.Schema{
		"transformations": {
			Type:    schema.TypeArray,
			Custom:  "transform.hasCompleteMapping",
			Message: "at least one transformation must have both source and target fields",
		},
		"keepOriginal": {Type: schema.TypeBoolean},
	}
}

func (c *Transform) crossCheck() []string {
	var errs []string
	for i, t := range c.Transformations {
		if !oneOf(t.Operation, transformOperations) {
			errs = append(errs, fmt.Sprintf("transformations[%d] has unknown operation %s", i, t.Operation))
		}
	}
	return errs
}

func (c *Transform) Summary() string {
	if len(c.Transformations) == 0 {
		return "No transformations configured"
	}
	if len(c.Transformations) == 1 {
		t := c.Transformations[0]
		return fmt.Sprintf("%s %s → %s", t.Operation, t.SourceField, t.TargetField)
	}
	return plural(len(c.Transformations), "transformation")
}

// AggregateOperation is one computed aggregate.
type AggregateOperation struct {
	Field    string `json:"field"`
	Function string `json:"function"`
	Alias    string `json:"alias"`
}

// Aggregate groups records and computes aggregates per group.
type Aggregate struct {
	GroupBy    []string             `json:"groupBy"`
	Operations []AggregateOperation `json:"operations"`
}

func (c *Aggregate) Type() string       { return "aggregate" }
func (c *Aggregate) Category() Category { return CategoryProcessing }
func (c *Aggregate) Validate() []string { return validate(c) }

func (c *Aggregate) Schema() schema.Schema {
	return schema.Schema{
		"groupBy": {Type: schema.TypeArray},
		"operations": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "aggregate.operations",
			Message:   "every operation needs a valid function and a field unless it is COUNT",
		},
	}
}

func (c *Aggregate) Summary() string {
	if len(c.Operations) == 0 {
		return "No operations configured"
	}
	fns := make([]string, 0, len(c.Operations))
	for _, op := range c.Operations {
		fns = append(fns, op.Function)
	}
	summary := strings.Join(fns, ", ")
	if len(c.GroupBy) > 0 {
		summary += " by " + strings.Join(c.GroupBy, ", ")
	}
	return summary
}

// Distinct keeps the distinct values of a field.
type Distinct struct {
	Field         string `json:"field"`
	CaseSensitive bool   `json:"caseSensitive"`
}

func (c *Distinct) Type() string       { return "distinct" }
func (c *Distinct) Category() Category { return CategoryProcessing }
func (c *Distinct) Validate() []string { return validate(c) }

func (c *Distinct) Schema() schema.Schema {
	return schema.Schema{
		"field":         {Type: schema.TypeString},
		"caseSensitive": {Type: schema.TypeBoolean},
	}
}

func (c *Distinct) Summary() string {
	if c.Field == "" {
		return "Distinct records"
	}
	return "Distinct values of " + c.Field
}

// ValidationRule is one check performed by a Validate node.
type ValidationRule struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value any    `json:"value"`
}

// RecordValidator checks records and drops, flags or fails on violations.
type RecordValidator struct {
	Rules      []ValidationRule `json:"rules"`
	OnFailure  string           `json:"onFailure"`
	ErrorField string           `json:"errorField"`
}

func (c *RecordValidator) Type() string       { return "validate" }
func (c *RecordValidator) Category() Category { return CategoryProcessing }
func (c *RecordValidator) Validate() []string { return validate(c) }

func (c *RecordValidator) Schema() schema.Schema {
	return schema.Schema{
		"rules": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "validate.rules",
			Message:   "every rule needs a field, a valid rule type and a value for MIN, MAX, PATTERN and TYPE",
		},
		"onFailure":  {Type: schema.TypeString, Required: true, Enum: []string{"DROP", "ERROR", "FLAG"}},
		"errorField": {Type: schema.TypeString},
	}
}

func (c *RecordValidator) Summary() string {
	if len(c.Rules) == 0 {
		return "No rules configured"
	}
	return fmt.Sprintf("%s, %s on failure", plural(len(c.Rules), "rule"), strings.ToLower(c.OnFailure))
}

// Split divides records by field value, fixed-size chunks or a delimiter.
type Split struct {
	Method     string `json:"method"`
	SplitField string `json:"splitField"`
	ChunkSize  int    `json:"chunkSize"`
	Delimiter  string `json:"delimiter"`
}

func (c *Split) Type() string       { return "split" }
func (c *Split) Category() Category { return CategoryProcessing }
func (c *Split) Validate() []string { return validate(c) }

func (c *Split) Schema() schema.Schema {
	return schema.Schema{
		"method": {Type: schema.TypeString, Required: true, Enum: []string{"FIELD", "COUNT", "DELIMITER"}},
		"splitField": {
			Type:    schema.TypeString,
			Custom:  "split.fieldForMethod",
			Message: "splitField is required when method is FIELD",
		},
		"chunkSize": {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(10000)},
		"delimiter": {
			Type:    schema.TypeString,
			Custom:  "split.delimiterForMethod",
			Message: "delimiter is required when method is DELIMITER",
		},
	}
}

func (c *Split) Summary() string {
	switch c.Method {
	case "COUNT":
		return fmt.Sprintf("Split into chunks of %d", c.ChunkSize)
	case "DELIMITER":
		return fmt.Sprintf("Split on %q", c.Delimiter)
	}
	if c.SplitField == "" {
		return "No split field configured"
	}
	return "Split by " + c.SplitField
}

// SortField is one sort key.
type SortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// UnmarshalJSON defaults a missing direction to ASC.
func (f *SortField) UnmarshalJSON(data []byte) error {
	type plain SortField
	p := plain{Direction: "ASC"}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = SortField(p)
	return nil
}

// Sort orders records.
type Sort struct {
	Fields     []SortField `json:"fields"`
	NullsFirst bool        `json:"nullsFirst"`
}

func (c *Sort) Type() string       { return "sort" }
func (c *Sort) Category() Category { return CategoryProcessing }
func (c *Sort) Validate() []string { return validate(c) }

func (c *Sort) Schema() schema.Schema {
	return schema.Schema{
		"fields": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "sort.fields",
			Message:   "every sort field needs a name and a direction of ASC or DESC",
		},
		"nullsFirst": {Type: schema.TypeBoolean},
	}
}

func (c *Sort) Summary() string {
	if len(c.Fields) == 0 {
		return "No sort fields configured"
	}
	keys := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		keys = append(keys, fmt.Sprintf("%s %s", f.Field, f.Direction))
	}
	return "Sort by " + strings.Join(keys, ", ")
}

// Union merges several inputs.
type Union struct {
	Mode        string `json:"mode"`
	InputCount  int    `json:"inputCount"`
	DedupeField string `json:"dedupeField"`
}

func (c *Union) Type() string       { return "union" }
func (c *Union) Category() Category { return CategoryProcessing }
func (c *Union) Validate() []string { return validate(c) }

func (c *Union) Schema() schema.Schema {
	return schema.Schema{
		"mode":        {Type: schema.TypeString, Required: true, Enum: []string{"ALL", "DISTINCT"}},
		"inputCount":  {Type: schema.TypeNumber, Min: schema.Float(2), Max: schema.Float(10)},
		"dedupeField": {Type: schema.TypeString},
	}
}

func (c *Union) Summary() string {
	summary := fmt.Sprintf("Merge %d inputs", c.InputCount)
	if c.Mode == "DISTINCT" {
		if c.DedupeField != "" {
			return summary + ", distinct on " + c.DedupeField
		}
		return summary + ", distinct"
	}
	return summary
}
