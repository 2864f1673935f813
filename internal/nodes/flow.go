package nodes

import (
	"fmt"
	"net/url"
	"strings"

	"pipeline-hub/internal/schema"
)

func init() {
	schema.RegisterPredicate("string_builder.parts", func(value any, _ map[string]any) bool {
		for _, part := range items(value) {
			if blank(part["value"]) || !oneOf(str(part["type"]), []string{"TEXT", "FIELD"}) {
				return false
			}
		}
		return true
	})
	schema.RegisterPredicate("filter.conditions", func(value any, _ map[string]any) bool {
		for _, cond := range items(value) {
			op := str(cond["operator"])
			if blank(cond["field"]) || !oneOf(op, operators) {
				return false
			}
			if !valueless(op) && blank(cond["value"]) {
				return false
			}
		}
		return true
	})
	schema.RegisterPredicate("switch.cases", func(value any, _ map[string]any) bool {
		seen := map[string]bool{}
		for _, c := range items(value) {
			out := str(c["output"])
			if out == "" || seen[out] {
				return false
			}
			seen[out] = true
		}
		return true
	})
	schema.RegisterPredicate("condition.valueForOperator", func(value any, record map[string]any) bool {
		return valueless(str(record["operator"])) || !blank(value)
	})

	processing := func(typ, label, description string, outputs []string, defaults func() Config) {
		register(typ, definition{
			category:    CategoryProcessing,
			label:       label,
			description: description,
			inputs:      []string{"input"},
			outputs:     outputs,
			defaults:    defaults,
		})
	}
	out := []string{"output"}

	processing("ai_processor", "AI Processor", "Runs a prompt against a language model", out, func() Config {
		return &AIProcessor{Provider: "OPENAI", Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 1024, OutputFormat: "TEXT"}
	})
	processing("string_builder", "String Builder", "Concatenates literal text and record fields", out, func() Config {
		return &StringBuilder{Parts: []StringPart{}, OutputField: "result"}
	})
	processing("filter", "Filter", "Keeps records matching a set of conditions", out, func() Config {
		return &Filter{Conditions: []FilterCondition{}, Combinator: "AND"}
	})
	processing("switch", "Switch", "Routes records by the value of a field", []string{"default"}, func() Config {
		return &Switch{Cases: []SwitchCase{}, DefaultOutput: "default"}
	})
	processing("url_builder", "URL Builder", "Builds a URL from a base, path segments and query", out, func() Config {
		return &URLBuilder{PathSegments: []string{}, QueryParams: map[string]string{}, Encode: true, OutputField: "url"}
	})
	processing("until_loop", "Until Loop", "Repeats until a field meets a condition", out, func() Config {
		return &UntilLoop{Operator: "EQUALS", MaxIterations: 100}
	})
	processing("condition", "Condition", "Routes records to a true or false branch", []string{"true", "false"}, func() Config {
		return &Condition{Operator: "EQUALS", TrueOutput: "true", FalseOutput: "false"}
	})
	processing("loop", "Loop", "Iterates over the items of an array field", out, func() Config {
		return &Loop{MaxIterations: 1000, BatchSize: 1}
	})
	processing("custom_code", "Custom Code", "Runs user-supplied code", out, func() Config {
		return &CustomCode{Language: "JAVASCRIPT", Timeout: 10}
	})
}

// AIProcessor sends a prompt to a language model.
type AIProcessor struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
	OutputFormat string  `json:"outputFormat"`
}

func (c *AIProcessor) Type() string       { return "ai_processor" }
func (c *AIProcessor) Category() Category { return CategoryProcessing }
func (c *AIProcessor) Validate() []string { return validate(c) }

func (c *AIProcessor) Schema() schema.Schema {
	return schema.Schema{
		"provider":     {Type: schema.TypeString, Required: true, Enum: []string{"OPENAI", "ANTHROPIC", "OLLAMA"}},
		"model":        {Type: schema.TypeString, Required: true},
		"prompt":       {Type: schema.TypeString, Required: true, MaxLength: schema.Int(100000)},
		"systemPrompt": {Type: schema.TypeString, MaxLength: schema.Int(100000)},
		"temperature":  {Type: schema.TypeNumber, Min: schema.Float(0), Max: schema.Float(2)},
		"maxTokens":    {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(128000)},
		"outputFormat": {Type: schema.TypeString, Enum: []string{"TEXT", "JSON"}},
	}
}

func (c *AIProcessor) Summary() string {
	if c.Prompt == "" {
		return "No prompt configured"
	}
	return fmt.Sprintf("%s %s: %s", strings.ToLower(c.Provider), c.Model, truncate(c.Prompt, 40))
}

// StringPart is one piece of a StringBuilder, either literal text or a field
// reference.
type StringPart struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StringBuilder concatenates parts into an output field.
type StringBuilder struct {
	Parts       []StringPart `json:"parts"`
	Separator   string       `json:"separator"`
	OutputField string       `json:"outputField"`
}

func (c *StringBuilder) Type() string       { return "string_builder" }
func (c *StringBuilder) Category() Category { return CategoryProcessing }
func (c *StringBuilder) Validate() []string { return validate(c) }

func (c *StringBuilder) Schema() schema.Schema {
	return schema.Schema{
		"parts": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "string_builder.parts",
			Message:   "every part needs a value and a type of TEXT or FIELD",
		},
		"separator":   {Type: schema.TypeString},
		"outputField": {Type: schema.TypeString, Required: true},
	}
}

func (c *StringBuilder) Summary() string {
	if len(c.Parts) == 0 {
		return "No parts configured"
	}
	return fmt.Sprintf("Build %s from %s", c.OutputField, plural(len(c.Parts), "part"))
}

// FilterCondition is one predicate of a Filter.
type FilterCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Filter keeps records that satisfy its conditions.
type Filter struct {
	Conditions []FilterCondition `json:"conditions"`
	Combinator string            `json:"combinator"`
}

func (c *Filter) Type() string       { return "filter" }
func (c *Filter) Category() Category { return CategoryProcessing }
func (c *Filter) Validate() []string { return validate(c) }

func (c *Filter) Schema() schema.Schema {
	return schema.Schema{
		"conditions": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "filter.conditions",
			Message:   "every condition needs a field, a valid operator and a value",
		},
		"combinator": {Type: schema.TypeString, Enum: []string{"AND", "OR"}},
	}
}

func (c *Filter) Summary() string {
	switch len(c.Conditions) {
	case 0:
		return "No conditions configured"
	case 1:
		cond := c.Conditions[0]
		return strings.TrimSpace(fmt.Sprintf("%s %s %s", cond.Field, cond.Operator, valueText(cond.Value)))
	}
	return fmt.Sprintf("%s joined by %s", plural(len(c.Conditions), "condition"), c.Combinator)
}

// SwitchCase maps a field value to an output port.
type SwitchCase struct {
	Value  any    `json:"value"`
	Output string `json:"output"`
}

// Switch routes a record to the output matching a field's value.
type Switch struct {
	Field         string       `json:"field"`
	Cases         []SwitchCase `json:"cases"`
	DefaultOutput string       `json:"defaultOutput"`
}

func (c *Switch) Type() string       { return "switch" }
func (c *Switch) Category() Category { return CategoryProcessing }
func (c *Switch) Validate() []string { return validate(c) }

func (c *Switch) Schema() schema.Schema {
	return schema.Schema{
		"field": {Type: schema.TypeString, Required: true},
		"cases": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "switch.cases",
			Message:   "case outputs must be non-empty and unique",
		},
		"defaultOutput": {Type: schema.TypeString},
	}
}

func (c *Switch) Summary() string {
	if c.Field == "" {
		return "No field configured"
	}
	return fmt.Sprintf("Switch on %s (%s)", c.Field, plural(len(c.Cases), "case"))
}

// URLBuilder assembles a URL into an output field.
type URLBuilder struct {
	BaseURL      string            `json:"baseUrl"`
	PathSegments []string          `json:"pathSegments"`
	QueryParams  map[string]string `json:"queryParams"`
	Encode       bool              `json:"encode"`
	OutputField  string            `json:"outputField"`
}

func (c *URLBuilder) Type() string       { return "url_builder" }
func (c *URLBuilder) Category() Category { return CategoryProcessing }
func (c *URLBuilder) Validate() []string { return validate(c) }

func (c *URLBuilder) Schema() schema.Schema {
	return schema.Schema{
		"baseUrl":      {Type: schema.TypeString, Required: true, Format: schema.FormatURL},
		"pathSegments": {Type: schema.TypeArray},
		"queryParams":  {Type: schema.TypeObject},
		"encode":       {Type: schema.TypeBoolean},
		"outputField":  {Type: schema.TypeString, Required: true},
	}
}

func (c *URLBuilder) Summary() string {
	if c.BaseURL == "" {
		return "No base URL configured"
	}
	segments := make([]string, 0, len(c.PathSegments))
	for _, s := range c.PathSegments {
		if c.Encode {
			s = url.PathEscape(s)
		}
		segments = append(segments, s)
	}
	built := strings.TrimRight(c.BaseURL, "/")
	if len(segments) > 0 {
		built += "/" + strings.Join(segments, "/")
	}
	return truncate(built, 60)
}

// UntilLoop repeats its body until a condition holds.
type UntilLoop struct {
	ConditionField string `json:"conditionField"`
	Operator       string `json:"operator"`
	Value          any    `json:"value"`
	MaxIterations  int    `json:"maxIterations"`
	Delay          int    `json:"delay"`
}

func (c *UntilLoop) Type() string       { return "until_loop" }
func (c *UntilLoop) Category() Category { return CategoryProcessing }
func (c *UntilLoop) Validate() []string { return validate(c) }

func (c *UntilLoop) Schema() schema.Schema {
	return schema.Schema{
		"conditionField": {Type: schema.TypeString, Required: true},
		"operator":       {Type: schema.TypeString, Required: true, Enum: operators},
		"maxIterations":  {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(10000)},
		"delay":          {Type: schema.TypeNumber, Min: schema.Float(0), Max: schema.Float(3600)},
	}
}

func (c *UntilLoop) Summary() string {
	if c.ConditionField == "" {
		return "No condition configured"
	}
	cond := strings.TrimSpace(fmt.Sprintf("%s %s %s", c.ConditionField, c.Operator, valueText(c.Value)))
	return fmt.Sprintf("Until %s (max %d)", cond, c.MaxIterations)
}

// Condition sends records down a true or false branch.
type Condition struct {
	Field       string `json:"field"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
	TrueOutput  string `json:"trueOutput"`
	FalseOutput string `json:"falseOutput"`
}

func (c *Condition) Type() string       { return "condition" }
func (c *Condition) Category() Category { return CategoryProcessing }
func (c *Condition) Validate() []string { return validate(c) }

func (c *Condition) Schema() schema.Schema {
	return schema.Schema{
		"field":    {Type: schema.TypeString, Required: true},
		"operator": {Type: schema.TypeString, Required: true, Enum: operators},
		"value": {
			Custom:  "condition.valueForOperator",
			Message: "value is required unless operator is EXISTS or NOT_EXISTS",
		},
		"trueOutput":  {Type: schema.TypeString, Required: true},
		"falseOutput": {Type: schema.TypeString, Required: true},
	}
}

func (c *Condition) Summary() string {
	if c.Field == "" {
		return "No condition configured"
	}
	return "If " + strings.TrimSpace(fmt.Sprintf("%s %s %s", c.Field, c.Operator, valueText(c.Value)))
}

// Loop iterates over an array field.
type Loop struct {
	ItemsField    string `json:"itemsField"`
	MaxIterations int    `json:"maxIterations"`
	Parallel      bool   `json:"parallel"`
	BatchSize     int    `json:"batchSize"`
}

func (c *Loop) Type() string       { return "loop" }
func (c *Loop) Category() Category { return CategoryProcessing }
func (c *Loop) Validate() []string { return validate(c) }

func (c *Loop) Schema() schema.Schema {
	return schema.Schema{
		"itemsField":    {Type: schema.TypeString, Required: true},
		"maxIterations": {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(100000)},
		"parallel":      {Type: schema.TypeBoolean},
		"batchSize":     {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(1000)},
	}
}

func (c *Loop) Summary() string {
	if c.ItemsField == "" {
		return "No items field configured"
	}
	mode := "sequentially"
	if c.Parallel {
		mode = fmt.Sprintf("in parallel batches of %d", c.BatchSize)
	}
	return fmt.Sprintf("For each item in %s, %s", c.ItemsField, mode)
}

// CustomCode runs a user-supplied snippet.
type CustomCode struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Timeout  int    `json:"timeout"`
}

func (c *CustomCode) Type() string       { return "custom_code" }
func (c *CustomCode) Category() Category { return CategoryProcessing }
func (c *CustomCode) Validate() []string { return validate(c) }

func (c *CustomCode) Schema() schema.Schema {
	return schema.Schema{
		"language": {Type: schema.TypeString, Required: true, Enum: []string{"JAVASCRIPT", "PYTHON"}},
		"code":     {Type: schema.TypeString, Required: true, MinLength: schema.Int(1), MaxLength: schema.Int(50000)},
		"timeout":  {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(60)},
	}
}

func (c *CustomCode) Summary() string {
	if strings.TrimSpace(c.Code) == "" {
		return "No code configured"
	}
	lines := strings.Count(strings.TrimRight(c.Code, "\n"), "\n") + 1
	return fmt.Sprintf("%s, %s", strings.ToLower(c.Language), plural(lines, "line"))
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return fmt.Sprintf("%q", t)
	}
	return fmt.Sprint(v)
}
