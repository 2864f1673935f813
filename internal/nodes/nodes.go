// Package nodes defines the closed catalog of node configurations a pipeline
// can contain.
//
// Every variant is a plain struct tagged for JSON. A variant is built from a
// partial JSON initializer with New, which starts from the variant's
// documented defaults, so a client can send only the fields it cares about.
// Out-of-range, out-of-enum and wrongly typed values never fail construction;
// they surface from Validate.
package nodes

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/schema"
)

// Category groups node types for catalogs and default ports.
type Category string

const (
	CategoryInput      Category = "input"
	CategoryProcessing Category = "processing"
	CategoryOutput     Category = "output"
)

// Config is implemented by every node configuration variant.
type Config interface {
	// Type returns the variant's type tag, e.g. "http_request".
	Type() string
	Category() Category
	Schema() schema.Schema
	// Validate returns every problem with the configuration; an empty
	// result means the node is ready to run.
	Validate() []string
	// Summary is a short human-readable description for node cards.
	Summary() string
}

// crossChecker is implemented by variants with constraints that cannot be
// expressed as a single field rule.
type crossChecker interface {
	crossCheck() []string
}

type definition struct {
	category    Category
	label       string
	description string
	inputs      []string
	outputs     []string
	defaults    func() Config
}

var registry = map[string]definition{}

func register(typ string, def definition) {
	if _, exists := registry[typ]; exists {
		panic(fmt.Sprintf("nodes: type %q registered twice", typ))
	}
	if got := def.defaults().Type(); got != typ {
		panic(fmt.Sprintf("nodes: type %q builds a %q config", typ, got))
	}
	registry[typ] = def
}

// Descriptor describes a node type for catalog clients.
type Descriptor struct {
	Type        string        `json:"type"`
	Category    Category      `json:"category"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Inputs      []string      `json:"inputs"`
	Outputs     []string      `json:"outputs"`
	Defaults    Config        `json:"defaults"`
	Schema      schema.Schema `json:"schema"`
}

// IsKnown reports whether typ names a registered variant.
func IsKnown(typ string) bool {
	_, ok := registry[typ]
	return ok
}

// Types lists every registered type tag in sorted order.
func Types() []string {
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Describe returns the catalog entry for typ.
func Describe(typ string) (*Descriptor, error) {
	def, ok := registry[typ]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("node type %s", typ))
	}
	defaults := def.defaults()
	return &Descriptor{
		Type:        typ,
		Category:    def.category,
		Label:       def.label,
		Description: def.description,
		Inputs:      append([]string{}, def.inputs...),
		Outputs:     append([]string{}, def.outputs...),
		Defaults:    defaults,
		Schema:      defaults.Schema(),
	}, nil
}

// Catalog describes every registered type, ordered by category then type.
func Catalog() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, typ := range Types() {
		d, _ := Describe(typ)
		out = append(out, *d)
	}
	order := map[Category]int{CategoryInput: 0, CategoryProcessing: 1, CategoryOutput: 2}
	sort.SliceStable(out, func(i, j int) bool {
		return order[out[i].Category] < order[out[j].Category]
	})
	return out
}

// Ports returns the default input and output port names for typ.
func Ports(typ string) (inputs, outputs []string) {
	def, ok := registry[typ]
	if !ok {
		return nil, nil
	}
	return append([]string{}, def.inputs...), append([]string{}, def.outputs...)
}

// Default returns the default configuration for typ.
func Default(typ string) (Config, error) {
	return New(typ, nil)
}

// New builds a configuration of the given type. Fields present in raw
// override the defaults; absent fields keep them.
func New(typ string, raw json.RawMessage) (Config, error) {
	def, ok := registry[typ]
	if !ok {
		return nil, errors.ValidationError(fmt.Sprintf("unknown node type %q", typ))
	}
	cfg := def.defaults()
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err == nil {
		return cfg, nil
	}

	// Decode field by field so a value of the wrong JSON type only costs
	// that field. The raw value is kept and reported by Validate.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid %s configuration: %v", typ, err))
	}
	cfg = def.defaults()
	bad := map[string]json.RawMessage{}
	for name, value := range fields {
		single, _ := json.Marshal(map[string]json.RawMessage{name: value})
		if err := json.Unmarshal(single, cfg); err != nil {
			bad[name] = value
		}
	}
	if len(bad) == 0 {
		return cfg, nil
	}
	return &mistyped{Config: cfg, fields: bad}, nil
}

// mistyped wraps a variant whose initializer held fields of the wrong JSON
// type. The variant carries defaults for those fields; the raw values are
// what serializes and what Validate sees.
type mistyped struct {
	Config
	fields map[string]json.RawMessage
}

func (m *mistyped) record() (map[string]any, error) {
	record, err := schema.ToRecord(m.Config)
	if err != nil {
		return nil, err
	}
	for name, value := range m.fields {
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		record[name] = v
	}
	return record, nil
}

func (m *mistyped) Validate() []string {
	record, err := m.record()
	if err != nil {
		return []string{err.Error()}
	}
	s := m.Schema()
	errs := schema.Validate(record, s)
	for _, name := range s.Fields() {
		if _, ok := m.fields[name]; !ok {
			continue
		}
		if msg := schema.TypeError(name, record[name], s[name].Type); msg != "" && !oneOf(msg, errs) {
			errs = append(errs, msg)
		}
	}
	if cc, ok := m.Config.(crossChecker); ok {
		errs = append(errs, cc.crossCheck()...)
	}
	return errs
}

func (m *mistyped) MarshalJSON() ([]byte, error) {
	record, err := m.record()
	if err != nil {
		return nil, err
	}
	return json.Marshal(record)
}

// validate runs the schema rules over the JSON form of cfg followed by any
// variant-specific cross checks.
func validate(cfg Config) []string {
	record, err := schema.ToRecord(cfg)
	if err != nil {
		return []string{err.Error()}
	}
	errs := schema.Validate(record, cfg.Schema())
	if cc, ok := cfg.(crossChecker); ok {
		errs = append(errs, cc.crossCheck()...)
	}
	return errs
}

// truncate shortens s to at most n runes for summaries.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

var (
	httpMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
	operators   = []string{
		"EQUALS", "NOT_EQUALS", "CONTAINS", "NOT_CONTAINS", "GREATER_THAN", "LESS_THAN",
		"STARTS_WITH", "ENDS_WITH", "MATCHES", "EXISTS", "NOT_EXISTS",
	}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func valueless(operator string) bool {
	return operator == "EXISTS" || operator == "NOT_EXISTS"
}
