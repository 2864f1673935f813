package nodes

import (
	"fmt"
	"strings"

	"pipeline-hub/internal/schema"
)

func init() {
	schema.RegisterPredicate("manual_input.defaultValueMatchesType", func(value any, record map[string]any) bool {
		v := str(value)
		if v == "" {
			return true
		}
		switch str(record["inputType"]) {
		case "JSON":
			return schema.IsJSON(v)
		case "NUMBER":
			return isNumeric(v)
		}
		return true
	})
	schema.RegisterPredicate("http_request.bodyAllowed", func(value any, record map[string]any) bool {
		method := str(record["method"])
		return blank(value) || (method != "GET" && method != "DELETE")
	})

	register("file_watch", definition{
		category:    CategoryInput,
		label:       "File Watch",
		description: "Starts the pipeline when files change under a path",
		outputs:     []string{"output"},
		defaults: func() Config {
			return &FileWatch{Pattern: "*", Events: []string{"create"}, PollInterval: 5}
		},
	})
	register("manual_input", definition{
		category:    CategoryInput,
		label:       "Manual Input",
		description: "Value entered by the user when running the pipeline",
		outputs:     []string{"output"},
		defaults: func() Config {
			return &ManualInput{InputType: "TEXT", Label: "Input"}
		},
	})
	register("webhook", definition{
		category:    CategoryInput,
		label:       "Webhook",
		description: "Receives an inbound HTTP request",
		outputs:     []string{"output"},
		defaults: func() Config {
			return &Webhook{Method: "POST", ResponseMode: "IMMEDIATE"}
		},
	})
	register("http_request", definition{
		category:    CategoryInput,
		label:       "HTTP Request",
		description: "Fetches data from an HTTP endpoint",
		inputs:      []string{"input"},
		outputs:     []string{"output"},
		defaults: func() Config {
			return &HTTPRequest{
				Method:       "GET",
				Headers:      map[string]string{},
				QueryParams:  map[string]string{},
				Timeout:      30,
				ResponseType: "JSON",
			}
		},
	})
}

// FileWatch watches a filesystem path.
type FileWatch struct {
	Path         string   `json:"path"`
	Pattern      string   `json:"pattern"`
	Events       []string `json:"events"`
	Recursive    bool     `json:"recursive"`
	PollInterval int      `json:"pollInterval"`
}

func (c *FileWatch) Type() string       { return "file_watch" }
func (c *FileWatch) Category() Category { return CategoryInput }
func (c *FileWatch) Validate() []string { return validate(c) }

func (c *FileWatch) Schema() schema.Schema {
	return schema.Schema{
		"path":         {Type: schema.TypeString, Required: true},
		"pattern":      {Type: schema.TypeString},
		"events":       {Type: schema.TypeArray, Required: true, MinLength: schema.Int(1), Enum: []string{"create", "modify", "delete"}},
		"recursive":    {Type: schema.TypeBoolean},
		"pollInterval": {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(3600)},
	}
}

func (c *FileWatch) Summary() string {
	if c.Path == "" {
		return "No path configured"
	}
	pattern := c.Pattern
	if pattern == "" {
		pattern = "*"
	}
	return fmt.Sprintf("Watch %s/%s on %s", strings.TrimRight(c.Path, "/"), pattern, strings.Join(c.Events, ", "))
}

// ManualInput is a value supplied when a run is started by hand.
type ManualInput struct {
	InputType    string `json:"inputType"`
	Label        string `json:"label"`
	DefaultValue string `json:"defaultValue"`
	Required     bool   `json:"required"`
}

func (c *ManualInput) Type() string       { return "manual_input" }
func (c *ManualInput) Category() Category { return CategoryInput }
func (c *ManualInput) Validate() []string { return validate(c) }

func (c *ManualInput) Schema() schema.Schema {
	return schema.Schema{
		"inputType": {Type: schema.TypeString, Required: true, Enum: []string{"TEXT", "JSON", "NUMBER", "FILE"}},
		"label":     {Type: schema.TypeString, MaxLength: schema.Int(100)},
		"defaultValue": {
			Type:    schema.TypeString,
			Custom:  "manual_input.defaultValueMatchesType",
			Message: "defaultValue must match the input type",
		},
		"required": {Type: schema.TypeBoolean},
	}
}

func (c *ManualInput) Summary() string {
	label := c.Label
	if label == "" {
		label = "Input"
	}
	summary := fmt.Sprintf("%s (%s)", label, strings.ToLower(c.InputType))
	if c.Required {
		summary += ", required"
	}
	return summary
}

// Webhook receives an inbound HTTP call.
type Webhook struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	Secret       string `json:"secret"`
	ResponseMode string `json:"responseMode"`
}

func (c *Webhook) Type() string       { return "webhook" }
func (c *Webhook) Category() Category { return CategoryInput }
func (c *Webhook) Validate() []string { return validate(c) }

func (c *Webhook) Schema() schema.Schema {
	return schema.Schema{
		"method":       {Type: schema.TypeString, Required: true, Enum: httpMethods},
		"path":         {Type: schema.TypeString, MaxLength: schema.Int(200)},
		"secret":       {Type: schema.TypeString, MinLength: schema.Int(8)},
		"responseMode": {Type: schema.TypeString, Enum: []string{"IMMEDIATE", "LAST_NODE"}},
	}
}

func (c *Webhook) Summary() string {
	path := c.Path
	if path == "" {
		path = "/"
	}
	summary := fmt.Sprintf("%s %s", c.Method, path)
	if c.Secret != "" {
		summary += " (signed)"
	}
	return summary
}

// HTTPRequest fetches data from an HTTP endpoint.
type HTTPRequest struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers"`
	QueryParams  map[string]string `json:"queryParams"`
	Body         string            `json:"body"`
	Timeout      int               `json:"timeout"`
	ResponseType string            `json:"responseType"`
}

func (c *HTTPRequest) Type() string       { return "http_request" }
func (c *HTTPRequest) Category() Category { return CategoryInput }
func (c *HTTPRequest) Validate() []string { return validate(c) }

func (c *HTTPRequest) Schema() schema.Schema {
	return schema.Schema{
		"url":         {Type: schema.TypeString, Required: true, Format: schema.FormatURL},
		"method":      {Type: schema.TypeString, Required: true, Enum: httpMethods},
		"headers":     {Type: schema.TypeObject},
		"queryParams": {Type: schema.TypeObject},
		"body": {
			Type:    schema.TypeString,
			Custom:  "http_request.bodyAllowed",
			Message: "body is not allowed for GET or DELETE requests",
		},
		"timeout":      {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(300)},
		"responseType": {Type: schema.TypeString, Enum: []string{"JSON", "TEXT", "BINARY"}},
	}
}

func (c *HTTPRequest) Summary() string {
	if c.URL == "" {
		return "No URL configured"
	}
	return fmt.Sprintf("%s %s", c.Method, truncate(c.URL, 60))
}
