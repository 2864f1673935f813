package nodes

import (
	"fmt"
	"path"
	"strings"

	"pipeline-hub/internal/schema"
)

func init() {
	schema.RegisterPredicate("send_email.recipients", func(value any, _ map[string]any) bool {
		return allEmails(value)
	})

	output := func(typ, label, description string, defaults func() Config) {
		register(typ, definition{
			category:    CategoryOutput,
			label:       label,
			description: description,
			inputs:      []string{"input"},
			defaults:    defaults,
		})
	}

	output("http_post", "HTTP Post", "Sends records to an HTTP endpoint", func() Config {
		return &HTTPPost{Headers: map[string]string{}, ContentType: "application/json", Timeout: 30}
	})
	output("send_email", "Send Email", "Sends an email", func() Config {
		return &SendEmail{To: []string{}, Cc: []string{}}
	})
	output("download", "Download", "Downloads a file", func() Config {
		return &Download{Destination: "downloads"}
	})
	output("file_append", "File Append", "Appends content to a file", func() Config {
		return &FileAppend{CreateIfMissing: true, Newline: true, Encoding: "utf8"}
	})
}

// HTTPPost delivers records to an HTTP endpoint.
type HTTPPost struct {
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers"`
	BodyTemplate string            `json:"bodyTemplate"`
	ContentType  string            `json:"contentType"`
	Timeout      int               `json:"timeout"`
	Retries      int               `json:"retries"`
}

func (c *HTTPPost) Type() string       { return "http_post" }
func (c *HTTPPost) Category() Category { return CategoryOutput }
func (c *HTTPPost) Validate() []string { return validate(c) }

func (c *HTTPPost) Schema() schema.Schema {
	return schema.Schema{
		"url":          {Type: schema.TypeString, Required: true, Format: schema.FormatURL},
		"headers":      {Type: schema.TypeObject},
		"bodyTemplate": {Type: schema.TypeString},
		"contentType": {
			Type:     schema.TypeString,
			Required: true,
			Enum:     []string{"application/json", "text/plain", "application/x-www-form-urlencoded"},
		},
		"timeout": {Type: schema.TypeNumber, Min: schema.Float(1), Max: schema.Float(300)},
		"retries": {Type: schema.TypeNumber, Min: schema.Float(0), Max: schema.Float(10)},
	}
}

func (c *HTTPPost) Summary() string {
	if c.URL == "" {
		return "No URL configured"
	}
	summary := "POST " + truncate(c.URL, 60)
	if c.Retries > 0 {
		summary += fmt.Sprintf(" (retries: %d)", c.Retries)
	}
	return summary
}

// SendEmail sends a message to a list of recipients.
type SendEmail struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	IsHTML  bool     `json:"isHtml"`
}

func (c *SendEmail) Type() string       { return "send_email" }
func (c *SendEmail) Category() Category { return CategoryOutput }
func (c *SendEmail) Validate() []string { return validate(c) }

func (c *SendEmail) Schema() schema.Schema {
	return schema.Schema{
		"to": {
			Type:      schema.TypeArray,
			Required:  true,
			MinLength: schema.Int(1),
			Custom:    "send_email.recipients",
			Message:   "every recipient must be a valid email address",
		},
		"cc": {
			Type:    schema.TypeArray,
			Custom:  "send_email.recipients",
			Message: "every cc address must be a valid email address",
		},
		"subject": {Type: schema.TypeString, Required: true, MaxLength: schema.Int(998)},
		"body":    {Type: schema.TypeString, Required: true},
		"isHtml":  {Type: schema.TypeBoolean},
	}
}

func (c *SendEmail) Summary() string {
	if len(c.To) == 0 {
		return "No recipients configured"
	}
	to := c.To[0]
	if len(c.To) > 1 {
		to = fmt.Sprintf("%s and %d more", to, len(c.To)-1)
	}
	if c.Subject == "" {
		return "Email " + to
	}
	return fmt.Sprintf("Email %s: %s", to, truncate(c.Subject, 40))
}

// Download fetches a remote file into a destination directory.
type Download struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	Destination string `json:"destination"`
	Overwrite   bool   `json:"overwrite"`
}

func (c *Download) Type() string       { return "download" }
func (c *Download) Category() Category { return CategoryOutput }
func (c *Download) Validate() []string { return validate(c) }

func (c *Download) Schema() schema.Schema {
	return schema.Schema{
		"url":         {Type: schema.TypeString, Required: true, Format: schema.FormatURL},
		"filename":    {Type: schema.TypeString, MaxLength: schema.Int(255)},
		"destination": {Type: schema.TypeString},
		"overwrite":   {Type: schema.TypeBoolean},
	}
}

func (c *Download) Summary() string {
	if c.URL == "" {
		return "No URL configured"
	}
	name := c.Filename
	if name == "" {
		name = path.Base(strings.SplitN(c.URL, "?", 2)[0])
	}
	return fmt.Sprintf("Download %s to %s", name, c.Destination)
}

// FileAppend appends content to a file.
type FileAppend struct {
	Path            string `json:"path"`
	Content         string `json:"content"`
	CreateIfMissing bool   `json:"createIfMissing"`
	Newline         bool   `json:"newline"`
	Encoding        string `json:"encoding"`
}

func (c *FileAppend) Type() string       { return "file_append" }
func (c *FileAppend) Category() Category { return CategoryOutput }
func (c *FileAppend) Validate() []string { return validate(c) }

func (c *FileAppend) Schema() schema.Schema {
	return schema.Schema{
		"path":            {Type: schema.TypeString, Required: true},
		"content":         {Type: schema.TypeString, Required: true},
		"createIfMissing": {Type: schema.TypeBoolean},
		"newline":         {Type: schema.TypeBoolean},
		"encoding":        {Type: schema.TypeString, Enum: []string{"utf8", "ascii", "base64"}},
	}
}

func (c *FileAppend) Summary() string {
	if c.Path == "" {
		return "No path configured"
	}
	return "Append to " + c.Path
}
