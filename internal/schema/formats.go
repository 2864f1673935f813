package schema

import (
	"fmt"
	"regexp"
	"time"
	// timezone checks must not depend on the host's zoneinfo
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	tagValidator = validator.New()
	cronParser   = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// checkFormat returns an error message when s does not match format, or ""
// when it does.
func checkFormat(field, s string, format Format) string {
	switch format {
	case FormatURL:
		if tagValidator.Var(s, "url") != nil {
			return fmt.Sprintf("%s must be a valid URL", field)
		}
	case FormatEmail:
		if tagValidator.Var(s, "email") != nil {
			return fmt.Sprintf("%s must be a valid email address", field)
		}
	case FormatJSON:
		if tagValidator.Var(s, "json") != nil {
			return fmt.Sprintf("%s must be valid JSON", field)
		}
	case FormatRegex:
		if _, err := regexp.Compile(s); err != nil {
			return fmt.Sprintf("%s must be a valid regular expression", field)
		}
	case FormatCron:
		if !IsCron(s) {
			return fmt.Sprintf("%s must be a valid cron expression", field)
		}
	case FormatTime:
		if !clockPattern.MatchString(s) {
			return fmt.Sprintf("%s must be a valid time (HH:MM)", field)
		}
	case FormatDatetime:
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Sprintf("%s must be a valid RFC 3339 datetime", field)
		}
	case FormatTimezone:
		if _, err := time.LoadLocation(s); err != nil {
			return fmt.Sprintf("%s must be a valid IANA timezone", field)
		}
	default:
		return fmt.Sprintf("%s uses unknown format %s", field, format)
	}
	return ""
}

// IsURL reports whether s is an absolute URL.
func IsURL(s string) bool {
	return tagValidator.Var(s, "url") == nil
}

// IsEmail reports whether s is a valid email address.
func IsEmail(s string) bool {
	return tagValidator.Var(s, "email") == nil
}

// IsJSON reports whether s is a valid JSON document.
func IsJSON(s string) bool {
	return tagValidator.Var(s, "json") == nil
}

// IsCron reports whether s is a standard five-field cron expression or a
// descriptor such as @daily.
func IsCron(s string) bool {
	_, err := cronParser.Parse(s)
	return err == nil
}
