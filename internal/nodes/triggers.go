package nodes

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/schema"
)

// Trigger types.
const (
	TriggerManual   = "manual"
	TriggerWebhook  = "webhook"
	TriggerSchedule = "schedule"
)

// Schedule cadences.
const (
	CadenceOnce    = "ONCE"
	CadenceHourly  = "HOURLY"
	CadenceDaily   = "DAILY"
	CadenceWeekly  = "WEEKLY"
	CadenceMonthly = "MONTHLY"
	CadenceCron    = "CRON"
)

// TriggerConfig is the configuration of a pipeline's trigger.
type TriggerConfig interface {
	Type() string
	Schema() schema.Schema
	Validate() []string
	Summary() string
}

var triggerDefaults = map[string]func() TriggerConfig{
	TriggerManual:   func() TriggerConfig { return &ManualTrigger{} },
	TriggerWebhook:  func() TriggerConfig { return &WebhookTrigger{Method: "POST"} },
	TriggerSchedule: func() TriggerConfig { return &ScheduleTrigger{Cadence: CadenceDaily, Time: "09:00", Timezone: "UTC"} },
}

func init() {
	schema.RegisterPredicate("schedule.timeForCadence", func(value any, record map[string]any) bool {
		switch str(record["cadence"]) {
		case CadenceOnce, CadenceCron:
			return true
		}
		return !blank(value)
	})
	schema.RegisterPredicate("schedule.datetimeForOnce", requiredWhen("cadence", CadenceOnce))
	schema.RegisterPredicate("schedule.expressionForCron", requiredWhen("cadence", CadenceCron))
	schema.RegisterPredicate("schedule.dayOfWeekForWeekly", func(value any, record map[string]any) bool {
		return str(record["cadence"]) != CadenceWeekly || value != nil
	})
	schema.RegisterPredicate("schedule.dayOfMonthForMonthly", func(value any, record map[string]any) bool {
		return str(record["cadence"]) != CadenceMonthly || value != nil
	})
}

// TriggerTypes lists the known trigger types in sorted order.
func TriggerTypes() []string {
	types := make([]string, 0, len(triggerDefaults))
	for typ := range triggerDefaults {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// IsKnownTrigger reports whether typ names a trigger type.
func IsKnownTrigger(typ string) bool {
	_, ok := triggerDefaults[typ]
	return ok
}

// NewTrigger builds a trigger configuration of the given type from a
// partial JSON initializer.
func NewTrigger(typ string, raw json.RawMessage) (TriggerConfig, error) {
	defaults, ok := triggerDefaults[typ]
	if !ok {
		return nil, errors.ValidationError(fmt.Sprintf("unknown trigger type %q", typ))
	}
	cfg := defaults()
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid %s trigger configuration: %v", typ, err))
	}
	return cfg, nil
}

func validateTrigger(cfg TriggerConfig) []string {
	record, err := schema.ToRecord(cfg)
	if err != nil {
		return []string{err.Error()}
	}
	return schema.Validate(record, cfg.Schema())
}

// ManualTrigger starts a pipeline on explicit request.
type ManualTrigger struct{}

func (t *ManualTrigger) Type() string          { return TriggerManual }
func (t *ManualTrigger) Schema() schema.Schema { return schema.Schema{} }
func (t *ManualTrigger) Validate() []string    { return validateTrigger(t) }
func (t *ManualTrigger) Summary() string       { return "Run manually" }

// WebhookTrigger starts a pipeline from an inbound HTTP call.
type WebhookTrigger struct {
	Method string `json:"method"`
	Secret string `json:"secret"`
}

func (t *WebhookTrigger) Type() string       { return TriggerWebhook }
func (t *WebhookTrigger) Validate() []string { return validateTrigger(t) }

func (t *WebhookTrigger) Schema() schema.Schema {
	return schema.Schema{
		"method": {Type: schema.TypeString, Required: true, Enum: httpMethods},
		"secret": {Type: schema.TypeString, MinLength: schema.Int(8)},
	}
}

func (t *WebhookTrigger) Summary() string {
	return fmt.Sprintf("On %s webhook call", t.Method)
}

// ScheduleTrigger starts a pipeline on a calendar cadence.
type ScheduleTrigger struct {
	Cadence    string `json:"cadence"`
	Time       string `json:"time"`
	Datetime   string `json:"datetime"`
	Expression string `json:"expression"`
	DayOfWeek  *int   `json:"dayOfWeek,omitempty"`
	DayOfMonth *int   `json:"dayOfMonth,omitempty"`
	Timezone   string `json:"timezone"`
}

func (t *ScheduleTrigger) Type() string       { return TriggerSchedule }
func (t *ScheduleTrigger) Validate() []string { return validateTrigger(t) }

func (t *ScheduleTrigger) Schema() schema.Schema {
	return schema.Schema{
		"cadence": {
			Type:     schema.TypeString,
			Required: true,
			Enum:     []string{CadenceOnce, CadenceHourly, CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceCron},
		},
		"time": {
			Type:    schema.TypeString,
			Format:  schema.FormatTime,
			Custom:  "schedule.timeForCadence",
			Message: "time is required for this cadence",
		},
		"datetime": {
			Type:    schema.TypeString,
			Format:  schema.FormatDatetime,
			Custom:  "schedule.datetimeForOnce",
			Message: "datetime is required when cadence is ONCE",
		},
		"expression": {
			Type:    schema.TypeString,
			Format:  schema.FormatCron,
			Custom:  "schedule.expressionForCron",
			Message: "expression is required when cadence is CRON",
		},
		"dayOfWeek": {
			Type:    schema.TypeNumber,
			Min:     schema.Float(0),
			Max:     schema.Float(6),
			Custom:  "schedule.dayOfWeekForWeekly",
			Message: "dayOfWeek is required when cadence is WEEKLY",
		},
		"dayOfMonth": {
			Type:    schema.TypeNumber,
			Min:     schema.Float(1),
			Max:     schema.Float(31),
			Custom:  "schedule.dayOfMonthForMonthly",
			Message: "dayOfMonth is required when cadence is MONTHLY",
		},
		"timezone": {Type: schema.TypeString, Format: schema.FormatTimezone},
	}
}

func (t *ScheduleTrigger) Summary() string {
	tz := t.Timezone
	if tz == "" {
		tz = "UTC"
	}
	switch t.Cadence {
	case CadenceOnce:
		if t.Datetime == "" {
			return "No date configured"
		}
		return "Once at " + t.Datetime
	case CadenceHourly:
		minute := "00"
		if len(t.Time) == 5 {
			minute = t.Time[3:]
		}
		return fmt.Sprintf("Every hour at :%s", minute)
	case CadenceDaily:
		return fmt.Sprintf("Every day at %s %s", t.Time, tz)
	case CadenceWeekly:
		if t.DayOfWeek == nil || *t.DayOfWeek < 0 || *t.DayOfWeek > 6 {
			return "No weekday configured"
		}
		return fmt.Sprintf("Every %s at %s %s", time.Weekday(*t.DayOfWeek), t.Time, tz)
	case CadenceMonthly:
		if t.DayOfMonth == nil {
			return "No day of month configured"
		}
		return fmt.Sprintf("Monthly on day %d at %s %s", *t.DayOfMonth, t.Time, tz)
	case CadenceCron:
		if t.Expression == "" {
			return "No cron expression configured"
		}
		return fmt.Sprintf("Cron %s (%s)", t.Expression, tz)
	}
	return "Unknown cadence"
}
