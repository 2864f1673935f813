package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// RequestData is the captured content of an inbound webhook call.
type RequestData struct {
	Body    any               `json:"body"`
	Query   map[string]any    `json:"query"`
	Headers map[string]string `json:"headers"`
}

// UnmarshalJSON keeps numbers as json.Number so large integers in a stored
// request survive a round trip.
func (r *RequestData) UnmarshalJSON(data []byte) error {
	type plain RequestData
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode((*plain)(r))
}

// Webhook is an externally invocable trigger endpoint for a pipeline.
type Webhook struct {
	ID              string       `json:"id"`
	PipelineID      string       `json:"pipelineId"`
	UserID          string       `json:"userId"`
	Token           string       `json:"token"`
	Method          string       `json:"method"`
	IsActive        bool         `json:"isActive"`
	LastRequest     *RequestData `json:"lastRequest,omitempty"`
	LastTriggeredAt *time.Time   `json:"lastTriggeredAt,omitempty"`
	TriggerCount    int64        `json:"triggerCount"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// PushSubscription is a browser push endpoint registered by a user.
type PushSubscription struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Endpoint   string     `json:"endpoint"`
	P256dhKey  string     `json:"p256dhKey"`
	AuthKey    string     `json:"authKey"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// User is an account that owns pipelines.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
