package triggers

import (
	"encoding/json"
	"fmt"

	"pipeline-hub/internal/common/errors"
)

// MaxPayloadBytes is the encoded size at which a notification is replaced
// by its pointer form. Push services reject messages of roughly 4KB.
const MaxPayloadBytes = 3800

// Notification types.
const (
	TypeWebhook      = "webhook"
	TypeWebhookLarge = "webhook_large"
	TypeManual       = "manual"
	TypeManualLarge  = "manual_large"
	TypeSchedule     = "schedule"
)

// Notification is the JSON document pushed to the pipeline owner.
type Notification struct {
	Type         string `json:"type"`
	WebhookID    string `json:"webhookId,omitempty"`
	PipelineID   string `json:"pipelineId,omitempty"`
	PipelineName string `json:"pipelineName,omitempty"`
	Data         any    `json:"data,omitempty"`
	Message      string `json:"message,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// encodeWithinLimit encodes full and returns it when it is shorter than
// MaxPayloadBytes. Otherwise it encodes the pointer notification.
func encodeWithinLimit(full, pointer *Notification) ([]byte, bool, error) {
	body, err := json.Marshal(full)
	if err != nil {
		return nil, false, errors.InternalError("failed to encode notification", err)
	}
	if len(body) < MaxPayloadBytes {
		return body, false, nil
	}

	small, err := json.Marshal(pointer)
	if err != nil {
		return nil, false, errors.InternalError("failed to encode notification", err)
	}
	return small, true, nil
}

func webhookPointer(webhookID, pipelineName string) *Notification {
	return &Notification{
		Type:      TypeWebhookLarge,
		WebhookID: webhookID,
		Message:   fmt.Sprintf("%s received a request too large to include. Open the webhook to see it.", displayName(pipelineName)),
	}
}

func manualPointer(pipelineID, pipelineName string) *Notification {
	return &Notification{
		Type:       TypeManualLarge,
		PipelineID: pipelineID,
		Message:    fmt.Sprintf("%s was run with input too large to include.", displayName(pipelineName)),
	}
}

func displayName(name string) string {
	if name == "" {
		return "A pipeline"
	}
	return name
}
