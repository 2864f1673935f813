package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	commonhttp "pipeline-hub/internal/common/http"
	"pipeline-hub/internal/models"
)

// WebPushConfig holds the VAPID credential triple and delivery options.
type WebPushConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
	// TTL is how long, in seconds, the push service keeps an undelivered message.
	TTL     int
	Urgency webpush.Urgency
	Timeout time.Duration
	// Client overrides the pooled HTTP client.
	Client *http.Client
}

// WebPushTransport sends RFC 8291 encrypted messages with VAPID auth.
type WebPushTransport struct {
	config WebPushConfig
	client *http.Client
}

// NewWebPushTransport creates a transport. The HTTP client timeout is the
// only bound on a single delivery.
func NewWebPushTransport(config WebPushConfig) *WebPushTransport {
	if config.Urgency == "" {
		config.Urgency = webpush.UrgencyNormal
	}
	client := config.Client
	if client == nil {
		client = commonhttp.NewHTTPClient(commonhttp.WithTimeout(config.Timeout))
	}
	return &WebPushTransport{
		config: config,
		client: client,
	}
}

func (t *WebPushTransport) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.config.Subject,
		VAPIDPublicKey:  t.config.PublicKey,
		VAPIDPrivateKey: t.config.PrivateKey,
		TTL:             t.config.TTL,
		Urgency:         t.config.Urgency,
	})
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	return classifyResponse(resp)
}

// classifyResponse maps push service replies: 404 and 410 mean the
// subscription is permanently gone, any other non-2xx is a failure.
func classifyResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("push service returned %d: %w", resp.StatusCode, ErrSubscriptionGone)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, string(body))
	}
}

// GenerateVAPIDKeys returns a new base64url encoded key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
