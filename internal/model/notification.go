package model

// Notification channels and outcome states reported by the notification
// sender.  The reminder dispatcher inspects Status to decide whether a
// claimed reminder stands or must be released for retry.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"

	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// NotificationResult is the outcome of one send attempt as reported by
// the external notification provider.
//
// Fields:
//
//	Channel           – sms or email.
//	Provider          – provider identifier (e.g. "amqp", "twilio").
//	Status            – sent, failed or skipped.
//	ProviderMessageID – provider-side id when available.
//	Error             – provider error text when Status is failed.
type NotificationResult struct {
	Channel           string `json:"channel"`
	Provider          string `json:"provider"`
	Status            string `json:"status"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Sent reports whether the attempt succeeded.
func (r NotificationResult) Sent() bool { return r.Status == NotificationSent }
