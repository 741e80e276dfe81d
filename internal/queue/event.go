// Package queue defines message payloads exchanged over the message broker.
package queue

// MailQueueName is the durable queue credential mail flows through.
const MailQueueName = "auth.mail"

// MailEvent is published when a one-time credential token must reach a
// user out-of-band.  It carries enough for a downstream mailer to render
// and send the message without querying the primary database.  The token
// is the raw value; only its hash is persisted server-side.
type MailEvent struct {
	UserID    uint64 `json:"user_id"`
	To        string `json:"to"`
	Purpose   string `json:"purpose"` // password_reset | email_verification
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
