// Package notify delivers human-readable renderings of state events to a
// recipient's offline channels. Channel attempts are single-shot,
// independent, and never fail the caller: the per-channel outcome is the
// contract, not an all-or-nothing error.
package notify

import "context"

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// DeliveryResult is the per-channel outcome of one dispatch. "Not attempted"
// (missing credentials or address) is surfaced distinctly from "attempted
// and failed" so operators can tell the two apart.
type DeliveryResult struct {
	Channel       Channel `json:"channel"`
	Attempted     bool    `json:"attempted"`
	Success       bool    `json:"success"`
	ProviderID    string  `json:"provider_id,omitempty"`
	ErrorReason   string  `json:"error_reason,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// Outgoing is one rendered message bound for one channel.
type Outgoing struct {
	To            string // phone number or email address
	Subject       string // email only
	Body          string // short-form text for SMS, HTML for email
	CorrelationID string
}

// Sender is one delivery channel. Configured is checked before every attempt
// because credentials can appear via config hot-reload without a restart.
type Sender interface {
	Channel() Channel
	Configured() bool
	Send(ctx context.Context, out Outgoing) (providerID string, err error)
}
