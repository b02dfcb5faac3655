package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// Dispatcher fans one event out across the recipient's offline channels.
type Dispatcher struct {
	senders []Sender
	logger  *slog.Logger
}

func NewDispatcher(sms *SMSSender, email *EmailSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: []Sender{sms, email},
		logger:  logger,
	}
}

// Dispatch issues one attempt per configured channel, concurrently and
// independently. It never returns an error: a channel failure is data in the
// results, not a reason to abort, and one channel's failure must not prevent
// or invalidate another's delivery. Callers must not block their own
// operation's success on these results.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Eventer, rcpt model.Recipient) []DeliveryResult {
	rendered, notifiable, err := Render(ev)
	if err != nil {
		d.logger.Error("notification render failed", "event", ev.GetKind().Wire(), "error", err)
		return nil
	}
	if !notifiable {
		return nil
	}

	results := make([]DeliveryResult, len(d.senders))
	var wg sync.WaitGroup
	for i, sender := range d.senders {
		wg.Add(1)
		go func(i int, sender Sender) {
			defer wg.Done()
			results[i] = d.attempt(ctx, sender, rendered, rcpt, ev.GetID())
		}(i, sender)
	}
	wg.Wait()

	for _, res := range results {
		if res.Attempted && !res.Success {
			d.logger.Warn("notification delivery failed",
				"channel", res.Channel,
				"recipient", rcpt.PrincipalID,
				"reason", res.ErrorReason,
			)
		}
	}
	return results
}

// attempt runs one single-shot channel delivery. There is no automatic
// retry: the underlying transport's policy is all the retrying this path
// gets.
func (d *Dispatcher) attempt(ctx context.Context, sender Sender, rendered Rendered, rcpt model.Recipient, correlationID string) (res DeliveryResult) {
	res = DeliveryResult{Channel: sender.Channel(), CorrelationID: correlationID}

	// A provider panic must not take down the caller; record it as a
	// failed attempt and keep the other channel's result intact.
	defer func() {
		if r := recover(); r != nil {
			res.Attempted = true
			res.Success = false
			res.ErrorReason = fmt.Sprintf("panic: %v", r)
		}
	}()

	if !sender.Configured() {
		res.ErrorReason = "not configured"
		return res
	}

	out := Outgoing{CorrelationID: correlationID}
	switch sender.Channel() {
	case ChannelSMS:
		out.To = rcpt.Phone
		out.Body = rendered.SMSText
	case ChannelEmail:
		out.To = rcpt.Email
		out.Subject = rendered.EmailSubject
		out.Body = rendered.EmailHTML
	}
	if out.To == "" {
		res.ErrorReason = "no recipient address"
		return res
	}

	res.Attempted = true
	providerID, err := sender.Send(ctx, out)
	if err != nil {
		res.ErrorReason = err.Error()
		return res
	}
	res.Success = true
	res.ProviderID = providerID
	return res
}
