// Package invite turns a created meeting into one email per recipient and
// keeps a ledger of every delivery attempt.
package invite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/telemed/telemed/internal/platform/mailer"
)

// Dispatcher fans one Request out into per-recipient messages.
type Dispatcher struct {
	sender    mailer.Sender
	templates *mailer.TemplateEngine
	ledger    Repository
	log       zerolog.Logger
	now       func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLedger persists every delivery attempt.
func WithLedger(repo Repository) DispatcherOption {
	return func(d *Dispatcher) { d.ledger = repo }
}

// NewDispatcher creates a Dispatcher sending through the given mailer.
func NewDispatcher(sender mailer.Sender, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:    sender,
		templates: mailer.NewTemplateEngine(),
		log:       logger.With().Str("component", "invite").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends one message per recipient. Sends fan out concurrently and
// fail independently: one bad address never blocks the others. The returned
// deliveries cover every recipient; when some failed, the error is a
// DispatchError naming them.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) ([]Delivery, error) {
	if len(req.Recipients) == 0 {
		return nil, nil
	}

	msg, err := d.render(req)
	if err != nil {
		return nil, fmt.Errorf("render invite: %w", err)
	}

	deliveries := make([]Delivery, len(req.Recipients))

	var wg sync.WaitGroup
	for i, recipient := range req.Recipients {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()

			m := msg
			m.To = recipient
			m.Attachments = []mailer.Attachment{mailer.BuildInviteICS(mailer.InviteEvent{
				UID:         req.CallID,
				Summary:     req.Topic,
				Description: req.Description,
				JoinLink:    req.JoinLink,
				StartsAt:    req.StartsAt,
				Attendee:    recipient,
			})}

			delivery := Delivery{Recipient: recipient, Status: StatusSent, SentAt: d.now()}
			if err := d.sender.Send(ctx, m); err != nil {
				delivery.Status = StatusFailed
				delivery.Error = err.Error()
			}
			deliveries[i] = delivery
		}(i, recipient)
	}
	wg.Wait()

	d.record(ctx, req.CallID, deliveries)

	var failed []string
	var errs error
	for _, del := range deliveries {
		if del.Status == StatusFailed {
			failed = append(failed, del.Recipient)
			errs = multierr.Append(errs, fmt.Errorf("%s: %s", del.Recipient, del.Error))
		}
	}
	if len(failed) > 0 {
		d.log.Warn().Str("call_id", req.CallID).Strs("recipients", failed).Msg("invite dispatch partially failed")
		return deliveries, &DispatchError{Failed: failed, Err: errs}
	}
	return deliveries, nil
}

func (d *Dispatcher) render(req Request) (mailer.Message, error) {
	subject, text, html, err := d.templates.Render(mailer.TemplateMeetingInvite, map[string]string{
		"topic":       req.Topic,
		"description": req.Description,
		"time":        req.StartsAt.Format("Monday, January 2, 2006 at 3:04 PM MST"),
		"link":        req.JoinLink,
	})
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{Subject: subject, Text: text, HTML: html}, nil
}

// record writes the attempts to the ledger. Ledger failures are logged and
// swallowed: bookkeeping must not turn a sent invite into an error.
func (d *Dispatcher) record(ctx context.Context, callID string, deliveries []Delivery) {
	if d.ledger == nil {
		return
	}
	for _, del := range deliveries {
		rec := Record{
			CallID:    callID,
			Recipient: del.Recipient,
			Status:    del.Status,
			Error:     del.Error,
			CreatedAt: del.SentAt,
		}
		if err := d.ledger.Create(ctx, &rec); err != nil {
			d.log.Error().Str("call_id", callID).Str("recipient", del.Recipient).Err(err).Msg("record delivery")
		}
	}
}
