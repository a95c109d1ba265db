// Package meeting implements the idempotent meeting creation flow: instant
// rooms, scheduled meetings with emailed invites, and each user's personal
// room.
package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/domain/invite"
	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/callstore"
)

// TopicSuffix is appended to every scheduled meeting topic.
const TopicSuffix = " TeleMed Meeting"

// DefaultInstantDescription is used when an instant meeting has no
// description.
const DefaultInstantDescription = "Instant Meeting"

// Dispatcher sends the invite emails of a newly created meeting.
type Dispatcher interface {
	Dispatch(ctx context.Context, req invite.Request) ([]invite.Delivery, error)
}

// Service runs the creation protocol against the call store.
type Service struct {
	store      callstore.Client
	dispatcher Dispatcher
	baseURL    string
	log        zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// NewService creates a meeting service. baseURL is the public origin used to
// build join links.
func NewService(store callstore.Client, dispatcher Dispatcher, baseURL string, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		baseURL:    baseURL,
		log:        logger.With().Str("component", "meeting").Logger(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Create validates the draft and issues a single atomic get-or-create
// against the store. The store is trusted to mean "create if absent, else
// return the existing record"; the protocol never checks first and never
// retries the write, so the created flag is reliable under concurrent
// submission.
//
// Invites go out only when a scheduled meeting was actually created, using
// the returned record's custom fields rather than the local draft, since the
// store may normalize them. A dispatch failure is reported in the Outcome,
// never as a creation error.
func (s *Service) Create(ctx context.Context, ident auth.Identity, kind Kind, draft Draft) (Outcome, error) {
	if err := s.validate(kind, draft); err != nil {
		return Outcome{}, err
	}

	id, data := s.buildCall(ident, kind, draft)

	call, created, err := s.store.GetOrCreate(ctx, id, data)
	if err != nil {
		return Outcome{}, fmt.Errorf("get or create meeting %s: %w", id, err)
	}

	out := Outcome{
		Call:     call,
		Created:  created,
		JoinLink: s.JoinLink(id, kind),
	}

	if kind == KindScheduled && created {
		startsAt := data.StartsAt
		if call.StartsAt != nil {
			startsAt = *call.StartsAt
		}
		deliveries, err := s.dispatcher.Dispatch(ctx, invite.Request{
			CallID:      call.ID,
			Recipients:  draft.Invites,
			Topic:       call.Custom.Topic,
			Description: call.Custom.Description,
			JoinLink:    out.JoinLink,
			StartsAt:    startsAt,
		})
		out.Deliveries = deliveries
		if err != nil {
			out.DispatchErr = err.Error()
		}
	}

	s.log.Info().
		Str("call_id", call.ID).
		Str("kind", string(kind)).
		Bool("created", created).
		Int("deliveries", len(out.Deliveries)).
		Msg("meeting creation attempt")
	return out, nil
}

// Personal ensures the caller's personal room exists. The record id is the
// stable user id, so repeated calls find the same room; the second call
// reports created = false.
func (s *Service) Personal(ctx context.Context, ident auth.Identity) (Outcome, error) {
	return s.Create(ctx, ident, KindPersonal, Draft{})
}

// JoinLink builds the public join URL of a call.
func (s *Service) JoinLink(callID string, kind Kind) string {
	link := fmt.Sprintf("%s/meeting/%s", s.baseURL, callID)
	if kind == KindPersonal {
		link += "?personal=true"
	}
	return link
}

func (s *Service) validate(kind Kind, draft Draft) error {
	switch kind {
	case KindInstant:
		// Topic and invites are not part of the instant flow.
		return nil
	case KindPersonal:
		return nil
	case KindScheduled:
		if draft.Topic == "" {
			return &ValidationError{Field: "topic", Message: "required"}
		}
		if len(draft.Invites) == 0 {
			return &ValidationError{Field: "invites", Message: "at least one invite is required"}
		}
		var invalid []string
		for _, addr := range draft.Invites {
			if !validEmail(addr) {
				invalid = append(invalid, addr)
			}
		}
		if len(invalid) > 0 {
			return &ValidationError{Field: "invites", Message: "invalid email addresses", Values: invalid}
		}
		if draft.StartsAt.Before(s.now()) {
			return &ValidationError{Field: "starts_at", Message: "must not be in the past"}
		}
		return nil
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
}

// buildCall derives the record id and creation payload. Instant and
// scheduled meetings get a fresh random id; the personal room reuses the
// user id and is therefore idempotent by construction.
func (s *Service) buildCall(ident auth.Identity, kind Kind, draft Draft) (string, callstore.CallData) {
	switch kind {
	case KindPersonal:
		return ident.UserID, callstore.CallData{
			StartsAt: s.now(),
			Members:  []string{ident.UserID},
		}
	case KindInstant:
		startsAt := draft.StartsAt
		if startsAt.IsZero() {
			startsAt = s.now()
		}
		description := draft.Description
		if description == "" {
			description = DefaultInstantDescription
		}
		return s.newID(), callstore.CallData{
			StartsAt: startsAt,
			Custom:   callstore.Custom{Description: description},
			Members:  []string{ident.UserID},
		}
	default: // KindScheduled
		return s.newID(), callstore.CallData{
			StartsAt: draft.StartsAt,
			Custom: callstore.Custom{
				Topic:       draft.Topic + TopicSuffix,
				Description: draft.Description,
				Invites:     draft.Invites,
			},
			Members: []string{ident.UserID},
		}
	}
}
