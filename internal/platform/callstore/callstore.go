// Package callstore is the client for the remote video call store: the
// external system of record for meeting metadata and recordings. The rest of
// the service only ever reads call records or requests their creation; it
// never mutates them in place.
package callstore

import (
	"context"
	"encoding/json"
	"time"
)

// Custom holds the application-owned fields attached to a call record.
type Custom struct {
	Topic       string   `json:"topic,omitempty"`
	Description string   `json:"description,omitempty"`
	Invites     []string `json:"invites,omitempty"`
}

// UnmarshalJSON accepts the legacy singular "invite" key that older records
// carry. New records are always written with "invites".
func (c *Custom) UnmarshalJSON(b []byte) error {
	type plain Custom
	aux := struct {
		*plain
		Invite []string `json:"invite"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if len(c.Invites) == 0 && len(aux.Invite) > 0 {
		c.Invites = aux.Invite
	}
	return nil
}

// Call is a call record as the remote store returns it.
type Call struct {
	ID              string     `json:"id"`
	CreatedByUserID string     `json:"created_by_user_id"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Custom          Custom     `json:"custom"`
}

// Recording is a single recording of a call. Its only identity is the URL.
type Recording struct {
	URL       string    `json:"url"`
	StartTime time.Time `json:"start_time"`
}

// CallData is the payload for a get-or-create request.
type CallData struct {
	StartsAt time.Time `json:"starts_at"`
	Custom   Custom    `json:"custom"`
	Members  []string  `json:"members,omitempty"`
}

// Query describes a calls query: a filter expression in the store's grammar
// plus server-side sort directives. The server-side sort is a convenience
// only; callers that need a guaranteed order must re-sort the result.
type Query struct {
	Filter Expr
	Sort   []Sort
	Limit  int
}

// Client is the remote call store surface consumed by this service.
//
// GetOrCreate must be atomic on the store side: it returns the existing
// record, or creates it and reports created=true. The creation protocol's
// no-duplicate-invite guarantee rests on that atomicity, so implementations
// must issue it as a single request and never check-then-create.
type Client interface {
	QueryCalls(ctx context.Context, q Query) ([]Call, error)
	GetOrCreate(ctx context.Context, id string, data CallData) (Call, bool, error)
	QueryRecordings(ctx context.Context, callID string) ([]Recording, error)
}
