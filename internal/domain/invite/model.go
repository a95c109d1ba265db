package invite

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request describes one dispatch: the meeting and who to notify.
type Request struct {
	CallID      string
	Recipients  []string
	Topic       string
	Description string
	JoinLink    string
	StartsAt    time.Time
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	Recipient string    `json:"recipient"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Status of one delivery attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// DispatchError reports the recipients whose message could not be sent. The
// meeting itself was still created; callers report the two outcomes
// separately.
type DispatchError struct {
	Failed []string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("invite dispatch failed for %s: %v", strings.Join(e.Failed, ", "), e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Record is one delivery attempt as persisted in the ledger.
type Record struct {
	ID        uuid.UUID `json:"id"`
	CallID    string    `json:"call_id"`
	Recipient string    `json:"recipient"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
