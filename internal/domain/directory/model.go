package directory

import (
	"fmt"
	"sort"
	"time"

	"github.com/telemed/telemed/internal/platform/callstore"
)

// RecordingEntry is a recording annotated with its parent call's metadata.
// The annotation is recomputed on every fetch since the parent call's
// custom fields can change.
type RecordingEntry struct {
	URL          string     `json:"url"`
	StartTime    time.Time  `json:"start_time"`
	CallID       string     `json:"call_id"`
	Topic        string     `json:"topic,omitempty"`
	Description  string     `json:"description,omitempty"`
	Invites      []string   `json:"invites,omitempty"`
	CallStartsAt *time.Time `json:"call_starts_at,omitempty"`
}

// PartialError reports that some per-call recording queries failed. The
// successful subset is still returned alongside it; callers surface the
// failed calls as a notice, distinct from "zero recordings".
type PartialError struct {
	FailedCallIDs []string
	Err           error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("recordings incomplete: %d call(s) failed: %v", len(e.FailedCallIDs), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// sortCallsByStart orders calls by starts_at with ties broken by id, so
// repeated fetches of an unchanged set keep a stable order.
func sortCallsByStart(calls []callstore.Call, ascending bool) {
	lessTime := func(a, b *time.Time) bool {
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if ascending {
			return a.Before(*b)
		}
		return a.After(*b)
	}
	sort.Slice(calls, func(i, j int) bool {
		a, b := calls[i].StartsAt, calls[j].StartsAt
		if a != nil && b != nil && a.Equal(*b) {
			return calls[i].ID < calls[j].ID
		}
		return lessTime(a, b)
	})
}
