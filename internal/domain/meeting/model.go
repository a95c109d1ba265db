package meeting

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/telemed/telemed/internal/domain/invite"
	"github.com/telemed/telemed/internal/platform/callstore"
)

// Kind selects the creation flow.
type Kind string

const (
	KindInstant   Kind = "instant"
	KindScheduled Kind = "scheduled"
	KindPersonal  Kind = "personal"
)

// ParseKind validates a wire value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindInstant, KindScheduled, KindPersonal:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown meeting kind %q", s)
}

// Draft is the user's creation input. It is never persisted on its own, only
// as the call record it produces.
type Draft struct {
	Topic       string    `json:"topic"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	Invites     []string  `json:"invites"`
}

// Outcome reports a creation attempt. Created is true iff the store had no
// prior record under the requested id. Deliveries and DispatchErr describe
// the invite side effect; they are independent of creation success and a
// failed dispatch never undoes a created meeting.
type Outcome struct {
	Call        callstore.Call    `json:"call"`
	Created     bool              `json:"created"`
	JoinLink    string            `json:"join_link"`
	Deliveries  []invite.Delivery `json:"deliveries,omitempty"`
	DispatchErr string            `json:"dispatch_error,omitempty"`
}

// ValidationError rejects a draft before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
	Values  []string
}

func (e *ValidationError) Error() string {
	if len(e.Values) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Message, strings.Join(e.Values, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validEmail reports whether addr looks like local-part@domain.tld.
func validEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}
