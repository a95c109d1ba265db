package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/domain/invite"
	"github.com/telemed/telemed/internal/platform/auth"
	"github.com/telemed/telemed/internal/platform/callstore"
)

type mockDispatcher struct {
	requests []invite.Request
	err      error
}

func (m *mockDispatcher) Dispatch(_ context.Context, req invite.Request) ([]invite.Delivery, error) {
	m.requests = append(m.requests, req)
	deliveries := make([]invite.Delivery, len(req.Recipients))
	for i, r := range req.Recipients {
		deliveries[i] = invite.Delivery{Recipient: r, Status: invite.StatusSent}
	}
	return deliveries, m.err
}

var testIdent = auth.Identity{UserID: "user-1", Name: "Dr. Lee", Email: "lee@clinic.example"}

func newTestService(store callstore.Client, dispatcher Dispatcher, now time.Time) *Service {
	svc := NewService(store, dispatcher, "https://clinic.example", zerolog.Nop())
	svc.now = func() time.Time { return now }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("generated-%d", n)
	}
	return svc
}

func TestCreate_Scheduled(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	dispatcher := &mockDispatcher{}
	svc := newTestService(store, dispatcher, now)

	out, err := svc.Create(context.Background(), testIdent, KindScheduled, Draft{
		Topic:    "Checkup",
		Invites:  []string{"p@x.com"},
		StartsAt: now.Add(26 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !out.Created {
		t.Error("Created = false, want true")
	}
	if out.Call.Custom.Topic != "Checkup TeleMed Meeting" {
		t.Errorf("topic = %q", out.Call.Custom.Topic)
	}
	if len(dispatcher.requests) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(dispatcher.requests))
	}
	req := dispatcher.requests[0]
	if len(req.Recipients) != 1 || req.Recipients[0] != "p@x.com" {
		t.Errorf("recipients = %v", req.Recipients)
	}
	if !strings.Contains(req.JoinLink, out.Call.ID) {
		t.Errorf("join link %q does not contain call id %q", req.JoinLink, out.Call.ID)
	}
	// Topic comes from the stored record, not the draft.
	if req.Topic != out.Call.Custom.Topic {
		t.Errorf("dispatch topic = %q, want %q", req.Topic, out.Call.Custom.Topic)
	}
	if store.GetOrCreateCount() != 1 {
		t.Errorf("store writes = %d, want exactly 1", store.GetOrCreateCount())
	}
}

func TestCreate_ResubmissionDoesNotRedispatch(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	dispatcher := &mockDispatcher{}
	svc := newTestService(store, dispatcher, now)
	svc.newID = func() string { return "same-id" }

	draft := Draft{Topic: "Checkup", Invites: []string{"p@x.com"}, StartsAt: now.Add(time.Hour)}

	out, err := svc.Create(context.Background(), testIdent, KindScheduled, draft)
	if err != nil || !out.Created {
		t.Fatalf("first attempt: out = %+v, err = %v", out, err)
	}

	out, err = svc.Create(context.Background(), testIdent, KindScheduled, draft)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if out.Created {
		t.Error("second attempt Created = true, want false")
	}
	if len(dispatcher.requests) != 1 {
		t.Errorf("dispatches = %d, want 1 total", len(dispatcher.requests))
	}
	if len(out.Deliveries) != 0 {
		t.Errorf("second attempt deliveries = %v, want none", out.Deliveries)
	}
}

func TestCreate_Instant(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	dispatcher := &mockDispatcher{}
	svc := newTestService(store, dispatcher, now)

	out, err := svc.Create(context.Background(), testIdent, KindInstant, Draft{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !out.Created {
		t.Error("Created = false, want true")
	}
	if out.Call.Custom.Description != DefaultInstantDescription {
		t.Errorf("description = %q, want default", out.Call.Custom.Description)
	}
	if out.Call.StartsAt == nil || !out.Call.StartsAt.Equal(now) {
		t.Errorf("starts_at = %v, want now", out.Call.StartsAt)
	}
	if len(dispatcher.requests) != 0 {
		t.Errorf("instant meeting dispatched invites: %v", dispatcher.requests)
	}
	if !strings.Contains(out.JoinLink, "/meeting/"+out.Call.ID) {
		t.Errorf("join link = %q", out.JoinLink)
	}
}

func TestCreate_PersonalIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	dispatcher := &mockDispatcher{}
	svc := newTestService(store, dispatcher, now)

	first, err := svc.Personal(context.Background(), testIdent)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.Personal(context.Background(), testIdent)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.Call.ID != testIdent.UserID || second.Call.ID != testIdent.UserID {
		t.Errorf("ids = %q, %q, want the stable user id", first.Call.ID, second.Call.ID)
	}
	if !first.Created || second.Created {
		t.Errorf("created flags = %v, %v, want true then false", first.Created, second.Created)
	}
	if len(dispatcher.requests) != 0 {
		t.Errorf("personal room dispatched invites: %v", dispatcher.requests)
	}
	if !strings.HasSuffix(first.JoinLink, "?personal=true") {
		t.Errorf("join link = %q", first.JoinLink)
	}
}

func TestCreate_ValidationFailsFast(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	dispatcher := &mockDispatcher{}
	svc := newTestService(store, dispatcher, now)

	cases := []struct {
		name  string
		draft Draft
		field string
	}{
		{"missing topic", Draft{Invites: []string{"p@x.com"}, StartsAt: now.Add(time.Hour)}, "topic"},
		{"no invites", Draft{Topic: "Checkup", StartsAt: now.Add(time.Hour)}, "invites"},
		{"past start", Draft{Topic: "Checkup", Invites: []string{"p@x.com"}, StartsAt: now.Add(-time.Hour)}, "starts_at"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), testIdent, KindScheduled, tc.draft)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
	if store.GetOrCreateCount() != 0 {
		t.Errorf("store writes = %d, validation must not reach the store", store.GetOrCreateCount())
	}
}

func TestCreate_InvalidEmailsAreNamed(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	svc := newTestService(callstore.NewFakeClient(), &mockDispatcher{}, now)

	_, err := svc.Create(context.Background(), testIdent, KindScheduled, Draft{
		Topic:    "Checkup",
		Invites:  []string{"good@x.com", "not an email", "also-bad"},
		StartsAt: now.Add(time.Hour),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Values) != 2 || verr.Values[0] != "not an email" || verr.Values[1] != "also-bad" {
		t.Errorf("Values = %v, want the two bad addresses", verr.Values)
	}
	if !strings.Contains(verr.Error(), "also-bad") {
		t.Errorf("message %q does not name the offender", verr.Error())
	}
}

func TestCreate_DispatchFailureDoesNotFailCreation(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	dispatcher := &mockDispatcher{err: &invite.DispatchError{Failed: []string{"p@x.com"}, Err: errors.New("smtp down")}}
	svc := newTestService(store, dispatcher, now)

	out, err := svc.Create(context.Background(), testIdent, KindScheduled, Draft{
		Topic:    "Checkup",
		Invites:  []string{"p@x.com"},
		StartsAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !out.Created {
		t.Error("Created = false, want true")
	}
	if out.DispatchErr == "" {
		t.Error("DispatchErr empty, dispatch failure must be reported")
	}
}

func TestCreate_StoreDown(t *testing.T) {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	store := callstore.NewFakeClient()
	store.FailCreates = true
	svc := newTestService(store, &mockDispatcher{}, now)

	_, err := svc.Create(context.Background(), testIdent, KindInstant, Draft{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !callstore.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}
