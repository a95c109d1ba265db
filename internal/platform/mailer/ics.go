package mailer

import (
	"encoding/base64"
	"time"

	ics "github.com/arran4/golang-ical"
)

// InviteEvent describes the calendar entry attached to an invite email.
type InviteEvent struct {
	UID         string
	Summary     string
	Description string
	JoinLink    string
	StartsAt    time.Time
	Duration    time.Duration
	Attendee    string
	Organizer   string
}

// BuildInviteICS renders the event as an iCalendar REQUEST and wraps it as a
// message attachment, so mail clients offer an add-to-calendar action.
func BuildInviteICS(ev InviteEvent) Attachment {
	if ev.Duration <= 0 {
		ev.Duration = 30 * time.Minute
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId("-//TeleMed//Meetings//EN")

	e := cal.AddEvent(ev.UID)
	now := time.Now().UTC()
	e.SetCreatedTime(now)
	e.SetDtStampTime(now)
	e.SetStartAt(ev.StartsAt)
	e.SetEndAt(ev.StartsAt.Add(ev.Duration))
	e.SetSummary(ev.Summary)
	if ev.Description != "" {
		e.SetDescription(ev.Description)
	}
	if ev.JoinLink != "" {
		e.SetURL(ev.JoinLink)
	}
	if ev.Organizer != "" {
		e.SetOrganizer("mailto:" + ev.Organizer)
	}
	if ev.Attendee != "" {
		e.AddAttendee(ev.Attendee, ics.ParticipationStatusNeedsAction)
	}

	return Attachment{
		Name:        "invite.ics",
		Content:     base64.StdEncoding.EncodeToString([]byte(cal.Serialize())),
		ContentType: "text/calendar; method=REQUEST",
	}
}
