package booking

import (
	"context"
	"errors"
	"fmt"
	"line_chatbot/src/model"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Event is a calendar event to create
type Event struct {
	Title string
	Start time.Time
	End   time.Time
}

type CreatedEvent struct {
	ID   string
	Link string
}

// Calendar creates and deletes events in the booking calendar
type Calendar interface {
	CreateEvent(ctx context.Context, ev Event) (*CreatedEvent, error)
	// DeleteEvent succeeds when the event is already gone.
	DeleteEvent(ctx context.Context, eventID string) error
}

// GoogleCalendar implements Calendar with the Google Calendar API
type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
	timezone   string
}

// NewGoogleCalendar authenticates with the configured refresh token
func NewGoogleCalendar(ctx context.Context, cfg model.GoogleConfig, timezone string) (*GoogleCalendar, error) {
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("GOOGLE_REFRESH_TOKEN is required for the Google calendar")
	}
	ts := NewOAuth(cfg).TokenSource(ctx, cfg.RefreshToken)
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return NewGoogleCalendarWithService(svc, cfg.CalendarID, timezone), nil
}

func NewGoogleCalendarWithService(svc *calendar.Service, calendarID, timezone string) *GoogleCalendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendar{svc: svc, calendarID: calendarID, timezone: timezone}
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, ev Event) (*CreatedEvent, error) {
	created, err := g.svc.Events.Insert(g.calendarID, &calendar.Event{
		Summary: ev.Title,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err != nil && !alreadyDeleted(err) {
		return err
	}
	return nil
}

// alreadyDeleted reports whether err says the event no longer exists
func alreadyDeleted(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusGone {
		return true
	}
	for _, item := range gerr.Errors {
		if item.Reason == "deleted" {
			return true
		}
	}
	return false
}
