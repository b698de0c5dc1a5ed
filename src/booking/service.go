package booking

import (
	"context"
	"errors"
	"fmt"
	"line_chatbot/src/logger"
	"line_chatbot/src/model"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidDateTime is returned when the collected date or time cannot be parsed
var ErrInvalidDateTime = errors.New("invalid booking date or time")

const eventDuration = time.Hour

// Request carries the fields collected by the booking flow
type Request struct {
	Title string
	Date  string // 2006-01-02
	Time  string // 15:04
}

type Result struct {
	ID      string
	EventID string
	Link    string
}

// Repository persists booking records
type Repository interface {
	Insert(ctx context.Context, b *model.Booking) error
	// ListActive returns the user's booked records ordered by datetime.
	ListActive(ctx context.Context, userID string) ([]model.Booking, error)
	// Cancel marks the user's booked record for eventID cancelled and returns it,
	// or nil when there is none.
	Cancel(ctx context.Context, userID, eventID string) (*model.Booking, error)
}

// Service creates and cancels bookings across the calendar and the repository
type Service struct {
	calendar Calendar
	repo     Repository
	loc      *time.Location
	now      func() time.Time
}

func NewService(calendar Calendar, repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{calendar: calendar, repo: repo, loc: loc, now: time.Now}
}

// CreateBooking inserts a one hour calendar event and records it.
// The event is removed again when the record cannot be written.
func (s *Service) CreateBooking(ctx context.Context, userID string, req Request) (*Result, error) {
	start, err := s.parseStart(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("booking title is required")
	}

	ev, err := s.calendar.CreateEvent(ctx, Event{
		Title: title,
		Start: start,
		End:   start.Add(eventDuration),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}

	b := &model.Booking{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Datetime:  start.Format(time.RFC3339),
		EventID:   ev.ID,
		Link:      ev.Link,
		Status:    model.BookingBooked,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		if delErr := s.calendar.DeleteEvent(ctx, ev.ID); delErr != nil {
			logger.Ctx(ctx).Error().Err(delErr).Str("event_id", ev.ID).Msg("Failed to remove orphaned calendar event")
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	logger.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("booking_id", b.ID).
		Str("event_id", ev.ID).
		Msg("Booking created")

	return &Result{ID: b.ID, EventID: ev.ID, Link: ev.Link}, nil
}

// CancelBooking cancels the user's booking for eventID and deletes its calendar event.
// It returns nil when the user has no such booking.
func (s *Service) CancelBooking(ctx context.Context, userID, eventID string) (*model.Booking, error) {
	b, err := s.repo.Cancel(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	if err := s.calendar.DeleteEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("failed to delete calendar event: %w", err)
	}
	return b, nil
}

func (s *Service) ListBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.repo.ListActive(ctx, userID)
}

var timeLayouts = []string{"15:04", "15.04", "15:04:05"}

func (s *Service) parseStart(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation("2006-01-02 "+layout, date+" "+clock, s.loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidDateTime, date, clock)
}
