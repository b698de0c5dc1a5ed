package booking

import (
	"context"
	"errors"
	"line_chatbot/src/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct {
	*MemoryRepository
}

func (failingRepo) Insert(context.Context, *model.Booking) error {
	return errors.New("write failed")
}

type failingCalendar struct{}

func (failingCalendar) CreateEvent(context.Context, Event) (*CreatedEvent, error) {
	return nil, errors.New("calendar down")
}

func (failingCalendar) DeleteEvent(context.Context, string) error {
	return errors.New("calendar down")
}

func bangkok(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return loc
}

func TestCreateBookingStoresRecord(t *testing.T) {
	ctx := context.Background()
	cal := NewMemoryCalendar()
	repo := NewMemoryRepository()
	svc := NewService(cal, repo, bangkok(t))

	res, err := svc.CreateBooking(ctx, "U1", Request{Title: "Demo", Date: "2025-06-01", Time: "10:00"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Contains(t, res.Link, res.EventID)
	assert.Equal(t, 1, cal.Len())

	list, err := svc.ListBookings(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Demo", list[0].Title)
	assert.Equal(t, "2025-06-01T10:00:00+07:00", list[0].Datetime)
	assert.Equal(t, model.BookingBooked, list[0].Status)
	assert.Equal(t, res.EventID, list[0].EventID)
}

func TestCreateBookingEventLastsOneHour(t *testing.T) {
	cal := NewMemoryCalendar()
	svc := NewService(cal, NewMemoryRepository(), bangkok(t))

	res, err := svc.CreateBooking(context.Background(), "U1", Request{Title: "Demo", Date: "2025-06-01", Time: "10:00"})
	require.NoError(t, err)

	ev := cal.events[res.EventID]
	assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
}

func TestCreateBookingRejectsBadDateTime(t *testing.T) {
	svc := NewService(NewMemoryCalendar(), NewMemoryRepository(), bangkok(t))

	_, err := svc.CreateBooking(context.Background(), "U1", Request{Title: "Demo", Date: "tomorrow", Time: "10:00"})
	assert.ErrorIs(t, err, ErrInvalidDateTime)
}

func TestCreateBookingAcceptsDottedTime(t *testing.T) {
	svc := NewService(NewMemoryCalendar(), NewMemoryRepository(), bangkok(t))

	_, err := svc.CreateBooking(context.Background(), "U1", Request{Title: "Demo", Date: "2025-06-01", Time: "10.30"})
	assert.NoError(t, err)
}

func TestCreateBookingRemovesEventWhenRecordFails(t *testing.T) {
	cal := NewMemoryCalendar()
	svc := NewService(cal, failingRepo{NewMemoryRepository()}, bangkok(t))

	_, err := svc.CreateBooking(context.Background(), "U1", Request{Title: "Demo", Date: "2025-06-01", Time: "10:00"})
	require.Error(t, err)
	assert.Equal(t, 0, cal.Len())
}

func TestCreateBookingCalendarFailure(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(failingCalendar{}, repo, bangkok(t))

	_, err := svc.CreateBooking(context.Background(), "U1", Request{Title: "Demo", Date: "2025-06-01", Time: "10:00"})
	require.Error(t, err)

	list, err := repo.ListActive(context.Background(), "U1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	cal := NewMemoryCalendar()
	svc := NewService(cal, NewMemoryRepository(), bangkok(t))

	res, err := svc.CreateBooking(ctx, "U1", Request{Title: "Demo", Date: "2025-06-01", Time: "10:00"})
	require.NoError(t, err)

	b, err := svc.CancelBooking(ctx, "U2", res.EventID)
	require.NoError(t, err)
	assert.Nil(t, b, "another user cannot cancel")

	b, err = svc.CancelBooking(ctx, "U1", res.EventID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, 0, cal.Len())

	b, err = svc.CancelBooking(ctx, "U1", res.EventID)
	require.NoError(t, err)
	assert.Nil(t, b)

	list, err := svc.ListBookings(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListBookingsOrderedByDatetime(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryCalendar(), NewMemoryRepository(), bangkok(t))

	_, err := svc.CreateBooking(ctx, "U1", Request{Title: "Later", Date: "2025-06-02", Time: "09:00"})
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, "U1", Request{Title: "Sooner", Date: "2025-06-01", Time: "15:00"})
	require.NoError(t, err)

	list, err := svc.ListBookings(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sooner", list[0].Title)
	assert.Equal(t, "Later", list[1].Title)
}

func TestMemoryRepositoryCheckInOncePerDay(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := model.BeaconCheckin{UserID: "U1", Hwid: "d41d8cd98f", Type: "enter", Year: 2025, Month: 6, Day: 1}

	ok, err := repo.CheckIn(ctx, c)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CheckIn(ctx, c)
	require.NoError(t, err)
	assert.False(t, ok)

	c.Day = 2
	ok, err = repo.CheckIn(ctx, c)
	require.NoError(t, err)
	assert.True(t, ok)
}
