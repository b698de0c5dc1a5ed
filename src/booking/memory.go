package booking

import (
	"context"
	"fmt"
	"line_chatbot/src/model"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps records in process, for local runs and tests
type MemoryRepository struct {
	mu       sync.Mutex
	bookings []model.Booking
	checkins []model.BeaconCheckin
	profiles map[string]model.Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]model.Profile)}
}

func (m *MemoryRepository) Insert(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *MemoryRepository) ListActive(_ context.Context, userID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Booking
	for _, b := range m.bookings {
		if b.UserID == userID && b.Status == model.BookingBooked {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Datetime < out[j].Datetime })
	return out, nil
}

func (m *MemoryRepository) Cancel(_ context.Context, userID, eventID string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.bookings {
		b := &m.bookings[i]
		if b.UserID == userID && b.EventID == eventID && b.Status == model.BookingBooked {
			b.Status = model.BookingCancelled
			found := *b
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) CheckIn(_ context.Context, c model.BeaconCheckin) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.checkins {
		if existing.UserID == c.UserID && existing.Year == c.Year && existing.Month == c.Month && existing.Day == c.Day {
			return false, nil
		}
	}
	m.checkins = append(m.checkins, c)
	return true, nil
}

func (m *MemoryRepository) SaveProfile(_ context.Context, p model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }

func (m *MemoryRepository) Close(context.Context) error { return nil }

// MemoryCalendar is a Calendar that only remembers event ids
type MemoryCalendar struct {
	mu     sync.Mutex
	events map[string]Event
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{events: make(map[string]Event)}
}

func (c *MemoryCalendar) CreateEvent(_ context.Context, ev Event) (*CreatedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.events[id] = ev
	return &CreatedEvent{
		ID:   id,
		Link: fmt.Sprintf("https://www.google.com/calendar/event?eid=%s", id),
	}, nil
}

func (c *MemoryCalendar) DeleteEvent(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, eventID)
	return nil
}

// Len returns the number of events currently held
func (c *MemoryCalendar) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
