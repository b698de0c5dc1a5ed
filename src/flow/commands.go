package flow

import (
	"context"
	"fmt"
	"line_chatbot/src/logger"
	"line_chatbot/src/model"
	"strings"
	"time"
)

// Bookings is the booking record side of the external action
type Bookings interface {
	ListBookings(ctx context.Context, userID string) ([]model.Booking, error)
	CancelBooking(ctx context.Context, userID, eventID string) (*model.Booking, error)
}

// BookingCommands answers the one-shot booking commands
type BookingCommands struct {
	cmds     Commands
	bookings Bookings
}

func NewBookingCommands(def *Definition, bookings Bookings) *BookingCommands {
	return &BookingCommands{cmds: def.Commands, bookings: bookings}
}

// View lists the bookings of userID
func (c *BookingCommands) View(ctx context.Context, userID string) ([]model.Message, error) {
	list, err := c.bookings.ListBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if len(list) == 0 {
		return []model.Message{model.TextMessage(c.cmds.ViewBookings.Empty)}, nil
	}
	return []model.Message{model.TextMessage(FormatBookings(list))}, nil
}

// Cancel cancels the booking whose event id follows the command trigger
func (c *BookingCommands) Cancel(ctx context.Context, userID, text string) ([]model.Message, error) {
	cmd := c.cmds.CancelBooking
	eventID := commandArgument(text, cmd.Trigger)
	if eventID == "" {
		return []model.Message{model.TextMessage(cmd.MissingID)}, nil
	}

	b, err := c.bookings.CancelBooking(ctx, userID, eventID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Str("event_id", eventID).Msg("Cancel booking failed")
		return []model.Message{model.TextMessage(cmd.Failure)}, nil
	}
	if b == nil {
		return []model.Message{model.TextMessage(cmd.NotFound)}, nil
	}
	return []model.Message{model.TextMessage(cmd.Done)}, nil
}

// FormatBookings renders bookings as a plain text list
func FormatBookings(list []model.Booking) string {
	var sb strings.Builder
	sb.WriteString("📅 นัดหมายของคุณ")
	for i, b := range list {
		when := b.Datetime
		if t, err := time.Parse(time.RFC3339, b.Datetime); err == nil {
			when = t.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&sb, "\n\n%d. %s\n🕒 %s\n🔖 รหัส: %s", i+1, b.Title, when, b.EventID)
	}
	return sb.String()
}

// commandArgument returns the first word after trigger in text
func commandArgument(text, trigger string) string {
	i := strings.Index(text, trigger)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(text[i+len(trigger):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
