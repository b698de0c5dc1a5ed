package intent

import (
	"context"
	"fmt"
	"line_chatbot/src/flow"
	"line_chatbot/src/logger"
)

// Route names the handler that owns a text message
type Route string

const (
	RouteBooking       Route = "booking"        // continue the open booking session
	RouteBookingStart  Route = "booking_start"  // open a booking session
	RouteViewBookings  Route = "view_bookings"  // list bookings
	RouteCancelBooking Route = "cancel_booking" // cancel a stored booking by event id
	RouteChat          Route = "chat"           // chat flow, open or new
	RouteMenu          Route = "menu"           // booking menu reply
)

// SessionChecker reports whether a flow session is open for a user
type SessionChecker interface {
	Active(ctx context.Context, userID string) (bool, error)
}

type Input struct {
	UserID string
	Text   string
}

// Predicate decides whether a rule owns in
type Predicate func(ctx context.Context, in Input) (bool, error)

type Rule struct {
	Name  string
	Match Predicate
	Route Route
}

// Classifier evaluates its rules in order and returns the first match
type Classifier struct {
	rules    []Rule
	fallback Route
}

func NewClassifier(rules []Rule, fallback Route) *Classifier {
	return &Classifier{rules: rules, fallback: fallback}
}

// New builds the rule table for def
func New(def *flow.Definition, booking, chat SessionChecker) *Classifier {
	// open sessions come first so an open flow owns every message until it ends
	rules := []Rule{
		{Name: "booking session", Route: RouteBooking, Match: sessionOpen(booking)},
		{Name: "chat session", Route: RouteChat, Match: sessionOpen(chat)},
		{Name: "booking trigger", Route: RouteBookingStart, Match: textMatch(def.Booking.IsTrigger)},
		{Name: "view bookings", Route: RouteViewBookings, Match: textMatch(def.Commands.IsView)},
		{Name: "cancel booking", Route: RouteCancelBooking, Match: textMatch(def.Commands.IsCancel)},
	}

	fallback := RouteChat
	if def.DefaultRoute == flow.RouteMenu {
		fallback = RouteMenu
	}
	return NewClassifier(rules, fallback)
}

// Classify returns the route of the first matching rule, or the fallback
func (c *Classifier) Classify(ctx context.Context, in Input) (Route, error) {
	for _, r := range c.rules {
		ok, err := r.Match(ctx, in)
		if err != nil {
			return "", fmt.Errorf("intent rule %q: %w", r.Name, err)
		}
		if ok {
			logger.Ctx(ctx).Debug().Str("rule", r.Name).Str("route", string(r.Route)).Msg("Intent classified")
			return r.Route, nil
		}
	}
	return c.fallback, nil
}

// Rules returns the rule names in evaluation order
func (c *Classifier) Rules() []string {
	names := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		names = append(names, r.Name)
	}
	return names
}

func sessionOpen(p SessionChecker) Predicate {
	return func(ctx context.Context, in Input) (bool, error) {
		return p.Active(ctx, in.UserID)
	}
}

func textMatch(match func(string) bool) Predicate {
	return func(_ context.Context, in Input) (bool, error) {
		return match(in.Text), nil
	}
}
