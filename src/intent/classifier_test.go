package intent

import (
	"context"
	"errors"
	"line_chatbot/src/flow"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessions struct {
	open bool
	err  error
}

func (s sessions) Active(context.Context, string) (bool, error) { return s.open, s.err }

func defaultDef(t *testing.T) *flow.Definition {
	t.Helper()
	def, err := flow.DefaultDefinition()
	require.NoError(t, err)
	return def
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		bookingOpen bool
		chatOpen    bool
		text        string
		want        Route
	}{
		{"trigger without session", false, false, "จองนัด", RouteBookingStart},
		{"trigger inside sentence", false, false, "อยากจองนัดค่ะ", RouteBookingStart},
		{"view bookings", false, false, "ดูนัด", RouteViewBookings},
		{"view bookings quick reply", false, false, "ดูนัดหมาย", RouteViewBookings},
		{"cancel booking", false, false, "ยกเลิกนัดหมาย ev1", RouteCancelBooking},
		{"plain text falls through", false, false, "สวัสดี", RouteChat},
		{"open booking owns trigger text", true, false, "จองนัด", RouteBooking},
		{"open booking owns commands", true, true, "ดูนัด", RouteBooking},
		{"open booking before chat", true, true, "hello", RouteBooking},
		{"open chat keeps plain text", false, true, "hello", RouteChat},
		{"open chat owns booking trigger", false, true, "จองนัด", RouteChat},
		{"open chat owns view command", false, true, "ดูนัด", RouteChat},
		{"open chat owns cancel command", false, true, "ยกเลิกนัดหมาย ev1", RouteChat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(defaultDef(t), sessions{open: tc.bookingOpen}, sessions{open: tc.chatOpen})
			got, err := c.Classify(context.Background(), Input{UserID: "U1", Text: tc.text})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSessionsBeforeTriggers(t *testing.T) {
	c := New(defaultDef(t), sessions{}, sessions{})
	assert.Equal(t, []string{"booking session", "chat session", "booking trigger", "view bookings", "cancel booking"}, c.Rules())
}

func TestMenuDefaultRoute(t *testing.T) {
	def := defaultDef(t)
	def.DefaultRoute = flow.RouteMenu
	c := New(def, sessions{}, sessions{})

	got, err := c.Classify(context.Background(), Input{UserID: "U1", Text: "สวัสดี"})
	require.NoError(t, err)
	assert.Equal(t, RouteMenu, got)
}

func TestClassifyStoreError(t *testing.T) {
	c := New(defaultDef(t), sessions{err: errors.New("redis down")}, sessions{})

	_, err := c.Classify(context.Background(), Input{UserID: "U1", Text: "จองนัด"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking session")
}

func TestRulesStopAtFirstMatch(t *testing.T) {
	calls := 0
	counting := func(match bool) Predicate {
		return func(context.Context, Input) (bool, error) {
			calls++
			return match, nil
		}
	}
	c := NewClassifier([]Rule{
		{Name: "a", Match: counting(false), Route: RouteMenu},
		{Name: "b", Match: counting(true), Route: RouteBooking},
		{Name: "c", Match: counting(true), Route: RouteChat},
	}, RouteChat)

	got, err := c.Classify(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, RouteBooking, got)
	assert.Equal(t, 2, calls)
}
