package model

import "time"

// BookingStatus is the lifecycle status of a persisted booking
type BookingStatus string

const (
	BookingBooked    BookingStatus = "booked"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a persisted appointment
type Booking struct {
	ID        string        `json:"id" bson:"_id,omitempty"`
	UserID    string        `json:"userId" bson:"userId"`
	Title     string        `json:"title" bson:"title"`
	Datetime  string        `json:"datetime" bson:"datetime"`
	EventID   string        `json:"eventId" bson:"eventId"`
	Link      string        `json:"link,omitempty" bson:"link,omitempty"`
	Status    BookingStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
}

// BeaconCheckin records one beacon entry per user per day
type BeaconCheckin struct {
	UserID    string `json:"userId" bson:"userId"`
	Hwid      string `json:"hwid" bson:"hwid"`
	Type      string `json:"type" bson:"type"`
	Timestamp string `json:"timestamp" bson:"timestamp"`
	Year      int    `json:"year" bson:"year"`
	Month     int    `json:"month" bson:"month"`
	Day       int    `json:"day" bson:"day"`
}
