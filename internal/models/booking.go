package models

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingPaid      BookingStatus = "PAID"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Settled reports whether a booking no longer accepts payments.
func (s BookingStatus) Settled() bool {
	return s == BookingPaid || s == BookingConfirmed
}

// Boardable reports whether a ticket in this status may be checked in.
func (s BookingStatus) Boardable() bool {
	return s == BookingPaid || s == BookingConfirmed
}

// Booking is a reserved trip on a route
type Booking struct {
	ID            string        `json:"id" db:"id"`
	BookingCode   string        `json:"bookingCode" db:"booking_code"`
	UserID        *string       `json:"userId,omitempty" db:"user_id"`
	RouteID       string        `json:"routeId" db:"route_id"`
	CustomerName  string        `json:"customerName" db:"customer_name"`
	CustomerPhone string        `json:"customerPhone" db:"customer_phone"`
	CustomerEmail string        `json:"customerEmail,omitempty" db:"customer_email"`
	Date          string        `json:"date" db:"date"`
	DepartureTime string        `json:"departureTime" db:"departure_time"`
	Seats         int           `json:"seats" db:"seats"`
	TotalPrice    int64         `json:"totalPrice" db:"total_price"` // VND
	Status        BookingStatus `json:"status" db:"status"`
	CheckedIn     bool          `json:"checkedIn" db:"checked_in"`
	CheckedInAt   *time.Time    `json:"checkedInAt,omitempty" db:"checked_in_at"`
	CheckedInBy   *string       `json:"checkedInBy,omitempty" db:"checked_in_by"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`

	Route   *RouteSummary `json:"route,omitempty"`
	Payment *Payment      `json:"payment,omitempty"`
}

// RouteSummary is the part of a route shown next to a booking
type RouteSummary struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	BusType  string  `json:"busType"`
	Duration string  `json:"duration,omitempty"`
	Distance *string `json:"distance,omitempty"`
}

// Label renders the route as "from → to".
func (r *RouteSummary) Label() string {
	if r == nil {
		return ""
	}
	return r.From + " → " + r.To
}
