package models

import (
	"time"
)

// Route is a scheduled bus line between two cities
type Route struct {
	ID              string    `json:"id" db:"id"`
	From            string    `json:"from" db:"from_city"`
	To              string    `json:"to" db:"to_city"`
	Price           int64     `json:"price" db:"price"` // VND per seat
	Duration        string    `json:"duration" db:"duration"`
	BusType         string    `json:"busType" db:"bus_type"`
	Distance        *string   `json:"distance,omitempty" db:"distance"`
	Description     *string   `json:"description,omitempty" db:"description"`
	RouteMapImage   *string   `json:"routeMapImage,omitempty" db:"route_map_image"`
	ThumbnailImage  *string   `json:"thumbnailImage,omitempty" db:"thumbnail_image"`
	OperatingStart  string    `json:"operatingStart" db:"operating_start"`
	OperatingEnd    string    `json:"operatingEnd" db:"operating_end"`
	IntervalMinutes int       `json:"intervalMinutes" db:"interval_minutes"`
	IsActive        bool      `json:"isActive" db:"is_active"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`

	BookingCount  int `json:"bookingCount"`
	ScheduleCount int `json:"scheduleCount"`
}
