package models

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id" example:"5f0c7a1e-0000-4000-8000-000000000001"` // User ID
	Email     string    `json:"email" example:"customer@test.com"`                 // User email
	Name      string    `json:"name" example:"Nguyen Van A"`                       // Display name
	Phone     *string   `json:"phone,omitempty" example:"0901234567"`              // Phone number
	Role      Role      `json:"role" example:"USER"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	BookingCount int `json:"bookingCount,omitempty"`
}
