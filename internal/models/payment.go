package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCash         PaymentMethod = "CASH"
)

// Payment records money received for a booking. A booking has at most one.
type Payment struct {
	ID            string        `json:"id" db:"id"`
	BookingID     string        `json:"bookingId" db:"booking_id"`
	Amount        int64         `json:"amount" db:"amount"` // VND
	Method        PaymentMethod `json:"method" db:"method"`
	Status        PaymentStatus `json:"status" db:"status"`
	TransactionID *string       `json:"transactionId,omitempty" db:"transaction_id"`
	PaidAt        *time.Time    `json:"paidAt,omitempty" db:"paid_at"`
	Metadata      Metadata      `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}
