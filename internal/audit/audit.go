// Package audit writes payment and ticket events as JSON lines.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

const (
	EventSettled        = "PAYMENT_SETTLED"
	EventSkipped        = "PAYMENT_SKIPPED"
	EventAmountMismatch = "AMOUNT_MISMATCH"
	EventError          = "ERROR"
	EventCheckIn        = "CHECK_IN"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	BookingCode   string    `json:"booking_code,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type Logger struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewLogger writes to out, or stdout when out is nil.
func NewLogger(out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{out: out, now: time.Now}
}

func (a *Logger) LogSettlement(transactionID, bookingCode string, amount int64) {
	a.log(Event{
		EventType:     EventSettled,
		TransactionID: transactionID,
		BookingCode:   bookingCode,
		Amount:        amount,
		Status:        "SUCCESS",
	})
}

func (a *Logger) LogSkip(transactionID, bookingCode, reason string) {
	a.log(Event{
		EventType:     EventSkipped,
		TransactionID: transactionID,
		BookingCode:   bookingCode,
		Status:        "SKIPPED",
		Details:       map[string]string{"reason": reason},
	})
}

// LogAmountMismatch records a transfer whose amount differs from the booking
// total by more than the configured tolerance.
func (a *Logger) LogAmountMismatch(transactionID, bookingCode string, expected, received int64) {
	a.log(Event{
		EventType:     EventAmountMismatch,
		TransactionID: transactionID,
		BookingCode:   bookingCode,
		Amount:        received,
		Status:        "WARNING",
		Details: map[string]int64{
			"expected": expected,
			"received": received,
			"diff":     abs(expected - received),
		},
	})
}

func (a *Logger) LogError(transactionID, bookingCode string, err error) {
	a.log(Event{
		EventType:     EventError,
		TransactionID: transactionID,
		BookingCode:   bookingCode,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogCheckIn(bookingCode, staffID string) {
	a.log(Event{
		EventType:   EventCheckIn,
		BookingCode: bookingCode,
		Status:      "SUCCESS",
		Details:     map[string]string{"staff_id": staffID},
	})
}

func (a *Logger) log(event Event) {
	event.Timestamp = a.now()
	data, _ := json.Marshal(event)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Write(append(data, '\n'))
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
