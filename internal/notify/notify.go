package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/xevcp/backend/internal/reconcile"
)

const (
	KeyPaymentEmail = "payment.confirmed.email"
	KeyPaymentSMS   = "payment.confirmed.sms"
)

// Message is the event a delivery worker turns into an email or SMS.
type Message struct {
	Channel     string    `json:"channel"`
	To          string    `json:"to"`
	Subject     string    `json:"subject,omitempty"`
	Text        string    `json:"text"`
	BookingCode string    `json:"bookingCode"`
	Amount      int64     `json:"amount"`
	PaidAt      time.Time `json:"paidAt"`
}

type EmailNotifier struct {
	pub Publisher
}

func NewEmailNotifier(pub Publisher) *EmailNotifier {
	return &EmailNotifier{pub: pub}
}

func (n *EmailNotifier) Channel() string { return "email" }

// PaymentConfirmed does nothing for bookings made without an email address.
func (n *EmailNotifier) PaymentConfirmed(ctx context.Context, c reconcile.Confirmation) error {
	if c.CustomerEmail == "" {
		return nil
	}
	return n.pub.PublishJSON(ctx, KeyPaymentEmail, Message{
		Channel:     n.Channel(),
		To:          c.CustomerEmail,
		Subject:     fmt.Sprintf("Payment received for booking %s", c.BookingCode),
		Text:        confirmationText(c),
		BookingCode: c.BookingCode,
		Amount:      c.Amount,
		PaidAt:      c.PaidAt,
	})
}

type SMSNotifier struct {
	pub Publisher
}

func NewSMSNotifier(pub Publisher) *SMSNotifier {
	return &SMSNotifier{pub: pub}
}

func (n *SMSNotifier) Channel() string { return "sms" }

func (n *SMSNotifier) PaymentConfirmed(ctx context.Context, c reconcile.Confirmation) error {
	if c.CustomerPhone == "" {
		return nil
	}
	return n.pub.PublishJSON(ctx, KeyPaymentSMS, Message{
		Channel:     n.Channel(),
		To:          c.CustomerPhone,
		Text:        confirmationText(c),
		BookingCode: c.BookingCode,
		Amount:      c.Amount,
		PaidAt:      c.PaidAt,
	})
}

func confirmationText(c reconcile.Confirmation) string {
	return fmt.Sprintf("Hi %s, we received %d VND for booking %s. Show the ticket QR when boarding.",
		c.CustomerName, c.Amount, c.BookingCode)
}
