// Package reconcile settles bookings from bank transfer notifications.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xevcp/backend/internal/audit"
	"github.com/xevcp/backend/internal/bookingcode"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/pkg/logger"
)

// DefaultAmountTolerance is the largest difference, in VND, between a
// transfer and the booking total that is not reported as a mismatch.
const DefaultAmountTolerance int64 = 1000

// DefaultNotifyTimeout bounds each notifier call.
const DefaultNotifyTimeout = 3 * time.Second

// ErrStoreUnavailable fails a whole batch before any item is touched.
var ErrStoreUnavailable = errors.New("settlement store unavailable")

type Outcome string

const (
	OutcomeInvalid         Outcome = "INVALID"
	OutcomeNoCode          Outcome = "NO_CODE"
	OutcomeBookingNotFound Outcome = "BOOKING_NOT_FOUND"
	OutcomeAlreadySettled  Outcome = "ALREADY_SETTLED"
	OutcomeDuplicate       Outcome = "DUPLICATE"
	OutcomeSettled         Outcome = "SETTLED"
	OutcomeFailed          Outcome = "FAILED"
)

// Skipped reports whether the item was intentionally left alone.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeNoCode, OutcomeBookingNotFound, OutcomeAlreadySettled, OutcomeDuplicate:
		return true
	}
	return false
}

type Result struct {
	Index          int     `json:"index"`
	TransactionID  string  `json:"transactionId,omitempty"`
	BookingCode    string  `json:"bookingCode,omitempty"`
	Outcome        Outcome `json:"outcome"`
	AmountMismatch bool    `json:"amountMismatch,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type Summary struct {
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Report struct {
	ProcessedCount int      `json:"processedCount"`
	Summary        Summary  `json:"summary"`
	Results        []Result `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	r.ProcessedCount++
	switch {
	case res.Outcome == OutcomeSettled:
		r.Summary.Settled++
	case res.Outcome.Skipped():
		r.Summary.Skipped++
	default:
		r.Summary.Failed++
	}
}

// Confirmation is what notifiers are told about a settled booking.
type Confirmation struct {
	BookingCode   string    `json:"bookingCode"`
	CustomerName  string    `json:"customerName"`
	CustomerPhone string    `json:"customerPhone"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
	Amount        int64     `json:"amount"`
	TotalPrice    int64     `json:"totalPrice"`
	TransactionID string    `json:"transactionId"`
	PaidAt        time.Time `json:"paidAt"`
}

// Notifier tells a customer their payment arrived. Failures never affect
// the settlement.
type Notifier interface {
	Channel() string
	PaymentConfirmed(ctx context.Context, c Confirmation) error
}

// Guard remembers bank transactions whose booking is already settled so
// redeliveries are answered without a database transaction. Only committed
// outcomes are recorded; the database stays authoritative.
type Guard interface {
	Seen(ctx context.Context, ref string) (bool, error)
	Mark(ctx context.Context, ref string) error
}

type Processor struct {
	store         Store
	audit         *audit.Logger
	guard         Guard
	notifiers     []Notifier
	tolerance     int64
	notifyTimeout time.Duration
	now           func() time.Time
}

type Option func(*Processor)

func WithGuard(g Guard) Option {
	return func(p *Processor) { p.guard = g }
}

func WithNotifiers(n ...Notifier) Option {
	return func(p *Processor) { p.notifiers = append(p.notifiers, n...) }
}

// WithAmountTolerance overrides DefaultAmountTolerance. Negative values are ignored.
func WithAmountTolerance(tolerance int64) Option {
	return func(p *Processor) {
		if tolerance >= 0 {
			p.tolerance = tolerance
		}
	}
}

func NewProcessor(store Store, auditLog *audit.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:         store,
		audit:         auditLog,
		tolerance:     DefaultAmountTolerance,
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process applies each record in order. Per-item problems are reported in
// the results; only an unreachable store returns an error.
func (p *Processor) Process(ctx context.Context, items []json.RawMessage) (*Report, error) {
	if err := p.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	report := &Report{Results: make([]Result, 0, len(items))}
	for i, raw := range items {
		if err := ctx.Err(); err != nil {
			report.add(Result{Index: i, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}
		report.add(p.processItem(ctx, i, raw))
	}
	return report, nil
}

func (p *Processor) processItem(ctx context.Context, index int, raw json.RawMessage) Result {
	res := Result{Index: index}
	log, ctx := logger.With(ctx, "item", index)

	tx, err := DecodeTransaction(raw)
	if err != nil {
		log.Info("rejecting bank transaction", "error", err)
		res.Outcome = OutcomeInvalid
		res.Error = err.Error()
		return res
	}
	ref := tx.Reference()
	res.TransactionID = ref
	log, ctx = logger.With(ctx, "transaction_id", ref)

	code, ok := bookingcode.Extract(tx.Description)
	if !ok {
		log.Info("no booking code in transfer description", "description", tx.Description)
		res.Outcome = OutcomeNoCode
		return res
	}
	res.BookingCode = code.String()
	log, ctx = logger.With(ctx, "booking_code", res.BookingCode)

	if p.guard != nil {
		seen, err := p.guard.Seen(ctx, ref)
		switch {
		case err != nil:
			log.Warn("dedup guard unavailable, relying on database checks", "error", err)
		case seen:
			log.Info("duplicate delivery of bank transaction")
			res.Outcome = OutcomeDuplicate
			return res
		}
	}

	outcome, booking, err := p.settle(ctx, tx, res.BookingCode)
	if err != nil {
		log.Error("settlement failed", "error", err)
		p.audit.LogError(ref, res.BookingCode, err)
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		return res
	}
	res.Outcome = outcome

	switch outcome {
	case OutcomeBookingNotFound:
		log.Info("no booking for code")
		p.audit.LogSkip(ref, res.BookingCode, string(outcome))
	case OutcomeAlreadySettled:
		log.Info("booking already settled", "status", booking.Status)
		p.audit.LogSkip(ref, res.BookingCode, string(outcome))
		p.mark(ctx, ref)
	case OutcomeSettled:
		p.mark(ctx, ref)
		if diff := abs(booking.TotalPrice - tx.Amount); diff > p.tolerance {
			res.AmountMismatch = true
			log.Warn("transfer amount does not match booking total",
				"expected", booking.TotalPrice, "received", tx.Amount, "diff", diff)
			p.audit.LogAmountMismatch(ref, res.BookingCode, booking.TotalPrice, tx.Amount)
		}
		log.Info("booking paid", "amount", tx.Amount)
		p.audit.LogSettlement(ref, res.BookingCode, tx.Amount)
		p.notify(ctx, booking, tx)
	}
	return res
}

// settle runs the lock, check and write steps for one booking in a single
// transaction. The returned booking is nil only for OutcomeBookingNotFound.
func (p *Processor) settle(ctx context.Context, tx *BankTransaction, code string) (Outcome, *models.Booking, error) {
	var (
		outcome Outcome
		booking *models.Booking
	)

	err := p.store.WithinTx(ctx, func(stx SettlementTx) error {
		b, err := stx.LockBookingByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		if b == nil {
			outcome = OutcomeBookingNotFound
			return nil
		}
		booking = b
		if b.Status.Settled() {
			outcome = OutcomeAlreadySettled
			return nil
		}

		ref := tx.Reference()
		paidAt := tx.OccurredAt(p.now())

		payment, err := stx.PaymentByBooking(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment != nil {
			payment.Status = models.PaymentCompleted
			payment.TransactionID = &ref
			payment.PaidAt = &paidAt
			payment.Metadata = models.Metadata(tx.Raw())
			if err := stx.UpdatePayment(ctx, payment); err != nil {
				return fmt.Errorf("update payment: %w", err)
			}
		} else {
			payment = &models.Payment{
				BookingID:     b.ID,
				Amount:        tx.Amount,
				Method:        models.MethodBankTransfer,
				Status:        models.PaymentCompleted,
				TransactionID: &ref,
				PaidAt:        &paidAt,
				Metadata:      models.Metadata(tx.Raw()),
			}
			if err := stx.CreatePayment(ctx, payment); err != nil {
				return fmt.Errorf("create payment: %w", err)
			}
		}

		if err := stx.SetBookingStatus(ctx, b.ID, models.BookingPaid); err != nil {
			return fmt.Errorf("mark booking paid: %w", err)
		}
		b.Status = models.BookingPaid
		b.Payment = payment
		outcome = OutcomeSettled
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, booking, nil
}

// mark records ref after its booking is settled in the database.
func (p *Processor) mark(ctx context.Context, ref string) {
	if p.guard == nil {
		return
	}
	if err := p.guard.Mark(context.WithoutCancel(ctx), ref); err != nil {
		logger.FromContext(ctx).Warn("mark dedup guard", "error", err)
	}
}

func (p *Processor) notify(ctx context.Context, b *models.Booking, tx *BankTransaction) {
	if len(p.notifiers) == 0 {
		return
	}
	c := Confirmation{
		BookingCode:   b.BookingCode,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		CustomerEmail: b.CustomerEmail,
		Amount:        tx.Amount,
		TotalPrice:    b.TotalPrice,
		TransactionID: tx.Reference(),
		PaidAt:        *b.Payment.PaidAt,
	}
	for _, n := range p.notifiers {
		if err := p.confirm(ctx, n, c); err != nil {
			logger.FromContext(ctx).Error("payment confirmation not sent", "channel", n.Channel(), "error", err)
		}
	}
}

// confirm bounds a notifier call so a stalled broker cannot hold the
// webhook response, and detaches it from the request's cancellation.
func (p *Processor) confirm(ctx context.Context, n Notifier, c Confirmation) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.notifyTimeout)
	defer cancel()
	return n.PaymentConfirmed(ctx, c)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
