package reconcile

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/xevcp/backend/internal/models"
)

// memStore is an in-memory Store. Writes made inside a failed transaction
// are discarded.
type memStore struct {
	mu       sync.Mutex
	pingErr  error
	failOn   string // "lock", "payment", "create", "update" or "status"
	bookings map[string]*models.Booking
	payments map[string]*models.Payment // by booking id
	writes   int
	nextID   int
}

func newMemStore(bookings ...*models.Booking) *memStore {
	s := &memStore{
		bookings: map[string]*models.Booking{},
		payments: map[string]*models.Payment{},
	}
	for _, b := range bookings {
		s.bookings[b.BookingCode] = b
	}
	return s
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) WithinTx(ctx context.Context, fn func(SettlementTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, bookings: map[string]models.BookingStatus{}, payments: map[string]models.Payment{}}
	if err := fn(tx); err != nil {
		return err
	}
	for code, status := range tx.bookings {
		s.bookings[code].Status = status
		s.writes++
	}
	for bookingID, p := range tx.payments {
		p := p
		s.payments[bookingID] = &p
		s.writes++
	}
	return nil
}

func (s *memStore) add(b *models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.BookingCode] = b
}

func (s *memStore) booking(code string) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := *s.bookings[code]
	return &b
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

var errInjected = errors.New("injected failure")

type memTx struct {
	s        *memStore
	bookings map[string]models.BookingStatus
	payments map[string]models.Payment
}

func (t *memTx) LockBookingByCode(_ context.Context, code string) (*models.Booking, error) {
	if t.s.failOn == "lock" {
		return nil, errInjected
	}
	b, ok := t.s.bookings[code]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) PaymentByBooking(_ context.Context, bookingID string) (*models.Payment, error) {
	if t.s.failOn == "payment" {
		return nil, errInjected
	}
	p, ok := t.s.payments[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) CreatePayment(_ context.Context, p *models.Payment) error {
	if t.s.failOn == "create" {
		return errInjected
	}
	if _, ok := t.s.payments[p.BookingID]; ok {
		return errors.New("duplicate payment for booking")
	}
	t.s.nextID++
	p.ID = "payment-" + strconv.Itoa(t.s.nextID)
	t.payments[p.BookingID] = *p
	return nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *models.Payment) error {
	if t.s.failOn == "update" {
		return errInjected
	}
	t.payments[p.BookingID] = *p
	return nil
}

func (t *memTx) SetBookingStatus(_ context.Context, bookingID string, status models.BookingStatus) error {
	if t.s.failOn == "status" {
		return errInjected
	}
	for code, b := range t.s.bookings {
		if b.ID == bookingID {
			t.bookings[code] = status
			return nil
		}
	}
	return errors.New("no booking " + bookingID)
}

// memGuard is an in-memory Guard.
type memGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newMemGuard() *memGuard { return &memGuard{claimed: map[string]bool{}} }

func (g *memGuard) Seen(_ context.Context, ref string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	return g.claimed[ref], nil
}

func (g *memGuard) Mark(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.claimed[ref] = true
	return nil
}
