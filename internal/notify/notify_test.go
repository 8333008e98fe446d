package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xevcp/backend/internal/reconcile"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	args := m.Called(ctx, key, v)
	return args.Error(0)
}

var confirmation = reconcile.Confirmation{
	BookingCode:   "VCP202511106100",
	CustomerName:  "Nguyen Van A",
	CustomerPhone: "0901234567",
	CustomerEmail: "customer@test.com",
	Amount:        150000,
	TransactionID: "FT1",
	PaidAt:        time.Date(2025, 11, 10, 2, 15, 0, 0, time.UTC),
}

func TestEmailNotifier(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, KeyPaymentEmail, mock.MatchedBy(func(m Message) bool {
		return m.To == "customer@test.com" && m.Subject == "Payment received for booking VCP202511106100"
	})).Return(nil).Once()

	n := NewEmailNotifier(pub)
	require.NoError(t, n.PaymentConfirmed(context.Background(), confirmation))

	noEmail := confirmation
	noEmail.CustomerEmail = ""
	require.NoError(t, n.PaymentConfirmed(context.Background(), noEmail))

	pub.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestSMSNotifier_PropagatesPublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishJSON", mock.Anything, KeyPaymentSMS, mock.AnythingOfType("notify.Message")).
		Return(errors.New("channel/connection is not open"))

	err := NewSMSNotifier(pub).PaymentConfirmed(context.Background(), confirmation)
	assert.Error(t, err)
	assert.Equal(t, "sms", NewSMSNotifier(pub).Channel())
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, pub.PublishJSON(context.Background(), KeyPaymentSMS, Message{To: "0901234567", Text: "hi"}))
	assert.Contains(t, buf.String(), `"routing_key":"payment.confirmed.sms"`)
	assert.Contains(t, buf.String(), `"to":"0901234567"`)
}

func TestNewAMQPPublisher_BadURL(t *testing.T) {
	_, err := NewAMQPPublisher("not-a-url", "xevcp.notifications")
	assert.ErrorContains(t, err, "dial rabbitmq")
}
