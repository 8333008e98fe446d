package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
	"github.com/xevcp/backend/internal/config"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/pkg/logger"
)

const (
	qrImageSize     = 300
	ticketQRType    = "TICKET"
	ticketCacheTTL  = 24 * time.Hour
	ticketCacheKeyF = "ticket_qr:%s"
)

var ErrInvalidTicket = errors.New("invalid ticket QR code")

// TicketPayload is the content of a ticket QR code shown at boarding.
type TicketPayload struct {
	Type          string `json:"type"`
	BookingCode   string `json:"bookingCode"`
	CustomerName  string `json:"customerName"`
	Route         string `json:"route"`
	Date          string `json:"date"`
	DepartureTime string `json:"departureTime"`
	Seats         int    `json:"seats"`
	Timestamp     int64  `json:"timestamp"`
	Sig           string `json:"sig"`
}

// VietQRPayload is the transfer request encoded in a payment QR code.
type VietQRPayload struct {
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	AcqID       string `json:"acqId"`
	Amount      int64  `json:"amount"`
	AddInfo     string `json:"addInfo"`
	Format      string `json:"format"`
	Template    string `json:"template"`
}

// BankInfo tells customers where to transfer and what to write in the memo.
type BankInfo struct {
	BankID      string `json:"bankId" example:"970422"`
	BankName    string `json:"bankName" example:"MB Bank"`
	AccountNo   string `json:"accountNo" example:"0123456789"`
	AccountName string `json:"accountName" example:"XE VCP"`
	Memo        string `json:"memo" example:"Put your booking code (e.g. VCP202511101234) in the transfer description"`
}

type QRService struct {
	redis      *redis.Client
	signingKey []byte
	bank       config.BankConfig
	cacheTTL   time.Duration
	now        func() time.Time
}

// NewQRService builds the ticket and payment QR generator. redis may be nil,
// which disables ticket QR caching.
func NewQRService(redis *redis.Client, signingKey string, bank config.BankConfig, cacheTTL time.Duration) *QRService {
	if cacheTTL <= 0 {
		cacheTTL = ticketCacheTTL
	}
	return &QRService{
		redis:      redis,
		signingKey: []byte(signingKey),
		bank:       bank,
		cacheTTL:   cacheTTL,
		now:        time.Now,
	}
}

func (s *QRService) BankInfo() BankInfo {
	return BankInfo{
		BankID:      s.bank.BankID,
		BankName:    s.bank.BankName,
		AccountNo:   s.bank.AccountNo,
		AccountName: s.bank.AccountName,
		Memo:        "Put your booking code (e.g. VCP202511101234) in the transfer description",
	}
}

// PaymentQR returns the VietQR payload for paying b and its PNG data URL.
// The memo is the booking code so the bank webhook can match the transfer.
func (s *QRService) PaymentQR(b *models.Booking) (*VietQRPayload, string, error) {
	payload := &VietQRPayload{
		AccountNo:   s.bank.AccountNo,
		AccountName: s.bank.AccountName,
		AcqID:       s.bank.BankID,
		Amount:      b.TotalPrice,
		AddInfo:     b.BookingCode,
		Format:      "text",
		Template:    s.bank.Template,
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	image, err := pngDataURL(string(content), qrcode.Medium)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate payment QR code: %w", err)
	}
	return payload, image, nil
}

// TicketQR returns the boarding QR for b as a PNG data URL.
func (s *QRService) TicketQR(ctx context.Context, b *models.Booking) (string, error) {
	key := fmt.Sprintf(ticketCacheKeyF, b.BookingCode)
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			return cached, nil
		}
		if err != redis.Nil {
			logger.FromContext(ctx).Warn("ticket QR cache read failed", "booking_code", b.BookingCode, "error", err)
		}
	}

	content, err := json.Marshal(s.ticketPayload(b))
	if err != nil {
		return "", err
	}
	image, err := pngDataURL(string(content), qrcode.High)
	if err != nil {
		return "", fmt.Errorf("failed to generate ticket QR code: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, image, s.cacheTTL).Err(); err != nil {
			logger.FromContext(ctx).Warn("ticket QR cache write failed", "booking_code", b.BookingCode, "error", err)
		}
	}
	return image, nil
}

// VerifyTicket checks that qrData is a ticket we signed for bookingCode.
func (s *QRService) VerifyTicket(qrData, bookingCode string) (*TicketPayload, error) {
	var p TicketPayload
	if err := json.Unmarshal([]byte(qrData), &p); err != nil {
		return nil, ErrInvalidTicket
	}
	if p.Type != ticketQRType || p.BookingCode != bookingCode {
		return nil, ErrInvalidTicket
	}

	want := s.sign(&p)
	got, err := hex.DecodeString(p.Sig)
	if err != nil || !hmac.Equal(got, want) {
		return nil, ErrInvalidTicket
	}
	return &p, nil
}

func (s *QRService) ticketPayload(b *models.Booking) *TicketPayload {
	p := &TicketPayload{
		Type:          ticketQRType,
		BookingCode:   b.BookingCode,
		CustomerName:  b.CustomerName,
		Route:         b.Route.Label(),
		Date:          b.Date,
		DepartureTime: b.DepartureTime,
		Seats:         b.Seats,
		Timestamp:     s.now().Unix(),
	}
	p.Sig = hex.EncodeToString(s.sign(p))
	return p
}

func (s *QRService) sign(p *TicketPayload) []byte {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(strings.Join([]string{
		p.Type,
		p.BookingCode,
		p.CustomerName,
		p.Route,
		p.Date,
		p.DepartureTime,
		strconv.Itoa(p.Seats),
		strconv.FormatInt(p.Timestamp, 10),
	}, "|")))
	return mac.Sum(nil)
}

func pngDataURL(content string, level qrcode.RecoveryLevel) (string, error) {
	qr, err := qrcode.New(content, level)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrImageSize)); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
