package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PayloadError is a batch-level problem with a webhook body. The whole
// delivery is rejected and nothing is processed.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload: %s: %v", e.Reason, e.Err)
	}
	return "invalid payload: " + e.Reason
}

func (e *PayloadError) Unwrap() error { return e.Err }

// ParsePayload splits a webhook body into its transaction records, in the
// order they were sent. Accepted shapes are a single object, {"data": [...]},
// {"data": {...}} and a bare array. Records are returned undecoded.
func ParsePayload(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &PayloadError{Reason: "empty body"}
	}
	if !json.Valid(body) {
		return nil, &PayloadError{Reason: "body is not JSON"}
	}

	var items []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, &PayloadError{Reason: "malformed array", Err: err}
		}
	case '{':
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &PayloadError{Reason: "malformed object", Err: err}
		}

		data := bytes.TrimSpace(envelope.Data)
		switch {
		case len(data) == 0 || bytes.Equal(data, []byte("null")):
			items = []json.RawMessage{body}
		case data[0] == '[':
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, &PayloadError{Reason: "malformed data array", Err: err}
			}
		case data[0] == '{':
			items = []json.RawMessage{data}
		default:
			return nil, &PayloadError{Reason: "data must be an object or an array"}
		}
	default:
		return nil, &PayloadError{Reason: "body must be an object or an array"}
	}

	if len(items) == 0 {
		return nil, &PayloadError{Reason: "empty batch"}
	}
	return items, nil
}

// flexString accepts a JSON string or number. Bank ids arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// BankTransaction is one incoming transfer as the bank aggregator reports it.
type BankTransaction struct {
	ID          flexString `json:"id" validate:"required_without=TID"`
	TID         flexString `json:"tid"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount" validate:"gt=0"`
	When        string     `json:"when"`
	SubAccount  flexString `json:"bank_sub_acc_id"`

	occurredAt time.Time
	raw        json.RawMessage
}

// bankZone is the aggregator's wall-clock zone for "when" values without an offset.
var bankZone = time.FixedZone("ICT", 7*60*60)

var whenLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var validate = validator.New()

// DecodeTransaction decodes and validates one record returned by ParsePayload.
func DecodeTransaction(raw json.RawMessage) (*BankTransaction, error) {
	var tx BankTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if err := validate.Struct(&tx); err != nil {
		return nil, fmt.Errorf("validate transaction: %w", err)
	}

	occurredAt, err := parseWhen(tx.When)
	if err != nil {
		return nil, err
	}
	tx.occurredAt = occurredAt
	tx.raw = raw
	return &tx, nil
}

func parseWhen(when string) (time.Time, error) {
	when = strings.TrimSpace(when)
	if when == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, when, bankZone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("validate transaction: unrecognised time " + strconv.Quote(when))
}

// Reference is the id recorded on the payment: the bank's own reference when
// present, otherwise the aggregator's id.
func (t *BankTransaction) Reference() string {
	if t.TID != "" {
		return string(t.TID)
	}
	return string(t.ID)
}

// OccurredAt returns when the transfer happened, or fallback when the record
// carried no time.
func (t *BankTransaction) OccurredAt(fallback time.Time) time.Time {
	if t.occurredAt.IsZero() {
		return fallback
	}
	return t.occurredAt
}

// Raw returns the record exactly as received.
func (t *BankTransaction) Raw() json.RawMessage { return t.raw }
