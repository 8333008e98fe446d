package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		first string
	}{
		{"single object", `{"id":1,"amount":150000,"description":"VCP202511106100"}`, 1, `{"id":1,"amount":150000,"description":"VCP202511106100"}`},
		{"data array", `{"error":0,"data":[{"id":1},{"id":2},{"id":3}]}`, 3, `{"id":1}`},
		{"data object", `{"error":0,"data":{"id":7}}`, 1, `{"id":7}`},
		{"data null", `{"id":9,"data":null}`, 1, `{"id":9,"data":null}`},
		{"bare array", ` [{"id":1},{"id":2}] `, 2, `{"id":1}`},
		{"array keeps non-object items", `[42, {"id":2}]`, 2, `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParsePayload([]byte(tt.body))
			require.NoError(t, err)
			require.Len(t, items, tt.count)
			assert.JSONEq(t, tt.first, string(items[0]))
		})
	}
}

func TestParsePayload_PreservesOrder(t *testing.T) {
	items, err := ParsePayload([]byte(`{"data":[{"id":3},{"id":1},{"id":2}]}`))
	require.NoError(t, err)

	var ids []int
	for _, item := range items {
		var v struct{ ID int }
		require.NoError(t, json.Unmarshal(item, &v))
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []int{3, 1, 2}, ids)
}

func TestParsePayload_Errors(t *testing.T) {
	bodies := map[string]string{
		"empty body":     "",
		"whitespace":     "  \n",
		"not json":       "id=1&amount=2",
		"truncated":      `{"data":[{"id":1}`,
		"empty array":    `[]`,
		"empty data":     `{"error":0,"data":[]}`,
		"scalar":         `"VCP202511106100"`,
		"scalar in data": `{"data":"VCP202511106100"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePayload([]byte(body))
			var perr *PayloadError
			require.ErrorAs(t, err, &perr)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}

func TestDecodeTransaction(t *testing.T) {
	t.Run("casso record", func(t *testing.T) {
		raw := json.RawMessage(`{"id":12345,"tid":"FT25314ABC","description":"VCP-20251110-4745 Le Van C","amount":150000,"when":"2025-11-10 09:15:00","bank_sub_acc_id":"0123456789"}`)
		tx, err := DecodeTransaction(raw)
		require.NoError(t, err)

		assert.Equal(t, "FT25314ABC", tx.Reference())
		assert.Equal(t, int64(150000), tx.Amount)
		assert.Equal(t, "0123456789", string(tx.SubAccount))
		assert.True(t, tx.OccurredAt(time.Time{}).Equal(time.Date(2025, 11, 10, 2, 15, 0, 0, time.UTC)))
		assert.Equal(t, raw, tx.Raw())
	})

	t.Run("reference falls back to id", func(t *testing.T) {
		tx, err := DecodeTransaction(json.RawMessage(`{"id":12345,"tid":"","description":"x","amount":1}`))
		require.NoError(t, err)
		assert.Equal(t, "12345", tx.Reference())
	})

	t.Run("missing time uses fallback", func(t *testing.T) {
		now := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)
		tx, err := DecodeTransaction(json.RawMessage(`{"id":"abc","amount":1}`))
		require.NoError(t, err)
		assert.Equal(t, now, tx.OccurredAt(now))
	})

	t.Run("rfc3339", func(t *testing.T) {
		tx, err := DecodeTransaction(json.RawMessage(`{"id":1,"amount":1,"when":"2025-11-10T09:15:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, 9, tx.OccurredAt(time.Time{}).Hour())
	})

	invalid := map[string]string{
		"not an object":   `42`,
		"no id":           `{"amount":150000,"description":"VCP202511106100"}`,
		"zero amount":     `{"id":1,"amount":0}`,
		"outgoing debit":  `{"id":1,"amount":-150000}`,
		"amount as text":  `{"id":1,"amount":"150000"}`,
		"unparsable when": `{"id":1,"amount":1,"when":"yesterday"}`,
		"id is an object": `{"id":{"v":1},"amount":1}`,
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTransaction(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}
