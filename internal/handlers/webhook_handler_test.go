package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xevcp/backend/internal/audit"
	"github.com/xevcp/backend/internal/reconcile"
	"github.com/xevcp/backend/internal/repository"
)

const testAPIKey = "casso-test-key"

func cassoRequest(auth, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/casso", strings.NewReader(body))
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	return r
}

func TestWebhookHandler_Unauthorized(t *testing.T) {
	proc := &mockProcessor{}

	tests := []struct {
		name   string
		key    string
		header string
	}{
		{"missing header", testAPIKey, ""},
		{"wrong key", testAPIKey, "Apikey nope"},
		{"bearer scheme", testAPIKey, "Bearer " + testAPIKey},
		{"key not configured", "", "Apikey "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(proc, tt.key, true)
			w := httptest.NewRecorder()
			h.Casso(w, cassoRequest(tt.header, `{"data":[]}`))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestWebhookHandler_BadPayload(t *testing.T) {
	proc := &mockProcessor{}
	h := NewWebhookHandler(proc, testAPIKey, true)

	for _, body := range []string{"not json", `{"data":[]}`, `[]`} {
		w := httptest.NewRecorder()
		h.Casso(w, cassoRequest("Apikey "+testAPIKey, body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestWebhookHandler_Processed(t *testing.T) {
	report := &reconcile.Report{
		ProcessedCount: 2,
		Summary:        reconcile.Summary{Settled: 1, Skipped: 1},
		Results: []reconcile.Result{
			{Index: 0, TransactionID: "1", BookingCode: "VCP202511101234", Outcome: reconcile.OutcomeSettled},
			{Index: 1, TransactionID: "2", Outcome: reconcile.OutcomeNoCode},
		},
	}
	proc := &mockProcessor{}
	proc.On("Process", mock.Anything, mock.MatchedBy(func(items []json.RawMessage) bool {
		return len(items) == 2
	})).Return(report, nil)

	h := NewWebhookHandler(proc, testAPIKey, true)
	w := httptest.NewRecorder()
	h.Casso(w, cassoRequest("Apikey "+testAPIKey, `{"error":0,"data":[{"id":1},{"id":2}]}`))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.ProcessedCount)
	assert.Equal(t, 1, resp.Summary.Settled)
	assert.Equal(t, reconcile.OutcomeNoCode, resp.Results[1].Outcome)
	proc.AssertExpectations(t)
}

func TestWebhookHandler_ProcessorErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"store down", fmt.Errorf("%w: dial tcp", reconcile.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &mockProcessor{}
			proc.On("Process", mock.Anything, mock.Anything).Return(nil, tt.err)

			h := NewWebhookHandler(proc, testAPIKey, true)
			w := httptest.NewRecorder()
			h.Casso(w, cassoRequest("Apikey "+testAPIKey, `{"id":1}`))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestWebhookHandler_EndToEnd(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	proc := reconcile.NewProcessor(repository.NewSettlementStore(db), audit.NewLogger(io.Discard))
	h := NewWebhookHandler(proc, testAPIKey, true)

	t.Run("transfer without a booking code is skipped", func(t *testing.T) {
		dbMock.ExpectPing()

		w := httptest.NewRecorder()
		h.Casso(w, cassoRequest("Apikey "+testAPIKey,
			`{"data":{"id":77,"tid":"FT1","description":"chuyen tien an trua","amount":50000,"when":"2025-11-10 08:00:00"}}`))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp WebhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Summary.Skipped)
		assert.Equal(t, reconcile.OutcomeNoCode, resp.Results[0].Outcome)
	})

	t.Run("database unreachable", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("connection refused"))

		w := httptest.NewRecorder()
		h.Casso(w, cassoRequest("Apikey "+testAPIKey, `{"id":78,"description":"VCP202511101234","amount":1}`))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestWebhookHandler_Probe(t *testing.T) {
	h := NewWebhookHandler(&mockProcessor{}, testAPIKey, false)
	h.now = func() time.Time { return time.Date(2025, 11, 10, 1, 2, 3, 0, time.UTC) }

	r := httptest.NewRequest(http.MethodGet, "/webhooks/casso", nil)
	r.Header.Set("Authorization", "Apikey "+testAPIKey)
	w := httptest.NewRecorder()
	h.Probe(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"message": "Casso webhook endpoint is working",
		"authorized": true,
		"timestamp": "2025-11-10T01:02:03Z",
		"env": {"hasApiKey": true, "hasDatabase": false}
	}`, w.Body.String())
}
