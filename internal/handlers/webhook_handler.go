package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xevcp/backend/internal/reconcile"
	"github.com/xevcp/backend/internal/services"
	"github.com/xevcp/backend/pkg/logger"
)

const maxWebhookBytes = 5 << 20

// BatchProcessor settles a batch of bank transactions.
type BatchProcessor interface {
	Process(ctx context.Context, items []json.RawMessage) (*reconcile.Report, error)
}

type WebhookHandler struct {
	processor   BatchProcessor
	apiKey      string
	hasDatabase bool
	now         func() time.Time
}

// NewWebhookHandler accepts Casso deliveries signed with apiKey. An empty
// apiKey rejects every delivery.
func NewWebhookHandler(processor BatchProcessor, apiKey string, hasDatabase bool) *WebhookHandler {
	return &WebhookHandler{
		processor:   processor,
		apiKey:      apiKey,
		hasDatabase: hasDatabase,
		now:         time.Now,
	}
}

// WebhookResponse is returned for every accepted delivery, including ones
// where all transactions were skipped.
type WebhookResponse struct {
	Success        bool               `json:"success" example:"true"`
	Message        string             `json:"message" example:"Webhook processed successfully"`
	ProcessedCount int                `json:"processedCount" example:"1"`
	Summary        reconcile.Summary  `json:"summary"`
	Results        []reconcile.Result `json:"results"`
}

// authorized checks the "Authorization: Apikey <key>" header.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return false
	}
	received, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Apikey ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(h.apiKey)) == 1
}

// Casso receives bank transaction notifications
// @Summary Casso bank webhook
// @Description Settles bookings from incoming bank transfers. Accepts a single transaction, {"data": [...]}, {"data": {...}} or an array.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Authorization header string true "Apikey <key>"
// @Success 200 {object} WebhookResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /webhooks/casso [post]
func (h *WebhookHandler) Casso(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if !h.authorized(r) {
		if h.apiKey == "" {
			log.Error("casso webhook rejected: CASSO_API_KEY is not configured")
		} else {
			log.Warn("unauthorized casso webhook request", "remote_addr", r.RemoteAddr)
		}
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	items, err := reconcile.ParsePayload(body)
	if err != nil {
		log.Warn("rejected casso payload", "error", err)
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	report, err := h.processor.Process(r.Context(), items)
	switch {
	case errors.Is(err, reconcile.ErrStoreUnavailable):
		log.Error("casso webhook deferred", "error", err)
		services.SendErrorResponse(w, "Service temporarily unavailable", http.StatusServiceUnavailable, nil)
		return
	case err != nil:
		log.Error("casso webhook failed", "error", err)
		services.SendErrorResponse(w, "Failed to process webhook", http.StatusInternalServerError, nil)
		return
	}

	log.Info("casso webhook processed",
		"items", report.ProcessedCount,
		"settled", report.Summary.Settled,
		"skipped", report.Summary.Skipped,
		"failed", report.Summary.Failed,
	)
	services.SendJSON(w, http.StatusOK, WebhookResponse{
		Success:        true,
		Message:        "Webhook processed successfully",
		ProcessedCount: report.ProcessedCount,
		Summary:        report.Summary,
		Results:        report.Results,
	})
}

// Probe reports whether the webhook is reachable and configured
// @Summary Casso webhook probe
// @Tags webhooks
// @Produce json
// @Param Authorization header string false "Apikey <key>"
// @Success 200 {object} object{message=string,authorized=bool,timestamp=string,env=object{hasApiKey=bool,hasDatabase=bool}}
// @Router /webhooks/casso [get]
func (h *WebhookHandler) Probe(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, map[string]any{
		"message":    "Casso webhook endpoint is working",
		"authorized": h.authorized(r),
		"timestamp":  h.now().UTC().Format(time.RFC3339),
		"env": map[string]bool{
			"hasApiKey":   h.apiKey != "",
			"hasDatabase": h.hasDatabase,
		},
	})
}
