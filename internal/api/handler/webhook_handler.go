package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/api/metrics"
	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

const (
	SignatureHeader = "X-Signature"

	maxWebhookBody = 64 << 10
)

// WebhookHandler receives signed payment provider events.
type WebhookHandler struct {
	subscriptions ports.SubscriptionService
	secret        []byte
}

func NewWebhookHandler(subscriptions ports.SubscriptionService, secret string) *WebhookHandler {
	return &WebhookHandler{subscriptions: subscriptions, secret: []byte(secret)}
}

// Sign returns the base64 HMAC-SHA256 of body, the value expected in
// X-Signature.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

// Payments applies a payment event to the account it refers to.
//
// @Summary      Payment provider webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Signature  header    string               true  "base64 HMAC-SHA256 of the body"
// @Param        body         body      paymentEventRequest  true  "Payment event"
// @Success      200          {object}  webhookResponse
// @Failure      400          {object}  errorResponse
// @Failure      401          {object}  errorResponse
// @Router       /webhooks/payments [post]
func (h *WebhookHandler) Payments(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return domain.InvalidRequest("Unable to read request body")
	}

	if !h.verify(body, c.Request().Header.Get(SignatureHeader)) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return domain.ErrInvalidSignature
	}

	var req paymentEventRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}
	if err := c.Validate(&req); err != nil {
		return domain.InvalidRequest(err.Error())
	}

	in := ports.PaymentEventInput{
		ID:             req.ID,
		Type:           req.Type,
		UserID:         req.Data.UserID,
		CustomerID:     req.Data.CustomerID,
		SubscriptionID: req.Data.SubscriptionID,
		Status:         req.Data.Status,
		PlanID:         req.Data.PlanID,
	}
	if req.Data.CurrentPeriodEnd > 0 {
		in.CurrentPeriodEnd = time.Unix(req.Data.CurrentPeriodEnd, 0).UTC()
	}

	outcome, err := h.subscriptions.Process(c.Request().Context(), in)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(req.Type, "error").Inc()
		return err
	}

	metrics.WebhookEventsTotal.WithLabelValues(req.Type, string(outcome)).Inc()
	return c.JSON(http.StatusOK, webhookResponse{Received: true, Outcome: string(outcome)})
}
