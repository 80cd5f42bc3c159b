package handlers

import (
	"net/http"
	"strconv"

	"reclaim/internal/apperr"
	"reclaim/internal/metrics"
	"reclaim/internal/services"
)

const signatureHeader = "x-webhook-signature"

type WebhookHandler struct {
	rewards *services.RewardService
}

func NewWebhookHandler(rewards *services.RewardService) *WebhookHandler {
	return &WebhookHandler{rewards: rewards}
}

// PartnerFulfillment reconciles a partner's fulfillment callback. The signature
// is checked before the body is read.
func (h *WebhookHandler) PartnerFulfillment(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() {
		metrics.WebhookCalls.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
	}()

	fail := func(err error) {
		status = apperr.StatusCode(err)
		writeError(w, err)
	}

	if err := h.rewards.VerifySignature(r.Header.Get(signatureHeader)); err != nil {
		fail(err)
		return
	}
	var cb services.FulfillmentCallback
	if err := decodeJSON(w, r, &cb); err != nil {
		fail(err)
		return
	}

	ack, err := h.rewards.HandleFulfillment(r.Context(), cb)
	if err != nil {
		fail(err)
		return
	}
	writeJSON(w, status, ack)
}
