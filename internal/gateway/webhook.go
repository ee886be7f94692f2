// ABOUTME: Telegram webhook endpoint: secret check, decoding, dedupe and dispatch
// ABOUTME: Every authenticated delivery is acknowledged with 200 {"ok":true}, even on failure or panic

package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dev2production/d2p-bot/internal/telegram"
)

// maxUpdateSize caps the webhook request body
const maxUpdateSize = 1 << 20

// Webhook request outcomes, used as the "result" metric label
const (
	resultAccepted  = "accepted"
	resultRejected  = "rejected"
	resultMalformed = "malformed"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
	resultPanic     = "panic"
)

type webhookMetrics struct {
	requests *prometheus.CounterVec
}

func newWebhookMetrics(reg prometheus.Registerer) *webhookMetrics {
	m := &webhookMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d2p",
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests)
	return m
}

// handleWebhook authenticates a delivery and hands it to acknowledge.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(telegram.SecretTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.config.Telegram.WebhookSecret)) != 1 {
		g.metrics.requests.WithLabelValues(resultRejected).Inc()
		g.logger.Warn("webhook rejected: invalid secret token", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Invalid secret"})
		return
	}

	g.acknowledge(w, r)
}

// acknowledge processes one update and always answers 200 {"ok":true}.
// Telegram redelivers anything that is not acknowledged, so failures are logged instead.
func (g *Gateway) acknowledge(w http.ResponseWriter, r *http.Request) {
	var updateID int64
	result := resultAccepted

	defer func() {
		if rec := recover(); rec != nil {
			result = resultPanic
			g.logger.Error("panic while processing update",
				"update_id", updateID,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
		}
		g.metrics.requests.WithLabelValues(result).Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateSize)
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		result = resultMalformed
		g.logger.Warn("malformed webhook payload", "error", err)
		return
	}
	updateID = update.UpdateID

	if g.dedupe != nil && g.dedupe.Seen(update.UpdateID) {
		result = resultDuplicate
		g.logger.Debug("duplicate update skipped", "update_id", update.UpdateID)
		return
	}

	// Processing finishes even if Telegram hangs up; outbound calls carry their own timeout
	ctx := context.WithoutCancel(r.Context())
	if err := g.dispatcher.Dispatch(ctx, &update); err != nil {
		result = resultFailed
		var verr *telegram.ValidationError
		if errors.As(err, &verr) {
			g.logger.Warn("invalid update", "update_id", update.UpdateID, "error", err)
			return
		}
		g.logger.Error("processing update failed", "update_id", update.UpdateID, "error", err)
	}
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
