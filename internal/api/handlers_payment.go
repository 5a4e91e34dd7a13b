package api

import (
	"errors"
	"net/http"

	"github.com/snapcase/snapcase/internal/payment"
	"github.com/snapcase/snapcase/internal/session"
	"github.com/snapcase/snapcase/internal/wizard"
	"github.com/snapcase/snapcase/pkg/webkit"
)

// BeginPayment handles POST /v1/checkout/pay. The draft is snapshotted to
// the durable session slot before the redirect URL is released: if the
// snapshot fails the customer is never sent away, since a lost snapshot
// cannot be recovered after the redirect.
func (h *Handler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}

	d, err := h.ctrl.BeginPayment(*h.draft)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sess, err := h.payments.CreateCheckoutSession(r.Context(), payment.CheckoutRequest{
		Amount:   d.Pricing.Total,
		Currency: "usd",
		OrderMetadata: map[string]string{
			"phoneModelId": d.Phone.ID,
			"caseType":     string(d.CaseType),
		},
		SuccessURL: h.returnBaseURL + "/v1/checkout/return?status=success",
		CancelURL:  h.returnBaseURL + "/v1/checkout/return?status=cancel",
	})
	if err != nil {
		h.logger.Error("creating checkout session", "err", err)
		webkit.Error(w, http.StatusBadGateway, "payment processor unavailable")
		return
	}
	d.PaymentRef = sess.SessionID

	if err := h.sessions.Snapshot(d); err != nil {
		h.logger.Error("session snapshot failed, blocking redirect", "err", err)
		webkit.Error(w, http.StatusInsufficientStorage,
			"could not save your order before payment; nothing was charged, please retry")
		return
	}

	h.draft = &d
	webkit.JSON(w, http.StatusOK, map[string]any{
		"sessionId":   sess.SessionID,
		"redirectUrl": sess.RedirectURL,
		"total":       d.Pricing.Total,
	})
}

// PaymentReturn handles GET /v1/checkout/return?status=success|cancel, the
// landing route after the external payment hop. The pending session is
// restored exactly once per return; commit is gated on its presence and
// the slot is deleted only after a successful commit, which is what makes
// a retried or doubled navigation a no-op instead of a duplicate order.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "success" && status != "cancel" {
		webkit.Error(w, http.StatusBadRequest, "status must be success or cancel")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	d, _, err := h.sessions.Restore()
	if err != nil {
		h.handleRestoreError(w, err)
		return
	}

	if status == "cancel" {
		// Session stays in place so payment can be retried.
		resumed := h.ctrl.Resume(d)
		h.draft = &resumed
		webkit.JSON(w, http.StatusOK, map[string]any{
			"step":      resumed.Step.String(),
			"resumed":   true,
			"committed": false,
		})
		return
	}

	d.PaymentState = wizard.PaymentReturned

	if err := h.catalog.EnsureLoaded(r.Context()); err != nil {
		h.logger.Error("loading location catalog for commit", "err", err)
		webkit.Error(w, http.StatusBadGateway, "location catalog unavailable; please retry")
		return
	}

	rec, err := h.commits.Commit(r.Context(), d)
	if err != nil {
		// The session slot is intact in every commit-failure path, so a
		// later return visit can retry.
		failed := d
		h.draft = &failed
		h.writeError(w, err)
		return
	}

	if _, err := h.sessions.Delete(); err != nil {
		// The order is durably recorded; a dangling slot only risks a
		// duplicate attempt that the next restore-commit cycle rejects on
		// the payment_ref conflict. Log and continue.
		h.logger.Error("deleting session after commit", "err", err)
	}

	confirmed := h.ctrl.Confirm(d)
	h.draft = &confirmed

	webkit.JSON(w, http.StatusOK, map[string]any{
		"step":      confirmed.Step.String(),
		"committed": true,
		"order": map[string]any{
			"id":               rec.ID,
			"channel":          rec.Channel,
			"total":            rec.Pricing.Total,
			"fulfillment":      rec.FulfillmentMethod,
			"renderedImageUrl": rec.RenderedImageURL,
		},
	})
}

func (h *Handler) handleRestoreError(w http.ResponseWriter, err error) {
	// An absent slot after a successful commit is the idempotent replay
	// case: answer with the confirmation instead of an error.
	if errors.Is(err, session.ErrNoSession) && h.draft != nil && h.draft.Step == wizard.StepConfirmed {
		webkit.JSON(w, http.StatusOK, map[string]any{
			"step":      wizard.StepConfirmed.String(),
			"committed": true,
			"replayed":  true,
		})
		return
	}
	if errors.Is(err, session.ErrExpired) {
		// Decided policy: stale sessions are rejected outright and the
		// slot is cleared so the customer starts over cleanly.
		if _, derr := h.sessions.Delete(); derr != nil {
			h.logger.Error("deleting expired session", "err", derr)
		}
	}
	if errors.Is(err, session.ErrInconsistent) && h.draft != nil && !h.draft.Terminal() {
		// The snapshot cannot be materialized, but the in-memory draft is
		// still whole: drop back to the Payment step so retrying payment
		// writes a fresh snapshot over the broken one.
		resumed := h.ctrl.Resume(*h.draft)
		h.draft = &resumed
	}
	h.writeError(w, err)
}
