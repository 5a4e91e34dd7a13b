// Package api implements the checkout HTTP API: the wizard surface the
// storefront drives, plus the return routes the payment processor
// redirects the customer back to.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/imaging"
	"github.com/snapcase/snapcase/internal/order"
	"github.com/snapcase/snapcase/internal/payment"
	"github.com/snapcase/snapcase/internal/session"
	"github.com/snapcase/snapcase/internal/wizard"
	"github.com/snapcase/snapcase/pkg/webkit"
)

// Handler holds the checkout API state. The in-progress draft lives in
// memory between requests; the session store only carries it across the
// external payment redirect. The mutex serializes all draft access, so a
// duplicate return navigation cannot double-process the pending session.
type Handler struct {
	mu    sync.Mutex
	draft *wizard.Draft

	ctrl     *wizard.Controller
	engine   *imaging.Engine
	sessions *session.Store
	catalog  *fulfillment.Catalog
	payments *payment.Client
	commits  *order.Service
	pricer   *order.Calculator

	returnBaseURL string
	maxImageBytes int64
	logger        *slog.Logger
}

// Deps bundles the handler's collaborators.
type Deps struct {
	Controller *wizard.Controller
	Engine     *imaging.Engine
	Sessions   *session.Store
	Catalog    *fulfillment.Catalog
	Payments   *payment.Client
	Commits    *order.Service
	Pricer     *order.Calculator

	ReturnBaseURL string
	MaxImageBytes int64
	Logger        *slog.Logger
}

// NewHandler creates the checkout API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ctrl:          d.Controller,
		engine:        d.Engine,
		sessions:      d.Sessions,
		catalog:       d.Catalog,
		payments:      d.Payments,
		commits:       d.Commits,
		pricer:        d.Pricer,
		returnBaseURL: d.ReturnBaseURL,
		maxImageBytes: d.MaxImageBytes,
		logger:        logger,
	}
}

// Routes mounts the checkout API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		webkit.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/locations", h.ListLocations)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.StartCheckout)
			r.Get("/", h.GetCheckout)
			r.Delete("/", h.AbandonCheckout)

			r.Post("/image", h.UploadImage)
			r.Post("/preview", h.PreviewImage)
			r.Post("/render", h.RenderImage)
			r.Post("/fulfillment", h.SetFulfillment)
			r.Post("/contact", h.SetContact)
			r.Get("/quote", h.GetQuote)

			r.Post("/pay", h.BeginPayment)
			r.Get("/return", h.PaymentReturn)
		})
	})
}

// writeError maps domain errors onto HTTP responses. Step-local validation
// errors stay 4xx and never reach upstream services.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if ve, ok := wizard.AsValidation(err); ok {
		webkit.FieldError(w, http.StatusBadRequest, ve.Msg, ve.Fields)
		return
	}
	switch {
	case errors.Is(err, wizard.ErrDraftTerminal):
		webkit.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNoSession):
		webkit.Error(w, http.StatusNotFound, "no pending order")
	case errors.Is(err, session.ErrExpired):
		webkit.Error(w, http.StatusGone, "pending order has expired; please start over")
	case errors.Is(err, session.ErrInconsistent):
		webkit.Error(w, http.StatusConflict, "pending order could not be resumed; please retry payment")
	case errors.Is(err, imaging.ErrTooLarge):
		webkit.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, imaging.ErrUnsupportedImage):
		webkit.Error(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, order.ErrUploadFailed):
		webkit.Error(w, http.StatusServiceUnavailable, "image upload failed; please retry payment confirmation")
	case errors.Is(err, order.ErrCommitFailed):
		webkit.Error(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("internal error", "err", err)
		webkit.Error(w, http.StatusInternalServerError, "internal error")
	}
}
