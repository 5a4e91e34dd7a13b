// Package sim is the development simulator for the checkout service's
// three upstreams: the backend order API (with its location catalog), the
// redirect-based payment processor, and object storage. One process serves
// all three contracts so a local snapcased can run against a single
// endpoint with no real accounts.
package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/order"
	"github.com/snapcase/snapcase/pkg/kvstore"
	"github.com/snapcase/snapcase/pkg/webkit"
)

// object is a stored upload.
type object struct {
	ContentType string
	Data        []byte
}

// checkoutSession is a simulated payment session awaiting the customer.
type checkoutSession struct {
	ID         string `json:"sessionId"`
	Amount     int64  `json:"amountInSmallestCurrencyUnit"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// Handler serves the simulated upstream APIs.
type Handler struct {
	mu        sync.Mutex
	locations []fulfillment.StoreLocation
	outages   map[string]bool

	orders   *kvstore.Store[order.Record]
	sessions *kvstore.Store[checkoutSession]
	objects  *kvstore.Store[object]

	baseURL string
	logger  *slog.Logger
}

// NewHandler creates the simulator. baseURL is this process's own external
// address, used to mint redirect and object URLs.
func NewHandler(baseURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		locations: DefaultLocations(),
		outages:   make(map[string]bool),
		orders:    kvstore.New[order.Record]("ord"),
		sessions:  kvstore.New[checkoutSession]("cs"),
		objects:   kvstore.New[object]("obj"),
		baseURL:   baseURL,
		logger:    logger,
	}
}

// DefaultLocations is the built-in pickup catalog. The mixed identifier
// types are deliberate; the real catalog emits both.
func DefaultLocations() []fulfillment.StoreLocation {
	return []fulfillment.StoreLocation{
		{ID: "1", Name: "Downtown Flagship", Address: "400 Congress Ave",
			Coordinates: &fulfillment.Coordinates{Lat: 30.2672, Lng: -97.7431}},
		{ID: "7", Name: "Airport Kiosk", Address: "3600 Presidential Blvd"},
		{ID: "b4a9f1d2-6c1e-4b02-8f3a-2e9d5c7a1b44", Name: "North Lamar",
			Address: "5310 N Lamar Blvd"},
	}
}

// SeedLocations replaces the pickup catalog.
func (h *Handler) SeedLocations(locations []fulfillment.StoreLocation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.locations = locations
}

// Routes mounts the simulated upstream APIs plus the /sim control plane.
func (h *Handler) Routes(r chi.Router) {
	// Backend order API.
	r.Get("/locations", h.listLocations)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)

	// Payment processor.
	r.Post("/payments/create-checkout-session", h.createCheckoutSession)
	r.Get("/payments/checkout/{id}", h.getCheckoutSession)

	// Object storage.
	r.Put("/objects/*", h.putObject)
	r.Get("/objects/*", h.getObject)

	// Control plane: flip upstreams up and down to exercise the service's
	// retry and fallback paths.
	r.Post("/sim/outage", h.setOutage)
	r.Get("/sim/state", h.state)
}

func (h *Handler) down(target string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outages[target]
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	if h.down("locations") {
		webkit.Error(w, http.StatusServiceUnavailable, "simulated catalog outage")
		return
	}
	h.mu.Lock()
	locations := h.locations
	h.mu.Unlock()
	webkit.JSON(w, http.StatusOK, locations)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	if h.down("orders") {
		webkit.Error(w, http.StatusServiceUnavailable, "simulated order API outage")
		return
	}

	var rec order.Record
	if err := readJSON(r, &rec); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// The backend assigns its own identifier.
	id := h.orders.NextID()
	rec.ID = id
	h.orders.Set(id, rec)

	h.logger.Info("order accepted",
		"id", id,
		"payment_ref", rec.PaymentRef,
		"fulfillment", rec.FulfillmentMethod,
		"total", rec.Pricing.Total,
	)
	webkit.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	webkit.JSON(w, http.StatusOK, map[string]any{"data": h.orders.List()})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.orders.Get(chi.URLParam(r, "id"))
	if !ok {
		webkit.Error(w, http.StatusNotFound, "no such order")
		return
	}
	webkit.JSON(w, http.StatusOK, rec)
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h.down("payments") {
		webkit.Error(w, http.StatusServiceUnavailable, "simulated processor outage")
		return
	}

	var req struct {
		Amount     int64  `json:"amountInSmallestCurrencyUnit"`
		Currency   string `json:"currency"`
		SuccessURL string `json:"successUrl"`
		CancelURL  string `json:"cancelUrl"`
	}
	if err := readJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		webkit.Error(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		webkit.Error(w, http.StatusBadRequest, "successUrl and cancelUrl are required")
		return
	}

	sess := checkoutSession{
		ID:         "cs_sim_" + uuid.NewString()[:8],
		Amount:     req.Amount,
		Currency:   req.Currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	h.sessions.Set(sess.ID, sess)

	webkit.JSON(w, http.StatusCreated, map[string]string{
		"sessionId":   sess.ID,
		"redirectUrl": fmt.Sprintf("%s/payments/checkout/%s", h.baseURL, sess.ID),
	})
}

// getCheckoutSession stands in for the processor's hosted payment page:
// it shows the session and the two links the customer would follow.
func (h *Handler) getCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		webkit.Error(w, http.StatusNotFound, "no such checkout session")
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{
		"session":    sess,
		"payLink":    sess.SuccessURL,
		"cancelLink": sess.CancelURL,
	})
}

func (h *Handler) putObject(w http.ResponseWriter, r *http.Request) {
	if h.down("objects") {
		webkit.Error(w, http.StatusServiceUnavailable, "simulated storage outage")
		return
	}

	name := chi.URLParam(r, "*")
	if name == "" {
		webkit.Error(w, http.StatusBadRequest, "object name is required")
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		webkit.Error(w, http.StatusRequestEntityTooLarge, "object too large")
		return
	}

	h.objects.Set(name, object{ContentType: r.Header.Get("Content-Type"), Data: data})
	webkit.JSON(w, http.StatusCreated, map[string]string{
		"url": h.baseURL + "/objects/" + name,
	})
}

func (h *Handler) getObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := h.objects.Get(chi.URLParam(r, "*"))
	if !ok {
		webkit.Error(w, http.StatusNotFound, "no such object")
		return
	}
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Write(obj.Data)
}

func (h *Handler) setOutage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		Down   bool   `json:"down"`
	}
	if err := readJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Target {
	case "locations", "orders", "payments", "objects":
	default:
		webkit.Error(w, http.StatusBadRequest,
			"target must be one of locations, orders, payments, objects")
		return
	}

	h.mu.Lock()
	h.outages[req.Target] = req.Down
	h.mu.Unlock()

	h.logger.Info("outage toggled", "target", req.Target, "down", req.Down)
	webkit.JSON(w, http.StatusOK, map[string]any{"target": req.Target, "down": req.Down})
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	outages := make(map[string]bool, len(h.outages))
	for k, v := range h.outages {
		outages[k] = v
	}
	h.mu.Unlock()

	webkit.JSON(w, http.StatusOK, map[string]any{
		"orders":   h.orders.Count(),
		"sessions": h.sessions.Count(),
		"objects":  h.objects.Count(),
		"outages":  outages,
	})
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 32<<20)).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}
