package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/snapcase/snapcase/internal/imaging"
	"github.com/snapcase/snapcase/internal/wizard"
	"github.com/snapcase/snapcase/pkg/webkit"
)

// startRequest begins a checkout with the phone selection.
type startRequest struct {
	PhoneModelID   string `json:"phoneModelId"`
	PhoneModelName string `json:"phoneModelName"`
	MagSafeCapable bool   `json:"magSafeCapable"`
	CaseType       string `json:"caseType"`
}

// editRequest carries the transform and filter edit state.
type editRequest struct {
	Transform imaging.Transform `json:"transform"`
	Filters   imaging.Filters   `json:"filters"`
}

// fulfillmentRequest selects pickup or delivery.
type fulfillmentRequest struct {
	Method   string           `json:"method"`
	Pickup   *wizard.Pickup   `json:"pickup,omitempty"`
	Delivery *wizard.Delivery `json:"delivery,omitempty"`
}

// ListLocations handles GET /v1/locations.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.EnsureLoaded(r.Context()); err != nil {
		h.logger.Error("loading location catalog", "err", err)
		webkit.Error(w, http.StatusBadGateway, "location catalog unavailable")
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{"data": h.catalog.Locations()})
}

// StartCheckout handles POST /v1/checkout: a new draft with the phone
// model selected. Starting over replaces any in-memory draft but leaves a
// pending redirect session untouched.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	caseType := wizard.CaseType(req.CaseType)
	if req.CaseType == "" {
		caseType = wizard.CaseRegular
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.ctrl.SelectPhone(wizard.NewDraft(time.Now()), wizard.PhoneModel{
		ID:             req.PhoneModelID,
		DisplayName:    req.PhoneModelName,
		MagSafeCapable: req.MagSafeCapable,
	}, caseType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.draft = &d
	webkit.JSON(w, http.StatusCreated, draftView(d))
}

// GetCheckout handles GET /v1/checkout.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}
	webkit.JSON(w, http.StatusOK, draftView(*h.draft))
}

// AbandonCheckout handles DELETE /v1/checkout: explicit abandonment. The
// pending session slot is deleted only on this acknowledged path, never
// eagerly.
func (h *Handler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deleted, err := h.sessions.Delete()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.draft = nil
	webkit.JSON(w, http.StatusOK, map[string]any{"abandoned": true, "sessionDeleted": deleted})
}

// UploadImage handles POST /v1/checkout/image (multipart field "image").
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxImageBytes + 1<<20); err != nil {
		webkit.Error(w, http.StatusBadRequest, "multipart form required")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		webkit.Error(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		webkit.Error(w, http.StatusBadRequest, "reading image upload")
		return
	}

	artifact, err := h.engine.Inspect(data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}

	d, err := h.ctrl.SetSourceImage(*h.draft, artifact)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.draft = &d
	webkit.JSON(w, http.StatusOK, draftView(d))
}

// PreviewImage handles POST /v1/checkout/preview: a cheap, non-destructive
// render of the given parameters. The draft's edit state and rendered
// artifact are untouched.
func (h *Handler) PreviewImage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil || h.draft.SourceImage == nil {
		webkit.Error(w, http.StatusNotFound, "no image uploaded")
		return
	}

	artifact, err := h.engine.Render(h.draft.SourceImage.Data, req.Transform, req.Filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	webkit.JSON(w, http.StatusOK, map[string]any{
		"previewUri": artifact.DataURI(),
		"width":      artifact.Width,
		"height":     artifact.Height,
	})
}

// RenderImage handles POST /v1/checkout/render: the authoritative render
// for the given parameters, advancing the draft past the edit step.
func (h *Handler) RenderImage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}

	d, err := h.ctrl.SetEdit(*h.draft, req.Transform, req.Filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	d, err = h.ctrl.CommitEdit(d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.draft = &d
	webkit.JSON(w, http.StatusOK, draftView(d))
}

// SetFulfillment handles POST /v1/checkout/fulfillment.
func (h *Handler) SetFulfillment(w http.ResponseWriter, r *http.Request) {
	var req fulfillmentRequest
	if err := decodeJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.catalog.EnsureLoaded(r.Context()); err != nil {
		h.logger.Error("loading location catalog", "err", err)
		webkit.Error(w, http.StatusBadGateway, "location catalog unavailable")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}

	d, err := h.ctrl.SetFulfillment(*h.draft, wizard.Fulfillment{
		Method:   wizard.Method(req.Method),
		Pickup:   req.Pickup,
		Delivery: req.Delivery,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.draft = &d
	webkit.JSON(w, http.StatusOK, draftView(d))
}

// SetContact handles POST /v1/checkout/contact.
func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	var req wizard.Contact
	if err := decodeJSON(r, &req); err != nil {
		webkit.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}

	d, err := h.ctrl.SetContact(*h.draft, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.draft = &d
	webkit.JSON(w, http.StatusOK, draftView(d))
}

// GetQuote handles GET /v1/checkout/quote: the current price breakdown,
// derived from the same constants as the commit path.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil || h.draft.CaseType == "" {
		webkit.Error(w, http.StatusNotFound, "no checkout in progress")
		return
	}

	method := wizard.MethodPickup
	if h.draft.Fulfillment != nil {
		method = h.draft.Fulfillment.Method
	}
	webkit.JSON(w, http.StatusOK, h.pricer.Quote(h.draft.CaseType, method))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
