package wizard

import (
	"fmt"
	"log/slog"

	"github.com/snapcase/snapcase/internal/imaging"
)

// Renderer produces the final encoded artwork. Implemented by
// imaging.Engine.
type Renderer interface {
	Render(source []byte, t imaging.Transform, f imaging.Filters) (*imaging.Artifact, error)
	Reencode(source []byte) (*imaging.Artifact, error)
}

// Pricer computes the price breakdown for a case type and fulfillment
// method from the configured constants.
type Pricer interface {
	Quote(caseType CaseType, method Method) Pricing
}

// PickupChecker re-validates a pickup location id against the live catalog.
// Implemented by the fulfillment resolver.
type PickupChecker interface {
	CheckPickup(locationID string) error
}

// Controller applies step transitions to drafts. It holds no draft state
// itself; every method takes a draft value and returns the next version.
type Controller struct {
	renderer Renderer
	pricer   Pricer
	pickups  PickupChecker
	logger   *slog.Logger
}

// NewController wires a controller with its collaborators.
func NewController(r Renderer, p Pricer, pc PickupChecker, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{renderer: r, pricer: p, pickups: pc, logger: logger}
}

// SelectPhone records the phone model and case type and advances past
// SelectPhone. A MagSafe case on a non-MagSafe phone is a validation error.
func (c *Controller) SelectPhone(d Draft, phone PhoneModel, caseType CaseType) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if phone.ID == "" || phone.DisplayName == "" {
		return d, Validation("phone model is required", "phoneModelId")
	}
	switch caseType {
	case CaseRegular:
	case CaseMagSafe:
		if !phone.MagSafeCapable {
			return d, Validation(
				fmt.Sprintf("%s does not support MagSafe cases", phone.DisplayName),
				"caseType")
		}
	default:
		return d, Validation("unknown case type", "caseType")
	}

	changed := d.CaseType != caseType
	d.Phone = phone
	d.CaseType = caseType
	if d.Step == StepSelectPhone {
		d.Step = StepUploadImage
	}
	if changed {
		d = c.reprice(d)
	}
	return d, nil
}

// SetSourceImage records the uploaded raster and advances past UploadImage.
// The source is immutable once set only in the sense that re-upload starts
// a fresh edit: any previous render is dropped.
func (c *Controller) SetSourceImage(d Draft, source *imaging.Artifact) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if !d.HasPhone() {
		return d, Validation("select a phone model first", "phoneModelId")
	}
	if source == nil || len(source.Data) == 0 {
		return d, Validation("image data is required", "sourceImage")
	}
	d.SourceImage = source
	d.RenderedImage = nil
	d.Transform = imaging.Identity()
	d.Filters = imaging.Filters{}
	if d.Step == StepUploadImage || d.Step == StepSelectPhone {
		d.Step = StepEditImage
	}
	return d, nil
}

// SetEdit updates the current transform/filter edit state without
// rendering. Used by live preview; non-destructive.
func (c *Controller) SetEdit(d Draft, t imaging.Transform, f imaging.Filters) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if err := t.Validate(); err != nil {
		return d, Validation(err.Error(), "transform")
	}
	if err := f.Validate(); err != nil {
		return d, Validation(err.Error(), "filterValues")
	}
	d.Transform = t
	d.Filters = f
	// Parameters changed; a previous render no longer reflects them.
	d.RenderedImage = nil
	return d, nil
}

// CommitEdit runs the authoritative render for the current parameters and
// advances past EditImage. A rasterization failure is recovered locally by
// re-encoding the untouched source; it never blocks the wizard.
func (c *Controller) CommitEdit(d Draft) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if d.SourceImage == nil {
		return d, Validation("upload an image first", "sourceImage")
	}

	rendered, err := c.renderer.Render(d.SourceImage.Data, d.Transform, d.Filters)
	if err != nil {
		c.logger.Warn("render failed, falling back to source image", "err", err)
		rendered, err = c.renderer.Reencode(d.SourceImage.Data)
		if err != nil {
			return d, fmt.Errorf("re-encoding source image: %w", err)
		}
	}
	d.RenderedImage = rendered
	if d.Step <= StepEditImage {
		d.Step = StepFulfillment
	}
	return d, nil
}

// SetFulfillment records the pickup or delivery choice and advances past
// Fulfillment. Pickup ids are resolved against the live catalog; no match
// is a hard stop. Changing fulfillment invalidates pricing.
func (c *Controller) SetFulfillment(d Draft, f Fulfillment) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if d.RenderedImage == nil {
		return d, Validation("finish editing the image first", "renderedImage")
	}

	switch f.Method {
	case MethodPickup:
		if f.Pickup == nil || f.Pickup.LocationID == "" {
			return d, Validation("pickup location is required", "locationId")
		}
		if err := c.pickups.CheckPickup(f.Pickup.LocationID); err != nil {
			return d, err
		}
		f.Delivery = nil
	case MethodDelivery:
		if f.Delivery == nil {
			return d, Validation("delivery address is required",
				"address", "city", "state", "zip")
		}
		var missing []string
		for _, fv := range []struct{ name, val string }{
			{"address", f.Delivery.Address},
			{"city", f.Delivery.City},
			{"state", f.Delivery.State},
			{"zip", f.Delivery.Zip},
		} {
			if fv.val == "" {
				missing = append(missing, fv.name)
			}
		}
		if len(missing) > 0 {
			return d, Validation("delivery address is incomplete", missing...)
		}
		f.Pickup = nil
	default:
		return d, Validation("choose pickup or delivery", "fulfillment")
	}

	d.Fulfillment = &f
	d = c.reprice(d)
	if d.Step == StepFulfillment {
		d.Step = StepPayment
	}
	return d, nil
}

// SetContact records the customer contact info. All three fields are
// required before payment.
func (c *Controller) SetContact(d Draft, contact Contact) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	var missing []string
	for _, fv := range []struct{ name, val string }{
		{"email", contact.Email},
		{"name", contact.Name},
		{"phone", contact.Phone},
	} {
		if fv.val == "" {
			missing = append(missing, fv.name)
		}
	}
	if len(missing) > 0 {
		return d, Validation("contact info is incomplete", missing...)
	}
	d.Contact = &contact
	return d, nil
}

// BeginPayment verifies the draft is payable, recomputes pricing from the
// configured constants, and marks the draft as awaiting the external
// redirect. The caller must snapshot the draft before actually redirecting.
func (c *Controller) BeginPayment(d Draft) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if d.Fulfillment == nil {
		return d, Validation("fulfillment is required", "fulfillment")
	}
	if !d.HasContact() {
		return d, Validation("contact info is required", "email", "name", "phone")
	}
	if d.RenderedImage == nil {
		return d, Validation("rendered image is required", "renderedImage")
	}
	d = c.reprice(d)
	d.Step = StepPayment
	d.PaymentState = PaymentAwaitingRedirect
	return d, nil
}

// Resume moves a restored draft back to the Payment step after a cancelled
// external payment, keeping all entered data.
func (c *Controller) Resume(d Draft) Draft {
	d.Step = StepPayment
	d.PaymentState = PaymentNotStarted
	d = c.reprice(d)
	return d
}

// Confirm marks the draft committed. The lifecycle ends here.
func (c *Controller) Confirm(d Draft) Draft {
	d.Step = StepConfirmed
	d.PaymentState = PaymentCommitted
	return d
}

// Fail marks the draft failed. The lifecycle ends here.
func (c *Controller) Fail(d Draft) Draft {
	d.PaymentState = PaymentFailed
	return d
}

// Back moves to any prior step without discarding data.
func (c *Controller) Back(d Draft, to Step) (Draft, error) {
	if d.Terminal() {
		return d, ErrDraftTerminal
	}
	if to >= d.Step {
		return d, Validation(fmt.Sprintf("cannot go back to %s from %s", to, d.Step), "step")
	}
	d.Step = to
	return d, nil
}

// reprice recomputes the derived pricing; it is never carried across a
// case-type or fulfillment change.
func (c *Controller) reprice(d Draft) Draft {
	if d.CaseType == "" {
		d.Pricing = nil
		return d
	}
	method := MethodPickup
	if d.Fulfillment != nil {
		method = d.Fulfillment.Method
	}
	p := c.pricer.Quote(d.CaseType, method)
	d.Pricing = &p
	return d
}
