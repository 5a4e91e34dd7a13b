// Package wizard holds the order draft model and the step state machine
// that drives checkout: SelectPhone → UploadImage → EditImage → Fulfillment
// → Payment → Confirmed. The draft is a value; every step produces a new
// version rather than mutating shared state, which is what makes the
// whole-draft serialization across the payment redirect straightforward.
package wizard

import (
	"time"

	"github.com/snapcase/snapcase/internal/imaging"
)

// Step is a wizard step. Steps are strictly ordered; back transitions to
// any prior step are allowed and never discard entered data.
type Step int

const (
	StepSelectPhone Step = iota
	StepUploadImage
	StepEditImage
	StepFulfillment
	StepPayment
	StepConfirmed
)

var stepNames = map[Step]string{
	StepSelectPhone: "select_phone",
	StepUploadImage: "upload_image",
	StepEditImage:   "edit_image",
	StepFulfillment: "fulfillment",
	StepPayment:     "payment",
	StepConfirmed:   "confirmed",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}

// CaseType selects the product variant and its base price.
type CaseType string

const (
	CaseRegular CaseType = "regular"
	CaseMagSafe CaseType = "magsafe"
)

// PaymentState tracks the draft's position relative to the external
// payment processor.
type PaymentState string

const (
	PaymentNotStarted       PaymentState = "not_started"
	PaymentAwaitingRedirect PaymentState = "awaiting_redirect"
	PaymentReturned         PaymentState = "returned"
	PaymentCommitted        PaymentState = "committed"
	PaymentFailed           PaymentState = "failed"
)

// Method distinguishes the two fulfillment payloads.
type Method string

const (
	MethodPickup   Method = "pickup"
	MethodDelivery Method = "delivery"
)

// Pickup identifies a store pickup choice by catalog location id.
type Pickup struct {
	LocationID   string `json:"locationId"`
	LocationName string `json:"locationName,omitempty"`
}

// Delivery is a home-delivery address.
type Delivery struct {
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Instructions string `json:"instructions,omitempty"`
}

// Fulfillment is a tagged union: exactly one of Pickup/Delivery is set,
// matching Method.
type Fulfillment struct {
	Method   Method    `json:"method"`
	Pickup   *Pickup   `json:"pickup,omitempty"`
	Delivery *Delivery `json:"delivery,omitempty"`
}

// Contact is the customer contact info, required non-empty before payment.
type Contact struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Pricing is the derived price breakdown in cents. It is recomputed
// whenever case type or fulfillment changes, never edited directly.
type Pricing struct {
	BasePrice   int64   `json:"basePrice"`
	DeliveryFee int64   `json:"deliveryFee"`
	Subtotal    int64   `json:"subtotal"`
	TaxRate     float64 `json:"taxRate"`
	TaxAmount   int64   `json:"taxAmount"`
	Total       int64   `json:"total"`
}

// PhoneModel is the selected product variant.
type PhoneModel struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	MagSafeCapable bool   `json:"magSafeCapable"`
}

// Draft is the evolving order. It is owned by the controller during the
// session and serialized wholesale by the persistence bridge. A committed
// draft is never mutated again.
type Draft struct {
	Step Step `json:"step"`

	Phone    PhoneModel `json:"phone"`
	CaseType CaseType   `json:"caseType"`

	SourceImage   *imaging.Artifact `json:"sourceImage,omitempty"`
	Transform     imaging.Transform `json:"transform"`
	Filters       imaging.Filters   `json:"filters"`
	RenderedImage *imaging.Artifact `json:"renderedImage,omitempty"`

	Fulfillment *Fulfillment `json:"fulfillment,omitempty"`
	Contact     *Contact     `json:"contact,omitempty"`
	Pricing     *Pricing     `json:"pricing,omitempty"`

	PaymentState PaymentState `json:"paymentState"`
	PaymentRef   string       `json:"paymentRef,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewDraft starts an empty draft at the first step.
func NewDraft(now time.Time) Draft {
	return Draft{
		Step:         StepSelectPhone,
		Transform:    imaging.Identity(),
		PaymentState: PaymentNotStarted,
		CreatedAt:    now,
	}
}

// HasPhone reports whether a phone model has been selected.
func (d Draft) HasPhone() bool {
	return d.Phone.ID != ""
}

// HasContact reports whether the contact info is fully populated.
func (d Draft) HasContact() bool {
	return d.Contact != nil && d.Contact.Email != "" && d.Contact.Name != "" && d.Contact.Phone != ""
}

// Terminal reports whether the draft's lifecycle has ended.
func (d Draft) Terminal() bool {
	return d.PaymentState == PaymentCommitted || d.PaymentState == PaymentFailed
}
