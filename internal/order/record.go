package order

import (
	"time"

	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/wizard"
)

// Channel records which commit path durably stored the order.
type Channel string

const (
	ChannelPrimary  Channel = "primary"
	ChannelFallback Channel = "fallback"
)

// Record is the canonical order submitted to the order API and, on
// fallback, written directly to the data store. Once written it is never
// mutated.
type Record struct {
	ID string `json:"id"`

	PhoneModelID   string          `json:"phoneModelId"`
	PhoneModelName string          `json:"phoneModelName"`
	CaseType       wizard.CaseType `json:"caseType"`

	Contact wizard.Contact `json:"contact"`

	FulfillmentMethod wizard.Method          `json:"fulfillmentMethod"`
	PickupRef         *fulfillment.PickupRef `json:"pickupRef,omitempty"`
	PickupName        string                 `json:"pickupName,omitempty"`
	Delivery          *wizard.Delivery       `json:"delivery,omitempty"`

	Pricing wizard.Pricing `json:"pricing"`

	SourceImageURL   string `json:"sourceImageUrl"`
	RenderedImageURL string `json:"renderedImageUrl"`

	PaymentRef string    `json:"paymentRef"`
	Channel    Channel   `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
}
