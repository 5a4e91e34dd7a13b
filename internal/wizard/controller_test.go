package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapcase/snapcase/internal/imaging"
)

type stubRenderer struct {
	failRender  bool
	renderCalls int
	reencodes   int
}

func (s *stubRenderer) Render(source []byte, t imaging.Transform, f imaging.Filters) (*imaging.Artifact, error) {
	s.renderCalls++
	if s.failRender {
		return nil, errors.New("surface too large")
	}
	return &imaging.Artifact{Data: []byte("rendered"), ContentType: "image/jpeg", Width: 10, Height: 10}, nil
}

func (s *stubRenderer) Reencode(source []byte) (*imaging.Artifact, error) {
	s.reencodes++
	return &imaging.Artifact{Data: source, ContentType: "image/jpeg", Width: 10, Height: 10}, nil
}

type stubPricer struct{}

func (stubPricer) Quote(caseType CaseType, method Method) Pricing {
	base := int64(2000)
	if caseType == CaseMagSafe {
		base = 3000
	}
	var fee int64
	if method == MethodDelivery {
		fee = 599
	}
	subtotal := base + fee
	tax := subtotal * 825 / 10000
	return Pricing{BasePrice: base, DeliveryFee: fee, Subtotal: subtotal, TaxRate: 0.0825, TaxAmount: tax, Total: subtotal + tax}
}

type stubPickups struct{ valid map[string]bool }

func (s stubPickups) CheckPickup(id string) error {
	if s.valid[id] {
		return nil
	}
	return Validation("pickup location not found", "locationId")
}

func newTestController(r *stubRenderer) *Controller {
	return NewController(r, stubPricer{}, stubPickups{valid: map[string]bool{"loc-1": true}}, nil)
}

func sourceArtifact() *imaging.Artifact {
	return &imaging.Artifact{Data: []byte("png bytes"), ContentType: "image/png", Width: 10, Height: 10}
}

func magSafePhone() PhoneModel {
	return PhoneModel{ID: "px-15", DisplayName: "Phone X 15", MagSafeCapable: true}
}

func TestHappyPathAdvancesThroughAllSteps(t *testing.T) {
	r := &stubRenderer{}
	c := newTestController(r)

	d := NewDraft(time.Now())
	assert.Equal(t, StepSelectPhone, d.Step)

	d, err := c.SelectPhone(d, magSafePhone(), CaseMagSafe)
	require.NoError(t, err)
	assert.Equal(t, StepUploadImage, d.Step)

	d, err = c.SetSourceImage(d, sourceArtifact())
	require.NoError(t, err)
	assert.Equal(t, StepEditImage, d.Step)

	d, err = c.SetEdit(d, imaging.Transform{Scale: 1.5, Rotation: 90}, imaging.Filters{Brightness: 10, Contrast: 5})
	require.NoError(t, err)

	d, err = c.CommitEdit(d)
	require.NoError(t, err)
	assert.Equal(t, StepFulfillment, d.Step)
	require.NotNil(t, d.RenderedImage)
	assert.Equal(t, 1, r.renderCalls)

	d, err = c.SetFulfillment(d, Fulfillment{Method: MethodPickup, Pickup: &Pickup{LocationID: "loc-1"}})
	require.NoError(t, err)
	assert.Equal(t, StepPayment, d.Step)
	require.NotNil(t, d.Pricing)
	assert.Equal(t, int64(3000), d.Pricing.BasePrice)
	assert.Zero(t, d.Pricing.DeliveryFee)

	d, err = c.SetContact(d, Contact{Email: "a@b.c", Name: "Ada", Phone: "555"})
	require.NoError(t, err)

	d, err = c.BeginPayment(d)
	require.NoError(t, err)
	assert.Equal(t, PaymentAwaitingRedirect, d.PaymentState)

	d = c.Confirm(d)
	assert.Equal(t, StepConfirmed, d.Step)
	assert.True(t, d.Terminal())
}

func TestGuardsBlockAdvancement(t *testing.T) {
	c := newTestController(&stubRenderer{})
	d := NewDraft(time.Now())

	// No phone selected: image upload refused.
	_, err := c.SetSourceImage(d, sourceArtifact())
	require.Error(t, err)

	// No source image: edit commit refused.
	d, err = c.SelectPhone(d, magSafePhone(), CaseRegular)
	require.NoError(t, err)
	_, err = c.CommitEdit(d)
	require.Error(t, err)

	// No rendered image: fulfillment refused.
	d, err = c.SetSourceImage(d, sourceArtifact())
	require.NoError(t, err)
	_, err = c.SetFulfillment(d, Fulfillment{Method: MethodPickup, Pickup: &Pickup{LocationID: "loc-1"}})
	require.Error(t, err)

	// Incomplete draft: payment refused.
	_, err = c.BeginPayment(d)
	require.Error(t, err)
}

func TestMagSafeRequiresCompatiblePhone(t *testing.T) {
	c := newTestController(&stubRenderer{})
	basic := PhoneModel{ID: "px-se", DisplayName: "Phone X SE", MagSafeCapable: false}

	_, err := c.SelectPhone(NewDraft(time.Now()), basic, CaseMagSafe)
	require.Error(t, err)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "caseType")

	_, err = c.SelectPhone(NewDraft(time.Now()), basic, CaseRegular)
	require.NoError(t, err)
}

func TestRenderFailureFallsBackToSource(t *testing.T) {
	r := &stubRenderer{failRender: true}
	c := newTestController(r)

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())

	d, err := c.CommitEdit(d)
	require.NoError(t, err)
	require.NotNil(t, d.RenderedImage)
	assert.Equal(t, []byte("png bytes"), d.RenderedImage.Data)
	assert.Equal(t, 1, r.reencodes)
	assert.Equal(t, StepFulfillment, d.Step)
}

func TestUnresolvablePickupIsHardStop(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())
	d, _ = c.CommitEdit(d)

	_, err := c.SetFulfillment(d, Fulfillment{Method: MethodPickup, Pickup: &Pickup{LocationID: "nope"}})
	require.Error(t, err)
	assert.Equal(t, StepFulfillment, d.Step)
}

func TestDeliveryValidationNamesMissingFields(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())
	d, _ = c.CommitEdit(d)

	_, err := c.SetFulfillment(d, Fulfillment{
		Method:   MethodDelivery,
		Delivery: &Delivery{Address: "1 Main St", State: "TX"},
	})
	require.Error(t, err)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"city", "zip"}, ve.Fields)
}

func TestPricingRecomputedOnFulfillmentChange(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())
	d, _ = c.CommitEdit(d)

	d, err := c.SetFulfillment(d, Fulfillment{Method: MethodPickup, Pickup: &Pickup{LocationID: "loc-1"}})
	require.NoError(t, err)
	pickupTotal := d.Pricing.Total

	d, err = c.SetFulfillment(d, Fulfillment{
		Method:   MethodDelivery,
		Delivery: &Delivery{Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701"},
	})
	require.NoError(t, err)
	assert.Greater(t, d.Pricing.Total, pickupTotal)
	assert.Equal(t, int64(599), d.Pricing.DeliveryFee)
	// Exactly one fulfillment payload populated.
	assert.Nil(t, d.Fulfillment.Pickup)
	require.NotNil(t, d.Fulfillment.Delivery)
}

func TestBackKeepsEnteredData(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())
	d, _ = c.CommitEdit(d)

	back, err := c.Back(d, StepUploadImage)
	require.NoError(t, err)
	assert.Equal(t, StepUploadImage, back.Step)
	assert.NotNil(t, back.SourceImage)
	assert.NotNil(t, back.RenderedImage)
	assert.Equal(t, "px-15", back.Phone.ID)

	// Forward-only "back" is rejected.
	_, err = c.Back(back, StepPayment)
	require.Error(t, err)
}

func TestEditInvalidatesPreviousRender(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())
	d, _ = c.CommitEdit(d)
	require.NotNil(t, d.RenderedImage)

	d, err := c.SetEdit(d, imaging.Transform{Scale: 2}, imaging.Filters{})
	require.NoError(t, err)
	assert.Nil(t, d.RenderedImage)
}

func TestTerminalDraftRejectsMutation(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d = c.Confirm(d)

	_, err := c.SetContact(d, Contact{Email: "a@b.c", Name: "Ada", Phone: "555"})
	require.ErrorIs(t, err, ErrDraftTerminal)

	_, err = c.SelectPhone(d, magSafePhone(), CaseRegular)
	require.ErrorIs(t, err, ErrDraftTerminal)
}

func TestResumeReturnsToPaymentStep(t *testing.T) {
	c := newTestController(&stubRenderer{})

	d := NewDraft(time.Now())
	d, _ = c.SelectPhone(d, magSafePhone(), CaseRegular)
	d, _ = c.SetSourceImage(d, sourceArtifact())
	d, _ = c.CommitEdit(d)
	d, _ = c.SetFulfillment(d, Fulfillment{Method: MethodPickup, Pickup: &Pickup{LocationID: "loc-1"}})
	d, _ = c.SetContact(d, Contact{Email: "a@b.c", Name: "Ada", Phone: "555"})
	d, _ = c.BeginPayment(d)

	resumed := c.Resume(d)
	assert.Equal(t, StepPayment, resumed.Step)
	assert.Equal(t, PaymentNotStarted, resumed.PaymentState)
	assert.NotNil(t, resumed.RenderedImage)
	assert.NotNil(t, resumed.Pricing)
}
