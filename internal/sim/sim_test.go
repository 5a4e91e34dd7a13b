package sim

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/order"
	"github.com/snapcase/snapcase/internal/wizard"
	"github.com/snapcase/snapcase/pkg/testutil"
)

func newSimClient(t *testing.T) *testutil.Client {
	t.Helper()
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	NewHandler(srv.URL, nil).Routes(r)
	return testutil.NewClient(t, srv)
}

func TestLocationsCatalog(t *testing.T) {
	c := newSimClient(t)

	resp := c.Get("/locations")
	resp.AssertStatus(200)
	var locations []fulfillment.StoreLocation
	resp.JSON(&locations)
	require.Len(t, locations, 3)
	assert.Equal(t, "1", locations[0].ID)
	assert.Equal(t, "b4a9f1d2-6c1e-4b02-8f3a-2e9d5c7a1b44", locations[2].ID)
}

func TestOrderLifecycle(t *testing.T) {
	c := newSimClient(t)

	resp := c.Post("/orders", order.Record{
		PhoneModelID:      "px-15",
		CaseType:          wizard.CaseMagSafe,
		FulfillmentMethod: wizard.MethodPickup,
		PaymentRef:        "cs_sim_1",
		Pricing:           wizard.Pricing{Total: 3248},
	})
	resp.AssertStatus(201)
	id := resp.JSONMap()["id"].(string)
	assert.Equal(t, "ord_000001", id)

	get := c.Get("/orders/" + id)
	get.AssertStatus(200)
	var rec order.Record
	get.JSON(&rec)
	assert.Equal(t, "cs_sim_1", rec.PaymentRef)
	assert.Equal(t, int64(3248), rec.Pricing.Total)

	c.Get("/orders/ord_999999").AssertStatus(404)
}

func TestCheckoutSessionRedirect(t *testing.T) {
	c := newSimClient(t)

	resp := c.Post("/payments/create-checkout-session", map[string]any{
		"amountInSmallestCurrencyUnit": 3896,
		"currency":                     "usd",
		"successUrl":                   "http://shop.test/return?status=success",
		"cancelUrl":                    "http://shop.test/return?status=cancel",
	})
	resp.AssertStatus(201)
	body := resp.JSONMap()
	sessionID := body["sessionId"].(string)
	assert.Contains(t, body["redirectUrl"], "/payments/checkout/"+sessionID)

	page := c.Get("/payments/checkout/" + sessionID)
	page.AssertStatus(200)
	pageBody := page.JSONMap()
	assert.Equal(t, "http://shop.test/return?status=success", pageBody["payLink"])
	assert.Equal(t, "http://shop.test/return?status=cancel", pageBody["cancelLink"])
}

func TestCheckoutSessionValidation(t *testing.T) {
	c := newSimClient(t)

	c.Post("/payments/create-checkout-session", map[string]any{
		"amountInSmallestCurrencyUnit": 0,
		"currency":                     "usd",
		"successUrl":                   "http://a",
		"cancelUrl":                    "http://b",
	}).AssertStatus(400)

	c.Post("/payments/create-checkout-session", map[string]any{
		"amountInSmallestCurrencyUnit": 100,
		"currency":                     "usd",
	}).AssertStatus(400)
}

func TestObjectStorageRoundTrip(t *testing.T) {
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	NewHandler(srv.URL, nil).Routes(r)
	c := testutil.NewClient(t, srv)

	req, err := http.NewRequest(http.MethodPut,
		srv.URL+"/objects/orders/test.jpg", bytes.NewReader([]byte("jpeg bytes")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 201, resp.StatusCode)

	get := c.Get("/objects/orders/test.jpg")
	get.AssertStatus(200)
	assert.Equal(t, "image/jpeg", get.Headers.Get("Content-Type"))
	assert.Equal(t, "jpeg bytes", string(get.Body))

	c.Get("/objects/orders/missing.jpg").AssertStatus(404)
}

func TestOutageToggle(t *testing.T) {
	c := newSimClient(t)

	c.Get("/locations").AssertStatus(200)

	c.Post("/sim/outage", map[string]any{"target": "locations", "down": true}).AssertStatus(200)
	c.Get("/locations").AssertStatus(503)

	c.Post("/sim/outage", map[string]any{"target": "locations", "down": false}).AssertStatus(200)
	c.Get("/locations").AssertStatus(200)

	c.Post("/sim/outage", map[string]any{"target": "everything", "down": true}).AssertStatus(400)
}

func TestStateReport(t *testing.T) {
	c := newSimClient(t)

	c.Post("/orders", order.Record{PaymentRef: "cs_1"}).AssertStatus(201)

	state := c.Get("/sim/state")
	state.AssertStatus(200)
	body := state.JSONMap()
	assert.Equal(t, float64(1), body["orders"])
	assert.Equal(t, float64(0), body["sessions"])
}
