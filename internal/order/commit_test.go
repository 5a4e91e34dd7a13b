package order

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/snapcase/snapcase/internal/config"
	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/imaging"
	"github.com/snapcase/snapcase/internal/wizard"
)

type stubUploader struct {
	mu    sync.Mutex
	names []string
	fail  bool
}

func (u *stubUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail {
		return "", fmt.Errorf("storage unavailable")
	}
	u.names = append(u.names, name)
	return "https://cdn.example.com/" + name, nil
}

func (u *stubUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.names)
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCatalog() *fulfillment.Catalog {
	c := fulfillment.NewCatalog("", nil)
	c.Seed([]fulfillment.StoreLocation{
		{ID: "d7f1bcf2-30a0-4b28-9f1d-6a3d2c9b8e11", Name: "Uptown"},
		{ID: "42", Name: "Mall kiosk"},
	})
	return c
}

func restoredDraft() wizard.Draft {
	d := wizard.NewDraft(time.Now())
	d.Step = wizard.StepPayment
	d.Phone = wizard.PhoneModel{ID: "px-15", DisplayName: "Phone X 15", MagSafeCapable: true}
	d.CaseType = wizard.CaseMagSafe
	d.SourceImage = &imaging.Artifact{Data: []byte("png"), ContentType: "image/png", Width: 4, Height: 4}
	d.RenderedImage = &imaging.Artifact{Data: []byte("jpg"), ContentType: "image/jpeg", Width: 4, Height: 4}
	d.Fulfillment = &wizard.Fulfillment{
		Method: wizard.MethodPickup,
		Pickup: &wizard.Pickup{LocationID: "d7f1bcf2-30a0-4b28-9f1d-6a3d2c9b8e11"},
	}
	d.Contact = &wizard.Contact{Email: "a@b.c", Name: "Ada", Phone: "555"}
	d.PaymentRef = "pay_abc"
	d.PaymentState = wizard.PaymentReturned
	return d
}

func newTestService(t *testing.T, primaryURL, notifyURL string, db *sql.DB, uploader *stubUploader) *Service {
	t.Helper()
	fallback, err := NewFallbackStore(db)
	require.NoError(t, err)

	primary := NewAPIClient(primaryURL, nil)
	primary.sleep = func(time.Duration) {}

	notifier := NewNotifier(notifyURL, "shh", nil)
	notifier.sleep = func(time.Duration) {}

	return NewService(
		NewCalculator(config.Default()),
		fulfillment.NewResolver(testCatalog()),
		uploader,
		primary,
		fallback,
		notifier,
		nil,
	)
}

func TestCommitPrimaryPath(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "ord_primary_1"}`))
	}))
	defer api.Close()

	db := testDB(t)
	uploader := &stubUploader{}
	svc := newTestService(t, api.URL, "", db, uploader)

	rec, err := svc.Commit(context.Background(), restoredDraft())
	require.NoError(t, err)

	assert.Equal(t, "ord_primary_1", rec.ID)
	assert.Equal(t, ChannelPrimary, rec.Channel)
	assert.Equal(t, "pay_abc", rec.PaymentRef)
	require.NotNil(t, rec.PickupRef)
	assert.Equal(t, "d7f1bcf2-30a0-4b28-9f1d-6a3d2c9b8e11", rec.PickupRef.CanonicalRef)
	assert.Equal(t, int64(3248), rec.Pricing.Total)

	// Exactly two uploads: the original and the rendered artifact.
	assert.Equal(t, 2, uploader.count())
	assert.Contains(t, rec.SourceImageURL, "original")
	assert.Contains(t, rec.RenderedImageURL, "rendered")

	// The primary path never touches the fallback table.
	n, err := svc.fallback.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitFallsBackWhenPrimaryIsDown(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer api.Close()

	notified := make(chan []byte, 1)
	notify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Snapcase-Signature"))
		assert.NotEmpty(t, r.Header.Get("Snapcase-Timestamp"))
		select {
		case notified <- []byte(r.Header.Get("Content-Type")):
		default:
		}
	}))
	defer notify.Close()

	db := testDB(t)
	svc := newTestService(t, api.URL, notify.URL, db, &stubUploader{})

	rec, err := svc.Commit(context.Background(), restoredDraft())
	require.NoError(t, err)
	assert.Equal(t, ChannelFallback, rec.Channel)

	stored, found, err := svc.fallback.GetByPaymentRef(context.Background(), "pay_abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.ID, stored.ID)
	assert.Equal(t, int64(3248), stored.Pricing.Total)

	// The compensating notification fires asynchronously.
	select {
	case ct := <-notified:
		assert.Equal(t, "application/json", string(ct))
	case <-time.After(5 * time.Second):
		t.Fatal("compensating notification was never dispatched")
	}
}

func TestCommitFailsWhenBothPathsFail(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer api.Close()

	db := testDB(t)
	svc := newTestService(t, api.URL, "", db, &stubUploader{})
	// A closed database makes the fallback write fail too.
	require.NoError(t, db.Close())

	_, err := svc.Commit(context.Background(), restoredDraft())
	require.ErrorIs(t, err, ErrCommitFailed)
}

func TestCommitNotificationFailureDoesNotFailCommit(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer api.Close()

	notify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusInternalServerError)
	}))
	defer notify.Close()

	svc := newTestService(t, api.URL, notify.URL, testDB(t), &stubUploader{})

	rec, err := svc.Commit(context.Background(), restoredDraft())
	require.NoError(t, err)
	assert.Equal(t, ChannelFallback, rec.Channel)
}

func TestCommitAbortsOnUploadFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("order API must not be called when uploads fail")
	}))
	defer api.Close()

	svc := newTestService(t, api.URL, "", testDB(t), &stubUploader{fail: true})

	_, err := svc.Commit(context.Background(), restoredDraft())
	require.ErrorIs(t, err, ErrUploadFailed)

	n, err := svc.fallback.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitRecomputesPricing(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "ord_1"}`))
	}))
	defer api.Close()

	svc := newTestService(t, api.URL, "", testDB(t), &stubUploader{})

	// A tampered serialized total is ignored; pricing always comes from the
	// configured constants.
	d := restoredDraft()
	d.CaseType = wizard.CaseRegular
	d.Fulfillment = &wizard.Fulfillment{
		Method:   wizard.MethodDelivery,
		Delivery: &wizard.Delivery{Address: "1 Main St", City: "Austin", State: "TX", Zip: "78701"},
	}
	d.Pricing = &wizard.Pricing{Total: 1}

	rec, err := svc.Commit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(2813), rec.Pricing.Total)
	assert.Nil(t, rec.PickupRef)
	require.NotNil(t, rec.Delivery)
	assert.Equal(t, "Austin", rec.Delivery.City)
}

func TestCommitRejectsIncompleteDraft(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:0", "", testDB(t), &stubUploader{})

	noContact := restoredDraft()
	noContact.Contact = nil
	_, err := svc.Commit(context.Background(), noContact)
	require.Error(t, err)
	_, isValidation := wizard.AsValidation(err)
	assert.True(t, isValidation)

	noImages := restoredDraft()
	noImages.RenderedImage = nil
	_, err = svc.Commit(context.Background(), noImages)
	require.Error(t, err)

	stalePickup := restoredDraft()
	stalePickup.Fulfillment.Pickup.LocationID = "gone"
	_, err = svc.Commit(context.Background(), stalePickup)
	require.Error(t, err)
	ve, ok := wizard.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "locationId")
}
