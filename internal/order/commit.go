package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snapcase/snapcase/internal/fulfillment"
	"github.com/snapcase/snapcase/internal/storage"
	"github.com/snapcase/snapcase/internal/wizard"
)

// ErrUploadFailed aborts a commit before anything is written. The session
// slot is still intact, so the commit can be retried.
var ErrUploadFailed = errors.New("image upload failed")

// ErrCommitFailed means both the primary and the fallback path failed.
// Payment may already have succeeded externally; this is the one state
// where human reconciliation is the designed fallback, and it must never
// be masked as a generic error.
var ErrCommitFailed = errors.New("order could not be recorded on any path; contact support with your payment reference")

// Service finalizes a restored draft into a durable order record.
type Service struct {
	pricer   *Calculator
	resolver *fulfillment.Resolver
	uploader storage.Uploader
	primary  *APIClient
	fallback *FallbackStore
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the commit service.
func NewService(
	pricer *Calculator,
	resolver *fulfillment.Resolver,
	uploader storage.Uploader,
	primary *APIClient,
	fallback *FallbackStore,
	notifier *Notifier,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pricer:   pricer,
		resolver: resolver,
		uploader: uploader,
		primary:  primary,
		fallback: fallback,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Commit validates the draft, re-resolves fulfillment against the live
// catalog, uploads both image artifacts, and records the order: primary
// API first, compensating direct write if the primary path fails for any
// reason. Idempotency across redirect retries is the caller's
// delete-session-after-commit protocol; Commit itself is called at most
// once per restored session.
func (s *Service) Commit(ctx context.Context, d wizard.Draft) (Record, error) {
	rec, err := s.assemble(ctx, d)
	if err != nil {
		return Record{}, err
	}

	if id, err := s.tryPrimary(ctx, rec); err == nil {
		rec.ID = id
		rec.Channel = ChannelPrimary
		s.logger.Info("order committed via primary API", "order_id", rec.ID)
		return rec, nil
	} else {
		s.logger.Warn("primary order submission failed, falling back to direct write", "err", err)
	}

	if err := s.tryFallback(ctx, rec); err != nil {
		s.logger.Error("fallback order write failed", "err", err, "payment_ref", rec.PaymentRef)
		return Record{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	rec.Channel = ChannelFallback
	s.logger.Info("order committed via fallback write", "order_id", rec.ID)

	// The primary API would have dispatched the order notification itself;
	// compensate here. Best-effort and non-blocking.
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.OrderCreated(nctx, rec); err != nil {
			s.logger.Warn("compensating notification failed", "err", err, "order_id", rec.ID)
		}
	}()

	return rec, nil
}

// assemble validates the restored draft and builds the canonical record,
// uploading both image artifacts first so the record can reference them by
// URL.
func (s *Service) assemble(ctx context.Context, d wizard.Draft) (Record, error) {
	if d.SourceImage == nil || d.RenderedImage == nil {
		return Record{}, wizard.Validation("draft is missing image artifacts", "sourceImage", "renderedImage")
	}
	if !d.HasContact() {
		return Record{}, wizard.Validation("contact info is required", "email", "name", "phone")
	}
	if d.Fulfillment == nil {
		return Record{}, wizard.Validation("fulfillment is required", "fulfillment")
	}

	rec := Record{
		ID:                uuid.NewString(),
		PhoneModelID:      d.Phone.ID,
		PhoneModelName:    d.Phone.DisplayName,
		CaseType:          d.CaseType,
		Contact:           *d.Contact,
		FulfillmentMethod: d.Fulfillment.Method,
		PaymentRef:        d.PaymentRef,
		CreatedAt:         s.now(),
	}

	switch d.Fulfillment.Method {
	case wizard.MethodPickup:
		ref, loc, err := s.resolver.ResolvePickup(d.Fulfillment.Pickup.LocationID)
		if err != nil {
			return Record{}, err
		}
		rec.PickupRef = &ref
		rec.PickupName = loc.Name
	case wizard.MethodDelivery:
		if err := fulfillment.ValidateDelivery(*d.Fulfillment.Delivery); err != nil {
			return Record{}, err
		}
		delivery := *d.Fulfillment.Delivery
		rec.Delivery = &delivery
	default:
		return Record{}, wizard.Validation("unknown fulfillment method", "fulfillment")
	}

	// Pricing is always recomputed from the configured constants at commit
	// time, never trusted from the serialized draft.
	rec.Pricing = s.pricer.Quote(d.CaseType, d.Fulfillment.Method)

	sourceURL, err := s.uploader.Upload(ctx,
		storage.UniqueName("orders", "original", extFor(d.SourceImage.ContentType)),
		d.SourceImage.ContentType, d.SourceImage.Data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: original: %v", ErrUploadFailed, err)
	}
	renderedURL, err := s.uploader.Upload(ctx,
		storage.UniqueName("orders", "rendered", extFor(d.RenderedImage.ContentType)),
		d.RenderedImage.ContentType, d.RenderedImage.Data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: rendered: %v", ErrUploadFailed, err)
	}
	rec.SourceImageURL = sourceURL
	rec.RenderedImageURL = renderedURL

	return rec, nil
}

func (s *Service) tryPrimary(ctx context.Context, rec Record) (string, error) {
	return s.primary.Submit(ctx, rec)
}

func (s *Service) tryFallback(ctx context.Context, rec Record) error {
	return s.fallback.Insert(ctx, rec)
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
