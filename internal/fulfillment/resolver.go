package fulfillment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/snapcase/snapcase/internal/wizard"
)

// PickupRef is the normalized identifier pair for a resolved pickup
// location. CanonicalRef is always the string/UUID form. LegacyNumericRef
// is populated only when the catalog id is itself numeric; downstream
// columns of the two disagreeing declared types each take their own field,
// and a nil numeric ref is nil, never a coerced zero.
type PickupRef struct {
	CanonicalRef     string `json:"canonicalRef"`
	LegacyNumericRef *int64 `json:"legacyNumericRef"`
}

// Resolver resolves pickup selections against the catalog snapshot.
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// ResolvePickup finds the catalog entry whose identifier, compared as a
// string, equals the selected identifier, and returns the normalized
// reference pair plus the matched location. No match is a hard validation
// failure; the user must not proceed.
func (r *Resolver) ResolvePickup(selectedID string) (PickupRef, StoreLocation, error) {
	ref, loc, err := ResolvePickup(selectedID, r.catalog.Locations())
	if err != nil {
		return PickupRef{}, StoreLocation{}, err
	}
	return ref, loc, nil
}

// CheckPickup implements wizard.PickupChecker.
func (r *Resolver) CheckPickup(locationID string) error {
	_, _, err := r.ResolvePickup(locationID)
	return err
}

// ResolvePickup is the catalog-independent resolution used directly by the
// commit path on a restored draft.
func ResolvePickup(selectedID string, catalog []StoreLocation) (PickupRef, StoreLocation, error) {
	selected := strings.TrimSpace(selectedID)
	if selected == "" {
		return PickupRef{}, StoreLocation{}, wizard.Validation("pickup location is required", "locationId")
	}

	for _, loc := range catalog {
		if loc.ID != selected {
			continue
		}
		return normalizeRef(loc.ID), loc, nil
	}

	return PickupRef{}, StoreLocation{}, wizard.Validation(
		fmt.Sprintf("pickup location %q not found in catalog", selected), "locationId")
}

// normalizeRef builds the reference pair from a catalog id. UUID-form ids
// are canonicalized to their lowercase text form; numeric-looking ids also
// populate the legacy numeric field.
func normalizeRef(id string) PickupRef {
	ref := PickupRef{CanonicalRef: id}
	if u, err := uuid.Parse(id); err == nil {
		ref.CanonicalRef = u.String()
		return ref
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		ref.LegacyNumericRef = &n
	}
	return ref
}

// ValidateDelivery checks that all four address fields are present,
// naming the missing ones.
func ValidateDelivery(d wizard.Delivery) error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"address", d.Address},
		{"city", d.City},
		{"state", d.State},
		{"zip", d.Zip},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return wizard.Validation("delivery address is incomplete", missing...)
	}
	return nil
}
