// Package fulfillment validates and normalizes the chosen fulfillment
// method against the live catalog of pickup locations, reconciling the
// heterogeneous location-identifier types that upstream storage emits.
package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/snapcase/snapcase/pkg/kvstore"
)

// Coordinates is an optional lat/lng pair on a store location.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StoreLocation is read-only reference data from the location catalog.
// Upstream sends id as either a UUID string or a bare number; both decode
// into the string form here.
type StoreLocation struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// UnmarshalJSON tolerates both id forms the catalog emits: UUID strings
// pass through, bare numbers decode to their decimal string form.
func (l *StoreLocation) UnmarshalJSON(data []byte) error {
	type alias StoreLocation
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ID) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.ID, &s); err == nil {
		l.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(aux.ID, &n); err != nil {
		return fmt.Errorf("location id must be a string or a number, got %s", aux.ID)
	}
	l.ID = n.String()
	return nil
}

// Catalog fetches and caches the pickup location list. The snapshot is
// taken once per wizard session and treated as fixed for its duration.
type Catalog struct {
	baseURL  string
	client   *http.Client
	snapshot *kvstore.Store[StoreLocation]
}

// NewCatalog creates a catalog client against the order API base URL.
func NewCatalog(baseURL string, client *http.Client) *Catalog {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Catalog{
		baseURL:  baseURL,
		client:   client,
		snapshot: kvstore.New[StoreLocation]("loc"),
	}
}

// Refresh replaces the snapshot with the current upstream catalog.
func (c *Catalog) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/locations", nil)
	if err != nil {
		return fmt.Errorf("creating catalog request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching location catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching location catalog: status %d", resp.StatusCode)
	}

	var locations []StoreLocation
	if err := json.NewDecoder(resp.Body).Decode(&locations); err != nil {
		return fmt.Errorf("decoding location catalog: %w", err)
	}

	c.snapshot.Replace(locations, func(l StoreLocation) string { return l.ID })
	return nil
}

// EnsureLoaded refreshes the snapshot only if it is empty.
func (c *Catalog) EnsureLoaded(ctx context.Context) error {
	if c.snapshot.Count() > 0 {
		return nil
	}
	return c.Refresh(ctx)
}

// Locations returns the snapshot in catalog order.
func (c *Catalog) Locations() []StoreLocation {
	return c.snapshot.List()
}

// Get looks up a location by its string-form id.
func (c *Catalog) Get(id string) (StoreLocation, bool) {
	return c.snapshot.Get(id)
}

// Seed replaces the snapshot directly. Used by tests and offline tooling.
func (c *Catalog) Seed(locations []StoreLocation) {
	c.snapshot.Replace(locations, func(l StoreLocation) string { return l.ID })
}
