// Package nearby provides the reference dealer: it matches detection events
// against registered artifact stores and tracks which artifacts are currently
// relevant, emitting found/lost deltas as that set changes.
package nearby

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mikiec84/perception-toolkit/artifact"
)

// defaultGeoRadiusMeters applies to geo targets that declare no radius.
const defaultGeoRadiusMeters = 100.0

// Dealer implements artifact.Dealer with in-memory tracking. An artifact
// enters the nearby set when any of its targets matches and leaves when that
// target is lost; repeat sightings of an already-nearby artifact produce no
// delta entries.
type Dealer struct {
	mu     sync.Mutex
	stores []artifact.Store

	// nearby tracks currently-relevant artifact IDs per target kind. An
	// artifact with several targets is tracked independently per kind.
	markerNearby map[string]artifact.ARArtifact
	imageNearby  map[string]artifact.ARArtifact
	geoNearby    map[string]artifact.ARArtifact

	logger *slog.Logger
}

// New creates a dealer with no stores attached.
func New(logger *slog.Logger) *Dealer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dealer{
		markerNearby: make(map[string]artifact.ARArtifact),
		imageNearby:  make(map[string]artifact.ARArtifact),
		geoNearby:    make(map[string]artifact.ARArtifact),
		logger:       logger,
	}
}

// AddStore registers a catalog to match events against.
func (d *Dealer) AddStore(store artifact.Store) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stores = append(d.stores, store)
}

// MarkerFound reports artifacts newly relevant because of a recognized
// marker. Artifacts already nearby are not repeated.
func (d *Dealer) MarkerFound(_ context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := &artifact.NearbyResultDelta{}
	for _, a := range d.byMarkerValue(m.Value) {
		if !markerMatches(a.Marker, m) {
			continue
		}
		if _, tracked := d.markerNearby[a.ID]; tracked {
			continue
		}
		d.markerNearby[a.ID] = a
		delta.Found = append(delta.Found, artifact.NewNearbyResult(a))
	}
	d.logger.Debug("marker found", "value", m.Value, "found", len(delta.Found))
	return delta, nil
}

// MarkerLost reports artifacts no longer relevant because a marker left view.
func (d *Dealer) MarkerLost(_ context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := &artifact.NearbyResultDelta{}
	for _, a := range d.byMarkerValue(m.Value) {
		if !markerMatches(a.Marker, m) {
			continue
		}
		if _, tracked := d.markerNearby[a.ID]; !tracked {
			continue
		}
		delete(d.markerNearby, a.ID)
		delta.Lost = append(delta.Lost, artifact.NewNearbyResult(a))
	}
	return delta, nil
}

// ImageFound reports artifacts newly relevant because an image target was
// recognized.
func (d *Dealer) ImageFound(_ context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := &artifact.NearbyResultDelta{}
	for _, a := range d.byImageID(img.ID) {
		if _, tracked := d.imageNearby[a.ID]; tracked {
			continue
		}
		d.imageNearby[a.ID] = a
		delta.Found = append(delta.Found, artifact.NewNearbyResult(a))
	}
	return delta, nil
}

// ImageLost reports artifacts no longer relevant because an image target left
// view.
func (d *Dealer) ImageLost(_ context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := &artifact.NearbyResultDelta{}
	for _, a := range d.byImageID(img.ID) {
		if _, tracked := d.imageNearby[a.ID]; !tracked {
			continue
		}
		delete(d.imageNearby, a.ID)
		delta.Lost = append(delta.Lost, artifact.NewNearbyResult(a))
	}
	return delta, nil
}

// GeolocationUpdated recomputes which geofenced artifacts contain the new
// position and reports the difference against the previous position. A single
// update can both find and lose artifacts, but never the same one.
func (d *Dealer) GeolocationUpdated(_ context.Context, coords artifact.GeoCoordinates) (*artifact.NearbyResultDelta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	within := make(map[string]artifact.ARArtifact)
	for _, store := range d.stores {
		for _, a := range store.GeoTargeted() {
			if a.Geo == nil {
				continue
			}
			radius := a.Geo.RadiusMeters
			if radius <= 0 {
				radius = defaultGeoRadiusMeters
			}
			distance := haversineMeters(coords.Latitude, coords.Longitude, a.Geo.Latitude, a.Geo.Longitude)
			if distance <= radius {
				within[a.ID] = a
			}
		}
	}

	delta := &artifact.NearbyResultDelta{}
	for id, a := range within {
		if _, tracked := d.geoNearby[id]; !tracked {
			delta.Found = append(delta.Found, artifact.NewNearbyResult(a))
		}
	}
	for id, a := range d.geoNearby {
		if _, still := within[id]; !still {
			delta.Lost = append(delta.Lost, artifact.NewNearbyResult(a))
		}
	}
	d.geoNearby = within

	d.logger.Debug("geolocation updated",
		"lat", coords.Latitude, "lon", coords.Longitude,
		"found", len(delta.Found), "lost", len(delta.Lost))
	return delta, nil
}

func (d *Dealer) byMarkerValue(value string) []artifact.ARArtifact {
	var matches []artifact.ARArtifact
	for _, store := range d.stores {
		matches = append(matches, store.ByMarkerValue(value)...)
	}
	return matches
}

func (d *Dealer) byImageID(id string) []artifact.ARArtifact {
	var matches []artifact.ARArtifact
	for _, store := range d.stores {
		matches = append(matches, store.ByImageID(id)...)
	}
	return matches
}

// markerMatches requires equal values; the type must match too when both the
// target and the event declare one.
func markerMatches(target *artifact.Marker, event artifact.Marker) bool {
	if target == nil || target.Value != event.Value {
		return false
	}
	if target.Type != "" && event.Type != "" && target.Type != event.Type {
		return false
	}
	return true
}
