// Package artifact defines the catalog entries that pair physical-world
// detection targets (markers, image targets, geofences) with displayable
// content, the detection event types, and the found/lost deltas produced
// when targets enter or leave the user's surroundings.
//
// The package also declares the Store, Dealer, and Loader contracts the
// engine consumes, plus reference implementations: an in-memory Store and an
// HTTP Loader. Nearby tracking lives in the nearby package.
package artifact

import (
	"github.com/mikiec84/perception-toolkit/thing"
)

// Marker is an opaque recognized value, e.g. the payload of a scanned code.
// It is passed into the toolkit for the duration of one call and never
// retained.
type Marker struct {
	// Type identifies the marker encoding (e.g. "qrcode"). Optional; an
	// empty type matches any marker target with the same value.
	Type string `json:"type,omitempty"`

	// Value is the recognized payload.
	Value string `json:"value"`
}

// DetectedImage is an opaque handle for a recognized image target.
type DetectedImage struct {
	ID string `json:"id"`
}

// GeoCoordinates is a latitude/longitude pair in degrees. Passed by value.
type GeoCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ImageTarget describes an image the detection subsystem should look for.
type ImageTarget struct {
	// ID correlates DetectedImage events with artifacts.
	ID string `json:"id"`

	// Src is the image asset to train the detector on.
	Src string `json:"src"`

	// PhysicalWidthMeters is the real-world width of the printed image,
	// when known. Zero means unknown.
	PhysicalWidthMeters float64 `json:"physical_width_meters,omitempty"`
}

// GeoTarget describes a circular geofence an artifact is anchored to.
type GeoTarget struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// ARArtifact is a catalog entry pairing one or more detection targets with
// displayable content. Content is either a structured record or a raw string
// interpreted as a URL reference to content.
type ARArtifact struct {
	// ID uniquely identifies the artifact within a store. Assigned by the
	// store on Add when empty.
	ID string `json:"id,omitempty"`

	Marker *Marker      `json:"marker,omitempty"`
	Image  *ImageTarget `json:"image,omitempty"`
	Geo    *GeoTarget   `json:"geo,omitempty"`

	Content thing.Content `json:"content,omitempty"`
}

// NearbyResult is one currently-relevant catalog entry. Content starts as a
// copy of the artifact's content and may be upgraded in place by enrichment.
type NearbyResult struct {
	Artifact ARArtifact    `json:"artifact"`
	Content  thing.Content `json:"content"`
}

// NewNearbyResult creates a result carrying the artifact's content.
func NewNearbyResult(a ARArtifact) *NearbyResult {
	return &NearbyResult{Artifact: a, Content: a.Content}
}

// NearbyResultDelta holds the found/lost sets resulting from one detection
// event. An artifact never appears in both lists for the same event.
type NearbyResultDelta struct {
	Found []*NearbyResult `json:"found"`
	Lost  []*NearbyResult `json:"lost"`
}

// Empty reports whether the delta carries no changes.
func (d *NearbyResultDelta) Empty() bool {
	return d == nil || (len(d.Found) == 0 && len(d.Lost) == 0)
}
