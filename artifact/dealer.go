package artifact

import "context"

// Dealer tracks which artifacts are currently relevant to the user's
// surroundings and turns detection events into found/lost deltas. A dealer
// must never place the same artifact in both the found and lost list of a
// single delta.
//
// The reference implementation lives in the nearby package.
type Dealer interface {
	// AddStore registers a catalog for the dealer to match events against.
	AddStore(store Store)

	MarkerFound(ctx context.Context, m Marker) (*NearbyResultDelta, error)
	MarkerLost(ctx context.Context, m Marker) (*NearbyResultDelta, error)

	ImageFound(ctx context.Context, img DetectedImage) (*NearbyResultDelta, error)
	ImageLost(ctx context.Context, img DetectedImage) (*NearbyResultDelta, error)

	GeolocationUpdated(ctx context.Context, coords GeoCoordinates) (*NearbyResultDelta, error)
}
