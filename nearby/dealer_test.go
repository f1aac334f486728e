package nearby

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiec84/perception-toolkit/artifact"
)

func newDealerWithStore(t *testing.T, artifacts ...artifact.ARArtifact) (*Dealer, artifact.Store) {
	t.Helper()
	store := artifact.NewMemoryStore()
	for _, a := range artifacts {
		_, err := store.Add(a)
		require.NoError(t, err)
	}
	dealer := New(nil)
	dealer.AddStore(store)
	return dealer, store
}

func foundIDs(delta *artifact.NearbyResultDelta) []string {
	var ids []string
	for _, r := range delta.Found {
		ids = append(ids, r.Artifact.ID)
	}
	return ids
}

func TestMarkerFoundAndLost(t *testing.T) {
	dealer, _ := newDealerWithStore(t,
		artifact.ARArtifact{ID: "a", Marker: &artifact.Marker{Type: "qrcode", Value: "shared"}},
		artifact.ARArtifact{ID: "b", Marker: &artifact.Marker{Value: "shared"}},
		artifact.ARArtifact{ID: "c", Marker: &artifact.Marker{Value: "other"}},
	)
	ctx := context.Background()

	delta, err := dealer.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "shared"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, foundIDs(delta))
	assert.Empty(t, delta.Lost)

	// Repeat sighting while still nearby yields nothing.
	delta, err = dealer.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "shared"})
	require.NoError(t, err)
	assert.True(t, delta.Empty())

	delta, err = dealer.MarkerLost(ctx, artifact.Marker{Value: "shared"})
	require.NoError(t, err)
	assert.Empty(t, delta.Found)
	assert.Len(t, delta.Lost, 2)

	// Losing an already-lost marker yields nothing.
	delta, err = dealer.MarkerLost(ctx, artifact.Marker{Value: "shared"})
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestMarkerTypeMismatchIgnored(t *testing.T) {
	dealer, _ := newDealerWithStore(t,
		artifact.ARArtifact{ID: "a", Marker: &artifact.Marker{Type: "qrcode", Value: "v"}},
	)

	delta, err := dealer.MarkerFound(context.Background(), artifact.Marker{Type: "barcode", Value: "v"})
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestUnknownMarkerYieldsEmptyDelta(t *testing.T) {
	dealer, _ := newDealerWithStore(t)

	delta, err := dealer.MarkerFound(context.Background(), artifact.Marker{Value: "unknown"})
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestImageFoundAndLost(t *testing.T) {
	dealer, _ := newDealerWithStore(t,
		artifact.ARArtifact{ID: "a", Image: &artifact.ImageTarget{ID: "img-1", Src: "https://example.com/1.png"}},
	)
	ctx := context.Background()

	delta, err := dealer.ImageFound(ctx, artifact.DetectedImage{ID: "img-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, foundIDs(delta))

	delta, err = dealer.ImageLost(ctx, artifact.DetectedImage{ID: "img-1"})
	require.NoError(t, err)
	require.Len(t, delta.Lost, 1)
	assert.Equal(t, "a", delta.Lost[0].Artifact.ID)
}

func TestGeolocationUpdated(t *testing.T) {
	// Two geofences ~830m apart; the user moves from one into the other.
	museum := artifact.ARArtifact{ID: "museum", Geo: &artifact.GeoTarget{
		Latitude: 51.5007, Longitude: -0.1246, RadiusMeters: 200,
	}}
	gallery := artifact.ARArtifact{ID: "gallery", Geo: &artifact.GeoTarget{
		Latitude: 51.5081, Longitude: -0.1281, RadiusMeters: 200,
	}}
	dealer, _ := newDealerWithStore(t, museum, gallery)
	ctx := context.Background()

	delta, err := dealer.GeolocationUpdated(ctx, artifact.GeoCoordinates{Latitude: 51.5007, Longitude: -0.1246})
	require.NoError(t, err)
	assert.Equal(t, []string{"museum"}, foundIDs(delta))
	assert.Empty(t, delta.Lost)

	// Standing still changes nothing.
	delta, err = dealer.GeolocationUpdated(ctx, artifact.GeoCoordinates{Latitude: 51.5007, Longitude: -0.1246})
	require.NoError(t, err)
	assert.True(t, delta.Empty())

	// Moving to the gallery loses the museum and finds the gallery.
	delta, err = dealer.GeolocationUpdated(ctx, artifact.GeoCoordinates{Latitude: 51.5081, Longitude: -0.1281})
	require.NoError(t, err)
	assert.Equal(t, []string{"gallery"}, foundIDs(delta))
	require.Len(t, delta.Lost, 1)
	assert.Equal(t, "museum", delta.Lost[0].Artifact.ID)

	// Moving out of range loses everything.
	delta, err = dealer.GeolocationUpdated(ctx, artifact.GeoCoordinates{Latitude: 48.8584, Longitude: 2.2945})
	require.NoError(t, err)
	assert.Empty(t, delta.Found)
	assert.Len(t, delta.Lost, 1)
}

func TestGeoDefaultRadius(t *testing.T) {
	dealer, _ := newDealerWithStore(t, artifact.ARArtifact{ID: "a", Geo: &artifact.GeoTarget{
		Latitude: 10, Longitude: 10,
	}})

	// ~50m east of the target, inside the 100m default radius.
	delta, err := dealer.GeolocationUpdated(context.Background(), artifact.GeoCoordinates{
		Latitude: 10, Longitude: 10.00045,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, foundIDs(delta))
}

func TestMultipleStores(t *testing.T) {
	storeA := artifact.NewMemoryStore()
	storeB := artifact.NewMemoryStore()
	_, err := storeA.Add(artifact.ARArtifact{ID: "a", Marker: &artifact.Marker{Value: "v"}})
	require.NoError(t, err)
	_, err = storeB.Add(artifact.ARArtifact{ID: "b", Marker: &artifact.Marker{Value: "v"}})
	require.NoError(t, err)

	dealer := New(nil)
	dealer.AddStore(storeA)
	dealer.AddStore(storeB)

	delta, err := dealer.MarkerFound(context.Background(), artifact.Marker{Value: "v"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, foundIDs(delta))
}

func TestHaversine(t *testing.T) {
	// London to Paris is roughly 344 km.
	d := haversineMeters(51.5007, -0.1246, 48.8584, 2.2945)
	assert.InDelta(t, 340000, d, 10000)

	assert.Zero(t, haversineMeters(10, 20, 10, 20))
}
