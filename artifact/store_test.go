package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiec84/perception-toolkit/errors"
	"github.com/mikiec84/perception-toolkit/thing"
)

func TestMemoryStoreAddAssignsID(t *testing.T) {
	store := NewMemoryStore()

	added, err := store.Add(ARArtifact{Marker: &Marker{Type: "qrcode", Value: "abc"}})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, 1, store.Len())

	// An explicit ID is preserved.
	added, err = store.Add(ARArtifact{ID: "custom", Marker: &Marker{Value: "def"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", added.ID)
}

func TestMemoryStoreRejectsDuplicateID(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Add(ARArtifact{ID: "one"})
	require.NoError(t, err)

	_, err = store.Add(ARArtifact{ID: "one"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreIndexes(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Add(ARArtifact{
		Marker:  &Marker{Type: "qrcode", Value: "shared"},
		Content: thing.RawContent("https://example.com/a"),
	})
	require.NoError(t, err)
	_, err = store.Add(ARArtifact{
		Marker: &Marker{Type: "qrcode", Value: "shared"},
	})
	require.NoError(t, err)
	_, err = store.Add(ARArtifact{
		Image: &ImageTarget{ID: "img-1", Src: "https://example.com/i.png"},
	})
	require.NoError(t, err)
	_, err = store.Add(ARArtifact{
		Geo: &GeoTarget{Latitude: 51.5, Longitude: -0.12, RadiusMeters: 100},
	})
	require.NoError(t, err)

	assert.Len(t, store.ByMarkerValue("shared"), 2)
	assert.Empty(t, store.ByMarkerValue("unknown"))
	assert.Len(t, store.ByImageID("img-1"), 1)
	assert.Empty(t, store.ByImageID("img-2"))
	assert.Len(t, store.GeoTargeted(), 1)
}

func TestMemoryStoreDetectableImages(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Add(ARArtifact{Marker: &Marker{Value: "no-image"}})
	require.NoError(t, err)
	_, err = store.Add(ARArtifact{Image: &ImageTarget{ID: "first", Src: "https://example.com/1.png"}})
	require.NoError(t, err)
	_, err = store.Add(ARArtifact{Image: &ImageTarget{ID: "second", Src: "https://example.com/2.png"}})
	require.NoError(t, err)

	targets := store.DetectableImages()
	require.Len(t, targets, 2)
	assert.Equal(t, "first", targets[0].ID)
	assert.Equal(t, "second", targets[1].ID)
}

func TestNearbyResultDeltaEmpty(t *testing.T) {
	assert.True(t, (*NearbyResultDelta)(nil).Empty())
	assert.True(t, (&NearbyResultDelta{}).Empty())
	assert.False(t, (&NearbyResultDelta{
		Found: []*NearbyResult{NewNearbyResult(ARArtifact{ID: "a"})},
	}).Empty())
}
