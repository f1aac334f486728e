package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/fetch"
)

// fakeEngine returns canned deltas and records what it was asked.
type fakeEngine struct {
	markers []artifact.Marker
	images  []artifact.DetectedImage
	coords  []artifact.GeoCoordinates
	delta   *artifact.NearbyResultDelta
	targets []artifact.ImageTarget
}

func (e *fakeEngine) MarkerFound(_ context.Context, m artifact.Marker, _ fetch.Policy) (*artifact.NearbyResultDelta, error) {
	e.markers = append(e.markers, m)
	return e.delta, nil
}

func (e *fakeEngine) MarkerLost(_ context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error) {
	e.markers = append(e.markers, m)
	return &artifact.NearbyResultDelta{}, nil
}

func (e *fakeEngine) ImageFound(_ context.Context, img artifact.DetectedImage, _ fetch.Policy) (*artifact.NearbyResultDelta, error) {
	e.images = append(e.images, img)
	return e.delta, nil
}

func (e *fakeEngine) ImageLost(_ context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	e.images = append(e.images, img)
	return &artifact.NearbyResultDelta{}, nil
}

func (e *fakeEngine) GeolocationUpdated(_ context.Context, coords artifact.GeoCoordinates, _ fetch.Policy) (*artifact.NearbyResultDelta, error) {
	e.coords = append(e.coords, coords)
	return e.delta, nil
}

func (e *fakeEngine) DetectableImages() []artifact.ImageTarget {
	return e.targets
}

func dial(t *testing.T, engine Engine) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(NewServer(engine, nil))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg map[string]any) map[string]any {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestMarkerFoundRoundTrip(t *testing.T) {
	engine := &fakeEngine{delta: &artifact.NearbyResultDelta{
		Found: []*artifact.NearbyResult{artifact.NewNearbyResult(artifact.ARArtifact{ID: "a"})},
	}}
	conn := dial(t, engine)

	reply := roundTrip(t, conn, map[string]any{
		"type":   TypeMarkerFound,
		"marker": map[string]any{"type": "qrcode", "value": "abc"},
	})

	assert.Equal(t, TypeDelta, reply["type"])
	assert.Equal(t, "marker", reply["source"])
	require.Len(t, engine.markers, 1)
	assert.Equal(t, "abc", engine.markers[0].Value)

	delta, ok := reply["delta"].(map[string]any)
	require.True(t, ok)
	found, ok := delta["found"].([]any)
	require.True(t, ok)
	assert.Len(t, found, 1)
}

func TestGeolocationRoundTrip(t *testing.T) {
	engine := &fakeEngine{delta: &artifact.NearbyResultDelta{}}
	conn := dial(t, engine)

	reply := roundTrip(t, conn, map[string]any{
		"type":        TypeGeolocation,
		"coordinates": map[string]any{"latitude": 51.5, "longitude": -0.12},
	})

	assert.Equal(t, TypeDelta, reply["type"])
	assert.Equal(t, "geo", reply["source"])
	require.Len(t, engine.coords, 1)
	assert.InDelta(t, 51.5, engine.coords[0].Latitude, 0.0001)
}

func TestDetectableImagesRequest(t *testing.T) {
	engine := &fakeEngine{targets: []artifact.ImageTarget{
		{ID: "img-1", Src: "https://example.com/1.png"},
	}}
	conn := dial(t, engine)

	reply := roundTrip(t, conn, map[string]any{"type": TypeDetectableImages})

	assert.Equal(t, TypeDetectableImagesList, reply["type"])
	targets, ok := reply["targets"].([]any)
	require.True(t, ok)
	assert.Len(t, targets, 1)
}

func TestMissingPayloadReturnsError(t *testing.T) {
	conn := dial(t, &fakeEngine{})

	reply := roundTrip(t, conn, map[string]any{"type": TypeMarkerFound})
	assert.Equal(t, TypeError, reply["type"])
	assert.Contains(t, reply["error"], "marker")

	reply = roundTrip(t, conn, map[string]any{"type": TypeImageFound})
	assert.Equal(t, TypeError, reply["type"])

	reply = roundTrip(t, conn, map[string]any{"type": "bogus"})
	assert.Equal(t, TypeError, reply["type"])
	assert.Contains(t, reply["error"], "bogus")
}

func TestImageEventsRoundTrip(t *testing.T) {
	engine := &fakeEngine{delta: &artifact.NearbyResultDelta{}}
	conn := dial(t, engine)

	reply := roundTrip(t, conn, map[string]any{
		"type":  TypeImageFound,
		"image": map[string]any{"id": "img-1"},
	})
	assert.Equal(t, TypeDelta, reply["type"])
	assert.Equal(t, "image", reply["source"])

	reply = roundTrip(t, conn, map[string]any{
		"type":  TypeImageLost,
		"image": map[string]any{"id": "img-1"},
	})
	assert.Equal(t, TypeDelta, reply["type"])
	require.Len(t, engine.images, 2)
}
