package natspub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/errors"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublishDeltaSubjectAndPayload(t *testing.T) {
	fc := &fakeConn{}
	publisher := &Publisher{conn: fc}

	delta := &artifact.NearbyResultDelta{
		Found: []*artifact.NearbyResult{artifact.NewNearbyResult(artifact.ARArtifact{ID: "a"})},
	}
	require.NoError(t, publisher.PublishDelta(context.Background(), "marker", delta))

	require.Equal(t, []string{"percept.delta.marker"}, fc.subjects)

	var decoded artifact.NearbyResultDelta
	require.NoError(t, json.Unmarshal(fc.payloads[0], &decoded))
	require.Len(t, decoded.Found, 1)
	assert.Equal(t, "a", decoded.Found[0].Artifact.ID)
}

func TestPublishDeltaConnectionError(t *testing.T) {
	publisher := &Publisher{conn: &fakeConn{err: errors.ErrConnectionLost}}

	err := publisher.PublishDelta(context.Background(), "geo", &artifact.NearbyResultDelta{})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestCloseDrains(t *testing.T) {
	fc := &fakeConn{}
	publisher := &Publisher{conn: fc}
	require.NoError(t, publisher.Close())
	assert.True(t, fc.drained)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{URL: "nats://localhost:4222"}.Validate())
}
