package thing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessors(t *testing.T) {
	record := Thing{
		TypeKey: "Event",
		URLKey:  "https://example.com/e1",
		NameKey: "Launch",
		"extra": 42,
	}

	assert.Equal(t, "Event", record.Type())
	assert.Equal(t, "https://example.com/e1", record.URL())
	assert.Equal(t, "Launch", record.Name())
	assert.True(t, record.HasName())
	assert.True(t, record.HasURL())
}

func TestAccessorsAbsentOrNonString(t *testing.T) {
	record := Thing{
		TypeKey: 7, // wrong type, treated as absent
	}

	assert.Equal(t, "", record.Type())
	assert.Equal(t, "", record.URL())
	assert.Equal(t, "", record.Name())
	assert.False(t, record.HasName())
	assert.False(t, record.HasURL())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New("Place").Validate())
	assert.Error(t, Thing{}.Validate())
	assert.Error(t, Thing{TypeKey: ""}.Validate())
}

func TestClone(t *testing.T) {
	original := Thing{TypeKey: "Event", "field": "value"}
	clone := original.Clone()

	clone["field"] = "changed"
	assert.Equal(t, "value", original["field"], "mutating the clone must not touch the original")

	assert.Nil(t, Thing(nil).Clone())
}

func TestMerge(t *testing.T) {
	fetched := Thing{
		TypeKey:  "Event",
		NameKey:  "Launch",
		URLKey:   "https://example.com/e1",
		"extra":  "from-fetch",
		"shared": "fetched-value",
	}
	original := Thing{
		TypeKey:  "Event",
		URLKey:   "https://example.com/e1",
		"shared": "original-value",
	}

	merged := Merge(fetched, original)

	// Fields absent from the original are filled from the fetched record
	assert.Equal(t, "Launch", merged.Name())
	assert.Equal(t, "from-fetch", merged["extra"])

	// Original explicit values always win
	assert.Equal(t, "original-value", merged["shared"])

	// Inputs are not mutated
	assert.Equal(t, "fetched-value", fetched["shared"])
	assert.False(t, original.HasName())
}

func TestMergeNilFetched(t *testing.T) {
	original := Thing{TypeKey: "Place"}
	merged := Merge(nil, original)
	require.NotNil(t, merged)
	assert.Equal(t, "Place", merged.Type())
}
