package artifact

import (
	"fmt"
	"sync"

	"github.com/mikiec84/perception-toolkit/errors"
)

// Store is the artifact catalog the engine indexes loaded artifacts into and
// the dealer queries on detection events.
type Store interface {
	// Add inserts an artifact and returns it with a store-assigned ID when
	// none was set. Re-adding an existing ID fails.
	Add(a ARArtifact) (ARArtifact, error)

	// ByMarkerValue returns artifacts whose marker target matches the given
	// recognized value.
	ByMarkerValue(value string) []ARArtifact

	// ByImageID returns artifacts whose image target carries the given ID.
	ByImageID(id string) []ARArtifact

	// GeoTargeted returns all artifacts anchored to a geofence.
	GeoTargeted() []ARArtifact

	// DetectableImages returns the image targets of every stored artifact,
	// for handing to the detection subsystem.
	DetectableImages() []ImageTarget

	// Len returns the number of stored artifacts.
	Len() int
}

// memoryStore is the reference Store: mutex-guarded in-memory indexes, no
// persistence.
type memoryStore struct {
	mu       sync.RWMutex
	byID     map[string]ARArtifact
	byMarker map[string][]string
	byImage  map[string][]string
	geoIDs   []string
	order    []string
	nextID   int
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:     make(map[string]ARArtifact),
		byMarker: make(map[string][]string),
		byImage:  make(map[string][]string),
	}
}

func (s *memoryStore) Add(a ARArtifact) (ARArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		s.nextID++
		a.ID = fmt.Sprintf("artifact-%d", s.nextID)
	}
	if _, exists := s.byID[a.ID]; exists {
		return ARArtifact{}, errors.WrapInvalid(errors.ErrDuplicateArtifact, "memoryStore", "Add",
			fmt.Sprintf("artifact %q already stored", a.ID))
	}

	s.byID[a.ID] = a
	s.order = append(s.order, a.ID)
	if a.Marker != nil {
		s.byMarker[a.Marker.Value] = append(s.byMarker[a.Marker.Value], a.ID)
	}
	if a.Image != nil {
		s.byImage[a.Image.ID] = append(s.byImage[a.Image.ID], a.ID)
	}
	if a.Geo != nil {
		s.geoIDs = append(s.geoIDs, a.ID)
	}
	return a, nil
}

func (s *memoryStore) ByMarkerValue(value string) []ARArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byMarker[value])
}

func (s *memoryStore) ByImageID(id string) []ARArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byImage[id])
}

func (s *memoryStore) GeoTargeted() []ARArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.geoIDs)
}

func (s *memoryStore) DetectableImages() []ImageTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var targets []ImageTarget
	for _, id := range s.order {
		if a := s.byID[id]; a.Image != nil {
			targets = append(targets, *a.Image)
		}
	}
	return targets
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// collect resolves IDs to artifacts. Caller holds at least the read lock.
func (s *memoryStore) collect(ids []string) []ARArtifact {
	if len(ids) == 0 {
		return nil
	}
	artifacts := make([]ARArtifact, 0, len(ids))
	for _, id := range ids {
		artifacts = append(artifacts, s.byID[id])
	}
	return artifacts
}
