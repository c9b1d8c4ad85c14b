package store

import (
	"math"
	"sync"
	"time"

	"inforojo/internal/domain"
)

type ListOptions struct {
	Ruta   string
	Estado domain.Estado
	BBox   *domain.BoundingBox
}

// Store keeps the last known position of every tracked corredor, indexed by
// tile, ruta and estado.
type Store struct {
	mu         sync.RWMutex
	corredores map[string]*domain.Corredor
	byTile     map[string]map[string]struct{}
	byRuta     map[string]map[string]struct{}
	byEstado   map[domain.Estado]map[string]struct{}

	staleAfter time.Duration
	now        func() time.Time
}

func New(staleAfter time.Duration) *Store {
	return &Store{
		corredores: make(map[string]*domain.Corredor),
		byTile:     make(map[string]map[string]struct{}),
		byRuta:     make(map[string]map[string]struct{}),
		byEstado:   make(map[domain.Estado]map[string]struct{}),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Update merges a poll result and returns one delta per corredor whose
// position, ruta or estado changed.
func (s *Store) Update(corredores []*domain.Corredor) []domain.PositionDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deltas := make([]domain.PositionDelta, 0, len(corredores))

	for _, c := range corredores {
		c.UpdatedAt = now

		existing, exists := s.corredores[c.ID]
		if exists && !hasChanged(existing, c) {
			existing.UpdatedAt = now
			continue
		}

		if exists {
			s.removeFromIndices(existing)
		}
		s.corredores[c.ID] = c
		s.addToIndices(c)

		deltas = append(deltas, domain.PositionDelta{
			Type:     domain.DeltaUpdate,
			Corredor: c,
			TileID:   c.TileID,
		})
	}

	return deltas
}

func (s *Store) PruneStale() []domain.PositionDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.staleAfter)
	var deltas []domain.PositionDelta

	for id, c := range s.corredores {
		if c.UpdatedAt.Before(cutoff) {
			deltas = append(deltas, domain.PositionDelta{
				Type:   domain.DeltaRemove,
				Key:    id,
				TileID: c.TileID,
			})
			s.removeFromIndices(c)
			delete(s.corredores, id)
		}
	}

	return deltas
}

func (s *Store) Get(id string) (*domain.Corredor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.corredores[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (s *Store) List(opts ListOptions) []*domain.Corredor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidates(opts)

	result := make([]*domain.Corredor, 0, len(candidates))
	for id := range candidates {
		c := s.corredores[id]
		if opts.BBox != nil && !opts.BBox.Contains(c.Lat, c.Lng) {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	return result
}

func (s *Store) SnapshotForTiles(tileIDs []string) []*domain.Corredor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []*domain.Corredor

	for _, tileID := range tileIDs {
		for id := range s.byTile[tileID] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			cp := *s.corredores[id]
			result = append(result, &cp)
		}
	}
	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.corredores)
}

func (s *Store) CountByEstado() map[domain.Estado]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Estado]int, len(s.byEstado))
	for e, ids := range s.byEstado {
		counts[e] = len(ids)
	}
	return counts
}

func (s *Store) candidates(opts ListOptions) map[string]struct{} {
	switch {
	case opts.Ruta != "" && opts.Estado != "":
		return intersect(s.byRuta[opts.Ruta], s.byEstado[opts.Estado])
	case opts.Ruta != "":
		return copySet(s.byRuta[opts.Ruta])
	case opts.Estado != "":
		return copySet(s.byEstado[opts.Estado])
	}

	result := make(map[string]struct{}, len(s.corredores))
	for id := range s.corredores {
		result[id] = struct{}{}
	}
	return result
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{})
	if a == nil || b == nil {
		return result
	}

	smaller, larger := a, b
	if len(a) > len(b) {
		smaller, larger = b, a
	}
	for id := range smaller {
		if _, ok := larger[id]; ok {
			result[id] = struct{}{}
		}
	}
	return result
}

func copySet(src map[string]struct{}) map[string]struct{} {
	result := make(map[string]struct{}, len(src))
	for id := range src {
		result[id] = struct{}{}
	}
	return result
}

func addTo[K comparable](index map[K]map[string]struct{}, key K, id string) {
	if index[key] == nil {
		index[key] = make(map[string]struct{})
	}
	index[key][id] = struct{}{}
}

func removeFrom[K comparable](index map[K]map[string]struct{}, key K, id string) {
	if index[key] == nil {
		return
	}
	delete(index[key], id)
	if len(index[key]) == 0 {
		delete(index, key)
	}
}

func (s *Store) addToIndices(c *domain.Corredor) {
	addTo(s.byTile, c.TileID, c.ID)
	addTo(s.byRuta, c.IDRuta, c.ID)
	addTo(s.byEstado, c.Estado, c.ID)
}

func (s *Store) removeFromIndices(c *domain.Corredor) {
	removeFrom(s.byTile, c.TileID, c.ID)
	removeFrom(s.byRuta, c.IDRuta, c.ID)
	removeFrom(s.byEstado, c.Estado, c.ID)
}

func hasChanged(old, new *domain.Corredor) bool {
	const epsilon = 0.000001

	if old.IDRuta != new.IDRuta || old.Estado != new.Estado || old.Ocupacion != new.Ocupacion {
		return true
	}
	if math.Abs(old.Lat-new.Lat) > epsilon || math.Abs(old.Lng-new.Lng) > epsilon {
		return true
	}
	return !old.ActualizadoEn.Equal(new.ActualizadoEn)
}
