// Package layers tracks which map overlays the user has switched on.
package layers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"inforojo/internal/domain"
)

var ErrUnknownCapa = errors.New("unknown capa")

// Set is the enabled subset of domain.AllCapas. The zero value has every
// layer off; use NewSet for the default of all on.
type Set struct {
	mu      sync.RWMutex
	enabled map[domain.Capa]bool
}

func NewSet(capas ...domain.Capa) *Set {
	s := &Set{enabled: make(map[domain.Capa]bool, len(domain.AllCapas))}
	if capas == nil {
		capas = domain.AllCapas
	}
	for _, c := range capas {
		if c.Valid() {
			s.enabled[c] = true
		}
	}
	return s
}

func (s *Set) Enabled(c domain.Capa) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[c]
}

func (s *Set) Enable(c domain.Capa) {
	s.set(c, true)
}

func (s *Set) Disable(c domain.Capa) {
	s.set(c, false)
}

// Toggle flips a layer and returns its new state.
func (s *Set) Toggle(c domain.Capa) bool {
	if !c.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.enabled[c] = !s.enabled[c]
	return s.enabled[c]
}

func (s *Set) set(c domain.Capa, on bool) {
	if !c.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.enabled[c] = on
}

func (s *Set) ensure() {
	if s.enabled == nil {
		s.enabled = make(map[domain.Capa]bool, len(domain.AllCapas))
	}
}

// Replace sets exactly the given layers on.
func (s *Set) Replace(capas []domain.Capa) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = make(map[domain.Capa]bool, len(domain.AllCapas))
	for _, c := range capas {
		if c.Valid() {
			s.enabled[c] = true
		}
	}
}

// List returns the enabled layers in display order.
func (s *Set) List() []domain.Capa {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Capa, 0, len(domain.AllCapas))
	for _, c := range domain.AllCapas {
		if s.enabled[c] {
			result = append(result, c)
		}
	}
	return result
}

// Filter keeps the markers whose layer is enabled.
func Filter(markers []domain.Marker, s *Set) []domain.Marker {
	result := make([]domain.Marker, 0, len(markers))
	for _, m := range markers {
		if s.Enabled(m.Capa) {
			result = append(result, m)
		}
	}
	return result
}

// ParseCapas parses "rutas,buses". Unknown names are an error; duplicates
// and blanks are dropped.
func ParseCapas(v string) ([]domain.Capa, error) {
	seen := make(map[domain.Capa]bool)
	result := []domain.Capa{}
	for _, part := range strings.Split(v, ",") {
		c := domain.Capa(strings.ToLower(strings.TrimSpace(part)))
		if c == "" || seen[c] {
			continue
		}
		if !c.Valid() {
			return nil, fmt.Errorf("%w %q", ErrUnknownCapa, part)
		}
		seen[c] = true
		result = append(result, c)
	}
	return result, nil
}
