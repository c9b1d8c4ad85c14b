package store

import (
	"sort"
	"sync"
	"time"

	"inforojo/internal/domain"
)

// Catalog holds the slow-changing paraderos and rutas.
type Catalog struct {
	mu           sync.RWMutex
	paraderos    map[string]*domain.Paradero
	rutas        map[string]*domain.Ruta
	paraderoRuta map[string][]string // id_paradero -> []id_ruta

	lastUpdate time.Time
}

func NewCatalog() *Catalog {
	return &Catalog{
		paraderos:    make(map[string]*domain.Paradero),
		rutas:        make(map[string]*domain.Ruta),
		paraderoRuta: make(map[string][]string),
	}
}

// UpdateAll replaces the catalog. Paraderos only referenced from a ruta are
// added too, so the nearest-stop fallback sees every known stop.
func (c *Catalog) UpdateAll(paraderos []domain.Paradero, rutas []domain.Ruta) {
	ps := make(map[string]*domain.Paradero, len(paraderos))
	for i := range paraderos {
		p := paraderos[i]
		if p.ID == "" {
			continue
		}
		ps[p.ID] = &p
	}

	rs := make(map[string]*domain.Ruta, len(rutas))
	index := make(map[string][]string)
	for i := range rutas {
		r := rutas[i]
		if r.ID == "" {
			continue
		}
		rs[r.ID] = &r
		for _, p := range r.Paraderos {
			if p.ID == "" {
				continue
			}
			index[p.ID] = append(index[p.ID], r.ID)
			if _, ok := ps[p.ID]; !ok {
				pc := p
				ps[p.ID] = &pc
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.paraderos = ps
	c.rutas = rs
	c.paraderoRuta = index
	c.lastUpdate = time.Now()
}

func (c *Catalog) Paraderos() []domain.Paradero {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Paradero, 0, len(c.paraderos))
	for _, p := range c.paraderos {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (c *Catalog) Paradero(id string) (domain.Paradero, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.paraderos[id]
	if !ok {
		return domain.Paradero{}, false
	}
	return *p, true
}

func (c *Catalog) Rutas() []domain.Ruta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Ruta, 0, len(c.rutas))
	for _, r := range c.rutas {
		result = append(result, copyRuta(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (c *Catalog) Ruta(id string) (domain.Ruta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rutas[id]
	if !ok {
		return domain.Ruta{}, false
	}
	return copyRuta(r), true
}

func (c *Catalog) RutasForParadero(id string) []domain.Ruta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.paraderoRuta[id]
	result := make([]domain.Ruta, 0, len(ids))
	for _, rid := range ids {
		if r, ok := c.rutas[rid]; ok {
			result = append(result, copyRuta(r))
		}
	}
	return result
}

func copyRuta(r *domain.Ruta) domain.Ruta {
	cp := *r
	cp.Paraderos = make([]domain.Paradero, len(r.Paraderos))
	copy(cp.Paraderos, r.Paraderos)
	return cp
}

type CatalogStats struct {
	ParaderosCount  int       `json:"paraderos_count"`
	RutasCount      int       `json:"rutas_count"`
	ColapsadosCount int       `json:"colapsados_count"`
	LastUpdate      time.Time `json:"last_update"`
	IsLoaded        bool      `json:"is_loaded"`
}

func (c *Catalog) Stats() CatalogStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	colapsados := 0
	for _, p := range c.paraderos {
		if p.Colapsado {
			colapsados++
		}
	}
	return CatalogStats{
		ParaderosCount:  len(c.paraderos),
		RutasCount:      len(c.rutas),
		ColapsadosCount: colapsados,
		LastUpdate:      c.lastUpdate,
		IsLoaded:        !c.lastUpdate.IsZero(),
	}
}
