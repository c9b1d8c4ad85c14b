package domain

// Paradero is a bus stop
type Paradero struct {
	ID        string  `json:"id_paradero"`
	Nombre    string  `json:"nombre"`
	Lat       float64 `json:"ubicacion_lat"`
	Lng       float64 `json:"ubicacion_lng"`
	Colapsado bool    `json:"colapsado"`
}

// Ruta is a transit route with its ordered paraderos
type Ruta struct {
	ID        string     `json:"id_ruta"`
	Nombre    string     `json:"nombre"`
	Color     string     `json:"color,omitempty"`
	Paraderos []Paradero `json:"paraderos"`
}

// HasParadero reports whether the ruta serves the given paradero
func (r *Ruta) HasParadero(id string) bool {
	for _, p := range r.Paraderos {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ETA is the server-side arrival estimate of a corredor at a paradero
type ETA struct {
	IDCorredor string `json:"id_corredor"`
	IDParadero string `json:"id_paradero"`
	IDRuta     string `json:"id_ruta,omitempty"`
	Minutos    int    `json:"eta_minutos"`
}

// Capa is a togglable map overlay category
type Capa string

const (
	CapaRutas     Capa = "rutas"
	CapaBuses     Capa = "buses"
	CapaParaderos Capa = "paraderos"
	CapaAlertas   Capa = "alertas"
)

// AllCapas lists every layer in display order
var AllCapas = []Capa{CapaRutas, CapaBuses, CapaParaderos, CapaAlertas}

func (c Capa) Valid() bool {
	for _, k := range AllCapas {
		if c == k {
			return true
		}
	}
	return false
}

// Marker is one item drawn on the map
type Marker struct {
	ID      string  `json:"id"`
	Capa    Capa    `json:"capa"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Titulo  string  `json:"titulo"`
	Detalle string  `json:"detalle,omitempty"`
}
