package domain

import "time"

// Estado is the operational state reported for a corredor
type Estado string

const (
	EstadoEnRuta          Estado = "en_ruta"
	EstadoDetenido        Estado = "detenido"
	EstadoFueraDeServicio Estado = "fuera_de_servicio"
	EstadoEnFalla         Estado = "en_falla"
)

func (e Estado) Valid() bool {
	switch e {
	case EstadoEnRuta, EstadoDetenido, EstadoFueraDeServicio, EstadoEnFalla:
		return true
	default:
		return false
	}
}

// Corredor is a single bus with its last known position
type Corredor struct {
	ID            string    `json:"id_corredor"`
	Placa         string    `json:"placa,omitempty"`
	IDRuta        string    `json:"id_ruta,omitempty"`
	Capacidad     int       `json:"capacidad"`
	Ocupacion     int       `json:"ocupacion"`
	Estado        Estado    `json:"estado"`
	Lat           float64   `json:"ubicacion_lat"`
	Lng           float64   `json:"ubicacion_lng"`
	ActualizadoEn time.Time `json:"actualizado_en"`
	TileID        string    `json:"tile_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Ubicacion is the position payload of /corredor/{id}/ubicacion
type Ubicacion struct {
	IDCorredor    string    `json:"id_corredor,omitempty"`
	Lat           float64   `json:"ubicacion_lat"`
	Lng           float64   `json:"ubicacion_lng"`
	ActualizadoEn time.Time `json:"actualizado_en"`
}

// DeltaType indicates whether a corredor was updated or removed
type DeltaType string

const (
	DeltaUpdate DeltaType = "update"
	DeltaRemove DeltaType = "remove"
)

// PositionDelta represents a change in tracked corredor state
type PositionDelta struct {
	Type     DeltaType `json:"type"`
	Corredor *Corredor `json:"corredor,omitempty"`
	Key      string    `json:"key,omitempty"`
	TileID   string    `json:"tile_id"`
}

// BoundingBox represents a geographic rectangle
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Contains checks if a point is within the bounding box
func (bb *BoundingBox) Contains(lat, lng float64) bool {
	return lat >= bb.MinLat && lat <= bb.MaxLat &&
		lng >= bb.MinLng && lng <= bb.MaxLng
}

// Fix is one location sample from the device
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AppState mirrors the foreground/background state of the shell app
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)

func (s AppState) Valid() bool {
	return s == AppStateActive || s == AppStateBackground || s == AppStateInactive
}
