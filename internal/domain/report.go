package domain

import "time"

// Desvio is a driver-reported route deviation
type Desvio struct {
	ID         string    `json:"id_desvio,omitempty"`
	IDCorredor string    `json:"id_corredor"`
	IDRuta     string    `json:"id_ruta,omitempty"`
	Motivo     string    `json:"motivo"`
	Lat        float64   `json:"ubicacion_lat"`
	Lng        float64   `json:"ubicacion_lng"`
	ClientRef  string    `json:"ref_cliente,omitempty"`
	CreadoEn   time.Time `json:"creado_en,omitempty"`
}

// Falla is a driver-reported vehicle fault
type Falla struct {
	ID          string    `json:"id_falla,omitempty"`
	IDCorredor  string    `json:"id_corredor"`
	IDParadero  string    `json:"id_paradero,omitempty"`
	Tipo        string    `json:"tipo"`
	Descripcion string    `json:"descripcion,omitempty"`
	Lat         float64   `json:"ubicacion_lat"`
	Lng         float64   `json:"ubicacion_lng"`
	ClientRef   string    `json:"ref_cliente,omitempty"`
	CreadoEn    time.Time `json:"creado_en,omitempty"`
}

// Retraso is a delay published for a corredor on a ruta
type Retraso struct {
	IDCorredor string    `json:"id_corredor"`
	IDRuta     string    `json:"id_ruta,omitempty"`
	Minutos    int       `json:"minutos"`
	Motivo     string    `json:"motivo,omitempty"`
	CreadoEn   time.Time `json:"creado_en,omitempty"`
}
