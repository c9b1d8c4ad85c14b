package domain

import "time"

// Rol distinguishes riders, drivers and dispatchers
type Rol string

const (
	RolPasajero    Rol = "pasajero"
	RolConductor   Rol = "conductor"
	RolDespachador Rol = "despachador"
)

func (r Rol) Valid() bool {
	switch r {
	case RolPasajero, RolConductor, RolDespachador:
		return true
	}
	return false
}

// IsDriver reports whether u can share a corredor location.
func (u Usuario) IsDriver() bool {
	return u.Rol == RolConductor && u.IDCorredor != ""
}

// Usuario is the authenticated user of the session
type Usuario struct {
	ID         string `json:"id_usuario"`
	Nombre     string `json:"nombre"`
	Rol        Rol    `json:"rol"`
	IDCorredor string `json:"id_corredor,omitempty"`
}

// Comentario is a rider comment attached to a ruta or paradero
type Comentario struct {
	ID         string     `json:"id_comentario,omitempty"`
	IDUsuario  string     `json:"id_usuario"`
	IDRuta     string     `json:"id_ruta,omitempty"`
	IDParadero string     `json:"id_paradero,omitempty"`
	Texto      string     `json:"texto"`
	CreadoEn   *time.Time `json:"creado_en,omitempty"`
}

// Notificacion is a message addressed to a single user
type Notificacion struct {
	ID        string    `json:"id_notificacion"`
	IDUsuario string    `json:"id_usuario"`
	Titulo    string    `json:"titulo"`
	Mensaje   string    `json:"mensaje"`
	Tipo      string    `json:"tipo,omitempty"`
	Leida     bool      `json:"leida"`
	CreadoEn  time.Time `json:"creado_en"`
}

// AlertaMasiva is a dispatcher broadcast to every user of a role or ruta
type AlertaMasiva struct {
	Titulo  string `json:"titulo"`
	Mensaje string `json:"mensaje"`
	Rol     Rol    `json:"rol,omitempty"`
	IDRuta  string `json:"id_ruta,omitempty"`
}
