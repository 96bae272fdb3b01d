package models

import "time"

// Состояния заявки на обмен
const (
	SolicitudPendiente = "pendiente"
	SolicitudAceptada  = "aceptado"
	SolicitudRechazada = "rechazado"
	SolicitudCancelada = "cancelado"
)

// Solicitud представляет заявку одного пользователя на товар другого
type Solicitud struct {
	IDSolicitud         int64      `json:"id_solicitud"`
	IDSolicitante       int64      `json:"id_solicitante"`
	IDProductoObjetivo  int64      `json:"id_producto_objetivo"`
	IDProductoOfrece    *int64     `json:"id_producto_ofrece"`
	Mensaje             string     `json:"mensaje"`
	Ubicacion           *string    `json:"ubicacion,omitempty"`
	FechaPropuesta      *time.Time `json:"fecha_propuesta,omitempty"`
	DiferenciaPropuesta *float64   `json:"diferencia_propuesta"` // nil — доплата не предложена
	Estado              string     `json:"estado"`
	ConfirmoSolicitante bool       `json:"confirmo_solicitante"`
	ConfirmoReceptor    bool       `json:"confirmo_receptor"`
	Creado              time.Time  `json:"creado"`
}

// SolicitudCard представляет карточку заявки для API
type SolicitudCard struct {
	IDSolicitud         int64           `json:"id_solicitud"`
	Estado              string          `json:"estado"`
	Mensaje             string          `json:"mensaje"`
	Creado              string          `json:"creado"`
	SoySolicitante      bool            `json:"soy_solicitante"`
	DiferenciaPropuesta *float64        `json:"diferencia_propuesta"`
	ProductoObjetivo    *Producto       `json:"producto_objetivo"`
	ProductoOfrece      *Producto       `json:"producto_ofrece"`
	Solicitante         *UsuarioResumen `json:"solicitante"`
	Receptor            *UsuarioResumen `json:"receptor"`
}
