package models

import "time"

// Intercambio представляет процесс двустороннего подтверждения обмена,
// созданный при принятии заявки
type Intercambio struct {
	IDIntercambio           int64      `json:"id_intercambio"`
	IDSolicitud             int64      `json:"id_solicitud"`
	IDProductoOfrecido      *int64     `json:"id_producto_ofrecido"` // nil — обмен только за доплату
	IDProductoSolicitado    int64      `json:"id_producto_solicitado"`
	IDUsuarioOfrece         int64      `json:"id_usuario_ofrece"`
	IDUsuarioRecibe         int64      `json:"id_usuario_recibe"`
	DiferenciaMonetaria     float64    `json:"diferencia_monetaria"`
	Estado                  string     `json:"estado"`
	EstadoSolicitante       string     `json:"estado_solicitante"`
	EstadoReceptor          string     `json:"estado_receptor"`
	FechaSolicitud          time.Time  `json:"fecha_solicitud"`
	FechaActualizacion      time.Time  `json:"fecha_actualizacion"`
	FechaLimiteConfirmacion *time.Time `json:"fecha_limite_confirmacion"`
	Version                 int64      `json:"-"`
}

// EsParticipante сообщает, участвует ли пользователь в обмене
func (i *Intercambio) EsParticipante(idUsuario int64) bool {
	return idUsuario == i.IDUsuarioOfrece || idUsuario == i.IDUsuarioRecibe
}

// Типы сообщений в чате обмена
const (
	MensajeTexto     = "texto"
	MensajeUbicacion = "ubicacion"
)

// IntercambioMensaje представляет сообщение в чате обмена.
// Только добавление: редактирование и удаление не предусмотрены.
type IntercambioMensaje struct {
	IDMensaje     int64     `json:"id_mensaje"`
	IDIntercambio int64     `json:"id_intercambio"`
	IDUsuario     int64     `json:"id_usuario"`
	Tipo          string    `json:"tipo"` // texto, ubicacion
	Contenido     *string   `json:"contenido"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
	Creado        time.Time `json:"creado"`
}
