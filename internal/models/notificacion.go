package models

import "time"

// Notificacion представляет уведомление пользователя
type Notificacion struct {
	IDNotificacion int64     `json:"id_notificacion"`
	IDUsuario      int64     `json:"id_usuario"`
	IDIntercambio  *int64    `json:"id_intercambio"`
	Mensaje        string    `json:"mensaje"`
	Leido          bool      `json:"leido"`
	FechaEnvio     time.Time `json:"fecha_envio"`
}
