package models

import "time"

// Usuario представляет пользователя в системе
type Usuario struct {
	IDUsuario      int64     `json:"id_usuario"`
	NombreCompleto string    `json:"nombre_completo"`
	Correo         string    `json:"correo"`
	Contrasena     string    `json:"-"` // bcrypt-хеш, наружу не отдаем
	Telefono       string    `json:"telefono,omitempty"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	FechaRegistro  time.Time `json:"fecha_registro"`
	Verificado     bool      `json:"verificado"`
	Rol            string    `json:"rol"` // cliente, administrador
}

// UsuarioResumen представляет краткую карточку пользователя для API
type UsuarioResumen struct {
	IDUsuario int64   `json:"id_usuario"`
	Nombre    string  `json:"nombre"`
	AvatarURL *string `json:"avatar_url"`
}

// Resumen возвращает краткую карточку пользователя
func (u *Usuario) Resumen() *UsuarioResumen {
	if u == nil {
		return nil
	}
	return &UsuarioResumen{
		IDUsuario: u.IDUsuario,
		Nombre:    u.NombreCompleto,
		AvatarURL: u.AvatarURL,
	}
}
