package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/truekea/truekea-api/internal/models"
)

// ErrUsuarioNoEncontrado возвращается, когда пользователь отсутствует в базе
var ErrUsuarioNoEncontrado = errors.New("usuario no encontrado")

// CrearUsuario создает нового пользователя и возвращает его запись
func CrearUsuario(nombreCompleto, correo, contrasenaHash, telefono string) (*models.Usuario, error) {
	ctx, cancel := GetContext()
	defer cancel()

	var u models.Usuario
	err := Pool.QueryRow(ctx, `
		INSERT INTO usuarios (nombre_completo, correo, contrasena, telefono)
		VALUES ($1, $2, $3, $4)
		RETURNING id_usuario, nombre_completo, correo, contrasena, telefono, avatar_url, fecha_registro, verificado, rol
	`, nombreCompleto, correo, contrasenaHash, telefono).Scan(
		&u.IDUsuario,
		&u.NombreCompleto,
		&u.Correo,
		&u.Contrasena,
		&u.Telefono,
		&u.AvatarURL,
		&u.FechaRegistro,
		&u.Verificado,
		&u.Rol,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	return &u, nil
}

// GetUsuarioPorCorreo возвращает пользователя по адресу почты
func GetUsuarioPorCorreo(correo string) (*models.Usuario, error) {
	ctx, cancel := GetContext()
	defer cancel()

	var u models.Usuario
	err := Pool.QueryRow(ctx, `
		SELECT id_usuario, nombre_completo, correo, contrasena, telefono, avatar_url, fecha_registro, verificado, rol
		FROM usuarios
		WHERE correo = $1
	`, correo).Scan(
		&u.IDUsuario,
		&u.NombreCompleto,
		&u.Correo,
		&u.Contrasena,
		&u.Telefono,
		&u.AvatarURL,
		&u.FechaRegistro,
		&u.Verificado,
		&u.Rol,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUsuarioNoEncontrado
		}
		return nil, fmt.Errorf("ошибка при запросе пользователя: %w", err)
	}

	return &u, nil
}

// GetUsuarioPorID возвращает пользователя по ID
func GetUsuarioPorID(idUsuario int64) (*models.Usuario, error) {
	ctx, cancel := GetContext()
	defer cancel()

	var u models.Usuario
	err := Pool.QueryRow(ctx, `
		SELECT id_usuario, nombre_completo, correo, contrasena, telefono, avatar_url, fecha_registro, verificado, rol
		FROM usuarios
		WHERE id_usuario = $1
	`, idUsuario).Scan(
		&u.IDUsuario,
		&u.NombreCompleto,
		&u.Correo,
		&u.Contrasena,
		&u.Telefono,
		&u.AvatarURL,
		&u.FechaRegistro,
		&u.Verificado,
		&u.Rol,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUsuarioNoEncontrado
		}
		return nil, fmt.Errorf("ошибка при запросе пользователя: %w", err)
	}

	return &u, nil
}
