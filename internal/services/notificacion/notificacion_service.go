package notificacion

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/truekea/truekea-api/internal/config"
	"github.com/truekea/truekea-api/internal/db"
	"github.com/truekea/truekea-api/internal/middleware"
	"github.com/truekea/truekea-api/internal/models"
	"github.com/truekea/truekea-api/internal/utils"
)

// NotificacionService представляет сервис для работы с уведомлениями
type NotificacionService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewNotificacionService создает новый экземпляр NotificacionService
func NewNotificacionService(cfg *config.Config) *NotificacionService {
	return &NotificacionService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// ListarNotificaciones возвращает уведомления текущего пользователя
func (s *NotificacionService) ListarNotificaciones(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id_notificacion, id_usuario, id_intercambio, mensaje, leido, fecha_envio
        FROM notificaciones
        WHERE id_usuario = $1
        ORDER BY fecha_envio DESC
    `, idUsuario)
	if err != nil {
		log.Printf("Ошибка запроса уведомлений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener notificaciones"})
	}
	defer rows.Close()

	notificaciones := make([]models.Notificacion, 0)
	for rows.Next() {
		var n models.Notificacion
		if err := rows.Scan(&n.IDNotificacion, &n.IDUsuario, &n.IDIntercambio, &n.Mensaje, &n.Leido, &n.FechaEnvio); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		notificaciones = append(notificaciones, n)
	}

	return c.JSON(notificaciones)
}

// MarcarLeida отмечает уведомление прочитанным
func (s *NotificacionService) MarcarLeida(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	idNotificacion, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID de notificación inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var idDueno int64
	err = db.Pool.QueryRow(ctx, `
        SELECT id_usuario FROM notificaciones WHERE id_notificacion = $1
    `, idNotificacion).Scan(&idDueno)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notificación no encontrada"})
		}
		log.Printf("Ошибка запроса уведомления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error de base de datos"})
	}

	// Чужие уведомления читать нельзя
	if idDueno != idUsuario {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No autorizado"})
	}

	_, err = db.Pool.Exec(ctx, `
        UPDATE notificaciones SET leido = TRUE WHERE id_notificacion = $1
    `, idNotificacion)
	if err != nil {
		log.Printf("Ошибка обновления уведомления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar la notificación"})
	}

	return c.JSON(fiber.Map{"msg": "Notificación marcada como leída"})
}
