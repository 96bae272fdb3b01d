package notificacion

import (
	"github.com/gofiber/fiber/v3"
	"github.com/truekea/truekea-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API уведомлений
func (s *NotificacionService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/notificaciones")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("", s.ListarNotificaciones)
	api.Put("/:id/leida", s.MarcarLeida)
}
