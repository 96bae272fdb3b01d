package intercambio

import (
	"github.com/gofiber/fiber/v3"
	"github.com/truekea/truekea-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *IntercambioService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/intercambios")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Незавершенные обмены текущего пользователя
	api.Get("/en_proceso", s.ListarEnProceso)

	// Детали обмена
	api.Get("/:id", s.ObtenerIntercambio)

	// Сообщения чата обмена
	api.Get("/:id/mensajes", s.ListarMensajes)

	// Отмена обмена одним из участников
	api.Put("/:id/cancelar", s.CancelarIntercambio)

	// Подтверждение обмена одной стороной
	api.Put("/:id/finalizar", s.FinalizarIntercambio)
}
