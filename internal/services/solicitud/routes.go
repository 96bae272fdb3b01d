package solicitud

import (
	"github.com/gofiber/fiber/v3"
	"github.com/truekea/truekea-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API заявок
func (s *SolicitudService) SetupRoutes(app *fiber.App) {
	// Группа для API заявок
	api := app.Group("/api/solicitudes")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Создание заявки на товар
	api.Post("", s.CrearSolicitud)

	// Ожидающие заявки на мои товары
	api.Get("/recibidas", s.ListarRecibidas)

	// Все отправленные мной заявки
	api.Get("/enviadas", s.ListarEnviadas)

	// Принятие заявки владельцем товара (создает обмен)
	api.Put("/:id/aceptar", s.AceptarSolicitud)

	// Отклонение заявки владельцем товара
	api.Put("/:id/rechazar", s.RechazarSolicitud)

	// Отмена заявки заявителем
	api.Put("/:id/cancelar", s.CancelarSolicitud)

	// Повторное предложение с новыми условиями
	api.Put("/:id/reofertar", s.ReofertarSolicitud)
}
