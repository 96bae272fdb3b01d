package cloudinary

import (
	"github.com/gofiber/fiber/v3"
	"github.com/truekea/truekea-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для загрузки изображений
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/upload")

	// Защищенные маршруты
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Подписанные параметры загрузки
	api.Get("/signature", s.GenerateUploadParams)
}
