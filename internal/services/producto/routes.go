package producto

import (
	"github.com/gofiber/fiber/v3"
	"github.com/truekea/truekea-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API товаров
func (s *ProductoService) SetupRoutes(app *fiber.App) {
	// Справочник категорий открыт всем
	app.Get("/api/categorias", s.ListarCategorias)

	api := app.Group("/api/productos")

	// Каталог виден и без авторизации, но с токеном появляется es_tuyo
	api.Get("", s.ListarProductos, middleware.OptionalAuthMiddleware(s.jwtService))
	api.Get("/:id", s.ObtenerProducto, middleware.OptionalAuthMiddleware(s.jwtService))

	// Изменения требуют авторизации
	api.Post("", s.CrearProducto, middleware.AuthMiddleware(s.jwtService))
	api.Put("/:id", s.EditarProducto, middleware.AuthMiddleware(s.jwtService))
	api.Put("/:id/estado", s.CambiarEstadoProducto, middleware.AuthMiddleware(s.jwtService))
}
