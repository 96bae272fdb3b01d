package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/truekea/truekea-api/internal/config"
	"github.com/truekea/truekea-api/internal/db"
	"github.com/truekea/truekea-api/internal/services/auth"
	"github.com/truekea/truekea-api/internal/services/cloudinary"
	"github.com/truekea/truekea-api/internal/services/intercambio"
	"github.com/truekea/truekea-api/internal/services/notificacion"
	"github.com/truekea/truekea-api/internal/services/producto"
	"github.com/truekea/truekea-api/internal/services/solicitud"
	"github.com/truekea/truekea-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Truekea API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Создаём сервисы
	authService := auth.NewAuthService(cfg)
	productoService := producto.NewProductoService(cfg)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg)
	solicitudService := solicitud.NewSolicitudService(cfg)
	notificacionService := notificacion.NewNotificacionService(cfg)

	// Реестр комнат и шлюз WebSocket
	hub := websocket.NewHub()
	defer hub.Shutdown()
	gateway := websocket.NewGateway(hub, authService.GetJWTService())

	intercambioService := intercambio.NewIntercambioService(cfg, hub)

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	productoService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)
	solicitudService.SetupRoutes(app)
	intercambioService.SetupRoutes(app)
	notificacionService.SetupRoutes(app)

	// Фоновая проверка дедлайнов подтверждения (опциональна)
	if cfg.SweepInterval > 0 {
		intercambioService.StartSweeper(context.Background(), cfg.SweepInterval)
	}

	// WebSocket шлюз живет на отдельном порту: fasthttp не умеет hijack
	go func() {
		if err := gateway.Listen(":" + cfg.WSPort); err != nil {
			log.Fatalf("❌ Ошибка WebSocket шлюза: %v", err)
		}
	}()

	// Запускаем сервер
	log.Printf("✅ Truekea API запущен на порту %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
