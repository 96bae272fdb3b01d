package auth

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/truekea/truekea-api/internal/config"
	"github.com/truekea/truekea-api/internal/db"
	"github.com/truekea/truekea-api/internal/middleware"
	"github.com/truekea/truekea-api/internal/utils"
)

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// GetJWTService возвращает JWT-сервис для middleware
func (s *AuthService) GetJWTService() *utils.JWTService {
	return s.jwtService
}

// RegistroHandler регистрирует нового пользователя и выдает JWT
func (s *AuthService) RegistroHandler(c fiber.Ctx) error {
	var payload struct {
		NombreCompleto string `json:"nombre_completo"`
		Correo         string `json:"correo"`
		Contrasena     string `json:"contrasena"`
		Telefono       string `json:"telefono"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
	}

	payload.Correo = strings.ToLower(strings.TrimSpace(payload.Correo))

	if payload.NombreCompleto == "" || payload.Correo == "" || payload.Contrasena == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Faltan campos obligatorios"})
	}

	// Почта не должна быть занята
	if _, err := db.GetUsuarioPorCorreo(payload.Correo); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "El correo ya está registrado"})
	} else if err != db.ErrUsuarioNoEncontrado {
		log.Printf("Ошибка проверки почты: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error de base de datos"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Contrasena), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Ошибка хеширования пароля: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al registrar"})
	}

	usuario, err := db.CrearUsuario(payload.NombreCompleto, payload.Correo, string(hash), payload.Telefono)
	if err != nil {
		log.Printf("Ошибка создания пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al registrar"})
	}

	token, err := s.jwtService.GenerateToken(usuario.IDUsuario)
	if err != nil {
		log.Printf("Ошибка генерации токена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al generar el token"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   token,
		"usuario": usuario,
	})
}

// LoginHandler проверяет учетные данные и выдает JWT
func (s *AuthService) LoginHandler(c fiber.Ctx) error {
	var payload struct {
		Correo     string `json:"correo"`
		Contrasena string `json:"contrasena"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
	}

	payload.Correo = strings.ToLower(strings.TrimSpace(payload.Correo))

	usuario, err := db.GetUsuarioPorCorreo(payload.Correo)
	if err != nil {
		if err == db.ErrUsuarioNoEncontrado {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Credenciales inválidas"})
		}
		log.Printf("Ошибка запроса пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error de base de datos"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usuario.Contrasena), []byte(payload.Contrasena)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Credenciales inválidas"})
	}

	token, err := s.jwtService.GenerateToken(usuario.IDUsuario)
	if err != nil {
		log.Printf("Ошибка генерации токена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al generar el token"})
	}

	return c.JSON(fiber.Map{
		"token":   token,
		"usuario": usuario,
	})
}

// MeHandler возвращает профиль текущего пользователя
func (s *AuthService) MeHandler(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	usuario, err := db.GetUsuarioPorID(idUsuario)
	if err != nil {
		if err == db.ErrUsuarioNoEncontrado {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Usuario no encontrado"})
		}
		log.Printf("Ошибка запроса пользователя: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error de base de datos"})
	}

	return c.JSON(usuario)
}
