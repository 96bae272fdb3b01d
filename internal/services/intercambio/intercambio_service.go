package intercambio

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/truekea/truekea-api/internal/config"
	"github.com/truekea/truekea-api/internal/db"
	"github.com/truekea/truekea-api/internal/middleware"
	"github.com/truekea/truekea-api/internal/models"
	"github.com/truekea/truekea-api/internal/utils"
	"github.com/truekea/truekea-api/internal/websocket"
)

// IntercambioService представляет сервис для работы с обменами
type IntercambioService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	hub        *websocket.Hub
}

// NewIntercambioService создает новый экземпляр IntercambioService
func NewIntercambioService(cfg *config.Config, hub *websocket.Hub) *IntercambioService {
	return &IntercambioService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		hub:        hub,
	}
}

// ListarEnProceso возвращает незавершенные обмены текущего пользователя
func (s *IntercambioService) ListarEnProceso(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id_intercambio, id_solicitud, id_producto_ofrecido, id_producto_solicitado,
               id_usuario_ofrece, id_usuario_recibe, diferencia_monetaria,
               estado, estado_solicitante, estado_receptor,
               fecha_solicitud, fecha_actualizacion, fecha_limite_confirmacion, version
        FROM intercambios
        WHERE estado = 'pendiente'
          AND (id_usuario_ofrece = $1 OR id_usuario_recibe = $1)
        ORDER BY fecha_actualizacion DESC
    `, idUsuario)
	if err != nil {
		log.Printf("Ошибка запроса обменов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener intercambios"})
	}
	defer rows.Close()

	var intercambios []*models.Intercambio
	for rows.Next() {
		i, err := scanIntercambio(rows)
		if err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		intercambios = append(intercambios, i)
	}
	rows.Close()

	yo := s.getUsuarioResumen(ctx, idUsuario)

	resultado := make([]fiber.Map, 0, len(intercambios))
	for _, i := range intercambios {
		// Ленивая проверка дедлайна перед отдачей; при ошибке отдаем как есть
		if err := s.aplicarBarrido(i); err != nil {
			log.Printf("Ошибка проверки дедлайна обмена %d: %v", i.IDIntercambio, err)
		}
		if i.Estado != EstadoPendiente {
			continue
		}

		soyOfertante := i.IDUsuarioOfrece == idUsuario
		idOtro := i.IDUsuarioOfrece
		if soyOfertante {
			idOtro = i.IDUsuarioRecibe
		}

		resultado = append(resultado, fiber.Map{
			"id_intercambio":       i.IDIntercambio,
			"estado":               i.Estado,
			"estado_solicitante":   i.EstadoSolicitante,
			"estado_receptor":      i.EstadoReceptor,
			"diferencia_monetaria": formatearDiferencia(i.DiferenciaMonetaria),
			"soy_ofertante":        soyOfertante,
			"yo":                   yo,
			"otro":                 s.getUsuarioResumen(ctx, idOtro),
			"producto_ofrece":      s.getProductoCard(ctx, i.IDProductoOfrecido),
			"producto_objetivo":    s.getProductoCard(ctx, &i.IDProductoSolicitado),
			"fecha_solicitud":      i.FechaSolicitud.Format(time.RFC3339),
		})
	}

	return c.JSON(resultado)
}

// ObtenerIntercambio возвращает детали обмена
func (s *IntercambioService) ObtenerIntercambio(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	i, errResp := s.cargarIntercambioParam(c, idUsuario)
	if errResp != nil {
		return errResp(c)
	}

	// Ленивая проверка дедлайна перед отдачей; при ошибке отдаем как есть
	if err := s.aplicarBarrido(i); err != nil {
		log.Printf("Ошибка проверки дедлайна обмена %d: %v", i.IDIntercambio, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	return c.JSON(fiber.Map{
		"id_intercambio":            i.IDIntercambio,
		"estado":                    i.Estado,
		"estado_solicitante":        i.EstadoSolicitante,
		"estado_receptor":           i.EstadoReceptor,
		"diferencia_monetaria":      formatearDiferencia(i.DiferenciaMonetaria),
		"yo_soy_ofertante":          i.IDUsuarioOfrece == idUsuario,
		"usuario_ofrece":            s.getUsuarioResumen(ctx, i.IDUsuarioOfrece),
		"usuario_recibe":            s.getUsuarioResumen(ctx, i.IDUsuarioRecibe),
		"producto_ofrece":           s.getProductoCard(ctx, i.IDProductoOfrecido),
		"producto_objetivo":         s.getProductoCard(ctx, &i.IDProductoSolicitado),
		"fecha_limite_confirmacion": i.FechaLimiteConfirmacion,
	})
}

// ListarMensajes возвращает сообщения чата обмена в порядке отправки
func (s *IntercambioService) ListarMensajes(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	i, errResp := s.cargarIntercambioParam(c, idUsuario)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id_mensaje, id_intercambio, id_usuario, tipo, contenido, lat, lng, creado
        FROM intercambio_mensajes
        WHERE id_intercambio = $1
        ORDER BY creado ASC
    `, i.IDIntercambio)
	if err != nil {
		log.Printf("Ошибка запроса сообщений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener mensajes"})
	}
	defer rows.Close()

	mensajes := make([]models.IntercambioMensaje, 0)
	for rows.Next() {
		var m models.IntercambioMensaje
		if err := rows.Scan(&m.IDMensaje, &m.IDIntercambio, &m.IDUsuario, &m.Tipo, &m.Contenido, &m.Lat, &m.Lng, &m.Creado); err != nil {
			log.Printf("Ошибка сканирования сообщения: %v", err)
			continue
		}
		mensajes = append(mensajes, m)
	}

	return c.JSON(mensajes)
}

// CancelarIntercambio отменяет обмен от имени одного из участников
func (s *IntercambioService) CancelarIntercambio(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	i, errResp := s.cargarIntercambioParam(c, idUsuario)
	if errResp != nil {
		return errResp(c)
	}

	if i.Estado == EstadoCancelado {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "El intercambio ya estaba cancelado"})
	}

	estadoSolicitante := i.EstadoSolicitante
	estadoReceptor := i.EstadoReceptor
	if idUsuario == i.IDUsuarioOfrece {
		estadoSolicitante = EstadoCancelado
	} else {
		estadoReceptor = EstadoCancelado
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Compare-and-swap по версии: проигравший гонку получает 409 и перечитывает
	tag, err := db.Pool.Exec(ctx, `
        UPDATE intercambios
        SET estado = $1, estado_solicitante = $2, estado_receptor = $3,
            fecha_limite_confirmacion = NULL, fecha_actualizacion = NOW(), version = version + 1
        WHERE id_intercambio = $4 AND version = $5
    `, EstadoCancelado, estadoSolicitante, estadoReceptor, i.IDIntercambio, i.Version)
	if err != nil {
		log.Printf("Ошибка отмены обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al cancelar intercambio"})
	}
	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "El intercambio fue modificado, intenta de nuevo"})
	}

	s.emitirEstado(i.IDIntercambio, websocket.EventoIntercambioCancelado, fiber.Map{
		"estado":             EstadoCancelado,
		"estado_solicitante": estadoSolicitante,
		"estado_receptor":    estadoReceptor,
		"cancelado_por":      idUsuario,
	})

	return c.JSON(fiber.Map{"msg": "Intercambio cancelado"})
}

// FinalizarIntercambio подтверждает обмен со стороны текущего участника.
// Первое подтверждение открывает окно в 15 минут для второй стороны;
// второе переводит обмен в aceptado и снимает дедлайн.
func (s *IntercambioService) FinalizarIntercambio(c fiber.Ctx) error {
	idUsuario, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	i, errResp := s.cargarIntercambioParam(c, idUsuario)
	if errResp != nil {
		return errResp(c)
	}

	if i.Estado == EstadoCancelado {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"msg": "El intercambio está cancelado"})
	}

	estadoSolicitante := i.EstadoSolicitante
	estadoReceptor := i.EstadoReceptor
	if idUsuario == i.IDUsuarioOfrece {
		estadoSolicitante = EstadoAceptado
	} else {
		estadoReceptor = EstadoAceptado
	}

	agregado := EstadoAgregado(estadoSolicitante, estadoReceptor)

	fechaLimite := i.FechaLimiteConfirmacion
	evento := websocket.EventoConfirmacionParcial
	if agregado == EstadoAceptado {
		// Обе стороны подтвердили — дедлайн больше не нужен
		fechaLimite = nil
		evento = websocket.EventoConfirmacionTotal
	} else if fechaLimite == nil {
		limite := time.Now().UTC().Add(ventanaConfirmacion)
		fechaLimite = &limite
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tag, err := db.Pool.Exec(ctx, `
        UPDATE intercambios
        SET estado = $1, estado_solicitante = $2, estado_receptor = $3,
            fecha_limite_confirmacion = $4, fecha_actualizacion = NOW(), version = version + 1
        WHERE id_intercambio = $5 AND version = $6
    `, agregado, estadoSolicitante, estadoReceptor, fechaLimite, i.IDIntercambio, i.Version)
	if err != nil {
		log.Printf("Ошибка подтверждения обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar intercambio"})
	}
	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "El intercambio fue modificado, intenta de nuevo"})
	}

	s.emitirEstado(i.IDIntercambio, evento, fiber.Map{
		"estado":                    agregado,
		"estado_solicitante":        estadoSolicitante,
		"estado_receptor":           estadoReceptor,
		"fecha_limite_confirmacion": fechaLimite,
		"confirmado_por":            idUsuario,
	})

	return c.JSON(fiber.Map{"msg": "Estado actualizado", "estado": agregado})
}

// aplicarBarrido выполняет идемпотентную проверку дедлайна подтверждения.
// Если ровно одна сторона подтвердила и окно истекло, не подтвердивший
// участник лишается флага verificado, а обмен принудительно отменяется.
func (s *IntercambioService) aplicarBarrido(i *models.Intercambio) error {
	idPenalizado, aplica := UsuarioPenalizable(i, time.Now().UTC())
	if !aplica {
		return nil
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE intercambios
        SET estado = 'cancelado', fecha_limite_confirmacion = NULL,
            fecha_actualizacion = NOW(), version = version + 1
        WHERE id_intercambio = $1 AND version = $2
    `, i.IDIntercambio, i.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Параллельный запрос уже обработал этот обмен
		return nil
	}

	_, err = tx.Exec(ctx, `
        UPDATE usuarios SET verificado = FALSE
        WHERE id_usuario = $1 AND verificado
    `, idPenalizado)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	i.Estado = EstadoCancelado
	i.FechaLimiteConfirmacion = nil
	i.Version++

	log.Printf("⏰ Обмен %d отменен по дедлайну, пользователь %d оштрафован", i.IDIntercambio, idPenalizado)

	s.emitirEstado(i.IDIntercambio, websocket.EventoUsuarioPenalizado, fiber.Map{
		"estado":                EstadoCancelado,
		"id_usuario_penalizado": idPenalizado,
	})

	return nil
}

// cargarIntercambioParam загружает обмен из параметра маршрута и проверяет
// участие пользователя; при ошибке возвращает готовый обработчик ответа
func (s *IntercambioService) cargarIntercambioParam(c fiber.Ctx, idUsuario int64) (*models.Intercambio, func(fiber.Ctx) error) {
	idIntercambio, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID de intercambio inválido"})
		}
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	i, err := cargarIntercambio(ctx, idIntercambio)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, func(c fiber.Ctx) error {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Intercambio no encontrado"})
			}
		}
		log.Printf("Ошибка запроса обмена %d: %v", idIntercambio, err)
		return nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener intercambio"})
		}
	}

	if !i.EsParticipante(idUsuario) {
		return nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"msg": "No participas en este intercambio"})
		}
	}

	return i, nil
}

// cargarIntercambio загружает полную строку обмена
func cargarIntercambio(ctx context.Context, idIntercambio int64) (*models.Intercambio, error) {
	row := db.Pool.QueryRow(ctx, `
        SELECT id_intercambio, id_solicitud, id_producto_ofrecido, id_producto_solicitado,
               id_usuario_ofrece, id_usuario_recibe, diferencia_monetaria,
               estado, estado_solicitante, estado_receptor,
               fecha_solicitud, fecha_actualizacion, fecha_limite_confirmacion, version
        FROM intercambios
        WHERE id_intercambio = $1
    `, idIntercambio)
	return scanIntercambio(row)
}

// scanIntercambio читает строку обмена из результата запроса
func scanIntercambio(row pgx.Row) (*models.Intercambio, error) {
	var i models.Intercambio
	err := row.Scan(
		&i.IDIntercambio,
		&i.IDSolicitud,
		&i.IDProductoOfrecido,
		&i.IDProductoSolicitado,
		&i.IDUsuarioOfrece,
		&i.IDUsuarioRecibe,
		&i.DiferenciaMonetaria,
		&i.Estado,
		&i.EstadoSolicitante,
		&i.EstadoReceptor,
		&i.FechaSolicitud,
		&i.FechaActualizacion,
		&i.FechaLimiteConfirmacion,
		&i.Version,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// emitirEstado рассылает событие состояния обмена в его комнату
func (s *IntercambioService) emitirEstado(idIntercambio int64, evento string, datos fiber.Map) {
	payload, err := json.Marshal(datos)
	if err != nil {
		log.Printf("Ошибка сериализации события: %v", err)
		return
	}
	s.hub.EmitirAIntercambio(idIntercambio, websocket.Evento{
		Evento:  evento,
		Payload: payload,
	})
}

// getUsuarioResumen получает краткую карточку пользователя
func (s *IntercambioService) getUsuarioResumen(ctx context.Context, idUsuario int64) *models.UsuarioResumen {
	var u models.Usuario
	err := db.Pool.QueryRow(ctx, `
        SELECT id_usuario, nombre_completo, avatar_url
        FROM usuarios
        WHERE id_usuario = $1
    `, idUsuario).Scan(&u.IDUsuario, &u.NombreCompleto, &u.AvatarURL)
	if err != nil {
		log.Printf("Ошибка получения пользователя %d: %v", idUsuario, err)
		return nil
	}
	return u.Resumen()
}

// getProductoCard получает сокращенную карточку товара
func (s *IntercambioService) getProductoCard(ctx context.Context, idProducto *int64) *models.ProductoCard {
	if idProducto == nil {
		return nil
	}

	var p models.Producto
	err := db.Pool.QueryRow(ctx, `
        SELECT id_producto, titulo, imagen_url, valor_estimado
        FROM productos
        WHERE id_producto = $1
    `, *idProducto).Scan(&p.IDProducto, &p.Titulo, &p.ImagenURL, &p.ValorEstimado)
	if err != nil {
		log.Printf("Ошибка получения товара %d: %v", *idProducto, err)
		return nil
	}
	return p.Card()
}

// formatearDiferencia выводит сумму доплаты с двумя знаками после запятой
func formatearDiferencia(monto float64) string {
	return strconv.FormatFloat(monto, 'f', 2, 64)
}
