package solicitud

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
)

// mensajePorDefecto подставляется, когда заявитель не написал сообщение
const mensajePorDefecto = "Me interesa tu producto"

// SolicitudService представляет сервис для работы с заявками на обмен
type SolicitudService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewSolicitudService создает новый экземпляр SolicitudService
func NewSolicitudService(cfg *config.Config) *SolicitudService {
	return &SolicitudService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// CrearSolicitud создает новую заявку на товар другого пользователя
func (s *SolicitudService) CrearSolicitud(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	var requestData struct {
		IDProductoObjetivo int64  `json:"id_producto_objetivo"`
		IDProductoOfrece   *int64 `json:"id_producto_ofrece"`
		Mensaje            string `json:"mensaje"`
		Diferencia         any    `json:"diferencia_propuesta"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
	}

	if requestData.IDProductoObjetivo == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Falta id_producto_objetivo"})
	}

	diferencia, err := parseDiferencia(requestData.Diferencia)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":          "diferencia_propuesta inválida",
			"valor_recibido": requestData.Diferencia,
		})
	}

	mensaje := requestData.Mensaje
	if mensaje == "" {
		mensaje = mensajePorDefecto
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	prodObjetivo := s.getProducto(ctx, requestData.IDProductoObjetivo, idActual)
	if prodObjetivo == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Producto objetivo no existe"})
	}

	// Нельзя подать заявку на собственный товар
	if prodObjetivo.IDUsuario == idActual {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No puedes solicitar tu propio producto"})
	}

	// Если предлагается товар, он должен принадлежать заявителю
	if requestData.IDProductoOfrece != nil {
		if !s.esDuenoDeProducto(ctx, idActual, *requestData.IDProductoOfrece) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No eres dueño del producto que ofreces"})
		}
	}

	ahora := time.Now().UTC()

	nueva := models.Solicitud{
		IDSolicitante:       idActual,
		IDProductoObjetivo:  requestData.IDProductoObjetivo,
		IDProductoOfrece:    requestData.IDProductoOfrece,
		Mensaje:             mensaje,
		Ubicacion:           prodObjetivo.Ubicacion,
		FechaPropuesta:      &ahora,
		DiferenciaPropuesta: diferencia,
		Estado:              models.SolicitudPendiente,
		ConfirmoSolicitante: true,
		Creado:              ahora,
	}

	err = db.Pool.QueryRow(ctx, `
        INSERT INTO solicitudes (id_solicitante, id_producto_objetivo, id_producto_ofrece, mensaje,
                                 ubicacion, fecha_propuesta, diferencia_propuesta, estado,
                                 confirmo_solicitante, confirmo_receptor, creado)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id_solicitud
    `, nueva.IDSolicitante, nueva.IDProductoObjetivo, nueva.IDProductoOfrece, nueva.Mensaje,
		nueva.Ubicacion, nueva.FechaPropuesta, nueva.DiferenciaPropuesta, nueva.Estado,
		nueva.ConfirmoSolicitante, nueva.ConfirmoReceptor, nueva.Creado).Scan(&nueva.IDSolicitud)

	if err != nil {
		log.Printf("Ошибка создания заявки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al guardar la solicitud"})
	}

	// Уведомляем владельца товара; ошибка здесь не отменяет заявку
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO notificaciones (id_usuario, mensaje)
        VALUES ($1, $2)
    `, prodObjetivo.IDUsuario, "Nuevo interés en tu producto '"+prodObjetivo.Titulo+"'")
	if err != nil {
		log.Printf("⚠️ Не удалось создать уведомление: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(s.cargarCard(ctx, &nueva, idActual))
}

// ListarRecibidas возвращает ожидающие заявки на товары текущего пользователя
func (s *SolicitudService) ListarRecibidas(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Заявки на мои товары, только ожидающие
	rows, err := db.Pool.Query(ctx, `
        SELECT s.id_solicitud, s.id_solicitante, s.id_producto_objetivo, s.id_producto_ofrece,
               s.mensaje, s.ubicacion, s.fecha_propuesta, s.diferencia_propuesta, s.estado,
               s.confirmo_solicitante, s.confirmo_receptor, s.creado
        FROM solicitudes s
        JOIN productos p ON s.id_producto_objetivo = p.id_producto
        WHERE p.id_usuario = $1 AND s.estado = 'pendiente'
        ORDER BY s.creado DESC
    `, idActual)
	if err != nil {
		log.Printf("Ошибка запроса заявок: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener solicitudes"})
	}

	return s.responderCards(c, ctx, rows, idActual)
}

// ListarEnviadas возвращает все заявки, отправленные текущим пользователем
func (s *SolicitudService) ListarEnviadas(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id_solicitud, id_solicitante, id_producto_objetivo, id_producto_ofrece,
               mensaje, ubicacion, fecha_propuesta, diferencia_propuesta, estado,
               confirmo_solicitante, confirmo_receptor, creado
        FROM solicitudes
        WHERE id_solicitante = $1
        ORDER BY creado DESC
    `, idActual)
	if err != nil {
		log.Printf("Ошибка запроса заявок: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener solicitudes"})
	}

	return s.responderCards(c, ctx, rows, idActual)
}

// AceptarSolicitud принимает заявку и создает обмен.
// Повторное принятие не создает второй обмен.
func (s *SolicitudService) AceptarSolicitud(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sol, errResp := s.cargarSolicitudParam(c, ctx)
	if errResp != nil {
		return errResp(c)
	}

	// Принять может только владелец целевого товара
	prodObjetivo := s.getProducto(ctx, sol.IDProductoObjetivo, idActual)
	if prodObjetivo == nil || prodObjetivo.IDUsuario != idActual {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No autorizado"})
	}

	estadoAnterior := sol.Estado

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Ошибка начала транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error de base de datos"})
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        UPDATE solicitudes
        SET estado = 'aceptado', confirmo_receptor = TRUE
        WHERE id_solicitud = $1
    `, sol.IDSolicitud)
	if err != nil {
		log.Printf("Ошибка обновления заявки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar la solicitud"})
	}

	// Обмен создается только при переходе в aceptado
	if estadoAnterior != models.SolicitudAceptada {
		if err := crearIntercambioDesdeSolicitud(ctx, tx, sol, prodObjetivo.IDUsuario); err != nil {
			log.Printf("Ошибка создания обмена: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al crear el intercambio"})
		}
	}

	if err = tx.Commit(ctx); err != nil {
		log.Printf("Ошибка фиксации транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error de base de datos"})
	}

	sol.Estado = models.SolicitudAceptada
	sol.ConfirmoReceptor = true

	return c.JSON(s.cargarCard(ctx, sol, idActual))
}

// RechazarSolicitud отклоняет заявку; доступно только владельцу товара
func (s *SolicitudService) RechazarSolicitud(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sol, errResp := s.cargarSolicitudParam(c, ctx)
	if errResp != nil {
		return errResp(c)
	}

	prodObjetivo := s.getProducto(ctx, sol.IDProductoObjetivo, idActual)
	if prodObjetivo == nil || prodObjetivo.IDUsuario != idActual {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No autorizado"})
	}

	_, err := db.Pool.Exec(ctx, `
        UPDATE solicitudes SET estado = 'rechazado' WHERE id_solicitud = $1
    `, sol.IDSolicitud)
	if err != nil {
		log.Printf("Ошибка обновления заявки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar la solicitud"})
	}

	sol.Estado = models.SolicitudRechazada

	return c.JSON(s.cargarCard(ctx, sol, idActual))
}

// CancelarSolicitud отменяет заявку; доступно только заявителю
func (s *SolicitudService) CancelarSolicitud(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sol, errResp := s.cargarSolicitudParam(c, ctx)
	if errResp != nil {
		return errResp(c)
	}

	if sol.IDSolicitante != idActual {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Solo el solicitante puede cancelar"})
	}

	_, err := db.Pool.Exec(ctx, `
        UPDATE solicitudes SET estado = 'cancelado' WHERE id_solicitud = $1
    `, sol.IDSolicitud)
	if err != nil {
		log.Printf("Ошибка обновления заявки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar la solicitud"})
	}

	sol.Estado = models.SolicitudCancelada

	return c.JSON(s.cargarCard(ctx, sol, idActual))
}

// ReofertarSolicitud обновляет существующую заявку и возвращает ее в pendiente.
// Строка переиспользуется: новая заявка не создается, дата обновляется,
// чтобы заявка всплыла наверх списков.
func (s *SolicitudService) ReofertarSolicitud(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	sol, errResp := s.cargarSolicitudParam(c, ctx)
	if errResp != nil {
		return errResp(c)
	}

	// Повторно предложить может только заявитель
	if sol.IDSolicitante != idActual {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Solo el solicitante puede reofertar"})
	}

	// Отсутствующее поле сохраняет текущее значение, null его очищает
	var raw map[string]json.RawMessage
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &raw); err != nil {
			log.Printf("Ошибка декодирования тела запроса: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
		}
	}

	diferencia := sol.DiferenciaPropuesta
	if rawDiff, presente := raw["diferencia_propuesta"]; presente {
		var valor any
		if err := json.Unmarshal(rawDiff, &valor); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "diferencia_propuesta inválida"})
		}
		parsed, err := parseDiferencia(valor)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":          "diferencia_propuesta inválida",
				"valor_recibido": valor,
			})
		}
		diferencia = parsed
	}

	idOfrece := sol.IDProductoOfrece
	if rawOfrece, presente := raw["id_producto_ofrece"]; presente {
		idOfrece = nil
		var valor *int64
		if err := json.Unmarshal(rawOfrece, &valor); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id_producto_ofrece inválido"})
		}
		idOfrece = valor
	}
	if idOfrece != nil {
		if !s.esDuenoDeProducto(ctx, idActual, *idOfrece) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No eres dueño del producto que ofreces"})
		}
	}

	mensaje := sol.Mensaje
	if rawMensaje, presente := raw["mensaje"]; presente {
		var valor *string
		if err := json.Unmarshal(rawMensaje, &valor); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mensaje inválido"})
		}
		if valor != nil {
			mensaje = *valor
		}
	}
	if mensaje == "" {
		mensaje = mensajePorDefecto
	}

	ahora := time.Now().UTC()

	_, err := db.Pool.Exec(ctx, `
        UPDATE solicitudes
        SET id_producto_ofrece = $1, diferencia_propuesta = $2, mensaje = $3,
            estado = 'pendiente', confirmo_solicitante = TRUE, confirmo_receptor = FALSE,
            creado = $4
        WHERE id_solicitud = $5
    `, idOfrece, diferencia, mensaje, ahora, sol.IDSolicitud)
	if err != nil {
		log.Printf("Ошибка обновления заявки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar la solicitud"})
	}

	sol.IDProductoOfrece = idOfrece
	sol.DiferenciaPropuesta = diferencia
	sol.Mensaje = mensaje
	sol.Estado = models.SolicitudPendiente
	sol.ConfirmoSolicitante = true
	sol.ConfirmoReceptor = false
	sol.Creado = ahora

	return c.JSON(s.cargarCard(ctx, sol, idActual))
}

// crearIntercambioDesdeSolicitud создает запись обмена при принятии заявки.
// По одной заявке существует не больше одного обмена: уникальный индекс по
// id_solicitud превращает повторную вставку в no-op.
func crearIntercambioDesdeSolicitud(ctx context.Context, tx pgx.Tx, sol *models.Solicitud, idUsuarioRecibe int64) error {
	diferencia := 0.0
	if sol.DiferenciaPropuesta != nil {
		diferencia = *sol.DiferenciaPropuesta
	}

	fechaSolicitud := sol.Creado
	if sol.FechaPropuesta != nil {
		fechaSolicitud = *sol.FechaPropuesta
	}

	_, err := tx.Exec(ctx, `
        INSERT INTO intercambios (id_solicitud, id_producto_ofrecido, id_producto_solicitado,
                                  id_usuario_ofrece, id_usuario_recibe, diferencia_monetaria,
                                  estado, estado_solicitante, estado_receptor,
                                  fecha_solicitud, fecha_actualizacion)
        VALUES ($1, $2, $3, $4, $5, $6, 'pendiente', 'pendiente', 'pendiente', $7, NOW())
        ON CONFLICT (id_solicitud) DO NOTHING
    `, sol.IDSolicitud, sol.IDProductoOfrece, sol.IDProductoObjetivo,
		sol.IDSolicitante, idUsuarioRecibe, diferencia, fechaSolicitud)

	return err
}

// cargarSolicitudParam загружает заявку из параметра маршрута;
// при ошибке возвращает готовый обработчик ответа
func (s *SolicitudService) cargarSolicitudParam(c fiber.Ctx, ctx context.Context) (*models.Solicitud, func(fiber.Ctx) error) {
	idSolicitud, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID de solicitud inválido"})
		}
	}

	var sol models.Solicitud
	err = db.Pool.QueryRow(ctx, `
        SELECT id_solicitud, id_solicitante, id_producto_objetivo, id_producto_ofrece,
               mensaje, ubicacion, fecha_propuesta, diferencia_propuesta, estado,
               confirmo_solicitante, confirmo_receptor, creado
        FROM solicitudes
        WHERE id_solicitud = $1
    `, idSolicitud).Scan(
		&sol.IDSolicitud,
		&sol.IDSolicitante,
		&sol.IDProductoObjetivo,
		&sol.IDProductoOfrece,
		&sol.Mensaje,
		&sol.Ubicacion,
		&sol.FechaPropuesta,
		&sol.DiferenciaPropuesta,
		&sol.Estado,
		&sol.ConfirmoSolicitante,
		&sol.ConfirmoReceptor,
		&sol.Creado,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, func(c fiber.Ctx) error {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Solicitud no encontrada"})
			}
		}
		log.Printf("Ошибка запроса заявки %d: %v", idSolicitud, err)
		return nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener la solicitud"})
		}
	}

	return &sol, nil
}

// responderCards сканирует строки заявок и отдает их карточками
func (s *SolicitudService) responderCards(c fiber.Ctx, ctx context.Context, rows pgx.Rows, idActual int64) error {
	defer rows.Close()

	var solicitudes []models.Solicitud
	for rows.Next() {
		var sol models.Solicitud
		if err := rows.Scan(
			&sol.IDSolicitud,
			&sol.IDSolicitante,
			&sol.IDProductoObjetivo,
			&sol.IDProductoOfrece,
			&sol.Mensaje,
			&sol.Ubicacion,
			&sol.FechaPropuesta,
			&sol.DiferenciaPropuesta,
			&sol.Estado,
			&sol.ConfirmoSolicitante,
			&sol.ConfirmoReceptor,
			&sol.Creado,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		solicitudes = append(solicitudes, sol)
	}
	rows.Close()

	cards := make([]*models.SolicitudCard, 0, len(solicitudes))
	for idx := range solicitudes {
		cards = append(cards, s.cargarCard(ctx, &solicitudes[idx], idActual))
	}

	return c.JSON(cards)
}

// cargarCard собирает карточку заявки с товарами и участниками
func (s *SolicitudService) cargarCard(ctx context.Context, sol *models.Solicitud, idActual int64) *models.SolicitudCard {
	card := &models.SolicitudCard{
		IDSolicitud:         sol.IDSolicitud,
		Estado:              sol.Estado,
		Mensaje:             sol.Mensaje,
		Creado:              sol.Creado.Format(time.RFC3339),
		SoySolicitante:      sol.IDSolicitante == idActual,
		DiferenciaPropuesta: sol.DiferenciaPropuesta,
	}

	card.ProductoObjetivo = s.getProducto(ctx, sol.IDProductoObjetivo, idActual)
	if sol.IDProductoOfrece != nil {
		card.ProductoOfrece = s.getProducto(ctx, *sol.IDProductoOfrece, idActual)
	}

	card.Solicitante = s.getUsuarioResumen(ctx, sol.IDSolicitante)
	if card.ProductoObjetivo != nil {
		card.Receptor = s.getUsuarioResumen(ctx, card.ProductoObjetivo.IDUsuario)
	}

	return card
}

// getProducto получает товар с названием категории и пометкой принадлежности
func (s *SolicitudService) getProducto(ctx context.Context, idProducto int64, idActual int64) *models.Producto {
	var p models.Producto
	err := db.Pool.QueryRow(ctx, `
        SELECT p.id_producto, p.id_usuario, p.id_categoria, c.nombre, p.titulo, p.descripcion,
               p.valor_estimado, p.imagen_url, p.ubicacion, p.estado, p.fecha_publicacion
        FROM productos p
        LEFT JOIN categorias c ON p.id_categoria = c.id_categoria
        WHERE p.id_producto = $1
    `, idProducto).Scan(
		&p.IDProducto,
		&p.IDUsuario,
		&p.IDCategoria,
		&p.CategoriaNombre,
		&p.Titulo,
		&p.Descripcion,
		&p.ValorEstimado,
		&p.ImagenURL,
		&p.Ubicacion,
		&p.Estado,
		&p.FechaPublicacion,
	)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Printf("Ошибка получения товара %d: %v", idProducto, err)
		}
		return nil
	}

	p.EsTuyo = p.IDUsuario == idActual
	return &p
}

// getUsuarioResumen получает краткую карточку пользователя
func (s *SolicitudService) getUsuarioResumen(ctx context.Context, idUsuario int64) *models.UsuarioResumen {
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

// esDuenoDeProducto проверяет, принадлежит ли товар пользователю
func (s *SolicitudService) esDuenoDeProducto(ctx context.Context, idUsuario, idProducto int64) bool {
	var idDueno int64
	err := db.Pool.QueryRow(ctx, `
        SELECT id_usuario FROM productos WHERE id_producto = $1
    `, idProducto).Scan(&idDueno)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Printf("Ошибка проверки владельца товара %d: %v", idProducto, err)
		}
		return false
	}
	return idDueno == idUsuario
}
