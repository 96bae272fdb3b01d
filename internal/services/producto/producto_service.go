package producto

import (
	"context"
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

// ProductoService представляет сервис для работы с товарами
type ProductoService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewProductoService создает новый экземпляр ProductoService
func NewProductoService(cfg *config.Config) *ProductoService {
	return &ProductoService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// JWTService отдает JWT-сервис для настройки маршрутов
func (s *ProductoService) JWTService() *utils.JWTService {
	return s.jwtService
}

// ListarProductos возвращает товары с фильтрами по тексту, категории и владельцу
func (s *ProductoService) ListarProductos(c fiber.Ctx) error {
	// Авторизация не обязательна: каталог виден всем
	idActual := s.usuarioOpcional(c)

	qTexto := c.Query("q")
	idCategoria := c.Query("id_categoria")
	soloMios := c.Query("solo_mios") == "1"
	soloOtros := c.Query("solo_otros") == "1"
	incluirBajas := c.Query("incluir_bajas") == "1"

	query := `
        SELECT p.id_producto, p.id_usuario, p.id_categoria, c.nombre, p.titulo, p.descripcion,
               p.valor_estimado, p.imagen_url, p.ubicacion, p.estado, p.fecha_publicacion
        FROM productos p
        LEFT JOIN categorias c ON p.id_categoria = c.id_categoria
        WHERE 1=1
    `
	var args []interface{}

	if !incluirBajas {
		query += " AND p.estado = 'disponible'"
	}
	if qTexto != "" {
		args = append(args, "%"+qTexto+"%")
		marcador := strconv.Itoa(len(args))
		query += " AND (p.titulo ILIKE $" + marcador + " OR p.descripcion ILIKE $" + marcador + ")"
	}
	if idCategoria != "" {
		if id, err := strconv.ParseInt(idCategoria, 10, 64); err == nil {
			args = append(args, id)
			query += " AND p.id_categoria = $" + strconv.Itoa(len(args))
		}
	}
	if idActual != 0 {
		if soloMios {
			args = append(args, idActual)
			query += " AND p.id_usuario = $" + strconv.Itoa(len(args))
		} else if soloOtros {
			args = append(args, idActual)
			query += " AND p.id_usuario <> $" + strconv.Itoa(len(args))
		}
	}
	query += " ORDER BY p.fecha_publicacion DESC"

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		log.Printf("Ошибка запроса товаров: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener productos"})
	}
	defer rows.Close()

	productos := make([]models.Producto, 0)
	for rows.Next() {
		p, err := scanProducto(rows)
		if err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		p.EsTuyo = idActual != 0 && p.IDUsuario == idActual
		productos = append(productos, *p)
	}

	return c.JSON(productos)
}

// ObtenerProducto возвращает один товар
func (s *ProductoService) ObtenerProducto(c fiber.Ctx) error {
	idActual := s.usuarioOpcional(c)

	idProducto, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID de producto inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p := getProducto(ctx, idProducto)
	if p == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Producto no encontrado"})
	}

	p.EsTuyo = idActual != 0 && p.IDUsuario == idActual
	return c.JSON(p)
}

// CrearProducto публикует новый товар текущего пользователя
func (s *ProductoService) CrearProducto(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	var requestData struct {
		IDCategoria   *int64   `json:"id_categoria"`
		Titulo        *string  `json:"titulo"`
		Descripcion   *string  `json:"descripcion"`
		ValorEstimado *float64 `json:"valor_estimado"`
		ImagenURL     *string  `json:"imagen_url"`
		Ubicacion     *string  `json:"ubicacion"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
	}

	// Обязательные поля как в веб-форме публикации
	if requestData.IDCategoria == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Falta campo id_categoria"})
	}
	if requestData.Titulo == nil || *requestData.Titulo == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Falta campo titulo"})
	}
	if requestData.Descripcion == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Falta campo descripcion"})
	}
	if requestData.ValorEstimado == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Falta campo valor_estimado"})
	}
	if requestData.Ubicacion == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Falta campo ubicacion"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var idProducto int64
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO productos (id_usuario, id_categoria, titulo, descripcion, valor_estimado,
                               imagen_url, ubicacion, estado)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 'disponible')
        RETURNING id_producto
    `, idActual, *requestData.IDCategoria, *requestData.Titulo, *requestData.Descripcion,
		*requestData.ValorEstimado, requestData.ImagenURL, requestData.Ubicacion).Scan(&idProducto)

	if err != nil {
		log.Printf("Ошибка создания товара: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al guardar el producto"})
	}

	p := getProducto(ctx, idProducto)
	if p == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener el producto"})
	}
	p.EsTuyo = true

	return c.Status(fiber.StatusCreated).JSON(p)
}

// EditarProducto обновляет поля товара; доступно только владельцу
func (s *ProductoService) EditarProducto(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	idProducto, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID de producto inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p := getProducto(ctx, idProducto)
	if p == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Producto no encontrado"})
	}
	if p.IDUsuario != idActual {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No autorizado"})
	}

	var requestData struct {
		Titulo        *string  `json:"titulo"`
		Descripcion   *string  `json:"descripcion"`
		ValorEstimado *float64 `json:"valor_estimado"`
		Ubicacion     *string  `json:"ubicacion"`
		IDCategoria   *int64   `json:"id_categoria"`
		ImagenURL     *string  `json:"imagen_url"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
	}

	// Отсутствующие поля не трогаем
	if requestData.Titulo != nil {
		p.Titulo = *requestData.Titulo
	}
	if requestData.Descripcion != nil {
		p.Descripcion = *requestData.Descripcion
	}
	if requestData.ValorEstimado != nil {
		p.ValorEstimado = *requestData.ValorEstimado
	}
	if requestData.Ubicacion != nil {
		p.Ubicacion = requestData.Ubicacion
	}
	if requestData.IDCategoria != nil {
		p.IDCategoria = *requestData.IDCategoria
	}
	if requestData.ImagenURL != nil {
		p.ImagenURL = requestData.ImagenURL
	}

	_, err = db.Pool.Exec(ctx, `
        UPDATE productos
        SET titulo = $1, descripcion = $2, valor_estimado = $3, ubicacion = $4,
            id_categoria = $5, imagen_url = $6
        WHERE id_producto = $7
    `, p.Titulo, p.Descripcion, p.ValorEstimado, p.Ubicacion, p.IDCategoria, p.ImagenURL, idProducto)
	if err != nil {
		log.Printf("Ошибка обновления товара: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar el producto"})
	}

	p.EsTuyo = true
	return c.JSON(p)
}

// CambiarEstadoProducto снимает товар с публикации или возвращает его
func (s *ProductoService) CambiarEstadoProducto(c fiber.Ctx) error {
	idActual, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token inválido"})
	}

	idProducto, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ID de producto inválido"})
	}

	var requestData struct {
		Estado string `json:"estado"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Formato de datos inválido"})
	}

	if requestData.Estado != models.ProductoDisponible && requestData.Estado != models.ProductoBaja {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Estado inválido"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p := getProducto(ctx, idProducto)
	if p == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Producto no encontrado"})
	}
	if p.IDUsuario != idActual {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No autorizado"})
	}

	_, err = db.Pool.Exec(ctx, `
        UPDATE productos SET estado = $1 WHERE id_producto = $2
    `, requestData.Estado, idProducto)
	if err != nil {
		log.Printf("Ошибка обновления статуса товара: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al actualizar el producto"})
	}

	p.Estado = requestData.Estado
	p.EsTuyo = true
	return c.JSON(p)
}

// ListarCategorias возвращает справочник категорий
func (s *ProductoService) ListarCategorias(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id_categoria, nombre, COALESCE(descripcion, '')
        FROM categorias
        ORDER BY nombre ASC
    `)
	if err != nil {
		log.Printf("Ошибка запроса категорий: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error al obtener categorías"})
	}
	defer rows.Close()

	categorias := make([]models.Categoria, 0)
	for rows.Next() {
		var cat models.Categoria
		if err := rows.Scan(&cat.IDCategoria, &cat.Nombre, &cat.Descripcion); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		categorias = append(categorias, cat)
	}

	return c.JSON(categorias)
}

// usuarioOpcional достает ID пользователя из токена, если он передан
func (s *ProductoService) usuarioOpcional(c fiber.Ctx) int64 {
	if id, ok := middleware.UserID(c); ok {
		return id
	}
	return 0
}

// getProducto получает товар с названием категории
func getProducto(ctx context.Context, idProducto int64) *models.Producto {
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
	return &p
}

// scanProducto читает строку товара из результата запроса
func scanProducto(rows pgx.Rows) (*models.Producto, error) {
	var p models.Producto
	err := rows.Scan(
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
		return nil, err
	}
	return &p, nil
}
