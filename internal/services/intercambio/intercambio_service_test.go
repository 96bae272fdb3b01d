package intercambio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/truekea/truekea-api/internal/config"
	"github.com/truekea/truekea-api/internal/db"
	"github.com/truekea/truekea-api/internal/utils"
	"github.com/truekea/truekea-api/internal/websocket"
)

// Тесты ниже ходят в настоящий Postgres. Без TEST_DATABASE_URL они
// пропускаются, чтобы обычный прогон не требовал базы.
func abrirBD(t *testing.T) *config.Config {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан, пропускаем тесты с базой")
	}

	cfg := &config.Config{
		JWTSecret:      "secreto-de-prueba",
		DatabaseURL:    dsn,
		DatabaseConfig: config.DatabaseConfig{MaxConns: 5, MinConns: 1},
	}
	require.NoError(t, db.InitDB(cfg))
	t.Cleanup(db.CloseDB)

	aplicarEsquema(t)
	return cfg
}

func aplicarEsquema(t *testing.T) {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)

	var lineas []string
	for _, linea := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(strings.TrimSpace(linea), "--") {
			continue
		}
		lineas = append(lineas, linea)
	}

	ctx := context.Background()
	conn, err := db.Pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	// Пакеты тестов могут применять схему одновременно
	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock(874501)`)
	require.NoError(t, err)
	defer conn.Exec(ctx, `SELECT pg_advisory_unlock(874501)`)

	for _, stmt := range strings.Split(strings.Join(lineas, "\n"), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := conn.Exec(ctx, stmt); err != nil {
			t.Fatalf("ошибка применения схемы: %v", err)
		}
	}
}

func crearUsuarioBD(t *testing.T, nombre string) int64 {
	t.Helper()
	var id int64
	err := db.Pool.QueryRow(context.Background(), `
        INSERT INTO usuarios (nombre_completo, correo, contrasena)
        VALUES ($1, $2, 'x')
        RETURNING id_usuario
    `, nombre, fmt.Sprintf("%s-%d@test.local", nombre, time.Now().UnixNano())).Scan(&id)
	require.NoError(t, err)
	return id
}

func crearProductoBD(t *testing.T, idUsuario int64) int64 {
	t.Helper()
	ctx := context.Background()

	var idCategoria int64
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO categorias (nombre) VALUES ('Varios')
        ON CONFLICT (nombre) DO UPDATE SET nombre = EXCLUDED.nombre
        RETURNING id_categoria
    `).Scan(&idCategoria)
	require.NoError(t, err)

	var id int64
	err = db.Pool.QueryRow(ctx, `
        INSERT INTO productos (id_usuario, id_categoria, titulo, descripcion, valor_estimado, ubicacion)
        VALUES ($1, $2, 'Patineta', 'como nueva', 80, 'Lima')
        RETURNING id_producto
    `, idUsuario, idCategoria).Scan(&id)
	require.NoError(t, err)
	return id
}

// crearIntercambioBD сеет обмен в заданном состоянии сторон вместе с
// исходной заявкой и целевым товаром
func crearIntercambioBD(t *testing.T, ofrece, recibe int64, estadoSolicitante, estadoReceptor string, limite *time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	producto := crearProductoBD(t, recibe)

	var idSolicitud int64
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO solicitudes (id_solicitante, id_producto_objetivo, mensaje, estado, confirmo_solicitante, confirmo_receptor)
        VALUES ($1, $2, 'Me interesa tu producto', 'aceptado', TRUE, TRUE)
        RETURNING id_solicitud
    `, ofrece, producto).Scan(&idSolicitud)
	require.NoError(t, err)

	var id int64
	err = db.Pool.QueryRow(ctx, `
        INSERT INTO intercambios (id_solicitud, id_producto_solicitado, id_usuario_ofrece, id_usuario_recibe,
                                  estado, estado_solicitante, estado_receptor, fecha_limite_confirmacion)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id_intercambio
    `, idSolicitud, producto, ofrece, recibe,
		EstadoAgregado(estadoSolicitante, estadoReceptor), estadoSolicitante, estadoReceptor, limite).Scan(&id)
	require.NoError(t, err)
	return id
}

func appPrueba(cfg *config.Config) *fiber.App {
	app := fiber.New()
	NewIntercambioService(cfg, websocket.NewHub()).SetupRoutes(app)
	return app
}

func ejecutar(t *testing.T, cfg *config.Config, app *fiber.App, metodo, ruta string, idUsuario int64) *http.Response {
	t.Helper()

	token, err := utils.NewJWTService(cfg.JWTSecret).GenerateToken(idUsuario)
	require.NoError(t, err)

	req := httptest.NewRequest(metodo, ruta, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	return resp
}

func esVerificado(t *testing.T, idUsuario int64) bool {
	t.Helper()
	var verificado bool
	err := db.Pool.QueryRow(context.Background(), `
        SELECT verificado FROM usuarios WHERE id_usuario = $1
    `, idUsuario).Scan(&verificado)
	require.NoError(t, err)
	return verificado
}

func TestFinalizarFijaYLimpiaDeadline(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	ofrece := crearUsuarioBD(t, "beto")
	recibe := crearUsuarioBD(t, "ana")
	id := crearIntercambioBD(t, ofrece, recibe, EstadoPendiente, EstadoPendiente, nil)
	ruta := fmt.Sprintf("/api/intercambios/%d/finalizar", id)

	// Первое подтверждение открывает окно
	resp := ejecutar(t, cfg, app, "PUT", ruta, ofrece)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	i, err := cargarIntercambio(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, EstadoPendiente, i.Estado)
	require.Equal(t, EstadoAceptado, i.EstadoSolicitante)
	require.NotNil(t, i.FechaLimiteConfirmacion)

	// Второе подтверждение завершает обмен и снимает дедлайн
	resp = ejecutar(t, cfg, app, "PUT", ruta, recibe)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	i, err = cargarIntercambio(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, EstadoAceptado, i.Estado)
	require.Nil(t, i.FechaLimiteConfirmacion)
}

func TestDetallePenalizaTrasDeadline(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	ofrece := crearUsuarioBD(t, "beto")
	recibe := crearUsuarioBD(t, "ana")
	limite := time.Now().UTC().Add(-time.Minute)
	id := crearIntercambioBD(t, ofrece, recibe, EstadoAceptado, EstadoPendiente, &limite)

	resp := ejecutar(t, cfg, app, "GET", fmt.Sprintf("/api/intercambios/%d", id), ofrece)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Не подтвердившая сторона теряет флаг, обмен отменяется
	i, err := cargarIntercambio(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, EstadoCancelado, i.Estado)
	require.Nil(t, i.FechaLimiteConfirmacion)
	require.False(t, esVerificado(t, recibe))
	require.True(t, esVerificado(t, ofrece))
}

func TestBarridoVersionObsoletaNoEscribe(t *testing.T) {
	cfg := abrirBD(t)
	svc := NewIntercambioService(cfg, websocket.NewHub())

	ofrece := crearUsuarioBD(t, "beto")
	recibe := crearUsuarioBD(t, "ana")
	limite := time.Now().UTC().Add(-time.Minute)
	id := crearIntercambioBD(t, ofrece, recibe, EstadoAceptado, EstadoPendiente, &limite)

	ctx := context.Background()
	i, err := cargarIntercambio(ctx, id)
	require.NoError(t, err)

	// Параллельная запись успела раньше: версия в базе уходит вперед
	_, err = db.Pool.Exec(ctx, `
        UPDATE intercambios SET version = version + 1 WHERE id_intercambio = $1
    `, id)
	require.NoError(t, err)

	require.NoError(t, svc.aplicarBarrido(i))

	// Проигравший CAS ничего не записал: ни отмены, ни штрафа
	actual, err := cargarIntercambio(ctx, id)
	require.NoError(t, err)
	require.Equal(t, EstadoPendiente, actual.Estado)
	require.True(t, esVerificado(t, recibe))
}

func TestFinalizarSoloParticipantes(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	ofrece := crearUsuarioBD(t, "beto")
	recibe := crearUsuarioBD(t, "ana")
	tercero := crearUsuarioBD(t, "carla")
	id := crearIntercambioBD(t, ofrece, recibe, EstadoPendiente, EstadoPendiente, nil)

	resp := ejecutar(t, cfg, app, "PUT", fmt.Sprintf("/api/intercambios/%d/finalizar", id), tercero)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Отказ не меняет состояние
	i, err := cargarIntercambio(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, EstadoPendiente, i.Estado)
	require.Equal(t, EstadoPendiente, i.EstadoSolicitante)
	require.Equal(t, EstadoPendiente, i.EstadoReceptor)
}

func TestCancelarYaCancelado(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	ofrece := crearUsuarioBD(t, "beto")
	recibe := crearUsuarioBD(t, "ana")
	id := crearIntercambioBD(t, ofrece, recibe, EstadoCancelado, EstadoPendiente, nil)

	resp := ejecutar(t, cfg, app, "PUT", fmt.Sprintf("/api/intercambios/%d/cancelar", id), recibe)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
