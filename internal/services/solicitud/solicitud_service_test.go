package solicitud

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
	"github.com/truekea/truekea-api/internal/models"
	"github.com/truekea/truekea-api/internal/utils"
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
        VALUES ($1, $2, 'Bicicleta', 'poco uso', 100, 'Lima')
        RETURNING id_producto
    `, idUsuario, idCategoria).Scan(&id)
	require.NoError(t, err)
	return id
}

func crearSolicitudBD(t *testing.T, idSolicitante, idProductoObjetivo int64, estado string) int64 {
	t.Helper()
	var id int64
	err := db.Pool.QueryRow(context.Background(), `
        INSERT INTO solicitudes (id_solicitante, id_producto_objetivo, mensaje, estado, confirmo_solicitante, creado)
        VALUES ($1, $2, 'Me interesa tu producto', $3, TRUE, NOW())
        RETURNING id_solicitud
    `, idSolicitante, idProductoObjetivo, estado).Scan(&id)
	require.NoError(t, err)
	return id
}

func appPrueba(cfg *config.Config) *fiber.App {
	app := fiber.New()
	NewSolicitudService(cfg).SetupRoutes(app)
	return app
}

func ejecutar(t *testing.T, cfg *config.Config, app *fiber.App, metodo, ruta string, idUsuario int64, cuerpo string) *http.Response {
	t.Helper()

	var req *http.Request
	if cuerpo != "" {
		req = httptest.NewRequest(metodo, ruta, strings.NewReader(cuerpo))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(metodo, ruta, nil)
	}

	token, err := utils.NewJWTService(cfg.JWTSecret).GenerateToken(idUsuario)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	return resp
}

func contarIntercambios(t *testing.T, idSolicitud int64) int {
	t.Helper()
	var total int
	err := db.Pool.QueryRow(context.Background(), `
        SELECT COUNT(*) FROM intercambios WHERE id_solicitud = $1
    `, idSolicitud).Scan(&total)
	require.NoError(t, err)
	return total
}

func TestCrearSolicitudPropioProducto(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	usuario := crearUsuarioBD(t, "ana")
	producto := crearProductoBD(t, usuario)

	resp := ejecutar(t, cfg, app, "POST", "/api/solicitudes", usuario,
		fmt.Sprintf(`{"id_producto_objetivo": %d}`, producto))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Отказ ничего не записывает
	var total int
	err := db.Pool.QueryRow(context.Background(), `
        SELECT COUNT(*) FROM solicitudes WHERE id_solicitante = $1
    `, usuario).Scan(&total)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestAceptarDosVecesCreaUnSoloIntercambio(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	solicitante := crearUsuarioBD(t, "beto")
	dueno := crearUsuarioBD(t, "ana")
	producto := crearProductoBD(t, dueno)
	idSolicitud := crearSolicitudBD(t, solicitante, producto, models.SolicitudPendiente)

	ruta := fmt.Sprintf("/api/solicitudes/%d/aceptar", idSolicitud)

	resp := ejecutar(t, cfg, app, "PUT", ruta, dueno, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = ejecutar(t, cfg, app, "PUT", ruta, dueno, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, 1, contarIntercambios(t, idSolicitud))
}

func TestAceptarSoloPropietario(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	solicitante := crearUsuarioBD(t, "beto")
	dueno := crearUsuarioBD(t, "ana")
	tercero := crearUsuarioBD(t, "carla")
	producto := crearProductoBD(t, dueno)
	idSolicitud := crearSolicitudBD(t, solicitante, producto, models.SolicitudPendiente)

	resp := ejecutar(t, cfg, app, "PUT", fmt.Sprintf("/api/solicitudes/%d/aceptar", idSolicitud), tercero, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Отказ не меняет состояние и не создает обмен
	var estado string
	err := db.Pool.QueryRow(context.Background(), `
        SELECT estado FROM solicitudes WHERE id_solicitud = $1
    `, idSolicitud).Scan(&estado)
	require.NoError(t, err)
	require.Equal(t, models.SolicitudPendiente, estado)
	require.Zero(t, contarIntercambios(t, idSolicitud))
}

func TestReofertarDesdeRechazado(t *testing.T) {
	cfg := abrirBD(t)
	app := appPrueba(cfg)

	solicitante := crearUsuarioBD(t, "beto")
	dueno := crearUsuarioBD(t, "ana")
	producto := crearProductoBD(t, dueno)
	idSolicitud := crearSolicitudBD(t, solicitante, producto, models.SolicitudRechazada)

	resp := ejecutar(t, cfg, app, "PUT", fmt.Sprintf("/api/solicitudes/%d/reofertar", idSolicitud), solicitante,
		`{"diferencia_propuesta": 50}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Та же строка возвращается в pendiente с новой доплатой
	var estado string
	var diferencia *float64
	err := db.Pool.QueryRow(context.Background(), `
        SELECT estado, diferencia_propuesta FROM solicitudes WHERE id_solicitud = $1
    `, idSolicitud).Scan(&estado, &diferencia)
	require.NoError(t, err)
	require.Equal(t, models.SolicitudPendiente, estado)
	require.NotNil(t, diferencia)
	require.Equal(t, 50.0, *diferencia)

	var total int
	err = db.Pool.QueryRow(context.Background(), `
        SELECT COUNT(*) FROM solicitudes WHERE id_solicitante = $1
    `, solicitante).Scan(&total)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestCrearIntercambioDuplicadoNoFalla(t *testing.T) {
	abrirBD(t)

	solicitante := crearUsuarioBD(t, "beto")
	dueno := crearUsuarioBD(t, "ana")
	producto := crearProductoBD(t, dueno)
	idSolicitud := crearSolicitudBD(t, solicitante, producto, models.SolicitudAceptada)

	sol := &models.Solicitud{
		IDSolicitud:        idSolicitud,
		IDSolicitante:      solicitante,
		IDProductoObjetivo: producto,
		Creado:             time.Now().UTC(),
	}

	// Две последовательные вставки: вторая упирается в уникальность
	// по id_solicitud и молча не делает ничего
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		tx, err := db.Pool.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, crearIntercambioDesdeSolicitud(ctx, tx, sol, dueno))
		require.NoError(t, tx.Commit(ctx))
	}

	require.Equal(t, 1, contarIntercambios(t, idSolicitud))
}
