package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"github.com/truekea/truekea-api/internal/db"
	"github.com/truekea/truekea-api/internal/models"
	"github.com/truekea/truekea-api/internal/utils"
)

// Gateway обслуживает WebSocket соединения.
// Работает на отдельном HTTP-листенере: fasthttp не поддерживает hijack,
// необходимый gorilla/websocket.
type Gateway struct {
	hub        *Hub
	jwtService *utils.JWTService
	upgrader   websocket.Upgrader
}

// NewGateway создает новый экземпляр Gateway
func NewGateway(hub *Hub, jwtService *utils.JWTService) *Gateway {
	return &Gateway{
		hub:        hub,
		jwtService: jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Listen запускает HTTP-сервер для WebSocket соединений
func (g *Gateway) Listen(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", g)

	log.Printf("✅ WebSocket шлюз запущен на %s", addr)
	return http.ListenAndServe(addr, mux)
}

// ServeHTTP принимает новое WebSocket соединение
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Ошибка апгрейда соединения: %v", err)
		return
	}

	client := NewClient(conn, g.hub, g.handleInbound)
	client.Start()
}

// accionEntrante представляет входящее сообщение от клиента
type accionEntrante struct {
	Accion        string   `json:"accion"` // join_intercambio, leave_intercambio, nuevo_mensaje
	Token         string   `json:"token"`
	IDIntercambio int64    `json:"id_intercambio"`
	Tipo          string   `json:"tipo"`
	Contenido     *string  `json:"contenido"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
}

// handleInbound обрабатывает входящие сообщения от клиента
func (g *Gateway) handleInbound(c *Client, message []byte) {
	var accion accionEntrante
	if err := json.Unmarshal(message, &accion); err != nil {
		log.Printf("Ошибка разбора входящего сообщения: %v", err)
		return
	}

	switch accion.Accion {
	case "join_intercambio":
		g.handleJoin(c, &accion)
	case "leave_intercambio":
		g.hub.Leave(accion.IDIntercambio, c.ID)
		log.Printf("[SOCKET] клиент %s покинул комнату intercambio_%d", c.ID, accion.IDIntercambio)
	case "nuevo_mensaje":
		g.handleNuevoMensaje(c, &accion)
	default:
		log.Printf("Необработанное действие: %s", accion.Accion)
	}
}

// handleJoin подключает участника обмена к его комнате
func (g *Gateway) handleJoin(c *Client, accion *accionEntrante) {
	idUsuario, err := g.jwtService.ExtractUserID(accion.Token)
	if err != nil || accion.IDIntercambio == 0 {
		return
	}

	intercambio, err := g.cargarIntercambio(accion.IDIntercambio)
	if err != nil {
		return
	}

	// Только участники обмена могут войти в комнату
	if !intercambio.EsParticipante(idUsuario) {
		return
	}

	g.hub.Join(accion.IDIntercambio, c.ID)
	log.Printf("[SOCKET] пользователь %d вошел в комнату intercambio_%d", idUsuario, accion.IDIntercambio)
}

// handleNuevoMensaje сохраняет сообщение чата и рассылает его в комнату
func (g *Gateway) handleNuevoMensaje(c *Client, accion *accionEntrante) {
	idUsuario, err := g.jwtService.ExtractUserID(accion.Token)
	if err != nil || accion.IDIntercambio == 0 {
		return
	}

	intercambio, err := g.cargarIntercambio(accion.IDIntercambio)
	if err != nil {
		return
	}

	// Проверяем, что пользователь участвует в этом обмене
	if !intercambio.EsParticipante(idUsuario) {
		return
	}

	tipo := accion.Tipo
	if tipo == "" {
		tipo = models.MensajeTexto
	}

	if err := validarMensaje(tipo, accion.Contenido, accion.Lat, accion.Lng); err != nil {
		log.Printf("Невалидное сообщение от пользователя %d: %v", idUsuario, err)
		return
	}

	msg := models.IntercambioMensaje{
		IDIntercambio: accion.IDIntercambio,
		IDUsuario:     idUsuario,
		Tipo:          tipo,
		Creado:        time.Now().UTC(),
	}
	if tipo == models.MensajeTexto {
		msg.Contenido = accion.Contenido
	} else {
		msg.Lat = accion.Lat
		msg.Lng = accion.Lng
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	err = db.Pool.QueryRow(ctx, `
        INSERT INTO intercambio_mensajes (id_intercambio, id_usuario, tipo, contenido, lat, lng, creado)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id_mensaje
    `, msg.IDIntercambio, msg.IDUsuario, msg.Tipo, msg.Contenido, msg.Lat, msg.Lng, msg.Creado).Scan(&msg.IDMensaje)

	if err != nil {
		log.Printf("Ошибка сохранения сообщения: %v", err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Ошибка сериализации сообщения: %v", err)
		return
	}

	// Рассылаем сообщение всем подключенным к этому обмену
	g.hub.EmitirAIntercambio(accion.IDIntercambio, Evento{
		Evento:    EventoMensajeRecibido,
		IDUsuario: idUsuario,
		Payload:   payload,
	})
	log.Printf("[SOCKET] сообщение в комнате intercambio_%d от пользователя %d", accion.IDIntercambio, idUsuario)
}

// cargarIntercambio загружает участников обмена для проверки доступа
func (g *Gateway) cargarIntercambio(idIntercambio int64) (*models.Intercambio, error) {
	ctx, cancel := db.GetContext()
	defer cancel()

	var i models.Intercambio
	err := db.Pool.QueryRow(ctx, `
        SELECT id_intercambio, id_usuario_ofrece, id_usuario_recibe
        FROM intercambios
        WHERE id_intercambio = $1
    `, idIntercambio).Scan(&i.IDIntercambio, &i.IDUsuarioOfrece, &i.IDUsuarioRecibe)

	if err != nil {
		if err != pgx.ErrNoRows {
			log.Printf("Ошибка запроса обмена %d: %v", idIntercambio, err)
		}
		return nil, err
	}

	return &i, nil
}

// validarMensaje проверяет форму сообщения по его типу
func validarMensaje(tipo string, contenido *string, lat, lng *float64) error {
	switch tipo {
	case models.MensajeTexto:
		if contenido == nil || *contenido == "" {
			return errors.New("mensaje de texto sin contenido")
		}
	case models.MensajeUbicacion:
		if lat == nil || lng == nil {
			return errors.New("mensaje de ubicación sin coordenadas")
		}
	default:
		return errors.New("tipo de mensaje desconocido")
	}
	return nil
}
