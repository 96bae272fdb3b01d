package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Названия событий, которые сервер рассылает в комнату обмена
const (
	EventoMensajeRecibido      = "mensaje_recibido"
	EventoConfirmacionParcial  = "confirmacion_parcial"
	EventoConfirmacionTotal    = "confirmacion_total"
	EventoIntercambioCancelado = "intercambio_cancelado"
	EventoUsuarioPenalizado    = "usuario_penalizado"
)

// Evento представляет структуру сообщения для WebSocket
type Evento struct {
	Evento        string          `json:"evento"`
	IDIntercambio int64           `json:"id_intercambio,omitempty"`
	IDUsuario     int64           `json:"id_usuario,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Hub представляет центральный реестр WebSocket соединений и комнат.
// Комната привязана к одному обмену; состоять в ней могут только его участники.
// Весь реестр защищен одним мьютексом.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[int64]map[uuid.UUID]bool // id_intercambio -> множество клиентов
}

// NewHub создает новый экземпляр Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[int64]map[uuid.UUID]bool),
	}
}

// AddClient регистрирует нового клиента
func (h *Hub) AddClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	log.Printf("WebSocket клиент %s подключен", client.ID)
}

// RemoveClient удаляет клиента и выводит его из всех комнат
func (h *Hub) RemoveClient(clientID uuid.UUID) {
	h.mu.Lock()
	_, exists := h.clients[clientID]
	if exists {
		delete(h.clients, clientID)
		for idIntercambio, members := range h.rooms {
			delete(members, clientID)
			if len(members) == 0 {
				delete(h.rooms, idIntercambio)
			}
		}
	}
	h.mu.Unlock()

	if exists {
		log.Printf("WebSocket клиент %s отключен", clientID)
	}
}

// Join подключает клиента к комнате обмена.
// Проверка участия в обмене выполняется в шлюзе до вызова.
func (h *Hub) Join(idIntercambio int64, clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; !ok {
		return
	}
	if _, ok := h.rooms[idIntercambio]; !ok {
		h.rooms[idIntercambio] = make(map[uuid.UUID]bool)
	}
	h.rooms[idIntercambio][clientID] = true
}

// Leave выводит клиента из комнаты обмена
func (h *Hub) Leave(idIntercambio int64, clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[idIntercambio]
	if !ok {
		return
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(h.rooms, idIntercambio)
	}
}

// EnRoom сообщает, состоит ли клиент в комнате обмена
func (h *Hub) EnRoom(idIntercambio int64, clientID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[idIntercambio][clientID]
}

// EmitirAIntercambio отправляет событие всем клиентам в комнате обмена
func (h *Hub) EmitirAIntercambio(idIntercambio int64, evento Evento) {
	evento.IDIntercambio = idIntercambio
	if evento.Timestamp.IsZero() {
		evento.Timestamp = time.Now()
	}

	eventoJSON, err := json.Marshal(evento)
	if err != nil {
		log.Printf("Ошибка сериализации события: %v", err)
		return
	}

	h.mu.RLock()
	receptores := make([]*Client, 0, len(h.rooms[idIntercambio]))
	for clientID := range h.rooms[idIntercambio] {
		if client, ok := h.clients[clientID]; ok {
			receptores = append(receptores, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range receptores {
		select {
		case client.send <- eventoJSON:
			// Сообщение добавлено в очередь отправки
		default:
			// Канал заполнен, клиент слишком медленный - закрываем соединение
			log.Printf("Очередь отправки клиента %s переполнена, закрываем соединение", client.ID)
			client.Close()
			h.RemoveClient(client.ID)
		}
	}
}

// Shutdown корректно завершает работу всех соединений
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for _, client := range h.clients {
		client.Close()
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[int64]map[uuid.UUID]bool)
	h.mu.Unlock()
}
