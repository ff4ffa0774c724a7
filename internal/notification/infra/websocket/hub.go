package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message es lo que recibe cada cliente conectado.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Hub mantiene las conexiones abiertas y difunde los avisos a todas.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Serve hace el upgrade de la petición y deja la conexión registrada hasta que el cliente se va.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	h.register(c)

	go h.readLoop(c)
}

// readLoop solo sirve para detectar el cierre; lo que mande el cliente se descarta.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("Client connected", zap.Int("clients", total))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// Broadcast envía el mensaje a todos los clientes. Es best effort: el que falla se desconecta
// y el resto sigue recibiendo.
func (h *Hub) Broadcast(event string, data interface{}) int {
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Warn("Dropping websocket client", zap.String("event", event), zap.Error(err))
			h.unregister(c)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close cierra todas las conexiones (apagado del servicio).
func (h *Hub) Close() {
	h.mu.Lock()
	targets := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range targets {
		_ = c.conn.Close()
	}
}
