package kds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

// Event types
const (
	EventOrdersUpdated = "orders:updated"
)

const (
	writeWait = 5 * time.Second
	// slot antrian per client; client yang penuh dianggap macet dan diputus
	sendBuffer = 16
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type OrdersUpdated struct {
	BranchID string `json:"branch_id"`
	MesaID   string `json:"mesa_id"`
}

type client struct {
	conn     *websocket.Conn
	role     string
	branchID string
	send     chan []byte
}

// Hub menampung semua dashboard staff yang terhubung, dikelompokkan per branch.
type Hub struct {
	clients map[*websocket.Conn]*client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// RegisterClient adds a connection and starts its writer. An empty branchID receives every branch.
func (h *Hub) RegisterClient(conn *websocket.Conn, role, branchID string) {
	c := &client{conn: conn, role: role, branchID: branchID, send: make(chan []byte, sendBuffer)}
	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()
	go h.writePump(c)
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(conn)
}

// removeLocked closes send; writePump then closes the socket.
func (h *Hub) removeLocked(conn *websocket.Conn) {
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"role":      c.role,
				"branch_id": c.branchID,
			}).Warnf("dropping websocket client: %v", err)
			h.UnregisterClient(c.conn)
			return
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// PublishOrdersUpdated broadcasts locally; it only fails on encoding errors.
func (h *Hub) PublishOrdersUpdated(ctx context.Context, branchID, mesaID string) error {
	return h.Broadcast(branchID, Message{
		Event: EventOrdersUpdated,
		Data:  OrdersUpdated{BranchID: branchID, MesaID: mesaID},
	})
}

// Broadcast only enqueues; it never waits on a socket.
func (h *Hub) Broadcast(branchID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, c := range h.clients {
		if c.branchID != "" && c.branchID != branchID {
			continue
		}
		select {
		case c.send <- data:
		default:
			utils.ErrorLogger.WithFields(logrus.Fields{
				"role":      c.role,
				"branch_id": c.branchID,
			}).Warn("websocket client too slow, dropping")
			h.removeLocked(conn)
		}
	}
	return nil
}
