// Package kds pushes realtime row changes and notifications to browser
// clients (floor, kitchen display and cashier screens) over websockets.
package kds

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/realtime"
)

// Event types besides the row actions
const (
	EventNotification = "notification"
	EventSubscribed   = "subscribed"
	EventError        = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is what clients receive.
type Message struct {
	Event string      `json:"event"`
	Table string      `json:"table,omitempty"`
	New   interface{} `json:"new,omitempty"`
	Old   interface{} `json:"old,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// Request is what clients send.
type Request struct {
	Action string                 `json:"action"`
	Table  string                 `json:"table"`
	Filter map[string]interface{} `json:"filter"`
}

type Subscriber interface {
	Subscribe(table string, filter realtime.Filter, h realtime.Handlers) (realtime.Unsubscribe, error)
}

type Listener interface {
	Listen(userID uint, fn func(models.Notification)) func()
}

// OrderScope reports whether an order belongs to a restaurant. order_items
// carry no restaurant column, so item events are checked through it.
type OrderScope func(restaurantID, orderID uint) bool

// scoped lists the tables a client may follow and the column pinned to its
// restaurant.
var scoped = map[string]string{
	"restaurants": "id",
	"tables":      "restaurant_id",
	"orders":      "restaurant_id",
	"products":    "restaurant_id",
	"categories":  "restaurant_id",
	"sales":       "restaurant_id",
	"order_items": "",
}

type Hub struct {
	reg   Subscriber
	notes Listener
	scope OrderScope
	log   *logrus.Entry

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(reg Subscriber, notes Listener, scope OrderScope, log *logrus.Logger) *Hub {
	return &Hub{
		reg:     reg,
		notes:   notes,
		scope:   scope,
		log:     log.WithField("component", "kds"),
		clients: make(map[*Client]struct{}),
	}
}

// Client is one websocket connection.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	UserID       uint
	Role         string
	RestaurantID uint

	send      chan []byte
	mu        sync.Mutex
	subs      map[string]realtime.Unsubscribe
	stopNotes func()
	closeOnce sync.Once
}

// Serve runs the connection until the client goes away.
func (h *Hub) Serve(conn *websocket.Conn, userID uint, role string, restaurantID uint) {
	c := &Client{
		hub:          h,
		conn:         conn,
		UserID:       userID,
		Role:         role,
		RestaurantID: restaurantID,
		send:         make(chan []byte, sendBuffer),
		subs:         make(map[string]realtime.Unsubscribe),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("client connected")

	if h.notes != nil {
		c.stopNotes = h.notes.Listen(userID, func(n models.Notification) {
			c.push(Message{Event: EventNotification, Data: n})
		})
	}

	go c.writePump()
	c.readPump()
	c.close()
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.push(Message{Event: EventError, Data: "mensagem inválida"})
			continue
		}
		switch req.Action {
		case "subscribe":
			if err := c.subscribe(req.Table, req.Filter); err != nil {
				c.push(Message{Event: EventError, Table: req.Table, Data: err.Error()})
				continue
			}
			c.push(Message{Event: EventSubscribed, Table: req.Table, Data: req.Filter})
		case "unsubscribe":
			c.unsubscribe(req.Table, req.Filter)
		default:
			c.push(Message{Event: EventError, Data: "ação desconhecida"})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func subKey(table string, filter map[string]interface{}) string {
	raw, _ := json.Marshal(filter)
	return table + "?" + string(raw)
}

func (c *Client) subscribe(table string, filter map[string]interface{}) error {
	col, ok := scoped[table]
	if !ok {
		return errors.New("tabela não disponível")
	}
	f := realtime.Filter{}
	for k, v := range filter {
		f[k] = v
	}
	if col != "" {
		f[col] = c.RestaurantID
	}

	key := subKey(table, filter)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		return errors.New("conexão encerrada")
	}
	if _, dup := c.subs[key]; dup {
		return nil
	}

	forward := func(ev realtime.Event) {
		if table == "order_items" && !c.owns(ev) {
			return
		}
		c.push(Message{Event: ev.Action, Table: ev.Table, New: ev.New, Old: ev.Old})
	}
	unsub, err := c.hub.reg.Subscribe(table, f, realtime.Handlers{OnInsert: forward, OnUpdate: forward, OnDelete: forward})
	if err != nil {
		return err
	}
	c.subs[key] = unsub
	return nil
}

func (c *Client) owns(ev realtime.Event) bool {
	if c.hub.scope == nil {
		return false
	}
	orderID, ok := ev.Row()["order_id"].(float64)
	return ok && c.hub.scope(c.RestaurantID, uint(orderID))
}

func (c *Client) unsubscribe(table string, filter map[string]interface{}) {
	key := subKey(table, filter)
	c.mu.Lock()
	unsub := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// push queues msg without blocking. Slow clients lose messages and are
// expected to refresh.
func (c *Client) push(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.WithError(err).Error("encoding websocket message")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.hub.log.WithField("user_id", c.UserID).Warn("client send buffer full, message dropped")
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()

		if c.stopNotes != nil {
			c.stopNotes()
		}
		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		close(c.send)
		c.mu.Unlock()
		for _, unsub := range subs {
			unsub()
		}
		c.hub.log.WithField("user_id", c.UserID).Info("client disconnected")
	})
}

// Broadcast sends msg to every client of a restaurant.
func (h *Hub) Broadcast(restaurantID uint, msg Message) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.RestaurantID == restaurantID {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.push(msg)
	}
}

// Clients reports how many connections are open.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
}
