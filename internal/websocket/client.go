package websocket

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"derivbot/pkg/utils"
)

const (
	// Таймаут записи сообщения клиенту
	writeWait = 10 * time.Second

	// Таймаут ожидания pong от клиента
	pongWait = 60 * time.Second

	// Период отправки ping (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 65536

	// Размер буфера исходящих сообщений клиента
	clientSendBufferSize = 512
)

// OriginChecker проверяет Origin входящих WebSocket соединений.
// Список разрешенных доменов берется из ALLOWED_ORIGINS (через запятую).
// Пустой список разрешает все соединения (dev режим).
type OriginChecker struct {
	allowed map[string]bool
}

// NewOriginChecker создает проверку Origin из переменной окружения
func NewOriginChecker() *OriginChecker {
	checker := &OriginChecker{allowed: make(map[string]bool)}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			checker.allowed[origin] = true
		}
	}
	return checker
}

// Check возвращает true если Origin запроса разрешен
func (c *OriginChecker) Check(r *http.Request) bool {
	if len(c.allowed) == 0 {
		return true
	}
	return c.allowed[r.Header.Get("Origin")]
}

var originChecker = NewOriginChecker()

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin:       originChecker.Check,
}

// Пул клиентов - переиспользуем структуры при реконнектах дашборда
var clientPool = sync.Pool{
	New: func() interface{} {
		return &Client{
			send: make(chan []byte, clientSendBufferSize),
		}
	},
}

// Client - одно WebSocket соединение дашборда
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func getClient(hub *Hub, conn *websocket.Conn) *Client {
	client := clientPool.Get().(*Client)
	client.hub = hub
	client.conn = conn
	if client.send == nil {
		client.send = make(chan []byte, clientSendBufferSize)
	}
	return client
}

func (c *Client) returnToPool() {
	c.hub = nil
	c.conn = nil
	// Канал send закрыт hub-ом, создаем новый для переиспользования
	c.send = make(chan []byte, clientSendBufferSize)
	clientPool.Put(c)
}

// readPump читает сообщения от клиента.
// Дашборд ничего не шлет кроме pong, но читать обязаны -
// иначе не обрабатываются control frames.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.returnToPool()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.Warnf("websocket read error: %v", err)
			}
			return
		}
	}
}

// writePump пишет сообщения из канала send клиенту.
// Накопившиеся сообщения отправляются одним фреймом через newline.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Дренируем очередь в тот же фрейм
		drainLoop:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drainLoop
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drainLoop
				}
			}

			if err := w.Close(); err != nil {
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

// ServeWS обрабатывает HTTP запрос на апгрейд до WebSocket
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := getClient(hub, conn)
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
