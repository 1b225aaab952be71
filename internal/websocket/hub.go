package websocket

import (
	"bytes"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"derivbot/internal/models"
	"derivbot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON буферов убирает аллокации на каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями дашборда.
//
// Центральный менеджер broadcast сообщений: trade updates, уведомления,
// статистика и состояние движка уходят всем подключенным клиентам без
// необходимости polling.
//
// Использование:
//  1. Создать hub: hub := NewHub()
//  2. Запустить в горутине: go hub.Run()
//  3. Отправлять сообщения: hub.BroadcastNotification(n)
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run запускает главный цикл Hub.
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			utils.Infof("dashboard client connected, total clients: %d", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			utils.Infof("dashboard client disconnected, total clients: %d", total)

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock, отправляем без
			// блокировки, медленных удаляем под Write Lock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				utils.Warnf("removed %d slow dashboard clients, total clients: %d", len(toRemove), total)
			}
		}
	}
}

// Broadcast сериализует и отправляет сообщение всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		utils.Errorf("failed to marshal broadcast message: %v", err)
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	default:
		// Hub перегружен - дропаем, дашборд догонит по следующему апдейту
	}
}

// BroadcastTradeUpdate отправляет событие сделки аккаунта
func (h *Hub) BroadcastTradeUpdate(accountID string, data interface{}) {
	h.Broadcast(NewTradeUpdateMessage(accountID, data))
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(notification interface{}) {
	if n, ok := notification.(*models.Notification); ok {
		h.Broadcast(NewNotificationMessage(n))
		return
	}
	h.Broadcast(&StatsUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNotification, Timestamp: time.Now()},
		Data:        notification,
	})
}

// BroadcastStatsUpdate отправляет обновление статистики
func (h *Hub) BroadcastStatsUpdate(stats interface{}) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// BroadcastEngineStatus отправляет снимок состояния движка
func (h *Hub) BroadcastEngineStatus(status interface{}) {
	h.Broadcast(NewEngineStatusMessage(status))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
