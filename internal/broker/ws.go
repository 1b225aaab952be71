package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"derivbot/pkg/utils"
)

// WSConfig - параметры устойчивого WebSocket соединения с брокером
type WSConfig struct {
	// Начальная задержка перед переподключением
	InitialDelay time.Duration
	// Максимальная задержка после exponential backoff
	MaxDelay time.Duration
	// Максимальное количество попыток (0 = бесконечно)
	MaxRetries int
	// Таймаут подключения
	ConnectTimeout time.Duration
	// Интервал ping для проверки соединения
	PingInterval time.Duration
	// Таймаут записи ping
	PongTimeout time.Duration
}

// DefaultWSConfig возвращает конфигурацию по умолчанию: 2s, 4s, 8s, 16s
func DefaultWSConfig() WSConfig {
	return WSConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     0,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
	}
}

// WSState состояние WebSocket соединения
type WSState int32

const (
	WSDisconnected WSState = iota
	WSConnecting
	WSConnected
	WSReconnecting
	WSClosed
)

func (s WSState) String() string {
	switch s {
	case WSDisconnected:
		return "disconnected"
	case WSConnecting:
		return "connecting"
	case WSConnected:
		return "connected"
	case WSReconnecting:
		return "reconnecting"
	case WSClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WSManager держит одно WebSocket соединение с брокером и автоматически
// переподключается при разрывах с exponential backoff.
//
// После переподключения заново выполняется аутентификация (authFunc) -
// без неё торговые запросы брокер отклоняет.
type WSManager struct {
	name  string
	wsURL string

	config WSConfig

	conn   *websocket.Conn
	connMu sync.RWMutex

	state      int32 // atomic WSState
	retryCount int32 // atomic

	closeChan chan struct{}

	onMessage    func([]byte)
	onConnect    func()
	onDisconnect func(error)
	callbackMu   sync.RWMutex

	// Аутентификация после (пере)подключения
	authFunc func(*websocket.Conn) error
}

// NewWSManager создаёт менеджер соединения
func NewWSManager(name, wsURL string, config WSConfig) *WSManager {
	return &WSManager{
		name:      name,
		wsURL:     wsURL,
		config:    config,
		closeChan: make(chan struct{}),
	}
}

// SetOnMessage устанавливает callback для входящих сообщений
func (m *WSManager) SetOnMessage(handler func([]byte)) {
	m.callbackMu.Lock()
	m.onMessage = handler
	m.callbackMu.Unlock()
}

// SetOnConnect устанавливает callback для события подключения
func (m *WSManager) SetOnConnect(handler func()) {
	m.callbackMu.Lock()
	m.onConnect = handler
	m.callbackMu.Unlock()
}

// SetOnDisconnect устанавливает callback для события отключения
func (m *WSManager) SetOnDisconnect(handler func(error)) {
	m.callbackMu.Lock()
	m.onDisconnect = handler
	m.callbackMu.Unlock()
}

// SetAuthFunc устанавливает функцию аутентификации
func (m *WSManager) SetAuthFunc(authFunc func(*websocket.Conn) error) {
	m.authFunc = authFunc
}

// State возвращает текущее состояние соединения
func (m *WSManager) State() WSState {
	return WSState(atomic.LoadInt32(&m.state))
}

// IsConnected проверяет, установлено ли соединение
func (m *WSManager) IsConnected() bool {
	return m.State() == WSConnected
}

// Connect устанавливает соединение и запускает горутины чтения и ping
func (m *WSManager) Connect() error {
	select {
	case <-m.closeChan:
		return fmt.Errorf("manager is closed")
	default:
	}

	atomic.StoreInt32(&m.state, int32(WSConnecting))

	if err := m.dial(); err != nil {
		atomic.StoreInt32(&m.state, int32(WSDisconnected))
		return err
	}

	atomic.StoreInt32(&m.state, int32(WSConnected))
	atomic.StoreInt32(&m.retryCount, 0)
	UpdateConnectionStatus(true)

	m.callbackMu.RLock()
	onConnect := m.onConnect
	m.callbackMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}

	go m.readPump()
	go m.pingPump()

	utils.Infof("[%s] websocket connected to %s", m.name, m.wsURL)

	return nil
}

// dial выполняет подключение и аутентификацию
func (m *WSManager) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.ConnectTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial error: %w", err)
	}

	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	if m.authFunc != nil {
		if err := m.authFunc(conn); err != nil {
			conn.Close()
			m.connMu.Lock()
			m.conn = nil
			m.connMu.Unlock()
			return fmt.Errorf("auth error: %w", err)
		}
	}

	return nil
}

// readPump читает сообщения из WebSocket
func (m *WSManager) readPump() {
	for {
		select {
		case <-m.closeChan:
			return
		default:
		}

		m.connMu.RLock()
		conn := m.conn
		m.connMu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(err)
			return
		}

		m.callbackMu.RLock()
		onMessage := m.onMessage
		m.callbackMu.RUnlock()

		if onMessage != nil {
			onMessage(message)
		}
	}
}

// pingPump отправляет ping для проверки соединения
func (m *WSManager) pingPump() {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.closeChan:
			return
		case <-ticker.C:
			m.connMu.RLock()
			conn := m.conn
			m.connMu.RUnlock()

			if conn == nil || m.State() != WSConnected {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(m.config.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				utils.Warnf("[%s] ping error: %v", m.name, err)
				m.handleDisconnect(err)
				return
			}
		}
	}
}

// handleDisconnect обрабатывает разрыв соединения
func (m *WSManager) handleDisconnect(err error) {
	select {
	case <-m.closeChan:
		return
	default:
	}

	// Избегаем повторной обработки
	state := m.State()
	if state == WSReconnecting || state == WSClosed {
		return
	}

	atomic.StoreInt32(&m.state, int32(WSReconnecting))
	UpdateConnectionStatus(false)

	m.connMu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connMu.Unlock()

	m.callbackMu.RLock()
	onDisconnect := m.onDisconnect
	m.callbackMu.RUnlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}

	if err != nil {
		utils.Warnf("[%s] websocket disconnected: %v", m.name, err)
	}

	go m.reconnectLoop()
}

// reconnectLoop выполняет переподключение с exponential backoff
func (m *WSManager) reconnectLoop() {
	delay := m.config.InitialDelay

	for {
		select {
		case <-m.closeChan:
			return
		default:
		}

		retryCount := atomic.AddInt32(&m.retryCount, 1)
		RecordReconnect()

		if m.config.MaxRetries > 0 && int(retryCount) > m.config.MaxRetries {
			utils.Errorf("[%s] max reconnect attempts (%d) reached", m.name, m.config.MaxRetries)
			atomic.StoreInt32(&m.state, int32(WSDisconnected))
			return
		}

		utils.Infof("[%s] reconnecting in %v (attempt %d)...", m.name, delay, retryCount)

		select {
		case <-m.closeChan:
			return
		case <-time.After(delay):
		}

		if err := m.dial(); err != nil {
			utils.Warnf("[%s] reconnect failed: %v", m.name, err)

			delay = delay * 2
			if delay > m.config.MaxDelay {
				delay = m.config.MaxDelay
			}
			continue
		}

		atomic.StoreInt32(&m.state, int32(WSConnected))
		atomic.StoreInt32(&m.retryCount, 0)
		UpdateConnectionStatus(true)

		m.callbackMu.RLock()
		onConnect := m.onConnect
		m.callbackMu.RUnlock()
		if onConnect != nil {
			onConnect()
		}

		utils.Infof("[%s] websocket reconnected", m.name)

		go m.readPump()
		go m.pingPump()

		return
	}
}

// Send отправляет сообщение через WebSocket
func (m *WSManager) Send(msg interface{}) error {
	if m.State() != WSConnected {
		return fmt.Errorf("%w (state: %s)", ErrNotConnected, m.State())
	}

	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	return conn.WriteJSON(msg)
}

// SendRaw отправляет уже сериализованное сообщение
func (m *WSManager) SendRaw(payload []byte) error {
	if m.State() != WSConnected {
		return fmt.Errorf("%w (state: %s)", ErrNotConnected, m.State())
	}

	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close закрывает соединение и останавливает переподключение
func (m *WSManager) Close() error {
	select {
	case <-m.closeChan:
		return nil
	default:
		close(m.closeChan)
	}

	atomic.StoreInt32(&m.state, int32(WSClosed))
	UpdateConnectionStatus(false)

	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}

	return nil
}

// RetryCount возвращает текущее количество попыток переподключения
func (m *WSManager) RetryCount() int {
	return int(atomic.LoadInt32(&m.retryCount))
}
