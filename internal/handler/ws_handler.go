package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Krisp140/sebi/internal/comic"
	"github.com/Krisp140/sebi/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения от клиента.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяется CORS middleware для обычных запросов, для WS принимаем любой
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS GET /api/comics/ws. Каждое текстовое сообщение {prompt} запускает генерацию
// в сессии соединения, события приходят JSON фреймами.
func (h *ComicHandler) serveWS(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := h.requestLogger(c).With(zap.String("session_id", sessionID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader уже ответил клиенту
		log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	log.Info("WebSocket connection established")

	client := &wsClient{
		conn:      conn,
		sessionID: sessionID,
		comics:    h.comics,
		logger:    log,
	}
	client.run(c.Request.Context())
	log.Info("WebSocket connection closed")
}

// wsClient одно WebSocket соединение. Запись сериализуется мьютексом,
// чтение идет в одной горутине.
type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	comics    ComicService
	logger    *zap.Logger

	writeMu sync.Mutex
}

func (w *wsClient) run(parent context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	var wg sync.WaitGroup

	pingDone := make(chan struct{})
	go w.pingLoop(pingDone)

	w.readLoop(ctx, &wg)

	// Клиент ушел: останавливаем генерации и ждем их завершения
	cancel()
	wg.Wait()
	close(pingDone)
	_ = w.conn.Close()
}

func (w *wsClient) readLoop(ctx context.Context, wg *sync.WaitGroup) {
	w.conn.SetReadLimit(maxMessageSize)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				w.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var req promptRequest
		if err := json.Unmarshal(message, &req); err != nil {
			w.logger.Debug("Invalid WebSocket message", zap.Error(err))
			w.emitError(ctx, "Invalid request body")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			w.generate(ctx, req.Prompt)
		}()
	}
}

func (w *wsClient) generate(ctx context.Context, prompt string) {
	tracked := &trackingEmitter{next: w}
	err := w.comics.Generate(ctx, w.sessionID, prompt, comic.NewEventSink(w.sessionID, tracked, w.logger))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	if !tracked.sent.Load() {
		// Запуск отклонен до первого события
		w.emitError(ctx, comic.UserMessage(err))
	}
}

func (w *wsClient) emitError(ctx context.Context, message string) {
	ev := domain.ComicEvent{
		SessionID: w.sessionID,
		Type:      domain.EventError,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := w.Emit(ctx, ev); err != nil {
		w.logger.Warn("Failed to send error event", zap.Error(err))
	}
}

// Emit отправляет событие одним текстовым фреймом.
func (w *wsClient) Emit(_ context.Context, ev domain.ComicEvent) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(ev)
}

func (w *wsClient) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := w.conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				w.logger.Debug("WebSocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// trackingEmitter запоминает, ушло ли клиенту хотя бы одно событие.
type trackingEmitter struct {
	next comic.Emitter
	sent atomic.Bool
}

func (t *trackingEmitter) Emit(ctx context.Context, ev domain.ComicEvent) error {
	t.sent.Store(true)
	return t.next.Emit(ctx, ev)
}
