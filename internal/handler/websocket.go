package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"support_chat/internal/domain"
	"support_chat/internal/middleware"
	"support_chat/internal/service"
	"support_chat/internal/view"
	"support_chat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512

	defaultPingInterval = 30 * time.Second
)

// snapshotFrame - единственный тип исходящих сообщений: полное состояние экрана
type snapshotFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type listFrame struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
	Stats         *domain.DashboardStats       `json:"stats,omitempty"`
	Loaded        bool                         `json:"loaded"`
	Error         string                       `json:"error,omitempty"`
}

// liveView - общее у MessageView и ConversationListView
type liveView interface {
	Changes() <-chan struct{}
	Done() <-chan struct{}
	Close()
}

// WebSocketHandler стримит снимки представлений: первый кадр сразу после
// подключения, следующий на каждое изменение.
type WebSocketHandler struct {
	convs        service.ConversationService
	msgs         service.MessageService
	hub          view.Subscriber
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	log          logger.Logger
}

func NewWebSocketHandler(convs service.ConversationService, msgs service.MessageService, hub view.Subscriber, allowedOrigins []string, pingInterval time.Duration, log logger.Logger) *WebSocketHandler {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &WebSocketHandler{
		convs: convs,
		msgs:  msgs,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingInterval: pingInterval,
		log:          log,
	}
}

// originChecker пропускает запросы без Origin (не браузер) и origin из списка; "*" - любой
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// CustomerConversations - живой список обращений клиента
func (h *WebSocketHandler) CustomerConversations(c *gin.Context) {
	customerID := middleware.UserID(c)
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	v := view.NewCustomerListView(c.Request.Context(), customerID, h.convs, h.hub, h.log)
	h.stream(conn, v, func() interface{} {
		return customerListFrame(v.Snapshot(), time.Now())
	})
}

// CustomerConversation - живая переписка; доступ проверяется до апгрейда
func (h *WebSocketHandler) CustomerConversation(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}
	if err := h.convs.CheckCustomerAccess(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		abort(c, err)
		return
	}

	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	v := view.NewMessageView(c.Request.Context(), id, h.convs, h.msgs, h.hub, h.log)
	h.stream(conn, v, func() interface{} { return v.Snapshot() })
}

// AgentConversations - живой список всех обращений со счетчиками
func (h *WebSocketHandler) AgentConversations(c *gin.Context) {
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	v := view.NewAgentListView(c.Request.Context(), h.convs, h.hub, h.log)
	h.stream(conn, v, func() interface{} {
		return agentListFrame(v.Snapshot(), time.Now())
	})
}

func (h *WebSocketHandler) AgentConversation(c *gin.Context) {
	id, err := conversationIDParam(c)
	if err != nil {
		abort(c, err)
		return
	}
	if _, err := h.convs.GetConversation(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}

	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	v := view.NewMessageView(c.Request.Context(), id, h.convs, h.msgs, h.hub, h.log)
	h.stream(conn, v, func() interface{} { return v.Snapshot() })
}

func (h *WebSocketHandler) upgrade(c *gin.Context) (*websocket.Conn, bool) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade сам пишет ответ с ошибкой
		h.log.Warn("Failed to upgrade connection", "error", err, "path", c.FullPath())
		return nil, false
	}
	return conn, true
}

// stream пишет снимки до закрытия соединения клиентом или ошибки записи.
// Входящие сообщения читаются только ради обнаружения закрытия и pong.
func (h *WebSocketHandler) stream(conn *websocket.Conn, v liveView, snapshot func() interface{}) {
	defer conn.Close()
	defer v.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxInboundSize)
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	if err := h.writeSnapshot(conn, snapshot()); err != nil {
		return
	}

	changes := v.Changes()
	for {
		select {
		case <-done:
			return
		case <-v.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := h.writeSnapshot(conn, snapshot()); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.log.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeSnapshot(conn *websocket.Conn, data interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshotFrame{Type: "snapshot", Data: data}); err != nil {
		h.log.Debug("Failed to write snapshot", "error", err)
		return err
	}
	return nil
}

func customerListFrame(s view.ListSnapshot, now time.Time) listFrame {
	return listFrame{
		Conversations: domain.SummarizeAll(s.Conversations, domain.RoleUser, now),
		Loaded:        s.Loaded,
		Error:         s.Error,
	}
}

func agentListFrame(s view.ListSnapshot, now time.Time) listFrame {
	summaries := domain.SummarizeAll(s.Conversations, domain.RoleAgent, now)
	stats := domain.CountByStatus(summaries)
	return listFrame{
		Conversations: summaries,
		Stats:         &stats,
		Loaded:        s.Loaded,
		Error:         s.Error,
	}
}
