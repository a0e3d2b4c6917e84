package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"aquadash/internal/realtime"
	"aquadash/internal/sim"
	"aquadash/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	Hub         *sim.Hub
	TokenConfig token.Config
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes: broadcasts arrive from the telemetry
// ticker and from request handlers concurrently.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = bearerToken(c.GetHeader("Authorization"))
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if _, err := token.Verify(tokenString, h.TokenConfig); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sub := &sim.Subscriber{Writer: &wsWriter{conn: ws}}
	defer func() {
		h.Hub.Drop(sub)
		_ = ws.Close()
	}()

	ws.SetReadLimit(1024 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame realtime.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Topic == "" {
			continue
		}

		switch frame.Action {
		case realtime.ActionSubscribe:
			h.Hub.Subscribe(frame.Topic, sub)
		case realtime.ActionUnsubscribe:
			h.Hub.Unsubscribe(frame.Topic, sub)
		}
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
