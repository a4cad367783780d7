package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/metrics"
	"github.com/normanking/switchboard/internal/router"
)

const (
	wsMaxMessageBytes = 64 << 10
	wsPongWait        = 60 * time.Second
	wsPingPeriod      = wsPongWait * 9 / 10
	wsWriteWait       = 10 * time.Second
)

// WSMessage is the frame exchanged over /ws. Clients send type "message";
// the server answers with "response" or "error".
type WSMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Route   string `json:"route,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// handleWebSocket runs a chat session. Messages on one connection are
// answered in order; the user id comes from the query string unless a
// frame names one.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("websocket upgrade failed: %v", err)
		return
	}
	log := logging.FromContext(r.Context())
	userID := r.URL.Query().Get("user_id")

	s.trackConn(conn, true)
	metrics.ActiveSessions.Inc()
	defer func() {
		metrics.ActiveSessions.Dec()
		s.trackConn(conn, false)
		conn.Close()
	}()

	conn.SetReadLimit(wsMaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := s.answerFrame(r, msg, userID)
		if err := s.writeFrame(conn, reply); err != nil {
			log.Warn("websocket write: %v", err)
			return
		}
	}
}

func (s *Server) answerFrame(r *http.Request, msg WSMessage, userID string) WSMessage {
	if msg.Type != "message" {
		return WSMessage{Type: "error", Content: "unsupported frame type " + msg.Type}
	}
	if msg.UserID != "" {
		userID = msg.UserID
	}

	res, err := s.responder.Respond(r.Context(), msg.Content, userID)
	switch {
	case errors.Is(err, router.ErrEmptyMessage):
		return WSMessage{Type: "error", Content: "message is required"}
	case err != nil:
		logging.FromContext(r.Context()).Error("websocket query failed: %v", err)
		return WSMessage{Type: "error", Content: "internal error"}
	}
	return WSMessage{
		Type:    "response",
		Content: strings.TrimSpace(res.Response),
		Route:   string(res.Route),
		Reason:  res.Reason,
	}
}

// writeFrame is only called from the connection's read loop, the single
// data writer. Pings go through WriteControl, which is concurrency-safe.
func (s *Server) writeFrame(conn *websocket.Conn, msg WSMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
