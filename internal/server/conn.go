package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/adewale/keyboardia/internal/coordinator"
	"github.com/adewale/keyboardia/internal/message"
	"github.com/adewale/keyboardia/internal/state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	sess, err := s.hub.Open(r.Context(), sessionID)
	if err != nil {
		slog.Error("open session failed", "session", sessionID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}

	frames, unsubscribe := sess.Subscribe(clientID)
	c := &wsConn{
		conn:     conn,
		sess:     sess,
		clientID: clientID,
		frames:   frames,
		errs:     make(chan []byte, 8),
		done:     make(chan struct{}),
	}

	slog.Info("client connected", "session", sessionID, "client", clientID)

	go func() {
		c.writePump()
		unsubscribe()
	}()
	c.readPump()
	close(c.done)

	slog.Info("client disconnected", "session", sessionID, "client", clientID)
}

type wsConn struct {
	conn     *websocket.Conn
	sess     *coordinator.Session
	clientID string
	frames   <-chan []byte
	errs     chan []byte // error frames queued by the read pump
	done     chan struct{}
}

// readPump decodes client messages into coordinator events. A malformed
// message earns an error frame; only transport failure ends the loop.
func (c *wsConn) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(state.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// A fresh connection always gets the full document first.
	c.sess.Submit(coordinator.Event{
		ClientID: c.clientID,
		Msg:      &message.RequestSnapshot{},
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("read failed", "client", c.clientID, "error", err)
			}
			return
		}

		msg, clientSeq, err := message.DecodeClient(data)
		if err != nil {
			slog.Warn("rejecting message", "client", c.clientID, "error", err)
			c.sendError(err.Error())
			continue
		}

		if !c.sess.Submit(coordinator.Event{
			ClientID:  c.clientID,
			ClientSeq: clientSeq,
			Msg:       msg,
		}) {
			slog.Warn("session stopped, closing connection", "client", c.clientID)
			return
		}
	}
}

// writePump drains broadcast frames and keeps the connection alive with
// pings. Runs until the frame channel closes or a write fails.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.frames:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case frame := <-c.errs:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// sendError queues an error frame for the write pump. The connection is
// the wrong place to block, so a backed-up error queue just drops.
func (c *wsConn) sendError(msg string) {
	frame, err := message.EncodeFrame(&message.ServerFrame{
		Type:  message.FrameError,
		Error: msg,
	})
	if err != nil {
		return
	}
	select {
	case c.errs <- frame:
	default:
	}
}
