package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jagmitg/botservice/runtime/logger"
	"github.com/jagmitg/botservice/runtime/types"
)

const closeGrace = time.Second

// StreamFrame is written for every turn received on /api/stream.
type StreamFrame struct {
	ConversationID string           `json:"conversationId"`
	Activities     []types.Activity `json:"activities,omitempty"`
	Status         int              `json:"status,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// WithCheckOrigin overrides the websocket origin check. The default rejects
// cross-origin browser requests.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) { s.checkOrigin = check }
}

// handleStream upgrades to a websocket and runs one turn per JSON frame.
// Frames without a conversation id join the connection's conversation, taken
// from the conversationId query parameter or generated.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	s.streams.add(conn)
	defer func() {
		s.streams.remove(conn)
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.maxBodySize)
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ctx := logger.WithConversationID(r.Context(), conversationID)
	logger.DebugContext(ctx, "stream opened")

	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		var turn types.Turn
		if err := conn.ReadJSON(&turn); err != nil {
			if isDecodeError(err) {
				if s.writeFrame(conn, StreamFrame{
					ConversationID: conversationID,
					Status:         http.StatusBadRequest,
					Error:          "invalid turn: " + err.Error(),
				}) != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnContext(ctx, "stream read failed", "error", err)
			}
			logger.DebugContext(ctx, "stream closed")
			return
		}
		if turn.ConversationID == "" {
			turn.ConversationID = conversationID
		}

		frame := StreamFrame{ConversationID: turn.ConversationID}
		activities, err := s.runTurn(ctx, turn)
		if err != nil {
			frame.Status, frame.Error = streamError(err)
			if frame.Status >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "turn failed", "error", err)
			}
		} else {
			frame.Activities = activities
		}
		if err := s.writeFrame(conn, frame); err != nil {
			logger.WarnContext(ctx, "stream write failed", "error", err)
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame StreamFrame) error {
	if s.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return conn.WriteJSON(frame)
}

func streamError(err error) (int, string) {
	var limited *rateLimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, err.Error()
	}
	status := turnStatus(err)
	if status >= http.StatusInternalServerError {
		return status, "turn failed"
	}
	return status, err.Error()
}

// isDecodeError reports whether a ReadJSON error came from the frame's
// payload. ReadJSON reports truncated or empty JSON as io.ErrUnexpectedEOF;
// connection failures surface as close errors instead.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// streamSet tracks open websocket connections so Shutdown can close them.
type streamSet struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newStreamSet() *streamSet {
	return &streamSet{conns: make(map[*websocket.Conn]struct{})}
}

func (s *streamSet) add(c *websocket.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *streamSet) remove(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *streamSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *streamSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for c := range s.conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		_ = c.Close()
	}
}
