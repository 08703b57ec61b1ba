package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/session"
	"github.com/park285/cheese-board/pkg/boarddto"
)

const wsWriteTimeout = 5 * time.Second

// handleWS upgrades to a WebSocket bound to one session. Each client frame
// is answered with the resulting state; changes made through other
// connections or the JSON API are pushed as they happen.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.URL.Query().Get("session"))
	if err != nil {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.fail(w, r, err)
		return
	}

	// the server's read/write timeouts would otherwise outlive the hijack
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	logger := s.logger.With(zap.String("session_id", sess.ID))
	logger.Debug("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := sess.Subscribe()
	defer sub.Cancel()

	if err := s.pushState(ctx, conn, sess); err != nil {
		logger.Debug("ws_initial_push_failed", zap.Error(err))
		return
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.C:
				if err := s.pushState(ctx, conn, sess); err != nil {
					return
				}
			}
		}
	}()

	for {
		var frame boarddto.ClientFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Debug("ws_closed")
			default:
				if !errors.Is(err, context.Canceled) {
					logger.Debug("ws_read_failed", zap.Error(err))
				}
			}
			return
		}
		if err := s.handleFrame(ctx, conn, sub, sess.ID, frame); err != nil {
			logger.Debug("ws_write_failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, conn *websocket.Conn, sub *session.Subscription, sessionID string, frame boarddto.ClientFrame) error {
	var event func(c *controller.Controller) (controller.Transition, error)
	switch frame.Type {
	case boarddto.FrameClick:
		event = clickEvent(frame.Square)
	case boarddto.FramePromotion:
		event = promotionEvent(frame.Piece)
	case boarddto.FrameNewGame:
		event = newGameEvent(frame.FEN)
	case boarddto.FrameUndo:
		event = undoEvent
	default:
		return writeFrame(ctx, conn, boarddto.ServerFrame{
			Type:  boarddto.FrameError,
			Error: &boarddto.Error{Code: "unknown_frame", Message: "unknown frame type " + frame.Type},
		})
	}

	resp, err := s.apply(sessionID, sub.Do, event)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("ws_event_failed", zap.String("session_id", sessionID), zap.String("frame", frame.Type), zap.Error(err))
		}
		return writeFrame(ctx, conn, boarddto.ServerFrame{
			Type:  boarddto.FrameError,
			Error: &boarddto.Error{Code: code, Message: err.Error()},
		})
	}
	return writeFrame(ctx, conn, boarddto.ServerFrame{
		Type:       boarddto.FrameState,
		Transition: resp.Transition,
		State:      resp.State,
	})
}

func (s *Server) pushState(ctx context.Context, conn *websocket.Conn, sess *session.Session) error {
	st, err := s.current(sess)
	if err != nil {
		return err
	}
	return writeFrame(ctx, conn, boarddto.ServerFrame{Type: boarddto.FrameState, State: st})
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame boarddto.ServerFrame) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}
