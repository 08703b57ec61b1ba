// Package server exposes the board over HTTP: a static page, a JSON API per
// session and a WebSocket that pushes state after every event.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/adapter/boardpresenter"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/render"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/internal/session"
	"github.com/park285/cheese-board/internal/view"
	"github.com/park285/cheese-board/pkg/boarddto"
)

//go:embed web
var webFS embed.FS

// AssetStore is the part of the asset loader the server reads from.
type AssetStore interface {
	Ready() bool
	SVG(p board.Piece) ([]byte, bool)
}

type Options struct {
	Registry *session.Registry
	Assets   AssetStore
	Renderer *render.Renderer
	Deriver  *view.Deriver
	Logger   *zap.Logger
}

type Server struct {
	registry *session.Registry
	assets   AssetStore
	renderer *render.Renderer
	deriver  *view.Deriver
	logger   *zap.Logger
	static   fs.FS

	srvMu sync.Mutex
	srv   *http.Server
}

const (
	maxJSONBodyBytes int64 = 1 << 16
	htmlCSP                = "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; connect-src 'self'; frame-ancestors 'none'; base-uri 'none'; form-action 'self'"
	apiCSP                 = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
)

func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("server: session registry is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("server: asset store is required")
	}
	if opts.Deriver == nil {
		opts.Deriver = view.NewDeriver(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	static, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, fmt.Errorf("server: static files: %w", err)
	}
	return &Server{
		registry: opts.Registry,
		assets:   opts.Assets,
		renderer: opts.Renderer,
		deriver:  opts.Deriver,
		logger:   opts.Logger,
		static:   static,
	}, nil
}

// Listen serves on addr until Close is called.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	s.logger.Info("http_listening", zap.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close attempts a graceful shutdown.
func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the routed handler; tests mount it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", http.StripPrefix("/static/", s.staticHandler()))
	mux.HandleFunc("GET /pieces/{file}", s.handlePiece)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/sessions", s.withJSON(s.handleCreate))
	mux.HandleFunc("GET /api/sessions/{id}", s.withJSON(s.handleState))
	mux.HandleFunc("POST /api/sessions/{id}/click", s.withJSON(s.handleClick))
	mux.HandleFunc("POST /api/sessions/{id}/promotion", s.withJSON(s.handlePromotion))
	mux.HandleFunc("POST /api/sessions/{id}/new", s.withJSON(s.handleNewGame))
	mux.HandleFunc("POST /api/sessions/{id}/undo", s.withJSON(s.handleUndo))
	mux.HandleFunc("GET /api/sessions/{id}/board.png", s.handleBoardPNG)

	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// ---- UI ----

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	applyHTMLSecurityHeaders(w.Header())
	page, err := fs.ReadFile(s.static, "index.html")
	if err != nil {
		s.logger.Error("index_read_failed", zap.Error(err))
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) staticHandler() http.Handler {
	files := http.FileServerFS(s.static)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		applyHTMLSecurityHeaders(w.Header())
		files.ServeHTTP(w, r)
	})
}

func (s *Server) handlePiece(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePieceFile(r.PathValue("file"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, ok := s.assets.SVG(p)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

// parsePieceFile accepts names like "wq.svg".
func parsePieceFile(name string) (board.Piece, bool) {
	code, ok := strings.CutSuffix(name, ".svg")
	if !ok || len(code) != 2 {
		return board.Piece{}, false
	}
	var color board.Color
	switch code[0] {
	case 'w':
		color = board.White
	case 'b':
		color = board.Black
	default:
		return board.Piece{}, false
	}
	t, err := board.ParsePieceType(code[1:])
	if err != nil || code[1] < 'a' {
		return board.Piece{}, false
	}
	return board.Piece{Type: t, Color: color}, true
}

// ---- JSON helpers ----

func (s *Server) withJSON(h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applyAPISecurityHeaders(w.Header())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.WriteHeader(status)
	writeJSON(w, map[string]boarddto.Error{"error": {Code: code, Message: msg}})
}

// decodeBody reads an optional JSON body into v. It reports false after
// writing the error response.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	if isBodyTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
	return false
}

func applyHTMLSecurityHeaders(h http.Header) {
	h.Set("Content-Security-Policy", htmlCSP)
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("X-Content-Type-Options", "nosniff")
}

func applyAPISecurityHeaders(h http.Header) {
	h.Set("Content-Security-Policy", apiCSP)
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("X-Content-Type-Options", "nosniff")
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var decodeErr *board.DecodeError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrTooManySessions), errors.Is(err, session.ErrRegistryClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, board.ErrInvalidSquare):
		return http.StatusBadRequest, "invalid_square"
	case errors.Is(err, controller.ErrInvalidPromotion):
		return http.StatusBadRequest, "invalid_piece"
	case errors.Is(err, controller.ErrNoPendingPromotion):
		return http.StatusConflict, "no_pending_promotion"
	case errors.Is(err, rules.ErrInvalidPosition):
		return http.StatusBadRequest, "invalid_position"
	case errors.As(err, &decodeErr):
		return http.StatusInternalServerError, "decode_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http_request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, err.Error())
}

// ---- sessions ----

func (s *Server) state(sessionID string, c *controller.Controller) (*boarddto.State, error) {
	return boardpresenter.ToDTOState(sessionID, c, s.deriver.Derive(c.Snapshot()), s.assets.Ready())
}

// apply runs one event through do and presents the result. do is the
// session's Do, or a subscription's Do when the caller already gets the
// result directly.
func (s *Server) apply(sessionID string, do func(fn func(c *controller.Controller) error) error, event func(c *controller.Controller) (controller.Transition, error)) (*boarddto.Response, error) {
	var resp *boarddto.Response
	err := do(func(c *controller.Controller) error {
		tr, err := event(c)
		if err != nil {
			return err
		}
		st, err := s.state(sessionID, c)
		if err != nil {
			return err
		}
		resp = &boarddto.Response{Transition: tr.String(), State: st}
		return nil
	})
	return resp, err
}

func (s *Server) current(sess *session.Session) (*boarddto.State, error) {
	var st *boarddto.State
	err := sess.View(func(c *controller.Controller) error {
		var err error
		st, err = s.state(sess.ID, c)
		return err
	})
	return st, err
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Create()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.current(sess)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, boarddto.Response{State: st})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.current(sess)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, boarddto.Response{State: st})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var body boarddto.ClickRequest
	if !decodeBody(w, r, &body) {
		return
	}
	s.handleEvent(w, r, clickEvent(body.Square))
}

func (s *Server) handlePromotion(w http.ResponseWriter, r *http.Request) {
	var body boarddto.PromotionRequest
	if !decodeBody(w, r, &body) {
		return
	}
	s.handleEvent(w, r, promotionEvent(body.Piece))
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var body boarddto.NewGameRequest
	if !decodeBody(w, r, &body) {
		return
	}
	s.handleEvent(w, r, newGameEvent(body.FEN))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.handleEvent(w, r, undoEvent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, event func(c *controller.Controller) (controller.Transition, error)) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.apply(sess.ID, sess.Do, event)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func clickEvent(coord string) func(c *controller.Controller) (controller.Transition, error) {
	return func(c *controller.Controller) (controller.Transition, error) {
		sq, err := board.ParseSquare(coord)
		if err != nil {
			return controller.None, err
		}
		return c.Click(sq)
	}
}

func promotionEvent(piece string) func(c *controller.Controller) (controller.Transition, error) {
	return func(c *controller.Controller) (controller.Transition, error) {
		t, err := board.ParsePieceType(strings.TrimSpace(piece))
		if err != nil {
			return controller.None, fmt.Errorf("%w: %v", controller.ErrInvalidPromotion, err)
		}
		return c.ChoosePromotion(t)
	}
}

func newGameEvent(fen string) func(c *controller.Controller) (controller.Transition, error) {
	return func(c *controller.Controller) (controller.Transition, error) {
		var err error
		if strings.TrimSpace(fen) == "" {
			err = c.NewGame()
		} else {
			err = c.Load(fen)
		}
		if err != nil {
			return controller.None, err
		}
		return controller.Reset, nil
	}
}

func undoEvent(c *controller.Controller) (controller.Transition, error) {
	undone, err := c.Undo()
	if err != nil || !undone {
		return controller.None, err
	}
	return controller.Undone, nil
}

// ---- board image ----

func (s *Server) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		writeError(w, http.StatusNotFound, "no_renderer", "board rendering disabled")
		return
	}
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	flip := r.URL.Query().Get("flip") == "1"

	var b board.Board
	var opts render.Options
	err = sess.View(func(c *controller.Controller) error {
		var err error
		b, opts, err = renderInputs(c)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts.Flip = flip

	data, err := s.renderer.RenderPNG(r.Context(), b, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// renderInputs collects what the renderer needs while the session is held.
func renderInputs(c *controller.Controller) (board.Board, render.Options, error) {
	var opts render.Options
	snap := c.Snapshot()
	if snap == nil {
		b, err := board.Decode(board.StartFEN)
		return b, opts, err
	}
	b, err := snap.Board()
	if err != nil {
		return nil, opts, err
	}
	if sel, ok := c.Selection(); ok {
		sq := sel.Square
		opts.Selected = &sq
		for _, d := range sel.Destinations {
			_, occupied := b.Piece(d.To)
			opts.Destinations = append(opts.Destinations, render.Destination{Square: d.To, Capture: occupied})
		}
	}
	if last, ok := snap.LastMove(); ok {
		opts.LastMove = &[2]board.Square{last.From, last.To}
	}
	if st := snap.Status(); st.Check || st.Checkmate {
		king := board.Piece{Type: board.King, Color: snap.Turn()}
		for sq, p := range b {
			if p == king {
				opts.Check = &sq
				break
			}
		}
	}
	return b, opts, nil
}
