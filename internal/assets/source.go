// Package assets loads the piece images of the board UI. Every piece lives
// at /pieces/{color}{type}.svg, e.g. /pieces/wp.svg or /pieces/bk.svg.
package assets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-board/internal/board"
)

//go:embed pieces/*.svg
var embedded embed.FS

var ErrAssetStatus = errors.New("unexpected asset status")

// Path returns the URL path of a piece image.
func Path(p board.Piece) string {
	return "/pieces/" + p.Code() + ".svg"
}

// AllPieces lists the twelve pieces in preload order.
func AllPieces() []board.Piece {
	out := make([]board.Piece, 0, 12)
	for _, c := range []board.Color{board.White, board.Black} {
		for _, t := range board.PieceTypes {
			out = append(out, board.Piece{Type: t, Color: c})
		}
	}
	return out
}

// Source fetches the raw SVG of one piece.
type Source interface {
	Fetch(ctx context.Context, p board.Piece) ([]byte, error)
	Name() string
}

// EmbeddedSource serves the piece set compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) Fetch(ctx context.Context, p board.Piece) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return embedded.ReadFile("pieces/" + p.Code() + ".svg")
}

// EmbeddedFS exposes the embedded set rooted at the pieces directory.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embedded, "pieces")
	if err != nil {
		panic(err)
	}
	return sub
}

// HTTPSource fetches pieces from {baseURL}/pieces/{code}.svg.
type HTTPSource struct {
	baseURL  string
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
}

type HTTPOption func(*HTTPSource)

func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets how many times a failed fetch is retried after the first
// attempt. Negative values mean no retries.
func WithRetry(max int) HTTPOption {
	return func(s *HTTPSource) {
		if max < 0 {
			max = 0
		}
		s.retryMax = max
	}
}

// WithDial replaces the client dialer; tests pass an in-memory listener.
func WithDial(dial fasthttp.DialFunc) HTTPOption {
	return func(s *HTTPSource) { s.http.Dial = dial }
}

func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		timeout:  5 * time.Second,
		retryMax: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Name() string { return s.baseURL }

func (s *HTTPSource) Fetch(ctx context.Context, p board.Piece) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(s.baseURL + Path(p))

	attempts := s.retryMax + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.http.DoDeadline(req, resp, s.deadline(ctx))
		switch {
		case err != nil:
			lastErr = fmt.Errorf("fetch %s: %w", Path(p), err)
		case resp.StatusCode() == fasthttp.StatusOK:
			// resp is returned to the pool, so the body must be copied out
			return append([]byte(nil), resp.Body()...), nil
		default:
			lastErr = fmt.Errorf("%w: %s status=%d", ErrAssetStatus, Path(p), resp.StatusCode())
			if !retryable(resp.StatusCode()) {
				return nil, lastErr
			}
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoff(attempt)); err != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

func (s *HTTPSource) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func retryable(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func backoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	return time.Duration(1<<uint(attempt-1)) * 50 * time.Millisecond
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
