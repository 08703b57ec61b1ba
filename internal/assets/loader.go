package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/cheese-board/internal/board"
)

var ErrNotLoaded = errors.New("piece asset not loaded")

const fetchConcurrency = 4

type rasterKey struct {
	piece board.Piece
	size  int
}

// Loader preloads the twelve piece SVGs in the background. Its only
// completion signal is Done; failures are logged and reported through Err,
// and callers fall back to text glyphs for pieces that did not load.
type Loader struct {
	src    Source
	logger *zap.Logger

	start sync.Once
	done  chan struct{}

	mu    sync.RWMutex
	svgs  map[board.Piece][]byte
	err   error
	cache map[rasterKey]image.Image
}

func NewLoader(src Source, logger *zap.Logger) *Loader {
	if src == nil {
		src = EmbeddedSource{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		src:    src,
		logger: logger,
		done:   make(chan struct{}),
		svgs:   make(map[board.Piece][]byte, 12),
		cache:  make(map[rasterKey]image.Image),
	}
}

// Start launches the preload once; later calls are no-ops. It never blocks.
func (l *Loader) Start(ctx context.Context) {
	l.start.Do(func() {
		go l.run(ctx)
	})
}

func (l *Loader) run(ctx context.Context) {
	defer close(l.done)

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		failed []error
	)
	g.SetLimit(fetchConcurrency)
	for _, p := range AllPieces() {
		g.Go(func() error {
			data, err := l.fetch(ctx, p)
			if err != nil {
				l.logger.Warn("asset_load_failed",
					zap.String("piece", p.Code()),
					zap.String("source", l.src.Name()),
					zap.Error(err),
				)
				errMu.Lock()
				failed = append(failed, err)
				errMu.Unlock()
				return nil
			}
			l.mu.Lock()
			l.svgs[p] = data
			l.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	l.mu.Lock()
	l.err = errors.Join(failed...)
	loaded := len(l.svgs)
	l.mu.Unlock()

	if len(failed) > 0 {
		l.logger.Warn("assets_partially_loaded",
			zap.Int("loaded", loaded),
			zap.Int("failed", len(failed)),
		)
		return
	}
	l.logger.Info("assets_loaded", zap.Int("pieces", loaded), zap.String("source", l.src.Name()))
}

func (l *Loader) fetch(ctx context.Context, p board.Piece) ([]byte, error) {
	data, err := l.src.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	if _, err := parseIcon(data); err != nil {
		return nil, fmt.Errorf("%s: %w", Path(p), err)
	}
	return data, nil
}

// Done is closed once every piece has been attempted.
func (l *Loader) Done() <-chan struct{} { return l.done }

// Ready reports whether the preload has finished, successfully or not.
func (l *Loader) Ready() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Err returns the joined load failures, or nil while loading or on success.
func (l *Loader) Err() error {
	if !l.Ready() {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Wait blocks until the preload finishes or ctx ends.
func (l *Loader) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SVG returns the raw image of p, if it loaded.
func (l *Loader) SVG(p board.Piece) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.svgs[p]
	return data, ok
}

// Image returns p rasterized to size×size pixels. Results are cached.
func (l *Loader) Image(p board.Piece, size int) (image.Image, error) {
	key := rasterKey{piece: p, size: size}
	l.mu.RLock()
	img, ok := l.cache[key]
	data, loaded := l.svgs[p]
	l.mu.RUnlock()
	if ok {
		return img, nil
	}
	if !loaded {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, p.Code())
	}
	img, err := rasterize(data, size)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", p.Code(), err)
	}
	l.mu.Lock()
	l.cache[key] = img
	l.mu.Unlock()
	return img, nil
}
