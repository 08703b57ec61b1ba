// Package boardbuilder wires the board server's dependencies from config.
package boardbuilder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/assets"
	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/render"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/internal/server"
	"github.com/park285/cheese-board/internal/session"
	"github.com/park285/cheese-board/internal/view"
)

type Deps struct {
	Engine   rules.Engine
	Catalog  *msgcat.Catalog
	Assets   *assets.Loader
	Renderer *render.Renderer
	Registry *session.Registry
	Server   *server.Server
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	engine := rules.NewStandard(logger.Named("rules"))

	// Assets: remote set when configured, embedded otherwise
	var src assets.Source = assets.EmbeddedSource{}
	if base := strings.TrimSpace(cfg.AssetBaseURL); base != "" {
		src = assets.NewHTTPSource(base, assets.WithTimeout(cfg.AssetTimeout()))
	}
	loader := assets.NewLoader(src, logger.Named("assets"))

	renderer, err := render.New(loader, cfg.BoardSquarePx, logger.Named("render"))
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	registry, err := session.NewRegistry(engine, session.Options{
		TTL:         cfg.SessionTTL(),
		MaxSessions: cfg.MaxSessions,
	}, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("init sessions: %w", err)
	}

	srv, err := server.New(server.Options{
		Registry: registry,
		Assets:   loader,
		Renderer: renderer,
		Deriver:  view.NewDeriver(catalog),
		Logger:   logger.Named("http"),
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	return &Deps{
		Engine:   engine,
		Catalog:  catalog,
		Assets:   loader,
		Renderer: renderer,
		Registry: registry,
		Server:   srv,
	}, nil
}

// Start launches the background work: the asset preload and the session
// sweeper. Both stop with ctx.
func (d *Deps) Start(ctx context.Context) {
	d.Assets.Start(ctx)
	d.Registry.Start(ctx)
}

// Close shuts the HTTP server down and stops the sweeper.
func (d *Deps) Close(ctx context.Context) error {
	err := d.Server.Close(ctx)
	d.Registry.Close()
	return err
}
