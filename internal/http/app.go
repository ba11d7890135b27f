package http

import (
	"context"
	"net/http"
	"time"
)

// App owns the HTTP server around a fully registered router.
type App struct {
	server *http.Server
}

// NewApp registers every module against the router context and wraps the
// engine in a server with sane timeouts.
func NewApp(addr string, rc *RouterContext, modules ...Module) *App {
	for _, m := range modules {
		m.RegisterRoutes(rc)
	}
	return &App{
		server: &http.Server{
			Addr:              addr,
			Handler:           rc.Engine,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Run serves until the listener fails.
func (a *App) Run() error {
	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
