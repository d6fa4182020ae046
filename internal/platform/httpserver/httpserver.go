// Package httpserver builds the HTTP server with this project's defaults.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// ShutdownGrace bounds how long in-flight requests get on shutdown.
const ShutdownGrace = 10 * time.Second

// New builds an HTTP server with sane timeouts for a small JSON API.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Shutdown drains the server within the grace period.
func Shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
