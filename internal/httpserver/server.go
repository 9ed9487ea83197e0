// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package httpserver exposes the daemon's infrastructure endpoints only:
// /metrics and /healthz (spec_full §2's "Metrics HTTP exposition" row). It is
// never a control surface — pipeline edits go through engine.Handle, not HTTP.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamkit-io/streamkit/internal/log"
)

// HealthFunc reports whether the engine actor is still responsive. The
// daemon wires this to a cheap node-states query against its Handle.
type HealthFunc func(ctx context.Context) bool

// Server is a thin chi router serving /metrics and /healthz.
type Server struct {
	httpSrv *http.Server
}

// New builds a Server listening on addr. healthy is polled with a short
// timeout on every /healthz request.
func New(addr string, healthy HealthFunc) *Server {
	r := chi.NewRouter()
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if !healthy(ctx) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{httpSrv: &http.Server{Addr: addr, Handler: r}}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := log.WithComponent("httpserver")

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.httpSrv.Addr).Msg("metrics server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
