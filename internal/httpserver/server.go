// Package httpserver implements C12: the HTTP surface that ties the
// signalling (C11) and controls-stream (C10) handlers together with the
// static frontend bundle.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mfdrelay/relay/internal/logging"
)

// Server is the relay's HTTP entrypoint.
type Server struct {
	addr     string
	corsOpen bool
	httpSrv  *http.Server
}

// New builds the router: POST /api/mfd, GET /api/controls/stream, and the
// static frontend for everything else. corsOpen, when true, adds a
// permissive Access-Control-Allow-Origin for local development against a
// frontend dev server on a different port.
func New(addr string, corsOpen bool, mfdHandler, controlsHandler http.Handler) *Server {
	router := mux.NewRouter()
	router.Handle("/api/mfd", mfdHandler).Methods(http.MethodPost)
	router.Handle("/api/controls/stream", controlsHandler)
	router.PathPrefix("/").Handler(staticHandler())

	var handler http.Handler = router
	if corsOpen {
		handler = corsMiddleware(router)
	}

	return &Server{
		addr:     addr,
		corsOpen: corsOpen,
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           loggingMiddleware(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	log := logging.L("httpserver")
	log.Info("listening", "addr", s.addr, "cors_open", s.corsOpen)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	log := logging.L("httpserver")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}
