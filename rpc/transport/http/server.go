package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/go-chi/chi/v5"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/http")

// RPCPath is the route all RPC requests are posted to
const RPCPath = "/rpc"

// NewHttpServerTransport creates an http transport. Next to the RPC route the
// router can carry additional routes, see Route.
func NewHttpServerTransport() *ServerTransport {
	t := &ServerTransport{
		router: chi.NewRouter(),
	}
	t.router.Use(loggerMiddleware)
	t.router.Post(RPCPath, t.handleRequest)
	t.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return t
}

// ServerTransport implements transport.IRPCServerTransport over http
type ServerTransport struct {
	handler transport.ServerHandleFunc
	router  chi.Router
	server  *http.Server
}

var _ transport.IRPCServerTransport = (*ServerTransport)(nil)

// Route registers an additional handler on the router
func (t *ServerTransport) Route(method, pattern string, handler http.HandlerFunc) {
	t.router.MethodFunc(method, pattern, handler)
}

// Handler returns the router, e.g. for use with httptest
func (t *ServerTransport) Handler() http.Handler {
	return t.router
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *ServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *ServerTransport) Listen(config common.ServerConfig) error {
	t.server = &http.Server{
		Addr:              config.Endpoint,
		Handler:           t.router,
		ReadHeaderTimeout: time.Duration(max(config.TimeoutSecond, 1)) * time.Second,
	}

	Logger.Infof("Starting HTTP server on %s", config.Endpoint)

	err := t.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *ServerTransport) Shutdown(ctx context.Context) error {
	if t.server == nil {
		return nil
	}
	return t.server.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *ServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	if t.handler == nil {
		http.Error(w, "no handler registered", http.StatusServiceUnavailable)
		return
	}

	// Read request body
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	// Send the handler
	resp := t.handler(body)

	// Write response
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware logs every request on debug level
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
