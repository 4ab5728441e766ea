package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/qKV/lib/storage"
	"github.com/ValentinKolb/qKV/lib/storage/serializer"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// router is implemented by transports that can serve additional http routes
type router interface {
	Route(method, pattern string, handler http.HandlerFunc)
}

// prometheusWriter is implemented by drivers with own metrics (the queue driver)
type prometheusWriter interface {
	WritePrometheus(w io.Writer)
}

// NewRPCServer creates a new RPC server exposing the driver of s.
// It takes a config, transport, serializer and the storage as parameters.
// If the transport can serve http routes the server adds /metrics and
// a plain key value api under /kv and /keys.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//		storage.New(queue.New(memory.NewMemoryDriver(nil), nil), nil),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.ISerializer,
	storage *storage.Storage,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		storage:    storage,
		adapter:    NewDriverServerAdapter(),
	}
	s.registerTransportHandler()
	if r, ok := transport.(router); ok {
		s.registerRoutes(r)
	}

	Logger.Infof("Created RPC Server on %s", storage.Driver().Name())
	return s
}

// RPCServer serves a single storage over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.ISerializer
	storage    *storage.Storage
	adapter    IRPCServerAdapter
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			// Let the adapter handle the request
			respMsg = s.adapter.Handle(&msg, s.storage.Driver())
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

// Serve starts the transport layer and blocks until it is shut down
func (s *RPCServer) Serve() error {
	Logger.Infof(s.config.String())
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport. The storage is left to the caller.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	return s.transport.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// HTTP routes
// --------------------------------------------------------------------------

func (s *RPCServer) registerRoutes(r router) {
	r.Route(http.MethodGet, "/metrics", s.handleMetrics)
	r.Route(http.MethodGet, "/kv", s.handleGet)
	r.Route(http.MethodPut, "/kv", s.handleSet)
	r.Route(http.MethodDelete, "/kv", s.handleRemove)
	r.Route(http.MethodGet, "/keys", s.handleKeys)
}

// handleMetrics writes the process metrics followed by the metrics of the driver
func (s *RPCServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
	if pw, ok := s.storage.Driver().(prometheusWriter); ok {
		pw.WritePrometheus(w)
	}
}

// handleGet returns the raw value of ?key=
func (s *RPCServer) handleGet(w http.ResponseWriter, r *http.Request) {
	value, found, err := s.storage.GetItemRaw(r.URL.Query().Get("key"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(value)
}

// handleSet stores the request body under ?key=
func (s *RPCServer) handleSet(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	value, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if err := s.storage.SetItemRaw(r.URL.Query().Get("key"), value, nil); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemove deletes ?key=
func (s *RPCServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.RemoveItem(r.URL.Query().Get("key"), nil); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleKeys lists the keys below ?base=, one per line
func (s *RPCServer) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.storage.GetKeys(r.URL.Query().Get("base"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	for _, k := range keys {
		_, _ = io.WriteString(w, k+"\n")
	}
}

func writeError(w http.ResponseWriter, err error) {
	msg := common.NewResponse(common.MsgTError, err)
	status := http.StatusInternalServerError
	if msg.ErrCode == common.ErrCodeUnsupported {
		status = http.StatusNotImplemented
	}
	http.Error(w, err.Error(), status)
}
