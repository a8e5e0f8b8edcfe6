package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/NotCoffee418/waveform_explorer/pkg/streamquery"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/wfutils"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var errNoData = errors.New("no data for location+stream found")

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// Server exposes a streamquery.Service over HTTP and websockets.
type Server struct {
	queries  *streamquery.Service
	schema   string
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewServer(queries *streamquery.Service, schema string, logger *zap.SugaredLogger) *Server {
	return &Server{
		queries: queries,
		schema:  schema,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the explorer is served from other origins
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /streams", s.handleStreams)
	mux.HandleFunc("GET /bounds", s.handleBounds)
	mux.HandleFunc("GET /window", s.handleWindow)
	mux.HandleFunc("POST /recheck", s.handleRecheck)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return logging.WithLogger(context.Background(), s.logger)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting Waveform Explorer API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down API")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Waveform Explorer API",
		"status":  "running",
		"schema":  s.schema,
	})
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := s.queries.ListStreams(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if location := r.URL.Query().Get("source_location"); location != "" {
		streams = &streamquery.StreamList{
			Streams:  streams.ForLocation(location),
			Warnings: streams.Warnings,
		}
	}
	writeJSON(w, http.StatusOK, NewStreamListResponse(streams))
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bounds, err := s.queries.GetBounds(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if bounds == nil {
		s.writeError(w, errNoData)
		return
	}
	writeJSON(w, http.StatusOK, &BoundsResponse{
		Min:          bounds.Min,
		Max:          bounds.Max,
		DefaultStart: s.queries.DefaultStart(bounds),
	})
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req := &WindowRequest{ObservationTypeID: key.ObservationTypeID, SourceLocation: key.SourceLocation}

	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			s.writeError(w, badRequest("invalid start %q: %v", v, err))
			return
		}
		req.Start = &start
	}
	if v := q.Get("width_seconds"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, badRequest("invalid width_seconds %q", v))
			return
		}
		req.WidthSeconds = width
	}

	win, err := s.resolveWindow(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewWindowResponse("", win))
}

func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	s.queries.ClearCache()
	writeJSON(w, http.StatusOK, &RecheckResponse{Cleared: true})
}

// resolveWindow fills in the default start and width before querying.
func (s *Server) resolveWindow(ctx context.Context, req *WindowRequest) (*streamquery.Window, error) {
	if req.SourceLocation == "" {
		return nil, badRequest("source_location is required")
	}

	width := s.queries.DefaultWidth()
	if req.WidthSeconds != 0 {
		width = wfutils.SecondsToDuration(req.WidthSeconds)
	}

	var start time.Time
	if req.Start != nil {
		start = *req.Start
	} else {
		bounds, err := s.queries.GetBounds(ctx, req.Key())
		if err != nil {
			return nil, err
		}
		if bounds == nil {
			return nil, errNoData
		}
		start = s.queries.DefaultStart(bounds)
	}

	logging.FromContext(ctx).Debugf("window for %s from %s, width %s", req.Key(), start, width)
	return s.queries.GetWindowWidth(ctx, req.Key(), start, width)
}

func parseKey(r *http.Request) (waveform.StreamKey, error) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("observation_type_id"), 10, 64)
	if err != nil {
		return waveform.StreamKey{}, badRequest("invalid observation_type_id %q", q.Get("observation_type_id"))
	}
	location := q.Get("source_location")
	if location == "" {
		return waveform.StreamKey{}, badRequest("source_location is required")
	}
	return waveform.StreamKey{ObservationTypeID: id, SourceLocation: location}, nil
}

func statusFor(err error) int {
	var badReq *badRequestError
	var sourceErr *waveform.DataSourceError
	switch {
	case errors.As(err, &badReq), errors.Is(err, waveform.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, errNoData):
		return http.StatusNotFound
	case errors.As(err, &sourceErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, &ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
