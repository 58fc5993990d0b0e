package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/logging"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/embedding"
	"github.com/aretw0/latentscope/pkg/render"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Explorer is the part of the explorer the HTTP adapter drives.
type Explorer interface {
	Status() domain.Status
	Snapshot() domain.Snapshot
	Info() (domain.ModelInfo, bool)
	Hover(ctx context.Context, cursor domain.Cursor) (bool, error)
	Frame() (*domain.PixelBuffer, func())
	Painted() int
}

// Server exposes an Explorer to the scatterplot and canvas collaborators.
type Server struct {
	Explorer   Explorer
	Embeddings *embedding.Set
	Streams    *StreamManager

	metrics http.Handler
	logger  *slog.Logger

	mu   sync.Mutex
	last *domain.Snapshot
}

// Option configures the Server.
type Option func(*Server)

// WithEmbeddings serves the scatterplot dataset.
func WithEmbeddings(set *embedding.Set) Option {
	return func(s *Server) {
		s.Embeddings = set
	}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// HoverRequest is the body of POST /hover.
type HoverRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// HoverResponse reports whether the hover produced the frame on screen.
type HoverResponse struct {
	Accepted bool            `json:"accepted"`
	State    domain.Snapshot `json:"state"`
}

// FrameResponse is the JSON form of the frame on screen.
type FrameResponse struct {
	ID     string              `json:"id"`
	Seq    uint64              `json:"seq"`
	Latent domain.LatentVector `json:"latent"`
	Shape  domain.Shape        `json:"shape"`
	Pixels []float32           `json:"pixels"`
}

// Event is one SSE payload: the snapshot fields that changed.
type Event struct {
	ID   string               `json:"id"`
	Diff *domain.SnapshotDiff `json:"diff"`
}

// NewServer creates the server without routing.
func NewServer(explorer Explorer, opts ...Option) *Server {
	s := &Server{
		Explorer: explorer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates a new HTTP handler for the explorer.
func NewHandler(explorer Explorer, opts ...Option) http.Handler {
	return NewServer(explorer, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Get("/model", s.GetModel)
	r.Get("/embeddings", s.GetEmbeddings)
	r.Get("/embeddings/nearest", s.GetNearest)
	r.Post("/hover", s.Hover)
	r.Get("/frame", s.GetFrame)
	r.Get("/frame.png", s.GetFramePNG)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "latentscope-http",
		"version": strings.TrimSpace(latentscope.Version),
	})
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	snap := s.Explorer.Snapshot()
	s.writeJSON(w, http.StatusOK, snap)
}

// GetModel handles the GET /model request.
func (s *Server) GetModel(w http.ResponseWriter, r *http.Request) {
	info, ok := s.Explorer.Info()
	if !ok {
		http.Error(w, fmt.Sprintf("model not ready (%s)", s.Explorer.Status().State), http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// GetEmbeddings handles the GET /embeddings request.
func (s *Server) GetEmbeddings(w http.ResponseWriter, r *http.Request) {
	if s.Embeddings == nil {
		http.Error(w, "no embeddings configured", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Embeddings.Points())
}

// GetNearest handles the GET /embeddings/nearest?x=&y= request.
func (s *Server) GetNearest(w http.ResponseWriter, r *http.Request) {
	if s.Embeddings == nil {
		http.Error(w, "no embeddings configured", http.StatusNotFound)
		return
	}
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		http.Error(w, "x and y must be numbers", http.StatusBadRequest)
		return
	}
	p, err := s.Embeddings.Nearest(x, y)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// Hover handles the POST /hover request.
func (s *Server) Hover(w http.ResponseWriter, r *http.Request) {
	var body HoverRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.X == nil || body.Y == nil {
		http.Error(w, "Invalid request body: want {\"x\": number, \"y\": number}", http.StatusBadRequest)
		s.logger.Warn("Hover: Invalid request body", "err", err)
		return
	}

	accepted, err := s.Explorer.Hover(r.Context(), domain.Cursor{X: *body.X, Y: *body.Y})
	if err != nil {
		http.Error(w, fmt.Sprintf("Decode error: %v", err), http.StatusInternalServerError)
		s.logger.Error("Hover failed", "err", err)
		return
	}

	snap := s.Explorer.Snapshot()
	if accepted {
		s.publish(snap)
	}
	s.writeJSON(w, http.StatusOK, HoverResponse{Accepted: accepted, State: snap})
}

// GetFrame handles the GET /frame request. The response counts as a paint.
func (s *Server) GetFrame(w http.ResponseWriter, r *http.Request) {
	buf, done := s.Explorer.Frame()
	if buf == nil {
		done()
		http.Error(w, "no frame decoded yet", http.StatusNotFound)
		return
	}

	px, err := buf.Pixels()
	if err != nil {
		done()
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	resp := FrameResponse{
		ID:     uuid.NewString(),
		Seq:    buf.Seq,
		Latent: buf.Latent.Rounded(3),
		Shape:  buf.Shape,
		Pixels: px,
	}
	s.writeJSON(w, http.StatusOK, resp)
	done()
	s.Explorer.Painted()
}

// GetFramePNG handles the GET /frame.png?size= request. The response counts
// as a paint.
func (s *Server) GetFramePNG(w http.ResponseWriter, r *http.Request) {
	size := render.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > render.MaxSize {
			http.Error(w, fmt.Sprintf("size must be an integer in 1..%d", render.MaxSize), http.StatusBadRequest)
			return
		}
		size = n
	}

	buf, done := s.Explorer.Frame()
	if buf == nil {
		done()
		http.Error(w, "no frame decoded yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(buf.Seq, 10))
	err := render.EncodePNG(w, buf, size)
	done()
	if err != nil {
		if errors.Is(err, domain.ErrBufferReleased) {
			http.Error(w, err.Error(), http.StatusGone)
			return
		}
		s.logger.Error("GetFramePNG: encode failed", "err", err)
		return
	}
	s.Explorer.Painted()
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")

	// Start every client from the full picture.
	snap := s.Explorer.Snapshot()
	if msg, err := encodeEvent(domain.Diff(nil, &snap)); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", msg)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// publish broadcasts what changed since the last published snapshot.
func (s *Server) publish(snap domain.Snapshot) {
	s.mu.Lock()
	diff := domain.Diff(s.last, &snap)
	if diff != nil && s.last != nil && s.last.Seq > snap.Seq {
		// A later hover already published a newer frame.
		diff = nil
	}
	if diff != nil {
		s.last = &snap
	}
	s.mu.Unlock()

	if diff.Empty() {
		return
	}
	msg, err := encodeEvent(diff)
	if err != nil {
		s.logger.Error("publish: encode failed", "err", err)
		return
	}
	s.Streams.Broadcast(msg)
}

func encodeEvent(diff *domain.SnapshotDiff) (string, error) {
	b, err := json.Marshal(Event{ID: uuid.NewString(), Diff: diff})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
