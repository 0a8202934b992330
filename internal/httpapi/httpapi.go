package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AxelotlZoons/Word/internal/pipeline"
	"github.com/AxelotlZoons/Word/internal/spotter"
)

// Counter is satisfied by *spotter.Spotter.
type Counter interface {
	Snapshot() spotter.Snapshot
}

// StatusFunc reports the current run.
type StatusFunc func() pipeline.Status

type countJSON struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type countsJSON struct {
	Counts []countJSON `json:"counts"`
	Total  int         `json:"total"`
}

type statusJSON struct {
	RunID          string `json:"run_id"`
	State          string `json:"state"`
	Reason         string `json:"reason,omitempty"`
	Started        string `json:"started,omitempty"`
	ChunksSent     int64  `json:"chunks_sent"`
	BytesSent      int64  `json:"bytes_sent"`
	EventsReceived int64  `json:"events_received"`
	ProtocolErrors int64  `json:"protocol_errors"`
	ServerErrors   int64  `json:"server_errors"`
}

// Routes mounts the read-only API on r.
func Routes(r chi.Router, counter Counter, status StatusFunc) {
	r.Get("/counts", handleCounts(counter))
	r.Get("/counts/{keyword}", handleCount(counter))
	r.Get("/status", handleStatus(status))
}

func NewRouter(counter Counter, status StatusFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log.Default().WithPrefix("http")))
	Routes(r, counter, status)
	return r
}

func handleCounts(counter Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := counter.Snapshot()
		body := countsJSON{Counts: make([]countJSON, 0, len(snap))}
		for _, c := range snap {
			body.Counts = append(body.Counts, countJSON{Keyword: c.Keyword, Count: c.Count})
			body.Total += c.Count
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleCount(counter Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyword := chi.URLParam(r, "keyword")
		for _, c := range counter.Snapshot() {
			if c.Keyword == keyword {
				writeJSON(w, http.StatusOK, countJSON{Keyword: c.Keyword, Count: c.Count})
				return
			}
		}
		http.Error(w, "unknown keyword: "+keyword, http.StatusNotFound)
	}
}

func handleStatus(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := status()
		body := statusJSON{
			RunID:          st.RunID,
			State:          string(st.State),
			Reason:         string(st.Reason),
			ChunksSent:     st.Stats.ChunksSent,
			BytesSent:      st.Stats.BytesSent,
			EventsReceived: st.Stats.EventsReceived,
			ProtocolErrors: st.Stats.ProtocolErrors,
			ServerErrors:   st.Stats.ServerErrors,
		}
		if !st.Started.IsZero() {
			body.Started = st.Started.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "duration", time.Since(start))
		})
	}
}

// Server serves the API until Shutdown.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	done chan error
}

// Start listens on addr and serves in the background.
func Start(addr string, counter Counter, status StatusFunc) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv: &http.Server{
			Handler:           NewRouter(counter, status),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		done: make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	log.Default().WithPrefix("http").Info("serving counts", "addr", ln.Addr().String())
	return s, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}
