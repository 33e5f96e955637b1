package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serverTimeout = 10 * time.Second

// Device is the status of one device
type Device struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Role      string                 `json:"role"`
	Enabled   bool                   `json:"enabled"`
	Connected bool                   `json:"connected"`
	LastSeen  uint32                 `json:"lastSeen"`
	Items     map[string]interface{} `json:"items,omitempty"`
}

// Status gives the server access to the daemon state. The methods are
// called from the HTTP goroutines.
type Status interface {
	Devices() []Device
	Drivers() []string
}

// Server is the HTTP status server
type Server struct {
	srv *http.Server
}

// Router returns the routes of the status server
func Router(m *Metrics, st Status) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	r.Handle("/health", health()).Methods(http.MethodGet)
	r.Handle("/devices", devices(st)).Methods(http.MethodGet)
	r.Handle("/devices/{id}", device(st)).Methods(http.MethodGet)
	r.Handle("/drivers", drivers(st)).Methods(http.MethodGet)
	return r
}

// NewServer returns a server listening on addr once started
func NewServer(addr string, m *Metrics, st Status) *Server {
	return &Server{srv: &http.Server{
		Addr:         addr,
		WriteTimeout: serverTimeout,
		ReadTimeout:  serverTimeout,
		IdleTimeout:  3 * serverTimeout,
		Handler:      Router(m, st),
	}}
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Status server stopped:", err)
		}
	}()
	log.Info("Status server listening on", s.srv.Addr)
}

// Shutdown stops the server, waiting for the requests in flight
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, serverTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Fail to write the response", err)
	}
}

func health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func devices(st Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := st.Devices()
		for i := range list {
			list[i].Items = nil
		}
		writeJSON(w, http.StatusOK, list)
	})
}

func device(st Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		for _, d := range st.Devices() {
			if d.ID == id {
				writeJSON(w, http.StatusOK, d)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown device " + id})
	})
}

func drivers(st Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.Drivers())
	})
}
