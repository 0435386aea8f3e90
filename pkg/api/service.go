package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/livefeed"
	"github.com/NotCoffee418/scale_gateway/pkg/scaleutils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// AllowAll lets any origin call the API. Both binaries use it.
func AllowAll() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
}

// RequestLogger logs each request at debug level.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// NewRouter builds the gateway routes.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(RequestLogger)
	r.Use(AllowAll())

	r.Get("/balanza", func(w http.ResponseWriter, r *http.Request) {
		snap := opts.Store.Snapshot()
		WriteJSON(w, http.StatusOK, BalanzaResponse{
			Peso: scaleutils.FormatWeight(snap.LastWeight),
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		snap := opts.Store.Snapshot()
		msg := livefeed.MessageFrom(snap)
		port := "unknown"
		if opts.PortState != nil {
			port = opts.PortState()
		}
		WriteJSON(w, http.StatusOK, StatusResponse{
			Peso:      msg.Peso,
			Fecha:     msg.Fecha,
			Protocolo: msg.Protocolo,
			Pendiente: scaleutils.FormatWeight(snap.PendingWeight),
			Puerto:    port,
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if opts.Feed != nil {
		r.Get("/ws", opts.Feed.ServeHTTP)
	}

	return r
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("error writing json response")
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
