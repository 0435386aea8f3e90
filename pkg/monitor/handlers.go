package monitor

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NotCoffee418/scale_gateway/pkg/api"
	"github.com/NotCoffee418/scale_gateway/pkg/scaledb"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// NewRouter serves the scale registry under /api/balanzas.
func NewRouter(registry Registry, clock clockwork.Clock) http.Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &handlers{registry: registry, clock: clock}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(api.RequestLogger)
	r.Use(api.AllowAll())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/balanzas", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})

	return r
}

type handlers struct {
	registry Registry
	clock    clockwork.Clock
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	scales, err := h.registry.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	now := h.clock.Now()
	views := make([]ScaleView, 0, len(scales))
	for _, s := range scales {
		views = append(views, viewOf(s, now))
	}
	api.WriteJSON(w, http.StatusOK, views)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, viewOf(s, h.clock.Now()))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var in scaledb.ScaleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	s, err := h.registry.Create(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	log.Info().Msgf("scale created: %s (%s)", s.Nombre, s.IP)
	w.Header().Set("Location", "/api/balanzas/"+s.ID)
	api.WriteJSON(w, http.StatusCreated, viewOf(s, h.clock.Now()))
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	var in scaledb.ScaleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if _, err := h.registry.Update(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	log.Info().Msgf("scale deleted: %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scaledb.ErrInvalid):
		api.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scaledb.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scaledb.ErrDuplicateIP):
		api.WriteError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("scale registry error")
		api.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
