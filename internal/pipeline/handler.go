package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"framecast/internal/platform/logger"
	"framecast/internal/relay"
	"framecast/internal/source"
	"framecast/internal/stats"
)

// ModeSwitch changes the processing mode of a running source.
type ModeSwitch interface {
	Mode() source.Mode
	SetMode(m source.Mode)
	Toggle() source.Mode
}

// ClientCounter reports connected viewers.
type ClientCounter interface {
	ClientCount() int
}

// Handler exposes producer status and control endpoints.
type Handler struct {
	producer *Producer
	clients  ClientCounter
	relay    *relay.Relay
	modes    ModeSwitch
	log      *slog.Logger
}

// NewHandler returns a Handler. relay, modes and log may be nil.
func NewHandler(p *Producer, clients ClientCounter, r *relay.Relay, modes ModeSwitch, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{producer: p, clients: clients, relay: r, modes: modes, log: log}
}

// Routes mounts the handler under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Post("/mode", h.SetMode)
	})
}

// Status is the body of GET /api/status.
type Status struct {
	Stats   stats.Record `json:"stats"`
	Seq     uint64       `json:"seq"`
	Clients int          `json:"clients"`
	Relay   *relay.Stats `json:"relay,omitempty"`
	Mode    string       `json:"mode,omitempty"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode string `json:"mode"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	agg := h.producer.Stats()
	agg.Sample()

	st := Status{
		Stats:   agg.Latest(),
		Seq:     h.producer.Seq(),
		Clients: h.clients.ClientCount(),
	}
	if h.relay != nil {
		rs := h.relay.Stats()
		st.Relay = &rs
	}
	if h.modes != nil {
		st.Mode = h.modes.Mode().String()
	}
	writeJSON(w, http.StatusOK, st)
}

// SetMode handles POST /api/mode. Body {"mode":"edges"} selects a mode; an
// empty body toggles edge detection.
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	if h.modes == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("invalid mode body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var mode source.Mode
	if req.Mode == "" {
		mode = h.modes.Toggle()
	} else {
		m, err := source.ParseMode(req.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.modes.SetMode(m)
		mode = m
	}

	h.log.Info("processing mode changed", slog.String("mode", mode.String()))
	writeJSON(w, http.StatusOK, modeResponse{Mode: mode.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
