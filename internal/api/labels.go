package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openesl/eslgate/internal/gateway"
	"github.com/openesl/eslgate/internal/infrastructure/config"
	"github.com/openesl/eslgate/internal/label"
)

// Spanish-facing messages and test defaults, fixed by the storefront
// tooling that consumes this API.
const (
	msgLabelIDRequired = "Se requiere ID de etiqueta"
	msgLabelNotFound   = "Etiqueta no encontrada"
	msgInvalidMode     = `Modo debe ser "simulation" o "production"`

	testDefaultName  = "Producto de Prueba"
	testDefaultPrice = 999.0
	testDefaultPromo = "OFERTA TEST"

	createDefaultName = "Nueva Etiqueta"
)

// labelProjection is the wire shape of a label, with the derived online
// flag and the simulated-transport marker the dashboard expects.
type labelProjection struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Price      float64      `json:"price"`
	Promo      string       `json:"promo"`
	Battery    float64      `json:"battery"`
	Status     label.Status `json:"status"`
	LastSeen   time.Time    `json:"lastSeen"`
	LastUpdate *time.Time   `json:"lastUpdate,omitempty"`
	Online     bool         `json:"online"`
	Simulated  bool         `json:"simulated"`
}

func projectLabel(l label.Label, simulated bool) labelProjection {
	return labelProjection{
		ID:         l.ID,
		Name:       l.Name,
		Price:      l.Price,
		Promo:      l.Promo,
		Battery:    l.Battery,
		Status:     l.Status,
		LastSeen:   l.LastSeen,
		LastUpdate: l.LastUpdate,
		Online:     l.Status == label.StatusOnline,
		Simulated:  simulated,
	}
}

// handleListLabels returns the whole fleet.
//
// GET /api/etiquetas
func (s *Server) handleListLabels(w http.ResponseWriter, _ *http.Request) {
	snap := s.super.Snapshot()
	simulated := snap.Mode == config.ModeSimulation

	labels := s.registry.List()
	projections := make([]labelProjection, 0, len(labels))
	for _, l := range labels {
		projections = append(projections, projectLabel(l, simulated))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"count":     len(projections),
		"etiquetas": projections,
		"mode":      snap.Mode,
	})
}

// handleGetLabel returns a single label.
//
// GET /api/etiquetas/{id}
func (s *Server) handleGetLabel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, label.ErrLabelNotFound) {
			writeNotFound(w, msgLabelNotFound)
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"etiqueta": projectLabel(l, s.super.Mode() == config.ModeSimulation),
	})
}

// statsPayload is the fleet rollup plus transport state.
type statsPayload struct {
	label.Stats
	ConnectionStatus string `json:"connectionStatus"`
	Mode             string `json:"mode"`
}

// handleStats returns fleet-wide statistics.
//
// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.super.Snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats": statsPayload{
			Stats:            s.registry.GetStats(),
			ConnectionStatus: snap.ConnectionStatus,
			Mode:             snap.Mode,
		},
	})
}

// updateRequest is the body of POST /api/test and POST /api/etiqueta.
// Pointer fields distinguish "absent" from explicit zero values: a price
// of 0 overwrites, a missing price leaves the stored value alone.
type updateRequest struct {
	EtiquetaID string   `json:"etiquetaId"`
	ID         string   `json:"id"`
	Name       *string  `json:"name"`
	Price      *float64 `json:"price"`
	Promo      *string  `json:"promo"`
}

// handleTestUpdate publishes a test update to a label, filling defaults
// for any field the caller omitted.
//
// POST /api/test
func (s *Server) handleTestUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.EtiquetaID == "" {
		writeBadRequest(w, msgLabelIDRequired)
		return
	}

	update := label.Update{
		Type:  "TEST_UPDATE",
		Name:  req.Name,
		Price: req.Price,
		Promo: req.Promo,
	}
	if update.Name == nil {
		update.Name = ptr(testDefaultName)
	}
	if update.Price == nil {
		update.Price = ptr(testDefaultPrice)
	}
	if update.Promo == nil {
		update.Promo = ptr(testDefaultPromo)
	}

	writeJSON(w, http.StatusOK, s.engine.Publish(r.Context(), req.EtiquetaID, update))
}

// handleCreateLabel publishes a CREATE update, registering the label on
// first delivery.
//
// POST /api/etiqueta
func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.ID == "" {
		writeBadRequest(w, msgLabelIDRequired)
		return
	}

	update := label.Update{
		Type:  "CREATE",
		Name:  req.Name,
		Price: req.Price,
		Promo: req.Promo,
	}
	if update.Name == nil {
		update.Name = ptr(createDefaultName)
	}
	// No price default: an absent price must not overwrite a stored one.
	// New labels start at price 0 from the zero value.
	if update.Promo == nil {
		update.Promo = ptr("")
	}

	writeJSON(w, http.StatusOK, s.engine.Publish(r.Context(), req.ID, update))
}

// modeRequest is the body of POST /api/mode.
type modeRequest struct {
	Mode string `json:"mode"`
}

// modeResponse reports the outcome of a mode switch. Note carries the
// fallback explanation when a production switch couldn't reach the
// broker.
type modeResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CurrentMode string `json:"currentMode"`
	Note        string `json:"note,omitempty"`
}

// handleSetMode switches the gateway between simulation and production.
//
// POST /api/mode
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Mode != config.ModeSimulation && req.Mode != config.ModeProduction {
		writeBadRequest(w, msgInvalidMode)
		return
	}

	effective, err := s.super.SetMode(r.Context(), req.Mode)
	resp := modeResponse{
		Success:     true,
		Message:     "Modo cambiado a " + effective,
		CurrentMode: effective,
	}
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidMode) {
			writeBadRequest(w, msgInvalidMode)
			return
		}
		// Broker dial failed; the gateway stays in simulation
		resp.Note = "broker no disponible, se mantiene el modo simulación"
		s.logger.Warn("mode switch fell back to simulation", "requested", req.Mode, "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func ptr[T any](v T) *T { return &v }
