package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/statvalue/statvalue-companion/internal/api/response"
	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

// PositionInfo describes a position and its radar axes.
type PositionInfo struct {
	Position positions.Position `json:"position"`
	Title    string             `json:"title"`
	Features []string           `json:"features"`
	Labels   []string           `json:"labels"`
}

func positionInfo(p positions.Position) PositionInfo {
	features := positions.Features(p)
	return PositionInfo{
		Position: p,
		Title:    p.Title(),
		Features: features,
		Labels:   positions.Labels(features),
	}
}

// PredictionPlayerLister lists players known to the prediction model.
type PredictionPlayerLister interface {
	PredictionPlayers(ctx context.Context) ([]backend.PredictionPlayer, error)
}

// CatalogHandler serves the static position catalogue and the prediction
// player list.
type CatalogHandler struct {
	players PredictionPlayerLister
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(players PredictionPlayerLister) *CatalogHandler {
	return &CatalogHandler{players: players}
}

// ListPositions returns every position with its features.
func (h *CatalogHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	all := positions.All()
	out := make([]PositionInfo, len(all))
	for i, p := range all {
		out[i] = positionInfo(p)
	}
	response.Success(w, out)
}

// GetPosition returns one position.
func (h *CatalogHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := positions.Parse(chi.URLParam(r, "position"))
	if err != nil {
		response.NotFound(w, err)
		return
	}
	response.Success(w, positionInfo(p))
}

// ListPredictionPlayers returns the players a prediction can be made for,
// filtered by the optional q substring.
func (h *CatalogHandler) ListPredictionPlayers(w http.ResponseWriter, r *http.Request) {
	if h.players == nil {
		response.ServiceUnavailable(w, errors.New("prediction backend not configured"))
		return
	}

	list, err := h.players.PredictionPlayers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	out := make([]backend.PredictionPlayer, 0, len(list))
	for _, p := range list {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	response.Success(w, out)
}
