package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/statvalue/statvalue-companion/internal/api/response"
	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/charts"
	"github.com/statvalue/statvalue-companion/internal/export"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
	"github.com/statvalue/statvalue-companion/internal/storage"
)

// SessionManager is the subset of *session.Manager the handlers use.
type SessionManager interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
	SetPosition(ctx context.Context, s *session.Session, pos positions.Position) error
	SetIdentity(ctx context.Context, s *session.Session, id session.Identity) error
	ClearIdentity(ctx context.Context, s *session.Session) error
}

// HistoryLister reads persisted comparisons and predictions.
type HistoryLister interface {
	ListComparisons(ctx context.Context, sessionID string, limit int) ([]storage.StoredComparison, error)
	ListPredictions(ctx context.Context, sessionID string, limit int) ([]storage.StoredPrediction, error)
}

// SessionHandler handles the comparison session API.
type SessionHandler struct {
	sessions SessionManager
	history  HistoryLister
	chart    func() charts.ChartConfig
}

// NewSessionHandler creates a new SessionHandler. history may be nil when
// nothing is persisted; chart supplies the current chart settings.
func NewSessionHandler(sessions SessionManager, history HistoryLister, chart func() charts.ChartConfig) *SessionHandler {
	if chart == nil {
		chart = charts.DefaultChartConfig
	}
	return &SessionHandler{sessions: sessions, history: history, chart: chart}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	return loadSession(w, r, h.sessions)
}

// loadSession resolves the {sessionID} URL parameter, writing the error
// response when it fails.
func loadSession(w http.ResponseWriter, r *http.Request, sessions SessionManager) (*session.Session, bool) {
	s, err := sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return false
	}
	return true
}

// CreateSession starts a new session.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Created(w, s.Snapshot())
}

// GetSession returns a session snapshot.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.Success(w, s.Snapshot())
}

// DeleteSession removes a session.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// SetPositionRequest selects the active position.
type SetPositionRequest struct {
	Position string `json:"position"`
}

// SetPosition switches the position and reloads its players.
func (h *SessionHandler) SetPosition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetPositionRequest
	if !decode(w, r, &req) {
		return
	}
	pos, err := positions.Parse(req.Position)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	if err := h.sessions.SetPosition(r.Context(), s, pos); err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, s.Snapshot())
}

// PlayerSummary is one row of a player search.
type PlayerSummary struct {
	Name     string `json:"name"`
	Nation   string `json:"nation"`
	Squad    string `json:"squad"`
	Selected bool   `json:"selected"`
}

// SearchPlayers searches the loaded player list. Without q the whole list
// is returned.
func (h *SessionHandler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	players := s.Players()
	if q != "" {
		players = s.Search(q)
	}

	selected := make(map[string]bool)
	for _, n := range s.Selected() {
		selected[n] = true
	}

	out := make([]PlayerSummary, len(players))
	for i, p := range players {
		out[i] = PlayerSummary{Name: p.Name(), Nation: p.Nation(), Squad: p.Squad(), Selected: selected[p.Name()]}
	}
	response.Success(w, out)
}

// SelectRequest names a player to add.
type SelectRequest struct {
	Name string `json:"name"`
}

// SelectionResult reports the selection after a change.
type SelectionResult struct {
	Added    bool     `json:"added"`
	Selected []string `json:"selected"`
}

// AddToSelection adds a player of the current list.
func (h *SessionHandler) AddToSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		response.BadRequest(w, errors.New("player name is required"))
		return
	}

	added, err := s.Select(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, SelectionResult{Added: added, Selected: s.Selected()})
}

// RemoveFromSelection removes a selected player.
func (h *SessionHandler) RemoveFromSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if !s.Remove(r.Context(), name) {
		response.NotFound(w, errors.New("player is not selected: "+name))
		return
	}
	response.Success(w, SelectionResult{Selected: s.Selected()})
}

// Compare normalizes the selected players.
func (h *SessionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	results, err := s.Compare(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, results)
}

// GetDetails returns the profile table of the selected players.
func (h *SessionHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.Success(w, s.Details())
}

// GetChart renders the radar chart as JSON geometry, SVG or HTML.
func (h *SessionHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	chart := s.Chart()
	title := charts.RadarTitle(s.Position())

	var buf bytes.Buffer
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		response.Success(w, chart)
	case "svg":
		if err := charts.RenderRadarSVG(&buf, chart, title); err != nil {
			response.InternalError(w, err)
			return
		}
		response.Document(w, "image/svg+xml", buf.Bytes())
	case "html":
		cfg := h.chart()
		cfg.Title = title
		if err := charts.RenderRadarHTML(&buf, chart, cfg); err != nil {
			response.InternalError(w, err)
			return
		}
		response.Document(w, "text/html; charset=utf-8", buf.Bytes())
	default:
		response.BadRequest(w, errors.New("unsupported chart format: "+format))
	}
}

// SimilarResult is the response of a similarity search.
type SimilarResult struct {
	Reference string                  `json:"reference"`
	Players   []session.SimilarPlayer `json:"players"`
}

// FindSimilar searches players similar to the first selected one.
func (h *SessionHandler) FindSimilar(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := s.FindSimilar(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	ref, players := s.Similar()
	response.Success(w, SimilarResult{Reference: ref, Players: players})
}

// SelectSimilar adds a similar player to the selection.
func (h *SessionHandler) SelectSimilar(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	added, err := s.AddSimilar(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, SelectionResult{Added: added, Selected: s.Selected()})
}

// PredictRequest asks for a market-value prediction.
type PredictRequest struct {
	PlayerName string `json:"playerName"`
	Year       int    `json:"year"`
}

// PredictionResult adds display helpers to a prediction.
type PredictionResult struct {
	*backend.Prediction
	FormattedPredicted string   `json:"formattedPredictedValue"`
	FormattedCurrent   string   `json:"formattedCurrentValue,omitempty"`
	ChangePercent      *float64 `json:"changePercent,omitempty"`
}

// Predict requests a prediction for the player and year.
func (h *SessionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req PredictRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := s.Predict(r.Context(), req.PlayerName, req.Year)
	if err != nil {
		writeError(w, err)
		return
	}

	out := PredictionResult{
		Prediction:         p,
		FormattedPredicted: session.FormatMarketValue(p.PredictedValue),
	}
	if p.CurrentValue > 0 {
		out.FormattedCurrent = session.FormatMarketValue(p.CurrentValue)
	}
	if change, ok := session.ValueChange(p.CurrentValue, p.PredictedValue); ok {
		out.ChangePercent = &change
	}
	response.Success(w, out)
}

// PredictionYears lists the years a prediction may target.
func (h *SessionHandler) PredictionYears(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.Success(w, s.PredictionYears())
}

// HistoryResult is a player's value history merged with the prediction.
type HistoryResult struct {
	Player  string                 `json:"player"`
	History []backend.HistoryPoint `json:"history"`
	Series  []charts.ValuePoint    `json:"series"`
}

// GetHistory loads a player's market-value history, as JSON or as an HTML
// line chart.
func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	points, err := s.History(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	series := s.ValueSeries()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		response.Success(w, HistoryResult{Player: name, History: points, Series: series})
	case "html":
		if len(series) == 0 {
			response.NotFound(w, errors.New("no value history for "+name))
			return
		}
		cfg := h.chart()
		cfg.Title = name + " market value"
		var buf bytes.Buffer
		if err := charts.RenderValueHistoryHTML(&buf, series, cfg); err != nil {
			response.InternalError(w, err)
			return
		}
		response.Document(w, "text/html; charset=utf-8", buf.Bytes())
	default:
		response.BadRequest(w, errors.New("unsupported history format: "+format))
	}
}

// ListComparisons returns the persisted comparisons of a session. With
// ?format=csv or ?format=json the flattened rows are sent as a download.
func (h *SessionHandler) ListComparisons(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var list []storage.StoredComparison
	if h.history != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var err error
		if list, err = h.history.ListComparisons(r.Context(), s.ID(), limit); err != nil {
			response.InternalError(w, err)
			return
		}
	}
	if list == nil {
		list = []storage.StoredComparison{}
	}

	if format := r.URL.Query().Get("format"); format != "" {
		writeExport(w, format, "comparisons", export.ComparisonRows(list))
		return
	}
	response.Success(w, list)
}

// ListPredictions returns the persisted predictions of a session. It
// accepts the same format parameter as ListComparisons.
func (h *SessionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var list []storage.StoredPrediction
	if h.history != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var err error
		if list, err = h.history.ListPredictions(r.Context(), s.ID(), limit); err != nil {
			response.InternalError(w, err)
			return
		}
	}
	if list == nil {
		list = []storage.StoredPrediction{}
	}

	if format := r.URL.Query().Get("format"); format != "" {
		writeExport(w, format, "predictions", export.PredictionRows(list))
		return
	}
	response.Success(w, list)
}

func writeExport(w http.ResponseWriter, format, kind string, rows interface{}) {
	f, err := export.ParseFormat(format)
	if err != nil {
		response.BadRequest(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.ExportToWriter(&buf, f, rows, false); err != nil {
		response.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.GenerateFilename(kind, f, time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
