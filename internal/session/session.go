// Package session holds a user's comparison workspace: the active position
// and its player list, the selection, derived comparison results, similar
// players, predictions and the authenticated identity. Network-bound
// operations run in request slots so a newer request always wins.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/charts"
	"github.com/statvalue/statvalue-companion/internal/events"
	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/normalize"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/radar"
	"github.com/statvalue/statvalue-companion/internal/selection"
	"github.com/statvalue/statvalue-companion/internal/session/slots"
)

// MaxYearsAhead is how far past the current year a prediction may target.
const MaxYearsAhead = 5

// Loader fetches backend data. *backend.Client and *cache.CachedLoader
// implement it.
type Loader interface {
	ListPlayers(ctx context.Context, pos positions.Position) ([]normalize.PlayerRecord, error)
	SimilarPlayers(ctx context.Context, ref backend.PlayerRef, pos positions.Position) ([]backend.SimilarPlayer, error)
	Predict(ctx context.Context, playerName string, year int) (*backend.Prediction, error)
	PlayerHistory(ctx context.Context, playerName string) ([]backend.HistoryPoint, error)
}

// Recorder receives session measurements. internal/metrics implements it.
type Recorder interface {
	Normalized(position string, players int)
	Superseded(slot string)
	ActiveSessions(n int)
}

// HistoryStore persists completed comparisons and predictions.
type HistoryStore interface {
	SaveComparison(ctx context.Context, rec ComparisonRecord) error
	SavePrediction(ctx context.Context, sessionID string, p backend.Prediction) error
}

// Options are the collaborators shared by every session.
type Options struct {
	Loader       Loader
	Emitter      events.Emitter
	Logger       logging.Logger
	Recorder     Recorder
	History      HistoryStore
	Chart        radar.Options
	StableColors bool
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Emitter == nil {
		o.Emitter = events.NopEmitter{}
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Chart.Width == 0 {
		o.Chart = radar.DefaultOptions()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ComparisonResult is one player's row of a completed comparison.
type ComparisonResult struct {
	Player     PlayerDetails      `json:"player"`
	Stats      map[string]float64 `json:"stats"`
	Normalized map[string]float64 `json:"normalized"`
}

// ComparisonRecord is a comparison as persisted to history.
type ComparisonRecord struct {
	SessionID string             `json:"session_id"`
	Position  string             `json:"position"`
	Players   []string           `json:"players"`
	Results   []ComparisonResult `json:"results"`
	CreatedAt time.Time          `json:"created_at"`
}

// SimilarPlayer is a similarity search hit.
type SimilarPlayer struct {
	Name       string                 `json:"name"`
	Stats      normalize.PlayerRecord `json:"stats"`
	Distance   float64                `json:"distance"`
	Similarity float64                `json:"similarity"`
}

// Identity is the authenticated user of a session. The zero value is an
// anonymous session.
type Identity struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Token    string `json:"-"`
}

// Authenticated reports whether the identity carries a token.
func (i Identity) Authenticated() bool { return i.Token != "" }

// Session is one user's comparison workspace. It is safe for concurrent
// use.
type Session struct {
	id        string
	createdAt time.Time
	opts      Options
	norm      *normalize.Normalizer
	tracker   slots.Tracker

	mu            sync.Mutex
	position      positions.Position
	players       []normalize.PlayerRecord
	selection     selection.Set
	selectionGen  uint64 // bumped on every selection change
	results       []ComparisonResult
	similar       []SimilarPlayer
	similarRef    string
	prediction    *backend.Prediction
	history       []backend.HistoryPoint
	historyPlayer string
	identity      Identity
	lastErr       string
}

// New creates an empty session on the defender list. No players are
// loaded until SetPosition is called.
func New(id string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:        id,
		createdAt: opts.Now(),
		opts:      opts,
		norm:      normalize.NewNormalizer(opts.Logger),
		position:  positions.Defender,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Position returns the active position.
func (s *Session) Position() positions.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Identity returns the session's identity.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentity replaces the session's identity.
func (s *Session) SetIdentity(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

// ClearIdentity makes the session anonymous.
func (s *Session) ClearIdentity() { s.SetIdentity(Identity{}) }

// Close cancels every in-flight request.
func (s *Session) Close() { s.tracker.CancelAll() }

// SetPosition switches the active position. The selection, comparison
// results and similar players are cleared immediately, then the position's
// player list is loaded.
func (s *Session) SetPosition(ctx context.Context, pos positions.Position) error {
	if positions.Features(pos) == nil {
		return fmt.Errorf("%w: %q", positions.ErrUnknownPosition, pos)
	}

	s.tracker.Cancel(slots.Similar)

	s.mu.Lock()
	s.position = pos
	s.players = nil
	s.selection.Clear()
	s.selectionGen++
	s.results = nil
	s.similar = nil
	s.similarRef = ""
	s.mu.Unlock()

	s.emit(ctx, events.SelectionChanged, events.SelectionChangedEvent{Selected: []string{}})

	var players []normalize.PlayerRecord
	err := s.fetch(ctx, slots.Players, "load players",
		func(ctx context.Context) error {
			var err error
			players, err = s.opts.Loader.ListPlayers(ctx, pos)
			return err
		},
		func() {
			if s.position == pos {
				s.players = players
			}
		})
	if err != nil {
		return err
	}

	s.emit(ctx, events.PositionChanged, events.PositionChangedEvent{Position: pos.String(), Players: len(players)})
	return nil
}

// Players returns the loaded player list of the active position.
func (s *Session) Players() []normalize.PlayerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]normalize.PlayerRecord, len(s.players))
	copy(out, s.players)
	return out
}

// Search returns players whose name contains query, ignoring case. An empty
// query matches nothing.
func (s *Session) Search(query string) []normalize.PlayerRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []normalize.PlayerRecord
	for _, p := range s.players {
		if strings.Contains(strings.ToLower(p.Name()), q) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) findPlayerLocked(name string) (normalize.PlayerRecord, bool) {
	for _, p := range s.players {
		if p.Name() == name {
			return p, true
		}
	}
	for _, p := range s.players {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Select adds a player of the current list to the selection and reports
// whether it was added. Selecting an already selected player is a no-op.
// A successful add clears the similar players.
func (s *Session) Select(ctx context.Context, name string) (bool, error) {
	s.tracker.Cancel(slots.Similar)

	s.mu.Lock()
	rec, ok := s.findPlayerLocked(name)
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrPlayerNotFound, name)
	}
	added, names, err := s.addLocked(rec)
	s.mu.Unlock()

	return s.afterAdd(ctx, rec.Name(), added, names, err)
}

// AddSimilar selects a player from the current similar list.
func (s *Session) AddSimilar(ctx context.Context, name string) (bool, error) {
	s.tracker.Cancel(slots.Similar)

	s.mu.Lock()
	var hit *SimilarPlayer
	for i := range s.similar {
		if strings.EqualFold(s.similar[i].Name, name) {
			hit = &s.similar[i]
			break
		}
	}
	if hit == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %q is not in the similar players", ErrPlayerNotFound, name)
	}

	rec, ok := s.findPlayerLocked(hit.Name)
	if !ok {
		rec = make(normalize.PlayerRecord, len(hit.Stats)+1)
		for k, v := range hit.Stats {
			rec[k] = v
		}
		rec["name"] = hit.Name
	}
	added, names, err := s.addLocked(rec)
	s.mu.Unlock()

	return s.afterAdd(ctx, rec.Name(), added, names, err)
}

func (s *Session) addLocked(rec normalize.PlayerRecord) (bool, []string, error) {
	added, err := s.selection.Add(rec)
	if err != nil {
		return false, nil, err
	}
	if added {
		s.selectionGen++
		s.results = nil
		s.similar = nil
		s.similarRef = ""
	}
	return added, s.selection.Names(), nil
}

func (s *Session) afterAdd(ctx context.Context, name string, added bool, names []string, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if added {
		s.emit(ctx, events.SelectionChanged, events.SelectionChangedEvent{Selected: names, Added: name})
	}
	return added, nil
}

// Remove drops a player from the selection and clears the comparison
// results and similar players. It reports whether the player was selected.
func (s *Session) Remove(ctx context.Context, name string) bool {
	s.tracker.Cancel(slots.Similar)

	s.mu.Lock()
	removed := s.selection.Remove(name)
	if removed {
		s.selectionGen++
		s.results = nil
		s.similar = nil
		s.similarRef = ""
	}
	names := s.selection.Names()
	s.mu.Unlock()

	if removed {
		s.emit(ctx, events.SelectionChanged, events.SelectionChangedEvent{Selected: names, Removed: name})
	}
	return removed
}

// Selected returns the selected player names in selection order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Names()
}

// Compare normalizes the selected players against each other. At least two
// players must be selected. Results are recomputed from scratch on every
// call and replace the previous ones.
func (s *Session) Compare(ctx context.Context) ([]ComparisonResult, error) {
	s.mu.Lock()
	if s.selection.Len() < 2 {
		s.mu.Unlock()
		return nil, ErrNotEnoughPlayers
	}

	pos := s.position
	features := positions.Features(pos)
	players := s.selection.Players()

	raw := normalize.RawStats(players, features)
	norm := s.norm.Normalize(players, features)

	results := make([]ComparisonResult, len(players))
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name()
		results[i] = ComparisonResult{
			Player:     DetailsFor(p),
			Stats:      raw[i].Values,
			Normalized: norm[i].Values,
		}
	}
	s.results = results
	s.mu.Unlock()

	if s.opts.Recorder != nil {
		s.opts.Recorder.Normalized(pos.String(), len(players))
	}
	if s.opts.History != nil {
		rec := ComparisonRecord{
			SessionID: s.id,
			Position:  pos.String(),
			Players:   names,
			Results:   results,
			CreatedAt: s.opts.Now(),
		}
		if err := s.opts.History.SaveComparison(ctx, rec); err != nil {
			s.opts.Logger.Warn("failed to save comparison", logging.String("session", s.id), logging.Err(err))
		}
	}

	s.emit(ctx, events.ComparisonCompleted, events.ComparisonCompletedEvent{Position: pos.String(), Players: names})

	out := make([]ComparisonResult, len(results))
	copy(out, results)
	return out, nil
}

// Results returns the last comparison results.
func (s *Session) Results() []ComparisonResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ComparisonResult, len(s.results))
	copy(out, s.results)
	return out
}

// Chart projects the current selection onto a radar chart. It always
// succeeds; an empty selection yields the placeholder chart.
func (s *Session) Chart() radar.Chart {
	s.mu.Lock()
	features := positions.Features(s.position)
	players := s.selection.Players()
	opts := s.opts.Chart
	if s.opts.StableColors {
		opts.Palette = radar.NewStablePalette(s.selection.Slots())
	}
	s.mu.Unlock()

	return radar.Project(normalize.Normalize(players, features), features, opts)
}

// FindSimilar asks the backend for players similar to the first selected
// player.
func (s *Session) FindSimilar(ctx context.Context) ([]SimilarPlayer, error) {
	s.mu.Lock()
	ref, ok := s.selection.First()
	pos := s.position
	gen := s.selectionGen
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoReference
	}

	var (
		out     []SimilarPlayer
		applied bool
	)
	err := s.fetch(ctx, slots.Similar, "find similar",
		func(ctx context.Context) error {
			found, err := s.opts.Loader.SimilarPlayers(ctx, backend.RefFromRecord(ref), pos)
			if err != nil {
				return err
			}
			out = make([]SimilarPlayer, len(found))
			for i, f := range found {
				out[i] = SimilarPlayer{
					Name:       f.Name,
					Stats:      f.Stats,
					Distance:   f.Distance,
					Similarity: Similarity(f.Distance),
				}
			}
			return nil
		},
		func() {
			if s.selectionGen != gen {
				return
			}
			s.similar = out
			s.similarRef = ref.Name()
			applied = true
		})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.superseded(ctx, slots.Similar)
	}

	names := make([]string, len(out))
	for i, p := range out {
		names[i] = p.Name
	}
	s.emit(ctx, events.SimilarUpdated, events.SimilarUpdatedEvent{Reference: ref.Name(), Similar: names})

	return append([]SimilarPlayer(nil), out...), nil
}

// Similar returns the current similar players and their reference.
func (s *Session) Similar() (string, []SimilarPlayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.similarRef, append([]SimilarPlayer(nil), s.similar...)
}

// PredictionYears returns the selectable target years, current year first.
func (s *Session) PredictionYears() []int {
	now := s.opts.Now().Year()
	years := make([]int, 0, MaxYearsAhead+1)
	for y := now; y <= now+MaxYearsAhead; y++ {
		years = append(years, y)
	}
	return years
}

// Predict requests a market-value prediction.
func (s *Session) Predict(ctx context.Context, playerName string, year int) (*backend.Prediction, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" || year == 0 {
		return nil, ErrPredictionInput
	}
	now := s.opts.Now().Year()
	if year < now || year > now+MaxYearsAhead {
		return nil, fmt.Errorf("%w: year must be between %d and %d", ErrPredictionInput, now, now+MaxYearsAhead)
	}

	var p *backend.Prediction
	err := s.fetch(ctx, slots.Prediction, "predict",
		func(ctx context.Context) error {
			var err error
			p, err = s.opts.Loader.Predict(ctx, playerName, year)
			return err
		},
		func() { s.prediction = p })
	if err != nil {
		return nil, err
	}

	if s.opts.History != nil {
		if err := s.opts.History.SavePrediction(ctx, s.id, *p); err != nil {
			s.opts.Logger.Warn("failed to save prediction", logging.String("session", s.id), logging.Err(err))
		}
	}
	s.emit(ctx, events.PredictionCompleted, events.PredictionCompletedEvent{
		PlayerName:     p.PlayerName,
		Year:           p.Year,
		PredictedValue: p.PredictedValue,
	})

	cp := *p
	return &cp, nil
}

// Prediction returns the last prediction, if any.
func (s *Session) Prediction() *backend.Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prediction == nil {
		return nil
	}
	cp := *s.prediction
	return &cp
}

// History loads a player's recorded market values.
func (s *Session) History(ctx context.Context, playerName string) ([]backend.HistoryPoint, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, ErrPredictionInput
	}

	var points []backend.HistoryPoint
	err := s.fetch(ctx, slots.History, "load history",
		func(ctx context.Context) error {
			var err error
			points, err = s.opts.Loader.PlayerHistory(ctx, playerName)
			return err
		},
		func() {
			s.history = points
			s.historyPlayer = playerName
		})
	if err != nil {
		return nil, err
	}
	return append([]backend.HistoryPoint(nil), points...), nil
}

// ValueSeries merges the loaded history with the last prediction for the
// same player. The prediction is appended only when it lies after the last
// recorded year. Points are sorted by year.
func (s *Session) ValueSeries() []charts.ValuePoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]charts.ValuePoint, 0, len(s.history)+1)
	lastYear := 0
	for _, h := range s.history {
		out = append(out, charts.ValuePoint{Year: h.Year, Value: h.MarketValue, Age: h.Age})
		if h.Year > lastYear {
			lastYear = h.Year
		}
	}

	if p := s.prediction; p != nil && strings.EqualFold(p.PlayerName, s.historyPlayer) && p.Year > lastYear {
		out = append(out, charts.ValuePoint{Year: p.Year, Value: p.PredictedValue, Age: p.ProjectedAge, Predicted: true})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Details returns the profile table of every selected player.
func (s *Session) Details() []PlayerDetails {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := s.selection.Players()
	out := make([]PlayerDetails, len(players))
	for i, p := range players {
		out[i] = DetailsFor(p)
	}
	return out
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID            string              `json:"id"`
	Position      string              `json:"position"`
	Players       int                 `json:"players"`
	Selected      []string            `json:"selected"`
	Colors        map[string]string   `json:"colors"`
	Results       []ComparisonResult  `json:"results"`
	Reference     string              `json:"similar_reference,omitempty"`
	Similar       []SimilarPlayer     `json:"similar"`
	Prediction    *backend.Prediction `json:"prediction,omitempty"`
	Username      string              `json:"username,omitempty"`
	Authenticated bool                `json:"authenticated"`
	LastError     string              `json:"last_error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	chart := s.Chart()

	s.mu.Lock()
	defer s.mu.Unlock()

	colors := make(map[string]string, len(chart.Legend))
	for _, l := range chart.Legend {
		colors[l.Name] = l.Color
	}

	snap := Snapshot{
		ID:            s.id,
		Position:      s.position.String(),
		Players:       len(s.players),
		Selected:      s.selection.Names(),
		Colors:        colors,
		Results:       append([]ComparisonResult(nil), s.results...),
		Reference:     s.similarRef,
		Similar:       append([]SimilarPlayer(nil), s.similar...),
		Username:      s.identity.Username,
		Authenticated: s.identity.Authenticated(),
		LastError:     s.lastErr,
		CreatedAt:     s.createdAt,
	}
	if s.prediction != nil {
		cp := *s.prediction
		snap.Prediction = &cp
	}
	return snap
}

// fetch runs call in slot with the session token attached. apply runs under
// the session lock only if no newer request claimed the slot meanwhile.
func (s *Session) fetch(ctx context.Context, slot slots.Slot, op string, call func(context.Context) error, apply func()) error {
	reqCtx, ticket := s.tracker.Begin(backend.WithToken(ctx, s.Identity().Token), slot)
	defer s.tracker.Done(ticket)

	if err := call(reqCtx); err != nil {
		if !s.tracker.IsCurrent(ticket) {
			return s.superseded(ctx, slot)
		}
		s.fail(ctx, op, err)
		return err
	}

	err := s.tracker.Commit(ticket, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastErr = ""
		apply()
	})
	if err != nil {
		return s.superseded(ctx, slot)
	}
	return nil
}

func (s *Session) superseded(ctx context.Context, slot slots.Slot) error {
	if s.opts.Recorder != nil {
		s.opts.Recorder.Superseded(string(slot))
	}
	s.opts.Logger.Debug("discarded superseded response",
		logging.String("session", s.id),
		logging.String("slot", string(slot)))
	s.emit(ctx, events.RequestSuperseded, events.RequestSupersededEvent{Slot: string(slot)})
	return ErrSuperseded
}

func (s *Session) fail(ctx context.Context, op string, err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()

	s.opts.Logger.Warn("session operation failed",
		logging.String("session", s.id),
		logging.String("operation", op),
		logging.Err(err))
	s.emit(ctx, events.Error, events.ErrorEvent{Operation: op, Message: err.Error()})
}

func (s *Session) emit(ctx context.Context, eventType string, data any) {
	s.opts.Emitter.Dispatch(events.NewTypedEvent(ctx, eventType, s.id, data))
}
