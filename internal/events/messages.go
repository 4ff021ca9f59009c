package events

// Event types.
const (
	PositionChanged     = "position:changed"
	SelectionChanged    = "selection:changed"
	ComparisonCompleted = "comparison:completed"
	SimilarUpdated      = "similar:updated"
	PredictionCompleted = "prediction:completed"
	RequestSuperseded   = "request:superseded"
	Error               = "error"
)

// PositionChangedEvent is the payload for position:changed events.
type PositionChangedEvent struct {
	Position string `json:"position"`
	Players  int    `json:"players"` // size of the loaded list
}

// SelectionChangedEvent is the payload for selection:changed events.
type SelectionChangedEvent struct {
	Selected []string `json:"selected"`
	Added    string   `json:"added,omitempty"`
	Removed  string   `json:"removed,omitempty"`
}

// ComparisonCompletedEvent is the payload for comparison:completed events.
type ComparisonCompletedEvent struct {
	Position string   `json:"position"`
	Players  []string `json:"players"`
}

// SimilarUpdatedEvent is the payload for similar:updated events.
type SimilarUpdatedEvent struct {
	Reference string   `json:"reference"`
	Similar   []string `json:"similar"`
}

// PredictionCompletedEvent is the payload for prediction:completed events.
type PredictionCompletedEvent struct {
	PlayerName     string  `json:"playerName"`
	Year           int     `json:"year"`
	PredictedValue float64 `json:"predictedValue"`
}

// RequestSupersededEvent is the payload for request:superseded events.
// Sent when a response arrived after a newer request in the same slot.
type RequestSupersededEvent struct {
	Slot string `json:"slot"`
}

// ErrorEvent is the payload for error events.
type ErrorEvent struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
}
