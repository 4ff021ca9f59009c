package events

import (
	"github.com/statvalue/statvalue-companion/internal/logging"
)

// LoggingObserver logs all events.
type LoggingObserver struct {
	name    string
	verbose bool
	logger  logging.Logger
}

// NewLoggingObserver creates a new observer that logs events. Verbose mode
// includes the payload.
func NewLoggingObserver(logger logging.Logger, verbose bool) *LoggingObserver {
	return &LoggingObserver{
		name:    "LoggingObserver",
		verbose: verbose,
		logger:  logging.OrNop(logger).Named("events"),
	}
}

// OnEvent logs the event details.
func (o *LoggingObserver) OnEvent(event Event) error {
	fields := []logging.Field{
		logging.String("event", event.Type),
		logging.String("session", event.SessionID),
	}
	if o.verbose {
		fields = append(fields, logging.Any("data", event.Data))
	}
	if event.Type == Error {
		o.logger.Warn("session event", fields...)
		return nil
	}
	o.logger.Info("session event", fields...)
	return nil
}

// GetName returns the observer's name.
func (o *LoggingObserver) GetName() string {
	return o.name
}

// ShouldHandle returns true for all events.
func (o *LoggingObserver) ShouldHandle(eventType string) bool {
	return true
}

// FuncObserver adapts a function to the Observer interface.
type FuncObserver struct {
	Name  string
	Types []string // empty means every type
	Fn    func(Event) error
}

// OnEvent implements Observer.
func (o *FuncObserver) OnEvent(event Event) error { return o.Fn(event) }

// GetName implements Observer.
func (o *FuncObserver) GetName() string { return o.Name }

// ShouldHandle implements Observer.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if t == eventType {
			return true
		}
	}
	return false
}
