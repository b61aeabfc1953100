package infrastructure

import "github.com/ThreeDotsLabs/watermill"

// WatermillLoggerAdapter adapts Logger to watermill.LoggerAdapter so the
// broker adapters can share the same structured logger as the rest of the
// process.
type WatermillLoggerAdapter struct {
	Logger Logger
}

func (w *WatermillLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	w.Logger.Error(msg, err, args...)
}

func (w *WatermillLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	w.Logger.Info(msg, flatten(fields)...)
}

func (w *WatermillLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	w.Logger.Debug(msg, flatten(fields)...)
}

// Trace is mapped to Debug since Logger has no trace level.
func (w *WatermillLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	w.Logger.Debug(msg, flatten(fields)...)
}

// With returns the same adapter; per-call fields are passed through
// instead of being folded into a derived logger.
func (w *WatermillLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return w
}

func flatten(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return args
}
