package audit

import (
	"context"
	"log/slog"

	"catalog/pkg/requestcontext"
)

// Emitter delivers events to a sink. Emission is best-effort for operational
// sinks; domain operations never fail because an event could not be shipped.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Emit stamps the event with request-scoped time and correlation ID, then
// delivers it through the emitter. A nil emitter is a no-op so services can
// run without an audit pipeline in tests. Delivery failures are logged, not
// returned.
func Emit(ctx context.Context, logger *slog.Logger, emitter Emitter, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Actor.IsZero() {
		event.Actor = requestcontext.Actor(ctx)
	}
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "audit emit failed",
			"event", event.Name,
			"error", err,
		)
	}
}

// MultiEmitter fans one event out to several sinks, returning the first
// failure after attempting all of them.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, event Event) error {
	var first error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
