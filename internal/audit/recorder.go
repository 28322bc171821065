package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opencliniq/triage/internal/alert"
	"github.com/opencliniq/triage/internal/domain"
)

// Recorder is the policy layer for audit writes from request handlers. The
// engine itself propagates every failure; Recorder encodes the one
// deliberate policy the routes share: the primary action is already
// committed by the time the audit write runs, so an append failure must not
// roll it back — it is logged, alerted, and still returned so the caller can
// distinguish "primary succeeded, audit failed" from full success.
type Recorder struct {
	engine   *Engine
	notifier alert.Notifier
}

func NewRecorder(engine *Engine, notifier alert.Notifier) *Recorder {
	return &Recorder{engine: engine, notifier: notifier}
}

// Record appends one entry. On failure the event is surfaced on the process
// log and the alert channel before the error is returned.
func (r *Recorder) Record(ctx context.Context, ev Event) (*domain.AuditEntry, error) {
	entry, err := r.engine.Append(ctx, ev)
	if err != nil {
		log.Error().Err(err).
			Str("action", ev.Action).
			Str("status", ev.Status).
			Msg("audit append failed")

		if notifyErr := r.notifier.Notify(ctx, "audit append failed",
			fmt.Sprintf("action=%s status=%s: %v", ev.Action, ev.Status, err)); notifyErr != nil {
			log.Error().Err(notifyErr).Msg("audit alert delivery failed")
		}

		return nil, fmt.Errorf("audit.Recorder.Record: %w", err)
	}

	return entry, nil
}
