package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
)

// Submitter is the analysis-service boundary.
type Submitter interface {
	Analyze(ctx context.Context, transcript, languageName string) (json.RawMessage, error)
}

// Dispatcher runs the finalization pipeline for one closed call: submit the
// transcript, then persist the record and the latest pointer in that order.
// It is invoked fire-and-forget from connection teardown; every failure is
// logged and abandoned, never retried, never surfaced.
type Dispatcher struct {
	client  Submitter
	records RecordStore
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(client Submitter, records RecordStore, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:  client,
		records: records,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

func (d *Dispatcher) Dispatch(callSid, transcript string, lang language.Language) {
	logger := d.logger.With("call_sid", callSid)
	if strings.TrimSpace(transcript) == "" {
		logger.Debug("skipping analysis for empty transcript")
		return
	}

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.client.Analyze(ctx, transcript, lang.Name)
	if err != nil {
		logger.Warn("analysis submission failed, no record produced", "error", err)
		return
	}

	rec := Record{
		CallSid:    callSid,
		CreatedAt:  d.now().UTC(),
		Transcript: transcript,
		Analysis:   result,
	}
	if err := d.records.SaveRecord(rec); err != nil {
		logger.Error("persisting analysis record failed", "error", err)
		return
	}
	if err := d.records.SaveLatest(Pointer{CallSid: rec.CallSid, CreatedAt: rec.CreatedAt}); err != nil {
		logger.Error("persisting latest pointer failed", "error", err)
		return
	}
	logger.Info("analysis persisted", "weaknesses", len(rec.Weaknesses()))
}
