// Usage reporting.
//
// Information Hiding:
// - Detached goroutine lifecycle and its timeout
// - Panic containment around the recorder
// - Outcome logging and metrics

package usage

import (
	"context"
	"sync"
	"time"

	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
	"github.com/wramirez09/langchain-agent-sub000/internal/metrics"
	"github.com/wramirez09/langchain-agent-sub000/storage"
)

// TypeChat is the usage type billed per agent invocation.
const TypeChat = "chat"

// Report outcomes recorded in metrics.
const (
	OutcomeRecorded       = "recorded"
	OutcomeNoSubscription = "no_subscription"
	OutcomeFailed         = "failed"
)

// Record is one billable event.
type Record struct {
	UserID    string
	UsageType string
	Quantity  int
}

// Unit is a recorded billable unit.
type Unit struct {
	ID         string
	UserID     string
	UsageType  string
	Quantity   int
	RecordedAt time.Time
}

// Recorder persists usage. A nil Unit with a nil error means the user has
// no active subscription.
type Recorder interface {
	RecordUsage(ctx context.Context, r Record) (*Unit, error)
}

// Noop records nothing. Used when no usage database is configured.
type Noop struct{}

func (Noop) RecordUsage(context.Context, Record) (*Unit, error) {
	return nil, nil
}

// SqliteRecorder records usage in the SQLite store.
type SqliteRecorder struct {
	store *storage.SqliteStorage
}

// NewSqliteRecorder wraps store.
func NewSqliteRecorder(store *storage.SqliteStorage) *SqliteRecorder {
	return &SqliteRecorder{store: store}
}

func (s *SqliteRecorder) RecordUsage(ctx context.Context, r Record) (*Unit, error) {
	rec, err := s.store.RecordUsage(ctx, r.UserID, r.UsageType, r.Quantity)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Unit{
		ID:         rec.ID,
		UserID:     rec.UserID,
		UsageType:  rec.UsageType,
		Quantity:   rec.Quantity,
		RecordedAt: rec.RecordedAt,
	}, nil
}

// Reporter records usage without blocking the caller. Failures are
// logged and counted, never returned.
type Reporter struct {
	recorder Recorder
	timeout  time.Duration
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewReporter creates a reporter. Each report gets its own timeout.
// m may be nil.
func NewReporter(recorder Recorder, timeout time.Duration, m *metrics.Metrics) *Reporter {
	if recorder == nil {
		recorder = Noop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reporter{recorder: recorder, timeout: timeout, metrics: m}
}

// Report records one chat unit for userID in the background.
func (r *Reporter) Report(userID string) {
	r.ReportRecord(Record{UserID: userID, UsageType: TypeChat, Quantity: 1})
}

// ReportRecord records rec in the background. It returns immediately.
func (r *Reporter) ReportRecord(rec Record) {
	if rec.UserID == "" {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.metrics.ObserveUsage(r.record(rec))
	}()
}

// Wait blocks until every in-flight report has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

func (r *Reporter) record(rec Record) (outcome string) {
	defer func() {
		if p := recover(); p != nil {
			logx.Error().Str("user_id", rec.UserID).Interface("panic", p).Msg("usage recorder panicked")
			outcome = OutcomeFailed
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	unit, err := r.recorder.RecordUsage(ctx, rec)
	switch {
	case err != nil:
		logx.Warn().Err(err).Str("user_id", rec.UserID).Str("usage_type", rec.UsageType).Msg("usage report failed")
		return OutcomeFailed
	case unit == nil:
		logx.Debug().Str("user_id", rec.UserID).Msg("no active subscription, usage not recorded")
		return OutcomeNoSubscription
	default:
		logx.Debug().Str("user_id", rec.UserID).Str("unit_id", unit.ID).Msg("usage recorded")
		return OutcomeRecorded
	}
}
