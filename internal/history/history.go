// Package history stores the outcome of every snipe run in Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/gym-sniper/internal/db"
)

// Outcome values stored in snipe_runs.outcome.
const (
	OutcomeBooked   = "booked"
	OutcomeHeld     = "held"
	OutcomeFailed   = "failed"
	OutcomeDeferred = "deferred"
)

// Run sources.
const (
	SourceDaemon    = "daemon"
	SourceScheduler = "scheduler"
	SourceCLI       = "cli"
)

type Run struct {
	ID         uuid.UUID
	ClassID    int64
	ClassName  string
	ClassTime  time.Time
	Source     string
	Outcome    string
	Attempts   int
	Error      *string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists runs. Nil-safe callers may skip recording entirely.
type Recorder interface {
	Record(ctx context.Context, r Run) error
}

type Repo struct{ db db.Querier }

func NewRepo(d db.Querier) *Repo { return &Repo{db: d} }

// Record inserts r, assigning an ID when it has none.
func (r *Repo) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if err := run.Validate(); err != nil {
		return err
	}
	err := r.db.Exec(ctx, `
INSERT INTO snipe_runs(id,class_id,class_name,class_time,source,outcome,attempts,error,started_at,finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		run.ID, run.ClassID, run.ClassName, run.ClassTime, run.Source, run.Outcome, run.Attempts, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record run for class %d: %w", run.ClassID, err)
	}
	return nil
}

const selectRuns = `
SELECT id,class_id,class_name,class_time,source,outcome,attempts,error,started_at,finished_at
FROM snipe_runs`

// Recent returns the latest runs, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, selectRuns+`
ORDER BY finished_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// ForClass returns every run recorded for a class, oldest first.
func (r *Repo) ForClass(ctx context.Context, classID int64) ([]Run, error) {
	rows, err := r.db.Query(ctx, selectRuns+`
WHERE class_id=$1
ORDER BY started_at ASC`, classID)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

func scanRuns(rows db.Rows) ([]Run, error) {
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var runErr *string
		if err := rows.Scan(
			&run.ID, &run.ClassID, &run.ClassName, &run.ClassTime, &run.Source, &run.Outcome, &run.Attempts, &runErr, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}
		run.Error = runErr
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r Run) Validate() error {
	if r.ClassID == 0 {
		return fmt.Errorf("class_id required")
	}
	if r.Source == "" {
		return fmt.Errorf("source required")
	}
	switch r.Outcome {
	case OutcomeBooked, OutcomeHeld, OutcomeFailed, OutcomeDeferred:
	default:
		return fmt.Errorf("unknown outcome %q", r.Outcome)
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return fmt.Errorf("finished_at must not be before started_at")
	}
	return nil
}

// ErrorText returns the stored error or "".
func (r Run) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
