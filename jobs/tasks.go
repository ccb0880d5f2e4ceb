package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	jobmetrics "github.com/rh-console/rh-console/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurgeSessions deletes session records past their expiry.
	TaskPurgeSessions = "sessions:purge"
)

// PurgeSessionsPayload configures one purge run. Grace keeps records for a
// while after expiry so recent logins stay auditable.
type PurgeSessionsPayload struct {
	Grace time.Duration `json:"grace"`
}

// NewPurgeSessionsTask constructs an Asynq task.
func NewPurgeSessionsTask(payload PurgeSessionsPayload) (*asynq.Task, error) {
	if payload.Grace < 0 {
		return nil, fmt.Errorf("jobs: negative grace %s", payload.Grace)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeSessions, data, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// Execer is the subset of *pgxpool.Pool used by the purge job.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SessionPurgeJob removes expired rows from usuario_sessoes.
type SessionPurgeJob struct {
	db      Execer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewSessionPurgeJob constructs the job. metrics may be nil.
func NewSessionPurgeJob(db Execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SessionPurgeJob{db: db, logger: logger, metrics: metrics, now: time.Now}
}

// Handle processes TaskPurgeSessions tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PurgeSessionsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("jobs: decode purge payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskPurgeSessions)
	cutoff := j.now().UTC().Add(-payload.Grace)
	tag, err := j.db.Exec(ctx, `DELETE FROM usuario_sessoes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: purge sessions: %w", err))
	}
	j.metrics.AddPurged(int(tag.RowsAffected()))
	j.logger.Info("purged expired sessions", slog.Int64("rows", tag.RowsAffected()), slog.Time("cutoff", cutoff))
	return tracker.End(nil)
}
