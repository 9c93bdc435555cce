package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xavierca1/leadboard/internal/entity"
)

const activitySchema = `
	CREATE TABLE IF NOT EXISTS board_activity (
		id          UUID PRIMARY KEY,
		pipeline_id TEXT NOT NULL,
		lead_id     TEXT,
		operation   TEXT NOT NULL,
		from_stage  TEXT,
		to_stage    TEXT,
		actor_id    TEXT NOT NULL,
		detail      TEXT,
		occurred_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS board_activity_pipeline_idx
		ON board_activity (pipeline_id, occurred_at DESC);
`

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// ActivityRepository appends board operations to the board_activity table.
type ActivityRepository struct {
	DB *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, activitySchema); err != nil {
		return fmt.Errorf("create board_activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) Record(ctx context.Context, event entity.ActivityEvent) error {
	query := `
		INSERT INTO board_activity
			(id, pipeline_id, lead_id, operation, from_stage, to_stage, actor_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.DB.ExecContext(ctx, query,
		event.ID,
		event.PipelineID,
		nullString(event.LeadID),
		string(event.Operation),
		nullString(event.FromStage),
		nullString(event.ToStage),
		event.ActorID,
		nullString(event.Detail),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListByPipeline returns the newest events first, at most maxActivityLimit of them.
func (r *ActivityRepository) ListByPipeline(ctx context.Context, pipelineID string, limit int) ([]entity.ActivityEvent, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)
	query := `
		SELECT id, pipeline_id, COALESCE(lead_id, ''), operation, COALESCE(from_stage, ''),
			COALESCE(to_stage, ''), actor_id, COALESCE(detail, ''), occurred_at
		FROM board_activity
		WHERE pipeline_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, pipelineID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var events []entity.ActivityEvent
	for rows.Next() {
		var e entity.ActivityEvent
		var op string
		if err := rows.Scan(&e.ID, &e.PipelineID, &e.LeadID, &op, &e.FromStage,
			&e.ToStage, &e.ActorID, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Operation = entity.ActivityOperation(op)
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ entity.ActivityRepositoryInterface = (*ActivityRepository)(nil)
