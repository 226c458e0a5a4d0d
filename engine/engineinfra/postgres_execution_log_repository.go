package engineinfra

import (
	"context"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// PostgresExecutionLogRepository traza append-only por nodo ejecutado
type PostgresExecutionLogRepository struct {
	db *sqlx.DB
}

var _ engine.ExecutionLogRepository = (*PostgresExecutionLogRepository)(nil)

func NewPostgresExecutionLogRepository(db *sqlx.DB) *PostgresExecutionLogRepository {
	return &PostgresExecutionLogRepository{db: db}
}

func (r *PostgresExecutionLogRepository) Append(ctx context.Context, entry engine.ExecutionLog) error {
	query := `
		INSERT INTO execution_logs (
			id, execution_id, node_id, node_type, status, detail, duration_ms, created_at
		) VALUES (
			:id, :execution_id, :node_id, :node_type, :status, :detail, :duration_ms, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return errx.Wrap(err, "failed to append execution log", errx.TypeInternal).
			WithDetail("execution_id", entry.ExecutionID.String())
	}

	return nil
}

func (r *PostgresExecutionLogRepository) FindByExecution(ctx context.Context, executionID kernel.ExecutionID) ([]*engine.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, node_id, node_type, status, detail, duration_ms, created_at
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY created_at ASC`

	var logs []*engine.ExecutionLog
	err := r.db.SelectContext(ctx, &logs, query, executionID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find execution logs", errx.TypeInternal).
			WithDetail("execution_id", executionID.String())
	}

	return logs, nil
}
