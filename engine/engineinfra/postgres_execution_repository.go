package engineinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// PostgresExecutionRepository persiste ejecuciones. El índice parcial
// único executions_one_active_per_customer (customer_id, channel_id
// WHERE status IN ('running','waiting')) es quien impone el single
// flight; aquí sólo se traduce el 23505 al error de dominio.
type PostgresExecutionRepository struct {
	db *sqlx.DB
}

var _ engine.ExecutionRepository = (*PostgresExecutionRepository)(nil)

func NewPostgresExecutionRepository(db *sqlx.DB) *PostgresExecutionRepository {
	return &PostgresExecutionRepository{db: db}
}

// dbExecution is an intermediate struct for database operations
type dbExecution struct {
	ID            string          `db:"id"`
	OrgID         string          `db:"org_id"`
	FlowID        string          `db:"flow_id"`
	ChannelID     string          `db:"channel_id"`
	CustomerID    string          `db:"customer_id"`
	Status        string          `db:"status"`
	CurrentNodeID string          `db:"current_node_id"`
	Variables     json.RawMessage `db:"variables"`
	Wait          json.RawMessage `db:"wait"`
	FailureReason string          `db:"failure_reason"`
	StartedAt     time.Time       `db:"started_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
	CompletedAt   *time.Time      `db:"completed_at"`
	WaitExpiresAt *time.Time      `db:"wait_expires_at"`
}

func toDBExecution(exec engine.Execution) (*dbExecution, error) {
	variablesJSON := []byte("{}")
	if len(exec.Variables) > 0 {
		var err error
		variablesJSON, err = json.Marshal(exec.Variables)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal variables: %w", err)
		}
	}

	waitJSON := json.RawMessage("null")
	var waitExpiresAt *time.Time
	if exec.Wait != nil {
		var err error
		waitJSON, err = json.Marshal(exec.Wait)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal wait state: %w", err)
		}
		// Columna desnormalizada para que el barrido indexe por vencimiento
		waitExpiresAt = exec.Wait.ExpiresAt
	}

	return &dbExecution{
		ID:            exec.ID.String(),
		OrgID:         exec.OrgID.String(),
		FlowID:        exec.FlowID.String(),
		ChannelID:     exec.ChannelID.String(),
		CustomerID:    exec.CustomerID.String(),
		Status:        string(exec.Status),
		CurrentNodeID: exec.CurrentNodeID,
		Variables:     variablesJSON,
		Wait:          waitJSON,
		FailureReason: exec.FailureReason,
		StartedAt:     exec.StartedAt,
		UpdatedAt:     exec.UpdatedAt,
		CompletedAt:   exec.CompletedAt,
		WaitExpiresAt: waitExpiresAt,
	}, nil
}

func toDomainExecution(dbE *dbExecution) (*engine.Execution, error) {
	var variables map[string]any
	if len(dbE.Variables) > 0 && string(dbE.Variables) != "null" {
		if err := json.Unmarshal(dbE.Variables, &variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	var wait *engine.WaitState
	if len(dbE.Wait) > 0 && string(dbE.Wait) != "null" {
		wait = &engine.WaitState{}
		if err := json.Unmarshal(dbE.Wait, wait); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wait state: %w", err)
		}
	}

	return &engine.Execution{
		ID:            kernel.ExecutionID(dbE.ID),
		OrgID:         kernel.OrgID(dbE.OrgID),
		FlowID:        kernel.FlowID(dbE.FlowID),
		ChannelID:     kernel.ChannelID(dbE.ChannelID),
		CustomerID:    kernel.CustomerID(dbE.CustomerID),
		Status:        engine.ExecutionStatus(dbE.Status),
		CurrentNodeID: dbE.CurrentNodeID,
		Variables:     variables,
		Wait:          wait,
		FailureReason: dbE.FailureReason,
		StartedAt:     dbE.StartedAt,
		UpdatedAt:     dbE.UpdatedAt,
		CompletedAt:   dbE.CompletedAt,
	}, nil
}

func (r *PostgresExecutionRepository) Save(ctx context.Context, exec engine.Execution) error {
	dbE, err := toDBExecution(exec)
	if err != nil {
		return errx.Wrap(err, "failed to convert execution", errx.TypeInternal).
			WithDetail("execution_id", exec.ID.String())
	}

	query := `
		INSERT INTO executions (
			id, org_id, flow_id, channel_id, customer_id, status,
			current_node_id, variables, wait, wait_expires_at,
			failure_reason, started_at, updated_at, completed_at
		) VALUES (
			:id, :org_id, :flow_id, :channel_id, :customer_id, :status,
			:current_node_id, :variables, :wait, :wait_expires_at,
			:failure_reason, :started_at, :updated_at, :completed_at
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			variables = EXCLUDED.variables,
			wait = EXCLUDED.wait,
			wait_expires_at = EXCLUDED.wait_expires_at,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at`

	_, err = r.db.NamedExecContext(ctx, query, dbE)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "executions_one_active_per_customer" {
				return engine.ErrExecutionAlreadyActive().
					WithDetail("customer_id", exec.CustomerID.String()).
					WithDetail("channel_id", exec.ChannelID.String())
			}
		}
		return errx.Wrap(err, "failed to save execution", errx.TypeInternal).
			WithDetail("execution_id", exec.ID.String())
	}

	return nil
}

func (r *PostgresExecutionRepository) FindByID(ctx context.Context, id kernel.ExecutionID) (*engine.Execution, error) {
	query := `
		SELECT
			id, org_id, flow_id, channel_id, customer_id, status,
			current_node_id, variables, wait, wait_expires_at,
			failure_reason, started_at, updated_at, completed_at
		FROM executions
		WHERE id = $1`

	var dbE dbExecution
	err := r.db.GetContext(ctx, &dbE, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrExecutionNotFound().WithDetail("execution_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find execution by id", errx.TypeInternal).
			WithDetail("execution_id", id.String())
	}

	return toDomainExecution(&dbE)
}

func (r *PostgresExecutionRepository) FindActiveByCustomer(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (*engine.Execution, error) {
	query := `
		SELECT
			id, org_id, flow_id, channel_id, customer_id, status,
			current_node_id, variables, wait, wait_expires_at,
			failure_reason, started_at, updated_at, completed_at
		FROM executions
		WHERE channel_id = $1 AND customer_id = $2
			AND status IN ('running', 'waiting')`

	var dbE dbExecution
	err := r.db.GetContext(ctx, &dbE, query, channelID.String(), customerID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrExecutionNotFound().
				WithDetail("customer_id", customerID.String())
		}
		return nil, errx.Wrap(err, "failed to find active execution", errx.TypeInternal).
			WithDetail("customer_id", customerID.String())
	}

	return toDomainExecution(&dbE)
}

func (r *PostgresExecutionRepository) FindExpiredWaits(ctx context.Context, now time.Time, limit int) ([]*engine.Execution, error) {
	query := `
		SELECT
			id, org_id, flow_id, channel_id, customer_id, status,
			current_node_id, variables, wait, wait_expires_at,
			failure_reason, started_at, updated_at, completed_at
		FROM executions
		WHERE status = 'waiting' AND wait_expires_at IS NOT NULL AND wait_expires_at < $1
		ORDER BY wait_expires_at ASC
		LIMIT $2`

	var dbExecs []dbExecution
	err := r.db.SelectContext(ctx, &dbExecs, query, now, limit)
	if err != nil {
		return nil, errx.Wrap(err, "failed to find expired waits", errx.TypeInternal)
	}

	result := make([]*engine.Execution, 0, len(dbExecs))
	for i := range dbExecs {
		exec, err := toDomainExecution(&dbExecs[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert execution", errx.TypeInternal)
		}
		result = append(result, exec)
	}

	return result, nil
}

func (r *PostgresExecutionRepository) List(ctx context.Context, req engine.ExecutionListRequest) (engine.ExecutionListResponse, error) {
	var conditions []string
	var args []any
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("org_id = $%d", argPos))
	args = append(args, req.OrgID.String())
	argPos++

	if !req.FlowID.IsEmpty() {
		conditions = append(conditions, fmt.Sprintf("flow_id = $%d", argPos))
		args = append(args, req.FlowID.String())
		argPos++
	}

	if !req.ChannelID.IsEmpty() {
		conditions = append(conditions, fmt.Sprintf("channel_id = $%d", argPos))
		args = append(args, req.ChannelID.String())
		argPos++
	}

	if !req.CustomerID.IsEmpty() {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, req.CustomerID.String())
		argPos++
	}

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM executions WHERE %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return engine.ExecutionListResponse{}, errx.Wrap(err, "failed to count executions", errx.TypeInternal)
	}

	dataQuery := fmt.Sprintf(`
		SELECT
			id, org_id, flow_id, channel_id, customer_id, status,
			current_node_id, variables, wait, wait_expires_at,
			failure_reason, started_at, updated_at, completed_at
		FROM executions
		WHERE %s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var dbExecs []dbExecution
	err = r.db.SelectContext(ctx, &dbExecs, dataQuery, args...)
	if err != nil {
		return engine.ExecutionListResponse{}, errx.Wrap(err, "failed to list executions", errx.TypeInternal)
	}

	executions := make([]engine.Execution, 0, len(dbExecs))
	for i := range dbExecs {
		exec, err := toDomainExecution(&dbExecs[i])
		if err != nil {
			return engine.ExecutionListResponse{}, errx.Wrap(err, "failed to convert execution", errx.TypeInternal)
		}
		executions = append(executions, *exec)
	}

	return storex.NewPaginated(executions, total, req.Page, req.PageSize), nil
}

func (r *PostgresExecutionRepository) CountByStatus(ctx context.Context, status engine.ExecutionStatus, orgID kernel.OrgID) (int, error) {
	query := `SELECT COUNT(*) FROM executions WHERE status = $1 AND org_id = $2`

	var count int
	err := r.db.GetContext(ctx, &count, query, string(status), orgID.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to count executions by status", errx.TypeInternal)
	}

	return count, nil
}
