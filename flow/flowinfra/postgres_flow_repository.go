package flowinfra

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

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

type PostgresFlowRepository struct {
	db *sqlx.DB
}

var _ flow.FlowRepository = (*PostgresFlowRepository)(nil)

func NewPostgresFlowRepository(db *sqlx.DB) *PostgresFlowRepository {
	return &PostgresFlowRepository{db: db}
}

// dbFlow is an intermediate struct for database operations
type dbFlow struct {
	ID          string          `db:"id"`
	OrgID       string          `db:"org_id"`
	ChannelID   string          `db:"channel_id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Trigger     json.RawMessage `db:"trigger"`
	Priority    int             `db:"priority"`
	IsActive    bool            `db:"is_active"`
	IsPublished bool            `db:"is_published"`
	Nodes       json.RawMessage `db:"nodes"`
	Edges       json.RawMessage `db:"edges"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// toDBFlow converts domain Flow to dbFlow
func toDBFlow(f flow.Flow) (*dbFlow, error) {
	triggerJSON, err := json.Marshal(f.Trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger: %w", err)
	}

	nodesJSON := []byte("[]")
	if len(f.Nodes) > 0 {
		nodesJSON, err = json.Marshal(f.Nodes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal nodes: %w", err)
		}
	}

	edgesJSON := []byte("[]")
	if len(f.Edges) > 0 {
		edgesJSON, err = json.Marshal(f.Edges)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal edges: %w", err)
		}
	}

	return &dbFlow{
		ID:          f.ID.String(),
		OrgID:       f.OrgID.String(),
		ChannelID:   f.ChannelID.String(),
		Name:        f.Name,
		Description: f.Description,
		Trigger:     triggerJSON,
		Priority:    f.Priority,
		IsActive:    f.IsActive,
		IsPublished: f.IsPublished,
		Nodes:       nodesJSON,
		Edges:       edgesJSON,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}, nil
}

// toDomainFlow converts dbFlow to domain Flow
func toDomainFlow(dbF *dbFlow) (*flow.Flow, error) {
	var trigger flow.Trigger
	if err := json.Unmarshal(dbF.Trigger, &trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	var nodes []flow.Node
	if len(dbF.Nodes) > 0 && string(dbF.Nodes) != "null" {
		if err := json.Unmarshal(dbF.Nodes, &nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	var edges []flow.Edge
	if len(dbF.Edges) > 0 && string(dbF.Edges) != "null" {
		if err := json.Unmarshal(dbF.Edges, &edges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
	}

	return &flow.Flow{
		ID:          kernel.FlowID(dbF.ID),
		OrgID:       kernel.OrgID(dbF.OrgID),
		ChannelID:   kernel.ChannelID(dbF.ChannelID),
		Name:        dbF.Name,
		Description: dbF.Description,
		Trigger:     trigger,
		Priority:    dbF.Priority,
		IsActive:    dbF.IsActive,
		IsPublished: dbF.IsPublished,
		Nodes:       nodes,
		Edges:       edges,
		CreatedAt:   dbF.CreatedAt,
		UpdatedAt:   dbF.UpdatedAt,
	}, nil
}

func (r *PostgresFlowRepository) Save(ctx context.Context, f flow.Flow) error {
	exists, err := r.flowExists(ctx, f.ID)
	if err != nil {
		return errx.Wrap(err, "failed to check flow existence", errx.TypeInternal)
	}

	if exists {
		return r.update(ctx, f)
	}
	return r.create(ctx, f)
}

func (r *PostgresFlowRepository) create(ctx context.Context, f flow.Flow) error {
	dbF, err := toDBFlow(f)
	if err != nil {
		return errx.Wrap(err, "failed to convert flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID.String())
	}

	query := `
		INSERT INTO flows (
			id, org_id, channel_id, name, description, trigger, priority,
			is_active, is_published, nodes, edges, created_at, updated_at
		) VALUES (
			:id, :org_id, :channel_id, :name, :description, :trigger, :priority,
			:is_active, :is_published, :nodes, :edges, :created_at, :updated_at
		)`

	_, err = r.db.NamedExecContext(ctx, query, dbF)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "flows_name_org_id_key" {
				return flow.ErrFlowAlreadyExists().
					WithDetail("name", f.Name).
					WithDetail("org_id", f.OrgID.String())
			}
		}
		return errx.Wrap(err, "failed to create flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID.String())
	}

	return nil
}

func (r *PostgresFlowRepository) update(ctx context.Context, f flow.Flow) error {
	dbF, err := toDBFlow(f)
	if err != nil {
		return errx.Wrap(err, "failed to convert flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID.String())
	}

	query := `
		UPDATE flows SET
			name = :name,
			description = :description,
			trigger = :trigger,
			priority = :priority,
			is_active = :is_active,
			is_published = :is_published,
			nodes = :nodes,
			edges = :edges,
			updated_at = :updated_at
		WHERE id = :id AND org_id = :org_id`

	result, err := r.db.NamedExecContext(ctx, query, dbF)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return flow.ErrFlowAlreadyExists().WithDetail("name", f.Name)
			}
		}
		return errx.Wrap(err, "failed to update flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return flow.ErrFlowNotFound().WithDetail("flow_id", f.ID.String())
	}

	return nil
}

func (r *PostgresFlowRepository) FindByID(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	query := `
		SELECT
			id, org_id, channel_id, name, description, trigger, priority,
			is_active, is_published, nodes, edges, created_at, updated_at
		FROM flows
		WHERE id = $1`

	var dbF dbFlow
	err := r.db.GetContext(ctx, &dbF, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find flow by id", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	return toDomainFlow(&dbF)
}

func (r *PostgresFlowRepository) Delete(ctx context.Context, id kernel.FlowID, orgID kernel.OrgID) error {
	query := `DELETE FROM flows WHERE id = $1 AND org_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), orgID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete flow", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
	}

	return nil
}

func (r *PostgresFlowRepository) ExistsByName(ctx context.Context, name string, orgID kernel.OrgID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM flows WHERE name = $1 AND org_id = $2)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, name, orgID.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to check flow existence by name", errx.TypeInternal).
			WithDetail("name", name)
	}

	return exists, nil
}

func (r *PostgresFlowRepository) FindByOrg(ctx context.Context, orgID kernel.OrgID) ([]*flow.Flow, error) {
	query := `
		SELECT
			id, org_id, channel_id, name, description, trigger, priority,
			is_active, is_published, nodes, edges, created_at, updated_at
		FROM flows
		WHERE org_id = $1
		ORDER BY name ASC`

	var dbFlows []dbFlow
	err := r.db.SelectContext(ctx, &dbFlows, query, orgID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find flows by org", errx.TypeInternal).
			WithDetail("org_id", orgID.String())
	}

	result := make([]*flow.Flow, 0, len(dbFlows))
	for i := range dbFlows {
		f, err := toDomainFlow(&dbFlows[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert flow", errx.TypeInternal)
		}
		result = append(result, f)
	}

	return result, nil
}

// FindRunnableByChannel retorna flujos listos para ejecutar en el orden
// que el matcher necesita: prioridad descendente, updated_at como desempate.
func (r *PostgresFlowRepository) FindRunnableByChannel(ctx context.Context, channelID kernel.ChannelID) ([]*flow.Flow, error) {
	query := `
		SELECT
			id, org_id, channel_id, name, description, trigger, priority,
			is_active, is_published, nodes, edges, created_at, updated_at
		FROM flows
		WHERE channel_id = $1 AND is_active = true AND is_published = true
		ORDER BY priority DESC, updated_at DESC`

	var dbFlows []dbFlow
	err := r.db.SelectContext(ctx, &dbFlows, query, channelID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find runnable flows", errx.TypeInternal).
			WithDetail("channel_id", channelID.String())
	}

	result := make([]*flow.Flow, 0, len(dbFlows))
	for i := range dbFlows {
		f, err := toDomainFlow(&dbFlows[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert flow", errx.TypeInternal)
		}
		result = append(result, f)
	}

	return result, nil
}

func (r *PostgresFlowRepository) List(ctx context.Context, req flow.FlowListRequest) (flow.FlowListResponse, error) {
	var conditions []string
	var args []any
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("org_id = $%d", argPos))
	args = append(args, req.OrgID.String())
	argPos++

	if !req.ChannelID.IsEmpty() {
		conditions = append(conditions, fmt.Sprintf("channel_id = $%d", argPos))
		args = append(args, req.ChannelID.String())
		argPos++
	}

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argPos, argPos+1))
		searchPattern := "%" + req.Search + "%"
		args = append(args, searchPattern, searchPattern)
		argPos += 2
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count query
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM flows WHERE %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return flow.FlowListResponse{}, errx.Wrap(err, "failed to count flows", errx.TypeInternal)
	}

	// Data query
	dataQuery := fmt.Sprintf(`
		SELECT
			id, org_id, channel_id, name, description, trigger, priority,
			is_active, is_published, nodes, edges, created_at, updated_at
		FROM flows
		WHERE %s
		ORDER BY priority DESC, name ASC
		LIMIT $%d OFFSET $%d`,
		whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var dbFlows []dbFlow
	err = r.db.SelectContext(ctx, &dbFlows, dataQuery, args...)
	if err != nil {
		return flow.FlowListResponse{}, errx.Wrap(err, "failed to list flows", errx.TypeInternal)
	}

	flows := make([]flow.Flow, 0, len(dbFlows))
	for i := range dbFlows {
		f, err := toDomainFlow(&dbFlows[i])
		if err != nil {
			return flow.FlowListResponse{}, errx.Wrap(err, "failed to convert flow", errx.TypeInternal)
		}
		flows = append(flows, *f)
	}

	return storex.NewPaginated(flows, total, req.Page, req.PageSize), nil
}

func (r *PostgresFlowRepository) BulkUpdateStatus(ctx context.Context, ids []kernel.FlowID, orgID kernel.OrgID, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	query := `
		UPDATE flows
		SET is_active = $1, updated_at = NOW()
		WHERE org_id = $2 AND id = ANY($3)`

	_, err := r.db.ExecContext(ctx, query, isActive, orgID.String(), pq.Array(idStrings))
	if err != nil {
		return errx.Wrap(err, "failed to bulk update flow status", errx.TypeInternal)
	}

	return nil
}

func (r *PostgresFlowRepository) flowExists(ctx context.Context, id kernel.FlowID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM flows WHERE id = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, id.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to check flow existence", errx.TypeInternal)
	}

	return exists, nil
}
