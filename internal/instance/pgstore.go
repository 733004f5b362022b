package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-io/tessera/model"
)

// PgStore is a PostgreSQL-backed instance Store using pgx/v5. Properties and
// events are stored as JSON documents.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL instance store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// GetByID retrieves an instance by ID.
func (s *PgStore) GetByID(ctx context.Context, id string) (*model.WorkflowInstance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, entity_type, variant, current_step, properties, events,
		       parent_id, version, created_at, updated_at
		FROM workflow_instances
		WHERE id = $1`,
		id,
	)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFoundError(fmt.Sprintf("instance %q not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("query instance: %w", err)
	}
	return inst, nil
}

// GetByEntityType returns all instances of the named entity type, newest
// first.
func (s *PgStore) GetByEntityType(ctx context.Context, name string) ([]model.WorkflowInstance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, entity_type, variant, current_step, properties, events,
		       parent_id, version, created_at, updated_at
		FROM workflow_instances
		WHERE entity_type = $1
		ORDER BY created_at DESC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var instances []model.WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// Save upserts an instance with optimistic locking on Version. On success the
// caller's Version is advanced to match the stored row, so the same copy can
// be saved again.
func (s *PgStore) Save(ctx context.Context, inst *model.WorkflowInstance) error {
	propsJSON, err := json.Marshal(inst.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	eventsJSON, err := json.Marshal(inst.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	now := time.Now().UTC()
	var version int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO workflow_instances (
			id, entity_type, variant, current_step, properties, events,
			parent_id, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			properties   = EXCLUDED.properties,
			events       = EXCLUDED.events,
			version      = workflow_instances.version + 1,
			updated_at   = EXCLUDED.updated_at
		WHERE workflow_instances.version = $8
		RETURNING version`,
		inst.ID, inst.EntityType, inst.Variant, inst.CurrentStep, propsJSON, eventsJSON,
		nullable(inst.ParentID), inst.Version, inst.CreatedAt, now,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewConflictError(
			fmt.Sprintf("instance %q version conflict (expected %d)", inst.ID, inst.Version))
	}
	if err != nil {
		return fmt.Errorf("upsert instance: %w", err)
	}
	inst.Version = version
	inst.UpdatedAt = now
	return nil
}

// Delete removes an instance.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflow_instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("instance %q not found", id))
	}
	return nil
}

func scanInstance(row pgx.Row) (*model.WorkflowInstance, error) {
	var inst model.WorkflowInstance
	var propsJSON, eventsJSON []byte
	var parentID *string
	if err := row.Scan(
		&inst.ID, &inst.EntityType, &inst.Variant, &inst.CurrentStep,
		&propsJSON, &eventsJSON, &parentID, &inst.Version,
		&inst.CreatedAt, &inst.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if parentID != nil {
		inst.ParentID = *parentID
	}
	if propsJSON != nil {
		if err := json.Unmarshal(propsJSON, &inst.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal properties: %w", err)
		}
	}
	if eventsJSON != nil {
		if err := json.Unmarshal(eventsJSON, &inst.Events); err != nil {
			return nil, fmt.Errorf("unmarshal events: %w", err)
		}
	}
	return &inst, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
