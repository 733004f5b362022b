package stepver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tessera-io/tessera/model"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, raised when two submitters race for the same sequence number.
const uniqueViolation = "23505"

// appendRetries bounds how often a racing insert is retried.
const appendRetries = 5

// PgVersionStore is a PostgreSQL-backed VersionStore using pgx/v5. The
// step_versions table carries a unique constraint on
// (instance_id, step_name, sequence_number); the insert computes the next
// sequence number in the statement and retries on a unique violation, which
// gives gap-free, duplicate-free numbering under concurrent submissions.
type PgVersionStore struct {
	pool *pgxpool.Pool
}

// NewPgVersionStore creates a new PostgreSQL step version store.
func NewPgVersionStore(pool *pgxpool.Pool) *PgVersionStore {
	return &PgVersionStore{pool: pool}
}

// Append implements VersionStore.
func (s *PgVersionStore) Append(ctx context.Context, v model.StepVersion) (model.StepVersion, error) {
	dataJSON, err := json.Marshal(v.SubmittedData)
	if err != nil {
		return model.StepVersion{}, fmt.Errorf("marshal submitted data: %w", err)
	}

	for attempt := 0; attempt < appendRetries; attempt++ {
		err = s.pool.QueryRow(ctx, `
			INSERT INTO step_versions (
				instance_id, step_name, sequence_number,
				submitted_data, submitted_at, submitted_by
			)
			SELECT $1, $2, COALESCE(MAX(sequence_number), 0) + 1, $3, $4, $5
			FROM step_versions
			WHERE instance_id = $1 AND step_name = $2
			RETURNING sequence_number`,
			v.InstanceID, v.StepName, dataJSON, v.SubmittedAt, v.SubmittedBy,
		).Scan(&v.SequenceNumber)
		if err == nil {
			return v, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue
		}
		return model.StepVersion{}, fmt.Errorf("insert step version: %w", err)
	}
	return model.StepVersion{}, model.NewConflictError(
		fmt.Sprintf("step version for instance %q step %q: sequence contention", v.InstanceID, v.StepName))
}

// List implements VersionStore.
func (s *PgVersionStore) List(ctx context.Context, instanceID, stepName string) ([]model.StepVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT instance_id, step_name, sequence_number,
		       submitted_data, submitted_at, submitted_by
		FROM step_versions
		WHERE instance_id = $1 AND step_name = $2
		ORDER BY sequence_number ASC`,
		instanceID, stepName,
	)
	if err != nil {
		return nil, fmt.Errorf("query step versions: %w", err)
	}
	defer rows.Close()

	versions := []model.StepVersion{}
	for rows.Next() {
		var v model.StepVersion
		var dataJSON []byte
		if err := rows.Scan(
			&v.InstanceID, &v.StepName, &v.SequenceNumber,
			&dataJSON, &v.SubmittedAt, &v.SubmittedBy,
		); err != nil {
			return nil, fmt.Errorf("scan step version: %w", err)
		}
		if dataJSON != nil {
			if err := json.Unmarshal(dataJSON, &v.SubmittedData); err != nil {
				return nil, fmt.Errorf("unmarshal submitted data: %w", err)
			}
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
