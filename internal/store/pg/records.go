package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ramify/internal/record"
)

// RecordRepo es el repositorio primario de records. El payload vive en
// una columna jsonb; la referencia de branch (id + endpoint) son
// columnas nullables del mismo row.
type RecordRepo struct{ pool *pgxpool.Pool }

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{pool: db.Pool()}
}

func (r *RecordRepo) Insert(ctx context.Context, rec *record.Record) error {
	const q = `
INSERT INTO record (id, owner_session_id, payload, parent_record_id, branch_origin_node_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.OwnerSessionID, rec.Payload,
		rec.ParentRecordID, rec.BranchOriginNodeID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("pg: insert record: %w", err)
	}
	return nil
}

func (r *RecordRepo) Get(ctx context.Context, id string) (*record.Record, error) {
	const q = `
SELECT id, owner_session_id, payload, parent_record_id, branch_id, branch_endpoint, branch_origin_node_id, created_at
FROM record
WHERE id = $1
LIMIT 1`
	row := r.pool.QueryRow(ctx, q, id)

	var rec record.Record
	if err := row.Scan(
		&rec.ID, &rec.OwnerSessionID, &rec.Payload,
		&rec.ParentRecordID, &rec.BranchID, &rec.BranchEndpoint,
		&rec.BranchOriginNodeID, &rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("pg: get record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepo) UpdatePayload(ctx context.Context, id string, payload []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE record SET payload = $2 WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("pg: update payload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

func (r *RecordRepo) SetBranch(ctx context.Context, id, branchID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE record SET branch_id = $2 WHERE id = $1`, id, branchID)
	if err != nil {
		return fmt.Errorf("pg: set branch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

func (r *RecordRepo) SetBranchEndpoint(ctx context.Context, id, endpoint string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE record SET branch_endpoint = $2 WHERE id = $1`, id, endpoint)
	if err != nil {
		return fmt.Errorf("pg: set branch endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

// ListBySession lista los records de una sesión, más nuevos primero.
func (r *RecordRepo) ListBySession(ctx context.Context, sessionID string) ([]record.Record, error) {
	const q = `
SELECT id, owner_session_id, payload, parent_record_id, branch_id, branch_endpoint, branch_origin_node_id, created_at
FROM record
WHERE owner_session_id = $1
ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("pg: list records: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var rec record.Record
		if err := rows.Scan(
			&rec.ID, &rec.OwnerSessionID, &rec.Payload,
			&rec.ParentRecordID, &rec.BranchID, &rec.BranchEndpoint,
			&rec.BranchOriginNodeID, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
