package invite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates a ledger backed by Postgres.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const recordCols = `id, call_id, recipient, status, error, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.CallID, &r.Recipient, &r.Status, &r.Error, &r.CreatedAt)
	return r, err
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invite_deliveries (id, call_id, recipient, status, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.CallID, rec.Recipient, rec.Status, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (r *repoPG) ListByCall(ctx context.Context, callID string, limit, offset int) ([]Record, int, error) {
	return r.list(ctx, "call_id", callID, limit, offset)
}

func (r *repoPG) ListByRecipient(ctx context.Context, recipient string, limit, offset int) ([]Record, int, error) {
	return r.list(ctx, "recipient", recipient, limit, offset)
}

func (r *repoPG) list(ctx context.Context, col, val string, limit, offset int) ([]Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM invite_deliveries WHERE `+col+` = $1`, val).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+recordCols+` FROM invite_deliveries
		WHERE `+col+` = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, val, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan delivery: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}
