// Package shipment exposes read-only display lookups for shipments.
// Shipment lifecycle management lives in an external service; the ledger
// only joins code and bill-of-lading number into cost responses.
package shipment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Info carries the display fields consumed by the expense API.
type Info struct {
	ID       int64
	Code     string
	BLNumber string
}

// Repository reads shipment display data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository on the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetInfos returns display info keyed by shipment id. Unknown ids are
// simply absent from the result.
func (r *Repository) GetInfos(ctx context.Context, ids []int64) (map[int64]Info, error) {
	if len(ids) == 0 {
		return map[int64]Info{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, bl_number FROM shipments WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("shipment: get infos: %w", err)
	}
	defer rows.Close()

	infos := make(map[int64]Info, len(ids))
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.Code, &info.BLNumber); err != nil {
			return nil, err
		}
		infos[info.ID] = info
	}
	return infos, rows.Err()
}
