package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rose-token/treasury/internal/domain"
)

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL journal repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Record(ctx context.Context, e domain.Event) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO treasury_events (event_type, account, asset_from, asset_to, amount_in, amount_out, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.Type), e.Account, string(e.AssetFrom), string(e.AssetTo),
		e.AmountIn.String(), e.AmountOut.String(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_type, account, asset_from, asset_to, amount_in::text, amount_out::text, created_at
		 FROM treasury_events
		 ORDER BY id DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ, from, to, amountIn, amountOut string
		if err := rows.Scan(&e.ID, &typ, &e.Account, &from, &to, &amountIn, &amountOut, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Type = domain.EventType(typ)
		e.AssetFrom = domain.AssetKey(from)
		e.AssetTo = domain.AssetKey(to)
		if e.AmountIn, err = decimal.NewFromString(amountIn); err != nil {
			return nil, fmt.Errorf("parsing event amount: %w", err)
		}
		if e.AmountOut, err = decimal.NewFromString(amountOut); err != nil {
			return nil, fmt.Errorf("parsing event amount: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}
