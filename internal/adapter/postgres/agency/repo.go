// Package agency implements read access to agencies using PostgreSQL.
// Agencies are owned by another service; the importer never writes them.
package agency

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/account-import/internal/adapter/postgres"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// Repo provides agency lookups backed by PostgreSQL.
type Repo struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

// New creates a new agency repository.
func New(pool *pgxpool.Pool, callTimeout time.Duration) *Repo {
	return &Repo{pool: pool, callTimeout: callTimeout}
}

const agencyColumns = `id, name, consulting_type_id, team_agency, postcode, offline`

const getByIDSQL = `
SELECT ` + agencyColumns + `
FROM agencies
WHERE id = $1 AND deleted_at IS NULL`

// GetByID returns a live agency. Returns domain.ErrNotFound if the agency
// does not exist or was deleted.
func (r *Repo) GetByID(ctx context.Context, id int64) (*domain.Agency, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	querier := postgres.QuerierFromCtx(ctx, r.pool)

	a, err := scanAgency(querier.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, postgres.MapError(err, "agency", id)
	}

	return a, nil
}

// GetByIDs returns the live agencies among ids, in no particular order.
// Missing ids are simply absent from the result.
func (r *Repo) GetByIDs(ctx context.Context, ids []int64) ([]domain.Agency, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	if len(ids) == 0 {
		return []domain.Agency{}, nil
	}

	query, args, err := postgres.Builder().
		Select(agencyColumns).
		From("agencies").
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build agencies by ids: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get agencies by ids: %w", err)
	}
	defer rows.Close()

	agencies := make([]domain.Agency, 0, len(ids))
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agency: %w", err)
		}
		agencies = append(agencies, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get agencies by ids: %w", err)
	}

	return agencies, nil
}

func scanAgency(row pgx.Row) (*domain.Agency, error) {
	var a domain.Agency
	if err := row.Scan(&a.ID, &a.Name, &a.ConsultingTypeID, &a.TeamAgency, &a.Postcode, &a.Offline); err != nil {
		return nil, err
	}
	return &a, nil
}
