// Package importrun implements the import-run bookkeeping repository using
// PostgreSQL. One row is written when a batch starts and updated once when
// it ends.
package importrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/account-import/internal/adapter/postgres"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// Repo provides import-run persistence backed by PostgreSQL.
type Repo struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

// New creates a new import-run repository.
func New(pool *pgxpool.Pool, callTimeout time.Duration) *Repo {
	return &Repo{pool: pool, callTimeout: callTimeout}
}

const runColumns = `id, variant, source_path, log_path, status, processed, succeeded, skipped, failed,
	error, started_at, finished_at`

const createSQL = `
INSERT INTO import_runs (id, variant, source_path, log_path, status, started_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + runColumns

const finishSQL = `
UPDATE import_runs
SET status = $2, processed = $3, succeeded = $4, skipped = $5, failed = $6, error = $7, finished_at = $8
WHERE id = $1 AND status = 'RUNNING'
RETURNING ` + runColumns

const getByIDSQL = `
SELECT ` + runColumns + `
FROM import_runs
WHERE id = $1`

// Create inserts a RUNNING import run.
func (r *Repo) Create(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, createSQL,
		run.ID, string(run.Variant), run.SourcePath, run.LogPath, string(domain.ImportRunRunning),
		run.StartedAt.UTC().Truncate(time.Microsecond),
	)

	created, err := scanRun(row)
	if err != nil {
		return domain.ImportRun{}, postgres.MapError(err, "import_run", run.ID)
	}
	return created, nil
}

// Finish stores the final status and counters. A run can be finished once;
// finishing it again returns domain.ErrNotFound.
func (r *Repo) Finish(ctx context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	finishedAt := time.Now().UTC().Truncate(time.Microsecond)
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC().Truncate(time.Microsecond)
	}

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, finishSQL,
		run.ID, string(run.Status), run.Processed, run.Succeeded, run.Skipped, run.Failed, run.Error, finishedAt,
	)

	finished, err := scanRun(row)
	if err != nil {
		return domain.ImportRun{}, postgres.MapError(err, "import_run", run.ID)
	}
	return finished, nil
}

// GetByID returns an import run by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportRun, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	run, err := scanRun(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return domain.ImportRun{}, postgres.MapError(err, "import_run", id)
	}
	return run, nil
}

func scanRun(row pgx.Row) (domain.ImportRun, error) {
	var (
		run     domain.ImportRun
		variant string
		status  string
	)

	err := row.Scan(
		&run.ID, &variant, &run.SourcePath, &run.LogPath, &status,
		&run.Processed, &run.Succeeded, &run.Skipped, &run.Failed,
		&run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return domain.ImportRun{}, err
	}

	run.Variant = domain.Variant(variant)
	run.Status = domain.ImportRunStatus(status)

	if !run.Variant.IsValid() {
		return domain.ImportRun{}, fmt.Errorf("import_run %s: unknown variant %q", run.ID, variant)
	}
	return run, nil
}
