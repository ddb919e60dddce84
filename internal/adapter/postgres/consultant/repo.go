// Package consultant implements consultant and agency-membership persistence
// using PostgreSQL.
package consultant

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/account-import/internal/adapter/postgres"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// Repo provides consultant persistence backed by PostgreSQL.
type Repo struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

// New creates a new consultant repository.
func New(pool *pgxpool.Pool, callTimeout time.Duration) *Repo {
	return &Repo{pool: pool, callTimeout: callTimeout}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const consultantColumns = `c.id, c.external_account_id, c.legacy_id, c.username, c.username_encoded,
	c.first_name, c.last_name, c.email, c.chat_user_id, c.absent, c.absence_message,
	c.team_consultant, c.language_formal, c.created_at, c.updated_at, c.deleted_at`

const createSQL = `
INSERT INTO consultants AS c (id, external_account_id, legacy_id, username, username_encoded,
                              first_name, last_name, email, chat_user_id, absent, absence_message,
                              team_consultant, language_formal, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
RETURNING ` + consultantColumns

const getByIDSQL = `
SELECT ` + consultantColumns + `
FROM consultants c
WHERE c.id = $1 AND c.deleted_at IS NULL`

// Usernames are matched case-insensitively in plain form and exactly in
// encoded form, so either representation finds the account.
const findByUsernameSQL = `
SELECT ` + consultantColumns + `
FROM consultants c
WHERE c.deleted_at IS NULL AND (lower(c.username) = lower($1) OR c.username_encoded = $1)
LIMIT 1`

const findByEmailSQL = `
SELECT ` + consultantColumns + `
FROM consultants c
WHERE c.deleted_at IS NULL AND lower(c.email) = lower($1)
LIMIT 1`

const saveMembershipSQL = `
INSERT INTO consultant_agencies (id, consultant_id, agency_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (consultant_id, agency_id) WHERE deleted_at IS NULL DO NOTHING`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a live consultant. Returns domain.ErrNotFound otherwise.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Consultant, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	c, err := scanConsultant(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, postgres.MapError(err, "consultant", id)
	}
	return c, nil
}

// FindByUsername returns the live consultant whose plain or encoded username
// matches. Returns domain.ErrNotFound if there is none.
func (r *Repo) FindByUsername(ctx context.Context, username string) (*domain.Consultant, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	c, err := scanConsultant(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, findByUsernameSQL, username))
	if err != nil {
		return nil, postgres.MapError(err, "consultant", username)
	}
	return c, nil
}

// FindByEmail returns the live consultant with the given email
// (case-insensitive). Returns domain.ErrNotFound if there is none.
func (r *Repo) FindByEmail(ctx context.Context, email string) (*domain.Consultant, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("consultant email: %w", domain.ErrNotFound)
	}

	c, err := scanConsultant(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, findByEmailSQL, email))
	if err != nil {
		return nil, postgres.MapError(err, "consultant", email)
	}
	return c, nil
}

// FindByAgencies returns the live consultants holding a live membership in
// any of agencyIDs. Each consultant appears once.
func (r *Repo) FindByAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Consultant, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	if len(agencyIDs) == 0 {
		return []domain.Consultant{}, nil
	}

	query, args, err := postgres.Builder().
		Select(consultantColumns).
		Distinct().
		From("consultants c").
		Join("consultant_agencies ca ON ca.consultant_id = c.id").
		Where(sq.Eq{"ca.agency_id": agencyIDs}).
		Where(sq.Eq{"ca.deleted_at": nil}).
		Where(sq.Eq{"c.deleted_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build consultants by agencies: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get consultants by agencies: %w", err)
	}
	defer rows.Close()

	consultants := []domain.Consultant{}
	for rows.Next() {
		c, err := scanConsultant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consultant: %w", err)
		}
		consultants = append(consultants, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get consultants by agencies: %w", err)
	}

	return consultants, nil
}

// FindByAgency returns the live consultants of one agency.
func (r *Repo) FindByAgency(ctx context.Context, agencyID int64) ([]domain.Consultant, error) {
	return r.FindByAgencies(ctx, []int64{agencyID})
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a consultant. A consultant without an identity-provider
// account id is rejected before reaching the database. ID is generated when nil.
func (r *Repo) Create(ctx context.Context, c *domain.Consultant) (*domain.Consultant, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	if strings.TrimSpace(c.ExternalAccountID) == "" {
		return nil, fmt.Errorf("consultant %s: %w", c.Username, domain.NewValidationError("external_account_id", "required"))
	}

	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, createSQL,
		id, c.ExternalAccountID, c.LegacyID, c.Username, c.UsernameEncoded,
		c.FirstName, c.LastName, c.Email, c.ChatUserID, c.Absent, c.AbsenceMessage,
		c.TeamConsultant, c.LanguageFormal, now,
	)

	created, err := scanConsultant(row)
	if err != nil {
		return nil, postgres.MapError(err, "consultant", id)
	}

	return created, nil
}

// SaveAgencyMembership adds the consultant to an agency. Saving a membership
// that is already live is a no-op, so a batch can be re-run safely.
func (r *Repo) SaveAgencyMembership(ctx context.Context, consultantID uuid.UUID, agencyID int64) error {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, saveMembershipSQL, uuid.New(), consultantID, agencyID, now)
	if err != nil {
		return postgres.MapError(err, "consultant_agency", consultantID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanConsultant(row pgx.Row) (*domain.Consultant, error) {
	var c domain.Consultant
	err := row.Scan(
		&c.ID, &c.ExternalAccountID, &c.LegacyID, &c.Username, &c.UsernameEncoded,
		&c.FirstName, &c.LastName, &c.Email, &c.ChatUserID, &c.Absent, &c.AbsenceMessage,
		&c.TeamConsultant, &c.LanguageFormal, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
