// Package user implements asker persistence using PostgreSQL.
package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/account-import/internal/adapter/postgres"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// Repo provides asker persistence backed by PostgreSQL.
type Repo struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

// New creates a new user repository.
func New(pool *pgxpool.Pool, callTimeout time.Duration) *Repo {
	return &Repo{pool: pool, callTimeout: callTimeout}
}

const userColumns = `id, external_account_id, legacy_id, username, username_encoded, email,
	chat_user_id, language_formal, created_at, updated_at`

const createSQL = `
INSERT INTO users (id, external_account_id, legacy_id, username, username_encoded, email,
                   chat_user_id, language_formal, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING ` + userColumns

const getByIDSQL = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1`

const saveUserAgencySQL = `
INSERT INTO user_agencies (id, user_id, agency_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, agency_id) DO NOTHING`

// Create inserts an asker. A user without an identity-provider account id
// is rejected before reaching the database. ID is generated when nil.
func (r *Repo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	if strings.TrimSpace(u.ExternalAccountID) == "" {
		return nil, fmt.Errorf("user %s: %w", u.Username, domain.NewValidationError("external_account_id", "required"))
	}

	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, createSQL,
		id, u.ExternalAccountID, u.LegacyID, u.Username, u.UsernameEncoded, u.Email,
		u.ChatUserID, u.LanguageFormal, now,
	)

	created, err := scanUser(row)
	if err != nil {
		return nil, postgres.MapError(err, "user", id)
	}

	return created, nil
}

// GetByID returns an asker by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	u, err := scanUser(postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, postgres.MapError(err, "user", id)
	}
	return u, nil
}

// SaveUserAgency links an asker to an agency. Saving an existing link is a no-op.
func (r *Repo) SaveUserAgency(ctx context.Context, userID uuid.UUID, agencyID int64) error {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, saveUserAgencySQL, uuid.New(), userID, agencyID, now)
	if err != nil {
		return postgres.MapError(err, "user_agency", userID)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.ExternalAccountID, &u.LegacyID, &u.Username, &u.UsernameEncoded, &u.Email,
		&u.ChatUserID, &u.LanguageFormal, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
