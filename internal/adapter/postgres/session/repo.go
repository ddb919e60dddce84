// Package session implements counselling-session persistence using PostgreSQL.
package session

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/account-import/internal/adapter/postgres"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// Repo provides session persistence backed by PostgreSQL.
type Repo struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

// New creates a new session repository.
func New(pool *pgxpool.Pool, callTimeout time.Duration) *Repo {
	return &Repo{pool: pool, callTimeout: callTimeout}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const sessionColumns = `id, user_id, consultant_id, agency_id, consulting_type_id, postcode, status,
	is_team_session, chat_room_id, feedback_chat_room_id, created_at, updated_at`

const createSQL = `
INSERT INTO sessions (id, user_id, consultant_id, agency_id, consulting_type_id, postcode, status,
                      is_team_session, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING ` + sessionColumns

const updateRoomsSQL = `
UPDATE sessions
SET chat_room_id = $2, feedback_chat_room_id = $3, updated_at = $4
WHERE id = $1`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a session. ID is generated when nil.
func (r *Repo) Create(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	if !s.Status.IsValid() {
		return nil, fmt.Errorf("session: %w", domain.NewValidationError("status", "unknown status "+s.Status.String()))
	}

	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	row := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, createSQL,
		id, s.UserID, s.ConsultantID, s.AgencyID, s.ConsultingTypeID, s.Postcode, string(s.Status),
		s.IsTeamSession, now,
	)

	created, err := scanSession(row)
	if err != nil {
		return nil, postgres.MapError(err, "session", id)
	}

	return created, nil
}

// UpdateRooms stores the chat room ids of a session. feedbackRoomID is nil
// when the consulting type has no feedback chat.
func (r *Repo) UpdateRooms(ctx context.Context, id uuid.UUID, chatRoomID string, feedbackRoomID *string) error {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)

	ct, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, updateRoomsSQL, id, chatRoomID, feedbackRoomID, now)
	if err != nil {
		return postgres.MapError(err, "session", id)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// FindOpenForAgencies returns the enquiries (status NEW) of the given
// agencies that already have a chat room.
func (r *Repo) FindOpenForAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Session, error) {
	return r.find(ctx, "open sessions", agencyIDs, sq.And{
		sq.Eq{"status": string(domain.SessionStatusNew)},
		sq.NotEq{"chat_room_id": nil},
	})
}

// FindInProgressTeamForAgencies returns the in-progress team sessions of
// the given agencies.
func (r *Repo) FindInProgressTeamForAgencies(ctx context.Context, agencyIDs []int64) ([]domain.Session, error) {
	return r.find(ctx, "team sessions", agencyIDs, sq.And{
		sq.Eq{"status": string(domain.SessionStatusInProgress)},
		sq.Eq{"is_team_session": true},
	})
}

func (r *Repo) find(ctx context.Context, what string, agencyIDs []int64, pred sq.Sqlizer) ([]domain.Session, error) {
	if len(agencyIDs) == 0 {
		return []domain.Session{}, nil
	}

	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, r.callTimeout)
	defer cancel()

	query, args, err := postgres.Builder().
		Select(sessionColumns).
		From("sessions").
		Where(sq.Eq{"agency_id": agencyIDs}).
		Where(pred).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", what, err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}

	return sessions, nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s      domain.Session
		status string
	)

	err := row.Scan(
		&s.ID, &s.UserID, &s.ConsultantID, &s.AgencyID, &s.ConsultingTypeID, &s.Postcode, &status,
		&s.IsTeamSession, &s.ChatRoomID, &s.FeedbackChatRoomID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = domain.SessionStatus(status)
	return &s, nil
}
