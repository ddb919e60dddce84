package session_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/account-import/internal/adapter/postgres/session"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/account-import/internal/domain"
)

func newRepo(t *testing.T) (*session.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return session.New(pool, 0), pool
}

func sessionIDs(sessions []domain.Session) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestRepo_Create_AndUpdateRooms(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	agency := testhelper.SeedAgency(t, pool, 1, false)
	asker := testhelper.SeedUser(t, pool)
	consultant := testhelper.SeedConsultant(t, pool, agency.ID)

	created, err := repo.Create(ctx, &domain.Session{
		UserID:           asker.ID,
		ConsultantID:     &consultant.ID,
		AgencyID:         agency.ID,
		ConsultingTypeID: agency.ConsultingTypeID,
		Postcode:         "10115",
		Status:           domain.SessionStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusInProgress, created.Status)
	assert.False(t, created.HasChatRoom())
	require.NotNil(t, created.ConsultantID)
	assert.Equal(t, consultant.ID, *created.ConsultantID)

	feedback := "feedback-room"
	require.NoError(t, repo.UpdateRooms(ctx, created.ID, "main-room", &feedback))

	var room, fbRoom *string
	err = pool.QueryRow(ctx, `SELECT chat_room_id, feedback_chat_room_id FROM sessions WHERE id = $1`, created.ID).
		Scan(&room, &fbRoom)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "main-room", *room)
	require.NotNil(t, fbRoom)
	assert.Equal(t, "feedback-room", *fbRoom)
}

func TestRepo_Create_InvalidStatus(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)

	agency := testhelper.SeedAgency(t, pool, 1, false)
	asker := testhelper.SeedUser(t, pool)

	_, err := repo.Create(context.Background(), &domain.Session{
		UserID:   asker.ID,
		AgencyID: agency.ID,
		Status:   domain.SessionStatus("PAUSED"),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRepo_UpdateRooms_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	err := repo.UpdateRooms(context.Background(), uuid.New(), "room", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_FindOpenForAgencies(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	agency := testhelper.SeedAgency(t, pool, 1, false)
	other := testhelper.SeedAgency(t, pool, 1, false)

	withRoom := testhelper.SeedSession(t, pool, agency, domain.SessionStatusNew, false, "room-1")
	testhelper.SeedSession(t, pool, agency, domain.SessionStatusNew, false, "")
	testhelper.SeedSession(t, pool, agency, domain.SessionStatusInProgress, false, "room-2")
	testhelper.SeedSession(t, pool, other, domain.SessionStatusNew, false, "room-3")

	got, err := repo.FindOpenForAgencies(ctx, []int64{agency.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{withRoom.ID}, sessionIDs(got))
}

func TestRepo_FindInProgressTeamForAgencies(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	a1 := testhelper.SeedAgency(t, pool, 1, true)
	a2 := testhelper.SeedAgency(t, pool, 1, true)

	team1 := testhelper.SeedSession(t, pool, a1, domain.SessionStatusInProgress, true, "room-a")
	team2 := testhelper.SeedSession(t, pool, a2, domain.SessionStatusInProgress, true, "room-b")
	testhelper.SeedSession(t, pool, a1, domain.SessionStatusInProgress, false, "room-c")
	testhelper.SeedSession(t, pool, a1, domain.SessionStatusDone, true, "room-d")

	got, err := repo.FindInProgressTeamForAgencies(ctx, []int64{a1.ID, a2.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{team1.ID, team2.ID}, sessionIDs(got))

	empty, err := repo.FindInProgressTeamForAgencies(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
