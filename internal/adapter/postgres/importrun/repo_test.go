package importrun_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/account-import/internal/adapter/postgres/importrun"
	"github.com/heartmarshall/account-import/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/account-import/internal/domain"
)

func TestRepo_CreateAndFinish(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := importrun.New(pool, 0)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.ImportRun{
		Variant:    domain.VariantConsultant,
		SourcePath: "/data/consultants.csv",
		LogPath:    "/var/log/protocol.log.1700000000000",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.ImportRunRunning, created.Status)
	assert.Nil(t, created.FinishedAt)

	reason := "row 7: chat login failed"
	created.Status = domain.ImportRunAborted
	created.Processed = 7
	created.Succeeded = 5
	created.Skipped = 1
	created.Error = &reason

	finished, err := repo.Finish(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportRunAborted, finished.Status)
	assert.Equal(t, 7, finished.Processed)
	assert.Equal(t, 5, finished.Succeeded)
	assert.Equal(t, 1, finished.Skipped)
	require.NotNil(t, finished.FinishedAt)
	require.NotNil(t, finished.Error)
	assert.Equal(t, reason, *finished.Error)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VariantConsultant, got.Variant)
}

func TestRepo_Finish_Twice(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := importrun.New(pool, 0)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.ImportRun{
		Variant:    domain.VariantAsker,
		SourcePath: "askers.csv",
		LogPath:    "protocol.log.1",
	})
	require.NoError(t, err)

	created.Status = domain.ImportRunCompleted
	_, err = repo.Finish(ctx, created)
	require.NoError(t, err)

	_, err = repo.Finish(ctx, created)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
