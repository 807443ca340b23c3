package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

const (
	insertQuery    = `(?s)^\s*INSERT\s+INTO\s+accounts\s*\(user_id,\s*tier_id\)\s*VALUES\s*\(\$1,\s*\(SELECT\s+id\s+FROM\s+tiers\s+WHERE\s+name\s*=\s*\$2\)\)\s*RETURNING\s+id,\s*tier_id\s*$`
	byUserQuery    = `(?s)^\s*SELECT\s+id,\s*user_id,\s*tier_id\s+FROM\s+accounts\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	perkNamesQuery = `(?s)^\s*SELECT\s+p\.name\s+FROM\s+accounts\s+a\s+JOIN\s+tier_perks\s+tp\s+ON\s+tp\.tier_id\s*=\s*a\.tier_id\s+JOIN\s+perks\s+p\s+ON\s+p\.id\s*=\s*tp\.perk_id\s+WHERE\s+a\.user_id\s*=\s*\$1\s*$`
)

func TestCreate(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("u1", "Basic").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tier_id"}).AddRow(int64(7), int64(1)))
	mock.ExpectQuery(insertQuery).
		WithArgs("u2", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tier_id"}).AddRow(int64(8), nil))

	acc, err := repo.Create(context.Background(), "u1", "Basic")
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.ID)
	require.NotNil(t, acc.TierID)
	assert.Equal(t, int64(1), *acc.TierID)

	acc, err = repo.Create(context.Background(), "u2", "")
	require.NoError(t, err)
	assert.Nil(t, acc.TierID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("u1", "Basic").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(insertQuery).
		WithArgs("u1", "Basic").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "u1", "Basic")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = repo.Create(context.Background(), "u1", "Basic")
	assert.ErrorContains(t, err, "db error: db down")
}

func TestGetByUserID(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(byUserQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "tier_id"}).AddRow(int64(1), "u1", nil))
	mock.ExpectQuery(byUserQuery).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	acc, err := repo.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", acc.UserID)
	assert.Nil(t, acc.TierID)

	_, err = repo.GetByUserID(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPerkNames(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(perkNamesQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("200px thumbnail").
			AddRow("original image"))

	names, err := repo.PerkNames(context.Background(), "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"200px thumbnail", "original image"}, names)
}

func TestPerkNames_NoAccountIsEmpty(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(perkNamesQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	names, err := repo.PerkNames(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestPerkNames_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(perkNamesQuery).
		WithArgs("u1").
		WillReturnError(errors.New("db down"))

	_, err := repo.PerkNames(context.Background(), "u1")
	assert.ErrorContains(t, err, "failed to select perks: db down")
}

func TestPerkNames_RowError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(perkNamesQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("200px thumbnail").
			RowError(0, errors.New("row boom")))

	_, err := repo.PerkNames(context.Background(), "u1")
	assert.ErrorContains(t, err, "row boom")
}
