package links

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const (
	insertQuery        = `(?s)^\s*INSERT\s+INTO\s+expiring_links\s*\(image_id,\s*name,\s*created,\s*expiring\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id\s*$`
	byNameQuery        = `^SELECT\s+id,\s*image_id,\s*name,\s*created,\s*expiring\s+FROM\s+expiring_links\s+WHERE\s+name\s*=\s*\$1$`
	byIDQuery          = `^SELECT\s+id,\s*image_id,\s*name,\s*created,\s*expiring\s+FROM\s+expiring_links\s+WHERE\s+id\s*=\s*\$1$`
	byOwnerQuery       = `(?s)^\s*SELECT\s+l\.id,.*FROM\s+expiring_links\s+l\s+JOIN\s+images\s+i\s+ON\s+i\.id\s*=\s*l\.image_id\s+WHERE\s+i\.owner_id\s*=\s*\$1\s+ORDER\s+BY\s+l\.created,\s*l\.id\s*$`
	allQuery           = `^SELECT\s+.+\s+FROM\s+expiring_links\s+ORDER\s+BY\s+created,\s*id$`
	deleteQuery        = `^DELETE\s+FROM\s+expiring_links\s+WHERE\s+id\s*=\s*\$1$`
	deleteByImageQuery = `^DELETE\s+FROM\s+expiring_links\s+WHERE\s+image_id\s*=\s*\$1$`
	deleteExpiredQuery = `^DELETE\s+FROM\s+expiring_links\s+WHERE\s+expiring\s*<=\s*\$1$`
)

var linkColumns = []string{"id", "image_id", "name", "created", "expiring"}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	expiring := created.Add(300 * time.Second)

	mock.ExpectQuery(insertQuery).
		WithArgs("img-1", "abc", created, expiring).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("link-1"))

	link, err := repo.Create(context.Background(), &models.ExpiringLink{ImageID: "img-1", Name: "abc", Created: created, Expiring: expiring})
	require.NoError(t, err)
	assert.Equal(t, "link-1", link.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.ExpiringLink{Name: "abc"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = repo.Create(context.Background(), &models.ExpiringLink{Name: "abc"})
	assert.ErrorContains(t, err, "db error: db down")
}

func TestFindByName(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	exp := time.Now().Add(time.Hour)
	mock.ExpectQuery(byNameQuery).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(linkColumns).AddRow("link-1", "img-1", "abc", time.Now(), exp))
	mock.ExpectQuery(byNameQuery).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(byNameQuery).
		WithArgs("err").
		WillReturnError(errors.New("boom"))

	link, err := repo.FindByName(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "img-1", link.ImageID)
	assert.True(t, link.Expiring.Equal(exp))

	_, err = repo.FindByName(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.FindByName(context.Background(), "err")
	assert.ErrorContains(t, err, "db error: boom")
}

const linkID = "9c2d7e15-6a3b-4c8f-b1e0-2f5a7d9c3e68"

func TestGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byIDQuery).
		WithArgs(linkID).
		WillReturnRows(sqlmock.NewRows(linkColumns).AddRow(linkID, "img-1", "abc", time.Now(), time.Now()))

	link, err := repo.GetByID(context.Background(), linkID)
	require.NoError(t, err)
	assert.Equal(t, "abc", link.Name)
}

func TestGetByID_MalformedID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	_, err := repo.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byOwnerQuery).
		WithArgs("owner").
		WillReturnRows(sqlmock.NewRows(linkColumns).
			AddRow("l1", "img-1", "a", time.Now(), time.Now()).
			AddRow("l2", "img-2", "b", time.Now(), time.Now()))

	got, err := repo.ListByOwner(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "l2", got[1].ID)
}

func TestListAll(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(allQuery).
		WillReturnRows(sqlmock.NewRows(linkColumns).AddRow("l1", "img-1", "a", time.Now(), time.Now()))
	mock.ExpectQuery(allQuery).
		WillReturnError(errors.New("boom"))

	got, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = repo.ListAll(context.Background())
	assert.ErrorContains(t, err, "failed to select links: boom")
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(deleteQuery).WithArgs("l1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQuery).WithArgs("l1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteQuery).WithArgs("l2").WillReturnError(errors.New("boom"))

	require.NoError(t, repo.Delete(context.Background(), "l1"))
	require.NoError(t, repo.Delete(context.Background(), "l1"), "deleting an absent link is a no-op")
	assert.ErrorContains(t, repo.Delete(context.Background(), "l2"), "db error: boom")
}

func TestDeleteByImage(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(deleteByImageQuery).WithArgs("img-1").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByImage(context.Background(), "img-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(deleteExpiredQuery).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(deleteExpiredQuery).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteExpiredQuery).WithArgs(now).WillReturnError(errors.New("boom"))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.DeleteExpired(context.Background(), now)
	assert.ErrorContains(t, err, "db error: boom")
}
