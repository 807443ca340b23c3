package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQuery  = `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*salt,\s*password_hash,\s*is_staff\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at\s*$`
	byLoginQuery = `(?s)^SELECT\s+id,\s*username,\s*salt,\s*password_hash,\s*is_staff,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s*$`
	byIDQuery    = `(?s)^SELECT\s+id,\s*username,\s*salt,\s*password_hash,\s*is_staff,\s*created_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`
)

var userColumns = []string{"id", "username", "salt", "password_hash", "is_staff", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow("42", created)
	mock.ExpectQuery(insertQuery).
		WithArgs("alice", []byte("salt"), []byte("hash"), false).
		WillReturnRows(rows)

	u := &models.User{UserName: "alice", Salt: []byte("salt"), PasswordHash: []byte("hash")}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "42" || got.UserName != "alice" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WithArgs("alice", []byte("salt"), []byte("hash"), false).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", Salt: []byte("salt"), PasswordHash: []byte("hash")})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WithArgs("alice", []byte("salt"), []byte("hash"), true).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "alice", Salt: []byte("salt"), PasswordHash: []byte("hash"), IsStaff: true})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userColumns).
		AddRow("u-1", "alice", []byte("salt"), []byte("hash"), true, time.Now())
	mock.ExpectQuery(byLoginQuery).
		WithArgs("alice").
		WillReturnRows(rows)

	got, err := repo.GetUserByLogin(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByLogin error: %v", err)
	}
	if got.ID != "u-1" || got.UserName != "alice" || !got.IsStaff {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byLoginQuery).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetUserByLogin_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byLoginQuery).
		WithArgs("alice").
		WillReturnError(errors.New("db err"))

	_, err := repo.GetUserByLogin(context.Background(), "alice")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQuery).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "alice", []byte("salt"), []byte("hash"), false, time.Now()))
	mock.ExpectQuery(byIDQuery).
		WithArgs("u-2").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "u-1")
	if err != nil || got.UserName != "alice" {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}

	_, err = repo.GetByID(context.Background(), "u-2")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
