package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/cryptox"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/config"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	accountsrepo "github.com/dmitrijs2005/imagehost/internal/server/repositories/accounts"
	imagesrepo "github.com/dmitrijs2005/imagehost/internal/server/repositories/images"
	linksrepo "github.com/dmitrijs2005/imagehost/internal/server/repositories/links"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/memory"
	refreshtokensrepo "github.com/dmitrijs2005/imagehost/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/imagehost/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testUserConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		DefaultTier:                  "Basic",
	}
}

func newUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	return NewUserService(dbx.NewSQLExecutor(db), rm, nil, testUserConfig())
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	delErr error

	createErr error
	created   []*models.RefreshToken
}

func (f *fakeRefreshRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	return f.delErr
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeAccountsRepo struct {
	createErr error
	tierName  string
}

func (f *fakeAccountsRepo) Create(ctx context.Context, userID string, tierName string) (*models.Account, error) {
	f.tierName = tierName
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Account{ID: 1, UserID: userID}, nil
}

func (f *fakeAccountsRepo) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) PerkNames(ctx context.Context, userID string) ([]string, error) {
	return []string{}, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	a *fakeAccountsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accountsrepo.Repository           { return m.a }
func (m *fakeRepoManager) Images(db dbx.DBTX) imagesrepo.Repository               { return nil }
func (m *fakeRepoManager) Links(db dbx.DBTX) linksrepo.Repository                 { return nil }

func TestRefreshToken_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	refresh := &fakeRefreshRepo{
		findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
	}
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1", IsStaff: true}},
		r: refresh,
	}
	s := newUserService(t, db, rm)

	pair, err := s.RefreshToken(context.Background(), "refresh-xyz")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())

	id, err := auth.ParseToken(pair.AccessToken, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u1", IsStaff: true}, id)

	require.Len(t, refresh.created, 1)
	assert.Equal(t, pair.RefreshToken, refresh.created[0].Token)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), refresh.created[0].Expires, time.Minute)
}

func TestRefreshToken_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(-1 * time.Minute)},
		},
	}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want ErrRefreshTokenExpired, got %v", err)
	}
}

func TestRefreshToken_Unknown(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: &fakeRefreshRepo{findErr: common.ErrorNotFound}}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefreshToken_FindErr(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: &fakeRefreshRepo{findErr: errBoom{}}}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error searching refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped find error, got %v", err)
	}
}

func TestRefreshToken_DeleteErr(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1"}},
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
			delErr:  errBoom{},
		},
	}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error deleting refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshToken_GeneratePair_CreateErr(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1"}},
		r: &fakeRefreshRepo{
			findOut:   &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
			createErr: errBoom{},
		},
	}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	assert.ErrorIs(t, err, common.ErrorInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_SuccessAndError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()
	accounts := &fakeAccountsRepo{}
	rmOK := &fakeRepoManager{
		u: &fakeUsersRepo{createOut: &models.User{ID: "42", UserName: "alice"}},
		a: accounts,
	}
	u, err := newUserService(t, db, rmOK).Register(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "42", u.ID)
	assert.Equal(t, "Basic", accounts.tierName)

	mock.ExpectBegin()
	mock.ExpectRollback()
	rmErr := &fakeRepoManager{u: &fakeUsersRepo{createErr: errBoom{}}, a: &fakeAccountsRepo{}}
	_, err = newUserService(t, db, rmErr).Register(context.Background(), "bob", "secret")
	if err == nil || !regexp.MustCompile(`error creating user: .*boom`).MatchString(err.Error()) {
		t.Fatalf("Register expected wrapped error, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	rmAcc := &fakeRepoManager{
		u: &fakeUsersRepo{createOut: &models.User{ID: "43", UserName: "carol"}},
		a: &fakeAccountsRepo{createErr: errBoom{}},
	}
	_, err = newUserService(t, db, rmAcc).Register(context.Background(), "carol", "secret")
	assert.ErrorContains(t, err, "error creating account: boom")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_DuplicateKeepsSentinel(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrorAlreadyExists}, a: &fakeAccountsRepo{}}
	_, err := newUserService(t, db, rm).Register(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestLogin_Flows(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	salt := cryptox.NewSalt()
	hash := cryptox.HashPassword([]byte("right"), salt)

	// not found → unauthorized
	rmNF := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrorNotFound}, r: &fakeRefreshRepo{}}
	if _, err := newUserService(t, db, rmNF).Login(context.Background(), "ghost", "x"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("notfound → unauthorized, got %v", err)
	}

	// internal error
	rmIE := &fakeRepoManager{u: &fakeUsersRepo{getErr: errBoom{}}, r: &fakeRefreshRepo{}}
	if _, err := newUserService(t, db, rmIE).Login(context.Background(), "u", "x"); !errors.Is(err, common.ErrorInternal) {
		t.Fatalf("internal → ErrorInternal, got %v", err)
	}

	// wrong password → unauthorized
	user := &models.User{ID: "u1", Salt: salt, PasswordHash: hash}
	rmWV := &fakeRepoManager{u: &fakeUsersRepo{getOut: user}, r: &fakeRefreshRepo{}}
	if _, err := newUserService(t, db, rmWV).Login(context.Background(), "u", "wrong"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("wrong password → unauthorized, got %v", err)
	}

	rmOK := &fakeRepoManager{u: &fakeUsersRepo{getOut: user}, r: &fakeRefreshRepo{}}
	pair, err := newUserService(t, db, rmOK).Login(context.Background(), "u", "right")
	if err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("Login success: pair=%+v err=%v", pair, err)
	}
}

func TestUserService_MemoryRoundTrip(t *testing.T) {
	store := memory.NewStore(memory.DefaultTiers())
	rm := repomanager.NewInMemoryRepositoryManager(store)
	perks := &stubPerks{names: []string{"200px thumbnail"}}
	s := NewUserService(store.Executor(), rm, perks, testUserConfig())
	ctx := context.Background()

	u, err := s.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	acc, err := store.Accounts().GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, acc.TierID)

	_, err = s.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	pair, err := s.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	rotated, err := s.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// the old refresh token is gone after rotation
	_, err = s.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	names, err := s.Perks(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"200px thumbnail"}, names)
	assert.Equal(t, u.ID, perks.userID)
}

type stubPerks struct {
	names  []string
	userID string
}

func (s *stubPerks) Names(_ context.Context, userID string) ([]string, error) {
	s.userID = userID
	return s.names, nil
}
