// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, and issuing/refreshing JWTs
// plus server-stored refresh tokens.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/cryptox"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/config"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// PerkLister returns the perk names a user's tier grants.
type PerkLister interface {
	Names(ctx context.Context, userID string) ([]string, error)
}

// UserService provides authentication-related operations:
// - Register: create users together with their account
// - Login: verify credentials and mint tokens
// - RefreshToken: rotate refresh tokens and mint new access tokens
type UserService struct {
	exec                         dbx.Executor
	repomanager                  repomanager.RepositoryManager
	perks                        PerkLister
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	defaultTier                  string
	clock                        func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(exec dbx.Executor, m repomanager.RepositoryManager, perks PerkLister, cfg *config.Config) *UserService {
	return &UserService{
		exec:                         exec,
		repomanager:                  m,
		perks:                        perks,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		defaultTier:                  cfg.DefaultTier,
		clock:                        time.Now,
	}
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired,
// unknown ones ErrorUnauthorized.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	conn := s.exec.Conn()

	token, err := s.repomanager.RefreshTokens(conn).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.clock()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(conn).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	var pair *TokenPair
	if err := s.exec.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Register creates a new user with an account on the default tier. A taken
// username yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	salt := cryptox.NewSalt()
	user := &models.User{
		UserName:     username,
		Salt:         salt,
		PasswordHash: cryptox.HashPassword([]byte(password), salt),
	}

	var created *models.User
	err := s.exec.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		if _, err := s.repomanager.Accounts(tx).Create(ctx, u.ID, s.defaultTier); err != nil {
			return fmt.Errorf("error creating account: %w", err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Login verifies the password and, on success, returns a new TokenPair.
// Unknown users and wrong passwords both yield ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	conn := s.exec.Conn()
	user, err := s.repomanager.Users(conn).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !cryptox.VerifyPassword([]byte(password), user.Salt, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}
	return s.generateTokenPair(ctx, user, conn)
}

// Perks lists the perk names granted to userID.
func (s *UserService) Perks(ctx context.Context, userID string) ([]string, error) {
	return s.perks.Names(ctx, userID)
}

// --- helpers below ---

func (s *UserService) generateAccessToken(user *models.User) (string, error) {
	return auth.GenerateToken(user.ID, user.IsStaff, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(user)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	token := &models.RefreshToken{
		UserID:  user.ID,
		Token:   refresh,
		Expires: s.clock().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, token); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
