package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, tierName string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (user_id, tier_id)
		VALUES ($1, (SELECT id FROM tiers WHERE name = $2))
		RETURNING id, tier_id
	`
	account := &models.Account{UserID: userID}
	var tierID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, userID, tierName).Scan(&account.ID, &tierID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if tierID.Valid {
		account.TierID = &tierID.Int64
	}
	return account, nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	query := `
		SELECT id, user_id, tier_id
		FROM accounts
		WHERE user_id = $1
	`
	account := &models.Account{}
	var tierID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&account.ID, &account.UserID, &tierID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if tierID.Valid {
		account.TierID = &tierID.Int64
	}
	return account, nil
}

func (r *PostgresRepository) PerkNames(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT p.name
		FROM accounts a
		JOIN tier_perks tp ON tp.tier_id = a.tier_id
		JOIN perks p ON p.id = tp.perk_id
		WHERE a.user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select perks: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan perk: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate perks: %w", err)
	}
	return names, nil
}
