package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements link storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, link *models.ExpiringLink) (*models.ExpiringLink, error) {
	query := `
		INSERT INTO expiring_links (image_id, name, created, expiring)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, link.ImageID, link.Name, link.Created, link.Expiring).Scan(&link.ID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

func (r *PostgresRepository) FindByName(ctx context.Context, name string) (*models.ExpiringLink, error) {
	query := `SELECT id, image_id, name, created, expiring FROM expiring_links WHERE name = $1`
	return r.getOne(ctx, query, name)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ExpiringLink, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT id, image_id, name, created, expiring FROM expiring_links WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.ExpiringLink, error) {
	link := &models.ExpiringLink{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&link.ID, &link.ImageID, &link.Name, &link.Created, &link.Expiring)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.ExpiringLink, error) {
	query := `
		SELECT l.id, l.image_id, l.name, l.created, l.expiring
		FROM expiring_links l
		JOIN images i ON i.id = l.image_id
		WHERE i.owner_id = $1
		ORDER BY l.created, l.id
	`
	return r.list(ctx, query, ownerID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.ExpiringLink, error) {
	query := `SELECT id, image_id, name, created, expiring FROM expiring_links ORDER BY created, id`
	return r.list(ctx, query)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.ExpiringLink, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}
	defer rows.Close()

	var result []*models.ExpiringLink
	for rows.Next() {
		var item models.ExpiringLink
		if err := rows.Scan(&item.ID, &item.ImageID, &item.Name, &item.Created, &item.Expiring); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expiring_links WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByImage(ctx context.Context, imageID string) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM expiring_links WHERE image_id = $1`, imageID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM expiring_links WHERE expiring <= $1`, now)
}

func (r *PostgresRepository) deleteWhere(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
