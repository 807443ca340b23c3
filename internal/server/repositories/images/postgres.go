package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements image storage over a dbx.DBTX (*sql.DB or *sql.Tx).
// There is deliberately no update: width and height are written once.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, owner_id, storage_key, content_type, width, height, created_at`

func (r *PostgresRepository) Create(ctx context.Context, image *models.Image) (*models.Image, error) {
	query := `
		INSERT INTO images (owner_id, storage_key, content_type, width, height)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		image.OwnerID, image.StorageKey, image.ContentType, nullInt(image.Width), nullInt(image.Height)).
		Scan(&image.ID, &image.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return image, nil
}

// GetByID returns common.ErrorNotFound for ids that are not UUIDs, which
// the column type would otherwise reject with an invalid-text error.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + selectColumns + ` FROM images WHERE id = $1`

	image, err := scanImage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return image, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Image, error) {
	query := `SELECT ` + selectColumns + ` FROM images WHERE owner_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	defer rows.Close()

	var result []*models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		result = append(result, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*models.Image, error) {
	image := &models.Image{}
	var width, height sql.NullInt64
	if err := s.Scan(&image.ID, &image.OwnerID, &image.StorageKey, &image.ContentType, &width, &height, &image.CreatedAt); err != nil {
		return nil, err
	}
	if width.Valid {
		w := int(width.Int64)
		image.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		image.Height = &h
	}
	return image, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
