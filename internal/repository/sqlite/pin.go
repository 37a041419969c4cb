package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/virtual-tourist/internal/domain"
)

// pinRepo implements domain.PinRepository using SQLite.
type pinRepo struct {
	db *sql.DB
}

func (r *pinRepo) Create(ctx context.Context, pin *domain.Pin) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO pins (user_id, latitude, longitude, created_at) VALUES (?, ?, ?, ?)`,
		pin.UserID, pin.Latitude, pin.Longitude, now,
	)
	if err != nil {
		return fmt.Errorf("insert pin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	pin.ID = id
	pin.CreatedAt = now
	return nil
}

func (r *pinRepo) GetByID(ctx context.Context, id int64) (*domain.Pin, error) {
	pin := &domain.Pin{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, latitude, longitude, created_at FROM pins WHERE id = ?`, id,
	).Scan(&pin.ID, &pin.UserID, &pin.Latitude, &pin.Longitude, &pin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get pin: %w", err)
	}
	return pin, nil
}

func (r *pinRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Pin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, latitude, longitude, created_at FROM pins
		 WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	defer rows.Close()

	var pins []domain.Pin
	for rows.Next() {
		var p domain.Pin
		if err := rows.Scan(&p.ID, &p.UserID, &p.Latitude, &p.Longitude, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

func (r *pinRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE pin_id = ?", id); err != nil {
		return fmt.Errorf("delete pin photos: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM pins WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit()
}
