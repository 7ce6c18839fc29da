package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type AppointmentRepository struct {
	db *sql.DB
}

func NewAppointmentRepository(db *sql.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM citas WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check cita: %w", err)
	}
	return exists, nil
}
