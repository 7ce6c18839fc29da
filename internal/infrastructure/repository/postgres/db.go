package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// schemaLockKey serializes bootstrap DDL across api, worker and seed startups.
const schemaLockKey int64 = 2024051001

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS diagnosticos (
	id SERIAL PRIMARY KEY,
	diagnosticos TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS citas (
	id SERIAL PRIMARY KEY,
	descripcion TEXT NOT NULL DEFAULT '',
	patient_id BIGINT,
	medico_id BIGINT,
	fecha_cita TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS historial (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	texto_original TEXT NOT NULL,
	resumen TEXT NOT NULL,
	traduccion TEXT NOT NULL,
	entidades JSONB NOT NULL DEFAULT '[]'::jsonb,
	palabras_claves JSONB NOT NULL DEFAULT '[]'::jsonb,
	sentimiento TEXT NOT NULL,
	sentimiento_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	diagnosticos_id INTEGER REFERENCES diagnosticos(id) ON DELETE CASCADE,
	diagnostico_label TEXT NOT NULL,
	diagnostico_confianza DOUBLE PRECISION NOT NULL DEFAULT 0,
	diagnostico_metodo TEXT NOT NULL,
	cita_id INTEGER REFERENCES citas(id) ON DELETE SET NULL,
	user_id BIGINT NOT NULL,
	degradado JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_historial_user_created ON historial(user_id, created_at DESC);
`

// EnsureSchema creates the catalog, appointment and history tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
