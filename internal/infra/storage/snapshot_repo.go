package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// SnapshotRepo implementa Backend sobre Postgres.
// snapshots guarda la última versión; snapshot_history cada escritura.
type SnapshotRepo struct{ db *sql.DB }

var (
	_ Backend     = (*SnapshotRepo)(nil)
	_ BatchGetter = (*SnapshotRepo)(nil)
)

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Get(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE name = $1`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
	}
	return body, err
}

// GetMany lee varios documentos en una sola query. Los ausentes no aparecen en el map.
func (r *SnapshotRepo) GetMany(ctx context.Context, names []string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, body FROM snapshots WHERE name = ANY($1)`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte, len(names))
	for rows.Next() {
		var (
			name string
			body []byte
		)
		if err := rows.Scan(&name, &body); err != nil {
			return nil, err
		}
		out[name] = body
	}
	return out, rows.Err()
}

// Put hace upsert del documento y agrega una fila al histórico, en la misma tx.
func (r *SnapshotRepo) Put(ctx context.Context, name string, data []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshots (name, body, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
`, name, string(data)); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_history (name, body, saved_at) VALUES ($1, $2::jsonb, now())
`, name, string(data)); err != nil {
		return fmt.Errorf("append history %s: %w", name, err)
	}
	return tx.Commit()
}

// PruneHistory borra filas del histórico más viejas que olderThan. Devuelve cuántas.
func (r *SnapshotRepo) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM snapshot_history WHERE saved_at < now() - $1::interval
`, durToInterval(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func durToInterval(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs <= 0 {
		return "0 seconds"
	}
	return fmt.Sprintf("%d seconds", secs)
}
