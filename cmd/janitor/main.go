package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultRetentionDays = 30

const pruneHistorySQL = `DELETE FROM snapshot_history WHERE saved_at < now() - make_interval(days => $1);`

// retentionDays lee HISTORY_RETENTION_DAYS; valores vacíos o inválidos usan el default.
func retentionDays(getenv func(string) string) int {
	n, err := strconv.Atoi(getenv("HISTORY_RETENTION_DAYS"))
	if err != nil || n < 1 {
		return defaultRetentionDays
	}
	return n
}

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	days := retentionDays(os.Getenv)
	tag, err := pool.Exec(cctx, pruneHistorySQL, days)
	if err != nil {
		return "", fmt.Errorf("prune snapshot_history: %w", err)
	}
	return fmt.Sprintf("ok: %d history rows older than %dd removed", tag.RowsAffected(), days), nil
}

func main() { lambda.Start(handler) }
