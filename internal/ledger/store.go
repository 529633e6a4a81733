package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Open 打开（必要时创建）sqlite 数据库并应用迁移
func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate 创建台账表结构（幂等）
func Migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS order_executions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  primary_order_id TEXT NOT NULL,
  order_side TEXT NOT NULL,
  fill_price TEXT NOT NULL,
  order_size TEXT NOT NULL,
  status TEXT NOT NULL,
  strategy_id TEXT NOT NULL,
  user_id INTEGER NOT NULL,
  stop_loss_order_id TEXT,
  stop_loss_price TEXT,
  stop_loss_status TEXT NOT NULL DEFAULT 'NONE',
  grouping_type TEXT,
  executed_at TEXT NOT NULL,
  stop_loss_placed_at TEXT,
  stop_loss_cancelled_at TEXT,
  closed_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_order_executions_strategy ON order_executions(strategy_id, executed_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_order_executions_open ON order_executions(strategy_id) WHERE closed_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_order_executions_primary ON order_executions(primary_order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_order_executions_sl ON order_executions(stop_loss_order_id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ledger migrate: %w", err)
		}
	}
	return nil
}
