package auth

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/tradebot/gohyper/internal/domain"
)

// StrategyStore 策略、配置与账户的 sqlite 仓储
// 只承载凭证校验与 seed 工具需要的最小读写面
type StrategyStore struct {
	db *sql.DB
}

// Open 打开凭证库并执行迁移
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

func NewStrategyStore(db *sql.DB) *StrategyStore {
	return &StrategyStore{db: db}
}

// Migrate 创建凭证相关表结构（幂等）
func Migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  wallet_address TEXT NOT NULL,
  private_key TEXT NOT NULL,
  api_wallet_key TEXT,
  is_testnet INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS strategy_configs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  asset TEXT NOT NULL,
  asset_id INTEGER NOT NULL,
  lot_size TEXT NOT NULL,
  leverage INTEGER NOT NULL DEFAULT 1,
  order_type TEXT NOT NULL DEFAULT 'MARKET',
  time_in_force TEXT NOT NULL DEFAULT 'Gtc',
  sl_percent TEXT,
  tp_percent TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS strategies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  strategy_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  secret_hash TEXT NOT NULL,
  pyramid INTEGER NOT NULL DEFAULT 0,
  inverse INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  user_id INTEGER NOT NULL REFERENCES users(id),
  config_id INTEGER NOT NULL REFERENCES strategy_configs(id),
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_strategies_external ON strategies(strategy_id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("auth migrate: %w", err)
		}
	}
	return nil
}

// CreateUser 写入交易账户，返回行 ID
func (s *StrategyStore) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username,wallet_address,private_key,api_wallet_key,is_testnet,created_at)
VALUES (?,?,?,?,?,?)
`, u.Username, u.WalletAddress, u.PrivateKey, u.APIWalletKey, boolInt(u.IsTestnet),
		time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return 0, domain.NewPersistenceError("insert user", err)
	}
	return res.LastInsertId()
}

// CreateConfig 写入交易参数，返回行 ID
func (s *StrategyStore) CreateConfig(ctx context.Context, c domain.Config) (int64, error) {
	var slStr, tpStr *string
	if c.SlPercent != nil {
		v := c.SlPercent.String()
		slStr = &v
	}
	if c.TpPercent != nil {
		v := c.TpPercent.String()
		tpStr = &v
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO strategy_configs (name,asset,asset_id,lot_size,leverage,order_type,time_in_force,sl_percent,tp_percent)
VALUES (?,?,?,?,?,?,?,?,?)
`, c.Name, c.Asset, c.AssetID, c.LotSize.String(), c.Leverage, c.OrderType, c.TimeInForce, slStr, tpStr)
	if err != nil {
		return 0, domain.NewPersistenceError("insert config", err)
	}
	return res.LastInsertId()
}

// CreateStrategy 写入策略，secretHash 为 bcrypt 摘要
func (s *StrategyStore) CreateStrategy(ctx context.Context, externalID, name, secretHash string,
	pyramid, inverse bool, userID, configID int64) (int64, error) {

	res, err := s.db.ExecContext(ctx, `
INSERT INTO strategies (strategy_id,name,secret_hash,pyramid,inverse,active,user_id,config_id,created_at)
VALUES (?,?,?,?,?,1,?,?,?)
`, externalID, name, secretHash, boolInt(pyramid), boolInt(inverse), userID, configID,
		time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return 0, domain.NewPersistenceError("insert strategy", err)
	}
	return res.LastInsertId()
}

// strategyRow 校验查询的中间结构，secret_hash 不出包
type strategyRow struct {
	view       domain.StrategyView
	secretHash string
	active     bool
}

// findByExternalID 按外部策略 ID 连表读出完整视图
func (s *StrategyStore) findByExternalID(ctx context.Context, externalID string) (*strategyRow, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT st.strategy_id, st.name, st.secret_hash, st.pyramid, st.inverse, st.active,
       c.name, c.asset, c.asset_id, c.lot_size, c.leverage, c.order_type, c.time_in_force,
       c.sl_percent, c.tp_percent,
       u.id, u.username, u.wallet_address, u.private_key, u.api_wallet_key, u.is_testnet
FROM strategies st
JOIN strategy_configs c ON c.id = st.config_id
JOIN users u ON u.id = st.user_id
WHERE st.strategy_id = ?
`, externalID)

	var (
		r                    strategyRow
		pyramid, inverse     int
		active, isTestnet    int
		lotSize              string
		slPercent, tpPercent sql.NullString
		apiWalletKey         sql.NullString
	)
	err := row.Scan(
		&r.view.StrategyID, &r.view.Name, &r.secretHash, &pyramid, &inverse, &active,
		&r.view.Config.Name, &r.view.Config.Asset, &r.view.Config.AssetID, &lotSize,
		&r.view.Config.Leverage, &r.view.Config.OrderType, &r.view.Config.TimeInForce,
		&slPercent, &tpPercent,
		&r.view.User.ID, &r.view.User.Username, &r.view.User.WalletAddress,
		&r.view.User.PrivateKey, &apiWalletKey, &isTestnet,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewPersistenceError("query strategy", err)
	}

	r.view.Pyramid = pyramid != 0
	r.view.Inverse = inverse != 0
	r.active = active != 0
	r.view.User.IsTestnet = isTestnet != 0
	if apiWalletKey.Valid && apiWalletKey.String != "" {
		r.view.User.APIWalletKey = &apiWalletKey.String
	}

	r.view.Config.LotSize, err = decimal.NewFromString(lotSize)
	if err != nil {
		return nil, domain.NewPersistenceError("parse lot size", err)
	}
	if r.view.Config.SlPercent, err = parseNullDecimal(slPercent); err != nil {
		return nil, domain.NewPersistenceError("parse sl percent", err)
	}
	if r.view.Config.TpPercent, err = parseNullDecimal(tpPercent); err != nil {
		return nil, domain.NewPersistenceError("parse tp percent", err)
	}
	return &r, nil
}

func parseNullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
