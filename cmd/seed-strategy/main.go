package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tradebot/gohyper/internal/auth"
	"github.com/tradebot/gohyper/internal/domain"
)

// 向凭证库写入一组 用户/配置/策略，输出 webhook 所需的 strategyId 与 secret
func main() {
	_ = godotenv.Load()

	var (
		dbPath     = flag.String("db", envOr("GOHYPER_AUTH_DB", "data/auth.db"), "auth sqlite db path")
		username   = flag.String("user", "trader", "username")
		wallet     = flag.String("wallet", "", "wallet address (0x...)")
		privateKey = flag.String("key", "", "main wallet private key (hex)")
		apiKey     = flag.String("api-key", "", "API wallet private key (optional, preferred for signing)")
		testnet    = flag.Bool("testnet", false, "use testnet")

		name      = flag.String("name", "strategy", "strategy name")
		asset     = flag.String("asset", "ETH", "asset symbol")
		assetID   = flag.Int("asset-id", 1, "Hyperliquid asset id")
		lotSize   = flag.String("lot", "0.1", "order size per signal")
		leverage  = flag.Int("leverage", 1, "leverage")
		orderType = flag.String("order-type", "MARKET", "LIMIT or MARKET")
		tif       = flag.String("tif", "Gtc", "time in force: Gtc / Ioc / Alo")
		slPercent = flag.String("sl", "", "stop-loss percent (optional, 0.1-50)")
		tpPercent = flag.String("tp", "", "take-profit percent (optional, display only)")
		pyramid   = flag.Bool("pyramid", false, "allow same-direction add-ons")
		inverse   = flag.Bool("inverse", false, "open opposite position after close")
		secret    = flag.String("secret", "", "shared secret (generated when empty)")
	)
	flag.Parse()

	if *wallet == "" || *privateKey == "" {
		fmt.Fprintln(os.Stderr, "missing required flags: -wallet and -key")
		os.Exit(1)
	}

	lot, err := decimal.NewFromString(*lotSize)
	if err != nil || !lot.IsPositive() {
		fmt.Fprintf(os.Stderr, "invalid -lot %q\n", *lotSize)
		os.Exit(1)
	}

	db, err := auth.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	store := auth.NewStrategyStore(db)
	ctx := context.Background()

	user := domain.User{
		Username:      *username,
		WalletAddress: *wallet,
		PrivateKey:    *privateKey,
		IsTestnet:     *testnet,
	}
	if *apiKey != "" {
		user.APIWalletKey = apiKey
	}
	userID, err := store.CreateUser(ctx, user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}

	cfg := domain.Config{
		Name:        *name,
		Asset:       *asset,
		AssetID:     *assetID,
		LotSize:     lot,
		Leverage:    *leverage,
		OrderType:   *orderType,
		TimeInForce: *tif,
	}
	if *slPercent != "" {
		sl, err := decimal.NewFromString(*slPercent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -sl %q\n", *slPercent)
			os.Exit(1)
		}
		cfg.SlPercent = &sl
	}
	if *tpPercent != "" {
		tp, err := decimal.NewFromString(*tpPercent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -tp %q\n", *tpPercent)
			os.Exit(1)
		}
		cfg.TpPercent = &tp
	}
	configID, err := store.CreateConfig(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create config: %v\n", err)
		os.Exit(1)
	}

	sharedSecret := *secret
	if sharedSecret == "" {
		sharedSecret = uuid.NewString()
	}
	hash, err := auth.HashSecret(sharedSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash secret: %v\n", err)
		os.Exit(1)
	}

	strategyID := uuid.NewString()
	if _, err := store.CreateStrategy(ctx, strategyID, *name, hash, *pyramid, *inverse, userID, configID); err != nil {
		fmt.Fprintf(os.Stderr, "create strategy: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("strategyId: %s\nsecret:     %s\n", strategyID, sharedSecret)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
