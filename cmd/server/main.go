package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	hlclient "github.com/tradebot/gohyper/hl/client"
	"github.com/tradebot/gohyper/hl/types"
	"github.com/tradebot/gohyper/internal/auth"
	"github.com/tradebot/gohyper/internal/gateway"
	"github.com/tradebot/gohyper/internal/ledger"
	tradesignal "github.com/tradebot/gohyper/internal/signal"
	"github.com/tradebot/gohyper/internal/webhook"
	"github.com/tradebot/gohyper/pkg/config"
	"github.com/tradebot/gohyper/pkg/logger"
)

func main() {
	// 先读 .env，缺失时回退真实环境变量
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("GOHYPER_CONFIG"), "yaml config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config failed: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logrus.Fatalf("init logger failed: %v", err)
	}
	log := logrus.WithField("component", "main")

	ledgerDB, err := ledger.Open(cfg.LedgerDBPath)
	if err != nil {
		log.Fatalf("open ledger db failed: %v", err)
	}
	defer ledgerDB.Close()
	store := ledger.NewExecutionStore(ledgerDB)

	authDB, err := auth.Open(cfg.AuthDBPath)
	if err != nil {
		log.Fatalf("open auth db failed: %v", err)
	}
	defer authDB.Close()
	validator := auth.NewValidator(auth.NewStrategyStore(authDB))

	nonces := hlclient.NewNonceAllocator()

	var gw gateway.OrderGateway
	var priceStream *hlclient.PriceStream
	switch cfg.Mode {
	case config.ModeLive:
		mainnet := hlclient.NewClient(types.MainnetAPIURL)
		testnet := hlclient.NewClient(types.TestnetAPIURL)

		var prices gateway.PriceCache
		if cfg.PriceStreamEnabled {
			priceStream = hlclient.NewPriceStream(types.WSURLFor(cfg.PriceStreamTestnet))
			priceStream.Start(context.Background())
			prices = priceStream
		}
		gw = gateway.NewLiveGateway(mainnet, testnet, nonces, prices)
		log.Info("实盘网关已启用")
	default:
		gw = gateway.NewSimulatedGateway(nonces)
		log.Info("模拟网关已启用")
	}

	processor := tradesignal.NewProcessor(validator, gw, store)
	srv := webhook.NewServer(processor, store,
		time.Duration(cfg.Server.WebhookTimeoutSeconds)*time.Second)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("webhook 服务监听 %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	if priceStream != nil {
		priceStream.Stop()
	}

	log.Info("server stopped")
}
