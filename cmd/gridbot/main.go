package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vitos/gridpool/internal/domain"
	"github.com/vitos/gridpool/internal/infrastructure/logger"
	"github.com/vitos/gridpool/internal/infrastructure/pool"
	"github.com/vitos/gridpool/internal/infrastructure/storage"
	"github.com/vitos/gridpool/internal/notify"
	"github.com/vitos/gridpool/internal/oracle"
	"github.com/vitos/gridpool/internal/usecase"
	"github.com/vitos/gridpool/internal/web"
)

type Config struct {
	Owner   string `yaml:"owner"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Pool struct {
		ReserveA  string `yaml:"reserve_a"`
		ReserveB  string `yaml:"reserve_b"`
		DecimalsA int32  `yaml:"decimals_a"`
		DecimalsB int32  `yaml:"decimals_b"`
	} `yaml:"pool"`
	Grid struct {
		TokenA          string `yaml:"token_a"`
		TokenB          string `yaml:"token_b"`
		LowerPrice      string `yaml:"lower_price"`
		UpperPrice      string `yaml:"upper_price"`
		LevelCount      int    `yaml:"level_count"`
		OrderSizeA      string `yaml:"order_size_a"`
		OrderSizeB      string `yaml:"order_size_b"`
		FeeTier         uint32 `yaml:"fee_tier"`
		MaxSlippageBps  int    `yaml:"max_slippage_bps"`
		CooldownSeconds int64  `yaml:"cooldown_seconds"`
	} `yaml:"grid"`
	Automation struct {
		PollIntervalMs    int    `yaml:"poll_interval_ms"`
		TwapWindowSeconds uint32 `yaml:"twap_window_seconds"`
	} `yaml:"automation"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mustDecimal(field, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		fmt.Printf("Invalid decimal for %s: %q\n", field, raw)
		os.Exit(1)
	}
	return d
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	simPool := pool.NewSimulatedPool(
		mustDecimal("pool.reserve_a", cfg.Pool.ReserveA),
		mustDecimal("pool.reserve_b", cfg.Pool.ReserveB),
		domain.FeeTier(cfg.Grid.FeeTier),
		cfg.Pool.DecimalsA,
		cfg.Pool.DecimalsB,
	)
	twap := oracle.NewTwapOracle(simPool, cfg.Pool.DecimalsA, cfg.Pool.DecimalsB)

	hub := web.NewHub(log)
	notifier := notify.Multi{notify.NewZapNotifier(log), hub}

	window := cfg.Automation.TwapWindowSeconds
	if window == 0 {
		window = usecase.DefaultTwapWindow
	}
	svc := usecase.NewGridService(cfg.Owner, store, simPool, twap, notifier, log,
		usecase.WithTwapWindow(window))

	ctx := context.Background()
	if err := svc.Restore(ctx); err != nil {
		log.Fatal("Failed to restore engine state", zap.Error(err))
	}

	// First run: configure and build the ladder from the yaml parameters.
	// On restart the stored config wins and these calls are no-ops.
	gridCfg := &domain.GridConfig{
		TokenA:          cfg.Grid.TokenA,
		TokenB:          cfg.Grid.TokenB,
		LowerPrice:      mustDecimal("grid.lower_price", cfg.Grid.LowerPrice),
		UpperPrice:      mustDecimal("grid.upper_price", cfg.Grid.UpperPrice),
		LevelCount:      cfg.Grid.LevelCount,
		OrderSizeA:      mustDecimal("grid.order_size_a", cfg.Grid.OrderSizeA),
		OrderSizeB:      mustDecimal("grid.order_size_b", cfg.Grid.OrderSizeB),
		FeeTier:         domain.FeeTier(cfg.Grid.FeeTier),
		MaxSlippageBps:  cfg.Grid.MaxSlippageBps,
		CooldownSeconds: cfg.Grid.CooldownSeconds,
	}
	if err := svc.ConfigureGrid(ctx, cfg.Owner, gridCfg); err != nil && !errors.Is(err, domain.ErrAlreadyConfigured) {
		log.Fatal("Failed to configure grid", zap.Error(err))
	}
	if err := svc.InitializeLevels(ctx, cfg.Owner); err != nil && !errors.Is(err, domain.ErrAlreadyInitialized) {
		log.Fatal("Failed to initialize levels", zap.Error(err))
	}

	server := web.NewServer(cfg.Server.Port, cfg.Owner, svc, store, hub, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Web server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	// Backup poller: the external scheduler stand-in. CheckUpkeep is the
	// cheap predicate; PerformUpkeep re-validates everything anyway.
	pollInterval := time.Duration(cfg.Automation.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			needed, payload, err := svc.CheckUpkeep(ctx)
			if err != nil {
				log.Warn("checkUpkeep failed", zap.Error(err))
				continue
			}
			if !needed {
				continue
			}

			report, err := svc.PerformUpkeep(ctx, payload)
			if err != nil {
				log.Warn("performUpkeep failed", zap.Error(err))
				continue
			}
			log.Info("upkeep performed",
				zap.String("report_id", report.ID),
				zap.Int("executed", report.Executed),
				zap.Int("failed", report.Failed))
		}
	}()

	<-stop
	close(done)
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}
