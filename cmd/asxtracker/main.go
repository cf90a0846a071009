package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iamkanga/asxtracker-sub003/internal/alerts"
	"github.com/iamkanga/asxtracker-sub003/internal/batch"
	"github.com/iamkanga/asxtracker-sub003/internal/config"
	"github.com/iamkanga/asxtracker-sub003/internal/holdings"
	"github.com/iamkanga/asxtracker-sub003/internal/logger"
	"github.com/iamkanga/asxtracker-sub003/internal/models"
	"github.com/iamkanga/asxtracker-sub003/internal/quotes"
	"github.com/iamkanga/asxtracker-sub003/internal/rules"
	"github.com/iamkanga/asxtracker-sub003/internal/server"
	"github.com/iamkanga/asxtracker-sub003/internal/storage"
	"github.com/iamkanga/asxtracker-sub003/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	holdingsStore := holdings.NewStore(cfg.Holdings.File)
	if err := holdingsStore.Load(); err != nil {
		logger.Warn("Holdings file unavailable, starting with an empty registry: %v", err)
	} else {
		logger.Info("Loaded %d holdings from %s", holdingsStore.Len(), cfg.Holdings.File)
	}

	ruleStore, err := rules.NewStore(store, defaultRule(cfg))
	if err != nil {
		logger.Fatal("Failed to initialize rule store: %v", err)
	}

	quoteCache := quotes.NewCache()
	quoteClient := quotes.NewClient(cfg.Quotes.Endpoint, cfg.Quotes.APIKey, cfg.Quotes.Timeout, cfg.Quotes.RateLimit)
	batchClient := batch.NewClient(cfg.Batch.CustomURL, cfg.Batch.MoversURL, cfg.Batch.HiLoURL, cfg.Batch.Timeout)

	engine := alerts.New(quoteCache, holdingsStore, ruleStore, store, alerts.Options{
		User:            cfg.User,
		SparseThreshold: cfg.Batch.SparseThreshold,
	})

	// A rule change re-gates the whole feed.
	ruleStore.Subscribe(func(models.Rule) { engine.Refresh() })

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 0, 0)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
		engine.OnChange(telegram.NewNotifier(telegramClient).HandleFeed)
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Addr, engine, ruleStore)
		engine.OnChange(srv.Hub().Broadcast)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Fatal("WebSocket server failed: %v", err)
			}
		}()
	} else {
		logger.Debug("WebSocket server disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		if srv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("WebSocket server shutdown: %v", err)
			}
		}
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting poll loop (interval: %v, user: %q, sparse_threshold: %d)",
		cfg.Quotes.PollInterval, cfg.User, cfg.Batch.SparseThreshold)

	ticker := time.NewTicker(cfg.Quotes.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Poll cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial poll cycle")
	handleCycleResult(runPollCycle(ctx, quoteClient, batchClient, quoteCache, holdingsStore, engine))
	engine.SelfTest()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled poll cycle")
			handleCycleResult(runPollCycle(ctx, quoteClient, batchClient, quoteCache, holdingsStore, engine))
		}
	}
}

// defaultRule seeds the rule store from config when nothing is persisted yet.
func defaultRule(cfg *config.Config) models.Rule {
	d := cfg.Alerts.Defaults
	return models.Rule{
		Up:               models.ThresholdPair{Percent: d.UpPercent, Dollar: d.UpDollar},
		Down:             models.ThresholdPair{Percent: d.DownPercent, Dollar: d.DownDollar},
		MinPrice:         d.MinPrice,
		HiLoMinPrice:     d.HiLoMinPrice,
		MoversEnabled:    d.MoversEnabled,
		ActiveIndustries: d.ActiveIndustries,
	}
}

func runPollCycle(
	ctx context.Context,
	quoteClient *quotes.Client,
	batchClient *batch.Client,
	cache *quotes.Cache,
	holdingsStore *holdings.Store,
	engine *alerts.Engine,
) error {
	startTime := time.Now()
	logger.Info("Starting poll cycle")

	ticks, err := quoteClient.FetchTicks(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch quotes: %w", err)
	}
	cache.ReplaceAll(ticks)
	logger.Info("Refreshed quote cache with %d instruments", cache.Len())

	// Holdings file edits are picked up without a restart.
	if err := holdingsStore.Load(); err != nil {
		logger.Debug("Holdings reload skipped: %v", err)
	}

	docs := batchClient.FetchDocuments(ctx)
	engine.UpdateDocuments(docs)

	logger.Info("Poll cycle completed in %v", time.Since(startTime))
	return nil
}
