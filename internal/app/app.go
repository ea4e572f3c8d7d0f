// Package app wires the rental backend from configuration. Both binaries
// build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hanapbahay/internal/api"
	"hanapbahay/internal/bot"
	"hanapbahay/internal/config"
	"hanapbahay/internal/database"
	"hanapbahay/internal/domain"
	"hanapbahay/internal/events"
	"hanapbahay/internal/export"
	"hanapbahay/internal/google"
	"hanapbahay/internal/logging"
	"hanapbahay/internal/metrics"
	"hanapbahay/internal/models"
	"hanapbahay/internal/notify"
	"hanapbahay/internal/paymongo"
	"hanapbahay/internal/payments"
	"hanapbahay/internal/repository"
	"hanapbahay/internal/service"
	"hanapbahay/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config *config.Config
	Logger *zerolog.Logger
	DB     *database.DB
	Redis  *redis.Client
	Bus    *events.EventBus

	Ledger       *google.LedgerSheet
	LedgerWorker *worker.LedgerSyncWorker
	PayMongo     *paymongo.Client
	Verifier     *paymongo.Verifier

	Listings      *service.ListingService
	Bookings      *service.BookingService
	Payments      *service.PaymentService
	Conversations *service.ConversationService
	Accounts      *service.AccountService
	Exporter      *export.LedgerExporter

	// Bot is nil unless Telegram is enabled and reachable.
	Bot *bot.Bot
}

// LoadConfig reads CONFIG_PATH (default configs/config.yaml) and builds the
// logger. The closer releases a log file, if any.
func LoadConfig() (*config.Config, *zerolog.Logger, func(), error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	release := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return cfg, logger, release, nil
}

// New opens storage and builds every service. Optional integrations
// (redis, PayMongo, Google Sheets, Telegram) are skipped with a warning when
// not configured or unreachable.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Bus: events.NewEventBus()}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	models.SetLocation(loc)

	if err := prepareDirectories(cfg); err != nil {
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = db

	a.Redis = initRedis(ctx, cfg, logger)
	a.initLedger(ctx)
	a.initPayMongo()

	rules := payments.RulesFromConfig(cfg.Payments)

	// Optional collaborators stay untyped nil when disabled.
	var syncWorker domain.SyncWorker
	if a.LedgerWorker != nil {
		syncWorker = a.LedgerWorker
	}
	var gateway domain.PaymentGateway
	var checkouts domain.CheckoutStore
	if a.PayMongo != nil {
		gateway = a.PayMongo
		checkouts = a.checkoutStore()
	}

	svcLogger := logging.Component(logger, "service")
	a.Listings = service.NewListingService(db, svcLogger)
	a.Bookings = service.NewBookingService(db, rules, a.Bus, syncWorker, svcLogger)
	a.Payments = service.NewPaymentService(db, rules, gateway, checkouts, service.CheckoutConfig{
		Currency:       cfg.Payments.Currency,
		PaymentMethods: cfg.PayMongo.PaymentMethods,
		SessionTTL:     cfg.Payments.CheckoutTTL,
		Attempts:       cfg.Payments.CheckoutAttempts,
	}, a.Bus, syncWorker, svcLogger)
	a.Conversations = service.NewConversationService(db, svcLogger)
	a.Accounts = service.NewAccountService(db, svcLogger)
	a.Exporter = export.NewLedgerExporter(db, cfg.Exports.Path, logging.Component(logger, "export"))

	notifier := notify.NewNotifier(db, a.Conversations, a.initTelegram(), logging.Component(logger, "notify"))
	notifier.Subscribe(a.Bus)
	metrics.Subscribe(a.Bus)

	return a, nil
}

func prepareDirectories(cfg *config.Config) error {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory fallbacks")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("Redis connected")
	}
	return client
}

// checkoutStore puts redis in front of the in-memory store when configured.
func (a *App) checkoutStore() domain.CheckoutStore {
	memory := repository.NewMemoryCheckoutRepository()
	if a.Redis == nil {
		return memory
	}
	return repository.NewFailoverCheckoutRepository(
		repository.NewRedisCheckoutRepository(a.Redis),
		memory,
		logging.Component(a.Logger, "checkout-store"),
	)
}

func (a *App) initLedger(ctx context.Context) {
	cfg := a.Config.Google
	if cfg.GoogleCredentialsFile == "" || cfg.LedgerSpreadSheetID == "" {
		a.Logger.Info().Msg("Google Sheets ledger not configured")
		return
	}

	logger := logging.Component(a.Logger, "ledger-sheet")
	ledger, err := google.NewLedgerSheet(ctx, cfg, logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Google Sheets ledger init failed, continuing without it")
		return
	}
	if err := ledger.EnsureHeader(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Google Sheets ledger header check failed")
	}
	a.Ledger = ledger

	retry := worker.RetryPolicyFromConfig(a.Config.Google.Sync)
	a.LedgerWorker = worker.NewLedgerSyncWorker(a.DB, ledger, a.Redis, retry, logging.Component(a.Logger, "ledger-worker"))
}

func (a *App) initPayMongo() {
	cfg := a.Config.PayMongo
	if !cfg.Enabled {
		a.Logger.Info().Msg("PayMongo disabled")
		return
	}
	a.PayMongo = paymongo.NewClient(cfg, logging.Component(a.Logger, "paymongo"))
	if cfg.WebhookSecret != "" {
		a.Verifier = &paymongo.Verifier{
			Secret:    cfg.WebhookSecret,
			LiveMode:  cfg.LiveMode,
			Tolerance: cfg.WebhookTolerance,
		}
	} else {
		a.Logger.Warn().Msg("PayMongo webhook secret not set, webhooks will be refused")
	}
}

// initTelegram connects the bot used for notifications and chat commands.
// It must run after the services are built.
func (a *App) initTelegram() *notify.TelegramChannel {
	cfg := a.Config.Telegram
	if !cfg.Enabled || cfg.BotToken == "" {
		return nil
	}
	botAPI, err := notify.NewBotAPI(cfg)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Telegram unavailable, notifications stay in-app")
		return nil
	}
	a.Logger.Info().Str("bot", botAPI.Self.UserName).Msg("Telegram notifications enabled")
	a.Bot = bot.NewBot(bot.NewWrapper(botAPI), a.DB, a.Payments, logging.Component(a.Logger, "bot"))
	return notify.NewTelegramChannel(botAPI)
}

// HTTPDeps returns the collaborators of the HTTP API.
func (a *App) HTTPDeps() api.Deps {
	return api.Deps{
		Listings:      a.Listings,
		Bookings:      a.Bookings,
		Payments:      a.Payments,
		Conversations: a.Conversations,
		Accounts:      a.Accounts,
		Exporter:      a.Exporter,
		PayMongo:      a.PayMongo,
		Verifier:      a.Verifier,
		DB:            a.DB,
	}
}

func (a *App) Close() error {
	var errs []error
	if err := repository.Close(a.Redis); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
