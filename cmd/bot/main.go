// Command bot runs the document bot: the chat transport poller, the ops HTTP
// server, and the daily summary scheduler, all sharing one SQLite database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Carelightt/pdftelegram/internal/bot"
	"github.com/Carelightt/pdftelegram/internal/config"
	"github.com/Carelightt/pdftelegram/internal/delivery"
	"github.com/Carelightt/pdftelegram/internal/dialog"
	"github.com/Carelightt/pdftelegram/internal/httpapi"
	"github.com/Carelightt/pdftelegram/internal/observability"
	"github.com/Carelightt/pdftelegram/internal/render"
	"github.com/Carelightt/pdftelegram/internal/repo"
	"github.com/Carelightt/pdftelegram/internal/sched"
	"github.com/Carelightt/pdftelegram/internal/services"
	"github.com/Carelightt/pdftelegram/internal/sysutil"
	"github.com/Carelightt/pdftelegram/internal/telegram"
)

const version = "1.0.0"

// accessRepoShim adapts the repository free functions to services.AccessRepo,
// keeping the service layer decoupled from the concrete repo package.
type accessRepoShim struct{}

func (accessRepoShim) IsDenied(ctx context.Context, db *gorm.DB, chatID int64) (bool, error) {
	return repo.IsDenied(ctx, db, chatID)
}

func (accessRepoShim) AddDenial(ctx context.Context, db *gorm.DB, chatID int64) error {
	return repo.AddDenial(ctx, db, chatID)
}

func (accessRepoShim) RemoveDenial(ctx context.Context, db *gorm.DB, chatID int64) error {
	return repo.RemoveDenial(ctx, db, chatID)
}

func (accessRepoShim) GetGrant(ctx context.Context, db *gorm.DB, chatID int64) (time.Time, error) {
	g, err := repo.GetGrant(ctx, db, chatID)
	if err != nil {
		return time.Time{}, err
	}
	return g.ExpiresAt, nil
}

func (accessRepoShim) UpsertGrant(ctx context.Context, db *gorm.DB, chatID int64, expiresAt time.Time) error {
	return repo.UpsertGrant(ctx, db, chatID, expiresAt)
}

func (accessRepoShim) DeleteGrant(ctx context.Context, db *gorm.DB, chatID int64) error {
	return repo.DeleteGrant(ctx, db, chatID)
}

func (accessRepoShim) PruneExpiredGrants(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.PruneExpiredGrants(ctx, db, now)
}

func (accessRepoShim) GetQuota(ctx context.Context, db *gorm.DB, chatID int64) (int, error) {
	return repo.GetQuota(ctx, db, chatID)
}

func (accessRepoShim) SetQuota(ctx context.Context, db *gorm.DB, chatID int64, remaining int) error {
	return repo.SetQuota(ctx, db, chatID, remaining)
}

func (accessRepoShim) DecrementQuota(ctx context.Context, db *gorm.DB, chatID int64) (bool, error) {
	return repo.DecrementQuota(ctx, db, chatID)
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	loc, err := time.LoadLocation(cfg.LedgerTZ)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.LedgerTZ).Msg("invalid ledger time zone")
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.SessionStore).Msg("session store setup failed")
	}
	defer store.Close()

	// Services.
	access := services.NewAccessService(db, accessRepoShim{}, cfg.AllowedChatIDs, cfg.GrantMaxDays)
	usage := services.NewUsageService(db, loc)

	// Transport, paced per chat.
	client := telegram.NewClient(cfg.BotToken, cfg.PollTO, cfg.UploadTO)
	transport := bot.NewLimitedTransport(client, bot.NewSendLimiter(cfg.SendRPS, cfg.SendBurst))

	pipeline := delivery.NewPipeline(transport, log.Logger, "", cfg.DeliveryAttempts, cfg.DeliveryBackoff)

	operators := make(map[int64]struct{}, len(cfg.OperatorIDs))
	for _, id := range cfg.OperatorIDs {
		operators[id] = struct{}{}
	}

	handler := &bot.Handler{
		Catalog:   bot.DefaultCatalog(cfg.Render.FeeURL, cfg.Render.ReceiptURL),
		Dialogs:   dialog.NewManager(store, cfg.DialogTimeout),
		Access:    access,
		Usage:     usage,
		Renderer:  render.NewClient(cfg.Render.Timeout, cfg.Render.Secret),
		Deliverer: pipeline,
		Transport: transport,
		Operators: operators,
		Logger:    log.Logger,
	}
	dispatcher := bot.NewDispatcher(transport, handler, log.Logger)

	// Ops HTTP server.
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, usage, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
			stop()
		}
	}()

	// Daily summary push.
	summary := sched.NewSummary(usage, transport, cfg.SummaryChatID, cfg.SummaryHour, loc, log.Logger)
	go summary.Run(ctx)

	log.Info().Str("version", version).Msg("bot started")
	dispatcher.Run(ctx)

	// Transport drained; stop the ops server.
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown failed")
	}
	log.Info().Msg("bot stopped")
}

// newSessionStore builds the dialog session store for the configured driver.
func newSessionStore(cfg config.Config) (dialog.Store, error) {
	switch dialog.StoreType(cfg.SessionStore) {
	case dialog.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		// Keys should outlive the dialog deadline; expiry is enforced
		// lazily by the manager, the TTL only bounds leakage.
		return dialog.NewStore(dialog.StoreTypeRedis,
			dialog.WithRedisClient(client),
			dialog.WithRedisTTL(24*time.Hour),
		)
	default:
		return dialog.NewStore(dialog.StoreType(cfg.SessionStore))
	}
}
